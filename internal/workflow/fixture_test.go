package workflow_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rxtech-lab/auditsmart/internal/auditapi"
	"github.com/rxtech-lab/auditsmart/internal/hooks"
	"github.com/rxtech-lab/auditsmart/internal/models"
	"github.com/rxtech-lab/auditsmart/internal/services"
	"github.com/rxtech-lab/auditsmart/internal/wallet"
	"github.com/rxtech-lab/auditsmart/internal/wallet/wallettest"
	"github.com/rxtech-lab/auditsmart/internal/workflow"
	"github.com/stretchr/testify/require"
)

const (
	noArgsABI = `[{"type":"constructor","inputs":[],"stateMutability":"nonpayable"}]`
	ctorABI   = `[{"type":"constructor","stateMutability":"nonpayable","inputs":[
		{"name":"owner","type":"address"},
		{"name":"supply","type":"uint256"}
	]}]`
	pastedContract = "pragma solidity ^0.8.19;\ncontract Vault {}"
	fixedContract  = "pragma solidity ^0.8.19;\ncontract Vault { }"
)

var fixedNow = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

// fakeAuditBackend stands in for the remote audit service.
type fakeAuditBackend struct {
	mu         sync.Mutex
	calls      map[string]int
	fixedCode  string
	auditFail  bool
	abi        string
	nftAddress string
	nftABI     string
	pinFail    bool
	// compileFail makes /compile-only answer with a compiler error.
	compileFail bool
	// reportStatus overrides the /minting-report status when set.
	reportStatus int
	reports      []map[string]any

	// When set, /audit-only signals started and blocks until release closes.
	started chan struct{}
	release chan struct{}
}

func (b *fakeAuditBackend) set(fn func(*fakeAuditBackend)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(b)
}

func (b *fakeAuditBackend) reported() []map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]map[string]any(nil), b.reports...)
}

func (b *fakeAuditBackend) count(path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[path]
}

func (b *fakeAuditBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	b.calls[r.URL.Path]++
	started, release := b.started, b.release
	fixedCode, auditFail, abi := b.fixedCode, b.auditFail, b.abi
	nftAddress, nftABI, pinFail := b.nftAddress, b.nftABI, b.pinFail
	compileFail, reportStatus := b.compileFail, b.reportStatus
	b.mu.Unlock()

	switch r.URL.Path {
	case "/audit-only":
		if started != nil {
			started <- struct{}{}
			<-release
		}
		if auditFail {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "slither crashed"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"vulnerabilities":      []map[string]string{{"title": "Unchecked call", "severity": "Medium"}},
			"fixed_code":           fixedCode,
			"contract_name":        "Vault",
			"contract_description": "A vault",
		})
	case "/compile-only":
		if compileFail {
			writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "ParserError: Expected ';'"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status":        "success",
			"contract_name": "Vault",
			"abi":           json.RawMessage(abi),
			"bytecode":      wallettest.StubBytecode[2:],
			"solc_version":  "0.8.19",
		})
	case "/pin-metadata":
		if pinFail {
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<html>maintenance</html>"))
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "success", "cid": "bafymeta", "ipfs_uri": "https://ipfs.io/ipfs/bafymeta"})
	case "/nft-config":
		writeJSON(w, http.StatusOK, map[string]any{
			"nft_contract_address": nftAddress,
			"nft_abi":              json.RawMessage(nftABI),
		})
	case "/minting-report":
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		b.mu.Lock()
		b.reports = append(b.reports, body)
		b.mu.Unlock()
		if reportStatus != 0 {
			writeJSON(w, reportStatus, map[string]string{"detail": "Minting report already exists"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "Minting report saved", "id": "r1"})
	default:
		http.NotFound(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type fixture struct {
	chain       *wallettest.Chain
	provider    *wallet.KeyedProvider
	adapter     *wallet.Adapter
	db          services.DBService
	broadcaster *services.Broadcaster
	store       services.SessionStore
	deployments services.DeploymentService
	backend     *fakeAuditBackend
	client      *auditapi.Client
	engine      *workflow.Engine
}

type fixtureOption func(*fixtureConfig)

type fixtureConfig struct {
	connected bool
	approver  wallet.Approver
}

func walletConnected() fixtureOption {
	return func(c *fixtureConfig) { c.connected = true }
}

func withApprover(approver wallet.Approver) fixtureOption {
	return func(c *fixtureConfig) { c.approver = approver }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	cfg := fixtureConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	f := &fixture{chain: wallettest.NewChain(t, 2)}

	var providerOpts []wallet.KeyedProviderOption
	if cfg.connected {
		providerOpts = append(providerOpts, wallet.WithConnected())
	}
	if cfg.approver != nil {
		providerOpts = append(providerOpts, wallet.WithApprover(cfg.approver))
	}
	f.provider = f.chain.Provider(0, providerOpts...)
	f.adapter = wallet.NewAdapter(f.provider, wallet.WithPollInterval(10*time.Millisecond))
	t.Cleanup(f.adapter.Close)

	db, err := services.NewSqliteDBService(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	f.db = db
	f.broadcaster = services.NewBroadcaster()
	f.store = services.NewSessionStore(db.GetDB(), f.broadcaster, nil)
	f.deployments = services.NewDeploymentService(db.GetDB())

	f.backend = &fakeAuditBackend{
		calls:      map[string]int{},
		fixedCode:  fixedContract,
		abi:        noArgsABI,
		nftAddress: f.chain.Deploy(t, wallettest.MintStubBytecode).Hex(),
		nftABI:     wallettest.MintStubABI,
	}
	server := httptest.NewServer(f.backend)
	t.Cleanup(server.Close)
	f.client = auditapi.New(server.URL)

	f.engine = f.newEngine(t, f.store)
	return f
}

func (f *fixture) newEngine(t *testing.T, store services.SessionStore) *workflow.Engine {
	t.Helper()
	hookService := services.NewHookService()
	require.NoError(t, hookService.AddHook(hooks.NewDeploymentRecordHook(f.deployments)))
	require.NoError(t, hookService.AddHook(hooks.NewMintingReportHook(f.client, nil)))

	engine, err := workflow.New(context.Background(), workflow.Config{
		Store:     store,
		AuditAPI:  f.client,
		Compiler:  f.client,
		Wallet:    f.adapter,
		Hooks:     hookService,
		Now:       func() time.Time { return fixedNow },
		PickImage: func(cids []string) string { return cids[0] },
	})
	require.NoError(t, err)
	t.Cleanup(engine.Close)
	return engine
}

func (f *fixture) account() string {
	return f.chain.Address(0).Hex()
}

func (f *fixture) stored(t *testing.T, field models.SessionField) *string {
	t.Helper()
	value, err := f.store.Get(f.engine.SessionID(), field)
	require.NoError(t, err)
	return value
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	t.Cleanup(cancel)
	return ctx
}
