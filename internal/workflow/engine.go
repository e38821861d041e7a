// Package workflow drives an audit session from source submission through
// compilation, deployment and NFT minting.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/rxtech-lab/auditsmart/internal/auditapi"
	"github.com/rxtech-lab/auditsmart/internal/models"
	"github.com/rxtech-lab/auditsmart/internal/observability/metrics"
	"github.com/rxtech-lab/auditsmart/internal/services"
	"github.com/rxtech-lab/auditsmart/internal/wallet"
)

// AuditAPI is the remote audit service.
type AuditAPI interface {
	Analyze(ctx context.Context, source models.SourceInput, walletAddress string) (*models.AuditResult, error)
	PinMetadata(ctx context.Context, metadata models.NFTMetadata) (*auditapi.PinResult, error)
	FetchNFTConfig(ctx context.Context) (*auditapi.NFTConfig, error)
}

// Compiler turns the fixed source into an ABI and bytecode. The remote audit
// client and the local solc compiler both satisfy it.
type Compiler interface {
	Compile(ctx context.Context, source string) (*models.CompilationResult, error)
}

// Wallet is the signing wallet the engine deploys and mints through.
type Wallet interface {
	IsAvailable() bool
	GetConnectedAccount(ctx context.Context) (string, bool)
	RequestConnection(ctx context.Context) (string, error)
	OnAccountChanged(cb func(account string)) (unsubscribe func())
	SignAndSend(ctx context.Context, intent wallet.TxIntent) (*wallet.PendingTx, error)
	EstimateGas(ctx context.Context, intent wallet.TxIntent) (uint64, error)
	GetNetworkInfo(ctx context.Context) wallet.NetworkInfo
}

const DefaultNetworkLabel = "L1X"

type Config struct {
	Store    services.SessionStore
	AuditAPI AuditAPI
	Compiler Compiler
	Wallet   Wallet
	Evm      services.EvmService
	Hooks    services.HookService
	Logger   *slog.Logger

	// NetworkLabel is the network name written into NFT metadata.
	NetworkLabel string
	// ImageGateway prefixes the image CID in NFT metadata.
	ImageGateway string
	// ImageCIDs are the commemorative artworks a mint picks from.
	ImageCIDs []string
	// PickImage chooses one of ImageCIDs. Defaults to a uniform random pick.
	PickImage func(cids []string) string
	Now       func() time.Time
}

type intentKind string

const (
	intentDeploy intentKind = "deploy"
	intentMint   intentKind = "mint"
)

// pendingIntent is a deploy or mint waiting for a wallet connection.
type pendingIntent struct {
	kind intentKind
	gen  uint64
	args map[string]string
}

// returnStage is the stable stage to fall back to when the intent fails.
func (p *pendingIntent) returnStage() Stage {
	if p.kind == intentMint {
		return StageDeployed
	}
	return StageAnalyzed
}

func (p *pendingIntent) runStage() Stage {
	if p.kind == intentMint {
		return StageMinting
	}
	return StageDeploying
}

type Engine struct {
	store    services.SessionStore
	audit    AuditAPI
	compiler Compiler
	wallet   Wallet
	evm      services.EvmService
	hooks    services.HookService
	logger   *slog.Logger

	networkLabel string
	imageGateway string
	imageCIDs    []string
	pickImage    func([]string) string
	now          func() time.Time

	mu      sync.Mutex
	session models.AuditSession
	stage   Stage
	lastErr string
	account string
	pending *pendingIntent
	// gen changes whenever the result chain is discarded, so late results of
	// an abandoned operation are dropped.
	gen        uint64
	connecting bool
	// compileFailed hides the deployment prompt after a failed compile
	// until the next audit.
	compileFailed bool

	ctx         context.Context
	cancel      context.CancelFunc
	background  sync.WaitGroup
	unsubscribe []func()
}

// New loads the current session from the store and derives its stage.
func New(ctx context.Context, cfg Config) (*Engine, error) {
	if cfg.Store == nil || cfg.AuditAPI == nil || cfg.Compiler == nil || cfg.Wallet == nil {
		return nil, errors.New("workflow engine requires a store, audit API, compiler and wallet")
	}

	e := &Engine{
		store:        cfg.Store,
		audit:        cfg.AuditAPI,
		compiler:     cfg.Compiler,
		wallet:       cfg.Wallet,
		evm:          cfg.Evm,
		hooks:        cfg.Hooks,
		logger:       cfg.Logger,
		networkLabel: cfg.NetworkLabel,
		imageGateway: cfg.ImageGateway,
		imageCIDs:    cfg.ImageCIDs,
		pickImage:    cfg.PickImage,
		now:          cfg.Now,
	}
	if e.evm == nil {
		e.evm = services.NewEvmService()
	}
	if e.hooks == nil {
		e.hooks = services.NewHookService()
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.networkLabel == "" {
		e.networkLabel = DefaultNetworkLabel
	}
	if e.imageGateway == "" {
		e.imageGateway = DefaultImageGateway
	}
	if len(e.imageCIDs) == 0 {
		e.imageCIDs = DefaultImageCIDs
	}
	if e.pickImage == nil {
		e.pickImage = func(cids []string) string {
			return cids[rand.Intn(len(cids))]
		}
	}
	if e.now == nil {
		e.now = time.Now
	}

	sessionID, err := e.store.CurrentSessionID()
	if err != nil {
		return nil, err
	}
	stored, err := e.store.Load(sessionID)
	if err != nil {
		return nil, err
	}

	e.session = models.AuditSession{SessionID: sessionID}
	for _, field := range models.SessionFields {
		value, ok := stored[field]
		if !ok {
			continue
		}
		if err := e.session.Apply(field, &value); err != nil {
			e.logger.Warn("dropping malformed session field", "session_id", sessionID, "field", field, "error", err)
		}
	}
	e.stage = stageOf(&e.session)
	e.logger = e.logger.With("session_id", sessionID)

	if account, ok := e.wallet.GetConnectedAccount(ctx); ok {
		e.account = account
	}

	e.ctx, e.cancel = context.WithCancel(context.Background())
	e.unsubscribe = append(e.unsubscribe,
		e.store.Subscribe(sessionID, e.applyRemoteChange),
		e.wallet.OnAccountChanged(e.handleAccountChanged),
	)

	e.logger.Info("workflow session loaded", "stage", e.stage.String())
	return e, nil
}

// Close detaches the engine from store and wallet events and waits for a
// resumed background operation to finish.
func (e *Engine) Close() {
	e.mu.Lock()
	unsubscribe := e.unsubscribe
	e.unsubscribe = nil
	e.mu.Unlock()

	for _, fn := range unsubscribe {
		fn()
	}
	e.cancel()
	e.background.Wait()
}

func (e *Engine) SessionID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.SessionID
}

func (e *Engine) Snapshot() View {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.viewLocked()
}

// setStageLocked must be called with e.mu held.
func (e *Engine) setStageLocked(stage Stage) {
	if e.stage == stage {
		return
	}
	metrics.StageTransition(e.stage.String(), stage.String())
	e.logger.Debug("stage transition", "from", e.stage.String(), "to", stage.String())
	e.stage = stage
}

// commitLocked writes fields of next to the store and only then adopts next
// as the current session.
func (e *Engine) commitLocked(next models.AuditSession, fields ...models.SessionField) error {
	values := make(map[models.SessionField]*string, len(fields))
	for _, field := range fields {
		value, err := next.Encode(field)
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", field, err)
		}
		values[field] = value
	}
	if err := e.store.SetMany(next.SessionID, values); err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}
	e.session = next
	return nil
}

// failLocked surfaces err and falls back to stage unless the operation was
// abandoned.
func (e *Engine) failLocked(gen uint64, stage Stage, operation string, err error) error {
	metrics.StageFailure(operation)
	e.logger.Error("workflow operation failed", "operation", operation, "error", err)
	if e.gen != gen {
		return err
	}
	e.lastErr = err.Error()
	e.setStageLocked(stage)
	return err
}

func (e *Engine) fail(gen uint64, stage Stage, operation string, err error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.failLocked(gen, stage, operation, err)
}

// applyRemoteChange mirrors a write made by another engine sharing the store.
func (e *Engine) applyRemoteChange(change services.FieldChange) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.session.Apply(change.Field, change.Value); err != nil {
		e.logger.Warn("dropping malformed session change", "field", change.Field, "origin", change.Origin, "error", err)
		return
	}
	if change.Field == models.FieldResults {
		e.compileFailed = false
	}
	if e.stage.InFlight() || e.stage == StageAwaitingWalletConnect || e.stage == StageAwaitingConstructorArgs {
		return
	}
	e.setStageLocked(stageOf(&e.session))
}

// handleAccountChanged records the new account and resumes an intent that was
// waiting for one. In-flight transactions are left alone.
func (e *Engine) handleAccountChanged(account string) {
	e.mu.Lock()
	e.account = account
	if account == "" || e.connecting {
		e.mu.Unlock()
		return
	}
	pending := e.takePendingLocked()
	e.mu.Unlock()

	if pending == nil {
		return
	}
	e.background.Add(1)
	go func() {
		defer e.background.Done()
		_ = e.resume(e.ctx, pending)
	}()
}

// takePendingLocked moves a waiting intent back into its running stage.
func (e *Engine) takePendingLocked() *pendingIntent {
	if e.stage != StageAwaitingWalletConnect || e.pending == nil {
		return nil
	}
	pending := e.pending
	e.pending = nil
	if pending.gen != e.gen {
		return nil
	}
	e.setStageLocked(pending.runStage())
	return pending
}

func (e *Engine) resume(ctx context.Context, pending *pendingIntent) error {
	e.logger.Info("resuming after wallet connection", "action", string(pending.kind))
	if pending.kind == intentMint {
		return e.runMint(ctx, pending.gen)
	}
	return e.runDeploy(ctx, pending.gen, pending.args)
}

// awaitWalletLocked parks the intent until a wallet account is connected.
func (e *Engine) awaitWalletLocked(kind intentKind, gen uint64, args map[string]string) {
	if e.gen != gen {
		return
	}
	e.pending = &pendingIntent{kind: kind, gen: gen, args: args}
	e.setStageLocked(StageAwaitingWalletConnect)
	e.logger.Info("waiting for wallet connection", "action", string(kind))
}

// ConnectWallet prompts for a wallet connection. A deploy or mint waiting on
// the connection is resumed before returning.
func (e *Engine) ConnectWallet(ctx context.Context) (string, error) {
	e.mu.Lock()
	e.connecting = true
	e.mu.Unlock()

	account, err := e.wallet.RequestConnection(ctx)

	e.mu.Lock()
	e.connecting = false
	if err != nil {
		err = fmt.Errorf("failed to connect wallet: %w", err)
		e.lastErr = err.Error()
		if e.stage == StageAwaitingWalletConnect && e.pending != nil {
			e.setStageLocked(e.pending.returnStage())
			e.pending = nil
		}
		e.mu.Unlock()
		e.logger.Warn("wallet connection failed", "error", err)
		return "", err
	}

	e.account = account
	pending := e.takePendingLocked()
	e.mu.Unlock()

	e.logger.Info("wallet connected", "account", account)
	if pending != nil {
		return account, e.resume(ctx, pending)
	}
	return account, nil
}

// SetPastedCode makes pasted code the active source.
func (e *Engine) SetPastedCode(code string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	next := e.session
	next.Source = models.SourceInput{}
	if code != "" {
		next.Source = models.SourceInput{Kind: models.SourceKindPasted, Code: code}
	}
	return e.commitLocked(next, models.FieldPastedCode)
}

// SelectFile makes an uploaded file the active source. Selected files are not
// persisted, so the previously pasted code is removed.
func (e *Engine) SelectFile(name, content string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	next := e.session
	next.Source = models.SourceInput{Kind: models.SourceKindFile, FileName: name, Code: content}
	return e.commitLocked(next, models.FieldPastedCode)
}

// Reset clears every result, the source and the persisted entries. The
// session id is kept. A running operation must finish first.
func (e *Engine) Reset() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stage.InFlight() {
		return ErrBusy
	}
	if err := e.store.Clear(e.session.SessionID); err != nil {
		return fmt.Errorf("failed to reset session: %w", err)
	}
	e.gen++
	e.session = models.AuditSession{SessionID: e.session.SessionID}
	e.pending = nil
	e.lastErr = ""
	e.compileFailed = false
	e.setStageLocked(StageIdle)
	e.logger.Info("session reset")
	return nil
}

// DismissError clears the surfaced error.
func (e *Engine) DismissError() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastErr = ""
}

// DeclineDeployment hides the deployment prompt.
func (e *Engine) DeclineDeployment() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	next := e.session
	next.DeploymentAvailable = false
	return e.commitLocked(next, models.FieldDeploymentAvailable)
}

// DeclineMinting hides the minting prompt.
func (e *Engine) DeclineMinting() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	next := e.session
	next.MintingAvailable = false
	return e.commitLocked(next, models.FieldMintingAvailable)
}

// confirmed runs the confirmation hooks. Failures are logged only.
func (e *Engine) confirmed(ctx context.Context, tx models.ConfirmedTransaction) {
	if err := e.hooks.OnTransactionConfirmed(ctx, tx); err != nil {
		e.logger.Error("transaction confirmation hook failed", "type", tx.TransactionType, "hash", tx.TransactionHash, "error", err)
	}
}
