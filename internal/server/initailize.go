package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rxtech-lab/auditsmart/internal/auditapi"
	"github.com/rxtech-lab/auditsmart/internal/config"
	"github.com/rxtech-lab/auditsmart/internal/hooks"
	"github.com/rxtech-lab/auditsmart/internal/observability/metrics"
	"github.com/rxtech-lab/auditsmart/internal/services"
	"github.com/rxtech-lab/auditsmart/internal/wallet"
	"github.com/rxtech-lab/auditsmart/internal/workflow"
)

// Services is everything a running instance needs, wired from the config.
type Services struct {
	DB          services.DBService
	Store       services.SessionStore
	// Feed mirrors session writes made by other processes
	Feed        *services.ChangeFeed
	Deployments services.DeploymentService
	Hooks       services.HookService
	AuditAPI    *auditapi.Client
	Compiler    workflow.Compiler
	Wallet      *wallet.Adapter
	Engine      *workflow.Engine

	rpc *ethclient.Client
}

// Option customizes InitializeServices
type Option func(*options)

type options struct {
	approver    wallet.Approver
	broadcaster  *services.Broadcaster
	db           services.DBService
	feedInterval time.Duration
}

// WithApprover sets the prompt handler used when AUTO_APPROVE is off
func WithApprover(approver wallet.Approver) Option {
	return func(o *options) {
		o.approver = approver
	}
}

// WithBroadcaster shares session changes with other instances in the process
func WithBroadcaster(broadcaster *services.Broadcaster) Option {
	return func(o *options) {
		o.broadcaster = broadcaster
	}
}

// WithFeedInterval sets how often the change journal is polled
func WithFeedInterval(interval time.Duration) Option {
	return func(o *options) {
		o.feedInterval = interval
	}
}

// WithDBService uses an already open database instead of the configured one
func WithDBService(db services.DBService) Option {
	return func(o *options) {
		o.db = db
	}
}

// OpenDatabase opens the configured sqlite file or postgres database
func OpenDatabase(cfg config.DatabaseConfig) (services.DBService, error) {
	switch cfg.Driver {
	case "postgres":
		return services.NewPostgresDBService(cfg.URL)
	case "sqlite", "":
		return services.NewSqliteDBService(cfg.Path)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
}

// InitializeServices opens storage, connects the wallet and loads the
// current session into a workflow engine.
func InitializeServices(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*Services, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if logger == nil {
		logger = slog.Default()
	}

	metrics.Init(cfg.Metrics.Enabled, "auditsmart")

	s := &Services{}
	if o.db != nil {
		s.DB = o.db
	} else {
		db, err := OpenDatabase(cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		s.DB = db
	}

	broadcaster := o.broadcaster
	if broadcaster == nil {
		broadcaster = services.NewBroadcaster()
	}
	feedOpts := []services.ChangeFeedOption{
		services.WithFeedLogger(logger),
		services.WithFeedInterval(o.feedInterval),
	}
	if cfg.Database.Driver == "postgres" {
		feedOpts = append(feedOpts, services.WithListenDSN(cfg.Database.URL))
	}
	s.Feed = services.NewChangeFeed(s.DB.GetDB(), broadcaster, feedOpts...)
	if err := s.Feed.Start(ctx); err != nil {
		s.Close()
		return nil, err
	}

	s.Store = services.NewSessionStore(s.DB.GetDB(), broadcaster, logger)
	s.Deployments = services.NewDeploymentService(s.DB.GetDB())
	s.AuditAPI = auditapi.New(cfg.AuditAPI.URL,
		auditapi.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.AuditAPI.TimeoutSeconds) * time.Second}),
		auditapi.WithLogger(logger),
	)

	s.Hooks = services.NewHookService()
	deploymentRecordHook, mintingReportHook := InitializeHooks(s.Deployments, s.AuditAPI, logger)
	if err := RegisterHooks(s.Hooks, deploymentRecordHook, mintingReportHook); err != nil {
		s.Close()
		return nil, err
	}

	s.Compiler = s.AuditAPI
	if cfg.Compiler == "local" {
		s.Compiler = services.NewSolcCompiler()
	}

	provider, err := s.connectProvider(ctx, cfg, o.approver)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.Wallet = wallet.NewAdapter(provider, wallet.WithLogger(logger))

	engine, err := workflow.New(ctx, workflow.Config{
		Store:        s.Store,
		AuditAPI:     s.AuditAPI,
		Compiler:     s.Compiler,
		Wallet:       s.Wallet,
		Hooks:        s.Hooks,
		Logger:       logger,
		NetworkLabel: cfg.Wallet.NetworkName,
	})
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to initialize workflow: %w", err)
	}
	s.Engine = engine

	logger.Info("services initialized",
		"session_id", engine.SessionID(),
		"database", cfg.Database.Driver,
		"audit_api", s.AuditAPI.BaseURL(),
		"compiler", cfg.Compiler,
		"wallet", s.Wallet.IsAvailable(),
	)
	return s, nil
}

// connectProvider returns nil without a configured key, which leaves the
// workflow without a wallet provider.
func (s *Services) connectProvider(ctx context.Context, cfg *config.Config, approver wallet.Approver) (wallet.Provider, error) {
	if !cfg.HasWallet() {
		return nil, nil
	}

	rpc, err := ethclient.DialContext(ctx, cfg.Wallet.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC: %w", err)
	}
	s.rpc = rpc

	providerOpts := []wallet.KeyedProviderOption{}
	if !cfg.Wallet.AutoApprove {
		if approver == nil {
			return nil, errors.New("AUTO_APPROVE is off but no approval prompt is available")
		}
		providerOpts = append(providerOpts, wallet.WithApprover(approver))
	}

	provider, err := wallet.NewKeyedProviderFromHex(rpc, cfg.Wallet.PrivateKey, providerOpts...)
	if err != nil {
		return nil, err
	}
	return provider, nil
}

func InitializeHooks(deploymentService services.DeploymentService, reporter hooks.MintingReporter, logger *slog.Logger) (services.Hook, services.Hook) {
	deploymentRecordHook := hooks.NewDeploymentRecordHook(deploymentService)
	mintingReportHook := hooks.NewMintingReportHook(reporter, logger)

	return deploymentRecordHook, mintingReportHook
}

func RegisterHooks(hookService services.HookService, deploymentRecordHook services.Hook, mintingReportHook services.Hook) error {
	if err := hookService.AddHook(deploymentRecordHook); err != nil {
		return fmt.Errorf("failed to register deployment record hook: %w", err)
	}
	if err := hookService.AddHook(mintingReportHook); err != nil {
		return fmt.Errorf("failed to register minting report hook: %w", err)
	}
	return nil
}

// Close stops the engine and releases the feed, wallet, RPC and database
func (s *Services) Close() {
	if s.Engine != nil {
		s.Engine.Close()
	}
	if s.Feed != nil {
		s.Feed.Close()
	}
	if s.Wallet != nil {
		s.Wallet.Close()
	}
	if s.rpc != nil {
		s.rpc.Close()
	}
	if s.DB != nil {
		_ = s.DB.Close()
	}
}
