package api

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rxtech-lab/auditsmart/internal/observability/metrics"
	"github.com/rxtech-lab/auditsmart/internal/services"
	"github.com/rxtech-lab/auditsmart/internal/wallet"
	"github.com/rxtech-lab/auditsmart/internal/workflow"
)

// Engine is the workflow the HTTP API drives.
type Engine interface {
	Snapshot() workflow.View
	SetPastedCode(code string) error
	SelectFile(name, content string) error
	Submit(ctx context.Context) error
	RequestDeploy(ctx context.Context) error
	DeclineDeployment() error
	SubmitConstructorArgs(ctx context.Context, values map[string]string) error
	CancelConstructorArgs() error
	RequestMint(ctx context.Context) error
	DeclineMinting() error
	ConnectWallet(ctx context.Context) (string, error)
	Reset() error
	DismissError()
}

// NetworkReporter reports the network the wallet is connected to.
type NetworkReporter interface {
	GetNetworkInfo(ctx context.Context) wallet.NetworkInfo
}

type APIServer struct {
	app         *fiber.App
	engine      Engine
	deployments services.DeploymentService
	network     NetworkReporter
	logger      *slog.Logger
	port        int
}

type Option func(*APIServer)

// WithNetworkReporter adds the network to GET /api/wallet.
func WithNetworkReporter(network NetworkReporter) Option {
	return func(s *APIServer) {
		s.network = network
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *APIServer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRequestLog enables fiber's access log.
func WithRequestLog() Option {
	return func(s *APIServer) {
		s.app.Use(logger.New(logger.Config{
			Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
			TimeFormat: "15:04:05",
			TimeZone:   "Local",
		}))
	}
}

func NewAPIServer(engine Engine, deployments services.DeploymentService, opts ...Option) *APIServer {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})

	app.Use(cors.New())
	app.Use(metrics.Middleware())

	s := &APIServer{
		app:         app,
		engine:      engine,
		deployments: deployments,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *APIServer) SetupRoutes() {
	s.app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(map[string]any{
			"status":  "ok",
			"service": metrics.ServiceName(),
			"metrics": metrics.Enabled(),
		})
	})
	s.app.Get("/metrics", func(c *fiber.Ctx) error {
		return adaptor.HTTPHandler(metrics.Handler())(c)
	})

	session := s.app.Group("/api/session")
	session.Get("/", s.handleGetSession)
	session.Post("/source", s.handleSetSource)
	session.Post("/audit", s.handleAudit)
	session.Post("/deploy", s.handleDeploy)
	session.Post("/deploy/later", s.handleDeclineDeployment)
	session.Post("/constructor-args", s.handleConstructorArgs)
	session.Post("/constructor-args/cancel", s.handleCancelConstructorArgs)
	session.Post("/mint", s.handleMint)
	session.Post("/mint/later", s.handleDeclineMinting)
	session.Post("/reset", s.handleReset)
	session.Delete("/error", s.handleDismissError)

	s.app.Get("/api/wallet", s.handleGetWallet)
	s.app.Post("/api/wallet/connect", s.handleConnectWallet)

	s.app.Get("/api/deployments", s.handleListDeployments)
	s.app.Get("/api/deployments/:id", s.handleGetDeployment)
	s.app.Delete("/api/deployments/:id", s.handleDeleteDeployment)
}

// EnableStreamableHttp serves the MCP tools over streamable HTTP on /mcp.
func (s *APIServer) EnableStreamableHttp(mcpServer *server.MCPServer) {
	handler := adaptor.HTTPHandler(server.NewStreamableHTTPServer(mcpServer))
	s.app.All("/mcp", handler)
	s.app.All("/mcp/*", handler)
}

// Start listens on port, or on a random available port when port is nil.
func (s *APIServer) Start(port *int) (int, error) {
	address := ":0"
	if port != nil {
		address = fmt.Sprintf(":%d", *port)
	}
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return 0, fmt.Errorf("failed to listen on %s: %w", address, err)
	}
	s.port = listener.Addr().(*net.TCPAddr).Port

	go func() {
		if err := s.app.Listener(listener); err != nil {
			s.logger.Error("API server stopped", "error", err)
		}
	}()
	return s.port, nil
}

func (s *APIServer) Shutdown() error {
	return s.app.Shutdown()
}

func (s *APIServer) GetPort() int {
	return s.port
}

func (s *APIServer) GetFiberApp() *fiber.App {
	return s.app
}
