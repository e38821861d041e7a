package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/rxtech-lab/auditsmart/internal/api"
	"github.com/rxtech-lab/auditsmart/internal/config"
	"github.com/rxtech-lab/auditsmart/internal/logger"
	"github.com/rxtech-lab/auditsmart/internal/mcp"
	"github.com/rxtech-lab/auditsmart/internal/server"
)

var (
	apiServer *api.APIServer
	initOnce  sync.Once
	initErr   error
)

// Handler is the main Vercel function handler
func Handler(w http.ResponseWriter, r *http.Request) {
	// Initialize the API server only once
	initOnce.Do(func() {
		initErr = initializeAPIServer()
	})
	if initErr != nil {
		slog.Error("failed to initialize API server", "error", initErr)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	adaptor.FiberApp(apiServer.GetFiberApp())(w, r)
}

// initializeAPIServer wires the same services as the serve command
func initializeAPIServer() error {
	cfg, err := config.Load("")
	if err != nil {
		return err
	}
	cfg.Database = databaseConfig(cfg.Database)

	log := logger.Init(logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})

	// Function instances have no terminal to confirm on
	cfg.Wallet.AutoApprove = true
	svc, err := server.InitializeServices(context.Background(), cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}

	apiServer = api.NewAPIServer(svc.Engine, svc.Deployments,
		api.WithNetworkReporter(svc.Wallet),
		api.WithLogger(log),
	)
	apiServer.SetupRoutes()
	apiServer.EnableStreamableHttp(mcp.NewMCPServer(svc.Engine, svc.Deployments, "serverless").GetServer())

	// Add a root route for Vercel
	apiServer.GetFiberApp().Get("/", func(c *fiber.Ctx) error {
		return c.JSON(map[string]interface{}{
			"message": "AuditSmart API",
			"status":  "running",
			"session": svc.Engine.SessionID(),
		})
	})

	return nil
}

// databaseConfig moves the sqlite file to /tmp on Vercel, the only writable
// location there. A configured postgres database is kept.
func databaseConfig(db config.DatabaseConfig) config.DatabaseConfig {
	if os.Getenv("VERCEL") == "1" && db.Driver == "sqlite" {
		db.Path = "/tmp/auditsmart.db"
	}
	return db
}
