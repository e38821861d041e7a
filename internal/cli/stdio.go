package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rxtech-lab/auditsmart/internal/api"
	"github.com/rxtech-lab/auditsmart/internal/mcp"
	"github.com/rxtech-lab/auditsmart/internal/server"
	"github.com/spf13/cobra"
)

func createStdioCmd(info BuildInfo) *cobra.Command {
	var withAPI bool

	cmd := &cobra.Command{
		Use:   "stdio",
		Short: "Serve the MCP tools over stdio",
		Long: `Run as an MCP server on stdin and stdout for an AI client. Logs are discarded
unless --log names a file.

Calling a tool is the approval for what it does, so AUTO_APPROVE must stay on.
With --api the HTTP API is served alongside on the configured port.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			log, closeLog, err := setupLogger(cfg, true, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closeLog()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			svc, err := server.InitializeServices(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer svc.Close()

			if withAPI {
				apiServer := api.NewAPIServer(svc.Engine, svc.Deployments,
					api.WithNetworkReporter(svc.Wallet),
					api.WithLogger(log),
				)
				apiServer.SetupRoutes()
				port, err := apiServer.Start(&cfg.Server.Port)
				if err != nil {
					return fmt.Errorf("failed to start API server: %w", err)
				}
				defer func() {
					if err := apiServer.Shutdown(); err != nil {
						log.Error("error shutting down API server", "error", err)
					}
				}()
				log.Info("API server started", "port", port)
			}

			mcpServer := mcp.NewMCPServer(svc.Engine, svc.Deployments, info.Version)

			// ServeStdio returns when stdin closes or on SIGINT/SIGTERM
			done := make(chan error, 1)
			go func() {
				done <- mcpServer.Start()
			}()

			select {
			case err := <-done:
				if err != nil {
					return fmt.Errorf("MCP server stopped: %w", err)
				}
			case <-ctx.Done():
			}
			log.Info("shutting down servers")
			return nil
		},
	}

	cmd.Flags().BoolVar(&withAPI, "api", false, "also serve the HTTP API")

	return cmd
}
