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

func createServeCmd(info BuildInfo) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and the MCP tools over streamable HTTP",
		Long: `Start the local HTTP API on the configured port. The MCP tools are served on /mcp
and Prometheus metrics on /metrics when METRICS_ENABLED is set.

When AUTO_APPROVE is off every wallet connection and signature is confirmed on
this terminal.

EXAMPLES:
  # Serve on a fixed port
  auditsmart serve --port 8080

  # Confirm each transaction interactively
  AUTO_APPROVE=false auditsmart serve
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}

			log, closeLog, err := setupLogger(cfg, false, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closeLog()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			svc, err := server.InitializeServices(ctx, cfg, log,
				server.WithApprover(terminalApprover(cmd.InOrStdin(), cmd.ErrOrStderr())))
			if err != nil {
				return err
			}
			defer svc.Close()

			apiServer := api.NewAPIServer(svc.Engine, svc.Deployments,
				api.WithNetworkReporter(svc.Wallet),
				api.WithLogger(log),
				api.WithRequestLog(),
			)
			apiServer.SetupRoutes()
			mcpServer := mcp.NewMCPServer(svc.Engine, svc.Deployments, info.Version)
			apiServer.EnableStreamableHttp(mcpServer.GetServer())

			listenPort, err := apiServer.Start(&cfg.Server.Port)
			if err != nil {
				return fmt.Errorf("failed to start API server: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "AuditSmart API listening on http://localhost:%d (session %s)\n", listenPort, svc.Engine.SessionID())

			<-ctx.Done()
			log.Info("shutting down servers")
			if err := apiServer.Shutdown(); err != nil {
				return fmt.Errorf("error shutting down API server: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "HTTP port (default from PORT, 0 picks a free port)")

	return cmd
}
