package cli

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"

	"github.com/rxtech-lab/auditsmart/internal/config"
	"github.com/rxtech-lab/auditsmart/internal/logger"
	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	logFile  string
	logLevel string
)

// BuildInfo is set via ldflags in cmd
type BuildInfo struct {
	Version    string
	CommitHash string
	BuildTime  string
}

// NewRootCmd builds the auditsmart command tree
func NewRootCmd(info BuildInfo) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "auditsmart",
		Short: "Audit, deploy and mint Solidity contracts",
		Long: `AuditSmart audits a Solidity contract with the remote audit service, compiles the
fixed code, deploys it through the configured wallet and mints a commemorative NFT.

The workflow is driven through a local HTTP API (serve) or as MCP tools (stdio).`,
		Version:       info.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: "+config.DefaultFile+" if present)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log", "", "write logs to this file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error")

	// Add subcommands
	rootCmd.AddCommand(createServeCmd(info))
	rootCmd.AddCommand(createStdioCmd(info))
	rootCmd.AddCommand(createStatusCmd())
	rootCmd.AddCommand(createSessionsCmd())
	rootCmd.AddCommand(createResetCmd())
	rootCmd.AddCommand(createDeploymentsCmd())
	rootCmd.AddCommand(createVersionCmd(info))

	return rootCmd
}

// Execute runs the CLI
func Execute(info BuildInfo) error {
	return NewRootCmd(info).Execute()
}

// loadConfig reads the configuration and applies the global flags over it
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if logFile != "" {
		cfg.Logging.File = logFile
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	return cfg, cfg.Validate()
}

// setupLogger installs the global logger. In stdio mode stdout and stdin
// carry MCP frames, so logs go to the log file or nowhere.
func setupLogger(cfg *config.Config, stdio bool, stderr io.Writer) (*slog.Logger, func(), error) {
	var output io.Writer = stderr
	closeLog := func() {}

	if cfg.Logging.File != "" {
		file, err := os.OpenFile(cfg.Logging.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		output = file
		closeLog = func() { _ = file.Close() }
	} else if stdio {
		output = io.Discard
	}

	log.SetOutput(output)
	l := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: output,
	})
	return l, closeLog, nil
}

func createVersionCmd(info BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "AuditSmart MCP Server\n")
			fmt.Fprintf(out, "Version: %s\n", info.Version)
			fmt.Fprintf(out, "Commit: %s\n", info.CommitHash)
			fmt.Fprintf(out, "Built: %s\n", info.BuildTime)
		},
	}
}
