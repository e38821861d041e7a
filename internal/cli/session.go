package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/rxtech-lab/auditsmart/internal/logger"
	"github.com/rxtech-lab/auditsmart/internal/models"
	"github.com/rxtech-lab/auditsmart/internal/server"
	"github.com/rxtech-lab/auditsmart/internal/services"
	"github.com/rxtech-lab/auditsmart/internal/workflow"
	"github.com/spf13/cobra"
)

// sessionStatus is the JSON output of the status command
type sessionStatus struct {
	SessionID string            `json:"session_id"`
	Stage     workflow.Stage    `json:"stage"`
	Keys      map[string]string `json:"keys"`
}

// openStore opens the configured database for the offline commands
func openStore() (services.DBService, services.SessionStore, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	db, err := server.OpenDatabase(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return db, services.NewSessionStore(db.GetDB(), nil, logger.Discard()), nil
}

func createStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the current audit session",
		Long: `Show the current session id, the stage derived from its stored results and the
stored session keys.

EXAMPLES:
  auditsmart status
  auditsmart status --json
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, store, err := openStore()
			if err != nil {
				return err
			}
			defer db.Close()

			sessionID, err := store.CurrentSessionID()
			if err != nil {
				return err
			}
			stored, err := store.Load(sessionID)
			if err != nil {
				return err
			}

			status := sessionStatus{
				SessionID: sessionID,
				Stage:     workflow.StoredStage(stored),
				Keys:      make(map[string]string, len(stored)),
			}
			for field, value := range stored {
				status.Keys[models.StorageKey(sessionID, field)] = value
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				encoder := json.NewEncoder(out)
				encoder.SetIndent("", "  ")
				return encoder.Encode(status)
			}

			fmt.Fprintf(out, "Session: %s\n", status.SessionID)
			fmt.Fprintf(out, "Stage:   %s\n\n", status.Stage)
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			for _, field := range models.SessionFields {
				value, ok := stored[field]
				detail := "-"
				if ok {
					detail = strconv.Itoa(len(value)) + " bytes"
				}
				fmt.Fprintf(w, "%s\t%s\n", models.StorageKey(sessionID, field), detail)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	return cmd
}

func createSessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List every session with stored results",
		Long: `List the sessions that still hold stored fields, with the stage derived from
them. The current session is marked with an asterisk.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, store, err := openStore()
			if err != nil {
				return err
			}
			defer db.Close()

			current, err := store.CurrentSessionID()
			if err != nil {
				return err
			}
			ids, err := store.ListSessions()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(ids) == 0 {
				fmt.Fprintln(out, "No stored sessions")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "\tSESSION\tSTAGE\tFIELDS")
			for _, id := range ids {
				stored, err := store.Load(id)
				if err != nil {
					return err
				}
				mark := ""
				if id == current {
					mark = "*"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", mark, id, workflow.StoredStage(stored), len(stored))
			}
			return w.Flush()
		},
	}
}

func createResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Discard the source and every result of the current session",
		Long: `Remove every stored field of the current session. The session id and the
deployment history are kept.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, store, err := openStore()
			if err != nil {
				return err
			}
			defer db.Close()

			sessionID, err := store.CurrentSessionID()
			if err != nil {
				return err
			}
			if err := store.Clear(sessionID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Session %s reset\n", sessionID)
			return nil
		},
	}
}

func createDeploymentsCmd() *cobra.Command {
	var (
		sessionID  string
		page       int
		limit      int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "deployments",
		Short: "List contracts deployed through the workflow",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, _, err := openStore()
			if err != nil {
				return err
			}
			defer db.Close()

			pagination := services.NewPagination(page, limit, 0)
			deployments, total, err := services.NewDeploymentService(db.GetDB()).ListDeployments(services.DeploymentFilter{
				SessionID: sessionID,
				Offset:    pagination.Offset(),
				Limit:     pagination.PageSize,
			})
			if err != nil {
				return fmt.Errorf("error retrieving deployments: %w", err)
			}

			result := services.NewPagination(pagination.CurrentPage, pagination.PageSize, total)

			out := cmd.OutOrStdout()
			if jsonOutput {
				if deployments == nil {
					deployments = []models.Deployment{}
				}
				encoder := json.NewEncoder(out)
				encoder.SetIndent("", "  ")
				return encoder.Encode(map[string]interface{}{
					"deployments": deployments,
					"pagination":  result,
				})
			}

			if len(deployments) == 0 {
				fmt.Fprintln(out, "No deployments found")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tCONTRACT\tADDRESS\tNETWORK\tNFT TOKEN")
			for _, d := range deployments {
				token := d.NFTTokenID
				if token == "" {
					token = "-"
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", d.ID, d.ContractName, d.ContractAddress, d.Network, token)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(out, "\nPage %d of %d (%d total)\n", result.CurrentPage, result.TotalPages, result.TotalCount)
			return nil
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "only list deployments of this session")
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&limit, "limit", services.DefaultPageSize, "deployments per page")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	return cmd
}
