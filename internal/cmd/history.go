package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/harrison/playcheck/internal/config"
	"github.com/harrison/playcheck/internal/history"
	"github.com/harrison/playcheck/internal/models"
)

// NewHistoryCommand creates the history command
func NewHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List recent verification runs",
		Long: `History lists the most recent runs recorded in the history database,
newest first. Given a run id (or a unique prefix of one) it prints the
failed and faulted blocks of that run instead.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistory,
	}

	cmd.Flags().String("config", "", "Path to config file (default: .playcheck/config.yaml)")
	cmd.Flags().Int("limit", 10, "Number of runs to list")
	cmd.Flags().Bool("all", false, "With a run id, list passed and skipped blocks too")

	return cmd
}

// runHistory implements the history command logic
func runHistory(cmd *cobra.Command, args []string) error {
	cfg, root, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.History.DBPath == "" {
		return config.NewConfigError("history.db_path", "cannot be empty", nil)
	}

	dbPath := config.ResolvePath(root, cfg.History.DBPath)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Fprintf(cmd.OutOrStdout(), "No runs recorded yet (%s does not exist)\n", dbPath)
		return nil
	}

	store, err := history.NewStore(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer store.Close()

	if len(args) == 1 {
		all, _ := cmd.Flags().GetBool("all")
		return showRun(cmd, store, args[0], all)
	}

	limit, _ := cmd.Flags().GetInt("limit")
	if limit < 1 {
		return config.NewConfigError("limit", fmt.Sprintf("must be >= 1, got %d", limit), nil)
	}
	runs, err := store.RecentRuns(cmd.Context(), limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded yet")
		return nil
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tADAPTER\tDOCS\tPASSED\tFAILED\tSKIPPED\tFAULTS\tRESULT")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\t%s\n",
			r.ID[:8], r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.Adapter, r.Documents,
			r.Totals.Passed, r.Totals.Failed, r.Totals.Skipped, r.Totals.Faults, runResult(r))
	}
	return tw.Flush()
}

func runResult(r history.RunRecord) string {
	switch {
	case r.Canceled:
		return "canceled"
	case r.OK:
		return "ok"
	default:
		return "failed"
	}
}

// showRun prints the results of one run.
func showRun(cmd *cobra.Command, store *history.Store, runID string, all bool) error {
	results, err := store.RunResults(cmd.Context(), runID)
	if err != nil {
		return config.NewConfigError("run-id", "unknown run", err)
	}

	var sb strings.Builder
	shown := 0
	for _, r := range results {
		if !all && r.Status != models.StatusFailed && r.Status != models.StatusFault {
			continue
		}
		shown++
		fmt.Fprintf(&sb, "%-7s %s %s (lines %s)\n", r.Status, r.Document, r.BlockID, r.Lines)
		switch {
		case r.Diff != "":
			for _, line := range strings.Split(strings.TrimRight(r.Diff, "\n"), "\n") {
				fmt.Fprintf(&sb, "        %s\n", line)
			}
		case r.FaultKind != "":
			fmt.Fprintf(&sb, "        %s: %s\n", r.FaultKind, r.FaultMessage)
		}
	}
	if shown == 0 {
		sb.WriteString("No failed blocks in this run\n")
	}

	_, err = fmt.Fprint(cmd.OutOrStdout(), sb.String())
	return err
}
