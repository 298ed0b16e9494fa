package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/nsreview/internal/artifacts"
	"github.com/joescharf/nsreview/internal/models"
	"github.com/joescharf/nsreview/internal/output"
	"github.com/joescharf/nsreview/internal/store"
)

var (
	historyLimit  int
	historyFormat string
	historyKeep   int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past workflow runs",
	Long: `List past workflow runs, newest first.

History is a reporting ledger only: review phases are always recomputed
from live signals and never read back from it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return historyListRun()
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one run's actions and errors",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return historyShowRun(args[0])
	},
}

var historyIssueCmd = &cobra.Command{
	Use:   "issue <number>",
	Short: "Show the actions taken on one issue across runs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := strconv.Atoi(strings.TrimPrefix(args[0], "#"))
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid issue number: %s", args[0])
		}
		return historyIssueRun(n)
	},
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete all but the newest runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		return historyPruneRun(historyKeep)
	},
}

func init() {
	historyCmd.PersistentFlags().IntVar(&historyLimit, "limit", 20, "Maximum rows to show (0 for all)")
	historyShowCmd.Flags().StringVar(&historyFormat, "format", "text", "Output format: text, json, csv, markdown")
	historyPruneCmd.Flags().IntVar(&historyKeep, "keep", 50, "Number of runs to keep")
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyIssueCmd)
	historyCmd.AddCommand(historyPruneCmd)
	rootCmd.AddCommand(historyCmd)
}

func historyListRun() error {
	s, err := getStore()
	if err != nil {
		return err
	}

	runs, err := s.ListRuns(context.Background(), historyLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		ui.Info("No runs recorded yet.")
		return nil
	}

	table := ui.Table([]string{"ID", "Started", "Duration", "Issues", "Processed", "Actions", "Failed", "Errors", "Mode"})
	for _, r := range runs {
		mode := ""
		if r.DryRun {
			mode = output.Yellow("dry-run")
		}
		failed := strconv.Itoa(r.FailedActions)
		if r.FailedActions > 0 {
			failed = output.Red(failed)
		}
		errs := strconv.Itoa(r.Errors)
		if r.Errors > 0 {
			errs = output.Red(errs)
		}
		_ = table.Append([]string{
			shortID(r.ID),
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			r.Duration().Round(100 * time.Millisecond).String(),
			strconv.Itoa(r.TotalIssues),
			strconv.Itoa(r.Processed),
			strconv.Itoa(r.Actions),
			failed,
			errs,
			mode,
		})
	}
	_ = table.Render()
	return nil
}

func historyShowRun(id string) error {
	s, err := getStore()
	if err != nil {
		return err
	}

	run, err := findRun(context.Background(), s, id)
	if err != nil {
		return err
	}

	switch historyFormat {
	case "json":
		enc := json.NewEncoder(ui.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	case "csv":
		return artifacts.WriteActionsCSV(ui.Out, run.Actions)
	case "markdown", "md":
		return artifacts.RenderSummary(ui.Out, run, nil)
	case "text":
		printRunSummary(run)
		for _, e := range run.Errors {
			ui.Error("#%d: %s", e.IssueNumber, e.Message)
		}
		return nil
	default:
		return fmt.Errorf("unknown format: %s (use: text, json, csv, markdown)", historyFormat)
	}
}

func historyIssueRun(number int) error {
	s, err := getStore()
	if err != nil {
		return err
	}

	actions, err := s.ListIssueActions(context.Background(), viper.GetString("github.repo"), number, historyLimit)
	if err != nil {
		return err
	}
	if len(actions) == 0 {
		ui.Info("No actions recorded for #%d.", number)
		return nil
	}

	table := ui.Table([]string{"When", "Phase", "Action", "Result"})
	for _, a := range actions {
		result := output.ResultColor(a.Success)
		if a.DryRun {
			result += " " + output.Yellow("(dry-run)")
		}
		_ = table.Append([]string{a.Timestamp.Local().Format("2006-01-02 15:04"), a.Phase.Label(), a.Action, result})
	}
	_ = table.Render()
	return nil
}

func historyPruneRun(keep int) error {
	if keep < 0 {
		return fmt.Errorf("--keep must not be negative")
	}
	s, err := getStore()
	if err != nil {
		return err
	}

	if dryRun {
		runs, err := s.ListRuns(context.Background(), 0)
		if err != nil {
			return err
		}
		n := len(runs) - keep
		if n < 0 {
			n = 0
		}
		ui.DryRunMsg("Would delete %d run(s), keeping the newest %d", n, keep)
		return nil
	}

	n, err := s.PruneRuns(context.Background(), keep)
	if err != nil {
		return err
	}
	ui.Success("Deleted %d run(s)", n)
	return nil
}

// findRun resolves a run by full ID or unique ID prefix.
func findRun(ctx context.Context, s store.Store, id string) (*models.RunReport, error) {
	// Try exact match first
	if run, err := s.GetRun(ctx, id); err == nil {
		return run, nil
	}

	// Try prefix match - list all and filter
	upper := strings.ToUpper(id)
	runs, err := s.ListRuns(ctx, 0)
	if err != nil {
		return nil, err
	}

	var matches []*store.RunSummary
	for _, r := range runs {
		if strings.HasPrefix(r.ID, upper) {
			matches = append(matches, r)
		}
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("run not found: %s", id)
	case 1:
		return s.GetRun(ctx, matches[0].ID)
	default:
		return nil, fmt.Errorf("ambiguous run ID %s matches %d runs", id, len(matches))
	}
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
