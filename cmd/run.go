package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/nsreview/internal/artifacts"
	"github.com/joescharf/nsreview/internal/bizdays"
	"github.com/joescharf/nsreview/internal/github"
	"github.com/joescharf/nsreview/internal/graph"
	"github.com/joescharf/nsreview/internal/llm"
	"github.com/joescharf/nsreview/internal/lock"
	"github.com/joescharf/nsreview/internal/models"
	"github.com/joescharf/nsreview/internal/namespace"
	"github.com/joescharf/nsreview/internal/output"
	"github.com/joescharf/nsreview/internal/store"
	"github.com/joescharf/nsreview/internal/workflow"
)

var (
	runIssue     int
	runNoHistory bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the review workflow once over all open review issues",
	Long: `Run the namespace review workflow once.

Every open issue carrying the review label is classified into its phase
from live signals and that phase's actions are performed. With --dry-run
nothing is changed on GitHub, the project board or in mail; the actions
that would have been taken are still recorded.

Artifacts are written to a timestamped directory under output_dir and the
run is saved to history.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRun()
	},
}

func init() {
	runCmd.Flags().IntVar(&runIssue, "issue", 0, "Process only this issue number")
	runCmd.Flags().BoolVar(&runNoHistory, "no-history", false, "Do not record the run in history")
	rootCmd.AddCommand(runCmd)
}

func runRun() error {
	cfg := workflowConfig()
	if err := cfg.Validate(); err != nil {
		return err
	}
	projectNumber := viper.GetInt("project.number")
	if projectNumber <= 0 {
		return fmt.Errorf("missing required config: project.number")
	}
	if err := github.CheckInstalled(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	l := lock.New(filepath.Join(viper.GetString("state_dir"), "run.lock"))
	if err := l.Acquire(); err != nil {
		return err
	}
	defer func() {
		if err := l.Release(); err != nil {
			ui.Warning("Release run lock: %v", err)
		}
	}()

	engine, gh, err := buildEngine(ctx, cfg, projectNumber)
	if err != nil {
		return err
	}

	var report *models.RunReport
	if runIssue > 0 {
		issue, err := gh.ViewIssue(ctx, cfg.Repo, runIssue)
		if err != nil {
			return fmt.Errorf("view issue #%d: %w", runIssue, err)
		}
		report = engine.RunIssues(ctx, []models.Issue{*issue})
	} else {
		report, err = engine.Run(ctx)
		if err != nil {
			return err
		}
	}

	var s store.Store
	if !runNoHistory {
		if s, err = getStore(); err != nil {
			ui.Warning("Run history unavailable: %v", err)
			s = nil
		}
	}
	w := &artifacts.Writer{Root: viper.GetString("output_dir")}
	finishRun(ctx, report, w, s, viper.GetInt("history.keep"))

	return runError(report)
}

// runError reports processing errors as a failed run, pointing at the
// errors artifact when one was written.
func runError(report *models.RunReport) error {
	if len(report.Errors) == 0 {
		return nil
	}
	if report.ArtifactsDir == "" {
		return fmt.Errorf("%d issue(s) failed", len(report.Errors))
	}
	return fmt.Errorf("%d issue(s) failed; see %s", len(report.Errors), filepath.Join(report.ArtifactsDir, artifacts.ErrorsFile))
}

// buildEngine wires the engine to GitHub, the project board and the optional
// Graph and Anthropic collaborators.
func buildEngine(ctx context.Context, cfg workflow.Config, projectNumber int) (*workflow.Engine, *github.Client, error) {
	gh := github.NewClient(github.RealRunner{}, ui)

	owner := viper.GetString("project.owner")
	if owner == "" {
		o, _, err := github.SplitRepo(cfg.Repo)
		if err != nil {
			return nil, nil, err
		}
		owner = o
	}
	board := github.NewProjectBoard(gh, owner, projectNumber, viper.GetString("project.status_field"))

	validator := namespace.NewValidator(viper.GetString("review.spec_link"))
	engine := workflow.NewEngine(cfg, gh, board, validator, ui)
	engine.SetCalendar(bizdays.Default())

	if gcfg := graphConfig(); gcfg.Configured() {
		gc, err := graph.New(ctx, gcfg, ui)
		if err != nil {
			return nil, nil, fmt.Errorf("graph client: %w", err)
		}
		engine.Notifier = gc
	} else {
		ui.Warning("Graph notifier not configured; notifications and thread tracking are disabled")
	}

	if key := viper.GetString("anthropic.api_key"); key != "" {
		engine.Summarizer = llm.NewClient(key, viper.GetString("anthropic.model"))
	}
	return engine, gh, nil
}

// finishRun assigns the run ID, writes artifacts, records history and prints
// the summary. Artifact and history failures are reported but do not fail
// the run, since the actions have already happened.
func finishRun(ctx context.Context, report *models.RunReport, w *artifacts.Writer, s store.Store, keep int) {
	report.ID = store.NewRunID(report.StartedAt)

	dir, err := w.Write(report, report.Issues)
	if err != nil {
		ui.Warning("Write artifacts: %v", err)
	} else {
		report.ArtifactsDir = dir
	}

	if s != nil {
		if err := s.SaveRun(ctx, report); err != nil {
			ui.Warning("Save run history: %v", err)
		} else if keep > 0 {
			n, err := s.PruneRuns(ctx, keep)
			if err != nil {
				ui.Warning("Prune run history: %v", err)
			} else if n > 0 {
				ui.VerboseLog("Pruned %d old run(s)", n)
			}
		}
	}

	printRunSummary(report)
}

func printRunSummary(report *models.RunReport) {
	fmt.Fprintln(ui.Out)
	table := ui.Table([]string{"Phase", "Issues"})
	for _, p := range models.Phases {
		_ = table.Append([]string{output.PhaseColor(p), strconv.Itoa(report.PhaseCounts[p])})
	}
	_ = table.Render()

	if len(report.Actions) > 0 {
		fmt.Fprintln(ui.Out)
		actions := ui.Table([]string{"Issue", "Phase", "Action", "Result"})
		for _, a := range report.Actions {
			result := output.ResultColor(a.Success)
			switch {
			case !a.Success:
				result += ": " + a.Error
			case a.DryRun:
				result = output.Yellow("dry-run")
			}
			_ = actions.Append([]string{"#" + strconv.Itoa(a.IssueNumber), a.Phase.Label(), a.Action, result})
		}
		_ = actions.Render()
	}

	fmt.Fprintln(ui.Out)
	summary := fmt.Sprintf("Run %s: %d issue(s), %d processed, %d skipped, %d action(s), %d failed, %d error(s)",
		shortID(report.ID), report.TotalIssues, report.Processed, report.Skipped,
		len(report.Actions), report.FailedActions(), len(report.Errors))
	if len(report.Errors) > 0 || report.FailedActions() > 0 {
		ui.Warning("%s", summary)
	} else {
		ui.Success("%s", summary)
	}
	if report.ArtifactsDir != "" {
		ui.Info("Artifacts: %s", report.ArtifactsDir)
	}
	if report.DryRun {
		ui.DryRunMsg("No changes were made")
	}
}
