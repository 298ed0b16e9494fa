// Package artifacts writes the per-run inspection files: the enriched issues,
// actions and errors as JSON plus a Markdown summary.
package artifacts

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joescharf/nsreview/internal/bizdays"
	"github.com/joescharf/nsreview/internal/models"
)

// DirLayout names a run's artifact directory after its start time.
const DirLayout = "2006-01-02T15-04-05"

// File names inside a run directory.
const (
	IssuesFile  = "issues.json"
	ActionsFile = "actions.json"
	ErrorsFile  = "errors.json"
	SummaryFile = "summary.md"
)

// Writer writes run artifacts below Root.
type Writer struct {
	Root string
}

// Dir returns the artifact directory for a run that started at report.StartedAt.
func (w *Writer) Dir(report *models.RunReport) string {
	return filepath.Join(w.Root, report.StartedAt.UTC().Format(DirLayout))
}

// Write creates the run directory and writes every artifact into it. It
// returns the directory path.
func (w *Writer) Write(report *models.RunReport, issues []models.EnrichedIssue) (string, error) {
	dir := w.Dir(report)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create artifacts directory: %w", err)
	}

	if issues == nil {
		issues = []models.EnrichedIssue{}
	}
	actions := report.Actions
	if actions == nil {
		actions = []models.IssueAction{}
	}
	errs := report.Errors
	if errs == nil {
		errs = []models.ProcessingError{}
	}

	if err := writeJSON(filepath.Join(dir, IssuesFile), issues); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(dir, ActionsFile), actions); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(dir, ErrorsFile), errs); err != nil {
		return "", err
	}

	f, err := os.Create(filepath.Join(dir, SummaryFile))
	if err != nil {
		return "", fmt.Errorf("create summary: %w", err)
	}
	defer func() { _ = f.Close() }()
	if err := RenderSummary(f, report, issues); err != nil {
		return "", fmt.Errorf("write summary: %w", err)
	}
	return dir, f.Close()
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}

// cell makes s safe inside a Markdown table cell.
func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	s = strings.ReplaceAll(s, "\r", "")
	return strings.ReplaceAll(s, "\n", " ")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// RenderSummary writes the Markdown run summary. issues may be nil when only
// the stored report is available.
func RenderSummary(w io.Writer, report *models.RunReport, issues []models.EnrichedIssue) error {
	var sb strings.Builder

	title := "# Namespace Review Run"
	if report.ID != "" {
		title += " " + report.ID
	}
	sb.WriteString(title + "\n\n")
	if report.DryRun {
		sb.WriteString("> Dry run: no changes were made.\n\n")
	}
	fmt.Fprintf(&sb, "- Started: %s\n", report.StartedAt.UTC().Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&sb, "- Finished: %s\n", report.FinishedAt.UTC().Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&sb, "- Issues: %d total, %d processed, %d skipped\n", report.TotalIssues, report.Processed, report.Skipped)
	fmt.Fprintf(&sb, "- Actions: %d (%d failed)\n", len(report.Actions), report.FailedActions())
	fmt.Fprintf(&sb, "- Errors: %d\n\n", len(report.Errors))

	sb.WriteString("## Phases\n\n")
	sb.WriteString("| Phase | Issues |\n")
	sb.WriteString("|-------|--------|\n")
	for _, p := range models.Phases {
		fmt.Fprintf(&sb, "| %s | %d |\n", p.Label(), report.PhaseCounts[p])
	}
	sb.WriteString("\n")

	if len(issues) > 0 {
		sb.WriteString("## Issues\n\n")
		sb.WriteString("| Issue | Title | Phase | Valid | Deadline |\n")
		sb.WriteString("|-------|-------|-------|-------|----------|\n")
		for _, ei := range issues {
			valid := "-"
			if ei.Valid != nil {
				valid = yesNo(*ei.Valid)
			}
			deadline := "-"
			if ei.Deadline != nil {
				deadline = bizdays.FormatDeadline(*ei.Deadline)
			}
			fmt.Fprintf(&sb, "| #%d | %s | %s | %s | %s |\n", ei.Issue.Number, cell(ei.Issue.Title), ei.Phase.Label(), valid, deadline)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Actions\n\n")
	if len(report.Actions) == 0 {
		sb.WriteString("No actions taken.\n\n")
	} else {
		sb.WriteString("| Issue | Phase | Action | Result |\n")
		sb.WriteString("|-------|-------|--------|--------|\n")
		for _, a := range report.Actions {
			result := "ok"
			if !a.Success {
				result = "failed: " + cell(a.Error)
			}
			fmt.Fprintf(&sb, "| #%d | %s | %s | %s |\n", a.IssueNumber, a.Phase.Label(), cell(a.Action), result)
		}
		sb.WriteString("\n")
	}

	if len(report.Errors) > 0 {
		sb.WriteString("## Errors\n\n")
		for _, e := range report.Errors {
			fmt.Fprintf(&sb, "- #%d: %s\n", e.IssueNumber, e.Message)
		}
		sb.WriteString("\n")
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

// WriteActionsCSV writes actions as CSV with a header row.
func WriteActionsCSV(w io.Writer, actions []models.IssueAction) error {
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"Repo", "Issue", "Phase", "Action", "Success", "Error", "DryRun", "Timestamp"})
	for _, a := range actions {
		_ = cw.Write([]string{
			a.Repo,
			strconv.Itoa(a.IssueNumber),
			string(a.Phase),
			a.Action,
			strconv.FormatBool(a.Success),
			a.Error,
			strconv.FormatBool(a.DryRun),
			a.Timestamp.UTC().Format("2006-01-02T15:04:05Z"),
		})
	}
	cw.Flush()
	return cw.Error()
}
