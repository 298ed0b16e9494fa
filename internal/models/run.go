package models

import "time"

// IssueAction records one side effect attempted for one issue during a run.
type IssueAction struct {
	IssueNumber int       `json:"issueNumber"`
	Repo        string    `json:"repo"`
	Phase       Phase     `json:"phase"`
	Action      string    `json:"action"`
	Success     bool      `json:"success"`
	Error       string    `json:"error,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	DryRun      bool      `json:"dryRun"`
}

// ProcessingError records an issue whose processing was aborted by an
// unexpected failure.
type ProcessingError struct {
	IssueNumber int       `json:"issueNumber"`
	Repo        string    `json:"repo"`
	Phase       Phase     `json:"phase,omitempty"`
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
}

// RunReport aggregates a single workflow execution.
type RunReport struct {
	ID          string            `json:"id"`
	StartedAt   time.Time         `json:"startedAt"`
	FinishedAt  time.Time         `json:"finishedAt"`
	DryRun      bool              `json:"dryRun"`
	TotalIssues int               `json:"totalIssues"`
	PhaseCounts map[Phase]int     `json:"phaseCounts"`
	Processed   int               `json:"processed"`
	Skipped     int               `json:"skipped"`
	Actions     []IssueAction     `json:"actions"`
	Errors      []ProcessingError `json:"errors"`

	// Issues is filled by the engine for artifacts; run history does not keep it.
	Issues       []EnrichedIssue `json:"issues,omitempty"`
	ArtifactsDir string          `json:"artifactsDir,omitempty"`
}

// FailedActions returns the number of actions that did not succeed.
func (r *RunReport) FailedActions() int {
	n := 0
	for _, a := range r.Actions {
		if !a.Success {
			n++
		}
	}
	return n
}

// Signals are the live external inputs phase detection is computed from.
type Signals struct {
	ReviewerAssigned   bool   `json:"reviewerAssigned"`
	Approved           bool   `json:"approved"`
	BoardStatus        string `json:"boardStatus,omitempty"`
	ReviewPeriodPassed bool   `json:"reviewPeriodPassed"`
	HasObjections      bool   `json:"hasObjections"`
}

// EnrichedIssue is an issue plus everything the run learned about it.
// It is written to the run artifacts for inspection.
type EnrichedIssue struct {
	Issue         Issue             `json:"issue"`
	Phase         Phase             `json:"phase"`
	Signals       Signals           `json:"signals"`
	Valid         *bool             `json:"valid,omitempty"`
	Namespaces    map[string]string `json:"namespaces,omitempty"`
	CanonicalName string            `json:"canonicalName,omitempty"`
	ThreadSentAt  *time.Time        `json:"threadSentAt,omitempty"`
	Deadline      *time.Time        `json:"deadline,omitempty"`
}
