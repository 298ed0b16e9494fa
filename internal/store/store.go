package store

import (
	"context"
	"time"

	"github.com/joescharf/nsreview/internal/models"
)

// RunSummary is one row of run history with its action and error totals.
type RunSummary struct {
	ID            string
	StartedAt     time.Time
	FinishedAt    time.Time
	DryRun        bool
	TotalIssues   int
	Processed     int
	Skipped       int
	Actions       int
	FailedActions int
	Errors        int
	ArtifactsDir  string
}

// Duration returns how long the run took.
func (r *RunSummary) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Store defines the run-history persistence interface. It is a reporting
// ledger only; review phases are always recomputed from live signals.
type Store interface {
	SaveRun(ctx context.Context, report *models.RunReport) error
	GetRun(ctx context.Context, id string) (*models.RunReport, error)
	ListRuns(ctx context.Context, limit int) ([]*RunSummary, error)
	ListIssueActions(ctx context.Context, repo string, number, limit int) ([]models.IssueAction, error)
	PruneRuns(ctx context.Context, keep int) (int64, error)

	Migrate(ctx context.Context) error
	Close() error
}
