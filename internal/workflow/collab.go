package workflow

import (
	"context"

	"github.com/joescharf/nsreview/internal/llm"
	"github.com/joescharf/nsreview/internal/models"
)

// IssueTracker is the issue source. Mutating calls honor dry-run inside the
// implementation.
type IssueTracker interface {
	ListOpenIssues(ctx context.Context, repo, label string, limit int) ([]models.Issue, error)
	ViewIssue(ctx context.Context, repo string, number int) (*models.Issue, error)
	Comments(ctx context.Context, repo string, number int) ([]models.Comment, error)
	AddComment(ctx context.Context, repo string, number int, body string) error
	CloseIssue(ctx context.Context, repo string, number int) error
	AddAssignee(ctx context.Context, repo string, number int, login string) error
}

// Board reads and moves an issue's status column on the project board.
type Board interface {
	Status(ctx context.Context, issueURL string) (string, error)
	SetStatus(ctx context.Context, issueURL, status string) error
}

// Notifier is the optional mail and chat side channel.
type Notifier interface {
	Sender() string
	SendDirect(ctx context.Context, upn, text string) error
	SendMail(ctx context.Context, m models.Mail) error
	SearchMail(ctx context.Context, subject string) ([]models.MailMessage, error)
	Reply(ctx context.Context, messageID, text string) error
}

// Summarizer condenses a relayed objection into a one-line digest.
type Summarizer interface {
	Summarize(ctx context.Context, canonicalName, from, objection string) (*llm.Digest, error)
}
