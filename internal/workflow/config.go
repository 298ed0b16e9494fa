package workflow

import (
	"fmt"
	"strings"

	"github.com/joescharf/nsreview/internal/bizdays"
)

// Defaults for Config fields left empty.
const (
	DefaultLabel            = "mgmt-namespace-review"
	DefaultApprovedLabel    = "approved"
	DefaultInProgressStatus = "In Progress"
	DefaultWatchStatus      = "Watch"
	DefaultSubjectPrefix    = "[Namespace Review]"
	DefaultIssueLimit       = 100
)

// DefaultApprovalPhrases start a reviewer comment that counts as approval.
var DefaultApprovalPhrases = []string{"approved", "lgtm"}

// Config holds the workflow settings for one repository.
type Config struct {
	Repo            string
	Label           string
	IssueLimit      int
	Reviewer        string // GitHub login of the designated reviewer
	ApprovedLabel   string
	ApprovalPhrases []string

	InProgressStatus string
	WatchStatus      string

	ReviewDays    int
	SubjectPrefix string

	NotifyUPN string // receives the direct message when a review starts
	MailTo    []string
	MailCC    []string

	DryRun bool
}

// withDefaults returns c with empty fields filled in.
func (c Config) withDefaults() Config {
	if c.Label == "" {
		c.Label = DefaultLabel
	}
	if c.IssueLimit <= 0 {
		c.IssueLimit = DefaultIssueLimit
	}
	if c.ApprovedLabel == "" {
		c.ApprovedLabel = DefaultApprovedLabel
	}
	if len(c.ApprovalPhrases) == 0 {
		c.ApprovalPhrases = DefaultApprovalPhrases
	}
	if c.InProgressStatus == "" {
		c.InProgressStatus = DefaultInProgressStatus
	}
	if c.WatchStatus == "" {
		c.WatchStatus = DefaultWatchStatus
	}
	if c.ReviewDays <= 0 {
		c.ReviewDays = bizdays.DefaultReviewDays
	}
	if c.SubjectPrefix == "" {
		c.SubjectPrefix = DefaultSubjectPrefix
	}
	return c
}

// Validate reports configuration that makes a run impossible.
func (c Config) Validate() error {
	var missing []string
	if c.Repo == "" {
		missing = append(missing, "github.repo")
	}
	if c.Reviewer == "" {
		missing = append(missing, "github.reviewer")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}
	if c.ReviewDays > bizdays.MaxDays {
		return fmt.Errorf("review.days must be at most %d", bizdays.MaxDays)
	}
	return nil
}

// Subject returns the mail subject line tracking the review of canonicalName.
func (c Config) Subject(canonicalName string) string {
	prefix := c.SubjectPrefix
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return strings.TrimSpace(prefix + " " + canonicalName)
}
