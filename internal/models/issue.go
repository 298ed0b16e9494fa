package models

import (
	"fmt"
	"strings"
	"time"
)

// IssueState represents the open/closed state of a review issue.
type IssueState string

const (
	IssueStateOpen   IssueState = "open"
	IssueStateClosed IssueState = "closed"
)

// Issue is a namespace review request tracked as a GitHub issue.
// The review workflow never mutates it directly; changes go through the tracker.
type Issue struct {
	Number    int        `json:"number"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	URL       string     `json:"url"`
	State     IssueState `json:"state"`
	Author    string     `json:"author"`
	Assignees []string   `json:"assignees"`
	Labels    []string   `json:"labels"`
	Repo      string     `json:"repo"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// HasAssignee reports whether login is among the issue's assignees (case-insensitive).
func (i *Issue) HasAssignee(login string) bool {
	return containsFold(i.Assignees, login)
}

// HasLabel reports whether the issue carries the named label (case-insensitive).
func (i *Issue) HasLabel(name string) bool {
	return containsFold(i.Labels, name)
}

// Ref returns the "owner/repo#N" form used in log lines.
func (i *Issue) Ref() string {
	return fmt.Sprintf("%s#%d", i.Repo, i.Number)
}

// Comment is a single issue comment.
type Comment struct {
	Author    string    `json:"author"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

func containsFold(list []string, s string) bool {
	if s == "" {
		return false
	}
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
