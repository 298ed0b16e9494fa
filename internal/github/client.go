package github

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/joescharf/nsreview/internal/models"
	"github.com/joescharf/nsreview/internal/output"
)

// Client wraps the gh CLI for issue operations. Mutating calls are
// suppressed when the UI is in dry-run mode.
type Client struct {
	runner  Runner
	ui      *output.UI
	limiter *rate.Limiter
}

// NewClient returns a Client that runs gh through runner, pacing calls to
// stay clear of GitHub's secondary rate limits.
func NewClient(runner Runner, ui *output.UI) *Client {
	return &Client{
		runner:  runner,
		ui:      ui,
		limiter: rate.NewLimiter(rate.Every(250*time.Millisecond), 4),
	}
}

// CheckInstalled verifies the gh binary is on PATH.
func CheckInstalled() error {
	if _, err := exec.LookPath("gh"); err != nil {
		return fmt.Errorf("gh CLI not found in PATH")
	}
	return nil
}

func (c *Client) run(ctx context.Context, args []string, stdin []byte) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	c.ui.VerboseLog("gh %s", strings.Join(redactArgs(args), " "))
	return c.runner.Run(ctx, args, stdin)
}

func (c *Client) dryRun(format string, a ...any) bool {
	if c.ui.DryRun {
		c.ui.DryRunMsg(format, a...)
		return true
	}
	return false
}

type userRef struct {
	Login string `json:"login"`
}

type labelRef struct {
	Name string `json:"name"`
}

type issueRaw struct {
	Number    int        `json:"number"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	URL       string     `json:"url"`
	State     string     `json:"state"`
	Author    userRef    `json:"author"`
	Assignees []userRef  `json:"assignees"`
	Labels    []labelRef `json:"labels"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

const issueFields = "number,title,body,url,state,author,assignees,labels,createdAt,updatedAt"

func (r issueRaw) toModel(repo string) models.Issue {
	issue := models.Issue{
		Number:    r.Number,
		Title:     r.Title,
		Body:      r.Body,
		URL:       r.URL,
		State:     models.IssueState(strings.ToLower(r.State)),
		Author:    r.Author.Login,
		Repo:      repo,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	for _, a := range r.Assignees {
		issue.Assignees = append(issue.Assignees, a.Login)
	}
	for _, l := range r.Labels {
		issue.Labels = append(issue.Labels, l.Name)
	}
	return issue
}

// ListOpenIssues returns the open issues in repo carrying label.
func (c *Client) ListOpenIssues(ctx context.Context, repo, label string, limit int) ([]models.Issue, error) {
	if limit <= 0 {
		limit = 100
	}
	out, err := c.run(ctx, []string{"issue", "list",
		"--repo", repo,
		"--label", label,
		"--state", "open",
		"--limit", strconv.Itoa(limit),
		"--json", issueFields,
	}, nil)
	if err != nil {
		return nil, err
	}

	var raw []issueRaw
	if err := json.Unmarshal(out, &raw); err != nil {
		return nil, fmt.Errorf("parse issues: %w", err)
	}
	issues := make([]models.Issue, 0, len(raw))
	for _, r := range raw {
		issues = append(issues, r.toModel(repo))
	}
	return issues, nil
}

// ViewIssue fetches a single issue.
func (c *Client) ViewIssue(ctx context.Context, repo string, number int) (*models.Issue, error) {
	out, err := c.run(ctx, []string{"issue", "view", strconv.Itoa(number),
		"--repo", repo,
		"--json", issueFields,
	}, nil)
	if err != nil {
		return nil, err
	}

	var raw issueRaw
	if err := json.Unmarshal(out, &raw); err != nil {
		return nil, fmt.Errorf("parse issue: %w", err)
	}
	issue := raw.toModel(repo)
	return &issue, nil
}

// Comments returns the comments on an issue, oldest first.
func (c *Client) Comments(ctx context.Context, repo string, number int) ([]models.Comment, error) {
	out, err := c.run(ctx, []string{"issue", "view", strconv.Itoa(number),
		"--repo", repo,
		"--json", "comments",
	}, nil)
	if err != nil {
		return nil, err
	}

	var raw struct {
		Comments []struct {
			Author    userRef   `json:"author"`
			Body      string    `json:"body"`
			CreatedAt time.Time `json:"createdAt"`
		} `json:"comments"`
	}
	if err := json.Unmarshal(out, &raw); err != nil {
		return nil, fmt.Errorf("parse comments: %w", err)
	}
	comments := make([]models.Comment, 0, len(raw.Comments))
	for _, rc := range raw.Comments {
		comments = append(comments, models.Comment{Author: rc.Author.Login, Body: rc.Body, CreatedAt: rc.CreatedAt})
	}
	return comments, nil
}

// AddComment posts body as a new comment on the issue.
func (c *Client) AddComment(ctx context.Context, repo string, number int, body string) error {
	if c.dryRun("Would comment on %s#%d (%d chars)", repo, number, len(body)) {
		return nil
	}
	_, err := c.run(ctx, []string{"issue", "comment", strconv.Itoa(number),
		"--repo", repo,
		"--body-file", "-",
	}, []byte(body))
	return err
}

// CloseIssue closes the issue as completed.
func (c *Client) CloseIssue(ctx context.Context, repo string, number int) error {
	if c.dryRun("Would close %s#%d", repo, number) {
		return nil
	}
	_, err := c.run(ctx, []string{"issue", "close", strconv.Itoa(number),
		"--repo", repo,
		"--reason", "completed",
	}, nil)
	return err
}

// AddAssignee assigns login to the issue.
func (c *Client) AddAssignee(ctx context.Context, repo string, number int, login string) error {
	if c.dryRun("Would assign %s to %s#%d", login, repo, number) {
		return nil
	}
	_, err := c.run(ctx, []string{"issue", "edit", strconv.Itoa(number),
		"--repo", repo,
		"--add-assignee", login,
	}, nil)
	return err
}

// SplitRepo parses "owner/repo" or a GitHub URL into owner and repo.
func SplitRepo(ref string) (owner, repo string, err error) {
	trimmed := strings.TrimSuffix(strings.TrimSpace(ref), ".git")
	trimmed = strings.TrimPrefix(trimmed, "https://github.com/")
	trimmed = strings.TrimPrefix(trimmed, "http://github.com/")
	trimmed = strings.TrimPrefix(trimmed, "git@github.com:")
	segments := strings.Split(trimmed, "/")
	if len(segments) < 2 || segments[0] == "" || segments[1] == "" {
		return "", "", fmt.Errorf("cannot parse owner/repo from: %s", ref)
	}
	return segments[0], segments[1], nil
}
