package github

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/nsreview/internal/models"
	"github.com/joescharf/nsreview/internal/output"
)

type call struct {
	Args  []string
	Stdin []byte
}

// recordingRunner records every gh invocation and replays Outputs in order.
// Once Outputs is exhausted it returns an empty JSON object.
type recordingRunner struct {
	Calls   []call
	Outputs [][]byte
	Err     error
}

func (r *recordingRunner) Run(ctx context.Context, args []string, stdin []byte) ([]byte, error) {
	_ = ctx
	r.Calls = append(r.Calls, call{
		Args:  append([]string(nil), args...),
		Stdin: append([]byte(nil), stdin...),
	})
	if r.Err != nil {
		return nil, r.Err
	}
	if len(r.Outputs) == 0 {
		return []byte(`{}`), nil
	}
	out := r.Outputs[0]
	r.Outputs = r.Outputs[1:]
	return out, nil
}

func (r *recordingRunner) last() call {
	return r.Calls[len(r.Calls)-1]
}

func newTestClient(runner Runner, dryRun bool) (*Client, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	ui := &output.UI{Out: buf, ErrOut: buf, DryRun: dryRun}
	return NewClient(runner, ui), buf
}

func TestListOpenIssues(t *testing.T) {
	runner := &recordingRunner{Outputs: [][]byte{[]byte(`[
		{
			"number": 12,
			"title": "Namespace review: Widgets",
			"body": "body text",
			"url": "https://github.com/acme/reviews/issues/12",
			"state": "OPEN",
			"author": {"login": "alice"},
			"assignees": [{"login": "arch"}],
			"labels": [{"name": "mgmt-namespace-review"}, {"name": "approved"}],
			"createdAt": "2026-10-01T09:00:00Z",
			"updatedAt": "2026-10-02T09:00:00Z"
		}
	]`)}}
	client, _ := newTestClient(runner, false)

	issues, err := client.ListOpenIssues(context.Background(), "acme/reviews", "mgmt-namespace-review", 50)
	require.NoError(t, err)
	require.Len(t, issues, 1)

	got := issues[0]
	assert.Equal(t, 12, got.Number)
	assert.Equal(t, "alice", got.Author)
	assert.Equal(t, models.IssueStateOpen, got.State)
	assert.Equal(t, []string{"arch"}, got.Assignees)
	assert.True(t, got.HasLabel("APPROVED"))
	assert.Equal(t, "acme/reviews", got.Repo)
	assert.Equal(t, time.Date(2026, time.October, 1, 9, 0, 0, 0, time.UTC), got.CreatedAt)

	assert.Equal(t, []string{"issue", "list",
		"--repo", "acme/reviews",
		"--label", "mgmt-namespace-review",
		"--state", "open",
		"--limit", "50",
		"--json", issueFields,
	}, runner.last().Args)
}

func TestListOpenIssues_DefaultLimit(t *testing.T) {
	runner := &recordingRunner{Outputs: [][]byte{[]byte(`[]`)}}
	client, _ := newTestClient(runner, false)

	issues, err := client.ListOpenIssues(context.Background(), "acme/reviews", "x", 0)
	require.NoError(t, err)
	assert.Empty(t, issues)
	assert.Contains(t, runner.last().Args, "100")
}

func TestListOpenIssues_RunnerError(t *testing.T) {
	runner := &recordingRunner{Err: errors.New("gh issue list: HTTP 401")}
	client, _ := newTestClient(runner, false)

	_, err := client.ListOpenIssues(context.Background(), "acme/reviews", "x", 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestListOpenIssues_BadJSON(t *testing.T) {
	runner := &recordingRunner{Outputs: [][]byte{[]byte(`not json`)}}
	client, _ := newTestClient(runner, false)

	_, err := client.ListOpenIssues(context.Background(), "acme/reviews", "x", 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse issues")
}

func TestComments(t *testing.T) {
	runner := &recordingRunner{Outputs: [][]byte{[]byte(`{"comments": [
		{"author": {"login": "arch"}, "body": "LGTM", "createdAt": "2026-10-03T10:00:00Z"},
		{"author": {"login": "alice"}, "body": "thanks", "createdAt": "2026-10-03T11:00:00Z"}
	]}`)}}
	client, _ := newTestClient(runner, false)

	comments, err := client.Comments(context.Background(), "acme/reviews", 12)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, "arch", comments[0].Author)
	assert.Equal(t, "LGTM", comments[0].Body)
	assert.Equal(t, []string{"issue", "view", "12", "--repo", "acme/reviews", "--json", "comments"}, runner.last().Args)
}

func TestAddComment_BodyOnStdin(t *testing.T) {
	runner := &recordingRunner{}
	client, _ := newTestClient(runner, false)

	require.NoError(t, client.AddComment(context.Background(), "acme/reviews", 7, "hello **world**"))
	got := runner.last()
	assert.Equal(t, []string{"issue", "comment", "7", "--repo", "acme/reviews", "--body-file", "-"}, got.Args)
	assert.Equal(t, "hello **world**", string(got.Stdin))
}

func TestCloseIssue(t *testing.T) {
	runner := &recordingRunner{}
	client, _ := newTestClient(runner, false)

	require.NoError(t, client.CloseIssue(context.Background(), "acme/reviews", 7))
	assert.Equal(t, []string{"issue", "close", "7", "--repo", "acme/reviews", "--reason", "completed"}, runner.last().Args)
}

func TestAddAssignee(t *testing.T) {
	runner := &recordingRunner{}
	client, _ := newTestClient(runner, false)

	require.NoError(t, client.AddAssignee(context.Background(), "acme/reviews", 7, "arch"))
	assert.Equal(t, []string{"issue", "edit", "7", "--repo", "acme/reviews", "--add-assignee", "arch"}, runner.last().Args)
}

func TestMutations_DryRun(t *testing.T) {
	runner := &recordingRunner{}
	client, buf := newTestClient(runner, true)
	ctx := context.Background()

	require.NoError(t, client.AddComment(ctx, "acme/reviews", 7, "hi"))
	require.NoError(t, client.CloseIssue(ctx, "acme/reviews", 7))
	require.NoError(t, client.AddAssignee(ctx, "acme/reviews", 7, "arch"))

	assert.Empty(t, runner.Calls)
	assert.Contains(t, buf.String(), "Would comment on acme/reviews#7")
	assert.Contains(t, buf.String(), "Would close acme/reviews#7")
	assert.Contains(t, buf.String(), "Would assign arch to acme/reviews#7")
}

func TestReads_RunInDryRun(t *testing.T) {
	runner := &recordingRunner{Outputs: [][]byte{[]byte(`[]`)}}
	client, _ := newTestClient(runner, true)

	_, err := client.ListOpenIssues(context.Background(), "acme/reviews", "x", 10)
	require.NoError(t, err)
	assert.Len(t, runner.Calls, 1)
}

func TestSplitRepo(t *testing.T) {
	tests := []struct {
		in        string
		wantOwner string
		wantRepo  string
		wantErr   bool
	}{
		{"acme/reviews", "acme", "reviews", false},
		{"https://github.com/acme/reviews", "acme", "reviews", false},
		{"https://github.com/acme/reviews.git", "acme", "reviews", false},
		{"git@github.com:acme/reviews.git", "acme", "reviews", false},
		{"acme", "", "", true},
		{"", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			owner, repo, err := SplitRepo(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantOwner, owner)
			assert.Equal(t, tt.wantRepo, repo)
		})
	}
}

func TestRedactArgs(t *testing.T) {
	long := "query=" + string(bytes.Repeat([]byte("x"), 100))
	got := redactArgs([]string{"api", "graphql", "-f", long})
	assert.Equal(t, "api", got[0])
	assert.Len(t, got[3], 63)
	assert.True(t, len(long) > len(got[3]))
}
