package github

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const issueURL = "https://github.com/acme/reviews/issues/12"

// fieldArg returns the value passed to gh as -f/-F key=value.
func fieldArg(args []string, key string) (string, bool) {
	for i := 0; i+1 < len(args); i++ {
		if args[i] != "-f" && args[i] != "-F" {
			continue
		}
		if v, ok := strings.CutPrefix(args[i+1], key+"="); ok {
			return v, true
		}
	}
	return "", false
}

const onBoard = `{"data":{"resource":{"id":"I_1","projectItems":{"nodes":[
	{"id":"PVTI_other","project":{"number":3},"fieldValueByName":{"name":"Done"}},
	{"id":"PVTI_1","project":{"number":7},"fieldValueByName":{"name":"Watch"}}
]}}}}`

const offBoard = `{"data":{"resource":{"id":"I_1","projectItems":{"nodes":[]}}}}`

const projectMetaJSON = `{"data":{"repositoryOwner":{"projectV2":{"id":"PVT_7","field":{"id":"F_status","options":[
	{"id":"opt_todo","name":"Todo"},
	{"id":"opt_progress","name":"In Progress"},
	{"id":"opt_watch","name":"Watch"}
]}}}}}`

func TestProjectStatus(t *testing.T) {
	runner := &recordingRunner{Outputs: [][]byte{[]byte(onBoard)}}
	client, _ := newTestClient(runner, false)
	board := NewProjectBoard(client, "acme", 7, "")

	status, err := board.Status(context.Background(), issueURL)
	require.NoError(t, err)
	assert.Equal(t, "Watch", status)

	args := runner.last().Args
	assert.Equal(t, []string{"api", "graphql"}, args[:2])
	url, _ := fieldArg(args, "url")
	assert.Equal(t, issueURL, url)
	field, _ := fieldArg(args, "field")
	assert.Equal(t, "Status", field)
}

func TestProjectStatus_NotOnBoard(t *testing.T) {
	runner := &recordingRunner{Outputs: [][]byte{[]byte(offBoard)}}
	client, _ := newTestClient(runner, false)
	board := NewProjectBoard(client, "acme", 7, "Status")

	status, err := board.Status(context.Background(), issueURL)
	require.NoError(t, err)
	assert.Equal(t, "", status)
}

func TestProjectStatus_GraphQLError(t *testing.T) {
	runner := &recordingRunner{Outputs: [][]byte{[]byte(`{"errors":[{"message":"Could not resolve to a node"}]}`)}}
	client, _ := newTestClient(runner, false)
	board := NewProjectBoard(client, "acme", 7, "Status")

	_, err := board.Status(context.Background(), issueURL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Could not resolve to a node")
}

func TestSetStatus_ExistingItem(t *testing.T) {
	runner := &recordingRunner{Outputs: [][]byte{
		[]byte(projectMetaJSON),
		[]byte(onBoard),
		[]byte(`{"data":{"updateProjectV2ItemFieldValue":{"projectV2Item":{"id":"PVTI_1"}}}}`),
	}}
	client, _ := newTestClient(runner, false)
	board := NewProjectBoard(client, "acme", 7, "Status")

	require.NoError(t, board.SetStatus(context.Background(), issueURL, "in progress"))
	require.Len(t, runner.Calls, 3)

	number, _ := fieldArg(runner.Calls[0].Args, "number")
	assert.Equal(t, "7", number)
	assert.Contains(t, runner.Calls[0].Args, "-F")

	update := runner.Calls[2].Args
	query, _ := fieldArg(update, "query")
	assert.Contains(t, query, "updateProjectV2ItemFieldValue")
	item, _ := fieldArg(update, "item")
	assert.Equal(t, "PVTI_1", item)
	option, _ := fieldArg(update, "option")
	assert.Equal(t, "opt_progress", option)
	project, _ := fieldArg(update, "project")
	assert.Equal(t, "PVT_7", project)
}

func TestSetStatus_AddsMissingItem(t *testing.T) {
	runner := &recordingRunner{Outputs: [][]byte{
		[]byte(projectMetaJSON),
		[]byte(offBoard),
		[]byte(`{"data":{"addProjectV2ItemById":{"item":{"id":"PVTI_new"}}}}`),
		[]byte(`{"data":{}}`),
	}}
	client, _ := newTestClient(runner, false)
	board := NewProjectBoard(client, "acme", 7, "Status")

	require.NoError(t, board.SetStatus(context.Background(), issueURL, "Watch"))
	require.Len(t, runner.Calls, 4)

	add := runner.Calls[2].Args
	query, _ := fieldArg(add, "query")
	assert.Contains(t, query, "addProjectV2ItemById")
	content, _ := fieldArg(add, "content")
	assert.Equal(t, "I_1", content)

	item, _ := fieldArg(runner.Calls[3].Args, "item")
	assert.Equal(t, "PVTI_new", item)
}

func TestSetStatus_CachesProjectMeta(t *testing.T) {
	runner := &recordingRunner{Outputs: [][]byte{
		[]byte(projectMetaJSON),
		[]byte(onBoard),
		[]byte(`{}`),
		[]byte(onBoard),
		[]byte(`{}`),
	}}
	client, _ := newTestClient(runner, false)
	board := NewProjectBoard(client, "acme", 7, "Status")

	require.NoError(t, board.SetStatus(context.Background(), issueURL, "Watch"))
	require.NoError(t, board.SetStatus(context.Background(), issueURL, "Todo"))
	assert.Len(t, runner.Calls, 5)
}

func TestSetStatus_UnknownOption(t *testing.T) {
	runner := &recordingRunner{Outputs: [][]byte{[]byte(projectMetaJSON)}}
	client, _ := newTestClient(runner, false)
	board := NewProjectBoard(client, "acme", 7, "Status")

	err := board.SetStatus(context.Background(), issueURL, "Archived")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown Status option "Archived"`)
	assert.Len(t, runner.Calls, 1)
}

func TestSetStatus_ProjectNotFound(t *testing.T) {
	runner := &recordingRunner{Outputs: [][]byte{[]byte(`{"data":{"repositoryOwner":{"projectV2":null}}}`)}}
	client, _ := newTestClient(runner, false)
	board := NewProjectBoard(client, "acme", 9, "Status")

	err := board.SetStatus(context.Background(), issueURL, "Watch")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "project acme/9 not found")
}

func TestSetStatus_DryRun(t *testing.T) {
	runner := &recordingRunner{}
	client, buf := newTestClient(runner, true)
	board := NewProjectBoard(client, "acme", 7, "Status")

	require.NoError(t, board.SetStatus(context.Background(), issueURL, "Watch"))
	assert.Empty(t, runner.Calls)
	assert.Contains(t, buf.String(), `Would set project status`)
}
