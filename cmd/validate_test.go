package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validProposal = `## Namespace proposal
- .NET: Azure.ResourceManager.Widgets
- Java: azure-resourcemanager-widgets
- Go: sdk/resourcemanager/widgets/armwidgets
- JavaScript: @azure/arm-widgets
- Python: azure-mgmt-widgets

API spec: https://github.com/Azure/azure-rest-api-specs/tree/main/specification/widgets
`

func resetValidateFlags(t *testing.T) {
	t.Helper()
	validateIssue, validateJSON, validateComment = 0, false, false
	t.Cleanup(func() { validateIssue, validateJSON, validateComment = 0, false, false })
}

func TestValidateRun_Valid(t *testing.T) {
	testEnv(t)
	resetValidateFlags(t)
	buf := captureUI(t)

	require.NoError(t, validateRun(validProposal, "alice"))
	out := buf.String()
	assert.Contains(t, out, "Azure.ResourceManager.Widgets")
	assert.Contains(t, out, "Namespace proposal is valid")
}

func TestValidateRun_InvalidWithComment(t *testing.T) {
	testEnv(t)
	resetValidateFlags(t)
	validateComment = true
	buf := captureUI(t)

	err := validateRun("- .NET: Azure.ResourceManager.AzureWidgets", "alice")
	require.ErrorIs(t, err, errInvalidProposal)

	out := buf.String()
	assert.Contains(t, out, "(missing)")
	assert.Contains(t, out, "Missing Go namespace")
	assert.Contains(t, out, "@alice, thanks for the namespace proposal")
}

func TestValidateRun_JSON(t *testing.T) {
	testEnv(t)
	resetValidateFlags(t)
	validateJSON = true
	buf := captureUI(t)

	require.NoError(t, validateRun(validProposal, "alice"))
	var got struct {
		IsValid    bool `json:"isValid"`
		Namespaces []struct {
			Language string `json:"language"`
			Name     string `json:"name"`
		} `json:"namespaces"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.True(t, got.IsValid)
	assert.Len(t, got.Namespaces, 5)
}

func TestValidateInput_File(t *testing.T) {
	dir := testEnv(t)
	resetValidateFlags(t)

	path := filepath.Join(dir, "body.md")
	require.NoError(t, os.WriteFile(path, []byte(validProposal), 0644))

	body, author, err := validateInput([]string{path})
	require.NoError(t, err)
	assert.Equal(t, validProposal, body)
	assert.Equal(t, "author", author)

	_, _, err = validateInput([]string{filepath.Join(dir, "missing.md")})
	assert.Error(t, err)
}

func TestValidateInput_IssueRequiresRepo(t *testing.T) {
	testEnv(t)
	resetValidateFlags(t)
	validateIssue = 7

	_, _, err := validateInput(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "github.repo")

	_, _, err = validateInput([]string{"body.md"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not both")
}
