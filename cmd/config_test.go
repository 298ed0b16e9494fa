package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/nsreview/internal/output"
)

// testEnv sets up isolated config dir, viper, and output for testing.
func testEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	// Override configDirFunc for tests
	origFunc := configDirFunc
	configDirFunc = func() (string, error) { return dir, nil }
	t.Cleanup(func() { configDirFunc = origFunc })

	// Reset viper
	viper.Reset()
	setDefaults(dir)
	t.Cleanup(viper.Reset)

	// Reset flags shared across commands
	dryRun = false
	configForce = false

	// Initialize output
	ui = output.New()

	// Fresh store per test
	dataStore = nil
	t.Cleanup(func() {
		if dataStore != nil {
			_ = dataStore.Close()
			dataStore = nil
		}
	})

	return dir
}

// captureUI redirects ui output to a buffer.
func captureUI(t *testing.T) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	ui.Out = buf
	ui.ErrOut = buf
	return buf
}

func TestConfigInit_CreatesFile(t *testing.T) {
	dir := testEnv(t)
	viper.Set("github.repo", "acme/reviews")

	err := configInitRun()
	require.NoError(t, err)

	cfgPath := filepath.Join(dir, "config.yaml")
	info, err := os.Stat(cfgPath)
	require.NoError(t, err, "config file should exist")
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	data, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "nsreview configuration")
	assert.Contains(t, string(data), `repo: "acme/reviews"`)
	assert.Contains(t, string(data), `label: "mgmt-namespace-review"`)
	assert.Contains(t, string(data), "days: 3")
}

func TestConfigInit_ProducesLoadableYAML(t *testing.T) {
	dir := testEnv(t)
	viper.Set("github.reviewer", "arch")
	require.NoError(t, configInitRun())

	v := viper.New()
	v.SetConfigFile(filepath.Join(dir, "config.yaml"))
	require.NoError(t, v.ReadInConfig())
	assert.Equal(t, "arch", v.GetString("github.reviewer"))
	assert.Equal(t, "Watch", v.GetString("project.watch"))
}

func TestConfigInit_RefusesOverwrite(t *testing.T) {
	dir := testEnv(t)

	// Create existing file
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("existing"), 0644))

	err := configInitRun()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestConfigInit_ForceOverwrite(t *testing.T) {
	dir := testEnv(t)

	// Create existing file
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("existing"), 0644))

	configForce = true
	err := configInitRun()
	require.NoError(t, err)

	data, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "nsreview configuration")
}

func TestConfigInit_DryRun(t *testing.T) {
	dir := testEnv(t)
	dryRun = true
	ui.DryRun = true

	err := configInitRun()
	require.NoError(t, err)

	// File should NOT have been created
	cfgPath := filepath.Join(dir, "config.yaml")
	_, err = os.Stat(cfgPath)
	assert.True(t, os.IsNotExist(err), "config file should not exist in dry-run mode")
}

func TestConfigShow_NoFile(t *testing.T) {
	testEnv(t)
	buf := captureUI(t)

	err := configShowRun()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Config file: (none)")
	assert.Contains(t, buf.String(), "missing required config: github.repo, github.reviewer")
}

func TestConfigShow_WithFileAndSecrets(t *testing.T) {
	dir := testEnv(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"),
		[]byte("github:\n  repo: acme/reviews\n  reviewer: arch\ngraph:\n  client_secret: s3cr3t-value\n"), 0600))
	viper.SetConfigFile(filepath.Join(dir, "config.yaml"))
	require.NoError(t, viper.ReadInConfig())
	buf := captureUI(t)

	require.NoError(t, configShowRun())
	out := buf.String()
	assert.Contains(t, out, "acme/reviews  (file)")
	assert.Contains(t, out, "****alue  (file)")
	assert.NotContains(t, out, "s3cr3t-value")
	assert.NotContains(t, out, "missing required config")
}

func TestConfigEdit_NoEditor(t *testing.T) {
	testEnv(t)
	t.Setenv("EDITOR", "")
	t.Setenv("VISUAL", "")

	err := configEditRun()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "$EDITOR is not set")
}

func TestConfigEdit_NoConfigFile(t *testing.T) {
	testEnv(t)
	t.Setenv("EDITOR", "echo") // harmless command

	err := configEditRun()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestDetectSource(t *testing.T) {
	fileValues := map[string]bool{"key_a": true}

	// From env
	t.Setenv("NSREVIEW_TEST_KEY", "val")
	assert.Contains(t, detectSource("test_key", "NSREVIEW_TEST_KEY", fileValues), "env")

	// From file
	assert.Contains(t, detectSource("key_a", "NSREVIEW_KEY_A_NONEXISTENT", fileValues), "file")

	// Default
	assert.Contains(t, detectSource("key_b", "NSREVIEW_KEY_B_NONEXISTENT", fileValues), "default")
}

func TestEnvVar(t *testing.T) {
	assert.Equal(t, "NSREVIEW_GITHUB_REPO", envVar("github.repo"))
	assert.Equal(t, "NSREVIEW_DB_PATH", envVar("db_path"))
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "", maskSecret(""))
	assert.Equal(t, "****", maskSecret("abc"))
	assert.Equal(t, "****6789", maskSecret("123456789"))
}

func TestFlattenKeys(t *testing.T) {
	input := map[string]any{
		"top": "val",
		"nested": map[string]any{
			"a": "1",
			"b": "2",
		},
	}

	result := make(map[string]bool)
	flattenKeys("", input, result)

	assert.True(t, result["top"])
	assert.True(t, result["nested.a"])
	assert.True(t, result["nested.b"])
	assert.False(t, result["nested"])
}

func TestWorkflowConfig_FromViper(t *testing.T) {
	testEnv(t)
	viper.Set("github.repo", "acme/reviews")
	viper.Set("github.reviewer", "arch")
	viper.Set("graph.to", []string{"architects@contoso.com"})
	dryRun = true

	cfg := workflowConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "mgmt-namespace-review", cfg.Label)
	assert.Equal(t, []string{"approved", "lgtm"}, cfg.ApprovalPhrases)
	assert.Equal(t, 3, cfg.ReviewDays)
	assert.Equal(t, []string{"architects@contoso.com"}, cfg.MailTo)
	assert.True(t, cfg.DryRun)
}

func TestGraphConfig_FromViper(t *testing.T) {
	testEnv(t)
	assert.False(t, graphConfig().Configured())

	viper.Set("graph.sender", "reviews@contoso.com")
	viper.Set("graph.access_token", "tok")
	assert.True(t, graphConfig().Configured())
}
