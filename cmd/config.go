package cmd

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/joescharf/nsreview/internal/graph"
	"github.com/joescharf/nsreview/internal/workflow"
)

var configForce bool

// configDirFunc returns the config directory path, replaceable in tests.
var configDirFunc = defaultConfigDir

func defaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "nsreview"), nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or manage configuration",
	Long: `Show or manage nsreview configuration.

Running bare 'nsreview config' is the same as 'nsreview config show'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create config file with commented defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configInitRun()
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration with sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open config file in $EDITOR",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configEditRun()
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite existing config file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEditCmd)
	rootCmd.AddCommand(configCmd)
}

// configTemplate is the template for generating config.yaml with comments.
const configTemplate = `# nsreview configuration
# See: nsreview config show (for effective values and sources)

# State/data directory (default: ~/.config/nsreview)
# state_dir: {{ .StateDir }}

# SQLite run history (default: ~/.config/nsreview/nsreview.db)
# db_path: {{ .DBPath }}

# Run artifacts are written to a timestamped directory under output_dir
output_dir: "{{ .OutputDir }}"

github:
  # Repository holding the review issues (owner/name)
  repo: "{{ .Repo }}"
  # Label selecting review issues
  label: "{{ .Label }}"
  # GitHub login of the designated reviewer
  reviewer: "{{ .Reviewer }}"
  # Label that marks a proposal approved by the reviewer
  approved_label: "{{ .ApprovedLabel }}"

project:
  # Projects v2 board tracking review status (leave number 0 to disable)
  owner: "{{ .ProjectOwner }}"
  number: {{ .ProjectNumber }}
  in_progress: "{{ .InProgress }}"
  watch: "{{ .Watch }}"

review:
  # Architect review window in business days
  days: {{ .ReviewDays }}
  subject_prefix: "{{ .SubjectPrefix }}"

# Microsoft Graph mail and Teams notifications. Use either access_token or
# tenant_id/client_id/client_secret. Secrets are better set through
# NSREVIEW_GRAPH_CLIENT_SECRET.
graph:
  tenant_id: ""
  client_id: ""
  sender: "{{ .Sender }}"
  notify: ""
  to: []

# Optional objection digests
anthropic:
  model: "{{ .AnthropicModel }}"
`

type configTemplateData struct {
	StateDir       string
	DBPath         string
	OutputDir      string
	Repo           string
	Label          string
	Reviewer       string
	ApprovedLabel  string
	ProjectOwner   string
	ProjectNumber  int
	InProgress     string
	Watch          string
	ReviewDays     int
	SubjectPrefix  string
	Sender         string
	AnthropicModel string
}

func configFilePath() (string, error) {
	dir, err := configDirFunc()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func configInitRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	// Check if file already exists
	if _, err := os.Stat(cfgPath); err == nil {
		if !configForce {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", cfgPath)
		}
		ui.Warning("Overwriting existing config file")
	}

	// Build template data from current viper values
	data := configTemplateData{
		StateDir:       viper.GetString("state_dir"),
		DBPath:         viper.GetString("db_path"),
		OutputDir:      viper.GetString("output_dir"),
		Repo:           viper.GetString("github.repo"),
		Label:          viper.GetString("github.label"),
		Reviewer:       viper.GetString("github.reviewer"),
		ApprovedLabel:  viper.GetString("github.approved_label"),
		ProjectOwner:   viper.GetString("project.owner"),
		ProjectNumber:  viper.GetInt("project.number"),
		InProgress:     viper.GetString("project.in_progress"),
		Watch:          viper.GetString("project.watch"),
		ReviewDays:     viper.GetInt("review.days"),
		SubjectPrefix:  viper.GetString("review.subject_prefix"),
		Sender:         viper.GetString("graph.sender"),
		AnthropicModel: viper.GetString("anthropic.model"),
	}

	tmpl, err := template.New("config").Parse(configTemplate)
	if err != nil {
		return fmt.Errorf("template parse error: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("template execute error: %w", err)
	}

	if dryRun {
		ui.DryRunMsg("Would create config file: %s", cfgPath)
		fmt.Fprintln(ui.Out)
		fmt.Fprint(ui.Out, buf.String())
		return nil
	}

	dir := filepath.Dir(cfgPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// The file may hold Graph credentials.
	if err := os.WriteFile(cfgPath, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	ui.Success("Config file created: %s", cfgPath)
	fmt.Fprintln(ui.Out)
	fmt.Fprint(ui.Out, buf.String())
	return nil
}

// configKeyInfo describes a config key for display purposes.
type configKeyInfo struct {
	Key    string
	Secret bool
}

var configKeys = []configKeyInfo{
	{Key: "state_dir"},
	{Key: "db_path"},
	{Key: "output_dir"},
	{Key: "history.keep"},
	{Key: "github.repo"},
	{Key: "github.label"},
	{Key: "github.reviewer"},
	{Key: "github.approved_label"},
	{Key: "github.approval_phrases"},
	{Key: "github.issue_limit"},
	{Key: "project.owner"},
	{Key: "project.number"},
	{Key: "project.status_field"},
	{Key: "project.in_progress"},
	{Key: "project.watch"},
	{Key: "review.days"},
	{Key: "review.subject_prefix"},
	{Key: "review.spec_link"},
	{Key: "graph.tenant_id"},
	{Key: "graph.client_id"},
	{Key: "graph.client_secret", Secret: true},
	{Key: "graph.access_token", Secret: true},
	{Key: "graph.sender"},
	{Key: "graph.to"},
	{Key: "graph.cc"},
	{Key: "graph.notify"},
	{Key: "anthropic.api_key", Secret: true},
	{Key: "anthropic.model"},
}

// envVar returns the environment variable that overrides key.
func envVar(key string) string {
	return "NSREVIEW_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func configShowRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}
	if used := viper.ConfigFileUsed(); used != "" {
		cfgPath = used
	}

	// Check if config file exists
	if _, err := os.Stat(cfgPath); err == nil {
		ui.Info("Config file: %s", cfgPath)
	} else {
		ui.Info("Config file: (none)")
	}
	fmt.Fprintln(ui.Out)

	// Read config file values to determine file source
	fileValues := readConfigFileValues(cfgPath)

	for _, k := range configKeys {
		val := viper.Get(k.Key)
		if k.Secret {
			val = maskSecret(viper.GetString(k.Key))
		}
		source := detectSource(k.Key, envVar(k.Key), fileValues)
		fmt.Fprintf(ui.Out, "  %-24s %v  %s\n", k.Key, val, source)
	}

	fmt.Fprintln(ui.Out)
	if err := workflowConfig().Validate(); err != nil {
		ui.Warning("%v", err)
	}
	if !graphConfig().Configured() {
		ui.Info("Graph notifier not configured; mail and Teams steps will be skipped")
	}
	return nil
}

// maskSecret hides all but the last four characters of a secret.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}

// readConfigFileValues reads the raw YAML file and returns a flat map of keys present in it.
func readConfigFileValues(path string) map[string]bool {
	result := make(map[string]bool)

	data, err := os.ReadFile(path)
	if err != nil {
		return result
	}

	var parsed map[string]any
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return result
	}

	// Flatten nested keys with dot notation
	flattenKeys("", parsed, result)
	return result
}

// flattenKeys recursively flattens a nested map to dot-notation keys.
func flattenKeys(prefix string, m map[string]any, result map[string]bool) {
	for key, val := range m {
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}
		if nested, ok := val.(map[string]any); ok {
			flattenKeys(fullKey, nested, result)
		} else {
			result[fullKey] = true
		}
	}
}

// detectSource determines where a config value is coming from.
func detectSource(key, envVar string, fileValues map[string]bool) string {
	if _, ok := os.LookupEnv(envVar); ok {
		return fmt.Sprintf("(env: %s)", envVar)
	}
	if fileValues[key] {
		return "(file)"
	}
	return "(default)"
}

func configEditRun() error {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = os.Getenv("VISUAL")
	}
	if editor == "" {
		return fmt.Errorf("$EDITOR is not set; set it to your preferred editor (e.g. export EDITOR=vim)")
	}

	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s (run 'nsreview config init' first)", cfgPath)
	}

	if dryRun {
		ui.DryRunMsg("Would open %s in %s", cfgPath, editor)
		return nil
	}

	editCmd := exec.Command(editor, cfgPath)
	editCmd.Stdin = os.Stdin
	editCmd.Stdout = os.Stdout
	editCmd.Stderr = os.Stderr
	return editCmd.Run()
}

// workflowConfig builds the engine settings from viper.
func workflowConfig() workflow.Config {
	return workflow.Config{
		Repo:             viper.GetString("github.repo"),
		Label:            viper.GetString("github.label"),
		IssueLimit:       viper.GetInt("github.issue_limit"),
		Reviewer:         viper.GetString("github.reviewer"),
		ApprovedLabel:    viper.GetString("github.approved_label"),
		ApprovalPhrases:  viper.GetStringSlice("github.approval_phrases"),
		InProgressStatus: viper.GetString("project.in_progress"),
		WatchStatus:      viper.GetString("project.watch"),
		ReviewDays:       viper.GetInt("review.days"),
		SubjectPrefix:    viper.GetString("review.subject_prefix"),
		NotifyUPN:        viper.GetString("graph.notify"),
		MailTo:           viper.GetStringSlice("graph.to"),
		MailCC:           viper.GetStringSlice("graph.cc"),
		DryRun:           dryRun,
	}
}

// graphConfig builds the Microsoft Graph settings from viper.
func graphConfig() graph.Config {
	return graph.Config{
		TenantID:     viper.GetString("graph.tenant_id"),
		ClientID:     viper.GetString("graph.client_id"),
		ClientSecret: viper.GetString("graph.client_secret"),
		AccessToken:  viper.GetString("graph.access_token"),
		Sender:       viper.GetString("graph.sender"),
	}
}
