package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/nsreview/internal/bizdays"
	"github.com/joescharf/nsreview/internal/llm"
	"github.com/joescharf/nsreview/internal/output"
	"github.com/joescharf/nsreview/internal/store"
	"github.com/joescharf/nsreview/internal/workflow"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui        *output.UI
	dataStore store.Store

	verbose bool
	dryRun  bool
)

var rootCmd = &cobra.Command{
	Use:   "nsreview",
	Short: "Namespace review workflow - validate, track and close SDK namespace reviews",
	Long: `nsreview runs the management-plane SDK namespace review workflow.

Each run reads the open review issues from GitHub, validates the proposed
per-language namespaces, works out which phase every issue is in from live
signals (assignees, approval, project board status, review mail thread) and
performs that phase's actions. Runs are recorded as artifacts and in a local
history database.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would happen without making changes")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/nsreview/config.yaml)")
}

func initConfig() {
	// If --config is explicitly set, use that file
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		configDir, err := configDirFunc()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}
		viper.AddConfigPath(configDir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("NSREVIEW")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	defaultDir, _ := configDirFunc()
	setDefaults(defaultDir)

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

// setDefaults registers every config key's default value.
func setDefaults(stateDir string) {
	viper.SetDefault("state_dir", stateDir)
	viper.SetDefault("db_path", filepath.Join(stateDir, "nsreview.db"))
	viper.SetDefault("output_dir", filepath.Join(stateDir, "runs"))
	viper.SetDefault("history.keep", 0)

	viper.SetDefault("github.repo", "")
	viper.SetDefault("github.label", workflow.DefaultLabel)
	viper.SetDefault("github.reviewer", "")
	viper.SetDefault("github.approved_label", workflow.DefaultApprovedLabel)
	viper.SetDefault("github.approval_phrases", workflow.DefaultApprovalPhrases)
	viper.SetDefault("github.issue_limit", workflow.DefaultIssueLimit)

	viper.SetDefault("project.owner", "")
	viper.SetDefault("project.number", 0)
	viper.SetDefault("project.status_field", "Status")
	viper.SetDefault("project.in_progress", workflow.DefaultInProgressStatus)
	viper.SetDefault("project.watch", workflow.DefaultWatchStatus)

	viper.SetDefault("review.days", bizdays.DefaultReviewDays)
	viper.SetDefault("review.subject_prefix", workflow.DefaultSubjectPrefix)
	viper.SetDefault("review.spec_link", "")

	viper.SetDefault("graph.tenant_id", "")
	viper.SetDefault("graph.client_id", "")
	viper.SetDefault("graph.client_secret", "")
	viper.SetDefault("graph.access_token", "")
	viper.SetDefault("graph.sender", "")
	viper.SetDefault("graph.to", []string{})
	viper.SetDefault("graph.cc", []string{})
	viper.SetDefault("graph.notify", "")

	viper.SetDefault("anthropic.api_key", "")
	viper.SetDefault("anthropic.model", llm.DefaultModel)
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose
	ui.DryRun = dryRun

	// Initialize store lazily, only when commands actually need it.
	// This allows config/version commands to run without a db.
}

// getStore returns the shared store, initializing it on first call.
func getStore() (store.Store, error) {
	if dataStore != nil {
		return dataStore, nil
	}

	dbPath := viper.GetString("db_path")
	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := s.Migrate(rootCmd.Context()); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	dataStore = s
	return dataStore, nil
}
