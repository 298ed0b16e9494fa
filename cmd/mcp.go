package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/nsreview/internal/bizdays"
	"github.com/joescharf/nsreview/internal/mcp"
	"github.com/joescharf/nsreview/internal/namespace"
	"github.com/joescharf/nsreview/internal/store"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server for agent integration",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

This lets coding agents validate namespace proposals, work out review
deadlines and inspect run history. Configure with:

  {
    "mcpServers": {
      "nsreview": { "command": "nsreview", "args": ["mcp"] }
    }
  }

Available tools: nsreview_validate, nsreview_business_days,
nsreview_holidays, nsreview_detect_phase, nsreview_list_runs`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// History is optional; the other tools work without a database.
		var s store.Store
		if st, err := getStore(); err == nil {
			s = st
		}

		srv := mcp.NewServer(
			s,
			namespace.NewValidator(viper.GetString("review.spec_link")),
			bizdays.Default(),
			viper.GetInt("review.days"),
			viper.GetString("project.watch"),
			buildVersion,
		)
		return srv.ServeStdio(context.Background())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
