package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/nsreview/internal/github"
	"github.com/joescharf/nsreview/internal/namespace"
	"github.com/joescharf/nsreview/internal/output"
)

var (
	validateIssue   int
	validateJSON    bool
	validateComment bool
)

// errInvalidProposal makes the command exit non-zero without repeating the findings.
var errInvalidProposal = errors.New("namespace proposal is invalid")

var validateCmd = &cobra.Command{
	Use:   "validate [file|-]",
	Short: "Validate the namespaces in an issue body",
	Long: `Validate a namespace proposal without touching the issue.

The body is read from a file, from stdin ("-"), or from a review issue
with --issue. The command exits non-zero when the proposal is invalid.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, author, err := validateInput(args)
		if err != nil {
			return err
		}
		return validateRun(body, author)
	},
}

func init() {
	validateCmd.Flags().IntVar(&validateIssue, "issue", 0, "Read the body from this issue in github.repo")
	validateCmd.Flags().BoolVar(&validateJSON, "json", false, "Print the result as JSON")
	validateCmd.Flags().BoolVar(&validateComment, "comment", false, "Print the comment that would be posted for an invalid proposal")
	rootCmd.AddCommand(validateCmd)
}

func validateInput(args []string) (body, author string, err error) {
	switch {
	case validateIssue > 0:
		if len(args) > 0 {
			return "", "", fmt.Errorf("give either a file or --issue, not both")
		}
		repo := viper.GetString("github.repo")
		if repo == "" {
			return "", "", fmt.Errorf("missing required config: github.repo")
		}
		gh := github.NewClient(github.RealRunner{}, ui)
		issue, err := gh.ViewIssue(context.Background(), repo, validateIssue)
		if err != nil {
			return "", "", err
		}
		return issue.Body, issue.Author, nil
	case len(args) == 0 || args[0] == "-":
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), "author", nil
	default:
		data, err := os.ReadFile(args[0])
		if err != nil {
			return "", "", fmt.Errorf("read %s: %w", args[0], err)
		}
		return string(data), "author", nil
	}
}

func validateRun(body, author string) error {
	res := namespace.NewValidator(viper.GetString("review.spec_link")).Validate(body)

	if validateJSON {
		enc := json.NewEncoder(ui.Out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
	} else {
		printValidation(res)
	}

	if res.IsValid {
		return nil
	}
	if validateComment {
		fmt.Fprintln(ui.Out)
		fmt.Fprintln(ui.Out, res.ErrorComment(author))
	}
	return errInvalidProposal
}

func printValidation(res *namespace.Result) {
	table := ui.Table([]string{"Language", "Namespace", "Name", "Result"})
	for _, lang := range namespace.Languages {
		ns, ok := res.Namespace(lang)
		if !ok {
			_ = table.Append([]string{string(lang), namespace.Missing, "", output.ResultColor(false)})
			continue
		}
		_ = table.Append([]string{string(lang), ns.Raw, ns.Name, output.ResultColor(ns.Valid)})
	}
	_ = table.Render()
	fmt.Fprintln(ui.Out)

	if name := res.CanonicalName(); name != "" {
		ui.Info("Resource provider: %s", output.Cyan(name))
	}
	if res.HasSpecLink {
		ui.Success("API spec link present")
	}
	for _, e := range res.Errors {
		ui.Error("%s", e)
	}
	if res.IsValid {
		ui.Success("Namespace proposal is valid")
	}
}
