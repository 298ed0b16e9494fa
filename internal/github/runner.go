package github

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Runner executes the gh CLI. Tests substitute a recording fake.
type Runner interface {
	Run(ctx context.Context, args []string, stdin []byte) ([]byte, error)
}

// RealRunner runs the gh binary found on PATH.
type RealRunner struct{}

func (r RealRunner) Run(ctx context.Context, args []string, stdin []byte) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "gh", args...)
	if len(stdin) > 0 {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("gh %s: %s", strings.Join(redactArgs(args), " "), firstNonEmpty(strings.TrimSpace(stderr.String()), err.Error()))
	}
	return out, nil
}

// redactArgs shortens GraphQL query bodies so error messages stay readable.
func redactArgs(args []string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		if strings.HasPrefix(a, "query=") && len(a) > 60 {
			a = a[:60] + "..."
		}
		out[i] = a
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
