package envtools

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

//go:generate go run go.uber.org/mock/mockgen@v0.3.0 -source command.go -destination ./mock/command.go

// Runner executes an external command and returns its standard output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout string, err error)
}

// RunnerFunc is an adapter to allow the use of ordinary functions as Runner
type RunnerFunc func(ctx context.Context, name string, args ...string) (string, error)

// Run calls f(ctx, name, args...)
func (f RunnerFunc) Run(ctx context.Context, name string, args ...string) (string, error) {
	return f(ctx, name, args...)
}

// ExecRunner runs commands synchronously with os/exec.
// It applies no timeout of its own, cancellation comes from the context only.
type ExecRunner struct{}

// Run starts the command, waits for it and captures stdout.
// A non-zero exit status is returned as an error which includes stderr.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return "", fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return "", fmt.Errorf("%s: %w", name, err)
	}
	return stdout.String(), nil
}
