// Package terraform shells out to the terraform CLI against a workspace
// directory and decodes its JSON state output. The binary is treated as a
// black box: commands, flags, and exit codes are the whole contract.
package terraform

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// Runner defines the terraform commands the orchestrator needs.
// This abstraction allows tests to inject a mock runner.
type Runner interface {
	// Init prepares the working directory for the other commands.
	Init(ctx context.Context, dir string) (Result, error)

	// Plan computes the change set without applying it.
	Plan(ctx context.Context, dir string) (Result, error)

	// Apply applies the configuration without prompting.
	Apply(ctx context.Context, dir string) (Result, error)

	// Destroy tears down everything the configuration manages.
	Destroy(ctx context.Context, dir string) (Result, error)

	// ShowState reads the current state as decoded JSON.
	ShowState(ctx context.Context, dir string) (*State, error)

	// Version returns the terraform version string.
	Version(ctx context.Context) (string, error)

	// IsAvailable checks whether the terraform binary is reachable.
	IsAvailable(ctx context.Context) error
}

// Timeouts bounds each terraform command. A zero field means no bound.
type Timeouts struct {
	Init    time.Duration
	Plan    time.Duration
	Apply   time.Duration
	Destroy time.Duration
	Show    time.Duration
}

// DefaultTimeouts returns the standard per-command bounds.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Init:    5 * time.Minute,
		Plan:    5 * time.Minute,
		Apply:   10 * time.Minute,
		Destroy: 10 * time.Minute,
		Show:    time.Minute,
	}
}

// CLIRunner executes terraform commands through the local binary.
type CLIRunner struct {
	binary   string
	timeouts Timeouts
	logger   *slog.Logger
}

// CLIOption configures a CLIRunner.
type CLIOption func(*CLIRunner)

// WithBinary sets the terraform binary path.
func WithBinary(path string) CLIOption {
	return func(r *CLIRunner) { r.binary = path }
}

// WithTimeouts sets the per-command bounds.
func WithTimeouts(t Timeouts) CLIOption {
	return func(r *CLIRunner) { r.timeouts = t }
}

// WithLogger sets the runner's logger.
func WithLogger(logger *slog.Logger) CLIOption {
	return func(r *CLIRunner) { r.logger = logger }
}

// NewCLIRunner creates a CLIRunner that uses the terraform binary on PATH
// unless overridden.
func NewCLIRunner(opts ...CLIOption) *CLIRunner {
	r := &CLIRunner{
		binary:   "terraform",
		timeouts: DefaultTimeouts(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Init runs terraform init.
func (r *CLIRunner) Init(ctx context.Context, dir string) (Result, error) {
	return r.run(ctx, dir, r.timeouts.Init, "init", "-input=false", "-no-color")
}

// Plan runs terraform plan.
func (r *CLIRunner) Plan(ctx context.Context, dir string) (Result, error) {
	return r.run(ctx, dir, r.timeouts.Plan, "plan", "-input=false", "-no-color")
}

// Apply runs terraform apply with auto-approval.
func (r *CLIRunner) Apply(ctx context.Context, dir string) (Result, error) {
	return r.run(ctx, dir, r.timeouts.Apply, "apply", "-auto-approve", "-input=false", "-no-color")
}

// Destroy runs terraform destroy with auto-approval.
func (r *CLIRunner) Destroy(ctx context.Context, dir string) (Result, error) {
	return r.run(ctx, dir, r.timeouts.Destroy, "destroy", "-auto-approve", "-input=false", "-no-color")
}

// ShowState runs terraform show -json and decodes the output.
func (r *CLIRunner) ShowState(ctx context.Context, dir string) (*State, error) {
	res, err := r.run(ctx, dir, r.timeouts.Show, "show", "-json")
	if err != nil {
		return nil, err
	}
	state, err := DecodeState(res.Stdout)
	if err != nil {
		return nil, fmt.Errorf("failed to decode state for %s: %w", dir, err)
	}
	return state, nil
}

// Version returns the first line of terraform version.
func (r *CLIRunner) Version(ctx context.Context) (string, error) {
	res, err := r.run(ctx, "", r.timeouts.Show, "version")
	if err != nil {
		return "", err
	}
	line, _, _ := strings.Cut(res.Stdout, "\n")
	return strings.TrimSpace(line), nil
}

// IsAvailable checks whether the terraform binary is installed and reachable.
func (r *CLIRunner) IsAvailable(ctx context.Context) error {
	if _, err := r.Version(ctx); err != nil {
		return fmt.Errorf("terraform is not available: %w", err)
	}
	return nil
}

func (r *CLIRunner) run(ctx context.Context, dir string, timeout time.Duration, args ...string) (Result, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, r.binary, args...) //nolint:gosec // binary is set internally, not from user input
	if dir != "" {
		cmd.Dir = dir
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	res := Result{
		Command:  strings.Join(args, " "),
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}
	r.logger.Debug("terraform command finished",
		"command", res.Command, "dir", dir, "duration", res.Duration, "error", err)
	if err == nil {
		return res, nil
	}

	execErr := &ExecutionError{
		Command:  res.Command,
		ExitCode: -1,
		Stderr:   strings.TrimSpace(res.Stderr),
		Duration: res.Duration,
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		execErr.ExitCode = exitErr.ExitCode()
	}
	if ctx.Err() != nil {
		execErr.TimedOut = true
	}
	if execErr.Stderr == "" {
		execErr.Stderr = err.Error()
	}
	return res, execErr
}
