// Package runner executes the external tools sideload drives: cargo, rustup,
// xcrun (lipo, devicectl, simctl) and xcodebuild.
package runner

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultWaitDelay is how long a cancelled command gets between SIGTERM and
// SIGKILL.
const DefaultWaitDelay = 3 * time.Second

// Command describes one external tool invocation.
type Command struct {
	Name string
	Args []string
	Env  []string // KEY=VALUE pairs layered over the inherited environment
	Dir  string
}

// String renders the command line for logs and error messages.
func (c Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Result bundles all output from a finished command.
type Result struct {
	Output   string
	ExitCode int
	Duration time.Duration
	Err      error // set when the command could not run or was cancelled
}

// OK reports whether the command ran and exited zero.
func (r Result) OK() bool {
	return r.Err == nil && r.ExitCode == 0
}

// Cancelled reports whether the command was stopped by its context.
func (r Result) Cancelled() bool {
	return errors.Is(r.Err, context.Canceled) || errors.Is(r.Err, context.DeadlineExceeded)
}

// NotFound reports whether the executable could not be located.
func (r Result) NotFound() bool {
	return errors.Is(r.Err, exec.ErrNotFound)
}

// Runner is the seam between sideload and the host's tools. Tests swap in
// fakes that record calls.
type Runner interface {
	Run(ctx context.Context, cmd Command) Result
	LookPath(name string) (string, error)
}

// DefaultRunner runs commands on the host.
type DefaultRunner struct {
	Logger    *zap.Logger
	WaitDelay time.Duration
}

// New returns a DefaultRunner logging through logger.
func New(logger *zap.Logger) *DefaultRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DefaultRunner{Logger: logger, WaitDelay: DefaultWaitDelay}
}

// LookPath resolves name against PATH.
func (r *DefaultRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// Run executes cmd and returns its combined output. The child runs in its own
// process group so cancellation reaches anything it spawned.
func (r *DefaultRunner) Run(ctx context.Context, c Command) Result {
	logger := r.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	start := time.Now()
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	applyEnv(cmd, c)
	setupProcessGroup(cmd)
	cmd.Cancel = func() error { return terminateProcessGroup(cmd) }
	cmd.WaitDelay = r.WaitDelay
	if cmd.WaitDelay == 0 {
		cmd.WaitDelay = DefaultWaitDelay
	}

	logger.Debug("exec", zap.String("cmd", c.String()), zap.String("dir", c.Dir))
	output, err := cmd.CombinedOutput()
	res := Result{
		Output:   string(output),
		Duration: time.Since(start),
	}

	if ctxErr := ctx.Err(); ctxErr != nil && err != nil {
		res.ExitCode = -1
		res.Err = ctxErr
		logger.Debug("exec cancelled", zap.String("cmd", c.Name), zap.Error(ctxErr))
		return res
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		} else {
			res.ExitCode = -1
			res.Err = err
		}
	}

	logger.Debug("exec done",
		zap.String("cmd", c.Name),
		zap.Int("exit_code", res.ExitCode),
		zap.Duration("duration", res.Duration))
	return res
}

// Simple runs name with args and returns its output, or an error carrying the
// output when the command fails.
func Simple(ctx context.Context, r Runner, name string, args ...string) (string, error) {
	res := r.Run(ctx, Command{Name: name, Args: args})
	if res.Err != nil {
		return res.Output, fmt.Errorf("%s: %w", name, res.Err)
	}
	if res.ExitCode != 0 {
		return res.Output, fmt.Errorf("%s: exit status %d", name, res.ExitCode)
	}
	return res.Output, nil
}
