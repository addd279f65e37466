// Package runnertest provides a scriptable runner.Runner for tests.
package runnertest

import (
	"context"
	"os/exec"
	"strings"
	"sync"

	"github.com/buckleypaul/sideload/internal/runner"
)

// Handler produces the result for one call. Returning ok=false falls through
// to the next registered handler.
type Handler func(cmd runner.Command) (res runner.Result, ok bool)

// Fake records every command and answers from registered handlers. Commands
// no handler claims succeed with empty output.
type Fake struct {
	mu       sync.Mutex
	calls    []runner.Command
	handlers []Handler
	missing  map[string]bool
}

// New returns an empty Fake.
func New() *Fake {
	return &Fake{missing: map[string]bool{}}
}

// Handle registers h. Handlers are consulted in registration order.
func (f *Fake) Handle(h Handler) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers = append(f.handlers, h)
	return f
}

// On answers every command whose line starts with prefix.
func (f *Fake) On(prefix string, res runner.Result) *Fake {
	return f.Handle(func(cmd runner.Command) (runner.Result, bool) {
		if strings.HasPrefix(cmd.String(), prefix) {
			return res, true
		}
		return runner.Result{}, false
	})
}

// Missing makes LookPath and Run report name as not installed.
func (f *Fake) Missing(name string) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.missing[name] = true
	return f
}

// Run implements runner.Runner.
func (f *Fake) Run(ctx context.Context, cmd runner.Command) runner.Result {
	f.mu.Lock()
	f.calls = append(f.calls, copyCommand(cmd))
	missing := f.missing[cmd.Name]
	handlers := append([]Handler(nil), f.handlers...)
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return runner.Result{ExitCode: -1, Err: err}
	}
	if missing {
		return runner.Result{ExitCode: -1, Err: exec.ErrNotFound}
	}
	for _, h := range handlers {
		if res, ok := h(cmd); ok {
			return res
		}
	}
	return runner.Result{}
}

// LookPath implements runner.Runner.
func (f *Fake) LookPath(name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.missing[name] {
		return "", exec.ErrNotFound
	}
	return "/usr/bin/" + name, nil
}

// Calls returns a copy of every command run so far.
func (f *Fake) Calls() []runner.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]runner.Command, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallsTo returns the commands whose line starts with prefix.
func (f *Fake) CallsTo(prefix string) []runner.Command {
	var out []runner.Command
	for _, c := range f.Calls() {
		if strings.HasPrefix(c.String(), prefix) {
			out = append(out, c)
		}
	}
	return out
}

func copyCommand(c runner.Command) runner.Command {
	c.Args = append([]string(nil), c.Args...)
	c.Env = append([]string(nil), c.Env...)
	return c
}

// ArgAfter returns the argument following flag, or "" when flag is absent.
func ArgAfter(cmd runner.Command, flag string) string {
	for i, a := range cmd.Args {
		if a == flag && i+1 < len(cmd.Args) {
			return cmd.Args[i+1]
		}
	}
	return ""
}
