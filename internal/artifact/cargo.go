package artifact

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/buckleypaul/sideload/internal/runner"
)

// Cargo compiles a Rust crate as a static library.
type Cargo struct {
	Runner    runner.Runner
	Dir       string // workspace root cargo runs in
	Package   string // -p argument; empty builds the root crate
	LibName   string // library name without the lib prefix or .a suffix
	TargetDir string // defaults to Dir/target
	Logger    *zap.Logger
}

func (c *Cargo) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

// Check verifies cargo is installed and every target's standard library is.
func (c *Cargo) Check(ctx context.Context, targets []Target) error {
	if _, err := c.Runner.LookPath("cargo"); err != nil {
		return &BuildError{Kind: ErrToolchainUnavailable, Err: err, Hint: "install Rust from https://rustup.rs"}
	}
	if _, err := c.Runner.LookPath("rustup"); err != nil {
		// Toolchains installed without rustup cannot be queried; let cargo
		// report a missing target itself.
		c.logger().Debug("rustup not found, skipping target check")
		return nil
	}

	out, err := runner.Simple(ctx, c.Runner, "rustup", "target", "list", "--installed")
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &BuildError{Kind: ErrToolchainUnavailable, Output: out, Err: err}
	}
	installed := map[string]bool{}
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			installed[line] = true
		}
	}
	var missing []string
	for _, t := range targets {
		if !installed[t.Triple] {
			missing = append(missing, t.Triple)
		}
	}
	if len(missing) > 0 {
		return &BuildError{
			Kind:   ErrToolchainUnavailable,
			Target: strings.Join(missing, ", "),
			Err:    errors.New("rust target not installed"),
			Hint:   "rustup target add " + strings.Join(missing, " "),
		}
	}
	return nil
}

// Compile runs cargo build for t and returns the expected library path.
func (c *Cargo) Compile(ctx context.Context, t Target, profile Profile, env []string) (string, error) {
	args := []string{"build", "--lib"}
	if c.Package != "" {
		args = append(args, "-p", c.Package)
	}
	args = append(args, "--target", t.Triple)
	if profile == ProfileRelease {
		args = append(args, "--release")
	}

	res := c.Runner.Run(ctx, runner.Command{Name: "cargo", Args: args, Env: env, Dir: c.Dir})
	switch {
	case res.Cancelled():
		return "", res.Err
	case res.NotFound():
		return "", &BuildError{Kind: ErrToolchainUnavailable, Target: t.String(), Err: res.Err}
	case !res.OK():
		return "", &BuildError{Kind: ErrCompile, Target: t.String(), Output: res.Output, Err: res.Err}
	}
	c.logger().Debug("cargo finished", zap.Stringer("target", t), zap.Duration("duration", res.Duration))
	return c.OutputPath(t, profile), nil
}

// OutputPath is where cargo writes the library for t.
func (c *Cargo) OutputPath(t Target, profile Profile) string {
	targetDir := c.TargetDir
	if targetDir == "" {
		targetDir = filepath.Join(c.Dir, "target")
	}
	return filepath.Join(targetDir, t.Triple, string(profile), fmt.Sprintf("lib%s.a", c.LibName))
}
