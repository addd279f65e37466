package device

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/buckleypaul/sideload/internal/runner"
)

var (
	ErrInstallFailed = errors.New("install failed")
	ErrLaunchFailed  = errors.New("launch failed")

	// ErrDeviceLocked is a launch failure caused by a locked screen. It
	// matches ErrLaunchFailed under errors.Is.
	ErrDeviceLocked = fmt.Errorf("%w: device is locked", ErrLaunchFailed)
)

// CommandError carries the raw diagnostic of a failed install or launch.
type CommandError struct {
	Op       string // "install" or "launch"
	Kind     error  // one of the Err* sentinels above
	Output   string
	ExitCode int
	Err      error // underlying runner error, if the tool never ran
}

func (e *CommandError) Error() string {
	msg := strings.TrimSpace(e.Output)
	switch {
	case msg != "":
		return fmt.Sprintf("%s: %s", e.Kind, msg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: exit status %d", e.Kind, e.ExitCode)
	}
}

func (e *CommandError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

// IsLockedMessage reports whether tool output describes a locked device.
func IsLockedMessage(output string) bool {
	return strings.Contains(strings.ToLower(output), "locked")
}

// Controller installs and launches apps on one kind of destination.
type Controller struct {
	runner runner.Runner
	dest   Destination
	logger *zap.Logger
}

// NewController returns a Controller for dest.
func NewController(r runner.Runner, dest Destination, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{runner: r, dest: dest, logger: logger.Named("control")}
}

// Install copies the app bundle at appPath onto the device, replacing any
// previous install.
func (c *Controller) Install(ctx context.Context, coreID, appPath string) error {
	if c.dest == DestinationSimulator {
		// simctl refuses to install on a shut down simulator.
		boot := c.runner.Run(ctx, runner.Command{
			Name: "xcrun",
			Args: []string{"simctl", "bootstatus", coreID, "-b"},
		})
		if err := c.check("install", ErrInstallFailed, boot); err != nil {
			return err
		}
	}

	var args []string
	if c.dest == DestinationSimulator {
		args = []string{"simctl", "install", coreID, appPath}
	} else {
		args = []string{"devicectl", "device", "install", "app", "--device", coreID, appPath}
	}
	c.logger.Info("installing", zap.String("device", coreID), zap.String("app", appPath))
	return c.check("install", ErrInstallFailed, c.runner.Run(ctx, runner.Command{Name: "xcrun", Args: args}))
}

// Launch starts bundleID on the device, terminating a running instance first.
func (c *Controller) Launch(ctx context.Context, coreID, bundleID string) error {
	var args []string
	if c.dest == DestinationSimulator {
		args = []string{"simctl", "launch", "--terminate-running-process", coreID, bundleID}
	} else {
		args = []string{"devicectl", "device", "process", "launch", "--device", coreID, "--terminate-existing", bundleID}
	}
	c.logger.Info("launching", zap.String("device", coreID), zap.String("bundle", bundleID))
	res := c.runner.Run(ctx, runner.Command{Name: "xcrun", Args: args})
	if res.OK() || res.Cancelled() {
		return c.check("launch", ErrLaunchFailed, res)
	}
	kind := ErrLaunchFailed
	if IsLockedMessage(res.Output) {
		kind = ErrDeviceLocked
	}
	return c.check("launch", kind, res)
}

func (c *Controller) check(op string, kind error, res runner.Result) error {
	if res.Cancelled() {
		return res.Err
	}
	if res.OK() {
		return nil
	}
	c.logger.Debug(op+" failed", zap.Int("exit_code", res.ExitCode), zap.Error(res.Err))
	return &CommandError{
		Op:       op,
		Kind:     kind,
		Output:   res.Output,
		ExitCode: res.ExitCode,
		Err:      res.Err,
	}
}
