package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/buckleypaul/sideload/internal/config"
	"github.com/buckleypaul/sideload/internal/runner"
	"github.com/buckleypaul/sideload/internal/store"
	"github.com/buckleypaul/sideload/internal/ui"
)

// app carries what every subcommand needs. Tests build one directly with a
// fake runner and buffers.
type app struct {
	verbose bool
	dir     string

	logger *zap.Logger
	cfg    config.Config
	store  *store.Store
	runner runner.Runner

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

// exitError carries a specific process exit status out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "sideload",
		Short: "Build, install and launch an iOS app, then stream its logs",
		Long: `sideload builds the Rust library for every required architecture, packages
it into the Xcode app, installs and launches it on a device or simulator, and
relays the app's log output back to this terminal.

Project settings live in .sideload/config.yaml (or config.json).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")
	root.PersistentFlags().StringVarP(&a.dir, "dir", "C", "", "project directory (default: current directory)")

	root.AddCommand(
		newDeployCmd(a),
		newDevicesCmd(a),
		newListenCmd(a),
		newHistoryCmd(a),
	)
	return root
}

// setup fills in whatever the caller did not inject.
func (a *app) setup() error {
	if a.logger == nil {
		zcfg := zap.NewDevelopmentConfig()
		zcfg.Level = zap.NewAtomicLevelAt(zapcore.ErrorLevel)
		if a.verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		zcfg.OutputPaths = []string{"stderr"}
		zcfg.DisableStacktrace = !a.verbose
		logger, err := zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		a.logger = logger
	}

	if a.dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return err
		}
		a.dir = cwd
	}
	abs, err := filepath.Abs(a.dir)
	if err != nil {
		return err
	}
	a.dir = abs

	cfg, err := config.Load(a.dir)
	if err != nil {
		return err
	}
	a.cfg = cfg

	if a.store == nil {
		a.store = store.New(filepath.Join(a.dir, config.DirName))
	}
	if a.runner == nil {
		a.runner = runner.New(a.logger.Named("exec"))
	}
	return nil
}

// exitCode maps a command error onto the process exit status.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return 1
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	a := &app{stdin: os.Stdin, stdout: os.Stdout, stderr: os.Stderr}
	err := newRootCmd(a).ExecuteContext(ctx)
	stop()

	var ee *exitError
	if err != nil && (!errors.As(err, &ee) || ee.err != nil) {
		fmt.Fprintln(os.Stderr, ui.ErrorStyle.Render("Error:"), err)
	}
	os.Exit(exitCode(err))
}
