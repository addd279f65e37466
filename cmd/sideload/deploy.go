package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/buckleypaul/sideload/internal/artifact"
	"github.com/buckleypaul/sideload/internal/config"
	"github.com/buckleypaul/sideload/internal/device"
	"github.com/buckleypaul/sideload/internal/picker"
	"github.com/buckleypaul/sideload/internal/pipeline"
	"github.com/buckleypaul/sideload/internal/relay"
	"github.com/buckleypaul/sideload/internal/store"
	"github.com/buckleypaul/sideload/internal/ui"
)

type deployFlags struct {
	simulator       bool
	device          string
	release         bool
	team            string
	signingIdentity string
	port            int
	logLevel        string
	bundleID        string
	project         string
	scheme          string
	pick            bool
	noStream        bool
	universal       bool
	save            bool
}

func newDeployCmd(a *app) *cobra.Command {
	var f deployFlags
	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Build, install and launch the app, then stream its logs",
		Long: `Builds the library and app for the selected device, installs and launches it,
and prints the app's log output until interrupted.

Without --device the first connected device is used, then a recently
disconnected one, then any known device.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.deploy(cmd, f)
		},
	}
	fl := cmd.Flags()
	fl.BoolVarP(&f.simulator, "simulator", "s", false, "deploy to a simulator instead of a physical device")
	fl.StringVarP(&f.device, "device", "d", "", "device identifier to use for both install and build (skips discovery)")
	fl.BoolVar(&f.release, "release", false, "build the release profile")
	fl.StringVar(&f.team, "team", "", "development team ID for code signing")
	fl.StringVar(&f.signingIdentity, "signing-identity", "", "code signing identity")
	fl.IntVarP(&f.port, "port", "p", 0, "log relay port")
	fl.StringVar(&f.logLevel, "log-level", "", "app log level: trace, debug, info, warn, error")
	fl.StringVar(&f.bundleID, "bundle-id", "", "bundle identifier to launch")
	fl.StringVar(&f.project, "project", "", "path to the .xcodeproj")
	fl.StringVar(&f.scheme, "scheme", "", "Xcode scheme to build")
	fl.BoolVar(&f.pick, "pick", false, "choose the device interactively")
	fl.BoolVar(&f.noStream, "no-stream", false, "exit after a successful launch")
	fl.BoolVar(&f.universal, "universal", false, "build every simulator architecture, not just the host's")
	fl.BoolVar(&f.save, "save", false, "write the resulting settings to .sideload/config.json")
	return cmd
}

// request merges flags over config into a pipeline request.
func (a *app) request(f deployFlags) (pipeline.Request, error) {
	cfg := a.cfg
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&cfg.Device, f.device)
	set(&cfg.TeamID, f.team)
	set(&cfg.SigningIdentity, f.signingIdentity)
	set(&cfg.LogLevel, f.logLevel)
	set(&cfg.BundleID, f.bundleID)
	set(&cfg.Project, f.project)
	set(&cfg.Scheme, f.scheme)
	if f.port != 0 {
		cfg.LogPort = f.port
	}
	if f.release {
		cfg.Profile = string(artifact.ProfileRelease)
	}
	if f.simulator {
		cfg.Destination = string(device.DestinationSimulator)
	}
	a.cfg = cfg

	dest, err := device.ParseDestination(cfg.Destination)
	if err != nil {
		return pipeline.Request{}, err
	}
	profile, err := artifact.ParseProfile(cfg.Profile)
	if err != nil {
		return pipeline.Request{}, err
	}
	if err := validateLogLevel(cfg.LogLevel); err != nil {
		return pipeline.Request{}, err
	}
	if cfg.LogPort <= 0 || cfg.LogPort > 65535 {
		return pipeline.Request{}, fmt.Errorf("invalid log port %d", cfg.LogPort)
	}
	var missing []string
	if cfg.Project == "" {
		missing = append(missing, "project")
	}
	if cfg.Scheme == "" {
		missing = append(missing, "scheme")
	}
	if cfg.BundleID == "" {
		missing = append(missing, "bundle_id")
	}
	if len(missing) > 0 {
		return pipeline.Request{}, fmt.Errorf("missing %s: set in .sideload/config.yaml or pass the matching flags", strings.Join(missing, ", "))
	}

	return pipeline.Request{
		Destination:     dest,
		Platform:        device.PlatformIOS,
		Override:        cfg.Device,
		Profile:         profile,
		Team:            cfg.TeamID,
		SigningIdentity: cfg.SigningIdentity,
		BundleID:        cfg.BundleID,
		LogPort:         cfg.LogPort,
		LogLevel:        cfg.LogLevel,
		Universal:       f.universal,
		NoStream:        f.noStream,
	}, nil
}

// saveConfig persists the merged settings for the project. The device
// override is left out: selection always starts from the catalog.
func (a *app) saveConfig() error {
	cfg := a.cfg
	cfg.Device = ""
	if err := config.Save(cfg, a.dir, false); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	fmt.Fprintln(a.stderr, ui.DimStyle.Render("settings saved to "+filepath.Join(config.DirName, "config.json")))
	return nil
}

func validateLogLevel(level string) error {
	switch level {
	case "", "trace", "debug", "info", "warn", "error":
		return nil
	}
	return fmt.Errorf("invalid log level %q", level)
}

// pipelineFor wires the real collaborators for dest.
func (a *app) pipelineFor(dest device.Destination, relayOut io.Writer) *pipeline.Pipeline {
	logger := a.logger
	cfg := a.cfg
	project := cfg.Project
	if !filepath.IsAbs(project) {
		project = filepath.Join(a.dir, project)
	}
	derived := cfg.DerivedData
	if !filepath.IsAbs(derived) {
		derived = filepath.Join(a.dir, derived)
	}
	libOut := cfg.LibOutputDir
	if !filepath.IsAbs(libOut) {
		libOut = filepath.Join(a.dir, libOut)
	}

	assembler := &artifact.Assembler{
		Library: &artifact.Builder{
			Compiler: &artifact.Cargo{
				Runner:  a.runner,
				Dir:     a.dir,
				Package: cfg.Package,
				LibName: cfg.LibName,
				Logger:  logger.Named("cargo"),
			},
			Merger: artifact.Lipo{Runner: a.runner},
			OutDir: filepath.Join(libOut, string(dest)),
			Logger: logger.Named("build"),
		},
		App: &artifact.AppBuilder{
			Runner:          a.runner,
			Project:         project,
			Scheme:          cfg.Scheme,
			Product:         cfg.Product,
			DerivedData:     derived,
			Team:            cfg.TeamID,
			SigningIdentity: cfg.SigningIdentity,
			Logger:          logger.Named("xcodebuild"),
		},
		Logger: logger.Named("assemble"),
	}

	return &pipeline.Pipeline{
		Devices: device.NewCatalog(a.runner, logger),
		Builder: assembler,
		Control: device.NewController(a.runner, dest, logger),
		StartRelay: func(port int) (pipeline.Relay, error) {
			l, err := relay.Start(port, relayOut,
				relay.WithLogger(logger.Named("relay")),
				relay.WithOnConnect(func(remote string) {
					fmt.Fprintln(a.stderr, ui.DimStyle.Render("app connected from "+remote))
				}))
			if l == nil {
				return nil, err
			}
			return l, err
		},
		Logger: logger.Named("pipeline"),
	}
}

func (a *app) deploy(cmd *cobra.Command, f deployFlags) error {
	req, err := a.request(f)
	if err != nil {
		return err
	}
	if f.save {
		if err := a.saveConfig(); err != nil {
			return err
		}
	}
	ctx := cmd.Context()

	logFile := &relayLogFile{store: a.store, logger: a.logger}
	defer logFile.Close()

	p := a.pipelineFor(req.Destination, io.MultiWriter(a.stdout, logFile))
	if f.pick && req.Override == "" {
		p.Pick = func(ctx context.Context, candidates []device.Record) (device.Record, error) {
			return picker.Run(ctx, "Deploy to", candidates, a.stdin, a.stderr)
		}
	}

	var listener *relay.Listener
	start := p.StartRelay
	p.StartRelay = func(port int) (pipeline.Relay, error) {
		r, err := start(port)
		if l, ok := r.(*relay.Listener); ok {
			listener = l
		}
		if errors.Is(err, relay.ErrBind) {
			fmt.Fprintln(a.stderr, ui.Warn(fmt.Sprintf("log relay could not bind port %d; continuing without logs", port)))
		}
		return r, err
	}
	p.OnStage = func(s pipeline.Stage) { a.printStage(s, req, listener) }

	out := p.Run(ctx, req)
	a.report(out)
	a.record(out, req, listener, logFile.Name())

	if code := out.ExitCode(); code != 0 {
		return &exitError{code: code}
	}
	return nil
}

func (a *app) printStage(s pipeline.Stage, req pipeline.Request, l *relay.Listener) {
	var detail string
	switch s {
	case pipeline.StageSelecting:
		detail = "finding a " + string(req.Destination)
	case pipeline.StageBuilding:
		detail = fmt.Sprintf("%s build", req.Profile)
	case pipeline.StageInstalling:
		detail = "installing app"
	case pipeline.StageLaunching:
		detail = "launching " + req.BundleID
	case pipeline.StageStreaming:
		if req.NoStream || l.Degraded() {
			return
		}
		detail = fmt.Sprintf("listening on port %d (ctrl+c to stop)", l.Port())
	default:
		return
	}
	fmt.Fprintln(a.stderr, ui.StageLine(string(s), detail))
}

func (a *app) report(out pipeline.Outcome) {
	if out.OK() {
		msg := "deployed to " + out.Device.Display()
		if out.Interrupted {
			msg += ", stopped"
		}
		fmt.Fprintln(a.stderr, ui.SuccessBadge("OK")+" "+msg)
		return
	}

	var diagnostic string
	var se *pipeline.StageError
	if errors.As(out.Err, &se) && se.Err != nil {
		diagnostic = se.Err.Error()
	}
	if out.Reason == pipeline.ReasonInterrupted || out.Reason == pipeline.ReasonCancelled {
		diagnostic = ""
	}
	fmt.Fprintln(a.stderr, ui.Failure(string(out.FailedAt), string(out.Reason), diagnostic))
	if out.Reason == pipeline.ReasonDeviceLocked {
		fmt.Fprintln(a.stderr, ui.LockedGuidance(out.Device.Name, 72))
	}
}

func (a *app) record(out pipeline.Outcome, req pipeline.Request, l *relay.Listener, logFile string) {
	rec := store.DeployRecord{
		AttemptID:   out.AttemptID,
		Device:      out.Device.Core,
		DeviceName:  out.Device.Name,
		Destination: string(req.Destination),
		Profile:     string(req.Profile),
		Timestamp:   out.Started,
		Success:     out.OK(),
		Stage:       string(out.Stage),
		Reason:      string(out.Reason),
		Duration:    out.Duration().Round(100 * time.Millisecond).String(),
		Archs:       out.Artifact.Library.Archs,
		AppPath:     out.Artifact.AppPath,
		ExitCode:    out.ExitCode(),
	}
	if !out.OK() {
		rec.Stage = string(out.FailedAt)
		if out.Err != nil {
			rec.Error = out.Err.Error()
		}
	}
	if err := a.store.AddDeploy(rec); err != nil {
		a.logger.Warn("could not record deploy", zap.Error(err))
	}

	if l == nil || l.Degraded() || l.Sessions() == 0 {
		return
	}
	entry := store.RelayLog{
		AttemptID: out.AttemptID,
		Port:      l.Port(),
		Timestamp: out.Started,
		Sessions:  l.Sessions(),
		Bytes:     l.BytesRelayed(),
		LogFile:   logFile,
	}
	if err := a.store.AddRelayLog(entry); err != nil {
		a.logger.Warn("could not record relay session", zap.Error(err))
	}
}

// relayLogFile tees relayed output into .sideload/logs, creating the file on
// the first write so attempts that never stream leave nothing behind.
type relayLogFile struct {
	store  *store.Store
	logger *zap.Logger
	f      *os.File
	failed bool
}

func (w *relayLogFile) Write(p []byte) (int, error) {
	if w.f == nil && !w.failed {
		f, err := w.store.CreateRelayLog(time.Now())
		if err != nil {
			w.failed = true
			w.logger.Warn("relay log file unavailable", zap.Error(err))
		}
		w.f = f
	}
	if w.f == nil {
		return len(p), nil
	}
	if _, err := w.f.Write(p); err != nil {
		w.logger.Warn("relay log write failed", zap.Error(err))
	}
	// The terminal copy must not stop because the file did.
	return len(p), nil
}

func (w *relayLogFile) Name() string {
	if w.f == nil {
		return ""
	}
	return w.f.Name()
}

func (w *relayLogFile) Close() error {
	if w.f == nil {
		return nil
	}
	return w.f.Close()
}
