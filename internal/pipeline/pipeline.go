// Package pipeline sequences a deployment: pick a device, start the log
// relay, build, install, launch, then stream logs until the operator stops.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/buckleypaul/sideload/internal/artifact"
	"github.com/buckleypaul/sideload/internal/device"
	"github.com/buckleypaul/sideload/internal/relay"
)

// DeviceSource lists deploy candidates.
type DeviceSource interface {
	Candidates(ctx context.Context, dest device.Destination, platform string) ([]device.Record, error)
}

// Builder produces an installable app for the selected device.
type Builder interface {
	Assemble(ctx context.Context, req artifact.Request) (artifact.Result, error)
}

// DeviceControl installs and launches on a device by its core identifier.
type DeviceControl interface {
	Install(ctx context.Context, coreID, appPath string) error
	Launch(ctx context.Context, coreID, bundleID string) error
}

// Relay is a running log listener.
type Relay interface {
	Done() <-chan struct{}
	Stop() error
	Degraded() bool
	Port() int
}

// RelayFunc starts a listener on port.
type RelayFunc func(port int) (Relay, error)

// PickFunc lets the operator choose among candidates.
type PickFunc func(ctx context.Context, candidates []device.Record) (device.Record, error)

// Request is one deployment attempt. It is not modified by Run.
type Request struct {
	Destination     device.Destination
	Platform        string
	Override        string
	Profile         artifact.Profile
	Team            string
	SigningIdentity string
	BundleID        string
	LogPort         int
	LogLevel        string
	Universal       bool
	NoStream        bool
}

// Outcome summarizes a finished attempt.
type Outcome struct {
	AttemptID     string
	Stage         Stage // StageTerminated or StageFailed
	FailedAt      Stage
	Reason        Reason
	Err           error
	Device        device.Identity
	Artifact      artifact.Result
	RelayDegraded bool
	Interrupted   bool
	History       []Stage
	Started       time.Time
	Finished      time.Time
}

// OK reports whether the attempt ended without failure.
func (o Outcome) OK() bool {
	return o.Stage == StageTerminated
}

// Duration is the wall time of the attempt.
func (o Outcome) Duration() time.Duration {
	return o.Finished.Sub(o.Started)
}

// Exit statuses returned by ExitCode.
const (
	ExitOK           = 0
	ExitInternal     = 1
	ExitSelecting    = 2
	ExitBuilding     = 3
	ExitInstalling   = 4
	ExitLaunching    = 5
	ExitDeviceLocked = 6
	ExitInterrupted  = 130
)

// ExitCode maps the outcome onto a process exit status.
func (o Outcome) ExitCode() int {
	if o.OK() {
		return ExitOK
	}
	switch o.Reason {
	case ReasonInterrupted, ReasonCancelled:
		return ExitInterrupted
	case ReasonDeviceLocked:
		return ExitDeviceLocked
	case ReasonInternal:
		return ExitInternal
	}
	switch o.FailedAt {
	case StageSelecting:
		return ExitSelecting
	case StageBuilding:
		return ExitBuilding
	case StageInstalling:
		return ExitInstalling
	case StageLaunching:
		return ExitLaunching
	}
	return ExitInternal
}

// Pipeline holds the collaborators a deployment drives.
type Pipeline struct {
	Devices    DeviceSource
	Builder    Builder
	Control    DeviceControl
	StartRelay RelayFunc
	Pick       PickFunc
	OnStage    func(Stage)
	Logger     *zap.Logger
}

// run is the state for one attempt.
type run struct {
	p        *Pipeline
	logger   *zap.Logger
	m        *machine
	out      *Outcome
	listener Relay
	stopOnce sync.Once
}

// Run executes one deployment attempt. The listener, if one was started, is
// stopped exactly once before Run returns, on every path including panics.
func (p *Pipeline) Run(ctx context.Context, req Request) (out Outcome) {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	out = Outcome{AttemptID: uuid.NewString(), Started: time.Now()}
	r := &run{p: p, m: newMachine(p.OnStage), out: &out}
	r.logger = logger.With(zap.String("attempt", out.AttemptID))

	defer func() {
		if v := recover(); v != nil {
			r.logger.Error("deployment panicked", zap.Any("panic", v), zap.Stack("stack"))
			if !r.m.current.IsTerminal() {
				r.fail(ReasonInternal, fmt.Errorf("internal error: %v", v))
			}
		}
		r.cleanup()
		out.History = append([]Stage(nil), r.m.history...)
		out.Finished = time.Now()
	}()

	r.execute(ctx, req)
	return out
}

func (r *run) execute(ctx context.Context, req Request) {
	r.advance(StageSelecting)
	id, err := r.selectDevice(ctx, req)
	if err != nil {
		r.failWith(err)
		return
	}
	r.out.Device = id
	r.logger.Info("device selected", zap.String("core", id.Core), zap.String("legacy", id.Legacy))

	if err := r.startRelay(req.LogPort); err != nil {
		r.fail(ReasonPortClaimed, err)
		return
	}
	if ctx.Err() != nil {
		r.failWith(ctx.Err())
		return
	}

	r.advance(StageBuilding)
	res, err := r.p.Builder.Assemble(ctx, artifact.Request{
		Destination:     req.Destination,
		LegacyID:        id.Legacy,
		Profile:         req.Profile,
		LogPort:         r.relayPort(req.LogPort),
		LogLevel:        req.LogLevel,
		Universal:       req.Universal,
		Team:            req.Team,
		SigningIdentity: req.SigningIdentity,
	})
	if err != nil {
		r.failWith(err)
		return
	}
	r.out.Artifact = res

	r.advance(StageInstalling)
	if err := r.p.Control.Install(ctx, id.Core, res.AppPath); err != nil {
		r.failWith(err)
		return
	}

	r.advance(StageLaunching)
	if err := r.p.Control.Launch(ctx, id.Core, req.BundleID); err != nil {
		r.failWith(err)
		return
	}

	r.advance(StageStreaming)
	if !req.NoStream && r.listener != nil && !r.listener.Degraded() {
		select {
		case <-ctx.Done():
			r.out.Interrupted = true
			r.logger.Info("interrupted while streaming")
		case <-r.listener.Done():
			r.logger.Info("log relay ended")
		}
	}
	r.advance(StageTerminated)
	r.cleanup()
}

func (r *run) selectDevice(ctx context.Context, req Request) (device.Identity, error) {
	if req.Override != "" {
		return device.Select(nil, req.Override)
	}
	candidates, err := r.p.Devices.Candidates(ctx, req.Destination, req.Platform)
	if err != nil {
		return device.Identity{}, err
	}
	if r.p.Pick != nil && len(candidates) > 0 {
		rec, err := r.p.Pick(ctx, candidates)
		if err != nil {
			return device.Identity{}, err
		}
		return device.IdentityOf(rec), nil
	}
	return device.Select(candidates, "")
}

// startRelay returns an error only when the port is held by another
// attempt. Any other failure leaves the deployment running without logs.
func (r *run) startRelay(port int) error {
	if r.p.StartRelay == nil {
		r.out.RelayDegraded = true
		return nil
	}
	l, err := r.p.StartRelay(port)
	if errors.Is(err, relay.ErrPortClaimed) {
		return err
	}
	r.listener = l
	if err != nil || l == nil || l.Degraded() {
		r.out.RelayDegraded = true
		r.logger.Warn("continuing without log relay", zap.Int("port", port), zap.Error(err))
	}
	return nil
}

// relayPort is the port the app should dial: the bound one when the
// listener is up, which differs from requested when that was 0.
func (r *run) relayPort(requested int) int {
	if r.listener == nil || r.listener.Degraded() {
		return requested
	}
	return r.listener.Port()
}

func (r *run) advance(next Stage) {
	if err := r.m.to(next); err != nil {
		panic(err)
	}
}

func (r *run) failWith(err error) {
	r.fail(classify(r.m.current, err), err)
}

func (r *run) fail(reason Reason, err error) {
	stage := r.m.current
	if err := r.m.to(StageFailed); err != nil {
		// Only reachable from a panic before selection started.
		r.m.current = StageFailed
		r.m.history = append(r.m.history, StageFailed)
	}
	r.out.Stage = StageFailed
	r.out.FailedAt = stage
	r.out.Reason = reason
	r.out.Err = &StageError{Stage: stage, Reason: reason, Err: err}
	r.logger.Warn("deployment failed", zap.String("stage", string(stage)), zap.String("reason", string(reason)), zap.Error(err))
	r.cleanup()
}

func (r *run) cleanup() {
	if r.m.current == StageTerminated {
		r.out.Stage = StageTerminated
	}
	r.stopOnce.Do(func() {
		if r.listener == nil {
			return
		}
		if err := r.listener.Stop(); err != nil {
			r.logger.Warn("log relay stop", zap.Error(err))
		}
	})
}

func isInterrupt(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
