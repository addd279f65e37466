package pipeline

import (
	"errors"
	"fmt"

	"github.com/buckleypaul/sideload/internal/artifact"
	"github.com/buckleypaul/sideload/internal/device"
	"github.com/buckleypaul/sideload/internal/picker"
)

// Reason names why a deployment failed.
type Reason string

const (
	ReasonNone            Reason = ""
	ReasonNoDevice        Reason = "no-device"
	ReasonPortClaimed     Reason = "port-claimed"
	ReasonToolchain       Reason = "toolchain-unavailable"
	ReasonCompile         Reason = "compile-error"
	ReasonArtifactMissing Reason = "artifact-missing"
	ReasonMerge           Reason = "merge-failed"
	ReasonInstall         Reason = "install-failed"
	ReasonLaunch          Reason = "launch-failed"
	ReasonDeviceLocked    Reason = "device-locked"
	ReasonInterrupted     Reason = "interrupted"
	ReasonCancelled       Reason = "cancelled"
	ReasonInternal        Reason = "internal-error"
)

// StageError is the error carried by a failed Outcome.
type StageError struct {
	Stage  Stage
	Reason Reason
	Err    error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed (%s): %v", e.Stage, e.Reason, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// classify maps a stage's error onto a Reason.
func classify(stage Stage, err error) Reason {
	switch {
	case isInterrupt(err):
		return ReasonInterrupted
	case errors.Is(err, picker.ErrCancelled):
		return ReasonCancelled
	case errors.Is(err, device.ErrNoDeviceFound):
		return ReasonNoDevice
	case errors.Is(err, artifact.ErrToolchainUnavailable):
		return ReasonToolchain
	case errors.Is(err, artifact.ErrArtifactMissing):
		return ReasonArtifactMissing
	case errors.Is(err, artifact.ErrMerge):
		return ReasonMerge
	case errors.Is(err, device.ErrDeviceLocked):
		return ReasonDeviceLocked
	case errors.Is(err, device.ErrLaunchFailed):
		return ReasonLaunch
	case errors.Is(err, device.ErrInstallFailed):
		return ReasonInstall
	}
	switch stage {
	case StageBuilding:
		return ReasonCompile
	case StageInstalling:
		return ReasonInstall
	case StageLaunching:
		return ReasonLaunch
	case StageSelecting:
		return ReasonNoDevice
	}
	return ReasonInternal
}
