package artifact

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/shirou/gopsutil/v3/host"

	"github.com/buckleypaul/sideload/internal/device"
)

// Profile selects the optimization level of a build.
type Profile string

const (
	ProfileDebug   Profile = "debug"
	ProfileRelease Profile = "release"
)

// ParseProfile validates a profile name.
func ParseProfile(s string) (Profile, error) {
	switch Profile(s) {
	case ProfileDebug, ProfileRelease:
		return Profile(s), nil
	}
	return "", fmt.Errorf("unknown profile %q (want %q or %q)", s, ProfileDebug, ProfileRelease)
}

// Configuration returns the Xcode configuration name for p.
func (p Profile) Configuration() string {
	if p == ProfileRelease {
		return "Release"
	}
	return "Debug"
}

// Variant is the platform flavour a target is compiled for.
type Variant string

const (
	VariantDevice    Variant = "device"
	VariantSimulator Variant = "simulator"
)

// Target is one (architecture, variant) pair the library is compiled for.
type Target struct {
	Arch    string // lipo architecture name: arm64, x86_64
	Variant Variant
	Triple  string // rustc target triple
}

func (t Target) String() string {
	return fmt.Sprintf("%s-%s", t.Variant, t.Arch)
}

var (
	DeviceArm64    = Target{Arch: "arm64", Variant: VariantDevice, Triple: "aarch64-apple-ios"}
	SimulatorArm64 = Target{Arch: "arm64", Variant: VariantSimulator, Triple: "aarch64-apple-ios-sim"}
	SimulatorX8664 = Target{Arch: "x86_64", Variant: VariantSimulator, Triple: "x86_64-apple-ios"}
)

// TargetsFor returns the targets a deployment to dest needs. Simulator
// deployments build only the host architecture unless universal is set or
// the host architecture is not one a simulator runs.
func TargetsFor(dest device.Destination, hostArch string, universal bool) []Target {
	if dest == device.DestinationDevice {
		return []Target{DeviceArm64}
	}
	all := []Target{SimulatorArm64, SimulatorX8664}
	if universal {
		return all
	}
	for _, t := range all {
		if t.Arch == hostArch {
			return []Target{t}
		}
	}
	return all
}

// HostArch returns the host CPU architecture in lipo naming.
func HostArch() string {
	arch, err := host.KernelArch()
	if err != nil || arch == "" {
		arch = runtime.GOARCH
	}
	return normalizeArch(arch)
}

func normalizeArch(arch string) string {
	switch strings.ToLower(strings.TrimSpace(arch)) {
	case "arm64", "aarch64":
		return "arm64"
	case "x86_64", "amd64", "x64":
		return "x86_64"
	default:
		return arch
	}
}
