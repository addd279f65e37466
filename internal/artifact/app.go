package artifact

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/buckleypaul/sideload/internal/device"
	"github.com/buckleypaul/sideload/internal/runner"
)

// AppBuilder packages the assembled library into an app bundle with xcodebuild.
type AppBuilder struct {
	Runner          runner.Runner
	Project         string // path to the .xcodeproj
	Scheme          string
	Product         string // bundle name without .app; defaults to Scheme
	DerivedData     string
	Team            string
	SigningIdentity string
	Logger          *zap.Logger
}

// Build runs xcodebuild against the device's legacy identifier and returns
// the path of the produced .app. libDir is added to the library search path
// so the project links the freshly assembled library.
func (a *AppBuilder) Build(ctx context.Context, dest device.Destination, legacyID string, profile Profile, libDir string) (string, error) {
	logger := a.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if _, err := a.Runner.LookPath("xcodebuild"); err != nil {
		return "", &BuildError{Kind: ErrToolchainUnavailable, Target: "app", Err: err, Hint: "install Xcode and run xcode-select --install"}
	}

	args := []string{
		"-project", a.Project,
		"-scheme", a.Scheme,
		"-configuration", profile.Configuration(),
		"-destination", "id=" + legacyID,
		"-derivedDataPath", a.DerivedData,
	}
	if libDir != "" {
		args = append(args, "LIBRARY_SEARCH_PATHS=$(inherited) "+libDir)
	}
	// Simulator builds are signed ad hoc by Xcode.
	if dest == device.DestinationDevice {
		if a.Team != "" {
			args = append(args, "DEVELOPMENT_TEAM="+a.Team)
		}
		if a.SigningIdentity != "" {
			args = append(args, "CODE_SIGN_IDENTITY="+a.SigningIdentity)
		}
	}
	args = append(args, "build")

	logger.Info("building app", zap.String("scheme", a.Scheme), zap.String("destination", legacyID))
	res := a.Runner.Run(ctx, runner.Command{Name: "xcodebuild", Args: args})
	switch {
	case res.Cancelled():
		return "", res.Err
	case !res.OK():
		return "", &BuildError{Kind: ErrCompile, Target: "app", Output: res.Output, Err: res.Err}
	}

	path := a.ProductPath(dest, profile)
	if _, err := verifyOutput(path, "app"); err != nil {
		return "", err
	}
	return path, nil
}

// ProductPath is where xcodebuild leaves the bundle for dest and profile.
func (a *AppBuilder) ProductPath(dest device.Destination, profile Profile) string {
	sdk := "iphoneos"
	if dest == device.DestinationSimulator {
		sdk = "iphonesimulator"
	}
	product := a.Product
	if product == "" {
		product = a.Scheme
	}
	return filepath.Join(a.DerivedData, "Build", "Products",
		fmt.Sprintf("%s-%s", profile.Configuration(), sdk), product+".app")
}
