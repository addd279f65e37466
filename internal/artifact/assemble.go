package artifact

import (
	"context"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/buckleypaul/sideload/internal/device"
)

// Request describes one artifact build for a deployment.
type Request struct {
	Destination device.Destination
	LegacyID    string
	Profile     Profile
	LogPort     int
	LogLevel    string
	Universal   bool

	// Signing overrides for device builds; empty keeps the AppBuilder's.
	Team            string
	SigningIdentity string
}

// Result is a ready-to-install app and the library inside it.
type Result struct {
	Library Descriptor
	AppPath string
}

// Assembler runs the library build followed by the app build.
type Assembler struct {
	Library    *Builder
	App        *AppBuilder
	HostArch   func() string
	Interfaces InterfaceLister
	Logger     *zap.Logger
}

// Assemble builds everything needed to install on the selected device.
func (a *Assembler) Assemble(ctx context.Context, req Request) (Result, error) {
	logger := a.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	hostArch := a.HostArch
	if hostArch == nil {
		hostArch = HostArch
	}

	relay := RelayAddress(req.Destination, req.LogPort, a.Interfaces)
	if relay == "" {
		logger.Warn("no LAN address found, app will run without log relay")
	} else {
		logger.Info("embedding log relay address", zap.String("addr", relay))
	}

	targets := TargetsFor(req.Destination, hostArch(), req.Universal)
	lib, err := a.Library.Build(ctx, targets, req.Profile, RelayEnv(relay, req.LogLevel))
	if err != nil {
		return Result{}, err
	}
	if a.App == nil {
		return Result{Library: lib}, nil
	}

	appBuilder := *a.App
	if req.Team != "" {
		appBuilder.Team = req.Team
	}
	if req.SigningIdentity != "" {
		appBuilder.SigningIdentity = req.SigningIdentity
	}
	app, err := appBuilder.Build(ctx, req.Destination, req.LegacyID, req.Profile, filepath.Dir(lib.Path))
	if err != nil {
		return Result{}, err
	}
	return Result{Library: lib, AppPath: app}, nil
}
