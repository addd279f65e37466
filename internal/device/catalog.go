package device

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/buckleypaul/sideload/internal/runner"
)

// devicectl list devices --json-output shape, reduced to the fields sideload reads.
type devicectlList struct {
	Result struct {
		Devices []devicectlDevice `json:"devices"`
	} `json:"result"`
}

type devicectlDevice struct {
	Identifier           string `json:"identifier"`
	ConnectionProperties struct {
		PairingState string `json:"pairingState"`
		TunnelState  string `json:"tunnelState"`
	} `json:"connectionProperties"`
	DeviceProperties struct {
		Name string `json:"name"`
	} `json:"deviceProperties"`
	HardwareProperties struct {
		Platform string `json:"platform"`
		Reality  string `json:"reality"`
		UDID     string `json:"udid"`
	} `json:"hardwareProperties"`
}

// Catalog queries the host's device tooling.
type Catalog struct {
	runner runner.Runner
	logger *zap.Logger
}

// NewCatalog returns a Catalog issuing queries through r.
func NewCatalog(r runner.Runner, logger *zap.Logger) *Catalog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Catalog{runner: r, logger: logger.Named("catalog")}
}

// Candidates lists the devices a deployment to dest may target.
func (c *Catalog) Candidates(ctx context.Context, dest Destination, platform string) ([]Record, error) {
	if dest == DestinationSimulator {
		return c.ListSimulators(ctx, platform)
	}
	return c.ListPhysicalDevices(ctx, platform)
}

// ListPhysicalDevices runs one devicectl query and returns the physical
// devices for platform in the order devicectl reported them. A failed query
// or unreadable output yields no devices; only cancellation is an error.
func (c *Catalog) ListPhysicalDevices(ctx context.Context, platform string) ([]Record, error) {
	tmp, err := os.MkdirTemp("", "sideload-devices-")
	if err != nil {
		c.logger.Warn("cannot create temp dir for device listing", zap.Error(err))
		return nil, nil
	}
	defer os.RemoveAll(tmp)

	outPath := filepath.Join(tmp, "devices.json")
	res := c.runner.Run(ctx, runner.Command{
		Name: "xcrun",
		Args: []string{"devicectl", "list", "devices", "--quiet", "--json-output", outPath},
	})
	if res.Cancelled() {
		return nil, res.Err
	}
	if !res.OK() {
		c.logger.Warn("device listing failed",
			zap.Int("exit_code", res.ExitCode),
			zap.Error(res.Err),
			zap.String("output", strings.TrimSpace(res.Output)))
		return nil, nil
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		c.logger.Warn("device listing produced no output file", zap.Error(err))
		return nil, nil
	}

	records := parseDeviceList(data, platform)
	c.logger.Debug("devices listed", zap.Int("count", len(records)))
	return records, nil
}

// parseDeviceList converts devicectl JSON into records, dropping entries that
// are virtual, on another platform, or missing either identifier. Malformed
// input returns nil.
func parseDeviceList(data []byte, platform string) []Record {
	var list devicectlList
	if err := json.Unmarshal(data, &list); err != nil {
		return nil
	}

	var records []Record
	for _, d := range list.Result.Devices {
		hw := d.HardwareProperties
		if !strings.EqualFold(hw.Reality, "physical") {
			continue
		}
		if platform != "" && !strings.EqualFold(hw.Platform, platform) {
			continue
		}
		if d.Identifier == "" || hw.UDID == "" {
			continue
		}
		name := d.DeviceProperties.Name
		if name == "" {
			name = d.Identifier
		}
		records = append(records, Record{
			CoreID:       d.Identifier,
			LegacyID:     hw.UDID,
			Name:         name,
			Platform:     hw.Platform,
			Physical:     true,
			Reachability: classifyTunnel(d.ConnectionProperties.TunnelState),
		})
	}
	return records
}

func classifyTunnel(state string) Reachability {
	switch strings.ToLower(state) {
	case "connected":
		return ReachabilityActive
	case "disconnected":
		return ReachabilityRecentlyDisconnected
	default:
		return ReachabilityOfflineKnown
	}
}
