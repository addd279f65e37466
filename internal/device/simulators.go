package device

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/buckleypaul/sideload/internal/runner"
)

type simctlDevice struct {
	UDID        string `json:"udid"`
	Name        string `json:"name"`
	State       string `json:"state"`
	IsAvailable bool   `json:"isAvailable"`
}

type simctlDevices struct {
	Devices map[string][]simctlDevice `json:"devices"`
}

// ListSimulators returns available simulators for platform, booted ones
// first. Simulators have a single UDID that both the build destination and
// simctl accept, so it fills both identity slots.
func (c *Catalog) ListSimulators(ctx context.Context, platform string) ([]Record, error) {
	res := c.runner.Run(ctx, runner.Command{
		Name: "xcrun",
		Args: []string{"simctl", "list", "devices", "available", "--json"},
	})
	if res.Cancelled() {
		return nil, res.Err
	}
	if !res.OK() {
		c.logger.Warn("simulator listing failed",
			zap.Int("exit_code", res.ExitCode),
			zap.Error(res.Err),
			zap.String("output", strings.TrimSpace(res.Output)))
		return nil, nil
	}
	return parseSimulatorList([]byte(res.Output), platform), nil
}

func parseSimulatorList(data []byte, platform string) []Record {
	var list simctlDevices
	if err := json.Unmarshal(data, &list); err != nil {
		return nil
	}

	// Map iteration order is random; runtimes sort so newer OS versions
	// come last within a platform, which keeps the listing stable.
	runtimes := make([]string, 0, len(list.Devices))
	for rt := range list.Devices {
		runtimes = append(runtimes, rt)
	}
	sort.Strings(runtimes)

	var booted, shutdown []Record
	for _, rt := range runtimes {
		rtPlatform := runtimePlatform(rt)
		if platform != "" && !strings.EqualFold(rtPlatform, platform) {
			continue
		}
		for _, d := range list.Devices[rt] {
			if !d.IsAvailable || d.UDID == "" {
				continue
			}
			rec := Record{
				CoreID:       d.UDID,
				LegacyID:     d.UDID,
				Name:         d.Name,
				Platform:     rtPlatform,
				Reachability: ReachabilityOfflineKnown,
			}
			if strings.EqualFold(d.State, "Booted") {
				rec.Reachability = ReachabilityActive
				booted = append(booted, rec)
				continue
			}
			shutdown = append(shutdown, rec)
		}
	}
	return append(booted, shutdown...)
}

// runtimePlatform extracts "iOS" from "com.apple.CoreSimulator.SimRuntime.iOS-17-2".
func runtimePlatform(runtime string) string {
	name := runtime
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.IndexByte(name, '-'); i >= 0 {
		name = name[:i]
	}
	return name
}
