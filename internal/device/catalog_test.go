package device

import (
	"context"
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buckleypaul/sideload/internal/runner"
	"github.com/buckleypaul/sideload/internal/runner/runnertest"
)

const devicectlFixture = `{
  "info": {"outcome": "success"},
  "result": {
    "devices": [
      {
        "identifier": "8F2C1A6E-0000-4B1D-9A77-AAAAAAAAAAAA",
        "connectionProperties": {"pairingState": "paired", "tunnelState": "disconnected"},
        "deviceProperties": {"name": "Desk iPad"},
        "hardwareProperties": {"platform": "iOS", "reality": "physical", "udid": "00008103-000A1B2C3D4E"}
      },
      {
        "identifier": "1C0FFEE0-0000-4B1D-9A77-BBBBBBBBBBBB",
        "connectionProperties": {"pairingState": "paired", "tunnelState": "connected"},
        "deviceProperties": {"name": "Pocket iPhone"},
        "hardwareProperties": {"platform": "iOS", "reality": "physical", "udid": "00008110-001122334455"}
      },
      {
        "identifier": "22222222-0000-4B1D-9A77-CCCCCCCCCCCC",
        "connectionProperties": {"pairingState": "paired", "tunnelState": "unavailable"},
        "deviceProperties": {"name": "Old iPhone"},
        "hardwareProperties": {"platform": "iOS", "reality": "physical", "udid": "00008020-AABBCCDDEEFF"}
      },
      {
        "identifier": "33333333-0000-4B1D-9A77-DDDDDDDDDDDD",
        "connectionProperties": {"tunnelState": "connected"},
        "deviceProperties": {"name": "Wrist"},
        "hardwareProperties": {"platform": "watchOS", "reality": "physical", "udid": "00008301-0000000000"}
      },
      {
        "identifier": "44444444-0000-4B1D-9A77-EEEEEEEEEEEE",
        "connectionProperties": {"tunnelState": "connected"},
        "deviceProperties": {"name": "Virtual"},
        "hardwareProperties": {"platform": "iOS", "reality": "virtual", "udid": "ABCDEF"}
      },
      {
        "identifier": "55555555-0000-4B1D-9A77-FFFFFFFFFFFF",
        "connectionProperties": {"tunnelState": "connected"},
        "deviceProperties": {"name": "No UDID"},
        "hardwareProperties": {"platform": "iOS", "reality": "physical"}
      }
    ]
  }
}`

func TestParseDeviceList(t *testing.T) {
	got := parseDeviceList([]byte(devicectlFixture), PlatformIOS)
	want := []Record{
		{
			CoreID:       "8F2C1A6E-0000-4B1D-9A77-AAAAAAAAAAAA",
			LegacyID:     "00008103-000A1B2C3D4E",
			Name:         "Desk iPad",
			Platform:     "iOS",
			Physical:     true,
			Reachability: ReachabilityRecentlyDisconnected,
		},
		{
			CoreID:       "1C0FFEE0-0000-4B1D-9A77-BBBBBBBBBBBB",
			LegacyID:     "00008110-001122334455",
			Name:         "Pocket iPhone",
			Platform:     "iOS",
			Physical:     true,
			Reachability: ReachabilityActive,
		},
		{
			CoreID:       "22222222-0000-4B1D-9A77-CCCCCCCCCCCC",
			LegacyID:     "00008020-AABBCCDDEEFF",
			Name:         "Old iPhone",
			Platform:     "iOS",
			Physical:     true,
			Reachability: ReachabilityOfflineKnown,
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("parseDeviceList mismatch (-want +got):\n%s", diff)
	}
}

func TestParseDeviceListMalformed(t *testing.T) {
	for name, input := range map[string]string{
		"empty":     "",
		"garbage":   "not json at all",
		"truncated": `{"result": {"devices": [`,
		"no result": `{"info": {}}`,
	} {
		t.Run(name, func(t *testing.T) {
			assert.Empty(t, parseDeviceList([]byte(input), PlatformIOS))
		})
	}
}

func TestClassifyTunnel(t *testing.T) {
	cases := map[string]Reachability{
		"connected":    ReachabilityActive,
		"Connected":    ReachabilityActive,
		"disconnected": ReachabilityRecentlyDisconnected,
		"unavailable":  ReachabilityOfflineKnown,
		"":             ReachabilityOfflineKnown,
	}
	for in, want := range cases {
		if got := classifyTunnel(in); got != want {
			t.Errorf("classifyTunnel(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestListPhysicalDevicesReadsJSONOutput(t *testing.T) {
	fake := runnertest.New().Handle(func(cmd runner.Command) (runner.Result, bool) {
		path := runnertest.ArgAfter(cmd, "--json-output")
		if path == "" {
			return runner.Result{}, false
		}
		if err := os.WriteFile(path, []byte(devicectlFixture), 0o644); err != nil {
			return runner.Result{ExitCode: 1, Output: err.Error()}, true
		}
		return runner.Result{}, true
	})

	records, err := NewCatalog(fake, nil).ListPhysicalDevices(context.Background(), PlatformIOS)
	require.NoError(t, err)
	assert.Len(t, records, 3)
	assert.Len(t, fake.Calls(), 1, "one query per call")
}

func TestListPhysicalDevicesToolFailureYieldsNone(t *testing.T) {
	fake := runnertest.New().On("xcrun devicectl", runner.Result{ExitCode: 1, Output: "ERROR: no developer dir"})

	records, err := NewCatalog(fake, nil).ListPhysicalDevices(context.Background(), PlatformIOS)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestListPhysicalDevicesMissingOutputFileYieldsNone(t *testing.T) {
	records, err := NewCatalog(runnertest.New(), nil).ListPhysicalDevices(context.Background(), PlatformIOS)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestListPhysicalDevicesCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewCatalog(runnertest.New(), nil).ListPhysicalDevices(ctx, PlatformIOS)
	assert.ErrorIs(t, err, context.Canceled)
}
