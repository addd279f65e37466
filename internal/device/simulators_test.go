package device

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buckleypaul/sideload/internal/runner"
	"github.com/buckleypaul/sideload/internal/runner/runnertest"
)

const simctlFixture = `{
  "devices": {
    "com.apple.CoreSimulator.SimRuntime.iOS-17-2": [
      {"udid": "AAAA-1", "name": "iPhone 15", "state": "Shutdown", "isAvailable": true},
      {"udid": "AAAA-2", "name": "iPhone 15 Pro", "state": "Booted", "isAvailable": true},
      {"udid": "AAAA-3", "name": "iPhone SE", "state": "Shutdown", "isAvailable": false}
    ],
    "com.apple.CoreSimulator.SimRuntime.watchOS-10-2": [
      {"udid": "WWWW-1", "name": "Apple Watch", "state": "Booted", "isAvailable": true}
    ]
  }
}`

func TestParseSimulatorList(t *testing.T) {
	got := parseSimulatorList([]byte(simctlFixture), PlatformIOS)
	require.Len(t, got, 2)

	assert.Equal(t, "AAAA-2", got[0].CoreID, "booted simulator listed first")
	assert.Equal(t, ReachabilityActive, got[0].Reachability)
	assert.Equal(t, got[0].CoreID, got[0].LegacyID)
	assert.False(t, got[0].Physical)

	assert.Equal(t, "AAAA-1", got[1].CoreID)
	assert.Equal(t, ReachabilityOfflineKnown, got[1].Reachability)
}

func TestParseSimulatorListMalformed(t *testing.T) {
	assert.Empty(t, parseSimulatorList([]byte("{"), PlatformIOS))
}

func TestRuntimePlatform(t *testing.T) {
	assert.Equal(t, "iOS", runtimePlatform("com.apple.CoreSimulator.SimRuntime.iOS-17-2"))
	assert.Equal(t, "watchOS", runtimePlatform("com.apple.CoreSimulator.SimRuntime.watchOS-10-2"))
	assert.Equal(t, "iOS", runtimePlatform("iOS"))
}

func TestCandidatesDispatchesOnDestination(t *testing.T) {
	fake := runnertest.New().On("xcrun simctl list", runner.Result{Output: simctlFixture})
	cat := NewCatalog(fake, nil)

	records, err := cat.Candidates(context.Background(), DestinationSimulator, PlatformIOS)
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Len(t, fake.CallsTo("xcrun simctl list devices available --json"), 1)
	assert.Empty(t, fake.CallsTo("xcrun devicectl"))
}
