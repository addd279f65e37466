package device

import (
	"errors"
	"testing"
)

func rec(id string, r Reachability) Record {
	return Record{CoreID: id, LegacyID: "legacy-" + id, Name: id, Platform: PlatformIOS, Physical: true, Reachability: r}
}

func TestSelectPrefersActive(t *testing.T) {
	got, err := Select([]Record{
		rec("a", ReachabilityActive),
		rec("b", ReachabilityOfflineKnown),
	}, "")
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if got.Core != "a" || got.Legacy != "legacy-a" {
		t.Errorf("got %+v, want device a", got)
	}
}

func TestSelectActiveAfterOthersInCatalogOrder(t *testing.T) {
	got, err := Select([]Record{
		rec("off", ReachabilityOfflineKnown),
		rec("recent", ReachabilityRecentlyDisconnected),
		rec("on1", ReachabilityActive),
		rec("on2", ReachabilityActive),
	}, "")
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if got.Core != "on1" {
		t.Errorf("Core = %q, want on1", got.Core)
	}
}

func TestSelectRecentlyDisconnectedBeatsOffline(t *testing.T) {
	got, err := Select([]Record{
		rec("off", ReachabilityOfflineKnown),
		rec("recent", ReachabilityRecentlyDisconnected),
	}, "")
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if got.Core != "recent" {
		t.Errorf("Core = %q, want recent", got.Core)
	}
}

func TestSelectOnlyOffline(t *testing.T) {
	candidates := []Record{rec("x", ReachabilityOfflineKnown), rec("y", ReachabilityOfflineKnown)}
	got, err := Select(candidates, "")
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if got.Core != "x" && got.Core != "y" {
		t.Errorf("Core = %q, want one of the offline devices", got.Core)
	}
}

func TestSelectEmpty(t *testing.T) {
	_, err := Select(nil, "")
	if !errors.Is(err, ErrNoDeviceFound) {
		t.Fatalf("err = %v, want ErrNoDeviceFound", err)
	}
}

func TestSelectOverrideUsedVerbatim(t *testing.T) {
	got, err := Select([]Record{rec("a", ReachabilityActive)}, "manual-id")
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if got.Core != "manual-id" || got.Legacy != "manual-id" {
		t.Errorf("got %+v, want override in both namespaces", got)
	}
}

func TestSelectOverrideWithoutCandidates(t *testing.T) {
	got, err := Select(nil, "manual-id")
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if got.Core != "manual-id" {
		t.Errorf("Core = %q", got.Core)
	}
}

func TestParseDestination(t *testing.T) {
	if d, err := ParseDestination("simulator"); err != nil || d != DestinationSimulator {
		t.Errorf("ParseDestination(simulator) = %q, %v", d, err)
	}
	if _, err := ParseDestination("watch"); err == nil {
		t.Error("expected error for unknown destination")
	}
}
