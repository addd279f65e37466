package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestAddAndRetrieveDeploys(t *testing.T) {
	s := New(t.TempDir())

	record := DeployRecord{
		AttemptID:   "6f1c3c1e-4f0e-4b7a-9a55-3f2b3a1d2c4e",
		Device:      "1C0FFEE0-0000-4B1D-9A77-BBBBBBBBBBBB",
		DeviceName:  "Pocket iPhone",
		Destination: "device",
		Profile:     "debug",
		Timestamp:   time.Now(),
		Success:     true,
		Stage:       "terminated",
		Duration:    "41.2s",
		Archs:       []string{"arm64"},
	}

	if err := s.AddDeploy(record); err != nil {
		t.Fatalf("AddDeploy failed: %v", err)
	}

	deploys, err := s.Deploys()
	if err != nil {
		t.Fatalf("Deploys failed: %v", err)
	}
	if len(deploys) != 1 {
		t.Fatalf("expected 1 deploy, got %d", len(deploys))
	}
	if deploys[0].DeviceName != "Pocket iPhone" {
		t.Errorf("expected device_name=Pocket iPhone, got=%s", deploys[0].DeviceName)
	}
	if _, err := os.Stat(filepath.Join(s.Root(), "history", "deploys.json")); err != nil {
		t.Errorf("history file missing: %v", err)
	}
}

func TestRecentDeploysNewestFirst(t *testing.T) {
	s := New(t.TempDir())
	for _, id := range []string{"a", "b", "c"} {
		if err := s.AddDeploy(DeployRecord{AttemptID: id, Timestamp: time.Now()}); err != nil {
			t.Fatalf("AddDeploy: %v", err)
		}
	}

	recent, err := s.RecentDeploys(2)
	if err != nil {
		t.Fatalf("RecentDeploys: %v", err)
	}
	if len(recent) != 2 || recent[0].AttemptID != "c" || recent[1].AttemptID != "b" {
		t.Errorf("unexpected order: %+v", recent)
	}

	all, _ := s.RecentDeploys(0)
	if len(all) != 3 {
		t.Errorf("expected 3 records with no limit, got %d", len(all))
	}
}

func TestRelayLogs(t *testing.T) {
	s := New(t.TempDir())
	now := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

	f, err := s.CreateRelayLog(now)
	if err != nil {
		t.Fatalf("CreateRelayLog: %v", err)
	}
	f.WriteString("05:06:07.000 INFO [app] started\n")
	f.Close()

	if !strings.HasSuffix(f.Name(), "relay-20260304-050607.log") {
		t.Errorf("unexpected log name %s", f.Name())
	}

	if err := s.AddRelayLog(RelayLog{Port: 9631, Timestamp: now, LogFile: f.Name(), Sessions: 2, Bytes: 33}); err != nil {
		t.Fatalf("AddRelayLog: %v", err)
	}
	logs, err := s.RelayLogs()
	if err != nil {
		t.Fatalf("RelayLogs: %v", err)
	}
	if len(logs) != 1 || logs[0].Sessions != 2 {
		t.Errorf("unexpected relay logs: %+v", logs)
	}
}

func TestCorruptHistoryIsNotOverwritten(t *testing.T) {
	s := New(t.TempDir())
	dir := filepath.Join(s.Root(), "history")
	os.MkdirAll(dir, 0o755)
	path := filepath.Join(dir, "deploys.json")
	os.WriteFile(path, []byte("{not json"), 0o644)

	if err := s.AddDeploy(DeployRecord{AttemptID: "x"}); err == nil {
		t.Fatal("expected error appending to corrupt history")
	}
	data, _ := os.ReadFile(path)
	if string(data) != "{not json" {
		t.Errorf("corrupt file was modified: %q", data)
	}
}

func TestEmptyStore(t *testing.T) {
	s := New(t.TempDir())

	deploys, err := s.Deploys()
	if err != nil {
		t.Fatalf("Deploys on empty store failed: %v", err)
	}
	if len(deploys) != 0 {
		t.Errorf("expected 0 deploys, got %d", len(deploys))
	}
}
