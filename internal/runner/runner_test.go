//go:build !windows

package runner

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestRunReportsExitCode(t *testing.T) {
	r := New(nil)
	res := r.Run(context.Background(), Command{Name: "sh", Args: []string{"-c", "echo boom; exit 3"}})

	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if res.ExitCode != 3 {
		t.Fatalf("expected exit code 3, got %d", res.ExitCode)
	}
	if !strings.Contains(res.Output, "boom") {
		t.Fatalf("expected output to contain boom, got %q", res.Output)
	}
	if res.OK() {
		t.Fatal("expected OK() to be false for non-zero exit")
	}
}

func TestRunPassesExtraEnvAndDir(t *testing.T) {
	dir := t.TempDir()
	r := New(nil)
	res := r.Run(context.Background(), Command{
		Name: "sh",
		Args: []string{"-c", `echo "$SIDELOAD_TEST_VALUE"; pwd`},
		Env:  []string{"SIDELOAD_TEST_VALUE=relay"},
		Dir:  dir,
	})

	if !res.OK() {
		t.Fatalf("command failed: %+v", res)
	}
	if !strings.Contains(res.Output, "relay") {
		t.Fatalf("expected env value in output, got %q", res.Output)
	}
	resolved, _ := filepath.EvalSymlinks(dir)
	if !strings.Contains(res.Output, dir) && !strings.Contains(res.Output, resolved) {
		t.Fatalf("expected working dir %s in output, got %q", dir, res.Output)
	}
}

func TestRunMissingBinary(t *testing.T) {
	r := New(nil)
	res := r.Run(context.Background(), Command{Name: "sideload-definitely-not-installed"})

	if !res.NotFound() {
		t.Fatalf("expected NotFound, got %+v", res)
	}
	if res.ExitCode != -1 {
		t.Fatalf("expected exit code -1, got %d", res.ExitCode)
	}
}

func TestRunCancelStopsProcess(t *testing.T) {
	r := &DefaultRunner{WaitDelay: 500 * time.Millisecond}
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	res := r.Run(ctx, Command{Name: "sleep", Args: []string{"5"}})

	if !res.Cancelled() {
		t.Fatalf("expected cancelled result, got %+v", res)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Fatalf("cancel took too long: %s", elapsed)
	}
}

func TestSimpleWrapsFailure(t *testing.T) {
	r := New(nil)
	out, err := Simple(context.Background(), r, "sh", "-c", "echo nope; exit 1")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "sh: exit status 1") {
		t.Fatalf("unexpected error text: %v", err)
	}
	if !strings.Contains(out, "nope") {
		t.Fatalf("expected output to be returned on failure, got %q", out)
	}
}

func TestMergeEnvReplacesAndAppends(t *testing.T) {
	base := []string{"PATH=/bin", "HOME=/root", "PATH=/dup"}
	got := MergeEnv(base, []string{"HOME=/tmp", "GPUI_LOG_RELAY=10.0.0.2:9631", "=skipped"})

	want := []string{"PATH=/dup", "HOME=/tmp", "GPUI_LOG_RELAY=10.0.0.2:9631"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("index %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}
