package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points the global config at an empty home and clears overrides.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv(EnvLogPort, "")
	t.Setenv(EnvTeamID, "")
	t.Setenv(EnvDevice, "")
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, 9631, cfg.LogPort)
	assert.Equal(t, "debug", cfg.Profile)
	assert.Equal(t, "Apple Development", cfg.SigningIdentity)
	assert.Equal(t, "gpui_ios_app", cfg.LibName)
	assert.Empty(t, cfg.Device, "no remembered device")
}

func TestLoadMerge(t *testing.T) {
	isolate(t)
	tmp := t.TempDir()
	dir := filepath.Join(tmp, DirName)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(`{
		"scheme": "GpuiDemo",
		"log_port": 7000
	}`), 0o644))

	cfg, err := Load(tmp)
	require.NoError(t, err)

	assert.Equal(t, "GpuiDemo", cfg.Scheme)
	assert.Equal(t, 7000, cfg.LogPort)
	assert.Equal(t, "debug", cfg.Profile, "unset fields keep defaults")
}

func TestLoadYAMLOverridesJSON(t *testing.T) {
	isolate(t)
	tmp := t.TempDir()
	dir := filepath.Join(tmp, DirName)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(`{"profile": "debug", "bundle_id": "a.b"}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("profile: release\nteam_id: ABCDE12345\n"), 0o644))

	cfg, err := Load(tmp)
	require.NoError(t, err)
	assert.Equal(t, "release", cfg.Profile)
	assert.Equal(t, "ABCDE12345", cfg.TeamID)
	assert.Equal(t, "a.b", cfg.BundleID)
}

func TestLoadGlobalThenProject(t *testing.T) {
	isolate(t)
	global, err := GlobalDir()
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(global, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(global, "config.yaml"), []byte("team_id: GLOBAL\nscheme: FromGlobal\n"), 0o644))

	tmp := t.TempDir()
	require.NoError(t, Save(Config{Scheme: "FromProject"}, tmp, false))

	cfg, err := Load(tmp)
	require.NoError(t, err)
	assert.Equal(t, "GLOBAL", cfg.TeamID)
	assert.Equal(t, "FromProject", cfg.Scheme)
}

func TestLoadEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv(EnvLogPort, "9700")
	t.Setenv(EnvTeamID, "ENVTEAM")
	t.Setenv(EnvDevice, "00008110-001122334455")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 9700, cfg.LogPort)
	assert.Equal(t, "ENVTEAM", cfg.TeamID)
	assert.Equal(t, "00008110-001122334455", cfg.Device)
}

func TestLoadBadEnvPort(t *testing.T) {
	for _, v := range []string{"not-a-port", "0", "-1", "70000"} {
		t.Run(v, func(t *testing.T) {
			isolate(t)
			t.Setenv(EnvLogPort, v)

			_, err := Load(t.TempDir())
			assert.ErrorContains(t, err, EnvLogPort)
		})
	}
}

func TestLoadMalformedFile(t *testing.T) {
	isolate(t)
	tmp := t.TempDir()
	dir := filepath.Join(tmp, DirName)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("log_port: [1, 2\n"), 0o644))

	_, err := Load(tmp)
	assert.ErrorContains(t, err, "config.yaml")
}

func TestSaveAndLoad(t *testing.T) {
	isolate(t)
	tmp := t.TempDir()
	cfg := Config{
		Project:  "ios/GpuiDemo.xcodeproj",
		Scheme:   "GpuiDemo",
		BundleID: "dev.gpui.demo",
		LogPort:  9650,
	}

	require.NoError(t, Save(cfg, tmp, false))

	path := filepath.Join(tmp, DirName, "config.json")
	_, err := os.Stat(path)
	require.NoError(t, err, "config file not created")

	loaded, err := Load(tmp)
	require.NoError(t, err)
	assert.Equal(t, "ios/GpuiDemo.xcodeproj", loaded.Project)
	assert.Equal(t, "dev.gpui.demo", loaded.BundleID)
	assert.Equal(t, 9650, loaded.LogPort)
}
