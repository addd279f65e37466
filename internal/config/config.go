package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

const (
	DefaultLogPort         = 9631
	DefaultProfile         = "debug"
	DefaultDestination     = "device"
	DefaultLibName         = "gpui_ios_app"
	DefaultLogLevel        = "debug"
	DefaultSigningIdentity = "Apple Development"
	DefaultDerivedData     = "build/DerivedData"
	DefaultLibOutputDir    = "build/lib"

	// DirName is the per-project directory holding config, history and logs.
	DirName = ".sideload"
)

// Environment overrides, applied after config files.
const (
	EnvLogPort = "SIDELOAD_LOG_PORT"
	EnvTeamID  = "SIDELOAD_TEAM_ID"
	EnvDevice  = "SIDELOAD_DEVICE"
)

// Config holds all sideload configuration.
type Config struct {
	Destination     string `json:"destination,omitempty" yaml:"destination,omitempty"`
	Device          string `json:"device,omitempty" yaml:"device,omitempty"`
	Profile         string `json:"profile,omitempty" yaml:"profile,omitempty"`
	LogPort         int    `json:"log_port,omitempty" yaml:"log_port,omitempty"`
	LogLevel        string `json:"log_level,omitempty" yaml:"log_level,omitempty"`
	TeamID          string `json:"team_id,omitempty" yaml:"team_id,omitempty"`
	SigningIdentity string `json:"signing_identity,omitempty" yaml:"signing_identity,omitempty"`
	BundleID        string `json:"bundle_id,omitempty" yaml:"bundle_id,omitempty"`

	// Rust library
	Package      string `json:"package,omitempty" yaml:"package,omitempty"`
	LibName      string `json:"lib_name,omitempty" yaml:"lib_name,omitempty"`
	LibOutputDir string `json:"lib_output_dir,omitempty" yaml:"lib_output_dir,omitempty"`

	// Xcode project
	Project     string `json:"project,omitempty" yaml:"project,omitempty"`
	Scheme      string `json:"scheme,omitempty" yaml:"scheme,omitempty"`
	Product     string `json:"product,omitempty" yaml:"product,omitempty"`
	DerivedData string `json:"derived_data,omitempty" yaml:"derived_data,omitempty"`
}

// Defaults returns a Config with default values.
func Defaults() Config {
	return Config{
		Destination:     DefaultDestination,
		Profile:         DefaultProfile,
		LogPort:         DefaultLogPort,
		LogLevel:        DefaultLogLevel,
		SigningIdentity: DefaultSigningIdentity,
		Package:         DefaultLibName,
		LibName:         DefaultLibName,
		LibOutputDir:    DefaultLibOutputDir,
		DerivedData:     DefaultDerivedData,
	}
}

// GlobalDir is ~/.config/sideload.
func GlobalDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "sideload"), nil
}

// Load reads and merges config files, then environment overrides.
// Order: defaults → global (~/.config/sideload/config.{json,yaml}) →
// project (.sideload/config.{json,yaml}) → SIDELOAD_* variables.
// Missing files are skipped; malformed ones are an error.
func Load(projectRoot string) (Config, error) {
	cfg := Defaults()

	if dir, err := GlobalDir(); err == nil {
		if err := mergeDir(&cfg, dir); err != nil {
			return cfg, err
		}
	}
	if projectRoot != "" {
		if err := mergeDir(&cfg, filepath.Join(projectRoot, DirName)); err != nil {
			return cfg, err
		}
	}
	if err := applyEnv(&cfg, os.Getenv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Save writes the config to the project .sideload/config.json by default,
// or to the global config if global is true.
func Save(cfg Config, projectRoot string, global bool) error {
	var dir string
	if global {
		d, err := GlobalDir()
		if err != nil {
			return err
		}
		dir = d
	} else {
		dir = filepath.Join(projectRoot, DirName)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(dir, "config.json"), data, 0o644)
}

// mergeDir applies config.json then config.yaml (or .yml) from dir.
func mergeDir(cfg *Config, dir string) error {
	for _, name := range []string{"config.json", "config.yaml", "config.yml"} {
		if err := mergeFromFile(cfg, filepath.Join(dir, name)); err != nil {
			return err
		}
	}
	return nil
}

func mergeFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}

	var fileCfg Config
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fileCfg)
	default:
		err = json.Unmarshal(data, &fileCfg)
	}
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	merge(cfg, fileCfg)
	return nil
}

// merge copies every set field of src over dst.
func merge(dst *Config, src Config) {
	mergeString(&dst.Destination, src.Destination)
	mergeString(&dst.Device, src.Device)
	mergeString(&dst.Profile, src.Profile)
	if src.LogPort != 0 {
		dst.LogPort = src.LogPort
	}
	mergeString(&dst.LogLevel, src.LogLevel)
	mergeString(&dst.TeamID, src.TeamID)
	mergeString(&dst.SigningIdentity, src.SigningIdentity)
	mergeString(&dst.BundleID, src.BundleID)
	mergeString(&dst.Package, src.Package)
	mergeString(&dst.LibName, src.LibName)
	mergeString(&dst.LibOutputDir, src.LibOutputDir)
	mergeString(&dst.Project, src.Project)
	mergeString(&dst.Scheme, src.Scheme)
	mergeString(&dst.Product, src.Product)
	mergeString(&dst.DerivedData, src.DerivedData)
}

func mergeString(dst *string, src string) {
	if src != "" {
		*dst = src
	}
}

func applyEnv(cfg *Config, getenv func(string) string) error {
	if v := getenv(EnvLogPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 || port > 65535 {
			return fmt.Errorf("%s: invalid port %q", EnvLogPort, v)
		}
		cfg.LogPort = port
	}
	mergeString(&cfg.TeamID, getenv(EnvTeamID))
	mergeString(&cfg.Device, getenv(EnvDevice))
	return nil
}
