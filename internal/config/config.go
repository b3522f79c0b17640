package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/searchgrep/searchgrep/pkg/types"
)

// Config holds runtime settings. Defaults work out of the box; a TOML file
// under the data directory overrides them, and SEARCHGREP_* environment
// variables override both.
type Config struct {
	BackendURL string `toml:"backend_url"`
	DataDir    string `toml:"data_dir"`
	Mode       string `toml:"mode"`
	Workers    int    `toml:"workers"`
	DebounceMs int    `toml:"debounce_ms"`
	CacheSize  int    `toml:"cache_size"`
	LogLevel   string `toml:"log_level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		BackendURL: "http://127.0.0.1:11434",
		DataDir:    defaultDataDir(),
		Mode:       string(types.ModeBalanced),
		Workers:    runtime.NumCPU(),
		DebounceMs: 500,
		CacheSize:  10000,
		LogLevel:   "info",
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".searchgrep"
	}
	return filepath.Join(home, ".searchgrep")
}

// Load builds the effective configuration. path may be empty, in which case
// the default config file location is tried; a missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = filepath.Join(cfg.DataDir, "config.toml")
	}
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if _, err := types.ParseMode(cfg.Mode, types.ModeBalanced); err != nil {
		return nil, err
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.DebounceMs <= 0 {
		cfg.DebounceMs = 500
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("SEARCHGREP_BACKEND_URL"); v != "" {
		cfg.BackendURL = v
	}
	if v := os.Getenv("SEARCHGREP_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("SEARCHGREP_MODE"); v != "" {
		cfg.Mode = v
	}
	if v := os.Getenv("SEARCHGREP_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Workers = n
		}
	}
	if v := os.Getenv("SEARCHGREP_DEBOUNCE_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.DebounceMs = n
		}
	}
	if v := os.Getenv("SEARCHGREP_CACHE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.CacheSize = n
		}
	}
	if v := os.Getenv("SEARCHGREP_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}

// ParsedMode returns the configured speed mode.
func (c *Config) ParsedMode() types.Mode {
	mode, _ := types.ParseMode(c.Mode, types.ModeBalanced)
	return mode
}

// Debounce returns the watch debounce interval.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.DebounceMs) * time.Millisecond
}
