package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/cloudsync/syncd/internal/engine"
)

// fileConfig is the on-disk TOML shape: the daemon reads its
// watched-directory set and concurrency from a config file at startup and
// on SIGHUP.
type fileConfig struct {
	DataDir         string           `toml:"data_dir"`
	SyncConcurrency int              `toml:"sync_concurrency"`
	ShutdownTimeout string           `toml:"shutdown_timeout"`
	LogLevel        string           `toml:"log_level"`
	Dirs            []dirFileConfig `toml:"dirs"`
}

type dirFileConfig struct {
	LocalRoot  string `toml:"local_root"`
	RemoteRoot string `toml:"remote_root"`
}

// Config is the resolved, validated configuration the daemon runs with.
type Config struct {
	DataDir         string
	SyncConcurrency int
	ShutdownTimeout time.Duration
	LogLevel        string
	Dirs            []engine.WatchedDir
}

// DBPath is where the sync store lives inside DataDir.
func (c Config) DBPath() string {
	return filepath.Join(c.DataDir, "sync.db")
}

// PIDPath is where the daemon's lock file lives inside DataDir.
func (c Config) PIDPath() string {
	return filepath.Join(c.DataDir, "syncd.pid")
}

const defaultShutdownTimeout = 30 * time.Second

// loadConfig reads and validates the TOML config file at path.
func loadConfig(path string) (Config, error) {
	var fc fileConfig

	if _, err := toml.DecodeFile(path, &fc); err != nil {
		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	}

	return resolveConfig(fc)
}

func resolveConfig(fc fileConfig) (Config, error) {
	if fc.DataDir == "" {
		return Config{}, fmt.Errorf("config: data_dir is required")
	}

	if len(fc.Dirs) == 0 {
		return Config{}, fmt.Errorf("config: at least one entry under [[dirs]] is required")
	}

	cfg := Config{
		DataDir:         fc.DataDir,
		SyncConcurrency: fc.SyncConcurrency,
		LogLevel:        fc.LogLevel,
	}

	if cfg.SyncConcurrency < 1 {
		cfg.SyncConcurrency = 4
	}

	cfg.ShutdownTimeout = defaultShutdownTimeout
	if fc.ShutdownTimeout != "" {
		d, err := time.ParseDuration(fc.ShutdownTimeout)
		if err != nil {
			return Config{}, fmt.Errorf("config: invalid shutdown_timeout %q: %w", fc.ShutdownTimeout, err)
		}

		cfg.ShutdownTimeout = d
	}

	for _, d := range fc.Dirs {
		if d.LocalRoot == "" {
			return Config{}, fmt.Errorf("config: a [[dirs]] entry is missing local_root")
		}

		abs, err := filepath.Abs(d.LocalRoot)
		if err != nil {
			return Config{}, fmt.Errorf("config: resolving local_root %q: %w", d.LocalRoot, err)
		}

		cfg.Dirs = append(cfg.Dirs, engine.WatchedDir{LocalRoot: abs, RemoteRoot: d.RemoteRoot})
	}

	return cfg, nil
}
