// Copyright 2026 The Transplant Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads engine daemon configuration.
//
// Configuration comes from a single YAML file named by the
// TRANSPLANT_CONFIG environment variable or a --config flag. There
// are no fallback locations and no automatic discovery; a missing
// file is an error, so every run's configuration is explicit and
// auditable. Command-line flags override individual fields after
// loading.
package config

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/bastibe/transplant/transport"
	"github.com/bastibe/transplant/wire"
)

// EnvVar names the environment variable holding the config file path.
const EnvVar = "TRANSPLANT_CONFIG"

// Config is the engine daemon configuration.
type Config struct {
	// Endpoint is the controller's address the engine dials,
	// "tcp://host:port" or "ipc:///path".
	Endpoint string `yaml:"endpoint"`

	// Format selects the wire encoding, "text" or "binary".
	Format string `yaml:"format"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// SnapshotDir is where relative save/load paths resolve. Empty
	// means the working directory.
	SnapshotDir string `yaml:"snapshot_dir"`

	// Interrupt enables SIGINT handling: on, the signal aborts the
	// call in progress; off, it kills the process.
	Interrupt bool `yaml:"interrupt"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Endpoint:  "tcp://127.0.0.1:5600",
		Format:    "binary",
		LogLevel:  "info",
		Interrupt: true,
	}
}

// Load reads and validates a config file. An empty path falls back
// to the TRANSPLANT_CONFIG environment variable, and to Default when
// that is unset too.
func Load(path string) (Config, error) {
	if path == "" {
		path = os.Getenv(EnvVar)
	}
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	// Start from defaults so a sparse file only overrides what it
	// names.
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks every field against its legal values.
func (c *Config) Validate() error {
	if _, err := transport.ParseEndpoint(c.Endpoint); err != nil {
		return err
	}
	if _, err := wire.FormatByName(c.Format); err != nil {
		return err
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel converts the configured log level name.
func (c *Config) SlogLevel() (slog.Level, error) {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q", c.LogLevel)
}
