// Copyright 2026 The Loom Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Config is the configuration for a Loom node process.
type Config struct {
	// Node configures the node's identity and protocol surface.
	Node NodeConfig `yaml:"node"`

	// Paths configures filesystem locations.
	Paths PathsConfig `yaml:"paths"`

	// Log configures structured logging.
	Log LogConfig `yaml:"log"`
}

// NodeConfig configures the node runtime.
type NodeConfig struct {
	// ID is the node's entity identifier in base64 text form. If
	// empty, the node generates one on first start and persists it
	// in the state directory.
	ID string `yaml:"id"`

	// PoolSize is the SQLite connection pool size. Zero means the
	// storage default.
	PoolSize int `yaml:"pool_size"`
}

// PathsConfig configures filesystem locations.
type PathsConfig struct {
	// State is the base directory for node state: the entity
	// database, the node ID file, and the sealed signing key.
	State string `yaml:"state"`

	// Database is the entity database file. Default:
	// ${LOOM_STATE}/entities.db.
	Database string `yaml:"database"`

	// Socket is the Unix socket the node listens on. Default:
	// ${LOOM_STATE}/node.sock.
	Socket string `yaml:"socket"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error. Default: info.
	Level string `yaml:"level"`

	// Format is one of text, json. Default: text.
	Format string `yaml:"format"`
}

// Default returns the default configuration. These defaults are a
// base before loading the config file, ensuring every field has a
// sensible zero-value — the config file itself is required.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	defaultState := filepath.Join(homeDir, ".local", "state", "loom")

	return &Config{
		Node: NodeConfig{
			PoolSize: 0,
		},
		Paths: PathsConfig{
			State:    defaultState,
			Database: filepath.Join(defaultState, "entities.db"),
			Socket:   filepath.Join(defaultState, "node.sock"),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from the LOOM_CONFIG environment variable.
//
// This is the only way to load configuration without an explicit
// path. There are no fallbacks — if LOOM_CONFIG is not set, this
// fails. Deterministic, auditable configuration with no hidden
// overrides.
func Load() (*Config, error) {
	configPath := os.Getenv("LOOM_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("LOOM_CONFIG environment variable not set; " +
			"set it to the path of your loom.yaml config file, or use --config flag")
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
//
// The config file is the single source of truth. Environment
// variables do not override config values; the only expansion
// performed is ${HOME}, ${LOOM_STATE}, and ${VAR:-default} in path
// fields, for portability.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.expandVariables()

	return cfg, nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in path
// fields. LOOM_STATE resolves to Paths.State so dependent paths can
// reference it.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"LOOM_STATE": c.Paths.State,
		"HOME":       os.Getenv("HOME"),
	}

	c.Paths.State = expandVars(c.Paths.State, vars)
	vars["LOOM_STATE"] = c.Paths.State

	c.Paths.Database = expandVars(c.Paths.Database, vars)
	c.Paths.Socket = expandVars(c.Paths.Socket, vars)
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Paths.State == "" {
		errs = append(errs, fmt.Errorf("paths.state is required"))
	}
	if c.Paths.Database == "" {
		errs = append(errs, fmt.Errorf("paths.database is required"))
	}
	if c.Paths.Socket == "" {
		errs = append(errs, fmt.Errorf("paths.socket is required"))
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level must be one of: debug, info, warn, error"))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be one of: text, json"))
	}

	if c.Node.PoolSize < 0 {
		errs = append(errs, fmt.Errorf("node.pool_size must not be negative"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// EnsurePaths creates the state directory if it does not exist.
func (c *Config) EnsurePaths() error {
	if c.Paths.State == "" {
		return nil
	}
	if err := os.MkdirAll(c.Paths.State, 0700); err != nil {
		return fmt.Errorf("creating %s: %w", c.Paths.State, err)
	}
	return nil
}
