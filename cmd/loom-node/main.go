// Copyright 2026 The Loom Authors
// SPDX-License-Identifier: Apache-2.0

// loom-node runs a Loom entity node: SQLite-backed entity storage
// behind a policy-enforcing Unix socket server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/loom-sync/loom/lib/config"
	"github.com/loom-sync/loom/lib/ref"
	"github.com/loom-sync/loom/lib/version"
	"github.com/loom-sync/loom/node"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath  string
		showVersion bool
	)
	pflag.StringVar(&configPath, "config", "", "path to loom.yaml (default: $LOOM_CONFIG)")
	pflag.BoolVar(&showVersion, "version", false, "print version information and exit")
	pflag.Parse()

	if showVersion {
		fmt.Printf("loom-node %s\n", version.Info())
		return nil
	}

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.EnsurePaths(); err != nil {
		return err
	}

	logger, err := buildLogger(cfg.Log)
	if err != nil {
		return err
	}

	nodeID, err := loadOrCreateNodeID(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	n, err := node.Open(ctx, node.Config{
		ID:           nodeID,
		DatabasePath: cfg.Paths.Database,
		PoolSize:     cfg.Node.PoolSize,
		Logger:       logger,
	})
	if err != nil {
		return err
	}
	defer n.Close()

	server := node.NewServer(n, cfg.Paths.Socket, logger)
	if err := server.Serve(ctx); err != nil {
		return err
	}

	logger.Info("shut down cleanly")
	return nil
}

// buildLogger constructs the process logger from config.
func buildLogger(cfg config.LogConfig) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, fmt.Errorf("log level %q: %w", cfg.Level, err)
	}

	options := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, options)
	default:
		handler = slog.NewTextHandler(os.Stderr, options)
	}
	return slog.New(handler), nil
}

// nodeIDFile is the state-directory file holding the node's persistent
// entity identifier.
const nodeIDFile = "node-id"

// loadOrCreateNodeID resolves the node's identity. An explicit ID in
// the config wins; otherwise the ID persisted in the state directory
// is reused, generating and persisting a fresh one on first start.
func loadOrCreateNodeID(cfg *config.Config) (ref.EntityID, error) {
	if cfg.Node.ID != "" {
		id, err := ref.ParseEntityID(cfg.Node.ID)
		if err != nil {
			return ref.EntityID{}, fmt.Errorf("node.id: %w", err)
		}
		return id, nil
	}

	idPath := filepath.Join(cfg.Paths.State, nodeIDFile)
	data, err := os.ReadFile(idPath)
	switch {
	case err == nil:
		id, err := ref.ParseEntityID(strings.TrimSpace(string(data)))
		if err != nil {
			return ref.EntityID{}, fmt.Errorf("corrupt %s: %w", idPath, err)
		}
		return id, nil
	case os.IsNotExist(err):
		id := ref.NewEntityID()
		if err := os.WriteFile(idPath, []byte(id.String()+"\n"), 0o644); err != nil {
			return ref.EntityID{}, fmt.Errorf("persisting node ID: %w", err)
		}
		return id, nil
	default:
		return ref.EntityID{}, err
	}
}
