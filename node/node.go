// Copyright 2026 The Loom Authors
// SPDX-License-Identifier: Apache-2.0

package node

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/loom-sync/loom/lib/clock"
	"github.com/loom-sync/loom/lib/entity"
	"github.com/loom-sync/loom/lib/model"
	"github.com/loom-sync/loom/lib/policy"
	"github.com/loom-sync/loom/lib/proto"
	"github.com/loom-sync/loom/lib/ref"
	"github.com/loom-sync/loom/lib/storage"
)

// DefaultRoomName is the room every node guarantees exists, so a
// fresh deployment has somewhere to talk.
const DefaultRoomName = "General"

// Config holds the parameters for starting a node.
type Config struct {
	// ID is the node's entity identifier, present in every request
	// addressed to it.
	ID ref.EntityID

	// DatabasePath is the entity database file.
	DatabasePath string

	// PoolSize is the SQLite connection pool size. Zero means the
	// storage default.
	PoolSize int

	// Logger receives operational messages. If nil, a no-op logger
	// is used.
	Logger *slog.Logger

	// Clock stamps server-side events. If nil, the real clock.
	Clock clock.Clock
}

// Node is a running Loom node: storage plus a verifying policy agent.
type Node struct {
	id      ref.EntityID
	storage *storage.Engine
	agent   *policy.ServerAgent
	logger  *slog.Logger
	clock   clock.Clock
}

// Open starts a node: opens the entity store, builds the server
// policy agent, wires the actor directory, and runs bootstrap (the
// default room). The caller must Close the node when done.
func Open(ctx context.Context, cfg Config) (*Node, error) {
	if cfg.ID.IsZero() {
		return nil, fmt.Errorf("node: Config.ID is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}

	engine, err := storage.Open(storage.Config{
		Path:     cfg.DatabasePath,
		PoolSize: cfg.PoolSize,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("node: %w", err)
	}

	n := &Node{
		id:      cfg.ID,
		storage: engine,
		agent:   policy.NewServerAgent(logger),
		logger:  logger,
		clock:   clk,
	}

	// The directory reads user records through the node's system
	// session — the lookup runs on the verifier's behalf, not the
	// caller's.
	n.agent.InitDirectory(&actorDirectory{node: n})

	if err := n.bootstrap(ctx); err != nil {
		engine.Close()
		return nil, err
	}

	return n, nil
}

// Close releases the node's resources.
func (n *Node) Close() error {
	return n.storage.Close()
}

// ID returns the node's entity identifier.
func (n *Node) ID() ref.EntityID { return n.id }

// Agent returns the node's policy agent.
func (n *Node) Agent() *policy.ServerAgent { return n.agent }

// Session binds a security context to the node. All entity
// operations flow through sessions.
func (n *Node) Session(cctx policy.Context) *Session {
	return &Session{node: n, cctx: cctx}
}

// bootstrap runs the node's own startup mutations under the system
// context.
func (n *Node) bootstrap(ctx context.Context) error {
	if _, err := n.EnsureRoom(ctx, DefaultRoomName); err != nil {
		return fmt.Errorf("node: bootstrap: %w", err)
	}
	return nil
}

// EnsureRoom returns the ID of the room with the given name, creating
// the room under the system context if no such room exists. Name
// comparison is exact.
func (n *Node) EnsureRoom(ctx context.Context, name string) (ref.EntityID, error) {
	session := n.Session(policy.SystemContext())

	rooms, err := session.Fetch(ctx, model.CollectionRoom, "")
	if err != nil {
		return ref.EntityID{}, err
	}
	for _, state := range rooms {
		room, err := entity.FromState(&state)
		if err != nil {
			return ref.EntityID{}, fmt.Errorf("node: corrupt room state %s: %w", state.Entity, err)
		}
		if got, _ := room.StringValue(model.FieldName); got == name {
			return room.ID(), nil
		}
	}

	id := ref.NewEntityID()
	room := entity.New(id, model.CollectionRoom)
	event := room.MutationEvent(model.RoomFields(name), n.clock.Now().UnixMilli())
	if err := session.Commit(ctx, []proto.Event{*event}); err != nil {
		return ref.EntityID{}, err
	}

	n.logger.Info("created room", "name", name, "entity", id)
	return id, nil
}
