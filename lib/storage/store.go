// Copyright 2026 The Loom Authors
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/klauspost/compress/zstd"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/loom-sync/loom/lib/codec"
	"github.com/loom-sync/loom/lib/proto"
	"github.com/loom-sync/loom/lib/ref"
	"github.com/loom-sync/loom/lib/sqlitepool"
)

// ErrNotFound is returned by GetState when no row exists for the
// requested entity. Match with errors.Is.
var ErrNotFound = errors.New("storage: entity not found")

const schema = `
CREATE TABLE IF NOT EXISTS entities (
	collection TEXT NOT NULL,
	id         BLOB NOT NULL,
	state      BLOB NOT NULL,
	state_size INTEGER NOT NULL,
	PRIMARY KEY (collection, id)
);
`

// zstdEncoder and zstdDecoder are shared across all engines. Both are
// safe for concurrent use; constructing them per-call would dominate
// the cost of compressing chat-sized blobs.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedDefault),
	)
	if err != nil {
		panic("storage: zstd encoder initialization failed: " + err.Error())
	}

	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("storage: zstd decoder initialization failed: " + err.Error())
	}
}

// Config holds the parameters for opening an entity store.
type Config struct {
	// Path is the database file path, or ":memory:" for tests (with
	// PoolSize 1).
	Path string

	// PoolSize is the connection pool size. Zero means the pool's
	// default.
	PoolSize int

	// Logger receives operational messages. If nil, a no-op logger
	// is used.
	Logger *slog.Logger
}

// Engine is the SQLite-backed entity store. Safe for concurrent use.
type Engine struct {
	pool   *sqlitepool.Pool
	logger *slog.Logger
}

// Open opens (creating if necessary) the entity store at cfg.Path.
// The caller must Close the engine when done.
func Open(cfg Config) (*Engine, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     cfg.Path,
		PoolSize: cfg.PoolSize,
		Logger:   logger,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, schema, nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}

	return &Engine{pool: pool, logger: logger}, nil
}

// Close closes the underlying connection pool.
func (e *Engine) Close() error {
	return e.pool.Close()
}

// PutState writes an entity's current state, replacing any previous
// row. The blob stored is the zstd-compressed canonical CBOR encoding
// of the full EntityState, head included.
func (e *Engine) PutState(ctx context.Context, state *proto.EntityState) error {
	encoded, err := codec.Marshal(state)
	if err != nil {
		return fmt.Errorf("storage: encoding state for %s: %w", state.Entity, err)
	}
	compressed := zstdEncoder.EncodeAll(encoded, nil)

	conn, err := e.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer e.pool.Put(conn)

	err = sqlitex.Execute(conn, `
		INSERT INTO entities (collection, id, state, state_size)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (collection, id) DO UPDATE SET
			state = excluded.state,
			state_size = excluded.state_size
	`, &sqlitex.ExecOptions{
		Args: []any{state.Collection.Fold(), state.Entity.Bytes(), compressed, len(encoded)},
	})
	if err != nil {
		return fmt.Errorf("storage: writing state for %s: %w", state.Entity, err)
	}
	return nil
}

// GetState reads one entity's current state. Returns an error
// wrapping ErrNotFound when no row exists.
func (e *Engine) GetState(ctx context.Context, collection ref.CollectionID, id ref.EntityID) (*proto.EntityState, error) {
	conn, err := e.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer e.pool.Put(conn)

	var state *proto.EntityState
	err = sqlitex.Execute(conn, `
		SELECT state, state_size FROM entities
		WHERE collection = ? AND id = ?
	`, &sqlitex.ExecOptions{
		Args: []any{collection.Fold(), id.Bytes()},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			compressed := make([]byte, stmt.ColumnLen(0))
			stmt.ColumnBytes(0, compressed)
			decoded, err := decodeStateBlob(compressed, stmt.ColumnInt(1))
			if err != nil {
				return err
			}
			state = decoded
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("storage: reading %s/%s: %w", collection, id, err)
	}
	if state == nil {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
	}
	return state, nil
}

// FetchCollection reads the current state of every entity in a
// collection. Order is by entity ID bytes, stable across calls.
func (e *Engine) FetchCollection(ctx context.Context, collection ref.CollectionID) ([]proto.EntityState, error) {
	conn, err := e.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer e.pool.Put(conn)

	var states []proto.EntityState
	err = sqlitex.Execute(conn, `
		SELECT state, state_size FROM entities
		WHERE collection = ?
		ORDER BY id
	`, &sqlitex.ExecOptions{
		Args: []any{collection.Fold()},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			compressed := make([]byte, stmt.ColumnLen(0))
			stmt.ColumnBytes(0, compressed)
			decoded, err := decodeStateBlob(compressed, stmt.ColumnInt(1))
			if err != nil {
				return err
			}
			states = append(states, *decoded)
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("storage: fetching collection %s: %w", collection, err)
	}
	return states, nil
}

// decodeStateBlob decompresses and decodes one stored state row. The
// recorded uncompressed size is verified against what zstd produces —
// a mismatch means the row is corrupt, not merely stale.
func decodeStateBlob(compressed []byte, uncompressedSize int) (*proto.EntityState, error) {
	encoded, err := zstdDecoder.DecodeAll(compressed, make([]byte, 0, uncompressedSize))
	if err != nil {
		return nil, fmt.Errorf("decompressing state: %w", err)
	}
	if len(encoded) != uncompressedSize {
		return nil, fmt.Errorf("state blob: got %d bytes, expected %d", len(encoded), uncompressedSize)
	}

	var state proto.EntityState
	if err := codec.Unmarshal(encoded, &state); err != nil {
		return nil, fmt.Errorf("decoding state: %w", err)
	}
	return &state, nil
}
