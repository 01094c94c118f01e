// Copyright 2026 The Loom Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool provides the SQLite connection pool behind Loom's
// entity store.
//
// It wraps zombiezen.com/go/sqlite with the defaults a sync node
// wants: WAL journal mode so subscription reads never block the
// single writer folding in events, NORMAL synchronous for
// process-crash durability, memory-mapped I/O for state reads, and a
// busy timeout so concurrent commits wait instead of failing with
// SQLITE_BUSY.
//
// The pool is built on zombiezen's sqlitex.Pool. Callers [Pool.Take]
// a connection, perform work, and [Pool.Put] it back. Connections are
// NOT safe for concurrent use — each goroutine holds its own for the
// duration of its work.
//
// # Pragmas
//
// Every connection is initialized with:
//
//   - journal_mode=WAL: concurrent readers, single writer.
//   - synchronous=NORMAL: commits survive process crashes. Not
//     durable across power failure — acceptable because a node can
//     re-fetch lost tail state from its peers.
//   - busy_timeout=5000: wait up to 5 seconds for the write lock.
//   - foreign_keys=OFF: the store manages referential integrity
//     itself; entity references are application-level, not row-level.
//   - cache_size=-8192: 8 MB page cache per connection.
//   - mmap_size=268435456: 256 MB memory-mapped reads.
//   - temp_store=MEMORY: temporary structures in memory.
//
// # Design
//
// This package is intentionally thin: standard pragmas, the
// underlying zombiezen types exposed directly, no query builder.
// lib/storage writes SQL, uses sqlitex.Execute for cached statements,
// and manages transactions with sqlitex.ImmediateTransaction.
package sqlitepool
