// Copyright 2026 The Loom Authors
// SPDX-License-Identifier: Apache-2.0

// Package storage is the node's entity store: current entity state
// persisted in SQLite, one row per entity keyed by (collection, id).
//
// State is stored as the zstd-compressed canonical CBOR encoding of
// [proto.EntityState]. Compression matters less for chat-sized
// entities than for the general case, but the format is uniform so a
// deployment with large state blobs pays nothing extra in code.
//
// The store knows nothing about authorization. Policy checkpoints run
// in the node layer before anything reaches PutState; the actor
// directory reads user rows through GetState under the node's system
// context.
package storage
