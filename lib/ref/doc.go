// Copyright 2026 The Loom Authors
// SPDX-License-Identifier: Apache-2.0

// Package ref provides Loom's identifier types.
//
// [EntityID] is the 16-byte opaque identifier every entity carries —
// users, rooms, messages, and nodes all share the same identifier
// space. The canonical external representation is unpadded URL-safe
// base64 (22 characters); the canonical wire representation inside
// auth tokens is the raw 16 bytes.
//
// [CollectionID] names the collection an entity belongs to. Collection
// names are compared case-insensitively: "User", "user", and "USER"
// are the same collection. This matters for authorization — the
// anonymous self-registration rule matches the user collection by
// name, and a case-sensitive comparison would turn a cosmetic
// difference into a policy bypass.
//
// Both types implement encoding.TextMarshaler and TextUnmarshaler so
// they serialize as strings in CBOR envelopes (see lib/codec).
package ref
