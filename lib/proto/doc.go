// Copyright 2026 The Loom Authors
// SPDX-License-Identifier: Apache-2.0

// Package proto defines the wire types exchanged between Loom nodes:
// requests, entity events, state snapshots, attestations, and the
// authentication data that accompanies every request.
//
// All types serialize through lib/codec's deterministic CBOR
// configuration with integer-keyed struct tags. Determinism matters
// beyond compactness: a [NodeRequest] is signed by canonical-encoding
// it on the client, and verified by re-encoding it on the server. The
// two encodings must be byte-identical or every signature fails.
//
// # Auth data
//
// [AuthData] is the per-request authentication token. Two valid
// shapes:
//
//	[]                                    anonymous (self-registration)
//	actor ID (16 bytes) ++ signature (64) authenticated, 80 bytes exactly
//
// The signature is Ed25519 over the canonical encoding of the request.
// Construction and interpretation live in lib/policy; this package
// only carries the bytes.
package proto
