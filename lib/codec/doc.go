// Copyright 2026 The Loom Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides Loom's standard CBOR encoding configuration.
//
// Every byte that crosses a node boundary — request envelopes, entity
// events, state snapshots — is CBOR. The encoder uses Core
// Deterministic Encoding (RFC 8949 §4.2): sorted map keys, smallest
// integer encoding, no indefinite-length items. Same logical data
// always produces identical bytes.
//
// Determinism is load-bearing, not cosmetic: request authentication
// signs the canonical encoding of the request, and the verifier
// re-encodes the request it received and checks the signature against
// those bytes. If the signer and verifier could produce different
// encodings of the same logical request, every signature would be
// worthless. All packages must encode through this package rather than
// configuring fxamacker/cbor themselves.
//
// For buffer-oriented operations (tokens, state blobs):
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// For stream-oriented operations (the node socket protocol):
//
//	encoder := codec.NewEncoder(conn)
//	decoder := codec.NewDecoder(conn)
//
// Wire types use `cbor` struct tags with integer keys (keyasint) to
// keep envelopes small and to make field identity explicit across
// versions.
package codec
