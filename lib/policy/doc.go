// Copyright 2026 The Loom Authors
// SPDX-License-Identifier: Apache-2.0

// Package policy implements Loom's security boundary: request signing,
// request verification, and the authorization checkpoints consulted by
// the node on every entity operation.
//
// # Security contexts
//
// A [Context] answers "who is asking" with exactly one of three kinds:
//
//   - Authenticated — an actor proved control of the Ed25519 key
//     published on their user entity, or a client constructed the
//     context locally from an actor ID it established earlier.
//   - System — the hosting process itself. Constructible only via
//     [SystemContext]; a verifier never produces it from wire data,
//     so nothing a remote peer sends can claim system privilege.
//   - Anonymous — no identity. Exists solely so an actor with no
//     prior record can create their own user entity
//     (self-registration) and then re-authenticate as that actor.
//
// # Roles
//
// The client and server roles are distinct types, not runtime modes.
// [ClientAgent] holds a private signing key and can only sign;
// [ServerAgent] holds the actor-directory capability and can only
// verify. A client-role value cannot perform directory lookups by
// construction — there is no method for it.
//
// # Wire format
//
// One [proto.AuthData] token per active context accompanies each
// request. Empty bytes mean anonymous. Otherwise the token is exactly
// 80 bytes: the 16-byte actor ID followed by a 64-byte Ed25519
// signature over the canonical CBOR encoding of the request (see
// lib/codec for why canonical encoding is what makes this sound).
// Tokens longer than 80 bytes are rejected — trailing garbage after a
// valid signature is treated as a protocol error, not ignored.
//
// # Checkpoints
//
// Both agents expose the authorization checkpoints the node consults:
// event acceptance (where the anonymous self-registration and message
// ownership rules live), reads, collection access, predicate
// filtering, and peer causal assertions. The read-side checkpoints
// pass through unchanged in this design; they exist so a stricter
// deployment can tighten them without changing any call site.
package policy
