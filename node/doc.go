// Copyright 2026 The Loom Authors
// SPDX-License-Identifier: Apache-2.0

// Package node is the Loom node runtime: an entity store, a policy
// agent, and a request protocol tied together.
//
// A [Node] owns the storage engine and the policy agent. Operations
// run through a [Session], which binds a security context to the
// node: every mutation passes the event-acceptance checkpoint before
// it is folded into storage, every read passes the read checkpoints.
// The system session is reserved for the node's own bootstrap and for
// the actor directory lookup the verifier performs.
//
// [Server] exposes the node on a Unix socket: one CBOR
// request-response exchange per connection. The request envelope
// carries a [proto.NodeRequest] plus its auth tokens; the server
// verifies the tokens into security contexts and dispatches commit,
// get, and fetch with those contexts. [Client] is the matching caller
// side, signing each request with its keyring before sending.
package node
