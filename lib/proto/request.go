// Copyright 2026 The Loom Authors
// SPDX-License-Identifier: Apache-2.0

package proto

import (
	"github.com/loom-sync/loom/lib/ref"
)

// AuthData is the raw authentication token accompanying a request.
// Empty means anonymous; otherwise exactly 80 bytes (16-byte actor ID
// followed by a 64-byte Ed25519 signature). Validation lives in
// lib/policy — AuthData itself is just bytes in flight.
type AuthData []byte

// Request body kinds. The body is a tagged struct rather than a Go
// interface so that it canonical-encodes without custom marshalers.
const (
	// RequestCommit applies a batch of entity events.
	RequestCommit = "commit"

	// RequestGet reads entities by identifier.
	RequestGet = "get"

	// RequestFetch reads a collection filtered by a predicate.
	RequestFetch = "fetch"
)

// NodeRequest is one request from a client node to a server node. The
// signature in the accompanying [AuthData] covers the canonical CBOR
// encoding of the entire NodeRequest, so every field here is
// tamper-evident once signed.
type NodeRequest struct {
	// ID is a unique request identifier, chosen by the sender. Its
	// presence in the signed bytes makes each signature specific to
	// one request — a captured token cannot authenticate a replay
	// with a different ID.
	ID ref.EntityID `cbor:"1,keyasint"`

	// From is the sending node's identifier.
	From ref.EntityID `cbor:"2,keyasint"`

	// To is the receiving node's identifier.
	To ref.EntityID `cbor:"3,keyasint"`

	// Body carries the operation.
	Body RequestBody `cbor:"4,keyasint"`
}

// RequestBody is the operation payload of a NodeRequest. Kind selects
// which of the remaining fields are meaningful.
type RequestBody struct {
	// Kind is one of RequestCommit, RequestGet, RequestFetch.
	Kind string `cbor:"1,keyasint"`

	// Collection scopes get and fetch requests.
	Collection ref.CollectionID `cbor:"2,keyasint,omitempty"`

	// EntityIDs lists the entities a get request reads.
	EntityIDs []ref.EntityID `cbor:"3,keyasint,omitempty"`

	// Events carries the entity events of a commit request.
	Events []Event `cbor:"4,keyasint,omitempty"`

	// Predicate is the filter expression of a fetch request. The
	// policy layer may rewrite it before execution; this core passes
	// it through unchanged.
	Predicate string `cbor:"5,keyasint,omitempty"`
}

// Response is the wire-format envelope for all node responses.
type Response struct {
	OK     bool          `cbor:"1,keyasint"`
	Error  string        `cbor:"2,keyasint,omitempty"`
	States []EntityState `cbor:"3,keyasint,omitempty"`
}
