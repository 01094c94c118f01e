// Copyright 2026 The Loom Authors
// SPDX-License-Identifier: Apache-2.0

package proto

import (
	"fmt"

	"github.com/zeebo/blake3"

	"github.com/loom-sync/loom/lib/codec"
	"github.com/loom-sync/loom/lib/ref"
)

// Operation is one field write within an event. Fields are
// last-write-wins registers: an operation only takes effect if its
// clock is newer than the field's current clock.
type Operation struct {
	// Field is the entity field name.
	Field string `cbor:"1,keyasint"`

	// Value is the new field value. Any CBOR-encodable scalar or
	// composite; actor references are stored as the base64 text form
	// of the referenced EntityID.
	Value any `cbor:"2,keyasint"`

	// Clock is the logical clock of this write. Ties resolve in
	// favor of the incoming write, matching last-write-wins.
	Clock uint64 `cbor:"3,keyasint"`
}

// Event is one atomic mutation of a single entity: a batch of field
// operations applied together. Events are the unit the policy layer
// authorizes — a commit request carries events, and each event passes
// through the event-acceptance checkpoint before it is applied.
type Event struct {
	// Entity is the target entity's identifier. For a create, the
	// client picks a fresh identifier and the first event establishes
	// the entity.
	Entity ref.EntityID `cbor:"1,keyasint"`

	// Collection is the target entity's collection tag.
	Collection ref.CollectionID `cbor:"2,keyasint"`

	// Operations are the field writes, applied together.
	Operations []Operation `cbor:"3,keyasint"`

	// Timestamp is the wall-clock creation time in Unix milliseconds.
	// Informational — ordering uses per-operation clocks, not this.
	Timestamp int64 `cbor:"4,keyasint,omitempty"`
}

// EventID computes the event's content-derived identifier: the first
// 16 bytes of the BLAKE3 hash of the event's canonical encoding. Two
// events with identical content have the same ID, which is what makes
// causal heads comparable across nodes.
func (e *Event) EventID() (ref.EntityID, error) {
	encoded, err := codec.Marshal(e)
	if err != nil {
		return ref.EntityID{}, fmt.Errorf("encoding event for hashing: %w", err)
	}
	digest := blake3.Sum256(encoded)
	id, err := ref.EntityIDFromBytes(digest[:ref.EntityIDSize])
	if err != nil {
		return ref.EntityID{}, err
	}
	return id, nil
}

// EntityState is a point-in-time snapshot of one entity, used for
// storage and for state transfer between nodes.
type EntityState struct {
	// Entity is the entity's identifier.
	Entity ref.EntityID `cbor:"1,keyasint"`

	// Collection is the entity's collection tag.
	Collection ref.CollectionID `cbor:"2,keyasint"`

	// State is the canonical CBOR encoding of the entity's fields and
	// their clocks (see lib/entity).
	State codec.RawMessage `cbor:"3,keyasint"`

	// Head lists the IDs of the most recent events folded into this
	// snapshot.
	Head []ref.EntityID `cbor:"4,keyasint,omitempty"`
}

// Attestation is a node's signature over a payload it has accepted.
// The policy checkpoints may return one when accepting an event or
// snapshotting state; this design does not mint attestations, but the
// seam carries them so stricter deployments can.
type Attestation struct {
	// Attestor is the signing node's identifier.
	Attestor ref.EntityID `cbor:"1,keyasint"`

	// Signature is an Ed25519 signature over the canonical encoding
	// of the attested payload.
	Signature []byte `cbor:"2,keyasint"`
}

// Attested pairs a payload with the attestations that vouch for it.
type Attested[T any] struct {
	Payload      T             `cbor:"1,keyasint"`
	Attestations []Attestation `cbor:"2,keyasint,omitempty"`
}

// CausalAssertion is a peer node's claim about its causal state: the
// event heads it has observed for an entity. Exchanged during
// synchronization; validated at the causal-assertion checkpoint.
type CausalAssertion struct {
	// Entity is the entity the assertion is about.
	Entity ref.EntityID `cbor:"1,keyasint"`

	// Head lists the asserting node's known head event IDs.
	Head []ref.EntityID `cbor:"2,keyasint"`
}
