// Copyright 2026 The Loom Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"github.com/loom-sync/loom/lib/entity"
	"github.com/loom-sync/loom/lib/model"
	"github.com/loom-sync/loom/lib/proto"
	"github.com/loom-sync/loom/lib/ref"
)

// Denial reasons returned to remote callers.
const (
	reasonAnonymousScope    = "anonymous may only create identity records"
	reasonInvalidActorRef   = "invalid actor reference"
	reasonOwnershipMismatch = "ownership mismatch"
	reasonInvalidContext    = "invalid security context"
)

// checkpoints holds the authorization rule set. It is embedded in both
// ClientAgent and ServerAgent so client-side transactions enforce the
// same rules the server will — a client that lets a doomed mutation
// through only learns about it one round-trip later.
//
// Every method is a pure function of its arguments: no I/O, no
// retries, deterministic. Anything fallible (the directory lookup)
// already happened during verification.
type checkpoints struct{}

// CheckEvent is the entity-mutation / event-acceptance checkpoint.
// after is the entity with the proposed event already applied; before
// is the prior state (nil for a create). Returns an optional
// attestation on allow — always nil in this design — or AccessDenied.
//
// Precedence:
//  1. System bypasses everything. Bootstrap and maintenance
//     operations are the host's own; this layer never second-guesses
//     them.
//  2. Anonymous may only touch the user collection
//     (self-registration). Everything else is denied.
//  3. Authenticated actors writing a message must own it: the
//     post-mutation "user" field, when present, must resolve to the
//     acting actor. All other collections are allowed — a documented
//     open default, not an oversight (see DESIGN.md).
func (checkpoints) CheckEvent(cctx Context, before, after *entity.Entity, event *proto.Event) (*proto.Attestation, error) {
	if cctx.IsSystem() {
		return nil, nil
	}

	if cctx.IsAnonymous() {
		if after.Collection().Is(string(model.CollectionUser)) {
			return nil, nil
		}
		return nil, deniedByPolicy(reasonAnonymousScope)
	}

	actor, ok := cctx.Actor()
	if !ok {
		return nil, deniedByPolicy(reasonInvalidContext)
	}

	if after.Collection().Is(string(model.CollectionMessage)) {
		message, err := model.AsMessage(after)
		if err != nil {
			return nil, deniedByPolicy(reasonInvalidActorRef)
		}
		owner, present, err := message.Owner()
		if err != nil {
			return nil, deniedByPolicy(reasonInvalidActorRef)
		}
		if present && owner != actor {
			return nil, deniedByPolicy(reasonOwnershipMismatch)
		}
	}

	return nil, nil
}

// CheckWrite is the per-write checkpoint consulted before an event is
// folded into local state. Pass-through in this design; CheckEvent is
// where the mutation rules live.
func (checkpoints) CheckWrite(cctx Context, target *entity.Entity, event *proto.Event) error {
	return nil
}

// ValidateReceivedEvent is the checkpoint for events arriving from a
// peer node during synchronization. Pass-through: peers replicate
// events that already passed CheckEvent at their origin.
func (checkpoints) ValidateReceivedEvent(from ref.EntityID, event *proto.Attested[proto.Event]) error {
	return nil
}

// AttestState may mint an attestation over a state snapshot. This
// design does not attest state.
func (checkpoints) AttestState(state *proto.EntityState) *proto.Attestation {
	return nil
}

// ValidateReceivedState is the checkpoint for state snapshots arriving
// from a peer node. Pass-through.
func (checkpoints) ValidateReceivedState(from ref.EntityID, state *proto.Attested[proto.EntityState]) error {
	return nil
}

// CanAccessCollection is the collection-access checkpoint for reads
// and subscriptions. Open for all context kinds in this design.
func (checkpoints) CanAccessCollection(cctx Context, collection ref.CollectionID) error {
	return nil
}

// CheckRead is the per-entity read checkpoint. Open in this design.
func (checkpoints) CheckRead(cctx Context, target *entity.Entity) error {
	return nil
}

// CheckReadEvent is the per-event read checkpoint for event-log
// consumers. Open in this design.
func (checkpoints) CheckReadEvent(cctx Context, event *proto.Attested[proto.Event]) error {
	return nil
}

// FilterPredicate is the query-predicate rewrite checkpoint. A
// stricter deployment would narrow the predicate to rows the context
// may see; this design returns it unchanged.
func (checkpoints) FilterPredicate(cctx Context, collection ref.CollectionID, predicate string) (string, error) {
	return predicate, nil
}

// ValidateCausalAssertion is the checkpoint for causal-state claims
// arriving from a peer node. Pass-through.
func (checkpoints) ValidateCausalAssertion(from ref.EntityID, assertion *proto.CausalAssertion) error {
	return nil
}
