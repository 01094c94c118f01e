// Copyright 2026 The Loom Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"github.com/loom-sync/loom/lib/entity"
	"github.com/loom-sync/loom/lib/proto"
	"github.com/loom-sync/loom/lib/ref"
)

// Agent is the policy surface a node consults: request signing plus
// every authorization checkpoint. Both roles implement it; only
// [ServerAgent] additionally offers VerifyRequest, which is
// deliberately absent here so holding an Agent never implies the
// verification capability.
type Agent interface {
	// SignRequest produces the auth tokens for an outbound request,
	// one per context, order-preserving.
	SignRequest(contexts []Context, request *proto.NodeRequest) ([]proto.AuthData, error)

	// CheckEvent is the entity-mutation / event-acceptance
	// checkpoint. after carries the proposed mutation already
	// applied; before is nil for a create.
	CheckEvent(cctx Context, before, after *entity.Entity, event *proto.Event) (*proto.Attestation, error)

	// CheckWrite is consulted before an accepted event is folded
	// into local state.
	CheckWrite(cctx Context, target *entity.Entity, event *proto.Event) error

	// ValidateReceivedEvent vets an event replicated from a peer.
	ValidateReceivedEvent(from ref.EntityID, event *proto.Attested[proto.Event]) error

	// AttestState may mint an attestation over a state snapshot.
	AttestState(state *proto.EntityState) *proto.Attestation

	// ValidateReceivedState vets a state snapshot from a peer.
	ValidateReceivedState(from ref.EntityID, state *proto.Attested[proto.EntityState]) error

	// CanAccessCollection gates reads and subscriptions on a
	// collection.
	CanAccessCollection(cctx Context, collection ref.CollectionID) error

	// CheckRead gates reading one entity.
	CheckRead(cctx Context, target *entity.Entity) error

	// CheckReadEvent gates reading one event from the log.
	CheckReadEvent(cctx Context, event *proto.Attested[proto.Event]) error

	// FilterPredicate may rewrite a query predicate before
	// execution.
	FilterPredicate(cctx Context, collection ref.CollectionID, predicate string) (string, error)

	// ValidateCausalAssertion vets a peer's causal-state claim.
	ValidateCausalAssertion(from ref.EntityID, assertion *proto.CausalAssertion) error
}

var (
	_ Agent = (*ClientAgent)(nil)
	_ Agent = (*ServerAgent)(nil)
)
