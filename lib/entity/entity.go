// Copyright 2026 The Loom Authors
// SPDX-License-Identifier: Apache-2.0

// Package entity implements Loom's entity record: a collection-tagged
// bag of last-write-wins fields, mutated by applying events.
//
// An entity never mutates in place during authorization: the event
// checkpoint receives the prior entity and a copy with the proposed
// event already applied, so policy rules inspect the post-mutation
// state (a message's "user" field after the write is what the
// ownership check reads).
package entity

import (
	"fmt"
	"sort"

	"github.com/loom-sync/loom/lib/codec"
	"github.com/loom-sync/loom/lib/proto"
	"github.com/loom-sync/loom/lib/ref"
)

// fieldState is the stored form of one last-write-wins field: the
// current value and the logical clock of the write that set it.
type fieldState struct {
	Value any    `cbor:"1,keyasint"`
	Clock uint64 `cbor:"2,keyasint"`
}

// Entity is one mutable record. Not safe for concurrent use — callers
// clone before applying speculative events.
type Entity struct {
	id         ref.EntityID
	collection ref.CollectionID
	fields     map[string]fieldState
	head       []ref.EntityID
}

// New creates an empty entity in the given collection.
func New(id ref.EntityID, collection ref.CollectionID) *Entity {
	return &Entity{
		id:         id,
		collection: collection,
		fields:     make(map[string]fieldState),
	}
}

// FromState reconstructs an entity from a stored snapshot.
func FromState(state *proto.EntityState) (*Entity, error) {
	fields := make(map[string]fieldState)
	if len(state.State) > 0 {
		if err := codec.Unmarshal(state.State, &fields); err != nil {
			return nil, fmt.Errorf("decoding entity state for %s: %w", state.Entity, err)
		}
	}
	return &Entity{
		id:         state.Entity,
		collection: state.Collection,
		fields:     fields,
		head:       append([]ref.EntityID(nil), state.Head...),
	}, nil
}

// ID returns the entity's identifier.
func (e *Entity) ID() ref.EntityID { return e.id }

// Collection returns the entity's collection tag.
func (e *Entity) Collection() ref.CollectionID { return e.collection }

// Head returns the IDs of the most recent events folded into this
// entity.
func (e *Entity) Head() []ref.EntityID {
	return append([]ref.EntityID(nil), e.head...)
}

// Value returns the current value of a field, and whether the field
// is set.
func (e *Entity) Value(field string) (any, bool) {
	state, ok := e.fields[field]
	if !ok {
		return nil, false
	}
	return state.Value, true
}

// StringValue returns a field's value if it is set and is a string.
func (e *Entity) StringValue(field string) (string, bool) {
	value, ok := e.Value(field)
	if !ok {
		return "", false
	}
	text, ok := value.(string)
	return text, ok
}

// Clock returns the logical clock of a field's last write, or zero if
// the field has never been written.
func (e *Entity) Clock(field string) uint64 {
	return e.fields[field].Clock
}

// Clone returns a deep copy. Field values are shared — callers treat
// values as immutable and replace rather than mutate them.
func (e *Entity) Clone() *Entity {
	fields := make(map[string]fieldState, len(e.fields))
	for name, state := range e.fields {
		fields[name] = state
	}
	return &Entity{
		id:         e.id,
		collection: e.collection,
		fields:     fields,
		head:       append([]ref.EntityID(nil), e.head...),
	}
}

// Apply folds an event into the entity. Each operation takes effect
// only if its clock is at least the field's current clock (ties go to
// the incoming write — last write wins). The event's ID is appended
// to the entity's head.
//
// Returns an error if the event targets a different entity or
// collection, or its ID cannot be computed.
func (e *Entity) Apply(event *proto.Event) error {
	if event.Entity != e.id {
		return fmt.Errorf("event targets entity %s, not %s", event.Entity, e.id)
	}
	if !event.Collection.Equal(e.collection) {
		return fmt.Errorf("event targets collection %q, not %q", event.Collection, e.collection)
	}

	eventID, err := event.EventID()
	if err != nil {
		return err
	}

	for _, op := range event.Operations {
		current, exists := e.fields[op.Field]
		if exists && op.Clock < current.Clock {
			continue
		}
		e.fields[op.Field] = fieldState{Value: op.Value, Clock: op.Clock}
	}

	e.head = append(e.head, eventID)
	return nil
}

// MutationEvent builds an event that writes the given fields, with
// each operation clocked one past the field's current clock so the
// write wins under last-write-wins merge. Operations are ordered by
// field name, so logically identical mutations build byte-identical
// events. The entity itself is not modified — apply the returned
// event (typically to a clone, through the policy checkpoint) to take
// effect.
func (e *Entity) MutationEvent(fields map[string]any, timestamp int64) *proto.Event {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	operations := make([]proto.Operation, 0, len(fields))
	for _, name := range names {
		operations = append(operations, proto.Operation{
			Field: name,
			Value: fields[name],
			Clock: e.Clock(name) + 1,
		})
	}
	return &proto.Event{
		Entity:     e.id,
		Collection: e.collection,
		Operations: operations,
		Timestamp:  timestamp,
	}
}

// Snapshot serializes the entity to a storable state record. The
// field map's canonical encoding is deterministic, so identical
// entities snapshot to identical bytes.
func (e *Entity) Snapshot() (*proto.EntityState, error) {
	state, err := codec.Marshal(e.fields)
	if err != nil {
		return nil, fmt.Errorf("encoding entity state for %s: %w", e.id, err)
	}
	return &proto.EntityState{
		Entity:     e.id,
		Collection: e.collection,
		State:      state,
		Head:       e.Head(),
	}, nil
}
