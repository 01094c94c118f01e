// Copyright 2026 The Loom Authors
// SPDX-License-Identifier: Apache-2.0

package entity

import (
	"testing"

	"github.com/loom-sync/loom/lib/proto"
	"github.com/loom-sync/loom/lib/ref"
)

func TestMutationEventAndApply(t *testing.T) {
	record := New(ref.NewEntityID(), "message")

	event := record.MutationEvent(map[string]any{
		"text": "hello",
		"user": "some-actor",
	}, 1700000000000)

	if len(event.Operations) != 2 {
		t.Fatalf("expected 2 operations, got %d", len(event.Operations))
	}
	// Operations are sorted by field name.
	if event.Operations[0].Field != "text" || event.Operations[1].Field != "user" {
		t.Errorf("operations not sorted by field: %+v", event.Operations)
	}

	if err := record.Apply(event); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	text, ok := record.StringValue("text")
	if !ok || text != "hello" {
		t.Errorf("text = %q (set=%v), want %q", text, ok, "hello")
	}
	if record.Clock("text") != 1 {
		t.Errorf("text clock = %d, want 1", record.Clock("text"))
	}
	if len(record.Head()) != 1 {
		t.Errorf("head length = %d, want 1", len(record.Head()))
	}
}

func TestApplyLastWriteWins(t *testing.T) {
	id := ref.NewEntityID()
	record := New(id, "message")

	newer := &proto.Event{
		Entity:     id,
		Collection: "message",
		Operations: []proto.Operation{{Field: "text", Value: "newer", Clock: 5}},
	}
	older := &proto.Event{
		Entity:     id,
		Collection: "message",
		Operations: []proto.Operation{{Field: "text", Value: "older", Clock: 3}},
	}
	tied := &proto.Event{
		Entity:     id,
		Collection: "message",
		Operations: []proto.Operation{{Field: "text", Value: "tied", Clock: 5}},
	}

	if err := record.Apply(newer); err != nil {
		t.Fatalf("Apply newer: %v", err)
	}
	if err := record.Apply(older); err != nil {
		t.Fatalf("Apply older: %v", err)
	}
	if text, _ := record.StringValue("text"); text != "newer" {
		t.Errorf("stale write applied: text = %q, want %q", text, "newer")
	}

	// Equal clocks resolve in favor of the incoming write.
	if err := record.Apply(tied); err != nil {
		t.Fatalf("Apply tied: %v", err)
	}
	if text, _ := record.StringValue("text"); text != "tied" {
		t.Errorf("tie did not go to incoming write: text = %q, want %q", text, "tied")
	}
}

func TestApplyRejectsWrongTarget(t *testing.T) {
	record := New(ref.NewEntityID(), "message")

	wrongEntity := &proto.Event{
		Entity:     ref.NewEntityID(),
		Collection: "message",
		Operations: []proto.Operation{{Field: "text", Value: "x", Clock: 1}},
	}
	if err := record.Apply(wrongEntity); err == nil {
		t.Error("Apply with wrong entity ID: expected error")
	}

	wrongCollection := &proto.Event{
		Entity:     record.ID(),
		Collection: "room",
		Operations: []proto.Operation{{Field: "text", Value: "x", Clock: 1}},
	}
	if err := record.Apply(wrongCollection); err == nil {
		t.Error("Apply with wrong collection: expected error")
	}

	// Case difference alone is not a different collection.
	caseOnly := &proto.Event{
		Entity:     record.ID(),
		Collection: "Message",
		Operations: []proto.Operation{{Field: "text", Value: "x", Clock: 1}},
	}
	if err := record.Apply(caseOnly); err != nil {
		t.Errorf("Apply with case-differing collection: %v", err)
	}
}

func TestSnapshotRoundtrip(t *testing.T) {
	record := New(ref.NewEntityID(), "user")
	event := record.MutationEvent(map[string]any{
		"display_name": "Ada",
		"pub_key":      "AAAA",
	}, 1700000000000)
	if err := record.Apply(event); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	snapshot, err := record.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	restored, err := FromState(snapshot)
	if err != nil {
		t.Fatalf("FromState: %v", err)
	}
	if restored.ID() != record.ID() {
		t.Error("ID did not survive snapshot roundtrip")
	}
	if !restored.Collection().Equal(record.Collection()) {
		t.Error("collection did not survive snapshot roundtrip")
	}
	name, ok := restored.StringValue("display_name")
	if !ok || name != "Ada" {
		t.Errorf("display_name = %q (set=%v), want Ada", name, ok)
	}
	if restored.Clock("display_name") != record.Clock("display_name") {
		t.Error("field clock did not survive snapshot roundtrip")
	}
	if len(restored.Head()) != 1 {
		t.Errorf("head length = %d, want 1", len(restored.Head()))
	}
}

func TestCloneIsolation(t *testing.T) {
	record := New(ref.NewEntityID(), "message")
	if err := record.Apply(record.MutationEvent(map[string]any{"text": "original"}, 0)); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	clone := record.Clone()
	if err := clone.Apply(clone.MutationEvent(map[string]any{"text": "changed"}, 0)); err != nil {
		t.Fatalf("Apply to clone: %v", err)
	}

	if text, _ := record.StringValue("text"); text != "original" {
		t.Errorf("mutating the clone changed the original: text = %q", text)
	}
	if text, _ := clone.StringValue("text"); text != "changed" {
		t.Errorf("clone text = %q, want changed", text)
	}
}
