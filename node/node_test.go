// Copyright 2026 The Loom Authors
// SPDX-License-Identifier: Apache-2.0

package node

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/loom-sync/loom/lib/clock"
	"github.com/loom-sync/loom/lib/entity"
	"github.com/loom-sync/loom/lib/keyring"
	"github.com/loom-sync/loom/lib/model"
	"github.com/loom-sync/loom/lib/policy"
	"github.com/loom-sync/loom/lib/proto"
	"github.com/loom-sync/loom/lib/ref"
	"github.com/loom-sync/loom/lib/storage"
)

var testTime = time.Unix(1700000000, 0)

// openTestNode starts a node on a fresh temporary database.
func openTestNode(t *testing.T) *Node {
	t.Helper()
	return openTestNodeAt(t, filepath.Join(t.TempDir(), "loom.db"))
}

func openTestNodeAt(t *testing.T, databasePath string) *Node {
	t.Helper()
	n, err := Open(context.Background(), Config{
		ID:           ref.NewEntityID(),
		DatabasePath: databasePath,
		Clock:        clock.Fake(testTime),
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		if err := n.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return n
}

// registerUser creates a user entity with a fresh keypair's public
// key, registered through an anonymous session the way a real signup
// arrives, and returns the actor ID with a signing agent for it.
func registerUser(t *testing.T, n *Node, displayName string) (ref.EntityID, *policy.ClientAgent) {
	t.Helper()
	ctx := context.Background()

	keypair, err := keyring.Generate()
	if err != nil {
		t.Fatalf("generating keypair: %v", err)
	}
	t.Cleanup(func() { keypair.Close() })

	actor := ref.NewEntityID()
	user := entity.New(actor, model.CollectionUser)
	event := user.MutationEvent(model.UserFields(displayName, keypair.PublicBase64()), testTime.UnixMilli())
	if err := n.Session(policy.AnonymousContext()).Commit(ctx, []proto.Event{*event}); err != nil {
		t.Fatalf("registering user: %v", err)
	}

	agent, err := policy.NewClientAgent(keypair.Private)
	if err != nil {
		t.Fatalf("NewClientAgent: %v", err)
	}
	return actor, agent
}

// creationEvent builds the first event of a new entity.
func creationEvent(collection ref.CollectionID, fields map[string]any) (ref.EntityID, proto.Event) {
	id := ref.NewEntityID()
	e := entity.New(id, collection)
	return id, *e.MutationEvent(fields, testTime.UnixMilli())
}

func TestOpenRequiresID(t *testing.T) {
	_, err := Open(context.Background(), Config{
		DatabasePath: filepath.Join(t.TempDir(), "loom.db"),
	})
	if err == nil {
		t.Fatal("Open succeeded without a node ID")
	}
}

func TestOpenBootstrapsDefaultRoom(t *testing.T) {
	databasePath := filepath.Join(t.TempDir(), "loom.db")
	ctx := context.Background()

	n := openTestNodeAt(t, databasePath)
	rooms, err := n.Session(policy.SystemContext()).Fetch(ctx, model.CollectionRoom, "")
	if err != nil {
		t.Fatalf("Fetch rooms: %v", err)
	}
	if len(rooms) != 1 {
		t.Fatalf("got %d rooms after bootstrap, want 1", len(rooms))
	}
	room, err := entity.FromState(&rooms[0])
	if err != nil {
		t.Fatalf("FromState: %v", err)
	}
	if name, _ := room.StringValue(model.FieldName); name != DefaultRoomName {
		t.Errorf("bootstrap room name = %q, want %q", name, DefaultRoomName)
	}

	// A second node over the same database must not duplicate the
	// room.
	again := openTestNodeAt(t, databasePath)
	rooms, err = again.Session(policy.SystemContext()).Fetch(ctx, model.CollectionRoom, "")
	if err != nil {
		t.Fatalf("Fetch rooms after reopen: %v", err)
	}
	if len(rooms) != 1 {
		t.Errorf("got %d rooms after reopen, want 1", len(rooms))
	}
}

func TestEnsureRoomIdempotent(t *testing.T) {
	n := openTestNode(t)
	ctx := context.Background()

	first, err := n.EnsureRoom(ctx, "Lobby")
	if err != nil {
		t.Fatalf("EnsureRoom: %v", err)
	}
	second, err := n.EnsureRoom(ctx, "Lobby")
	if err != nil {
		t.Fatalf("EnsureRoom again: %v", err)
	}
	if first != second {
		t.Errorf("EnsureRoom returned %s then %s for the same name", first, second)
	}

	other, err := n.EnsureRoom(ctx, "Engineering")
	if err != nil {
		t.Fatalf("EnsureRoom other name: %v", err)
	}
	if other == first {
		t.Error("different room names share an entity ID")
	}
}

func TestAnonymousSessionLimits(t *testing.T) {
	n := openTestNode(t)
	ctx := context.Background()
	session := n.Session(policy.AnonymousContext())

	_, userEvent := creationEvent(model.CollectionUser, model.UserFields("Fresh Signup", "irrelevant"))
	if err := session.Commit(ctx, []proto.Event{userEvent}); err != nil {
		t.Errorf("anonymous user registration failed: %v", err)
	}

	_, roomEvent := creationEvent(model.CollectionRoom, model.RoomFields("Sneaky"))
	if err := session.Commit(ctx, []proto.Event{roomEvent}); !policy.IsAccessDenied(err) {
		t.Errorf("anonymous room creation: error = %v, want AccessDenied", err)
	}

	_, messageEvent := creationEvent(model.CollectionMessage,
		model.MessageFields(ref.NewEntityID(), ref.NewEntityID(), "hi", testTime.UnixMilli()))
	if err := session.Commit(ctx, []proto.Event{messageEvent}); !policy.IsAccessDenied(err) {
		t.Errorf("anonymous message creation: error = %v, want AccessDenied", err)
	}
}

func TestAuthenticatedMessageOwnership(t *testing.T) {
	n := openTestNode(t)
	ctx := context.Background()

	alice, _ := registerUser(t, n, "Alice")
	room, err := n.EnsureRoom(ctx, "Lobby")
	if err != nil {
		t.Fatalf("EnsureRoom: %v", err)
	}

	session := n.Session(policy.Authenticated(alice))

	_, own := creationEvent(model.CollectionMessage,
		model.MessageFields(alice, room, "hello from alice", testTime.UnixMilli()))
	if err := session.Commit(ctx, []proto.Event{own}); err != nil {
		t.Errorf("committing own message: %v", err)
	}

	_, forged := creationEvent(model.CollectionMessage,
		model.MessageFields(ref.NewEntityID(), room, "hello from someone else", testTime.UnixMilli()))
	if err := session.Commit(ctx, []proto.Event{forged}); !policy.IsAccessDenied(err) {
		t.Errorf("committing message owned by another user: error = %v, want AccessDenied", err)
	}

	messages, err := session.Fetch(ctx, model.CollectionMessage, "room = "+room.String())
	if err != nil {
		t.Fatalf("Fetch messages: %v", err)
	}
	if len(messages) != 1 {
		t.Errorf("got %d messages in room, want 1", len(messages))
	}
}

func TestMessageEditOwnership(t *testing.T) {
	n := openTestNode(t)
	ctx := context.Background()

	alice, _ := registerUser(t, n, "Alice")
	mallory, _ := registerUser(t, n, "Mallory")
	room, err := n.EnsureRoom(ctx, "Lobby")
	if err != nil {
		t.Fatalf("EnsureRoom: %v", err)
	}

	messageID, create := creationEvent(model.CollectionMessage,
		model.MessageFields(alice, room, "original", testTime.UnixMilli()))
	if err := n.Session(policy.Authenticated(alice)).Commit(ctx, []proto.Event{create}); err != nil {
		t.Fatalf("creating message: %v", err)
	}

	tombstone := proto.Event{
		Entity:     messageID,
		Collection: model.CollectionMessage,
		Operations: []proto.Operation{
			{Field: model.FieldDeleted, Value: true, Clock: 2},
		},
		Timestamp: testTime.UnixMilli(),
	}

	if err := n.Session(policy.Authenticated(mallory)).Commit(ctx, []proto.Event{tombstone}); !policy.IsAccessDenied(err) {
		t.Errorf("deleting another user's message: error = %v, want AccessDenied", err)
	}
	if err := n.Session(policy.Authenticated(alice)).Commit(ctx, []proto.Event{tombstone}); err != nil {
		t.Errorf("deleting own message: %v", err)
	}

	remaining, err := n.Session(policy.Authenticated(alice)).Fetch(ctx,
		model.CollectionMessage, "room = "+room.String()+" and deleted = false")
	if err != nil {
		t.Fatalf("Fetch live messages: %v", err)
	}
	if len(remaining) != 0 {
		t.Errorf("got %d live messages after delete, want 0", len(remaining))
	}
}

func TestGetReadsEntities(t *testing.T) {
	n := openTestNode(t)
	ctx := context.Background()

	room, err := n.EnsureRoom(ctx, "Lobby")
	if err != nil {
		t.Fatalf("EnsureRoom: %v", err)
	}

	states, err := n.Session(policy.AnonymousContext()).Get(ctx, model.CollectionRoom, []ref.EntityID{room})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(states) != 1 || states[0].Entity != room {
		t.Fatalf("Get returned %d states, want the room", len(states))
	}

	_, err = n.Session(policy.AnonymousContext()).Get(ctx, model.CollectionRoom, []ref.EntityID{ref.NewEntityID()})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Get missing entity: error = %v, want storage.ErrNotFound", err)
	}
}

func TestDirectoryServesPublishedKeys(t *testing.T) {
	n := openTestNode(t)
	ctx := context.Background()

	alice, agent := registerUser(t, n, "Alice")

	request := &proto.NodeRequest{
		ID:   ref.NewEntityID(),
		From: ref.NewEntityID(),
		To:   n.ID(),
		Body: proto.RequestBody{Kind: proto.RequestFetch, Collection: model.CollectionRoom},
	}
	auth, err := agent.SignRequest([]policy.Context{policy.Authenticated(alice)}, request)
	if err != nil {
		t.Fatalf("SignRequest: %v", err)
	}

	contexts, err := n.Agent().VerifyRequest(ctx, auth, request)
	if err != nil {
		t.Fatalf("VerifyRequest: %v", err)
	}
	if len(contexts) != 1 || contexts[0] != policy.Authenticated(alice) {
		t.Errorf("contexts = %v, want [Authenticated(%s)]", contexts, alice)
	}

	// A signature from an actor with no user record fails the
	// directory lookup.
	stranger := policy.Authenticated(ref.NewEntityID())
	auth, err = agent.SignRequest([]policy.Context{stranger}, request)
	if err != nil {
		t.Fatalf("SignRequest as stranger: %v", err)
	}
	if _, err := n.Agent().VerifyRequest(ctx, auth, request); !errors.Is(err, policy.ErrActorNotFound) {
		t.Errorf("VerifyRequest for unknown actor: error = %v, want ErrActorNotFound", err)
	}
}
