// Copyright 2026 The Loom Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sync"
	"testing"

	"github.com/loom-sync/loom/lib/proto"
	"github.com/loom-sync/loom/lib/ref"
	"github.com/loom-sync/loom/lib/secret"
)

// mapDirectory is a Directory backed by an in-memory map, standing in
// for the node's entity-store-backed implementation.
type mapDirectory struct {
	mu    sync.Mutex
	keys  map[ref.EntityID]string
	calls int
}

func newMapDirectory() *mapDirectory {
	return &mapDirectory{keys: make(map[ref.EntityID]string)}
}

func (d *mapDirectory) ActorPublicKey(ctx context.Context, actor ref.EntityID) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	key, ok := d.keys[actor]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrActorNotFound, actor)
	}
	return key, nil
}

func (d *mapDirectory) publish(actor ref.EntityID, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.keys[actor] = key
}

// failingDirectory fails every lookup with an infrastructure error.
type failingDirectory struct{}

func (failingDirectory) ActorPublicKey(ctx context.Context, actor ref.EntityID) (string, error) {
	return "", fmt.Errorf("store offline")
}

// testActor generates an actor with a fresh Ed25519 keypair and
// returns its ID, the base64 public key as the directory would store
// it, and a client agent holding the private key.
func testActor(t *testing.T) (ref.EntityID, string, *ClientAgent) {
	t.Helper()

	public, private, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	keyBuffer, err := secret.NewFromBytes(private)
	if err != nil {
		t.Fatalf("secret.NewFromBytes: %v", err)
	}
	t.Cleanup(func() { keyBuffer.Close() })

	agent, err := NewClientAgent(keyBuffer)
	if err != nil {
		t.Fatalf("NewClientAgent: %v", err)
	}
	return ref.NewEntityID(), base64.StdEncoding.EncodeToString(public), agent
}

// testRequest builds a commit request with fresh identifiers.
func testRequest() *proto.NodeRequest {
	return &proto.NodeRequest{
		ID:   ref.NewEntityID(),
		From: ref.NewEntityID(),
		To:   ref.NewEntityID(),
		Body: proto.RequestBody{
			Kind:      proto.RequestCommit,
			Predicate: "",
		},
	}
}

// testServer wires a server agent to a map directory.
func testServer(t *testing.T) (*ServerAgent, *mapDirectory) {
	t.Helper()
	directory := newMapDirectory()
	agent := NewServerAgent(nil)
	agent.InitDirectory(directory)
	return agent, directory
}
