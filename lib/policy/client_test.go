// Copyright 2026 The Loom Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"crypto/ed25519"
	"encoding/base64"
	"testing"

	"github.com/loom-sync/loom/lib/codec"
	"github.com/loom-sync/loom/lib/secret"
)

func TestNewClientAgentValidatesKey(t *testing.T) {
	if _, err := NewClientAgent(nil); err == nil {
		t.Error("nil key accepted")
	}

	short, err := secret.NewFromBytes(make([]byte, ed25519.PrivateKeySize-1))
	if err != nil {
		t.Fatalf("secret.NewFromBytes: %v", err)
	}
	defer short.Close()
	if _, err := NewClientAgent(short); err == nil {
		t.Error("short key accepted")
	}
}

func TestSignRequestAuthenticated(t *testing.T) {
	actor, publicKey, agent := testActor(t)
	request := testRequest()

	tokens, err := agent.SignRequest([]Context{Authenticated(actor)}, request)
	if err != nil {
		t.Fatalf("SignRequest: %v", err)
	}
	if len(tokens) != 1 {
		t.Fatalf("got %d tokens, want 1", len(tokens))
	}
	if len(tokens[0]) != AuthDataSize {
		t.Fatalf("token length = %d, want %d", len(tokens[0]), AuthDataSize)
	}

	gotActor, signature, err := SplitAuthData(tokens[0])
	if err != nil {
		t.Fatalf("SplitAuthData: %v", err)
	}
	if gotActor != actor {
		t.Errorf("token actor = %s, want %s", gotActor, actor)
	}

	// The signature must cover the canonical request encoding.
	payload, err := codec.Marshal(request)
	if err != nil {
		t.Fatalf("codec.Marshal: %v", err)
	}
	keyBytes := decodeTestKey(t, publicKey)
	if !ed25519.Verify(keyBytes, payload, signature) {
		t.Error("signature does not verify against the canonical request bytes")
	}
}

func TestSignRequestAnonymous(t *testing.T) {
	_, _, agent := testActor(t)

	tokens, err := agent.SignRequest([]Context{AnonymousContext()}, testRequest())
	if err != nil {
		t.Fatalf("SignRequest: %v", err)
	}
	if len(tokens) != 1 {
		t.Fatalf("got %d tokens, want 1", len(tokens))
	}
	if len(tokens[0]) != 0 {
		t.Errorf("anonymous token has %d bytes, want empty", len(tokens[0]))
	}
}

func TestSignRequestPreservesOrder(t *testing.T) {
	actor, _, agent := testActor(t)

	contexts := []Context{AnonymousContext(), Authenticated(actor), AnonymousContext()}
	tokens, err := agent.SignRequest(contexts, testRequest())
	if err != nil {
		t.Fatalf("SignRequest: %v", err)
	}
	if len(tokens) != 3 {
		t.Fatalf("got %d tokens, want 3", len(tokens))
	}
	if len(tokens[0]) != 0 || len(tokens[2]) != 0 {
		t.Error("anonymous slots should carry empty tokens")
	}
	if len(tokens[1]) != AuthDataSize {
		t.Errorf("authenticated slot has %d bytes, want %d", len(tokens[1]), AuthDataSize)
	}
}

func TestSignRequestRejectsSystemContext(t *testing.T) {
	_, _, agent := testActor(t)

	defer func() {
		if recover() == nil {
			t.Fatal("signing a system context did not panic")
		}
	}()
	agent.SignRequest([]Context{SystemContext()}, testRequest())
}

func TestSignRequestRejectsInvalidContext(t *testing.T) {
	_, _, agent := testActor(t)

	defer func() {
		if recover() == nil {
			t.Fatal("signing a zero-value context did not panic")
		}
	}()
	agent.SignRequest([]Context{{}}, testRequest())
}

func TestSignRequestEmptyContexts(t *testing.T) {
	_, _, agent := testActor(t)

	tokens, err := agent.SignRequest(nil, testRequest())
	if err != nil {
		t.Fatalf("SignRequest: %v", err)
	}
	if len(tokens) != 0 {
		t.Errorf("got %d tokens, want 0", len(tokens))
	}
}

func decodeTestKey(t *testing.T, encoded string) ed25519.PublicKey {
	t.Helper()
	keyBytes, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		t.Fatalf("decoding test key: %v", err)
	}
	return ed25519.PublicKey(keyBytes)
}
