// Copyright 2026 The Loom Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"crypto/ed25519"
	"fmt"

	"github.com/loom-sync/loom/lib/codec"
	"github.com/loom-sync/loom/lib/proto"
	"github.com/loom-sync/loom/lib/secret"
)

// ClientAgent is the client-role policy agent: it signs outbound
// requests with the session's private key. It has no verification
// capability and no directory access — that asymmetry is the role
// split, enforced by the type system rather than a runtime check.
type ClientAgent struct {
	checkpoints

	// privateKey holds the 64-byte Ed25519 private key. Borrowed
	// from the caller (typically a keyring.Keypair); the agent never
	// copies it onto the heap, transmits it, or logs it.
	privateKey *secret.Buffer
}

// NewClientAgent creates a client agent around a private signing key.
// The key buffer is borrowed — the caller keeps ownership and must
// keep it open for the agent's lifetime.
func NewClientAgent(privateKey *secret.Buffer) (*ClientAgent, error) {
	if privateKey == nil {
		return nil, fmt.Errorf("policy: client agent requires a private key")
	}
	if privateKey.Len() != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("policy: private key has %d bytes, want %d", privateKey.Len(), ed25519.PrivateKeySize)
	}
	return &ClientAgent{privateKey: privateKey}, nil
}

// SignRequest produces one auth token per active context, in input
// order: an 80-byte actor-and-signature token for authenticated
// contexts, empty bytes for anonymous.
//
// Panics if asked to sign a System context. That is not a request
// error — it is the hosting program violating the invariant that
// system privilege never crosses the wire, and continuing would turn
// a local bug into a remote credential.
func (a *ClientAgent) SignRequest(contexts []Context, request *proto.NodeRequest) ([]proto.AuthData, error) {
	payload, err := codec.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestEncoding, err)
	}

	tokens := make([]proto.AuthData, 0, len(contexts))
	for _, cctx := range contexts {
		switch {
		case cctx.IsAuthenticated():
			actor, _ := cctx.Actor()
			signature := ed25519.Sign(ed25519.PrivateKey(a.privateKey.Bytes()), payload)
			tokens = append(tokens, buildAuthData(actor, signature))
		case cctx.IsAnonymous():
			tokens = append(tokens, proto.AuthData{})
		case cctx.IsSystem():
			panic("policy: system context must never be signed for the wire")
		default:
			panic("policy: cannot sign an invalid security context")
		}
	}
	return tokens, nil
}
