// Copyright 2026 The Loom Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"crypto/ed25519"
	"fmt"

	"github.com/loom-sync/loom/lib/proto"
	"github.com/loom-sync/loom/lib/ref"
)

// Auth token layout: actor ID followed by signature, nothing else.
const (
	// ActorIDSize is the length of the actor ID prefix.
	ActorIDSize = ref.EntityIDSize // 16 bytes

	// SignatureSize is the length of the Ed25519 signature.
	SignatureSize = ed25519.SignatureSize // 64 bytes

	// AuthDataSize is the exact length of a non-empty auth token.
	AuthDataSize = ActorIDSize + SignatureSize // 80 bytes
)

// buildAuthData concatenates an actor ID and signature into the wire
// token.
func buildAuthData(actor ref.EntityID, signature []byte) proto.AuthData {
	token := make([]byte, 0, AuthDataSize)
	token = append(token, actor[:]...)
	token = append(token, signature...)
	return proto.AuthData(token)
}

// SplitAuthData validates a non-empty token's length and splits it
// into actor ID and signature. Callers handle the empty (anonymous)
// case before calling this.
func SplitAuthData(data proto.AuthData) (ref.EntityID, []byte, error) {
	if len(data) < AuthDataSize {
		return ref.EntityID{}, nil, fmt.Errorf("%w: got %d bytes, want %d", ErrAuthDataTooShort, len(data), AuthDataSize)
	}
	if len(data) > AuthDataSize {
		return ref.EntityID{}, nil, fmt.Errorf("%w: got %d bytes, want %d", ErrAuthDataTooLong, len(data), AuthDataSize)
	}

	actor, err := ref.EntityIDFromBytes(data[:ActorIDSize])
	if err != nil {
		return ref.EntityID{}, nil, fmt.Errorf("%w: %v", ErrMalformedActorID, err)
	}
	if actor.IsZero() {
		return ref.EntityID{}, nil, fmt.Errorf("%w: zero actor ID", ErrMalformedActorID)
	}

	signature := data[ActorIDSize:]
	if len(signature) != SignatureSize {
		return ref.EntityID{}, nil, fmt.Errorf("%w: got %d bytes, want %d", ErrMalformedSignature, len(signature), SignatureSize)
	}
	return actor, signature, nil
}
