// Copyright 2026 The Loom Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/loom-sync/loom/lib/codec"
	"github.com/loom-sync/loom/lib/proto"
	"github.com/loom-sync/loom/lib/ref"
)

// Directory resolves an actor's published verifying key. The node
// implements it on top of its entity store, reading through the
// system context — the lookup is a privileged operation performed on
// the verifier's behalf, never with the caller's own (as yet
// unproven) identity.
//
// ActorPublicKey returns the base64-encoded 32-byte Ed25519 verifying
// key for the actor, re-read from current state on every call so a
// key rotation takes effect on the next verified request.
// Implementations return an error wrapping [ErrActorNotFound] when no
// record exists; any other error means the lookup itself failed.
type Directory interface {
	ActorPublicKey(ctx context.Context, actor ref.EntityID) (string, error)
}

// ServerAgent is the server-role policy agent: it verifies inbound
// request auth against the actor directory. It holds no signing key.
//
// The directory capability is attached after construction via
// InitDirectory, because the directory is backed by the node's own
// entity store and the node cannot exist before its agent does.
// Verifying before the directory is attached is a programmer-misuse
// panic, not a request error.
type ServerAgent struct {
	checkpoints

	logger *slog.Logger

	// directory is an initialize-once cell: the first InitDirectory
	// wins, later calls are no-ops. CompareAndSwap gives race-safe
	// first-writer-wins without a mutex.
	directory atomic.Pointer[directoryCell]
}

// directoryCell wraps the interface value so the atomic pointer has a
// concrete type to point at.
type directoryCell struct {
	directory Directory
}

// NewServerAgent creates a server agent. The directory must be
// attached with InitDirectory before the first VerifyRequest.
func NewServerAgent(logger *slog.Logger) *ServerAgent {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ServerAgent{logger: logger}
}

// InitDirectory attaches the actor-directory capability. Exactly-once
// with first-writer-wins semantics: concurrent callers race safely,
// one directory is retained, and every later call (including after
// the race) is a silent no-op. Panics only on a nil directory.
func (a *ServerAgent) InitDirectory(directory Directory) {
	if directory == nil {
		panic("policy: InitDirectory requires a non-nil directory")
	}
	a.directory.CompareAndSwap(nil, &directoryCell{directory: directory})
}

// lookupDirectory returns the attached directory, panicking if
// InitDirectory has not run. Reading the privileged capability before
// initialization is a process-level invariant violation.
func (a *ServerAgent) lookupDirectory() Directory {
	cell := a.directory.Load()
	if cell == nil {
		panic("policy: actor directory not initialized - call InitDirectory after the node exists")
	}
	return cell.directory
}

// SignRequest implements the signing side of the agent surface for
// server-role nodes. Server-to-server requests carry no caller
// identity at this layer — peers authenticate each other at the
// transport — so the result is a single anonymous token.
func (a *ServerAgent) SignRequest(contexts []Context, request *proto.NodeRequest) ([]proto.AuthData, error) {
	return []proto.AuthData{{}}, nil
}

// VerifyRequest recovers the security contexts behind an inbound
// request, one per auth token, preserving token order. The first
// failing token aborts the whole verification — a request with any
// bad credential is rejected outright rather than partially
// authenticated.
//
// Per token: empty yields Anonymous. Otherwise the token must be
// exactly 80 bytes; the embedded actor's current public key is
// fetched through the directory, and the signature is checked against
// the canonical encoding of the request. Every failure mode maps to
// one of the package's validation errors; none are swallowed.
//
// ctx bounds the directory lookups. A timed-out lookup surfaces as a
// verification failure (ErrDirectoryLookup), never as a weaker
// context kind.
func (a *ServerAgent) VerifyRequest(ctx context.Context, auth []proto.AuthData, request *proto.NodeRequest) ([]Context, error) {
	contexts := make([]Context, 0, len(auth))

	// The canonical request bytes are identical for every token, so
	// encode lazily on first need and reuse.
	var payload []byte

	for slot, token := range auth {
		if len(token) == 0 {
			a.logger.Debug("empty auth data, anonymous context", "slot", slot)
			contexts = append(contexts, AnonymousContext())
			continue
		}

		actor, signature, err := SplitAuthData(token)
		if err != nil {
			a.logger.Info("rejecting malformed auth data", "slot", slot, "error", err)
			return nil, err
		}

		encodedKey, err := a.lookupDirectory().ActorPublicKey(ctx, actor)
		if err != nil {
			if errors.Is(err, ErrActorNotFound) {
				a.logger.Info("auth for unknown actor", "slot", slot, "actor", actor)
				return nil, err
			}
			a.logger.Warn("actor directory lookup failed", "slot", slot, "actor", actor, "error", err)
			return nil, fmt.Errorf("%w: actor %s: %v", ErrDirectoryLookup, actor, err)
		}

		keyBytes, err := base64.StdEncoding.DecodeString(encodedKey)
		if err != nil {
			return nil, fmt.Errorf("%w: actor %s: %v", ErrPublicKeyEncoding, actor, err)
		}
		if len(keyBytes) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("%w: actor %s: got %d bytes, want %d", ErrPublicKeyLength, actor, len(keyBytes), ed25519.PublicKeySize)
		}

		if payload == nil {
			payload, err = codec.Marshal(request)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrRequestEncoding, err)
			}
		}

		if !ed25519.Verify(ed25519.PublicKey(keyBytes), payload, signature) {
			a.logger.Info("signature verification failed", "slot", slot, "actor", actor)
			return nil, fmt.Errorf("%w: actor %s", ErrSignatureInvalid, actor)
		}

		contexts = append(contexts, Authenticated(actor))
	}

	return contexts, nil
}
