// Copyright 2026 The Loom Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"github.com/loom-sync/loom/lib/ref"
)

// contextKind tags the three security context variants. The zero
// value is deliberately invalid: a Context that was never constructed
// through Authenticated, SystemContext, or AnonymousContext carries no
// privilege at all, not anonymous privilege.
type contextKind int

const (
	kindInvalid contextKind = iota
	kindAnonymous
	kindAuthenticated
	kindSystem
)

// Context is a security context: who is performing an operation. It
// is an immutable comparable value — request-scoped, never persisted,
// usable as a map key.
type Context struct {
	kind  contextKind
	actor ref.EntityID
}

// Authenticated returns the context of a verified actor. Panics if
// actor is the zero identifier — an authenticated context without an
// actor is a programming error, not a request error.
func Authenticated(actor ref.EntityID) Context {
	if actor.IsZero() {
		panic("policy: Authenticated requires a non-zero actor ID")
	}
	return Context{kind: kindAuthenticated, actor: actor}
}

// SystemContext returns the privileged context of the hosting process
// itself. It bypasses every authorization checkpoint and must never
// be derived from wire data — the verifier has no path that produces
// it.
func SystemContext() Context {
	return Context{kind: kindSystem}
}

// AnonymousContext returns the context of an actor with no identity.
// Its only privilege is creating a user entity (self-registration).
func AnonymousContext() Context {
	return Context{kind: kindAnonymous}
}

// IsAuthenticated reports whether the context carries a verified
// actor identity.
func (c Context) IsAuthenticated() bool { return c.kind == kindAuthenticated }

// IsSystem reports whether this is the hosting process's privileged
// context.
func (c Context) IsSystem() bool { return c.kind == kindSystem }

// IsAnonymous reports whether this is the anonymous context.
func (c Context) IsAnonymous() bool { return c.kind == kindAnonymous }

// Actor returns the authenticated actor's identifier. The second
// return is false for every non-authenticated context.
func (c Context) Actor() (ref.EntityID, bool) {
	if c.kind != kindAuthenticated {
		return ref.EntityID{}, false
	}
	return c.actor, true
}

// String renders the context for logs. The actor ID is public
// information; no key material ever appears here.
func (c Context) String() string {
	switch c.kind {
	case kindAuthenticated:
		return "authenticated(" + c.actor.String() + ")"
	case kindSystem:
		return "system"
	case kindAnonymous:
		return "anonymous"
	default:
		return "invalid"
	}
}
