// Copyright 2026 The Loom Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import "errors"

// Validation errors returned by request verification. Each aborts
// authentication of the offending token; the caller must treat the
// request as unauthenticated, never fall back to a weaker context.
// Match with errors.Is — call sites wrap these with detail.
var (
	// ErrAuthDataTooShort means a non-empty token was shorter than
	// the fixed 80-byte format.
	ErrAuthDataTooShort = errors.New("policy: auth data too short")

	// ErrAuthDataTooLong means a token carried trailing bytes past
	// the fixed 80-byte format. Rejected rather than truncated: bytes
	// the signature does not cover must not ride along with a valid
	// credential.
	ErrAuthDataTooLong = errors.New("policy: auth data too long")

	// ErrMalformedActorID means the token's actor ID bytes could not
	// be interpreted as an entity identifier.
	ErrMalformedActorID = errors.New("policy: malformed actor ID in auth data")

	// ErrMalformedSignature means the token's signature bytes could
	// not be interpreted as an Ed25519 signature.
	ErrMalformedSignature = errors.New("policy: malformed signature in auth data")

	// ErrActorNotFound means the directory has no record for the
	// actor ID embedded in the token.
	ErrActorNotFound = errors.New("policy: actor not found")

	// ErrDirectoryLookup means the directory lookup itself failed —
	// storage error, timeout, cancellation. Distinct from
	// ErrActorNotFound: the actor may exist, verification simply
	// could not complete.
	ErrDirectoryLookup = errors.New("policy: actor directory lookup failed")

	// ErrPublicKeyEncoding means the actor's stored public key is
	// not valid base64.
	ErrPublicKeyEncoding = errors.New("policy: invalid public key encoding")

	// ErrPublicKeyLength means the actor's stored public key does
	// not decode to exactly 32 bytes.
	ErrPublicKeyLength = errors.New("policy: invalid public key length")

	// ErrPublicKey means the decoded key bytes cannot be used as an
	// Ed25519 verifying key. crypto/ed25519 defers curve-point
	// validation to Verify, so in practice a malformed key surfaces
	// as ErrSignatureInvalid; the sentinel exists for directory
	// implementations that validate keys at publication time.
	ErrPublicKey = errors.New("policy: invalid public key")

	// ErrRequestEncoding means the request could not be canonically
	// encoded for signing or verification.
	ErrRequestEncoding = errors.New("policy: request encoding failed")

	// ErrSignatureInvalid means the signature does not verify against
	// the actor's published key and the request bytes.
	ErrSignatureInvalid = errors.New("policy: signature verification failed")
)

// AccessDenied is an authorization refusal: the caller authenticated
// fine (or deliberately didn't), but policy forbids the operation.
// Deliberately distinct from the validation errors above — a remote
// caller can correct an AccessDenied by changing what they ask for,
// not by re-authenticating.
type AccessDenied struct {
	// Reason is the human-readable policy reason, safe to return to
	// the remote caller.
	Reason string
}

// Error implements the error interface.
func (e *AccessDenied) Error() string {
	return "access denied: " + e.Reason
}

// deniedByPolicy builds an AccessDenied with the given reason.
func deniedByPolicy(reason string) *AccessDenied {
	return &AccessDenied{Reason: reason}
}

// IsAccessDenied reports whether err is an authorization refusal, as
// opposed to a validation failure or an internal error.
func IsAccessDenied(err error) bool {
	var denied *AccessDenied
	return errors.As(err, &denied)
}
