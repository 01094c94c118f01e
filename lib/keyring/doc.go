// Copyright 2026 The Loom Authors
// SPDX-License-Identifier: Apache-2.0

// Package keyring manages the Ed25519 signing keypair a client uses
// to authenticate requests.
//
// The private key lives in a [secret.Buffer] (mmap-backed, locked
// against swap, excluded from core dumps, zeroed on Close) from the
// moment of generation. At rest it is sealed to a passphrase with
// lib/sealed and written to the state directory; the public key is
// stored alongside in plain base64, the same encoding published in
// the actor's user record.
//
// The private key never leaves this process: it is not transmitted,
// not logged, and not present in any request. Only signatures made
// with it cross the wire.
package keyring
