// Copyright 2026 The Loom Authors
// SPDX-License-Identifier: Apache-2.0

// Package sealed provides passphrase encryption for Loom key files.
// It wraps filippo.io/age's scrypt recipient for the one operation
// the keyring needs: seal a signing key to a passphrase at rest, open
// it again at startup.
//
// Passphrases and opened plaintext travel in [secret.Buffer] values
// backed by mmap memory outside the Go heap (locked against swap,
// excluded from core dumps, zeroed on Close). Ciphertext is the raw
// age format, written directly to disk.
//
// Depends on lib/secret for secure memory allocation.
package sealed
