// Copyright 2026 The Loom Authors
// SPDX-License-Identifier: Apache-2.0

package sealed

import (
	"bytes"
	"fmt"
	"io"

	"filippo.io/age"

	"github.com/loom-sync/loom/lib/secret"
)

// Seal encrypts plaintext to a passphrase using age's scrypt
// recipient and returns the raw age ciphertext. The plaintext is
// borrowed; callers holding it in a secret.Buffer keep ownership.
//
// The default scrypt work factor is deliberate: sealing happens once
// per keypair, opening once per process start, so a slow KDF costs
// nothing in steady state.
func Seal(plaintext []byte, passphrase *secret.Buffer) ([]byte, error) {
	// The recipient API takes a string; the heap copy is brief and
	// scoped to this call.
	recipient, err := age.NewScryptRecipient(passphrase.String())
	if err != nil {
		return nil, fmt.Errorf("building scrypt recipient: %w", err)
	}

	var ciphertext bytes.Buffer
	writer, err := age.Encrypt(&ciphertext, recipient)
	if err != nil {
		return nil, fmt.Errorf("creating age encryptor: %w", err)
	}
	if _, err := writer.Write(plaintext); err != nil {
		return nil, fmt.Errorf("writing plaintext to age encryptor: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("finalizing age encryption: %w", err)
	}

	return ciphertext.Bytes(), nil
}

// Open decrypts raw age ciphertext with a passphrase. The plaintext
// is returned in a secret.Buffer (mmap-backed, zeroed on Close); the
// caller must Close it. A wrong passphrase surfaces as a decryption
// error from age, indistinguishable from corrupt ciphertext.
func Open(ciphertext []byte, passphrase *secret.Buffer) (*secret.Buffer, error) {
	identity, err := age.NewScryptIdentity(passphrase.String())
	if err != nil {
		return nil, fmt.Errorf("building scrypt identity: %w", err)
	}

	reader, err := age.Decrypt(bytes.NewReader(ciphertext), identity)
	if err != nil {
		return nil, fmt.Errorf("decrypting: %w", err)
	}

	plaintext, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("reading decrypted plaintext: %w", err)
	}

	// Move the plaintext into mmap-backed memory immediately;
	// NewFromBytes zeros the heap copy.
	buffer, err := secret.NewFromBytes(plaintext)
	if err != nil {
		secret.Zero(plaintext)
		return nil, fmt.Errorf("protecting decrypted plaintext: %w", err)
	}
	return buffer, nil
}
