// Copyright 2026 The Loom Authors
// SPDX-License-Identifier: Apache-2.0

package keyring

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/loom-sync/loom/lib/sealed"
	"github.com/loom-sync/loom/lib/secret"
)

const (
	sealedKeyFile = "signing-key.age"
	publicKeyFile = "signing-key.pub"
)

// Keypair holds an Ed25519 signing keypair. The private key is stored
// in a secret.Buffer; the public key is plain bytes, safe to publish.
//
// The caller must Close the keypair when done.
type Keypair struct {
	// Public is the 32-byte Ed25519 verifying key. Published in the
	// actor's user record (base64) for servers to verify against.
	Public ed25519.PublicKey

	// Private is the 64-byte Ed25519 signing key in mmap memory
	// outside the Go heap. Must never be logged, transmitted, or
	// written to disk unsealed.
	Private *secret.Buffer
}

// Close releases the private key memory. Idempotent.
func (k *Keypair) Close() error {
	if k.Private != nil {
		return k.Private.Close()
	}
	return nil
}

// PublicBase64 returns the verifying key in the encoding the actor
// directory stores: standard base64 of the 32 raw bytes.
func (k *Keypair) PublicBase64() string {
	return base64.StdEncoding.EncodeToString(k.Public)
}

// Generate creates a new Ed25519 keypair with the private key moved
// into protected memory immediately.
func Generate() (*Keypair, error) {
	public, private, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("keyring: generating Ed25519 keypair: %w", err)
	}

	// NewFromBytes zeros the heap copy of the private key.
	buffer, err := secret.NewFromBytes(private)
	if err != nil {
		return nil, fmt.Errorf("keyring: protecting private key: %w", err)
	}

	return &Keypair{Public: public, Private: buffer}, nil
}

// Save writes the keypair to the state directory: the private key
// sealed to the passphrase (0600), the public key in plain base64
// (0644). Overwrites existing files.
func (k *Keypair) Save(stateDir string, passphrase *secret.Buffer) error {
	ciphertext, err := sealed.Seal(k.Private.Bytes(), passphrase)
	if err != nil {
		return fmt.Errorf("keyring: sealing private key: %w", err)
	}

	sealedPath := filepath.Join(stateDir, sealedKeyFile)
	if err := os.WriteFile(sealedPath, ciphertext, 0600); err != nil {
		return fmt.Errorf("keyring: writing sealed key: %w", err)
	}

	publicPath := filepath.Join(stateDir, publicKeyFile)
	if err := os.WriteFile(publicPath, []byte(k.PublicBase64()+"\n"), 0644); err != nil {
		return fmt.Errorf("keyring: writing public key: %w", err)
	}

	return nil
}

// Load reads and unseals the keypair from the state directory. The
// unsealed private key is cross-checked against the stored public key
// so a mixed-up or tampered key file fails here rather than as
// mysterious signature rejections later.
func Load(stateDir string, passphrase *secret.Buffer) (*Keypair, error) {
	publicPath := filepath.Join(stateDir, publicKeyFile)
	encodedPublic, err := os.ReadFile(publicPath)
	if err != nil {
		return nil, fmt.Errorf("keyring: reading public key: %w", err)
	}
	public, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(encodedPublic)))
	if err != nil {
		return nil, fmt.Errorf("keyring: decoding public key: %w", err)
	}
	if len(public) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("keyring: public key has %d bytes, want %d", len(public), ed25519.PublicKeySize)
	}

	sealedPath := filepath.Join(stateDir, sealedKeyFile)
	ciphertext, err := os.ReadFile(sealedPath)
	if err != nil {
		return nil, fmt.Errorf("keyring: reading sealed key: %w", err)
	}

	private, err := sealed.Open(ciphertext, passphrase)
	if err != nil {
		return nil, fmt.Errorf("keyring: unsealing private key: %w", err)
	}
	if private.Len() != ed25519.PrivateKeySize {
		private.Close()
		return nil, fmt.Errorf("keyring: private key has %d bytes, want %d", private.Len(), ed25519.PrivateKeySize)
	}

	// An Ed25519 private key embeds its public half in the trailing
	// 32 bytes.
	if !bytes.Equal(private.Bytes()[ed25519.PublicKeySize:], public) {
		private.Close()
		return nil, fmt.Errorf("keyring: public key does not match private key")
	}

	return &Keypair{Public: ed25519.PublicKey(public), Private: private}, nil
}

// LoadOrGenerate loads an existing keypair from stateDir, or
// generates and saves a new one when no sealed key file exists.
// Returns the keypair and whether it was newly generated. A file that
// exists but fails to load (wrong passphrase, corruption) is an
// error, never silently replaced.
func LoadOrGenerate(stateDir string, passphrase *secret.Buffer) (*Keypair, bool, error) {
	keypair, err := Load(stateDir, passphrase)
	if err == nil {
		return keypair, false, nil
	}

	sealedPath := filepath.Join(stateDir, sealedKeyFile)
	if _, statErr := os.Stat(sealedPath); statErr == nil {
		// File exists but could not be loaded.
		return nil, false, err
	}

	keypair, err = Generate()
	if err != nil {
		return nil, false, err
	}
	if err := keypair.Save(stateDir, passphrase); err != nil {
		keypair.Close()
		return nil, false, err
	}
	return keypair, true, nil
}
