// Copyright 2026 The Loom Authors
// SPDX-License-Identifier: Apache-2.0

package keyring

import (
	"bytes"
	"crypto/ed25519"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/loom-sync/loom/lib/secret"
)

func testPassphrase(t *testing.T, phrase string) *secret.Buffer {
	t.Helper()
	buffer, err := secret.NewFromBytes([]byte(phrase))
	if err != nil {
		t.Fatalf("secret.NewFromBytes: %v", err)
	}
	t.Cleanup(func() { buffer.Close() })
	return buffer
}

func TestGenerate(t *testing.T) {
	keypair, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	defer keypair.Close()

	if len(keypair.Public) != ed25519.PublicKeySize {
		t.Errorf("public key has %d bytes, want %d", len(keypair.Public), ed25519.PublicKeySize)
	}
	if keypair.Private.Len() != ed25519.PrivateKeySize {
		t.Errorf("private key has %d bytes, want %d", keypair.Private.Len(), ed25519.PrivateKeySize)
	}

	// The keypair must actually sign and verify.
	message := []byte("probe")
	signature := ed25519.Sign(ed25519.PrivateKey(keypair.Private.Bytes()), message)
	if !ed25519.Verify(keypair.Public, message, signature) {
		t.Error("generated keypair does not sign/verify")
	}
}

func TestPublicBase64(t *testing.T) {
	keypair, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	defer keypair.Close()

	decoded, err := base64.StdEncoding.DecodeString(keypair.PublicBase64())
	if err != nil {
		t.Fatalf("PublicBase64 is not valid base64: %v", err)
	}
	if !bytes.Equal(decoded, keypair.Public) {
		t.Error("PublicBase64 does not decode to the public key")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	stateDir := t.TempDir()
	passphrase := testPassphrase(t, "open sesame")

	original, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	defer original.Close()
	publicCopy := bytes.Clone(original.Public)

	if err := original.Save(stateDir, passphrase); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// The sealed file must not contain the raw private key.
	ciphertext, err := os.ReadFile(filepath.Join(stateDir, "signing-key.age"))
	if err != nil {
		t.Fatalf("reading sealed file: %v", err)
	}
	if bytes.Contains(ciphertext, original.Private.Bytes()) {
		t.Fatal("sealed file contains the raw private key")
	}

	loaded, err := Load(stateDir, passphrase)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	defer loaded.Close()

	if !bytes.Equal(loaded.Public, publicCopy) {
		t.Error("loaded public key differs from saved")
	}
	if !bytes.Equal(loaded.Private.Bytes(), original.Private.Bytes()) {
		t.Error("loaded private key differs from saved")
	}
}

func TestLoadWrongPassphrase(t *testing.T) {
	stateDir := t.TempDir()
	passphrase := testPassphrase(t, "right")
	wrong := testPassphrase(t, "wrong")

	keypair, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	defer keypair.Close()
	if err := keypair.Save(stateDir, passphrase); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if _, err := Load(stateDir, wrong); err == nil {
		t.Error("Load with wrong passphrase should return error")
	}
}

func TestLoadMismatchedPublicKey(t *testing.T) {
	stateDir := t.TempDir()
	passphrase := testPassphrase(t, "passphrase")

	keypair, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	defer keypair.Close()
	if err := keypair.Save(stateDir, passphrase); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// Replace the stored public key with a different one.
	other, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	defer other.Close()
	publicPath := filepath.Join(stateDir, "signing-key.pub")
	if err := os.WriteFile(publicPath, []byte(other.PublicBase64()+"\n"), 0644); err != nil {
		t.Fatalf("overwriting public key: %v", err)
	}

	if _, err := Load(stateDir, passphrase); err == nil {
		t.Error("Load with mismatched public key should return error")
	}
}

func TestLoadMissingFiles(t *testing.T) {
	passphrase := testPassphrase(t, "passphrase")
	if _, err := Load(t.TempDir(), passphrase); err == nil {
		t.Error("Load from empty directory should return error")
	}
}

func TestLoadOrGenerate(t *testing.T) {
	stateDir := t.TempDir()
	passphrase := testPassphrase(t, "passphrase")

	first, generated, err := LoadOrGenerate(stateDir, passphrase)
	if err != nil {
		t.Fatalf("LoadOrGenerate (first): %v", err)
	}
	defer first.Close()
	if !generated {
		t.Error("first call should generate")
	}
	firstPublic := bytes.Clone(first.Public)

	second, generated, err := LoadOrGenerate(stateDir, passphrase)
	if err != nil {
		t.Fatalf("LoadOrGenerate (second): %v", err)
	}
	defer second.Close()
	if generated {
		t.Error("second call should load, not generate")
	}
	if !bytes.Equal(second.Public, firstPublic) {
		t.Error("second call returned a different keypair")
	}
}

func TestLoadOrGenerateWrongPassphraseFails(t *testing.T) {
	stateDir := t.TempDir()
	passphrase := testPassphrase(t, "right")
	wrong := testPassphrase(t, "wrong")

	keypair, _, err := LoadOrGenerate(stateDir, passphrase)
	if err != nil {
		t.Fatalf("LoadOrGenerate: %v", err)
	}
	defer keypair.Close()

	// An existing sealed key with the wrong passphrase is an error,
	// never a silent regeneration that would orphan the identity.
	if _, _, err := LoadOrGenerate(stateDir, wrong); err == nil {
		t.Error("LoadOrGenerate with wrong passphrase should return error")
	}
}
