// Copyright 2026 The Loom Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"testing"
)

// sampleRequest is a representative wire type using integer-keyed cbor
// struct tags, the convention for Loom protocol envelopes.
type sampleRequest struct {
	Kind       string `cbor:"1,keyasint"`
	Collection string `cbor:"2,keyasint,omitempty"`
	Count      int    `cbor:"3,keyasint"`
}

func TestMarshalUnmarshalRoundtrip(t *testing.T) {
	original := sampleRequest{
		Kind:       "commit",
		Collection: "message",
		Count:      42,
	}

	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("Marshal produced empty output")
	}

	var decoded sampleRequest
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded != original {
		t.Errorf("roundtrip mismatch: got %+v, want %+v", decoded, original)
	}
}

func TestMarshalDeterministic(t *testing.T) {
	message := sampleRequest{Kind: "fetch", Collection: "room", Count: 7}

	first, err := Marshal(message)
	if err != nil {
		t.Fatalf("first Marshal: %v", err)
	}
	second, err := Marshal(message)
	if err != nil {
		t.Fatalf("second Marshal: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Errorf("deterministic encoding violated: %x != %x", first, second)
	}
}

// TestMapKeyOrderDeterministic verifies that logically identical maps
// encode to identical bytes regardless of insertion order. This is the
// property request signing depends on: the verifier re-encodes the
// request it decoded, and the bytes must match what the signer signed.
func TestMapKeyOrderDeterministic(t *testing.T) {
	forward := map[string]any{}
	for _, key := range []string{"alpha", "beta", "gamma", "delta"} {
		forward[key] = key + "-value"
	}
	reverse := map[string]any{}
	for _, key := range []string{"delta", "gamma", "beta", "alpha"} {
		reverse[key] = key + "-value"
	}

	forwardBytes, err := Marshal(forward)
	if err != nil {
		t.Fatalf("Marshal forward: %v", err)
	}
	reverseBytes, err := Marshal(reverse)
	if err != nil {
		t.Fatalf("Marshal reverse: %v", err)
	}
	if !bytes.Equal(forwardBytes, reverseBytes) {
		t.Errorf("map key order leaked into encoding: %x != %x", forwardBytes, reverseBytes)
	}
}

// TestDecodeThenReencodeStable verifies that decode followed by
// re-encode reproduces the original canonical bytes for the any-typed
// values used in entity fields.
func TestDecodeThenReencodeStable(t *testing.T) {
	original := map[string]any{
		"text":      "hello",
		"timestamp": int64(1700000000),
		"deleted":   false,
	}

	encoded, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded any
	if err := Unmarshal(encoded, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	reencoded, err := Marshal(decoded)
	if err != nil {
		t.Fatalf("re-Marshal: %v", err)
	}
	if !bytes.Equal(encoded, reencoded) {
		t.Errorf("decode/re-encode not stable: %x != %x", encoded, reencoded)
	}
}

func TestEncoderDecoderStreamRoundtrip(t *testing.T) {
	messages := []sampleRequest{
		{Kind: "commit", Collection: "user", Count: 1},
		{Kind: "get", Collection: "message", Count: 2},
		{Kind: "fetch", Count: 0},
	}

	var buffer bytes.Buffer
	encoder := NewEncoder(&buffer)
	for _, message := range messages {
		if err := encoder.Encode(message); err != nil {
			t.Fatalf("Encode: %v", err)
		}
	}

	decoder := NewDecoder(&buffer)
	for i, want := range messages {
		var got sampleRequest
		if err := decoder.Decode(&got); err != nil {
			t.Fatalf("Decode message %d: %v", i, err)
		}
		if got != want {
			t.Errorf("message %d: got %+v, want %+v", i, got, want)
		}
	}
}

func TestUnmarshalIgnoresUnknownFields(t *testing.T) {
	// An envelope with an extra field a future version might add.
	extended := map[int]any{1: "commit", 3: 9, 99: "future"}
	data, err := Marshal(extended)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded sampleRequest
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal with unknown field: %v", err)
	}
	if decoded.Kind != "commit" || decoded.Count != 9 {
		t.Errorf("got %+v, want Kind=commit Count=9", decoded)
	}
}
