// Copyright 2026 The Loom Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import (
	"encoding/base64"
	"fmt"

	"github.com/google/uuid"
)

// EntityIDSize is the size of an entity identifier in bytes.
const EntityIDSize = 16

// entityIDEncoding is the canonical text encoding for entity
// identifiers: URL-safe base64 without padding, 22 characters for 16
// bytes. This is the form stored in entity field values (a message's
// "user" field holds the owning actor's encoded ID) and printed in
// logs and CLI output.
var entityIDEncoding = base64.RawURLEncoding

// EntityID is a 16-byte opaque entity identifier. The zero value is
// not a valid identifier and is used to mean "absent".
//
// EntityID is a comparable value type — usable as a map key and
// compared with ==.
type EntityID [EntityIDSize]byte

// NewEntityID returns a fresh random entity identifier. Randomness
// comes from the uuid package's crypto/rand-backed generator; the
// UUID version bits are kept as-is since Loom treats the identifier
// as fully opaque.
func NewEntityID() EntityID {
	return EntityID(uuid.New())
}

// EntityIDFromBytes constructs an EntityID from exactly 16 raw bytes.
func EntityIDFromBytes(data []byte) (EntityID, error) {
	if len(data) != EntityIDSize {
		return EntityID{}, fmt.Errorf("entity ID must be %d bytes, got %d", EntityIDSize, len(data))
	}
	var id EntityID
	copy(id[:], data)
	return id, nil
}

// ParseEntityID parses the canonical base64 text form of an entity
// identifier.
func ParseEntityID(text string) (EntityID, error) {
	decoded, err := entityIDEncoding.DecodeString(text)
	if err != nil {
		return EntityID{}, fmt.Errorf("invalid entity ID %q: %w", text, err)
	}
	return EntityIDFromBytes(decoded)
}

// Bytes returns the raw 16-byte form. The returned slice is a copy.
func (id EntityID) Bytes() []byte {
	return append([]byte(nil), id[:]...)
}

// String returns the canonical base64 text form, satisfying
// fmt.Stringer.
func (id EntityID) String() string {
	return entityIDEncoding.EncodeToString(id[:])
}

// IsZero reports whether this is the zero-value (absent) identifier.
func (id EntityID) IsZero() bool {
	return id == EntityID{}
}

// MarshalText implements encoding.TextMarshaler, serializing as the
// canonical base64 form.
func (id EntityID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Empty input
// produces the zero value, the symmetric counterpart to marshaling an
// absent identifier.
func (id *EntityID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*id = EntityID{}
		return nil
	}
	parsed, err := ParseEntityID(string(data))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
