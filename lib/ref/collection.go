// Copyright 2026 The Loom Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import (
	"fmt"
	"strings"
)

// CollectionID names the collection an entity belongs to. Collection
// names preserve the case they were created with, but identity is
// case-insensitive: use [CollectionID.Is] or [CollectionID.Equal] for
// comparisons, never ==.
type CollectionID string

// NewCollectionID validates a collection name. Names must be non-empty
// and contain no whitespace.
func NewCollectionID(name string) (CollectionID, error) {
	if name == "" {
		return "", fmt.Errorf("collection name is empty")
	}
	if strings.ContainsAny(name, " \t\n\r") {
		return "", fmt.Errorf("collection name %q contains whitespace", name)
	}
	return CollectionID(name), nil
}

// Is reports whether the collection matches name, ignoring case.
func (c CollectionID) Is(name string) bool {
	return strings.EqualFold(string(c), name)
}

// Equal reports whether two collection identifiers name the same
// collection, ignoring case.
func (c CollectionID) Equal(other CollectionID) bool {
	return strings.EqualFold(string(c), string(other))
}

// String returns the collection name as created, satisfying
// fmt.Stringer.
func (c CollectionID) String() string { return string(c) }

// Fold returns the lower-cased canonical form, used as a storage key
// so that "User" and "user" land in the same table rows.
func (c CollectionID) Fold() string { return strings.ToLower(string(c)) }

// MarshalText implements encoding.TextMarshaler.
func (c CollectionID) MarshalText() ([]byte, error) {
	return []byte(c), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *CollectionID) UnmarshalText(data []byte) error {
	*c = CollectionID(data)
	return nil
}
