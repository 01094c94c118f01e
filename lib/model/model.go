// Copyright 2026 The Loom Authors
// SPDX-License-Identifier: Apache-2.0

// Package model defines Loom's fixed data model: the user, room, and
// message collections, their field names, and typed read views over
// generic entity records.
//
// The policy layer cares about two shapes here: user entities hold the
// published verifying key consulted during request verification, and
// message entities carry the "user" ownership field checked at the
// event-acceptance checkpoint. Rooms have no policy-relevant fields.
package model

import (
	"fmt"

	"github.com/loom-sync/loom/lib/entity"
	"github.com/loom-sync/loom/lib/ref"
)

// Collection tags. Comparison is case-insensitive everywhere
// (ref.CollectionID.Is), so these constants fix the canonical
// spelling without making case significant.
const (
	CollectionUser    ref.CollectionID = "user"
	CollectionRoom    ref.CollectionID = "room"
	CollectionMessage ref.CollectionID = "message"
)

// Field names.
const (
	FieldDisplayName = "display_name"
	FieldPubKey      = "pub_key"
	FieldName        = "name"
	FieldUser        = "user"
	FieldRoom        = "room"
	FieldText        = "text"
	FieldTimestamp   = "timestamp"
	FieldDeleted     = "deleted"
)

// UserFields builds the field map for creating a user entity. The
// public key is the base64 encoding of a 32-byte Ed25519 verifying
// key; lib/policy decodes it at verification time.
func UserFields(displayName, pubKeyBase64 string) map[string]any {
	return map[string]any{
		FieldDisplayName: displayName,
		FieldPubKey:      pubKeyBase64,
	}
}

// RoomFields builds the field map for creating a room entity.
func RoomFields(name string) map[string]any {
	return map[string]any{
		FieldName: name,
	}
}

// MessageFields builds the field map for creating a message entity.
// The user and room references are stored as base64 entity ID text,
// the canonical form for actor references in field values.
func MessageFields(user, room ref.EntityID, text string, timestamp int64) map[string]any {
	return map[string]any{
		FieldUser:      user.String(),
		FieldRoom:      room.String(),
		FieldText:      text,
		FieldTimestamp: timestamp,
		FieldDeleted:   false,
	}
}

// User is a read view over a user entity.
type User struct{ *entity.Entity }

// AsUser wraps an entity known to be in the user collection.
func AsUser(e *entity.Entity) (User, error) {
	if !e.Collection().Is(string(CollectionUser)) {
		return User{}, fmt.Errorf("entity %s is in collection %q, not user", e.ID(), e.Collection())
	}
	return User{e}, nil
}

// DisplayName returns the user's display name, or "" if unset.
func (u User) DisplayName() string {
	name, _ := u.StringValue(FieldDisplayName)
	return name
}

// PubKey returns the user's published verifying key in base64, or an
// error if the field is unset. A user without a key cannot
// authenticate; verification surfaces this as a failed lookup.
func (u User) PubKey() (string, error) {
	key, ok := u.StringValue(FieldPubKey)
	if !ok || key == "" {
		return "", fmt.Errorf("user %s has no published public key", u.ID())
	}
	return key, nil
}

// Message is a read view over a message entity.
type Message struct{ *entity.Entity }

// AsMessage wraps an entity known to be in the message collection.
func AsMessage(e *entity.Entity) (Message, error) {
	if !e.Collection().Is(string(CollectionMessage)) {
		return Message{}, fmt.Errorf("entity %s is in collection %q, not message", e.ID(), e.Collection())
	}
	return Message{e}, nil
}

// Text returns the message body, or "" if unset.
func (m Message) Text() string {
	text, _ := m.StringValue(FieldText)
	return text
}

// Owner resolves the message's "user" field to an actor ID. Returns
// (zero, false, nil) when the field is unset, and an error when the
// field is set but is not a valid entity ID reference. A present
// value of the wrong type is malformed, not absent — absence skips
// the ownership check, so misclassifying it would be a policy bypass.
func (m Message) Owner() (ref.EntityID, bool, error) {
	value, ok := m.Value(FieldUser)
	if !ok {
		return ref.EntityID{}, false, nil
	}
	raw, ok := value.(string)
	if !ok {
		return ref.EntityID{}, true, fmt.Errorf("message %s user reference has type %T, want string", m.ID(), value)
	}
	owner, err := ref.ParseEntityID(raw)
	if err != nil {
		return ref.EntityID{}, true, fmt.Errorf("message %s has malformed user reference: %w", m.ID(), err)
	}
	return owner, true, nil
}

// Room returns the message's room reference, or an error if unset or
// malformed.
func (m Message) Room() (ref.EntityID, error) {
	raw, ok := m.StringValue(FieldRoom)
	if !ok {
		return ref.EntityID{}, fmt.Errorf("message %s has no room reference", m.ID())
	}
	return ref.ParseEntityID(raw)
}
