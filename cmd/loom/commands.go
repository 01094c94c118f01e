// Copyright 2026 The Loom Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/pflag"

	"github.com/loom-sync/loom/lib/entity"
	"github.com/loom-sync/loom/lib/keyring"
	"github.com/loom-sync/loom/lib/model"
	"github.com/loom-sync/loom/lib/policy"
	"github.com/loom-sync/loom/lib/proto"
	"github.com/loom-sync/loom/lib/ref"
)

// runKeygen generates a signing keypair sealed under a passphrase and
// writes it to the keys directory. The private key never touches disk
// unencrypted.
func runKeygen(args []string) error {
	flags := pflag.NewFlagSet("keygen", pflag.ContinueOnError)
	common := registerCommonFlags(flags)
	if err := flags.Parse(args); err != nil {
		return err
	}

	if _, err := os.Stat(filepath.Join(common.keysDir, "signing-key.age")); err == nil {
		return fmt.Errorf("a sealed keypair already exists in %s", common.keysDir)
	}
	if err := os.MkdirAll(common.keysDir, 0o700); err != nil {
		return err
	}

	passphrase, err := promptPassphrase("New passphrase: ")
	if err != nil {
		return err
	}
	defer passphrase.Close()
	confirm, err := promptPassphrase("Confirm passphrase: ")
	if err != nil {
		return err
	}
	defer confirm.Close()
	if passphrase.String() != confirm.String() {
		return fmt.Errorf("passphrases do not match")
	}

	keypair, err := keyring.Generate()
	if err != nil {
		return err
	}
	defer keypair.Close()

	if err := keypair.Save(common.keysDir, passphrase); err != nil {
		return err
	}

	fmt.Printf("public key: %s\n", keypair.PublicBase64())
	fmt.Printf("sealed keypair written to %s\n", common.keysDir)
	return nil
}

// runRegister publishes a user record carrying the local public key.
// Registration is the one write an unauthenticated caller may make;
// every later request is signed and verified against the key
// published here.
func runRegister(args []string) error {
	flags := pflag.NewFlagSet("register", pflag.ContinueOnError)
	common := registerCommonFlags(flags)
	displayName := flags.String("name", "", "display name for the user record")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if *displayName == "" {
		return fmt.Errorf("--name is required")
	}

	s, err := connect(common, false)
	if err != nil {
		return err
	}
	defer s.Close()
	if !s.actor.IsZero() {
		return fmt.Errorf("already registered as %s", s.actor)
	}

	actor := ref.NewEntityID()
	user := entity.New(actor, model.CollectionUser)
	event := user.MutationEvent(
		model.UserFields(*displayName, s.keypair.PublicBase64()),
		time.Now().UnixMilli(),
	)

	ctx := context.Background()
	anonymous := []policy.Context{policy.AnonymousContext()}
	if err := s.client.Commit(ctx, anonymous, []proto.Event{*event}); err != nil {
		return fmt.Errorf("registering: %w", err)
	}

	idPath := filepath.Join(common.keysDir, actorIDFile)
	if err := os.WriteFile(idPath, []byte(actor.String()+"\n"), 0o600); err != nil {
		return fmt.Errorf("registration succeeded but persisting the actor ID failed: %w", err)
	}

	fmt.Printf("registered as %s (%s)\n", *displayName, actor)
	return nil
}

// runRooms lists the node's rooms.
func runRooms(args []string) error {
	flags := pflag.NewFlagSet("rooms", pflag.ContinueOnError)
	common := registerCommonFlags(flags)
	if err := flags.Parse(args); err != nil {
		return err
	}

	s, err := connect(common, true)
	if err != nil {
		return err
	}
	defer s.Close()

	states, err := s.client.Fetch(context.Background(), s.contexts(), model.CollectionRoom, "")
	if err != nil {
		return err
	}
	for _, state := range states {
		room, err := entity.FromState(&state)
		if err != nil {
			return err
		}
		name, _ := room.StringValue(model.FieldName)
		fmt.Printf("%s  %s\n", room.ID(), name)
	}
	return nil
}

// runSend posts a message to a room, addressed by room name.
func runSend(args []string) error {
	flags := pflag.NewFlagSet("send", pflag.ContinueOnError)
	common := registerCommonFlags(flags)
	roomName := flags.String("room", "General", "room name")
	text := flags.String("text", "", "message text")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if *text == "" {
		return fmt.Errorf("--text is required")
	}

	s, err := connect(common, true)
	if err != nil {
		return err
	}
	defer s.Close()
	ctx := context.Background()

	room, err := findRoom(ctx, s, *roomName)
	if err != nil {
		return err
	}

	message := entity.New(ref.NewEntityID(), model.CollectionMessage)
	event := message.MutationEvent(
		model.MessageFields(s.actor, room, *text, time.Now().UnixMilli()),
		time.Now().UnixMilli(),
	)
	if err := s.client.Commit(ctx, s.contexts(), []proto.Event{*event}); err != nil {
		return fmt.Errorf("sending: %w", err)
	}
	return nil
}

// runMessages prints a room's live messages in timestamp order.
func runMessages(args []string) error {
	flags := pflag.NewFlagSet("messages", pflag.ContinueOnError)
	common := registerCommonFlags(flags)
	roomName := flags.String("room", "General", "room name")
	if err := flags.Parse(args); err != nil {
		return err
	}

	s, err := connect(common, true)
	if err != nil {
		return err
	}
	defer s.Close()
	ctx := context.Background()

	room, err := findRoom(ctx, s, *roomName)
	if err != nil {
		return err
	}

	states, err := s.client.Fetch(ctx, s.contexts(), model.CollectionMessage,
		"room = "+room.String()+" and deleted = false")
	if err != nil {
		return err
	}

	messages := make([]model.Message, 0, len(states))
	for i := range states {
		e, err := entity.FromState(&states[i])
		if err != nil {
			return err
		}
		message, err := model.AsMessage(e)
		if err != nil {
			return err
		}
		messages = append(messages, message)
	}
	sort.Slice(messages, func(i, j int) bool {
		return messageTimestamp(messages[i]) < messageTimestamp(messages[j])
	})

	names, err := displayNames(ctx, s, messages)
	if err != nil {
		return err
	}
	for _, message := range messages {
		stamp := time.UnixMilli(messageTimestamp(message)).Format("15:04")
		fmt.Printf("[%s] %s: %s\n", stamp, names[message], message.Text())
	}
	return nil
}

// findRoom resolves a room name to its entity ID.
func findRoom(ctx context.Context, s *session, name string) (ref.EntityID, error) {
	states, err := s.client.Fetch(ctx, s.contexts(), model.CollectionRoom,
		fmt.Sprintf("name = %q", name))
	if err != nil {
		return ref.EntityID{}, err
	}
	if len(states) == 0 {
		return ref.EntityID{}, fmt.Errorf("no room named %q", name)
	}
	return states[0].Entity, nil
}

// messageTimestamp reads the message's timestamp field. CBOR decodes
// non-negative integers into uint64 when the target is untyped, so
// both signed and unsigned arrivals are handled.
func messageTimestamp(message model.Message) int64 {
	value, ok := message.Value(model.FieldTimestamp)
	if !ok {
		return 0
	}
	switch v := value.(type) {
	case int64:
		return v
	case uint64:
		return int64(v)
	default:
		return 0
	}
}

// displayNames resolves the display name for each message's author,
// fetching each distinct user once. Authors whose user record is
// missing or nameless fall back to their actor ID.
func displayNames(ctx context.Context, s *session, messages []model.Message) (map[model.Message]string, error) {
	byActor := make(map[ref.EntityID]string)
	names := make(map[model.Message]string, len(messages))

	for _, message := range messages {
		owner, present, err := message.Owner()
		if err != nil || !present {
			names[message] = "(unknown)"
			continue
		}
		name, cached := byActor[owner]
		if !cached {
			name = owner.String()
			states, err := s.client.Get(ctx, s.contexts(), model.CollectionUser, []ref.EntityID{owner})
			if err == nil && len(states) == 1 {
				if e, err := entity.FromState(&states[0]); err == nil {
					if display, ok := e.StringValue(model.FieldDisplayName); ok {
						name = display
					}
				}
			}
			byActor[owner] = name
		}
		names[message] = name
	}
	return names, nil
}
