// Copyright 2026 The Loom Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/loom-sync/loom/lib/keyring"
	"github.com/loom-sync/loom/lib/policy"
	"github.com/loom-sync/loom/lib/ref"
	"github.com/loom-sync/loom/lib/secret"
	"github.com/loom-sync/loom/node"
)

// actorIDFile records the registered actor's entity ID next to the
// sealed keypair.
const actorIDFile = "actor-id"

// commonFlags are the connection flags every subcommand shares.
type commonFlags struct {
	keysDir  string
	stateDir string
	socket   string
}

func registerCommonFlags(flags *pflag.FlagSet) *commonFlags {
	homeDir, _ := os.UserHomeDir()
	configDir, _ := os.UserConfigDir()

	c := &commonFlags{}
	flags.StringVar(&c.keysDir, "keys-dir",
		filepath.Join(configDir, "loom"),
		"directory holding the sealed signing keypair")
	flags.StringVar(&c.stateDir, "state-dir",
		filepath.Join(homeDir, ".local", "state", "loom"),
		"node state directory (for the node ID and socket)")
	flags.StringVar(&c.socket, "socket", "",
		"node socket path (default: <state-dir>/node.sock)")
	return c
}

func (c *commonFlags) socketPath() string {
	if c.socket != "" {
		return c.socket
	}
	return filepath.Join(c.stateDir, "node.sock")
}

// nodeID reads the serving node's persisted entity ID. Requests carry
// it in the signed bytes, so the client must know who it is talking
// to.
func (c *commonFlags) nodeID() (ref.EntityID, error) {
	idPath := filepath.Join(c.stateDir, "node-id")
	data, err := os.ReadFile(idPath)
	if err != nil {
		return ref.EntityID{}, fmt.Errorf("reading node ID (is the node running on this host?): %w", err)
	}
	id, err := ref.ParseEntityID(strings.TrimSpace(string(data)))
	if err != nil {
		return ref.EntityID{}, fmt.Errorf("corrupt %s: %w", idPath, err)
	}
	return id, nil
}

// session is an authenticated connection to the local node: the
// registered actor plus a client that signs on its behalf.
type session struct {
	actor   ref.EntityID
	keypair *keyring.Keypair
	client  *node.Client
}

func (s *session) Close() error {
	return s.keypair.Close()
}

func (s *session) contexts() []policy.Context {
	return []policy.Context{policy.Authenticated(s.actor)}
}

// connect unseals the local keypair and binds it to the node socket.
// When requireActor is true the actor ID file must exist — every
// subcommand except register needs a completed registration.
func connect(flags *commonFlags, requireActor bool) (*session, error) {
	passphrase, err := promptPassphrase("Passphrase: ")
	if err != nil {
		return nil, err
	}
	defer passphrase.Close()

	keypair, err := keyring.Load(flags.keysDir, passphrase)
	if err != nil {
		return nil, fmt.Errorf("loading keypair (run 'loom keygen' first): %w", err)
	}

	var actor ref.EntityID
	data, err := os.ReadFile(filepath.Join(flags.keysDir, actorIDFile))
	switch {
	case err == nil:
		actor, err = ref.ParseEntityID(strings.TrimSpace(string(data)))
		if err != nil {
			keypair.Close()
			return nil, fmt.Errorf("corrupt actor ID file: %w", err)
		}
	case os.IsNotExist(err) && !requireActor:
		// Not registered yet; the register subcommand fills this in.
	default:
		keypair.Close()
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("not registered; run 'loom register' first")
		}
		return nil, err
	}

	nodeID, err := flags.nodeID()
	if err != nil {
		keypair.Close()
		return nil, err
	}

	agent, err := policy.NewClientAgent(keypair.Private)
	if err != nil {
		keypair.Close()
		return nil, err
	}

	// The From field identifies the requesting endpoint. The CLI is
	// not a node, so its actor ID serves as the endpoint identity.
	from := actor
	if from.IsZero() {
		from = ref.NewEntityID()
	}

	return &session{
		actor:   actor,
		keypair: keypair,
		client:  node.NewClient(flags.socketPath(), agent, from, nodeID),
	}, nil
}

// promptPassphrase reads a passphrase without echo when stdin is a
// terminal, and as a plain line otherwise so the CLI stays
// scriptable.
func promptPassphrase(prompt string) (*secret.Buffer, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, prompt)
		line, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return nil, fmt.Errorf("reading passphrase: %w", err)
		}
		return secret.NewFromBytes(line)
	}

	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return nil, fmt.Errorf("reading passphrase: %w", err)
	}
	return secret.NewFromBytes([]byte(strings.TrimRight(line, "\n")))
}
