// Copyright 2026 The Loom Authors
// SPDX-License-Identifier: Apache-2.0

// loom is the command line client for a Loom node. It manages the
// local signing keypair, registers the user with the node, and sends
// and reads chat messages over the node's Unix socket.
package main

import (
	"fmt"
	"os"

	"github.com/loom-sync/loom/lib/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if len(os.Args) < 2 {
		printUsage()
		return fmt.Errorf("subcommand required")
	}

	switch subcommand := os.Args[1]; subcommand {
	case "keygen":
		return runKeygen(os.Args[2:])
	case "register":
		return runRegister(os.Args[2:])
	case "rooms":
		return runRooms(os.Args[2:])
	case "send":
		return runSend(os.Args[2:])
	case "messages":
		return runMessages(os.Args[2:])
	case "version":
		fmt.Printf("loom %s\n", version.Info())
		return nil
	case "-h", "--help", "help":
		printUsage()
		return nil
	default:
		printUsage()
		return fmt.Errorf("unknown subcommand: %q", subcommand)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage: loom <subcommand> [flags]

Subcommands:
  keygen      Generate and seal a signing keypair
  register    Publish a user record to the node
  rooms       List rooms
  send        Send a message to a room
  messages    Read a room's messages
  version     Print version information

Run 'loom <subcommand> --help' for subcommand flags.
`)
}
