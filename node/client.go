// Copyright 2026 The Loom Authors
// SPDX-License-Identifier: Apache-2.0

package node

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/loom-sync/loom/lib/codec"
	"github.com/loom-sync/loom/lib/policy"
	"github.com/loom-sync/loom/lib/proto"
	"github.com/loom-sync/loom/lib/ref"
)

// dialTimeout is how long the client waits to connect.
const dialTimeout = 5 * time.Second

// responseReadTimeout is how long the client waits for the full
// response after sending. Longer than the server's read timeout so
// the server side always times out first with the better error.
const responseReadTimeout = 45 * time.Second

// maxResponseSize bounds a response read.
const maxResponseSize = 1024 * 1024

// RemoteError is a failure reported by the server, as opposed to a
// transport failure reaching it.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	return e.Message
}

// Client talks to a node's Unix socket. Every request is signed by
// the agent under the contexts the caller supplies, so a Client built
// with a [policy.ClientAgent] produces real signatures while one built
// with a server-side agent can only speak anonymously.
//
// Each call opens a fresh connection: the protocol is one
// request-response per connection, which keeps connection state out of
// both ends.
type Client struct {
	socketPath string
	agent      policy.Agent
	from       ref.EntityID
	to         ref.EntityID
}

// NewClient creates a client for the node listening on socketPath.
// from identifies the calling node and to the serving node; both are
// covered by the request signature.
func NewClient(socketPath string, agent policy.Agent, from, to ref.EntityID) *Client {
	return &Client{
		socketPath: socketPath,
		agent:      agent,
		from:       from,
		to:         to,
	}
}

// Commit sends a batch of events under the given contexts. The server
// accepts each event if any context authorizes it.
func (c *Client) Commit(ctx context.Context, contexts []policy.Context, events []proto.Event) error {
	_, err := c.call(ctx, contexts, proto.RequestBody{
		Kind:   proto.RequestCommit,
		Events: events,
	})
	return err
}

// Get reads entities by identifier.
func (c *Client) Get(ctx context.Context, contexts []policy.Context, collection ref.CollectionID, ids []ref.EntityID) ([]proto.EntityState, error) {
	response, err := c.call(ctx, contexts, proto.RequestBody{
		Kind:       proto.RequestGet,
		Collection: collection,
		EntityIDs:  ids,
	})
	if err != nil {
		return nil, err
	}
	return response.States, nil
}

// Fetch reads a collection filtered by a predicate expression. An
// empty predicate matches the whole collection.
func (c *Client) Fetch(ctx context.Context, contexts []policy.Context, collection ref.CollectionID, predicate string) ([]proto.EntityState, error) {
	response, err := c.call(ctx, contexts, proto.RequestBody{
		Kind:       proto.RequestFetch,
		Collection: collection,
		Predicate:  predicate,
	})
	if err != nil {
		return nil, err
	}
	return response.States, nil
}

// call signs and sends one request and reads the response.
func (c *Client) call(ctx context.Context, contexts []policy.Context, body proto.RequestBody) (*proto.Response, error) {
	request := &proto.NodeRequest{
		ID:   ref.NewEntityID(),
		From: c.from,
		To:   c.to,
		Body: body,
	}

	auth, err := c.agent.SignRequest(contexts, request)
	if err != nil {
		return nil, fmt.Errorf("node: signing request: %w", err)
	}

	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return nil, fmt.Errorf("node: connecting to %s: %w", c.socketPath, err)
	}
	defer conn.Close()

	envelope := requestEnvelope{Auth: auth, Request: *request}
	if err := codec.NewEncoder(conn).Encode(&envelope); err != nil {
		return nil, fmt.Errorf("node: sending request: %w", err)
	}

	// Half-close the write side so the server sees EOF after the
	// request even if it reads past the CBOR item.
	if unixConn, ok := conn.(*net.UnixConn); ok {
		unixConn.CloseWrite()
	}

	conn.SetReadDeadline(time.Now().Add(responseReadTimeout))

	var response proto.Response
	if err := codec.NewDecoder(io.LimitReader(conn, maxResponseSize)).Decode(&response); err != nil {
		return nil, fmt.Errorf("node: reading response: %w", err)
	}
	if !response.OK {
		return nil, &RemoteError{Message: response.Error}
	}
	return &response, nil
}
