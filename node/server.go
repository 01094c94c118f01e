// Copyright 2026 The Loom Authors
// SPDX-License-Identifier: Apache-2.0

package node

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/loom-sync/loom/lib/codec"
	"github.com/loom-sync/loom/lib/policy"
	"github.com/loom-sync/loom/lib/proto"
)

// requestEnvelope is the wire frame a client sends: the request plus
// the auth tokens covering it. The tokens are outside the signed
// bytes — a signature cannot cover itself.
type requestEnvelope struct {
	Auth    []proto.AuthData  `cbor:"1,keyasint"`
	Request proto.NodeRequest `cbor:"2,keyasint"`
}

// readTimeout is how long the server waits for the client to send its
// request. A well-behaved client sends immediately after connecting.
const readTimeout = 30 * time.Second

// writeTimeout is how long the server waits for the response write.
const writeTimeout = 10 * time.Second

// maxRequestSize bounds a single CBOR request. 1 MB is generous for
// a commit batch of chat-sized events.
const maxRequestSize = 1024 * 1024

// Server serves the node's request protocol on a Unix socket. Each
// connection handles exactly one request-response cycle: the client
// writes one CBOR envelope, the server verifies and dispatches it,
// writes one CBOR response, and the connection closes.
type Server struct {
	node       *Node
	socketPath string
	logger     *slog.Logger

	readyOnce sync.Once
	ready     chan struct{}

	// activeConnections tracks in-flight handlers for graceful
	// shutdown. Serve waits for all of them before returning.
	activeConnections sync.WaitGroup
}

// NewServer creates a server for the node, listening on socketPath
// once Serve is called.
func NewServer(n *Node, socketPath string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{
		node:       n,
		socketPath: socketPath,
		logger:     logger,
		ready:      make(chan struct{}),
	}
}

// Ready returns a channel closed once the server is listening. Useful
// for tests and for supervisors that gate dependents on readiness.
func (s *Server) Ready() <-chan struct{} { return s.ready }

// Serve accepts connections until ctx is cancelled, then stops
// accepting and waits for active handlers to complete. Any stale
// socket file at the configured path is removed before listening, and
// the socket file is removed on return.
func (s *Server) Serve(ctx context.Context) error {
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("node: removing stale socket %s: %w", s.socketPath, err)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("node: listening on %s: %w", s.socketPath, err)
	}
	defer func() {
		listener.Close()
		os.Remove(s.socketPath)
	}()

	// Unblock Accept when the context is cancelled.
	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	s.logger.Info("node listening", "path", s.socketPath, "node", s.node.ID())
	s.readyOnce.Do(func() { close(s.ready) })

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			if errors.Is(err, net.ErrClosed) {
				break
			}
			s.logger.Error("accept failed", "error", err)
			continue
		}

		s.activeConnections.Add(1)
		go func() {
			defer s.activeConnections.Done()
			s.handleConnection(ctx, conn)
		}()
	}

	s.activeConnections.Wait()
	return nil
}

// handleConnection processes one request-response cycle.
func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(readTimeout))

	// Decode one CBOR envelope. CBOR is self-delimiting so no
	// framing protocol is needed; LimitReader stops a client from
	// exhausting memory.
	var envelope requestEnvelope
	if err := codec.NewDecoder(io.LimitReader(conn, maxRequestSize)).Decode(&envelope); err != nil {
		if errors.Is(err, io.EOF) {
			// Client connected but sent nothing.
			return
		}
		s.writeError(conn, fmt.Sprintf("invalid request: %v", err))
		return
	}

	response := s.dispatch(ctx, &envelope)
	s.writeResponse(conn, response)
}

// dispatch verifies the envelope's auth and routes the request body.
func (s *Server) dispatch(ctx context.Context, envelope *requestEnvelope) *proto.Response {
	request := &envelope.Request

	if request.To != s.node.ID() {
		s.logger.Debug("request addressed to another node",
			"to", request.To, "self", s.node.ID())
	}

	contexts, err := s.node.agent.VerifyRequest(ctx, envelope.Auth, request)
	if err != nil {
		return &proto.Response{OK: false, Error: err.Error()}
	}
	// A request with no tokens at all is anonymous, the same as one
	// carrying a single empty token.
	if len(contexts) == 0 {
		contexts = []policy.Context{policy.AnonymousContext()}
	}

	switch request.Body.Kind {
	case proto.RequestCommit:
		return s.handleCommit(ctx, contexts, request)
	case proto.RequestGet:
		states, err := s.node.Session(contexts[0]).Get(ctx, request.Body.Collection, request.Body.EntityIDs)
		if err != nil {
			return &proto.Response{OK: false, Error: err.Error()}
		}
		return &proto.Response{OK: true, States: states}
	case proto.RequestFetch:
		states, err := s.node.Session(contexts[0]).Fetch(ctx, request.Body.Collection, request.Body.Predicate)
		if err != nil {
			return &proto.Response{OK: false, Error: err.Error()}
		}
		return &proto.Response{OK: true, States: states}
	default:
		return &proto.Response{OK: false, Error: fmt.Sprintf("unknown request kind %q", request.Body.Kind)}
	}
}

// handleCommit applies the request's events. When the request carries
// several contexts, each event is accepted if any context authorizes
// it, tried in token order; the checks run before anything is
// written, so a denied event leaves no partial state of its own.
func (s *Server) handleCommit(ctx context.Context, contexts []policy.Context, request *proto.NodeRequest) *proto.Response {
	events := request.Body.Events
	for i := range events {
		var lastErr error
		accepted := false
		for _, cctx := range contexts {
			err := s.node.Session(cctx).commitOne(ctx, &events[i])
			if err == nil {
				accepted = true
				break
			}
			lastErr = err
			if !policy.IsAccessDenied(err) {
				// Not an authorization refusal — retrying under a
				// different identity cannot help.
				break
			}
		}
		if !accepted {
			return &proto.Response{OK: false, Error: lastErr.Error()}
		}
	}
	return &proto.Response{OK: true}
}

// writeError sends a failure response.
func (s *Server) writeError(conn net.Conn, message string) {
	s.writeResponse(conn, &proto.Response{OK: false, Error: message})
}

// writeResponse encodes one response. Write failures are logged at
// debug — the connection is closing regardless.
func (s *Server) writeResponse(conn net.Conn, response *proto.Response) {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := codec.NewEncoder(conn).Encode(response); err != nil {
		s.logger.Debug("failed to write response", "error", err)
	}
}
