// Copyright 2026 The Loom Authors
// SPDX-License-Identifier: Apache-2.0

package node

import (
	"context"
	"errors"
	"fmt"

	"github.com/loom-sync/loom/lib/entity"
	"github.com/loom-sync/loom/lib/policy"
	"github.com/loom-sync/loom/lib/proto"
	"github.com/loom-sync/loom/lib/ref"
	"github.com/loom-sync/loom/lib/storage"
)

// Session is a security context bound to a node. Every operation runs
// the relevant policy checkpoints with that context before touching
// storage.
type Session struct {
	node *Node
	cctx policy.Context
}

// Context returns the session's security context.
func (s *Session) Context() policy.Context { return s.cctx }

// Commit applies a batch of entity events. Each event passes the
// event-acceptance and write checkpoints before its result is folded
// into storage; the first failure aborts the batch, leaving earlier
// events of the batch applied.
func (s *Session) Commit(ctx context.Context, events []proto.Event) error {
	for i := range events {
		if err := s.commitOne(ctx, &events[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) commitOne(ctx context.Context, event *proto.Event) error {
	before, err := s.loadEntity(ctx, event.Collection, event.Entity)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}

	var after *entity.Entity
	if before == nil {
		after = entity.New(event.Entity, event.Collection)
	} else {
		after = before.Clone()
	}
	if err := after.Apply(event); err != nil {
		return fmt.Errorf("node: applying event to %s: %w", event.Entity, err)
	}

	if _, err := s.node.agent.CheckEvent(s.cctx, before, after, event); err != nil {
		s.node.logger.Info("event rejected",
			"context", s.cctx,
			"collection", event.Collection,
			"entity", event.Entity,
			"error", err,
		)
		return err
	}
	if err := s.node.agent.CheckWrite(s.cctx, after, event); err != nil {
		return err
	}

	state, err := after.Snapshot()
	if err != nil {
		return fmt.Errorf("node: snapshotting %s: %w", event.Entity, err)
	}
	return s.node.storage.PutState(ctx, state)
}

// Get reads entities by identifier from one collection. Missing
// entities surface as storage.ErrNotFound; a read denied by policy
// surfaces as the policy error.
func (s *Session) Get(ctx context.Context, collection ref.CollectionID, ids []ref.EntityID) ([]proto.EntityState, error) {
	if err := s.node.agent.CanAccessCollection(s.cctx, collection); err != nil {
		return nil, err
	}

	states := make([]proto.EntityState, 0, len(ids))
	for _, id := range ids {
		target, err := s.loadEntity(ctx, collection, id)
		if err != nil {
			return nil, err
		}
		if err := s.node.agent.CheckRead(s.cctx, target); err != nil {
			return nil, err
		}
		state, err := target.Snapshot()
		if err != nil {
			return nil, fmt.Errorf("node: snapshotting %s: %w", id, err)
		}
		states = append(states, *state)
	}
	return states, nil
}

// Fetch reads a collection filtered by a predicate. The predicate is
// routed through the policy agent's rewrite checkpoint first; an
// empty predicate matches everything.
func (s *Session) Fetch(ctx context.Context, collection ref.CollectionID, predicate string) ([]proto.EntityState, error) {
	if err := s.node.agent.CanAccessCollection(s.cctx, collection); err != nil {
		return nil, err
	}

	effective, err := s.node.agent.FilterPredicate(s.cctx, collection, predicate)
	if err != nil {
		return nil, err
	}
	match, err := compilePredicate(effective)
	if err != nil {
		return nil, err
	}

	all, err := s.node.storage.FetchCollection(ctx, collection)
	if err != nil {
		return nil, err
	}

	states := make([]proto.EntityState, 0, len(all))
	for i := range all {
		target, err := entity.FromState(&all[i])
		if err != nil {
			return nil, fmt.Errorf("node: corrupt state %s: %w", all[i].Entity, err)
		}
		if !match(target) {
			continue
		}
		if err := s.node.agent.CheckRead(s.cctx, target); err != nil {
			return nil, err
		}
		states = append(states, all[i])
	}
	return states, nil
}

// loadEntity reads one entity from storage and rehydrates it.
func (s *Session) loadEntity(ctx context.Context, collection ref.CollectionID, id ref.EntityID) (*entity.Entity, error) {
	state, err := s.node.storage.GetState(ctx, collection, id)
	if err != nil {
		return nil, err
	}
	target, err := entity.FromState(state)
	if err != nil {
		return nil, fmt.Errorf("node: corrupt state %s: %w", id, err)
	}
	return target, nil
}
