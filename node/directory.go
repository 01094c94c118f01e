// Copyright 2026 The Loom Authors
// SPDX-License-Identifier: Apache-2.0

package node

import (
	"context"
	"errors"
	"fmt"

	"github.com/loom-sync/loom/lib/model"
	"github.com/loom-sync/loom/lib/policy"
	"github.com/loom-sync/loom/lib/ref"
	"github.com/loom-sync/loom/lib/storage"
)

// actorDirectory implements policy.Directory on top of the node's
// entity store. Lookups run under the system session: verification
// needs the actor's published key before the caller has proven
// anything, so the read cannot run as the caller.
//
// The key is re-read from current state on every call — a key
// rotation in the user record takes effect on the next verified
// request, with no cache to invalidate.
type actorDirectory struct {
	node *Node
}

func (d *actorDirectory) ActorPublicKey(ctx context.Context, actor ref.EntityID) (string, error) {
	session := d.node.Session(policy.SystemContext())

	target, err := session.loadEntity(ctx, model.CollectionUser, actor)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", fmt.Errorf("%w: %s", policy.ErrActorNotFound, actor)
		}
		return "", err
	}

	user, err := model.AsUser(target)
	if err != nil {
		return "", err
	}
	key, err := user.PubKey()
	if err != nil {
		// A user record with no published key cannot authenticate;
		// to the verifier that is the same as no record at all.
		return "", fmt.Errorf("%w: %s has no published key", policy.ErrActorNotFound, actor)
	}
	return key, nil
}
