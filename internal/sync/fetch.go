package sync

import (
	"context"
	"fmt"

	"github.com/oxen-go/oxen/internal/hash"
	"github.com/oxen-go/oxen/internal/merkle"
	"github.com/oxen-go/oxen/internal/oxenerr"
)

// Fetch downloads every remote branch's tip commit and tree that the
// local repository doesn't already have, recording each under a
// remote-tracking ref ("remotes/<remoteName>/<branch>"). It never
// touches the working directory or chunk content — a later checkout
// (via Pull or an explicit command) decides what to materialize
func (e *Engine) Fetch(ctx context.Context, remoteName string) (map[string]hash.Hash, error) {
	branches, err := e.api.ListBranches(ctx, e.repo)
	if err != nil {
		return nil, fmt.Errorf("sync: fetch: %w", err)
	}

	updated := make(map[string]hash.Hash)
	for branch, remoteHash := range branches {
		tracking := trackingRef(remoteName, branch)
		local, err := e.refs.Get(tracking)
		if err != nil {
			if _, ok := err.(*oxenerr.NotFoundError); !ok {
				return nil, err
			}
			local = hash.Zero
		}
		if local == remoteHash {
			continue
		}

		if err := e.ensureNode(ctx, merkle.KindCommit, remoteHash); err != nil {
			return nil, fmt.Errorf("sync: fetch %s: %w", branch, err)
		}
		commit, err := e.loadCommit(remoteHash)
		if err != nil {
			return nil, err
		}
		if err := e.ensureTree(ctx, commit.RootDirHash); err != nil {
			return nil, fmt.Errorf("sync: fetch %s tree: %w", branch, err)
		}

		if err := e.refs.Set(tracking, remoteHash); err != nil {
			return nil, err
		}
		updated[branch] = remoteHash
	}
	return updated, nil
}
