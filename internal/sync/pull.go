package sync

import (
	"context"
	"fmt"

	"github.com/oxen-go/oxen/internal/hash"
	"github.com/oxen-go/oxen/internal/oxenerr"
)

// Merger resolves a non-fast-forward Pull by three-way merging base,
// ours, and theirs into a new commit. internal/merge's MergeEngine
// implements this; Engine only needs the interface so sync doesn't
// import merge (merge's tabular row-level path has no business in the
// transport layer).
type Merger interface {
	Merge(ctx context.Context, base, ours, theirs hash.Hash) (hash.Hash, error)
}

// SetMerger installs the merge strategy Pull falls back to when the
// local branch and the fetched remote tip have diverged. Without one,
// Pull reports the divergence instead of guessing.
func (e *Engine) SetMerger(m Merger) { e.merger = m }

// PullResult reports what Pull did to the branch.
type PullResult struct {
	FastForward bool
	Commit      hash.Hash
}

// Pull fetches remoteName's branches and, if the local branch can
// fast-forward to the new remote tip, checks it out directly;
// otherwise it delegates to the installed Merger: fetch plus
// fast-forward merge, else delegate to the merge engine.
func (e *Engine) Pull(ctx context.Context, remoteName, branch string) (*PullResult, error) {
	if _, err := e.Fetch(ctx, remoteName); err != nil {
		return nil, err
	}

	tracking := trackingRef(remoteName, branch)
	remoteHash, err := e.refs.Get(tracking)
	if err != nil {
		return nil, fmt.Errorf("sync: pull: %w", err)
	}

	localHash, err := e.refs.Get(branch)
	if err != nil {
		if _, ok := err.(*oxenerr.NotFoundError); !ok {
			return nil, err
		}
		localHash = hash.Zero
	}

	if localHash == remoteHash {
		return &PullResult{FastForward: true, Commit: localHash}, nil
	}

	ff := localHash.IsZero()
	if !ff {
		ff, err = e.graph.IsAncestor(localHash, remoteHash)
		if err != nil {
			return nil, err
		}
	}

	if ff {
		commit, err := e.loadCommit(remoteHash)
		if err != nil {
			return nil, err
		}
		if err := e.ensureChunks(ctx, commit.RootDirHash); err != nil {
			return nil, err
		}
		if err := e.checkout(commit.RootDirHash); err != nil {
			return nil, err
		}
		if err := e.refs.SetCAS(branch, localHash, remoteHash); err != nil {
			return nil, err
		}
		return &PullResult{FastForward: true, Commit: remoteHash}, nil
	}

	if e.merger == nil {
		return nil, fmt.Errorf("sync: pull: branch %q has diverged from %s/%s and no merge strategy is installed", branch, remoteName, branch)
	}

	base, err := e.mergeBase(localHash, remoteHash)
	if err != nil {
		return nil, err
	}
	merged, err := e.merger.Merge(ctx, base, localHash, remoteHash)
	if err != nil {
		return nil, err
	}
	if err := e.refs.SetCAS(branch, localHash, merged); err != nil {
		return nil, err
	}
	commit, err := e.loadCommit(merged)
	if err != nil {
		return nil, err
	}
	if err := e.ensureChunks(ctx, commit.RootDirHash); err != nil {
		return nil, err
	}
	if err := e.checkout(commit.RootDirHash); err != nil {
		return nil, err
	}
	return &PullResult{FastForward: false, Commit: merged}, nil
}

// mergeBase finds the most recent commit reachable from both a and b
// by comparing their full ancestor sets. Both sets are bounded by
// repository history size, which is acceptable here since Pull's
// divergence case is the uncommon path.
func (e *Engine) mergeBase(a, b hash.Hash) (hash.Hash, error) {
	ancestorsA, err := e.graph.Ancestors(a)
	if err != nil {
		return hash.Hash{}, err
	}
	inA := make(map[hash.Hash]bool, len(ancestorsA))
	for _, c := range ancestorsA {
		inA[c.Hash()] = true
	}
	ancestorsB, err := e.graph.Ancestors(b)
	if err != nil {
		return hash.Hash{}, err
	}
	for _, c := range ancestorsB {
		if inA[c.Hash()] {
			return c.Hash(), nil
		}
	}
	return hash.Zero, nil
}
