package sync

import (
	"context"
	"fmt"

	"github.com/oxen-go/oxen/internal/hash"
	"github.com/oxen-go/oxen/internal/merkle"
	"github.com/oxen-go/oxen/internal/oxenerr"
)

// CloneOptions controls how much of a remote's history Clone pulls in
// beyond the one commit it needs to check out.
type CloneOptions struct {
	// Branch defaults to "main" if empty. No other branch is tried
	// when the remote has no "main".
	Branch string
	// FullHistory also downloads every ancestor commit node of
	// Branch's tip, so `oxen log` works offline. Without it, Clone is
	// shallow: only the tip commit and its tree are fetched (spec
	// §4.9's "optionally full or shallow tree nodes").
	FullHistory bool
}

// CloneResult reports what Clone checked out.
type CloneResult struct {
	Branch string
	Commit *merkle.Commit
}

// Clone fetches one branch's tip commit, its tree, the chunks that
// tree references, and checks the result out into the engine's
// working directory, then points a fresh local branch (and HEAD) at
// it. The destination working directory and .oxen metadata are
// expected to already exist and be empty; creating them is the
// repository package's job, not sync's.
func (e *Engine) Clone(ctx context.Context, opts CloneOptions) (*CloneResult, error) {
	branch := opts.Branch
	if branch == "" {
		branch = "main"
	}

	commitHash, err := e.api.GetBranch(ctx, e.repo, branch)
	if err != nil {
		return nil, fmt.Errorf("sync: clone: %w", err)
	}
	if commitHash.IsZero() {
		return nil, fmt.Errorf("sync: clone: remote branch %q is empty", branch)
	}

	if opts.FullHistory {
		if err := e.ensureNode(ctx, merkle.KindCommit, commitHash); err != nil {
			return nil, err
		}
	} else if err := e.ensureCommitOnly(ctx, commitHash); err != nil {
		return nil, err
	}

	commit, err := e.loadCommit(commitHash)
	if err != nil {
		return nil, err
	}

	if err := e.ensureTree(ctx, commit.RootDirHash); err != nil {
		return nil, err
	}
	if err := e.ensureChunks(ctx, commit.RootDirHash); err != nil {
		return nil, err
	}
	if err := e.checkout(commit.RootDirHash); err != nil {
		return nil, err
	}

	if err := e.refs.Create(branch, commitHash); err != nil {
		return nil, err
	}
	if err := e.refs.SetHeadToBranch(branch); err != nil {
		return nil, err
	}

	return &CloneResult{Branch: branch, Commit: commit}, nil
}

// ensureCommitOnly downloads a single commit node without recursing
// into its parents, the shallow-clone counterpart to ensureNode's
// full-history walk.
func (e *Engine) ensureCommitOnly(ctx context.Context, h hash.Hash) error {
	has, err := e.nodes.Has(merkle.KindCommit, h)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	n, err := e.api.GetNode(ctx, e.repo, h)
	if err != nil {
		return fmt.Errorf("sync: fetch commit %s: %w", h, err)
	}
	return e.nodes.Put(n)
}

func (e *Engine) loadCommit(h hash.Hash) (*merkle.Commit, error) {
	n, err := e.nodes.Get(merkle.KindCommit, h)
	if err != nil {
		return nil, err
	}
	commit, ok := n.(*merkle.Commit)
	if !ok {
		return nil, &oxenerr.NotFoundError{Kind: "commit", ID: h.String()}
	}
	return commit, nil
}
