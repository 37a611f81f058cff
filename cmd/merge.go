package cmd

import (
	"context"
	"fmt"

	"github.com/oxen-go/oxen/internal/hash"
	"github.com/oxen-go/oxen/internal/oxenerr"
	"github.com/oxen-go/oxen/internal/repository"
)

// MergeHandler three-way merges the named branch into the current
// branch via h.Merge, the same merge engine sync.Engine.Pull falls
// back to on divergence, then advances the current branch with a
// compare-and-set so a concurrent commit on the branch during the
// merge is caught rather than silently overwritten.
func MergeHandler(h *repository.Handle, args []string) error {
	theirBranch := args[0]

	currentBranch, ourCommit, _, err := headState(h)
	if err != nil {
		return err
	}
	if currentBranch == "" {
		return fmt.Errorf("cannot merge: HEAD is detached")
	}

	theirCommit, err := h.Refs.Get(theirBranch)
	if err != nil {
		return fmt.Errorf("merge: %w", err)
	}

	if ourCommit == theirCommit {
		fmt.Println("Already up to date.")
		return nil
	}

	base, err := mergeBase(h, ourCommit, theirCommit)
	if err != nil {
		return err
	}

	merged, err := h.Merge.Merge(context.Background(), base, ourCommit, theirCommit)
	if err != nil {
		if conflictErr, ok := err.(*oxenerr.MergeConflictError); ok {
			fmt.Printf("Automatic merge failed; %d conflict(s):\n", len(conflictErr.Conflicts))
			for _, c := range conflictErr.Conflicts {
				fmt.Printf("  %s: %s\n", c.Path, c.Reason)
			}
			return fmt.Errorf("fix conflicts and commit the result")
		}
		return fmt.Errorf("merge failed: %w", err)
	}

	if err := h.Refs.SetCAS(currentBranch, ourCommit, merged); err != nil {
		return fmt.Errorf("merge: advance branch '%s': %w", currentBranch, err)
	}

	engine := h.LocalEngine(nil)
	c, err := h.Graph.Get(merged)
	if err != nil {
		return err
	}
	if err := engine.Checkout(c.RootDirHash); err != nil {
		return err
	}

	fmt.Printf("Merged %s into %s at %s\n", theirBranch, currentBranch, shortHash(merged))
	return nil
}

// mergeBase finds the most recent commit reachable from both a and b,
// grounded on sync.Engine's mergeBase (scan a's full ancestor set,
// then walk b's looking for the first hit) — the CLI's merge command
// needs the same thing sync.Engine.Pull computes internally but has
// no exported way to reuse it, so the small ancestor-intersection
// scan is duplicated here rather than exporting an internal helper
// for a single caller.
func mergeBase(h *repository.Handle, a, b hash.Hash) (hash.Hash, error) {
	ancestorsA, err := h.Graph.Ancestors(a)
	if err != nil {
		return hash.Zero, err
	}
	inA := make(map[hash.Hash]bool, len(ancestorsA))
	for _, c := range ancestorsA {
		inA[c.Hash()] = true
	}
	ancestorsB, err := h.Graph.Ancestors(b)
	if err != nil {
		return hash.Zero, err
	}
	for _, c := range ancestorsB {
		if inA[c.Hash()] {
			return c.Hash(), nil
		}
	}
	return hash.Zero, nil
}

func init() {
	mergeCmd := NewCommand("merge <branch>", "Merge another branch into the current branch", MergeHandler, 1)
	rootCmd.AddCommand(mergeCmd)
}
