package cmd

import (
	"errors"
	"path/filepath"

	"github.com/oxen-go/oxen/internal/hash"
	"github.com/oxen-go/oxen/internal/oxenerr"
	"github.com/oxen-go/oxen/internal/repository"
	"github.com/oxen-go/oxen/internal/stage"
)

const stageSubdir = "stage"

// headState resolves the current branch (empty if detached), its tip
// commit, and that commit's root directory hash, treating an unborn
// branch (no commits yet) as the zero hash rather than an error.
func headState(h *repository.Handle) (branch string, commit hash.Hash, rootHash hash.Hash, err error) {
	head, err := h.Refs.ReadHead()
	if err != nil {
		return "", hash.Zero, hash.Zero, err
	}
	if head.Detached {
		commit = head.Commit
	} else {
		branch = head.Branch
		var notFound *oxenerr.NotFoundError
		commit, err = h.Refs.Get(branch)
		if errors.As(err, &notFound) {
			return branch, hash.Zero, hash.Zero, nil
		}
		if err != nil {
			return "", hash.Zero, hash.Zero, err
		}
	}
	if commit.IsZero() {
		return branch, hash.Zero, hash.Zero, nil
	}
	c, err := h.Graph.Get(commit)
	if err != nil {
		return "", hash.Zero, hash.Zero, err
	}
	return branch, commit, c.RootDirHash, nil
}

// openStager opens the working tree's Stager, persisting its pending
// set under <metaDir>/stage the way commitwriter_test.go's fixture
// does per-test but rooted at the real repository this time.
func openStager(h *repository.Handle) (*stage.Stager, string, hash.Hash, hash.Hash, error) {
	branch, commit, rootHash, err := headState(h)
	if err != nil {
		return nil, "", hash.Zero, hash.Zero, err
	}
	s, err := stage.Open(filepath.Join(h.Repo.MetaDir, stageSubdir), h.Repo.Root, h.Tree, rootHash)
	if err != nil {
		return nil, "", hash.Zero, hash.Zero, err
	}
	return s, branch, commit, rootHash, nil
}
