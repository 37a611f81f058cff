package sync

import (
	"context"
	"fmt"

	"github.com/oxen-go/oxen/internal/hash"
	"github.com/oxen-go/oxen/internal/merkle"
	"github.com/oxen-go/oxen/internal/oxenerr"
)

func childKind(ck merkle.ChildKind) merkle.Kind {
	switch ck {
	case merkle.ChildDir:
		return merkle.KindDir
	case merkle.ChildVNode:
		return merkle.KindVNode
	case merkle.ChildFile:
		return merkle.KindFile
	default:
		return 0
	}
}

// ensureNode downloads the node at h (of the given kind) and every
// node it transitively references, stopping as soon as it finds a
// hash already present locally. For a Commit only its parent commits
// are followed, not its root dir; ensureTree fetches that. Used by
// both Clone (walking down from a commit's root dir) and Fetch
// (walking down from a commit, and up through its parent chain).
func (e *Engine) ensureNode(ctx context.Context, kind merkle.Kind, h hash.Hash) error {
	has, err := e.nodes.Has(kind, h)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	n, err := e.api.GetNode(ctx, e.repo, h)
	if err != nil {
		return fmt.Errorf("sync: fetch %s %s: %w", kind, h, err)
	}
	if err := e.nodes.Put(n); err != nil {
		return fmt.Errorf("sync: store %s %s: %w", kind, h, err)
	}
	switch v := n.(type) {
	case *merkle.Commit:
		for _, p := range v.ParentIDs {
			if p.IsZero() {
				continue
			}
			if err := e.ensureNode(ctx, merkle.KindCommit, p); err != nil {
				return err
			}
		}
	case *merkle.Dir:
		for _, entry := range v.Entries {
			if err := e.ensureNode(ctx, childKind(entry.Kind), entry.Hash); err != nil {
				return err
			}
		}
	case *merkle.VNode:
		for _, entry := range v.Entries {
			if err := e.ensureNode(ctx, childKind(entry.Kind), entry.Hash); err != nil {
				return err
			}
		}
	}
	return nil
}

// ensureTree downloads every Dir/VNode/File node reachable from
// rootDirHash, without walking commit history. Used when a caller
// already has the commit node and only needs its working tree.
func (e *Engine) ensureTree(ctx context.Context, rootDirHash hash.Hash) error {
	if rootDirHash.IsZero() {
		return nil
	}
	return e.ensureNode(ctx, merkle.KindDir, rootDirHash)
}

// ensureChunks downloads every chunk referenced by files under
// rootDirHash that VersionStore doesn't already have, verifying each
// chunk rehashes to the hash it was requested under.
func (e *Engine) ensureChunks(ctx context.Context, rootDirHash hash.Hash) error {
	missing, err := e.tree.ListMissingChunkHashes(rootDirHash, e.vs.Exists)
	if err != nil {
		return err
	}
	for _, ch := range missing {
		data, err := e.api.GetBlob(ctx, e.repo, ch)
		if err != nil {
			return fmt.Errorf("sync: fetch chunk %s: %w", ch, err)
		}
		if got := hash.Bytes(data); got != ch {
			return &oxenerr.HashMismatchError{Expected: ch.String(), Actual: got.String()}
		}
		if err := e.vs.PutHash(ch, data); err != nil {
			return fmt.Errorf("sync: store chunk %s: %w", ch, err)
		}
	}
	return nil
}
