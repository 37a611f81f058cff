package sync

import (
	"context"
	"fmt"

	"github.com/oxen-go/oxen/internal/hash"
	"github.com/oxen-go/oxen/internal/merkle"
	"github.com/oxen-go/oxen/internal/oxenerr"
)

// PushResult reports what Push actually transferred.
type PushResult struct {
	CommitsSent int
	NodesSent   int
	ChunksSent  int
	NewTip      hash.Hash
}

// Push uploads every commit reachable from the local branch but not
// from the remote's current tip (commitgraph.ListBetween), then
// advances the remote branch with a single compare-and-set. All
// referenced nodes and chunks are made durable on the remote before
// the branch advance is attempted; a concurrent push that
// moved the remote branch first is surfaced as
// *oxenerr.NotFastForwardError and is not retried automatically — the
// caller decides whether to pull and reattempt.
func (e *Engine) Push(ctx context.Context, remoteName, branch string) (*PushResult, error) {
	localHash, err := e.refs.Get(branch)
	if err != nil {
		return nil, fmt.Errorf("sync: push: %w", err)
	}

	remoteHash, err := e.api.GetBranch(ctx, e.repo, branch)
	if err != nil {
		if _, ok := err.(*oxenerr.NotFoundError); !ok {
			return nil, fmt.Errorf("sync: push: %w", err)
		}
		remoteHash = hash.Zero
	}

	if remoteHash == localHash {
		return &PushResult{NewTip: localHash}, nil
	}

	if !remoteHash.IsZero() {
		isAncestor, err := e.graph.IsAncestor(remoteHash, localHash)
		if err != nil {
			return nil, &oxenerr.NotFastForwardError{Branch: branch, Expected: remoteHash.String(), Actual: localHash.String()}
		}
		if !isAncestor {
			return nil, &oxenerr.NotFastForwardError{Branch: branch, Expected: remoteHash.String(), Actual: localHash.String()}
		}
	}

	commits, err := e.graph.ListBetween(remoteHash, localHash)
	if err != nil {
		return nil, fmt.Errorf("sync: push: %w", err)
	}

	nodes := make([]merkle.Node, 0, len(commits))
	seenNode := make(map[hash.Hash]bool)
	var chunkCandidates []hash.Hash
	seenChunk := make(map[hash.Hash]bool)

	for _, commit := range commits {
		if !seenNode[commit.Hash()] {
			seenNode[commit.Hash()] = true
			nodes = append(nodes, commit)
		}
		treeNodes, err := e.collectReachableNodes(commit.RootDirHash)
		if err != nil {
			return nil, fmt.Errorf("sync: push: walk commit %s tree: %w", commit.Hash(), err)
		}
		for _, n := range treeNodes {
			if !seenNode[n.Hash()] {
				seenNode[n.Hash()] = true
				nodes = append(nodes, n)
			}
		}
		chunks, err := e.tree.ListMissingChunkHashes(commit.RootDirHash, alwaysMissing)
		if err != nil {
			return nil, fmt.Errorf("sync: push: walk commit %s chunks: %w", commit.Hash(), err)
		}
		for _, ch := range chunks {
			if !seenChunk[ch] {
				seenChunk[ch] = true
				chunkCandidates = append(chunkCandidates, ch)
			}
		}
	}

	nodesSent, err := e.uploadMissingNodes(ctx, nodes)
	if err != nil {
		return nil, err
	}
	chunksSent, err := e.uploadMissingChunks(ctx, chunkCandidates)
	if err != nil {
		return nil, err
	}

	if err := e.api.SetBranch(ctx, e.repo, branch, remoteHash, localHash); err != nil {
		return nil, err
	}

	return &PushResult{CommitsSent: len(commits), NodesSent: nodesSent, ChunksSent: chunksSent, NewTip: localHash}, nil
}

func alwaysMissing(hash.Hash) (bool, error) { return false, nil }

// collectReachableNodes walks every Dir/VNode/File node reachable from
// rootDirHash, purely locally (no remote calls), returning the
// decoded nodes themselves rather than just hashes, since push needs
// the actual bytes to upload. Grounded on merkle.Tree.ListMissingNodeHashes's
// walk, specialized to always descend (a push always has every node
// of its own commits locally) and to keep the decoded node instead of
// discarding it.
func (e *Engine) collectReachableNodes(rootDirHash hash.Hash) ([]merkle.Node, error) {
	var out []merkle.Node
	seen := make(map[hash.Hash]bool)
	var walk func(kind merkle.Kind, h hash.Hash) error
	walk = func(kind merkle.Kind, h hash.Hash) error {
		if seen[h] {
			return nil
		}
		seen[h] = true
		n, err := e.tree.NodeByHash(kind, h)
		if err != nil {
			return err
		}
		out = append(out, n)
		switch v := n.(type) {
		case *merkle.Dir:
			for _, entry := range v.Entries {
				if err := walk(childKind(entry.Kind), entry.Hash); err != nil {
					return err
				}
			}
		case *merkle.VNode:
			for _, entry := range v.Entries {
				if err := walk(childKind(entry.Kind), entry.Hash); err != nil {
					return err
				}
			}
		}
		return nil
	}
	if rootDirHash.IsZero() {
		return nil, nil
	}
	if err := walk(merkle.KindDir, rootDirHash); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Engine) uploadMissingNodes(ctx context.Context, nodes []merkle.Node) (int, error) {
	if len(nodes) == 0 {
		return 0, nil
	}
	candidates := make([]hash.Hash, len(nodes))
	byHash := make(map[hash.Hash]merkle.Node, len(nodes))
	for i, n := range nodes {
		candidates[i] = n.Hash()
		byHash[n.Hash()] = n
	}
	missing, err := e.api.MissingNodeHashes(ctx, e.repo, candidates)
	if err != nil {
		return 0, fmt.Errorf("sync: push: query missing nodes: %w", err)
	}
	for _, h := range missing {
		if err := e.api.PutNode(ctx, e.repo, byHash[h]); err != nil {
			return 0, fmt.Errorf("sync: push: upload node %s: %w", h, err)
		}
	}
	return len(missing), nil
}

func (e *Engine) uploadMissingChunks(ctx context.Context, candidates []hash.Hash) (int, error) {
	if len(candidates) == 0 {
		return 0, nil
	}
	missing, err := e.api.MissingChunkHashes(ctx, e.repo, candidates)
	if err != nil {
		return 0, fmt.Errorf("sync: push: query missing chunks: %w", err)
	}
	for _, h := range missing {
		data, err := e.vs.Get(h)
		if err != nil {
			return 0, fmt.Errorf("sync: push: read chunk %s: %w", h, err)
		}
		staged, err := e.api.ListChunks(ctx, e.repo, h)
		if err != nil {
			return 0, fmt.Errorf("sync: push: list staged parts for %s: %w", h, err)
		}
		if !containsInt(staged, 0) {
			if err := e.api.PutChunk(ctx, e.repo, h, 0, data); err != nil {
				return 0, fmt.Errorf("sync: push: upload chunk %s: %w", h, err)
			}
		}
		if err := e.api.CompleteChunks(ctx, e.repo, h); err != nil {
			return 0, fmt.Errorf("sync: push: complete chunk %s: %w", h, err)
		}
	}
	return len(missing), nil
}

func containsInt(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}
