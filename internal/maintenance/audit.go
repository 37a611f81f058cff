// Package maintenance reports on a repository's reachable vs.
// unreferenced storage without ever deleting anything: spec §9
// reserves actual deletion for a separate, not-yet-specified
// mark-and-sweep tool that must not run concurrently with push, so
// this package stops at "here is what an eventual sweep would find."
// Grounded on the teacher's internal/maintenance/gc.go
// (GarbageCollectOptions/GCStats, reachability-then-report shape), with
// the prune/delete code paths removed and the mark phase retargeted
// from loose git objects onto RefStore + CommitGraph + MerkleNodeDB +
// VersionStore.
package maintenance

import (
	"github.com/oxen-go/oxen/internal/commitgraph"
	"github.com/oxen-go/oxen/internal/hash"
	"github.com/oxen-go/oxen/internal/merkle"
	"github.com/oxen-go/oxen/internal/merkle/nodedb"
	"github.com/oxen-go/oxen/internal/refs"
	"github.com/oxen-go/oxen/internal/store"
)

var nodeKinds = []merkle.Kind{merkle.KindCommit, merkle.KindDir, merkle.KindVNode, merkle.KindFile, merkle.KindSchema}

// AuditStats summarizes one repository's reachable and unreferenced
// storage as of the moment the audit ran.
type AuditStats struct {
	ReachableCommits   int
	ReachableNodes     int
	ReachableChunks    int
	UnreferencedNodes  []hash.Hash
	UnreferencedChunks []hash.Hash
}

// unboundedStore answers Has as always-false so Tree's "list what's
// missing" walks can be repurposed into "list everything reachable" —
// nothing is ever considered already-present, so the walk collects
// every hash it visits instead of stopping at the first hit.
type unboundedStore struct {
	nodes *nodedb.DB
}

func (u unboundedStore) Get(kind merkle.Kind, h hash.Hash) (merkle.Node, error) {
	return u.nodes.Get(kind, h)
}

func (u unboundedStore) Has(merkle.Kind, hash.Hash) (bool, error) {
	return false, nil
}

// Audit walks every branch tip (and HEAD, if detached) to mark
// reachable commits, tree nodes, and chunks, then diffs that set
// against everything actually stored to report what a sweep would
// find unreferenced.
func Audit(refStore *refs.Store, graph *commitgraph.Graph, nodes *nodedb.DB, vs *store.VersionStore) (*AuditStats, error) {
	reachableNodes := make(map[hash.Hash]bool)
	reachableChunks := make(map[hash.Hash]bool)
	visitedCommits := make(map[hash.Hash]bool)

	unbounded := merkle.NewTree(unboundedStore{nodes: nodes})
	allChunksExist := func(hash.Hash) (bool, error) { return false, nil }

	markFrom := func(tip hash.Hash) error {
		commits, err := graph.Ancestors(tip)
		if err != nil {
			return err
		}
		for _, c := range commits {
			if visitedCommits[c.Hash()] {
				continue
			}
			visitedCommits[c.Hash()] = true
			reachableNodes[c.Hash()] = true

			treeNodes, err := unbounded.ListMissingNodeHashes(c.RootDirHash)
			if err != nil {
				return err
			}
			for _, h := range treeNodes {
				reachableNodes[h] = true
			}

			chunks, err := unbounded.ListMissingChunkHashes(c.RootDirHash, allChunksExist)
			if err != nil {
				return err
			}
			for _, h := range chunks {
				reachableChunks[h] = true
			}
		}
		return nil
	}

	branches, err := refStore.List()
	if err != nil {
		return nil, err
	}
	for _, name := range branches {
		tip, err := refStore.Get(name)
		if err != nil {
			return nil, err
		}
		if err := markFrom(tip); err != nil {
			return nil, err
		}
	}

	head, err := refStore.ReadHead()
	if err == nil && head.Detached && !head.Commit.IsZero() {
		if err := markFrom(head.Commit); err != nil {
			return nil, err
		}
	}

	stats := &AuditStats{
		ReachableCommits: len(visitedCommits),
		ReachableNodes:   len(reachableNodes),
		ReachableChunks:  len(reachableChunks),
	}

	for _, kind := range nodeKinds {
		if err := nodes.ForEach(kind, func(n merkle.Node) error {
			if !reachableNodes[n.Hash()] {
				stats.UnreferencedNodes = append(stats.UnreferencedNodes, n.Hash())
			}
			return nil
		}); err != nil {
			return nil, err
		}
	}

	allChunks, err := vs.List()
	if err != nil {
		return nil, err
	}
	for _, h := range allChunks {
		if !reachableChunks[h] {
			stats.UnreferencedChunks = append(stats.UnreferencedChunks, h)
		}
	}

	return stats, nil
}
