// Package commitgraph provides the read-side DAG view over commits
// stored in a merkle node database: parent walks, ancestor iteration,
// and the list-between computation push uses to find what a remote is
// missing. The walks follow every ParentID and deduplicate commits on
// visit with a seen-set.
package commitgraph

import (
	"github.com/oxen-go/oxen/internal/hash"
	"github.com/oxen-go/oxen/internal/merkle"
	"github.com/oxen-go/oxen/internal/oxenerr"
)

// NodeStore is the subset of nodedb.DB the graph needs.
type NodeStore interface {
	Get(kind merkle.Kind, h hash.Hash) (merkle.Node, error)
	Has(kind merkle.Kind, h hash.Hash) (bool, error)
}

// Graph is a read-only view of the commit DAG backed by a node store.
type Graph struct {
	store NodeStore
}

// New wraps a node store as a commit graph.
func New(store NodeStore) *Graph {
	return &Graph{store: store}
}

// Get fetches a commit by hash.
func (g *Graph) Get(h hash.Hash) (*merkle.Commit, error) {
	n, err := g.store.Get(merkle.KindCommit, h)
	if err != nil {
		return nil, err
	}
	c, ok := n.(*merkle.Commit)
	if !ok {
		return nil, &oxenerr.NotFoundError{Kind: "commit", ID: h.String()}
	}
	return c, nil
}

// Exists reports whether a commit hash is present.
func (g *Graph) Exists(h hash.Hash) (bool, error) {
	return g.store.Has(merkle.KindCommit, h)
}

// Parents returns the immediate parent commits of h.
func (g *Graph) Parents(h hash.Hash) ([]*merkle.Commit, error) {
	c, err := g.Get(h)
	if err != nil {
		return nil, err
	}
	parents := make([]*merkle.Commit, len(c.ParentIDs))
	for i, p := range c.ParentIDs {
		parents[i], err = g.Get(p)
		if err != nil {
			return nil, err
		}
	}
	return parents, nil
}

// Ancestors returns every commit reachable from h (h itself included),
// deduplicated on visit, in no particular order. Used for full walks;
// ListBetween is preferred when only the delta relative to a base is
// needed.
func (g *Graph) Ancestors(h hash.Hash) ([]*merkle.Commit, error) {
	seen := make(map[hash.Hash]bool)
	var out []*merkle.Commit
	stack := []hash.Hash{h}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[cur] {
			continue
		}
		seen[cur] = true
		c, err := g.Get(cur)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
		stack = append(stack, c.ParentIDs...)
	}
	return out, nil
}

// ListBetween returns the commits reachable from head but not from
// base — the set a push or fetch must still transfer. base may be
// the zero hash, meaning "nothing local yet",
// in which case every ancestor of head is returned.
func (g *Graph) ListBetween(base, head hash.Hash) ([]*merkle.Commit, error) {
	excluded := make(map[hash.Hash]bool)
	if !base.IsZero() {
		baseAncestors, err := g.Ancestors(base)
		if err != nil {
			return nil, err
		}
		for _, c := range baseAncestors {
			excluded[c.Hash()] = true
		}
	}

	seen := make(map[hash.Hash]bool)
	var out []*merkle.Commit
	stack := []hash.Hash{head}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[cur] || excluded[cur] {
			continue
		}
		seen[cur] = true
		c, err := g.Get(cur)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
		for _, p := range c.ParentIDs {
			if !excluded[p] {
				stack = append(stack, p)
			}
		}
	}
	return out, nil
}

// IsAncestor reports whether candidate is reachable from h by
// following parent links, used for the push fast-forward check.
func (g *Graph) IsAncestor(candidate, h hash.Hash) (bool, error) {
	if candidate == h {
		return true, nil
	}
	ancestors, err := g.Ancestors(h)
	if err != nil {
		return false, err
	}
	for _, c := range ancestors {
		if c.Hash() == candidate {
			return true, nil
		}
	}
	return false, nil
}
