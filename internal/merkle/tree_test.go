package merkle_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxen-go/oxen/internal/hash"
	"github.com/oxen-go/oxen/internal/merkle"
)

// fakeStore is a minimal in-memory merkle.NodeStore for exercising
// Tree traversal without a real nodedb.DB.
type fakeStore struct {
	nodes map[hash.Hash]merkle.Node
}

func newFakeStore() *fakeStore {
	return &fakeStore{nodes: make(map[hash.Hash]merkle.Node)}
}

func (s *fakeStore) put(n merkle.Node) {
	s.nodes[n.Hash()] = n
}

func (s *fakeStore) Get(kind merkle.Kind, h hash.Hash) (merkle.Node, error) {
	n, ok := s.nodes[h]
	if !ok || n.Kind() != kind {
		return nil, &notFound{}
	}
	return n, nil
}

func (s *fakeStore) Has(kind merkle.Kind, h hash.Hash) (bool, error) {
	n, ok := s.nodes[h]
	return ok && n.Kind() == kind, nil
}

type notFound struct{}

func (e *notFound) Error() string { return "not found" }

// buildSmallTree wires: root dir -> {a.txt file, sub vnode -> nested dir -> b.txt file}
func buildSmallTree(t *testing.T, s *fakeStore) (rootHash hash.Hash, fileAHash, fileBHash hash.Hash) {
	t.Helper()

	aContent := hash.Bytes([]byte("a-content"))
	fa := merkle.NewFile("a.txt", aContent, 10, []hash.Hash{aContent}, "text", "text/plain", "txt", hash.Zero, 0, 0)
	s.put(fa)

	bContent := hash.Bytes([]byte("b-content"))
	fb := merkle.NewFile("b.txt", bContent, 20, []hash.Hash{bContent}, "text", "text/plain", "txt", hash.Zero, 0, 0)
	s.put(fb)

	nested := merkle.NewDir("nested", []merkle.DirEntry{
		{Name: "b.txt", Hash: fb.Hash(), Kind: merkle.ChildFile},
	}, 20, hash.Zero, 0, 0, nil, nil)
	s.put(nested)

	vn := merkle.NewVNode(0, []merkle.DirEntry{
		{Name: "nested", Hash: nested.Hash(), Kind: merkle.ChildDir},
	})
	s.put(vn)

	root := merkle.NewDir("root", []merkle.DirEntry{
		{Name: "a.txt", Hash: fa.Hash(), Kind: merkle.ChildFile},
		{Name: "sub", Hash: vn.Hash(), Kind: merkle.ChildVNode},
	}, 30, hash.Zero, 0, 0, nil, nil)
	s.put(root)

	return root.Hash(), fa.Hash(), fb.Hash()
}

func TestTreeChildrenFlattensVNode(t *testing.T) {
	s := newFakeStore()
	rootHash, faHash, _ := buildSmallTree(t, s)

	tree := merkle.NewTree(s)
	children, err := tree.Children(rootHash)
	require.NoError(t, err)

	names := map[string]hash.Hash{}
	for _, c := range children {
		names[c.Name] = c.Hash
	}
	assert.Equal(t, faHash, names["a.txt"])
	_, hasVNodeName := names["sub"]
	assert.False(t, hasVNodeName, "VNode's own entry name should not appear; its children should")
	_, hasNested := names["nested"]
	assert.True(t, hasNested, "VNode children should be flattened into the parent's children")
}

func TestTreeNodeByPathDescendsThroughVNode(t *testing.T) {
	s := newFakeStore()
	rootHash, _, fbHash := buildSmallTree(t, s)

	tree := merkle.NewTree(s)
	entry, err := tree.NodeByPath(rootHash, "nested/b.txt")
	require.NoError(t, err)
	assert.Equal(t, fbHash, entry.Hash)
	assert.Equal(t, merkle.ChildFile, entry.Kind)
}

func TestTreeNodeByPathMissing(t *testing.T) {
	s := newFakeStore()
	rootHash, _, _ := buildSmallTree(t, s)

	tree := merkle.NewTree(s)
	_, err := tree.NodeByPath(rootHash, "does/not/exist")
	assert.Error(t, err)
}

func TestTreeNodeByPathEmptyReturnsRoot(t *testing.T) {
	s := newFakeStore()
	rootHash, _, _ := buildSmallTree(t, s)

	tree := merkle.NewTree(s)
	entry, err := tree.NodeByPath(rootHash, "")
	require.NoError(t, err)
	assert.Equal(t, rootHash, entry.Hash)
}

func TestListMissingNodeHashesDetectsGap(t *testing.T) {
	s := newFakeStore()
	rootHash, _, _ := buildSmallTree(t, s)

	// Simulate a partial peer: drop the nested dir, keep everything else.
	partial := newFakeStore()
	for h, n := range s.nodes {
		if n.Kind() == merkle.KindDir && n != nil {
			if d, ok := n.(*merkle.Dir); ok && d.Name == "nested" {
				continue
			}
		}
		partial.put(n)
		_ = h
	}

	tree := merkle.NewTree(partial)
	missing, err := tree.ListMissingNodeHashes(rootHash)
	require.NoError(t, err)
	require.Len(t, missing, 1)
}

func TestListMissingChunkHashesDetectsGap(t *testing.T) {
	s := newFakeStore()
	rootHash, _, _ := buildSmallTree(t, s)
	tree := merkle.NewTree(s)

	present := map[hash.Hash]bool{
		hash.Bytes([]byte("a-content")): true,
	}
	exists := func(h hash.Hash) (bool, error) { return present[h], nil }

	missing, err := tree.ListMissingChunkHashes(rootHash, exists)
	require.NoError(t, err)
	require.Len(t, missing, 1)
	assert.Equal(t, hash.Bytes([]byte("b-content")), missing[0])
}
