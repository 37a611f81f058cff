package commitgraph_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxen-go/oxen/internal/commitgraph"
	"github.com/oxen-go/oxen/internal/hash"
	"github.com/oxen-go/oxen/internal/merkle"
	"github.com/oxen-go/oxen/internal/merkle/nodedb"
)

func openDB(t *testing.T) *nodedb.DB {
	t.Helper()
	db, err := nodedb.Open(filepath.Join(t.TempDir(), "nodes.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// buildChain writes root -> a -> b -> c (c is the tip) and returns their hashes.
func buildChain(t *testing.T, db *nodedb.DB) (root, a, b, c hash.Hash) {
	t.Helper()
	dirHash := hash.Bytes([]byte("tree"))

	rootC := merkle.NewCommit(nil, "root", "u", "u@example.com", 1, dirHash)
	require.NoError(t, db.Put(rootC))

	aC := merkle.NewCommit([]hash.Hash{rootC.Hash()}, "a", "u", "u@example.com", 2, dirHash)
	require.NoError(t, db.Put(aC))

	bC := merkle.NewCommit([]hash.Hash{aC.Hash()}, "b", "u", "u@example.com", 3, dirHash)
	require.NoError(t, db.Put(bC))

	cC := merkle.NewCommit([]hash.Hash{bC.Hash()}, "c", "u", "u@example.com", 4, dirHash)
	require.NoError(t, db.Put(cC))

	return rootC.Hash(), aC.Hash(), bC.Hash(), cC.Hash()
}

func TestGetAndExists(t *testing.T) {
	db := openDB(t)
	root, _, _, _ := buildChain(t, db)
	g := commitgraph.New(db)

	exists, err := g.Exists(root)
	require.NoError(t, err)
	assert.True(t, exists)

	commit, err := g.Get(root)
	require.NoError(t, err)
	assert.Equal(t, "root", commit.Message)
}

func TestParents(t *testing.T) {
	db := openDB(t)
	root, a, _, _ := buildChain(t, db)
	g := commitgraph.New(db)

	parents, err := g.Parents(a)
	require.NoError(t, err)
	require.Len(t, parents, 1)
	assert.Equal(t, root, parents[0].Hash())
}

func TestAncestorsIncludesSelfAndDedupes(t *testing.T) {
	db := openDB(t)
	root, a, b, c := buildChain(t, db)
	g := commitgraph.New(db)

	ancestors, err := g.Ancestors(c)
	require.NoError(t, err)
	hashes := map[hash.Hash]bool{}
	for _, a := range ancestors {
		hashes[a.Hash()] = true
	}
	assert.True(t, hashes[root])
	assert.True(t, hashes[a])
	assert.True(t, hashes[b])
	assert.True(t, hashes[c])
	assert.Len(t, ancestors, 4)
}

func TestListBetweenExcludesBaseAncestors(t *testing.T) {
	db := openDB(t)
	root, a, b, c := buildChain(t, db)
	g := commitgraph.New(db)

	between, err := g.ListBetween(a, c)
	require.NoError(t, err)
	hashes := map[hash.Hash]bool{}
	for _, x := range between {
		hashes[x.Hash()] = true
	}
	assert.False(t, hashes[root])
	assert.False(t, hashes[a])
	assert.True(t, hashes[b])
	assert.True(t, hashes[c])
}

func TestListBetweenFromZeroReturnsEverything(t *testing.T) {
	db := openDB(t)
	root, a, b, c := buildChain(t, db)
	g := commitgraph.New(db)

	between, err := g.ListBetween(hash.Zero, c)
	require.NoError(t, err)
	assert.Len(t, between, 4)
	_ = root
	_ = a
	_ = b
}

func TestIsAncestor(t *testing.T) {
	db := openDB(t)
	root, _, _, c := buildChain(t, db)
	g := commitgraph.New(db)

	ok, err := g.IsAncestor(root, c)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = g.IsAncestor(c, root)
	require.NoError(t, err)
	assert.False(t, ok)
}
