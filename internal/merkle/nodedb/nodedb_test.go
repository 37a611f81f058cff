package nodedb_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxen-go/oxen/internal/hash"
	"github.com/oxen-go/oxen/internal/merkle"
	"github.com/oxen-go/oxen/internal/merkle/nodedb"
)

func openTestDB(t *testing.T) *nodedb.DB {
	t.Helper()
	db, err := nodedb.Open(filepath.Join(t.TempDir(), "nodes.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestPutGetRoundTrip(t *testing.T) {
	db := openTestDB(t)
	root := hash.Bytes([]byte("root"))
	c := merkle.NewCommit(nil, "init", "a", "a@example.com", 1, root)

	require.NoError(t, db.Put(c))

	got, err := db.Get(merkle.KindCommit, c.Hash())
	require.NoError(t, err)
	gc, ok := got.(*merkle.Commit)
	require.True(t, ok)
	assert.Equal(t, c.Hash(), gc.Hash())
}

func TestPutIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	root := hash.Bytes([]byte("root"))
	c := merkle.NewCommit(nil, "init", "a", "a@example.com", 1, root)

	require.NoError(t, db.Put(c))
	require.NoError(t, db.Put(c))

	has, err := db.Has(merkle.KindCommit, c.Hash())
	require.NoError(t, err)
	assert.True(t, has)
}

func TestGetMissingIsNotFound(t *testing.T) {
	db := openTestDB(t)
	_, err := db.Get(merkle.KindCommit, hash.Bytes([]byte("nope")))
	assert.Error(t, err)
}

func TestForEachVisitsOnlyItsKind(t *testing.T) {
	db := openTestDB(t)
	root := hash.Bytes([]byte("root"))
	c := merkle.NewCommit(nil, "init", "a", "a@example.com", 1, root)
	d := merkle.NewDir("root", nil, 0, hash.Zero, 0, 0, nil, nil)

	require.NoError(t, db.Put(c))
	require.NoError(t, db.Put(d))

	count := 0
	err := db.ForEach(merkle.KindCommit, func(n merkle.Node) error {
		count++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestHasDistinguishesKind(t *testing.T) {
	db := openTestDB(t)
	d := merkle.NewDir("root", nil, 0, hash.Zero, 0, 0, nil, nil)
	require.NoError(t, db.Put(d))

	has, err := db.Has(merkle.KindDir, d.Hash())
	require.NoError(t, err)
	assert.True(t, has)

	has, err = db.Has(merkle.KindCommit, d.Hash())
	require.NoError(t, err)
	assert.False(t, has)
}
