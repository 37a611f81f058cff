package commitwriter_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxen-go/oxen/internal/commitwriter"
	"github.com/oxen-go/oxen/internal/hash"
	"github.com/oxen-go/oxen/internal/merkle"
	"github.com/oxen-go/oxen/internal/merkle/nodedb"
	"github.com/oxen-go/oxen/internal/refs"
	"github.com/oxen-go/oxen/internal/stage"
	"github.com/oxen-go/oxen/internal/store"
)

type fixture struct {
	workDir string
	writer  *commitwriter.Writer
	nodes   *nodedb.DB
	tree    *merkle.Tree
	refs    *refs.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	workDir := t.TempDir()
	metaDir := t.TempDir()

	backend, err := store.NewLocalBackend(filepath.Join(metaDir, "objects"))
	require.NoError(t, err)
	vs := store.New(backend)

	nodes, err := nodedb.Open(filepath.Join(metaDir, "nodes.db"))
	require.NoError(t, err)
	t.Cleanup(func() { nodes.Close() })

	tree := merkle.NewTree(nodes)
	refStore, err := refs.Open(metaDir)
	require.NoError(t, err)

	w := commitwriter.New(workDir, vs, nodes, tree, refStore, commitwriter.DefaultConfig())
	return &fixture{workDir: workDir, writer: w, nodes: nodes, tree: tree, refs: refStore}
}

func openStager(t *testing.T, f *fixture, baseRoot hash.Hash) *stage.Stager {
	t.Helper()
	s, err := stage.Open(t.TempDir(), f.workDir, f.tree, baseRoot)
	require.NoError(t, err)
	return s
}

func TestCommitFirstCommitBuildsRootFromScratch(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.WriteFile(filepath.Join(f.workDir, "a.txt"), []byte("hello"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(f.workDir, "sub"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(f.workDir, "sub", "b.txt"), []byte("world"), 0644))

	s := openStager(t, f, hash.Zero)
	require.NoError(t, s.AddPath("a.txt"))
	require.NoError(t, s.AddPath("sub/b.txt"))

	result, err := f.writer.Commit(s, hash.Zero, hash.Zero, "main", "first commit", "ana", "ana@example.com", 100)
	require.NoError(t, err)
	require.NotNil(t, result.Commit)
	assert.True(t, result.Commit.IsRoot())
	assert.False(t, result.Commit.RootDirHash.IsZero())

	aEntry, err := f.tree.NodeByPath(result.Commit.RootDirHash, "a.txt")
	require.NoError(t, err)
	assert.Equal(t, merkle.ChildFile, aEntry.Kind)

	bEntry, err := f.tree.NodeByPath(result.Commit.RootDirHash, "sub/b.txt")
	require.NoError(t, err)
	assert.Equal(t, merkle.ChildFile, bEntry.Kind)

	head, err := f.refs.Get("main")
	require.NoError(t, err)
	assert.Equal(t, result.Commit.Hash(), head)

	assert.Empty(t, s.Pending())
}

func TestCommitSecondCommitReusesUntouchedSubtree(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.MkdirAll(filepath.Join(f.workDir, "keep"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(f.workDir, "keep", "c.txt"), []byte("unchanged"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(f.workDir, "a.txt"), []byte("v1"), 0644))

	s := openStager(t, f, hash.Zero)
	require.NoError(t, s.AddPath("keep/c.txt"))
	require.NoError(t, s.AddPath("a.txt"))
	first, err := f.writer.Commit(s, hash.Zero, hash.Zero, "main", "c1", "ana", "ana@example.com", 100)
	require.NoError(t, err)

	keepEntryBefore, err := f.tree.NodeByPath(first.Commit.RootDirHash, "keep")
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(f.workDir, "a.txt"), []byte("v2 changed"), 0644))
	s2 := openStager(t, f, first.Commit.RootDirHash)
	require.NoError(t, s2.AddPath("a.txt"))

	second, err := f.writer.Commit(s2, first.Commit.Hash(), first.Commit.RootDirHash, "main", "c2", "ana", "ana@example.com", 200)
	require.NoError(t, err)
	require.Len(t, second.Commit.ParentIDs, 1)
	assert.Equal(t, first.Commit.Hash(), second.Commit.ParentIDs[0])

	keepEntryAfter, err := f.tree.NodeByPath(second.Commit.RootDirHash, "keep")
	require.NoError(t, err)
	assert.Equal(t, keepEntryBefore.Hash, keepEntryAfter.Hash, "untouched subtree must keep the same hash across commits")

	aEntry, err := f.tree.NodeByPath(second.Commit.RootDirHash, "a.txt")
	require.NoError(t, err)
	fileNode, err := f.tree.NodeByHash(merkle.KindFile, aEntry.Hash)
	require.NoError(t, err)
	assert.Equal(t, hash.Bytes([]byte("v2 changed")), fileNode.(*merkle.File).ContentHash)
}

func TestCommitRemovesPathAndPrunesEmptyDir(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.MkdirAll(filepath.Join(f.workDir, "only"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(f.workDir, "only", "d.txt"), []byte("data"), 0644))

	s := openStager(t, f, hash.Zero)
	require.NoError(t, s.AddPath("only/d.txt"))
	first, err := f.writer.Commit(s, hash.Zero, hash.Zero, "main", "c1", "ana", "ana@example.com", 100)
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(f.workDir, "only", "d.txt")))
	s2 := openStager(t, f, first.Commit.RootDirHash)
	require.NoError(t, s2.RemovePath("only/d.txt"))

	second, err := f.writer.Commit(s2, first.Commit.Hash(), first.Commit.RootDirHash, "main", "c2", "ana", "ana@example.com", 200)
	require.NoError(t, err)

	_, err = f.tree.NodeByPath(second.Commit.RootDirHash, "only")
	assert.Error(t, err, "a directory left with no descendants must not appear in the tree")
}

func TestCommitWithNoPendingChangesFails(t *testing.T) {
	f := newFixture(t)
	s := openStager(t, f, hash.Zero)
	_, err := f.writer.Commit(s, hash.Zero, hash.Zero, "main", "empty", "ana", "ana@example.com", 100)
	assert.Error(t, err)
}

func TestCommitFailsOnBranchAdvancedSinceBase(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.WriteFile(filepath.Join(f.workDir, "a.txt"), []byte("v1"), 0644))
	s := openStager(t, f, hash.Zero)
	require.NoError(t, s.AddPath("a.txt"))
	first, err := f.writer.Commit(s, hash.Zero, hash.Zero, "main", "c1", "ana", "ana@example.com", 100)
	require.NoError(t, err)

	// A second writer commits on top of the same base concurrently.
	require.NoError(t, os.WriteFile(filepath.Join(f.workDir, "b.txt"), []byte("other"), 0644))
	sStale := openStager(t, f, hash.Zero)
	require.NoError(t, sStale.AddPath("b.txt"))

	_, err = f.writer.Commit(sStale, hash.Zero, hash.Zero, "main", "stale", "bob", "bob@example.com", 150)
	assert.Error(t, err, "branch already advanced past the expected base")
	_ = first
}
