package workspace_test

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxen-go/oxen/internal/commitwriter"
	"github.com/oxen-go/oxen/internal/dataframe"
	"github.com/oxen-go/oxen/internal/dataframe/format"
	"github.com/oxen-go/oxen/internal/hash"
	"github.com/oxen-go/oxen/internal/merkle"
	"github.com/oxen-go/oxen/internal/merkle/nodedb"
	"github.com/oxen-go/oxen/internal/oxenerr"
	"github.com/oxen-go/oxen/internal/refs"
	"github.com/oxen-go/oxen/internal/store"
	"github.com/oxen-go/oxen/internal/workspace"
)

type fixture struct {
	manager *workspace.Manager
	writer  *commitwriter.Writer
	tree    *merkle.Tree
	refs    *refs.Store
	vs      *store.VersionStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
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

	// Workspace never reads from workDir (every file comes through
	// AddFile's byte stream), so commitwriter.Writer's workDir is
	// irrelevant here and left empty.
	w := commitwriter.New("", vs, nodes, tree, refStore, commitwriter.DefaultConfig())
	mgr := workspace.NewManager(vs, tree, w, commitwriter.DefaultConfig(), filepath.Join(metaDir, "workspaces"))
	return &fixture{manager: mgr, writer: w, tree: tree, refs: refStore, vs: vs}
}

func TestCreateIsIdempotentByID(t *testing.T) {
	f := newFixture(t)
	ws1, err := f.manager.Create("ws1", hash.Zero, "main", true)
	require.NoError(t, err)
	ws2, err := f.manager.Create("ws1", hash.Zero, "main", true)
	require.NoError(t, err)
	assert.Same(t, ws1, ws2)
}

func TestGetUnknownWorkspaceFails(t *testing.T) {
	f := newFixture(t)
	_, err := f.manager.Get("nope")
	require.Error(t, err)
	_, ok := err.(*oxenerr.NotFoundError)
	assert.True(t, ok)
}

func TestAddFileThenCommitBuildsRootFromScratch(t *testing.T) {
	f := newFixture(t)
	ws, err := f.manager.Create("", hash.Zero, "main", true)
	require.NoError(t, err)

	require.NoError(t, ws.AddFile("a.txt", bytes.NewReader([]byte("hello"))))
	require.NoError(t, ws.AddFile("sub/b.txt", bytes.NewReader([]byte("world"))))

	status := ws.Status()
	assert.ElementsMatch(t, []string{"a.txt", "sub/b.txt"}, status.Added)

	result, err := ws.Commit("main", "first commit", "ana", "ana@example.com", 100)
	require.NoError(t, err)
	assert.True(t, result.Commit.IsRoot())

	aEntry, err := f.tree.NodeByPath(result.Commit.RootDirHash, "a.txt")
	require.NoError(t, err)
	assert.Equal(t, merkle.ChildFile, aEntry.Kind)

	head, err := f.refs.Get("main")
	require.NoError(t, err)
	assert.Equal(t, result.Commit.Hash(), head)

	f.manager.Delete(ws.ID)
	_, err = f.manager.Get(ws.ID)
	assert.Error(t, err)
}

func TestCommitReusesUntouchedSubtreeFromBase(t *testing.T) {
	f := newFixture(t)
	ws1, err := f.manager.Create("", hash.Zero, "main", true)
	require.NoError(t, err)
	require.NoError(t, ws1.AddFile("keep/c.txt", bytes.NewReader([]byte("unchanged"))))
	require.NoError(t, ws1.AddFile("a.txt", bytes.NewReader([]byte("v1"))))
	first, err := ws1.Commit("main", "c1", "ana", "ana@example.com", 100)
	require.NoError(t, err)
	f.manager.Delete(ws1.ID)

	keepBefore, err := f.tree.NodeByPath(first.Commit.RootDirHash, "keep")
	require.NoError(t, err)

	ws2, err := f.manager.Create("", first.Commit.Hash(), "main", true)
	require.NoError(t, err)
	require.NoError(t, ws2.AddFile("a.txt", bytes.NewReader([]byte("v2 changed"))))

	second, err := ws2.Commit("main", "c2", "ana", "ana@example.com", 200)
	require.NoError(t, err)
	require.Len(t, second.Commit.ParentIDs, 1)
	assert.Equal(t, first.Commit.Hash(), second.Commit.ParentIDs[0])

	keepAfter, err := f.tree.NodeByPath(second.Commit.RootDirHash, "keep")
	require.NoError(t, err)
	assert.Equal(t, keepBefore.Hash, keepAfter.Hash)
}

func TestCommitFailsWithWorkspaceBehindWhenBranchAdvancedSinceBase(t *testing.T) {
	f := newFixture(t)
	wsA, err := f.manager.Create("", hash.Zero, "main", true)
	require.NoError(t, err)
	require.NoError(t, wsA.AddFile("a.txt", bytes.NewReader([]byte("v1"))))

	wsB, err := f.manager.Create("", hash.Zero, "main", true)
	require.NoError(t, err)
	require.NoError(t, wsB.AddFile("b.txt", bytes.NewReader([]byte("other"))))

	_, err = wsA.Commit("main", "first", "ana", "ana@example.com", 100)
	require.NoError(t, err)

	_, err = wsB.Commit("main", "second", "bob", "bob@example.com", 150)
	require.Error(t, err)
	behind, ok := err.(*oxenerr.WorkspaceBehindError)
	require.True(t, ok, "expected *oxenerr.WorkspaceBehindError, got %T", err)
	assert.Equal(t, wsB.ID, behind.WorkspaceID)
	assert.Equal(t, "main", behind.TargetBranch)
}

func TestRemoveFileOnUnknownPathFails(t *testing.T) {
	f := newFixture(t)
	ws, err := f.manager.Create("", hash.Zero, "main", true)
	require.NoError(t, err)
	err = ws.RemoveFile("never-added.txt")
	require.Error(t, err)
	_, ok := err.(*oxenerr.NotFoundError)
	assert.True(t, ok)
}

func TestCommitSerializesIndexedDataFrameBackToNativeFormat(t *testing.T) {
	f := newFixture(t)
	ws, err := f.manager.Create("", hash.Zero, "main", true)
	require.NoError(t, err)
	require.NoError(t, ws.AddFile("data.csv", bytes.NewReader([]byte("id,name\n1,ana\n2,bob\n"))))

	idx, err := ws.OpenDataFrame("data.csv")
	require.NoError(t, err)
	_, err = idx.AddRow(format.Row{int64(3), "cleo"})
	require.NoError(t, err)
	require.NoError(t, idx.DeleteRow(1))

	result, err := ws.Commit("main", "index edit", "ana", "ana@example.com", 100)
	require.NoError(t, err)

	entry, err := f.tree.NodeByPath(result.Commit.RootDirHash, "data.csv")
	require.NoError(t, err)
	n, err := f.tree.NodeByHash(merkle.KindFile, entry.Hash)
	require.NoError(t, err)
	file := n.(*merkle.File)

	data, err := dataframe.ReadFileBytes(f.vs, file)
	require.NoError(t, err)
	assert.Equal(t, "id,name\n2,bob\n3,cleo\n", string(data))
}

func TestAddFileOnReadOnlyWorkspaceFails(t *testing.T) {
	f := newFixture(t)
	ws, err := f.manager.Create("", hash.Zero, "main", false)
	require.NoError(t, err)
	err = ws.AddFile("a.txt", bytes.NewReader([]byte("data")))
	require.Error(t, err)
	_, ok := err.(*oxenerr.UnsupportedError)
	assert.True(t, ok)
}
