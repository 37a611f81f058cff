package stage_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxen-go/oxen/internal/hash"
	"github.com/oxen-go/oxen/internal/merkle"
	"github.com/oxen-go/oxen/internal/stage"
)

type fakeStore struct {
	nodes map[hash.Hash]merkle.Node
}

func newFakeStore() *fakeStore { return &fakeStore{nodes: make(map[hash.Hash]merkle.Node)} }

func (s *fakeStore) put(n merkle.Node) { s.nodes[n.Hash()] = n }

func (s *fakeStore) Get(kind merkle.Kind, h hash.Hash) (merkle.Node, error) {
	n, ok := s.nodes[h]
	if !ok || n.Kind() != kind {
		return nil, &notFoundErr{}
	}
	return n, nil
}

func (s *fakeStore) Has(kind merkle.Kind, h hash.Hash) (bool, error) {
	n, ok := s.nodes[h]
	return ok && n.Kind() == kind, nil
}

type notFoundErr struct{}

func (e *notFoundErr) Error() string { return "not found" }

func setup(t *testing.T) (workDir, metaDir string, fs *fakeStore) {
	t.Helper()
	workDir = t.TempDir()
	metaDir = t.TempDir()
	fs = newFakeStore()
	return
}

func TestAddPathClassifiesAdded(t *testing.T) {
	workDir, metaDir, fs := setup(t)
	root := merkle.NewDir("root", nil, 0, hash.Zero, 0, 0, nil, nil)
	fs.put(root)
	tree := merkle.NewTree(fs)

	s, err := stage.Open(metaDir, workDir, tree, root.Hash())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(workDir, "a.txt"), []byte("hello"), 0644))
	require.NoError(t, s.AddPath("a.txt"))

	pending := s.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, stage.Added, pending[0].Kind)
	assert.Equal(t, "a.txt", pending[0].Path)
}

func TestAddPathClassifiesModified(t *testing.T) {
	workDir, metaDir, fs := setup(t)

	existingHash := hash.Bytes([]byte("old content"))
	file := merkle.NewFile("a.txt", existingHash, 11, []hash.Hash{existingHash}, "text", "text/plain", "txt", hash.Zero, 0, 0)
	fs.put(file)
	root := merkle.NewDir("root", []merkle.DirEntry{
		{Name: "a.txt", Hash: file.Hash(), Kind: merkle.ChildFile},
	}, 11, hash.Zero, 0, 0, nil, nil)
	fs.put(root)
	tree := merkle.NewTree(fs)

	s, err := stage.Open(metaDir, workDir, tree, root.Hash())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(workDir, "a.txt"), []byte("new content"), 0644))
	require.NoError(t, s.AddPath("a.txt"))

	pending := s.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, stage.Modified, pending[0].Kind)
}

func TestPendingPersistsAcrossOpen(t *testing.T) {
	workDir, metaDir, fs := setup(t)
	root := merkle.NewDir("root", nil, 0, hash.Zero, 0, 0, nil, nil)
	fs.put(root)
	tree := merkle.NewTree(fs)

	s, err := stage.Open(metaDir, workDir, tree, root.Hash())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(workDir, "a.txt"), []byte("hello"), 0644))
	require.NoError(t, s.AddPath("a.txt"))

	reopened, err := stage.Open(metaDir, workDir, tree, root.Hash())
	require.NoError(t, err)
	assert.Len(t, reopened.Pending(), 1)
}

func TestClearEmptiesPendingSet(t *testing.T) {
	workDir, metaDir, fs := setup(t)
	root := merkle.NewDir("root", nil, 0, hash.Zero, 0, 0, nil, nil)
	fs.put(root)
	tree := merkle.NewTree(fs)

	s, err := stage.Open(metaDir, workDir, tree, root.Hash())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(workDir, "a.txt"), []byte("hello"), 0644))
	require.NoError(t, s.AddPath("a.txt"))
	require.NoError(t, s.Clear())

	assert.Empty(t, s.Pending())
}

func TestWalkStatusDetectsAddedModifiedRemoved(t *testing.T) {
	workDir, metaDir, fs := setup(t)

	unchangedHash := hash.Bytes([]byte("same"))
	unchangedFile := merkle.NewFile("unchanged.txt", unchangedHash, 4, []hash.Hash{unchangedHash}, "text", "text/plain", "txt", hash.Zero, 0, 0)
	fs.put(unchangedFile)

	staleHash := hash.Bytes([]byte("stale content"))
	modifiedFile := merkle.NewFile("modified.txt", staleHash, 13, []hash.Hash{staleHash}, "text", "text/plain", "txt", hash.Zero, 0, 0)
	fs.put(modifiedFile)

	goneHash := hash.Bytes([]byte("gone content"))
	removedFile := merkle.NewFile("removed.txt", goneHash, 12, []hash.Hash{goneHash}, "text", "text/plain", "txt", hash.Zero, 0, 0)
	fs.put(removedFile)

	root := merkle.NewDir("root", []merkle.DirEntry{
		{Name: "unchanged.txt", Hash: unchangedFile.Hash(), Kind: merkle.ChildFile},
		{Name: "modified.txt", Hash: modifiedFile.Hash(), Kind: merkle.ChildFile},
		{Name: "removed.txt", Hash: removedFile.Hash(), Kind: merkle.ChildFile},
	}, 0, hash.Zero, 0, 0, nil, nil)
	fs.put(root)
	tree := merkle.NewTree(fs)

	s, err := stage.Open(metaDir, workDir, tree, root.Hash())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(workDir, "unchanged.txt"), []byte("same"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(workDir, "modified.txt"), []byte("new content!!"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(workDir, "new.txt"), []byte("brand new"), 0644))
	// removed.txt intentionally absent from the working directory.

	status, err := s.WalkStatus(root.Hash())
	require.NoError(t, err)

	assert.Equal(t, []string{"new.txt"}, status.Added)
	assert.Equal(t, []string{"modified.txt"}, status.Modified)
	assert.Equal(t, []string{"removed.txt"}, status.Removed)
}

func TestRemovePath(t *testing.T) {
	workDir, metaDir, fs := setup(t)
	root := merkle.NewDir("root", nil, 0, hash.Zero, 0, 0, nil, nil)
	fs.put(root)
	tree := merkle.NewTree(fs)

	s, err := stage.Open(metaDir, workDir, tree, root.Hash())
	require.NoError(t, err)

	require.NoError(t, s.RemovePath("gone.txt"))
	pending := s.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, stage.Removed, pending[0].Kind)
}
