package merge_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxen-go/oxen/internal/commitwriter"
	"github.com/oxen-go/oxen/internal/hash"
	"github.com/oxen-go/oxen/internal/merge"
	"github.com/oxen-go/oxen/internal/merkle"
	"github.com/oxen-go/oxen/internal/merkle/nodedb"
	"github.com/oxen-go/oxen/internal/oxenerr"
	"github.com/oxen-go/oxen/internal/refs"
	"github.com/oxen-go/oxen/internal/stage"
	"github.com/oxen-go/oxen/internal/store"
)

type fixture struct {
	workDir string
	writer  *commitwriter.Writer
	engine  *merge.Engine
	vs      *store.VersionStore
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

	cfg := commitwriter.DefaultConfig()
	w := commitwriter.New(workDir, vs, nodes, tree, refStore, cfg)
	e := merge.New(vs, tree, nodes, cfg)
	return &fixture{workDir: workDir, writer: w, engine: e, vs: vs, nodes: nodes, tree: tree, refs: refStore}
}

func (f *fixture) commit(t *testing.T, branch string, base hash.Hash, baseRoot hash.Hash, paths map[string]string, remove ...string) hash.Hash {
	t.Helper()
	for rel, content := range paths {
		abs := filepath.Join(f.workDir, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0755))
		require.NoError(t, os.WriteFile(abs, []byte(content), 0644))
	}
	s, err := stage.Open(t.TempDir(), f.workDir, f.tree, baseRoot)
	require.NoError(t, err)
	for rel := range paths {
		require.NoError(t, s.AddPath(rel))
	}
	for _, rel := range remove {
		require.NoError(t, os.Remove(filepath.Join(f.workDir, rel)))
		require.NoError(t, s.AddPath(rel))
	}
	result, err := f.writer.Commit(s, base, baseRoot, branch, "msg", "ana", "ana@example.com", 100)
	require.NoError(t, err)
	require.NoError(t, f.refs.Set(branch, result.Commit.Hash()))
	return result.Commit.Hash()
}

func TestMergeAutoResolvesChangesOnOnlyOneSide(t *testing.T) {
	f := newFixture(t)
	base := f.commit(t, "main", hash.Zero, hash.Zero, map[string]string{
		"a.txt": "hello",
		"b.txt": "world",
	})
	baseCommit, err := f.nodes.Get(merkle.KindCommit, base)
	require.NoError(t, err)
	baseRoot := baseCommit.(*merkle.Commit).RootDirHash

	ours := f.commit(t, "main", base, baseRoot, map[string]string{"a.txt": "hello changed"})
	theirs := f.commit(t, "feature", base, baseRoot, map[string]string{"b.txt": "world changed"})

	merged, err := f.engine.Merge(context.Background(), base, ours, theirs)
	require.NoError(t, err)
	assert.False(t, merged.IsZero())

	mergedCommit, err := f.nodes.Get(merkle.KindCommit, merged)
	require.NoError(t, err)
	mc := mergedCommit.(*merkle.Commit)
	assert.True(t, mc.IsMerge())
	assert.Equal(t, []hash.Hash{ours, theirs}, mc.ParentIDs)

	aEntry, err := f.tree.NodeByPath(mc.RootDirHash, "a.txt")
	require.NoError(t, err)
	aFile, err := f.tree.NodeByHash(merkle.KindFile, aEntry.Hash)
	require.NoError(t, err)
	assert.Equal(t, "hello changed", string(readFile(t, f, aFile.(*merkle.File))))

	bEntry, err := f.tree.NodeByPath(mc.RootDirHash, "b.txt")
	require.NoError(t, err)
	bFile, err := f.tree.NodeByHash(merkle.KindFile, bEntry.Hash)
	require.NoError(t, err)
	assert.Equal(t, "world changed", string(readFile(t, f, bFile.(*merkle.File))))
}

func TestMergeReportsConflictWhenBothSidesEditSameLines(t *testing.T) {
	f := newFixture(t)
	base := f.commit(t, "main", hash.Zero, hash.Zero, map[string]string{"a.txt": "line one\nline two\nline three\n"})
	baseCommit, err := f.nodes.Get(merkle.KindCommit, base)
	require.NoError(t, err)
	baseRoot := baseCommit.(*merkle.Commit).RootDirHash

	ours := f.commit(t, "main", base, baseRoot, map[string]string{"a.txt": "line one changed by ours\nline two\nline three\n"})
	theirs := f.commit(t, "feature", base, baseRoot, map[string]string{"a.txt": "line one changed by theirs\nline two\nline three\n"})

	_, err = f.engine.Merge(context.Background(), base, ours, theirs)
	require.Error(t, err)
	var mergeErr *oxenerr.MergeConflictError
	require.ErrorAs(t, err, &mergeErr)
	require.Len(t, mergeErr.Conflicts, 1)
	assert.Equal(t, "a.txt", mergeErr.Conflicts[0].Path)
}

func TestMergeRowsATabularFileEditedOnBothSidesByDifferentKeys(t *testing.T) {
	f := newFixture(t)
	base := f.commit(t, "main", hash.Zero, hash.Zero, map[string]string{
		"data.csv": "id,value\n1,one\n2,two\n",
	})
	baseCommit, err := f.nodes.Get(merkle.KindCommit, base)
	require.NoError(t, err)
	baseRoot := baseCommit.(*merkle.Commit).RootDirHash

	ours := f.commit(t, "main", base, baseRoot, map[string]string{"data.csv": "id,value\n1,one-edited\n2,two\n"})
	theirs := f.commit(t, "feature", base, baseRoot, map[string]string{"data.csv": "id,value\n1,one\n2,two-edited\n"})

	merged, err := f.engine.Merge(context.Background(), base, ours, theirs)
	require.NoError(t, err)

	mergedCommit, err := f.nodes.Get(merkle.KindCommit, merged)
	require.NoError(t, err)
	mc := mergedCommit.(*merkle.Commit)

	entry, err := f.tree.NodeByPath(mc.RootDirHash, "data.csv")
	require.NoError(t, err)
	file, err := f.tree.NodeByHash(merkle.KindFile, entry.Hash)
	require.NoError(t, err)
	content := string(readFile(t, f, file.(*merkle.File)))
	assert.Contains(t, content, "one-edited")
	assert.Contains(t, content, "two-edited")
}

func readFile(t *testing.T, f *fixture, file *merkle.File) []byte {
	t.Helper()
	var buf []byte
	for _, ch := range file.ChunkHashes {
		data, err := f.vs.Get(ch)
		require.NoError(t, err)
		buf = append(buf, data...)
	}
	return buf
}
