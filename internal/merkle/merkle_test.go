package merkle_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxen-go/oxen/internal/hash"
	"github.com/oxen-go/oxen/internal/merkle"
)

func TestCommitHashDeterministic(t *testing.T) {
	root := hash.Bytes([]byte("root"))
	c1 := merkle.NewCommit(nil, "init", "a", "a@example.com", 100, root)
	c2 := merkle.NewCommit(nil, "init", "a", "a@example.com", 100, root)
	assert.Equal(t, c1.Hash(), c2.Hash())
}

func TestCommitHashParentOrderMatters(t *testing.T) {
	root := hash.Bytes([]byte("root"))
	p1 := hash.Bytes([]byte("p1"))
	p2 := hash.Bytes([]byte("p2"))
	a := merkle.NewCommit([]hash.Hash{p1, p2}, "merge", "a", "a@example.com", 100, root)
	b := merkle.NewCommit([]hash.Hash{p2, p1}, "merge", "a", "a@example.com", 100, root)
	assert.NotEqual(t, a.Hash(), b.Hash())
}

func TestCommitRootAndMerge(t *testing.T) {
	root := hash.Bytes([]byte("root"))
	c := merkle.NewCommit(nil, "init", "a", "a@example.com", 100, root)
	assert.True(t, c.IsRoot())
	assert.False(t, c.IsMerge())

	p1 := hash.Bytes([]byte("p1"))
	p2 := hash.Bytes([]byte("p2"))
	m := merkle.NewCommit([]hash.Hash{p1, p2}, "merge", "a", "a@example.com", 100, root)
	assert.False(t, m.IsRoot())
	assert.True(t, m.IsMerge())
}

func TestCommitEncodeDecodeRoundTrip(t *testing.T) {
	root := hash.Bytes([]byte("root"))
	p1 := hash.Bytes([]byte("p1"))
	c := merkle.NewCommit([]hash.Hash{p1}, "msg", "author", "a@example.com", 42, root)

	decoded, err := merkle.Decode(c.Encode())
	require.NoError(t, err)
	dc, ok := decoded.(*merkle.Commit)
	require.True(t, ok)
	assert.Equal(t, c.Hash(), dc.Hash())
	assert.Equal(t, c.Message, dc.Message)
	assert.Equal(t, c.ParentIDs, dc.ParentIDs)
}

func TestDirHashIgnoresMetadata(t *testing.T) {
	entries := []merkle.DirEntry{
		{Name: "a.txt", Hash: hash.Bytes([]byte("a")), Kind: merkle.ChildFile},
	}
	d1 := merkle.NewDir("root", entries, 100, hash.Zero, 1, 0, nil, nil)
	d2 := merkle.NewDir("root", entries, 999, hash.Bytes([]byte("other-commit")), 999, 999, map[string]int64{"csv": 1}, nil)
	assert.Equal(t, d1.Hash(), d2.Hash(), "metadata fields must not affect Dir identity")
}

func TestDirHashOrderIndependent(t *testing.T) {
	h1 := hash.Bytes([]byte("1"))
	h2 := hash.Bytes([]byte("2"))
	entriesA := []merkle.DirEntry{
		{Name: "a", Hash: h1, Kind: merkle.ChildFile},
		{Name: "b", Hash: h2, Kind: merkle.ChildFile},
	}
	entriesB := []merkle.DirEntry{
		{Name: "b", Hash: h2, Kind: merkle.ChildFile},
		{Name: "a", Hash: h1, Kind: merkle.ChildFile},
	}
	d1 := merkle.NewDir("root", entriesA, 0, hash.Zero, 0, 0, nil, nil)
	d2 := merkle.NewDir("root", entriesB, 0, hash.Zero, 0, 0, nil, nil)
	assert.Equal(t, d1.Hash(), d2.Hash(), "entries are sorted before hashing so input order shouldn't matter")
}

func TestDirEncodeDecodeRoundTrip(t *testing.T) {
	entries := []merkle.DirEntry{
		{Name: "a.txt", Hash: hash.Bytes([]byte("a")), Kind: merkle.ChildFile},
		{Name: "sub", Hash: hash.Bytes([]byte("sub")), Kind: merkle.ChildDir},
	}
	d := merkle.NewDir("root", entries, 123, hash.Zero, 10, 20, map[string]int64{"txt": 1}, map[string]int64{"txt": 123})

	decoded, err := merkle.Decode(d.Encode())
	require.NoError(t, err)
	dd, ok := decoded.(*merkle.Dir)
	require.True(t, ok)
	assert.Equal(t, d.Hash(), dd.Hash())
	assert.Equal(t, d.Entries, dd.Entries)
	assert.Equal(t, d.PerTypeCounts, dd.PerTypeCounts)
	assert.Equal(t, d.PerTypeSizes, dd.PerTypeSizes)
}

func TestVNodeBucketStable(t *testing.T) {
	h := hash.Bytes([]byte("some file content"))
	b1 := merkle.VNodeBucket(h, 32)
	b2 := merkle.VNodeBucket(h, 32)
	assert.Equal(t, b1, b2)
	assert.Less(t, b1, uint32(32))
}

func TestVNodeEncodeDecodeRoundTrip(t *testing.T) {
	entries := []merkle.DirEntry{
		{Name: "x.txt", Hash: hash.Bytes([]byte("x")), Kind: merkle.ChildFile},
	}
	v := merkle.NewVNode(3, entries)
	decoded, err := merkle.Decode(v.Encode())
	require.NoError(t, err)
	dv, ok := decoded.(*merkle.VNode)
	require.True(t, ok)
	assert.Equal(t, v.Hash(), dv.Hash())
	assert.Equal(t, v.Bucket, dv.Bucket)
}

func TestFileEncodeDecodeRoundTrip(t *testing.T) {
	chunks := []hash.Hash{hash.Bytes([]byte("c1")), hash.Bytes([]byte("c2"))}
	contentHash := hash.Bytes([]byte("c1c2"))
	f := merkle.NewFile("data.csv", contentHash, 2048, chunks, "tabular", "text/csv", "csv", hash.Zero, 5, 6)
	assert.True(t, f.IsChunked())

	decoded, err := merkle.Decode(f.Encode())
	require.NoError(t, err)
	df, ok := decoded.(*merkle.File)
	require.True(t, ok)
	assert.Equal(t, f.Hash(), df.Hash())
	assert.Equal(t, f.ContentHash, df.ContentHash)
	assert.Equal(t, f.ChunkHashes, df.ChunkHashes)
	assert.Equal(t, f.NumBytes, df.NumBytes)
}

func TestFileHashIgnoresCommitMetadata(t *testing.T) {
	chunks := []hash.Hash{hash.Bytes([]byte("c1"))}
	f1 := merkle.NewFile("a.txt", chunks[0], 10, chunks, "text", "text/plain", "txt", hash.Zero, 1, 1)
	f2 := merkle.NewFile("a.txt", chunks[0], 10, chunks, "text", "text/plain", "txt", hash.Bytes([]byte("other")), 999, 999)
	assert.Equal(t, f1.Hash(), f2.Hash())
}

func TestSchemaEncodeDecodeRoundTrip(t *testing.T) {
	fields := []merkle.SchemaField{
		{Name: "id", DataType: "int64", Metadata: map[string]string{"source": "csv"}},
		{Name: "name", DataType: "string"},
	}
	s := merkle.NewSchema(fields, "xxh3-row")

	decoded, err := merkle.Decode(s.Encode())
	require.NoError(t, err)
	ds, ok := decoded.(*merkle.Schema)
	require.True(t, ok)
	assert.Equal(t, s.Hash(), ds.Hash())
	assert.Equal(t, []string{"id", "name"}, ds.ColumnNames())
	assert.Equal(t, "csv", ds.Fields[0].Metadata["source"])
}

func TestSchemaHashFieldOrderMatters(t *testing.T) {
	a := merkle.NewSchema([]merkle.SchemaField{{Name: "id", DataType: "int64"}, {Name: "name", DataType: "string"}}, "xxh3-row")
	b := merkle.NewSchema([]merkle.SchemaField{{Name: "name", DataType: "string"}, {Name: "id", DataType: "int64"}}, "xxh3-row")
	assert.NotEqual(t, a.Hash(), b.Hash())
}

func TestDecodeRejectsUnknownKind(t *testing.T) {
	_, err := merkle.Decode([]byte{99, 1, 0, 0})
	assert.Error(t, err)
}

func TestDecodeRejectsTruncatedPayload(t *testing.T) {
	_, err := merkle.Decode([]byte{byte(merkle.KindCommit)})
	assert.Error(t, err)
}
