package maintenance_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxen-go/oxen/internal/hash"
	"github.com/oxen-go/oxen/internal/maintenance"
	"github.com/oxen-go/oxen/internal/packfile"
)

func TestArchiveChunksBundlesGivenHashes(t *testing.T) {
	f := newFixture(t)
	a, err := f.vs.Put([]byte("chunk-a"))
	require.NoError(t, err)
	b, err := f.vs.Put([]byte("chunk-b"))
	require.NoError(t, err)

	archiveDir := t.TempDir()
	stats, err := maintenance.ArchiveChunks(f.vs, []hash.Hash{a, b}, archiveDir, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.ChunksArchived)

	r, err := packfile.Open(stats.ArchivePath)
	require.NoError(t, err)
	defer r.Close()
	assert.True(t, r.Has(a))
	assert.True(t, r.Has(b))
}

func TestArchiveChunksWithNoHashesIsANoop(t *testing.T) {
	f := newFixture(t)
	stats, err := maintenance.ArchiveChunks(f.vs, nil, t.TempDir(), "run-empty")
	require.NoError(t, err)
	assert.Equal(t, 0, stats.ChunksArchived)
	assert.Empty(t, stats.ArchivePath)
}
