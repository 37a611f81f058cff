package packfile_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxen-go/oxen/internal/hash"
	"github.com/oxen-go/oxen/internal/packfile"
)

func TestWriteThenOpenRoundTripsEveryChunk(t *testing.T) {
	blobs := map[hash.Hash][]byte{
		hash.Bytes([]byte("one")):   []byte("one"),
		hash.Bytes([]byte("two")):   []byte("two"),
		hash.Bytes([]byte("three")): []byte("three-bytes-here"),
	}
	hashes := make([]hash.Hash, 0, len(blobs))
	for h := range blobs {
		hashes = append(hashes, h)
	}

	path := filepath.Join(t.TempDir(), "archive-1.oxpk")
	entries, err := packfile.Write(path, hashes, func(h hash.Hash) ([]byte, error) {
		return blobs[h], nil
	})
	require.NoError(t, err)
	assert.Len(t, entries, len(blobs))

	r, err := packfile.Open(path)
	require.NoError(t, err)
	defer r.Close()

	for h, data := range blobs {
		assert.True(t, r.Has(h))
		got, err := r.Get(h)
		require.NoError(t, err)
		assert.Equal(t, data, got)
	}
	assert.Len(t, r.Hashes(), len(blobs))
}

func TestGetUnknownHashReturnsNotFound(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive-2.oxpk")
	_, err := packfile.Write(path, nil, nil)
	require.NoError(t, err)

	r, err := packfile.Open(path)
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Get(hash.Bytes([]byte("missing")))
	assert.Error(t, err)
}

func TestOpenRejectsFileWithoutMagicHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not-an-archive")
	require.NoError(t, os.WriteFile(path, make([]byte, 64), 0o644))

	_, err := packfile.Open(path)
	assert.Error(t, err)
}
