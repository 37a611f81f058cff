package store_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/oxen-go/oxen/internal/hash"
	"github.com/oxen-go/oxen/internal/store"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *store.VersionStore {
	t.Helper()
	backend, err := store.NewLocalBackend(t.TempDir())
	require.NoError(t, err)
	return store.New(backend)
}

func TestPutGetRoundTrip(t *testing.T) {
	vs := newStore(t)
	h, err := vs.Put([]byte("Hello World"))
	require.NoError(t, err)
	require.Equal(t, hash.Bytes([]byte("Hello World")), h)

	got, err := vs.Get(h)
	require.NoError(t, err)
	require.Equal(t, "Hello World", string(got))
}

func TestPutIdempotent(t *testing.T) {
	vs := newStore(t)
	h1, err := vs.Put([]byte("same content"))
	require.NoError(t, err)
	h2, err := vs.Put([]byte("same content"))
	require.NoError(t, err)
	require.Equal(t, h1, h2)
}

func TestGetMissingIsNotFound(t *testing.T) {
	vs := newStore(t)
	_, err := vs.Get(hash.Bytes([]byte("never written")))
	require.Error(t, err)
}

func TestEmptyObject(t *testing.T) {
	vs := newStore(t)
	h, err := vs.Put(nil)
	require.NoError(t, err)
	got, err := vs.Get(h)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestResumableChunkedUpload(t *testing.T) {
	vs := newStore(t)
	full := bytes.Repeat([]byte("x"), 1000)
	target := hash.Bytes(full)

	require.NoError(t, vs.PutChunk(target, 0, full[:400]))
	require.NoError(t, vs.PutChunk(target, 1, full[400:700]))
	require.NoError(t, vs.PutChunk(target, 2, full[700:]))

	chunks, err := vs.ListChunks(target)
	require.NoError(t, err)
	require.Equal(t, []int{0, 1, 2}, chunks)

	path, err := vs.Finalize(target, true)
	require.NoError(t, err)
	require.NotEmpty(t, path)

	got, err := vs.Get(target)
	require.NoError(t, err)
	require.Equal(t, full, got)

	remaining, err := vs.ListChunks(target)
	require.NoError(t, err)
	require.Empty(t, remaining, "cleanup=true must remove staged parts")
}

func TestFinalizeHashMismatch(t *testing.T) {
	vs := newStore(t)
	wrongTarget := hash.Bytes([]byte("not what we will upload"))
	require.NoError(t, vs.PutChunk(wrongTarget, 0, []byte("actual bytes")))

	_, err := vs.Finalize(wrongTarget, false)
	require.Error(t, err)
}

func TestOpenStreams(t *testing.T) {
	vs := newStore(t)
	h, err := vs.Put([]byte("streamed"))
	require.NoError(t, err)
	r, err := vs.Open(h)
	require.NoError(t, err)
	defer r.Close()
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, "streamed", string(got))
}
