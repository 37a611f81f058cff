package refs_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxen-go/oxen/internal/hash"
	"github.com/oxen-go/oxen/internal/oxenerr"
	"github.com/oxen-go/oxen/internal/refs"
)

func openStore(t *testing.T) *refs.Store {
	t.Helper()
	s, err := refs.Open(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestCreateAndGetBranch(t *testing.T) {
	s := openStore(t)
	c := hash.Bytes([]byte("commit-1"))
	require.NoError(t, s.Create("main", c))

	got, err := s.Get("main")
	require.NoError(t, err)
	assert.Equal(t, c, got)
}

func TestCreateExistingBranchFails(t *testing.T) {
	s := openStore(t)
	c := hash.Bytes([]byte("commit-1"))
	require.NoError(t, s.Create("main", c))
	assert.Error(t, s.Create("main", c))
}

func TestGetMissingBranchIsNotFound(t *testing.T) {
	s := openStore(t)
	_, err := s.Get("nope")
	assert.IsType(t, &oxenerr.NotFoundError{}, err)
}

func TestBranchNameWithSlash(t *testing.T) {
	s := openStore(t)
	c := hash.Bytes([]byte("commit-1"))
	require.NoError(t, s.Create("feature/add-x", c))

	got, err := s.Get("feature/add-x")
	require.NoError(t, err)
	assert.Equal(t, c, got)
}

func TestSetCASSucceedsOnMatch(t *testing.T) {
	s := openStore(t)
	c1 := hash.Bytes([]byte("commit-1"))
	c2 := hash.Bytes([]byte("commit-2"))
	require.NoError(t, s.Create("main", c1))

	require.NoError(t, s.SetCAS("main", c1, c2))
	got, err := s.Get("main")
	require.NoError(t, err)
	assert.Equal(t, c2, got)
}

func TestSetCASFailsOnMismatch(t *testing.T) {
	s := openStore(t)
	c1 := hash.Bytes([]byte("commit-1"))
	c2 := hash.Bytes([]byte("commit-2"))
	c3 := hash.Bytes([]byte("commit-3"))
	require.NoError(t, s.Create("main", c1))

	err := s.SetCAS("main", c2, c3)
	require.Error(t, err)
	assert.IsType(t, &oxenerr.BranchAdvancedError{}, err)

	got, err := s.Get("main")
	require.NoError(t, err)
	assert.Equal(t, c1, got, "branch must be unchanged after a failed CAS")
}

func TestSetCASCreatesFromZero(t *testing.T) {
	s := openStore(t)
	c1 := hash.Bytes([]byte("commit-1"))
	require.NoError(t, s.SetCAS("main", hash.Zero, c1))

	got, err := s.Get("main")
	require.NoError(t, err)
	assert.Equal(t, c1, got)
}

func TestDeleteBranch(t *testing.T) {
	s := openStore(t)
	c := hash.Bytes([]byte("commit-1"))
	require.NoError(t, s.Create("main", c))
	require.NoError(t, s.Delete("main"))

	_, err := s.Get("main")
	assert.Error(t, err)
}

func TestListBranchesSorted(t *testing.T) {
	s := openStore(t)
	c := hash.Bytes([]byte("commit-1"))
	require.NoError(t, s.Create("main", c))
	require.NoError(t, s.Create("dev", c))

	names, err := s.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"dev", "main"}, names)
}

func TestHeadBranchRoundTrip(t *testing.T) {
	s := openStore(t)
	c := hash.Bytes([]byte("commit-1"))
	require.NoError(t, s.Create("main", c))
	require.NoError(t, s.SetHeadToBranch("main"))

	head, err := s.ReadHead()
	require.NoError(t, err)
	assert.False(t, head.Detached)
	assert.Equal(t, "main", head.Branch)

	resolved, err := s.ResolveHead()
	require.NoError(t, err)
	assert.Equal(t, c, resolved)
}

func TestHeadDetachedRoundTrip(t *testing.T) {
	s := openStore(t)
	c := hash.Bytes([]byte("commit-1"))
	require.NoError(t, s.SetHeadDetached(c))

	head, err := s.ReadHead()
	require.NoError(t, err)
	assert.True(t, head.Detached)

	resolved, err := s.ResolveHead()
	require.NoError(t, err)
	assert.Equal(t, c, resolved)
}

func TestOpenCreatesHeadsDir(t *testing.T) {
	dir := t.TempDir()
	_, err := refs.Open(dir)
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(dir, "refs", "heads"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
