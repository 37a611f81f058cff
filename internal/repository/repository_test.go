package repository_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxen-go/oxen/core"
	"github.com/oxen-go/oxen/internal/refs"
	"github.com/oxen-go/oxen/internal/repository"
)

func TestCreateRepoInitializesMetadataDirectory(t *testing.T) {
	dir := t.TempDir()

	h, err := repository.CreateRepo(dir)
	require.NoError(t, err)
	defer h.Close()

	metaDir := filepath.Join(dir, core.OxenDirName)
	assert.True(t, core.FileExists(filepath.Join(metaDir, "config.toml")))
	assert.True(t, core.FileExists(filepath.Join(metaDir, "objects")))
	assert.True(t, core.FileExists(filepath.Join(metaDir, "refs", "heads")))

	head, err := h.Refs.ReadHead()
	require.NoError(t, err)
	assert.Equal(t, refs.Head{Branch: "main"}, head)
}

func TestCreateRepoFailsIfAlreadyInitialized(t *testing.T) {
	dir := t.TempDir()

	h, err := repository.CreateRepo(dir)
	require.NoError(t, err)
	h.Close()

	_, err = repository.CreateRepo(dir)
	assert.Error(t, err)
}

func TestCreateBareRepoInitializesDirectoryDirectly(t *testing.T) {
	dir := t.TempDir()

	h, err := repository.CreateBareRepo(dir)
	require.NoError(t, err)
	defer h.Close()

	assert.True(t, core.FileExists(filepath.Join(dir, "config.toml")))
	assert.True(t, core.FileExists(filepath.Join(dir, "objects")))
}

func TestCreateBareRepoFailsOnNonEmptyDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, core.EnsureDirExists(filepath.Join(dir, "existing")))

	_, err := repository.CreateBareRepo(dir)
	assert.Error(t, err)
}

func TestOpenWiresAnExistingRepository(t *testing.T) {
	dir := t.TempDir()

	h, err := repository.CreateRepo(dir)
	require.NoError(t, err)
	h.Close()

	repo := core.NewRepository(dir)
	reopened, err := repository.Open(repo)
	require.NoError(t, err)
	defer reopened.Close()

	assert.Equal(t, "main", reopened.Config.DefaultBranch)
}

func TestOpenFailsForUninitializedDirectory(t *testing.T) {
	dir := t.TempDir()
	repo := core.NewRepository(dir)

	_, err := repository.Open(repo)
	assert.Error(t, err)
}
