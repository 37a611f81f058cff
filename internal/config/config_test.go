package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxen-go/oxen/internal/config"
	"github.com/oxen-go/oxen/internal/merkle"
)

func TestLoadRepoConfigReturnsDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := config.LoadRepoConfig(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "main", cfg.DefaultBranch)
	assert.Equal(t, merkle.DefaultVNodeFanoutThreshold, cfg.Tree.VNodeFanoutThreshold)
	assert.Equal(t, uint32(merkle.DefaultVNodeBucketCount), cfg.Tree.VNodeBucketCount)
}

func TestRepoConfigRoundTripsThroughSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultRepoConfig()
	cfg.DefaultBranch = "trunk"
	cfg.Tree.VNodeBucketCount = 64
	require.NoError(t, cfg.Save(dir))

	assert.FileExists(t, filepath.Join(dir, "config.toml"))

	loaded, err := config.LoadRepoConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "trunk", loaded.DefaultBranch)
	assert.Equal(t, uint32(64), loaded.Tree.VNodeBucketCount)
}

func withTempHome(t *testing.T) {
	t.Helper()
	home := t.TempDir()
	old := os.Getenv("HOME")
	os.Setenv("HOME", home)
	t.Cleanup(func() { os.Setenv("HOME", old) })
}

func TestUserConfigRoundTripsRemotesAndTokens(t *testing.T) {
	withTempHome(t)

	cfg, err := config.LoadUserConfig()
	require.NoError(t, err)
	assert.Empty(t, cfg.Remotes)

	cfg.Name = "ana"
	cfg.Email = "ana@example.com"
	cfg.SetRemote("origin", "https://oxen.example.com/ana/data")
	require.NoError(t, cfg.SetRemoteToken("origin", "tok-123"))
	require.NoError(t, cfg.Save())

	reloaded, err := config.LoadUserConfig()
	require.NoError(t, err)
	assert.Equal(t, "ana", reloaded.Name)
	require.Contains(t, reloaded.Remotes, "origin")
	assert.Equal(t, "tok-123", reloaded.Remotes["origin"].Token)

	remote, err := reloaded.SyncRemote("origin")
	require.NoError(t, err)
	assert.Equal(t, "https://oxen.example.com/ana/data", remote.URL)
	assert.Equal(t, "tok-123", remote.Token)
}

func TestDefaultRemoteNamePrefersOrigin(t *testing.T) {
	cfg := &config.UserConfig{Remotes: map[string]config.RemoteConfig{
		"backup": {URL: "https://b.example.com"},
		"origin": {URL: "https://o.example.com"},
	}}
	name, err := cfg.DefaultRemoteName()
	require.NoError(t, err)
	assert.Equal(t, "origin", name)
}

func TestDefaultRemoteNameFallsBackAlphabeticallyWithoutOrigin(t *testing.T) {
	cfg := &config.UserConfig{Remotes: map[string]config.RemoteConfig{
		"zeta":  {URL: "https://z.example.com"},
		"alpha": {URL: "https://a.example.com"},
	}}
	name, err := cfg.DefaultRemoteName()
	require.NoError(t, err)
	assert.Equal(t, "alpha", name)
}

func TestSetRemoteTokenFailsForUnknownRemote(t *testing.T) {
	cfg := &config.UserConfig{Remotes: map[string]config.RemoteConfig{}}
	assert.Error(t, cfg.SetRemoteToken("origin", "tok"))
}
