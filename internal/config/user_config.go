package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/pelletier/go-toml/v2"

	"github.com/oxen-go/oxen/internal/sync"
)

const userConfigFileName = "user_config.toml"

// RemoteConfig is one entry of UserConfig.Remotes: where a remote
// lives and the bearer token cached for it, the way the teacher's
// Config.Remotes paired a URL with an auth string per remote name.
type RemoteConfig struct {
	URL   string `toml:"url"`
	Token string `toml:"token"`
}

// UserConfig is the per-user configuration, loaded by each command that
// needs it and passed down explicitly (never as package-level global state):
// commit author identity plus every remote the user has added, each
// with its own cached bearer token from a prior login.
type UserConfig struct {
	Name    string                  `toml:"name"`
	Email   string                  `toml:"email"`
	Remotes map[string]RemoteConfig `toml:"remotes"`
}

// UserConfigDir resolves ~/.oxen, creating it if absent.
func UserConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: resolve home directory: %w", err)
	}
	dir := filepath.Join(home, ".oxen")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("config: create %s: %w", dir, err)
	}
	return dir, nil
}

// LoadUserConfig reads ~/.oxen/user_config.toml, returning an empty
// UserConfig if it doesn't exist yet (first run, before `oxen config`
// or `oxen login` has written anything).
func LoadUserConfig() (*UserConfig, error) {
	dir, err := UserConfigDir()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, userConfigFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return &UserConfig{Remotes: make(map[string]RemoteConfig)}, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", userConfigFileName, err)
	}
	cfg := &UserConfig{Remotes: make(map[string]RemoteConfig)}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", userConfigFileName, err)
	}
	if cfg.Remotes == nil {
		cfg.Remotes = make(map[string]RemoteConfig)
	}
	return cfg, nil
}

// Save writes c to ~/.oxen/user_config.toml.
func (c *UserConfig) Save() error {
	dir, err := UserConfigDir()
	if err != nil {
		return err
	}
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: encode %s: %w", userConfigFileName, err)
	}
	path := filepath.Join(dir, userConfigFileName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("config: write %s: %w", userConfigFileName, err)
	}
	return os.Rename(tmp, path)
}

// SetRemote adds or updates a remote's URL, leaving any cached token
// in place unless url actually changes it.
func (c *UserConfig) SetRemote(name, url string) {
	r := c.Remotes[name]
	if r.URL != url {
		r.Token = ""
	}
	r.URL = url
	c.Remotes[name] = r
}

// SetRemoteToken caches the bearer token `oxen login` obtained for a
// remote.
func (c *UserConfig) SetRemoteToken(name, token string) error {
	r, ok := c.Remotes[name]
	if !ok {
		return fmt.Errorf("config: remote %q is not configured", name)
	}
	r.Token = token
	c.Remotes[name] = r
	return nil
}

// RemoveRemote deletes a remote entry.
func (c *UserConfig) RemoveRemote(name string) error {
	if _, ok := c.Remotes[name]; !ok {
		return fmt.Errorf("config: remote %q does not exist", name)
	}
	delete(c.Remotes, name)
	return nil
}

// DefaultRemoteName returns "origin" if configured, otherwise the
// alphabetically first remote name, matching the teacher's
// "origin, else whatever's there" fallback but made deterministic.
func (c *UserConfig) DefaultRemoteName() (string, error) {
	if _, ok := c.Remotes["origin"]; ok {
		return "origin", nil
	}
	if len(c.Remotes) == 0 {
		return "", fmt.Errorf("config: no remotes configured")
	}
	names := make([]string, 0, len(c.Remotes))
	for name := range c.Remotes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names[0], nil
}

// SyncRemote resolves a configured remote into the sync.Remote value
// sync.NewClient needs, keeping internal/sync ignorant of config file
// formats.
func (c *UserConfig) SyncRemote(name string) (sync.Remote, error) {
	r, ok := c.Remotes[name]
	if !ok {
		return sync.Remote{}, fmt.Errorf("config: remote %q is not configured", name)
	}
	return sync.Remote{Name: name, URL: r.URL, Token: r.Token}, nil
}
