// Package config reads and writes the two configuration surfaces a
// repository needs: a per-repository config.toml under the metadata
// directory, and a per-user config.toml under the user's home
// directory. Both are parsed with pelletier/go-toml/v2 into ordinary
// structs, replacing the teacher's hand-rolled "[section]\nkey = value"
// parser with a real format now that the config carries structured
// data (the tree fan-out settings) the old ad hoc parser was never
// built to represent.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/oxen-go/oxen/internal/merkle"
)

const repoConfigFileName = "config.toml"

// TreeConfig mirrors commitwriter.Config's fan-out knobs, read from
// disk so a repository's VNode bucketing is a one-time decision
// recorded at init rather than a compile-time constant every client
// must agree on.
type TreeConfig struct {
	VNodeFanoutThreshold int    `toml:"vnode_fanout_threshold"`
	VNodeBucketCount     uint32 `toml:"vnode_buckets"`
}

// RepoConfig is the repository-level configuration stored at
// <metaDir>/config.toml.
type RepoConfig struct {
	DefaultBranch string     `toml:"default_branch"`
	MinVersion    int        `toml:"min_version"`
	Tree          TreeConfig `toml:"tree"`
}

// DefaultRepoConfig is what a freshly initialized repository gets:
// "main" as the default branch and the same VNode fan-out defaults
// commitwriter.DefaultConfig uses, so a repo that never touches
// config.toml behaves identically to one that does.
func DefaultRepoConfig() *RepoConfig {
	return &RepoConfig{
		DefaultBranch: "main",
		MinVersion:    1,
		Tree: TreeConfig{
			VNodeFanoutThreshold: merkle.DefaultVNodeFanoutThreshold,
			VNodeBucketCount:     merkle.DefaultVNodeBucketCount,
		},
	}
}

// LoadRepoConfig reads <metaDir>/config.toml, returning
// DefaultRepoConfig if it doesn't exist yet (a repository initialized
// before config.toml gained a field, or one that never needed to
// override a default).
func LoadRepoConfig(metaDir string) (*RepoConfig, error) {
	data, err := os.ReadFile(filepath.Join(metaDir, repoConfigFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultRepoConfig(), nil
		}
		return nil, fmt.Errorf("config: read %s: %w", repoConfigFileName, err)
	}
	cfg := DefaultRepoConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", repoConfigFileName, err)
	}
	return cfg, nil
}

// Save writes cfg to <metaDir>/config.toml.
func (c *RepoConfig) Save(metaDir string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: encode %s: %w", repoConfigFileName, err)
	}
	if err := os.MkdirAll(metaDir, 0755); err != nil {
		return fmt.Errorf("config: create %s: %w", metaDir, err)
	}
	path := filepath.Join(metaDir, repoConfigFileName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("config: write %s: %w", repoConfigFileName, err)
	}
	return os.Rename(tmp, path)
}
