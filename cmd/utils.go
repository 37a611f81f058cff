package cmd

import (
	"fmt"

	"github.com/oxen-go/oxen/internal/config"
	"github.com/oxen-go/oxen/internal/hash"
	"github.com/oxen-go/oxen/internal/refs"
)

// requireIdentity reads the committer identity from ~/.oxen/user_config.toml,
// the way the teacher's commands read user.name/user.email from config before
// letting a commit proceed.
func requireIdentity() (name, email string, err error) {
	cfg, err := config.LoadUserConfig()
	if err != nil {
		return "", "", err
	}
	if cfg.Name == "" || cfg.Email == "" {
		return "", "", fmt.Errorf("author identity not configured; set it with 'oxen config user.name <name>' and 'oxen config user.email <email>'")
	}
	return cfg.Name, cfg.Email, nil
}

// resolveRev resolves a branch name or a literal hash string to a
// commit hash, the same two-step fallback the sync wire protocol's
// file-at-revision endpoint uses server-side.
func resolveRev(refStore *refs.Store, rev string) (hash.Hash, error) {
	if h, err := hash.Parse(rev); err == nil {
		return h, nil
	}
	return refStore.Get(rev)
}

// shortHash truncates a hash to the 10 hex characters the teacher's
// commands print for commit summaries.
func shortHash(h hash.Hash) string {
	s := h.String()
	if len(s) > 10 {
		return s[:10]
	}
	return s
}
