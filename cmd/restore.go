package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/oxen-go/oxen/internal/dataframe"
	"github.com/oxen-go/oxen/internal/hash"
	"github.com/oxen-go/oxen/internal/merkle"
	"github.com/oxen-go/oxen/internal/repository"
)

var (
	restoreSource string
	restoreStaged bool
)

// RestoreHandler restores paths either in the staging area (unstage,
// --staged) or in the working tree (overwrite from --source, default
// HEAD).
func RestoreHandler(h *repository.Handle, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("restore requires at least one <file>")
	}

	s, _, _, headRoot, err := openStager(h)
	if err != nil {
		return err
	}

	if restoreStaged {
		for _, p := range args {
			if err := s.Unstage(filepath.ToSlash(p)); err != nil {
				return err
			}
		}
		return nil
	}

	rootHash := headRoot
	if restoreSource != "" {
		commit, err := resolveRev(h.Refs, restoreSource)
		if err != nil {
			return err
		}
		c, err := h.Graph.Get(commit)
		if err != nil {
			return err
		}
		rootHash = c.RootDirHash
	}

	for _, p := range args {
		if err := restoreWorkingFile(h, rootHash, filepath.ToSlash(p)); err != nil {
			return err
		}
	}
	return nil
}

func restoreWorkingFile(h *repository.Handle, rootHash hash.Hash, relPath string) error {
	entry, err := h.Tree.NodeByPath(rootHash, relPath)
	if err != nil {
		return fmt.Errorf("restore '%s': %w", relPath, err)
	}
	if entry.Kind != merkle.ChildFile {
		return fmt.Errorf("restore '%s': not a file", relPath)
	}
	n, err := h.Tree.NodeByHash(merkle.KindFile, entry.Hash)
	if err != nil {
		return err
	}
	file, ok := n.(*merkle.File)
	if !ok {
		return fmt.Errorf("restore '%s': node is not a File", relPath)
	}
	data, err := dataframe.ReadFileBytes(h.VersionStore, file)
	if err != nil {
		return err
	}
	full := filepath.Join(h.Repo.Root, relPath)
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return err
	}
	return os.WriteFile(full, data, 0644)
}

func init() {
	restoreCmd := NewCommand("restore <file>...", "Restore working tree files or unstage staged content", RestoreHandler, 1)
	restoreCmd.Flags().StringVarP(&restoreSource, "source", "s", "", "Commit or branch to restore from (default: HEAD)")
	restoreCmd.Flags().BoolVar(&restoreStaged, "staged", false, "Unstage the given paths instead of touching the working tree")
	rootCmd.AddCommand(restoreCmd)
}
