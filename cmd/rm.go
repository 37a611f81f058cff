package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/oxen-go/oxen/internal/repository"
)

var rmCached bool

// RmHandler removes paths from the working tree (unless --cached)
// and stages the removal for the next commit.
func RmHandler(h *repository.Handle, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("rm requires at least one <file>")
	}

	s, _, _, _, err := openStager(h)
	if err != nil {
		return err
	}

	for _, p := range args {
		relPath := filepath.ToSlash(p)
		if err := s.RemovePath(relPath); err != nil {
			return err
		}
		if !rmCached {
			full := filepath.Join(h.Repo.Root, p)
			if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("rm '%s': %w", p, err)
			}
		}
		fmt.Printf("rm '%s'\n", p)
	}
	return nil
}

func init() {
	rmCmd := NewCommand("rm <file>...", "Remove files from the working tree and stage the removal", RmHandler, 1)
	rmCmd.Flags().BoolVar(&rmCached, "cached", false, "Only remove from the staging area, not the working tree")
	rootCmd.AddCommand(rmCmd)
}
