package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/oxen-go/oxen/internal/repository"
	"github.com/oxen-go/oxen/internal/stage"
)

// AddHandler stages the given paths (files, directories, or glob
// patterns) for the next commit.
func AddHandler(h *repository.Handle, args []string) error {
	s, _, _, _, err := openStager(h)
	if err != nil {
		return err
	}

	for _, arg := range args {
		wd, err := os.Getwd()
		if err != nil {
			return err
		}
		absArg := filepath.Join(wd, arg)
		relPath, err := filepath.Rel(h.Repo.Root, absArg)
		if err != nil {
			return fmt.Errorf("resolve path '%s': %w", arg, err)
		}

		if _, statErr := os.Stat(absArg); os.IsNotExist(statErr) {
			matches, err := filepath.Glob(absArg)
			if err != nil {
				return fmt.Errorf("invalid pathspec '%s': %w", arg, err)
			}
			if len(matches) == 0 {
				fmt.Fprintf(os.Stderr, "warning: pathspec '%s' did not match any files\n", arg)
				continue
			}
			for _, m := range matches {
				if err := addMatch(h, s, m); err != nil {
					return err
				}
			}
			continue
		} else if statErr != nil {
			return fmt.Errorf("stat '%s': %w", arg, statErr)
		}

		if s.IsIgnored(filepath.ToSlash(relPath)) {
			continue
		}
		if err := s.AddPath(filepath.ToSlash(relPath)); err != nil {
			return fmt.Errorf("add '%s': %w", relPath, err)
		}
	}
	return nil
}

func addMatch(h *repository.Handle, s *stage.Stager, absPath string) error {
	relPath, err := filepath.Rel(h.Repo.Root, absPath)
	if err != nil {
		return err
	}
	if s.IsIgnored(filepath.ToSlash(relPath)) {
		return nil
	}
	return s.AddPath(filepath.ToSlash(relPath))
}

func init() {
	addCmd := NewCommand(
		"add <file>...",
		"Add file contents to the staging area",
		AddHandler,
		1,
	)
	rootCmd.AddCommand(addCmd)
}
