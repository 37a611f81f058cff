package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oxen-go/oxen/core"
	"github.com/oxen-go/oxen/internal/repository"
)

// HandlerFunc is the signature every repository-backed command
// implements: a fully wired Handle (version store, node database,
// tree, graph, refs, writer, merge engine) plus the command's
// positional arguments.
type HandlerFunc func(h *repository.Handle, args []string) error

// NewCommand builds a cobra.Command that finds the enclosing
// repository, opens it into a Handle, and hands it to handler. Commands
// that operate on an existing local repository go through this, so the
// repository-opening
// boilerplate lives here once instead of in every handler.
func NewCommand(use, short string, handler HandlerFunc, requiredArgs int) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) < requiredArgs {
				return fmt.Errorf("requires at least %d argument(s)", requiredArgs)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := core.FindRepository()
			if err != nil {
				return err
			}
			h, err := repository.Open(repo)
			if err != nil {
				return err
			}
			defer h.Close()
			return handler(h, args)
		},
	}
}

// NewRepoCommand is NewCommand with no minimum argument count, the
// common case for commands whose argument validation is more nuanced
// than a bare count (status, commit, push).
func NewRepoCommand(use, short string, handler HandlerFunc) *cobra.Command {
	return NewCommand(use, short, handler, 0)
}

// NewInitCommand builds a command that must not go through
// core.FindRepository, since it's the one command responsible for
// creating the repository FindRepository would otherwise fail to
// find.
func NewInitCommand(use, short string, run func(args []string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args)
		},
	}
}
