package cmd

import (
	"fmt"
	"strings"

	"github.com/oxen-go/oxen/internal/repository"
)

var (
	branchDelete bool
	branchForce  bool
	branchRename string
)

// BranchHandler lists, creates, deletes, or renames branches,
// mirroring the teacher's single-command, flag-dispatched branch
// verb.
func BranchHandler(h *repository.Handle, args []string) error {
	switch {
	case branchRename != "":
		parts := strings.SplitN(branchRename, " ", 2)
		if len(parts) != 2 {
			return fmt.Errorf("--rename requires 'oldname newname'")
		}
		return renameBranch(h, parts[0], parts[1])
	case branchDelete:
		if len(args) != 1 {
			return fmt.Errorf("branch --delete requires exactly one branch name")
		}
		return deleteBranch(h, args[0], branchForce)
	case len(args) == 1:
		return createBranch(h, args[0])
	default:
		return listBranches(h)
	}
}

func listBranches(h *repository.Handle) error {
	names, err := h.Refs.List()
	if err != nil {
		return err
	}
	current, _, _, err := headState(h)
	if err != nil {
		return err
	}
	for _, name := range names {
		if name == current {
			fmt.Printf("* %s\n", name)
		} else {
			fmt.Printf("  %s\n", name)
		}
	}
	return nil
}

func createBranch(h *repository.Handle, name string) error {
	if strings.ContainsAny(name, " /\\~^:?*[]") {
		return fmt.Errorf("invalid branch name: %s", name)
	}
	_, commit, _, err := headState(h)
	if err != nil {
		return err
	}
	if commit.IsZero() {
		return fmt.Errorf("cannot create branch '%s': no commits yet", name)
	}
	return h.Refs.Create(name, commit)
}

func deleteBranch(h *repository.Handle, name string, force bool) error {
	current, tip, _, err := headState(h)
	if err != nil {
		return err
	}
	if name == current {
		return fmt.Errorf("cannot delete the currently checked-out branch '%s'", name)
	}
	if !force {
		target, err := h.Refs.Get(name)
		if err != nil {
			return err
		}
		merged, err := h.Graph.IsAncestor(target, tip)
		if err != nil {
			return err
		}
		if !merged {
			return fmt.Errorf("branch '%s' is not fully merged; use --force to delete anyway", name)
		}
	}
	return h.Refs.Delete(name)
}

func renameBranch(h *repository.Handle, oldName, newName string) error {
	if strings.ContainsAny(newName, " /\\~^:?*[]") {
		return fmt.Errorf("invalid branch name: %s", newName)
	}
	commit, err := h.Refs.Get(oldName)
	if err != nil {
		return err
	}
	if err := h.Refs.Create(newName, commit); err != nil {
		return err
	}
	return h.Refs.Delete(oldName)
}

func init() {
	branchCmd := NewRepoCommand("branch [<name>]", "List, create, delete, or rename branches", BranchHandler)
	branchCmd.Flags().BoolVarP(&branchDelete, "delete", "d", false, "Delete a branch")
	branchCmd.Flags().BoolVarP(&branchForce, "force", "f", false, "Force delete a branch even if not merged")
	branchCmd.Flags().StringVarP(&branchRename, "rename", "m", "", "Rename a branch: '--rename \"old new\"'")
	rootCmd.AddCommand(branchCmd)
}
