package cmd

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/oxen-go/oxen/internal/hash"
	"github.com/oxen-go/oxen/internal/repository"
)

var checkoutCreate bool

// CheckoutHandler switches the current branch (or a detached commit)
// and rewrites the working tree to match, the way `git checkout` does
// without the index reconciliation git layers on top.
func CheckoutHandler(h *repository.Handle, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("checkout requires exactly one <branch|commit> argument")
	}
	target := args[0]

	if checkoutCreate {
		if err := createBranch(h, target); err != nil {
			return err
		}
	}

	rootHash := hash.Zero
	commit, branchErr := h.Refs.Get(target)
	onBranch := branchErr == nil
	if !onBranch {
		var err error
		commit, err = hash.Parse(target)
		if err != nil {
			return fmt.Errorf("checkout: %q is not a known branch or commit", target)
		}
	}
	if !commit.IsZero() {
		c, err := h.Graph.Get(commit)
		if err != nil {
			return err
		}
		rootHash = c.RootDirHash
	}

	if onBranch {
		if err := h.Refs.SetHeadToBranch(target); err != nil {
			return err
		}
	} else {
		if err := h.Refs.SetHeadDetached(commit); err != nil {
			return err
		}
	}

	engine := h.LocalEngine(zap.NewNop())
	if err := engine.Checkout(rootHash); err != nil {
		return err
	}

	fmt.Printf("Switched to %s\n", target)
	return nil
}

func init() {
	checkoutCmd := NewCommand("checkout <branch|commit>", "Switch branches and rewrite the working tree", CheckoutHandler, 1)
	checkoutCmd.Flags().BoolVarP(&checkoutCreate, "create-branch", "b", false, "Create the branch before switching to it")
	rootCmd.AddCommand(checkoutCmd)
}
