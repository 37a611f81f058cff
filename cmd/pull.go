package cmd

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/oxen-go/oxen/internal/config"
	"github.com/oxen-go/oxen/internal/repository"
)

// PullHandler fetches a remote's branches and fast-forwards (or,
// if diverged, three-way merges through h.Merge) the local branch,
// rewriting the working tree to match.
func PullHandler(h *repository.Handle, args []string) error {
	remoteName, branch, err := remoteAndBranch(h, args)
	if err != nil {
		return err
	}

	ucfg, err := config.LoadUserConfig()
	if err != nil {
		return err
	}
	remoteCfg, err := ucfg.SyncRemote(remoteName)
	if err != nil {
		return err
	}

	engine := h.SyncEngine(remoteCfg, repoName(h), zap.NewNop())
	result, err := engine.Pull(context.Background(), remoteName, branch)
	if err != nil {
		return fmt.Errorf("pull failed: %w", err)
	}

	if result.FastForward {
		fmt.Printf("Fast-forwarded %s to %s\n", branch, shortHash(result.Commit))
	} else {
		fmt.Printf("Merged %s/%s into %s at %s\n", remoteName, branch, branch, shortHash(result.Commit))
	}
	return nil
}

func init() {
	pullCmd := NewRepoCommand("pull [<remote>] [<branch>]", "Fetch from a remote and update the current branch", PullHandler)
	rootCmd.AddCommand(pullCmd)
}
