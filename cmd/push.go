package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/oxen-go/oxen/internal/config"
	"github.com/oxen-go/oxen/internal/repository"
)

// repoName is the path segment a remote identifies this repository
// by: the working directory's base name, the same convention a bare
// git remote's directory name follows.
func repoName(h *repository.Handle) string {
	return filepath.Base(h.Repo.Root)
}

// PushHandler uploads the named (or current) branch's unseen commits,
// nodes, and chunks to a remote, then advances the remote branch with
// a compare-and-set. A concurrent push that beat this one to the
// remote surfaces as a *oxenerr.NotFastForwardError; push never
// retries on its own, matching the fast-forward-only contract
// sync.Engine.Push documents.
func PushHandler(h *repository.Handle, args []string) error {
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
	result, err := engine.Push(context.Background(), remoteName, branch)
	if err != nil {
		return fmt.Errorf("push failed: %w", err)
	}

	fmt.Printf("To %s\n", remoteCfg.URL)
	fmt.Printf(" * %s -> %s (%d commits, %d nodes, %d chunks)\n", branch, branch, result.CommitsSent, result.NodesSent, result.ChunksSent)
	return nil
}

// remoteAndBranch resolves push/pull/fetch's shared "[<remote>]
// [<branch>]" argument shape: default remote from UserConfig, default
// branch from HEAD.
func remoteAndBranch(h *repository.Handle, args []string) (remoteName, branch string, err error) {
	branch, _, _, err = headState(h)
	if err != nil {
		return "", "", err
	}
	if branch == "" && len(args) < 2 {
		return "", "", fmt.Errorf("HEAD is detached; specify a branch explicitly")
	}

	ucfg, err := config.LoadUserConfig()
	if err != nil {
		return "", "", err
	}
	remoteName, err = ucfg.DefaultRemoteName()
	if err != nil {
		return "", "", err
	}

	if len(args) >= 1 {
		remoteName = args[0]
	}
	if len(args) >= 2 {
		branch = args[1]
	}
	return remoteName, branch, nil
}

func init() {
	pushCmd := NewRepoCommand("push [<remote>] [<branch>]", "Update a remote's refs and upload the objects they need", PushHandler)
	rootCmd.AddCommand(pushCmd)
}
