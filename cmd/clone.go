package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/oxen-go/oxen/internal/config"
	"github.com/oxen-go/oxen/internal/repository"
	"github.com/oxen-go/oxen/internal/sync"
)

var (
	cloneBranch string
	cloneFull   bool
)

func init() {
	cloneCmd := &cobra.Command{
		Use:   "clone <url> [<directory>]",
		Short: "Clone a repository into a new directory",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			url := args[0]
			dir := args[1:]
			dest := cloneDestination(url, dir)

			absDest, err := filepath.Abs(dest)
			if err != nil {
				return err
			}
			h, err := repository.CreateRepo(absDest)
			if err != nil {
				return err
			}
			defer h.Close()

			ucfg, err := config.LoadUserConfig()
			if err != nil {
				return err
			}
			ucfg.SetRemote("origin", url)
			if err := ucfg.Save(); err != nil {
				return err
			}
			remoteCfg, err := ucfg.SyncRemote("origin")
			if err != nil {
				return err
			}

			engine := h.SyncEngine(remoteCfg, repoName(h), zap.NewNop())
			result, err := engine.Clone(context.Background(), sync.CloneOptions{Branch: cloneBranch, FullHistory: cloneFull})
			if err != nil {
				return fmt.Errorf("clone failed: %w", err)
			}

			fmt.Printf("Cloned into '%s', checked out branch '%s' at %s\n", dest, result.Branch, shortHash(result.Commit.Hash()))
			return nil
		},
	}
	cloneCmd.Flags().StringVar(&cloneBranch, "branch", "", "Branch to check out (default: main)")
	cloneCmd.Flags().BoolVar(&cloneFull, "full-history", false, "Download every ancestor commit, not just the checked-out tip")
	rootCmd.AddCommand(cloneCmd)
}

func cloneDestination(url string, dirArgs []string) string {
	if len(dirArgs) > 0 {
		return dirArgs[0]
	}
	name := strings.TrimSuffix(filepath.Base(url), ".git")
	if name == "" || name == "." || name == "/" {
		name = "repo"
	}
	return name
}
