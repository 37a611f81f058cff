package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/oxen-go/oxen/internal/config"
	"github.com/oxen-go/oxen/internal/hash"
	"github.com/oxen-go/oxen/internal/repository"
	"github.com/oxen-go/oxen/internal/sync"
)

var workspaceRemote string

// workspaceCmd drives the staging areas an `oxen server` keeps
// in-memory per repository (internal/workspace.Manager), the way a
// notebook or the web UI edits one file or row at a time without a
// full clone. A workspace only exists inside the server process that
// created it, so every subcommand here is a REST call, not a local
// filesystem operation the way add/commit are.
var workspaceCmd = &cobra.Command{
	Use:   "workspace",
	Short: "Create and drive server-side staging areas for direct file and row edits",
}

func workspaceClient(h *repository.Handle) (*sync.Client, string, error) {
	ucfg, err := config.LoadUserConfig()
	if err != nil {
		return nil, "", err
	}
	name := workspaceRemote
	if name == "" {
		name, err = ucfg.DefaultRemoteName()
		if err != nil {
			return nil, "", err
		}
	}
	remoteCfg, err := ucfg.SyncRemote(name)
	if err != nil {
		return nil, "", err
	}
	return sync.NewClient(remoteCfg, zap.NewNop()), repoName(h), nil
}

var (
	workspaceCreateID       string
	workspaceCreateBranch   string
	workspaceCreateEditable bool
)

// WorkspaceCreateHandler opens a workspace rooted at HEAD's commit (or
// an explicitly named branch's tip) on the remote.
func WorkspaceCreateHandler(h *repository.Handle, args []string) error {
	client, repo, err := workspaceClient(h)
	if err != nil {
		return err
	}

	branch := workspaceCreateBranch
	base := ""
	if branch == "" {
		var commit hash.Hash
		branch, commit, _, err = headState(h)
		if err != nil {
			return err
		}
		if !commit.IsZero() {
			base = commit.String()
		}
	} else {
		commit, err := h.Refs.Get(branch)
		if err != nil {
			return fmt.Errorf("workspace create: %w", err)
		}
		base = commit.String()
	}

	info, err := client.CreateWorkspace(context.Background(), repo, workspaceCreateID, base, branch, workspaceCreateEditable)
	if err != nil {
		return fmt.Errorf("create workspace: %w", err)
	}
	fmt.Printf("Created workspace '%s' on branch '%s' at %s\n", info.ID, info.Branch, info.BaseCommit)
	return nil
}

// WorkspaceDeleteHandler discards a workspace without committing it.
func WorkspaceDeleteHandler(h *repository.Handle, args []string) error {
	client, repo, err := workspaceClient(h)
	if err != nil {
		return err
	}
	if err := client.DeleteWorkspace(context.Background(), repo, args[0]); err != nil {
		return fmt.Errorf("delete workspace: %w", err)
	}
	fmt.Printf("Deleted workspace '%s'\n", args[0])
	return nil
}

// WorkspaceAddHandler uploads a local file's bytes into a workspace's
// overlay at dst.
func WorkspaceAddHandler(h *repository.Handle, args []string) error {
	id, localPath, dst := args[0], args[1], args[2]
	client, repo, err := workspaceClient(h)
	if err != nil {
		return err
	}
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("workspace add: %w", err)
	}
	defer f.Close()
	if err := client.AddWorkspaceFile(context.Background(), repo, id, dst, f); err != nil {
		return fmt.Errorf("add workspace file: %w", err)
	}
	fmt.Printf("Added %s to workspace '%s' as %s\n", localPath, id, dst)
	return nil
}

// WorkspaceRemoveHandler tombstones a path in a workspace's overlay.
func WorkspaceRemoveHandler(h *repository.Handle, args []string) error {
	id, relPath := args[0], args[1]
	client, repo, err := workspaceClient(h)
	if err != nil {
		return err
	}
	if err := client.RemoveWorkspaceFile(context.Background(), repo, id, relPath); err != nil {
		return fmt.Errorf("remove workspace file: %w", err)
	}
	fmt.Printf("Removed %s from workspace '%s'\n", relPath, id)
	return nil
}

var (
	workspaceCommitMessage string
	workspaceCommitAuthor  string
	workspaceCommitEmail   string
)

// WorkspaceCommitHandler applies a workspace's overlay onto branch,
// destroying the workspace on success.
func WorkspaceCommitHandler(h *repository.Handle, args []string) error {
	id, branch := args[0], args[1]
	client, repo, err := workspaceClient(h)
	if err != nil {
		return err
	}

	author, email := workspaceCommitAuthor, workspaceCommitEmail
	if author == "" || email == "" {
		ucfg, err := config.LoadUserConfig()
		if err != nil {
			return err
		}
		if author == "" {
			author = ucfg.Name
		}
		if email == "" {
			email = ucfg.Email
		}
	}

	result, err := client.CommitWorkspace(context.Background(), repo, id, branch, workspaceCommitMessage, author, email, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("commit workspace: %w", err)
	}
	fmt.Printf("Committed workspace '%s' onto '%s' at %s\n", id, branch, result.Commit)
	return nil
}

func init() {
	rootCmd.AddCommand(workspaceCmd)
	workspaceCmd.PersistentFlags().StringVar(&workspaceRemote, "remote", "", "Remote to talk to (default: the default remote)")

	createCmd := NewCommand("create", "Open a staging area on the remote", WorkspaceCreateHandler, 0)
	createCmd.Flags().StringVar(&workspaceCreateID, "id", "", "Workspace id (default: server-generated)")
	createCmd.Flags().StringVar(&workspaceCreateBranch, "branch", "", "Branch to root the workspace at (default: current branch)")
	createCmd.Flags().BoolVar(&workspaceCreateEditable, "editable", true, "Whether the workspace accepts writes")
	workspaceCmd.AddCommand(createCmd)

	deleteCmd := NewCommand("delete <id>", "Discard a workspace without committing it", WorkspaceDeleteHandler, 1)
	workspaceCmd.AddCommand(deleteCmd)

	addCmd := NewCommand("add <id> <local-path> <dst>", "Upload a local file into a workspace's overlay", WorkspaceAddHandler, 3)
	workspaceCmd.AddCommand(addCmd)

	removeCmd := NewCommand("remove <id> <path>", "Tombstone a path in a workspace's overlay", WorkspaceRemoveHandler, 2)
	workspaceCmd.AddCommand(removeCmd)

	commitCmd := NewCommand("commit <id> <branch>", "Apply a workspace's overlay onto a branch", WorkspaceCommitHandler, 2)
	commitCmd.Flags().StringVar(&workspaceCommitMessage, "message", "", "Commit message")
	commitCmd.Flags().StringVar(&workspaceCommitAuthor, "author", "", "Commit author (default: user.name)")
	commitCmd.Flags().StringVar(&workspaceCommitEmail, "email", "", "Commit author email (default: user.email)")
	workspaceCmd.AddCommand(commitCmd)
}
