package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/oxen-go/oxen/internal/repository"
)

// CommitHandler records the staged pending set as a new commit on the
// current branch.
func CommitHandler(h *repository.Handle, args []string, message string) error {
	s, branch, baseCommit, baseRootHash, err := openStager(h)
	if err != nil {
		return err
	}
	if branch == "" {
		return fmt.Errorf("cannot commit: HEAD is detached")
	}
	if len(s.Pending()) == 0 {
		return fmt.Errorf("nothing to commit, working tree clean")
	}

	author, email, err := requireIdentity()
	if err != nil {
		return err
	}

	message = strings.TrimSpace(message)
	if message == "" {
		fmt.Print("Enter commit message: ")
		reader := bufio.NewReader(os.Stdin)
		line, _ := reader.ReadString('\n')
		message = strings.TrimSpace(line)
		if message == "" {
			return fmt.Errorf("aborting commit due to empty commit message")
		}
	}

	result, err := h.Writer.Commit(s, baseCommit, baseRootHash, branch, message, author, email, time.Now().Unix())
	if err != nil {
		return err
	}
	if err := s.Clear(); err != nil {
		return err
	}

	fmt.Printf("[%s %s] %s\n", branch, shortHash(result.Commit.Hash()), message)
	return nil
}

func init() {
	var message string
	commitCmd := NewRepoCommand("commit", "Record staged changes as a new commit", func(h *repository.Handle, args []string) error {
		return CommitHandler(h, args, message)
	})
	commitCmd.Flags().StringVarP(&message, "message", "m", "", "Commit message")
	rootCmd.AddCommand(commitCmd)
}
