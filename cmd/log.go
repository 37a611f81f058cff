package cmd

import (
	"fmt"
	"time"

	"github.com/oxen-go/oxen/internal/repository"
)

// LogHandler walks first-parent history from HEAD, printing one entry
// per commit the way `git log` does without --graph.
func LogHandler(h *repository.Handle, args []string) error {
	_, commit, _, err := headState(h)
	if err != nil {
		return err
	}
	if commit.IsZero() {
		fmt.Println("no commits yet")
		return nil
	}

	for !commit.IsZero() {
		c, err := h.Graph.Get(commit)
		if err != nil {
			return err
		}

		fmt.Printf("commit %s\n", c.Hash())
		if c.IsMerge() {
			parents := make([]string, len(c.ParentIDs))
			for i, p := range c.ParentIDs {
				parents[i] = p.String()
			}
			fmt.Printf("Merge:  %v\n", parents)
		}
		fmt.Printf("Author: %s <%s>\n", c.Author, c.Email)
		fmt.Printf("Date:   %s\n", time.Unix(c.TimestampS, 0).Format(time.RFC1123))
		fmt.Printf("\n    %s\n\n", c.Message)

		if len(c.ParentIDs) == 0 {
			break
		}
		commit = c.ParentIDs[0]
	}
	return nil
}

func init() {
	logCmd := NewRepoCommand("log", "Show commit history", LogHandler)
	rootCmd.AddCommand(logCmd)
}
