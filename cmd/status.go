package cmd

import (
	"fmt"
	"sort"

	"github.com/fatih/color"

	"github.com/oxen-go/oxen/internal/hash"
	"github.com/oxen-go/oxen/internal/repository"
	"github.com/oxen-go/oxen/internal/stage"
)

var (
	statusShort  bool
	statusBranch bool
)

// StatusHandler reports the working tree's status against the
// current branch tip: staged (pending) changes plus anything the
// working tree has touched since staging.
func StatusHandler(h *repository.Handle, args []string) error {
	s, branch, commit, rootHash, err := openStager(h)
	if err != nil {
		return err
	}

	working, err := s.WalkStatus(rootHash)
	if err != nil {
		return err
	}
	pending := s.Pending()

	if statusShort {
		printShortStatus(branch, pending, working)
		return nil
	}
	printLongStatus(branch, commit, pending, working)
	return nil
}

func printLongStatus(branch string, commit hash.Hash, pending []stage.Entry, working stage.Status) {
	if branch != "" {
		fmt.Printf("On branch %s\n", branch)
	} else {
		fmt.Println("HEAD detached")
	}
	if commit.IsZero() {
		fmt.Println("\nNo commits yet")
	}

	if len(pending) > 0 {
		fmt.Println("\nChanges staged for commit:")
		sorted := append([]stage.Entry(nil), pending...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })
		for _, e := range sorted {
			color.Green("\t%-10s %s", e.Kind.String()+":", e.Path)
		}
	}

	if len(working.Added) > 0 || len(working.Modified) > 0 || len(working.Removed) > 0 {
		fmt.Println("\nChanges not staged for commit:")
		sort.Strings(working.Added)
		for _, p := range working.Added {
			color.Red("\tnew file:   %s", p)
		}
		sort.Strings(working.Modified)
		for _, p := range working.Modified {
			color.Red("\tmodified:   %s", p)
		}
		sort.Strings(working.Removed)
		for _, p := range working.Removed {
			color.Red("\tdeleted:    %s", p)
		}
	}

	if len(pending) == 0 && len(working.Added) == 0 && len(working.Modified) == 0 && len(working.Removed) == 0 {
		fmt.Println("\nnothing to commit, working tree clean")
	}
}

func printShortStatus(branch string, pending []stage.Entry, working stage.Status) {
	if statusBranch {
		fmt.Printf("## %s\n", branch)
	}
	codes := make(map[string]string)
	for _, e := range pending {
		codes[e.Path] = e.Kind.String()[:1] + " "
	}
	mark := func(paths []string, c string) {
		for _, p := range paths {
			if existing, ok := codes[p]; ok {
				codes[p] = existing[:1] + c
			} else {
				codes[p] = "?" + c
			}
		}
	}
	mark(working.Added, "A")
	mark(working.Modified, "M")
	mark(working.Removed, "D")

	var paths []string
	for p := range codes {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		fmt.Printf("%s %s\n", codes[p], p)
	}
}

func init() {
	statusCmd := NewRepoCommand("status", "Show the working tree status", StatusHandler)
	statusCmd.Flags().BoolVarP(&statusShort, "short", "s", false, "Give the output in short format")
	statusCmd.Flags().BoolVarP(&statusBranch, "branch", "b", false, "Show branch information even in short format")
	rootCmd.AddCommand(statusCmd)
}
