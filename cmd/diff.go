package cmd

import (
	"fmt"
	"sort"

	"github.com/oxen-go/oxen/internal/hash"
	"github.com/oxen-go/oxen/internal/merkle"
	"github.com/oxen-go/oxen/internal/repository"
)

var diffCached bool
var diffNameOnly bool

// DiffHandler shows what changed: with no arguments, the working
// tree against HEAD (or, with --cached, staged changes against HEAD);
// with two revisions, the full tree diff between them.
func DiffHandler(h *repository.Handle, args []string) error {
	if diffCached || len(args) == 0 {
		return diffAgainstHead(h)
	}
	if len(args) != 2 {
		return fmt.Errorf("diff takes zero or two <commit> arguments")
	}
	baseRoot, err := rootHashOf(h, args[0])
	if err != nil {
		return err
	}
	headRoot, err := rootHashOf(h, args[1])
	if err != nil {
		return err
	}
	return printTreeDiff(h, baseRoot, headRoot)
}

func rootHashOf(h *repository.Handle, rev string) (hash.Hash, error) {
	commit, err := resolveRev(h.Refs, rev)
	if err != nil {
		return hash.Zero, err
	}
	c, err := h.Graph.Get(commit)
	if err != nil {
		return hash.Zero, err
	}
	return c.RootDirHash, nil
}

func diffAgainstHead(h *repository.Handle) error {
	s, _, _, rootHash, err := openStager(h)
	if err != nil {
		return err
	}
	if diffCached {
		for _, e := range s.Pending() {
			fmt.Printf("%s\t%s\n", e.Kind, e.Path)
		}
		return nil
	}
	status, err := s.WalkStatus(rootHash)
	if err != nil {
		return err
	}
	for _, p := range status.Added {
		fmt.Printf("added\t%s\n", p)
	}
	for _, p := range status.Modified {
		fmt.Printf("modified\t%s\n", p)
	}
	for _, p := range status.Removed {
		fmt.Printf("removed\t%s\n", p)
	}
	return nil
}

// printTreeDiff walks two directory trees in lockstep, reporting
// added/removed/modified paths, grounded on merge.Engine's
// childEntries/unionNames shape for comparing two Merkle directory
// fan-outs by name.
func printTreeDiff(h *repository.Handle, baseRoot, headRoot hash.Hash) error {
	diffs, err := diffDirs(h, ".", baseRoot, headRoot)
	if err != nil {
		return err
	}
	sort.Strings(diffs)
	for _, line := range diffs {
		fmt.Println(line)
	}
	return nil
}

func diffDirs(h *repository.Handle, dirPath string, baseHash, headHash hash.Hash) ([]string, error) {
	base, err := childEntries(h, baseHash)
	if err != nil {
		return nil, err
	}
	head, err := childEntries(h, headHash)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var names []string
	for name := range base {
		seen[name] = true
		names = append(names, name)
	}
	for name := range head {
		if !seen[name] {
			names = append(names, name)
		}
	}

	var out []string
	for _, name := range names {
		path := joinPath(dirPath, name)
		b, inBase := base[name]
		hd, inHead := head[name]
		switch {
		case inBase && !inHead:
			out = append(out, fmt.Sprintf("removed\t%s", path))
		case !inBase && inHead:
			out = append(out, fmt.Sprintf("added\t%s", path))
		case b.Hash == hd.Hash:
			// unchanged
		case b.Kind == merkle.ChildDir && hd.Kind == merkle.ChildDir:
			sub, err := diffDirs(h, path, b.Hash, hd.Hash)
			if err != nil {
				return nil, err
			}
			out = append(out, sub...)
		default:
			out = append(out, fmt.Sprintf("modified\t%s", path))
		}
	}
	return out, nil
}

func childEntries(h *repository.Handle, dirHash hash.Hash) (map[string]merkle.DirEntry, error) {
	if dirHash.IsZero() {
		return map[string]merkle.DirEntry{}, nil
	}
	flat, err := h.Tree.Children(dirHash)
	if err != nil {
		return nil, err
	}
	m := make(map[string]merkle.DirEntry, len(flat))
	for _, e := range flat {
		m[e.Name] = e
	}
	return m, nil
}

func joinPath(dirPath, name string) string {
	if dirPath == "." {
		return name
	}
	return dirPath + "/" + name
}

func init() {
	diffCmd := NewRepoCommand("diff [<base> <head>]", "Show changes between commits, or the working tree against HEAD", DiffHandler)
	diffCmd.Flags().BoolVar(&diffCached, "cached", false, "Show staged changes instead of the working tree")
	diffCmd.Flags().BoolVar(&diffNameOnly, "name-only", true, "Show only names of changed files (the only mode supported)")
	rootCmd.AddCommand(diffCmd)
}
