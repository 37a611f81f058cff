package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/oxen-go/oxen/internal/hash"
	"github.com/oxen-go/oxen/internal/merkle"
	"github.com/oxen-go/oxen/internal/oxenerr"
	"github.com/oxen-go/oxen/internal/repository"
)

var allNodeKinds = []merkle.Kind{merkle.KindCommit, merkle.KindDir, merkle.KindVNode, merkle.KindFile, merkle.KindSchema}

// lookupAnyNode probes every node kind in turn, grounded on
// internal/server/routes.go's lookupNode: the node store is keyed by
// (kind, hash) but a plumbing command is handed a bare hash and has
// to find out what it is.
func lookupAnyNode(h *repository.Handle, target hash.Hash) (merkle.Node, error) {
	for _, kind := range allNodeKinds {
		if n, err := h.Nodes.Get(kind, target); err == nil {
			return n, nil
		}
	}
	return nil, &oxenerr.NotFoundError{Kind: "node", ID: target.String()}
}

var (
	catFilePretty bool
	catFileType   bool
	catFileSize   bool
)

// CatFileHandler is plumbing: given a node hash, report its kind
// (-t), its encoded size (-s), or a human-readable dump of its fields
// (-p). There is no blob/tree/commit distinction to make here the way
// git has it — Dir, VNode, File, Schema, and Commit are the five node
// kinds, and lookupAnyNode finds out which one a hash names.
func CatFileHandler(h *repository.Handle, args []string) error {
	target, err := hash.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid hash: %w", err)
	}

	flagCount := 0
	for _, set := range []bool{catFilePretty, catFileType, catFileSize} {
		if set {
			flagCount++
		}
	}
	if flagCount != 1 {
		return fmt.Errorf("exactly one of -p, -t, or -s must be specified")
	}

	n, err := lookupAnyNode(h, target)
	if err != nil {
		return err
	}

	switch {
	case catFileType:
		fmt.Println(n.Kind().String())
	case catFileSize:
		fmt.Println(len(n.Encode()))
	default:
		printNode(n)
	}
	return nil
}

func printNode(n merkle.Node) {
	switch v := n.(type) {
	case *merkle.Commit:
		fmt.Printf("tree %s\n", v.RootDirHash)
		for _, p := range v.ParentIDs {
			fmt.Printf("parent %s\n", p)
		}
		fmt.Printf("author %s <%s> %d\n", v.Author, v.Email, v.TimestampS)
		fmt.Println()
		fmt.Println(v.Message)
	case *merkle.Dir:
		printEntries(v.Entries)
	case *merkle.VNode:
		printEntries(v.Entries)
	case *merkle.File:
		fmt.Printf("name %s\n", v.Name)
		fmt.Printf("content %s\n", v.ContentHash)
		fmt.Printf("bytes %d\n", v.NumBytes)
		fmt.Printf("type %s (%s)\n", v.DataType, v.MimeType)
		for i, ch := range v.ChunkHashes {
			fmt.Printf("chunk[%d] %s\n", i, ch)
		}
	case *merkle.Schema:
		for _, f := range v.Fields {
			fmt.Printf("%s\t%s\n", f.Name, f.DataType)
		}
	}
}

func printEntries(entries []merkle.DirEntry) {
	sorted := append([]merkle.DirEntry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	for _, e := range sorted {
		fmt.Printf("%s %s\t%s\n", e.Kind, e.Hash, e.Name)
	}
}

func init() {
	catFileCmd := NewCommand("cat-file (-p | -t | -s) <hash>", "Show the type, size, or contents of a stored node", CatFileHandler, 1)
	catFileCmd.Args = cobra.ExactArgs(1)
	catFileCmd.Flags().BoolVarP(&catFilePretty, "pretty-print", "p", false, "Show the node's fields")
	catFileCmd.Flags().BoolVarP(&catFileType, "type", "t", false, "Show the node's kind")
	catFileCmd.Flags().BoolVarP(&catFileSize, "size", "s", false, "Show the node's encoded size")
	rootCmd.AddCommand(catFileCmd)
}
