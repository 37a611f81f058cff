package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/oxen-go/oxen/internal/maintenance"
	"github.com/oxen-go/oxen/internal/repository"
)

var gcArchive string

// GcHandler reports what a future mark-and-sweep deletion pass would
// find unreferenced, per maintenance.Audit's report-only contract.
// With --archive, unreferenced chunks are additionally copied out to
// a directory instead of being deleted in place, since this module
// never deletes content-addressed storage outright.
func GcHandler(h *repository.Handle, args []string) error {
	stats, err := maintenance.Audit(h.Refs, h.Graph, h.Nodes, h.VersionStore)
	if err != nil {
		return err
	}

	fmt.Printf("Reachable commits: %d\n", stats.ReachableCommits)
	fmt.Printf("Reachable tree nodes: %d\n", stats.ReachableNodes)
	fmt.Printf("Reachable chunks: %d\n", stats.ReachableChunks)
	fmt.Printf("Unreferenced tree nodes: %d\n", len(stats.UnreferencedNodes))
	fmt.Printf("Unreferenced chunks: %d\n", len(stats.UnreferencedChunks))

	if gcArchive == "" || len(stats.UnreferencedChunks) == 0 {
		return nil
	}

	archiveDir := gcArchive
	if !filepath.IsAbs(archiveDir) {
		archiveDir = filepath.Join(h.Repo.Root, archiveDir)
	}
	archiveStats, err := maintenance.ArchiveChunks(h.VersionStore, stats.UnreferencedChunks, archiveDir, "gc")
	if err != nil {
		return fmt.Errorf("archive unreferenced chunks: %w", err)
	}
	fmt.Printf("Archived %d chunks to %s\n", archiveStats.ChunksArchived, archiveStats.ArchivePath)
	return nil
}

func init() {
	gcCmd := NewRepoCommand("gc", "Report (and optionally archive) unreferenced storage", GcHandler)
	gcCmd.Flags().StringVar(&gcArchive, "archive", "", "Copy unreferenced chunks into this directory instead of just reporting them")
	rootCmd.AddCommand(gcCmd)
}
