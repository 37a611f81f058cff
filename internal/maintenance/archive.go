package maintenance

import (
	"fmt"
	"path/filepath"

	"github.com/oxen-go/oxen/internal/hash"
	"github.com/oxen-go/oxen/internal/packfile"
	"github.com/oxen-go/oxen/internal/store"
)

// ArchiveStats summarizes one archive pass.
type ArchiveStats struct {
	ChunksArchived int
	ArchivePath    string
}

// ArchiveChunks bundles the given chunk hashes, read from vs, into a
// single packfile archive under archiveDir, named by label (callers
// typically pass a timestamp or run identifier so successive passes
// don't collide). Archiving never removes the originals from vs —
// compacting VersionStore's loose layout once an archive is durable is
// a decision for the caller, not this package, since archived-but-
// not-yet-deleted chunks still need to resolve through VersionStore
// lookups until a compaction step (outside this package's scope)
// repoints them.
func ArchiveChunks(vs *store.VersionStore, hashes []hash.Hash, archiveDir, label string) (*ArchiveStats, error) {
	if len(hashes) == 0 {
		return &ArchiveStats{}, nil
	}
	path := filepath.Join(archiveDir, fmt.Sprintf("archive-%s.oxpk", label))
	entries, err := packfile.Write(path, hashes, vs.Get)
	if err != nil {
		return nil, fmt.Errorf("maintenance: archive chunks: %w", err)
	}
	return &ArchiveStats{ChunksArchived: len(entries), ArchivePath: path}, nil
}
