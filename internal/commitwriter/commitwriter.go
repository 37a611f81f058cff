// Package commitwriter builds a new commit from a stager's pending set
// by reusing every subtree the commit doesn't touch, writing only
// novel File/Dir/VNode nodes into MerkleNodeDB and only novel
// chunk/blob bytes into VersionStore. It groups staged paths by parent
// directory, recurses bottom-up and sorts entries, reusing unchanged
// subtree hashes instead of rebuilding every directory on every commit.
package commitwriter

import (
	"bytes"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/oxen-go/oxen/internal/chunk"
	"github.com/oxen-go/oxen/internal/hash"
	"github.com/oxen-go/oxen/internal/merkle"
	"github.com/oxen-go/oxen/internal/merkle/nodedb"
	"github.com/oxen-go/oxen/internal/refs"
	"github.com/oxen-go/oxen/internal/stage"
	"github.com/oxen-go/oxen/internal/store"
)

// Config bounds directory fan-out: once a directory's children exceed
// VNodeFanoutThreshold, they're partitioned into VNodeBucketCount
// buckets (see DESIGN.md's VNode open-question decision).
type Config struct {
	VNodeFanoutThreshold int
	VNodeBucketCount     uint32
	ChunkThreshold       int64
}

// DefaultConfig mirrors merkle's package defaults.
func DefaultConfig() Config {
	return Config{
		VNodeFanoutThreshold: merkle.DefaultVNodeFanoutThreshold,
		VNodeBucketCount:     merkle.DefaultVNodeBucketCount,
		ChunkThreshold:       chunk.DefaultWholeFileThreshold,
	}
}

// Writer builds commits, wiring together VersionStore (blobs/chunks),
// MerkleNodeDB (nodes), a read-side Tree (to resolve unchanged
// subtrees), and a RefStore (CAS branch advance).
type Writer struct {
	workDir  string
	vs       *store.VersionStore
	nodes    *nodedb.DB
	tree     *merkle.Tree
	refStore *refs.Store
	cfg      Config
}

// New builds a Writer rooted at workDir.
func New(workDir string, vs *store.VersionStore, nodes *nodedb.DB, tree *merkle.Tree, refStore *refs.Store, cfg Config) *Writer {
	return &Writer{workDir: workDir, vs: vs, nodes: nodes, tree: tree, refStore: refStore, cfg: cfg}
}

// Result is the outcome of a successful commit.
type Result struct {
	Commit *merkle.Commit
}

// pendingNode is a File or Dir built during this commit whose
// LastCommitID can only be finalized once the commit's own hash is
// known (LastCommitID doesn't participate in either node's identity
// hash, so patching it after the fact never invalidates a hash
// already computed).
type pendingNode struct {
	setLastCommitID func(hash.Hash)
	node            merkle.Node
}

// FileBuilder produces the File node for one added or modified path.
// *Writer itself implements FileBuilder by reading the path's current
// bytes from workDir (the CLI commit path); Workspace supplies its own
// FileBuilder backed by content already written to VersionStore by
// add_file, since a workspace has no working-directory copy to read.
type FileBuilder interface {
	BuildFile(relPath, name string) (*merkle.File, error)
}

// Commit builds a new commit from the stager's pending entries on top
// of baseRootHash (the zero hash for a brand-new repository), advances
// branch from baseCommit to the new commit under CAS, and clears the
// stager's pending set on success.
func (w *Writer) Commit(st *stage.Stager, baseCommit, baseRootHash hash.Hash, branch, message, author, email string, timestampS int64) (*Result, error) {
	entries := st.Pending()
	if len(entries) == 0 {
		return nil, fmt.Errorf("commitwriter: nothing to commit")
	}
	result, err := w.CommitEntries(entries, w, baseCommit, baseRootHash, branch, message, author, email, timestampS)
	if err != nil {
		return nil, err
	}
	if err := st.Clear(); err != nil {
		return nil, fmt.Errorf("commitwriter: clear pending set: %w", err)
	}
	return result, nil
}

// CommitEntries builds a new commit from an explicit set of pending
// path changes against baseRootHash, using fb to materialize the File
// node for each Added/Modified path. This is the core tree-assembly
// logic Commit wraps for the CLI's Stager; internal/workspace calls it
// directly with its own FileBuilder since a server-side workspace
// overlay has no on-disk stat cache or pending-set file to clear.
func (w *Writer) CommitEntries(entries []stage.Entry, fb FileBuilder, baseCommit, baseRootHash hash.Hash, branch, message, author, email string, timestampS int64) (*Result, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("commitwriter: nothing to commit")
	}

	byDir := make(map[string][]stage.Entry)
	dirty := make(map[string]bool)
	dirty["."] = true
	for _, e := range entries {
		dir := path.Dir(filepath.ToSlash(e.Path))
		byDir[dir] = append(byDir[dir], e)
		for d := dir; d != "." && d != "/" && d != ""; d = path.Dir(d) {
			dirty[d] = true
		}
	}

	var pending []pendingNode
	rootDir, err := w.buildDir(".", baseRootHash, byDir, dirty, fb, &pending)
	if err != nil {
		return nil, err
	}
	var rootHash hash.Hash
	if rootDir != nil {
		rootHash = rootDir.Hash()
	}

	var parents []hash.Hash
	if !baseCommit.IsZero() {
		parents = []hash.Hash{baseCommit}
	}
	if timestampS == 0 {
		timestampS = time.Now().Unix()
	}
	commit := merkle.NewCommit(parents, message, author, email, timestampS, rootHash)

	// rootDir, if non-nil, is already included in pending (buildDir
	// appends every dir it constructs, including the root, before
	// returning it), so this single pass covers every new File, VNode,
	// and Dir this commit introduces.
	for _, p := range pending {
		p.setLastCommitID(commit.Hash())
		if err := w.nodes.Put(p.node); err != nil {
			return nil, fmt.Errorf("commitwriter: write node: %w", err)
		}
	}
	if err := w.nodes.Put(commit); err != nil {
		return nil, fmt.Errorf("commitwriter: write commit: %w", err)
	}

	if err := w.refStore.SetCAS(branch, baseCommit, commit.Hash()); err != nil {
		return nil, err
	}

	return &Result{Commit: commit}, nil
}

// buildDir reconstructs dirPath's Dir node. If dirPath isn't dirty, it
// reuses the base tree's node wholesale: it is loaded by the hash
// already in hand and nothing is written. Returns nil if the directory ends
// up with no entries: empty directories aren't represented.
func (w *Writer) buildDir(dirPath string, baseHash hash.Hash, byDir map[string][]stage.Entry, dirty map[string]bool, fb FileBuilder, pending *[]pendingNode) (*merkle.Dir, error) {
	if !dirty[dirPath] {
		if baseHash.IsZero() {
			return nil, nil
		}
		n, err := w.tree.NodeByHash(merkle.KindDir, baseHash)
		if err != nil {
			return nil, err
		}
		return n.(*merkle.Dir), nil
	}

	baseEntries := map[string]merkle.DirEntry{}
	if !baseHash.IsZero() {
		flat, err := w.tree.Children(baseHash)
		if err != nil {
			return nil, err
		}
		for _, e := range flat {
			baseEntries[e.Name] = e
		}
	}

	for _, e := range byDir[dirPath] {
		name := path.Base(filepath.ToSlash(e.Path))
		switch e.Kind {
		case stage.Removed:
			delete(baseEntries, name)
		case stage.Added, stage.Modified:
			fileNode, err := fb.BuildFile(e.Path, name)
			if err != nil {
				return nil, err
			}
			*pending = append(*pending, pendingNode{
				node:            fileNode,
				setLastCommitID: func(h hash.Hash) { fileNode.LastCommitID = h },
			})
			baseEntries[name] = merkle.DirEntry{Name: name, Hash: fileNode.Hash(), Kind: merkle.ChildFile}
		}
	}

	childDirs := w.childDirsOf(dirPath, dirty)
	for _, name := range childDirs {
		childPath := joinDirPath(dirPath, name)
		var childBase hash.Hash
		if existing, ok := baseEntries[name]; ok && existing.Kind == merkle.ChildDir {
			childBase = existing.Hash
		}
		childDir, err := w.buildDir(childPath, childBase, byDir, dirty, fb, pending)
		if err != nil {
			return nil, err
		}
		if childDir == nil {
			delete(baseEntries, name)
			continue
		}
		baseEntries[name] = merkle.DirEntry{Name: name, Hash: childDir.Hash(), Kind: merkle.ChildDir}
	}

	if len(baseEntries) == 0 {
		return nil, nil
	}

	entries, byteSize, perTypeCounts, perTypeSizes, err := w.assembleEntries(baseEntries)
	if err != nil {
		return nil, err
	}
	entries = w.partitionVNodes(entries, pending)

	dirName := path.Base(dirPath)
	dir := merkle.NewDir(dirName, entries, byteSize, hash.Zero, 0, 0, perTypeCounts, perTypeSizes)
	*pending = append(*pending, pendingNode{
		node:            dir,
		setLastCommitID: func(h hash.Hash) { dir.LastCommitID = h },
	})
	return dir, nil
}

// childDirsOf returns the immediate child directory names of dirPath
// that are dirty, i.e. need (re)building.
func (w *Writer) childDirsOf(dirPath string, dirty map[string]bool) []string {
	prefix := dirPath + "/"
	if dirPath == "." {
		prefix = ""
	}
	seen := map[string]bool{}
	var names []string
	for d := range dirty {
		if d == dirPath || !strings.HasPrefix(d, prefix) {
			continue
		}
		rest := strings.TrimPrefix(d, prefix)
		if rest == "" {
			continue
		}
		name := strings.SplitN(rest, "/", 2)[0]
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func joinDirPath(dirPath, name string) string {
	if dirPath == "." {
		return name
	}
	return dirPath + "/" + name
}

// assembleEntries sorts the directory's final entries and aggregates
// byte size and per-type counts/sizes from its direct File children
// and (recursively, via their own aggregates) Dir children.
func (w *Writer) assembleEntries(entryMap map[string]merkle.DirEntry) ([]merkle.DirEntry, int64, map[string]int64, map[string]int64, error) {
	entries := make([]merkle.DirEntry, 0, len(entryMap))
	for _, e := range entryMap {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	var byteSize int64
	counts := map[string]int64{}
	sizes := map[string]int64{}
	for _, e := range entries {
		switch e.Kind {
		case merkle.ChildFile:
			n, err := w.tree.NodeByHash(merkle.KindFile, e.Hash)
			if err != nil {
				return nil, 0, nil, nil, err
			}
			f := n.(*merkle.File)
			byteSize += f.NumBytes
			counts[f.DataType]++
			sizes[f.DataType] += f.NumBytes
		case merkle.ChildDir:
			n, err := w.tree.NodeByHash(merkle.KindDir, e.Hash)
			if err != nil {
				return nil, 0, nil, nil, err
			}
			d := n.(*merkle.Dir)
			byteSize += d.ByteSize
			for k, v := range d.PerTypeCounts {
				counts[k] += v
			}
			for k, v := range d.PerTypeSizes {
				sizes[k] += v
			}
		}
	}
	return entries, byteSize, counts, sizes, nil
}

// partitionVNodes splits entries into VNode buckets once their count
// exceeds the configured fan-out threshold, returning the directory's
// new top-level entries (a mix of ChildVNode entries and any direct
// entries below the threshold — here, all-or-nothing: either every
// entry is partitioned or none are).
func (w *Writer) partitionVNodes(entries []merkle.DirEntry, pending *[]pendingNode) []merkle.DirEntry {
	if len(entries) <= w.cfg.VNodeFanoutThreshold {
		return entries
	}
	buckets := make(map[uint32][]merkle.DirEntry)
	for _, e := range entries {
		b := merkle.VNodeBucket(e.Hash, w.cfg.VNodeBucketCount)
		buckets[b] = append(buckets[b], e)
	}
	out := make([]merkle.DirEntry, 0, len(buckets))
	for b, es := range buckets {
		vn := merkle.NewVNode(b, es)
		*pending = append(*pending, pendingNode{node: vn, setLastCommitID: func(hash.Hash) {}})
		out = append(out, merkle.DirEntry{Name: fmt.Sprintf("__vnode_%d", b), Hash: vn.Hash(), Kind: merkle.ChildVNode})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// BuildFile implements FileBuilder by reading relPath's current bytes
// from workDir, chunking it if large, writing the chunk(s)/blob to
// VersionStore, and building its File node. This is the CLI commit
// path's source of truth for "what does this path contain right now".
func (w *Writer) BuildFile(relPath, name string) (*merkle.File, error) {
	abs := filepath.Join(w.workDir, relPath)
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("commitwriter: read %s: %w", relPath, err)
	}
	contentHash := hash.Bytes(data)
	dataType, mimeType, extension := Classify(relPath)

	var chunkHashes []hash.Hash
	if chunk.ShouldChunk(int64(len(data)), w.cfg.ChunkThreshold) {
		fc := chunk.NewFastCDCChunker(0, 0, 0)
		err := fc.Chunks(bytes.NewReader(data), func(c []byte) error {
			ch := hash.Bytes(c)
			chunkHashes = append(chunkHashes, ch)
			return w.vs.PutHash(ch, c)
		})
		if err != nil {
			return nil, fmt.Errorf("commitwriter: chunk %s: %w", relPath, err)
		}
	} else {
		if err := w.vs.PutHash(contentHash, data); err != nil {
			return nil, fmt.Errorf("commitwriter: store %s: %w", relPath, err)
		}
		chunkHashes = []hash.Hash{contentHash}
	}

	return merkle.NewFile(name, contentHash, int64(len(data)), chunkHashes, dataType, mimeType, extension, hash.Zero, 0, 0), nil
}

// Classify derives a file's data type, MIME type, and extension from
// its path. The real extractor (content sniffing, image dimensions) is
// a pure function external to this package, deliberately out of
// scope here; this is the extension-based fallback it delegates to
// when no richer extractor is wired in. Exported so internal/workspace
// can classify files added directly into VersionStore the same way.
func Classify(relPath string) (dataType, mimeType, extension string) {
	ext := strings.TrimPrefix(filepath.Ext(relPath), ".")
	switch ext {
	case "csv", "tsv", "parquet", "jsonl", "ndjson", "arrow", "ipc":
		return "tabular", "text/csv", ext
	case "png", "jpg", "jpeg", "gif":
		return "image", "image/" + ext, ext
	case "":
		return "binary", "application/octet-stream", ""
	default:
		return "text", "text/plain", ext
	}
}
