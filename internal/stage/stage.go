// Package stage implements the working-tree diff and the pending-set
// persistence that makes `commit` a pure read rather than a re-walk of
// the working directory. Grounded on internal/staging/staging.go's
// StagingArea (AddFile/addDirectory, length-prefixed index
// persistence) and internal/staging/index.go, retargeted from a flat
// path->hash map onto the merkle tree and extended with a size/mtime
// short-circuit.
package stage

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/oxen-go/oxen/core"
	"github.com/oxen-go/oxen/internal/hash"
	"github.com/oxen-go/oxen/internal/merkle"
)

// ChangeKind classifies one staged path.
type ChangeKind uint8

const (
	Added ChangeKind = iota + 1
	Modified
	Removed
)

func (k ChangeKind) String() string {
	switch k {
	case Added:
		return "added"
	case Modified:
		return "modified"
	case Removed:
		return "removed"
	default:
		return "unknown"
	}
}

// Entry is one path's staged state: its kind and, for Added/Modified,
// the hash of its current content.
type Entry struct {
	Path string
	Kind ChangeKind
	Hash hash.Hash
}

// Status is the result of diffing a working directory against a base
// tree: added, modified, removed. Unchanged paths are not
// recorded anywhere.
type Status struct {
	Added    []string
	Modified []string
	Removed  []string
}

const (
	stagedFileName = "index"
	cacheFileName  = "stat-cache"
)

// Stager owns the on-disk pending set (what `commit` will read) and
// the stat cache used to short-circuit rehashing unchanged files.
type Stager struct {
	metaDir      string
	workDir      string
	tree         *merkle.Tree
	baseRootHash hash.Hash
	pending      map[string]Entry
	statCache    map[string]statEntry
	ignore       []string
}

type statEntry struct {
	Size  int64
	ModNS int64
	Hash  hash.Hash
}

// Open loads a Stager rooted at workDir, with its pending set and stat
// cache persisted under metaDir, and tree/baseRootHash used to resolve
// HEAD's entries by path for Added-vs-Modified classification.
func Open(metaDir, workDir string, tree *merkle.Tree, baseRootHash hash.Hash) (*Stager, error) {
	s := &Stager{
		metaDir:      metaDir,
		workDir:      workDir,
		tree:         tree,
		baseRootHash: baseRootHash,
		pending:      make(map[string]Entry),
		statCache:    make(map[string]statEntry),
	}
	if err := s.readPending(); err != nil {
		return nil, err
	}
	if err := s.readStatCache(); err != nil {
		return nil, err
	}
	s.ignore = loadIgnorePatterns(workDir)
	return s, nil
}

// IsIgnored reports whether relPath (slash-separated, relative to
// workDir) should be excluded from staging and status: anything under
// the repository's metadata directory, plus whatever .oxenignore at
// the repository root lists.
func (s *Stager) IsIgnored(relPath string) bool {
	if relPath == core.OxenDirName || strings.HasPrefix(relPath, core.OxenDirName+"/") {
		return true
	}
	return matchIgnorePatterns(s.ignore, relPath)
}

// loadIgnorePatterns reads and parses .oxenignore at the root of
// workDir, if present.
func loadIgnorePatterns(workDir string) []string {
	ignorePath := filepath.Join(workDir, ".oxenignore")
	if !core.FileExists(ignorePath) {
		return nil
	}
	content, err := core.ReadFileContent(ignorePath)
	if err != nil {
		return nil
	}

	rawPatterns := strings.Split(string(content), "\n")
	patterns := make([]string, 0, len(rawPatterns))
	for _, pattern := range rawPatterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" || strings.HasPrefix(pattern, "#") {
			continue
		}
		if _, err := filepath.Match(pattern, "test-filename"); err != nil {
			fmt.Fprintf(os.Stderr, "warning: invalid pattern in .oxenignore: %s\n", pattern)
			continue
		}
		patterns = append(patterns, filepath.Clean(pattern))
	}
	return patterns
}

// matchIgnorePatterns reports whether relPath, or any of its parent
// directories, matches one of patterns.
func matchIgnorePatterns(patterns []string, relPath string) bool {
	for _, pattern := range patterns {
		if matched, _ := filepath.Match(pattern, relPath); matched {
			return true
		}
		parts := strings.Split(relPath, "/")
		for i := range parts {
			partial := strings.Join(parts[:i+1], "/")
			if matched, _ := filepath.Match(pattern, partial); matched {
				return true
			}
		}
	}
	return false
}

// Pending returns a copy of the current staged set, sorted by path.
func (s *Stager) Pending() []Entry {
	out := make([]Entry, 0, len(s.pending))
	for _, e := range s.pending {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Clear discards the pending set, used after a successful commit
// consumes it.
func (s *Stager) Clear() error {
	s.pending = make(map[string]Entry)
	return s.writePending()
}

// Unstage removes relPath from the pending set without touching the
// working tree, the way `restore --staged` and `rm --cached` both
// need to.
func (s *Stager) Unstage(relPath string) error {
	delete(s.pending, relPath)
	return s.writePending()
}

// AddPath stages relPath (a file or, recursively, a directory) against
// its current on-disk content.
func (s *Stager) AddPath(relPath string) error {
	abs := filepath.Join(s.workDir, relPath)
	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("stage: stat %s: %w", relPath, err)
	}
	if info.IsDir() {
		return s.addDir(relPath)
	}
	return s.addFile(relPath, info)
}

func (s *Stager) addDir(relDir string) error {
	abs := filepath.Join(s.workDir, relDir)
	return filepath.Walk(abs, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(s.workDir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if info.IsDir() {
			if rel != "." && s.IsIgnored(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if s.IsIgnored(rel) {
			return nil
		}
		return s.addFile(rel, info)
	})
}

func (s *Stager) addFile(relPath string, info os.FileInfo) error {
	h, err := s.hashOf(relPath, info)
	if err != nil {
		return err
	}

	kind := Added
	entry, lookupErr := s.tree.NodeByPath(s.baseRootHash, relPath)
	if lookupErr == nil {
		baseContent, err := s.contentHashOf(entry)
		if err != nil {
			return err
		}
		if baseContent == h {
			delete(s.pending, relPath)
			return s.writePending()
		}
		kind = Modified
	}
	s.pending[relPath] = Entry{Path: relPath, Kind: kind, Hash: h}
	return s.writePending()
}

// contentHashOf resolves a File DirEntry to the whole-file content
// hash recorded on its File node (distinct from the DirEntry's own
// Hash, which is the File node's Merkle identity — see merkle.File).
func (s *Stager) contentHashOf(entry merkle.DirEntry) (hash.Hash, error) {
	if entry.Kind != merkle.ChildFile {
		return hash.Zero, fmt.Errorf("stage: path does not resolve to a file")
	}
	n, err := s.tree.NodeByHash(merkle.KindFile, entry.Hash)
	if err != nil {
		return hash.Zero, err
	}
	file, ok := n.(*merkle.File)
	if !ok {
		return hash.Zero, fmt.Errorf("stage: node %s is not a File", entry.Hash)
	}
	return file.ContentHash, nil
}

// RemovePath stages relPath as removed (used when a tracked file is
// deleted from the working directory).
func (s *Stager) RemovePath(relPath string) error {
	s.pending[relPath] = Entry{Path: relPath, Kind: Removed}
	delete(s.statCache, relPath)
	if err := s.writeStatCache(); err != nil {
		return err
	}
	return s.writePending()
}

// hashOf returns relPath's content hash, consulting the stat cache
// first: if size and mtime match the last recorded values, the cached
// hash is reused without reading the file body.
func (s *Stager) hashOf(relPath string, info os.FileInfo) (hash.Hash, error) {
	modNS := info.ModTime().UnixNano()
	if cached, ok := s.statCache[relPath]; ok {
		if cached.Size == info.Size() && cached.ModNS == modNS {
			return cached.Hash, nil
		}
	}

	f, err := os.Open(filepath.Join(s.workDir, relPath))
	if err != nil {
		return hash.Zero, fmt.Errorf("stage: open %s: %w", relPath, err)
	}
	defer f.Close()

	h, err := hash.Reader(f)
	if err != nil {
		return hash.Zero, fmt.Errorf("stage: hash %s: %w", relPath, err)
	}

	s.statCache[relPath] = statEntry{Size: info.Size(), ModNS: modNS, Hash: h}
	if err := s.writeStatCache(); err != nil {
		return hash.Zero, err
	}
	return h, nil
}

// WalkStatus compares the working directory against rootDirHash's
// tree and returns the full {added, modified, removed} status without
// consulting or mutating the pending set.
func (s *Stager) WalkStatus(rootDirHash hash.Hash) (Status, error) {
	var status Status
	seen := make(map[string]bool)

	err := filepath.Walk(s.workDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(s.workDir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if info.IsDir() {
			if rel != "." && s.IsIgnored(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if s.IsIgnored(rel) {
			return nil
		}
		seen[rel] = true

		entry, lookupErr := s.tree.NodeByPath(rootDirHash, rel)
		h, err := s.hashOf(rel, info)
		if err != nil {
			return err
		}
		if lookupErr != nil {
			status.Added = append(status.Added, rel)
			return nil
		}
		baseContent, err := s.contentHashOf(entry)
		if err != nil {
			return err
		}
		if baseContent != h {
			status.Modified = append(status.Modified, rel)
		}
		return nil
	})
	if err != nil {
		return Status{}, err
	}

	removed, err := s.findRemoved(rootDirHash, "", seen)
	if err != nil {
		return Status{}, err
	}
	status.Removed = removed

	sort.Strings(status.Added)
	sort.Strings(status.Modified)
	sort.Strings(status.Removed)
	return status, nil
}

func (s *Stager) findRemoved(rootDirHash hash.Hash, prefix string, seen map[string]bool) ([]string, error) {
	entries, err := s.tree.Children(rootDirHash)
	if err != nil {
		return nil, err
	}
	var removed []string
	for _, e := range entries {
		p := e.Name
		if prefix != "" {
			p = prefix + "/" + e.Name
		}
		switch e.Kind {
		case merkle.ChildFile:
			if !seen[p] {
				removed = append(removed, p)
			}
		case merkle.ChildDir:
			sub, err := s.findRemoved(e.Hash, p, seen)
			if err != nil {
				return nil, err
			}
			removed = append(removed, sub...)
		}
	}
	return removed, nil
}

func (s *Stager) pendingPath() string { return filepath.Join(s.metaDir, stagedFileName) }
func (s *Stager) cachePath() string   { return filepath.Join(s.metaDir, cacheFileName) }

func (s *Stager) writePending() error {
	w := newRecordWriter()
	for _, e := range s.Pending() {
		w.writeString(e.Path)
		w.writeByte(byte(e.Kind))
		w.writeHash(e.Hash)
	}
	return atomicWrite(s.pendingPath(), w.bytes())
}

func (s *Stager) readPending() error {
	data, err := os.ReadFile(s.pendingPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("stage: read pending set: %w", err)
	}
	r := newRecordReader(data)
	for !r.done() {
		path, err := r.readString()
		if err != nil {
			return err
		}
		kindByte, err := r.readByte()
		if err != nil {
			return err
		}
		h, err := r.readHash()
		if err != nil {
			return err
		}
		s.pending[path] = Entry{Path: path, Kind: ChangeKind(kindByte), Hash: h}
	}
	return nil
}

func (s *Stager) writeStatCache() error {
	w := newRecordWriter()
	keys := make([]string, 0, len(s.statCache))
	for k := range s.statCache {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		e := s.statCache[k]
		w.writeString(k)
		w.writeInt64(e.Size)
		w.writeInt64(e.ModNS)
		w.writeHash(e.Hash)
	}
	return atomicWrite(s.cachePath(), w.bytes())
}

func (s *Stager) readStatCache() error {
	data, err := os.ReadFile(s.cachePath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("stage: read stat cache: %w", err)
	}
	r := newRecordReader(data)
	for !r.done() {
		path, err := r.readString()
		if err != nil {
			return err
		}
		size, err := r.readInt64()
		if err != nil {
			return err
		}
		modNS, err := r.readInt64()
		if err != nil {
			return err
		}
		h, err := r.readHash()
		if err != nil {
			return err
		}
		s.statCache[path] = statEntry{Size: size, ModNS: modNS, Hash: h}
	}
	return nil
}

func atomicWrite(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("stage: write %s: %w", path, err)
	}
	return os.Rename(tmp, path)
}

// recordWriter/recordReader give the pending set and stat cache the
// same length-prefixed framing as the merkle codec, so a truncated
// write is detected on read rather than silently misparsed.

type recordWriter struct {
	buf []byte
}

func newRecordWriter() *recordWriter { return &recordWriter{} }

func (w *recordWriter) writeString(s string) {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(s)))
	w.buf = append(w.buf, lenBuf[:]...)
	w.buf = append(w.buf, s...)
}

func (w *recordWriter) writeByte(b byte) {
	w.buf = append(w.buf, b)
}

func (w *recordWriter) writeHash(h hash.Hash) {
	w.buf = append(w.buf, h[:]...)
}

func (w *recordWriter) writeInt64(v int64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	w.buf = append(w.buf, b[:]...)
}

func (w *recordWriter) bytes() []byte { return w.buf }

type recordReader struct {
	data []byte
	pos  int
}

func newRecordReader(data []byte) *recordReader { return &recordReader{data: data} }

func (r *recordReader) done() bool { return r.pos >= len(r.data) }

func (r *recordReader) readString() (string, error) {
	if r.pos+4 > len(r.data) {
		return "", io.ErrUnexpectedEOF
	}
	n := int(binary.BigEndian.Uint32(r.data[r.pos : r.pos+4]))
	r.pos += 4
	if r.pos+n > len(r.data) {
		return "", io.ErrUnexpectedEOF
	}
	s := string(r.data[r.pos : r.pos+n])
	r.pos += n
	return s, nil
}

func (r *recordReader) readByte() (byte, error) {
	if r.pos+1 > len(r.data) {
		return 0, io.ErrUnexpectedEOF
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

func (r *recordReader) readHash() (hash.Hash, error) {
	var h hash.Hash
	if r.pos+hash.Size > len(r.data) {
		return h, io.ErrUnexpectedEOF
	}
	copy(h[:], r.data[r.pos:r.pos+hash.Size])
	r.pos += hash.Size
	return h, nil
}

func (r *recordReader) readInt64() (int64, error) {
	if r.pos+8 > len(r.data) {
		return 0, io.ErrUnexpectedEOF
	}
	v := int64(binary.BigEndian.Uint64(r.data[r.pos : r.pos+8]))
	r.pos += 8
	return v, nil
}
