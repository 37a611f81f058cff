// Package workspace implements a server-side staging area: a named
// overlay rooted at a base commit that accumulates file
// adds/removes/rewrites until committed onto a branch. Grounded on
// AureClai-merkledb's Workspace (an in-memory Tree overlay written
// through an ObjectStore, then folded into a new Commit on Commit()),
// generalized from "write every staged entry into one flat Tree" to
// "apply an overlay on top of an existing Merkle root, reusing
// commitwriter's bottom-up reconstruction" since a workspace's base
// commit already has most of the tree unchanged.
package workspace

import (
	"bytes"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/oxen-go/oxen/internal/chunk"
	"github.com/oxen-go/oxen/internal/commitwriter"
	"github.com/oxen-go/oxen/internal/dataframe"
	"github.com/oxen-go/oxen/internal/dataframe/format"
	"github.com/oxen-go/oxen/internal/hash"
	"github.com/oxen-go/oxen/internal/merkle"
	"github.com/oxen-go/oxen/internal/oxenerr"
	"github.com/oxen-go/oxen/internal/stage"
	"github.com/oxen-go/oxen/internal/store"
)

// overlayEntry is one path's pending change. A Removed entry carries
// no File; Added/Modified entries carry the File node storeBytes
// already constructed (and whose content is already durable in
// VersionStore) when the path was added.
type overlayEntry struct {
	kind stage.ChangeKind
	file *merkle.File
}

// Workspace is a named staging area rooted at BaseCommit. Mutations on
// one Workspace are serialized by its own mutex; independent
// Workspaces never contend with each other.
type Workspace struct {
	ID         string
	BaseCommit hash.Hash
	BranchName string
	Editable   bool

	mu      sync.Mutex
	overlay map[string]overlayEntry
	frames  map[string]*dataframe.Index

	vs      *store.VersionStore
	tree    *merkle.Tree
	writer  *commitwriter.Writer
	cfg     commitwriter.Config
	dataDir string
}

// Status summarizes a workspace's overlay relative to its base commit.
type Status struct {
	Added    []string
	Modified []string
	Removed  []string
}

// Manager owns the set of live workspaces for one repository, keyed by
// id. Workspaces are created on demand and destroyed on commit or
// explicit Delete.
type Manager struct {
	mu         sync.Mutex
	workspaces map[string]*Workspace

	vs      *store.VersionStore
	tree    *merkle.Tree
	writer  *commitwriter.Writer
	cfg     commitwriter.Config
	dataDir string
}

// NewManager wires a Manager against the repository's shared
// VersionStore, read-side Tree, and CommitWriter. dataDir is the root
// under which each workspace gets its own subdirectory for indexed
// data-frame databases; pass "" if this server never indexes tabular
// files, which makes OpenDataFrame fail with
// *oxenerr.UnsupportedError instead of creating files on disk.
func NewManager(vs *store.VersionStore, tree *merkle.Tree, writer *commitwriter.Writer, cfg commitwriter.Config, dataDir string) *Manager {
	return &Manager{
		workspaces: make(map[string]*Workspace),
		vs:         vs,
		tree:       tree,
		writer:     writer,
		cfg:        cfg,
		dataDir:    dataDir,
	}
}

// Create opens a staging area rooted at baseCommit. If id is empty, a
// fresh id is generated. Creating against an id that already exists is
// idempotent and returns the existing workspace untouched (spec
// §4.10's `create` operation), even if its base commit or editable
// flag differ from what was requested — the caller asked for "the
// workspace named id", not "a workspace configured like this".
func (m *Manager) Create(id string, baseCommit hash.Hash, branchName string, editable bool) (*Workspace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id == "" {
		id = uuid.NewString()
	}
	if ws, ok := m.workspaces[id]; ok {
		return ws, nil
	}
	ws := &Workspace{
		ID:         id,
		BaseCommit: baseCommit,
		BranchName: branchName,
		Editable:   editable,
		overlay:    make(map[string]overlayEntry),
		vs:         m.vs,
		tree:       m.tree,
		writer:     m.writer,
		cfg:        m.cfg,
	}
	if m.dataDir != "" {
		ws.dataDir = filepath.Join(m.dataDir, id)
	}
	m.workspaces[id] = ws
	return ws, nil
}

// Get returns an already-created workspace, or *oxenerr.NotFoundError
// if id isn't live.
func (m *Manager) Get(id string) (*Workspace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ws, ok := m.workspaces[id]
	if !ok {
		return nil, &oxenerr.NotFoundError{Kind: "workspace", ID: id}
	}
	return ws, nil
}

// Delete discards a workspace without committing it. Any content it
// wrote to VersionStore is left in place; the gc command's reachability
// audit reports such orphaned chunks (and can archive them), but
// nothing removes them. Any data-frame
// databases it opened are closed; the files themselves are left on
// disk under the workspace's own directory rather than deleted here,
// since removing that tree is an on-disk cleanup concern, not a
// bookkeeping one.
func (m *Manager) Delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ws, ok := m.workspaces[id]; ok {
		ws.mu.Lock()
		for _, idx := range ws.frames {
			idx.Close()
		}
		ws.mu.Unlock()
	}
	delete(m.workspaces, id)
}

// AddFile stages relPath's content, writing it into VersionStore
// immediately (chunked the same way CommitWriter chunks a working-tree
// file) and recording a path→File override in the overlay. The bytes
// are durable the moment AddFile returns; only the tree/commit
// construction is deferred to Commit.
func (w *Workspace) AddFile(relPath string, r io.Reader) error {
	if !w.Editable {
		return &oxenerr.UnsupportedError{Operation: "add_file", Reason: "workspace is not editable"}
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("workspace: read %s: %w", relPath, err)
	}
	file, err := w.storeBytes(relPath, data)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	kind := stage.Added
	if w.existsInBase(relPath) {
		kind = stage.Modified
	}
	w.overlay[relPath] = overlayEntry{kind: kind, file: file}
	return nil
}

// storeBytes chunks and writes data into VersionStore the same way
// CommitWriter's disk-backed BuildFile does, and returns the resulting
// File node. Shared by AddFile (client-supplied bytes) and Commit's
// data-frame re-serialization (bytes produced by Index.Serialize).
func (w *Workspace) storeBytes(relPath string, data []byte) (*merkle.File, error) {
	contentHash := hash.Bytes(data)
	dataType, mimeType, extension := commitwriter.Classify(relPath)

	var chunkHashes []hash.Hash
	if chunk.ShouldChunk(int64(len(data)), w.cfg.ChunkThreshold) {
		fc := chunk.NewFastCDCChunker(0, 0, 0)
		if err := fc.Chunks(bytes.NewReader(data), func(c []byte) error {
			ch := hash.Bytes(c)
			chunkHashes = append(chunkHashes, ch)
			return w.vs.PutHash(ch, c)
		}); err != nil {
			return nil, fmt.Errorf("workspace: chunk %s: %w", relPath, err)
		}
	} else {
		if err := w.vs.PutHash(contentHash, data); err != nil {
			return nil, fmt.Errorf("workspace: store %s: %w", relPath, err)
		}
		chunkHashes = []hash.Hash{contentHash}
	}

	name := path.Base(relPath)
	return merkle.NewFile(name, contentHash, int64(len(data)), chunkHashes, dataType, mimeType, extension, hash.Zero, 0, 0), nil
}

// OpenDataFrame materializes relPath's row-level index rooted at the
// file currently visible in this workspace (its overlay if already
// staged, otherwise the base commit), or returns the already-open
// index for a repeated call.
func (w *Workspace) OpenDataFrame(relPath string) (*dataframe.Index, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if idx, ok := w.frames[relPath]; ok {
		return idx, nil
	}
	if w.dataDir == "" {
		return nil, &oxenerr.UnsupportedError{Operation: "open_data_frame", Reason: "server has no data-frame directory configured"}
	}

	var file *merkle.File
	if e, staged := w.overlay[relPath]; staged && e.file != nil {
		file = e.file
	} else {
		rootDirHash, err := w.rootDirHash()
		if err != nil {
			return nil, err
		}
		entry, err := w.tree.NodeByPath(rootDirHash, relPath)
		if err != nil || entry.Kind != merkle.ChildFile {
			return nil, &oxenerr.NotFoundError{Kind: "path", ID: relPath}
		}
		n, err := w.tree.NodeByHash(merkle.KindFile, entry.Hash)
		if err != nil {
			return nil, err
		}
		f, ok := n.(*merkle.File)
		if !ok {
			return nil, fmt.Errorf("workspace: %s is not a file", relPath)
		}
		file = f
	}

	idx, err := dataframe.Open(filepath.Join(w.dataDir, "dataframes"), relPath, w.vs, file, nil)
	if err != nil {
		return nil, err
	}
	if w.frames == nil {
		w.frames = make(map[string]*dataframe.Index)
	}
	w.frames[relPath] = idx
	return idx, nil
}

// RemoveFile records relPath as a tombstone in the overlay.
func (w *Workspace) RemoveFile(relPath string) error {
	if !w.Editable {
		return &oxenerr.UnsupportedError{Operation: "remove_file", Reason: "workspace is not editable"}
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.existsInBase(relPath) {
		if _, staged := w.overlay[relPath]; !staged {
			return &oxenerr.NotFoundError{Kind: "path", ID: relPath}
		}
	}
	w.overlay[relPath] = overlayEntry{kind: stage.Removed}
	return nil
}

// existsInBase reports whether relPath resolves to a file in the base
// commit's tree. Must be called with w.mu held.
func (w *Workspace) existsInBase(relPath string) bool {
	rootDirHash, err := w.rootDirHash()
	if err != nil {
		return false
	}
	entry, err := w.tree.NodeByPath(rootDirHash, relPath)
	return err == nil && entry.Kind == merkle.ChildFile
}

func (w *Workspace) rootDirHash() (hash.Hash, error) {
	if w.BaseCommit.IsZero() {
		return hash.Zero, nil
	}
	n, err := w.tree.NodeByHash(merkle.KindCommit, w.BaseCommit)
	if err != nil {
		return hash.Zero, err
	}
	commit, ok := n.(*merkle.Commit)
	if !ok {
		return hash.Zero, fmt.Errorf("workspace: %s is not a commit", w.BaseCommit)
	}
	return commit.RootDirHash, nil
}

// Status reports adds/modifies/removes relative to the base commit,
// without mutating anything: the overlay's own staged kind for every
// path it covers, plus any open data-frame index that has pending row
// edits (add/update/delete never touch the overlay, so a path open
// only through OpenDataFrame would otherwise never show up here).
func (w *Workspace) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()

	var st Status
	seen := make(map[string]bool, len(w.overlay)+len(w.frames))
	for relPath, e := range w.overlay {
		seen[relPath] = true
		switch e.kind {
		case stage.Added:
			st.Added = append(st.Added, relPath)
		case stage.Modified:
			st.Modified = append(st.Modified, relPath)
		case stage.Removed:
			st.Removed = append(st.Removed, relPath)
		}
	}
	for relPath, idx := range w.frames {
		if seen[relPath] {
			continue
		}
		dirty, err := idx.IsDirty()
		if err != nil || !dirty {
			continue
		}
		if w.existsInBase(relPath) {
			st.Modified = append(st.Modified, relPath)
		} else {
			st.Added = append(st.Added, relPath)
		}
	}
	sort.Strings(st.Added)
	sort.Strings(st.Modified)
	sort.Strings(st.Removed)
	return st
}

// overlayFileBuilder adapts a Workspace's overlay into
// commitwriter.FileBuilder: every File node it hands back was already
// built (and its content already written to VersionStore) by AddFile
// or by Commit's data-frame serialization, so BuildFile is a pure
// lookup, never a disk read.
type overlayFileBuilder struct {
	overlay map[string]overlayEntry
}

func (b overlayFileBuilder) BuildFile(relPath, _ string) (*merkle.File, error) {
	e, ok := b.overlay[relPath]
	if !ok || e.file == nil {
		return nil, fmt.Errorf("workspace: no staged content for %s", relPath)
	}
	return e.file, nil
}

// Result reports the outcome of a successful Commit.
type Result struct {
	Commit *merkle.Commit
}

// Commit applies the overlay onto the base commit's root exactly as
// CommitWriter would and advances targetBranch under CAS. On success
// the caller must remove the workspace via Manager.Delete — a commit
// destroys the workspace, but Commit itself has no back-reference to
// the Manager that created it, so it cannot do this on its own. If
// targetBranch has moved past BaseCommit since the workspace was
// created, the CAS fails and Commit surfaces
// *oxenerr.WorkspaceBehindError instead of CommitWriter's generic
// BranchAdvancedError — the caller must recreate the workspace against
// the new tip and re-apply its changes; this rebase is explicit, never
// automatic.
func (w *Workspace) Commit(targetBranch, message, author, email string, timestampS int64) (*Result, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	combined := make(map[string]overlayEntry, len(w.overlay)+len(w.frames))
	for relPath, e := range w.overlay {
		combined[relPath] = e
	}

	// A workspace's indexed frames are the authoritative content for
	// their path: serialize each one's current logical view back to
	// its native format and let that override whatever the overlay
	// holds for the same path.
	for relPath, idx := range w.frames {
		table, err := idx.Serialize()
		if err != nil {
			return nil, fmt.Errorf("workspace: serialize data frame %s: %w", relPath, err)
		}
		codec, err := format.ForExtension(strings.TrimPrefix(filepath.Ext(relPath), "."))
		if err != nil {
			return nil, err
		}
		data, err := codec.Encode(table)
		if err != nil {
			return nil, fmt.Errorf("workspace: encode data frame %s: %w", relPath, err)
		}
		file, err := w.storeBytes(relPath, data)
		if err != nil {
			return nil, err
		}
		kind := stage.Modified
		if !w.existsInBase(relPath) {
			kind = stage.Added
		}
		combined[relPath] = overlayEntry{kind: kind, file: file}
	}

	if len(combined) == 0 {
		return nil, fmt.Errorf("workspace: nothing staged")
	}

	entries := make([]stage.Entry, 0, len(combined))
	for relPath, e := range combined {
		h := hash.Zero
		if e.file != nil {
			h = e.file.ContentHash
		}
		entries = append(entries, stage.Entry{Path: relPath, Kind: e.kind, Hash: h})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })

	rootDirHash, err := w.rootDirHash()
	if err != nil {
		return nil, err
	}

	result, err := w.writer.CommitEntries(entries, overlayFileBuilder{overlay: combined}, w.BaseCommit, rootDirHash, targetBranch, message, author, email, timestampS)
	if err != nil {
		if advanced, ok := err.(*oxenerr.BranchAdvancedError); ok {
			return nil, &oxenerr.WorkspaceBehindError{
				WorkspaceID:  w.ID,
				BaseCommit:   w.BaseCommit.String(),
				CurrentTip:   advanced.Actual,
				TargetBranch: targetBranch,
			}
		}
		return nil, err
	}
	return &Result{Commit: result.Commit}, nil
}
