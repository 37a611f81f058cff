// Package store implements the VersionStore: a content-addressed blob
// store keyed by Hash, with a swappable backend (local filesystem
// today; object storage is a Backend implementation away) and support
// for chunked, resumable uploads.
package store

import (
	"bytes"
	"io"
	"sort"

	"github.com/oxen-go/oxen/internal/hash"
)

// Backend is the storage abstraction VersionStore drives. A Backend
// does not know about Merkle nodes or chunks above the byte level; it
// only knows hashes and bytes.
type Backend interface {
	// Put writes bytes under hash h. Idempotent: writing a hash that
	// already exists must succeed without rewriting, and concurrent
	// writers racing on the same hash must both observe the object
	// present and correctly hashing afterward.
	Put(h hash.Hash, r io.Reader) error
	// Get opens a reader over the bytes stored under h.
	Get(h hash.Hash) (io.ReadCloser, error)
	// Exists reports whether h is present.
	Exists(h hash.Hash) (bool, error)
	// Delete removes h. Maintenance-only; not used by core sync paths.
	Delete(h hash.Hash) error
	// List enumerates every hash present in the store.
	List() ([]hash.Hash, error)

	// PutChunk stores chunk number n of a resumable upload targeting
	// the eventual object hash target.
	PutChunk(target hash.Hash, n int, r io.Reader) error
	// ListChunks returns the chunk numbers already staged for target,
	// in no particular order.
	ListChunks(target hash.Hash) ([]int, error)
	// FinalizeChunks concatenates the staged chunks for target in
	// numeric order into the final object, verifies the concatenation
	// hashes to target, and returns the final on-disk path (backend
	// specific; callers that don't need a path may ignore it).
	// If cleanup is true, the staged chunk parts are removed after a
	// successful finalize.
	FinalizeChunks(target hash.Hash, cleanup bool) (string, error)
}

// VersionStore is the content-addressed blob store used by every
// caller above the backend boundary. It adds hash computation and
// chunk-set bookkeeping on top of a raw Backend.
type VersionStore struct {
	backend Backend
}

// New wraps a Backend as a VersionStore.
func New(backend Backend) *VersionStore {
	return &VersionStore{backend: backend}
}

// Put stores b under its own content hash and returns that hash.
func (vs *VersionStore) Put(b []byte) (hash.Hash, error) {
	h := hash.Bytes(b)
	if err := vs.PutHash(h, b); err != nil {
		return hash.Hash{}, err
	}
	return h, nil
}

// PutHash stores b under the caller-supplied hash h without
// recomputing it. Callers must only use this when h is already known
// to be correct (e.g. chunk hashes computed once during chunking).
func (vs *VersionStore) PutHash(h hash.Hash, b []byte) error {
	return vs.backend.Put(h, bytes.NewReader(b))
}

// Get reads back the full bytes stored under h.
func (vs *VersionStore) Get(h hash.Hash) ([]byte, error) {
	r, err := vs.Open(h)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// Open streams the bytes stored under h.
func (vs *VersionStore) Open(h hash.Hash) (io.ReadCloser, error) {
	return vs.backend.Get(h)
}

// Exists reports whether h is present in the store.
func (vs *VersionStore) Exists(h hash.Hash) (bool, error) {
	return vs.backend.Exists(h)
}

// Delete removes h. Maintenance-only.
func (vs *VersionStore) Delete(h hash.Hash) error {
	return vs.backend.Delete(h)
}

// List enumerates every hash present.
func (vs *VersionStore) List() ([]hash.Hash, error) {
	return vs.backend.List()
}

// PutChunk stores one numbered part of a resumable upload targeting
// the final object hash target.
func (vs *VersionStore) PutChunk(target hash.Hash, n int, b []byte) error {
	return vs.backend.PutChunk(target, n, bytes.NewReader(b))
}

// ListChunks returns the sorted chunk numbers already staged for target.
func (vs *VersionStore) ListChunks(target hash.Hash) ([]int, error) {
	ns, err := vs.backend.ListChunks(target)
	if err != nil {
		return nil, err
	}
	sort.Ints(ns)
	return ns, nil
}

// Finalize concatenates the staged chunks for target, verifies the
// result hashes to target, and optionally removes the staged parts.
func (vs *VersionStore) Finalize(target hash.Hash, cleanupChunks bool) (string, error) {
	return vs.backend.FinalizeChunks(target, cleanupChunks)
}
