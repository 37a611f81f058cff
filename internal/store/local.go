package store

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/oxen-go/oxen/internal/hash"
	"github.com/oxen-go/oxen/internal/oxenerr"
)

// LocalBackend stores objects on the local filesystem under a root
// directory, sharded into two levels of two-hex-digit subdirectories
// (xx/yy/<hash>) so that no single directory accumulates more entries
// than the filesystem handles comfortably. This mirrors the
// GetObjectPath convention, generalized from a single-level SHA-256
// shard to a two-level split.
//
// Objects are stored zstd-compressed on disk; Get transparently
// decompresses.
type LocalBackend struct {
	root string

	mu       sync.Mutex
	encoders *zstd.Encoder
	decoder  *zstd.Decoder
}

const stagingDirName = "staging"

// NewLocalBackend opens (creating if necessary) a LocalBackend rooted
// at dir.
func NewLocalBackend(dir string) (*LocalBackend, error) {
	if err := os.MkdirAll(filepath.Join(dir, stagingDirName), 0o755); err != nil {
		return nil, fmt.Errorf("store: create root %s: %w", dir, err)
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("store: init zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("store: init zstd decoder: %w", err)
	}
	return &LocalBackend{root: dir, encoders: enc, decoder: dec}, nil
}

func (b *LocalBackend) pathFor(h hash.Hash) string {
	s := h.String()
	return filepath.Join(b.root, s[0:2], s[2:4], s)
}

// Put writes r's bytes under h atomically: compress to a temp file in
// the same shard directory, then rename into place. A concurrent write
// to the same hash racing with this one is harmless since both writers
// are writing bit-identical content (the hash guarantees it) and the
// rename is atomic.
func (b *LocalBackend) Put(h hash.Hash, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("store: read input for %s: %w", h, err)
	}
	return b.putBytes(h, data)
}

func (b *LocalBackend) putBytes(h hash.Hash, data []byte) error {
	path := b.pathFor(h)
	if _, err := os.Stat(path); err == nil {
		return nil // idempotent: already present
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("store: create shard dir for %s: %w", h, err)
	}

	b.mu.Lock()
	compressed := b.encoders.EncodeAll(data, nil)
	b.mu.Unlock()

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("store: create temp file for %s: %w", h, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(compressed); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("store: write temp file for %s: %w", h, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("store: close temp file for %s: %w", h, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("store: rename into place for %s: %w", h, err)
	}
	return nil
}

// Get opens a reader over the decompressed bytes stored under h.
func (b *LocalBackend) Get(h hash.Hash) (io.ReadCloser, error) {
	raw, err := os.ReadFile(b.pathFor(h))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &oxenerr.NotFoundError{Kind: "object", ID: h.String()}
		}
		return nil, fmt.Errorf("store: read %s: %w", h, err)
	}
	b.mu.Lock()
	data, err := b.decoder.DecodeAll(raw, nil)
	b.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("store: decompress %s: %w", h, err)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Exists reports whether h is present on disk.
func (b *LocalBackend) Exists(h hash.Hash) (bool, error) {
	_, err := os.Stat(b.pathFor(h))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// Delete removes h from disk. Maintenance-only; never called by the
// core commit/sync paths — nodes/chunks are retained indefinitely.
func (b *LocalBackend) Delete(h hash.Hash) error {
	err := os.Remove(b.pathFor(h))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("store: delete %s: %w", h, err)
	}
	return nil
}

// List walks the shard tree and returns every stored hash.
func (b *LocalBackend) List() ([]hash.Hash, error) {
	var hashes []hash.Hash
	err := filepath.WalkDir(b.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, _ := filepath.Rel(b.root, path)
		if strings.HasPrefix(rel, stagingDirName+string(filepath.Separator)) {
			return nil
		}
		name := filepath.Base(path)
		h, perr := hash.Parse(name)
		if perr != nil {
			return nil // skip non-object files (temp files etc.)
		}
		hashes = append(hashes, h)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
	}
	return hashes, nil
}

func (b *LocalBackend) stagingDir(target hash.Hash) string {
	return filepath.Join(b.root, stagingDirName, target.String())
}

// PutChunk stores chunk number n of an in-progress resumable upload
// targeting the final object hash target.
func (b *LocalBackend) PutChunk(target hash.Hash, n int, r io.Reader) error {
	dir := b.stagingDir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("store: create staging dir for %s: %w", target, err)
	}
	path := filepath.Join(dir, strconv.Itoa(n))
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("store: create chunk part %d for %s: %w", n, target, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("store: write chunk part %d for %s: %w", n, target, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// ListChunks returns the chunk numbers already staged for target.
func (b *LocalBackend) ListChunks(target hash.Hash) ([]int, error) {
	entries, err := os.ReadDir(b.stagingDir(target))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: list chunks for %s: %w", target, err)
	}
	var nums []int
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			continue
		}
		n, err := strconv.Atoi(e.Name())
		if err != nil {
			continue
		}
		nums = append(nums, n)
	}
	sort.Ints(nums)
	return nums, nil
}

// FinalizeChunks concatenates the staged parts for target in numeric
// order, verifies the concatenation hashes to target, and commits the
// result into the main object store. On hash mismatch it returns
// *oxenerr.HashMismatchError and leaves the staged parts untouched so
// the caller can inspect or retry.
func (b *LocalBackend) FinalizeChunks(target hash.Hash, cleanup bool) (string, error) {
	nums, err := b.ListChunks(target)
	if err != nil {
		return "", err
	}
	dir := b.stagingDir(target)

	var all []byte
	for _, n := range nums {
		data, err := os.ReadFile(filepath.Join(dir, strconv.Itoa(n)))
		if err != nil {
			return "", fmt.Errorf("store: read chunk part %d for %s: %w", n, target, err)
		}
		all = append(all, data...)
	}

	actual := hash.Bytes(all)
	if actual != target {
		return "", &oxenerr.HashMismatchError{Expected: target.String(), Actual: actual.String()}
	}

	if err := b.putBytes(target, all); err != nil {
		return "", err
	}

	if cleanup {
		os.RemoveAll(dir)
	}
	return b.pathFor(target), nil
}
