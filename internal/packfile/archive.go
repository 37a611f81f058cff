// Package packfile bundles infrequently-read VersionStore chunk blobs
// into a single archive file, trading one-file-per-hash loose storage
// for one file per archive pass on repositories with very large chunk
// counts. Grounded on the teacher's packfile creator/index split
// (fixed header, concatenated object bodies, trailing index of
// offsets) retargeted from git objects onto content-hash chunks; the
// teacher's delta-compression and git packfile parsing are dropped
// (chunks are already content-defined and deduplicated, so delta-
// against-previous-version encoding would fight the chunker's own
// dedup — see DESIGN.md).
package packfile

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/oxen-go/oxen/internal/hash"
	"github.com/oxen-go/oxen/internal/oxenerr"
)

const (
	magic         = "OXPK"
	formatVersion = uint32(1)
	headerSize    = 12
	entrySize     = 32 // hash.Size(16) + offset(8) + size(8)
	footerSize    = 16 // index offset(8) + entry count(8)
)

// Entry locates one bundled chunk's bytes within an archive file.
type Entry struct {
	Hash   hash.Hash
	Offset uint64
	Size   uint64
}

// Write bundles the chunks named by hashes, fetched one at a time
// through get, into a new archive file at path. get is typically
// (*store.VersionStore).Get; taking a function instead of the store
// type directly keeps this package ignorant of VersionStore's
// chunk-vs-whole-blob distinction.
func Write(path string, hashes []hash.Hash, get func(hash.Hash) ([]byte, error)) ([]Entry, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("packfile: create %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	header := make([]byte, headerSize)
	copy(header[:4], magic)
	binary.BigEndian.PutUint32(header[4:8], formatVersion)
	binary.BigEndian.PutUint32(header[8:12], uint32(len(hashes)))
	if _, err := w.Write(header); err != nil {
		return nil, err
	}

	offset := uint64(headerSize)
	entries := make([]Entry, 0, len(hashes))
	for _, h := range hashes {
		data, err := get(h)
		if err != nil {
			return nil, fmt.Errorf("packfile: read %s: %w", h, err)
		}
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("packfile: write %s: %w", h, err)
		}
		entries = append(entries, Entry{Hash: h, Offset: offset, Size: uint64(len(data))})
		offset += uint64(len(data))
	}

	indexOffset := offset
	for _, e := range entries {
		var buf [entrySize]byte
		copy(buf[:16], e.Hash[:])
		binary.BigEndian.PutUint64(buf[16:24], e.Offset)
		binary.BigEndian.PutUint64(buf[24:32], e.Size)
		if _, err := w.Write(buf[:]); err != nil {
			return nil, err
		}
	}

	var footer [footerSize]byte
	binary.BigEndian.PutUint64(footer[:8], indexOffset)
	binary.BigEndian.PutUint64(footer[8:16], uint64(len(entries)))
	if _, err := w.Write(footer[:]); err != nil {
		return nil, err
	}

	if err := w.Flush(); err != nil {
		return nil, err
	}
	return entries, nil
}

// Reader holds an open archive's index in memory and serves individual
// chunks by seeking into the underlying file.
type Reader struct {
	f       *os.File
	entries map[hash.Hash]Entry
}

// Open reads path's trailing index into memory and keeps the file open
// for subsequent Get calls.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("packfile: open %s: %w", path, err)
	}

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if stat.Size() < headerSize+footerSize {
		f.Close()
		return nil, fmt.Errorf("packfile: %s is too small to be an archive", path)
	}

	header := make([]byte, headerSize)
	if _, err := f.ReadAt(header, 0); err != nil {
		f.Close()
		return nil, fmt.Errorf("packfile: read header: %w", err)
	}
	if string(header[:4]) != magic {
		f.Close()
		return nil, fmt.Errorf("packfile: %s is not an oxen archive", path)
	}
	if v := binary.BigEndian.Uint32(header[4:8]); v != formatVersion {
		f.Close()
		return nil, &oxenerr.MigrationRequiredError{Component: "packfile", FoundVersion: int(v), ExpectVersion: int(formatVersion)}
	}

	footer := make([]byte, footerSize)
	if _, err := f.ReadAt(footer, stat.Size()-footerSize); err != nil {
		f.Close()
		return nil, fmt.Errorf("packfile: read footer: %w", err)
	}
	indexOffset := binary.BigEndian.Uint64(footer[:8])
	count := binary.BigEndian.Uint64(footer[8:16])

	indexBuf := make([]byte, count*entrySize)
	if count > 0 {
		if _, err := f.ReadAt(indexBuf, int64(indexOffset)); err != nil {
			f.Close()
			return nil, fmt.Errorf("packfile: read index: %w", err)
		}
	}

	entries := make(map[hash.Hash]Entry, count)
	for i := uint64(0); i < count; i++ {
		b := indexBuf[i*entrySize : (i+1)*entrySize]
		var h hash.Hash
		copy(h[:], b[:16])
		entries[h] = Entry{
			Hash:   h,
			Offset: binary.BigEndian.Uint64(b[16:24]),
			Size:   binary.BigEndian.Uint64(b[24:32]),
		}
	}

	return &Reader{f: f, entries: entries}, nil
}

// Has reports whether h is bundled in this archive.
func (r *Reader) Has(h hash.Hash) bool {
	_, ok := r.entries[h]
	return ok
}

// Get returns h's bytes, read from the archive file at its recorded offset.
func (r *Reader) Get(h hash.Hash) ([]byte, error) {
	e, ok := r.entries[h]
	if !ok {
		return nil, &oxenerr.NotFoundError{Kind: "archived chunk", ID: h.String()}
	}
	buf := make([]byte, e.Size)
	if _, err := r.f.ReadAt(buf, int64(e.Offset)); err != nil {
		return nil, fmt.Errorf("packfile: read %s: %w", h, err)
	}
	return buf, nil
}

// Hashes returns every hash bundled in this archive, in no particular order.
func (r *Reader) Hashes() []hash.Hash {
	out := make([]hash.Hash, 0, len(r.entries))
	for h := range r.entries {
		out = append(out, h)
	}
	return out
}

// Close releases the underlying file handle.
func (r *Reader) Close() error {
	return r.f.Close()
}
