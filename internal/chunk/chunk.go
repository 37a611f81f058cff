// Package chunk splits file content into content-addressed pieces for
// the VersionStore. Two strategies are provided: fixed-size slicing
// for small or non-seekable inputs, and FastCDC content-defined
// chunking for large files, so that localized edits produce mostly
// unchanged chunk sets and dedup actually wins.
package chunk

import "io"

// DefaultWholeFileThreshold is the default file-size cutoff below
// which a file is stored whole rather than chunked.
const DefaultWholeFileThreshold = 4 * 1024 * 1024 // 4 MiB

// Chunker splits the bytes read from r into content-defined or
// fixed-size pieces, in file order. The sum of returned chunk lengths
// always equals the total bytes read from r.
type Chunker interface {
	// Chunks reads r to completion and invokes emit once per chunk, in
	// file order. emit must not retain the slice past the call.
	Chunks(r io.Reader, emit func(chunk []byte) error) error
}

// ShouldChunk reports whether a file of the given size should be
// chunked (true) or stored as a single whole-file blob (false), per
// the per-repo threshold.
func ShouldChunk(size int64, threshold int64) bool {
	if threshold <= 0 {
		threshold = DefaultWholeFileThreshold
	}
	return size > threshold
}
