package chunk

import (
	"io"
	"math/bits"
)

// FastCDCChunker implements content-defined chunking in the style of
// FastCDC (Xia et al.), normalized-chunking variant: a rolling Gear
// hash is compared against a mask that tightens as the window
// approaches MaxSize, biasing boundaries toward AvgSize while still
// letting a strong match cut early or late. Unlike fixed-size
// chunking, a localized single-byte edit shifts at most the chunks
// touching the edit; everything before and after the edit's boundary
// run still cuts identically, which is what makes dedup effective.
//
// This mirrors the shape of oxen-rust's FastCDChunker (dedup/src/chunker/fastcdchunker.rs),
// which wraps the `fastcdc` crate's v2020 algorithm with
// (min, avg, max) bounds; there is no equivalent Go library in the
// retrieved pack or a full pack repo, so the gear-hash boundary
// detector is implemented directly from the published algorithm.
type FastCDCChunker struct {
	MinSize int
	AvgSize int
	MaxSize int

	maskS uint64 // stricter mask, used before the midpoint
	maskL uint64 // looser mask, used after the midpoint
}

// NewFastCDCChunker returns a chunker with the given bounds. avgSize
// must be a reasonable power-of-two-ish target; minSize and maxSize
// bound the produced chunk sizes.
func NewFastCDCChunker(minSize, avgSize, maxSize int) *FastCDCChunker {
	if minSize <= 0 {
		minSize = 2 * 1024 * 1024
	}
	if avgSize <= 0 {
		avgSize = 4 * 1024 * 1024
	}
	if maxSize <= 0 {
		maxSize = 8 * 1024 * 1024
	}
	bitsForAvg := bits.Len(uint(avgSize)) - 1
	if bitsForAvg < 4 {
		bitsForAvg = 4
	}
	return &FastCDCChunker{
		MinSize: minSize,
		AvgSize: avgSize,
		MaxSize: maxSize,
		maskS:   maskOfOnes(bitsForAvg + 1),
		maskL:   maskOfOnes(bitsForAvg - 1),
	}
}

func maskOfOnes(n int) uint64 {
	if n <= 0 {
		return 0
	}
	if n >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << uint(n)) - 1
}

// Chunks reads all of r into memory (FastCDC needs to look ahead to
// find boundaries, and the per-repo whole-file threshold already
// bounds how large an input this sees in practice) and emits each
// content-defined chunk as it's cut.
func (c *FastCDCChunker) Chunks(r io.Reader, emit func([]byte) error) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	n := len(data)
	if n == 0 {
		return nil
	}

	start := 0
	for start < n {
		end := c.cutPoint(data[start:])
		chunk := data[start : start+end]
		if err := emit(chunk); err != nil {
			return err
		}
		start += end
	}
	return nil
}

// cutPoint finds the boundary offset (relative to data[0]) for the
// next chunk within data, applying the min/avg/max bounds.
func (c *FastCDCChunker) cutPoint(data []byte) int {
	n := len(data)
	if n <= c.MinSize {
		return n
	}
	maxLen := c.MaxSize
	if maxLen > n {
		maxLen = n
	}
	midpoint := c.AvgSize
	if midpoint > maxLen {
		midpoint = maxLen
	}

	var hash uint64
	i := c.MinSize
	for ; i < midpoint; i++ {
		hash = (hash << 1) + gearTable[data[i]]
		if hash&c.maskS == 0 {
			return i + 1
		}
	}
	for ; i < maxLen; i++ {
		hash = (hash << 1) + gearTable[data[i]]
		if hash&c.maskL == 0 {
			return i + 1
		}
	}
	return maxLen
}

// gearTable is a fixed table of pseudo-random 64-bit values used by
// the Gear rolling hash. It must be identical across every process
// computing chunk boundaries so that two repositories chunking the
// same bytes produce the same chunk set; it is generated once via a
// deterministic SplitMix64 sequence rather than relying on any
// platform or library RNG.
var gearTable = func() [256]uint64 {
	var table [256]uint64
	state := uint64(0x9e3779b97f4a7c15)
	for i := range table {
		state += 0x9e3779b97f4a7c15
		z := state
		z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
		z = (z ^ (z >> 27)) * 0x94d049bb133111eb
		z = z ^ (z >> 31)
		table[i] = z
	}
	return table
}()
