package chunk_test

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/oxen-go/oxen/internal/chunk"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, c chunk.Chunker, data []byte) [][]byte {
	t.Helper()
	var chunks [][]byte
	err := c.Chunks(bytes.NewReader(data), func(b []byte) error {
		cp := make([]byte, len(b))
		copy(cp, b)
		chunks = append(chunks, cp)
		return nil
	})
	require.NoError(t, err)
	return chunks
}

func totalLen(chunks [][]byte) int {
	n := 0
	for _, c := range chunks {
		n += len(c)
	}
	return n
}

func TestFixedChunkerSumsToInputSize(t *testing.T) {
	data := bytes.Repeat([]byte{0xAB}, 10*1024+7)
	c := chunk.NewFixedChunker(4096)
	chunks := collect(t, c, data)
	require.Equal(t, len(data), totalLen(chunks))
	require.Equal(t, 4096, len(chunks[0]))
}

func TestFixedChunkerExactBoundary(t *testing.T) {
	data := bytes.Repeat([]byte{0x01}, 4096)
	c := chunk.NewFixedChunker(4096)
	chunks := collect(t, c, data)
	require.Len(t, chunks, 1)
	require.Len(t, chunks[0], 4096)
}

func TestFastCDCSumsToInputSize(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	data := make([]byte, 12*1024*1024)
	rng.Read(data)

	c := chunk.NewFastCDCChunker(256*1024, 1024*1024, 4*1024*1024)
	chunks := collect(t, c, data)
	require.Equal(t, len(data), totalLen(chunks))
	for _, ch := range chunks[:len(chunks)-1] {
		require.GreaterOrEqual(t, len(ch), 256*1024)
		require.LessOrEqual(t, len(ch), 4*1024*1024)
	}
}

func TestFastCDCDeterministic(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	data := make([]byte, 3*1024*1024)
	rng.Read(data)

	c1 := chunk.NewFastCDCChunker(128*1024, 512*1024, 2*1024*1024)
	c2 := chunk.NewFastCDCChunker(128*1024, 512*1024, 2*1024*1024)
	a := collect(t, c1, data)
	b := collect(t, c2, data)
	require.Equal(t, len(a), len(b))
	for i := range a {
		require.True(t, bytes.Equal(a[i], b[i]))
	}
}

func TestFastCDCLocalizedEditPreservesMostChunks(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	data := make([]byte, 6*1024*1024)
	rng.Read(data)

	c := chunk.NewFastCDCChunker(128*1024, 512*1024, 2*1024*1024)
	before := collect(t, c, data)

	edited := make([]byte, len(data))
	copy(edited, data)
	edited[0] ^= 0xFF
	after := collect(t, c, edited)

	beforeSet := map[string]bool{}
	for _, ch := range before {
		beforeSet[string(ch)] = true
	}
	unchanged := 0
	for _, ch := range after {
		if beforeSet[string(ch)] {
			unchanged++
		}
	}
	require.GreaterOrEqual(t, unchanged, len(before)-2, "a 1-byte edit should only perturb a small, bounded number of chunks")
}

func TestEmptyInputProducesNoChunks(t *testing.T) {
	c := chunk.NewFastCDCChunker(128*1024, 512*1024, 2*1024*1024)
	chunks := collect(t, c, nil)
	require.Empty(t, chunks)
}

func TestShouldChunk(t *testing.T) {
	require.False(t, chunk.ShouldChunk(1024, chunk.DefaultWholeFileThreshold))
	require.True(t, chunk.ShouldChunk(5*1024*1024, chunk.DefaultWholeFileThreshold))
}
