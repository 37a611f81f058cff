package merge

import (
	"fmt"
	"path"
	"strings"

	"github.com/oxen-go/oxen/internal/chunk"
	"github.com/oxen-go/oxen/internal/commitwriter"
	"github.com/oxen-go/oxen/internal/dataframe"
	"github.com/oxen-go/oxen/internal/hash"
	"github.com/oxen-go/oxen/internal/merkle"
	"github.com/oxen-go/oxen/internal/oxenerr"
)

// mergeFile three-way merges a single file that both sides changed
// (baseHash is the zero hash if both sides added it fresh, with no
// common ancestor version). Tabular files merge row by row; everything
// else merges as text via diffmatchpatch, falling back to a single
// whole-file conflict when the patch doesn't apply cleanly or either
// side's content is binary. Returns nil with the conflict appended
// when the file can't be auto-merged.
func (e *Engine) mergeFile(relPath string, baseHash, ourHash, theirHash hash.Hash) (*merkle.File, []oxenerr.Conflict, error) {
	ourFile, err := e.loadFile(ourHash)
	if err != nil {
		return nil, nil, err
	}
	theirFile, err := e.loadFile(theirHash)
	if err != nil {
		return nil, nil, err
	}
	var baseFile *merkle.File
	if !baseHash.IsZero() {
		baseFile, err = e.loadFile(baseHash)
		if err != nil {
			return nil, nil, err
		}
	}

	ourBytes, err := dataframe.ReadFileBytes(e.vs, ourFile)
	if err != nil {
		return nil, nil, err
	}
	theirBytes, err := dataframe.ReadFileBytes(e.vs, theirFile)
	if err != nil {
		return nil, nil, err
	}
	var baseBytes []byte
	if baseFile != nil {
		baseBytes, err = dataframe.ReadFileBytes(e.vs, baseFile)
		if err != nil {
			return nil, nil, err
		}
	}

	dataType, _, ext := commitwriter.Classify(relPath)

	var merged []byte
	var conflict *oxenerr.Conflict
	if dataType == "tabular" {
		merged, conflict, err = e.mergeTabular(relPath, ext, baseBytes, ourBytes, theirBytes)
	} else {
		merged, conflict = mergeText(baseBytes, ourBytes, theirBytes)
		if conflict != nil {
			conflict.Path = relPath
		}
	}
	if err != nil {
		return nil, nil, err
	}
	if conflict != nil {
		return nil, []oxenerr.Conflict{*conflict}, nil
	}

	name := path.Base(relPath)
	file, err := e.buildFile(relPath, name, merged)
	if err != nil {
		return nil, nil, err
	}
	return file, nil, nil
}

// buildFile stores data in VersionStore (chunking it if it exceeds the
// configured threshold, same as commitwriter.Writer.BuildFile does for
// a file read straight off disk) and returns its File node.
func (e *Engine) buildFile(relPath, name string, data []byte) (*merkle.File, error) {
	contentHash := hash.Bytes(data)
	dataType, mimeType, extension := commitwriter.Classify(relPath)

	var chunkHashes []hash.Hash
	if chunk.ShouldChunk(int64(len(data)), e.cfg.ChunkThreshold) {
		fc := chunk.NewFastCDCChunker(0, 0, 0)
		err := fc.Chunks(strings.NewReader(string(data)), func(c []byte) error {
			ch := hash.Bytes(c)
			chunkHashes = append(chunkHashes, ch)
			return e.vs.PutHash(ch, c)
		})
		if err != nil {
			return nil, fmt.Errorf("merge: chunk %s: %w", relPath, err)
		}
	} else {
		if err := e.vs.PutHash(contentHash, data); err != nil {
			return nil, fmt.Errorf("merge: store %s: %w", relPath, err)
		}
		chunkHashes = []hash.Hash{contentHash}
	}

	file := merkle.NewFile(name, contentHash, int64(len(data)), chunkHashes, dataType, mimeType, extension, hash.Zero, 0, 0)
	if err := e.nodes.Put(file); err != nil {
		return nil, fmt.Errorf("merge: write file node: %w", err)
	}
	return file, nil
}
