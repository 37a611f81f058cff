package merkle

import (
	"strconv"

	"github.com/oxen-go/oxen/internal/hash"
)

// File is a tracked file's node. ContentHash is the hash of the
// reconstructed file bytes (concat(chunks) -> ContentHash, or the sole
// chunk hash itself when the file isn't split) — the same value
// VersionStore addresses the blob or chunk set under. FileHash, the
// node's own Merkle identity, additionally covers name and metadata
// the same way Dir's hash covers more than any single child, so two
// differently-named files sharing byte-identical content don't
// collide in MerkleNodeDB (only their ContentHash and chunk bytes are
// shared there; their File nodes remain distinct).
type File struct {
	FileHash       hash.Hash
	Name           string
	ContentHash    hash.Hash
	NumBytes       int64
	ChunkHashes    []hash.Hash
	DataType       string
	MimeType       string
	Extension      string
	LastCommitID   hash.Hash
	LastModifiedS  int64
	LastModifiedNS int64
}

// NewFile builds a File node and computes its hash. contentHash is the
// whole-file content hash (the hash is over the raw file
// bytes): for an unchunked file it equals chunkHashes[0]; for a
// chunked file it's the hash of the full concatenation, verified by
// CommitWriter/SyncEngine against VersionStore.Finalize's result.
func NewFile(name string, contentHash hash.Hash, numBytes int64, chunkHashes []hash.Hash, dataType, mimeType, extension string, lastCommitID hash.Hash, lastModS, lastModNS int64) *File {
	f := &File{
		Name:           name,
		ContentHash:    contentHash,
		NumBytes:       numBytes,
		ChunkHashes:    append([]hash.Hash(nil), chunkHashes...),
		DataType:       dataType,
		MimeType:       mimeType,
		Extension:      extension,
		LastCommitID:   lastCommitID,
		LastModifiedS:  lastModS,
		LastModifiedNS: lastModNS,
	}
	f.FileHash = f.computeHash()
	return f
}

// computeHash covers the byte-reconstructing fields (content hash,
// size, chunk sequence) plus the type metadata a reader needs without
// opening the content. LastCommitID/LastModified are descriptive only
// and do not participate, mirroring Dir's treatment of its own
// metadata fields.
func (f *File) computeHash() hash.Hash {
	fields := []hash.Field{
		hash.StringField("name", f.Name),
		hash.HashField("content_hash", f.ContentHash),
		hash.Int64Field("num_bytes", f.NumBytes),
		hash.StringField("data_type", f.DataType),
		hash.StringField("mime_type", f.MimeType),
		hash.StringField("extension", f.Extension),
	}
	for i, ch := range f.ChunkHashes {
		fields = append(fields, hash.HashField(fmtChunkName(i), ch))
	}
	return hash.Record(fields...)
}

func fmtChunkName(i int) string {
	return "chunk_" + strconv.Itoa(i)
}

func (f *File) Hash() hash.Hash { return f.FileHash }
func (f *File) Kind() Kind      { return KindFile }

// IsChunked reports whether the file's content is split across more
// than one chunk in the VersionStore.
func (f *File) IsChunked() bool { return len(f.ChunkHashes) > 1 }

func (f *File) Encode() []byte {
	e := &encoder{}
	e.writeHash(f.FileHash)
	e.writeString(f.Name)
	e.writeHash(f.ContentHash)
	e.writeInt64(f.NumBytes)
	e.writeString(f.DataType)
	e.writeString(f.MimeType)
	e.writeString(f.Extension)
	e.writeHash(f.LastCommitID)
	e.writeInt64(f.LastModifiedS)
	e.writeInt64(f.LastModifiedNS)
	e.writeUint32(uint32(len(f.ChunkHashes)))
	for _, ch := range f.ChunkHashes {
		e.writeHash(ch)
	}
	return envelope(KindFile, e.bytes())
}

func decodeFile(version byte, body []byte) (*File, error) {
	_ = version
	d := newDecoder(body)
	f := &File{}
	var err error
	if f.FileHash, err = d.readHash(); err != nil {
		return nil, err
	}
	if f.Name, err = d.readString(); err != nil {
		return nil, err
	}
	if f.ContentHash, err = d.readHash(); err != nil {
		return nil, err
	}
	if f.NumBytes, err = d.readInt64(); err != nil {
		return nil, err
	}
	if f.DataType, err = d.readString(); err != nil {
		return nil, err
	}
	if f.MimeType, err = d.readString(); err != nil {
		return nil, err
	}
	if f.Extension, err = d.readString(); err != nil {
		return nil, err
	}
	if f.LastCommitID, err = d.readHash(); err != nil {
		return nil, err
	}
	if f.LastModifiedS, err = d.readInt64(); err != nil {
		return nil, err
	}
	if f.LastModifiedNS, err = d.readInt64(); err != nil {
		return nil, err
	}
	count, err := d.readUint32()
	if err != nil {
		return nil, err
	}
	f.ChunkHashes = make([]hash.Hash, count)
	for i := range f.ChunkHashes {
		if f.ChunkHashes[i], err = d.readHash(); err != nil {
			return nil, err
		}
	}
	return f, nil
}
