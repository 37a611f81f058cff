package merkle

import (
	"sort"

	"github.com/oxen-go/oxen/internal/hash"
)

// ChildKind distinguishes what a Dir's entry points at. VNode is
// transparent to path-based lookups (see Tree.Children) but is a
// distinct kind at the raw node level.
type ChildKind uint8

const (
	ChildDir ChildKind = iota + 1
	ChildVNode
	ChildFile
)

func (k ChildKind) String() string {
	switch k {
	case ChildDir:
		return "dir"
	case ChildVNode:
		return "vnode"
	case ChildFile:
		return "file"
	default:
		return "unknown"
	}
}

// DirEntry is one child reference of a Dir or VNode node.
type DirEntry struct {
	Name string
	Hash hash.Hash
	Kind ChildKind
}

// Dir is a directory node. Its Hash is derived purely from the sorted
// (name, hash, kind) triples of its children — the metadata
// fields below (ByteSize, LastCommitID, ...) describe the directory
// but do not participate in its identity, so refreshing them (e.g.
// propagating a new LastCommitID up the tree after an unrelated
// sibling commit) never forces an unrelated directory's hash to
// change.
type Dir struct {
	DirHash        hash.Hash
	Name           string
	Entries        []DirEntry
	ByteSize       int64
	LastCommitID   hash.Hash
	LastModifiedS  int64
	LastModifiedNS int64
	PerTypeCounts  map[string]int64
	PerTypeSizes   map[string]int64
}

// NewDir builds a Dir node from its children and metadata, computing
// its hash.
func NewDir(name string, entries []DirEntry, byteSize int64, lastCommitID hash.Hash, lastModS, lastModNS int64, perTypeCounts, perTypeSizes map[string]int64) *Dir {
	sorted := append([]DirEntry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	d := &Dir{
		Name:           name,
		Entries:        sorted,
		ByteSize:       byteSize,
		LastCommitID:   lastCommitID,
		LastModifiedS:  lastModS,
		LastModifiedNS: lastModNS,
		PerTypeCounts:  perTypeCounts,
		PerTypeSizes:   perTypeSizes,
	}
	d.DirHash = d.computeHash()
	return d
}

func (d *Dir) computeHash() hash.Hash {
	fields := make([]hash.Field, 0, len(d.Entries)*3)
	for _, e := range d.Entries {
		fields = append(fields,
			hash.StringField("name", e.Name),
			hash.HashField("hash", e.Hash),
			hash.Uint64Field("kind", uint64(e.Kind)),
		)
	}
	return hash.Record(fields...)
}

// Hash returns the directory's identity.
func (d *Dir) Hash() hash.Hash { return d.DirHash }

// Kind identifies this as a Dir node.
func (d *Dir) Kind() Kind { return KindDir }

// IsEmpty reports whether the directory has no entries. A directory
// exists in the tree iff it has a file descendant; an
// empty Dir is never written by CommitWriter, but the type itself
// doesn't forbid constructing one (e.g. transiently, before pruning).
func (d *Dir) IsEmpty() bool { return len(d.Entries) == 0 }

func (d *Dir) Encode() []byte {
	e := &encoder{}
	e.writeHash(d.DirHash)
	e.writeString(d.Name)
	e.writeInt64(d.ByteSize)
	e.writeHash(d.LastCommitID)
	e.writeInt64(d.LastModifiedS)
	e.writeInt64(d.LastModifiedNS)
	e.writeUint32(uint32(len(d.Entries)))
	for _, ent := range d.Entries {
		e.writeString(ent.Name)
		e.writeHash(ent.Hash)
		e.writeUint32(uint32(ent.Kind))
	}
	writeStringMap(e, d.PerTypeCounts)
	writeStringMap(e, d.PerTypeSizes)
	return envelope(KindDir, e.bytes())
}

func decodeDir(version byte, body []byte) (*Dir, error) {
	_ = version
	d := newDecoder(body)
	dir := &Dir{}
	var err error
	if dir.DirHash, err = d.readHash(); err != nil {
		return nil, err
	}
	if dir.Name, err = d.readString(); err != nil {
		return nil, err
	}
	if dir.ByteSize, err = d.readInt64(); err != nil {
		return nil, err
	}
	if dir.LastCommitID, err = d.readHash(); err != nil {
		return nil, err
	}
	if dir.LastModifiedS, err = d.readInt64(); err != nil {
		return nil, err
	}
	if dir.LastModifiedNS, err = d.readInt64(); err != nil {
		return nil, err
	}
	count, err := d.readUint32()
	if err != nil {
		return nil, err
	}
	dir.Entries = make([]DirEntry, count)
	for i := range dir.Entries {
		if dir.Entries[i].Name, err = d.readString(); err != nil {
			return nil, err
		}
		if dir.Entries[i].Hash, err = d.readHash(); err != nil {
			return nil, err
		}
		kindVal, err := d.readUint32()
		if err != nil {
			return nil, err
		}
		dir.Entries[i].Kind = ChildKind(kindVal)
	}
	if dir.PerTypeCounts, err = readStringMap(d); err != nil {
		return nil, err
	}
	if dir.PerTypeSizes, err = readStringMap(d); err != nil {
		return nil, err
	}
	return dir, nil
}

func writeStringMap(e *encoder, m map[string]int64) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	e.writeUint32(uint32(len(keys)))
	for _, k := range keys {
		e.writeString(k)
		e.writeInt64(m[k])
	}
}

func readStringMap(d *decoder) (map[string]int64, error) {
	count, err := d.readUint32()
	if err != nil {
		return nil, err
	}
	m := make(map[string]int64, count)
	for i := uint32(0); i < count; i++ {
		k, err := d.readString()
		if err != nil {
			return nil, err
		}
		v, err := d.readInt64()
		if err != nil {
			return nil, err
		}
		m[k] = v
	}
	return m, nil
}
