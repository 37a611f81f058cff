package merkle

import (
	"sort"

	"github.com/oxen-go/oxen/internal/hash"
)

// VNode is an internal fan-out layer inserted under a Dir when it has
// more children than the configured bucket threshold, so that no
// single node's child list grows unbounded. VNodes are transparent to
// callers traversing by path (see Tree.Children); a Dir's "entries"
// from a path-lookup perspective are the union of its direct File/Dir
// entries and everything reachable through its VNode entries.
type VNode struct {
	VHash   hash.Hash
	Bucket  uint32
	Entries []DirEntry
}

// NewVNode builds a VNode from its children, computing its hash the
// same way a Dir does: the sorted (name, hash, kind) triples.
func NewVNode(bucket uint32, entries []DirEntry) *VNode {
	sorted := append([]DirEntry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	v := &VNode{Bucket: bucket, Entries: sorted}
	v.VHash = v.computeHash()
	return v
}

func (v *VNode) computeHash() hash.Hash {
	fields := make([]hash.Field, 0, len(v.Entries)*3+1)
	fields = append(fields, hash.Uint64Field("bucket", uint64(v.Bucket)))
	for _, e := range v.Entries {
		fields = append(fields,
			hash.StringField("name", e.Name),
			hash.HashField("hash", e.Hash),
			hash.Uint64Field("kind", uint64(e.Kind)),
		)
	}
	return hash.Record(fields...)
}

func (v *VNode) Hash() hash.Hash { return v.VHash }
func (v *VNode) Kind() Kind      { return KindVNode }

func (v *VNode) Encode() []byte {
	e := &encoder{}
	e.writeHash(v.VHash)
	e.writeUint32(v.Bucket)
	e.writeUint32(uint32(len(v.Entries)))
	for _, ent := range v.Entries {
		e.writeString(ent.Name)
		e.writeHash(ent.Hash)
		e.writeUint32(uint32(ent.Kind))
	}
	return envelope(KindVNode, e.bytes())
}

func decodeVNode(version byte, body []byte) (*VNode, error) {
	_ = version
	d := newDecoder(body)
	v := &VNode{}
	var err error
	if v.VHash, err = d.readHash(); err != nil {
		return nil, err
	}
	if v.Bucket, err = d.readUint32(); err != nil {
		return nil, err
	}
	count, err := d.readUint32()
	if err != nil {
		return nil, err
	}
	v.Entries = make([]DirEntry, count)
	for i := range v.Entries {
		if v.Entries[i].Name, err = d.readString(); err != nil {
			return nil, err
		}
		if v.Entries[i].Hash, err = d.readHash(); err != nil {
			return nil, err
		}
		kindVal, err := d.readUint32()
		if err != nil {
			return nil, err
		}
		v.Entries[i].Kind = ChildKind(kindVal)
	}
	return v, nil
}

// VNodeBucketCount is the default number of VNode buckets a directory
// is partitioned into once it exceeds VNodeFanoutThreshold children.
// Both values are recorded in repo config so every client bucketing
// the same directory agrees on tree shape.
const (
	DefaultVNodeFanoutThreshold = 1000
	DefaultVNodeBucketCount     = 32
)

// VNodeBucket deterministically assigns a child to a bucket in
// [0, bucketCount), using the first byte of the child's node hash as
// the stable hash-prefix partition. A File's node hash covers its name
// as well as its content, so renaming or editing a file can move it to
// another bucket.
func VNodeBucket(childHash hash.Hash, bucketCount uint32) uint32 {
	if bucketCount == 0 {
		bucketCount = DefaultVNodeBucketCount
	}
	return uint32(childHash[0]) % bucketCount
}
