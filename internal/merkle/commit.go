package merkle

import (
	"strconv"

	"github.com/oxen-go/oxen/internal/hash"
)

// Commit is the immutable record of one repository state. Its hash
// covers every field below, so identity is stable across re-encoding.
// A commit with zero parents is a root; two or more
// parents marks a merge.
type Commit struct {
	ID          hash.Hash
	ParentIDs   []hash.Hash
	Message     string
	Author      string
	Email       string
	TimestampS  int64
	RootDirHash hash.Hash
}

// NewCommit builds a Commit and computes its ID.
func NewCommit(parents []hash.Hash, message, author, email string, timestampS int64, rootDirHash hash.Hash) *Commit {
	c := &Commit{
		ParentIDs:   append([]hash.Hash(nil), parents...),
		Message:     message,
		Author:      author,
		Email:       email,
		TimestampS:  timestampS,
		RootDirHash: rootDirHash,
	}
	c.ID = c.computeHash()
	return c
}

func (c *Commit) computeHash() hash.Hash {
	fields := []hash.Field{
		hash.HashField("root_dir", c.RootDirHash),
		hash.StringField("message", c.Message),
		hash.StringField("author", c.Author),
		hash.StringField("email", c.Email),
		hash.Int64Field("timestamp", c.TimestampS),
	}
	for i, p := range c.ParentIDs {
		fields = append(fields, hash.HashField(fmtParentName(i), p))
	}
	return hash.Record(fields...)
}

func fmtParentName(i int) string {
	return "parent_" + strconv.Itoa(i)
}

// Hash returns the commit's identity.
func (c *Commit) Hash() hash.Hash { return c.ID }

// Kind identifies this as a Commit node.
func (c *Commit) Kind() Kind { return KindCommit }

// IsRoot reports whether the commit has no parents.
func (c *Commit) IsRoot() bool { return len(c.ParentIDs) == 0 }

// IsMerge reports whether the commit has two or more parents.
func (c *Commit) IsMerge() bool { return len(c.ParentIDs) >= 2 }

// Encode serializes the commit, including its own ID, so a decoded
// Commit's Hash() is the value actually stored under (callers must
// still verify it against the key they looked it up by).
func (c *Commit) Encode() []byte {
	e := &encoder{}
	e.writeHash(c.ID)
	e.writeHash(c.RootDirHash)
	e.writeString(c.Message)
	e.writeString(c.Author)
	e.writeString(c.Email)
	e.writeInt64(c.TimestampS)
	e.writeUint32(uint32(len(c.ParentIDs)))
	for _, p := range c.ParentIDs {
		e.writeHash(p)
	}
	return envelope(KindCommit, e.bytes())
}

func decodeCommit(version byte, body []byte) (*Commit, error) {
	_ = version // only version 1 exists so far
	d := newDecoder(body)
	c := &Commit{}
	var err error
	if c.ID, err = d.readHash(); err != nil {
		return nil, err
	}
	if c.RootDirHash, err = d.readHash(); err != nil {
		return nil, err
	}
	if c.Message, err = d.readString(); err != nil {
		return nil, err
	}
	if c.Author, err = d.readString(); err != nil {
		return nil, err
	}
	if c.Email, err = d.readString(); err != nil {
		return nil, err
	}
	if c.TimestampS, err = d.readInt64(); err != nil {
		return nil, err
	}
	count, err := d.readUint32()
	if err != nil {
		return nil, err
	}
	c.ParentIDs = make([]hash.Hash, count)
	for i := range c.ParentIDs {
		if c.ParentIDs[i], err = d.readHash(); err != nil {
			return nil, err
		}
	}
	return c, nil
}
