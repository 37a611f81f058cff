// Package nodedb persists merkle.Node values keyed by their own hash,
// one bolt bucket per node Kind so a reader can iterate a single kind
// (e.g. every Commit) without scanning the rest of the tree.
package nodedb

import (
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/oxen-go/oxen/internal/hash"
	"github.com/oxen-go/oxen/internal/merkle"
	"github.com/oxen-go/oxen/internal/oxenerr"
)

var bucketNames = map[merkle.Kind][]byte{
	merkle.KindCommit: []byte("commits"),
	merkle.KindDir:    []byte("dirs"),
	merkle.KindVNode:  []byte("vnodes"),
	merkle.KindFile:   []byte("files"),
	merkle.KindSchema: []byte("schemas"),
}

// DB is a bbolt-backed store of merkle nodes. Writes are idempotent and
// the first write of a hash wins: storing a hash that already exists is
// a no-op whatever its encoding, since fields outside the hash (such as
// a Dir's or File's last-commit metadata) can differ between two nodes
// of the same hash.
type DB struct {
	bolt *bbolt.DB
}

// Open opens or creates a node database at path, creating every kind
// bucket up front so later transactions never need to check for their
// existence.
func Open(path string) (*DB, error) {
	bdb, err := bbolt.Open(path, 0644, nil)
	if err != nil {
		return nil, fmt.Errorf("nodedb: open %s: %w", path, err)
	}
	err = bdb.Update(func(tx *bbolt.Tx) error {
		for _, name := range bucketNames {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		bdb.Close()
		return nil, fmt.Errorf("nodedb: init buckets: %w", err)
	}
	return &DB{bolt: bdb}, nil
}

// Close releases the underlying file lock.
func (db *DB) Close() error {
	return db.bolt.Close()
}

// Put stores a node under its own hash. Calling Put again with a node
// of the same hash and identical encoding is a harmless no-op, letting
// callers re-put nodes they already have without checking first.
func (db *DB) Put(n merkle.Node) error {
	bucket, err := bucketFor(n.Kind())
	if err != nil {
		return err
	}
	h := n.Hash()
	encoded := n.Encode()
	return db.bolt.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucket)
		existing := b.Get(h[:])
		if existing != nil {
			return nil
		}
		return b.Put(h[:], encoded)
	})
}

// Get fetches a node of the given kind by hash, decoding it and
// verifying the decoded node's own hash matches the key it was stored
// under (defense against on-disk corruption or a bug in Encode).
func (db *DB) Get(kind merkle.Kind, h hash.Hash) (merkle.Node, error) {
	bucket, err := bucketFor(kind)
	if err != nil {
		return nil, err
	}
	var raw []byte
	err = db.bolt.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucket)
		v := b.Get(h[:])
		if v == nil {
			return nil
		}
		raw = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, &oxenerr.NotFoundError{Kind: kind.String(), ID: h.String()}
	}
	n, err := merkle.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("nodedb: decode %s %s: %w", kind, h, err)
	}
	if n.Hash() != h {
		return nil, &oxenerr.HashMismatchError{Expected: h.String(), Actual: n.Hash().String()}
	}
	return n, nil
}

// Has reports whether a node of the given kind and hash is present,
// without paying the decode cost Get incurs.
func (db *DB) Has(kind merkle.Kind, h hash.Hash) (bool, error) {
	bucket, err := bucketFor(kind)
	if err != nil {
		return false, err
	}
	found := false
	err = db.bolt.View(func(tx *bbolt.Tx) error {
		found = tx.Bucket(bucket).Get(h[:]) != nil
		return nil
	})
	return found, err
}

// ForEach iterates every node of the given kind, stopping early if fn
// returns an error.
func (db *DB) ForEach(kind merkle.Kind, fn func(merkle.Node) error) error {
	bucket, err := bucketFor(kind)
	if err != nil {
		return err
	}
	return db.bolt.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucket).ForEach(func(k, v []byte) error {
			n, err := merkle.Decode(v)
			if err != nil {
				return fmt.Errorf("nodedb: decode %s during ForEach: %w", kind, err)
			}
			return fn(n)
		})
	})
}

func bucketFor(kind merkle.Kind) ([]byte, error) {
	name, ok := bucketNames[kind]
	if !ok {
		return nil, fmt.Errorf("nodedb: no bucket for node kind %s", kind)
	}
	return name, nil
}
