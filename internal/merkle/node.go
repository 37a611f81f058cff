// Package merkle defines the node family the commit tree is built
// from — Commit, Dir, VNode, File, FileChunk, and Schema — and the
// MerkleNodeDB/MerkleTree machinery that stores and traverses them.
//
// The source trait-object dispatch over node kinds is replaced here
// with tagged variants behind one Node interface and an exhaustive
// type switch at every call site that needs kind-specific behavior,
// per the "polymorphism over node kinds" design note.
package merkle

import (
	"fmt"

	"github.com/oxen-go/oxen/internal/hash"
	"github.com/oxen-go/oxen/internal/oxenerr"
)

// Kind identifies a node's variant. Stored as the first byte of every
// encoded node payload so Decode can dispatch without guessing.
type Kind uint8

const (
	KindCommit Kind = iota + 1
	KindDir
	KindVNode
	KindFile
	KindSchema
)

func (k Kind) String() string {
	switch k {
	case KindCommit:
		return "commit"
	case KindDir:
		return "dir"
	case KindVNode:
		return "vnode"
	case KindFile:
		return "file"
	case KindSchema:
		return "schema"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// Node is the shared capability set every node variant implements:
// hash, kind, and a versioned binary encoding. FileChunk is not a
// distinct Node — chunks are raw VersionStore blobs referenced by
// hash from a File node's ChunkHashes.
type Node interface {
	Hash() hash.Hash
	Kind() Kind
	Encode() []byte
}

// currentVersion is the envelope format-version tag written as the
// second byte of every encoded node (after the Kind byte). Readers
// try the version they understand; an unrecognized version fails fast
// with MigrationRequired rather than silently misparsing newer
// fields.
const currentVersion = 1

// Decode parses a node payload previously produced by Encode,
// dispatching on the leading Kind byte.
func Decode(data []byte) (Node, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("merkle: payload too short to contain a node envelope")
	}
	kind := Kind(data[0])
	version := data[1]
	if version != currentVersion {
		return nil, &oxenerr.MigrationRequiredError{Component: "merkle node", FoundVersion: int(version), ExpectVersion: currentVersion}
	}
	body := data[2:]
	switch kind {
	case KindCommit:
		return decodeCommit(version, body)
	case KindDir:
		return decodeDir(version, body)
	case KindVNode:
		return decodeVNode(version, body)
	case KindFile:
		return decodeFile(version, body)
	case KindSchema:
		return decodeSchema(version, body)
	default:
		return nil, fmt.Errorf("merkle: unknown node kind %d", uint8(kind))
	}
}

func envelope(kind Kind, body []byte) []byte {
	out := make([]byte, 0, len(body)+2)
	out = append(out, byte(kind), currentVersion)
	out = append(out, body...)
	return out
}
