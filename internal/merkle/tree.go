package merkle

import (
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/oxen-go/oxen/internal/hash"
	"github.com/oxen-go/oxen/internal/merkle/nodedb"
)

// NodeStore is what a Tree needs from storage: a place to look up
// already-written nodes by kind and hash. nodedb.DB satisfies this
// directly; tests can supply a fake.
type NodeStore interface {
	Get(kind Kind, h hash.Hash) (Node, error)
	Has(kind Kind, h hash.Hash) (bool, error)
}

// nodeCacheCapacity bounds the single process-wide node cache every
// Tree shares: one cache, sized for a repo's working set of hot
// directories rather than per-tree. It holds decoded nodes, not raw
// bytes, since decode cost dominates lookup cost for Dir/VNode fan-out.
const nodeCacheCapacity = 4096

var nodeCache, _ = lru.New[hash.Hash, Node](nodeCacheCapacity)

// Tree is a read path over a NodeStore, resolving hashes to nodes and
// paths to entries. VNode fan-out is transparent here: Children
// returns the logical entries of a directory regardless of whether
// they're direct Dir entries or behind one or more VNode layers.
type Tree struct {
	store NodeStore
}

// NewTree wraps a NodeStore for path- and hash-based traversal.
func NewTree(store NodeStore) *Tree {
	return &Tree{store: store}
}

// NodeByHash resolves a hash to a decoded node of the given kind,
// consulting the shared process cache first.
func (t *Tree) NodeByHash(kind Kind, h hash.Hash) (Node, error) {
	if cached, ok := nodeCache.Get(h); ok {
		return cached, nil
	}
	n, err := t.store.Get(kind, h)
	if err != nil {
		return nil, err
	}
	nodeCache.Add(h, n)
	return n, nil
}

// Children returns the logical child entries of a directory node,
// flattening any VNode layers so callers never see them.
func (t *Tree) Children(dirHash hash.Hash) ([]DirEntry, error) {
	n, err := t.NodeByHash(KindDir, dirHash)
	if err != nil {
		return nil, err
	}
	dir, ok := n.(*Dir)
	if !ok {
		return nil, fmt.Errorf("merkle: node %s is not a Dir", dirHash)
	}
	return t.flattenEntries(dir.Entries)
}

func (t *Tree) flattenEntries(entries []DirEntry) ([]DirEntry, error) {
	out := make([]DirEntry, 0, len(entries))
	for _, e := range entries {
		if e.Kind != ChildVNode {
			out = append(out, e)
			continue
		}
		vn, err := t.NodeByHash(KindVNode, e.Hash)
		if err != nil {
			return nil, err
		}
		v, ok := vn.(*VNode)
		if !ok {
			return nil, fmt.Errorf("merkle: node %s is not a VNode", e.Hash)
		}
		flattened, err := t.flattenEntries(v.Entries)
		if err != nil {
			return nil, err
		}
		out = append(out, flattened...)
	}
	return out, nil
}

// NodeByPath resolves a slash-separated path under a root Dir hash to
// its entry, descending through Dir and VNode layers as needed. An
// empty path resolves to the root itself, represented as a synthetic
// DirEntry with no Name.
func (t *Tree) NodeByPath(rootDirHash hash.Hash, path string) (DirEntry, error) {
	path = strings.Trim(path, "/")
	if path == "" {
		return DirEntry{Hash: rootDirHash, Kind: ChildDir}, nil
	}
	segments := strings.Split(path, "/")
	currentDir := rootDirHash
	var found DirEntry
	for i, seg := range segments {
		entries, err := t.Children(currentDir)
		if err != nil {
			return DirEntry{}, err
		}
		var next *DirEntry
		for idx := range entries {
			if entries[idx].Name == seg {
				next = &entries[idx]
				break
			}
		}
		if next == nil {
			return DirEntry{}, &pathNotFoundError{Path: path}
		}
		found = *next
		if i < len(segments)-1 {
			if found.Kind != ChildDir {
				return DirEntry{}, &pathNotFoundError{Path: path}
			}
			currentDir = found.Hash
		}
	}
	return found, nil
}

type pathNotFoundError struct {
	Path string
}

func (e *pathNotFoundError) Error() string {
	return fmt.Sprintf("merkle: path not found: %s", e.Path)
}

// ListMissingNodeHashes walks the tree rooted at rootDirHash (recursing
// into Dir and VNode children, and File nodes for their chunk list is
// NOT walked here — chunks are content blobs, not nodes) and returns
// every hash referenced that isn't present in the store. Used by
// SyncEngine to compute what a fetch/push still needs to transfer.
func (t *Tree) ListMissingNodeHashes(rootDirHash hash.Hash) ([]hash.Hash, error) {
	var missing []hash.Hash
	seen := make(map[hash.Hash]bool)
	var walk func(kind Kind, h hash.Hash) error
	walk = func(kind Kind, h hash.Hash) error {
		if seen[h] {
			return nil
		}
		seen[h] = true
		has, err := t.store.Has(kind, h)
		if err != nil {
			return err
		}
		if !has {
			missing = append(missing, h)
			return nil
		}
		n, err := t.NodeByHash(kind, h)
		if err != nil {
			return err
		}
		switch v := n.(type) {
		case *Dir:
			for _, e := range v.Entries {
				if err := walk(childNodeKind(e.Kind), e.Hash); err != nil {
					return err
				}
			}
		case *VNode:
			for _, e := range v.Entries {
				if err := walk(childNodeKind(e.Kind), e.Hash); err != nil {
					return err
				}
			}
		}
		return nil
	}
	if err := walk(KindDir, rootDirHash); err != nil {
		return nil, err
	}
	return missing, nil
}

// ListMissingChunkHashes walks the tree rooted at rootDirHash and
// returns the chunk hashes of every File reachable from it that isn't
// present in chunkStore's Exists check.
func (t *Tree) ListMissingChunkHashes(rootDirHash hash.Hash, chunkExists func(hash.Hash) (bool, error)) ([]hash.Hash, error) {
	var missing []hash.Hash
	seenDir := make(map[hash.Hash]bool)
	seenChunk := make(map[hash.Hash]bool)
	var walkDir func(h hash.Hash) error
	walkDir = func(h hash.Hash) error {
		if seenDir[h] {
			return nil
		}
		seenDir[h] = true
		entries, err := t.Children(h)
		if err != nil {
			return err
		}
		for _, e := range entries {
			switch e.Kind {
			case ChildDir:
				if err := walkDir(e.Hash); err != nil {
					return err
				}
			case ChildFile:
				n, err := t.NodeByHash(KindFile, e.Hash)
				if err != nil {
					return err
				}
				file, ok := n.(*File)
				if !ok {
					return fmt.Errorf("merkle: node %s is not a File", e.Hash)
				}
				for _, ch := range file.ChunkHashes {
					if seenChunk[ch] {
						continue
					}
					seenChunk[ch] = true
					ok, err := chunkExists(ch)
					if err != nil {
						return err
					}
					if !ok {
						missing = append(missing, ch)
					}
				}
			}
		}
		return nil
	}
	if err := walkDir(rootDirHash); err != nil {
		return nil, err
	}
	return missing, nil
}

func childNodeKind(ck ChildKind) Kind {
	switch ck {
	case ChildDir:
		return KindDir
	case ChildVNode:
		return KindVNode
	case ChildFile:
		return KindFile
	default:
		return 0
	}
}

var _ NodeStore = (*nodedb.DB)(nil)
