package merge

import (
	"path"

	"github.com/oxen-go/oxen/internal/hash"
	"github.com/oxen-go/oxen/internal/merkle"
	"github.com/oxen-go/oxen/internal/oxenerr"
)

// mergeDir three-way merges a directory's entries by name: a name
// present on only one side relative to base is kept or dropped
// automatically, a name both sides changed identically collapses to
// that value, and a name both sides changed differently recurses into
// mergeDir (for ChildDir) or mergeFile (for ChildFile). Returns nil if
// the merged directory ends up with no entries, matching Dir's
// convention that empty directories aren't represented. Every
// conflict found anywhere in the subtree is collected and returned
// rather than stopping at the first one.
func (e *Engine) mergeDir(dirPath string, baseHash, ourHash, theirHash hash.Hash) (*merkle.Dir, []oxenerr.Conflict, error) {
	if ourHash == theirHash {
		if ourHash.IsZero() {
			return nil, nil, nil
		}
		n, err := e.tree.NodeByHash(merkle.KindDir, ourHash)
		if err != nil {
			return nil, nil, err
		}
		return n.(*merkle.Dir), nil, nil
	}

	baseEntries, err := e.childEntries(baseHash)
	if err != nil {
		return nil, nil, err
	}
	ourEntries, err := e.childEntries(ourHash)
	if err != nil {
		return nil, nil, err
	}
	theirEntries, err := e.childEntries(theirHash)
	if err != nil {
		return nil, nil, err
	}

	names := unionNames(baseEntries, ourEntries, theirEntries)

	var entries []merkle.DirEntry
	var conflicts []oxenerr.Conflict
	var byteSize int64
	counts := map[string]int64{}
	sizes := map[string]int64{}

	keepFile := func(name string, f *merkle.File) {
		byteSize += f.NumBytes
		counts[f.DataType]++
		sizes[f.DataType] += f.NumBytes
		entries = append(entries, merkle.DirEntry{Name: name, Hash: f.Hash(), Kind: merkle.ChildFile})
	}
	keepDir := func(name string, d *merkle.Dir) {
		byteSize += d.ByteSize
		for k, v := range d.PerTypeCounts {
			counts[k] += v
		}
		for k, v := range d.PerTypeSizes {
			sizes[k] += v
		}
		entries = append(entries, merkle.DirEntry{Name: name, Hash: d.Hash(), Kind: merkle.ChildDir})
	}

	for _, name := range names {
		b, bOK := baseEntries[name]
		o, oOK := ourEntries[name]
		t, tOK := theirEntries[name]
		childPath := joinDirPath(dirPath, name)

		switch {
		case oOK && tOK && o.Hash == t.Hash:
			if o.Kind == merkle.ChildDir {
				n, err := e.tree.NodeByHash(merkle.KindDir, o.Hash)
				if err != nil {
					return nil, nil, err
				}
				keepDir(name, n.(*merkle.Dir))
			} else {
				f, err := e.loadFile(o.Hash)
				if err != nil {
					return nil, nil, err
				}
				keepFile(name, f)
			}

		case oOK && tOK:
			if o.Kind != t.Kind {
				conflicts = append(conflicts, oxenerr.Conflict{
					Path:   childPath,
					Reason: "one side turned it into a directory, the other into a file",
				})
				entries = append(entries, o)
				continue
			}
			if o.Kind == merkle.ChildDir {
				var childBase hash.Hash
				if bOK && b.Kind == merkle.ChildDir {
					childBase = b.Hash
				}
				merged, childConflicts, err := e.mergeDir(childPath, childBase, o.Hash, t.Hash)
				if err != nil {
					return nil, nil, err
				}
				conflicts = append(conflicts, childConflicts...)
				if merged != nil {
					keepDir(name, merged)
				}
				continue
			}
			var baseFile hash.Hash
			if bOK && b.Kind == merkle.ChildFile {
				baseFile = b.Hash
			}
			merged, fileConflicts, err := e.mergeFile(childPath, baseFile, o.Hash, t.Hash)
			if err != nil {
				return nil, nil, err
			}
			conflicts = append(conflicts, fileConflicts...)
			if merged != nil {
				keepFile(name, merged)
			}

		case oOK && !tOK:
			if !bOK || b.Hash == o.Hash {
				if !bOK {
					if o.Kind == merkle.ChildDir {
						n, err := e.tree.NodeByHash(merkle.KindDir, o.Hash)
						if err != nil {
							return nil, nil, err
						}
						keepDir(name, n.(*merkle.Dir))
					} else {
						f, err := e.loadFile(o.Hash)
						if err != nil {
							return nil, nil, err
						}
						keepFile(name, f)
					}
				}
				// else b.Hash == o.Hash: ours unchanged, theirs deleted it. Drop.
				continue
			}
			conflicts = append(conflicts, oxenerr.Conflict{
				Path:   childPath,
				Reason: "modified on our side, deleted on theirs",
			})
			entries = append(entries, o)

		case tOK && !oOK:
			if !bOK || b.Hash == t.Hash {
				if !bOK {
					if t.Kind == merkle.ChildDir {
						n, err := e.tree.NodeByHash(merkle.KindDir, t.Hash)
						if err != nil {
							return nil, nil, err
						}
						keepDir(name, n.(*merkle.Dir))
					} else {
						f, err := e.loadFile(t.Hash)
						if err != nil {
							return nil, nil, err
						}
						keepFile(name, f)
					}
				}
				continue
			}
			conflicts = append(conflicts, oxenerr.Conflict{
				Path:   childPath,
				Reason: "modified on their side, deleted on ours",
			})
			entries = append(entries, t)
		}
	}

	if len(entries) == 0 {
		return nil, conflicts, nil
	}

	dir := merkle.NewDir(path.Base(dirPath), entries, byteSize, hash.Zero, 0, 0, counts, sizes)
	if err := e.nodes.Put(dir); err != nil {
		return nil, nil, err
	}
	return dir, conflicts, nil
}

func (e *Engine) childEntries(dirHash hash.Hash) (map[string]merkle.DirEntry, error) {
	if dirHash.IsZero() {
		return map[string]merkle.DirEntry{}, nil
	}
	flat, err := e.tree.Children(dirHash)
	if err != nil {
		return nil, err
	}
	m := make(map[string]merkle.DirEntry, len(flat))
	for _, ent := range flat {
		m[ent.Name] = ent
	}
	return m, nil
}

func unionNames(maps ...map[string]merkle.DirEntry) []string {
	seen := map[string]bool{}
	var names []string
	for _, m := range maps {
		for name := range m {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	return names
}

func joinDirPath(dirPath, name string) string {
	if dirPath == "." {
		return name
	}
	return dirPath + "/" + name
}
