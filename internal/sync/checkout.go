package sync

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/oxen-go/oxen/internal/hash"
	"github.com/oxen-go/oxen/internal/merkle"
)

// checkout materializes every file reachable from rootDirHash into
// e.workDir. It assumes ensureTree and ensureChunks already ran, so
// every node and chunk it needs is local. Checkout is documented as
// an exclusive repo-wide section; serializing concurrent
// checkouts against commits and other checkouts is the caller's job,
// not Engine's.
func (e *Engine) checkout(rootDirHash hash.Hash) error {
	return e.checkoutDir(rootDirHash, "")
}

// Checkout exposes checkout for callers that already have every node
// and chunk locally and just need the working directory rewritten —
// the CLI's checkout/restore commands, as opposed to Clone and Pull
// which call the unexported form after first fetching what's missing.
func (e *Engine) Checkout(rootDirHash hash.Hash) error {
	return e.checkout(rootDirHash)
}

func (e *Engine) checkoutDir(dirHash hash.Hash, relDir string) error {
	if dirHash.IsZero() {
		return nil
	}
	entries, err := e.tree.Children(dirHash)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		relPath := filepath.Join(relDir, entry.Name)
		switch entry.Kind {
		case merkle.ChildDir:
			if err := os.MkdirAll(filepath.Join(e.workDir, relPath), 0755); err != nil {
				return err
			}
			if err := e.checkoutDir(entry.Hash, relPath); err != nil {
				return err
			}
		case merkle.ChildFile:
			if err := e.checkoutFile(entry.Hash, relPath); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Engine) checkoutFile(fileHash hash.Hash, relPath string) error {
	n, err := e.tree.NodeByHash(merkle.KindFile, fileHash)
	if err != nil {
		return err
	}
	file, ok := n.(*merkle.File)
	if !ok {
		return fmt.Errorf("sync: node %s is not a File", fileHash)
	}
	fullPath := filepath.Join(e.workDir, relPath)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return err
	}
	out, err := os.OpenFile(fullPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer out.Close()
	for _, ch := range file.ChunkHashes {
		data, err := e.vs.Get(ch)
		if err != nil {
			return fmt.Errorf("sync: read chunk %s for %s: %w", ch, relPath, err)
		}
		if _, err := out.Write(data); err != nil {
			return err
		}
	}
	return nil
}
