// Package repository wires the on-disk subsystems — version store,
// node database, Merkle tree, commit graph, refs, and the merge engine
// — into the single handle every command operates against, mirroring
// the teacher's CreateRepo/CreateBareRepo split but targeting the
// content-addressed .oxen layout instead of the loose-object store.
package repository

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/oxen-go/oxen/internal/commitgraph"
	"github.com/oxen-go/oxen/internal/commitwriter"
	"github.com/oxen-go/oxen/internal/config"
	"github.com/oxen-go/oxen/internal/merge"
	"github.com/oxen-go/oxen/internal/merkle"
	"github.com/oxen-go/oxen/internal/merkle/nodedb"
	"github.com/oxen-go/oxen/internal/refs"
	"github.com/oxen-go/oxen/internal/store"
	"github.com/oxen-go/oxen/internal/sync"

	"github.com/oxen-go/oxen/core"
)

const (
	objectsSubdir = "objects"
	nodesFileName = "nodes.db"
)

// Handle is every wired-up subsystem a command needs, opened once at
// process start and passed down explicitly rather than rebuilt per
// command.
type Handle struct {
	Repo   *core.Repository
	Config *config.RepoConfig

	VersionStore *store.VersionStore
	Nodes        *nodedb.DB
	Tree         *merkle.Tree
	Graph        *commitgraph.Graph
	Refs         *refs.Store
	Writer       *commitwriter.Writer
	WriterConfig commitwriter.Config
	Merge        *merge.Engine
}

// Close releases the handle's open resources (currently just the node
// database's bbolt file).
func (h *Handle) Close() error {
	return h.Nodes.Close()
}

// SyncEngine builds a sync.Engine for talking to remote as the named
// repository, wired with the same merge.Engine the handle already
// carries so Pull's three-way merges run through it.
func (h *Handle) SyncEngine(remote sync.Remote, repoName string, logger *zap.Logger) *sync.Engine {
	client := sync.NewClient(remote, logger)
	e := sync.NewEngine(h.Repo.Root, h.VersionStore, h.Nodes, h.Tree, h.Graph, h.Refs, client, repoName, logger)
	e.SetMerger(h.Merge)
	return e
}

// LocalEngine builds a sync.Engine with no remote wired in, for
// operations that only ever touch already-local nodes and chunks —
// the checkout/restore commands materializing a commit that's already
// on disk, as opposed to Pull or Clone which need the network.
func (h *Handle) LocalEngine(logger *zap.Logger) *sync.Engine {
	e := sync.NewEngine(h.Repo.Root, h.VersionStore, h.Nodes, h.Tree, h.Graph, h.Refs, nil, "", logger)
	e.SetMerger(h.Merge)
	return e
}

// CreateRepo initializes a new repository at dir: an .oxen metadata
// directory holding the version store, node database, refs, and a
// default config.toml, with HEAD pointing at the configured default
// branch (unborn, since nothing has been committed yet).
func CreateRepo(dir string) (*Handle, error) {
	repo := core.NewRepository(dir)
	if core.FileExists(repo.MetaDir) {
		return nil, fmt.Errorf("repository: already initialized at %s", repo.Root)
	}
	if err := os.MkdirAll(repo.MetaDir, 0755); err != nil {
		return nil, fmt.Errorf("repository: create %s: %w", repo.MetaDir, err)
	}

	cfg := config.DefaultRepoConfig()
	if err := cfg.Save(repo.MetaDir); err != nil {
		return nil, err
	}

	h, err := open(repo, cfg)
	if err != nil {
		return nil, err
	}
	if err := h.Refs.SetHeadToBranch(cfg.DefaultBranch); err != nil {
		return nil, fmt.Errorf("repository: set HEAD: %w", err)
	}

	fmt.Printf("Initialized empty oxen repository in %s\n", repo.MetaDir)
	return h, nil
}

// CreateBareRepo initializes a bare repository directly at dir, with
// no working tree: dir itself plays the role a normal repository's
// .oxen directory plays.
func CreateBareRepo(dir string) (*Handle, error) {
	if core.FileExists(dir) {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("repository: read %s: %w", dir, err)
		}
		if len(entries) > 0 {
			return nil, fmt.Errorf("repository: directory %s is not empty", dir)
		}
	} else if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("repository: create %s: %w", dir, err)
	}

	repo := &core.Repository{Root: dir, MetaDir: dir}
	cfg := config.DefaultRepoConfig()
	if err := cfg.Save(repo.MetaDir); err != nil {
		return nil, err
	}

	h, err := open(repo, cfg)
	if err != nil {
		return nil, err
	}
	if err := h.Refs.SetHeadToBranch(cfg.DefaultBranch); err != nil {
		return nil, fmt.Errorf("repository: set HEAD: %w", err)
	}

	fmt.Printf("Initialized empty bare oxen repository in %s\n", dir)
	return h, nil
}

// Open wires a Handle against an already-initialized repository,
// reading its config.toml for the VNode fan-out settings the
// commitwriter should use.
func Open(repo *core.Repository) (*Handle, error) {
	if !core.FileExists(repo.MetaDir) {
		return nil, fmt.Errorf("repository: not initialized at %s", repo.Root)
	}
	cfg, err := config.LoadRepoConfig(repo.MetaDir)
	if err != nil {
		return nil, err
	}
	return open(repo, cfg)
}

func open(repo *core.Repository, cfg *config.RepoConfig) (*Handle, error) {
	backend, err := store.NewLocalBackend(filepath.Join(repo.MetaDir, objectsSubdir))
	if err != nil {
		return nil, fmt.Errorf("repository: open version store: %w", err)
	}
	vs := store.New(backend)

	nodes, err := nodedb.Open(filepath.Join(repo.MetaDir, nodesFileName))
	if err != nil {
		return nil, fmt.Errorf("repository: open node database: %w", err)
	}

	tree := merkle.NewTree(nodes)
	graph := commitgraph.New(nodes)

	refStore, err := refs.Open(repo.MetaDir)
	if err != nil {
		nodes.Close()
		return nil, fmt.Errorf("repository: open refs: %w", err)
	}

	writerCfg := commitwriter.Config{
		VNodeFanoutThreshold: cfg.Tree.VNodeFanoutThreshold,
		VNodeBucketCount:     cfg.Tree.VNodeBucketCount,
		ChunkThreshold:       commitwriter.DefaultConfig().ChunkThreshold,
	}
	writer := commitwriter.New(repo.Root, vs, nodes, tree, refStore, writerCfg)
	mergeEngine := merge.New(vs, tree, nodes, writerCfg)

	return &Handle{
		Repo:         repo,
		Config:       cfg,
		VersionStore: vs,
		Nodes:        nodes,
		Tree:         tree,
		Graph:        graph,
		Refs:         refStore,
		Writer:       writer,
		WriterConfig: writerCfg,
		Merge:        mergeEngine,
	}, nil
}
