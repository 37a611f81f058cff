package sync

import (
	"context"

	"go.uber.org/zap"

	"github.com/oxen-go/oxen/internal/commitgraph"
	"github.com/oxen-go/oxen/internal/hash"
	"github.com/oxen-go/oxen/internal/merkle"
	"github.com/oxen-go/oxen/internal/merkle/nodedb"
	"github.com/oxen-go/oxen/internal/refs"
	"github.com/oxen-go/oxen/internal/store"
)

// remoteAPI is the subset of Client that Engine drives. Factoring it
// out lets tests exercise Clone/Fetch/Pull/Push against an in-memory
// fake instead of a real HTTP server, the way fakeStore stands in for
// nodedb.DB in the stage and merkle tree tests.
type remoteAPI interface {
	GetBranch(ctx context.Context, repo, branch string) (hash.Hash, error)
	ListBranches(ctx context.Context, repo string) (map[string]hash.Hash, error)
	SetBranch(ctx context.Context, repo, branch string, expected, next hash.Hash) error
	HasNode(ctx context.Context, repo string, h hash.Hash) (bool, error)
	GetNode(ctx context.Context, repo string, h hash.Hash) (merkle.Node, error)
	PutNode(ctx context.Context, repo string, n merkle.Node) error
	MissingNodeHashes(ctx context.Context, repo string, candidates []hash.Hash) ([]hash.Hash, error)
	MissingChunkHashes(ctx context.Context, repo string, candidates []hash.Hash) ([]hash.Hash, error)
	PutChunk(ctx context.Context, repo string, target hash.Hash, n int, data []byte) error
	ListChunks(ctx context.Context, repo string, target hash.Hash) ([]int, error)
	CompleteChunks(ctx context.Context, repo string, target hash.Hash) error
	GetBlob(ctx context.Context, repo string, h hash.Hash) ([]byte, error)
}

var _ remoteAPI = (*Client)(nil)

// RemoteTrackingPrefix namespaces fetched-but-not-merged branch state
// the way git's refs/remotes/<name>/ does, reusing the same flat
// refs.Store a repository's own branches live in — the .oxen layout
// has one refs/ tree, not a separate remote-tracking area.
const RemoteTrackingPrefix = "remotes/"

// Engine drives Clone, Fetch, Pull, and Push against one remote for
// one local repository's metadata.
type Engine struct {
	workDir string
	vs      *store.VersionStore
	nodes   *nodedb.DB
	tree    *merkle.Tree
	graph   *commitgraph.Graph
	refs    *refs.Store
	api     remoteAPI
	repo    string
	log     *zap.Logger
	merger  Merger
}

// NewEngine wires an Engine for repo (a "namespace/name" identifier)
// against client.
func NewEngine(workDir string, vs *store.VersionStore, nodes *nodedb.DB, tree *merkle.Tree, graph *commitgraph.Graph, refStore *refs.Store, client *Client, repo string, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		workDir: workDir,
		vs:      vs,
		nodes:   nodes,
		tree:    tree,
		graph:   graph,
		refs:    refStore,
		api:     client,
		repo:    repo,
		log:     logger,
	}
}

func trackingRef(remoteName, branch string) string {
	return RemoteTrackingPrefix + remoteName + "/" + branch
}

// SetAPIForTest swaps the remote transport for a fake satisfying the
// same interface *Client does, so Clone/Fetch/Pull/Push can be
// exercised without an HTTP server. Exported for use from
// internal/sync's external test package only.
func (e *Engine) SetAPIForTest(api interface {
	GetBranch(ctx context.Context, repo, branch string) (hash.Hash, error)
	ListBranches(ctx context.Context, repo string) (map[string]hash.Hash, error)
	SetBranch(ctx context.Context, repo, branch string, expected, next hash.Hash) error
	HasNode(ctx context.Context, repo string, h hash.Hash) (bool, error)
	GetNode(ctx context.Context, repo string, h hash.Hash) (merkle.Node, error)
	PutNode(ctx context.Context, repo string, n merkle.Node) error
	MissingNodeHashes(ctx context.Context, repo string, candidates []hash.Hash) ([]hash.Hash, error)
	MissingChunkHashes(ctx context.Context, repo string, candidates []hash.Hash) ([]hash.Hash, error)
	PutChunk(ctx context.Context, repo string, target hash.Hash, n int, data []byte) error
	ListChunks(ctx context.Context, repo string, target hash.Hash) ([]int, error)
	CompleteChunks(ctx context.Context, repo string, target hash.Hash) error
	GetBlob(ctx context.Context, repo string, h hash.Hash) ([]byte, error)
}) {
	e.api = api
}
