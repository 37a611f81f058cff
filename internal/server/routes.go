package server

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/oxen-go/oxen/internal/hash"
	"github.com/oxen-go/oxen/internal/merkle"
	"github.com/oxen-go/oxen/internal/oxenerr"
	"github.com/oxen-go/oxen/internal/webhook"
)

var allKinds = []merkle.Kind{merkle.KindCommit, merkle.KindDir, merkle.KindVNode, merkle.KindFile, merkle.KindSchema}

func (s *Server) mountRepoRoutes(r chi.Router) {
	r.Get("/", s.handleRepoInfo)

	r.Get("/branches", s.handleListBranches)
	r.Get("/branches/{branch}", s.handleGetBranch)
	r.Put("/branches/{branch}", s.handleSetBranch)

	r.Head("/tree/nodes/{hash}", s.handleHasNode)
	r.Get("/tree/nodes/{hash}", s.handleGetNode)
	r.Put("/tree/nodes/{hash}", s.handlePutNode)
	r.Post("/tree/missing_hashes", s.handleMissingNodeHashes)

	r.Get("/versions/{hash}", s.handleGetBlob)
	r.Post("/versions/missing_hashes", s.handleMissingChunkHashes)
	r.Put("/versions/{hash}/chunks/{n}", s.handlePutChunk)
	r.Get("/versions/{hash}/chunks", s.handleListChunks)
	r.Post("/versions/{hash}/complete", s.handleCompleteChunks)

	r.Get("/file/{rev}/*", s.handleGetFileAtRev)

	r.Put("/workspaces", s.handleCreateWorkspace)
	r.Delete("/workspaces/{id}", s.handleDeleteWorkspace)
	r.Post("/workspaces/{id}/files/{dst}", s.handleAddWorkspaceFile)
	r.Delete("/workspaces/{id}/files/*", s.handleRemoveWorkspaceFile)
	r.Post("/workspaces/{id}/commit/{branch}", s.handleCommitWorkspace)
	r.Get("/workspaces/{id}/data_frames/*", s.handleDataFrameRows)
	r.Post("/workspaces/{id}/data_frames/*", s.handleDataFramePost)
	r.Put("/workspaces/{id}/data_frames/*", s.handleDataFrameUpdateRow)
	r.Delete("/workspaces/{id}/data_frames/*", s.handleDataFrameDeleteRow)
	r.Post("/workspaces/{id}/schema/*", s.handleDataFrameSchemaOp)

	r.Get("/compare/{rangeSpec}", s.handleCompare)
	r.Post("/merge/{rangeSpec}", s.handleMerge)
}

func repoParams(r *http.Request) (ns, name string) {
	return chi.URLParam(r, "ns"), chi.URLParam(r, "name")
}

func (s *Server) repoOrErr(w http.ResponseWriter, r *http.Request) (*repoEntry, bool) {
	ns, name := repoParams(r)
	entry, err := s.openRepo(ns, name)
	if err != nil {
		replyErr(w, &oxenerr.NotFoundError{Kind: "repository", ID: ns + "/" + name})
		return nil, false
	}
	return entry, true
}

func parseHashParam(w http.ResponseWriter, r *http.Request, name string) (hash.Hash, bool) {
	h, err := hash.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid hash: %w", err))
		return hash.Hash{}, false
	}
	return h, true
}

func lookupNode(entry *repoEntry, h hash.Hash) (merkle.Node, error) {
	for _, kind := range allKinds {
		if n, err := entry.handle.Nodes.Get(kind, h); err == nil {
			return n, nil
		}
	}
	return nil, &oxenerr.NotFoundError{Kind: "node", ID: h.String()}
}

func nodeExists(entry *repoEntry, h hash.Hash) (bool, error) {
	for _, kind := range allKinds {
		ok, err := entry.handle.Nodes.Has(kind, h)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// --- Repository lifecycle -------------------------------------------------

type repoInfo struct {
	Exists     bool `json:"exists"`
	IsEmpty    bool `json:"is_empty"`
	MinVersion int  `json:"min_version"`
}

func (s *Server) handleRepoInfo(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.repoOrErr(w, r)
	if !ok {
		return
	}
	branches, err := entry.handle.Refs.List()
	if err != nil {
		replyErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, repoInfo{
		Exists:     true,
		IsEmpty:    len(branches) == 0,
		MinVersion: entry.handle.Config.MinVersion,
	})
}

type createRepoRequest struct {
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
	Bare      bool   `json:"bare"`
}

func (s *Server) handleCreateRepo(w http.ResponseWriter, r *http.Request) {
	var req createRepoRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Namespace == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("namespace and name are required"))
		return
	}
	if _, err := s.createRepo(req.Namespace, req.Name, req.Bare); err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusCreated, repoInfo{Exists: true, IsEmpty: true, MinVersion: 1})
}

// --- Branches --------------------------------------------------------------

type branchInfo struct {
	Name   string `json:"name"`
	Commit string `json:"commit"`
}

func (s *Server) handleListBranches(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.repoOrErr(w, r)
	if !ok {
		return
	}
	names, err := entry.handle.Refs.List()
	if err != nil {
		replyErr(w, err)
		return
	}
	out := make([]branchInfo, 0, len(names))
	for _, name := range names {
		h, err := entry.handle.Refs.Get(name)
		if err != nil {
			replyErr(w, err)
			return
		}
		out = append(out, branchInfo{Name: name, Commit: h.String()})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetBranch(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.repoOrErr(w, r)
	if !ok {
		return
	}
	name := chi.URLParam(r, "branch")
	h, err := entry.handle.Refs.Get(name)
	if err != nil {
		replyErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, branchInfo{Name: name, Commit: h.String()})
}

func (s *Server) handleSetBranch(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.repoOrErr(w, r)
	if !ok {
		return
	}
	name := chi.URLParam(r, "branch")

	var body branchInfo
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	next, err := hash.Parse(body.Commit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	expected := hash.Zero
	if q := r.URL.Query().Get("expected"); q != "" {
		expected, err = hash.Parse(q)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}

	if err := entry.handle.Refs.SetCAS(name, expected, next); err != nil {
		if advanced, ok := err.(*oxenerr.BranchAdvancedError); ok {
			writeJSON(w, http.StatusConflict, branchInfo{Name: name, Commit: advanced.Actual})
			return
		}
		replyErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, branchInfo{Name: name, Commit: next.String()})
}

// --- Tree nodes --------------------------------------------------------------

func (s *Server) handleHasNode(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.repoOrErr(w, r)
	if !ok {
		return
	}
	h, ok := parseHashParam(w, r, "hash")
	if !ok {
		return
	}
	found, err := nodeExists(entry, h)
	if err != nil {
		replyErr(w, err)
		return
	}
	if !found {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleGetNode(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.repoOrErr(w, r)
	if !ok {
		return
	}
	h, ok := parseHashParam(w, r, "hash")
	if !ok {
		return
	}
	n, err := lookupNode(entry, h)
	if err != nil {
		replyErr(w, err)
		return
	}
	nodesServed.WithLabelValues("sent").Inc()
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(n.Encode())
}

func (s *Server) handlePutNode(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.repoOrErr(w, r)
	if !ok {
		return
	}
	h, ok := parseHashParam(w, r, "hash")
	if !ok {
		return
	}
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	n, err := merkle.Decode(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if n.Hash() != h {
		writeError(w, http.StatusBadRequest, &oxenerr.HashMismatchError{Expected: h.String(), Actual: n.Hash().String()})
		return
	}
	if err := entry.handle.Nodes.Put(n); err != nil {
		replyErr(w, err)
		return
	}
	nodesServed.WithLabelValues("received").Inc()
	w.WriteHeader(http.StatusCreated)
}

type hashesRequest struct {
	Hashes []string `json:"hashes"`
}

type missingResponse struct {
	Missing []string `json:"missing"`
}

func parseHashes(ss []string) ([]hash.Hash, error) {
	out := make([]hash.Hash, len(ss))
	for i, s := range ss {
		h, err := hash.Parse(s)
		if err != nil {
			return nil, err
		}
		out[i] = h
	}
	return out, nil
}

func (s *Server) handleMissingNodeHashes(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.repoOrErr(w, r)
	if !ok {
		return
	}
	var req hashesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	candidates, err := parseHashes(req.Hashes)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var missing []string
	for _, h := range candidates {
		found, err := nodeExists(entry, h)
		if err != nil {
			replyErr(w, err)
			return
		}
		if !found {
			missing = append(missing, h.String())
		}
	}
	writeJSON(w, http.StatusOK, missingResponse{Missing: missing})
}

func (s *Server) handleMissingChunkHashes(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.repoOrErr(w, r)
	if !ok {
		return
	}
	var req hashesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	candidates, err := parseHashes(req.Hashes)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var missing []string
	for _, h := range candidates {
		found, err := entry.handle.VersionStore.Exists(h)
		if err != nil {
			replyErr(w, err)
			return
		}
		if !found {
			missing = append(missing, h.String())
		}
	}
	writeJSON(w, http.StatusOK, missingResponse{Missing: missing})
}

// --- Versions / chunks -------------------------------------------------------

func (s *Server) handleGetBlob(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.repoOrErr(w, r)
	if !ok {
		return
	}
	h, ok := parseHashParam(w, r, "hash")
	if !ok {
		return
	}
	data, err := entry.handle.VersionStore.Get(h)
	if err != nil {
		replyErr(w, err)
		return
	}
	bytesTransferred.WithLabelValues("sent").Add(float64(len(data)))
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handlePutChunk(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.repoOrErr(w, r)
	if !ok {
		return
	}
	target, ok := parseHashParam(w, r, "hash")
	if !ok {
		return
	}
	n, err := strconv.Atoi(chi.URLParam(r, "n"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := entry.handle.VersionStore.PutChunk(target, n, data); err != nil {
		replyErr(w, err)
		return
	}
	bytesTransferred.WithLabelValues("received").Add(float64(len(data)))
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) handleListChunks(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.repoOrErr(w, r)
	if !ok {
		return
	}
	target, ok := parseHashParam(w, r, "hash")
	if !ok {
		return
	}
	nums, err := entry.handle.VersionStore.ListChunks(target)
	if err != nil {
		replyErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Chunks []int `json:"chunks"`
	}{Chunks: nums})
}

func (s *Server) handleCompleteChunks(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.repoOrErr(w, r)
	if !ok {
		return
	}
	target, ok := parseHashParam(w, r, "hash")
	if !ok {
		return
	}
	if _, err := entry.handle.VersionStore.Finalize(target, true); err != nil {
		if mismatch, ok := err.(*oxenerr.HashMismatchError); ok {
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(mismatch.Actual))
			return
		}
		replyErr(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// --- File at revision --------------------------------------------------------

func (s *Server) resolveRev(entry *repoEntry, rev string) (hash.Hash, error) {
	if h, err := hash.Parse(rev); err == nil {
		return h, nil
	}
	return entry.handle.Refs.Get(rev)
}

func (s *Server) handleGetFileAtRev(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.repoOrErr(w, r)
	if !ok {
		return
	}
	rev := chi.URLParam(r, "rev")
	path := chi.URLParam(r, "*")

	commitHash, err := s.resolveRev(entry, rev)
	if err != nil {
		replyErr(w, err)
		return
	}
	commitNode, err := entry.handle.Nodes.Get(merkle.KindCommit, commitHash)
	if err != nil {
		replyErr(w, err)
		return
	}
	commit := commitNode.(*merkle.Commit)

	dirEntry, err := entry.handle.Tree.NodeByPath(commit.RootDirHash, path)
	if err != nil {
		replyErr(w, err)
		return
	}
	fileNode, err := entry.handle.Tree.NodeByHash(merkle.KindFile, dirEntry.Hash)
	if err != nil {
		replyErr(w, err)
		return
	}
	file := fileNode.(*merkle.File)

	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	for _, ch := range file.ChunkHashes {
		data, err := entry.handle.VersionStore.Get(ch)
		if err != nil {
			return
		}
		_, _ = w.Write(data)
	}
}

// --- Compare / merge ---------------------------------------------------------

func splitRange(spec string) (base, head string, ok bool) {
	parts := strings.SplitN(spec, "..", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	return parts[0], parts[1], true
}

type compareResult struct {
	Mergeable bool              `json:"mergeable"`
	Conflicts []oxenerr.Conflict `json:"conflicts,omitempty"`
	Merged    string            `json:"merged,omitempty"`
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.repoOrErr(w, r)
	if !ok {
		return
	}
	baseRev, headRev, ok := splitRange(chi.URLParam(r, "rangeSpec"))
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Errorf("range must be base..head"))
		return
	}
	base, err := s.resolveRev(entry, baseRev)
	if err != nil {
		replyErr(w, err)
		return
	}
	head, err := s.resolveRev(entry, headRev)
	if err != nil {
		replyErr(w, err)
		return
	}
	merged, err := entry.handle.Merge.Merge(r.Context(), base, base, head)
	if conflictErr, isConflict := err.(*oxenerr.MergeConflictError); isConflict {
		writeJSON(w, http.StatusOK, compareResult{Mergeable: false, Conflicts: conflictErr.Conflicts})
		return
	}
	if err != nil {
		replyErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, compareResult{Mergeable: true, Merged: merged.String()})
}

func (s *Server) handleMerge(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.repoOrErr(w, r)
	if !ok {
		return
	}
	baseRev, headRev, ok := splitRange(chi.URLParam(r, "rangeSpec"))
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Errorf("range must be base..head"))
		return
	}
	base, err := s.resolveRev(entry, baseRev)
	if err != nil {
		replyErr(w, err)
		return
	}
	head, err := s.resolveRev(entry, headRev)
	if err != nil {
		replyErr(w, err)
		return
	}
	merged, err := entry.handle.Merge.Merge(r.Context(), base, base, head)
	if conflictErr, isConflict := err.(*oxenerr.MergeConflictError); isConflict {
		writeJSON(w, http.StatusConflict, compareResult{Mergeable: false, Conflicts: conflictErr.Conflicts})
		return
	}
	if err != nil {
		replyErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, compareResult{Mergeable: true, Merged: merged.String()})
}

// --- Lifecycle hooks ----------------------------------------------------------

type actionRequest struct {
	Repo   string      `json:"repo"`
	Detail interface{} `json:"detail,omitempty"`
}

func (s *Server) handleActionStarted(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleActionCompleted(w http.ResponseWriter, r *http.Request) {
	action := chi.URLParam(r, "action")
	var req actionRequest
	_ = decodeJSON(r, &req)
	s.Hooks.Dispatch(webhook.Event{
		Action:    action,
		Repo:      req.Repo,
		Timestamp: time.Now().Unix(),
		Detail:    req.Detail,
	})
	w.WriteHeader(http.StatusNoContent)
}
