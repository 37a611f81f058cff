package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/oxen-go/oxen/internal/dataframe"
	"github.com/oxen-go/oxen/internal/dataframe/format"
	"github.com/oxen-go/oxen/internal/hash"
	"github.com/oxen-go/oxen/internal/oxenerr"
	"github.com/oxen-go/oxen/internal/webhook"
)

func webhookEvent(action, repo, detail string) webhook.Event {
	return webhook.Event{Action: action, Repo: repo, Timestamp: time.Now().Unix(), Detail: detail}
}

type createWorkspaceRequest struct {
	ID         string `json:"id"`
	BaseCommit string `json:"base_commit"`
	Branch     string `json:"branch"`
	Editable   bool   `json:"editable"`
}

type workspaceResponse struct {
	ID         string `json:"id"`
	BaseCommit string `json:"base_commit"`
	Branch     string `json:"branch"`
	Editable   bool   `json:"editable"`
}

func (s *Server) handleCreateWorkspace(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.repoOrErr(w, r)
	if !ok {
		return
	}
	var req createWorkspaceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	base, err := hash.Parse(req.BaseCommit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	ws, err := entry.workspace.Create(req.ID, base, req.Branch, req.Editable)
	if err != nil {
		replyErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, workspaceResponse{
		ID:         ws.ID,
		BaseCommit: ws.BaseCommit.String(),
		Branch:     ws.BranchName,
		Editable:   ws.Editable,
	})
}

func (s *Server) handleDeleteWorkspace(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.repoOrErr(w, r)
	if !ok {
		return
	}
	entry.workspace.Delete(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddWorkspaceFile(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.repoOrErr(w, r)
	if !ok {
		return
	}
	ws, err := entry.workspace.Get(chi.URLParam(r, "id"))
	if err != nil {
		replyErr(w, err)
		return
	}
	dst := chi.URLParam(r, "dst")
	if err := ws.AddFile(dst, r.Body); err != nil {
		replyErr(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) handleRemoveWorkspaceFile(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.repoOrErr(w, r)
	if !ok {
		return
	}
	ws, err := entry.workspace.Get(chi.URLParam(r, "id"))
	if err != nil {
		replyErr(w, err)
		return
	}
	path := chi.URLParam(r, "*")
	if err := ws.RemoveFile(path); err != nil {
		replyErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type commitWorkspaceRequest struct {
	Message   string `json:"message"`
	Author    string `json:"author"`
	Email     string `json:"email"`
	Timestamp int64  `json:"timestamp"`
}

type commitWorkspaceResponse struct {
	Commit string `json:"commit"`
}

func (s *Server) handleCommitWorkspace(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.repoOrErr(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	branch := chi.URLParam(r, "branch")

	ws, err := entry.workspace.Get(id)
	if err != nil {
		replyErr(w, err)
		return
	}

	var req commitWorkspaceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := ws.Commit(branch, req.Message, req.Author, req.Email, req.Timestamp)
	if err != nil {
		replyErr(w, err)
		return
	}
	entry.workspace.Delete(id)

	s.Hooks.Dispatch(webhookEvent("commit", chi.URLParam(r, "ns")+"/"+chi.URLParam(r, "name"), result.Commit.ID.String()))
	writeJSON(w, http.StatusCreated, commitWorkspaceResponse{Commit: result.Commit.ID.String()})
}

// dataFramePath splits the chi wildcard capture "{relPath}/rows" that
// both data-frame endpoints share, since chi can't express a literal
// suffix after a wildcard segment.
func dataFramePath(raw string) (string, bool) {
	if !strings.HasSuffix(raw, "/rows") {
		return "", false
	}
	return strings.TrimSuffix(raw, "/rows"), true
}

// dataFrameRowPath splits the wildcard capture "{relPath}/rows/{rowID}"
// shared by the update-row and delete-row routes.
func dataFrameRowPath(raw string) (relPath string, rowID int64, ok bool) {
	i := strings.LastIndex(raw, "/rows/")
	if i < 0 {
		return "", 0, false
	}
	id, err := strconv.ParseInt(raw[i+len("/rows/"):], 10, 64)
	if err != nil {
		return "", 0, false
	}
	return raw[:i], id, true
}

// dataFrameRowRestorePath splits the wildcard capture
// "{relPath}/rows/{rowID}/restore" the restore-row POST shares with
// add-row and restore-frame on the same route.
func dataFrameRowRestorePath(raw string) (relPath string, rowID int64, ok bool) {
	if !strings.HasSuffix(raw, "/restore") {
		return "", 0, false
	}
	return dataFrameRowPath(strings.TrimSuffix(raw, "/restore"))
}

// dataFrameRestorePath splits the wildcard capture "{relPath}/restore"
// the restore-frame POST shares with add-row and restore-row.
func dataFrameRestorePath(raw string) (string, bool) {
	if !strings.HasSuffix(raw, "/restore") {
		return "", false
	}
	return strings.TrimSuffix(raw, "/restore"), true
}

type rowsResponse struct {
	Columns []string   `json:"columns"`
	Rows    []rowPayload `json:"rows"`
}

type rowPayload struct {
	ID     int64       `json:"id"`
	Values format.Row  `json:"values"`
	Status string      `json:"status"`
}

func (s *Server) handleDataFrameRows(w http.ResponseWriter, r *http.Request) {
	relPath, ok := dataFramePath(chi.URLParam(r, "*"))
	if !ok {
		writeError(w, http.StatusNotFound, &oxenerr.NotFoundError{Kind: "route", ID: r.URL.Path})
		return
	}
	idx, ok := s.openFrame(w, r, relPath)
	if !ok {
		return
	}

	filter := r.URL.Query().Get("filter")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if limit <= 0 {
		limit = 100
	}

	rows, err := idx.GetRows(filter, limit, offset)
	if err != nil {
		replyErr(w, err)
		return
	}
	out := rowsResponse{Columns: idx.Columns()}
	for _, row := range rows {
		out.Rows = append(out.Rows, rowPayload{ID: row.ID, Values: row.Values, Status: row.RowStatus})
	}
	writeJSON(w, http.StatusOK, out)
}

type addRowRequest struct {
	Values format.Row `json:"values"`
}

type addRowResponse struct {
	ID int64 `json:"id"`
}

// openFrame resolves {id} and relPath into an open dataframe.Index,
// replying with an error and returning ok=false on any failure.
func (s *Server) openFrame(w http.ResponseWriter, r *http.Request, relPath string) (*dataframe.Index, bool) {
	entry, ok := s.repoOrErr(w, r)
	if !ok {
		return nil, false
	}
	ws, err := entry.workspace.Get(chi.URLParam(r, "id"))
	if err != nil {
		replyErr(w, err)
		return nil, false
	}
	idx, err := ws.OpenDataFrame(relPath)
	if err != nil {
		replyErr(w, err)
		return nil, false
	}
	return idx, true
}

// handleDataFramePost dispatches every POST under
// "/workspaces/{id}/data_frames/*" onto add-row, restore-row, or
// restore-frame, since chi's wildcard can't itself distinguish the
// "/rows", "/rows/{id}/restore", and "/restore" suffixes sharing the
// route.
func (s *Server) handleDataFramePost(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "*")

	if relPath, rowID, ok := dataFrameRowRestorePath(raw); ok {
		idx, ok := s.openFrame(w, r, relPath)
		if !ok {
			return
		}
		if err := idx.RestoreRow(rowID); err != nil {
			replyErr(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if relPath, ok := dataFrameRestorePath(raw); ok {
		idx, ok := s.openFrame(w, r, relPath)
		if !ok {
			return
		}
		if err := idx.RestoreFrame(); err != nil {
			replyErr(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if relPath, ok := dataFramePath(raw); ok {
		idx, ok := s.openFrame(w, r, relPath)
		if !ok {
			return
		}
		var req addRowRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		id, err := idx.AddRow(req.Values)
		if err != nil {
			replyErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, addRowResponse{ID: id})
		return
	}

	writeError(w, http.StatusNotFound, &oxenerr.NotFoundError{Kind: "route", ID: r.URL.Path})
}

type updateRowRequest struct {
	Values format.Row `json:"values"`
}

// handleDataFrameUpdateRow handles PUT
// "/workspaces/{id}/data_frames/{relPath}/rows/{rowID}".
func (s *Server) handleDataFrameUpdateRow(w http.ResponseWriter, r *http.Request) {
	relPath, rowID, ok := dataFrameRowPath(chi.URLParam(r, "*"))
	if !ok {
		writeError(w, http.StatusNotFound, &oxenerr.NotFoundError{Kind: "route", ID: r.URL.Path})
		return
	}
	idx, ok := s.openFrame(w, r, relPath)
	if !ok {
		return
	}
	var req updateRowRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := idx.UpdateRow(rowID, req.Values); err != nil {
		replyErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleDataFrameDeleteRow handles DELETE
// "/workspaces/{id}/data_frames/{relPath}/rows/{rowID}".
func (s *Server) handleDataFrameDeleteRow(w http.ResponseWriter, r *http.Request) {
	relPath, rowID, ok := dataFrameRowPath(chi.URLParam(r, "*"))
	if !ok {
		writeError(w, http.StatusNotFound, &oxenerr.NotFoundError{Kind: "route", ID: r.URL.Path})
		return
	}
	idx, ok := s.openFrame(w, r, relPath)
	if !ok {
		return
	}
	if err := idx.DeleteRow(rowID); err != nil {
		replyErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// schemaOpRequest names one of dataframe.Index's column operations.
// Only the fields each op actually reads need to be set: add_column
// reads Column/DataType/Default, rename_column reads Column/NewName,
// retype_column reads Column/DataType, drop_column reads only Column.
type schemaOpRequest struct {
	Op       string       `json:"op"`
	Column   string       `json:"column"`
	NewName  string       `json:"new_name"`
	DataType string       `json:"data_type"`
	Default  format.Value `json:"default"`
}

// handleDataFrameSchemaOp's route ("/workspaces/{id}/schema/*") has no
// trailing literal segment after the wildcard the way the data-frame
// rows routes do, so the wildcard capture is relPath verbatim, no
// suffix-trimming needed.
func (s *Server) handleDataFrameSchemaOp(w http.ResponseWriter, r *http.Request) {
	relPath := chi.URLParam(r, "*")
	if relPath == "" {
		writeError(w, http.StatusNotFound, &oxenerr.NotFoundError{Kind: "route", ID: r.URL.Path})
		return
	}
	idx, ok := s.openFrame(w, r, relPath)
	if !ok {
		return
	}

	var req schemaOpRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var err error
	switch req.Op {
	case "add_column":
		err = idx.AddColumn(req.Column, format.ColumnType(req.DataType), req.Default)
	case "rename_column":
		err = idx.RenameColumn(req.Column, req.NewName)
	case "retype_column":
		err = idx.RetypeColumn(req.Column, format.ColumnType(req.DataType))
	case "drop_column":
		err = idx.DropColumn(req.Column)
	default:
		writeError(w, http.StatusBadRequest, fmt.Errorf("unknown schema op %q", req.Op))
		return
	}
	if err != nil {
		replyErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
