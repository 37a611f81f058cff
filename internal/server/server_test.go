package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/oxen-go/oxen/internal/hash"
	"github.com/oxen-go/oxen/internal/merkle"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	s := New(Options{ReposDir: filepath.Join(t.TempDir(), "repos")}, zap.NewNop())
	require.NoError(t, s.Init())
	ts := httptest.NewServer(s.router)
	t.Cleanup(ts.Close)
	t.Cleanup(func() { _ = s.Stop(context.Background()) })
	return s, ts
}

func doJSON(t *testing.T, method, url string, body interface{}) *http.Response {
	t.Helper()
	var r *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	} else {
		r = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, r)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestCreateRepoThenListBranchesIsEmpty(t *testing.T) {
	_, ts := newTestServer(t)

	resp := doJSON(t, http.MethodPost, ts.URL+"/repos", createRepoRequest{Namespace: "ana", Name: "data"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, http.MethodGet, ts.URL+"/repos/ana/data/branches", nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var branches []branchInfo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&branches))
	assert.Empty(t, branches)
}

func TestSetBranchThenGetBranchRoundTrips(t *testing.T) {
	_, ts := newTestServer(t)

	resp := doJSON(t, http.MethodPost, ts.URL+"/repos", createRepoRequest{Namespace: "ana", Name: "data"})
	resp.Body.Close()

	commit := hash.Bytes([]byte("commit-1"))
	resp = doJSON(t, http.MethodPut, ts.URL+"/repos/ana/data/branches/main", branchInfo{Name: "main", Commit: commit.String()})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, ts.URL+"/repos/ana/data/branches/main", nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got branchInfo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, commit.String(), got.Commit)
}

func TestSetBranchWithStaleExpectedReturnsConflict(t *testing.T) {
	_, ts := newTestServer(t)

	resp := doJSON(t, http.MethodPost, ts.URL+"/repos", createRepoRequest{Namespace: "ana", Name: "data"})
	resp.Body.Close()

	first := hash.Bytes([]byte("commit-1"))
	resp = doJSON(t, http.MethodPut, ts.URL+"/repos/ana/data/branches/main", branchInfo{Name: "main", Commit: first.String()})
	resp.Body.Close()

	second := hash.Bytes([]byte("commit-2"))
	req, err := http.NewRequest(http.MethodPut, ts.URL+"/repos/ana/data/branches/main?expected="+hash.Zero.String(),
		bytes.NewReader(mustJSON(t, branchInfo{Name: "main", Commit: second.String()})))
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	var got branchInfo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, first.String(), got.Commit)
}

func mustJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestPutNodeThenGetNodeRoundTrips(t *testing.T) {
	_, ts := newTestServer(t)

	resp := doJSON(t, http.MethodPost, ts.URL+"/repos", createRepoRequest{Namespace: "ana", Name: "data"})
	resp.Body.Close()

	dir := merkle.NewDir("", nil, 0, hash.Zero, 0, 0, nil, nil)
	encoded := dir.Encode()

	req, err := http.NewRequest(http.MethodPut, ts.URL+"/repos/ana/data/tree/nodes/"+dir.Hash().String(), bytes.NewReader(encoded))
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, ts.URL+"/repos/ana/data/tree/nodes/"+dir.Hash().String(), nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	roundTripped, err := merkle.Decode(readAll(t, resp))
	require.NoError(t, err)
	assert.Equal(t, dir.Hash(), roundTripped.Hash())
}

func TestGetNodeForUnknownHashIs404(t *testing.T) {
	_, ts := newTestServer(t)
	resp := doJSON(t, http.MethodPost, ts.URL+"/repos", createRepoRequest{Namespace: "ana", Name: "data"})
	resp.Body.Close()

	resp = doJSON(t, http.MethodGet, ts.URL+"/repos/ana/data/tree/nodes/"+hash.Bytes([]byte("missing")).String(), nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDataFrameSchemaOpAddColumnAppearsInRows(t *testing.T) {
	_, ts := newTestServer(t)

	resp := doJSON(t, http.MethodPost, ts.URL+"/repos", createRepoRequest{Namespace: "ana", Name: "data"})
	resp.Body.Close()

	resp = doJSON(t, http.MethodPut, ts.URL+"/repos/ana/data/workspaces", map[string]interface{}{
		"id": "ws1", "base_commit": hash.Zero.String(), "branch": "main", "editable": true,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/repos/ana/data/workspaces/ws1/files/data.csv",
		bytes.NewReader([]byte("id,name\n1,ana\n2,bob\n")))
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, ts.URL+"/repos/ana/data/workspaces/ws1/schema/data.csv", map[string]interface{}{
		"op": "add_column", "column": "active", "data_type": "bool", "default": true,
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, ts.URL+"/repos/ana/data/workspaces/ws1/data_frames/data.csv/rows", nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var rows rowsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rows))
	assert.Equal(t, []string{"id", "name", "active"}, rows.Columns)
	require.Len(t, rows.Rows, 2)
	assert.Equal(t, true, rows.Rows[0].Values[2])
}

func TestDataFrameSchemaOpUnknownOpReturnsBadRequest(t *testing.T) {
	_, ts := newTestServer(t)

	resp := doJSON(t, http.MethodPost, ts.URL+"/repos", createRepoRequest{Namespace: "ana", Name: "data"})
	resp.Body.Close()

	resp = doJSON(t, http.MethodPut, ts.URL+"/repos/ana/data/workspaces", map[string]interface{}{
		"id": "ws1", "base_commit": hash.Zero.String(), "branch": "main", "editable": true,
	})
	resp.Body.Close()

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/repos/ana/data/workspaces/ws1/files/data.csv",
		bytes.NewReader([]byte("id\n1\n")))
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	resp = doJSON(t, http.MethodPost, ts.URL+"/repos/ana/data/workspaces/ws1/schema/data.csv", map[string]interface{}{
		"op": "not_a_real_op", "column": "id",
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestActionCompletedDispatchesWebhook(t *testing.T) {
	var received webhookPayload
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer hook.Close()

	s := New(Options{ReposDir: filepath.Join(t.TempDir(), "repos"), Webhooks: []string{hook.URL}}, zap.NewNop())
	require.NoError(t, s.Init())
	ts := httptest.NewServer(s.router)
	defer ts.Close()

	resp := doJSON(t, http.MethodPost, ts.URL+"/action/completed/push", actionRequest{Repo: "ana/data"})
	defer resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
}

type webhookPayload struct {
	Action string `json:"action"`
	Repo   string `json:"repo"`
}

func readAll(t *testing.T, resp *http.Response) []byte {
	t.Helper()
	var buf bytes.Buffer
	_, err := buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return buf.Bytes()
}
