package sync_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/oxen-go/oxen/internal/dataframe/format"
	"github.com/oxen-go/oxen/internal/hash"
	"github.com/oxen-go/oxen/internal/server"
	"github.com/oxen-go/oxen/internal/sync"
)

// newWorkspaceTestServer boots a real internal/server instance with one
// repository already created, the way workspace/data-frame CLI
// commands talk to a running `oxen server` over HTTP rather than a
// local repository.Handle.
func newWorkspaceTestServer(t *testing.T) (*httptest.Server, *sync.Client, string) {
	t.Helper()
	s := server.New(server.Options{ReposDir: filepath.Join(t.TempDir(), "repos")}, zap.NewNop())
	require.NoError(t, s.Init())
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	repoReq, err := http.NewRequest(http.MethodPost, ts.URL+"/repos",
		bytes.NewReader([]byte(`{"namespace":"ana","name":"data"}`)))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(repoReq)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	client := sync.NewClient(sync.Remote{Name: "origin", URL: ts.URL}, zap.NewNop())
	return ts, client, "ana/data"
}

func TestWorkspaceClientCreateAddCommitRoundTrips(t *testing.T) {
	_, client, repo := newWorkspaceTestServer(t)
	ctx := context.Background()

	info, err := client.CreateWorkspace(ctx, repo, "ws1", hash.Zero.String(), "main", true)
	require.NoError(t, err)
	assert.Equal(t, "ws1", info.ID)
	assert.Equal(t, "main", info.Branch)

	require.NoError(t, client.AddWorkspaceFile(ctx, repo, "ws1", "data.csv", strings.NewReader("id,name\n1,ana\n2,bob\n")))

	result, err := client.CommitWorkspace(ctx, repo, "ws1", "main", "add data.csv", "ana", "ana@example.com", 1700000000)
	require.NoError(t, err)
	assert.NotEmpty(t, result.Commit)

	// The workspace is destroyed once committed: a second commit call
	// against the same id must fail to find it.
	_, err = client.CommitWorkspace(ctx, repo, "ws1", "main", "second commit", "ana", "ana@example.com", 1700000001)
	assert.Error(t, err)
}

func TestWorkspaceClientAddRemoveFile(t *testing.T) {
	_, client, repo := newWorkspaceTestServer(t)
	ctx := context.Background()

	_, err := client.CreateWorkspace(ctx, repo, "ws1", hash.Zero.String(), "main", true)
	require.NoError(t, err)

	require.NoError(t, client.AddWorkspaceFile(ctx, repo, "ws1", "data.csv", strings.NewReader("id\n1\n")))
	require.NoError(t, client.RemoveWorkspaceFile(ctx, repo, "ws1", "data.csv"))
	require.NoError(t, client.DeleteWorkspace(ctx, repo, "ws1"))
}

func TestWorkspaceClientDataFrameRowsAndAddRow(t *testing.T) {
	_, client, repo := newWorkspaceTestServer(t)
	ctx := context.Background()

	_, err := client.CreateWorkspace(ctx, repo, "ws1", hash.Zero.String(), "main", true)
	require.NoError(t, err)
	require.NoError(t, client.AddWorkspaceFile(ctx, repo, "ws1", "data.csv", strings.NewReader("id,name\n1,ana\n")))

	newID, err := client.AddDataFrameRow(ctx, repo, "ws1", "data.csv", format.Row{int64(2), "bob"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), newID)

	rows, err := client.GetDataFrameRows(ctx, repo, "ws1", "data.csv", "", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name"}, rows.Columns)
	require.Len(t, rows.Rows, 2)
}

func TestWorkspaceClientSchemaOps(t *testing.T) {
	_, client, repo := newWorkspaceTestServer(t)
	ctx := context.Background()

	_, err := client.CreateWorkspace(ctx, repo, "ws1", hash.Zero.String(), "main", true)
	require.NoError(t, err)
	require.NoError(t, client.AddWorkspaceFile(ctx, repo, "ws1", "data.csv", strings.NewReader("id,name\n1,ana\n2,bob\n")))

	require.NoError(t, client.AddDataFrameColumn(ctx, repo, "ws1", "data.csv", "active", "bool", true))
	rows, err := client.GetDataFrameRows(ctx, repo, "ws1", "data.csv", "", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name", "active"}, rows.Columns)

	require.NoError(t, client.RenameDataFrameColumn(ctx, repo, "ws1", "data.csv", "active", "is_active"))
	rows, err = client.GetDataFrameRows(ctx, repo, "ws1", "data.csv", "", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name", "is_active"}, rows.Columns)

	require.NoError(t, client.RetypeDataFrameColumn(ctx, repo, "ws1", "data.csv", "id", "string"))
	require.NoError(t, client.DropDataFrameColumn(ctx, repo, "ws1", "data.csv", "is_active"))
	rows, err = client.GetDataFrameRows(ctx, repo, "ws1", "data.csv", "", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name"}, rows.Columns)
}
