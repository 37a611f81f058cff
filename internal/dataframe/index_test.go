package dataframe_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxen-go/oxen/internal/dataframe"
	"github.com/oxen-go/oxen/internal/dataframe/format"
	"github.com/oxen-go/oxen/internal/hash"
	"github.com/oxen-go/oxen/internal/merkle"
	"github.com/oxen-go/oxen/internal/store"
)

func csvFile(t *testing.T, vs *store.VersionStore, relPath, content string) *merkle.File {
	t.Helper()
	h := hash.Bytes([]byte(content))
	require.NoError(t, vs.PutHash(h, []byte(content)))
	return merkle.NewFile(filepath.Base(relPath), h, int64(len(content)), []hash.Hash{h}, "tabular", "text/csv", "csv", hash.Zero, 0, 0)
}

func newVersionStore(t *testing.T) *store.VersionStore {
	t.Helper()
	backend, err := store.NewLocalBackend(t.TempDir())
	require.NoError(t, err)
	return store.New(backend)
}

func TestOpenMaterializesFreshIndex(t *testing.T) {
	vs := newVersionStore(t)
	file := csvFile(t, vs, "data.csv", "id,name\n1,ana\n2,bob\n")

	idx, err := dataframe.Open(t.TempDir(), "data.csv", vs, file, nil)
	require.NoError(t, err)
	defer idx.Close()

	assert.Equal(t, []string{"id", "name"}, idx.Columns())

	rows, err := idx.GetRows("", 0, 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "unchanged", rows[0].RowStatus)
	assert.Equal(t, int64(1), rows[0].Values[0])
}

func TestOpenReopensWithoutRematerializingWhenContentHashMatches(t *testing.T) {
	vs := newVersionStore(t)
	file := csvFile(t, vs, "data.csv", "id\n1\n")
	dbDir := t.TempDir()

	idx1, err := dataframe.Open(dbDir, "data.csv", vs, file, nil)
	require.NoError(t, err)
	_, err = idx1.AddRow(format.Row{int64(2)})
	require.NoError(t, err)
	require.NoError(t, idx1.Close())

	idx2, err := dataframe.Open(dbDir, "data.csv", vs, file, nil)
	require.NoError(t, err)
	defer idx2.Close()
	rows, err := idx2.GetRows("", 0, 0)
	require.NoError(t, err)
	assert.Len(t, rows, 2, "reopening the same content hash must not wipe staged rows")
}

func TestAddUpdateDeleteRestoreRow(t *testing.T) {
	vs := newVersionStore(t)
	file := csvFile(t, vs, "data.csv", "id,name\n1,ana\n")
	idx, err := dataframe.Open(t.TempDir(), "data.csv", vs, file, nil)
	require.NoError(t, err)
	defer idx.Close()

	newID, err := idx.AddRow(format.Row{int64(2), "bob"})
	require.NoError(t, err)

	require.NoError(t, idx.UpdateRow(newID, format.Row{int64(2), "bobby"}))
	rows, err := idx.GetRows("", 0, 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	require.NoError(t, idx.DeleteRow(newID))
	table, err := idx.Serialize()
	require.NoError(t, err)
	assert.Len(t, table.Rows, 1, "removed row must not appear in the serialized view")

	require.NoError(t, idx.RestoreRow(newID))
	table, err = idx.Serialize()
	require.NoError(t, err)
	assert.Len(t, table.Rows, 2)
}

func TestRestoreRowOnAddedRowFails(t *testing.T) {
	vs := newVersionStore(t)
	file := csvFile(t, vs, "data.csv", "id\n1\n")
	idx, err := dataframe.Open(t.TempDir(), "data.csv", vs, file, nil)
	require.NoError(t, err)
	defer idx.Close()

	newID, err := idx.AddRow(format.Row{int64(9)})
	require.NoError(t, err)
	err = idx.RestoreRow(newID)
	require.Error(t, err)
}

func TestRestoreFrameDropsAllPendingState(t *testing.T) {
	vs := newVersionStore(t)
	file := csvFile(t, vs, "data.csv", "id\n1\n2\n")
	idx, err := dataframe.Open(t.TempDir(), "data.csv", vs, file, nil)
	require.NoError(t, err)
	defer idx.Close()

	_, err = idx.AddRow(format.Row{int64(3)})
	require.NoError(t, err)
	require.NoError(t, idx.DeleteRow(1))
	require.NoError(t, idx.RestoreFrame())

	table, err := idx.Serialize()
	require.NoError(t, err)
	assert.Len(t, table.Rows, 2)
}

func TestSerializeStripsBookkeepingColumns(t *testing.T) {
	vs := newVersionStore(t)
	file := csvFile(t, vs, "data.csv", "id\n1\n")
	idx, err := dataframe.Open(t.TempDir(), "data.csv", vs, file, nil)
	require.NoError(t, err)
	defer idx.Close()

	table, err := idx.Serialize()
	require.NoError(t, err)
	assert.Equal(t, []string{"id"}, table.Columns)
}

func TestDeleteUnknownRowFails(t *testing.T) {
	vs := newVersionStore(t)
	file := csvFile(t, vs, "data.csv", "id\n1\n")
	idx, err := dataframe.Open(t.TempDir(), "data.csv", vs, file, nil)
	require.NoError(t, err)
	defer idx.Close()

	err = idx.DeleteRow(999)
	require.Error(t, err)
}
