package dataframe_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxen-go/oxen/internal/dataframe"
	"github.com/oxen-go/oxen/internal/dataframe/format"
)

func TestAddColumnFillsDefaultAndLogsChange(t *testing.T) {
	vs := newVersionStore(t)
	file := csvFile(t, vs, "data.csv", "id\n1\n2\n")
	idx, err := dataframe.Open(t.TempDir(), "data.csv", vs, file, nil)
	require.NoError(t, err)
	defer idx.Close()

	require.NoError(t, idx.AddColumn("active", format.TypeBool, true))
	assert.Equal(t, []string{"id", "active"}, idx.Columns())

	rows, err := idx.GetRows("", 0, 0)
	require.NoError(t, err)
	for _, r := range rows {
		assert.Equal(t, true, r.Values[1])
	}

	changes, err := idx.SchemaChanges()
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, "add_column", changes[0].Op)
	assert.Equal(t, "active", changes[0].Column)
}

func TestRenameColumnUpdatesSchema(t *testing.T) {
	vs := newVersionStore(t)
	file := csvFile(t, vs, "data.csv", "id\n1\n")
	idx, err := dataframe.Open(t.TempDir(), "data.csv", vs, file, nil)
	require.NoError(t, err)
	defer idx.Close()

	require.NoError(t, idx.RenameColumn("id", "identifier"))
	assert.Equal(t, []string{"identifier"}, idx.Columns())
	assert.Equal(t, "identifier", idx.Schema().Fields[0].Name)
}

func TestRetypeColumnCoercesExistingValues(t *testing.T) {
	vs := newVersionStore(t)
	file := csvFile(t, vs, "data.csv", "score\n1\n2\n")
	idx, err := dataframe.Open(t.TempDir(), "data.csv", vs, file, nil)
	require.NoError(t, err)
	defer idx.Close()

	require.NoError(t, idx.RetypeColumn("score", format.TypeFloat64))
	table, err := idx.Serialize()
	require.NoError(t, err)
	assert.Equal(t, format.TypeFloat64, table.Types[0])
	assert.Equal(t, float64(1), table.Rows[0][0])
}

func TestDropColumnRemovesItFromSchemaAndRows(t *testing.T) {
	vs := newVersionStore(t)
	file := csvFile(t, vs, "data.csv", "id,name\n1,ana\n")
	idx, err := dataframe.Open(t.TempDir(), "data.csv", vs, file, nil)
	require.NoError(t, err)
	defer idx.Close()

	require.NoError(t, idx.DropColumn("name"))
	assert.Equal(t, []string{"id"}, idx.Columns())

	table, err := idx.Serialize()
	require.NoError(t, err)
	assert.Equal(t, []string{"id"}, table.Columns)
	assert.Len(t, table.Rows[0], 1)
}

func TestRenameUnknownColumnFails(t *testing.T) {
	vs := newVersionStore(t)
	file := csvFile(t, vs, "data.csv", "id\n1\n")
	idx, err := dataframe.Open(t.TempDir(), "data.csv", vs, file, nil)
	require.NoError(t, err)
	defer idx.Close()

	err = idx.RenameColumn("nope", "x")
	require.Error(t, err)
}
