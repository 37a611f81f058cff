package format_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxen-go/oxen/internal/dataframe/format"
)

func TestForExtensionResolvesKnownCodecs(t *testing.T) {
	for _, ext := range []string{"csv", "tsv", "ndjson", "jsonl", "parquet", "arrow"} {
		_, err := format.ForExtension(ext)
		assert.NoError(t, err, ext)
	}
	_, err := format.ForExtension("exe")
	assert.Error(t, err)
}

func TestCSVRoundTripInfersColumnTypes(t *testing.T) {
	c, err := format.ForExtension("csv")
	require.NoError(t, err)

	src := "id,score,label,active\n1,9.5,cat,true\n2,,dog,false\n"
	table, err := c.Decode([]byte(src))
	require.NoError(t, err)

	require.Equal(t, []string{"id", "score", "label", "active"}, table.Columns)
	assert.Equal(t, format.TypeInt64, table.Types[0])
	assert.Equal(t, format.TypeFloat64, table.Types[1])
	assert.Equal(t, format.TypeString, table.Types[2])
	assert.Equal(t, format.TypeBool, table.Types[3])
	require.Len(t, table.Rows, 2)
	assert.Equal(t, int64(1), table.Rows[0][0])
	assert.Nil(t, table.Rows[1][1])

	out, err := c.Encode(table)
	require.NoError(t, err)

	reDecoded, err := c.Decode(out)
	require.NoError(t, err)
	assert.Equal(t, table.Columns, reDecoded.Columns)
	assert.Equal(t, len(table.Rows), len(reDecoded.Rows))
}

func TestTSVUsesTabDelimiter(t *testing.T) {
	c, err := format.ForExtension("tsv")
	require.NoError(t, err)
	table, err := c.Decode([]byte("a\tb\n1\t2\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, table.Columns)
	assert.Equal(t, int64(2), table.Rows[0][1])
}

func TestNDJSONRoundTripWidensIntToFloatAcrossRows(t *testing.T) {
	c, err := format.ForExtension("ndjson")
	require.NoError(t, err)

	src := "{\"x\": 1, \"name\": \"a\"}\n{\"x\": 2.5, \"name\": \"b\"}\n"
	table, err := c.Decode([]byte(src))
	require.NoError(t, err)
	xIdx, nameIdx := -1, -1
	for i, col := range table.Columns {
		switch col {
		case "x":
			xIdx = i
		case "name":
			nameIdx = i
		}
	}
	require.NotEqual(t, -1, xIdx)
	require.NotEqual(t, -1, nameIdx)
	assert.Equal(t, format.TypeFloat64, table.Types[xIdx])
	assert.Equal(t, format.TypeString, table.Types[nameIdx])

	out, err := c.Encode(table)
	require.NoError(t, err)
	reDecoded, err := c.Decode(out)
	require.NoError(t, err)
	assert.Len(t, reDecoded.Rows, 2)
}

func TestNDJSONUnionsColumnsAcrossSparseRows(t *testing.T) {
	c, err := format.ForExtension("jsonl")
	require.NoError(t, err)
	src := "{\"a\": 1}\n{\"b\": \"x\"}\n"
	table, err := c.Decode([]byte(src))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, table.Columns)
	assert.Len(t, table.Rows, 2)
}
