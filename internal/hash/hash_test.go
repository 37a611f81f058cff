package hash_test

import (
	"bytes"
	"testing"

	"github.com/oxen-go/oxen/internal/hash"
	"github.com/stretchr/testify/require"
)

func TestBytesDeterministic(t *testing.T) {
	a := hash.Bytes([]byte("Hello World"))
	b := hash.Bytes([]byte("Hello World"))
	require.Equal(t, a, b)
	require.Len(t, a.String(), 32)
}

func TestBytesVsReader(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog")
	a := hash.Bytes(data)
	b, err := hash.Reader(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestEmptyInput(t *testing.T) {
	h := hash.Bytes(nil)
	require.False(t, h.IsZero(), "empty content must still hash to a non-zero digest")
}

func TestParseRoundTrip(t *testing.T) {
	h := hash.Bytes([]byte("round trip"))
	parsed, err := hash.Parse(h.String())
	require.NoError(t, err)
	require.Equal(t, h, parsed)
}

func TestParseInvalidLength(t *testing.T) {
	_, err := hash.Parse("abcd")
	require.Error(t, err)
}

func TestRecordFieldOrderMatters(t *testing.T) {
	a := hash.Record(hash.StringField("name", "x"), hash.StringField("value", "y"))
	b := hash.Record(hash.StringField("value", "y"), hash.StringField("name", "x"))
	require.NotEqual(t, a, b)
}

func TestRecordFieldBoundaryUnambiguous(t *testing.T) {
	a := hash.Record(hash.StringField("a", "ab"), hash.StringField("b", "c"))
	b := hash.Record(hash.StringField("a", "a"), hash.StringField("b", "bc"))
	require.NotEqual(t, a, b, "length-prefixed fields must not collide across a boundary shift")
}
