// Package format implements the tabular round-trip codecs the
// data-frame index needs to transcode a committed file into rows and
// serialize an indexed frame's logical view back to its native
// format. Each codec is built directly against its own library's
// documented API.
package format

import (
	"fmt"
	"strings"
)

// Value is one cell: nil, int64, float64, string, or bool. Every codec
// normalizes into this set regardless of its native type system.
type Value interface{}

// Row is one record in column order matching Table.Columns.
type Row []Value

// ColumnType names the logical type DataFrameIndex stores a column
// under. Schema.Fields' DataType strings use exactly these names.
type ColumnType string

const (
	TypeInt64   ColumnType = "int64"
	TypeFloat64 ColumnType = "float64"
	TypeBool    ColumnType = "bool"
	TypeString  ColumnType = "string"
)

// Table is a codec-agnostic tabular payload: a column's declared type
// is the narrowest type every non-null value in that column parses as
// (int64 narrower than float64 narrower than string), inferred once on
// decode and carried through unchanged on re-encode.
type Table struct {
	Columns []string
	Types   []ColumnType
	Rows    []Row
}

// Codec transcodes between a file's native tabular format and Table.
type Codec interface {
	Decode(data []byte) (*Table, error)
	Encode(t *Table) ([]byte, error)
}

// ForExtension resolves the codec for a file extension (without the
// leading dot), matching commitwriter.Classify's own extension set for
// the "tabular" data type.
func ForExtension(ext string) (Codec, error) {
	switch strings.ToLower(ext) {
	case "csv":
		return csvCodec{delimiter: ','}, nil
	case "tsv":
		return csvCodec{delimiter: '\t'}, nil
	case "ndjson", "jsonl":
		return ndjsonCodec{}, nil
	case "parquet":
		return parquetCodec{}, nil
	case "arrow", "ipc":
		return arrowCodec{}, nil
	default:
		return nil, fmt.Errorf("format: no tabular codec for extension %q", ext)
	}
}

// inferType widens acc to cover v: int64 < float64 < string, bool
// stands alone (a column seeing both a bool and a number widens
// straight to string rather than inventing a bool/number union).
func inferType(acc ColumnType, v Value) ColumnType {
	if v == nil {
		return acc
	}
	var this ColumnType
	switch v.(type) {
	case int64:
		this = TypeInt64
	case float64:
		this = TypeFloat64
	case bool:
		this = TypeBool
	default:
		this = TypeString
	}
	if acc == "" {
		return this
	}
	if acc == this {
		return acc
	}
	if (acc == TypeInt64 && this == TypeFloat64) || (acc == TypeFloat64 && this == TypeInt64) {
		return TypeFloat64
	}
	return TypeString
}

// sanitizeIdent turns an arbitrary column name into a safe exported Go
// identifier, used by the parquet codec's dynamically-built struct
// type. The real name travels separately in the struct tag.
func sanitizeIdent(name string, idx int) string {
	var b strings.Builder
	b.WriteString("F")
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	if b.Len() == 1 {
		return fmt.Sprintf("F%d", idx)
	}
	return b.String()
}
