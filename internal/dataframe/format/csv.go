package format

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
)

// csvCodec handles both csv and tsv via delimiter, grounded on
// stdlib encoding/csv — no pack example wires a third-party CSV
// library and the standard package already covers quoting/escaping
// correctly, so reaching past it would add a dependency for no gain.
type csvCodec struct {
	delimiter rune
}

func (c csvCodec) Decode(data []byte) (*Table, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = c.delimiter
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("format: decode csv: %w", err)
	}
	if len(records) == 0 {
		return &Table{}, nil
	}

	columns := records[0]
	raw := records[1:]
	types := make([]ColumnType, len(columns))
	rows := make([]Row, len(raw))

	for ri, rec := range raw {
		row := make(Row, len(columns))
		for ci := range columns {
			var cell string
			if ci < len(rec) {
				cell = rec[ci]
			}
			v := parseCell(cell)
			row[ci] = v
			types[ci] = inferType(types[ci], v)
		}
		rows[ri] = row
	}
	for ci, t := range types {
		if t == "" {
			types[ci] = TypeString
		}
	}
	return &Table{Columns: columns, Types: types, Rows: rows}, nil
}

func (c csvCodec) Encode(t *Table) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = c.delimiter

	if err := w.Write(t.Columns); err != nil {
		return nil, fmt.Errorf("format: encode csv header: %w", err)
	}
	for _, row := range t.Rows {
		rec := make([]string, len(row))
		for i, v := range row {
			rec[i] = formatCell(v)
		}
		if err := w.Write(rec); err != nil {
			return nil, fmt.Errorf("format: encode csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// parseCell sniffs an empty-as-nil, then int64, then float64, then
// bool, falling back to string. Per-column widening happens in
// inferType once every row has been sniffed this way.
func parseCell(s string) Value {
	if s == "" {
		return nil
	}
	if iv, err := strconv.ParseInt(s, 10, 64); err == nil {
		return iv
	}
	if fv, err := strconv.ParseFloat(s, 64); err == nil {
		return fv
	}
	if bv, err := strconv.ParseBool(s); err == nil {
		return bv
	}
	return s
}

func formatCell(v Value) string {
	switch x := v.(type) {
	case nil:
		return ""
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case string:
		return x
	default:
		return fmt.Sprintf("%v", x)
	}
}
