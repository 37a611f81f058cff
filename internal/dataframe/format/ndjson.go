package format

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
)

// ndjsonCodec reads/writes one JSON object per line, grounded on
// stdlib encoding/json for the same reason as csvCodec: the pack
// carries no third-party JSON library better suited to line-delimited
// records than the standard decoder.
type ndjsonCodec struct{}

func (ndjsonCodec) Decode(data []byte) (*Table, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var columns []string
	seen := make(map[string]int)
	var raw []map[string]interface{}

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var obj map[string]interface{}
		if err := json.Unmarshal(line, &obj); err != nil {
			return nil, fmt.Errorf("format: decode ndjson: %w", err)
		}
		for k := range obj {
			if _, ok := seen[k]; !ok {
				seen[k] = len(columns)
				columns = append(columns, k)
			}
		}
		raw = append(raw, obj)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("format: decode ndjson: %w", err)
	}

	types := make([]ColumnType, len(columns))
	rows := make([]Row, len(raw))
	for ri, obj := range raw {
		row := make(Row, len(columns))
		for ci, col := range columns {
			v := normalizeJSON(obj[col])
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

// normalizeJSON narrows json.Unmarshal's float64-for-every-number
// result to int64 when the value carries no fractional part, so a
// column of whole numbers infers as int64 rather than float64.
func normalizeJSON(v interface{}) Value {
	switch x := v.(type) {
	case nil:
		return nil
	case float64:
		if x == float64(int64(x)) {
			return int64(x)
		}
		return x
	default:
		return x
	}
}

func (ndjsonCodec) Encode(t *Table) ([]byte, error) {
	var buf bytes.Buffer
	for _, row := range t.Rows {
		obj := make(map[string]interface{}, len(t.Columns))
		for i, col := range t.Columns {
			if row[i] != nil {
				obj[col] = row[i]
			}
		}
		enc, err := json.Marshal(obj)
		if err != nil {
			return nil, fmt.Errorf("format: encode ndjson row: %w", err)
		}
		buf.Write(enc)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}
