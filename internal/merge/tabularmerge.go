package merge

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/oxen-go/oxen/internal/dataframe/format"
	"github.com/oxen-go/oxen/internal/oxenerr"
)

// mergeTabular three-way merges a tabular file row by row, keyed by
// each row's first column. It assumes the same column set on both
// sides (the open question of merging a schema change concurrent with
// a row edit is left as a whole-file conflict rather than guessed at)
// and widens each row's decision by the same base/ours/theirs
// comparison mergeDir uses for tree entries.
func (e *Engine) mergeTabular(relPath, ext string, baseBytes, ourBytes, theirBytes []byte) ([]byte, *oxenerr.Conflict, error) {
	codec, err := format.ForExtension(ext)
	if err != nil {
		return nil, nil, err
	}

	ourTable, err := codec.Decode(ourBytes)
	if err != nil {
		return nil, nil, fmt.Errorf("merge: decode %s (ours): %w", relPath, err)
	}
	theirTable, err := codec.Decode(theirBytes)
	if err != nil {
		return nil, nil, fmt.Errorf("merge: decode %s (theirs): %w", relPath, err)
	}
	if strings.Join(ourTable.Columns, "\x00") != strings.Join(theirTable.Columns, "\x00") {
		return nil, &oxenerr.Conflict{Path: relPath, Reason: "columns diverged on both sides"}, nil
	}

	var baseTable *format.Table
	if baseBytes != nil {
		baseTable, err = codec.Decode(baseBytes)
		if err != nil {
			return nil, nil, fmt.Errorf("merge: decode %s (base): %w", relPath, err)
		}
	}

	baseRows := rowsByKey(baseTable)
	ourRows := rowsByKeyFromTable(ourTable)
	theirRows := rowsByKeyFromTable(theirTable)

	keys := unionKeys(baseRows, ourRows, theirRows)
	sort.Strings(keys)

	merged := &format.Table{Columns: ourTable.Columns, Types: ourTable.Types}
	for _, key := range keys {
		b, bOK := baseRows[key]
		o, oOK := ourRows[key]
		t, tOK := theirRows[key]

		switch {
		case oOK && tOK && rowsEqual(o, t):
			merged.Rows = append(merged.Rows, o)

		case oOK && tOK:
			switch {
			case bOK && rowsEqual(b, o):
				merged.Rows = append(merged.Rows, t)
			case bOK && rowsEqual(b, t):
				merged.Rows = append(merged.Rows, o)
			default:
				return nil, &oxenerr.Conflict{
					Path:    relPath,
					RowKey:  key,
					Reason:  "row modified on both sides",
					Ours:    fmt.Sprint(o),
					Theirs:  fmt.Sprint(t),
					BaseVal: rowString(b, bOK),
				}, nil
			}

		case oOK && !tOK:
			if !bOK || rowsEqual(b, o) {
				if !bOK {
					merged.Rows = append(merged.Rows, o)
				}
				continue
			}
			return nil, &oxenerr.Conflict{
				Path:    relPath,
				RowKey:  key,
				Reason:  "row modified on our side, deleted on theirs",
				Ours:    fmt.Sprint(o),
				BaseVal: rowString(b, bOK),
			}, nil

		case tOK && !oOK:
			if !bOK || rowsEqual(b, t) {
				if !bOK {
					merged.Rows = append(merged.Rows, t)
				}
				continue
			}
			return nil, &oxenerr.Conflict{
				Path:    relPath,
				RowKey:  key,
				Reason:  "row modified on their side, deleted on ours",
				Theirs:  fmt.Sprint(t),
				BaseVal: rowString(b, bOK),
			}, nil
		}
	}

	data, err := codec.Encode(merged)
	if err != nil {
		return nil, nil, fmt.Errorf("merge: encode %s: %w", relPath, err)
	}
	return data, nil, nil
}

func rowsByKey(t *format.Table) map[string]format.Row {
	if t == nil {
		return map[string]format.Row{}
	}
	return rowsByKeyFromTable(t)
}

func rowsByKeyFromTable(t *format.Table) map[string]format.Row {
	m := make(map[string]format.Row, len(t.Rows))
	for _, row := range t.Rows {
		m[rowKey(row)] = row
	}
	return m
}

func rowKey(row format.Row) string {
	if len(row) == 0 {
		return ""
	}
	return fmt.Sprint(row[0])
}

func rowsEqual(a, b format.Row) bool {
	return reflect.DeepEqual(a, b)
}

func rowString(row format.Row, ok bool) string {
	if !ok {
		return ""
	}
	return fmt.Sprint(row)
}

func unionKeys(maps ...map[string]format.Row) []string {
	seen := map[string]bool{}
	var keys []string
	for _, m := range maps {
		for k := range m {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	return keys
}
