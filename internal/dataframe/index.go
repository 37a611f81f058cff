// Package dataframe implements the server-side row-level view over a
// committed tabular file: materializing a file into a queryable
// table, tracking per-row add/modify/remove state, and serializing
// the logical view back to the file's native format on workspace
// commit. The sqlite wiring below follows database/sql's standard
// patterns, with modernc.org/sqlite as the driver.
package dataframe

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/oxen-go/oxen/internal/dataframe/format"
	"github.com/oxen-go/oxen/internal/hash"
	"github.com/oxen-go/oxen/internal/merkle"
	"github.com/oxen-go/oxen/internal/oxenerr"
	"github.com/oxen-go/oxen/internal/store"
)

const (
	statusUnchanged = "unchanged"
	statusAdded     = "added"
	statusModified  = "modified"
	statusRemoved   = "removed"

	colRowStatus = "_row_status"
	colRowHash   = "_row_hash"

	metaContentHash = "content_hash"
)

// Row is one materialized record, including the two bookkeeping
// columns, keyed by sqlite's implicit rowid.
type Row struct {
	ID        int64
	Values    format.Row
	RowStatus string
	RowHash   string
}

// Index is one workspace's indexed view of a tabular file. Merkle's
// File node carries no link to a Schema node (nothing in the committed
// tree needs one outside this package), so Index resolves a file's
// columns by decoding the file itself on first materialize, unless the
// caller passes a known Schema. The Schema is held by the Index only:
// it is not written to nodedb, and no mapping from the file's
// ContentHash to a Schema is recorded.
type Index struct {
	mu sync.Mutex
	db *sql.DB

	columns []string
	types   []format.ColumnType
	schema  *merkle.Schema
}

// ReadFileBytes reassembles a File node's full content from
// VersionStore, following the same chunk-concatenation the checkout
// path uses.
func ReadFileBytes(vs *store.VersionStore, file *merkle.File) ([]byte, error) {
	var buf []byte
	for _, ch := range file.ChunkHashes {
		data, err := vs.Get(ch)
		if err != nil {
			return nil, fmt.Errorf("dataframe: read chunk %s: %w", ch, err)
		}
		buf = append(buf, data...)
	}
	return buf, nil
}

func dbFileName(relPath string) string {
	var b strings.Builder
	for _, r := range relPath {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String() + ".db"
}

// SchemaOf derives a Schema node from a decoded Table's inferred
// columns, used the first time a file is indexed (no prior Schema on
// record for its content hash).
func SchemaOf(t *format.Table) *merkle.Schema {
	fields := make([]merkle.SchemaField, len(t.Columns))
	for i, col := range t.Columns {
		fields[i] = merkle.SchemaField{Name: col, DataType: string(t.Types[i])}
	}
	return merkle.NewSchema(fields, "xxh3-record")
}

// Open materializes relPath's indexed view if it isn't already
// materialized at baseFile's content hash, or reopens the existing
// database file otherwise. dbDir is the workspace's on-disk area for
// this file's index.
func Open(dbDir, relPath string, vs *store.VersionStore, baseFile *merkle.File, knownSchema *merkle.Schema) (*Index, error) {
	if err := os.MkdirAll(dbDir, 0o755); err != nil {
		return nil, fmt.Errorf("dataframe: create %s: %w", dbDir, err)
	}
	dbPath := filepath.Join(dbDir, dbFileName(relPath))

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("dataframe: open %s: %w", dbPath, err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS _oxen_meta (key TEXT PRIMARY KEY, value TEXT)`); err != nil {
		db.Close()
		return nil, err
	}

	idx := &Index{db: db}

	current, err := idx.metaGet(metaContentHash)
	if err != nil {
		db.Close()
		return nil, err
	}
	if current == baseFile.ContentHash.String() {
		if err := idx.loadColumns(knownSchema); err != nil {
			db.Close()
			return nil, err
		}
		return idx, nil
	}

	data, err := ReadFileBytes(vs, baseFile)
	if err != nil {
		db.Close()
		return nil, err
	}
	codec, err := format.ForExtension(strings.TrimPrefix(filepath.Ext(relPath), "."))
	if err != nil {
		db.Close()
		return nil, err
	}
	table, err := codec.Decode(data)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("dataframe: decode %s: %w", relPath, err)
	}

	schema := knownSchema
	if schema == nil {
		schema = SchemaOf(table)
	}
	if err := idx.materialize(table, schema); err != nil {
		db.Close()
		return nil, err
	}
	if err := idx.metaSet(metaContentHash, baseFile.ContentHash.String()); err != nil {
		db.Close()
		return nil, err
	}
	return idx, nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func sqlTypeOf(t format.ColumnType) string {
	switch t {
	case format.TypeInt64, format.TypeBool:
		return "INTEGER"
	case format.TypeFloat64:
		return "REAL"
	default:
		return "TEXT"
	}
}

func (idx *Index) materialize(table *format.Table, schema *merkle.Schema) error {
	idx.columns = table.Columns
	idx.types = table.Types
	idx.schema = schema

	tx, err := idx.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DROP TABLE IF EXISTS df`); err != nil {
		return err
	}
	var cols []string
	for i, col := range table.Columns {
		cols = append(cols, fmt.Sprintf("%s %s", quoteIdent(col), sqlTypeOf(table.Types[i])))
	}
	cols = append(cols,
		fmt.Sprintf("%s TEXT NOT NULL DEFAULT '%s'", quoteIdent(colRowStatus), statusUnchanged),
		fmt.Sprintf("%s TEXT NOT NULL", quoteIdent(colRowHash)))
	if _, err := tx.Exec(fmt.Sprintf("CREATE TABLE df (%s)", strings.Join(cols, ", "))); err != nil {
		return err
	}

	insertCols := append(append([]string(nil), table.Columns...), colRowStatus, colRowHash)
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(insertCols)), ", ")
	quoted := make([]string, len(insertCols))
	for i, c := range insertCols {
		quoted[i] = quoteIdent(c)
	}
	stmt, err := tx.Prepare(fmt.Sprintf("INSERT INTO df (%s) VALUES (%s)", strings.Join(quoted, ", "), placeholders))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, row := range table.Rows {
		args := make([]interface{}, 0, len(insertCols))
		for _, v := range row {
			args = append(args, sqlArg(v))
		}
		rh := rowHash(table.Columns, table.Types, row)
		args = append(args, statusUnchanged, rh.String())
		if _, err := stmt.Exec(args...); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (idx *Index) loadColumns(knownSchema *merkle.Schema) error {
	rows, err := idx.db.Query(`PRAGMA table_info(df)`)
	if err != nil {
		return err
	}
	defer rows.Close()

	var columns []string
	var types []format.ColumnType
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return err
		}
		if name == colRowStatus || name == colRowHash {
			continue
		}
		columns = append(columns, name)
		switch ctype {
		case "INTEGER":
			types = append(types, format.TypeInt64)
		case "REAL":
			types = append(types, format.TypeFloat64)
		default:
			types = append(types, format.TypeString)
		}
	}
	idx.columns = columns
	idx.types = types
	idx.schema = knownSchema
	return nil
}

func sqlArg(v format.Value) interface{} {
	if v == nil {
		return nil
	}
	if b, ok := v.(bool); ok {
		if b {
			return int64(1)
		}
		return int64(0)
	}
	return v
}

func rowHash(columns []string, types []format.ColumnType, row format.Row) hash.Hash {
	fields := make([]hash.Field, len(columns))
	for i, col := range columns {
		var v format.Value
		if i < len(row) {
			v = row[i]
		}
		switch types[i] {
		case format.TypeInt64:
			iv, _ := v.(int64)
			fields[i] = hash.Int64Field(col, iv)
		case format.TypeFloat64:
			fv, _ := v.(float64)
			fields[i] = hash.StringField(col, strconv.FormatFloat(fv, 'g', -1, 64))
		case format.TypeBool:
			bv, _ := v.(bool)
			fields[i] = hash.StringField(col, strconv.FormatBool(bv))
		default:
			s, _ := v.(string)
			fields[i] = hash.StringField(col, s)
		}
	}
	return hash.Record(fields...)
}

func (idx *Index) metaGet(key string) (string, error) {
	var value string
	err := idx.db.QueryRow(`SELECT value FROM _oxen_meta WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (idx *Index) metaSet(key, value string) error {
	_, err := idx.db.Exec(`INSERT INTO _oxen_meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

// Close releases the underlying sqlite handle.
func (idx *Index) Close() error { return idx.db.Close() }

// Schema returns the Schema node describing the indexed table's
// current column layout, recomputing it if a column operation has
// invalidated the cached one since the last call.
func (idx *Index) Schema() *merkle.Schema {
	if idx.schema == nil {
		fields := make([]merkle.SchemaField, len(idx.columns))
		for i, col := range idx.columns {
			fields[i] = merkle.SchemaField{Name: col, DataType: string(idx.types[i])}
		}
		idx.schema = merkle.NewSchema(fields, "xxh3-record")
	}
	return idx.schema
}

// Columns returns the current column names in order, excluding the
// bookkeeping columns.
func (idx *Index) Columns() []string { return append([]string(nil), idx.columns...) }

// IsDirty reports whether any row has been added, modified, or removed
// since the index was materialized, for callers (Workspace.Status)
// that need to know a frame has pending changes without reading them.
func (idx *Index) IsDirty() (bool, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	var count int
	err := idx.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM df WHERE %s != ?", quoteIdent(colRowStatus)), statusUnchanged).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("dataframe: check dirty rows: %w", err)
	}
	return count > 0, nil
}

// GetRows returns a page of rows, optionally constrained by a raw SQL
// WHERE clause fragment. filter is interpolated into the query as-is:
// callers in this module are trusted server code constructing filters
// from structured request fields, never raw end-user SQL text.
func (idx *Index) GetRows(filter string, limit, offset int) ([]Row, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	query := "SELECT rowid, " + idx.selectList() + " FROM df"
	if filter != "" {
		query += " WHERE " + filter
	}
	query += " ORDER BY rowid"
	var args []interface{}
	if limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, offset)
	}

	rows, err := idx.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("dataframe: query rows: %w", err)
	}
	defer rows.Close()
	return idx.scanRows(rows)
}

func (idx *Index) selectList() string {
	cols := make([]string, 0, len(idx.columns)+2)
	for _, c := range idx.columns {
		cols = append(cols, quoteIdent(c))
	}
	cols = append(cols, quoteIdent(colRowStatus), quoteIdent(colRowHash))
	return strings.Join(cols, ", ")
}

func (idx *Index) scanRows(rows *sql.Rows) ([]Row, error) {
	var out []Row
	for rows.Next() {
		dest := make([]interface{}, len(idx.columns)+3)
		var id int64
		dest[0] = &id
		raw := make([]interface{}, len(idx.columns))
		for i := range raw {
			dest[i+1] = &raw[i]
		}
		var status, rh string
		dest[len(dest)-2] = &status
		dest[len(dest)-1] = &rh
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		values := make(format.Row, len(idx.columns))
		for i, rv := range raw {
			values[i] = normalizeSQLValue(rv, idx.types[i])
		}
		out = append(out, Row{ID: id, Values: values, RowStatus: status, RowHash: rh})
	}
	return out, rows.Err()
}

func normalizeSQLValue(v interface{}, t format.ColumnType) format.Value {
	if v == nil {
		return nil
	}
	if t == format.TypeBool {
		if iv, ok := v.(int64); ok {
			return iv != 0
		}
	}
	if t == format.TypeFloat64 {
		if iv, ok := v.(int64); ok {
			return float64(iv)
		}
	}
	return v
}

// AddRow inserts a new row with _row_status = added.
func (idx *Index) AddRow(values format.Row) (int64, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if len(values) != len(idx.columns) {
		return 0, fmt.Errorf("dataframe: expected %d values, got %d", len(idx.columns), len(values))
	}
	rh := rowHash(idx.columns, idx.types, values)
	cols := append(append([]string(nil), idx.columns...), colRowStatus, colRowHash)
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = quoteIdent(c)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	args := make([]interface{}, 0, len(cols))
	for _, v := range values {
		args = append(args, sqlArg(v))
	}
	args = append(args, statusAdded, rh.String())

	res, err := idx.db.Exec(fmt.Sprintf("INSERT INTO df (%s) VALUES (%s)", strings.Join(quoted, ", "), placeholders), args...)
	if err != nil {
		return 0, fmt.Errorf("dataframe: insert row: %w", err)
	}
	return res.LastInsertId()
}

// UpdateRow overwrites rowID's values in place, marking it modified
// and recomputing its row hash. A row already `added` stays `added`
// — it has no base-commit counterpart to diff against.
func (idx *Index) UpdateRow(rowID int64, values format.Row) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if len(values) != len(idx.columns) {
		return fmt.Errorf("dataframe: expected %d values, got %d", len(idx.columns), len(values))
	}
	currentStatus, err := idx.statusOf(rowID)
	if err != nil {
		return err
	}
	newStatus := currentStatus
	if newStatus != statusAdded {
		newStatus = statusModified
	}
	rh := rowHash(idx.columns, idx.types, values)

	sets := make([]string, 0, len(idx.columns)+2)
	args := make([]interface{}, 0, len(idx.columns)+3)
	for i, c := range idx.columns {
		sets = append(sets, quoteIdent(c)+" = ?")
		args = append(args, sqlArg(values[i]))
	}
	sets = append(sets, quoteIdent(colRowStatus)+" = ?", quoteIdent(colRowHash)+" = ?")
	args = append(args, newStatus, rh.String(), rowID)

	res, err := idx.db.Exec(fmt.Sprintf("UPDATE df SET %s WHERE rowid = ?", strings.Join(sets, ", ")), args...)
	if err != nil {
		return fmt.Errorf("dataframe: update row %d: %w", rowID, err)
	}
	return idx.checkAffected(res, rowID)
}

// DeleteRow marks rowID removed without deleting it, preserving row
// order for diffs.
func (idx *Index) DeleteRow(rowID int64) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	res, err := idx.db.Exec(fmt.Sprintf("UPDATE df SET %s = ? WHERE rowid = ?", quoteIdent(colRowStatus)), statusRemoved, rowID)
	if err != nil {
		return fmt.Errorf("dataframe: delete row %d: %w", rowID, err)
	}
	return idx.checkAffected(res, rowID)
}

// RestoreRow reverts a modified or removed row to its base-commit
// state. Added rows have no base state to revert to and are rejected.
func (idx *Index) RestoreRow(rowID int64) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	status, err := idx.statusOf(rowID)
	if err != nil {
		return err
	}
	if status == statusAdded {
		return &oxenerr.UnsupportedError{Operation: "restore_row", Reason: "row has no base-commit state"}
	}
	res, err := idx.db.Exec(fmt.Sprintf("UPDATE df SET %s = ? WHERE rowid = ?", quoteIdent(colRowStatus)), statusUnchanged, rowID)
	if err != nil {
		return err
	}
	return idx.checkAffected(res, rowID)
}

// RestoreFrame drops all non-unchanged row state, deleting added rows
// outright and reverting modified/removed rows.
func (idx *Index) RestoreFrame() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	tx, err := idx.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.Exec("DELETE FROM df WHERE "+quoteIdent(colRowStatus)+" = ?", statusAdded); err != nil {
		return err
	}
	if _, err := tx.Exec(fmt.Sprintf("UPDATE df SET %s = ? WHERE %s != ?", quoteIdent(colRowStatus), quoteIdent(colRowStatus)), statusUnchanged, statusUnchanged); err != nil {
		return err
	}
	return tx.Commit()
}

func (idx *Index) statusOf(rowID int64) (string, error) {
	var status string
	err := idx.db.QueryRow(fmt.Sprintf("SELECT %s FROM df WHERE rowid = ?", quoteIdent(colRowStatus)), rowID).Scan(&status)
	if err == sql.ErrNoRows {
		return "", &oxenerr.NotFoundError{Kind: "row", ID: fmt.Sprint(rowID)}
	}
	return status, err
}

func (idx *Index) checkAffected(res sql.Result, rowID int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &oxenerr.NotFoundError{Kind: "row", ID: fmt.Sprint(rowID)}
	}
	return nil
}

// Serialize produces the logical view for commit: removed rows
// dropped, added/modified rows materialized at their current values,
// the two bookkeeping columns stripped, original row order preserved.
func (idx *Index) Serialize() (*format.Table, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	query := fmt.Sprintf("SELECT %s FROM df WHERE %s != ? ORDER BY rowid", idx.selectListNoMeta(), quoteIdent(colRowStatus))
	rows, err := idx.db.Query(query, statusRemoved)
	if err != nil {
		return nil, fmt.Errorf("dataframe: serialize: %w", err)
	}
	defer rows.Close()

	var out []format.Row
	for rows.Next() {
		raw := make([]interface{}, len(idx.columns))
		dest := make([]interface{}, len(raw))
		for i := range raw {
			dest[i] = &raw[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		values := make(format.Row, len(idx.columns))
		for i, rv := range raw {
			values[i] = normalizeSQLValue(rv, idx.types[i])
		}
		out = append(out, values)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &format.Table{Columns: append([]string(nil), idx.columns...), Types: append([]format.ColumnType(nil), idx.types...), Rows: out}, nil
}

func (idx *Index) selectListNoMeta() string {
	cols := make([]string, len(idx.columns))
	for i, c := range idx.columns {
		cols[i] = quoteIdent(c)
	}
	return strings.Join(cols, ", ")
}
