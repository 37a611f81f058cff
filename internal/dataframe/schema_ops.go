package dataframe

import (
	"fmt"

	"github.com/oxen-go/oxen/internal/dataframe/format"
	"github.com/oxen-go/oxen/internal/oxenerr"
)

// SchemaChange is one entry in a frame's column-schema change-log,
// recorded alongside the mutation it describes so a later commit can
// explain what moved between the base commit's Schema node and the
// one it's about to produce.
type SchemaChange struct {
	Seq     int64
	Op      string
	Column  string
	Details string
}

func (idx *Index) ensureSchemaLog() error {
	_, err := idx.db.Exec(`CREATE TABLE IF NOT EXISTS _oxen_schema_log (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		op TEXT NOT NULL,
		column TEXT NOT NULL,
		details TEXT NOT NULL DEFAULT ''
	)`)
	return err
}

func (idx *Index) logSchemaChange(op, column, details string) error {
	if err := idx.ensureSchemaLog(); err != nil {
		return err
	}
	_, err := idx.db.Exec(`INSERT INTO _oxen_schema_log (op, column, details) VALUES (?, ?, ?)`, op, column, details)
	return err
}

// SchemaChanges returns the full change-log in the order operations
// were applied.
func (idx *Index) SchemaChanges() ([]SchemaChange, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if err := idx.ensureSchemaLog(); err != nil {
		return nil, err
	}
	rows, err := idx.db.Query(`SELECT seq, op, column, details FROM _oxen_schema_log ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SchemaChange
	for rows.Next() {
		var c SchemaChange
		if err := rows.Scan(&c.Seq, &c.Op, &c.Column, &c.Details); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (idx *Index) columnIndex(name string) int {
	for i, c := range idx.columns {
		if c == name {
			return i
		}
	}
	return -1
}

// AddColumn adds a new column with the given default applied to every
// existing row, then records the change.
func (idx *Index) AddColumn(name string, dataType format.ColumnType, defaultValue format.Value) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.columnIndex(name) != -1 {
		return fmt.Errorf("dataframe: column %q already exists", name)
	}
	stmt := fmt.Sprintf("ALTER TABLE df ADD COLUMN %s %s", quoteIdent(name), sqlTypeOf(dataType))
	if _, err := idx.db.Exec(stmt); err != nil {
		return fmt.Errorf("dataframe: add column %s: %w", name, err)
	}
	if defaultValue != nil {
		if _, err := idx.db.Exec(fmt.Sprintf("UPDATE df SET %s = ?", quoteIdent(name)), sqlArg(defaultValue)); err != nil {
			return fmt.Errorf("dataframe: default-fill column %s: %w", name, err)
		}
	}
	idx.columns = append(idx.columns, name)
	idx.types = append(idx.types, dataType)
	idx.schema = nil
	return idx.logSchemaChange("add_column", name, string(dataType))
}

// RenameColumn renames an existing column in place.
func (idx *Index) RenameColumn(oldName, newName string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	i := idx.columnIndex(oldName)
	if i == -1 {
		return &oxenerr.NotFoundError{Kind: "column", ID: oldName}
	}
	stmt := fmt.Sprintf("ALTER TABLE df RENAME COLUMN %s TO %s", quoteIdent(oldName), quoteIdent(newName))
	if _, err := idx.db.Exec(stmt); err != nil {
		return fmt.Errorf("dataframe: rename column %s to %s: %w", oldName, newName, err)
	}
	idx.columns[i] = newName
	idx.schema = nil
	return idx.logSchemaChange("rename_column", oldName, newName)
}

// RetypeColumn changes a column's declared type, rewriting every
// existing value through a best-effort coercion. sqlite itself is
// dynamically typed per-cell, so the rewrite (rather than sqlite's own
// CAST) is what actually changes what future reads see.
func (idx *Index) RetypeColumn(name string, newType format.ColumnType) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	i := idx.columnIndex(name)
	if i == -1 {
		return &oxenerr.NotFoundError{Kind: "column", ID: name}
	}
	oldType := idx.types[i]
	if oldType == newType {
		return nil
	}

	rows, err := idx.db.Query(fmt.Sprintf("SELECT rowid, %s FROM df", quoteIdent(name)))
	if err != nil {
		return err
	}
	type cell struct {
		id int64
		v  interface{}
	}
	var cells []cell
	for rows.Next() {
		var id int64
		var v interface{}
		if err := rows.Scan(&id, &v); err != nil {
			rows.Close()
			return err
		}
		cells = append(cells, cell{id: id, v: v})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	tx, err := idx.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	stmt, err := tx.Prepare(fmt.Sprintf("UPDATE df SET %s = ? WHERE rowid = ?", quoteIdent(name)))
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, c := range cells {
		coerced := coerceSQLValue(normalizeSQLValue(c.v, oldType), newType)
		if _, err := stmt.Exec(coerced, c.id); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	idx.types[i] = newType
	idx.schema = nil
	return idx.logSchemaChange("retype_column", name, string(oldType)+"->"+string(newType))
}

func coerceSQLValue(v format.Value, t format.ColumnType) interface{} {
	if v == nil {
		return nil
	}
	switch t {
	case format.TypeInt64:
		switch x := v.(type) {
		case int64:
			return x
		case float64:
			return int64(x)
		case bool:
			if x {
				return int64(1)
			}
			return int64(0)
		}
	case format.TypeFloat64:
		switch x := v.(type) {
		case int64:
			return float64(x)
		case float64:
			return x
		}
	case format.TypeBool:
		return sqlArg(v)
	}
	return fmt.Sprintf("%v", v)
}

// DropColumn removes a column entirely.
func (idx *Index) DropColumn(name string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	i := idx.columnIndex(name)
	if i == -1 {
		return &oxenerr.NotFoundError{Kind: "column", ID: name}
	}
	stmt := fmt.Sprintf("ALTER TABLE df DROP COLUMN %s", quoteIdent(name))
	if _, err := idx.db.Exec(stmt); err != nil {
		return fmt.Errorf("dataframe: drop column %s: %w", name, err)
	}
	idx.columns = append(idx.columns[:i], idx.columns[i+1:]...)
	idx.types = append(idx.types[:i], idx.types[i+1:]...)
	idx.schema = nil
	return idx.logSchemaChange("drop_column", name, "")
}
