package format

import (
	"bytes"
	"fmt"
	"reflect"

	"github.com/parquet-go/parquet-go"
)

// parquetCodec transcodes via parquet-go. Columns are arbitrary and
// only known at runtime, so rather than the package's struct-tag
// convenience API (which needs a compile-time row type) this builds a
// row type on the fly with reflect.StructOf and drives parquet-go's
// reflection-based Writer/Reader, the same path the package uses
// internally for any struct value.
type parquetCodec struct{}

func goTypeFor(t ColumnType) reflect.Type {
	switch t {
	case TypeInt64:
		return reflect.TypeOf(int64(0))
	case TypeFloat64:
		return reflect.TypeOf(float64(0))
	case TypeBool:
		return reflect.TypeOf(false)
	default:
		return reflect.TypeOf("")
	}
}

// rowStructType builds a struct type with one exported field per
// column, each tagged with its real name so the parquet schema it
// produces uses the column's original name rather than the sanitized
// Go identifier.
func rowStructType(columns []string, types []ColumnType) reflect.Type {
	fields := make([]reflect.StructField, len(columns))
	for i, col := range columns {
		fields[i] = reflect.StructField{
			Name: sanitizeIdent(col, i),
			Type: reflect.PointerTo(goTypeFor(types[i])),
			Tag:  reflect.StructTag(fmt.Sprintf(`parquet:"%s,optional"`, col)),
		}
	}
	return reflect.StructOf(fields)
}

func (parquetCodec) Encode(t *Table) ([]byte, error) {
	rowType := rowStructType(t.Columns, t.Types)

	var buf bytes.Buffer
	w := parquet.NewWriter(&buf, parquet.SchemaOf(reflect.New(rowType).Interface()))

	for _, row := range t.Rows {
		instance := reflect.New(rowType).Elem()
		for i, v := range row {
			if v == nil {
				continue
			}
			field := instance.Field(i)
			ptr := reflect.New(goTypeFor(t.Types[i]))
			ptr.Elem().Set(reflect.ValueOf(coerce(v, t.Types[i])))
			field.Set(ptr)
		}
		if _, err := w.Write(instance.Addr().Interface()); err != nil {
			return nil, fmt.Errorf("format: write parquet row: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("format: close parquet writer: %w", err)
	}
	return buf.Bytes(), nil
}

// coerce adapts a decoded cell to the exact Go type the column's
// struct field holds, covering the case where a csv/ndjson int was
// later widened to float64 by a sibling row.
func coerce(v Value, t ColumnType) interface{} {
	switch t {
	case TypeInt64:
		if iv, ok := v.(int64); ok {
			return iv
		}
		if fv, ok := v.(float64); ok {
			return int64(fv)
		}
	case TypeFloat64:
		if fv, ok := v.(float64); ok {
			return fv
		}
		if iv, ok := v.(int64); ok {
			return float64(iv)
		}
	case TypeBool:
		if bv, ok := v.(bool); ok {
			return bv
		}
	}
	return fmt.Sprintf("%v", v)
}

func (parquetCodec) Decode(data []byte) (*Table, error) {
	pf, err := parquet.OpenFile(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("format: open parquet file: %w", err)
	}

	fields := pf.Schema().Fields()
	columns := make([]string, len(fields))
	types := make([]ColumnType, len(fields))
	for i, f := range fields {
		columns[i] = f.Name()
		types[i] = parquetColumnType(f)
	}

	rowType := rowStructType(columns, types)
	reader := parquet.NewReader(pf, parquet.SchemaOf(reflect.New(rowType).Interface()))
	defer reader.Close()

	var rows []Row
	for {
		instance := reflect.New(rowType)
		if err := reader.Read(instance.Interface()); err != nil {
			break
		}
		elem := instance.Elem()
		row := make(Row, len(columns))
		for i := range columns {
			field := elem.Field(i)
			if field.IsNil() {
				row[i] = nil
				continue
			}
			row[i] = field.Elem().Interface()
		}
		rows = append(rows, row)
	}
	return &Table{Columns: columns, Types: types, Rows: rows}, nil
}

func parquetColumnType(f parquet.Field) ColumnType {
	k := f.Type().Kind()
	switch k {
	case parquet.Int32, parquet.Int64:
		return TypeInt64
	case parquet.Float, parquet.Double:
		return TypeFloat64
	case parquet.Boolean:
		return TypeBool
	default:
		return TypeString
	}
}
