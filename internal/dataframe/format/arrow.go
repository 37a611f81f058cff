package format

import (
	"bytes"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// arrowCodec transcodes the Arrow IPC file format via apache/arrow-go,
// built against the package's Builder/IPC surface.
type arrowCodec struct{}

func arrowType(t ColumnType) arrow.DataType {
	switch t {
	case TypeInt64:
		return arrow.PrimitiveTypes.Int64
	case TypeFloat64:
		return arrow.PrimitiveTypes.Float64
	case TypeBool:
		return arrow.FixedWidthTypes.Boolean
	default:
		return arrow.BinaryTypes.String
	}
}

func (arrowCodec) Encode(t *Table) ([]byte, error) {
	fields := make([]arrow.Field, len(t.Columns))
	for i, col := range t.Columns {
		fields[i] = arrow.Field{Name: col, Type: arrowType(t.Types[i]), Nullable: true}
	}
	schema := arrow.NewSchema(fields, nil)

	pool := memory.NewGoAllocator()
	builder := array.NewRecordBuilder(pool, schema)
	defer builder.Release()

	for _, row := range t.Rows {
		for i, v := range row {
			appendArrowValue(builder.Field(i), t.Types[i], v)
		}
	}
	record := builder.NewRecord()
	defer record.Release()

	var buf bytes.Buffer
	w, err := ipc.NewFileWriter(&buf, ipc.WithSchema(schema), ipc.WithAllocator(pool))
	if err != nil {
		return nil, fmt.Errorf("format: open arrow writer: %w", err)
	}
	if err := w.Write(record); err != nil {
		return nil, fmt.Errorf("format: write arrow record: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("format: close arrow writer: %w", err)
	}
	return buf.Bytes(), nil
}

func appendArrowValue(b array.Builder, t ColumnType, v Value) {
	if v == nil {
		b.AppendNull()
		return
	}
	switch t {
	case TypeInt64:
		iv, _ := v.(int64)
		b.(*array.Int64Builder).Append(iv)
	case TypeFloat64:
		fv, _ := v.(float64)
		b.(*array.Float64Builder).Append(fv)
	case TypeBool:
		bv, _ := v.(bool)
		b.(*array.BooleanBuilder).Append(bv)
	default:
		b.(*array.StringBuilder).Append(fmt.Sprintf("%v", v))
	}
}

func (arrowCodec) Decode(data []byte) (*Table, error) {
	r, err := ipc.NewFileReader(bytes.NewReader(data), ipc.WithAllocator(memory.NewGoAllocator()))
	if err != nil {
		return nil, fmt.Errorf("format: open arrow reader: %w", err)
	}
	defer r.Close()

	schema := r.Schema()
	columns := make([]string, schema.NumFields())
	types := make([]ColumnType, schema.NumFields())
	for i := 0; i < schema.NumFields(); i++ {
		f := schema.Field(i)
		columns[i] = f.Name
		types[i] = arrowColumnType(f.Type)
	}

	var rows []Row
	for i := 0; i < r.NumRecords(); i++ {
		record, err := r.Record(i)
		if err != nil {
			return nil, fmt.Errorf("format: read arrow record %d: %w", i, err)
		}
		for ri := 0; ri < int(record.NumRows()); ri++ {
			row := make(Row, len(columns))
			for ci := range columns {
				row[ci] = arrowCellAt(record.Column(ci), ri)
			}
			rows = append(rows, row)
		}
	}
	return &Table{Columns: columns, Types: types, Rows: rows}, nil
}

func arrowColumnType(dt arrow.DataType) ColumnType {
	switch dt.ID() {
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.UINT8, arrow.UINT16, arrow.UINT32, arrow.UINT64:
		return TypeInt64
	case arrow.FLOAT32, arrow.FLOAT64:
		return TypeFloat64
	case arrow.BOOL:
		return TypeBool
	default:
		return TypeString
	}
}

func arrowCellAt(col arrow.Array, i int) Value {
	if col.IsNull(i) {
		return nil
	}
	switch a := col.(type) {
	case *array.Int64:
		return a.Value(i)
	case *array.Int32:
		return int64(a.Value(i))
	case *array.Int16:
		return int64(a.Value(i))
	case *array.Int8:
		return int64(a.Value(i))
	case *array.Uint64:
		return int64(a.Value(i))
	case *array.Uint32:
		return int64(a.Value(i))
	case *array.Float64:
		return a.Value(i)
	case *array.Float32:
		return float64(a.Value(i))
	case *array.Boolean:
		return a.Value(i)
	case *array.String:
		return a.Value(i)
	default:
		return fmt.Sprintf("%v", col)
	}
}
