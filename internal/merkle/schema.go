package merkle

import (
	"sort"
	"strconv"

	"github.com/oxen-go/oxen/internal/hash"
)

// SchemaField describes one column of a tabular file tracked by a
// DataFrameIndex: its name, a logical data type string
// (e.g. "int64", "float64", "string", "bool"), and free-form metadata
// (e.g. a source column name from the original CSV header).
type SchemaField struct {
	Name     string
	DataType string
	Metadata map[string]string
}

// Schema is the node recording a tabular file's column layout and the
// row-hash algorithm used to compute each row's identity for
// DataFrameIndex change tracking. Two files with identical columns in
// the same order share a Schema node.
type Schema struct {
	SchemaHash hash.Hash
	Fields     []SchemaField
	RowHashAlg string
}

// NewSchema builds a Schema node and computes its hash.
func NewSchema(fields []SchemaField, rowHashAlg string) *Schema {
	s := &Schema{
		Fields:     append([]SchemaField(nil), fields...),
		RowHashAlg: rowHashAlg,
	}
	s.SchemaHash = s.computeHash()
	return s
}

func (s *Schema) computeHash() hash.Hash {
	fields := []hash.Field{hash.StringField("row_hash_alg", s.RowHashAlg)}
	for i, f := range s.Fields {
		prefix := fmtFieldName(i)
		fields = append(fields,
			hash.StringField(prefix+"_name", f.Name),
			hash.StringField(prefix+"_dtype", f.DataType),
		)
		keys := make([]string, 0, len(f.Metadata))
		for k := range f.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fields = append(fields, hash.StringField(prefix+"_meta_"+k, f.Metadata[k]))
		}
	}
	return hash.Record(fields...)
}

func fmtFieldName(i int) string {
	return "field_" + strconv.Itoa(i)
}

func (s *Schema) Hash() hash.Hash { return s.SchemaHash }
func (s *Schema) Kind() Kind      { return KindSchema }

// ColumnNames returns the schema's fields in declaration order.
func (s *Schema) ColumnNames() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

func (s *Schema) Encode() []byte {
	e := &encoder{}
	e.writeHash(s.SchemaHash)
	e.writeString(s.RowHashAlg)
	e.writeUint32(uint32(len(s.Fields)))
	for _, f := range s.Fields {
		e.writeString(f.Name)
		e.writeString(f.DataType)
		writeStringPairMap(e, f.Metadata)
	}
	return envelope(KindSchema, e.bytes())
}

func decodeSchema(version byte, body []byte) (*Schema, error) {
	_ = version
	d := newDecoder(body)
	s := &Schema{}
	var err error
	if s.SchemaHash, err = d.readHash(); err != nil {
		return nil, err
	}
	if s.RowHashAlg, err = d.readString(); err != nil {
		return nil, err
	}
	count, err := d.readUint32()
	if err != nil {
		return nil, err
	}
	s.Fields = make([]SchemaField, count)
	for i := range s.Fields {
		if s.Fields[i].Name, err = d.readString(); err != nil {
			return nil, err
		}
		if s.Fields[i].DataType, err = d.readString(); err != nil {
			return nil, err
		}
		if s.Fields[i].Metadata, err = readStringPairMap(d); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func writeStringPairMap(e *encoder, m map[string]string) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	e.writeUint32(uint32(len(keys)))
	for _, k := range keys {
		e.writeString(k)
		e.writeString(m[k])
	}
}

func readStringPairMap(d *decoder) (map[string]string, error) {
	count, err := d.readUint32()
	if err != nil {
		return nil, err
	}
	m := make(map[string]string, count)
	for i := uint32(0); i < count; i++ {
		k, err := d.readString()
		if err != nil {
			return nil, err
		}
		v, err := d.readString()
		if err != nil {
			return nil, err
		}
		m[k] = v
	}
	return m, nil
}
