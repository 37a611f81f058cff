package merkle

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/oxen-go/oxen/internal/hash"
)

// encoder/decoder give every node variant a consistent
// length-prefix-everything encoding discipline in a
// reusable form, so field boundaries are never ambiguous and schema
// evolution is a matter of appending fields behind the version byte.

type encoder struct {
	buf bytes.Buffer
}

func (e *encoder) writeString(s string) {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(s)))
	e.buf.Write(lenBuf[:])
	e.buf.WriteString(s)
}

func (e *encoder) writeBytes(b []byte) {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(b)))
	e.buf.Write(lenBuf[:])
	e.buf.Write(b)
}

func (e *encoder) writeHash(h hash.Hash) {
	e.buf.Write(h[:])
}

func (e *encoder) writeUint64(v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	e.buf.Write(b[:])
}

func (e *encoder) writeInt64(v int64) {
	e.writeUint64(uint64(v))
}

func (e *encoder) writeUint32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	e.buf.Write(b[:])
}

func (e *encoder) bytes() []byte {
	return e.buf.Bytes()
}

type decoder struct {
	data []byte
	pos  int
}

func newDecoder(data []byte) *decoder {
	return &decoder{data: data}
}

func (d *decoder) readString() (string, error) {
	b, err := d.readBytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (d *decoder) readBytes() ([]byte, error) {
	if d.pos+4 > len(d.data) {
		return nil, fmt.Errorf("merkle: truncated length prefix")
	}
	n := int(binary.BigEndian.Uint32(d.data[d.pos : d.pos+4]))
	d.pos += 4
	if d.pos+n > len(d.data) {
		return nil, fmt.Errorf("merkle: truncated field body")
	}
	b := d.data[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

func (d *decoder) readHash() (hash.Hash, error) {
	var h hash.Hash
	if d.pos+hash.Size > len(d.data) {
		return h, fmt.Errorf("merkle: truncated hash")
	}
	copy(h[:], d.data[d.pos:d.pos+hash.Size])
	d.pos += hash.Size
	return h, nil
}

func (d *decoder) readUint64() (uint64, error) {
	if d.pos+8 > len(d.data) {
		return 0, fmt.Errorf("merkle: truncated uint64")
	}
	v := binary.BigEndian.Uint64(d.data[d.pos : d.pos+8])
	d.pos += 8
	return v, nil
}

func (d *decoder) readInt64() (int64, error) {
	v, err := d.readUint64()
	return int64(v), err
}

func (d *decoder) readUint32() (uint32, error) {
	if d.pos+4 > len(d.data) {
		return 0, fmt.Errorf("merkle: truncated uint32")
	}
	v := binary.BigEndian.Uint32(d.data[d.pos : d.pos+4])
	d.pos += 4
	return v, nil
}
