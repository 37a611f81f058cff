// Package hash implements the repository-wide content hash: a
// deterministic, non-cryptographic 128-bit digest rendered as a
// 32-char lowercase hex string. Every content-addressed entity's
// identity is the hash of its bytes (files, chunks) or of its
// structured fields (commits, directories, schemas).
//
// One algorithm is used everywhere so that two repositories holding
// the same logical content always agree on its hash, regardless of
// platform or endianness.
package hash

import (
	"encoding/binary"
	"encoding/hex"
	"io"

	"github.com/zeebo/xxh3"
)

// Size is the length in bytes of a Hash.
const Size = 16

// Hash is a 128-bit content hash.
type Hash [Size]byte

// Zero is the zero-value hash; it never addresses real content and is
// used as a sentinel (e.g. "no parent", "no base commit").
var Zero Hash

// String renders the hash as 32 lowercase hex characters.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// IsZero reports whether h is the zero hash.
func (h Hash) IsZero() bool {
	return h == Zero
}

// Parse decodes a 32-char hex string into a Hash.
func Parse(s string) (Hash, error) {
	var h Hash
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, err
	}
	if len(b) != Size {
		return h, &InvalidLengthError{Got: len(b), Want: Size}
	}
	copy(h[:], b)
	return h, nil
}

// InvalidLengthError reports a hex string that does not decode to
// exactly Size bytes.
type InvalidLengthError struct {
	Got, Want int
}

func (e *InvalidLengthError) Error() string {
	return "hash: invalid length"
}

// fromU128 packs xxh3's 128-bit result into a Hash using a fixed,
// endianness-independent byte order (big-endian on each half) so that
// the same content hashes identically on every platform.
func fromU128(u xxh3.Uint128) Hash {
	var h Hash
	binary.BigEndian.PutUint64(h[0:8], u.Hi)
	binary.BigEndian.PutUint64(h[8:16], u.Lo)
	return h
}

// Bytes hashes a byte slice.
func Bytes(b []byte) Hash {
	return fromU128(xxh3.Hash128(b))
}

// Reader hashes the entirety of r by streaming it through xxh3 without
// buffering the whole input in memory.
func Reader(r io.Reader) (Hash, error) {
	h := xxh3.New()
	if _, err := io.Copy(h, r); err != nil {
		return Hash{}, err
	}
	return fromU128(h.Sum128()), nil
}

// Field is one element of a structured record passed to Record. Using
// typed fields (rather than raw byte concatenation) prevents two
// different field splits from hashing identically.
type Field struct {
	Name  string
	Value []byte
}

// StringField builds a Field from a string value.
func StringField(name, value string) Field {
	return Field{Name: name, Value: []byte(value)}
}

// Uint64Field builds a Field from a uint64 value.
func Uint64Field(name string, value uint64) Field {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], value)
	return Field{Name: name, Value: b[:]}
}

// Int64Field builds a Field from an int64 value.
func Int64Field(name string, value int64) Field {
	return Uint64Field(name, uint64(value))
}

// HashField builds a Field from an already-computed Hash, so
// structural records (e.g. a directory entry) can cover child hashes.
func HashField(name string, value Hash) Field {
	return Field{Name: name, Value: value[:]}
}

// Record hashes an ordered list of fields with a length-prefixed
// encoding of each field's name and value, so that field boundaries
// can never be ambiguous (e.g. "ab"+"c" cannot collide with "a"+"bc").
// Field order is significant: callers must supply fields in a stable,
// documented order for a given node kind.
func Record(fields ...Field) Hash {
	h := xxh3.New()
	var lenBuf [4]byte
	write := func(b []byte) {
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(b)))
		h.Write(lenBuf[:])
		h.Write(b)
	}
	for _, f := range fields {
		write([]byte(f.Name))
		write(f.Value)
	}
	return fromU128(h.Sum128())
}
