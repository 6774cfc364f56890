package record

import (
	"encoding/binary"
	"errors"
	"hash/crc32"
)

// ChecksumSize is the width of the frame header.
const ChecksumSize = 4

var (
	ErrShortRecord = errors.New("record: frame length does not match record size")
)

// Payload is a fixed size value with an explicit byte layout.
// Size must return the same value for every instance of a type.
type Payload[T any] interface {
	Size() int
	Encode(b []byte)
	Decode(b []byte) T
}

// Record is a payload framed with the CRC32 of its encoded bytes.
type Record[T Payload[T]] struct {
	Checksum uint32
	Payload  T
	raw      []byte
}

// Size returns the framed size of T.
func Size[T Payload[T]]() int {
	var zero T
	return ChecksumSize + zero.Size()
}

func Encode[T Payload[T]](p T) Record[T] {
	raw := make([]byte, p.Size())
	p.Encode(raw)
	return Record[T]{
		Checksum: crc32.ChecksumIEEE(raw),
		Payload:  p,
		raw:      raw,
	}
}

// Valid recomputes the checksum over the stored payload bytes.
func (r Record[T]) Valid() bool {
	if r.raw == nil {
		return false
	}
	return crc32.ChecksumIEEE(r.raw) == r.Checksum
}

// AppendTo appends the frame: checksum (u32 little endian) then payload.
func (r Record[T]) AppendTo(b []byte) []byte {
	b = binary.LittleEndian.AppendUint32(b, r.Checksum)
	return append(b, r.raw...)
}

func (r Record[T]) Marshal() []byte {
	return r.AppendTo(make([]byte, 0, ChecksumSize+len(r.raw)))
}

// Unmarshal decodes exactly one frame. The checksum is not verified here.
func Unmarshal[T Payload[T]](b []byte) (Record[T], error) {
	if len(b) != Size[T]() {
		return Record[T]{}, ErrShortRecord
	}
	var zero T
	raw := make([]byte, len(b)-ChecksumSize)
	copy(raw, b[ChecksumSize:])
	return Record[T]{
		Checksum: binary.LittleEndian.Uint32(b),
		Payload:  zero.Decode(raw),
		raw:      raw,
	}, nil
}
