package record

import (
	"encoding/binary"
	"math"
)

// Writer puts little endian fields into a fixed buffer in order.
// It panics if the buffer is smaller than the fields written, which is a
// programming error in a payload's Size.
type Writer struct {
	b   []byte
	off int
}

func NewWriter(b []byte) *Writer {
	return &Writer{b: b}
}

func (w *Writer) U8(v uint8) {
	w.b[w.off] = v
	w.off++
}

func (w *Writer) Bool(v bool) {
	if v {
		w.U8(1)
		return
	}
	w.U8(0)
}

func (w *Writer) U16(v uint16) {
	binary.LittleEndian.PutUint16(w.b[w.off:], v)
	w.off += 2
}

func (w *Writer) I16(v int16) {
	w.U16(uint16(v))
}

func (w *Writer) U32(v uint32) {
	binary.LittleEndian.PutUint32(w.b[w.off:], v)
	w.off += 4
}

func (w *Writer) I32(v int32) {
	w.U32(uint32(v))
}

func (w *Writer) U64(v uint64) {
	binary.LittleEndian.PutUint64(w.b[w.off:], v)
	w.off += 8
}

func (w *Writer) F32(v float32) {
	w.U32(math.Float32bits(v))
}

// Bytes copies v and zero fills up to n bytes.
func (w *Writer) Bytes(v []byte, n int) {
	dst := w.b[w.off : w.off+n]
	c := copy(dst, v)
	for i := c; i < n; i++ {
		dst[i] = 0
	}
	w.off += n
}

func (w *Writer) Offset() int {
	return w.off
}

// Reader is the decoding counterpart of Writer.
type Reader struct {
	b   []byte
	off int
}

func NewReader(b []byte) *Reader {
	return &Reader{b: b}
}

func (r *Reader) U8() uint8 {
	v := r.b[r.off]
	r.off++
	return v
}

func (r *Reader) Bool() bool {
	return r.U8() != 0
}

func (r *Reader) U16() uint16 {
	v := binary.LittleEndian.Uint16(r.b[r.off:])
	r.off += 2
	return v
}

func (r *Reader) I16() int16 {
	return int16(r.U16())
}

func (r *Reader) U32() uint32 {
	v := binary.LittleEndian.Uint32(r.b[r.off:])
	r.off += 4
	return v
}

func (r *Reader) I32() int32 {
	return int32(r.U32())
}

func (r *Reader) U64() uint64 {
	v := binary.LittleEndian.Uint64(r.b[r.off:])
	r.off += 8
	return v
}

func (r *Reader) F32() float32 {
	return math.Float32frombits(r.U32())
}

func (r *Reader) Bytes(n int) []byte {
	v := make([]byte, n)
	copy(v, r.b[r.off:r.off+n])
	r.off += n
	return v
}
