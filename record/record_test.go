package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type digits struct {
	v [9]byte
}

func (digits) Size() int { return 9 }

func (d digits) Encode(b []byte) { copy(b, d.v[:]) }

func (digits) Decode(b []byte) digits {
	d := digits{}
	copy(d.v[:], b)
	return d
}

type pair struct {
	A uint16
	B float32
}

func (pair) Size() int { return 6 }

func (p pair) Encode(b []byte) {
	w := NewWriter(b)
	w.U16(p.A)
	w.F32(p.B)
}

func (pair) Decode(b []byte) pair {
	r := NewReader(b)
	return pair{A: r.U16(), B: r.F32()}
}

func TestEncodeChecksum(t *testing.T) {
	d := digits{}
	copy(d.v[:], "123456789")

	r := Encode(d)
	// standard CRC-32/IEEE check value
	assert.Equal(t, uint32(0xCBF43926), r.Checksum)
	assert.True(t, r.Valid())
	assert.Equal(t, 13, Size[digits]())
}

func TestFrameLayout(t *testing.T) {
	r := Encode(pair{A: 0x0102, B: 1})
	b := r.Marshal()
	require.Len(t, b, 10)

	// checksum little endian first
	assert.Equal(t, byte(r.Checksum), b[0])
	assert.Equal(t, byte(r.Checksum>>24), b[3])
	// payload follows with no padding
	assert.Equal(t, []byte{0x02, 0x01, 0x00, 0x00, 0x80, 0x3f}, b[4:])

	back, err := Unmarshal[pair](b)
	require.NoError(t, err)
	assert.True(t, back.Valid())
	assert.Equal(t, pair{A: 0x0102, B: 1}, back.Payload)
}

func TestCorruptPayload(t *testing.T) {
	b := Encode(pair{A: 7, B: 2.5}).Marshal()
	b[5] ^= 0x10

	r, err := Unmarshal[pair](b)
	require.NoError(t, err)
	assert.False(t, r.Valid())

	// validation does not touch the frame
	assert.Equal(t, b, r.Marshal())
}

func TestUnmarshalShort(t *testing.T) {
	b := Encode(pair{A: 1}).Marshal()

	_, err := Unmarshal[pair](b[:len(b)-1])
	assert.ErrorIs(t, err, ErrShortRecord)

	var zero Record[pair]
	assert.False(t, zero.Valid())
}

func TestWriterZeroFillsBytes(t *testing.T) {
	b := []byte{9, 9, 9, 9}
	w := NewWriter(b)
	w.Bytes([]byte("ab"), 4)
	assert.Equal(t, []byte{'a', 'b', 0, 0}, b)
	assert.Equal(t, 4, w.Offset())

	r := NewReader(b)
	assert.Equal(t, []byte{'a', 'b', 0, 0}, r.Bytes(4))
}
