package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddItem(t *testing.T) {
	buf := NewBuffer[int](3)

	assert.NoError(t, buf.AddItem(1))
	assert.NoError(t, buf.AddItem(2))
	assert.NoError(t, buf.AddItem(3))
	assert.True(t, buf.Full())

	assert.ErrorIs(t, buf.AddItem(4), ErrFull)
	assert.Equal(t, 3, buf.Len())

	first, ok := buf.At(0)
	assert.True(t, ok)
	assert.Equal(t, 1, first)

	last, ok := buf.GetLast()
	assert.True(t, ok)
	assert.Equal(t, 3, last)

	_, ok = buf.At(3)
	assert.False(t, ok)
}

func TestRemoveLast(t *testing.T) {
	buf := NewBuffer[int](3)

	_ = buf.AddItem(1)
	_ = buf.AddItem(2)
	_ = buf.AddItem(3)

	buf.RemoveLast()
	last, ok := buf.GetLast()
	assert.True(t, ok)
	assert.Equal(t, 2, last)

	// the freed slot takes the next item
	assert.NoError(t, buf.AddItem(4))
	last, _ = buf.GetLast()
	assert.Equal(t, 4, last)
	first, _ := buf.At(0)
	assert.Equal(t, 1, first)

	buf.Clear()
	assert.Equal(t, 0, buf.Len())
	_, ok = buf.GetLast()
	assert.False(t, ok)

	// removing from an empty buffer is a no-op
	buf.RemoveLast()
	assert.Equal(t, 0, buf.Len())
}
