package buffer

import (
	"errors"
	"sync"
)

var ErrFull = errors.New("buffer: full")

// RecordBuffer is a bounded buffer of pending items. Index 0 is always the
// oldest item; items only leave from the newest end.
type RecordBuffer[T any] struct {
	count int
	size  int
	data  []T
	lock  sync.Mutex
}

func NewBuffer[T any](size int) *RecordBuffer[T] {
	b := RecordBuffer[T]{}
	b.size = size
	b.data = make([]T, size)
	return &b
}

func (b *RecordBuffer[T]) AddItem(val T) error {
	b.lock.Lock()
	defer b.lock.Unlock()
	if b.count == b.size {
		return ErrFull
	}
	b.data[b.count] = val
	b.count += 1
	return nil
}

// At returns the item i places after the oldest.
func (b *RecordBuffer[T]) At(i int) (T, bool) {
	b.lock.Lock()
	defer b.lock.Unlock()
	var zero T
	if i < 0 || i >= b.count {
		return zero, false
	}
	return b.data[i], true
}

func (b *RecordBuffer[T]) GetLast() (T, bool) {
	b.lock.Lock()
	defer b.lock.Unlock()
	var zero T
	if b.count == 0 {
		return zero, false
	}
	return b.data[b.count-1], true
}

// RemoveLast drops the newest item.
func (b *RecordBuffer[T]) RemoveLast() {
	b.lock.Lock()
	defer b.lock.Unlock()
	if b.count == 0 {
		return
	}
	var zero T
	b.data[b.count-1] = zero
	b.count -= 1
}

func (b *RecordBuffer[T]) Clear() {
	b.lock.Lock()
	defer b.lock.Unlock()
	var zero T
	for i := range b.data {
		b.data[i] = zero
	}
	b.count = 0
}

func (b *RecordBuffer[T]) Len() int {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.count
}

func (b *RecordBuffer[T]) Full() bool {
	return b.Len() == b.size
}
