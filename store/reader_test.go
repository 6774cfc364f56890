package store

import (
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fill(t *testing.T, s *Store[sample], n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, s.Add(sample{Seq: uint32(i), Value: 7}))
		if s.Len() == BufferCapacity {
			require.NoError(t, s.Commit())
		}
	}
	require.NoError(t, s.Commit())
}

func TestReaderMissingDirectory(t *testing.T) {
	s, _ := newTestStore(t, 4)
	r := NewReader(s)
	require.NoError(t, r.Begin())

	assert.False(t, r.NextFile())
	assert.False(t, r.NextFile())
	_, ok := r.NextEntry()
	assert.False(t, ok)
	assert.False(t, r.EntryValid())
	assert.ErrorIs(t, r.DeleteFile(), ErrNoCurrentFile)
}

func TestReaderMountFailure(t *testing.T) {
	s, vol := newTestStore(t, 4)
	vol.err = errors.New("gone")
	r := NewReader(s)
	assert.ErrorIs(t, r.Begin(), ErrFilesystemUnavailable)
	assert.False(t, r.NextFile())
}

func TestReaderCorruptionIsolation(t *testing.T) {
	s, vol := newTestStore(t, 4)
	fill(t, s, 4)

	r := NewReader(s)
	require.NoError(t, r.Begin())
	require.True(t, r.NextFile())
	path := r.FilePath()
	require.NoError(t, r.Close())

	b, err := afero.ReadFile(vol.fs, path)
	require.NoError(t, err)
	require.Len(t, b, 4*frameSize)
	// one bit in the payload of the second record
	b[frameSize+5] ^= 0x01
	require.NoError(t, afero.WriteFile(vol.fs, path, b, 0o644))

	r.Reset()
	require.True(t, r.NextFile())
	var valid []bool
	for {
		_, ok := r.NextEntry()
		if !ok {
			break
		}
		valid = append(valid, r.EntryValid())
	}
	assert.Equal(t, []bool{true, false, true, true}, valid)
	assert.False(t, r.NextFile())
}

func TestReaderShortTail(t *testing.T) {
	s, vol := newTestStore(t, 4)
	fill(t, s, 2)

	r := NewReader(s)
	require.NoError(t, r.Begin())
	require.True(t, r.NextFile())
	path := r.FilePath()
	require.NoError(t, r.Close())

	b, err := afero.ReadFile(vol.fs, path)
	require.NoError(t, err)
	require.NoError(t, afero.WriteFile(vol.fs, path, append(b, 1, 2, 3), 0o644))

	r.Reset()
	require.True(t, r.NextFile())
	count := 0
	for {
		_, ok := r.NextEntry()
		if !ok {
			break
		}
		assert.True(t, r.EntryValid())
		count++
	}
	assert.Equal(t, 2, count)
	// the cursor is finished, the torn tail is not a record
	assert.False(t, r.EntryValid())
}

func TestReaderDeleteFile(t *testing.T) {
	s, vol := newTestStore(t, 2)
	fill(t, s, 6)
	before := fileSizes(t, vol.fs, s.Dir())
	require.Len(t, before, 3)

	require.NoError(t, s.Add(sample{Seq: 42}))

	r := NewReader(s)
	require.NoError(t, r.Begin())
	require.True(t, r.NextFile())
	for {
		if _, ok := r.NextEntry(); !ok {
			break
		}
	}
	path := r.FilePath()
	require.NoError(t, r.DeleteFile())
	assert.Equal(t, "", r.FilePath())
	_, ok := r.NextEntry()
	assert.False(t, ok)

	after := fileSizes(t, vol.fs, s.Dir())
	assert.Len(t, after, 2)
	exists, err := afero.Exists(vol.fs, path)
	require.NoError(t, err)
	assert.False(t, exists)
	for name, size := range after {
		assert.Equal(t, before[name], size)
	}
	assert.Equal(t, 1, s.Len())

	// the rest of the directory is still reachable
	assert.True(t, r.NextFile())
	assert.True(t, r.NextFile())
	assert.False(t, r.NextFile())
}

func TestReaderReuse(t *testing.T) {
	s, _ := newTestStore(t, 3)
	fill(t, s, 7)

	first := readAll(t, s)
	second := readAll(t, s)
	assert.Len(t, first, 7)
	assert.ElementsMatch(t, first, second)

	r := NewReader(s)
	require.NoError(t, r.Begin())
	for r.NextFile() {
	}
	r.Reset()
	assert.True(t, r.NextFile())
}
