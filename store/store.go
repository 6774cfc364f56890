// Package store persists fixed size records through a small RAM buffer into
// size capped files on the flash volume.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gr-butler/fieldstation/buffer"
	"github.com/gr-butler/fieldstation/metrics"
	"github.com/gr-butler/fieldstation/record"
	"github.com/jonboulle/clockwork"
	logger "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

const (
	BufferCapacity     = 10
	FilenameProbeLimit = 100
)

var (
	ErrFilesystemUnavailable = errors.New("store: filesystem unavailable")
	ErrNoFileAvailable       = errors.New("store: no file available")
	ErrPartialWrite          = errors.New("store: partial write")
	ErrNoCurrentFile         = errors.New("store: no current file")
)

// Volume is the mountable filesystem the store writes to.
type Volume interface {
	Mount() error
	Fs() afero.Fs
}

type options struct {
	clock    clockwork.Clock
	capacity int
}

type Option func(*options)

// WithClock sets the clock used to name new files.
func WithClock(c clockwork.Clock) Option {
	return func(o *options) { o.clock = c }
}

func WithCapacity(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.capacity = n
		}
	}
}

type Store[T record.Payload[T]] struct {
	vol     Volume
	dir     string
	perFile int
	recSize int
	clock   clockwork.Clock
	buf     *buffer.RecordBuffer[record.Record[T]]
	current string
}

func New[T record.Payload[T]](vol Volume, dir string, perFile int, opts ...Option) *Store[T] {
	o := options{clock: clockwork.NewRealClock(), capacity: BufferCapacity}
	for _, opt := range opts {
		opt(&o)
	}
	if perFile < 1 {
		perFile = 1
	}
	return &Store[T]{
		vol:     vol,
		dir:     filepath.Join("/", dir),
		perFile: perFile,
		recSize: record.Size[T](),
		clock:   o.clock,
		buf:     buffer.NewBuffer[record.Record[T]](o.capacity),
	}
}

// Add buffers p, committing first if the buffer is full. If that commit
// fails p is not added.
func (s *Store[T]) Add(p T) error {
	if s.buf.Full() {
		if err := s.Commit(); err != nil {
			return fmt.Errorf("%v: buffer full: %w", s.dir, err)
		}
	}
	if err := s.buf.AddItem(record.Encode(p)); err != nil {
		return err
	}
	metrics.StoreRecordsBuffered.WithLabelValues(s.dir).Set(float64(s.buf.Len()))
	return nil
}

// Commit writes buffered records to flash, newest first. Records leave the
// buffer only once their bytes are on flash.
func (s *Store[T]) Commit() error {
	if s.buf.Len() == 0 {
		return nil
	}
	err := s.commit()
	metrics.StoreRecordsBuffered.WithLabelValues(s.dir).Set(float64(s.buf.Len()))
	if err != nil {
		metrics.StoreCommitFailures.WithLabelValues(s.dir).Inc()
		logger.Errorf("Commit to [%v] failed, [%v] records still buffered [%v]", s.dir, s.buf.Len(), err)
	}
	return err
}

func (s *Store[T]) commit() error {
	if err := s.vol.Mount(); err != nil {
		return fmt.Errorf("%w: %v", ErrFilesystemUnavailable, err)
	}
	if err := s.vol.Fs().MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrFilesystemUnavailable, err)
	}

	fresh := false
	if s.current == "" {
		p, err := s.chooseFile()
		if err != nil {
			return err
		}
		s.current = p
		fresh = true
	}

	for s.buf.Len() > 0 {
		n, err := s.fill(s.current)
		if n > 0 {
			metrics.StoreRecordsCommitted.WithLabelValues(s.dir).Add(float64(n))
		}
		if err != nil {
			return err
		}
		if n == 0 && fresh {
			return fmt.Errorf("%w: %v has no room", ErrNoFileAvailable, s.current)
		}
		if s.buf.Len() == 0 {
			break
		}
		p, err := s.chooseFile()
		if err != nil {
			return err
		}
		s.current = p
		fresh = true
	}
	return nil
}

// fill appends whole frames to path until it is full or the buffer is empty.
func (s *Store[T]) fill(path string) (int, error) {
	f, err := s.vol.Fs().OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrFilesystemUnavailable, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrFilesystemUnavailable, err)
	}
	size := info.Size()
	room := (s.fileCapacity() - size) / int64(s.recSize)

	written := 0
	for room > 0 && s.buf.Len() > 0 {
		rec, _ := s.buf.GetLast()
		b := rec.Marshal()
		n, err := f.Write(b)
		if err != nil || n != len(b) {
			if n > 0 {
				// drop the torn frame so the file holds whole records only
				if terr := f.Truncate(size); terr != nil {
					logger.Errorf("Could not truncate torn record in [%v] [%v]", path, terr)
				}
			}
			return written, fmt.Errorf("%w: %v wrote %v of %v bytes [%v]", ErrPartialWrite, path, n, len(b), err)
		}
		s.buf.RemoveLast()
		size += int64(n)
		room--
		written++
	}
	logger.Debugf("Committed [%v] records to [%v]", written, path)
	return written, nil
}

// chooseFile returns the smallest file with room for another record, or a
// new unused name.
func (s *Store[T]) chooseFile() (string, error) {
	fs := s.vol.Fs()
	infos, err := afero.ReadDir(fs, s.dir)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFilesystemUnavailable, err)
	}

	var smallest os.FileInfo
	for _, fi := range infos {
		if !fi.Mode().IsRegular() {
			continue
		}
		if smallest == nil || fi.Size() < smallest.Size() {
			smallest = fi
		}
	}
	if smallest != nil && smallest.Size()+int64(s.recSize) <= s.fileCapacity() {
		return filepath.Join(s.dir, smallest.Name()), nil
	}

	now := s.clock.Now().Unix()
	for i := 0; i < FilenameProbeLimit; i++ {
		p := filepath.Join(s.dir, fmt.Sprintf("%d_%d", now, i))
		exists, err := afero.Exists(fs, p)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrFilesystemUnavailable, err)
		}
		if !exists {
			return p, nil
		}
	}
	return "", ErrNoFileAvailable
}

func (s *Store[T]) fileCapacity() int64 {
	return int64(s.perFile) * int64(s.recSize)
}

// ClearBuffer drops every record not yet committed.
func (s *Store[T]) ClearBuffer() {
	s.buf.Clear()
	metrics.StoreRecordsBuffered.WithLabelValues(s.dir).Set(0)
}

// ClearAll removes every file in the store directory and the buffer.
func (s *Store[T]) ClearAll() error {
	s.ClearBuffer()
	s.current = ""
	if err := s.vol.Mount(); err != nil {
		return fmt.Errorf("%w: %v", ErrFilesystemUnavailable, err)
	}
	fs := s.vol.Fs()
	infos, err := afero.ReadDir(fs, s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, fi := range infos {
		if fi.IsDir() {
			continue
		}
		if err := fs.Remove(filepath.Join(s.dir, fi.Name())); err != nil {
			return err
		}
	}
	logger.Infof("Cleared store [%v]", s.dir)
	return nil
}

func (s *Store[T]) Len() int {
	return s.buf.Len()
}

// Peek returns the i-th buffered record, oldest first.
func (s *Store[T]) Peek(i int) (record.Record[T], bool) {
	return s.buf.At(i)
}

func (s *Store[T]) Dir() string {
	return s.dir
}

func (s *Store[T]) PerFile() int {
	return s.perFile
}

func (s *Store[T]) RecordSize() int {
	return s.recSize
}

func (s *Store[T]) Volume() Volume {
	return s.vol
}
