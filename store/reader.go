package store

import (
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/gr-butler/fieldstation/record"
	logger "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

type cursorState int

const (
	statePrepare cursorState = iota
	stateReading
	stateFinished
)

// Reader walks the files of one store and the records inside each file.
// Only flushed records are visible, so commit before attaching a reader.
type Reader[T record.Payload[T]] struct {
	store *Store[T]

	fileState cursorState
	files     []string
	next      int
	file      afero.File
	path      string

	entryState cursorState
	entry      record.Record[T]
	frame      []byte
}

func NewReader[T record.Payload[T]](s *Store[T]) *Reader[T] {
	return &Reader[T]{
		store: s,
		frame: make([]byte, s.RecordSize()),
	}
}

// Begin mounts the volume and re-arms both cursors.
func (r *Reader[T]) Begin() error {
	r.Reset()
	if err := r.store.Volume().Mount(); err != nil {
		r.fileState = stateFinished
		return ErrFilesystemUnavailable
	}
	return nil
}

// Reset releases the open file and starts the traversal over.
func (r *Reader[T]) Reset() {
	r.closeFile()
	r.fileState = statePrepare
	r.entryState = statePrepare
	r.files = nil
	r.next = 0
	r.entry = record.Record[T]{}
}

func (r *Reader[T]) Close() error {
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

// NextFile advances to the next file. It returns false once the directory is
// exhausted, including when it does not exist.
func (r *Reader[T]) NextFile() bool {
	switch r.fileState {
	case statePrepare:
		names, err := r.list()
		if err != nil {
			if !os.IsNotExist(err) {
				logger.Warnf("Could not list [%v] [%v]", r.store.Dir(), err)
			}
			r.fileState = stateFinished
			return false
		}
		r.files = names
		r.next = 0
		r.fileState = stateReading
	case stateFinished:
		return false
	}

	r.closeFile()
	fs := r.store.Volume().Fs()
	for r.next < len(r.files) {
		p := r.files[r.next]
		r.next++
		f, err := fs.Open(p)
		if err != nil {
			logger.Warnf("Could not open [%v] [%v]", p, err)
			continue
		}
		r.file = f
		r.path = p
		r.entryState = statePrepare
		return true
	}
	r.fileState = stateFinished
	r.entryState = stateFinished
	return false
}

func (r *Reader[T]) list() ([]string, error) {
	infos, err := afero.ReadDir(r.store.Volume().Fs(), r.store.Dir())
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(infos))
	for _, fi := range infos {
		if fi.Mode().IsRegular() {
			names = append(names, filepath.Join(r.store.Dir(), fi.Name()))
		}
	}
	sort.Strings(names)
	return names, nil
}

// NextEntry reads the next record of the current file. A short read ends the
// file and is not an error.
func (r *Reader[T]) NextEntry() (T, bool) {
	var zero T
	if r.file == nil || r.entryState == stateFinished {
		return zero, false
	}
	r.entryState = stateReading

	if _, err := io.ReadFull(r.file, r.frame); err != nil {
		if err != io.EOF && err != io.ErrUnexpectedEOF {
			logger.Warnf("Read from [%v] failed [%v]", r.path, err)
		}
		r.entryState = stateFinished
		r.entry = record.Record[T]{}
		return zero, false
	}
	rec, err := record.Unmarshal[T](r.frame)
	if err != nil {
		r.entryState = stateFinished
		return zero, false
	}
	r.entry = rec
	return rec.Payload, true
}

// EntryValid reports whether the last record read has a matching checksum.
func (r *Reader[T]) EntryValid() bool {
	if r.entryState != stateReading {
		return false
	}
	return r.entry.Valid()
}

// DeleteFile removes the file under the cursor.
func (r *Reader[T]) DeleteFile() error {
	if r.file == nil {
		return ErrNoCurrentFile
	}
	r.closeFile()
	r.entryState = statePrepare
	if err := r.store.Volume().Fs().Remove(r.path); err != nil {
		return err
	}
	logger.Debugf("Deleted [%v]", r.path)
	return nil
}

// FilePath is the path of the current file, or empty.
func (r *Reader[T]) FilePath() string {
	if r.file == nil {
		return ""
	}
	return r.path
}

func (r *Reader[T]) closeFile() {
	if r.file != nil {
		_ = r.file.Close()
		r.file = nil
	}
}
