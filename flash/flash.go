package flash

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/gr-butler/fieldstation/eventlog"
	logger "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

const DefaultMountRetries = 2

var (
	ErrUnavailable = errors.New("flash: filesystem unavailable")
)

// Emitter receives the format events.
type Emitter interface {
	Emit(code eventlog.Code, meta1, meta2 int32) error
}

// FileInfo is one line of an Ls listing.
type FileInfo struct {
	Path string
	Size int64
}

// Flash is the data volume all stores live on. Paths handed to Fs are
// relative to the volume root.
type Flash struct {
	fs      afero.Fs
	retries int
	log     Emitter
	lock    sync.Mutex
	mounted bool
	// set while a failed mount is being logged; the event log commits
	// through Mount and must not retry the format
	reporting bool
}

// NewOS returns a volume rooted at dir on the host filesystem.
func NewOS(dir string, retries int) *Flash {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logger.Warnf("Could not create flash root [%v] [%v]", dir, err)
	}
	return New(afero.NewBasePathFs(afero.NewOsFs(), dir), retries)
}

func New(fs afero.Fs, retries int) *Flash {
	if retries < 1 {
		retries = DefaultMountRetries
	}
	return &Flash{fs: fs, retries: retries}
}

// SetEmitter attaches the event log once it exists; the log itself lives on
// this volume so it cannot be supplied at construction.
func (f *Flash) SetEmitter(log Emitter) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.log = log
}

func (f *Flash) Fs() afero.Fs {
	return f.fs
}

// Mount makes the volume usable, formatting it if the retries are exhausted.
func (f *Flash) Mount() error {
	code, err := f.mount()
	// emitted without the lock held, the event log commits through Mount
	if code != 0 {
		f.setReporting(true)
		f.emit(code)
		f.setReporting(false)
	}
	return err
}

func (f *Flash) setReporting(on bool) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.reporting = on
}

func (f *Flash) mount() (eventlog.Code, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if f.mounted {
		return 0, nil
	}
	if f.reporting {
		return 0, ErrUnavailable
	}

	for i := 0; i < f.retries; i++ {
		err := f.probe()
		if err == nil {
			f.mounted = true
			return 0, nil
		}
		logger.Warnf("Flash mount attempt [%v] failed [%v]", i+1, err)
	}

	logger.Warn("Formatting flash")
	if err := f.format(); err != nil {
		logger.Errorf("Flash format failed [%v]", err)
		return eventlog.SpiffsFormatFailed, ErrUnavailable
	}
	if err := f.probe(); err != nil {
		logger.Errorf("Flash mount failed after format [%v]", err)
		return eventlog.SpiffsFormatFailed, ErrUnavailable
	}
	f.mounted = true
	return eventlog.SpiffsFormatted, nil
}

// Unmount forces the next Mount to probe the volume again.
func (f *Flash) Unmount() {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.mounted = false
}

func (f *Flash) emit(code eventlog.Code) {
	f.lock.Lock()
	log := f.log
	f.lock.Unlock()
	if log == nil {
		return
	}
	_ = log.Emit(code, 0, 0)
}

func (f *Flash) probe() error {
	info, err := f.fs.Stat("/")
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return errors.New("flash: root is not a directory")
	}
	return nil
}

func (f *Flash) format() error {
	entries, err := afero.ReadDir(f.fs, "/")
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	for _, e := range entries {
		if err := f.fs.RemoveAll(filepath.Join("/", e.Name())); err != nil {
			return err
		}
	}
	return f.fs.MkdirAll("/", 0o755)
}

// Ls lists every regular file on the volume, sorted by path.
func (f *Flash) Ls() ([]FileInfo, error) {
	if err := f.Mount(); err != nil {
		return nil, err
	}
	var files []FileInfo
	err := afero.Walk(f.fs, "/", func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.Mode().IsRegular() {
			files = append(files, FileInfo{Path: path, Size: info.Size()})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// Usage returns the bytes held in regular files.
func (f *Flash) Usage() (int64, error) {
	files, err := f.Ls()
	if err != nil {
		return 0, err
	}
	var used int64
	for _, fi := range files {
		used += fi.Size
	}
	return used, nil
}
