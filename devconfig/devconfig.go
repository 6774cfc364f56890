// Package devconfig keeps the device settings that survive a reboot in a
// checksummed file outside the data stores.
package devconfig

import (
	"bytes"
	"errors"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"sync"

	"github.com/gr-butler/fieldstation/eventlog"
	"github.com/gr-butler/fieldstation/record"
	"github.com/gr-butler/fieldstation/schedule"
	logger "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

const (
	TokenSize = 32
	APNSize   = 32

	bodySize = 1 + 1 + schedule.Len*(1+4) + 4 + TokenSize + APNSize + 1 + 1
	blobSize = record.ChecksumSize + bodySize
)

var (
	ErrChecksum = errors.New("devconfig: checksum mismatch")
)

type Emitter interface {
	Emit(code eventlog.Code, meta1, meta2 int32) error
}

type Config struct {
	CleanReboot    bool
	OTAFlashed     bool
	WakeupSchedule schedule.Schedule
	LastRCDataID   uint32
	DeviceToken    string
	CellularAPN    string
	FOSnifferID    uint8
	FOEnabled      bool
}

var Defaults = Config{
	CleanReboot:    false,
	OTAFlashed:     false,
	WakeupSchedule: schedule.Default,
	LastRCDataID:   0,
	CellularAPN:    "data.rewicom.net",
	FOSnifferID:    0xff,
	FOEnabled:      false,
}

func (c Config) marshal() []byte {
	b := make([]byte, blobSize)
	w := record.NewWriter(b[record.ChecksumSize:])
	w.Bool(c.CleanReboot)
	w.Bool(c.OTAFlashed)
	for _, e := range c.WakeupSchedule {
		w.U8(uint8(e.Reason))
		w.U32(e.IntervalMinutes)
	}
	w.U32(c.LastRCDataID)
	w.Bytes([]byte(c.DeviceToken), TokenSize)
	w.Bytes([]byte(c.CellularAPN), APNSize)
	w.U8(c.FOSnifferID)
	w.Bool(c.FOEnabled)

	// checksum covers the body, computed with the crc field zero
	crc := crc32.ChecksumIEEE(b)
	record.NewWriter(b).U32(crc)
	return b
}

func unmarshal(b []byte) (Config, error) {
	if len(b) != blobSize {
		return Config{}, fmt.Errorf("%w: %v bytes", ErrChecksum, len(b))
	}
	stored := record.NewReader(b).U32()
	zeroed := make([]byte, len(b))
	copy(zeroed[record.ChecksumSize:], b[record.ChecksumSize:])
	if crc32.ChecksumIEEE(zeroed) != stored {
		return Config{}, ErrChecksum
	}

	r := record.NewReader(b[record.ChecksumSize:])
	c := Config{}
	c.CleanReboot = r.Bool()
	c.OTAFlashed = r.Bool()
	for i := range c.WakeupSchedule {
		c.WakeupSchedule[i].Reason = schedule.Reason(r.U8())
		c.WakeupSchedule[i].IntervalMinutes = r.U32()
	}
	c.LastRCDataID = r.U32()
	c.DeviceToken = cstring(r.Bytes(TokenSize))
	c.CellularAPN = cstring(r.Bytes(APNSize))
	c.FOSnifferID = r.U8()
	c.FOEnabled = r.Bool()
	return c, nil
}

func cstring(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}

// Store is the loaded config and where it is saved.
type Store struct {
	fs   afero.Fs
	path string
	log  Emitter
	lock sync.Mutex
	cfg  Config
}

// Open loads the config at path. A missing or corrupt file is replaced with
// the defaults; if that cannot be read back the defaults are used from
// memory and an error wrapping ErrChecksum is returned with a usable Store.
func Open(fs afero.Fs, path string, log Emitter) (*Store, error) {
	s := &Store{fs: fs, path: filepath.Join("/", path), log: log}

	cfg, err := s.load()
	if err == nil {
		s.cfg = cfg
		return s, nil
	}
	logger.Warnf("Device config [%v] unreadable, writing defaults [%v]", path, err)
	s.emit(eventlog.DeviceConfigCRCErrors, 0, 0)

	if werr := s.write(Defaults); werr != nil {
		logger.Errorf("Could not write default device config [%v]", werr)
	}
	cfg, err = s.load()
	if err == nil {
		s.cfg = cfg
		return s, nil
	}

	logger.Errorf("Using default device config [%v]", err)
	s.cfg = Defaults
	s.emit(eventlog.UsingDefaultDeviceConfig, 0, 0)
	return s, fmt.Errorf("devconfig: %v: %w", path, err)
}

func (s *Store) load() (Config, error) {
	b, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, fmt.Errorf("%w: not found", ErrChecksum)
		}
		return Config{}, err
	}
	return unmarshal(b)
}

func (s *Store) write(c Config) error {
	if err := s.fs.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	return afero.WriteFile(s.fs, s.path, c.marshal(), 0o644)
}

func (s *Store) emit(code eventlog.Code, meta1, meta2 int32) {
	if s.log == nil {
		return
	}
	_ = s.log.Emit(code, meta1, meta2)
}

// Save persists the current config.
func (s *Store) Save() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.write(s.cfg)
}

// Get returns a copy of the whole config.
func (s *Store) Get() Config {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.cfg
}

// WakeupSchedule returns the persisted schedule.
func (s *Store) WakeupSchedule() schedule.Schedule {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.cfg.WakeupSchedule
}

func (s *Store) SetWakeupSchedule(sched schedule.Schedule) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.cfg.WakeupSchedule = sched
}

// Interval returns the minutes for r, or -1 if r is not scheduled.
func (s *Store) Interval(r schedule.Reason) int {
	s.lock.Lock()
	defer s.lock.Unlock()
	v, ok := s.cfg.WakeupSchedule.Interval(r)
	if !ok {
		return -1
	}
	return int(v)
}

func (s *Store) SetInterval(r schedule.Reason, minutes uint32) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.cfg.WakeupSchedule.SetInterval(r, minutes)
}

func (s *Store) CleanReboot() bool {
	return s.Get().CleanReboot
}

func (s *Store) SetCleanReboot(v bool) {
	s.update(func(c *Config) { c.CleanReboot = v })
}

func (s *Store) OTAFlashed() bool {
	return s.Get().OTAFlashed
}

func (s *Store) SetOTAFlashed(v bool) {
	s.update(func(c *Config) { c.OTAFlashed = v })
}

func (s *Store) LastRCDataID() uint32 {
	return s.Get().LastRCDataID
}

func (s *Store) SetLastRCDataID(v uint32) {
	s.update(func(c *Config) { c.LastRCDataID = v })
}

func (s *Store) DeviceToken() string {
	return s.Get().DeviceToken
}

// SetDeviceToken stores at most TokenSize bytes of token.
func (s *Store) SetDeviceToken(token string) {
	if len(token) > TokenSize {
		token = token[:TokenSize]
	}
	s.update(func(c *Config) { c.DeviceToken = token })
}

func (s *Store) APN() string {
	return s.Get().CellularAPN
}

func (s *Store) SetAPN(apn string) {
	if len(apn) > APNSize {
		apn = apn[:APNSize]
	}
	s.update(func(c *Config) { c.CellularAPN = apn })
}

func (s *Store) FOSnifferID() uint8 {
	return s.Get().FOSnifferID
}

func (s *Store) SetFOSnifferID(v uint8) {
	s.update(func(c *Config) { c.FOSnifferID = v })
}

func (s *Store) FOEnabled() bool {
	return s.Get().FOEnabled
}

func (s *Store) SetFOEnabled(v bool) {
	s.update(func(c *Config) { c.FOEnabled = v })
}

func (s *Store) update(f func(c *Config)) {
	s.lock.Lock()
	defer s.lock.Unlock()
	f(&s.cfg)
}
