// Package eventlog writes coded device events to their own store so they
// are shipped home with the sensor data.
package eventlog

import (
	"sync"

	"github.com/gr-butler/fieldstation/record"
	"github.com/gr-butler/fieldstation/store"
	"github.com/jonboulle/clockwork"
	logger "github.com/sirupsen/logrus"
)

const (
	Dir     = "log"
	PerFile = 8
)

// Entry is one logged event. The timestamp is in milliseconds; events in
// the same second are spaced 1ms apart to keep their order.
type Entry struct {
	TimestampMs uint64 `json:"ts" url:"ts"`
	Code        Code   `json:"code" url:"code"`
	Meta1       int32  `json:"meta1" url:"meta1"`
	Meta2       int32  `json:"meta2" url:"meta2"`
}

func (Entry) Size() int { return 20 }

func (e Entry) Encode(b []byte) {
	w := record.NewWriter(b)
	w.U64(e.TimestampMs)
	w.U32(uint32(e.Code))
	w.I32(e.Meta1)
	w.I32(e.Meta2)
}

func (Entry) Decode(b []byte) Entry {
	r := record.NewReader(b)
	return Entry{
		TimestampMs: r.U64(),
		Code:        Code(r.U32()),
		Meta1:       r.I32(),
		Meta2:       r.I32(),
	}
}

type Log struct {
	store   *store.Store[Entry]
	clock   clockwork.Clock
	lock    sync.Mutex
	lastSec int64
	seq     uint64
	enabled bool
}

func New(st *store.Store[Entry], clock clockwork.Clock) *Log {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Log{store: st, clock: clock, enabled: true, lastSec: -1}
}

// Emit records an event and commits it straight away.
func (l *Log) Emit(code Code, meta1, meta2 int32) error {
	l.lock.Lock()
	if !l.enabled {
		l.lock.Unlock()
		return nil
	}
	sec := l.clock.Now().Unix()
	if sec == l.lastSec {
		l.seq++
	} else {
		l.lastSec = sec
		l.seq = 0
	}
	e := Entry{
		TimestampMs: uint64(sec)*1000 + l.seq,
		Code:        code,
		Meta1:       meta1,
		Meta2:       meta2,
	}
	l.lock.Unlock()

	logger.Debugf("Event [%v] [%v] [%v]", code, meta1, meta2)
	if err := l.store.Add(e); err != nil {
		logger.Errorf("Could not log event [%v] [%v]", code, err)
		return err
	}
	if err := l.store.Commit(); err != nil {
		// stays buffered for the next commit
		logger.Warnf("Event [%v] not committed [%v]", code, err)
		return err
	}
	return nil
}

// SetEnabled turns logging on or off, used while the log itself is drained.
func (l *Log) SetEnabled(on bool) {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.enabled = on
}

func (l *Log) Enabled() bool {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.enabled
}

func (l *Log) Store() *store.Store[Entry] {
	return l.store
}
