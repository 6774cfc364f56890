package schedule

import (
	"time"

	"github.com/gr-butler/fieldstation/env"
	"github.com/gr-butler/fieldstation/eventlog"
	"github.com/gr-butler/fieldstation/metrics"
	"github.com/jonboulle/clockwork"
	logger "github.com/sirupsen/logrus"
)

// WakeCause says what ended a sleep.
type WakeCause uint8

const (
	WakeTimer WakeCause = iota
	WakeInterrupt
)

func (c WakeCause) String() string {
	if c == WakeInterrupt {
		return "interrupt"
	}
	return "timer"
}

// Sleeper suspends the station for up to d.
type Sleeper interface {
	Sleep(d time.Duration) WakeCause
}

// ClockSleeper sleeps on a clock and only ever wakes on the timer.
type ClockSleeper struct {
	Clock clockwork.Clock
}

func (s ClockSleeper) Sleep(d time.Duration) WakeCause {
	s.Clock.Sleep(d)
	return WakeTimer
}

// TimestampValid reports whether t looks like it came from a set clock.
func TimestampValid(t time.Time) bool {
	u := t.Unix()
	return u >= env.TimestampValidFrom && u <= env.TimestampValidTo
}

// DriftCorrector tops up a sleep that ended early, measured against an
// independent clock. Undersleeps beyond Ceiling are accepted as they are.
type DriftCorrector struct {
	Independent clockwork.Clock
	Sleeper     Sleeper
	Ceiling     time.Duration
	Log         Emitter
}

// Correct returns the supplementary sleep issued, if any, and what ended it.
// The cause is WakeTimer when no sleep was needed.
func (d *DriftCorrector) Correct(intended time.Duration, sleptAt time.Time) (time.Duration, WakeCause, bool) {
	if d == nil || d.Independent == nil || d.Sleeper == nil {
		return 0, WakeTimer, false
	}
	now := d.Independent.Now()
	if !TimestampValid(sleptAt) || !TimestampValid(now) {
		logger.Warnf("Independent clock not set [%v] [%v], skipping drift check", sleptAt.Unix(), now.Unix())
		return 0, WakeTimer, false
	}

	intendedSecs := int64(intended / time.Second)
	elapsed := now.Unix() - sleptAt.Unix()
	under := intendedSecs - elapsed
	if under <= 0 {
		return 0, WakeTimer, false
	}
	ceiling := int64(d.Ceiling / time.Second)
	if under > ceiling {
		logger.Warnf("Woke [%v]s early, beyond correction limit [%v]s, accepting drift", under, ceiling)
		return 0, WakeTimer, false
	}

	extra := time.Duration(under) * time.Second
	logger.Infof("Woke [%v]s early, sleeping again", under)
	cause := d.Sleeper.Sleep(extra)
	metrics.DriftCorrections.Inc()
	emit(d.Log, eventlog.WakeupCorrection, int32(under), 0)
	return extra, cause, true
}
