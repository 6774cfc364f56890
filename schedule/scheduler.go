package schedule

import (
	"time"

	"github.com/gr-butler/fieldstation/battery"
	"github.com/gr-butler/fieldstation/env"
	"github.com/gr-butler/fieldstation/eventlog"
	"github.com/gr-butler/fieldstation/metrics"
	"github.com/jonboulle/clockwork"
	logger "github.com/sirupsen/logrus"
)

type ModeSource interface {
	CurrentMode() battery.Mode
}

// Scheduler carries the state between wakes: when the station last woke and
// the reasons it woke for.
type Scheduler struct {
	clock    clockwork.Clock
	sleeper  Sleeper
	battery  ModeSource
	user     Source
	log      Emitter
	drift    *DriftCorrector
	calc     Calculator
	maxSleep time.Duration
	external func(now time.Time) time.Duration

	reasons  ReasonSet
	lastWake time.Time
}

type Option func(*Scheduler)

// WithIndependentClock enables drift correction against rtc.
func WithIndependentClock(rtc clockwork.Clock, ceiling time.Duration) Option {
	return func(s *Scheduler) {
		if rtc == nil {
			return
		}
		if ceiling <= 0 {
			ceiling = env.MaxSleepCorrection
		}
		s.drift = &DriftCorrector{Independent: rtc, Ceiling: ceiling}
	}
}

func WithMaxSleep(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.maxSleep = d
		}
	}
}

func WithMinutesAsSeconds(on bool) Option {
	return func(s *Scheduler) { s.calc.MinutesAsSeconds = on }
}

// WithExternal supplies the time until the next FineOffset listen window.
func WithExternal(f func(now time.Time) time.Duration) Option {
	return func(s *Scheduler) { s.external = f }
}

func NewScheduler(clock clockwork.Clock, sleeper Sleeper, bat ModeSource, user Source, log Emitter, opts ...Option) *Scheduler {
	s := &Scheduler{
		clock:    clock,
		sleeper:  sleeper,
		battery:  bat,
		user:     user,
		log:      log,
		maxSleep: env.MaxSleep,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.drift != nil {
		s.drift.Sleeper = sleeper
		s.drift.Log = log
	}
	return s
}

func (s *Scheduler) mode() battery.Mode {
	if s.battery == nil {
		return battery.ModeNormal
	}
	return s.battery.CurrentMode()
}

// Active returns the schedule that applies right now.
func (s *Scheduler) Active() Schedule {
	return Select(s.mode(), s.user, s.log)
}

func (s *Scheduler) externalInterval(now time.Time) time.Duration {
	if s.external == nil {
		return 0
	}
	return s.external(now)
}

// Peek computes the next wakeup without sleeping.
func (s *Scheduler) Peek() (time.Duration, ReasonSet, error) {
	now := s.clock.Now()
	return s.calc.NextWakeup(now, s.Active(), s.externalInterval(now))
}

// Reasons are the reasons of the current wake.
func (s *Scheduler) Reasons() ReasonSet {
	return s.reasons
}

func (s *Scheduler) ReasonIs(r Reason) bool {
	return s.reasons.Has(r)
}

// SleepToNext returns straight away with any reason missed while the last
// wake was being handled, otherwise sleeps until the next due reason.
// After an interrupt wake the returned set is empty. ErrNoValidEvent is
// returned after a maximum length sleep.
func (s *Scheduler) SleepToNext() (ReasonSet, WakeCause, error) {
	now := s.clock.Now()
	sched := Select(s.mode(), s.user, s.log)

	var awake time.Duration
	if !s.lastWake.IsZero() {
		awake = now.Sub(s.lastWake)
	}

	if awake > 0 {
		missed := s.calc.CheckMissed(sched, s.lastWake, awake).Without(s.reasons)
		if !missed.Empty() {
			logger.Warnf("Missed [%v] while awake for [%v], handling now", missed, awake)
			emit(s.log, eventlog.WakeupEventsMissed, int32(missed), int32(awake/time.Second))
			s.reasons = missed
			s.lastWake = now
			return missed, WakeTimer, nil
		}
	}

	d, reasons, err := s.calc.NextWakeup(now, sched, s.externalInterval(now))
	if err != nil {
		logger.Errorf("No wakeup in schedule [%v], sleeping for [%v]", sched, s.maxSleep)
		d = s.maxSleep
		reasons = 0
	}
	if d > s.maxSleep {
		// nothing is due when a clamped sleep ends
		d = s.maxSleep
		reasons = 0
	}

	if !s.reasons.Only(ReasonFineOffset) {
		emit(s.log, eventlog.Sleep, int32(awake/time.Second), int32(d/time.Second))
	}
	logger.Infof("Sleeping for [%v] until [%v]", d, reasons)
	metrics.NextWakeupSeconds.Set(d.Seconds())

	var sleptAt time.Time
	if s.drift != nil {
		sleptAt = s.drift.Independent.Now()
	}
	cause := s.sleeper.Sleep(d)
	if cause == WakeTimer {
		// an interrupt can still end the top-up sleep
		_, cause, _ = s.drift.Correct(d, sleptAt)
	}
	if cause == WakeInterrupt {
		reasons = 0
	}

	s.lastWake = s.clock.Now()
	s.reasons = reasons
	metrics.Wakeups.Inc()
	logger.Infof("Woke by [%v] for [%v]", cause, reasons)
	if !reasons.Only(ReasonFineOffset) {
		emit(s.log, eventlog.Wakeup, int32(reasons), int32(cause))
	}
	return reasons, cause, err
}
