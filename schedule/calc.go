package schedule

import (
	"time"
)

const secondsPerDay = 24 * 60 * 60

// Calculator turns schedule entries into seconds until their next boundary.
// Boundaries are multiples of the interval counted from UTC midnight.
type Calculator struct {
	// MinutesAsSeconds treats every interval as seconds, for bench runs.
	MinutesAsSeconds bool
}

func (c Calculator) intervalSeconds(minutes uint32) int64 {
	if c.MinutesAsSeconds {
		return int64(minutes)
	}
	return int64(minutes) * 60
}

// secsToEvent returns the seconds from t to the next boundary of interval,
// or -1 if the interval is disabled. Midnight is always a boundary.
func secsToEvent(t time.Time, interval int64) int64 {
	if interval < 1 {
		return -1
	}
	cur := t.Unix() % secondsPerDay
	if cur < 0 {
		cur += secondsPerDay
	}
	if cur >= secondsPerDay-interval {
		return secondsPerDay - cur
	}
	return ((cur/interval)+1)*interval - cur
}

// NextWakeup returns the time until the earliest due entry and every reason
// due at that instant. external, when positive, is an independent listen
// window that wakes for ReasonFineOffset.
func (c Calculator) NextWakeup(now time.Time, s Schedule, external time.Duration) (time.Duration, ReasonSet, error) {
	best := int64(-1)
	var reasons ReasonSet

	for _, e := range s {
		secs := secsToEvent(now, c.intervalSeconds(e.IntervalMinutes))
		if secs <= 0 {
			continue
		}
		switch {
		case best < 0 || secs < best:
			best = secs
			reasons = Set(e.Reason)
		case secs == best:
			reasons = reasons.Add(e.Reason)
		}
	}

	if ext := int64(external / time.Second); ext > 0 {
		switch {
		case best < 0 || ext < best:
			best = ext
			reasons = Set(ReasonFineOffset)
		case ext == best:
			reasons = reasons.Add(ReasonFineOffset)
		}
	}

	if best < 0 {
		return 0, 0, ErrNoValidEvent
	}
	return time.Duration(best) * time.Second, reasons, nil
}

// CheckMissed returns the reasons whose boundary fell within the awake
// window that started at since.
func (c Calculator) CheckMissed(s Schedule, since time.Time, awake time.Duration) ReasonSet {
	window := int64(awake / time.Second)
	var missed ReasonSet
	for _, e := range s {
		secs := secsToEvent(since, c.intervalSeconds(e.IntervalMinutes))
		if secs > 0 && secs <= window {
			missed = missed.Add(e.Reason)
		}
	}
	return missed
}

// NextWakeup uses a Calculator with real minutes.
func NextWakeup(now time.Time, s Schedule, external time.Duration) (time.Duration, ReasonSet, error) {
	return Calculator{}.NextWakeup(now, s, external)
}

func CheckMissed(s Schedule, since time.Time, awake time.Duration) ReasonSet {
	return Calculator{}.CheckMissed(s, since, awake)
}
