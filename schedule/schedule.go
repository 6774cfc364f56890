// Package schedule decides when the station wakes and why.
package schedule

import (
	"errors"
	"fmt"
)

// Len is the number of entries in every schedule. The persisted device
// config stores exactly this many.
const Len = 4

var (
	ErrNoValidEvent    = errors.New("schedule: no valid event")
	ErrInvalidSchedule = errors.New("schedule: invalid schedule")
	ErrReasonNotFound  = errors.New("schedule: reason not in schedule")
	ErrInvalidInterval = errors.New("schedule: interval not allowed")
)

type Entry struct {
	Reason          Reason `json:"reason" mapstructure:"reason"`
	IntervalMinutes uint32 `json:"interval_min" mapstructure:"interval_min"`
}

type Schedule [Len]Entry

// AllowedIntervals are the minute values a schedule entry may hold. 0
// disables the entry. Every value divides a day.
var AllowedIntervals = []uint32{0, 1, 2, 3, 4, 5, 10, 15, 20, 30, 60, 120, 240, 360, 480, 720, 1440}

var Default = Schedule{
	{ReasonCallHome, 30},
	{ReasonWaterSensors, 10},
	{ReasonWeatherStation, 10},
	{ReasonSoilMoisture, 10},
}

var LowBattery = Schedule{
	{ReasonCallHome, 120},
	{ReasonWaterSensors, 60},
	{ReasonWeatherStation, 60},
	{ReasonSoilMoisture, 60},
}

func IntervalAllowed(minutes uint32) bool {
	for _, v := range AllowedIntervals {
		if v == minutes {
			return true
		}
	}
	return false
}

// Validate checks every interval is allowed and that the station will call
// home at some point.
func (s Schedule) Validate() error {
	callHome := false
	for _, e := range s {
		if !IntervalAllowed(e.IntervalMinutes) {
			return fmt.Errorf("%w: %v has %v minutes: %w", ErrInvalidSchedule, e.Reason, e.IntervalMinutes, ErrInvalidInterval)
		}
		if e.Reason == ReasonCallHome && e.IntervalMinutes > 0 {
			callHome = true
		}
	}
	if !callHome {
		return fmt.Errorf("%w: call home disabled", ErrInvalidSchedule)
	}
	return nil
}

func (s Schedule) Valid() bool {
	return s.Validate() == nil
}

// Interval returns the interval of the first entry for r.
func (s Schedule) Interval(r Reason) (uint32, bool) {
	for _, e := range s {
		if e.Reason == r {
			return e.IntervalMinutes, true
		}
	}
	return 0, false
}

func (s *Schedule) SetInterval(r Reason, minutes uint32) error {
	if !IntervalAllowed(minutes) {
		return fmt.Errorf("%w: %v", ErrInvalidInterval, minutes)
	}
	for i := range s {
		if s[i].Reason == r {
			s[i].IntervalMinutes = minutes
			return nil
		}
	}
	return fmt.Errorf("%w: %v", ErrReasonNotFound, r)
}

func (s Schedule) String() string {
	out := ""
	for i, e := range s {
		if i > 0 {
			out += " "
		}
		out += fmt.Sprintf("%v=%vm", e.Reason, e.IntervalMinutes)
	}
	return out
}
