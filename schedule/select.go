package schedule

import (
	"github.com/gr-butler/fieldstation/battery"
	"github.com/gr-butler/fieldstation/eventlog"
	logger "github.com/sirupsen/logrus"
)

// Tier records which table the selector started from.
type Tier int32

const (
	TierUser       Tier = 1
	TierLowBattery Tier = 2
	TierFallback   Tier = 3
)

// Source supplies the persisted user schedule.
type Source interface {
	WakeupSchedule() Schedule
}

type Emitter interface {
	Emit(code eventlog.Code, meta1, meta2 int32) error
}

// Select picks the schedule for the battery mode and falls back to Default
// when the pick does not validate.
func Select(mode battery.Mode, user Source, log Emitter) Schedule {
	var s Schedule
	var tier Tier
	switch mode {
	case battery.ModeNormal:
		tier = TierUser
		if user != nil {
			s = user.WakeupSchedule()
		}
	case battery.ModeLow:
		tier = TierLowBattery
		s = LowBattery
	default:
		tier = TierFallback
		s = LowBattery
		logger.Warnf("Battery mode [%v] has no schedule, using low battery schedule", mode)
		emit(log, eventlog.BatteryModeUnknown, int32(mode), 0)
	}

	if err := s.Validate(); err != nil {
		logger.Warnf("Schedule from tier [%v] rejected, using default [%v]", tier, err)
		emit(log, eventlog.ScheduleInvalidUsingDef, int32(tier), 0)
		return Default
	}
	return s
}

func emit(log Emitter, code eventlog.Code, meta1, meta2 int32) {
	if log == nil {
		return
	}
	if err := log.Emit(code, meta1, meta2); err != nil {
		logger.Errorf("Could not log [%v] [%v]", code, err)
	}
}
