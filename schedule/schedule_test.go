package schedule

import (
	"testing"
	"time"

	"github.com/gr-butler/fieldstation/battery"
	"github.com/gr-butler/fieldstation/eventlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type event struct {
	code         eventlog.Code
	meta1, meta2 int32
}

type fakeLog struct {
	events []event
}

func (l *fakeLog) Emit(code eventlog.Code, meta1, meta2 int32) error {
	l.events = append(l.events, event{code, meta1, meta2})
	return nil
}

func (l *fakeLog) codes() []eventlog.Code {
	var out []eventlog.Code
	for _, e := range l.events {
		out = append(out, e.code)
	}
	return out
}

type fixedSource struct {
	s Schedule
}

func (f fixedSource) WakeupSchedule() Schedule { return f.s }

func at(hour, min, sec int) time.Time {
	return time.Date(2023, time.November, 14, hour, min, sec, 0, time.UTC)
}

func only(r Reason, minutes uint32) Schedule {
	return Schedule{
		{r, minutes},
		{ReasonWaterSensors, 0},
		{ReasonWeatherStation, 0},
		{ReasonSoilMoisture, 0},
	}
}

func TestReasonSet(t *testing.T) {
	s := Set(ReasonCallHome, ReasonSoilMoisture)
	assert.True(t, s.Has(ReasonCallHome))
	assert.False(t, s.Has(ReasonWaterSensors))
	assert.Equal(t, ReasonSet(0x11), s)
	assert.Equal(t, "call-home|soil-moisture", s.String())
	assert.Equal(t, Set(ReasonSoilMoisture), s.Without(Set(ReasonCallHome)))
	assert.True(t, Set(ReasonFineOffset).Only(ReasonFineOffset))
	assert.False(t, s.Only(ReasonCallHome))
	assert.Equal(t, "none", ReasonSet(0).String())
	assert.Equal(t, []Reason{ReasonCallHome, ReasonSoilMoisture}, s.Reasons())
}

func TestValidate(t *testing.T) {
	assert.True(t, Default.Valid())
	assert.True(t, LowBattery.Valid())

	bad := Default
	bad[1].IntervalMinutes = 7
	assert.ErrorIs(t, bad.Validate(), ErrInvalidInterval)
	assert.False(t, bad.Valid())

	noCall := Default
	noCall[0].IntervalMinutes = 0
	assert.ErrorIs(t, noCall.Validate(), ErrInvalidSchedule)
	assert.False(t, noCall.Valid())

	assert.False(t, Schedule{}.Valid())
}

func TestIntervals(t *testing.T) {
	s := Default
	v, ok := s.Interval(ReasonWeatherStation)
	assert.True(t, ok)
	assert.Equal(t, uint32(10), v)

	_, ok = s.Interval(ReasonFineOffset)
	assert.False(t, ok)

	require.NoError(t, s.SetInterval(ReasonWeatherStation, 60))
	v, _ = s.Interval(ReasonWeatherStation)
	assert.Equal(t, uint32(60), v)

	assert.ErrorIs(t, s.SetInterval(ReasonFineOffset, 10), ErrReasonNotFound)
	assert.ErrorIs(t, s.SetInterval(ReasonWeatherStation, 11), ErrInvalidInterval)
	// the compiled-in table is untouched
	assert.Equal(t, uint32(10), Default[2].IntervalMinutes)
}

func TestSelect(t *testing.T) {
	custom := Default
	custom[0].IntervalMinutes = 60

	log := &fakeLog{}
	assert.Equal(t, custom, Select(battery.ModeNormal, fixedSource{custom}, log))
	assert.Empty(t, log.events)

	assert.Equal(t, LowBattery, Select(battery.ModeLow, fixedSource{custom}, log))
	assert.Empty(t, log.events)

	assert.Equal(t, LowBattery, Select(battery.ModeUnknown, fixedSource{custom}, log))
	assert.Equal(t, []event{{eventlog.BatteryModeUnknown, int32(battery.ModeUnknown), 0}}, log.events)

	log = &fakeLog{}
	broken := custom
	broken[2].IntervalMinutes = 9
	assert.Equal(t, Default, Select(battery.ModeNormal, fixedSource{broken}, log))
	assert.Equal(t, []event{{eventlog.ScheduleInvalidUsingDef, int32(TierUser), 0}}, log.events)

	log = &fakeLog{}
	assert.Equal(t, Default, Select(battery.ModeNormal, nil, log))
	assert.Equal(t, []eventlog.Code{eventlog.ScheduleInvalidUsingDef}, log.codes())
}

func TestNextWakeup(t *testing.T) {
	d, reasons, err := NextWakeup(at(10, 47, 0), only(ReasonCallHome, 30), 0)
	require.NoError(t, err)
	assert.Equal(t, 780*time.Second, d)
	assert.Equal(t, Set(ReasonCallHome), reasons)

	// 10 and 30 minute entries meet on the half hour
	s := only(ReasonCallHome, 30)
	s[1].IntervalMinutes = 10
	d, reasons, err = NextWakeup(at(10, 25, 0), s, 0)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, d)
	assert.Equal(t, Set(ReasonCallHome, ReasonWaterSensors), reasons)

	// the 10 minute entry alone
	d, reasons, err = NextWakeup(at(10, 31, 0), s, 0)
	require.NoError(t, err)
	assert.Equal(t, 9*time.Minute, d)
	assert.Equal(t, Set(ReasonWaterSensors), reasons)

	// exactly on a boundary waits a full interval
	d, _, err = NextWakeup(at(10, 30, 0), s, 0)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, d)
}

func TestNextWakeupMidnight(t *testing.T) {
	d, _, err := NextWakeup(at(23, 50, 0), only(ReasonCallHome, 1440), 0)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, d)

	d, _, err = NextWakeup(at(13, 0, 0), only(ReasonCallHome, 720), 0)
	require.NoError(t, err)
	assert.Equal(t, 11*time.Hour, d)

	d, _, err = NextWakeup(at(23, 59, 30), only(ReasonCallHome, 60), 0)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, d)
}

func TestNextWakeupExternal(t *testing.T) {
	s := only(ReasonCallHome, 30)
	now := at(10, 25, 0)

	d, reasons, err := NextWakeup(now, s, 200*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 200*time.Second, d)
	assert.Equal(t, Set(ReasonFineOffset), reasons)

	d, reasons, err = NextWakeup(now, s, 300*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 300*time.Second, d)
	assert.Equal(t, Set(ReasonCallHome, ReasonFineOffset), reasons)

	_, reasons, err = NextWakeup(now, s, 400*time.Second)
	require.NoError(t, err)
	assert.Equal(t, Set(ReasonCallHome), reasons)

	d, reasons, err = NextWakeup(now, Schedule{}, 90*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)
	assert.Equal(t, Set(ReasonFineOffset), reasons)
}

func TestNextWakeupNoEvent(t *testing.T) {
	_, _, err := NextWakeup(at(10, 0, 0), Schedule{}, 0)
	assert.ErrorIs(t, err, ErrNoValidEvent)
}

func TestMinutesAsSeconds(t *testing.T) {
	c := Calculator{MinutesAsSeconds: true}
	d, reasons, err := c.NextWakeup(at(10, 0, 7), only(ReasonCallHome, 30), 0)
	require.NoError(t, err)
	assert.Equal(t, 23*time.Second, d)
	assert.Equal(t, Set(ReasonCallHome), reasons)
}

func TestCheckMissed(t *testing.T) {
	s := Schedule{
		{ReasonCallHome, 120},
		{ReasonWaterSensors, 30},
		{ReasonWeatherStation, 0},
		{ReasonSoilMoisture, 0},
	}
	// water is due 20 minutes into a 65 minute busy window
	missed := CheckMissed(s, at(10, 10, 0), 65*time.Minute)
	assert.Equal(t, Set(ReasonWaterSensors), missed)

	assert.True(t, CheckMissed(s, at(10, 10, 0), 19*time.Minute).Empty())
	// the boundary itself counts
	assert.Equal(t, Set(ReasonWaterSensors), CheckMissed(s, at(10, 10, 0), 20*time.Minute))
	assert.Equal(t, Set(ReasonCallHome, ReasonWaterSensors), CheckMissed(s, at(10, 10, 0), 110*time.Minute))
	assert.True(t, CheckMissed(s, at(10, 10, 0), 0).Empty())
}
