package main

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/gr-butler/fieldstation/battery"
	"github.com/gr-butler/fieldstation/data"
	"github.com/gr-butler/fieldstation/devconfig"
	"github.com/gr-butler/fieldstation/eventlog"
	"github.com/gr-butler/fieldstation/flash"
	"github.com/gr-butler/fieldstation/led"
	"github.com/gr-butler/fieldstation/schedule"
	"github.com/gr-butler/fieldstation/store"
	"github.com/gr-butler/fieldstation/telemetry"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/analog"
	"periph.io/x/conn/v3/physic"
)

type advancer interface {
	Advance(d time.Duration)
}

type fakeSleeper struct {
	clock advancer
	cause schedule.WakeCause
	slept []time.Duration
}

func (f *fakeSleeper) Sleep(d time.Duration) schedule.WakeCause {
	f.slept = append(f.slept, d)
	f.clock.Advance(d)
	return f.cause
}

// restSleeper is the battery.Sleeper side of the fake
type restSleeper struct {
	clock advancer
	slept []time.Duration
}

func (r *restSleeper) Sleep(d time.Duration) {
	r.slept = append(r.slept, d)
	r.clock.Advance(d)
}

type fixed[T any] struct {
	v     T
	err   error
	calls int
}

func (f *fixed[T]) Measure(ctx context.Context) (T, error) {
	f.calls++
	return f.v, f.err
}

// fineOffset hears a packet every window.
type fineOffset struct {
	fixed[data.FineOffset]
	window time.Duration
}

func (f *fineOffset) NextWindow(now time.Time) time.Duration {
	return f.window
}

type recorder[T any] struct {
	got []T
	err error
}

func (r *recorder[T]) Submit(ctx context.Context, category string, batch []T) error {
	if r.err != nil {
		return r.err
	}
	r.got = append(r.got, batch...)
	return nil
}

type fakeSinks struct {
	water   *recorder[data.Water]
	weather *recorder[data.Weather]
	events  *recorder[eventlog.Entry]
	openErr error
	closed  int
	onOpen  func()
}

func (f *fakeSinks) open(ctx context.Context) (*sinkSet, error) {
	if f.onOpen != nil {
		f.onOpen()
	}
	if f.openErr != nil {
		return nil, f.openErr
	}
	return &sinkSet{
		water:      f.water,
		weather:    f.weather,
		soil:       &recorder[data.Soil]{},
		lightning:  &recorder[data.Lightning]{},
		fineOffset: &recorder[data.FineOffset]{},
		sdi12:      &recorder[data.SDI12Log]{},
		events:     f.events,
		close:      func() { f.closed++ },
	}, nil
}

// millivolts feeds a sequence of readings, repeating the last.
type millivolts struct {
	mv []int
}

func (m *millivolts) Read() (analog.Sample, error) {
	v := m.mv[0]
	if len(m.mv) > 1 {
		m.mv = m.mv[1:]
	}
	return analog.Sample{V: physic.ElectricPotential(v) * physic.MilliVolt}, nil
}

type harness struct {
	s       *station
	clock   advancer
	sleeper *fakeSleeper
	rest    *restSleeper
	sinks   *fakeSinks
	water   *fixed[data.Water]
	weather *fixed[data.Weather]
	soil    *fixed[data.Soil]
	strike  *fixed[data.Lightning]
}

func newHarness(t *testing.T, adc battery.VoltageReader) *harness {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2023, time.November, 14, 10, 47, 0, 0, time.UTC))
	fl := flash.New(afero.NewMemMapFs(), 2)
	stores := data.NewStores(fl, store.WithClock(clock))
	log := eventlog.New(stores.Log, clock)
	fl.SetEmitter(log)
	devcfg, err := devconfig.Open(fl.Fs(), "device.cfg", log)
	require.NoError(t, err)

	bat := battery.NewMonitor(adc)
	sleeper := &fakeSleeper{clock: clock}
	h := &harness{
		clock:   clock,
		sleeper: sleeper,
		rest:    &restSleeper{clock: clock},
		sinks: &fakeSinks{
			water:   &recorder[data.Water]{},
			weather: &recorder[data.Weather]{},
			events:  &recorder[eventlog.Entry]{},
		},
		water:   &fixed[data.Water]{v: data.Water{Timestamp: 1, Temperature: 12.5}},
		weather: &fixed[data.Weather]{v: data.Weather{Timestamp: 1, AirTemp: 8}},
		soil:    &fixed[data.Soil]{v: data.Soil{Timestamp: 1, VWC: 0.31}},
		strike:  &fixed[data.Lightning]{v: data.Lightning{Timestamp: 1, Distance: 12, Energy: 4000}},
	}
	h.s = &station{
		clock:     clock,
		flash:     fl,
		stores:    stores,
		log:       log,
		devcfg:    devcfg,
		battery:   bat,
		rest:      h.rest,
		sinks:     h.sinks.open,
		water:     h.water,
		weather:   h.weather,
		soil:      h.soil,
		lightning: h.strike,
	}
	h.s.sched = schedule.NewScheduler(clock, sleeper, bat, devcfg, log, schedule.WithExternal(h.s.listenWindow))
	return h
}

// logged returns the codes still in the event store, oldest first.
func logged(t *testing.T, s *station) []eventlog.Code {
	t.Helper()
	r := store.NewReader(s.log.Store())
	require.NoError(t, r.Begin())
	defer r.Close()
	var entries []eventlog.Entry
	for r.NextFile() {
		for {
			e, ok := r.NextEntry()
			if !ok {
				break
			}
			if r.EntryValid() {
				entries = append(entries, e)
			}
		}
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].TimestampMs < entries[j].TimestampMs })
	var codes []eventlog.Code
	for _, e := range entries {
		codes = append(codes, e.Code)
	}
	return codes
}

func codesOf(entries []eventlog.Entry) []eventlog.Code {
	var codes []eventlog.Code
	for _, e := range entries {
		codes = append(codes, e.Code)
	}
	return codes
}

func TestRunOnceReadsDueSensors(t *testing.T) {
	h := newHarness(t, nil)

	h.s.runOnce(context.Background())
	assert.Equal(t, []time.Duration{3 * time.Minute}, h.sleeper.slept)
	assert.Equal(t, 1, h.water.calls)
	assert.Equal(t, 1, h.weather.calls)
	assert.Equal(t, 1, h.soil.calls)
	assert.Equal(t, 0, h.strike.calls)

	// committed straight away
	assert.Equal(t, 0, h.s.stores.Water.Len())
	r := store.NewReader(h.s.stores.Water)
	require.NoError(t, r.Begin())
	require.True(t, r.NextFile())
	w, ok := r.NextEntry()
	require.True(t, ok)
	assert.True(t, r.EntryValid())
	assert.Equal(t, float32(12.5), w.Temperature)
	require.NoError(t, r.Close())

	codes := logged(t, h.s)
	assert.Contains(t, codes, eventlog.Sleep)
	assert.Contains(t, codes, eventlog.Wakeup)
	assert.Contains(t, codes, eventlog.Battery)
}

func TestRunOnceInterrupt(t *testing.T) {
	h := newHarness(t, nil)
	h.sleeper.cause = schedule.WakeInterrupt

	h.s.runOnce(context.Background())
	assert.Equal(t, 1, h.strike.calls)
	assert.Equal(t, 0, h.water.calls)

	var report []eventlog.Code
	for _, c := range logged(t, h.s) {
		if c == eventlog.LightningIRQReport {
			report = append(report, c)
		}
	}
	assert.Len(t, report, 1)
}

func TestRunOnceSensorFailure(t *testing.T) {
	h := newHarness(t, nil)
	h.water.err = errors.New("sensor timeout")
	h.s.soil = nil

	h.s.runOnce(context.Background())
	assert.Equal(t, 1, h.water.calls)
	assert.Equal(t, 1, h.weather.calls)
	assert.Equal(t, 0, h.soil.calls)
	assert.Equal(t, 0, h.s.stores.Water.Len())
}

func TestRunOnceSleepCharge(t *testing.T) {
	h := newHarness(t, &millivolts{mv: []int{3300, 3300, 3700}})

	h.s.runOnce(context.Background())
	assert.Equal(t, []time.Duration{time.Hour}, h.rest.slept)

	codes := logged(t, h.s)
	assert.Contains(t, codes, eventlog.SleepCharge)
	assert.Contains(t, codes, eventlog.SleepChargeCheck)
	assert.Contains(t, codes, eventlog.SleepChargeFinished)
	// the wake cycle carries on once charged
	assert.Len(t, h.sleeper.slept, 1)
}

func TestRunOnceFineOffsetWindow(t *testing.T) {
	h := newHarness(t, nil)
	fo := &fineOffset{fixed: fixed[data.FineOffset]{v: data.FineOffset{Timestamp: 1, Packets: 3}}, window: time.Minute}
	h.s.fineOffset = fo
	h.s.devcfg.SetFOEnabled(true)

	h.s.runOnce(context.Background())
	assert.Equal(t, []time.Duration{time.Minute}, h.sleeper.slept)
	assert.Equal(t, 1, fo.calls)
	assert.Equal(t, 0, h.water.calls)

	// a FineOffset only wake logs neither the wake nor the battery
	codes := logged(t, h.s)
	assert.Contains(t, codes, eventlog.Sleep)
	assert.NotContains(t, codes, eventlog.Wakeup)
	assert.NotContains(t, codes, eventlog.Battery)
}

func TestRunOnceFineOffsetDisabled(t *testing.T) {
	h := newHarness(t, nil)
	fo := &fineOffset{window: time.Minute}
	h.s.fineOffset = fo

	h.s.runOnce(context.Background())
	assert.Equal(t, []time.Duration{3 * time.Minute}, h.sleeper.slept)
	assert.Equal(t, 0, fo.calls)
	assert.Equal(t, 1, h.water.calls)
}

func TestCallHomeLightsLED(t *testing.T) {
	h := newHarness(t, nil)
	h.s.led = led.NewLED("status", "")
	var lit bool
	h.sinks.onOpen = func() { lit = h.s.led.IsOn() }

	_, err := h.s.callHome(context.Background())
	require.NoError(t, err)
	assert.True(t, lit)
	assert.False(t, h.s.led.IsOn())
}

func TestCallHome(t *testing.T) {
	h := newHarness(t, nil)
	for i := 0; i < 3; i++ {
		require.NoError(t, h.s.stores.Water.Add(data.Water{Timestamp: uint32(i)}))
	}
	require.NoError(t, h.s.stores.Weather.Add(data.Weather{Timestamp: 9}))

	stats, err := h.s.callHome(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Successful)
	assert.Len(t, h.sinks.water.got, 3)
	assert.Len(t, h.sinks.weather.got, 1)
	assert.Equal(t, 1, h.sinks.closed)

	shipped := codesOf(h.sinks.events.got)
	for _, c := range []eventlog.Code{
		eventlog.CallingHome,
		eventlog.ScheduleCallHomeInt,
		eventlog.ScheduleWaterSensorsInt,
		eventlog.ScheduleWeatherStationInt,
		eventlog.ScheduleSoilMoistureInt,
		eventlog.FsSpace,
		eventlog.SensorDataSubmitted,
		eventlog.DataSubmissionElapsed,
		eventlog.SensorDataSubmissionErrors,
	} {
		assert.Contains(t, shipped, c)
	}
	assert.NotContains(t, shipped, eventlog.LogSubmitted)

	// only what came after the log drain is left
	assert.Equal(t, []eventlog.Code{eventlog.LogSubmitted, eventlog.CallingHomeEnd}, logged(t, h.s))
}

func TestCallHomeAborts(t *testing.T) {
	h := newHarness(t, nil)
	h.sinks.water.err = errors.New("network down")
	for i := 0; i < 3*8; i++ {
		require.NoError(t, h.s.stores.Water.Add(data.Water{Timestamp: uint32(i)}))
	}
	require.NoError(t, h.s.stores.Weather.Add(data.Weather{Timestamp: 9}))

	stats, err := h.s.callHome(context.Background())
	assert.ErrorIs(t, err, telemetry.ErrSubmissionAborted)
	assert.Equal(t, telemetry.FailedRequestThreshold, stats.FailedRequests)
	assert.Empty(t, h.sinks.weather.got)
	assert.Empty(t, h.sinks.events.got)

	codes := logged(t, h.s)
	assert.Contains(t, codes, eventlog.CallHomeSubmissionAborted)
	assert.Equal(t, eventlog.CallingHomeEnd, codes[len(codes)-1])
}

func TestCallHomeNoSink(t *testing.T) {
	h := newHarness(t, nil)
	h.sinks.openErr = errors.New("no carrier")

	_, err := h.s.callHome(context.Background())
	assert.ErrorIs(t, err, h.sinks.openErr)
	codes := logged(t, h.s)
	assert.Contains(t, codes, eventlog.CallHomeSubmissionAborted)
	assert.Equal(t, eventlog.CallingHomeEnd, codes[len(codes)-1])
}

func TestBootRecordsCleanShutdown(t *testing.T) {
	h := newHarness(t, nil)

	h.s.boot()
	assert.False(t, h.s.devcfg.CleanReboot())
	h.s.shutdown()
	assert.True(t, h.s.devcfg.CleanReboot())

	again, err := devconfig.Open(h.s.flash.Fs(), "device.cfg", nil)
	require.NoError(t, err)
	assert.True(t, again.CleanReboot())
	assert.NotContains(t, logged(t, h.s), eventlog.WakeupSelfTestFailed)
}

func TestRunStopsOnCancel(t *testing.T) {
	h := newHarness(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, h.s.run(ctx))
	assert.Empty(t, h.sleeper.slept)
	assert.True(t, h.s.devcfg.CleanReboot())
}
