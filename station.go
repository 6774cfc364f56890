package main

import (
	"context"
	"time"

	"github.com/gr-butler/fieldstation/battery"
	"github.com/gr-butler/fieldstation/data"
	"github.com/gr-butler/fieldstation/devconfig"
	"github.com/gr-butler/fieldstation/env"
	"github.com/gr-butler/fieldstation/eventlog"
	"github.com/gr-butler/fieldstation/flash"
	"github.com/gr-butler/fieldstation/led"
	"github.com/gr-butler/fieldstation/record"
	"github.com/gr-butler/fieldstation/schedule"
	"github.com/gr-butler/fieldstation/sensors"
	"github.com/gr-butler/fieldstation/store"
	"github.com/jonboulle/clockwork"
	logger "github.com/sirupsen/logrus"
)

type station struct {
	clock   clockwork.Clock
	flash   *flash.Flash
	stores  *data.Stores
	log     *eventlog.Log
	devcfg  *devconfig.Store
	battery *battery.Monitor
	sched   *schedule.Scheduler
	rest    battery.Sleeper // sleep charge waits
	env     *sensors.EnvSensor
	led     *led.LED
	sinks   sinkOpener

	water      sensors.WaterSensors
	weather    sensors.WeatherStation
	soil       sensors.SoilSensor
	fineOffset sensors.FineOffsetReceiver
	lightning  sensors.LightningSensor
}

type measurer[T any] interface {
	Measure(ctx context.Context) (T, error)
}

// collect takes one reading from m into st. A nil m is a sensor that is not
// fitted.
func collect[T record.Payload[T]](ctx context.Context, name string, m measurer[T], st *store.Store[T]) (T, bool) {
	var zero T
	if m == nil {
		logger.Debugf("No [%v] sensor fitted", name)
		return zero, false
	}
	v, err := m.Measure(ctx)
	if err != nil {
		logger.Errorf("Failed to read [%v] [%v]", name, err)
		return zero, false
	}
	if err := st.Add(v); err != nil {
		logger.Errorf("Failed to store [%v] reading [%v]", name, err)
		return v, false
	}
	if err := st.Commit(); err != nil {
		// still buffered, the next commit retries
		logger.Warnf("Failed to commit [%v] [%v]", name, err)
	}
	return v, true
}

// boot records the start and whether the last run shut down cleanly.
func (s *station) boot() {
	clean := int32(0)
	if s.devcfg.CleanReboot() {
		clean = 1
	}
	_ = s.log.Emit(eventlog.Boot, clean, 0)
	s.led.Flicker(env.BootFlickers)
	s.devcfg.SetCleanReboot(false)
	if err := s.devcfg.Save(); err != nil {
		logger.Errorf("Could not save device config [%v]", err)
	}

	if _, _, err := s.sched.Peek(); err != nil {
		logger.Errorf("Wakeup self test failed [%v]", err)
		_ = s.log.Emit(eventlog.WakeupSelfTestFailed, 0, 0)
	}
}

func (s *station) shutdown() {
	s.devcfg.SetCleanReboot(true)
	if err := s.devcfg.Save(); err != nil {
		logger.Errorf("Could not save device config [%v]", err)
	}
	if err := s.stores.CommitAll(); err != nil {
		logger.Errorf("Records left unsaved at shutdown [%v]", err)
	}
	s.flash.Unmount()
}

// run loops wake cycles until ctx is cancelled.
func (s *station) run(ctx context.Context) error {
	s.boot()
	defer s.shutdown()
	for {
		if err := ctx.Err(); err != nil {
			logger.Info("Exiting")
			return nil
		}
		s.runOnce(ctx)
	}
}

// runOnce sleeps to the next wake and handles it.
func (s *station) runOnce(ctx context.Context) {
	if s.battery.CurrentMode() == battery.ModeSleepCharge {
		s.battery.SleepCharge(s.rest, s.log)
	}

	reasons, cause, err := s.sched.SleepToNext()
	if err != nil {
		logger.Warnf("Sleep ended without a due event [%v]", err)
	}
	if ctx.Err() != nil {
		return
	}

	if cause == schedule.WakeInterrupt {
		s.handleLightning(ctx)
		return
	}

	if !reasons.Only(schedule.ReasonFineOffset) {
		s.env.Log(s.log)
		s.battery.Log(s.log)
	}
	s.led.Flash()

	if reasons.Has(schedule.ReasonFineOffset) && s.devcfg.FOEnabled() {
		collect[data.FineOffset](ctx, "fineoffset", s.fineOffset, s.stores.FineOffset)
	}
	if reasons.Has(schedule.ReasonWaterSensors) {
		collect[data.Water](ctx, "water", s.water, s.stores.Water)
	}
	if reasons.Has(schedule.ReasonSoilMoisture) {
		collect[data.Soil](ctx, "soil", s.soil, s.stores.Soil)
	}
	if reasons.Has(schedule.ReasonWeatherStation) {
		collect[data.Weather](ctx, "weather", s.weather, s.stores.Weather)
	}
	if reasons.Has(schedule.ReasonCallHome) {
		if _, err := s.callHome(ctx); err != nil {
			logger.Errorf("Call home failed [%v]", err)
		}
	}
}

// listenWindow is the time to the next FineOffset packet, 0 while the
// receiver is disabled or not fitted.
func (s *station) listenWindow(now time.Time) time.Duration {
	if s.fineOffset == nil || !s.devcfg.FOEnabled() {
		return 0
	}
	return s.fineOffset.NextWindow(now)
}

func (s *station) handleLightning(ctx context.Context) {
	v, ok := collect[data.Lightning](ctx, "lightning", s.lightning, s.stores.Lightning)
	if !ok {
		return
	}
	logger.Infof("Lightning [%v]km energy [%v]", v.Distance, v.Energy)
	_ = s.log.Emit(eventlog.LightningIRQReport, int32(v.Distance), int32(v.Energy))
}
