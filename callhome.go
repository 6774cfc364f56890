package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gr-butler/fieldstation/config"
	"github.com/gr-butler/fieldstation/data"
	"github.com/gr-butler/fieldstation/eventlog"
	"github.com/gr-butler/fieldstation/record"
	"github.com/gr-butler/fieldstation/schedule"
	"github.com/gr-butler/fieldstation/store"
	"github.com/gr-butler/fieldstation/telemetry"
	logger "github.com/sirupsen/logrus"
)

// sinkSet holds one submitter per category for the length of a call home.
type sinkSet struct {
	water      telemetry.Submitter[data.Water]
	weather    telemetry.Submitter[data.Weather]
	soil       telemetry.Submitter[data.Soil]
	lightning  telemetry.Submitter[data.Lightning]
	fineOffset telemetry.Submitter[data.FineOffset]
	sdi12      telemetry.Submitter[data.SDI12Log]
	events     telemetry.Submitter[eventlog.Entry]
	close      func()
}

type sinkOpener func(ctx context.Context) (*sinkSet, error)

func submitter[T any](cfg config.TelemetryConfig, client mqtt.Client, db *sql.DB) telemetry.Submitter[T] {
	switch cfg.Sink {
	case config.SinkMQTT:
		return telemetry.NewMQTTSubmitter[T](client, cfg.MQTT.TopicPrefix, cfg.MQTT.Timeout)
	case config.SinkPostgres:
		return telemetry.NewPostgresSubmitter[T](db, cfg.Postgres.Table)
	case config.SinkHTTP:
		return telemetry.NewFormSubmitter[T](cfg.HTTP.URL, cfg.HTTP.Timeout)
	default:
		return telemetry.Discard[T]{}
	}
}

// openSinks connects to the configured backend. The connection only lives
// for one call home, as the modem link would.
func openSinks(cfg config.TelemetryConfig) sinkOpener {
	return func(ctx context.Context) (*sinkSet, error) {
		var (
			client mqtt.Client
			db     *sql.DB
			err    error
		)
		closer := func() {}
		switch cfg.Sink {
		case config.SinkMQTT:
			client, err = telemetry.ConnectMQTT(telemetry.MQTTConfig{
				Broker:      cfg.MQTT.Broker,
				ClientID:    cfg.MQTT.ClientID,
				TopicPrefix: cfg.MQTT.TopicPrefix,
				Timeout:     cfg.MQTT.Timeout,
			})
			if err != nil {
				return nil, err
			}
			closer = func() { client.Disconnect(250) }
		case config.SinkPostgres:
			db, err = telemetry.OpenPostgres(ctx, cfg.Postgres.DSN)
			if err != nil {
				return nil, err
			}
			closer = func() { _ = db.Close() }
		}
		return &sinkSet{
			water:      submitter[data.Water](cfg, client, db),
			weather:    submitter[data.Weather](cfg, client, db),
			soil:       submitter[data.Soil](cfg, client, db),
			lightning:  submitter[data.Lightning](cfg, client, db),
			fineOffset: submitter[data.FineOffset](cfg, client, db),
			sdi12:      submitter[data.SDI12Log](cfg, client, db),
			events:     submitter[eventlog.Entry](cfg, client, db),
			close:      closer,
		}, nil
	}
}

var intervalCodes = map[schedule.Reason]eventlog.Code{
	schedule.ReasonCallHome:       eventlog.ScheduleCallHomeInt,
	schedule.ReasonWaterSensors:   eventlog.ScheduleWaterSensorsInt,
	schedule.ReasonWeatherStation: eventlog.ScheduleWeatherStationInt,
	schedule.ReasonFineOffset:     eventlog.ScheduleFOInt,
	schedule.ReasonSoilMoisture:   eventlog.ScheduleSoilMoistureInt,
}

func drain[T record.Payload[T]](ctx context.Context, st *store.Store[T], category string, sub telemetry.Submitter[T]) func() (telemetry.Stats, error) {
	return func() (telemetry.Stats, error) {
		return telemetry.Drain[T](ctx, st, category, sub)
	}
}

// callHome ships every store to the sink, the event log last.
func (s *station) callHome(ctx context.Context) (telemetry.Stats, error) {
	total := telemetry.Stats{}
	start := s.clock.Now()
	logger.Info("Calling home")
	// lit for the length of the call
	s.led.On()
	defer s.led.Off()
	_ = s.log.Emit(eventlog.CallingHome, 0, 0)
	defer func() { _ = s.log.Emit(eventlog.CallingHomeEnd, 0, 0) }()

	for _, e := range s.sched.Active() {
		if code, ok := intervalCodes[e.Reason]; ok {
			_ = s.log.Emit(code, int32(e.IntervalMinutes), 0)
		}
	}
	if used, err := s.flash.Usage(); err != nil {
		logger.Errorf("Could not read flash usage [%v]", err)
	} else {
		_ = s.log.Emit(eventlog.FsSpace, int32(used), 0)
	}

	sinks, err := s.sinks(ctx)
	if err != nil {
		_ = s.log.Emit(eventlog.CallHomeSubmissionAborted, 0, 0)
		return total, fmt.Errorf("open telemetry sink: %w", err)
	}
	defer sinks.close()

	drains := []func() (telemetry.Stats, error){
		drain(ctx, s.stores.Water, "water", sinks.water),
		drain(ctx, s.stores.Weather, "weather", sinks.weather),
		drain(ctx, s.stores.Soil, "soil", sinks.soil),
		drain(ctx, s.stores.Lightning, "lightning", sinks.lightning),
		drain(ctx, s.stores.FineOffset, "fineoffset", sinks.fineOffset),
		drain(ctx, s.stores.SDI12, "sdi12", sinks.sdi12),
	}
	var failed error
	for _, d := range drains {
		st, err := d()
		total.Add(st)
		if err == nil {
			continue
		}
		if errors.Is(err, telemetry.ErrSubmissionAborted) || errors.Is(err, context.Canceled) {
			failed = err
			break
		}
		logger.Errorf("Drain failed [%v]", err)
	}

	elapsed := s.clock.Since(start)
	_ = s.log.Emit(eventlog.SensorDataSubmitted, int32(total.Successful), int32(total.Submitted))
	_ = s.log.Emit(eventlog.DataSubmissionElapsed, int32(elapsed.Milliseconds()), 0)
	_ = s.log.Emit(eventlog.SensorDataSubmissionErrors, int32(total.FailedRequests), int32(total.CRCFailures))

	if failed == nil {
		s.log.SetEnabled(false)
		logStats, err := telemetry.Drain[eventlog.Entry](ctx, s.log.Store(), "log", sinks.events)
		s.log.SetEnabled(true)
		if err != nil {
			failed = err
		}
		_ = s.log.Emit(eventlog.LogSubmitted, int32(logStats.Successful), int32(logStats.CRCFailures))
	}

	if failed != nil {
		logger.Errorf("Call home aborted [%v]", failed)
		_ = s.log.Emit(eventlog.CallHomeSubmissionAborted, int32(total.FailedRequests), 0)
		return total, failed
	}
	logger.Infof("Call home done [%v]", total)
	return total, nil
}
