package data

import (
	"errors"

	"github.com/gr-butler/fieldstation/env"
	"github.com/gr-butler/fieldstation/eventlog"
	"github.com/gr-butler/fieldstation/store"
	logger "github.com/sirupsen/logrus"
)

// holder for every store the station writes to

type Stores struct {
	Water      *store.Store[Water]
	Weather    *store.Store[Weather]
	Soil       *store.Store[Soil]
	Lightning  *store.Store[Lightning]
	FineOffset *store.Store[FineOffset]
	SDI12      *store.Store[SDI12Log]
	Log        *store.Store[eventlog.Entry]
}

func NewStores(vol store.Volume, opts ...store.Option) *Stores {
	return &Stores{
		Water:      store.New[Water](vol, env.WaterSensorDir, env.WaterSensorPerFile, opts...),
		Weather:    store.New[Weather](vol, env.WeatherStationDir, env.WeatherStationPerFile, opts...),
		Soil:       store.New[Soil](vol, env.SoilMoistureDir, env.SoilMoisturePerFile, opts...),
		Lightning:  store.New[Lightning](vol, env.LightningDir, env.LightningPerFile, opts...),
		FineOffset: store.New[FineOffset](vol, env.FineOffsetDir, env.FineOffsetPerFile, opts...),
		SDI12:      store.New[SDI12Log](vol, env.SDI12LogDir, env.SDI12LogPerFile, opts...),
		Log:        store.New[eventlog.Entry](vol, eventlog.Dir, eventlog.PerFile, opts...),
	}
}

type flusher interface {
	Commit() error
	ClearAll() error
	Dir() string
}

func (s *Stores) all() []flusher {
	return []flusher{s.Water, s.Weather, s.Soil, s.Lightning, s.FineOffset, s.SDI12, s.Log}
}

// CommitAll commits every store, carrying on past failures.
func (s *Stores) CommitAll() error {
	var errs []error
	for _, st := range s.all() {
		if err := st.Commit(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ClearAll deletes the files and buffers of every store.
func (s *Stores) ClearAll() error {
	var errs []error
	for _, st := range s.all() {
		if err := st.ClearAll(); err != nil {
			logger.Errorf("Could not clear [%v] [%v]", st.Dir(), err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
