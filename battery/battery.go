package battery

import (
	"fmt"
	"time"

	"github.com/gr-butler/fieldstation/eventlog"
	"github.com/gr-butler/fieldstation/metrics"
	logger "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/analog"
	"periph.io/x/conn/v3/physic"
)

type Mode uint8

const (
	ModeUnknown Mode = iota
	ModeNormal
	ModeLow
	ModeSleepCharge
)

func (m Mode) String() string {
	switch m {
	case ModeNormal:
		return "normal"
	case ModeLow:
		return "low"
	case ModeSleepCharge:
		return "sleep-charge"
	default:
		return "unknown"
	}
}

type level struct {
	percent   uint8
	millivolt uint16
}

// discharge curve of the 1S Li-ion pack, ascending
var levels = []level{
	{0, 2750}, {1, 3050}, {2, 3230}, {3, 3340}, {4, 3430}, {5, 3490}, {6, 3530}, {7, 3550},
	{8, 3560}, {9, 3570}, {10, 3580}, {13, 3590}, {14, 3600}, {16, 3610}, {18, 3630}, {23, 3640},
	{25, 3650}, {27, 3660}, {31, 3670}, {36, 3680}, {41, 3690}, {43, 3700}, {47, 3710}, {51, 3720},
	{53, 3730}, {55, 3740}, {59, 3750}, {62, 3760}, {63, 3770}, {65, 3780}, {66, 3790}, {67, 3800},
	{68, 3810}, {70, 3820}, {73, 3830}, {74, 3840}, {76, 3850}, {78, 3860}, {79, 3870}, {81, 3880},
	{84, 3890}, {85, 3900}, {86, 3920}, {88, 3930}, {90, 3940}, {91, 3950}, {92, 3960}, {94, 3970},
	{95, 3980}, {96, 3990}, {98, 4000}, {99, 4010}, {100, 4030},
}

// Percent maps a battery voltage to a charge estimate using the nearest
// point on the discharge curve.
func Percent(mv uint16) uint8 {
	if mv >= levels[len(levels)-1].millivolt {
		return 100
	}
	if mv <= levels[0].millivolt {
		return levels[0].percent
	}
	for i := 1; i < len(levels); i++ {
		hi := levels[i]
		if mv > hi.millivolt {
			continue
		}
		if mv == hi.millivolt {
			return hi.percent
		}
		lo := levels[i-1]
		if mv-lo.millivolt < hi.millivolt-mv {
			return lo.percent
		}
		return hi.percent
	}
	return 100
}

type Thresholds struct {
	Low         uint8
	SleepCharge uint8
	Recharged   uint8
}

var DefaultThresholds = Thresholds{Low: 50, SleepCharge: 15, Recharged: 25}

// Classify turns a reading into a power mode. A 0mV reading means no gauge
// is fitted and is treated as Normal.
func (t Thresholds) Classify(mv uint16, pct uint8) Mode {
	switch {
	case pct > t.Low:
		return ModeNormal
	case pct > t.SleepCharge:
		return ModeLow
	case mv == 0 && pct == 0:
		return ModeNormal
	default:
		return ModeSleepCharge
	}
}

// VoltageReader is satisfied by periph analog pins.
type VoltageReader interface {
	Read() (analog.Sample, error)
}

type Sleeper interface {
	Sleep(d time.Duration)
}

type Emitter interface {
	Emit(code eventlog.Code, meta1, meta2 int32) error
}

type Monitor struct {
	adc         VoltageReader
	divider     float64
	th          Thresholds
	forceNormal bool
	checkEvery  time.Duration
}

type Option func(*Monitor)

func WithThresholds(th Thresholds) Option {
	return func(m *Monitor) { m.th = th }
}

func WithDivider(d float64) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.divider = d
		}
	}
}

// ForceNormal ignores the gauge, for bench supplies.
func ForceNormal(on bool) Option {
	return func(m *Monitor) { m.forceNormal = on }
}

func WithCheckInterval(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.checkEvery = d
		}
	}
}

// NewMonitor reads the battery through adc, which may be nil when no gauge
// is fitted.
func NewMonitor(adc VoltageReader, opts ...Option) *Monitor {
	m := &Monitor{
		adc:        adc,
		divider:    1,
		th:         DefaultThresholds,
		checkEvery: time.Hour,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Read returns the battery voltage in mV and its charge estimate.
func (m *Monitor) Read() (uint16, uint8, error) {
	if m.adc == nil {
		return 0, 0, nil
	}
	s, err := m.adc.Read()
	if err != nil {
		return 0, 0, fmt.Errorf("battery: read adc: %w", err)
	}
	mv := float64(s.V) / float64(physic.MilliVolt) * m.divider
	if mv < 0 {
		mv = 0
	}
	if mv > 65535 {
		mv = 65535
	}
	v := uint16(mv)
	pct := Percent(v)
	if v == 0 {
		pct = 0
	}
	metrics.BatteryMillivolts.Set(float64(v))
	metrics.BatteryPercent.Set(float64(pct))
	return v, pct, nil
}

func (m *Monitor) CurrentMode() Mode {
	if m.forceNormal {
		return ModeNormal
	}
	mv, pct, err := m.Read()
	if err != nil {
		logger.Errorf("Battery read failed [%v]", err)
		return ModeUnknown
	}
	mode := m.th.Classify(mv, pct)
	logger.Debugf("Battery [%v]mV [%v]%% mode [%v]", mv, pct, mode)
	return mode
}

// Log emits the current reading to the event log.
func (m *Monitor) Log(log Emitter) {
	mv, pct, err := m.Read()
	if err != nil {
		logger.Errorf("Battery read failed [%v]", err)
		return
	}
	_ = log.Emit(eventlog.Battery, int32(mv), int32(pct))
}

// SleepCharge sleeps in check intervals until the battery has recovered to
// the recharged threshold.
func (m *Monitor) SleepCharge(sleeper Sleeper, log Emitter) {
	mv, pct, _ := m.Read()
	logger.Warnf("Battery low [%v]mV [%v]%%, sleep charging", mv, pct)
	_ = log.Emit(eventlog.SleepCharge, int32(mv), int32(pct))

	for {
		sleeper.Sleep(m.checkEvery)
		var err error
		mv, pct, err = m.Read()
		if err != nil {
			logger.Errorf("Battery read failed during sleep charge [%v]", err)
			continue
		}
		_ = log.Emit(eventlog.SleepChargeCheck, int32(mv), int32(pct))
		// a 0mV reading means the gauge has gone away
		if pct >= m.th.Recharged || mv == 0 {
			break
		}
	}

	logger.Infof("Sleep charge finished [%v]mV [%v]%%", mv, pct)
	_ = log.Emit(eventlog.SleepChargeFinished, int32(mv), int32(pct))
}
