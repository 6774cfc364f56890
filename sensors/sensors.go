package sensors

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gr-butler/fieldstation/data"
	logger "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

/*
 * Sensors owns the I2C bus and the pins the station reads directly. The field
 * instruments (water, weather, soil, FineOffset, lightning) are collaborators
 * behind the interfaces below; a nil collaborator is a sensor that is not
 * fitted.
 */

var (
	ErrNoPin = errors.New("sensors: pin not found")
)

type WaterSensors interface {
	Measure(ctx context.Context) (data.Water, error)
}

type WeatherStation interface {
	Measure(ctx context.Context) (data.Weather, error)
}

type SoilSensor interface {
	Measure(ctx context.Context) (data.Soil, error)
}

// FineOffsetReceiver listens for the FineOffset station's radio packets.
// NextWindow is the time from now until the next packet is due.
type FineOffsetReceiver interface {
	Measure(ctx context.Context) (data.FineOffset, error)
	NextWindow(now time.Time) time.Duration
}

type LightningSensor interface {
	Measure(ctx context.Context) (data.Lightning, error)
}

type Config struct {
	Bus       string
	IRQPin    string
	EnvAddr   uint16
	BatteryAt uint16
}

type Sensors struct {
	Bus     i2c.BusCloser
	Env     *EnvSensor
	Battery *BatteryADC
	IRQ     gpio.PinIO
}

// Open initialises the host drivers and the on-board devices. A device that
// does not answer is left nil and logged, only the bus itself is fatal.
func Open(cfg Config) (*Sensors, error) {
	if _, err := host.Init(); err != nil {
		logger.Errorf("Failed to init host [%v]", err)
		return nil, err
	}

	bus, err := i2creg.Open(cfg.Bus)
	if err != nil {
		logger.Errorf("Failed to open I²C [%v]", err)
		return nil, fmt.Errorf("open i2c %q: %w", cfg.Bus, err)
	}
	s := &Sensors{Bus: bus}

	if env, err := NewEnvSensor(bus, cfg.EnvAddr); err != nil {
		logger.Errorf("Internal environment sensor unavailable [%v]", err)
	} else {
		s.Env = env
	}

	if adc, err := NewBatteryADC(bus, cfg.BatteryAt); err != nil {
		logger.Errorf("Battery ADC unavailable [%v]", err)
	} else {
		s.Battery = adc
	}

	if cfg.IRQPin != "" {
		p := gpioreg.ByName(cfg.IRQPin)
		if p == nil {
			logger.Errorf("Failed to find %v - IRQ pin", cfg.IRQPin)
		} else if err := p.In(gpio.PullDown, gpio.RisingEdge); err != nil {
			logger.Errorf("IRQ pin setup failed [%v]", err)
		} else {
			logger.Infof("%s: %s", p, p.Function())
			s.IRQ = p
		}
	}

	logger.Info("Sensors initialized.")
	return s, nil
}

func (s *Sensors) Close() error {
	if s == nil || s.Bus == nil {
		return nil
	}
	if s.IRQ != nil {
		_ = s.IRQ.Halt()
	}
	return s.Bus.Close()
}
