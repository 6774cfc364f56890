package sensors

import (
	"math"

	"github.com/gr-butler/fieldstation/eventlog"
	logger "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/bmxx80"
	"periph.io/x/devices/v3/mcp9808"
)

const (
	MCP9808_I2C = 0x18
)

type senser interface {
	Sense(e *physic.Env) error
}

type Emitter interface {
	Emit(code eventlog.Code, meta1, meta2 int32) error
}

// EnvReading is the enclosure climate in the units the event log carries:
// centi-degrees, centi-%RH and pascal.
type EnvReading struct {
	CentiCelsius int32
	CentiRH      int32
	Pascal       int32
}

// EnvSensor reads the climate inside the enclosure. The BME280 gives
// pressure and humidity, and temperature unless an MCP9808 is fitted.
type EnvSensor struct {
	PH   senser
	Temp senser
}

func NewEnvSensor(bus i2c.Bus, addr uint16) (*EnvSensor, error) {
	e := &EnvSensor{}
	logger.Infof("Starting BME280 reader [%x]", addr)
	bme, err := bmxx80.NewI2C(bus, addr, &bmxx80.DefaultOpts)
	if err != nil {
		return nil, err
	}
	e.PH = bme

	t, err := mcp9808.New(bus, &mcp9808.Opts{Addr: MCP9808_I2C, Res: mcp9808.High})
	if err != nil {
		logger.Debugf("No MCP9808 [%v], using BME280 temperature", err)
	} else {
		e.Temp = t
	}
	return e, nil
}

func (e *EnvSensor) Read() (EnvReading, error) {
	em := physic.Env{}
	if err := e.PH.Sense(&em); err != nil {
		logger.Errorf("BME280 read failed [%v]", err)
		return EnvReading{}, err
	}
	if e.Temp != nil {
		hiT := physic.Env{}
		if err := e.Temp.Sense(&hiT); err != nil {
			logger.Errorf("MCP9808 read failed [%v]", err)
		} else {
			em.Temperature = hiT.Temperature
		}
	}
	return EnvReading{
		CentiCelsius: int32(math.Round(em.Temperature.Celsius() * 100)),
		CentiRH:      int32(math.Round(float64(em.Humidity) * 100 / float64(physic.PercentRH))),
		Pascal:       int32(math.Round(float64(em.Pressure) / float64(physic.Pascal))),
	}, nil
}

// Log records the enclosure climate as INT_ENV_SENSOR1 and 2.
func (e *EnvSensor) Log(log Emitter) {
	if e == nil || e.PH == nil {
		logger.Debug("No internal environment sensor")
		return
	}
	r, err := e.Read()
	if err != nil {
		return
	}
	logger.Infof("Enclosure [%v]c°C [%v]c%%RH [%v]Pa", r.CentiCelsius, r.CentiRH, r.Pascal)
	_ = log.Emit(eventlog.IntEnvSensor1, r.CentiCelsius, r.CentiRH)
	_ = log.Emit(eventlog.IntEnvSensor2, r.Pascal, 0)
}
