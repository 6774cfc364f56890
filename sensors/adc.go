package sensors

import (
	logger "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/analog"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/ads1x15"
)

// BatteryADC is channel 0 of an ADS1115 wired to the battery divider.
type BatteryADC struct {
	pin ads1x15.PinADC
}

func NewBatteryADC(bus i2c.Bus, addr uint16) (*BatteryADC, error) {
	opts := ads1x15.DefaultOpts
	if addr != 0 {
		opts.I2cAddress = addr
	}
	logger.Infof("Starting battery ADC I2C [%x]", opts.I2cAddress)
	adc, err := ads1x15.NewADS1115(bus, &opts)
	if err != nil {
		return nil, err
	}
	pin, err := adc.PinForChannel(ads1x15.Channel0, 5*physic.Volt, 1*physic.Hertz, ads1x15.SaveEnergy)
	if err != nil {
		return nil, err
	}
	return &BatteryADC{pin: pin}, nil
}

func (b *BatteryADC) Read() (analog.Sample, error) {
	return b.pin.Read()
}
