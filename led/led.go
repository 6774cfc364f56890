package led

import (
	"sync"
	"time"

	"github.com/gr-butler/fieldstation/env"
	logger "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
)

type outPin interface {
	Out(l gpio.Level) error
}

type LED struct {
	Name    string
	lock    sync.Mutex
	on      bool
	hold    time.Duration
	gpioPin outPin
}

// NewLED finds the pin by name. A missing pin gives an LED that does nothing.
func NewLED(name string, GPIOPin string) *LED {
	logger.Infof("Creating new LED on pin [%v] called [%v]", GPIOPin, name)
	l := &LED{Name: name, hold: env.LEDFlashDuration}
	p := gpioreg.ByName(GPIOPin)
	if p == nil {
		logger.Errorf("Failed to find %v pin", GPIOPin)
		return l
	}
	l.gpioPin = p
	_ = l.gpioPin.Out(gpio.Low)
	return l
}

func newWithPin(name string, pin outPin, hold time.Duration) *LED {
	return &LED{Name: name, gpioPin: pin, hold: hold}
}

func (l *LED) On() {
	if l == nil {
		return
	}
	l.lock.Lock()
	defer l.lock.Unlock()
	l.on = true
	if l.gpioPin != nil {
		_ = l.gpioPin.Out(gpio.High)
	}
}

func (l *LED) Off() {
	if l == nil {
		return
	}
	l.lock.Lock()
	defer l.lock.Unlock()
	l.on = false
	if l.gpioPin != nil {
		_ = l.gpioPin.Out(gpio.Low)
	}
}

// Flash inverts the LED briefly. A flash already in progress swallows the
// request.
func (l *LED) Flash() {
	if l == nil || l.gpioPin == nil {
		return
	}
	if !l.lock.TryLock() {
		logger.Debugf("LED [%v] busy", l.Name)
		return
	}
	defer l.lock.Unlock()
	if !l.on {
		_ = l.gpioPin.Out(gpio.High)
		time.Sleep(l.hold)
		_ = l.gpioPin.Out(gpio.Low)
	} else {
		// 'off' flash
		_ = l.gpioPin.Out(gpio.Low)
		time.Sleep(l.hold)
		_ = l.gpioPin.Out(gpio.High)
	}
}

func (l *LED) Flicker(pulses int) {
	if l == nil || l.gpioPin == nil {
		return
	}
	l.lock.Lock()
	defer l.lock.Unlock()
	if pulses < 1 || pulses > 100 {
		// reject daft or excessive requests
		return
	}
	for i := 0; i < pulses; i++ {
		_ = l.gpioPin.Out(gpio.High)
		time.Sleep(l.hold)
		_ = l.gpioPin.Out(gpio.Low)
		time.Sleep(l.hold)
	}
}

func (l *LED) IsOn() bool {
	if l == nil {
		return false
	}
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.on
}
