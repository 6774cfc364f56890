package env

import "time"

const (
	GPIO04 = "GPIO04"
	GPIO17 = "GPIO17" // lightning IRQ
	GPIO20 = "GPIO20" // status LED
	GPIO27 = "GPIO27"

	LightningIRQ = GPIO17
	StatusLed    = GPIO20

	EnvSensorAddr uint16 = 0x76
	BatteryADC    uint16 = 0x48

	// store directories on the flash volume and records per file; a file is
	// also the batch size of one submit request
	WaterSensorDir        = "was"
	WaterSensorPerFile    = 8
	WeatherStationDir     = "wes"
	WeatherStationPerFile = 4
	SoilMoistureDir       = "sm"
	SoilMoisturePerFile   = 8
	LightningDir          = "ls"
	LightningPerFile      = 8
	FineOffsetDir         = "fo"
	FineOffsetPerFile     = 5
	SDI12LogDir           = "sdi12"
	SDI12LogPerFile       = 8

	DeviceConfigFile = "device.cfg"

	MaxSleep           = time.Hour * 24
	MaxSleepCorrection = time.Minute * 5

	// timestamps outside this window come from an unset clock
	TimestampValidFrom = 1567157191
	TimestampValidTo   = 2072091600

	LEDFlashDuration = time.Millisecond * 50
	BootFlickers     = 5 // LED pulses after a restart

	// the battery is halved before the ADC
	BatteryDivider = 2.0
)

var Disabled = false
var Enabled = true
