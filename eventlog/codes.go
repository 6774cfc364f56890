package eventlog

import "fmt"

// Code identifies an event in the on-flash log. Values are shared with the
// server side decoder and must not be renumbered.
type Code uint32

const (
	Boot                       Code = 1
	Restart                    Code = 2
	CallingHome                Code = 3
	TimeSync                   Code = 4
	SensorDataSubmitted        Code = 5
	SensorDataSubmissionErrors Code = 6
	LogSubmitted               Code = 7
	DeviceConfigCRCErrors      Code = 11
	Sleep                      Code = 12
	Wakeup                     Code = 13
	Battery                    Code = 15
	IntEnvSensor1              Code = 16
	IntEnvSensor2              Code = 17
	FsSpace                    Code = 47
	SleepCharge                Code = 50
	SleepChargeFinished        Code = 51
	SpiffsFormatted            Code = 54
	SpiffsFormatFailed         Code = 55
	WakeupSelfTestFailed       Code = 65
	ScheduleInvalidUsingDef    Code = 68
	BatteryModeUnknown         Code = 69
	CallingHomeEnd             Code = 71
	UsingDefaultDeviceConfig   Code = 76
	SleepChargeCheck           Code = 77
	DataSubmissionElapsed      Code = 91
	LightningIRQReport         Code = 92
	CallHomeSubmissionAborted  Code = 93
	WakeupCorrection           Code = 201
	WakeupEventsMissed         Code = 202
	ScheduleCallHomeInt        Code = 204
	ScheduleWaterSensorsInt    Code = 205
	ScheduleWeatherStationInt  Code = 206
	ScheduleFOInt              Code = 207
	ScheduleSoilMoistureInt    Code = 208
)

var codeNames = map[Code]string{
	Boot:                       "BOOT",
	Restart:                    "RESTART",
	CallingHome:                "CALLING_HOME",
	TimeSync:                   "TIME_SYNC",
	SensorDataSubmitted:        "SENSOR_DATA_SUBMITTED",
	SensorDataSubmissionErrors: "SENSOR_DATA_SUBMISSION_ERRORS",
	LogSubmitted:               "LOG_SUBMITTED",
	DeviceConfigCRCErrors:      "DEVICE_CONFIG_DATA_CRC_ERRORS",
	Sleep:                      "SLEEP",
	Wakeup:                     "WAKEUP",
	Battery:                    "BATTERY",
	IntEnvSensor1:              "INT_ENV_SENSOR1",
	IntEnvSensor2:              "INT_ENV_SENSOR2",
	FsSpace:                    "FS_SPACE",
	SleepCharge:                "SLEEP_CHARGE",
	SleepChargeFinished:        "SLEEP_CHARGE_FINISHED",
	SpiffsFormatted:            "SPIFFS_FORMATTED",
	SpiffsFormatFailed:         "SPIFFS_FORMAT_FAILED",
	WakeupSelfTestFailed:       "WAKEUP_SELF_TEST_FAILED",
	ScheduleInvalidUsingDef:    "SCHEDULE_INVALID_USING_DEFAULT",
	BatteryModeUnknown:         "BATTERY_MODE_UNKNOWN",
	CallingHomeEnd:             "CALLING_HOME_END",
	UsingDefaultDeviceConfig:   "USING_DEFAULT_DEVICE_CONFIG",
	SleepChargeCheck:           "SLEEP_CHARGE_CHECK",
	DataSubmissionElapsed:      "DATA_SUBMISSION_ELAPSED",
	LightningIRQReport:         "LIGHTNING_IRQ_REPORT",
	CallHomeSubmissionAborted:  "CALL_HOME_SUBMISSION_ABORTED",
	WakeupCorrection:           "WAKEUP_CORRECTION",
	WakeupEventsMissed:         "WAKEUP_EVENTS_MISSED",
	ScheduleCallHomeInt:        "SCHEDULE_CALL_HOME_INT",
	ScheduleWaterSensorsInt:    "SCHEDULE_WATER_SENSORS_INT",
	ScheduleWeatherStationInt:  "SCHEDULE_WEATHER_STATION_INT",
	ScheduleFOInt:              "SCHEDULE_FO_INT",
	ScheduleSoilMoistureInt:    "SCHEDULE_SOIL_MOISTURE_INT",
}

func (c Code) String() string {
	if n, ok := codeNames[c]; ok {
		return n
	}
	return fmt.Sprintf("CODE_%d", uint32(c))
}
