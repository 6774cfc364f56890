package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gr-butler/fieldstation/env"
	"github.com/spf13/viper"
)

const (
	envPrefix = "FIELDSTATION"

	SinkNone     = "none"
	SinkMQTT     = "mqtt"
	SinkPostgres = "postgres"
	SinkHTTP     = "http"

	// clocks the drift corrector can measure sleeps against
	DriftClockSystem = "system"
	DriftClockNone   = "none"
)

// Config is the station configuration.
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Flash     FlashConfig     `mapstructure:"flash"`
	Device    DeviceConfig    `mapstructure:"device"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"`
	Battery   BatteryConfig   `mapstructure:"battery"`
	Hardware  HardwareConfig  `mapstructure:"hardware"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // text, json
}

type FlashConfig struct {
	Root         string `mapstructure:"root"`
	MountRetries int    `mapstructure:"mount_retries"`
}

type DeviceConfig struct {
	ConfigPath string `mapstructure:"config_path"` // relative to the flash root
}

type ScheduleConfig struct {
	MinutesAsSeconds  bool          `mapstructure:"minutes_as_seconds"`
	MaxSleep          time.Duration `mapstructure:"max_sleep"`
	CorrectionCeiling time.Duration `mapstructure:"correction_ceiling"`
	DriftClock        string        `mapstructure:"drift_clock"` // system, none
}

type BatteryConfig struct {
	ForceNormal        bool          `mapstructure:"force_normal"`
	Divider            float64       `mapstructure:"divider"`
	LowPercent         uint8         `mapstructure:"low_percent"`
	SleepChargePercent uint8         `mapstructure:"sleep_charge_percent"`
	RechargedPercent   uint8         `mapstructure:"recharged_percent"`
	SleepChargeCheck   time.Duration `mapstructure:"sleep_charge_check"`
}

type HardwareConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	I2CBus        string `mapstructure:"i2c_bus"`
	LEDPin        string `mapstructure:"led_pin"`
	IRQPin        string `mapstructure:"irq_pin"`
	EnvSensorAddr uint16 `mapstructure:"env_sensor_addr"`
	BatteryADC    uint16 `mapstructure:"battery_adc_addr"`
}

type TelemetryConfig struct {
	Sink     string         `mapstructure:"sink"` // mqtt, postgres, http, none
	MQTT     MQTTConfig     `mapstructure:"mqtt"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	HTTP     HTTPConfig     `mapstructure:"http"`
}

type MQTTConfig struct {
	Broker      string        `mapstructure:"broker"`
	ClientID    string        `mapstructure:"client_id"`
	TopicPrefix string        `mapstructure:"topic_prefix"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type PostgresConfig struct {
	DSN   string `mapstructure:"dsn"`
	Table string `mapstructure:"table"`
}

type HTTPConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	v := viper.New()
	ApplyDefaults(v)
	return v
}

// ApplyDefaults sets every key's default and binds FIELDSTATION_* env vars.
func ApplyDefaults(v *viper.Viper) {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("flash.root", "/var/lib/fieldstation")
	v.SetDefault("flash.mount_retries", 2)
	v.SetDefault("device.config_path", env.DeviceConfigFile)

	v.SetDefault("schedule.minutes_as_seconds", false)
	v.SetDefault("schedule.max_sleep", env.MaxSleep)
	v.SetDefault("schedule.correction_ceiling", env.MaxSleepCorrection)
	v.SetDefault("schedule.drift_clock", DriftClockSystem)

	v.SetDefault("battery.force_normal", false)
	v.SetDefault("battery.divider", env.BatteryDivider)
	v.SetDefault("battery.low_percent", 50)
	v.SetDefault("battery.sleep_charge_percent", 15)
	v.SetDefault("battery.recharged_percent", 25)
	v.SetDefault("battery.sleep_charge_check", time.Hour)

	v.SetDefault("hardware.enabled", false)
	v.SetDefault("hardware.i2c_bus", "")
	v.SetDefault("hardware.led_pin", env.StatusLed)
	v.SetDefault("hardware.irq_pin", env.LightningIRQ)
	v.SetDefault("hardware.env_sensor_addr", env.EnvSensorAddr)
	v.SetDefault("hardware.battery_adc_addr", env.BatteryADC)

	v.SetDefault("telemetry.sink", SinkNone)
	v.SetDefault("telemetry.mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("telemetry.mqtt.client_id", "fieldstation")
	v.SetDefault("telemetry.mqtt.topic_prefix", "fieldstation")
	v.SetDefault("telemetry.mqtt.timeout", 30*time.Second)
	v.SetDefault("telemetry.postgres.dsn", "")
	v.SetDefault("telemetry.postgres.table", "readings")
	v.SetDefault("telemetry.http.url", "")
	v.SetDefault("telemetry.http.timeout", 30*time.Second)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.address", ":8090")
}

// Load reads the optional config file at path over the defaults.
func Load(path string) (*Config, error) {
	return LoadFrom(NewViper(), path)
}

// LoadFrom reads path into v, which already carries defaults and any bound
// flags. A missing file is only an error when path was given.
func LoadFrom(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("fieldstation")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/fieldstation/")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	c.Telemetry.Sink = strings.ToLower(strings.TrimSpace(c.Telemetry.Sink))
	switch c.Telemetry.Sink {
	case SinkNone, SinkMQTT, SinkHTTP:
	case SinkPostgres:
		if strings.TrimSpace(c.Telemetry.Postgres.DSN) == "" {
			return fmt.Errorf("telemetry.postgres.dsn is required")
		}
	default:
		return fmt.Errorf("telemetry.sink %q is not one of none, mqtt, postgres, http", c.Telemetry.Sink)
	}
	if c.Telemetry.Sink == SinkHTTP && strings.TrimSpace(c.Telemetry.HTTP.URL) == "" {
		return fmt.Errorf("telemetry.http.url is required")
	}
	c.Schedule.DriftClock = strings.ToLower(strings.TrimSpace(c.Schedule.DriftClock))
	switch c.Schedule.DriftClock {
	case DriftClockSystem, DriftClockNone:
	default:
		return fmt.Errorf("schedule.drift_clock %q is not one of system, none", c.Schedule.DriftClock)
	}
	if strings.TrimSpace(c.Flash.Root) == "" {
		return fmt.Errorf("flash.root is required")
	}
	b := c.Battery
	if !(b.SleepChargePercent < b.LowPercent && b.SleepChargePercent <= b.RechargedPercent) {
		return fmt.Errorf("battery thresholds out of order: sleep charge %v low %v recharged %v",
			b.SleepChargePercent, b.LowPercent, b.RechargedPercent)
	}
	if c.Flash.MountRetries < 0 {
		c.Flash.MountRetries = 0
	}
	return nil
}
