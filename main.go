package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gr-butler/fieldstation/battery"
	"github.com/gr-butler/fieldstation/config"
	"github.com/gr-butler/fieldstation/data"
	"github.com/gr-butler/fieldstation/devconfig"
	"github.com/gr-butler/fieldstation/env"
	"github.com/gr-butler/fieldstation/eventlog"
	"github.com/gr-butler/fieldstation/flash"
	"github.com/gr-butler/fieldstation/led"
	"github.com/gr-butler/fieldstation/schedule"
	"github.com/gr-butler/fieldstation/sensors"
	"github.com/gr-butler/fieldstation/store"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	logger "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const version = "GRB-Fieldstation-1.0.0"

func main() {
	args := env.Args{}
	root := &cobra.Command{
		Use:           "fieldstation",
		Short:         "Autonomous environmental monitoring station",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	args.Config = root.PersistentFlags().String("config", "", "Path to configuration file")
	args.LogLevel = root.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	args.LogFormat = root.PersistentFlags().String("log-format", "text", "Log format (text, json)")
	bindFlag(root, "log.level", "log-level")
	bindFlag(root, "log.format", "log-format")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run wake cycles until stopped",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStation(cmd.Context(), args, func(ctx context.Context, s *station, cfg *config.Config) error {
				stopMetrics := serveMetrics(cfg.Metrics)
				defer stopMetrics()
				if *args.Once {
					s.boot()
					defer s.shutdown()
					s.runOnce(ctx)
					return nil
				}
				return s.run(ctx)
			})
		},
	}
	args.Once = runCmd.Flags().Bool("once", false, "handle a single wake then exit")

	drainCmd := &cobra.Command{
		Use:   "drain",
		Short: "Call home once and submit every store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStation(cmd.Context(), args, func(ctx context.Context, s *station, _ *config.Config) error {
				stats, err := s.callHome(ctx)
				fmt.Fprintf(cmd.OutOrStdout(), "%v\n", stats)
				return err
			})
		},
	}

	lsCmd := &cobra.Command{
		Use:   "ls",
		Short: "List the files on the flash volume",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStation(cmd.Context(), args, func(_ context.Context, s *station, _ *config.Config) error {
				files, err := s.flash.Ls()
				if err != nil {
					return err
				}
				var used int64
				for _, f := range files {
					fmt.Fprintf(cmd.OutOrStdout(), "%8d  %v\n", f.Size, f.Path)
					used += f.Size
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%8d  total\n", used)
				return nil
			})
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every stored record",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStation(cmd.Context(), args, func(_ context.Context, s *station, _ *config.Config) error {
				return s.stores.ClearAll()
			})
		},
	}

	scheduleCmd := &cobra.Command{
		Use:   "schedule",
		Short: "Print the active wake schedule and the next wakeup",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStation(cmd.Context(), args, func(_ context.Context, s *station, _ *config.Config) error {
				fmt.Fprintf(cmd.OutOrStdout(), "schedule: %v\n", s.sched.Active())
				d, reasons, err := s.sched.Peek()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "next: %v in %v\n", reasons, d)
				return nil
			})
		},
	}

	root.AddCommand(runCmd, drainCmd, lsCmd, clearCmd, scheduleCmd)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		logger.Errorf("%v", err)
		stop()
		os.Exit(1)
	}
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func setupLogging(cfg config.LogConfig) {
	level, err := logger.ParseLevel(cfg.Level)
	if err != nil {
		logger.Warnf("Unknown log level [%v], using info", cfg.Level)
		level = logger.InfoLevel
	}
	logger.SetLevel(level)
	if cfg.Format == "json" {
		logger.SetFormatter(&logger.JSONFormatter{})
	} else {
		logger.SetFormatter(&logger.TextFormatter{FullTimestamp: true})
	}
}

// withStation loads the config, assembles the station and hands it to f.
func withStation(ctx context.Context, args env.Args, f func(ctx context.Context, s *station, cfg *config.Config) error) error {
	v := viper.GetViper()
	config.ApplyDefaults(v)
	cfg, err := config.LoadFrom(v, *args.Config)
	if err != nil {
		return err
	}
	setupLogging(cfg.Log)
	logger.Infof("Starting field station [%v]", version)

	s, closer, err := build(cfg)
	if err != nil {
		return err
	}
	defer closer()
	return f(ctx, s, cfg)
}

func build(cfg *config.Config) (*station, func(), error) {
	clock := clockwork.NewRealClock()
	fl := flash.NewOS(cfg.Flash.Root, cfg.Flash.MountRetries)
	stores := data.NewStores(fl, store.WithClock(clock))
	log := eventlog.New(stores.Log, clock)
	fl.SetEmitter(log)
	if err := fl.Mount(); err != nil {
		logger.Errorf("Flash unavailable, records will stay buffered [%v]", err)
	}

	devcfg, err := devconfig.Open(fl.Fs(), cfg.Device.ConfigPath, log)
	if err != nil {
		logger.Errorf("Device config [%v]", err)
	}

	var (
		hw      *sensors.Sensors
		adc     battery.VoltageReader
		sleeper schedule.Sleeper = schedule.ClockSleeper{Clock: clock}
		status  *led.LED
	)
	if cfg.Hardware.Enabled {
		hw, err = sensors.Open(sensors.Config{
			Bus:       cfg.Hardware.I2CBus,
			IRQPin:    cfg.Hardware.IRQPin,
			EnvAddr:   cfg.Hardware.EnvSensorAddr,
			BatteryAt: cfg.Hardware.BatteryADC,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("hardware: %w", err)
		}
		if hw.Battery != nil {
			adc = hw.Battery
		}
		if hw.IRQ != nil {
			sleeper = sensors.IRQSleeper{Pin: hw.IRQ}
		}
		status = led.NewLED("status", cfg.Hardware.LEDPin)
	}

	bat := battery.NewMonitor(adc,
		battery.WithThresholds(battery.Thresholds{
			Low:         cfg.Battery.LowPercent,
			SleepCharge: cfg.Battery.SleepChargePercent,
			Recharged:   cfg.Battery.RechargedPercent,
		}),
		battery.WithDivider(cfg.Battery.Divider),
		battery.ForceNormal(cfg.Battery.ForceNormal),
		battery.WithCheckInterval(cfg.Battery.SleepChargeCheck),
	)

	s := &station{
		clock:   clock,
		flash:   fl,
		stores:  stores,
		log:     log,
		devcfg:  devcfg,
		battery: bat,
		rest:    clock,
		led:     status,
		sinks:   openSinks(cfg.Telemetry),
	}
	if hw != nil {
		s.env = hw.Env
	}
	s.sched = schedule.NewScheduler(clock, sleeper, bat, devcfg, log,
		schedule.WithIndependentClock(driftClock(cfg.Schedule.DriftClock), cfg.Schedule.CorrectionCeiling),
		schedule.WithMaxSleep(cfg.Schedule.MaxSleep),
		schedule.WithMinutesAsSeconds(cfg.Schedule.MinutesAsSeconds),
		schedule.WithExternal(s.listenWindow),
	)
	closer := func() {
		if err := hw.Close(); err != nil {
			logger.Errorf("Closing I²C bus [%v]", err)
		}
	}
	return s, closer, nil
}

// driftClock is the clock sleeps are measured against. The host wall clock
// only catches sleeps that ended early, not drift of the clock itself.
func driftClock(name string) clockwork.Clock {
	if name == config.DriftClockNone {
		return nil
	}
	return clockwork.NewRealClock()
}

// serveMetrics exposes the prometheus collectors until the returned func is
// called.
func serveMetrics(cfg config.MetricsConfig) func() {
	if !cfg.Enabled {
		return func() {}
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: cfg.Address, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		logger.Infof("Starting metrics on [%v]", cfg.Address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("Metrics server failed [%v]", err)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
