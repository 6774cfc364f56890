package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	logger "github.com/sirupsen/logrus"
)

var StoreRecordsCommitted = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "store_records_committed_total",
		Help: "Records written from the RAM buffer to flash",
	},
	[]string{"store"},
)

var StoreCommitFailures = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "store_commit_failures_total",
		Help: "Commits that stopped before the buffer was drained",
	},
	[]string{"store"},
)

var StoreRecordsBuffered = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "store_records_buffered",
		Help: "Records held in the RAM buffer waiting for a commit",
	},
	[]string{"store"},
)

var TelemetrySubmitted = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "telemetry_records_submitted_total",
		Help: "Records accepted by the telemetry sink",
	},
	[]string{"category"},
)

var TelemetryCRCFailures = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "telemetry_crc_failures_total",
		Help: "Records skipped during a drain because the checksum did not match",
	},
	[]string{"category"},
)

var BatteryMillivolts = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "battery_millivolts",
		Help: "Battery voltage mV",
	},
)

var BatteryPercent = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "battery_percent",
		Help: "Battery charge estimate %",
	},
)

var NextWakeupSeconds = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "next_wakeup_seconds",
		Help: "Length of the sleep most recently scheduled",
	},
)

var Wakeups = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "wakeups_total",
		Help: "Number of wakeups from sleep",
	},
)

var DriftCorrections = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "drift_corrections_total",
		Help: "Supplementary sleeps issued to make up for an undersleep",
	},
)

func init() {
	logger.Debugf("%v: Initialize prometheus...", time.Now().Format(time.RFC822))
	prometheus.MustRegister(
		StoreRecordsCommitted,
		StoreCommitFailures,
		StoreRecordsBuffered,
		TelemetrySubmitted,
		TelemetryCRCFailures,
		BatteryMillivolts,
		BatteryPercent,
		NextWakeupSeconds,
		Wakeups,
		DriftCorrections)
}
