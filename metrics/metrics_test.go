package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistered(t *testing.T) {
	StoreRecordsCommitted.WithLabelValues("metrics_test").Add(2)
	TelemetrySubmitted.WithLabelValues("metrics_test").Inc()

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["store_records_committed_total"])
	assert.True(t, names["telemetry_records_submitted_total"])
	assert.True(t, names["battery_millivolts"])
}

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(Wakeups)
	Wakeups.Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(Wakeups))

	BatteryPercent.Set(42)
	assert.Equal(t, float64(42), testutil.ToFloat64(BatteryPercent))

	StoreRecordsBuffered.WithLabelValues("metrics_test").Set(3)
	assert.Equal(t, float64(3), testutil.ToFloat64(StoreRecordsBuffered.WithLabelValues("metrics_test")))
}
