package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRunRecordsOutcome(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	require.NoError(t, m.Track("snapshot").End(nil))
	boom := errors.New("boom")
	require.ErrorIs(t, m.Track("snapshot").End(boom), boom)

	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("snapshot", "success")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("snapshot", "failure")))
	require.Positive(t, testutil.ToFloat64(m.lastSuccess.WithLabelValues("snapshot")))
	require.Equal(t, 1, testutil.CollectAndCount(m.duration))
}

func TestGaugesReplacePreviousValue(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.SetLowStock(7, 3)
	m.SetLowStock(7, 1)
	m.SetInventoryValue(7, 1250.5)

	require.Equal(t, 1.0, testutil.ToFloat64(m.lowStock.WithLabelValues("7")))
	require.Equal(t, 1250.5, testutil.ToFloat64(m.stockValue.WithLabelValues("7")))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.SetLowStock(7, 1)
	m.SetInventoryValue(7, 1)
	require.NoError(t, m.Track("x").End(nil))
}
