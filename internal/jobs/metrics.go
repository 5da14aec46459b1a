// Package jobmetrics instruments the asynq task handlers.
package jobmetrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes Prometheus collectors for background jobs.
type Metrics struct {
	runs        *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	lastSuccess *prometheus.GaugeVec
	lowStock    *prometheus.GaugeVec
	stockValue  *prometheus.GaugeVec
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the job collectors. A nil registerer shares one set of
// collectors on the default Prometheus registry.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultOnce.Do(func() {
			defaultMetrics = register(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return register(registerer)
}

func register(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "stockroom_job_runs_total",
			Help: "Job executions by task type and outcome.",
		}, []string{"job", "outcome"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stockroom_job_duration_seconds",
			Help:    "Job execution time.",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"job"}),
		lastSuccess: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "stockroom_job_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run per task type.",
		}, []string{"job"}),
		lowStock: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "stockroom_low_stock_products",
			Help: "Products at or below their reorder level as of the last scan.",
		}, []string{"account"}),
		stockValue: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "stockroom_inventory_value",
			Help: "Stock valuation recorded by the last snapshot.",
		}, []string{"account"}),
	}
}

// Run measures one job execution.
type Run struct {
	metrics *Metrics
	job     string
	start   time.Time
}

// Track starts measuring a run of job.
func (m *Metrics) Track(job string) *Run {
	return &Run{metrics: m, job: job, start: time.Now()}
}

// End records the outcome of the run and returns err unchanged.
func (r *Run) End(err error) error {
	if r == nil || r.metrics == nil {
		return err
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	} else {
		r.metrics.lastSuccess.WithLabelValues(r.job).SetToCurrentTime()
	}
	r.metrics.runs.WithLabelValues(r.job, outcome).Inc()
	r.metrics.duration.WithLabelValues(r.job).Observe(time.Since(r.start).Seconds())
	return err
}

// SetLowStock publishes the number of low-stock products found for an account.
func (m *Metrics) SetLowStock(accountID int64, count int) {
	if m == nil {
		return
	}
	m.lowStock.WithLabelValues(strconv.FormatInt(accountID, 10)).Set(float64(count))
}

// SetInventoryValue publishes the latest valuation snapshot of an account.
func (m *Metrics) SetInventoryValue(accountID int64, value float64) {
	if m == nil {
		return
	}
	m.stockValue.WithLabelValues(strconv.FormatInt(accountID, 10)).Set(value)
}
