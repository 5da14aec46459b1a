package observability

import "github.com/prometheus/client_golang/prometheus"

// LedgerMetrics counts ledger movements applied and rejected.
type LedgerMetrics struct {
	applied  *prometheus.CounterVec
	rejected *prometheus.CounterVec
}

// NewLedgerMetrics registers the ledger collectors on registerer.
func NewLedgerMetrics(registerer prometheus.Registerer) *LedgerMetrics {
	applied := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stockroom_ledger_movements_total",
		Help: "Ledger movements committed, by entry kind.",
	}, []string{"kind"})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stockroom_ledger_rejections_total",
		Help: "Ledger movements refused, by reason.",
	}, []string{"reason"})
	registerer.MustRegister(applied, rejected)
	return &LedgerMetrics{applied: applied, rejected: rejected}
}

// MovementApplied counts a committed movement.
func (m *LedgerMetrics) MovementApplied(kind string) {
	if m == nil {
		return
	}
	m.applied.WithLabelValues(kind).Inc()
}

// MovementRejected counts a refused movement.
func (m *LedgerMetrics) MovementRejected(reason string) {
	if m == nil {
		return
	}
	m.rejected.WithLabelValues(reason).Inc()
}
