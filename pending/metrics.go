package pending

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels recorded by Metrics.
const (
	OutcomeRegistered = "registered"
	OutcomeDuplicate  = "duplicate"
	OutcomeResolved   = "resolved"
	OutcomeUnmatched  = "unmatched"
	OutcomeCancelled  = "cancelled"
	OutcomeExpired    = "expired"
	OutcomeAbandoned  = "abandoned"
)

// Metrics provides Prometheus metrics for pending command tables.
// All methods are nil-safe: calls on a nil *Metrics are no-ops.
type Metrics struct {
	// Outstanding tracks the number of entries currently held per table.
	Outstanding *prometheus.GaugeVec

	// OutcomesTotal counts table events by table and outcome.
	OutcomesTotal *prometheus.CounterVec
}

// NewMetrics creates and registers table metrics with the given
// Prometheus registerer. If reg is nil, metrics are created but not
// registered (useful for testing).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Outstanding: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "avdecc",
			Subsystem: "pending",
			Name:      "outstanding_commands",
			Help:      "Number of commands awaiting a response",
		}, []string{"table"}),
		OutcomesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "avdecc",
			Subsystem: "pending",
			Name:      "outcomes_total",
			Help:      "Pending table events by outcome",
		}, []string{"table", "outcome"}),
	}

	if reg != nil {
		reg.MustRegister(m.Outstanding, m.OutcomesTotal)
	}

	return m
}

// record increments the outcome counter for a table.
func (m *Metrics) record(table, outcome string) {
	if m == nil {
		return
	}
	m.OutcomesTotal.WithLabelValues(table, outcome).Inc()
}

// recordN adds n to the outcome counter for a table.
func (m *Metrics) recordN(table, outcome string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.OutcomesTotal.WithLabelValues(table, outcome).Add(float64(n))
}

// setOutstanding sets the outstanding gauge for a table.
func (m *Metrics) setOutstanding(table string, n int) {
	if m == nil {
		return
	}
	m.Outstanding.WithLabelValues(table).Set(float64(n))
}
