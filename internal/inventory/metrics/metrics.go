package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the ledger hot path.
type Metrics struct {
	// Movements written, by movement type
	MovementsApplied *prometheus.CounterVec

	// Integration events, by event type and outcome
	// (applied, duplicate, failed)
	EventsConsumed *prometheus.CounterVec

	// Optimistic-lock retries on stock level writes
	ConflictRetries prometheus.Counter

	// Latency of one event's full apply cycle
	ApplyLatency prometheus.Histogram
}

// New creates a Metrics instance with all ledger metrics registered.
func New() *Metrics {
	return &Metrics{
		MovementsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "stockledger_movements_applied_total",
			Help: "Total stock movements written to the ledger by type",
		}, []string{"movement_type"}),

		EventsConsumed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "stockledger_events_consumed_total",
			Help: "Total integration events consumed by type and outcome",
		}, []string{"event_type", "outcome"}),

		ConflictRetries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "stockledger_conflict_retries_total",
			Help: "Total optimistic concurrency retries on stock level writes",
		}),

		ApplyLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "stockledger_event_apply_duration_seconds",
			Help:    "Duration of applying one integration event",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
	}
}

// RecordMovement counts one written movement.
func (m *Metrics) RecordMovement(movementType string) {
	if m != nil {
		m.MovementsApplied.WithLabelValues(movementType).Inc()
	}
}

// RecordEvent counts one consumed event outcome.
func (m *Metrics) RecordEvent(eventType, outcome string) {
	if m != nil {
		m.EventsConsumed.WithLabelValues(eventType, outcome).Inc()
	}
}

// RecordConflictRetry counts one optimistic-lock retry.
func (m *Metrics) RecordConflictRetry() {
	if m != nil {
		m.ConflictRetries.Inc()
	}
}

// ObserveApplyLatency records the duration of one event apply cycle.
func (m *Metrics) ObserveApplyLatency(d time.Duration) {
	if m != nil {
		m.ApplyLatency.Observe(d.Seconds())
	}
}
