package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Listener outcomes.
const (
	OutcomeProcessed        = "processed"
	OutcomeSkippedDuplicate = "skipped_duplicate"
	OutcomeLockContention   = "lock_contention"
	OutcomeFailed           = "failed"
	OutcomeDeadLettered     = "dead_lettered"
)

// ListenerMetrics records per-event listener outcomes and latency.
type ListenerMetrics struct {
	events   *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewListenerMetrics registers listener metrics. A nil registerer yields a no-op recorder.
func NewListenerMetrics(reg prometheus.Registerer) *ListenerMetrics {
	if reg == nil {
		return &ListenerMetrics{}
	}
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "listener_events_total",
		Help: "Lifecycle events handled by listeners, by outcome.",
	}, []string{"event", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "listener_duration_seconds",
		Help:    "Time spent handling one lifecycle event, including lock wait.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"event"})
	reg.MustRegister(events, duration)
	return &ListenerMetrics{events: events, duration: duration}
}

func (m *ListenerMetrics) Observe(event, outcome string, elapsed time.Duration) {
	if m == nil || m.events == nil {
		return
	}
	event = normalizeLabel(event)
	m.events.WithLabelValues(event, normalizeLabel(outcome)).Inc()
	m.duration.WithLabelValues(event).Observe(elapsed.Seconds())
}
