// Package metrics exposes Prometheus metrics for an import session.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sells-group/place-import/internal/queue"
	"github.com/sells-group/place-import/internal/resilience"
)

const namespace = "place_import"

// ImportMetrics collects queue, stage and photo metrics on its own registry.
type ImportMetrics struct {
	registry *prometheus.Registry

	actionsTotal  *prometheus.CounterVec
	items         *prometheus.GaugeVec
	processing    prometheus.Gauge
	stageDuration *prometheus.HistogramVec
	photosTotal   *prometheus.CounterVec
	circuitState  *prometheus.GaugeVec
}

// New creates an ImportMetrics with every collector registered.
func New() *ImportMetrics {
	registry := prometheus.NewRegistry()

	actionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "actions_total",
			Help:      "Queue actions applied, by action.",
		},
		[]string{"action"},
	)
	items := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "items",
			Help:      "Queue items by stats bucket.",
		},
		[]string{"bucket"},
	)
	processing := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "processing",
			Help:      "1 while automatic advancement is on.",
		},
	)
	stageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage duration in seconds by stage and status.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"stage", "status"},
	)
	photosTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "photos",
			Name:      "total",
			Help:      "Photo migration attempts by outcome.",
		},
		[]string{"outcome"},
	)

	circuitState := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "circuit",
			Name:      "state",
			Help:      "Circuit breaker state by service: 0 closed, 1 open, 2 half-open.",
		},
		[]string{"service"},
	)

	registry.MustRegister(actionsTotal, items, processing, stageDuration, photosTotal, circuitState)

	return &ImportMetrics{
		registry:      registry,
		actionsTotal:  actionsTotal,
		items:         items,
		processing:    processing,
		stageDuration: stageDuration,
		photosTotal:   photosTotal,
		circuitState:  circuitState,
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *ImportMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveQueue records an applied action and the resulting stats. Register
// it with queue.Machine.OnChange.
func (m *ImportMetrics) ObserveQueue(a queue.Action, s queue.State) {
	m.actionsTotal.WithLabelValues(queue.Name(a)).Inc()

	st := s.Stats
	m.items.WithLabelValues("total").Set(float64(st.Total))
	m.items.WithLabelValues("pending").Set(float64(st.Pending))
	m.items.WithLabelValues("ready").Set(float64(st.Ready))
	m.items.WithLabelValues("completed").Set(float64(st.Completed))
	m.items.WithLabelValues("skipped").Set(float64(st.Skipped))
	m.items.WithLabelValues("failed").Set(float64(st.Failed))
	m.items.WithLabelValues("duplicate").Set(float64(st.Duplicates))

	if s.IsProcessing {
		m.processing.Set(1)
	} else {
		m.processing.Set(0)
	}
}

// ObserveStage records one pipeline stage.
func (m *ImportMetrics) ObserveStage(stage string, d time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.stageDuration.WithLabelValues(stage, status).Observe(d.Seconds())
}

// PhotoOutcome counts one photo attempt.
func (m *ImportMetrics) PhotoOutcome(outcome string) {
	m.photosTotal.WithLabelValues(outcome).Inc()
}

// CircuitChange records a breaker transition. Pass it as
// resilience.CircuitBreakerConfig.OnStateChange.
func (m *ImportMetrics) CircuitChange(service string, _, to resilience.CircuitState) {
	m.circuitState.WithLabelValues(service).Set(float64(to))
}
