package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "hotword"

// Metrics holds all Prometheus instruments for the daemon.
type Metrics struct {
	// Trigger metrics
	TriggersTotal   *prometheus.CounterVec
	TriggerDistance prometheus.Histogram

	// Detector lifecycle metrics
	StateTransitions *prometheus.CounterVec
	ListeningActive  prometheus.Gauge

	// Engine metrics
	SessionsStarted      prometheus.Counter
	SessionStartFailures prometheus.Counter
	EngineErrors         *prometheus.CounterVec
}

// Default is the global metrics instance.
var Default = NewMetrics()

// NewMetrics creates and registers all Prometheus instruments. Call once;
// instruments register against the default registry.
func NewMetrics() *Metrics {
	return &Metrics{
		TriggersTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "triggers_total",
			Help:      "Total number of confirmed wake triggers",
		}, []string{"phrase"}),
		TriggerDistance: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "trigger_distance",
			Help:      "Edit distance of accepted wake matches",
			Buckets:   []float64{0, 1, 2, 3},
		}),

		StateTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_transitions_total",
			Help:      "Total number of detector state transitions",
		}, []string{"from", "to"}),
		ListeningActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "listening_active",
			Help:      "Whether the detector is currently listening",
		}),

		SessionsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "engine_sessions_started_total",
			Help:      "Total number of recognition sessions started",
		}),
		SessionStartFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "engine_session_start_failures_total",
			Help:      "Total number of recognition session start failures",
		}),
		EngineErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "engine_errors_total",
			Help:      "Total number of engine errors by kind",
		}, []string{"kind"}),
	}
}

// RecordTrigger records a confirmed wake trigger.
func (m *Metrics) RecordTrigger(phrase string, distance int) {
	m.TriggersTotal.WithLabelValues(phrase).Inc()
	m.TriggerDistance.Observe(float64(distance))
}

// RecordStateChange records a detector state transition.
func (m *Metrics) RecordStateChange(from, to string) {
	m.StateTransitions.WithLabelValues(from, to).Inc()
	if to == "listening" {
		m.ListeningActive.Set(1)
	} else {
		m.ListeningActive.Set(0)
	}
}

// RecordSessionStart records a recognition session start attempt.
func (m *Metrics) RecordSessionStart(ok bool) {
	if ok {
		m.SessionsStarted.Inc()
	} else {
		m.SessionStartFailures.Inc()
	}
}

// RecordEngineError records an engine error by kind.
func (m *Metrics) RecordEngineError(kind string) {
	m.EngineErrors.WithLabelValues(kind).Inc()
}
