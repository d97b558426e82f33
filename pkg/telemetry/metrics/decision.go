package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/gatekeeper/pkg/config"
	"mercator-hq/gatekeeper/pkg/decision"
)

// DecisionMetrics tracks final verdicts.
//
// Metrics:
//   - gatekeeper_decisions_total{verdict, path, action_type}
//   - gatekeeper_decision_duration_seconds{path}
//   - gatekeeper_decision_confidence{verdict}
//   - gatekeeper_decision_warnings_total
type DecisionMetrics struct {
	total      *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	confidence *prometheus.HistogramVec
	warnings   prometheus.Counter
}

// NewDecisionMetrics creates and registers decision metrics.
func NewDecisionMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *DecisionMetrics {
	dm := &DecisionMetrics{
		total: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "decisions_total",
				Help:      "Total number of decisions by verdict, path, and action type",
			},
			[]string{"verdict", "path", "action_type"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "decision_duration_seconds",
				Help:      "End-to-end decision latency in seconds",
				Buckets:   cfg.DurationBuckets,
			},
			[]string{"path"},
		),
		confidence: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "decision_confidence",
				Help:      "Confidence of final decisions",
				Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
			},
			[]string{"verdict"},
		),
		warnings: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "decision_warnings_total",
				Help:      "Total number of warnings attached to decisions",
			},
		),
	}

	registry.MustRegister(dm.total, dm.duration, dm.confidence, dm.warnings)
	return dm
}

// Record records one decision.
func (dm *DecisionMetrics) Record(d *decision.Decision, actionType string) {
	dm.total.WithLabelValues(string(d.FinalDecision), string(d.Path), actionType).Inc()
	dm.duration.WithLabelValues(string(d.Path)).Observe(d.TotalDuration.Seconds())
	dm.confidence.WithLabelValues(string(d.FinalDecision)).Observe(d.Confidence)
	if n := len(d.Warnings); n > 0 {
		dm.warnings.Add(float64(n))
	}
}
