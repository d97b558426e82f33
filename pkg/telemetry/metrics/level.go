package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/gatekeeper/pkg/config"
	"mercator-hq/gatekeeper/pkg/decision"
)

// LevelMetrics tracks advisory level outcomes.
//
// Metrics:
//   - gatekeeper_level_outcomes_total{level, status}
//   - gatekeeper_level_duration_seconds{level}
type LevelMetrics struct {
	outcomes *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewLevelMetrics creates and registers level metrics.
func NewLevelMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *LevelMetrics {
	lm := &LevelMetrics{
		outcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "level_outcomes_total",
				Help:      "Advisory level outcomes by level and status",
			},
			[]string{"level", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "level_duration_seconds",
				Help:      "Duration of executed or failed advisory levels",
				Buckets:   cfg.DurationBuckets,
			},
			[]string{"level"},
		),
	}

	registry.MustRegister(lm.outcomes, lm.duration)
	return lm
}

// Record records one level outcome. Skipped levels have no duration.
func (lm *LevelMetrics) Record(level int, status decision.Status, duration time.Duration) {
	name := decision.LevelName(level)
	lm.outcomes.WithLabelValues(name, string(status)).Inc()
	if status != decision.StatusSkipped {
		lm.duration.WithLabelValues(name).Observe(duration.Seconds())
	}
}
