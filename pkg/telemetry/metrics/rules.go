package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/gatekeeper/pkg/config"
)

// RulesMetrics tracks the loaded rule set and its violations.
//
// Metrics:
//   - gatekeeper_rule_violations_total{rule, severity}
//   - gatekeeper_rule_drift_total
//   - gatekeeper_rules_loaded{version}
//   - gatekeeper_rules_fallback
type RulesMetrics struct {
	violations *prometheus.CounterVec
	drift      prometheus.Counter
	loaded     *prometheus.GaugeVec
	fallback   prometheus.Gauge
}

// NewRulesMetrics creates and registers rule metrics.
func NewRulesMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *RulesMetrics {
	rm := &RulesMetrics{
		violations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "rule_violations_total",
				Help:      "Rule violations found by the rule engine",
			},
			[]string{"rule", "severity"},
		),
		drift: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "rule_drift_total",
				Help:      "Changes to the rule file detected after start-up",
			},
		),
		loaded: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "rules_loaded",
				Help:      "Number of rules in the loaded rule set, labelled by version",
			},
			[]string{"version"},
		),
		fallback: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "rules_fallback",
				Help:      "1 when the compiled-in default rules are in force after a load failure",
			},
		),
	}

	registry.MustRegister(rm.violations, rm.drift, rm.loaded, rm.fallback)
	return rm
}

// RecordViolation counts one violation. Rule names come from the rule set,
// so the label set is bounded.
func (rm *RulesMetrics) RecordViolation(rule, severity string) {
	rm.violations.WithLabelValues(rule, severity).Inc()
}

// RecordDrift counts one rule file change.
func (rm *RulesMetrics) RecordDrift() {
	rm.drift.Inc()
}

// SetLoaded publishes the rule set in force.
func (rm *RulesMetrics) SetLoaded(version string, count int, fallback bool) {
	rm.loaded.Reset()
	rm.loaded.WithLabelValues(version).Set(float64(count))
	if fallback {
		rm.fallback.Set(1)
	} else {
		rm.fallback.Set(0)
	}
}
