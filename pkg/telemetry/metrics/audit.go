package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/gatekeeper/pkg/config"
)

// RecorderStats is the subset of audit recorder counters exported as
// metrics.
type RecorderStats struct {
	Written int64
	Failed  int64
	Dropped int64
	Pending int
}

// AuditMetrics tracks the audit sink.
//
// Metrics:
//   - gatekeeper_audit_sink_failures_total
//   - gatekeeper_audit_records_written
//   - gatekeeper_audit_records_failed
//   - gatekeeper_audit_records_dropped
//   - gatekeeper_audit_queue_depth
type AuditMetrics struct {
	failures prometheus.Counter

	mu    sync.RWMutex
	stats func() RecorderStats
}

// NewAuditMetrics creates and registers audit metrics. Recorder gauges read
// zero until Watch is called.
func NewAuditMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *AuditMetrics {
	am := &AuditMetrics{
		failures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "audit_sink_failures_total",
				Help:      "Decisions the audit sink failed to accept",
			},
		),
	}

	gauge := func(name, help string, read func(RecorderStats) float64) prometheus.GaugeFunc {
		return prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      name,
				Help:      help,
			},
			func() float64 { return read(am.snapshot()) },
		)
	}

	registry.MustRegister(
		am.failures,
		gauge("audit_records_written", "Audit records written by the recorder",
			func(s RecorderStats) float64 { return float64(s.Written) }),
		gauge("audit_records_failed", "Audit records the store rejected",
			func(s RecorderStats) float64 { return float64(s.Failed) }),
		gauge("audit_records_dropped", "Audit records dropped because the queue was full",
			func(s RecorderStats) float64 { return float64(s.Dropped) }),
		gauge("audit_queue_depth", "Audit records waiting to be written",
			func(s RecorderStats) float64 { return float64(s.Pending) }),
	)
	return am
}

// RecordFailure counts one rejected decision.
func (am *AuditMetrics) RecordFailure() {
	am.failures.Inc()
}

// Watch sets the function read on each scrape.
func (am *AuditMetrics) Watch(stats func() RecorderStats) {
	am.mu.Lock()
	defer am.mu.Unlock()
	am.stats = stats
}

func (am *AuditMetrics) snapshot() RecorderStats {
	am.mu.RLock()
	defer am.mu.RUnlock()
	if am.stats == nil {
		return RecorderStats{}
	}
	return am.stats()
}
