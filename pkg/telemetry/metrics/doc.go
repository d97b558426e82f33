// Package metrics exports gatekeeper activity to Prometheus.
//
// A Collector registers every metric on its own registry and is handed to
// the orchestrator as its MetricsRecorder. The server mounts Handler at
// /metrics.
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	orch, _ := orchestrator.New(engine, registry, orchestrator.WithMetrics(collector))
//	mux.Handle("/metrics", collector.Handler())
//
// Exported metric families (namespace "gatekeeper" by default):
//
//	decisions_total{verdict,path,action_type}
//	decision_duration_seconds{path}
//	decision_confidence{verdict}
//	decision_warnings_total
//	level_outcomes_total{level,status}
//	level_duration_seconds{level}
//	rule_violations_total{rule,severity}
//	rule_drift_total
//	rules_loaded{version}
//	rules_fallback
//	audit_sink_failures_total
//	audit_records_{written,failed,dropped}
//	audit_queue_depth
//	http_requests_total{method,route,status}
//	http_request_duration_seconds{route}
//
// The action_type label is capped by a CardinalityLimiter; values beyond
// the cap are reported as "other".
package metrics
