package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"mercator-hq/gatekeeper/pkg/config"
	"mercator-hq/gatekeeper/pkg/decision"
)

// otherLabel replaces label values once the cardinality limit is reached.
const otherLabel = "other"

// Collector owns every Prometheus metric the gatekeeper exports. It
// implements orchestrator.MetricsRecorder so the orchestrator can report
// decisions without importing Prometheus.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	decisions *DecisionMetrics
	levels    *LevelMetrics
	rules     *RulesMetrics
	audit     *AuditMetrics
	http      *HTTPMetrics

	// actionTypes caps the distinct action_type label values. Action types
	// come from agents, so they are unbounded.
	actionTypes *CardinalityLimiter
}

// NewCollector creates a collector registered on registry. A nil registry
// gets a fresh one with the Go and process collectors attached.
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if cfg == nil {
		cfg = &config.MetricsConfig{Enabled: true}
	}
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "gatekeeper"
	}
	if len(cfg.DurationBuckets) == 0 {
		// Fast path decisions take microseconds; full path is bounded by the
		// level budget.
		cfg.DurationBuckets = []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}
	}
	maxTypes := cfg.MaxActionTypes
	if maxTypes <= 0 {
		maxTypes = 100
	}

	return &Collector{
		config:      cfg,
		registry:    registry,
		decisions:   NewDecisionMetrics(cfg, registry),
		levels:      NewLevelMetrics(cfg, registry),
		rules:       NewRulesMetrics(cfg, registry),
		audit:       NewAuditMetrics(cfg, registry),
		http:        NewHTTPMetrics(cfg, registry),
		actionTypes: NewCardinalityLimiter(maxTypes),
	}
}

// RecordDecision records a completed decision.
func (c *Collector) RecordDecision(d *decision.Decision) {
	if !c.config.Enabled || d == nil {
		return
	}
	actionType := d.ActionType()
	if actionType == "" {
		actionType = "none"
	}
	if !c.actionTypes.Allow(actionType) {
		actionType = otherLabel
	}
	c.decisions.Record(d, actionType)
	if d.Compliance != nil {
		for _, v := range d.Compliance.Violations {
			c.rules.RecordViolation(v.Rule, string(v.Severity))
		}
	}
}

// RecordLevel records the outcome of one advisory level.
func (c *Collector) RecordLevel(level int, status decision.Status, duration time.Duration) {
	if !c.config.Enabled {
		return
	}
	c.levels.Record(level, status, duration)
}

// RecordAuditFailure counts a decision the audit sink refused.
func (c *Collector) RecordAuditFailure() {
	if !c.config.Enabled {
		return
	}
	c.audit.RecordFailure()
}

// RecordRuleDrift counts a change to the rule file seen after start-up.
func (c *Collector) RecordRuleDrift() {
	if !c.config.Enabled {
		return
	}
	c.rules.RecordDrift()
}

// SetRuleSet publishes the loaded rule set version and size. fallback is
// true when the compiled-in defaults replaced a failed source.
func (c *Collector) SetRuleSet(version string, ruleCount int, fallback bool) {
	if !c.config.Enabled {
		return
	}
	c.rules.SetLoaded(version, ruleCount, fallback)
}

// WatchRecorder exports gauges read from stats on every scrape.
func (c *Collector) WatchRecorder(stats func() RecorderStats) {
	c.audit.Watch(stats)
}

// RecordHTTPRequest records one served HTTP request.
func (c *Collector) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	if !c.config.Enabled {
		return
	}
	c.http.Record(method, route, status, duration)
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// CardinalityLimiter bounds the number of distinct label values.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a limiter allowing maxCardinality values.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow reports whether value may be used as a label. Values already seen
// are always allowed.
func (cl *CardinalityLimiter) Allow(value string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[value]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	if _, exists := cl.current[value]; exists {
		return true
	}
	if len(cl.current) >= cl.maxCardinality {
		return false
	}
	cl.current[value] = struct{}{}
	return true
}

// Count returns the current cardinality.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
