package orchestrator

import (
	"sync"
	"time"

	"mercator-hq/gatekeeper/pkg/decision"
)

// Statistics is a snapshot of the orchestrator counters.
type Statistics struct {
	TotalDecisions     int64            `json:"total_decisions"`
	FastPathCount      int64            `json:"fast_path_count"`
	FullPathCount      int64            `json:"full_path_count"`
	ShortCircuitCount  int64            `json:"short_circuit_count"`
	FastPathPercentage float64          `json:"fast_path_percentage"`
	AvgDurationMs      float64          `json:"avg_duration_ms"`
	Verdicts           map[string]int64 `json:"verdicts"`
	AuditFailures      int64            `json:"audit_failures"`
	HistorySize        int              `json:"history_size"`
	HistoryCapacity    int              `json:"history_capacity"`
}

// stats holds the only mutable state shared between decisions.
type stats struct {
	mu sync.Mutex

	total         int64
	fast          int64
	full          int64
	shortCircuit  int64
	totalDuration time.Duration
	verdicts      map[decision.Verdict]int64
	auditFailures int64

	// recent is a ring buffer; next is the slot for the next write.
	recent []decision.Summary
	next   int
	filled bool
}

func newStats(capacity int) *stats {
	return &stats{
		verdicts: make(map[decision.Verdict]int64),
		recent:   make([]decision.Summary, capacity),
	}
}

func (s *stats) record(d *decision.Decision) {
	summary := d.Summarize()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.total++
	switch d.Path {
	case decision.PathFast:
		s.fast++
	case decision.PathFull:
		s.full++
	case decision.PathShortCircuit:
		s.shortCircuit++
	}
	s.totalDuration += d.TotalDuration
	s.verdicts[d.FinalDecision]++

	s.recent[s.next] = summary
	s.next++
	if s.next == len(s.recent) {
		s.next = 0
		s.filled = true
	}
}

func (s *stats) recordAuditFailure() {
	s.mu.Lock()
	s.auditFailures++
	s.mu.Unlock()
}

func (s *stats) snapshot() Statistics {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := Statistics{
		TotalDecisions:    s.total,
		FastPathCount:     s.fast,
		FullPathCount:     s.full,
		ShortCircuitCount: s.shortCircuit,
		Verdicts:          make(map[string]int64, len(decision.Verdicts())),
		AuditFailures:     s.auditFailures,
		HistorySize:       s.sizeLocked(),
		HistoryCapacity:   len(s.recent),
	}
	for _, v := range decision.Verdicts() {
		out.Verdicts[string(v)] = s.verdicts[v]
	}
	if s.total > 0 {
		out.FastPathPercentage = float64(s.fast) / float64(s.total) * 100
		out.AvgDurationMs = float64(s.totalDuration) / float64(s.total) / float64(time.Millisecond)
	}
	return out
}

func (s *stats) sizeLocked() int {
	if s.filled {
		return len(s.recent)
	}
	return s.next
}

// latest returns up to n summaries, newest first. n <= 0 returns all.
func (s *stats) latest(n int) []decision.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	size := s.sizeLocked()
	if n <= 0 || n > size {
		n = size
	}
	out := make([]decision.Summary, 0, n)
	idx := s.next
	for i := 0; i < n; i++ {
		idx--
		if idx < 0 {
			idx = len(s.recent) - 1
		}
		out = append(out, s.recent[idx])
	}
	return out
}
