package synthesis

import (
	"fmt"
	"math"
	"sort"

	"mercator-hq/gatekeeper/pkg/collaborator"
	"mercator-hq/gatekeeper/pkg/decision"
)

// NeutralConfidence is reported when no advisory level executed.
const NeutralConfidence = 0.5

// Config holds weights, thresholds, and per-score warning limits.
type Config struct {
	// Weights per advisory level (2, 3, 4).
	Weights map[int]float64

	// ApproveThreshold is the minimum confidence for approval.
	ApproveThreshold float64

	// EscalateThreshold is the minimum confidence for escalation; anything
	// below is denied.
	EscalateThreshold float64

	// Local warning limits.
	MinContextScore float64
	MinTruthScore   float64
	MaxRiskScore    float64
}

// DefaultConfig returns the standard weights and thresholds.
func DefaultConfig() Config {
	return Config{
		Weights: map[int]float64{
			decision.LevelContext: 0.3,
			decision.LevelTruth:   0.5,
			decision.LevelRisk:    0.7,
		},
		ApproveThreshold:  0.7,
		EscalateThreshold: 0.4,
		MinContextScore:   0.3,
		MinTruthScore:     0.6,
		MaxRiskScore:      0.7,
	}
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	for _, level := range []int{decision.LevelContext, decision.LevelTruth, decision.LevelRisk} {
		w, ok := c.Weights[level]
		if !ok || w <= 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return fmt.Errorf("weight for level %d must be positive", level)
		}
	}
	if c.EscalateThreshold < 0 || c.ApproveThreshold > 1 || c.EscalateThreshold > c.ApproveThreshold {
		return fmt.Errorf("thresholds must satisfy 0 <= escalate (%g) <= approve (%g) <= 1",
			c.EscalateThreshold, c.ApproveThreshold)
	}
	return nil
}

// LevelResult is the input for one advisory level.
type LevelResult struct {
	Level    int
	Status   decision.Status
	Scores   map[string]float64
	Warnings []string
}

// Result is the synthesized verdict.
type Result struct {
	Verdict    decision.Verdict
	Confidence float64
	Warnings   []string
	Reasoning  []string
}

// SynthesisError indicates an internal invariant was broken. The caller must
// turn it into an error verdict.
type SynthesisError struct {
	Message string
}

// Error returns the error message.
func (e *SynthesisError) Error() string {
	return "synthesis failed: " + e.Message
}

// Synthesizer computes weighted verdicts. It is stateless and safe for
// concurrent use.
type Synthesizer struct {
	config Config
}

// New creates a synthesizer.
func New(cfg Config) (*Synthesizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	weights := make(map[int]float64, len(cfg.Weights))
	for k, v := range cfg.Weights {
		weights[k] = v
	}
	cfg.Weights = weights
	return &Synthesizer{config: cfg}, nil
}

// Config returns a copy of the synthesizer configuration.
func (s *Synthesizer) Config() Config {
	c := s.config
	c.Weights = make(map[int]float64, len(s.config.Weights))
	for k, v := range s.config.Weights {
		c.Weights[k] = v
	}
	return c
}

// scoreKey maps a level to the score it contributes.
func scoreKey(level int) string {
	switch level {
	case decision.LevelContext:
		return collaborator.ScoreContext
	case decision.LevelTruth:
		return collaborator.ScoreTruth
	case decision.LevelRisk:
		return collaborator.ScoreRisk
	default:
		return ""
	}
}

// Synthesize combines the advisory results. It is only called once Level 1 has
// approved; a Level 1 veto never reaches synthesis.
func (s *Synthesizer) Synthesize(results []LevelResult) (Result, error) {
	// Sort by level so output order does not depend on completion order.
	sorted := make([]LevelResult, len(results))
	copy(sorted, results)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Level < sorted[j].Level })

	var (
		out         Result
		weighted    float64
		totalWeight float64
		executed    int
		failed      int
	)

	for _, r := range sorted {
		switch r.Status {
		case decision.StatusFailed:
			failed++
			continue
		case decision.StatusSkipped:
			continue
		case decision.StatusExecuted:
		default:
			return Result{}, &SynthesisError{Message: fmt.Sprintf("level %d has unknown status %q", r.Level, r.Status)}
		}

		key := scoreKey(r.Level)
		if key == "" {
			return Result{}, &SynthesisError{Message: fmt.Sprintf("level %d is not an advisory level", r.Level)}
		}
		score, ok := r.Scores[key]
		if !ok || math.IsNaN(score) || score < 0 || score > 1 {
			return Result{}, &SynthesisError{Message: fmt.Sprintf("level %d %s invalid: %v", r.Level, key, score)}
		}
		weight := s.config.Weights[r.Level]

		contribution := score
		if r.Level == decision.LevelRisk {
			contribution = 1 - score
		}
		weighted += weight * contribution
		totalWeight += weight
		executed++

		out.Reasoning = append(out.Reasoning,
			fmt.Sprintf("L5: %s %.2f contributes %.3f (weight %.1f)", key, score, weight*contribution, weight))
		out.Warnings = append(out.Warnings, s.localWarnings(r.Level, score)...)
		out.Warnings = append(out.Warnings, r.Warnings...)
	}

	if executed == 0 {
		out.Confidence = NeutralConfidence
		if failed == 0 {
			out.Verdict = decision.VerdictApproved
			out.Reasoning = append(out.Reasoning, "L5: no advisory level executed; rule validation approval stands")
			return out, nil
		}
		out.Reasoning = append(out.Reasoning,
			fmt.Sprintf("L5: %d advisory level(s) failed and none executed; using neutral confidence", failed))
	} else {
		if totalWeight <= 0 {
			return Result{}, &SynthesisError{Message: fmt.Sprintf("non-positive total weight %v", totalWeight)}
		}
		out.Confidence = weighted / totalWeight
	}

	if math.IsNaN(out.Confidence) || out.Confidence < 0 || out.Confidence > 1 {
		return Result{}, &SynthesisError{Message: fmt.Sprintf("confidence %v outside [0,1]", out.Confidence)}
	}

	switch {
	case out.Confidence >= s.config.ApproveThreshold:
		out.Verdict = decision.VerdictApproved
		out.Reasoning = append(out.Reasoning,
			fmt.Sprintf("L5: confidence %.2f meets approval threshold %.2f", out.Confidence, s.config.ApproveThreshold))
	case out.Confidence >= s.config.EscalateThreshold:
		out.Verdict = decision.VerdictEscalate
		out.Warnings = append(out.Warnings,
			fmt.Sprintf("human review required: confidence %.2f below approval threshold", out.Confidence))
		out.Reasoning = append(out.Reasoning,
			fmt.Sprintf("L5: confidence %.2f in escalation band [%.2f, %.2f)", out.Confidence, s.config.EscalateThreshold, s.config.ApproveThreshold))
	default:
		out.Verdict = decision.VerdictDenied
		out.Reasoning = append(out.Reasoning,
			fmt.Sprintf("L5: confidence %.2f below escalation threshold %.2f", out.Confidence, s.config.EscalateThreshold))
	}

	return out, nil
}

func (s *Synthesizer) localWarnings(level int, score float64) []string {
	switch level {
	case decision.LevelContext:
		if score < s.config.MinContextScore {
			return []string{fmt.Sprintf("context_score %.2f below %.2f: action fits its context poorly", score, s.config.MinContextScore)}
		}
	case decision.LevelTruth:
		if score < s.config.MinTruthScore {
			return []string{fmt.Sprintf("truth_score %.2f below %.2f: claims could not be verified", score, s.config.MinTruthScore)}
		}
	case decision.LevelRisk:
		if score > s.config.MaxRiskScore {
			return []string{fmt.Sprintf("risk_score %.2f above %.2f: execution risk is high", score, s.config.MaxRiskScore)}
		}
	}
	return nil
}
