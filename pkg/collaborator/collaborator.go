package collaborator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mercator-hq/gatekeeper/pkg/action"
)

// Score keys reported by collaborators.
const (
	ScoreContext = "context_score"
	ScoreTruth   = "truth_score"
	ScoreRisk    = "risk_score"
)

// ErrUnavailable means no collaborator is registered for a level. It is an
// expected condition, not a failure.
var ErrUnavailable = errors.New("collaborator unavailable")

// Assessment is the opinion returned by a collaborator.
type Assessment struct {
	Scores   map[string]float64 `json:"scores"`
	Warnings []string           `json:"warnings,omitempty"`
}

// Score returns the named score.
func (a Assessment) Score(key string) (float64, bool) {
	v, ok := a.Scores[key]
	return v, ok
}

// ContextAssessor scores how well an action fits its context (Level 2).
type ContextAssessor interface {
	AssessContext(ctx context.Context, a *action.Action) (Assessment, error)
}

// TruthVerifier scores the factual claims made by an action (Level 3).
type TruthVerifier interface {
	VerifyClaims(ctx context.Context, a *action.Action) (Assessment, error)
}

// RiskAssessor scores the execution risk of an action (Level 4). Higher is
// riskier.
type RiskAssessor interface {
	AssessRisk(ctx context.Context, a *action.Action) (Assessment, error)
}

// CollaboratorError wraps a runtime failure of a registered collaborator.
type CollaboratorError struct {
	Level int
	Name  string
	Cause error
}

// Error returns the error message.
func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("level %d (%s) collaborator failed: %v", e.Level, e.Name, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *CollaboratorError) Unwrap() error {
	return e.Cause
}

// TimeoutError indicates a collaborator exceeded its time budget.
type TimeoutError struct {
	Level   int
	Name    string
	Timeout time.Duration
}

// Error returns the error message.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("level %d (%s) collaborator timed out after %v", e.Level, e.Name, e.Timeout)
}

// Unwrap lets errors.Is match context.DeadlineExceeded.
func (e *TimeoutError) Unwrap() error {
	return context.DeadlineExceeded
}

// ContextFunc adapts a function to ContextAssessor.
type ContextFunc func(ctx context.Context, a *action.Action) (Assessment, error)

// AssessContext calls f.
func (f ContextFunc) AssessContext(ctx context.Context, a *action.Action) (Assessment, error) {
	return f(ctx, a)
}

// TruthFunc adapts a function to TruthVerifier.
type TruthFunc func(ctx context.Context, a *action.Action) (Assessment, error)

// VerifyClaims calls f.
func (f TruthFunc) VerifyClaims(ctx context.Context, a *action.Action) (Assessment, error) {
	return f(ctx, a)
}

// RiskFunc adapts a function to RiskAssessor.
type RiskFunc func(ctx context.Context, a *action.Action) (Assessment, error)

// AssessRisk calls f.
func (f RiskFunc) AssessRisk(ctx context.Context, a *action.Action) (Assessment, error) {
	return f(ctx, a)
}

// Unavailable is the null collaborator. Every method returns ErrUnavailable.
type Unavailable struct{}

// AssessContext returns ErrUnavailable.
func (Unavailable) AssessContext(context.Context, *action.Action) (Assessment, error) {
	return Assessment{}, ErrUnavailable
}

// VerifyClaims returns ErrUnavailable.
func (Unavailable) VerifyClaims(context.Context, *action.Action) (Assessment, error) {
	return Assessment{}, ErrUnavailable
}

// AssessRisk returns ErrUnavailable.
func (Unavailable) AssessRisk(context.Context, *action.Action) (Assessment, error) {
	return Assessment{}, ErrUnavailable
}
