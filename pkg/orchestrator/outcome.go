package orchestrator

import (
	"time"

	"mercator-hq/gatekeeper/pkg/collaborator"
	"mercator-hq/gatekeeper/pkg/decision"
)

// OutcomeKind tags an advisory level outcome.
type OutcomeKind int

const (
	// KindSkipped means the level did not run: no collaborator is registered
	// or the level was not triggered.
	KindSkipped OutcomeKind = iota

	// KindExecuted means the collaborator returned a valid assessment.
	KindExecuted

	// KindFailed means the collaborator errored, timed out, panicked, or
	// returned an invalid score.
	KindFailed
)

// Outcome is the result of one advisory level. Exactly one of Assessment,
// Reason, or Err is meaningful, depending on Kind.
type Outcome struct {
	Kind       OutcomeKind
	Assessment collaborator.Assessment
	Reason     string
	Err        error
	Duration   time.Duration
}

// Executed returns an executed outcome.
func Executed(a collaborator.Assessment) Outcome {
	return Outcome{Kind: KindExecuted, Assessment: a}
}

// Skipped returns a skipped outcome.
func Skipped(reason string) Outcome {
	return Outcome{Kind: KindSkipped, Reason: reason}
}

// Failed returns a failed outcome.
func Failed(err error) Outcome {
	return Outcome{Kind: KindFailed, Err: err}
}

// Status maps the outcome kind to a decision status.
func (o Outcome) Status() decision.Status {
	switch o.Kind {
	case KindExecuted:
		return decision.StatusExecuted
	case KindFailed:
		return decision.StatusFailed
	default:
		return decision.StatusSkipped
	}
}
