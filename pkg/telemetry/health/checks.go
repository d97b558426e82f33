package health

import (
	"context"
	"fmt"

	"mercator-hq/gatekeeper/pkg/audit"
	"mercator-hq/gatekeeper/pkg/collaborator"
	"mercator-hq/gatekeeper/pkg/rules/source"
)

// RulesCheck reports the state of the rule engine. A fail-closed engine
// denies everything and is unhealthy; compiled-in fallback rules are
// degraded.
func RulesCheck(result source.Result, loadErr error) CheckFunc {
	return func(ctx context.Context) error {
		if loadErr != nil {
			return fmt.Errorf("rule engine failing closed: %v", loadErr)
		}
		if result.Fallback {
			return Degraded("using compiled-in rules %s: %v", result.RuleSet.Version(), result.Err)
		}
		return nil
	}
}

// StorageCheck verifies the audit store answers a count query.
func StorageCheck(storage audit.Storage) CheckFunc {
	return func(ctx context.Context) error {
		if _, err := storage.Count(ctx, &audit.Query{}); err != nil {
			return fmt.Errorf("audit storage unavailable: %w", err)
		}
		return nil
	}
}

// HealthReporter is implemented by collaborators that track their own
// request outcomes.
type HealthReporter interface {
	Name() string
	Health() collaborator.Health
}

// CollaboratorCheck reports an unhealthy collaborator as degraded. Advisory
// levels are optional, so the gatekeeper keeps serving without them.
func CollaboratorCheck(c HealthReporter) CheckFunc {
	return func(ctx context.Context) error {
		h := c.Health()
		if !h.Healthy {
			return Degraded("collaborator %s: %d consecutive failures, last error: %s",
				c.Name(), h.ConsecutiveFailures, h.LastError)
		}
		return nil
	}
}
