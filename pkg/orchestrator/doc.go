// Package orchestrator drives the five-level decision pipeline: rule
// validation, the escalation heuristic, concurrent advisory levels, and
// weighted synthesis.
//
// # Paths
//
// Every decision takes exactly one path:
//
//   - short_circuit: Level 1 found a violation. The action is denied with
//     confidence 1.0 and no collaborator is consulted.
//   - fast: Level 1 approved and no edge-case condition holds. Level 5
//     confirms the approval.
//   - full: the triggered advisory levels run concurrently, each under its
//     own timeout inside the full-path budget, and Level 5 weighs them.
//
// Forcing a level with WithForcedLevels always selects the full path.
//
//	o, err := orchestrator.New(engine, registry,
//	    orchestrator.WithConfig(cfg),
//	    orchestrator.WithAuditSink(rec),
//	)
//	d, err := o.Decide(ctx, act, "alpha", orchestrator.WithForcedLevels(4))
//
// Decide returns an error only when ctx is cancelled. Such a decision is not
// counted, logged as made, or sent to the audit sink. Log records written
// during a decision carry its decision_id, agent, and action_type.
package orchestrator
