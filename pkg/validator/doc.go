// Package validator implements the Level 1 rule engine: a deterministic,
// side-effect free evaluation of one action against an immutable rule set.
//
// # Evaluation
//
// The engine runs a fixed, ordered table of checks. Each check declares the
// rules it consults; when a check applies to the action, those rule names are
// appended to the report's RulesChecked list. A check can record violations
// (which deny the action and lower the compliance score) or warnings (which
// never affect approval but feed the orchestrator's escalation heuristic).
//
//	eng := validator.New(rules.Default(), logger)
//	report := eng.Validate(act, "alpha-agent")
//	if !report.Approved {
//	    // deny
//	}
//
// # Scoring
//
// The compliance score starts at 1.0 and each violation subtracts its severity
// weight (LOW 0.05, MEDIUM 0.15, HIGH 0.30, CRITICAL 0.50), clamped to [0,1].
// A report is approved exactly when it has no violations, which is exactly
// when the score is 1.0.
//
// # Failure Containment
//
// A check that fails (a parameter of the wrong type, a rule the check needs
// that is missing from the rule set, or a panic) is recorded as a warning of the form "rule <name> evaluation failed: <cause>" and the
// remaining checks still run. When no rule set can be loaded at all, callers
// use NewFailClosed, which denies every action.
package validator
