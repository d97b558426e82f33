// Package health serves liveness, readiness, and version checks.
//
// Readiness aggregates component checks: the rule engine (fail-closed is
// unhealthy, fallback rules are degraded), the audit store, and each HTTP
// collaborator (unhealthy collaborators only degrade the service because
// advisory levels are optional).
//
//	checker := health.New(2 * time.Second)
//	checker.RegisterCheck("rules", health.RulesCheck(result, loadErr))
//	checker.RegisterCheck("audit", health.StorageCheck(store))
//	health.Register(mux, checker, 20, version, commit, buildTime)
package health
