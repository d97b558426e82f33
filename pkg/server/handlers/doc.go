// Package handlers implements the gatekeeper HTTP endpoints on top of a
// Decider (normally *orchestrator.Orchestrator), the active rule set, and
// the optional audit store.
package handlers
