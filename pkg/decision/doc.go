// Package decision defines the Decision record returned by the orchestrator.
package decision
