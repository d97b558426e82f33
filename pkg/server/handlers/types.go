package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"mercator-hq/gatekeeper/pkg/action"
	"mercator-hq/gatekeeper/pkg/decision"
	"mercator-hq/gatekeeper/pkg/orchestrator"
)

// Decider is the orchestrator surface served over HTTP.
type Decider interface {
	Decide(ctx context.Context, a *action.Action, agent string, opts ...orchestrator.DecideOption) (*decision.Decision, error)
	Statistics() orchestrator.Statistics
	Recent(n int) []decision.Summary
}

// DecideRequest is the body of POST /v1/decisions.
type DecideRequest struct {
	Action *action.Action `json:"action"`

	// Agent overrides the action's agent and the X-Agent-ID header.
	Agent string `json:"agent,omitempty"`

	// ForceLevels runs the listed advisory levels (2-4) regardless of the
	// escalation heuristic.
	ForceLevels []int `json:"force_levels,omitempty"`
}

// RecentResponse is the body of GET /v1/decisions/recent.
type RecentResponse struct {
	Decisions []decision.Summary `json:"decisions"`
	Count     int                `json:"count"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
