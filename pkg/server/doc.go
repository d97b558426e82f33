// Package server provides the HTTP transport for the gatekeeper.
//
// The server exposes the orchestrator's public surface: deciding an action,
// reading statistics and recent history, inspecting the active rule set,
// and querying or exporting the audit log. Health checks and Prometheus
// metrics are mounted alongside.
//
// # Endpoints
//
//	POST /v1/decisions           decide an action (body: {"action": {...}, "agent": "...", "force_levels": [2,4]})
//	GET  /v1/decisions/recent    newest decision summaries (?limit=n)
//	GET  /v1/statistics          orchestrator counters
//	GET  /v1/rules               active rule set (?category=...)
//	GET  /v1/rules/{name}        one rule
//	GET  /v1/audit/records       audit query (agent, verdict, path, start, end, limit, offset, ...)
//	GET  /v1/audit/export        audit export (?format=json|csv plus query filters)
//	GET  /health, /ready         liveness and readiness
//	GET  /version                build information
//	GET  /metrics                Prometheus metrics
//
// A decision is always answered with 200 and the full decision document; the
// verdict lives in final_decision. Non-2xx codes report transport problems
// (bad body, rate limit, deadline) using a JSON error envelope.
//
// # Middleware
//
// Requests pass through, outermost first: panic recovery, request ID, access
// logging with HTTP metrics, then per-route request timeout. The decide route
// is additionally rate limited per agent (X-Agent-ID header, falling back to
// the client address) when server.rate_limit.enabled is set.
//
// # Basic Usage
//
//	srv, err := server.NewServer(&cfg.Server, server.Deps{
//	    Decider: orch,
//	    RuleSet: result.RuleSet,
//	    Storage: store,
//	    Health:  checker,
//	    Metrics: collector,
//	})
//	if err != nil {
//	    return err
//	}
//	return srv.Start(ctx)
//
// Start blocks until ctx is cancelled or Stop is called, then drains
// in-flight requests for up to server.shutdown_timeout.
package server
