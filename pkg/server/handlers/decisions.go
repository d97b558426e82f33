package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"mercator-hq/gatekeeper/pkg/orchestrator"
	"mercator-hq/gatekeeper/pkg/server/middleware"
	"mercator-hq/gatekeeper/pkg/telemetry/logging"
)

const (
	defaultRecentLimit = 20
	maxRecentLimit     = 1000
)

// DecisionHandler serves POST /v1/decisions.
type DecisionHandler struct {
	decider      Decider
	maxBodyBytes int64
	logger       *slog.Logger
}

// NewDecisionHandler creates the decide handler. Bodies larger than
// maxBodyBytes are rejected with 413.
func NewDecisionHandler(decider Decider, maxBodyBytes int64, logger *slog.Logger) *DecisionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DecisionHandler{
		decider:      decider,
		maxBodyBytes: maxBodyBytes,
		logger:       logger.With("component", "handlers.decisions"),
	}
}

// ServeHTTP decodes the action, runs the orchestrator, and returns the full
// decision. Every verdict, including denied and error, is a 200: the status
// code reports transport success only.
func (h *DecisionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.maxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	}

	var req DecideRequest
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			middleware.WriteError(w, r, http.StatusRequestEntityTooLarge, middleware.CodeInvalidRequest,
				fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
			return
		}
		middleware.WriteError(w, r, http.StatusBadRequest, middleware.CodeInvalidRequest,
			"invalid JSON body: "+err.Error())
		return
	}
	if req.Action == nil {
		middleware.WriteError(w, r, http.StatusBadRequest, middleware.CodeInvalidRequest,
			"field \"action\" is required")
		return
	}
	for _, l := range req.ForceLevels {
		if l < 2 || l > 4 {
			middleware.WriteError(w, r, http.StatusBadRequest, middleware.CodeInvalidRequest,
				fmt.Sprintf("force_levels: level %d is not an advisory level (2-4)", l))
			return
		}
	}

	agent := req.Agent
	if agent == "" {
		agent = req.Action.Agent
	}
	if agent == "" {
		agent = r.Header.Get(middleware.AgentHeader)
	}

	ctx := logging.WithAgent(r.Context(), agent)
	ctx = logging.WithActionType(ctx, req.Action.Type)

	var opts []orchestrator.DecideOption
	if len(req.ForceLevels) > 0 {
		opts = append(opts, orchestrator.WithForcedLevels(req.ForceLevels...))
	}

	d, err := h.decider.Decide(ctx, req.Action, agent, opts...)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			middleware.WriteError(w, r, http.StatusGatewayTimeout, middleware.CodeTimeout,
				"decision did not complete before the request deadline")
			return
		}
		h.logger.WarnContext(ctx, "decision cancelled", "error", err)
		middleware.WriteError(w, r, http.StatusServiceUnavailable, middleware.CodeUnavailable,
			"decision cancelled")
		return
	}

	writeJSON(w, http.StatusOK, d)
}

// StatisticsHandler serves GET /v1/statistics.
func StatisticsHandler(decider Decider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, decider.Statistics())
	}
}

// RecentHandler serves GET /v1/decisions/recent?limit=n, newest first.
func RecentHandler(decider Decider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := defaultRecentLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 || n > maxRecentLimit {
				middleware.WriteError(w, r, http.StatusBadRequest, middleware.CodeInvalidRequest,
					fmt.Sprintf("limit must be an integer between 1 and %d", maxRecentLimit))
				return
			}
			limit = n
		}

		recent := decider.Recent(limit)
		writeJSON(w, http.StatusOK, RecentResponse{Decisions: recent, Count: len(recent)})
	}
}
