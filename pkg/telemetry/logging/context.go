package logging

import (
	"context"
	"log/slog"
)

type contextKey string

const (
	// RequestIDKey is the context key for HTTP request IDs.
	RequestIDKey contextKey = "request_id"

	// AgentKey is the context key for the agent submitting an action.
	AgentKey contextKey = "agent"

	// DecisionIDKey is the context key for decision IDs.
	DecisionIDKey contextKey = "decision_id"

	// ActionTypeKey is the context key for the submitted action type.
	ActionTypeKey contextKey = "action_type"
)

// contextKeys is the order in which context fields appear in log records.
var contextKeys = []contextKey{RequestIDKey, AgentKey, DecisionIDKey, ActionTypeKey}

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	return getString(ctx, RequestIDKey)
}

// WithAgent adds an agent identifier to the context.
func WithAgent(ctx context.Context, agent string) context.Context {
	return context.WithValue(ctx, AgentKey, agent)
}

// GetAgent retrieves the agent identifier from the context.
func GetAgent(ctx context.Context) string {
	return getString(ctx, AgentKey)
}

// WithDecisionID adds a decision ID to the context.
func WithDecisionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, DecisionIDKey, id)
}

// WithActionType adds an action type to the context.
func WithActionType(ctx context.Context, actionType string) context.Context {
	return context.WithValue(ctx, ActionTypeKey, actionType)
}

// GetActionType retrieves the action type from the context.
func GetActionType(ctx context.Context) string {
	return getString(ctx, ActionTypeKey)
}

func getString(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// contextAttrs returns the log fields carried by ctx.
func contextAttrs(ctx context.Context) []slog.Attr {
	var attrs []slog.Attr
	for _, key := range contextKeys {
		if v := getString(ctx, key); v != "" {
			attrs = append(attrs, slog.String(string(key), v))
		}
	}
	return attrs
}
