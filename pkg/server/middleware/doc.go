// Package middleware provides the HTTP middleware used by the gatekeeper
// server: request IDs, structured access logging, panic recovery, request
// timeouts, and per-agent rate limiting.
//
// Each middleware has the shape func(http.Handler) http.Handler (or is one)
// and can be composed in any order; the server applies them as
//
//	handler = LoggingMiddleware(logger, collector)(mux)
//	handler = RequestIDMiddleware(handler)
//	handler = RecoveryMiddleware(handler)
//
// Errors are written with WriteError as
//
//	{"error": {"code": "rate_limited", "message": "...", "request_id": "..."}}
package middleware
