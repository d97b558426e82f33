package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"mercator-hq/gatekeeper/pkg/audit"
	"mercator-hq/gatekeeper/pkg/audit/export"
	"mercator-hq/gatekeeper/pkg/server/middleware"
)

// AuditResponse is the body of GET /v1/audit/records.
type AuditResponse struct {
	Records []*audit.Record `json:"records"`
	Count   int             `json:"count"`
	Total   int64           `json:"total"`
}

// AuditHandler serves queries and exports over the audit store. A nil store
// answers 503.
type AuditHandler struct {
	storage audit.Storage
	logger  *slog.Logger
}

// NewAuditHandler creates the audit handler.
func NewAuditHandler(storage audit.Storage, logger *slog.Logger) *AuditHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditHandler{storage: storage, logger: logger.With("component", "handlers.audit")}
}

// Records serves GET /v1/audit/records.
func (h *AuditHandler) Records(w http.ResponseWriter, r *http.Request) {
	if !h.available(w, r) {
		return
	}
	q, err := ParseQuery(r.URL.Query())
	if err != nil {
		middleware.WriteError(w, r, http.StatusBadRequest, middleware.CodeInvalidRequest, err.Error())
		return
	}

	records, err := h.storage.Query(r.Context(), q)
	if err != nil {
		h.queryFailed(w, r, err)
		return
	}
	total, err := h.storage.Count(r.Context(), q)
	if err != nil {
		h.queryFailed(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AuditResponse{Records: records, Count: len(records), Total: total})
}

// Export serves GET /v1/audit/export?format=json|csv with the same filters
// as Records.
func (h *AuditHandler) Export(w http.ResponseWriter, r *http.Request) {
	if !h.available(w, r) {
		return
	}
	values := r.URL.Query()
	format := values.Get("format")
	if format == "" {
		format = "json"
	}
	exporter, err := export.New(format, false)
	if err != nil {
		middleware.WriteError(w, r, http.StatusBadRequest, middleware.CodeInvalidRequest, err.Error())
		return
	}
	q, err := ParseQuery(values)
	if err != nil {
		middleware.WriteError(w, r, http.StatusBadRequest, middleware.CodeInvalidRequest, err.Error())
		return
	}

	records, err := h.storage.Query(r.Context(), q)
	if err != nil {
		h.queryFailed(w, r, err)
		return
	}

	contentType := "application/json"
	if format == "csv" {
		contentType = "text/csv"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=audit-%s.%s", time.Now().UTC().Format("20060102-150405"), format))
	if err := exporter.Export(r.Context(), records, w); err != nil {
		h.logger.ErrorContext(r.Context(), "audit export failed", "format", format, "error", err)
	}
}

func (h *AuditHandler) available(w http.ResponseWriter, r *http.Request) bool {
	if h.storage == nil {
		middleware.WriteError(w, r, http.StatusServiceUnavailable, middleware.CodeUnavailable,
			"audit storage is not enabled")
		return false
	}
	return true
}

func (h *AuditHandler) queryFailed(w http.ResponseWriter, r *http.Request, err error) {
	var qe *audit.QueryError
	if errors.As(err, &qe) {
		middleware.WriteError(w, r, http.StatusBadRequest, middleware.CodeInvalidRequest, err.Error())
		return
	}
	h.logger.ErrorContext(r.Context(), "audit query failed", "error", err)
	middleware.WriteError(w, r, http.StatusInternalServerError, middleware.CodeInternal, "audit query failed")
}

// ParseQuery builds an audit query from URL parameters: agent, action_type,
// verdict, path, decision_id, start and end (RFC 3339), min_confidence,
// max_confidence, limit, offset, sort_by, and order.
func ParseQuery(v url.Values) (*audit.Query, error) {
	q := &audit.Query{
		Agent:         v.Get("agent"),
		ActionType:    v.Get("action_type"),
		FinalDecision: v.Get("verdict"),
		Path:          v.Get("path"),
		DecisionID:    v.Get("decision_id"),
		SortBy:        v.Get("sort_by"),
		SortOrder:     v.Get("order"),
	}

	for _, p := range []struct {
		key    string
		target **time.Time
	}{{"start", &q.StartTime}, {"end", &q.EndTime}} {
		raw := v.Get(p.key)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, fmt.Errorf("%s: expected RFC 3339 time, got %q", p.key, raw)
		}
		*p.target = &t
	}

	for _, p := range []struct {
		key    string
		target **float64
	}{{"min_confidence", &q.MinConfidence}, {"max_confidence", &q.MaxConfidence}} {
		raw := v.Get(p.key)
		if raw == "" {
			continue
		}
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: expected a number, got %q", p.key, raw)
		}
		*p.target = &f
	}

	for _, p := range []struct {
		key    string
		target *int
	}{{"limit", &q.Limit}, {"offset", &q.Offset}} {
		raw := v.Get(p.key)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: expected an integer, got %q", p.key, raw)
		}
		*p.target = n
	}

	if err := audit.ValidateQuery(q); err != nil {
		return nil, err
	}
	return q, nil
}
