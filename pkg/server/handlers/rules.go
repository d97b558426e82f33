package handlers

import (
	"net/http"

	"mercator-hq/gatekeeper/pkg/rules"
	"mercator-hq/gatekeeper/pkg/server/middleware"
)

// RulesResponse is the body of GET /v1/rules.
type RulesResponse struct {
	Version  string       `json:"version"`
	Digest   string       `json:"digest"`
	Fallback bool         `json:"fallback"`
	Count    int          `json:"count"`
	Rules    []rules.Rule `json:"rules"`
}

// RulesHandler serves the active rule set read-only.
type RulesHandler struct {
	ruleSet  *rules.RuleSet
	fallback bool
}

// NewRulesHandler creates a handler for rs. fallback marks a compiled-in rule
// set that replaced a failed source.
func NewRulesHandler(rs *rules.RuleSet, fallback bool) *RulesHandler {
	return &RulesHandler{ruleSet: rs, fallback: fallback}
}

// List serves GET /v1/rules. An optional ?category= filters the rules.
func (h *RulesHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.ruleSet == nil {
		middleware.WriteError(w, r, http.StatusServiceUnavailable, middleware.CodeUnavailable,
			"no rule set loaded; the engine is failing closed")
		return
	}

	list := h.ruleSet.Rules()
	if c := rules.Category(r.URL.Query().Get("category")); c != "" {
		if !c.Valid() {
			middleware.WriteError(w, r, http.StatusBadRequest, middleware.CodeInvalidRequest,
				"unknown category "+string(c))
			return
		}
		filtered := list[:0]
		for _, rule := range list {
			if rule.Category == c {
				filtered = append(filtered, rule)
			}
		}
		list = filtered
	}

	writeJSON(w, http.StatusOK, RulesResponse{
		Version:  h.ruleSet.Version(),
		Digest:   h.ruleSet.Digest(),
		Fallback: h.fallback,
		Count:    len(list),
		Rules:    list,
	})
}

// Get serves GET /v1/rules/{name}.
func (h *RulesHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h.ruleSet == nil {
		middleware.WriteError(w, r, http.StatusServiceUnavailable, middleware.CodeUnavailable,
			"no rule set loaded; the engine is failing closed")
		return
	}
	name := r.PathValue("name")
	rule, ok := h.ruleSet.Get(name)
	if !ok {
		middleware.WriteError(w, r, http.StatusNotFound, middleware.CodeNotFound, "unknown rule "+name)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}
