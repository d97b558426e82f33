package orchestrator

import (
	"fmt"
	"strings"
	"unicode"

	"mercator-hq/gatekeeper/pkg/action"
	"mercator-hq/gatekeeper/pkg/decision"
	"mercator-hq/gatekeeper/pkg/validator"
)

// heuristic classifies actions for escalation and level triggering.
type heuristic struct {
	simple        map[string]bool
	highStakes    map[string]bool
	claimKeywords []string
	bandLow       float64
	bandHigh      float64
	maxRules      int
	maxParams     int
}

func newHeuristic(cfg Config) *heuristic {
	h := &heuristic{
		simple:     toSet(cfg.SimpleActionTypes),
		highStakes: toSet(cfg.HighStakesActionTypes),
		bandLow:    cfg.ReviewBandLow,
		bandHigh:   cfg.ReviewBandHigh,
		maxRules:   cfg.MaxRulesChecked,
		maxParams:  cfg.MaxParameters,
	}
	for _, kw := range cfg.ClaimKeywords {
		if n := normalizeText(kw); n != "" {
			h.claimKeywords = append(h.claimKeywords, n)
		}
	}
	return h
}

func toSet(items []string) map[string]bool {
	out := make(map[string]bool, len(items))
	for _, s := range items {
		out[strings.ToLower(strings.TrimSpace(s))] = true
	}
	return out
}

func (h *heuristic) isSimple(actionType string) bool {
	return h.simple[actionType]
}

// isHighStakes matches the type itself or any of its word parts, so
// "execute_trade" and "delete-file" are high-stakes.
func (h *heuristic) isHighStakes(actionType string) bool {
	if h.highStakes[actionType] {
		return true
	}
	for _, part := range strings.FieldsFunc(actionType, func(r rune) bool {
		return r == '_' || r == '-' || r == '.' || r == ' '
	}) {
		if h.highStakes[part] {
			return true
		}
	}
	return false
}

// edgeReasons returns why an approved action needs more than the fast path.
// An empty result means the fast path applies.
func (h *heuristic) edgeReasons(a *action.Action, report *validator.ComplianceReport) []string {
	var reasons []string
	if n := len(report.Warnings); n > 0 {
		reasons = append(reasons, fmt.Sprintf("rule validation raised %d warning(s)", n))
	}
	if s := report.ComplianceScore; s >= h.bandLow && s <= h.bandHigh {
		reasons = append(reasons, fmt.Sprintf("compliance score %.2f in review band [%.2f, %.2f]", s, h.bandLow, h.bandHigh))
	}
	if !h.isSimple(a.Type) {
		reasons = append(reasons, fmt.Sprintf("action type %q is not on the read-only list", a.Type))
	}
	if h.isHighStakes(a.Type) {
		reasons = append(reasons, fmt.Sprintf("action type %q is high-stakes", a.Type))
	}
	if n := len(report.RulesChecked); n > h.maxRules {
		reasons = append(reasons, fmt.Sprintf("%d rules checked exceeds %d", n, h.maxRules))
	}
	return reasons
}

// triggers returns the advisory levels the heuristic selects, with a reason
// for each.
func (h *heuristic) triggers(a *action.Action, report *validator.ComplianceReport) map[int]string {
	out := make(map[int]string)

	switch {
	case a.Type == "":
		out[decision.LevelContext] = "action type is unknown"
	case !h.isSimple(a.Type):
		out[decision.LevelContext] = fmt.Sprintf("action type %q needs context review", a.Type)
	case len(a.Parameters) > h.maxParams:
		out[decision.LevelContext] = fmt.Sprintf("%d parameters exceeds %d", len(a.Parameters), h.maxParams)
	}

	if kw, ok := h.findClaim(a); ok {
		out[decision.LevelTruth] = fmt.Sprintf("claim-like language %q", kw)
	}

	switch {
	case report.HasWarnings():
		out[decision.LevelRisk] = "rule validation raised warnings"
	case h.isHighStakes(a.Type):
		out[decision.LevelRisk] = fmt.Sprintf("action type %q is high-stakes", a.Type)
	}

	return out
}

// findClaim returns the first claim keyword found in the action text. Matching
// is on whole words.
func (h *heuristic) findClaim(a *action.Action) (string, bool) {
	if len(h.claimKeywords) == 0 {
		return "", false
	}
	for _, text := range a.Text() {
		padded := " " + normalizeText(text) + " "
		for _, kw := range h.claimKeywords {
			if strings.Contains(padded, " "+kw+" ") {
				return kw, true
			}
		}
	}
	return "", false
}

// normalizeText lowercases s and collapses every run of characters other than
// letters, digits, '%' and '-' into one space.
func normalizeText(s string) string {
	var b strings.Builder
	space := true
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '%' || r == '-' {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(b.String())
}
