package validator

import (
	"fmt"
	"slices"
	"strings"

	"mercator-hq/gatekeeper/pkg/action"
	"mercator-hq/gatekeeper/pkg/rules"
)

// Action types and parameter names the checks understand.
const (
	typeDataHandling  = "data_handling"
	typeFileOperation = "file_operation"
	typeTransfer      = "transfer"

	paramPositionSize  = "position_size_pct"
	paramLeverage      = "leverage"
	paramStopLoss      = "stop_loss"
	paramManipulative  = "manipulative_intent"
	paramDeceptive     = "deceptive"
	paramHumanApproved = "human_approved"
	paramAssets        = "assets"
	paramActions       = "actions"
	paramOperation     = "operation"
	paramBackup        = "backup"
	paramUserConsent   = "user_consent"
	paramDataType      = "data_type"
	paramTarget        = "target"
	paramAmount        = "amount"
)

var ruleEditingTypes = map[string]bool{
	"modify_rules": true,
	"update_rules": true,
	"delete_rules": true,
}

// check is one entry of the engine's evaluation table.
type check struct {
	// name is the primary rule, used when reporting evaluation failures.
	name string

	// rules lists every rule the check consults.
	rules []string

	// applies reports whether the check is relevant to the action. nil means
	// every action. An error is reported like an evaluation failure.
	applies func(ev *evaluation) (bool, error)

	eval func(ev *evaluation) error
}

// evaluation carries the state of a single Validate call.
type evaluation struct {
	action  *action.Action
	rules   *rules.RuleSet
	report  *ComplianceReport
	checked map[string]struct{}
}

func (ev *evaluation) consult(names ...string) {
	for _, n := range names {
		if _, seen := ev.checked[n]; seen {
			continue
		}
		ev.checked[n] = struct{}{}
		ev.report.RulesChecked = append(ev.report.RulesChecked, n)
	}
}

func (ev *evaluation) violate(rule string, sev Severity, format string, args ...any) {
	ev.report.Violations = append(ev.report.Violations, Violation{
		Rule:     rule,
		Message:  fmt.Sprintf(format, args...),
		Severity: sev,
	})
}

func (ev *evaluation) warn(format string, args ...any) {
	ev.report.Warnings = append(ev.report.Warnings, fmt.Sprintf(format, args...))
}

// enabled returns the value of a boolean rule. A missing or mistyped rule is
// an error, never a silent "off".
func (ev *evaluation) enabled(name string) (bool, error) {
	v, err := ev.rules.Lookup(name, rules.KindBool)
	if err != nil {
		return false, err
	}
	return v.Bool, nil
}

func (ev *evaluation) number(name string) (float64, error) {
	v, err := ev.rules.Lookup(name, rules.KindNumber)
	if err != nil {
		return 0, err
	}
	return v.Number, nil
}

func (ev *evaluation) list(name string) ([]string, error) {
	v, err := ev.rules.Lookup(name, rules.KindList)
	if err != nil {
		return nil, err
	}
	return v.List, nil
}

func (ev *evaluation) isTrade() (bool, error) {
	types, err := ev.list(rules.TradeActionTypes)
	if err != nil {
		return false, err
	}
	return slices.Contains(types, ev.action.Type), nil
}

// approved reports whether the action carries an explicit human approval.
// Anything other than a literal true counts as not approved.
func (ev *evaluation) approved() bool {
	v, ok, err := ev.action.Bool(paramHumanApproved)
	return ok && err == nil && v
}

// ceiling enforces value <= limit for a numeric parameter, warning when the
// value is within the borderline ratio of the limit.
func (ev *evaluation) ceiling(param, limitRule string, sev Severity) error {
	limit, err := ev.number(limitRule)
	if err != nil {
		return err
	}
	v, present, err := ev.action.Float(param)
	if err != nil {
		return err
	}
	if !present {
		return nil
	}

	if v > limit {
		ev.violate(limitRule, sev, "%s %g exceeds maximum %g", param, v, limit)
		return nil
	}
	ratio, err := ev.number(rules.BorderlineRatio)
	if err != nil {
		return err
	}
	if ratio > 0 && limit > 0 && v >= ratio*limit {
		ev.warn("%s %g is within %.0f%% of the %s limit %g", param, v, (1-ratio)*100, limitRule, limit)
	}
	return nil
}

// defaultChecks returns the evaluation table in execution order.
func defaultChecks() []check {
	return []check{
		{
			name:    rules.MaxPositionSize,
			rules:   []string{rules.TradeActionTypes, rules.MaxPositionSize, rules.BorderlineRatio},
			applies: (*evaluation).isTrade,
			eval: func(ev *evaluation) error {
				return ev.ceiling(paramPositionSize, rules.MaxPositionSize, SeverityHigh)
			},
		},
		{
			name:    rules.MaxLeverage,
			rules:   []string{rules.MaxLeverage, rules.BorderlineRatio},
			applies: (*evaluation).isTrade,
			eval: func(ev *evaluation) error {
				return ev.ceiling(paramLeverage, rules.MaxLeverage, SeverityHigh)
			},
		},
		{
			name:    rules.RequireStopLoss,
			rules:   []string{rules.RequireStopLoss},
			applies: (*evaluation).isTrade,
			eval:    checkStopLoss,
		},
		{
			name:  rules.ProhibitMarketManipulation,
			rules: []string{rules.ProhibitMarketManipulation},
			eval: func(ev *evaluation) error {
				return ev.flag(rules.ProhibitMarketManipulation, paramManipulative,
					"action declares manipulative intent")
			},
		},
		{
			name:    rules.MinDiversification,
			rules:   []string{rules.MinDiversification},
			applies: func(ev *evaluation) (bool, error) { return ev.action.Has(paramAssets), nil },
			eval:    checkDiversification,
		},
		{
			name:    rules.ForbiddenCombinations,
			rules:   []string{rules.ForbiddenCombinations},
			applies: func(ev *evaluation) (bool, error) { return ev.action.Has(paramActions), nil },
			eval:    checkForbiddenCombinations,
		},
		{
			name:    rules.RequireHumanApproval,
			rules:   []string{rules.RequireHumanApproval, rules.LargePositionThreshold, rules.MaxLeverage},
			applies: (*evaluation).isTrade,
			eval:    checkTradeApproval,
		},
		{
			name:    rules.DestructiveOperations,
			rules:   []string{rules.RequireHumanApproval, rules.DestructiveOperations},
			applies: isFileOperation,
			eval:    checkDestructiveOperation,
		},
		{
			name:    rules.RequireUserConsent,
			rules:   []string{rules.RequireUserConsent, rules.SensitiveDataTypes},
			applies: func(ev *evaluation) (bool, error) { return ev.action.Type == typeDataHandling, nil },
			eval:    checkConsent,
		},
		{
			name:  rules.ProhibitDeception,
			rules: []string{rules.ProhibitDeception},
			eval: func(ev *evaluation) error {
				return ev.flag(rules.ProhibitDeception, paramDeceptive,
					"action is flagged as deceptive")
			},
		},
		{
			name:  rules.ProhibitSelfModification,
			rules: []string{rules.ProhibitSelfModification},
			eval:  checkSelfModification,
		},
		{
			name:    rules.MaxAutonomousTransfer,
			rules:   []string{rules.MaxAutonomousTransfer, rules.BorderlineRatio},
			applies: func(ev *evaluation) (bool, error) { return ev.action.Type == typeTransfer, nil },
			eval:    checkTransfer,
		},
	}
}

// flag raises a critical violation when a prohibition rule is on and the
// action sets param to true.
func (ev *evaluation) flag(rule, param, message string) error {
	on, err := ev.enabled(rule)
	if err != nil || !on {
		return err
	}
	v, present, err := ev.action.Bool(param)
	if err != nil {
		return err
	}
	if present && v {
		ev.violate(rule, SeverityCritical, "%s", message)
	}
	return nil
}

func checkStopLoss(ev *evaluation) error {
	on, err := ev.enabled(rules.RequireStopLoss)
	if err != nil || !on {
		return err
	}
	raw, present := ev.action.Get(paramStopLoss)
	if !present {
		ev.warn("trade has no stop_loss; downside is unbounded")
		return nil
	}
	if raw == nil {
		ev.violate(rules.RequireStopLoss, SeverityHigh, "stop_loss is null; trades must carry a stop-loss")
		return nil
	}
	v, _, err := ev.action.Float(paramStopLoss)
	if err != nil {
		return err
	}
	if v <= 0 {
		ev.violate(rules.RequireStopLoss, SeverityHigh, "stop_loss %g must be positive", v)
	}
	return nil
}

func checkDiversification(ev *evaluation) error {
	minAssets, err := ev.number(rules.MinDiversification)
	if err != nil {
		return err
	}
	assets, _, err := ev.action.Strings(paramAssets)
	if err != nil {
		return err
	}
	distinct := make(map[string]struct{}, len(assets))
	for _, a := range assets {
		distinct[strings.ToUpper(strings.TrimSpace(a))] = struct{}{}
	}
	if float64(len(distinct)) < minAssets {
		ev.violate(rules.MinDiversification, SeverityMedium,
			"portfolio holds %d distinct assets, minimum is %g", len(distinct), minAssets)
	}
	return nil
}

func checkForbiddenCombinations(ev *evaluation) error {
	combos, err := ev.list(rules.ForbiddenCombinations)
	if err != nil {
		return err
	}
	actions, _, err := ev.action.Strings(paramActions)
	if err != nil {
		return err
	}
	have := make(map[string]bool, len(actions))
	for _, a := range actions {
		have[strings.ToLower(strings.TrimSpace(a))] = true
	}

	for _, combo := range combos {
		members := strings.Split(combo, "+")
		all := len(members) > 0
		for _, m := range members {
			if !have[strings.ToLower(strings.TrimSpace(m))] {
				all = false
				break
			}
		}
		if all {
			ev.violate(rules.ForbiddenCombinations, SeverityHigh, "forbidden action combination %q", combo)
		}
	}
	return nil
}

func checkTradeApproval(ev *evaluation) error {
	on, err := ev.enabled(rules.RequireHumanApproval)
	if err != nil || !on {
		return err
	}
	threshold, err := ev.number(rules.LargePositionThreshold)
	if err != nil {
		return err
	}
	maxLev, err := ev.number(rules.MaxLeverage)
	if err != nil {
		return err
	}
	size, present, err := ev.action.Float(paramPositionSize)
	if err != nil {
		return err
	}
	if !present || size <= threshold {
		return nil
	}

	stop, hasStop := ev.action.Get(paramStopLoss)
	unprotected := !hasStop || stop == nil

	lev, hasLev, err := ev.action.Float(paramLeverage)
	if err != nil {
		return err
	}
	highLeverage := hasLev && lev > maxLev

	if (unprotected || highLeverage) && !ev.approved() {
		ev.violate(rules.RequireHumanApproval, SeverityHigh,
			"large position %g without stop-loss or with high leverage requires human approval", size)
	}
	return nil
}

func isFileOperation(ev *evaluation) (bool, error) {
	if ev.action.Type == typeFileOperation {
		return true, nil
	}
	ops, err := ev.list(rules.DestructiveOperations)
	if err != nil {
		return false, err
	}
	return slices.Contains(ops, ev.action.Type), nil
}

func checkDestructiveOperation(ev *evaluation) error {
	on, err := ev.enabled(rules.RequireHumanApproval)
	if err != nil || !on {
		return err
	}
	ops, err := ev.list(rules.DestructiveOperations)
	if err != nil {
		return err
	}
	op := ev.action.Type
	if op == typeFileOperation {
		op, _ = ev.action.StringValue(paramOperation)
		op = strings.ToLower(strings.TrimSpace(op))
	}
	if !slices.Contains(ops, op) {
		return nil
	}

	backup, _, err := ev.action.Bool(paramBackup)
	if err != nil {
		return err
	}
	if !backup && !ev.approved() {
		ev.violate(rules.RequireHumanApproval, SeverityHigh,
			"destructive operation %q without backup requires human approval", op)
	}
	return nil
}

func checkConsent(ev *evaluation) error {
	on, err := ev.enabled(rules.RequireUserConsent)
	if err != nil || !on {
		return err
	}
	sensitive, err := ev.list(rules.SensitiveDataTypes)
	if err != nil {
		return err
	}
	consent, _, err := ev.action.Bool(paramUserConsent)
	if err == nil && consent {
		return nil
	}

	dataType, _ := ev.action.StringValue(paramDataType)
	dataType = strings.ToLower(strings.TrimSpace(dataType))
	if slices.Contains(sensitive, dataType) {
		ev.violate(rules.RequireUserConsent, SeverityCritical,
			"handling sensitive %s data without user consent", dataType)
		return nil
	}
	ev.violate(rules.RequireUserConsent, SeverityHigh, "data handling without user consent")
	return nil
}

func checkSelfModification(ev *evaluation) error {
	on, err := ev.enabled(rules.ProhibitSelfModification)
	if err != nil || !on {
		return err
	}
	target, _ := ev.action.StringValue(paramTarget)
	if ruleEditingTypes[ev.action.Type] || strings.EqualFold(strings.TrimSpace(target), "rules") {
		ev.violate(rules.ProhibitSelfModification, SeverityCritical,
			"agents may not modify the rule set")
	}
	return nil
}

func checkTransfer(ev *evaluation) error {
	if ev.approved() {
		return nil
	}
	return ev.ceiling(paramAmount, rules.MaxAutonomousTransfer, SeverityHigh)
}
