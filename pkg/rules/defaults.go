package rules

import "sort"

// Rule names understood by the validator.
const (
	MaxPositionSize            = "max_position_size"
	MaxLeverage                = "max_leverage"
	RequireStopLoss            = "require_stop_loss"
	ProhibitMarketManipulation = "prohibit_market_manipulation"
	TradeActionTypes           = "trade_action_types"

	BorderlineRatio       = "borderline_ratio"
	MinDiversification    = "min_diversification"
	ForbiddenCombinations = "forbidden_combinations"

	RequireHumanApproval   = "require_human_approval"
	LargePositionThreshold = "large_position_threshold"
	DestructiveOperations  = "destructive_operations"

	RequireUserConsent = "require_user_consent"
	SensitiveDataTypes = "sensitive_data_types"

	ProhibitDeception = "prohibit_deception"

	ProhibitSelfModification = "prohibit_self_modification"
	MaxAutonomousTransfer    = "max_autonomous_transfer"
)

// expectedKinds maps every rule the validator consults to the value kind it
// reads.
var expectedKinds = map[string]ValueKind{
	MaxPositionSize:            KindNumber,
	MaxLeverage:                KindNumber,
	RequireStopLoss:            KindBool,
	ProhibitMarketManipulation: KindBool,
	TradeActionTypes:           KindList,
	BorderlineRatio:            KindNumber,
	MinDiversification:         KindNumber,
	ForbiddenCombinations:      KindList,
	RequireHumanApproval:       KindBool,
	LargePositionThreshold:     KindNumber,
	DestructiveOperations:      KindList,
	RequireUserConsent:         KindBool,
	SensitiveDataTypes:         KindList,
	ProhibitDeception:          KindBool,
	ProhibitSelfModification:   KindBool,
	MaxAutonomousTransfer:      KindNumber,
}

// ExpectedKind returns the value kind the validator requires for name. ok is
// false for rules the validator does not read.
func ExpectedKind(name string) (kind ValueKind, ok bool) {
	kind, ok = expectedKinds[name]
	return kind, ok
}

// KnownRules returns the sorted names of every rule the validator reads.
func KnownRules() []string {
	names := make([]string, 0, len(expectedKinds))
	for name := range expectedKinds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultVersion is the version label of the compiled-in rule set.
const DefaultVersion = "builtin-1"

// DefaultRules returns the compiled-in rules used when no rule source is
// available.
func DefaultRules() []Rule {
	return []Rule{
		{Name: MaxPositionSize, Category: CategoryTrading, Value: NumberValue(0.10),
			Description: "Maximum position size as a fraction of capital"},
		{Name: MaxLeverage, Category: CategoryTrading, Value: NumberValue(2.0),
			Description: "Maximum leverage multiple"},
		{Name: RequireStopLoss, Category: CategoryTrading, Value: BoolValue(true),
			Description: "Trades must carry a usable stop-loss"},
		{Name: ProhibitMarketManipulation, Category: CategoryTrading, Value: BoolValue(true),
			Description: "Actions with manipulative intent are forbidden"},
		{Name: TradeActionTypes, Category: CategoryTrading, Value: ListValue("trade", "buy", "sell", "short", "execute_trade"),
			Description: "Action types treated as trades"},

		{Name: BorderlineRatio, Category: CategoryRiskManagement, Value: NumberValue(0.80),
			Description: "Fraction of a numeric ceiling at which a warning is raised"},
		{Name: MinDiversification, Category: CategoryRiskManagement, Value: NumberValue(3),
			Description: "Minimum number of distinct assets in a portfolio action"},
		{Name: ForbiddenCombinations, Category: CategoryRiskManagement, Value: ListValue("short+leverage", "delete+transfer", "withdraw_all+transfer"),
			Description: "Sub-action combinations that may not appear together"},

		{Name: RequireHumanApproval, Category: CategoryGovernance, Value: BoolValue(true),
			Description: "High-risk actions require prior human approval"},
		{Name: LargePositionThreshold, Category: CategoryGovernance, Value: NumberValue(0.20),
			Description: "Position size above which an unprotected trade is high-risk"},
		{Name: DestructiveOperations, Category: CategoryGovernance, Value: ListValue("delete", "overwrite", "truncate", "drop", "format", "purge"),
			Description: "File operations that are destructive without a backup"},

		{Name: RequireUserConsent, Category: CategoryPrivacy, Value: BoolValue(true),
			Description: "Data handling requires affirmative user consent"},
		{Name: SensitiveDataTypes, Category: CategoryPrivacy, Value: ListValue("pii", "health", "financial", "biometric", "credentials"),
			Description: "Data types whose mishandling is critical"},

		{Name: ProhibitDeception, Category: CategoryIntegrity, Value: BoolValue(true),
			Description: "Actions flagged as deceptive are forbidden"},

		{Name: ProhibitSelfModification, Category: CategoryAutonomy, Value: BoolValue(true),
			Description: "Agents may not modify the rule set"},
		{Name: MaxAutonomousTransfer, Category: CategoryAutonomy, Value: NumberValue(10000),
			Description: "Largest transfer an agent may make without human approval"},
	}
}

// Default returns the compiled-in rule set.
func Default() *RuleSet {
	rs, err := New(DefaultVersion, DefaultRules())
	if err != nil {
		// The compiled-in table is covered by tests.
		panic("rules: invalid compiled-in rule set: " + err.Error())
	}
	return rs
}
