package rules

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestDefault(t *testing.T) {
	rs := Default()

	if rs.Version() != DefaultVersion {
		t.Errorf("Version() = %q, want %q", rs.Version(), DefaultVersion)
	}
	if rs.Len() != len(DefaultRules()) {
		t.Errorf("Len() = %d, want %d", rs.Len(), len(DefaultRules()))
	}
	if rs.Digest() == "" {
		t.Error("Digest() is empty")
	}

	if v, ok := rs.Number(MaxLeverage); !ok || v != 2.0 {
		t.Errorf("Number(max_leverage) = %v, %v", v, ok)
	}
	if v, ok := rs.Bool(RequireStopLoss); !ok || !v {
		t.Errorf("Bool(require_stop_loss) = %v, %v", v, ok)
	}
	if !rs.Contains(TradeActionTypes, "trade") {
		t.Error("trade_action_types should contain trade")
	}
	if _, ok := rs.Number(RequireStopLoss); ok {
		t.Error("Number() on a bool rule reported ok")
	}

	for _, c := range Categories() {
		if len(rs.Category(c)) == 0 {
			t.Errorf("category %q has no rules", c)
		}
	}
}

func TestNew_Errors(t *testing.T) {
	tests := []struct {
		name    string
		version string
		rules   []Rule
		wantSub string
	}{
		{
			name:    "empty version",
			version: " ",
			rules:   DefaultRules(),
			wantSub: "version",
		},
		{
			name:    "duplicate",
			version: "v1",
			rules: []Rule{
				{Name: "a", Category: CategoryTrading, Value: BoolValue(true)},
				{Name: "a", Category: CategoryTrading, Value: BoolValue(false)},
			},
			wantSub: "duplicate",
		},
		{
			name:    "unknown category",
			version: "v1",
			rules:   []Rule{{Name: "a", Category: "finance", Value: BoolValue(true)}},
			wantSub: "unknown category",
		},
		{
			name:    "untyped value",
			version: "v1",
			rules:   []Rule{{Name: "a", Category: CategoryTrading}},
			wantSub: "value kind",
		},
		{
			name:    "mistyped known rule",
			version: "v1",
			rules:   []Rule{{Name: MaxPositionSize, Category: CategoryTrading, Value: ListValue("0.10")}},
			wantSub: "must be a number value",
		},
		{
			name:    "empty name",
			version: "v1",
			rules:   []Rule{{Category: CategoryTrading, Value: BoolValue(true)}},
			wantSub: "name cannot be empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.version, tt.rules)
			if err == nil {
				t.Fatal("New() error = nil, want error")
			}
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("error type = %T, want *ValidationError", err)
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error = %q, want substring %q", err.Error(), tt.wantSub)
			}
		})
	}
}

func TestLookupAndMissing(t *testing.T) {
	rs, err := New("partial", []Rule{
		{Name: MaxLeverage, Category: CategoryTrading, Value: NumberValue(3)},
		{Name: "house_rule", Category: CategoryGovernance, Value: BoolValue(true)},
	})
	if err != nil {
		t.Fatal(err)
	}

	v, err := rs.Lookup(MaxLeverage, KindNumber)
	if err != nil || v.Number != 3 {
		t.Errorf("Lookup(max_leverage) = %v, %v", v, err)
	}

	tests := []struct {
		name    string
		rule    string
		kind    ValueKind
		wantErr string
	}{
		{"missing", MaxPositionSize, KindNumber, `rule "max_position_size" is not defined`},
		{"wrong kind", "house_rule", KindList, `rule "house_rule" is a bool value, want list`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := rs.Lookup(tt.rule, tt.kind)
			var lErr *LookupError
			if !errors.As(err, &lErr) || lErr.Rule != tt.rule {
				t.Fatalf("Lookup() error = %v, want *LookupError for %s", err, tt.rule)
			}
			if err.Error() != tt.wantErr {
				t.Errorf("error = %q, want %q", err.Error(), tt.wantErr)
			}
		})
	}

	missing := rs.Missing()
	if len(missing) != len(KnownRules())-1 {
		t.Errorf("Missing() = %v, want every known rule except max_leverage", missing)
	}
	for _, name := range missing {
		if name == MaxLeverage {
			t.Error("Missing() lists a defined rule")
		}
	}
	if got := Default().Missing(); len(got) != 0 {
		t.Errorf("Default().Missing() = %v, want none", got)
	}
}

func TestKnownRules_MatchDefaults(t *testing.T) {
	for _, r := range DefaultRules() {
		want, ok := ExpectedKind(r.Name)
		if !ok {
			t.Errorf("default rule %q has no expected kind", r.Name)
			continue
		}
		if r.Value.Kind != want {
			t.Errorf("default rule %q is %s, expected %s", r.Name, r.Value.Kind, want)
		}
	}
	if len(KnownRules()) != len(DefaultRules()) {
		t.Errorf("KnownRules() has %d names, defaults have %d", len(KnownRules()), len(DefaultRules()))
	}
}

func TestDigest_Stable(t *testing.T) {
	a := Default()
	b := Default()
	if a.Digest() != b.Digest() {
		t.Error("digest differs for identical rule sets")
	}

	changed := DefaultRules()
	changed[0].Value = NumberValue(0.5)
	c, err := New(DefaultVersion, changed)
	if err != nil {
		t.Fatal(err)
	}
	if c.Digest() == a.Digest() {
		t.Error("digest unchanged after value change")
	}
}

func TestAccessors_ReturnCopies(t *testing.T) {
	rs := Default()

	list, _ := rs.List(TradeActionTypes)
	list[0] = "mutated"

	r, _ := rs.Get(SensitiveDataTypes)
	r.Value.List[0] = "mutated"

	snap := rs.Snapshot()
	delete(snap, MaxLeverage)

	for _, rule := range rs.Rules() {
		if rule.Value.Kind == KindList {
			rule.Value.List[0] = "mutated"
		}
	}

	names := rs.Category(CategoryTrading)
	names[0] = "mutated"

	if !rs.Contains(TradeActionTypes, "trade") {
		t.Error("List() returned shared memory")
	}
	if !rs.Contains(SensitiveDataTypes, "pii") {
		t.Error("Get() returned shared memory")
	}
	if _, ok := rs.Number(MaxLeverage); !ok {
		t.Error("Snapshot() returned shared map")
	}
	if rs.Category(CategoryTrading)[0] == "mutated" {
		t.Error("Category() returned shared slice")
	}
	if rs.Digest() != Default().Digest() {
		t.Error("rule set changed after mutating returned values")
	}
}

func TestRuleSet_ImmutabilityProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("mutating any returned list never changes the rule set", prop.ForAll(
		func(idx int, replacement string) bool {
			rs := Default()
			before := rs.Digest()

			rules := rs.Rules()
			r := rules[idx%len(rules)]
			if r.Value.Kind == KindList && len(r.Value.List) > 0 {
				r.Value.List[0] = replacement
			}
			if l, ok := rs.List(r.Name); ok && len(l) > 0 {
				l[len(l)-1] = replacement
			}
			return rs.Digest() == before && rs.computeDigest() == before
		},
		gen.IntRange(0, 1000),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}

func TestValue_MarshalJSON(t *testing.T) {
	tests := []struct {
		name  string
		value Value
		want  string
	}{
		{name: "bool", value: BoolValue(true), want: `true`},
		{name: "number", value: NumberValue(0.25), want: `0.25`},
		{name: "list", value: ListValue("a", "b"), want: `["a","b"]`},
		{name: "empty list", value: Value{Kind: KindList}, want: `[]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := json.Marshal(tt.value)
			if err != nil {
				t.Fatalf("Marshal() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("Marshal() = %s, want %s", got, tt.want)
			}
		})
	}

	if _, err := json.Marshal(Value{Kind: "matrix"}); err == nil {
		t.Error("expected error for unknown kind")
	}

	rule := Rule{Name: "max_leverage", Category: CategoryRiskManagement, Value: NumberValue(2)}
	got, _ := json.Marshal(rule)
	if string(got) != `{"name":"max_leverage","category":"risk_management","value":2}` {
		t.Errorf("Rule JSON = %s", got)
	}
}
