package rules

import (
	"errors"
	"strings"
	"testing"
)

const sampleDocument = `
version: "2025.11"
rules:
  - name: max_leverage
    category: trading
    value: 3
  - name: require_stop_loss
    category: trading
    value: true
  - name: trade_action_types
    category: trading
    value: [trade, buy]
    description: Trade-like action types
`

func TestParse(t *testing.T) {
	rs, err := Parse([]byte(sampleDocument), "rules.yaml")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if rs.Version() != "2025.11" {
		t.Errorf("Version() = %q", rs.Version())
	}
	if v, ok := rs.Number(MaxLeverage); !ok || v != 3 {
		t.Errorf("max_leverage = %v, %v", v, ok)
	}
	if v, ok := rs.Bool(RequireStopLoss); !ok || !v {
		t.Errorf("require_stop_loss = %v, %v", v, ok)
	}
	if !rs.Contains(TradeActionTypes, "buy") {
		t.Error("trade_action_types missing buy")
	}
	r, _ := rs.Get(TradeActionTypes)
	if r.Description != "Trade-like action types" {
		t.Errorf("Description = %q", r.Description)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"invalid yaml", "rules: [unterminated"},
		{"no rules", `version: "1"`},
		{"string scalar", "version: \"1\"\nrules:\n  - name: a\n    category: trading\n    value: high\n"},
		{"missing value", "version: \"1\"\nrules:\n  - name: a\n    category: trading\n"},
		{"map value", "version: \"1\"\nrules:\n  - name: a\n    category: trading\n    value: {x: 1}\n"},
		{"non-string list", "version: \"1\"\nrules:\n  - name: a\n    category: trading\n    value: [[1]]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc), "bad.yaml")
			if err == nil {
				t.Fatal("Parse() error = nil, want error")
			}
			var decErr *DecodeError
			if !errors.As(err, &decErr) {
				t.Errorf("error type = %T, want *DecodeError", err)
			}
		})
	}
}

func TestParse_ValidationError(t *testing.T) {
	doc := "version: \"1\"\nrules:\n  - name: a\n    category: finance\n    value: true\n"
	_, err := Parse([]byte(doc), "bad.yaml")
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("error = %v, want *ValidationError", err)
	}
}

func TestParse_WrongValueKind(t *testing.T) {
	tests := []struct {
		name    string
		rule    string
		value   string
		wantSub string
	}{
		{"ceiling as list", MaxPositionSize, "[0.10]", `rule "max_position_size" must be a number value, got list`},
		{"ceiling as bool", MaxLeverage, "true", `rule "max_leverage" must be a number value, got bool`},
		{"switch as number", RequireStopLoss, "1", `rule "require_stop_loss" must be a bool value, got number`},
		{"list as number", TradeActionTypes, "5", `rule "trade_action_types" must be a list value, got number`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := "version: \"1\"\nrules:\n  - name: " + tt.rule + "\n    category: trading\n    value: " + tt.value + "\n"
			_, err := Parse([]byte(doc), "kinds.yaml")
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("Parse() error = %v, want *ValidationError", err)
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error = %q, want substring %q", err.Error(), tt.wantSub)
			}
		})
	}
}

func TestMarshal_RoundTrip(t *testing.T) {
	rs := Default()
	data, err := Marshal(rs)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	back, err := Parse(data, "default.yaml")
	if err != nil {
		t.Fatalf("Parse(Marshal()) error = %v", err)
	}
	if back.Digest() != rs.Digest() {
		t.Error("digest changed after Marshal/Parse")
	}
}
