package rules

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Category groups rules by the concern they protect. The set is closed.
type Category string

const (
	CategoryTrading        Category = "trading"
	CategoryRiskManagement Category = "risk_management"
	CategoryGovernance     Category = "governance"
	CategoryPrivacy        Category = "privacy"
	CategoryIntegrity      Category = "integrity"
	CategoryAutonomy       Category = "autonomy"
)

// Categories returns every valid category in declaration order.
func Categories() []Category {
	return []Category{
		CategoryTrading,
		CategoryRiskManagement,
		CategoryGovernance,
		CategoryPrivacy,
		CategoryIntegrity,
		CategoryAutonomy,
	}
}

// Valid reports whether c is a member of the closed category set.
func (c Category) Valid() bool {
	for _, known := range Categories() {
		if c == known {
			return true
		}
	}
	return false
}

// ValueKind identifies the type carried by a rule value.
type ValueKind string

const (
	KindBool   ValueKind = "bool"
	KindNumber ValueKind = "number"
	KindList   ValueKind = "list"
)

// Value is a typed rule value: a boolean flag, a numeric threshold, or a list.
type Value struct {
	Kind   ValueKind
	Bool   bool
	Number float64
	List   []string
}

// BoolValue returns a boolean rule value.
func BoolValue(b bool) Value {
	return Value{Kind: KindBool, Bool: b}
}

// NumberValue returns a numeric rule value.
func NumberValue(n float64) Value {
	return Value{Kind: KindNumber, Number: n}
}

// ListValue returns a list rule value. The input slice is copied.
func ListValue(items ...string) Value {
	list := make([]string, len(items))
	copy(list, items)
	return Value{Kind: KindList, List: list}
}

// clone returns a copy that shares no memory with v.
func (v Value) clone() Value {
	if v.List != nil {
		list := make([]string, len(v.List))
		copy(list, v.List)
		v.List = list
	}
	return v
}

// MarshalJSON encodes the value as its native JSON form: a boolean, a
// number, or an array of strings.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindBool:
		return json.Marshal(v.Bool)
	case KindNumber:
		return json.Marshal(v.Number)
	case KindList:
		if v.List == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.List)
	default:
		return nil, fmt.Errorf("cannot encode rule value of kind %q", v.Kind)
	}
}

// String renders the value for display.
func (v Value) String() string {
	switch v.Kind {
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindNumber:
		return strconv.FormatFloat(v.Number, 'g', -1, 64)
	case KindList:
		return "[" + strings.Join(v.List, ", ") + "]"
	default:
		return "<invalid>"
	}
}

// Rule is a single named constraint. Rules are defined once and never mutated.
type Rule struct {
	Name        string   `json:"name"`
	Category    Category `json:"category"`
	Value       Value    `json:"value"`
	Description string   `json:"description,omitempty"`
}

// Validate checks that the rule is well formed.
func (r Rule) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("rule name cannot be empty")
	}
	if !r.Category.Valid() {
		return fmt.Errorf("rule %q: unknown category %q", r.Name, r.Category)
	}
	switch r.Value.Kind {
	case KindBool, KindNumber, KindList:
	default:
		return fmt.Errorf("rule %q: unknown value kind %q", r.Name, r.Value.Kind)
	}
	if want, known := ExpectedKind(r.Name); known && r.Value.Kind != want {
		return fmt.Errorf("rule %q must be a %s value, got %s", r.Name, want, r.Value.Kind)
	}
	return nil
}

func (r Rule) clone() Rule {
	r.Value = r.Value.clone()
	return r
}
