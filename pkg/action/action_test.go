package action

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func TestUnmarshalJSON_FlatAndNestedEqual(t *testing.T) {
	flat := `{"action_type": "trade", "position_size_pct": 0.05, "leverage": 1.5, "agent": "alpha"}`
	nested := `{"action_type": "trade", "agent": "alpha", "parameters": {"position_size_pct": 0.05, "leverage": 1.5}}`

	var a, b Action
	if err := json.Unmarshal([]byte(flat), &a); err != nil {
		t.Fatalf("flat unmarshal: %v", err)
	}
	if err := json.Unmarshal([]byte(nested), &b); err != nil {
		t.Fatalf("nested unmarshal: %v", err)
	}

	if a.Type != "trade" || b.Type != "trade" {
		t.Errorf("Type = %q / %q, want trade", a.Type, b.Type)
	}
	if a.Agent != "alpha" || b.Agent != "alpha" {
		t.Errorf("Agent = %q / %q, want alpha", a.Agent, b.Agent)
	}
	if !reflect.DeepEqual(a.Parameters, b.Parameters) {
		t.Errorf("Parameters differ: flat=%v nested=%v", a.Parameters, b.Parameters)
	}
}

func TestUnmarshalJSON_NestedWins(t *testing.T) {
	data := `{"action_type": "trade", "leverage": 5, "parameters": {"leverage": 1}}`
	var a Action
	if err := json.Unmarshal([]byte(data), &a); err != nil {
		t.Fatal(err)
	}
	lev, ok, err := a.Float("leverage")
	if err != nil || !ok || lev != 1 {
		t.Errorf("Float(leverage) = %v, %v, %v; want 1, true, nil", lev, ok, err)
	}
}

func TestUnmarshalJSON_TypeAlias(t *testing.T) {
	var a Action
	if err := json.Unmarshal([]byte(`{"type": "query"}`), &a); err != nil {
		t.Fatal(err)
	}
	if a.Type != "query" {
		t.Errorf("Type = %q, want query", a.Type)
	}

	var b Action
	if err := json.Unmarshal([]byte(`{"type": "query", "action_type": "trade"}`), &b); err != nil {
		t.Fatal(err)
	}
	if b.Type != "trade" {
		t.Errorf("Type = %q, want action_type to take precedence", b.Type)
	}
}

func TestUnmarshalJSON_BadField(t *testing.T) {
	var a Action
	if err := json.Unmarshal([]byte(`{"action_type": 42}`), &a); err == nil {
		t.Error("expected error for non-string action_type")
	}
	if err := json.Unmarshal([]byte(`{"parameters": [1,2]}`), &a); err == nil {
		t.Error("expected error for non-object parameters")
	}
}

func TestNormalize(t *testing.T) {
	a := &Action{
		Type:       "  Trade ",
		Parameters: map[string]any{"description": "buy the dip"},
	}
	a.Normalize()

	if a.ID == "" {
		t.Error("ID not assigned")
	}
	if a.Timestamp.IsZero() {
		t.Error("Timestamp not assigned")
	}
	if a.Type != "trade" {
		t.Errorf("Type = %q, want trade", a.Type)
	}
	if a.Description != "buy the dip" {
		t.Errorf("Description = %q, want promoted parameter", a.Description)
	}

	id := a.ID
	a.Normalize()
	if a.ID != id {
		t.Error("Normalize replaced an existing ID")
	}
}

func TestFloat(t *testing.T) {
	a := New("trade", map[string]any{
		"f":      0.25,
		"i":      3,
		"num":    json.Number("1.5"),
		"str":    "2.5",
		"bad":    "lots",
		"nil":    nil,
		"bool":   true,
		"nanstr": "NaN",
	})

	tests := []struct {
		key     string
		want    float64
		present bool
		wantErr bool
	}{
		{"f", 0.25, true, false},
		{"i", 3, true, false},
		{"num", 1.5, true, false},
		{"str", 2.5, true, false},
		{"bad", 0, true, true},
		{"bool", 0, true, true},
		{"nanstr", 0, true, true},
		{"nil", 0, false, false},
		{"missing", 0, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, present, err := a.Float(tt.key)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Float(%q) error = %v, wantErr %v", tt.key, err, tt.wantErr)
			}
			if present != tt.present {
				t.Errorf("Float(%q) present = %v, want %v", tt.key, present, tt.present)
			}
			if got != tt.want {
				t.Errorf("Float(%q) = %v, want %v", tt.key, got, tt.want)
			}
			if err != nil {
				var typeErr *TypeError
				if !errors.As(err, &typeErr) {
					t.Errorf("error type = %T, want *TypeError", err)
				} else if typeErr.Key != tt.key {
					t.Errorf("TypeError.Key = %q, want %q", typeErr.Key, tt.key)
				}
			}
		})
	}
}

func TestBoolAndStrings(t *testing.T) {
	a := New("data_handling", map[string]any{
		"yes":    true,
		"str":    "false",
		"num":    1,
		"assets": []any{"BTC", "ETH"},
		"single": "BTC",
		"mixed":  []any{"BTC", 3},
	})

	if v, ok, err := a.Bool("yes"); !v || !ok || err != nil {
		t.Errorf("Bool(yes) = %v, %v, %v", v, ok, err)
	}
	if v, ok, err := a.Bool("str"); v || !ok || err != nil {
		t.Errorf("Bool(str) = %v, %v, %v", v, ok, err)
	}
	if _, ok, err := a.Bool("num"); !ok || err == nil {
		t.Errorf("Bool(num) should be present with TypeError, got ok=%v err=%v", ok, err)
	}
	if _, ok, _ := a.Bool("missing"); ok {
		t.Error("Bool(missing) reported present")
	}

	if list, ok, err := a.Strings("assets"); !ok || err != nil || !reflect.DeepEqual(list, []string{"BTC", "ETH"}) {
		t.Errorf("Strings(assets) = %v, %v, %v", list, ok, err)
	}
	if list, _, _ := a.Strings("single"); !reflect.DeepEqual(list, []string{"BTC"}) {
		t.Errorf("Strings(single) = %v", list)
	}
	if _, _, err := a.Strings("mixed"); err == nil {
		t.Error("Strings(mixed) expected TypeError")
	}
}

func TestClone_Independent(t *testing.T) {
	a := New("portfolio", map[string]any{
		"assets": []any{"BTC"},
		"meta":   map[string]any{"k": "v"},
	})
	c := a.Clone()

	c.Parameters["assets"].([]any)[0] = "DOGE"
	c.Parameters["meta"].(map[string]any)["k"] = "changed"
	c.Parameters["new"] = 1

	if a.Parameters["assets"].([]any)[0] != "BTC" {
		t.Error("Clone shares list memory")
	}
	if a.Parameters["meta"].(map[string]any)["k"] != "v" {
		t.Error("Clone shares nested map memory")
	}
	if a.Has("new") {
		t.Error("Clone shares parameter map")
	}
}

func TestText(t *testing.T) {
	a := New("report", map[string]any{
		"b":           "second",
		"a":           "first",
		"n":           3,
		"description": "summary",
	})
	got := a.Text()
	want := []string{"summary", "first", "second"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Text() = %v, want %v", got, want)
	}
}
