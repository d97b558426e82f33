package action

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Action is a single agent-proposed operation submitted for review.
// The gate never owns an Action; it only reads its structured fields.
type Action struct {
	// ID identifies the action. Assigned by Normalize when empty.
	ID string `json:"id,omitempty" yaml:"id,omitempty"`

	// Type is the action type (e.g., "trade", "query", "data_handling").
	Type string `json:"action_type" yaml:"action_type"`

	// Parameters holds the action-specific fields.
	Parameters map[string]any `json:"parameters,omitempty" yaml:"parameters,omitempty"`

	// Agent is the name of the proposing agent.
	Agent string `json:"agent,omitempty" yaml:"agent,omitempty"`

	// Description is free text supplied by the agent, used for claim detection.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Timestamp is when the action was proposed.
	Timestamp time.Time `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
}

// New creates an action with the given type and parameters.
func New(actionType string, params map[string]any) *Action {
	a := &Action{
		Type:       actionType,
		Parameters: params,
	}
	a.Normalize()
	return a
}

// UnmarshalJSON accepts both the nested form ({"parameters": {...}}) and the flat
// form, where unknown top-level keys are folded into Parameters.
func (a *Action) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := Action{Parameters: make(map[string]any)}

	for key, value := range raw {
		var err error
		switch key {
		case "id":
			err = json.Unmarshal(value, &out.ID)
		case "action_type":
			err = json.Unmarshal(value, &out.Type)
		case "type":
			if out.Type == "" {
				err = json.Unmarshal(value, &out.Type)
			}
		case "agent":
			err = json.Unmarshal(value, &out.Agent)
		case "description":
			err = json.Unmarshal(value, &out.Description)
		case "timestamp":
			err = json.Unmarshal(value, &out.Timestamp)
		case "parameters":
			// Applied after the flat keys so nested values win.
		default:
			var v any
			if err = json.Unmarshal(value, &v); err == nil {
				out.Parameters[key] = v
			}
		}
		if err != nil {
			return fmt.Errorf("action field %q: %w", key, err)
		}
	}

	if nested, ok := raw["parameters"]; ok {
		var params map[string]any
		if err := json.Unmarshal(nested, &params); err != nil {
			return fmt.Errorf("action field %q: %w", "parameters", err)
		}
		for k, v := range params {
			out.Parameters[k] = v
		}
	}

	*a = out
	return nil
}

// Normalize fills in defaults: an ID, a timestamp, an empty parameter map, and a
// description promoted from the "description" parameter.
func (a *Action) Normalize() {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now().UTC()
	}
	if a.Parameters == nil {
		a.Parameters = make(map[string]any)
	}
	if a.Description == "" {
		if desc, ok := a.Parameters["description"].(string); ok {
			a.Description = desc
		}
	}
	a.Type = strings.ToLower(strings.TrimSpace(a.Type))
}

// Clone returns a deep copy of the action's top-level fields and parameter map.
func (a *Action) Clone() *Action {
	if a == nil {
		return nil
	}
	c := *a
	c.Parameters = cloneMap(a.Parameters)
	return &c
}

// Has reports whether the parameter key is present, even if its value is nil.
func (a *Action) Has(key string) bool {
	_, ok := a.Parameters[key]
	return ok
}

// Get returns the raw parameter value.
func (a *Action) Get(key string) (any, bool) {
	v, ok := a.Parameters[key]
	return v, ok
}

// Float returns the parameter as a float64. The second return value is false when
// the key is absent or nil. A present but non-numeric value yields a TypeError.
func (a *Action) Float(key string) (float64, bool, error) {
	v, ok := a.Parameters[key]
	if !ok || v == nil {
		return 0, false, nil
	}
	f, err := toFloat(v)
	if err != nil {
		return 0, true, &TypeError{Key: key, Expected: "number", Value: v}
	}
	return f, true, nil
}

// Bool returns the parameter as a bool. Strings "true"/"false" are accepted.
func (a *Action) Bool(key string) (bool, bool, error) {
	v, ok := a.Parameters[key]
	if !ok || v == nil {
		return false, false, nil
	}
	switch b := v.(type) {
	case bool:
		return b, true, nil
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		if err != nil {
			return false, true, &TypeError{Key: key, Expected: "bool", Value: v}
		}
		return parsed, true, nil
	default:
		return false, true, &TypeError{Key: key, Expected: "bool", Value: v}
	}
}

// StringValue returns the parameter as a string.
func (a *Action) StringValue(key string) (string, bool) {
	v, ok := a.Parameters[key]
	if !ok || v == nil {
		return "", false
	}
	switch s := v.(type) {
	case string:
		return s, true
	case fmt.Stringer:
		return s.String(), true
	default:
		return fmt.Sprint(v), true
	}
}

// Strings returns the parameter as a list of strings. A single string is treated
// as a one-element list.
func (a *Action) Strings(key string) ([]string, bool, error) {
	v, ok := a.Parameters[key]
	if !ok || v == nil {
		return nil, false, nil
	}
	switch list := v.(type) {
	case []string:
		out := make([]string, len(list))
		copy(out, list)
		return out, true, nil
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			s, isString := item.(string)
			if !isString {
				return nil, true, &TypeError{Key: key, Expected: "list of strings", Value: v}
			}
			out = append(out, s)
		}
		return out, true, nil
	case string:
		return []string{list}, true, nil
	default:
		return nil, true, &TypeError{Key: key, Expected: "list of strings", Value: v}
	}
}

// Text returns every string-valued parameter plus the description, in stable key
// order. It is used to scan an action for claim-like language.
func (a *Action) Text() []string {
	var out []string
	if a.Description != "" {
		out = append(out, a.Description)
	}
	keys := make([]string, 0, len(a.Parameters))
	for k := range a.Parameters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if k == "description" {
			continue
		}
		if s, ok := a.Parameters[k].(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

// TypeError indicates a parameter was present with an unexpected type.
type TypeError struct {
	Key      string
	Expected string
	Value    any
}

// Error returns the error message.
func (e *TypeError) Error() string {
	return fmt.Sprintf("parameter %q: expected %s, got %T", e.Key, e.Expected, e.Value)
}

func toFloat(v any) (float64, error) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, err
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, err
		}
		f = parsed
	default:
		return 0, fmt.Errorf("not a number: %T", v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("not a finite number: %v", f)
	}
	return f, nil
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	case []string:
		out := make([]string, len(t))
		copy(out, t)
		return out
	default:
		return v
	}
}
