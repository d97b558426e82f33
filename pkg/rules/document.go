package rules

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Document is the on-disk YAML form of a rule set.
//
//	version: "2025.11"
//	rules:
//	  - name: max_leverage
//	    category: trading
//	    value: 2.0
type Document struct {
	Version string         `yaml:"version"`
	Rules   []DocumentRule `yaml:"rules"`
}

// DocumentRule is a single rule entry in a Document. Value is kept as a raw node
// so that its YAML type decides the rule's value kind.
type DocumentRule struct {
	Name        string    `yaml:"name"`
	Category    string    `yaml:"category"`
	Value       yaml.Node `yaml:"value"`
	Description string    `yaml:"description,omitempty"`
}

// Parse decodes a YAML rule document into a RuleSet. path is used in error
// messages only.
func Parse(data []byte, path string) (*RuleSet, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &DecodeError{Path: path, Cause: err}
	}
	if len(doc.Rules) == 0 {
		return nil, &DecodeError{Path: path, Cause: fmt.Errorf("document contains no rules")}
	}

	list := make([]Rule, 0, len(doc.Rules))
	for _, dr := range doc.Rules {
		value, err := decodeValue(&dr.Value)
		if err != nil {
			return nil, &DecodeError{Path: path, Cause: fmt.Errorf("rule %q: %w", dr.Name, err)}
		}
		list = append(list, Rule{
			Name:        dr.Name,
			Category:    Category(dr.Category),
			Value:       value,
			Description: dr.Description,
		})
	}

	return New(doc.Version, list)
}

// Marshal encodes a RuleSet as a YAML rule document.
func Marshal(rs *RuleSet) ([]byte, error) {
	type outRule struct {
		Name        string `yaml:"name"`
		Category    string `yaml:"category"`
		Value       any    `yaml:"value"`
		Description string `yaml:"description,omitempty"`
	}
	out := struct {
		Version string    `yaml:"version"`
		Rules   []outRule `yaml:"rules"`
	}{Version: rs.Version()}

	for _, r := range rs.Rules() {
		var v any
		switch r.Value.Kind {
		case KindBool:
			v = r.Value.Bool
		case KindNumber:
			v = r.Value.Number
		case KindList:
			v = r.Value.List
		}
		out.Rules = append(out.Rules, outRule{
			Name:        r.Name,
			Category:    string(r.Category),
			Value:       v,
			Description: r.Description,
		})
	}
	return yaml.Marshal(out)
}

func decodeValue(node *yaml.Node) (Value, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		switch node.Tag {
		case "!!bool":
			var b bool
			if err := node.Decode(&b); err != nil {
				return Value{}, err
			}
			return BoolValue(b), nil
		case "!!int", "!!float":
			var f float64
			if err := node.Decode(&f); err != nil {
				return Value{}, err
			}
			return NumberValue(f), nil
		default:
			return Value{}, fmt.Errorf("unsupported scalar value %q (tag %s)", node.Value, node.Tag)
		}
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return Value{}, fmt.Errorf("list values must be strings: %w", err)
		}
		return ListValue(list...), nil
	case 0:
		return Value{}, fmt.Errorf("missing value")
	default:
		return Value{}, fmt.Errorf("unsupported value node kind %d", node.Kind)
	}
}
