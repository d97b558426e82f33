package rules

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// RuleSet is an immutable, versioned table of rules. It is safe for concurrent
// reads without synchronization. Every accessor returns a copy.
type RuleSet struct {
	version    string
	digest     string
	rules      map[string]Rule
	categories map[Category][]string
}

// New builds a RuleSet from the given rules. It rejects empty versions,
// duplicate names, unknown categories, and untyped values.
func New(version string, list []Rule) (*RuleSet, error) {
	if strings.TrimSpace(version) == "" {
		return nil, &ValidationError{Errors: []string{"rule set version cannot be empty"}}
	}

	rs := &RuleSet{
		version:    version,
		rules:      make(map[string]Rule, len(list)),
		categories: make(map[Category][]string),
	}

	var errs []string
	for _, r := range list {
		if err := r.Validate(); err != nil {
			errs = append(errs, err.Error())
			continue
		}
		if _, dup := rs.rules[r.Name]; dup {
			errs = append(errs, fmt.Sprintf("duplicate rule %q", r.Name))
			continue
		}
		rs.rules[r.Name] = r.clone()
		rs.categories[r.Category] = append(rs.categories[r.Category], r.Name)
	}
	if len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}

	for c := range rs.categories {
		sort.Strings(rs.categories[c])
	}
	rs.digest = rs.computeDigest()

	return rs, nil
}

// Version returns the rule set version label.
func (rs *RuleSet) Version() string {
	return rs.version
}

// Digest returns the SHA-256 of the canonical rule listing.
func (rs *RuleSet) Digest() string {
	return rs.digest
}

// Len returns the number of rules.
func (rs *RuleSet) Len() int {
	return len(rs.rules)
}

// Get returns a copy of the named rule.
func (rs *RuleSet) Get(name string) (Rule, bool) {
	r, ok := rs.rules[name]
	if !ok {
		return Rule{}, false
	}
	return r.clone(), true
}

// Names returns all rule names in sorted order.
func (rs *RuleSet) Names() []string {
	names := make([]string, 0, len(rs.rules))
	for name := range rs.rules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Rules returns a copy of every rule, sorted by name.
func (rs *RuleSet) Rules() []Rule {
	out := make([]Rule, 0, len(rs.rules))
	for _, name := range rs.Names() {
		out = append(out, rs.rules[name].clone())
	}
	return out
}

// Snapshot returns a name-to-rule map that shares no memory with the rule set.
func (rs *RuleSet) Snapshot() map[string]Rule {
	out := make(map[string]Rule, len(rs.rules))
	for name, r := range rs.rules {
		out[name] = r.clone()
	}
	return out
}

// Category returns the names of the rules in category c.
func (rs *RuleSet) Category(c Category) []string {
	names := rs.categories[c]
	out := make([]string, len(names))
	copy(out, names)
	return out
}

// Bool returns the boolean value of the named rule. ok is false when the rule is
// missing or not a boolean.
func (rs *RuleSet) Bool(name string) (value bool, ok bool) {
	r, found := rs.rules[name]
	if !found || r.Value.Kind != KindBool {
		return false, false
	}
	return r.Value.Bool, true
}

// Number returns the numeric value of the named rule.
func (rs *RuleSet) Number(name string) (value float64, ok bool) {
	r, found := rs.rules[name]
	if !found || r.Value.Kind != KindNumber {
		return 0, false
	}
	return r.Value.Number, true
}

// List returns a copy of the list value of the named rule.
func (rs *RuleSet) List(name string) ([]string, bool) {
	r, found := rs.rules[name]
	if !found || r.Value.Kind != KindList {
		return nil, false
	}
	out := make([]string, len(r.Value.List))
	copy(out, r.Value.List)
	return out, true
}

// Lookup returns the value of the named rule, or a *LookupError when the rule
// is missing or not of kind.
func (rs *RuleSet) Lookup(name string, kind ValueKind) (Value, error) {
	r, found := rs.rules[name]
	if !found {
		return Value{}, &LookupError{Rule: name, Want: kind}
	}
	if r.Value.Kind != kind {
		return Value{}, &LookupError{Rule: name, Want: kind, Got: r.Value.Kind}
	}
	return r.Value.clone(), nil
}

// Missing returns the sorted names of rules the validator reads that this set
// does not define.
func (rs *RuleSet) Missing() []string {
	var out []string
	for _, name := range KnownRules() {
		if _, ok := rs.rules[name]; !ok {
			out = append(out, name)
		}
	}
	return out
}

// Contains reports whether item is a member of the named list rule.
func (rs *RuleSet) Contains(name, item string) bool {
	r, found := rs.rules[name]
	if !found || r.Value.Kind != KindList {
		return false
	}
	for _, v := range r.Value.List {
		if v == item {
			return true
		}
	}
	return false
}

func (rs *RuleSet) computeDigest() string {
	h := sha256.New()
	fmt.Fprintf(h, "version=%s\n", rs.version)
	for _, name := range rs.Names() {
		r := rs.rules[name]
		fmt.Fprintf(h, "%s|%s|%s|%s\n", r.Name, r.Category, r.Value.Kind, r.Value.String())
	}
	return hex.EncodeToString(h.Sum(nil))
}
