package main

import (
	"encoding/json"
	"strings"
	"testing"

	"mercator-hq/gatekeeper/pkg/cli"
	"mercator-hq/gatekeeper/pkg/rules"
)

func defaultRulesFile(t *testing.T) string {
	t.Helper()
	data, err := rules.Marshal(rules.Default())
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	return writeFile(t, "rules.yaml", string(data))
}

func TestRulesList(t *testing.T) {
	cfg := quietConfig(t, "")

	out, err := execute(t, "", "rules", "list", "-c", cfg, "-o", "csv")
	if err != nil {
		t.Fatalf("rules list error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if lines[0] != "name,category,value,description" {
		t.Errorf("header = %q", lines[0])
	}
	if got := len(lines) - 1; got != rules.Default().Len() {
		t.Errorf("listed %d rules, want %d", got, rules.Default().Len())
	}
}

func TestRulesList_Category(t *testing.T) {
	cfg := quietConfig(t, "")

	out, err := execute(t, "", "rules", "list", "-c", cfg, "-o", "json", "--category", string(rules.CategoryRiskManagement))
	if err != nil {
		t.Fatalf("rules list error = %v", err)
	}
	var listed []struct {
		Category string `json:"category"`
	}
	if err := json.Unmarshal([]byte(out), &listed); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	want := len(rules.Default().Category(rules.CategoryRiskManagement))
	if len(listed) != want {
		t.Errorf("listed %d rules, want %d", len(listed), want)
	}
	for _, r := range listed {
		if r.Category != string(rules.CategoryRiskManagement) {
			t.Errorf("category = %q", r.Category)
		}
	}

	_, err = execute(t, "", "rules", "list", "-c", cfg, "--category", "astrology")
	if cli.ExitCode(err) != cli.ExitConfigError {
		t.Errorf("unknown category error = %v", err)
	}
}

func TestRulesShow(t *testing.T) {
	cfg := quietConfig(t, "rules:\n  source: file\n  path: "+defaultRulesFile(t)+"\n")

	out, err := execute(t, "", "rules", "show", "max_leverage", "-c", cfg, "-o", "json")
	if err != nil {
		t.Fatalf("rules show error = %v", err)
	}
	if !strings.Contains(out, `"name": "max_leverage"`) {
		t.Errorf("output = %s", out)
	}

	if _, err := execute(t, "", "rules", "show", "no_such_rule", "-c", cfg); err == nil {
		t.Error("rules show of an unknown rule should fail")
	}
}

func TestRulesValidate(t *testing.T) {
	valid := defaultRulesFile(t)
	invalid := writeFile(t, "bad.yaml", "version: x\nrules:\n  - name: max_leverage\n    category: nonsense\n    value: 2\n")

	out, err := execute(t, "", "rules", "validate", valid, "-o", "json")
	if err != nil {
		t.Fatalf("rules validate error = %v", err)
	}
	var summary validationSummary
	if err := json.Unmarshal([]byte(out), &summary); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if summary.Rules != rules.Default().Len() || summary.Digest != rules.Default().Digest() {
		t.Errorf("summary = %+v", summary)
	}

	if len(summary.Missing) != 0 {
		t.Errorf("Missing = %v for the default rules", summary.Missing)
	}

	if _, err := execute(t, "", "rules", "validate", invalid); err == nil {
		t.Error("rules validate of an invalid document should fail")
	}

	mistyped := writeFile(t, "mistyped.yaml", "version: x\nrules:\n  - name: max_position_size\n    category: trading\n    value: [0.10]\n")
	if _, err := execute(t, "", "rules", "validate", mistyped); err == nil {
		t.Error("rules validate accepted a list-valued max_position_size")
	}

	partial := writeFile(t, "partial.yaml", "version: x\nrules:\n  - name: max_leverage\n    category: trading\n    value: 2\n")
	out, err = execute(t, "", "rules", "validate", partial, "-o", "json")
	if err != nil {
		t.Fatalf("rules validate partial error = %v", err)
	}
	summary = validationSummary{}
	if err := json.Unmarshal([]byte(out), &summary); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if len(summary.Missing) != len(rules.KnownRules())-1 {
		t.Errorf("Missing = %v, want every enforced rule but max_leverage", summary.Missing)
	}
}
