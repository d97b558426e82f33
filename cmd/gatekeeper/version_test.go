package main

import (
	"encoding/json"
	"runtime"
	"strings"
	"testing"
)

func TestVersionCommand(t *testing.T) {
	origVersion, origCommit := Version, GitCommit
	Version, GitCommit = "1.2.3-test", "abc123"
	defer func() { Version, GitCommit = origVersion, origCommit }()

	out, err := execute(t, "", "version", "-o", "json")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	var info versionInfo
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if info.Version != "1.2.3-test" || info.GitCommit != "abc123" {
		t.Errorf("info = %+v", info)
	}
	if info.GoVersion != runtime.Version() {
		t.Errorf("GoVersion = %q", info.GoVersion)
	}

	out, err = execute(t, "", "version")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	if !strings.Contains(out, "1.2.3-test") || !strings.HasPrefix(out, "FIELD") {
		t.Errorf("text output = %q", out)
	}
}

func TestVersionCommand_BadFormat(t *testing.T) {
	if _, err := execute(t, "", "version", "-o", "xml"); err == nil {
		t.Error("version -o xml should fail")
	}
}

func TestCommandsRegistered(t *testing.T) {
	want := []string{"audit", "decide", "rules", "serve", "stats", "version"}
	for _, name := range want {
		cmd, _, err := rootCmd.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("command %q not registered", name)
			continue
		}
		if cmd.Short == "" {
			t.Errorf("command %q has no short description", name)
		}
	}
}
