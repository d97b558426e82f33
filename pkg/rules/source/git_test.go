package source

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport/http"

	"mercator-hq/gatekeeper/pkg/config"
)

// initRuleRepo creates a local repository with one committed rule file.
func initRuleRepo(t *testing.T, content string) (string, string) {
	t.Helper()
	dir := t.TempDir()

	repo, err := gogit.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("Failed to init git repo: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "rules.yaml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	worktree, err := repo.Worktree()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := worktree.Add("rules.yaml"); err != nil {
		t.Fatal(err)
	}
	hash, err := worktree.Commit("Add rules", &gogit.CommitOptions{
		Author: &object.Signature{
			Name:  "Test Author",
			Email: "test@example.com",
			When:  time.Now(),
		},
	})
	if err != nil {
		t.Fatalf("Failed to commit: %v", err)
	}
	return dir, hash.String()
}

func TestNewGitSource_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  *config.GitRulesConfig
	}{
		{"nil config", nil},
		{"no repository", &config.GitRulesConfig{Branch: "main", File: "rules.yaml"}},
		{"no branch", &config.GitRulesConfig{Repository: "x", File: "rules.yaml"}},
		{"no file", &config.GitRulesConfig{Repository: "x", Branch: "main"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewGitSource(tt.cfg, nil); err == nil {
				t.Error("NewGitSource() error = nil, want error")
			}
		})
	}
}

func TestGitSource_LoadRules(t *testing.T) {
	repoDir, sha := initRuleRepo(t, validRules)

	src, err := NewGitSource(&config.GitRulesConfig{
		Repository: repoDir,
		Branch:     "master",
		File:       "rules.yaml",
		LocalPath:  filepath.Join(t.TempDir(), "clone"),
		Timeout:    10 * time.Second,
	}, nil)
	if err != nil {
		t.Fatal(err)
	}

	rs, err := src.LoadRules(context.Background())
	if err != nil {
		t.Fatalf("LoadRules() error = %v", err)
	}
	wantVersion := "test-1+git." + sha[:12]
	if rs.Version() != wantVersion {
		t.Errorf("Version() = %q, want %q", rs.Version(), wantVersion)
	}

	// Second load reuses the existing clone.
	again, err := src.LoadRules(context.Background())
	if err != nil {
		t.Fatalf("second LoadRules() error = %v", err)
	}
	if again.Digest() != rs.Digest() {
		t.Error("digest changed between loads of the same commit")
	}

	if !strings.HasPrefix(src.Describe(), "git:") {
		t.Errorf("Describe() = %q", src.Describe())
	}
}

func TestGitSource_MissingFile(t *testing.T) {
	repoDir, _ := initRuleRepo(t, validRules)
	src, err := NewGitSource(&config.GitRulesConfig{
		Repository: repoDir,
		Branch:     "master",
		File:       "absent.yaml",
		LocalPath:  filepath.Join(t.TempDir(), "clone"),
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := src.LoadRules(context.Background()); err == nil {
		t.Error("LoadRules() error = nil for missing file")
	}
}

func TestGitAuth(t *testing.T) {
	keyDir := t.TempDir()
	openKey := filepath.Join(keyDir, "open_key")
	if err := os.WriteFile(openKey, []byte("not a key"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		cfg     config.GitAuthConfig
		wantErr bool
		wantNil bool
	}{
		{"none", config.GitAuthConfig{Type: "none"}, false, true},
		{"empty", config.GitAuthConfig{}, false, true},
		{"token", config.GitAuthConfig{Type: "token", Token: "ghp_abc"}, false, false},
		{"token empty", config.GitAuthConfig{Type: "token"}, true, true},
		{"ssh no path", config.GitAuthConfig{Type: "ssh"}, true, true},
		{"ssh missing file", config.GitAuthConfig{Type: "ssh", SSHKeyPath: filepath.Join(keyDir, "absent")}, true, true},
		{"ssh open permissions", config.GitAuthConfig{Type: "ssh", SSHKeyPath: openKey}, true, true},
		{"unknown", config.GitAuthConfig{Type: "kerberos"}, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth, err := gitAuth(&tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("gitAuth() error = %v, wantErr %v", err, tt.wantErr)
			}
			if (auth == nil) != tt.wantNil {
				t.Errorf("gitAuth() auth = %v, wantNil %v", auth, tt.wantNil)
			}
		})
	}

	auth, _ := gitAuth(&config.GitAuthConfig{Type: "token", Token: "ghp_abc"})
	basic, ok := auth.(*http.BasicAuth)
	if !ok {
		t.Fatalf("token auth type = %T, want *http.BasicAuth", auth)
	}
	if basic.Username != "git" || basic.Password != "ghp_abc" {
		t.Errorf("BasicAuth = %+v", basic)
	}
}
