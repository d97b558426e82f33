package source

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"

	"mercator-hq/gatekeeper/pkg/config"
	"mercator-hq/gatekeeper/pkg/rules"
)

// GitSource loads the rule document from a Git repository. The repository is
// cloned (or refreshed) once per LoadRules call; the commit SHA becomes part of
// the rule set version so audit records pin the exact rules in force.
type GitSource struct {
	config    *config.GitRulesConfig
	localPath string
	logger    *slog.Logger
}

// NewGitSource creates a Git-backed rule source.
func NewGitSource(cfg *config.GitRulesConfig, logger *slog.Logger) (*GitSource, error) {
	if cfg == nil {
		return nil, fmt.Errorf("git config cannot be nil")
	}
	if cfg.Repository == "" {
		return nil, fmt.Errorf("repository URL cannot be empty")
	}
	if cfg.Branch == "" {
		return nil, fmt.Errorf("branch cannot be empty")
	}
	if cfg.File == "" {
		return nil, fmt.Errorf("rule file path cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}

	localPath := cfg.LocalPath
	if localPath == "" {
		localPath = filepath.Join(os.TempDir(), "gatekeeper-rules")
	}

	return &GitSource{
		config:    cfg,
		localPath: localPath,
		logger:    logger,
	}, nil
}

// LoadRules syncs the repository and parses the configured rule file.
func (s *GitSource) LoadRules(ctx context.Context) (*rules.RuleSet, error) {
	auth, err := gitAuth(&s.config.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to configure git auth: %w", err)
	}

	syncCtx := ctx
	if s.config.Timeout > 0 {
		var cancel context.CancelFunc
		syncCtx, cancel = context.WithTimeout(ctx, s.config.Timeout)
		defer cancel()
	}

	repo, err := s.sync(syncCtx, auth)
	if err != nil {
		return nil, err
	}

	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to get HEAD: %w", err)
	}
	sha := head.Hash().String()

	path := filepath.Join(s.localPath, s.config.File)
	// #nosec G304 -- path is inside the operator-configured clone directory.
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule file %q at %s: %w", s.config.File, shortSHA(sha), err)
	}

	parsed, err := rules.Parse(data, path)
	if err != nil {
		return nil, err
	}

	// Pin the commit into the version label.
	rs, err := rules.New(parsed.Version()+"+git."+shortSHA(sha), parsed.Rules())
	if err != nil {
		return nil, err
	}

	s.logger.Info("loaded rules from git",
		"repository", s.config.Repository,
		"branch", s.config.Branch,
		"commit", sha,
		"version", rs.Version(),
	)
	return rs, nil
}

// Describe returns the source location.
func (s *GitSource) Describe() string {
	return fmt.Sprintf("git:%s@%s/%s", s.config.Repository, s.config.Branch, s.config.File)
}

// sync clones the repository, or opens and pulls an existing clone.
func (s *GitSource) sync(ctx context.Context, auth transport.AuthMethod) (*gogit.Repository, error) {
	gitDir := filepath.Join(s.localPath, ".git")
	if _, err := os.Stat(gitDir); err == nil {
		repo, err := gogit.PlainOpen(s.localPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open existing clone: %w", err)
		}
		worktree, err := repo.Worktree()
		if err != nil {
			return nil, fmt.Errorf("failed to get worktree: %w", err)
		}
		err = worktree.PullContext(ctx, &gogit.PullOptions{
			RemoteName:    "origin",
			ReferenceName: plumbing.NewBranchReferenceName(s.config.Branch),
			Auth:          auth,
		})
		if err != nil && err != gogit.NoErrAlreadyUpToDate {
			return nil, fmt.Errorf("failed to pull: %w", err)
		}
		return repo, nil
	}

	if err := os.MkdirAll(s.localPath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create clone directory: %w", err)
	}

	repo, err := gogit.PlainCloneContext(ctx, s.localPath, false, &gogit.CloneOptions{
		URL:           s.config.Repository,
		ReferenceName: plumbing.NewBranchReferenceName(s.config.Branch),
		SingleBranch:  true,
		Depth:         s.config.Depth,
		Auth:          auth,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to clone repository: %w", err)
	}
	return repo, nil
}

// gitAuth builds the transport auth method for the configured type.
func gitAuth(cfg *config.GitAuthConfig) (transport.AuthMethod, error) {
	switch cfg.Type {
	case "token":
		if cfg.Token == "" {
			return nil, fmt.Errorf("token auth requires non-empty token")
		}
		return &http.BasicAuth{Username: "git", Password: cfg.Token}, nil
	case "ssh":
		if cfg.SSHKeyPath == "" {
			return nil, fmt.Errorf("ssh auth requires ssh_key_path")
		}
		info, err := os.Stat(cfg.SSHKeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to access SSH key file: %w", err)
		}
		if mode := info.Mode().Perm(); mode&0o077 != 0 {
			return nil, fmt.Errorf("SSH key file permissions too open (%o), should be 0600", mode)
		}
		auth, err := ssh.NewPublicKeysFromFile("git", cfg.SSHKeyPath, cfg.SSHKeyPassphrase)
		if err != nil {
			return nil, fmt.Errorf("failed to load SSH key: %w", err)
		}
		return auth, nil
	case "none", "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown auth type: %s", cfg.Type)
	}
}

func shortSHA(sha string) string {
	if len(sha) > 12 {
		return sha[:12]
	}
	return sha
}
