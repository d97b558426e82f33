package source

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"

	"mercator-hq/gatekeeper/pkg/rules"
)

// FileSource loads rules from a YAML document on disk.
type FileSource struct {
	path   string
	logger *slog.Logger
}

// NewFileSource creates a new file-based rule source.
func NewFileSource(path string, logger *slog.Logger) *FileSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileSource{
		path:   path,
		logger: logger,
	}
}

// LoadRules reads and parses the rule document.
func (s *FileSource) LoadRules(ctx context.Context) (*rules.RuleSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// #nosec G304 -- path comes from operator configuration.
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule file %q: %w", s.path, err)
	}

	rs, err := rules.Parse(data, s.path)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("loaded rule file",
		"path", s.path,
		"version", rs.Version(),
		"rule_count", rs.Len(),
		"file_digest", FileDigest(data),
	)

	return rs, nil
}

// Path returns the rule file path.
func (s *FileSource) Path() string {
	return s.path
}

// Describe returns the source location.
func (s *FileSource) Describe() string {
	return "file:" + s.path
}

// FileDigest returns the hex SHA-256 of raw file content.
func FileDigest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
