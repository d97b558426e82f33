package source

import (
	"context"

	"mercator-hq/gatekeeper/pkg/rules"
)

// MemorySource is an in-memory rule source for tests and embedding.
type MemorySource struct {
	ruleSet *rules.RuleSet
	err     error
}

// NewMemorySource returns a source that always yields rs.
func NewMemorySource(rs *rules.RuleSet) *MemorySource {
	return &MemorySource{ruleSet: rs}
}

// NewFailingSource returns a source that always fails with err.
func NewFailingSource(err error) *MemorySource {
	return &MemorySource{err: err}
}

// LoadRules returns the configured rule set or error.
func (s *MemorySource) LoadRules(ctx context.Context) (*rules.RuleSet, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.ruleSet, nil
}

// Describe returns the source location.
func (s *MemorySource) Describe() string {
	return "memory"
}
