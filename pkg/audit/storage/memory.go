package storage

import (
	"cmp"
	"context"
	"slices"
	"sort"
	"sync"

	"mercator-hq/gatekeeper/pkg/audit"
)

// defaultLimit is the page size used when a query sets no limit.
const defaultLimit = 100

// MemoryStorage implements audit.Storage in memory. Records are lost on
// restart; use it for tests and the "memory" backend.
type MemoryStorage struct {
	records map[string]*audit.Record
	mu      sync.RWMutex
}

// NewMemoryStorage creates an empty in-memory backend.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		records: make(map[string]*audit.Record),
	}
}

// Store saves a copy of record.
func (s *MemoryStorage) Store(ctx context.Context, record *audit.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[record.ID] = cloneRecord(record)
	return nil
}

// Query returns copies of the records matching q.
func (s *MemoryStorage) Query(ctx context.Context, q *audit.Query) ([]*audit.Record, error) {
	if err := audit.ValidateQuery(q); err != nil {
		return nil, err
	}

	s.mu.RLock()
	results := []*audit.Record{}
	for _, record := range s.records {
		if matchesQuery(record, q) {
			results = append(results, cloneRecord(record))
		}
	}
	s.mu.RUnlock()

	sortRecords(results, q.SortBy, q.SortOrder == "asc")

	start := q.Offset
	if start > len(results) {
		return []*audit.Record{}, nil
	}
	limit := q.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	end := start + limit
	if end > len(results) {
		end = len(results)
	}
	return results[start:end], nil
}

// Count returns the number of records matching q.
func (s *MemoryStorage) Count(ctx context.Context, q *audit.Query) (int64, error) {
	if q == nil {
		q = &audit.Query{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, record := range s.records {
		if matchesQuery(record, q) {
			count++
		}
	}
	return count, nil
}

// Delete removes the records matching q.
func (s *MemoryStorage) Delete(ctx context.Context, q *audit.Query) (int64, error) {
	if q == nil {
		q = &audit.Query{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, record := range s.records {
		if matchesQuery(record, q) {
			delete(s.records, id)
			deleted++
		}
	}
	return deleted, nil
}

// Close drops all records.
func (s *MemoryStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make(map[string]*audit.Record)
	return nil
}

// Size returns the number of stored records.
func (s *MemoryStorage) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.records)
}

func matchesQuery(r *audit.Record, q *audit.Query) bool {
	if q.StartTime != nil && r.DecidedAt.Before(*q.StartTime) {
		return false
	}
	if q.EndTime != nil && r.DecidedAt.After(*q.EndTime) {
		return false
	}
	if q.Agent != "" && r.Agent != q.Agent {
		return false
	}
	if q.ActionType != "" && r.ActionType != q.ActionType {
		return false
	}
	if q.FinalDecision != "" && r.FinalDecision != q.FinalDecision {
		return false
	}
	if q.Path != "" && r.Path != q.Path {
		return false
	}
	if q.DecisionID != "" && r.DecisionID != q.DecisionID {
		return false
	}
	if q.MinConfidence != nil && r.Confidence < *q.MinConfidence {
		return false
	}
	if q.MaxConfidence != nil && r.Confidence > *q.MaxConfidence {
		return false
	}
	return true
}

// sortRecords orders records the same way the SQL backends do, with the ID as
// tie-breaker.
func sortRecords(records []*audit.Record, sortBy string, asc bool) {
	compare := func(a, b *audit.Record) int {
		switch sortBy {
		case "confidence":
			return cmp.Compare(a.Confidence, b.Confidence)
		case "duration":
			return cmp.Compare(a.DurationMs, b.DurationMs)
		default:
			return a.DecidedAt.Compare(b.DecidedAt)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		c := compare(records[i], records[j])
		if c == 0 {
			c = cmp.Compare(records[i].ID, records[j].ID)
		}
		if asc {
			return c < 0
		}
		return c > 0
	})
}

func cloneRecord(r *audit.Record) *audit.Record {
	c := *r
	c.ExecutedLevels = slices.Clone(r.ExecutedLevels)
	c.Violations = slices.Clone(r.Violations)
	c.RulesChecked = slices.Clone(r.RulesChecked)
	c.Warnings = slices.Clone(r.Warnings)
	c.ReasoningPath = slices.Clone(r.ReasoningPath)
	return &c
}
