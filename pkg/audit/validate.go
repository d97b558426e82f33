package audit

import "fmt"

// MaxQueryLimit caps a single query page.
const MaxQueryLimit = 10000

var validSortFields = map[string]bool{
	"":           true,
	"decided_at": true,
	"confidence": true,
	"duration":   true,
}

// ValidateQuery checks q for out-of-range or inconsistent filters.
func ValidateQuery(q *Query) error {
	if q == nil {
		return &QueryError{Cause: fmt.Errorf("query cannot be nil")}
	}
	if q.Limit < 0 || q.Limit > MaxQueryLimit {
		return &QueryError{Query: q, Cause: fmt.Errorf("limit must be between 0 and %d", MaxQueryLimit)}
	}
	if q.Offset < 0 {
		return &QueryError{Query: q, Cause: fmt.Errorf("offset cannot be negative")}
	}
	if q.StartTime != nil && q.EndTime != nil && q.StartTime.After(*q.EndTime) {
		return &QueryError{Query: q, Cause: fmt.Errorf("start time is after end time")}
	}
	if q.MinConfidence != nil && q.MaxConfidence != nil && *q.MinConfidence > *q.MaxConfidence {
		return &QueryError{Query: q, Cause: fmt.Errorf("min confidence exceeds max confidence")}
	}
	if !validSortFields[q.SortBy] {
		return &QueryError{Query: q, Cause: fmt.Errorf("invalid sort field %q", q.SortBy)}
	}
	switch q.SortOrder {
	case "", "asc", "desc":
	default:
		return &QueryError{Query: q, Cause: fmt.Errorf("invalid sort order %q", q.SortOrder)}
	}
	return nil
}
