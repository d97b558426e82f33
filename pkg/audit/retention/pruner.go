package retention

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"mercator-hq/gatekeeper/pkg/audit"
	"mercator-hq/gatekeeper/pkg/audit/export"
)

// Config contains configuration for the retention pruner.
type Config struct {
	// RetentionDays is how long records are kept. 0 keeps them forever.
	RetentionDays int

	// PruneSchedule is a cron expression, e.g. "0 3 * * *" (daily at 3 AM).
	// Empty disables scheduled pruning.
	PruneSchedule string

	// ArchiveBeforeDelete writes records to ArchivePath as JSON before they
	// are deleted.
	ArchiveBeforeDelete bool

	// ArchivePath is the directory for archive files.
	ArchivePath string

	// MaxRecords caps the number of stored records. 0 means unlimited.
	MaxRecords int64
}

// DefaultConfig returns the default retention configuration.
func DefaultConfig() *Config {
	return &Config{
		RetentionDays: 90,
		PruneSchedule: "0 3 * * *",
		ArchivePath:   "data/archives/",
	}
}

// Pruner enforces retention on an audit store.
type Pruner struct {
	storage   audit.Storage
	config    *Config
	logger    *slog.Logger
	scheduler *Scheduler
	now       func() time.Time
}

// NewPruner creates a pruner for storage.
func NewPruner(storage audit.Storage, config *Config) *Pruner {
	if config == nil {
		config = DefaultConfig()
	}
	p := &Pruner{
		storage: storage,
		config:  config,
		logger:  slog.Default().With("component", "audit.retention"),
		now:     time.Now,
	}
	p.scheduler = NewScheduler(p)
	return p
}

// Prune deletes records older than RetentionDays, then the oldest records
// beyond MaxRecords. It returns the total number deleted.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	var total int64

	if p.config.RetentionDays > 0 {
		deleted, err := p.pruneByAge(ctx)
		if err != nil {
			return total, fmt.Errorf("prune by age failed: %w", err)
		}
		total += deleted
	}

	if p.config.MaxRecords > 0 {
		deleted, err := p.pruneByCount(ctx)
		if err != nil {
			return total, fmt.Errorf("prune by count failed: %w", err)
		}
		total += deleted
	}

	if total > 0 {
		p.logger.Info("audit pruning completed",
			"total_deleted", total,
			"retention_days", p.config.RetentionDays,
			"max_records", p.config.MaxRecords,
		)
	} else {
		p.logger.Debug("no audit records pruned")
	}
	return total, nil
}

func (p *Pruner) pruneByAge(ctx context.Context) (int64, error) {
	cutoff := p.now().AddDate(0, 0, -p.config.RetentionDays)
	query := &audit.Query{EndTime: &cutoff}

	if p.config.ArchiveBeforeDelete {
		if err := p.archiveQuery(ctx, query, "age"); err != nil {
			return 0, &audit.RetentionError{RetentionDays: p.config.RetentionDays, Cause: err}
		}
	}

	deleted, err := p.storage.Delete(ctx, query)
	if err != nil {
		return 0, &audit.RetentionError{RetentionDays: p.config.RetentionDays, Cause: err}
	}
	p.logger.Debug("pruned audit records by age", "deleted_count", deleted, "cutoff", cutoff)
	return deleted, nil
}

// pruneByCount finds the newest record beyond the cap and deletes it and
// everything older. Records sharing its timestamp go too.
func (p *Pruner) pruneByCount(ctx context.Context) (int64, error) {
	count, err := p.storage.Count(ctx, &audit.Query{})
	if err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	if count <= p.config.MaxRecords {
		return 0, nil
	}

	boundary, err := p.storage.Query(ctx, &audit.Query{
		SortBy:    "decided_at",
		SortOrder: "desc",
		Offset:    int(p.config.MaxRecords),
		Limit:     1,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to find cutoff record: %w", err)
	}
	if len(boundary) == 0 {
		return 0, nil
	}

	cutoff := boundary[0].DecidedAt
	query := &audit.Query{EndTime: &cutoff}

	p.logger.Info("audit record count exceeds limit, pruning oldest",
		"current_count", count,
		"max_records", p.config.MaxRecords,
		"cutoff", cutoff,
	)

	if p.config.ArchiveBeforeDelete {
		if err := p.archiveQuery(ctx, query, "count"); err != nil {
			return 0, fmt.Errorf("archive failed: %w", err)
		}
	}

	deleted, err := p.storage.Delete(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("delete failed: %w", err)
	}
	return deleted, nil
}

// archiveQuery writes every record matching query to one JSON file, paging
// through the store.
func (p *Pruner) archiveQuery(ctx context.Context, query *audit.Query, reason string) error {
	var records []*audit.Record
	page := *query
	page.SortBy = "decided_at"
	page.SortOrder = "asc"
	page.Limit = audit.MaxQueryLimit
	for {
		batch, err := p.storage.Query(ctx, &page)
		if err != nil {
			return fmt.Errorf("failed to query records for archiving: %w", err)
		}
		records = append(records, batch...)
		if len(batch) < page.Limit {
			break
		}
		page.Offset += len(batch)
	}
	if len(records) == 0 {
		return nil
	}

	if err := os.MkdirAll(p.config.ArchivePath, 0o755); err != nil {
		return fmt.Errorf("failed to create archive directory: %w", err)
	}
	name := fmt.Sprintf("audit-%s-%s.json", reason, p.now().UTC().Format("2006-01-02-150405"))
	path := filepath.Join(p.config.ArchivePath, name)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create archive file: %w", err)
	}
	defer f.Close()

	if err := export.NewJSONExporter(true).Export(ctx, records, f); err != nil {
		return fmt.Errorf("failed to export records to archive: %w", err)
	}

	p.logger.Info("audit records archived", "archive_file", path, "record_count", len(records))
	return nil
}

// Start starts scheduled pruning.
func (p *Pruner) Start(ctx context.Context) error {
	return p.scheduler.Start(ctx)
}

// Stop stops scheduled pruning.
func (p *Pruner) Stop() {
	p.scheduler.Stop()
}

// NextPruning returns the next scheduled run, or nil.
func (p *Pruner) NextPruning() *time.Time {
	return p.scheduler.NextRun()
}
