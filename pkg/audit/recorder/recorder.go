package recorder

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"mercator-hq/gatekeeper/pkg/audit"
	"mercator-hq/gatekeeper/pkg/decision"
)

// Config contains configuration for the audit recorder.
type Config struct {
	// BufferSize is the capacity of the async write queue.
	// Default: 1000
	BufferSize int

	// WriteTimeout bounds each storage write.
	// Default: 5 seconds
	WriteTimeout time.Duration

	// RedactKeys are parameter names whose values are hashed before storage.
	// Default: DefaultRedactKeys
	RedactKeys []string

	// MaxFieldLength truncates long string parameters. 0 disables truncation.
	// Default: 500
	MaxFieldLength int
}

// DefaultConfig returns the default recorder configuration.
func DefaultConfig() *Config {
	return &Config{
		BufferSize:     1000,
		WriteTimeout:   5 * time.Second,
		RedactKeys:     DefaultRedactKeys,
		MaxFieldLength: 500,
	}
}

// Stats counts recorder activity.
type Stats struct {
	Enqueued int64 `json:"enqueued"`
	Written  int64 `json:"written"`
	Failed   int64 `json:"failed"`
	Dropped  int64 `json:"dropped"`
	Pending  int   `json:"pending"`
}

// Recorder implements audit.Sink. Records are built synchronously and
// written by a background worker so a slow store never delays a decision.
type Recorder struct {
	storage  audit.Storage
	config   *Config
	redactor *redactor
	queue    chan *audit.Record
	done     chan struct{}
	wg       sync.WaitGroup
	logger   *slog.Logger

	mu     sync.RWMutex
	closed bool

	enqueued atomic.Int64
	written  atomic.Int64
	failed   atomic.Int64
	dropped  atomic.Int64
}

// NewRecorder creates a recorder writing to storage and starts its worker.
func NewRecorder(storage audit.Storage, config *Config) *Recorder {
	if config == nil {
		config = DefaultConfig()
	}
	if config.BufferSize <= 0 {
		config.BufferSize = 1000
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 5 * time.Second
	}
	if config.RedactKeys == nil {
		config.RedactKeys = DefaultRedactKeys
	}

	r := &Recorder{
		storage:  storage,
		config:   config,
		redactor: newRedactor(config.RedactKeys, config.MaxFieldLength),
		queue:    make(chan *audit.Record, config.BufferSize),
		done:     make(chan struct{}),
		logger:   slog.Default().With("component", "audit.recorder"),
	}

	r.wg.Add(1)
	go r.worker()

	r.logger.Info("audit recorder initialized",
		"buffer_size", config.BufferSize,
		"write_timeout", config.WriteTimeout,
	)
	return r
}

// Record converts d to an audit record and queues it. It never blocks: a
// full queue returns ErrBufferFull and a closed recorder ErrRecorderClosed.
func (r *Recorder) Record(ctx context.Context, d *decision.Decision) error {
	if d == nil {
		return &audit.RecorderError{Cause: errors.New("decision cannot be nil")}
	}
	record, err := r.Build(d)
	if err != nil {
		return &audit.RecorderError{DecisionID: d.ID, Cause: err}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return &audit.RecorderError{DecisionID: d.ID, Cause: audit.ErrRecorderClosed}
	}

	select {
	case r.queue <- record:
		r.enqueued.Add(1)
		r.logger.Debug("audit record enqueued",
			"record_id", record.ID,
			"decision_id", record.DecisionID,
		)
		return nil
	default:
		r.dropped.Add(1)
		r.logger.Error("audit queue full, dropping record",
			"decision_id", record.DecisionID,
			"capacity", r.config.BufferSize,
		)
		return &audit.RecorderError{DecisionID: d.ID, Cause: audit.ErrBufferFull}
	}
}

// Build converts a decision into a redacted, hashed audit record.
func (r *Recorder) Build(d *decision.Decision) (*audit.Record, error) {
	record := audit.FromDecision(d)
	record.ID = uuid.New().String()
	record.RecordedAt = time.Now().UTC()
	record.DecidedAt = record.DecidedAt.UTC()

	if d.Action != nil {
		redacted := *d.Action
		redacted.Parameters = r.redactor.params(d.Action.Parameters)
		redacted.Description = TruncateString(d.Action.Description, r.config.MaxFieldLength)
		data, err := json.Marshal(&redacted)
		if err != nil {
			return nil, err
		}
		record.ActionJSON = string(data)
	}

	hash, err := HashRecord(record)
	if err != nil {
		return nil, err
	}
	record.ContentHash = hash
	return record, nil
}

// Close stops accepting records, drains the queue, and waits for the worker.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.done)
	r.mu.Unlock()

	r.wg.Wait()
	r.logger.Info("audit recorder shut down",
		"written", r.written.Load(),
		"failed", r.failed.Load(),
		"dropped", r.dropped.Load(),
	)
	return nil
}

// Stats returns a snapshot of the recorder counters.
func (r *Recorder) Stats() Stats {
	return Stats{
		Enqueued: r.enqueued.Load(),
		Written:  r.written.Load(),
		Failed:   r.failed.Load(),
		Dropped:  r.dropped.Load(),
		Pending:  len(r.queue),
	}
}

func (r *Recorder) worker() {
	defer r.wg.Done()

	for {
		select {
		case record := <-r.queue:
			r.write(record)
		case <-r.done:
			r.logger.Info("draining audit queue before shutdown", "pending_count", len(r.queue))
			for {
				select {
				case record := <-r.queue:
					r.write(record)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(record *audit.Record) {
	ctx, cancel := context.WithTimeout(context.Background(), r.config.WriteTimeout)
	defer cancel()

	start := time.Now()
	if err := r.storage.Store(ctx, record); err != nil {
		r.failed.Add(1)
		r.logger.Error("failed to store audit record",
			"record_id", record.ID,
			"decision_id", record.DecisionID,
			"error", err,
		)
		return
	}
	r.written.Add(1)

	duration := time.Since(start)
	if duration > r.config.WriteTimeout/2 {
		r.logger.Warn("slow audit write",
			"record_id", record.ID,
			"duration_ms", duration.Milliseconds(),
		)
	}
}
