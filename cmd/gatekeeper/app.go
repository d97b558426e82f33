package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"mercator-hq/gatekeeper/pkg/audit"
	"mercator-hq/gatekeeper/pkg/audit/recorder"
	"mercator-hq/gatekeeper/pkg/audit/retention"
	"mercator-hq/gatekeeper/pkg/audit/storage"
	"mercator-hq/gatekeeper/pkg/collaborator"
	"mercator-hq/gatekeeper/pkg/config"
	"mercator-hq/gatekeeper/pkg/decision"
	"mercator-hq/gatekeeper/pkg/orchestrator"
	"mercator-hq/gatekeeper/pkg/rules/source"
	"mercator-hq/gatekeeper/pkg/synthesis"
	"mercator-hq/gatekeeper/pkg/telemetry/health"
	"mercator-hq/gatekeeper/pkg/telemetry/metrics"
	"mercator-hq/gatekeeper/pkg/validator"
)

// app holds the components assembled from one configuration.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	metrics *metrics.Collector
	health  *health.Checker

	rules    source.Result
	rulesErr error

	collaborators []*collaborator.HTTPCollaborator
	orchestrator  *orchestrator.Orchestrator

	storage  audit.Storage
	recorder *recorder.Recorder

	closers []func() error
}

// newApp wires the rule engine, collaborators, audit store, and
// orchestrator. The audit recorder is attached only when audit is enabled.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &app{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics.NewCollector(&cfg.Telemetry.Metrics, nil),
		health:  health.New(cfg.Telemetry.Health.CheckTimeout),
	}

	v, err := a.loadRules(ctx)
	if err != nil {
		return nil, err
	}

	registry, err := a.buildRegistry()
	if err != nil {
		return nil, err
	}

	opts := []orchestrator.Option{
		orchestrator.WithConfig(orchestratorConfig(&cfg.Orchestrator)),
		orchestrator.WithLogger(logger),
		orchestrator.WithMetrics(a.metrics),
	}

	if cfg.Audit.Enabled {
		if err := a.openAudit(); err != nil {
			a.Close()
			return nil, err
		}
		opts = append(opts, orchestrator.WithAuditSink(a.recorder))
	}

	a.orchestrator, err = orchestrator.New(v, registry, opts...)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create orchestrator: %w", err)
	}
	return a, nil
}

// loadRules loads the configured rule source. In strict mode a failed source
// yields a validator that denies every action.
func (a *app) loadRules(ctx context.Context) (validator.Validator, error) {
	src, err := ruleSource(&a.cfg.Rules, a.logger)
	if err != nil {
		return nil, err
	}

	a.rules, a.rulesErr = source.LoadWithFallback(ctx, src, a.cfg.Rules.Strict, a.logger)
	a.health.RegisterCheck("rules", health.RulesCheck(a.rules, a.rulesErr))

	if a.rulesErr != nil {
		a.metrics.SetRuleSet("unavailable", 0, false)
		return validator.NewFailClosed(a.rulesErr, a.logger), nil
	}
	rs := a.rules.RuleSet
	a.metrics.SetRuleSet(rs.Version(), rs.Len(), a.rules.Fallback)
	return validator.New(rs, a.logger), nil
}

// ruleSource returns nil for the builtin source.
func ruleSource(cfg *config.RulesConfig, logger *slog.Logger) (source.Source, error) {
	switch cfg.Source {
	case "", "builtin":
		return nil, nil
	case "file":
		return source.NewFileSource(cfg.Path, logger), nil
	case "git":
		src, err := source.NewGitSource(&cfg.Git, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create git rule source: %w", err)
		}
		return src, nil
	default:
		return nil, fmt.Errorf("unknown rule source %q", cfg.Source)
	}
}

func (a *app) buildRegistry() (*collaborator.Registry, error) {
	var opts []collaborator.Option
	add := func(name string, cc config.CollaboratorConfig, register func(*collaborator.HTTPCollaborator) collaborator.Option) error {
		if !cc.Enabled {
			return nil
		}
		c, err := collaborator.NewHTTPCollaborator(collaborator.HTTPConfig{
			Name:     name,
			Endpoint: cc.Endpoint,
			Timeout:  cc.Timeout,
			Headers:  cc.Headers,
		}, nil, a.logger)
		if err != nil {
			return fmt.Errorf("failed to create %s collaborator: %w", name, err)
		}
		opts = append(opts, register(c))
		a.collaborators = append(a.collaborators, c)
		a.health.RegisterCheck("collaborator_"+name, health.CollaboratorCheck(c))
		return nil
	}

	cc := &a.cfg.Collaborators
	if err := add("context", cc.Context, func(c *collaborator.HTTPCollaborator) collaborator.Option {
		return collaborator.WithContextAssessor(c)
	}); err != nil {
		return nil, err
	}
	if err := add("truth", cc.Truth, func(c *collaborator.HTTPCollaborator) collaborator.Option {
		return collaborator.WithTruthVerifier(c)
	}); err != nil {
		return nil, err
	}
	if err := add("risk", cc.Risk, func(c *collaborator.HTTPCollaborator) collaborator.Option {
		return collaborator.WithRiskAssessor(c)
	}); err != nil {
		return nil, err
	}
	return collaborator.NewRegistry(opts...), nil
}

func (a *app) openAudit() error {
	store, err := openStorage(&a.cfg.Audit)
	if err != nil {
		return err
	}
	a.storage = store
	a.closers = append(a.closers, store.Close)
	a.health.RegisterCheck("audit_storage", health.StorageCheck(store))

	rc := a.cfg.Audit.Recorder
	a.recorder = recorder.NewRecorder(store, &recorder.Config{
		BufferSize:     rc.BufferSize,
		WriteTimeout:   rc.WriteTimeout,
		RedactKeys:     rc.RedactKeys,
		MaxFieldLength: rc.MaxFieldLength,
	})
	// The recorder drains into the store, so it closes first.
	a.closers = append(a.closers, a.recorder.Close)

	a.metrics.WatchRecorder(func() metrics.RecorderStats {
		s := a.recorder.Stats()
		return metrics.RecorderStats{
			Written: s.Written,
			Failed:  s.Failed,
			Dropped: s.Dropped,
			Pending: s.Pending,
		}
	})
	return nil
}

// openStorage opens the configured audit backend.
func openStorage(cfg *config.AuditConfig) (audit.Storage, error) {
	sc := storage.Config{Backend: cfg.Backend}
	switch cfg.Backend {
	case storage.BackendSQLite, storage.BackendSQLitePure:
		sc.Path = cfg.SQLite.Path
		sc.MaxOpenConns = cfg.SQLite.MaxOpenConns
		sc.MaxIdleConns = cfg.SQLite.MaxIdleConns
		sc.WALMode = cfg.SQLite.WALMode
		sc.BusyTimeout = cfg.SQLite.BusyTimeout
	case storage.BackendPostgres:
		sc.DSN = cfg.Postgres.ConnectionString()
		sc.MaxOpenConns = cfg.Postgres.MaxOpenConns
		sc.MaxIdleConns = cfg.Postgres.MaxIdleConns
	}
	return storage.Open(sc)
}

// newPruner returns a retention pruner for the audit store.
func newPruner(store audit.Storage, cfg *config.RetentionConfig) *retention.Pruner {
	days := cfg.Days
	if days < 0 {
		days = 0
	}
	return retention.NewPruner(store, &retention.Config{
		RetentionDays:       days,
		PruneSchedule:       cfg.PruneSchedule,
		ArchiveBeforeDelete: cfg.ArchiveBeforeDelete,
		ArchivePath:         cfg.ArchivePath,
		MaxRecords:          cfg.MaxRecords,
	})
}

func orchestratorConfig(c *config.OrchestratorConfig) orchestrator.Config {
	s := c.Synthesis
	return orchestrator.Config{
		LevelTimeout:          c.LevelTimeout,
		FullPathBudget:        c.FullPathBudget,
		ReviewBandLow:         c.ReviewBandLow,
		ReviewBandHigh:        c.ReviewBandHigh,
		SimpleActionTypes:     c.SimpleActionTypes,
		HighStakesActionTypes: c.HighStakesActionTypes,
		MaxRulesChecked:       c.MaxRulesChecked,
		MaxParameters:         c.MaxParameters,
		ClaimKeywords:         c.ClaimKeywords,
		HistorySize:           c.HistorySize,
		Synthesis: synthesis.Config{
			Weights: map[int]float64{
				decision.LevelContext: s.ContextWeight,
				decision.LevelTruth:   s.TruthWeight,
				decision.LevelRisk:    s.RiskWeight,
			},
			ApproveThreshold:  s.ApproveThreshold,
			EscalateThreshold: s.EscalateThreshold,
			MinContextScore:   s.MinContextScore,
			MinTruthScore:     s.MinTruthScore,
			MaxRiskScore:      s.MaxRiskScore,
		},
	}
}

// watchRules starts the drift watcher for file rule sources. It returns nil
// when there is nothing to watch.
func (a *app) watchRules(ctx context.Context) (*source.DriftWatcher, error) {
	rc := a.cfg.Rules
	if !rc.Watch || rc.Source != "file" {
		return nil, nil
	}

	// #nosec G304 -- path comes from operator configuration.
	data, err := os.ReadFile(rc.Path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read rule file for watching: %w", err)
	}
	w, err := source.NewDriftWatcher(rc.Path, source.FileDigest(data), rc.WatchDebounce, a.logger)
	if err != nil {
		return nil, err
	}
	go func() {
		err := w.Watch(ctx, func(path string, changed bool) {
			if changed {
				a.metrics.RecordRuleDrift()
			}
		})
		if err != nil {
			a.logger.Error("rule drift watcher stopped", "error", err)
		}
	}()
	a.closers = append(a.closers, w.Stop)
	return w, nil
}

// Close releases components in reverse order of creation.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
