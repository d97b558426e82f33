package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"mercator-hq/gatekeeper/pkg/action"
	"mercator-hq/gatekeeper/pkg/audit"
	"mercator-hq/gatekeeper/pkg/collaborator"
	"mercator-hq/gatekeeper/pkg/decision"
	"mercator-hq/gatekeeper/pkg/synthesis"
	"mercator-hq/gatekeeper/pkg/telemetry/logging"
	"mercator-hq/gatekeeper/pkg/validator"
)

// MetricsRecorder receives decision telemetry.
type MetricsRecorder interface {
	RecordDecision(d *decision.Decision)
	RecordLevel(level int, status decision.Status, duration time.Duration)
	RecordAuditFailure()
}

// Orchestrator makes decisions. It is safe for concurrent use; the only shared
// mutable state is the statistics tracker.
type Orchestrator struct {
	validator validator.Validator
	registry  *collaborator.Registry
	synth     *synthesis.Synthesizer
	heuristic *heuristic
	config    Config

	sink    audit.Sink
	metrics MetricsRecorder
	logger  *slog.Logger
	stats   *stats
	now     func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithConfig replaces the default configuration.
func WithConfig(cfg Config) Option {
	return func(o *Orchestrator) { o.config = cfg }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithAuditSink sends every completed decision to sink.
func WithAuditSink(sink audit.Sink) Option {
	return func(o *Orchestrator) { o.sink = sink }
}

// WithMetrics reports decision telemetry to m.
func WithMetrics(m MetricsRecorder) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// New creates an orchestrator. v is required; a nil registry means no
// advisory collaborators.
func New(v validator.Validator, registry *collaborator.Registry, opts ...Option) (*Orchestrator, error) {
	if v == nil {
		return nil, fmt.Errorf("validator cannot be nil")
	}
	if registry == nil {
		registry = collaborator.NewRegistry()
	}

	o := &Orchestrator{
		validator: v,
		registry:  registry,
		config:    DefaultConfig(),
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}

	if err := o.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid orchestrator config: %w", err)
	}
	synth, err := synthesis.New(o.config.Synthesis)
	if err != nil {
		return nil, err
	}
	o.synth = synth
	o.heuristic = newHeuristic(o.config)
	o.stats = newStats(o.config.HistorySize)
	o.logger = o.logger.With("component", "orchestrator")

	return o, nil
}

// DecideOption adjusts a single Decide call.
type DecideOption func(*decideOptions)

type decideOptions struct {
	forced map[int]bool
}

// WithForcedLevels runs the given advisory levels regardless of the
// heuristic. Levels 1 and 5 always run; other numbers are ignored. Forcing any
// level puts the decision on the full path.
func WithForcedLevels(levels ...int) DecideOption {
	return func(o *decideOptions) {
		for _, l := range levels {
			if l >= decision.LevelContext && l <= decision.LevelRisk {
				o.forced[l] = true
			}
		}
	}
}

// Decide evaluates a and returns the decision. The only error is the caller's
// context error: a cancelled decision is neither returned, counted, nor sent
// to the audit sink.
func (o *Orchestrator) Decide(ctx context.Context, a *action.Action, agent string, opts ...DecideOption) (*decision.Decision, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	options := decideOptions{forced: make(map[int]bool)}
	for _, opt := range opts {
		opt(&options)
	}

	start := o.now()

	// The caller keeps ownership of its action.
	if a != nil {
		a = a.Clone()
		a.Normalize()
		if agent == "" {
			agent = a.Agent
		}
	}

	d := &decision.Decision{
		ID:        uuid.New().String(),
		Action:    a,
		Agent:     agent,
		Warnings:  []string{},
		Timestamp: start.UTC(),
	}
	ctx = logContext(ctx, d)

	l1Start := o.now()
	report := o.validator.Validate(a, agent)
	l1 := decision.LevelOutcome{
		Level:     decision.LevelRules,
		Name:      decision.LevelName(decision.LevelRules),
		Triggered: true,
		Executed:  true,
		Status:    decision.StatusExecuted,
		Result: map[string]any{
			"approved":         report.Approved,
			"compliance_score": report.ComplianceScore,
			"violations":       len(report.Violations),
			"warnings":         len(report.Warnings),
			"rules_checked":    len(report.RulesChecked),
			"rule_set_version": report.RuleSetVersion,
		},
		Duration: o.now().Sub(l1Start),
	}
	d.Compliance = report
	d.Warnings = append(d.Warnings, report.Warnings...)
	o.recordLevel(l1)

	switch {
	case !report.Approved:
		o.shortCircuit(d, l1, report)
	case a == nil:
		// Only a custom validator can approve a missing action.
		d.Action = &action.Action{}
		o.fullPath(ctx, d, l1, report, []string{"no action submitted"}, options.forced)
	default:
		reasons := o.heuristic.edgeReasons(a, report)
		if len(reasons) == 0 && len(options.forced) == 0 {
			o.fastPath(ctx, d, l1, report)
		} else {
			o.fullPath(ctx, d, l1, report, reasons, options.forced)
		}
	}

	if err := ctx.Err(); err != nil {
		o.logger.DebugContext(ctx, "decision abandoned by caller", "error", err)
		return nil, err
	}

	d.TotalDuration = o.now().Sub(start)
	o.finish(ctx, d)
	return d, nil
}

// logContext tags ctx with the decision's log fields. Fields already set by
// the caller are kept.
func logContext(ctx context.Context, d *decision.Decision) context.Context {
	ctx = logging.WithDecisionID(ctx, d.ID)
	if logging.GetAgent(ctx) == "" && d.Agent != "" {
		ctx = logging.WithAgent(ctx, d.Agent)
	}
	if t := d.ActionType(); t != "" && logging.GetActionType(ctx) == "" {
		ctx = logging.WithActionType(ctx, t)
	}
	return ctx
}

// shortCircuit denies on a Level 1 violation without consulting collaborators.
func (o *Orchestrator) shortCircuit(d *decision.Decision, l1 decision.LevelOutcome, report *validator.ComplianceReport) {
	names := make([]string, 0, len(report.Violations))
	for _, v := range report.Violations {
		names = append(names, fmt.Sprintf("%s (%s)", v.Rule, v.Severity))
	}

	d.Path = decision.PathShortCircuit
	d.FinalDecision = decision.VerdictDenied
	d.Confidence = 1.0
	d.ReasoningPath = append(d.ReasoningPath,
		fmt.Sprintf("L1: %d violation(s): %s", len(report.Violations), strings.Join(names, ", ")),
		"L5: denied; rule violations cannot be overridden by advisory levels",
	)
	d.Levels = []decision.LevelOutcome{l1, o.synthesisOutcome(d, 0, "rule veto")}
}

// fastPath approves on Level 1 alone.
func (o *Orchestrator) fastPath(ctx context.Context, d *decision.Decision, l1 decision.LevelOutcome, report *validator.ComplianceReport) {
	d.Path = decision.PathFast
	d.ReasoningPath = append(d.ReasoningPath,
		fmt.Sprintf("L1: approved, compliance score %.2f, %d rules checked", report.ComplianceScore, len(report.RulesChecked)),
		"fast path: no edge-case condition",
	)
	synthStart := o.now()
	o.applySynthesis(ctx, d, nil)
	d.Levels = []decision.LevelOutcome{l1, o.synthesisOutcome(d, o.now().Sub(synthStart), "")}
}

// fullPath runs the triggered advisory levels concurrently and synthesizes.
func (o *Orchestrator) fullPath(ctx context.Context, d *decision.Decision, l1 decision.LevelOutcome,
	report *validator.ComplianceReport, reasons []string, forced map[int]bool) {

	d.Path = decision.PathFull
	d.ReasoningPath = append(d.ReasoningPath,
		fmt.Sprintf("L1: approved, compliance score %.2f, %d rules checked", report.ComplianceScore, len(report.RulesChecked)))
	for _, r := range reasons {
		d.ReasoningPath = append(d.ReasoningPath, "edge case: "+r)
	}

	triggered := o.heuristic.triggers(d.Action, report)
	for level := range forced {
		if _, ok := triggered[level]; !ok {
			triggered[level] = "forced by caller"
		}
	}

	budgetCtx, cancel := context.WithTimeout(ctx, o.config.FullPathBudget)
	defer cancel()
	outcomes := o.runLevels(budgetCtx, d.Action, triggered)

	levels := []decision.LevelOutcome{l1}
	var results []synthesis.LevelResult
	for level := decision.LevelContext; level <= decision.LevelRisk; level++ {
		lo := decision.LevelOutcome{
			Level: level,
			Name:  decision.LevelName(level),
		}
		reason, isTriggered := triggered[level]
		if !isTriggered {
			lo.Status = decision.StatusSkipped
			lo.Reason = "not triggered"
			levels = append(levels, lo)
			continue
		}

		out := outcomes[level]
		lo.Status = out.Status()
		lo.Duration = out.Duration
		switch out.Kind {
		case KindExecuted:
			lo.Triggered = true
			lo.Executed = true
			lo.Reason = reason
			lo.Result = assessmentResult(out.Assessment)
			d.ReasoningPath = append(d.ReasoningPath, fmt.Sprintf("L%d: executed (%s)", level, reason))
			results = append(results, synthesis.LevelResult{
				Level:    level,
				Status:   decision.StatusExecuted,
				Scores:   out.Assessment.Scores,
				Warnings: out.Assessment.Warnings,
			})
		case KindFailed:
			lo.Triggered = true
			lo.Reason = reason
			lo.Error = out.Err.Error()
			d.Warnings = append(d.Warnings, fmt.Sprintf("level %d (%s) failed: %v", level, lo.Name, out.Err))
			d.ReasoningPath = append(d.ReasoningPath, fmt.Sprintf("L%d: failed (%s)", level, reason))
			results = append(results, synthesis.LevelResult{Level: level, Status: decision.StatusFailed})
		default:
			// A forced level stays marked as triggered even without a
			// collaborator.
			lo.Triggered = forced[level]
			lo.Reason = out.Reason
			if forced[level] {
				lo.Reason = "forced but " + out.Reason
			}
			d.ReasoningPath = append(d.ReasoningPath, fmt.Sprintf("L%d: skipped (%s)", level, out.Reason))
		}
		o.recordLevel(lo)
		levels = append(levels, lo)
	}

	synthStart := o.now()
	o.applySynthesis(ctx, d, results)
	d.Levels = append(levels, o.synthesisOutcome(d, o.now().Sub(synthStart), ""))
}

// runLevels invokes every triggered level concurrently and waits for all.
func (o *Orchestrator) runLevels(ctx context.Context, a *action.Action, triggered map[int]string) map[int]Outcome {
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results = make(map[int]Outcome, len(triggered))
	)
	for level := range triggered {
		wg.Add(1)
		go func(level int) {
			defer wg.Done()
			out := o.invoke(ctx, level, a)
			mu.Lock()
			results[level] = out
			mu.Unlock()
		}(level)
	}
	wg.Wait()
	return results
}

type callResult struct {
	assessment collaborator.Assessment
	err        error
}

// invoke calls one collaborator under the level timeout. Panics and
// collaborators that ignore their context are both contained.
func (o *Orchestrator) invoke(ctx context.Context, level int, a *action.Action) Outcome {
	start := o.now()
	name := decision.LevelName(level)

	levelCtx, cancel := context.WithTimeout(ctx, o.config.LevelTimeout)
	defer cancel()

	done := make(chan callResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- callResult{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		as, err := o.call(levelCtx, level, a.Clone())
		done <- callResult{assessment: as, err: err}
	}()

	var out Outcome
	select {
	case res := <-done:
		out = o.classify(levelCtx, level, name, res)
	case <-levelCtx.Done():
		out = Failed(o.contextFailure(ctx, levelCtx, level, name))
	}
	out.Duration = o.now().Sub(start)

	if out.Kind == KindFailed {
		o.logger.WarnContext(ctx, "advisory level failed",
			"level", level,
			"name", name,
			"error", out.Err,
			"duration_ms", out.Duration.Milliseconds(),
		)
	}
	return out
}

func (o *Orchestrator) call(ctx context.Context, level int, a *action.Action) (collaborator.Assessment, error) {
	switch level {
	case decision.LevelContext:
		return o.registry.Context().AssessContext(ctx, a)
	case decision.LevelTruth:
		return o.registry.Truth().VerifyClaims(ctx, a)
	case decision.LevelRisk:
		return o.registry.Risk().AssessRisk(ctx, a)
	default:
		return collaborator.Assessment{}, fmt.Errorf("level %d is not an advisory level", level)
	}
}

// classify turns a collaborator reply into a tagged outcome.
func (o *Orchestrator) classify(levelCtx context.Context, level int, name string, res callResult) Outcome {
	if res.err != nil {
		switch {
		case errors.Is(res.err, collaborator.ErrUnavailable):
			return Skipped("no collaborator registered")
		case errors.Is(res.err, context.DeadlineExceeded) && levelCtx.Err() != nil:
			return Failed(&collaborator.TimeoutError{Level: level, Name: name, Timeout: o.config.LevelTimeout})
		default:
			return Failed(&collaborator.CollaboratorError{Level: level, Name: name, Cause: res.err})
		}
	}

	key := scoreKey(level)
	score, ok := res.assessment.Score(key)
	if !ok {
		return Failed(&collaborator.CollaboratorError{Level: level, Name: name, Cause: fmt.Errorf("missing %s", key)})
	}
	if math.IsNaN(score) || score < 0 || score > 1 {
		return Failed(&collaborator.CollaboratorError{Level: level, Name: name, Cause: fmt.Errorf("%s %v outside [0,1]", key, score)})
	}
	return Executed(res.assessment)
}

// contextFailure describes why a level's context ended before the reply.
func (o *Orchestrator) contextFailure(parent, levelCtx context.Context, level int, name string) error {
	if parent.Err() != nil && !errors.Is(parent.Err(), context.DeadlineExceeded) {
		return &collaborator.CollaboratorError{Level: level, Name: name, Cause: parent.Err()}
	}
	timeout := o.config.LevelTimeout
	if parent.Err() != nil {
		timeout = o.config.FullPathBudget
	}
	return &collaborator.TimeoutError{Level: level, Name: name, Timeout: timeout}
}

func scoreKey(level int) string {
	switch level {
	case decision.LevelContext:
		return collaborator.ScoreContext
	case decision.LevelTruth:
		return collaborator.ScoreTruth
	default:
		return collaborator.ScoreRisk
	}
}

func assessmentResult(a collaborator.Assessment) map[string]any {
	out := make(map[string]any, len(a.Scores)+1)
	for k, v := range a.Scores {
		out[k] = v
	}
	if len(a.Warnings) > 0 {
		out["warnings"] = append([]string(nil), a.Warnings...)
	}
	return out
}

// applySynthesis runs Level 5 and writes the verdict into d. An internal
// error yields the error verdict.
func (o *Orchestrator) applySynthesis(ctx context.Context, d *decision.Decision, results []synthesis.LevelResult) {
	res, err := o.synth.Synthesize(results)
	if err != nil {
		o.logger.ErrorContext(ctx, "synthesis failed", "error", err)
		d.FinalDecision = decision.VerdictError
		d.Confidence = 0.0
		d.Warnings = append(d.Warnings, err.Error())
		d.ReasoningPath = append(d.ReasoningPath, "L5: synthesis error; treat as denied")
		return
	}
	d.FinalDecision = res.Verdict
	d.Confidence = res.Confidence
	d.Warnings = append(d.Warnings, res.Warnings...)
	d.ReasoningPath = append(d.ReasoningPath, res.Reasoning...)
}

func (o *Orchestrator) synthesisOutcome(d *decision.Decision, dur time.Duration, reason string) decision.LevelOutcome {
	lo := decision.LevelOutcome{
		Level:     decision.LevelSynthesis,
		Name:      decision.LevelName(decision.LevelSynthesis),
		Triggered: true,
		Executed:  true,
		Status:    decision.StatusExecuted,
		Result: map[string]any{
			"final_decision": string(d.FinalDecision),
			"confidence":     d.Confidence,
		},
		Reason:   reason,
		Duration: dur,
	}
	o.recordLevel(lo)
	return lo
}

func (o *Orchestrator) recordLevel(lo decision.LevelOutcome) {
	if o.metrics != nil {
		o.metrics.RecordLevel(lo.Level, lo.Status, lo.Duration)
	}
}

// finish updates statistics and metrics and hands the decision to the audit
// sink. Nothing here can change the verdict.
func (o *Orchestrator) finish(ctx context.Context, d *decision.Decision) {
	o.stats.record(d)
	if o.metrics != nil {
		o.metrics.RecordDecision(d)
	}

	o.logger.InfoContext(ctx, "decision made",
		"final_decision", d.FinalDecision,
		"confidence", d.Confidence,
		"path", d.Path,
		"warnings", len(d.Warnings),
		"duration_ms", float64(d.TotalDuration)/float64(time.Millisecond),
	)

	if o.sink == nil {
		return
	}
	if err := o.sink.Record(context.WithoutCancel(ctx), d); err != nil {
		o.stats.recordAuditFailure()
		if o.metrics != nil {
			o.metrics.RecordAuditFailure()
		}
		o.logger.ErrorContext(ctx, "failed to record decision in audit sink", "error", err)
	}
}

// Statistics returns a snapshot of the counters.
func (o *Orchestrator) Statistics() Statistics {
	return o.stats.snapshot()
}

// Recent returns up to n recent decision summaries, newest first. n <= 0
// returns the whole history.
func (o *Orchestrator) Recent(n int) []decision.Summary {
	return o.stats.latest(n)
}

// Config returns the orchestrator configuration.
func (o *Orchestrator) Config() Config {
	return o.config
}

// Registered reports which advisory levels have a collaborator, sorted by
// level.
func (o *Orchestrator) Registered() []int {
	var out []int
	for level, ok := range o.registry.Registered() {
		if ok {
			out = append(out, level)
		}
	}
	sort.Ints(out)
	return out
}
