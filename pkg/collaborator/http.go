package collaborator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"mercator-hq/gatekeeper/pkg/action"
)

// maxResponseBytes bounds the collaborator response body.
const maxResponseBytes = 1 << 20

// HTTPConfig configures an HTTP collaborator.
type HTTPConfig struct {
	// Name identifies the collaborator in logs and errors.
	Name string

	// Endpoint receives a POST with the JSON-encoded action.
	Endpoint string

	// Timeout bounds each request. The orchestrator's level timeout also
	// applies through the request context.
	Timeout time.Duration

	// Headers are added to every request (e.g., Authorization).
	Headers map[string]string

	MaxIdleConns int
}

// Health is a snapshot of a collaborator's recent request outcomes.
type Health struct {
	Healthy             bool      `json:"healthy"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	TotalRequests       int64     `json:"total_requests"`
	FailedRequests      int64     `json:"failed_requests"`
	LastError           string    `json:"last_error,omitempty"`
	LastSuccess         time.Time `json:"last_success,omitempty"`
}

// HTTPCollaborator calls a remote advisory service over JSON/HTTP. It
// implements ContextAssessor, TruthVerifier, and RiskAssessor; the service
// answers with {"<score_key>": x, "warnings": [...]}.
type HTTPCollaborator struct {
	config HTTPConfig
	client *http.Client
	logger *slog.Logger

	healthMu sync.RWMutex
	health   Health
}

// NewHTTPCollaborator creates an HTTP collaborator. If client is nil a pooled
// client is created from cfg.
func NewHTTPCollaborator(cfg HTTPConfig, client *http.Client, logger *slog.Logger) (*HTTPCollaborator, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("collaborator endpoint cannot be empty")
	}
	if cfg.Name == "" {
		cfg.Name = cfg.Endpoint
	}
	if logger == nil {
		logger = slog.Default()
	}
	if client == nil {
		maxIdle := cfg.MaxIdleConns
		if maxIdle <= 0 {
			maxIdle = 16
		}
		client = &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        maxIdle,
				MaxIdleConnsPerHost: maxIdle,
				IdleConnTimeout:     90 * time.Second,
				ForceAttemptHTTP2:   true,
			},
			Timeout: cfg.Timeout,
		}
	}

	return &HTTPCollaborator{
		config: cfg,
		client: client,
		logger: logger.With("component", "collaborator", "collaborator", cfg.Name),
		health: Health{Healthy: true},
	}, nil
}

// Name returns the configured name.
func (c *HTTPCollaborator) Name() string {
	return c.config.Name
}

// AssessContext requests a context score.
func (c *HTTPCollaborator) AssessContext(ctx context.Context, a *action.Action) (Assessment, error) {
	return c.assess(ctx, a, ScoreContext)
}

// VerifyClaims requests a truth score.
func (c *HTTPCollaborator) VerifyClaims(ctx context.Context, a *action.Action) (Assessment, error) {
	return c.assess(ctx, a, ScoreTruth)
}

// AssessRisk requests a risk score.
func (c *HTTPCollaborator) AssessRisk(ctx context.Context, a *action.Action) (Assessment, error) {
	return c.assess(ctx, a, ScoreRisk)
}

// Health returns the current health snapshot.
func (c *HTTPCollaborator) Health() Health {
	c.healthMu.RLock()
	defer c.healthMu.RUnlock()
	return c.health
}

func (c *HTTPCollaborator) assess(ctx context.Context, a *action.Action, want string) (Assessment, error) {
	assessment, err := c.do(ctx, a)
	if err == nil {
		if _, ok := assessment.Scores[want]; !ok {
			err = fmt.Errorf("response has no %s", want)
		}
	}
	c.record(err)
	if err != nil {
		return Assessment{}, err
	}
	return assessment, nil
}

func (c *HTTPCollaborator) do(ctx context.Context, a *action.Action) (Assessment, error) {
	body, err := json.Marshal(a)
	if err != nil {
		return Assessment{}, fmt.Errorf("failed to encode action: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return Assessment{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range c.config.Headers {
		req.Header.Set(k, v)
	}

	c.logger.Debug("sending action to collaborator",
		"endpoint", c.config.Endpoint,
		"action_id", a.ID,
	)

	resp, err := c.client.Do(req)
	if err != nil {
		return Assessment{}, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Assessment{}, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Assessment{}, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(string(data), 200))
	}

	return decodeAssessment(data)
}

// decodeAssessment reads every numeric *_score field plus an optional
// warnings list. A nested {"scores": {...}} object is also accepted.
func decodeAssessment(data []byte) (Assessment, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return Assessment{}, fmt.Errorf("invalid response body: %w", err)
	}

	out := Assessment{Scores: make(map[string]float64)}
	for key, value := range raw {
		switch {
		case key == "warnings":
			if err := json.Unmarshal(value, &out.Warnings); err != nil {
				return Assessment{}, fmt.Errorf("invalid warnings: %w", err)
			}
		case key == "scores":
			var nested map[string]float64
			if err := json.Unmarshal(value, &nested); err != nil {
				return Assessment{}, fmt.Errorf("invalid scores: %w", err)
			}
			for k, v := range nested {
				out.Scores[k] = v
			}
		case strings.HasSuffix(key, "_score"):
			var v float64
			if err := json.Unmarshal(value, &v); err != nil {
				return Assessment{}, fmt.Errorf("invalid %s: %w", key, err)
			}
			out.Scores[key] = v
		}
	}
	return out, nil
}

// record updates health after a request. Three consecutive failures mark the
// collaborator unhealthy.
func (c *HTTPCollaborator) record(err error) {
	c.healthMu.Lock()
	defer c.healthMu.Unlock()

	c.health.TotalRequests++
	if err == nil {
		c.health.Healthy = true
		c.health.ConsecutiveFailures = 0
		c.health.LastError = ""
		c.health.LastSuccess = time.Now()
		return
	}

	c.health.FailedRequests++
	c.health.ConsecutiveFailures++
	c.health.LastError = err.Error()
	if c.health.ConsecutiveFailures >= 3 && c.health.Healthy {
		c.health.Healthy = false
		c.logger.Warn("collaborator marked unhealthy",
			"consecutive_failures", c.health.ConsecutiveFailures,
			"error", err,
		)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
