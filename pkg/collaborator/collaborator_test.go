package collaborator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mercator-hq/gatekeeper/pkg/action"
)

func TestRegistry_Defaults(t *testing.T) {
	r := NewRegistry()

	ctx := context.Background()
	a := action.New("trade", nil)

	if _, err := r.Context().AssessContext(ctx, a); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Context() error = %v, want ErrUnavailable", err)
	}
	if _, err := r.Truth().VerifyClaims(ctx, a); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Truth() error = %v, want ErrUnavailable", err)
	}
	if _, err := r.Risk().AssessRisk(ctx, a); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Risk() error = %v, want ErrUnavailable", err)
	}

	var nilRegistry *Registry
	if _, err := nilRegistry.Risk().AssessRisk(ctx, a); !errors.Is(err, ErrUnavailable) {
		t.Errorf("nil registry Risk() error = %v", err)
	}

	for level, ok := range r.Registered() {
		if ok {
			t.Errorf("level %d reported registered", level)
		}
	}
}

func TestRegistry_Registered(t *testing.T) {
	risk := RiskFunc(func(context.Context, *action.Action) (Assessment, error) {
		return Assessment{Scores: map[string]float64{ScoreRisk: 0.2}}, nil
	})
	r := NewRegistry(WithRiskAssessor(risk), WithContextAssessor(nil))

	got := r.Registered()
	if got[2] || got[3] || !got[4] {
		t.Errorf("Registered() = %v, want only level 4", got)
	}

	res, err := r.Risk().AssessRisk(context.Background(), action.New("trade", nil))
	if err != nil {
		t.Fatal(err)
	}
	if v, ok := res.Score(ScoreRisk); !ok || v != 0.2 {
		t.Errorf("Score(risk) = %v, %v", v, ok)
	}
}

func TestErrors(t *testing.T) {
	cause := errors.New("connection refused")
	err := &CollaboratorError{Level: 3, Name: "truth", Cause: cause}
	if !errors.Is(err, cause) {
		t.Error("CollaboratorError does not unwrap")
	}

	timeout := &TimeoutError{Level: 2, Name: "context", Timeout: 150 * time.Millisecond}
	if !errors.Is(timeout, context.DeadlineExceeded) {
		t.Error("TimeoutError does not match context.DeadlineExceeded")
	}
}

func TestHTTPCollaborator(t *testing.T) {
	var received action.Action
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("Authorization header = %q", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"risk_score": 0.35, "warnings": ["volatile market"], "model": "v2"}`))
	}))
	defer server.Close()

	c, err := NewHTTPCollaborator(HTTPConfig{
		Name:     "risk",
		Endpoint: server.URL,
		Timeout:  time.Second,
		Headers:  map[string]string{"Authorization": "Bearer secret"},
	}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	a := action.New("trade", map[string]any{"position_size_pct": 0.05})
	res, err := c.AssessRisk(context.Background(), a)
	if err != nil {
		t.Fatalf("AssessRisk() error = %v", err)
	}
	if v, _ := res.Score(ScoreRisk); v != 0.35 {
		t.Errorf("risk_score = %v, want 0.35", v)
	}
	if len(res.Warnings) != 1 || res.Warnings[0] != "volatile market" {
		t.Errorf("Warnings = %v", res.Warnings)
	}
	if received.Type != "trade" {
		t.Errorf("server received action_type %q", received.Type)
	}

	// Same service does not report a context score.
	if _, err := c.AssessContext(context.Background(), a); err == nil {
		t.Error("AssessContext() error = nil for response without context_score")
	}
}

func TestHTTPCollaborator_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}},
		{"invalid json", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`not json`))
		}},
		{"non-numeric score", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"truth_score": "high"}`))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			c, err := NewHTTPCollaborator(HTTPConfig{Endpoint: server.URL}, nil, nil)
			if err != nil {
				t.Fatal(err)
			}
			for i := 0; i < 3; i++ {
				if _, err := c.VerifyClaims(context.Background(), action.New("report", nil)); err == nil {
					t.Fatal("VerifyClaims() error = nil")
				}
			}
			h := c.Health()
			if h.Healthy || h.ConsecutiveFailures != 3 || h.FailedRequests != 3 {
				t.Errorf("Health = %+v, want unhealthy after 3 failures", h)
			}
		})
	}
}

func TestHTTPCollaborator_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	c, err := NewHTTPCollaborator(HTTPConfig{Endpoint: server.URL}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := c.AssessContext(ctx, action.New("query", nil)); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("AssessContext() error = %v, want deadline exceeded", err)
	}
}

func TestDecodeAssessment_Nested(t *testing.T) {
	got, err := decodeAssessment([]byte(`{"scores": {"context_score": 0.8}, "truth_score": 0.9}`))
	if err != nil {
		t.Fatal(err)
	}
	if got.Scores[ScoreContext] != 0.8 || got.Scores[ScoreTruth] != 0.9 {
		t.Errorf("Scores = %v", got.Scores)
	}
}

func TestNewHTTPCollaborator_EmptyEndpoint(t *testing.T) {
	if _, err := NewHTTPCollaborator(HTTPConfig{}, nil, nil); err == nil {
		t.Error("NewHTTPCollaborator() error = nil for empty endpoint")
	}
}
