package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mercator-hq/gatekeeper/pkg/audit"
	"mercator-hq/gatekeeper/pkg/audit/storage"
	"mercator-hq/gatekeeper/pkg/collaborator"
	"mercator-hq/gatekeeper/pkg/rules"
	"mercator-hq/gatekeeper/pkg/rules/source"
)

func TestCheckReadiness(t *testing.T) {
	ok := func(context.Context) error { return nil }
	degraded := func(context.Context) error { return Degraded("fallback rules") }
	broken := func(context.Context) error { return errors.New("down") }

	tests := []struct {
		name   string
		checks map[string]CheckFunc
		want   string
	}{
		{name: "no checks", checks: nil, want: StatusReady},
		{name: "all ok", checks: map[string]CheckFunc{"a": ok, "b": ok}, want: StatusReady},
		{name: "degraded", checks: map[string]CheckFunc{"a": ok, "b": degraded}, want: StatusDegraded},
		{name: "unhealthy wins", checks: map[string]CheckFunc{"a": degraded, "b": broken}, want: StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(time.Second)
			for name, check := range tt.checks {
				c.RegisterCheck(name, check)
			}
			got := c.CheckReadiness(context.Background())
			if got.Status != tt.want {
				t.Errorf("status = %q, want %q (%+v)", got.Status, tt.want, got.Checks)
			}
			if len(got.Checks) != len(tt.checks) {
				t.Errorf("checks = %d, want %d", len(got.Checks), len(tt.checks))
			}
		})
	}
}

func TestCheckReadiness_Timeout(t *testing.T) {
	c := New(20 * time.Millisecond)
	c.RegisterCheck("slow", func(ctx context.Context) error {
		time.Sleep(time.Second)
		return nil
	})

	got := c.CheckReadiness(context.Background())
	if res := got.Checks["slow"]; res.Status != StatusUnhealthy || res.Message != ErrCheckTimeout.Error() {
		t.Errorf("slow check = %+v", res)
	}
}

func TestRegisterAndUnregister(t *testing.T) {
	c := New(0)
	if c.checkTimeout != 5*time.Second {
		t.Errorf("default timeout = %v", c.checkTimeout)
	}
	c.RegisterCheck("b", func(context.Context) error { return nil })
	c.RegisterCheck("a", func(context.Context) error { return nil })
	if got := c.ListChecks(); len(got) != 2 || got[0] != "a" {
		t.Errorf("ListChecks() = %v", got)
	}
	c.UnregisterCheck("a")
	if got := c.ListChecks(); len(got) != 1 || got[0] != "b" {
		t.Errorf("ListChecks() after unregister = %v", got)
	}
}

func TestRulesCheck(t *testing.T) {
	tests := []struct {
		name    string
		result  source.Result
		loadErr error
		want    string
	}{
		{name: "loaded", result: source.Result{RuleSet: rules.Default()}, want: StatusOK},
		{
			name:   "fallback",
			result: source.Result{RuleSet: rules.Default(), Fallback: true, Err: errors.New("file missing")},
			want:   StatusDegraded,
		},
		{name: "fail closed", loadErr: errors.New("strict"), want: StatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := New(time.Second).runCheck(context.Background(), RulesCheck(tt.result, tt.loadErr))
			if got.Status != tt.want {
				t.Errorf("status = %q, want %q", got.Status, tt.want)
			}
		})
	}
}

type closedStorage struct{ *storage.MemoryStorage }

func (closedStorage) Count(context.Context, *audit.Query) (int64, error) {
	return 0, errors.New("database is closed")
}

func TestStorageCheck(t *testing.T) {
	c := New(time.Second)
	if got := c.runCheck(context.Background(), StorageCheck(storage.NewMemoryStorage())); got.Status != StatusOK {
		t.Errorf("memory storage = %+v", got)
	}
	if got := c.runCheck(context.Background(), StorageCheck(closedStorage{})); got.Status != StatusUnhealthy {
		t.Errorf("closed storage = %+v", got)
	}
}

type fakeCollaborator struct{ health collaborator.Health }

func (f fakeCollaborator) Name() string                { return "risk" }
func (f fakeCollaborator) Health() collaborator.Health { return f.health }

func TestCollaboratorCheck(t *testing.T) {
	c := New(time.Second)
	healthy := fakeCollaborator{collaborator.Health{Healthy: true}}
	failing := fakeCollaborator{collaborator.Health{ConsecutiveFailures: 3, LastError: "connection refused"}}

	if got := c.runCheck(context.Background(), CollaboratorCheck(healthy)); got.Status != StatusOK {
		t.Errorf("healthy = %+v", got)
	}
	if got := c.runCheck(context.Background(), CollaboratorCheck(failing)); got.Status != StatusDegraded {
		t.Errorf("failing = %+v", got)
	}
}

func TestHandlers(t *testing.T) {
	c := New(time.Second)
	c.RegisterCheck("audit", func(context.Context) error { return errors.New("down") })

	mux := http.NewServeMux()
	Register(mux, c, 0, "1.2.3", "abc123", "2026-01-01")

	tests := []struct {
		name   string
		method string
		path   string
		code   int
		status string
	}{
		{name: "liveness", method: http.MethodGet, path: "/health", code: http.StatusOK, status: StatusOK},
		{name: "readiness unhealthy", method: http.MethodGet, path: "/ready", code: http.StatusServiceUnavailable, status: StatusUnhealthy},
		{name: "version", method: http.MethodGet, path: "/version", code: http.StatusOK},
		{name: "method not allowed", method: http.MethodPost, path: "/health", code: http.StatusMethodNotAllowed},
		{name: "head has no body", method: http.MethodHead, path: "/health", code: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			if rec.Code != tt.code {
				t.Fatalf("code = %d, want %d", rec.Code, tt.code)
			}
			if tt.method == http.MethodHead && rec.Body.Len() != 0 {
				t.Errorf("HEAD body = %q", rec.Body.String())
			}
			if tt.status == "" {
				return
			}
			var body HealthStatus
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Status != tt.status {
				t.Errorf("status = %q, want %q", body.Status, tt.status)
			}
		})
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/version", nil))
	var info VersionInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil || info.Version != "1.2.3" || info.GoVersion == "" {
		t.Errorf("version = %+v, %v", info, err)
	}
}

func TestRateLimitedHandler(t *testing.T) {
	handler := RateLimitedHandler(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}, 2)

	codes := make([]int, 3)
	for i := range codes {
		rec := httptest.NewRecorder()
		handler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		codes[i] = rec.Code
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("codes = %v, want [200 200 429]", codes)
	}
}
