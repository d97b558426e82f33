package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"mercator-hq/gatekeeper/pkg/telemetry/logging"
)

// AgentHeader names the proposing agent. It keys the rate limiter and is
// the default agent for a decision whose body names none.
const AgentHeader = "X-Agent-ID"

// AgentRateLimiter keeps one token bucket per agent. At most maxAgents
// buckets are tracked; when full, the least recently seen agent is evicted.
type AgentRateLimiter struct {
	limit     rate.Limit
	burst     int
	maxAgents int

	mu     sync.Mutex
	agents map[string]*agentBucket
	now    func() time.Time
}

type agentBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewAgentRateLimiter creates a limiter allowing rps requests per second per
// agent with the given burst.
func NewAgentRateLimiter(rps float64, burst, maxAgents int) *AgentRateLimiter {
	if burst <= 0 {
		burst = 1
	}
	if maxAgents <= 0 {
		maxAgents = 10000
	}
	return &AgentRateLimiter{
		limit:     rate.Limit(rps),
		burst:     burst,
		maxAgents: maxAgents,
		agents:    make(map[string]*agentBucket),
		now:       time.Now,
	}
}

// Allow reports whether agent may make a request now. When it may not, the
// returned duration is the suggested wait.
func (l *AgentRateLimiter) Allow(agent string) (bool, time.Duration) {
	now := l.now()
	limiter := l.bucket(agent, now)

	res := limiter.ReserveN(now, 1)
	if !res.OK() {
		return false, time.Second
	}
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// Tracked returns the number of agents with a live bucket.
func (l *AgentRateLimiter) Tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.agents)
}

func (l *AgentRateLimiter) bucket(agent string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if b, ok := l.agents[agent]; ok {
		b.lastSeen = now
		return b.limiter
	}

	if len(l.agents) >= l.maxAgents {
		l.evictOldestLocked()
	}
	b := &agentBucket{limiter: rate.NewLimiter(l.limit, l.burst), lastSeen: now}
	l.agents[agent] = b
	return b.limiter
}

func (l *AgentRateLimiter) evictOldestLocked() {
	var (
		oldest string
		seen   time.Time
		found  bool
	)
	for name, b := range l.agents {
		if !found || b.lastSeen.Before(seen) {
			oldest, seen, found = name, b.lastSeen, true
		}
	}
	if found {
		delete(l.agents, oldest)
	}
}

// Middleware rejects over-limit requests with 429 and a Retry-After header.
// The agent is taken from the X-Agent-ID header, falling back to the client
// address; it is also stored in the request context for logging.
func (l *AgentRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agent := AgentFromRequest(r)
		r = r.WithContext(logging.WithAgent(r.Context(), agent))

		if ok, wait := l.Allow(agent); !ok {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			WriteError(w, r, http.StatusTooManyRequests, CodeRateLimited,
				"rate limit exceeded for agent "+agent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// AgentFromRequest returns the X-Agent-ID header, or the client IP when the
// header is absent.
func AgentFromRequest(r *http.Request) string {
	if agent := r.Header.Get(AgentHeader); agent != "" {
		return agent
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
