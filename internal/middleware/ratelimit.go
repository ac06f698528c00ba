package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/ashureev/parley/internal/identity"
	"github.com/ashureev/parley/internal/observability/metrics"
)

// RateLimiter is a per-key sliding-window limiter.
type RateLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	limit    int
	window   time.Duration
	now      func() time.Time
	done     chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter creates a limiter and starts its eviction goroutine. Call
// Stop to release it.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
		now:      time.Now,
		done:     make(chan struct{}),
	}
	go rl.evictLoop()
	return rl
}

// Allow records a request for key and reports whether it fits the window.
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	recent := pruned(r.requests[key], now.Add(-r.window))
	if len(recent) >= r.limit {
		r.requests[key] = recent
		return false
	}
	r.requests[key] = append(recent, now)
	return true
}

// Stop ends the eviction goroutine.
func (r *RateLimiter) Stop() {
	r.stopOnce.Do(func() { close(r.done) })
}

func (r *RateLimiter) evictLoop() {
	ticker := time.NewTicker(r.window)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.evict()
		case <-r.done:
			return
		}
	}
}

func (r *RateLimiter) evict() {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := r.now().Add(-r.window)
	for key, times := range r.requests {
		if fresh := pruned(times, cutoff); len(fresh) == 0 {
			delete(r.requests, key)
		} else {
			r.requests[key] = fresh
		}
	}
}

func pruned(times []time.Time, cutoff time.Time) []time.Time {
	var fresh []time.Time
	for _, t := range times {
		if t.After(cutoff) {
			fresh = append(fresh, t)
		}
	}
	return fresh
}

// Limits pairs the per-learner budget with an optional wider per-IP budget.
// A request whose learner ID was minted for it (no cookie sent) has no
// stable identity, so it spends a budget shared by every such request from
// its IP instead. Cookie-backed learners spend their own budget and, when IP
// is set, the IP budget too, which bounds forged cookies.
type Limits struct {
	Learner *RateLimiter
	IP      *RateLimiter
}

// Allow records r against the budgets that apply to it.
func (l *Limits) Allow(r *http.Request) bool {
	ip := identity.IPFromRequest(r)
	learnerID := identity.LearnerIDFromContext(r.Context())
	if learnerID == "" || !identity.ReturningFromContext(r.Context()) {
		return l.Learner.Allow("anon-ip:" + ip)
	}
	if l.IP != nil && !l.IP.Allow(ip) {
		return false
	}
	return l.Learner.Allow(learnerID)
}

// Stop ends both eviction goroutines.
func (l *Limits) Stop() {
	l.Learner.Stop()
	if l.IP != nil {
		l.IP.Stop()
	}
}

// RateLimit rejects requests over budget with 429. It must run after
// identity.Middleware.
func RateLimit(l *Limits, m *metrics.Metrics) func(http.Handler) http.Handler {
	if m == nil {
		m = metrics.DefaultMetrics
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow(r) {
				m.RateLimited.Inc()
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "60")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"rate limit exceeded"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
