package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/ashureev/parley/internal/identity"
	"github.com/ashureev/parley/internal/observability/metrics"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

func TestCORS(t *testing.T) {
	tests := []struct {
		name       string
		allowed    []string
		origin     string
		wantOrigin string
		wantCreds  bool
	}{
		{"explicit origin", []string{"https://app.parley.dev"}, "https://app.parley.dev", "https://app.parley.dev", true},
		{"wildcard", []string{"*"}, "https://evil.example", "https://evil.example", false},
		{"not allowed", []string{"https://app.parley.dev"}, "https://evil.example", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Origin", tt.origin)
			rec := httptest.NewRecorder()
			CORS(tt.allowed)(okHandler).ServeHTTP(rec, req)

			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("Allow-Origin = %q, want %q", got, tt.wantOrigin)
			}
			if got := rec.Header().Get("Access-Control-Allow-Credentials") == "true"; got != tt.wantCreds {
				t.Errorf("Allow-Credentials = %v, want %v", got, tt.wantCreds)
			}
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/practice/turn", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	CORS([]string{"*"})(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("preflight reached the handler")
	})).ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestRateLimiterAllow(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	defer rl.Stop()
	now := time.Now()
	rl.now = func() time.Time { return now }

	if !rl.Allow("a") || !rl.Allow("a") {
		t.Fatal("first two requests should pass")
	}
	if rl.Allow("a") {
		t.Fatal("third request should be limited")
	}
	if !rl.Allow("b") {
		t.Fatal("other keys keep their own budget")
	}

	now = now.Add(time.Minute + time.Second)
	if !rl.Allow("a") {
		t.Fatal("budget should refill after the window")
	}

	rl.evict()
	rl.mu.Lock()
	_, hasB := rl.requests["b"]
	rl.mu.Unlock()
	if hasB {
		t.Error("stale key b not evicted")
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	limits := &Limits{Learner: NewRateLimiter(1, time.Minute)}
	defer limits.Stop()
	m := metrics.NewMetricsWith(prometheus.NewRegistry())
	h := RateLimit(limits, m)(okHandler)

	send := func() int {
		req := httptest.NewRequest(http.MethodPost, "/practice/turn", nil)
		req = req.WithContext(identity.WithIdentity(req.Context(), "learner-1", "s1"))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}
	if code := send(); code != http.StatusOK {
		t.Fatalf("first status = %d", code)
	}
	if code := send(); code != http.StatusTooManyRequests {
		t.Fatalf("second status = %d, want 429", code)
	}
	if got := testutil.ToFloat64(m.RateLimited); got != 1 {
		t.Errorf("rate limited metric = %v", got)
	}
}

func TestRateLimitCookielessRequestsShareIPBudget(t *testing.T) {
	limits := &Limits{Learner: NewRateLimiter(2, time.Minute)}
	defer limits.Stop()
	h := identity.Middleware(true)(RateLimit(limits, metrics.NewMetricsWith(prometheus.NewRegistry()))(okHandler))

	send := func(remoteAddr string) int {
		req := httptest.NewRequest(http.MethodPost, "/practice/feedback", nil)
		req.RemoteAddr = remoteAddr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	allowed := 0
	for i := 0; i < 20; i++ {
		if send("203.0.113.7:40000") == http.StatusOK {
			allowed++
		}
	}
	if allowed != 2 {
		t.Fatalf("cookieless requests from one IP allowed = %d, want 2", allowed)
	}
	if code := send("198.51.100.9:40000"); code != http.StatusOK {
		t.Errorf("other IP status = %d, want 200", code)
	}
}

func TestRateLimitForgedCookiesHitIPBudget(t *testing.T) {
	limits := &Limits{Learner: NewRateLimiter(5, time.Minute), IP: NewRateLimiter(3, time.Minute)}
	defer limits.Stop()
	h := identity.Middleware(true)(RateLimit(limits, metrics.NewMetricsWith(prometheus.NewRegistry()))(okHandler))

	allowed := 0
	for i := 0; i < 10; i++ {
		req := httptest.NewRequest(http.MethodPost, "/practice/turn", nil)
		req.RemoteAddr = "203.0.113.7:40000"
		req.AddCookie(&http.Cookie{Name: identity.AnonCookieName, Value: fmt.Sprintf("anon_%032x", i)})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code == http.StatusOK {
			allowed++
		}
	}
	if allowed != 3 {
		t.Fatalf("rotating cookies from one IP allowed = %d, want 3", allowed)
	}
}
