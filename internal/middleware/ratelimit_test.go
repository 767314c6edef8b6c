package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/usersapi/usersapi/internal/cache"
	"github.com/usersapi/usersapi/internal/metrics"
)

type fakeLimiter struct {
	allowed    bool
	err        error
	lastKey    string
	lastIP     string
	retryAfter time.Duration
}

func (f *fakeLimiter) result() (*cache.RateLimitResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &cache.RateLimitResult{
		Allowed:    f.allowed,
		Remaining:  3,
		ResetAt:    time.Unix(1700000000, 0),
		RetryAfter: f.retryAfter,
	}, nil
}

func (f *fakeLimiter) CheckAPIRateLimit(ctx context.Context, keyID string, rpm, burst int) (*cache.RateLimitResult, error) {
	f.lastKey = keyID
	return f.result()
}

func (f *fakeLimiter) CheckIPRateLimit(ctx context.Context, ip string, rpm, burst int) (*cache.RateLimitResult, error) {
	f.lastIP = ip
	return f.result()
}

func TestRateLimit_Allowed(t *testing.T) {
	limiter := &fakeLimiter{allowed: true}
	handler := RateLimit(RateLimitConfig{Logger: discardLogger(), Limiter: limiter, RequestsPerMinute: 60, Burst: 10})(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/v2/users", nil)
	req.RemoteAddr = "203.0.113.7:5555"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if limiter.lastIP != "203.0.113.7" {
		t.Errorf("limited by ip %q, want 203.0.113.7", limiter.lastIP)
	}
	if rec.Header().Get("X-RateLimit-Limit") != "60" || rec.Header().Get("X-RateLimit-Remaining") != "3" {
		t.Errorf("unexpected headers: %v", rec.Header())
	}
}

func TestRateLimit_PerKeyWhenAuthenticated(t *testing.T) {
	limiter := &fakeLimiter{allowed: true}
	handler := RateLimit(RateLimitConfig{Logger: discardLogger(), Limiter: limiter, RequestsPerMinute: 60, Burst: 10})(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestWithScopes(http.MethodGet, "read"))

	if limiter.lastKey != "01K" || limiter.lastIP != "" {
		t.Errorf("expected key bucket, got key=%q ip=%q", limiter.lastKey, limiter.lastIP)
	}
}

func TestRateLimit_Rejected(t *testing.T) {
	limiter := &fakeLimiter{allowed: false, retryAfter: 1500 * time.Millisecond}
	rec := metrics.NewInMemory()
	handler := RateLimit(RateLimitConfig{Logger: discardLogger(), Limiter: limiter, Metrics: rec, RequestsPerMinute: 60, Burst: 10})(okHandler())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v2/users", nil))

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") != "1" {
		t.Errorf("Retry-After = %q, want 1", w.Header().Get("Retry-After"))
	}
	if rec.Snapshot().RateLimited != 1 {
		t.Error("expected rate limited counter to increment")
	}
}

func TestRateLimit_FailsOpen(t *testing.T) {
	limiter := &fakeLimiter{err: errors.New("redis down")}
	handler := RateLimit(RateLimitConfig{Logger: discardLogger(), Limiter: limiter, RequestsPerMinute: 60, Burst: 10})(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v2/users", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 when limiter fails", rec.Code)
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		remote string
		want   string
	}{
		{"192.0.2.1:1234", "192.0.2.1"},
		{"[2001:db8::1]:443", "2001:db8::1"},
		{"192.0.2.9", "192.0.2.9"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = tt.remote
		if got := clientIP(req); got != tt.want {
			t.Errorf("clientIP(%q) = %q, want %q", tt.remote, got, tt.want)
		}
	}
}
