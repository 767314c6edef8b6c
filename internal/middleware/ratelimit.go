package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/usersapi/usersapi/internal/auth"
	"github.com/usersapi/usersapi/internal/cache"
	"github.com/usersapi/usersapi/internal/metrics"
)

// RateLimiter checks token buckets.
type RateLimiter interface {
	CheckAPIRateLimit(ctx context.Context, keyID string, ratePerMinute, burst int) (*cache.RateLimitResult, error)
	CheckIPRateLimit(ctx context.Context, ip string, ratePerMinute, burst int) (*cache.RateLimitResult, error)
}

// RateLimitConfig holds configuration for rate limiting middleware.
type RateLimitConfig struct {
	Logger            *slog.Logger
	Limiter           RateLimiter
	Metrics           metrics.Recorder
	RequestsPerMinute int
	Burst             int
}

// RateLimit applies a token bucket per API key when the request is
// authenticated and per client IP otherwise. Limiter errors fail open.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewNoop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			var (
				result  *cache.RateLimitResult
				err     error
				subject string
			)
			if keyID := auth.KeyIDFromContext(ctx); keyID != "" {
				subject = "key:" + keyID
				result, err = cfg.Limiter.CheckAPIRateLimit(ctx, keyID, cfg.RequestsPerMinute, cfg.Burst)
			} else {
				ip := clientIP(r)
				subject = "ip"
				result, err = cfg.Limiter.CheckIPRateLimit(ctx, ip, cfg.RequestsPerMinute, cfg.Burst)
			}
			if err != nil {
				cfg.Logger.Error("rate limit check failed",
					slog.String("error", err.Error()),
					slog.String("request_id", GetRequestID(ctx)),
				)
				next.ServeHTTP(w, r)
				return
			}

			setRateLimitHeaders(w, cfg.RequestsPerMinute, result.Remaining, result.ResetAt)

			if !result.Allowed {
				retryAfter := int(result.RetryAfter.Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}

				cfg.Metrics.IncRateLimited()
				cfg.Logger.Warn("rate limit exceeded",
					slog.String("subject", subject),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.Int("retry_after_seconds", retryAfter),
					slog.String("request_id", GetRequestID(ctx)),
				)

				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				writeError(w, http.StatusTooManyRequests, "RATE_LIMITED",
					"Rate limit exceeded. Retry after "+strconv.Itoa(retryAfter)+" seconds.")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func setRateLimitHeaders(w http.ResponseWriter, limit int, remaining int64, resetAt time.Time) {
	if limit <= 0 {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))
}

// clientIP returns the host part of RemoteAddr. chi's RealIP middleware
// has already folded X-Forwarded-For and X-Real-IP into it.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
