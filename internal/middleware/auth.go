package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/usersapi/usersapi/internal/auth"
	"github.com/usersapi/usersapi/internal/model"
)

// DefaultMinAuthDuration pads every auth attempt so failures and cache
// hits cannot be told apart by timing.
const DefaultMinAuthDuration = 200 * time.Millisecond

// KeyLookup finds stored keys for verification.
type KeyLookup interface {
	GetAPIKeysByPrefix(ctx context.Context, prefix string) ([]*model.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id string) error
}

// AuthCache caches verified keys. Errors are treated as misses.
type AuthCache interface {
	GetAuthContext(ctx context.Context, cacheKey string) (*model.AuthContext, error)
	SetAuthContext(ctx context.Context, cacheKey string, auth *model.AuthContext) error
	IsKeyRevoked(ctx context.Context, keyID string) (bool, error)
}

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	Logger      *slog.Logger
	Keys        KeyLookup
	Cache       AuthCache // optional
	MinDuration time.Duration
}

// Auth authenticates requests by API key ("Authorization: Bearer <key>" or
// "X-API-Key: <key>") and stores the result in the request context. Every
// failure produces the same 401 body.
func Auth(cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			pad := func() {
				if elapsed := time.Since(start); elapsed < cfg.MinDuration {
					time.Sleep(cfg.MinDuration - elapsed)
				}
			}

			authCtx, reason := authenticate(r, cfg)
			pad()

			if authCtx == nil {
				cfg.Logger.Warn("authentication failed",
					slog.String("reason", reason),
					slog.String("ip", r.RemoteAddr),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or missing API key")
				return
			}

			if rw, ok := w.(interface{ setKeyID(string) }); ok {
				rw.setKeyID(authCtx.KeyID)
			}

			next.ServeHTTP(w, r.WithContext(auth.ContextWithAuth(r.Context(), authCtx)))
		})
	}
}

// authenticate returns the caller, or nil and a log-only reason.
func authenticate(r *http.Request, cfg AuthConfig) (*model.AuthContext, string) {
	ctx := r.Context()

	key := extractAPIKey(r)
	if key == "" {
		return nil, "missing_key"
	}

	parsed, err := auth.ParseKey(key)
	if err != nil {
		return nil, "invalid_format"
	}

	cacheKey := auth.CacheKey(key)
	if cfg.Cache != nil {
		if cached, _ := cfg.Cache.GetAuthContext(ctx, cacheKey); cached != nil {
			revoked, err := cfg.Cache.IsKeyRevoked(ctx, cached.KeyID)
			if err == nil && !revoked {
				return cached, ""
			}
		}
	}

	candidates, err := cfg.Keys.GetAPIKeysByPrefix(ctx, parsed.Prefix)
	if err != nil {
		cfg.Logger.Error("database error during auth",
			slog.String("error", err.Error()),
			slog.String("request_id", GetRequestID(ctx)),
		)
		return nil, "lookup_error"
	}

	// prefixes may collide, so verify every candidate
	var matched *model.APIKey
	for _, k := range candidates {
		if ok, err := auth.Verify(key, k.KeyHash); err == nil && ok {
			matched = k
			break
		}
	}
	if matched == nil || matched.IsRevoked() {
		return nil, "invalid_key"
	}

	authCtx := &model.AuthContext{
		KeyID:     matched.ID,
		KeyPrefix: matched.KeyPrefix,
		Name:      matched.Name,
		Scopes:    matched.Scopes,
	}

	if cfg.Cache != nil {
		if err := cfg.Cache.SetAuthContext(ctx, cacheKey, authCtx); err != nil {
			cfg.Logger.Warn("auth cache write failed", slog.String("error", err.Error()))
		}
	}

	go func(id string) {
		bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = cfg.Keys.UpdateAPIKeyLastUsed(bg, id)
	}(matched.ID)

	return authCtx, ""
}

// extractAPIKey reads "Authorization: Bearer <key>", falling back to
// "X-API-Key".
func extractAPIKey(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}
