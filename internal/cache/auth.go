package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/usersapi/usersapi/internal/model"
)

const (
	// authCachePrefix is the Redis key prefix for auth context cache.
	authCachePrefix = "auth:ctx:"
	// authCacheTTL is the time-to-live for cached auth contexts.
	authCacheTTL = 5 * time.Minute
)

// CachedAuthContext represents auth context stored in Redis.
type CachedAuthContext struct {
	KeyID     string   `json:"key_id"`
	KeyPrefix string   `json:"key_prefix"`
	Name      string   `json:"name"`
	Scopes    []string `json:"scopes"`
}

// GetAuthContext retrieves a cached auth context by cache key.
// Returns nil, nil on a miss or an unreadable entry.
func (c *Cache) GetAuthContext(ctx context.Context, cacheKey string) (*model.AuthContext, error) {
	key := authCachePrefix + cacheKey

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	return decodeAuthContext(data), nil
}

// SetAuthContext caches an auth context.
func (c *Cache) SetAuthContext(ctx context.Context, cacheKey string, auth *model.AuthContext) error {
	key := authCachePrefix + cacheKey

	data, err := json.Marshal(CachedAuthContext{
		KeyID:     auth.KeyID,
		KeyPrefix: auth.KeyPrefix,
		Name:      auth.Name,
		Scopes:    auth.Scopes,
	})
	if err != nil {
		return fmt.Errorf("marshal auth context: %w", err)
	}

	return c.client.Set(ctx, key, data, authCacheTTL).Err()
}

// DeleteAuthContext removes a cached auth context after a key is revoked.
func (c *Cache) DeleteAuthContext(ctx context.Context, cacheKey string) error {
	key := authCachePrefix + cacheKey
	return c.client.Del(ctx, key).Err()
}

func decodeAuthContext(data []byte) *model.AuthContext {
	var cached CachedAuthContext
	if err := json.Unmarshal(data, &cached); err != nil || cached.KeyID == "" {
		return nil
	}
	return &model.AuthContext{
		KeyID:     cached.KeyID,
		KeyPrefix: cached.KeyPrefix,
		Name:      cached.Name,
		Scopes:    cached.Scopes,
	}
}

const revokedKeyPrefix = "auth:revoked:"

// MarkKeyRevoked records that keyID was revoked. Cached auth contexts are
// keyed by the plaintext hash, so they cannot be deleted by id; the marker
// outlives them instead.
func (c *Cache) MarkKeyRevoked(ctx context.Context, keyID string) error {
	return c.client.Set(ctx, revokedKeyPrefix+keyID, "1", authCacheTTL).Err()
}

// IsKeyRevoked reports whether MarkKeyRevoked was called for keyID within
// the auth cache TTL.
func (c *Cache) IsKeyRevoked(ctx context.Context, keyID string) (bool, error) {
	n, err := c.client.Exists(ctx, revokedKeyPrefix+keyID).Result()
	if err != nil {
		return false, fmt.Errorf("check revoked key: %w", err)
	}
	return n > 0, nil
}
