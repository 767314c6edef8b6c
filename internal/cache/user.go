package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/usersapi/usersapi/internal/model"
)

const (
	userKeyPrefix     = "user:"
	negCacheKeySuffix = ":neg"

	// NegativeCacheTTL bounds how long an absent id is remembered.
	NegativeCacheTTL = time.Minute
)

// ErrCacheMiss is returned when a key is not cached.
var ErrCacheMiss = errors.New("cache miss")

// GetUser retrieves a cached user by id.
// Returns ErrCacheMiss if not found.
func (c *Cache) GetUser(ctx context.Context, id int64) (*model.User, error) {
	result, err := c.client.HGetAll(ctx, userKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall failed: %w", err)
	}

	user, ok := userFromHash(id, result)
	if !ok {
		return nil, ErrCacheMiss
	}
	return user, nil
}

// SetUser stores a user and clears any negative entry for its id.
func (c *Cache) SetUser(ctx context.Context, user *model.User) error {
	key := userKey(user.ID)

	pipe := c.client.TxPipeline()
	pipe.HSet(ctx, key, userToHash(user))
	pipe.Expire(ctx, key, c.userTTL)
	pipe.Del(ctx, key+negCacheKeySuffix)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to cache user: %w", err)
	}
	return nil
}

// DeleteUser removes a user and its negative entry from cache.
func (c *Cache) DeleteUser(ctx context.Context, id int64) error {
	key := userKey(id)

	if err := c.client.Del(ctx, key, key+negCacheKeySuffix).Err(); err != nil {
		return fmt.Errorf("failed to delete user from cache: %w", err)
	}
	return nil
}

// IsNegativelyCached reports whether id was recently seen as absent.
func (c *Cache) IsNegativelyCached(ctx context.Context, id int64) (bool, error) {
	exists, err := c.client.Exists(ctx, userKey(id)+negCacheKeySuffix).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check negative cache: %w", err)
	}
	return exists > 0, nil
}

// SetNegativeCache marks id as absent.
func (c *Cache) SetNegativeCache(ctx context.Context, id int64) error {
	if err := c.client.SetEx(ctx, userKey(id)+negCacheKeySuffix, "", NegativeCacheTTL).Err(); err != nil {
		return fmt.Errorf("failed to set negative cache: %w", err)
	}
	return nil
}

func userKey(id int64) string {
	return userKeyPrefix + strconv.FormatInt(id, 10)
}

func userToHash(user *model.User) map[string]any {
	return map[string]any{
		"first_name": user.FirstName,
		"last_name":  user.LastName,
		"state":      user.State,
	}
}

// userFromHash rebuilds a user from HGETALL output. A hash missing any
// field is treated as a miss.
func userFromHash(id int64, fields map[string]string) (*model.User, bool) {
	firstName, ok1 := fields["first_name"]
	lastName, ok2 := fields["last_name"]
	state, ok3 := fields["state"]
	if !ok1 || !ok2 || !ok3 {
		return nil, false
	}
	return &model.User{
		ID:        id,
		FirstName: firstName,
		LastName:  lastName,
		State:     state,
	}, true
}
