// Package service provides business logic for the application.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/usersapi/usersapi/internal/cache"
	"github.com/usersapi/usersapi/internal/metrics"
	"github.com/usersapi/usersapi/internal/model"
	"github.com/usersapi/usersapi/internal/repository"
)

// Service errors.
var (
	ErrUserNotFound = errors.New("user not found")
	ErrInvalidUser  = errors.New("invalid user")
)

// UserStore is the data-access contract for users. Implementations return
// repository.ErrUserNotFound for absent ids.
type UserStore interface {
	ListAll(ctx context.Context) ([]*model.User, error)
	FindByID(ctx context.Context, id int64) (*model.User, error)
	ListByState(ctx context.Context, state string) ([]*model.User, error)
	Upsert(ctx context.Context, user *model.User) (saved *model.User, inserted bool, err error)
	Update(ctx context.Context, user *model.User) (*model.User, error)
	DeleteByID(ctx context.Context, id int64) error
}

// UserCache is an optional read-through cache in front of the store.
// Errors are logged and never surfaced to callers.
type UserCache interface {
	GetUser(ctx context.Context, id int64) (*model.User, error)
	SetUser(ctx context.Context, user *model.User) error
	DeleteUser(ctx context.Context, id int64) error
	IsNegativelyCached(ctx context.Context, id int64) (bool, error)
	SetNegativeCache(ctx context.Context, id int64) error
}

// UserService handles user business logic.
type UserService struct {
	store   UserStore
	cache   UserCache
	metrics metrics.Recorder
	logger  *slog.Logger
}

// NewUserService creates a new UserService. userCache may be nil.
func NewUserService(store UserStore, userCache UserCache, recorder metrics.Recorder, logger *slog.Logger) *UserService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &UserService{
		store:   store,
		cache:   userCache,
		metrics: recorder,
		logger:  logger,
	}
}

// List returns every user.
func (s *UserService) List(ctx context.Context) ([]*model.User, error) {
	users, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// ListByState returns users whose state equals state exactly.
func (s *UserService) ListByState(ctx context.Context, state string) ([]*model.User, error) {
	users, err := s.store.ListByState(ctx, state)
	if err != nil {
		return nil, fmt.Errorf("failed to list users by state: %w", err)
	}
	return users, nil
}

// Get retrieves a user by id, consulting the cache first.
func (s *UserService) Get(ctx context.Context, id int64) (*model.User, error) {
	start := time.Now()
	defer func() {
		s.metrics.ObserveLookupDuration(time.Since(start))
	}()

	if s.cache != nil {
		cached, err := s.cache.GetUser(ctx, id)
		if err == nil {
			s.metrics.IncUserCacheHit()
			return cached, nil
		}
		if errors.Is(err, cache.ErrCacheMiss) {
			s.metrics.IncUserCacheMiss()
			if negative, _ := s.cache.IsNegativelyCached(ctx, id); negative {
				return nil, ErrUserNotFound
			}
		} else {
			s.logCacheError(ctx, "get", id, err)
		}
	}

	user, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			if s.cache != nil {
				if err := s.cache.SetNegativeCache(ctx, id); err != nil {
					s.logCacheError(ctx, "set_negative", id, err)
				}
			}
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	s.cacheUser(ctx, user)
	return user, nil
}

// Save upserts user as given. A zero or unknown id inserts a new row.
// No validation is applied.
func (s *UserService) Save(ctx context.Context, user *model.User) (*model.User, error) {
	saved, inserted, err := s.store.Upsert(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("failed to save user: %w", err)
	}

	if inserted {
		s.metrics.IncUserCreated()
	} else {
		s.metrics.IncUserUpdated()
	}

	s.cacheUser(ctx, saved)
	return saved, nil
}

// Create validates user and inserts it under a fresh id. Any id on the
// input is ignored.
func (s *UserService) Create(ctx context.Context, user *model.User) (*model.User, error) {
	if errs := user.Validate(); errs != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidUser, errs)
	}

	input := user.Clone()
	input.ID = 0

	created, _, err := s.store.Upsert(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.metrics.IncUserCreated()
	s.cacheUser(ctx, created)
	return created, nil
}

// Replace overwrites the attributes of an existing user in place. The id
// argument wins over any id on the input. An unknown id returns
// ErrUserNotFound and nothing is written.
func (s *UserService) Replace(ctx context.Context, id int64, user *model.User) (*model.User, error) {
	if errs := user.Validate(); errs != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidUser, errs)
	}

	input := user.Clone()
	input.ID = id

	updated, err := s.store.Update(ctx, input)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			s.evict(ctx, id)
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	s.metrics.IncUserUpdated()
	s.cacheUser(ctx, updated)
	return updated, nil
}

// Delete removes a user. Returns ErrUserNotFound if the id is unknown.
func (s *UserService) Delete(ctx context.Context, id int64) error {
	if err := s.store.DeleteByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to delete user: %w", err)
	}

	s.metrics.IncUserDeleted()
	s.evict(ctx, id)
	return nil
}

// DeleteIfExists removes a user and treats an unknown id as success.
func (s *UserService) DeleteIfExists(ctx context.Context, id int64) error {
	if err := s.Delete(ctx, id); err != nil && !errors.Is(err, ErrUserNotFound) {
		return err
	}
	return nil
}

func (s *UserService) cacheUser(ctx context.Context, user *model.User) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetUser(ctx, user); err != nil {
		s.logCacheError(ctx, "set", user.ID, err)
	}
}

func (s *UserService) evict(ctx context.Context, id int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteUser(ctx, id); err != nil {
		s.logCacheError(ctx, "delete", id, err)
	}
}

func (s *UserService) logCacheError(ctx context.Context, op string, id int64, err error) {
	s.logger.WarnContext(ctx, "user_cache_error",
		slog.String("op", op),
		slog.Int64("user_id", id),
		slog.String("error", err.Error()),
	)
}
