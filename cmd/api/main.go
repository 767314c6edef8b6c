// Package main is the entrypoint for the users API server.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/joho/godotenv"

	"github.com/usersapi/usersapi/internal/cache"
	"github.com/usersapi/usersapi/internal/config"
	"github.com/usersapi/usersapi/internal/handler"
	"github.com/usersapi/usersapi/internal/metrics"
	"github.com/usersapi/usersapi/internal/repository"
	"github.com/usersapi/usersapi/internal/repository/sqlite"
	"github.com/usersapi/usersapi/internal/server"
	"github.com/usersapi/usersapi/internal/service"
)

// userStore is a user store the readiness probe can ping.
type userStore interface {
	service.UserStore
	handler.HealthChecker
}

func main() {
	ctx := context.Background()

	// A missing .env is fine; real environment variables always win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to read .env", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	recorder := metrics.NewInMemory()

	// Store
	var (
		store      userStore
		repo       *repository.Repository
		closeStore func() error
	)
	switch cfg.DatabaseDriver() {
	case config.DriverSQLite:
		sqliteStore, err := sqlite.Open(ctx, cfg.SQLitePath())
		if err != nil {
			logger.Error("failed to open sqlite database",
				slog.String("error", err.Error()),
				slog.String("path", cfg.SQLitePath()),
			)
			os.Exit(1)
		}
		store = sqliteStore
		closeStore = sqliteStore.Close
		logger.Info("opened sqlite database", slog.String("path", cfg.SQLitePath()))
	default:
		repo, err = repository.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to database",
				slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
				slog.String("database_url", redactURL(cfg.DatabaseURL)),
			)
			os.Exit(1)
		}
		logger.Info("connected to database", slog.String("database_url", redactURL(cfg.DatabaseURL)))

		if cfg.AutoMigrate {
			applied, err := repo.Migrate(ctx)
			if err != nil {
				logger.Error("failed to apply migrations", slog.String("error", err.Error()))
				os.Exit(1)
			}
			logger.Info("migrations applied", slog.Any("versions", applied))
		}
		store = repo
		closeStore = func() error {
			repo.Close()
			return nil
		}
	}

	// Cache
	var cacheClient *cache.Cache
	if cfg.CacheEnabled() {
		cacheClient, err = cache.New(ctx, cfg.RedisURL, cfg.UserCacheTTL)
		if err != nil {
			logger.Error("failed to connect to Redis",
				slog.String("error", sanitizeError(err, cfg.RedisURL)),
				slog.String("redis_url", redactURL(cfg.RedisURL)),
			)
			os.Exit(1)
		}
		logger.Info("connected to Redis", slog.String("redis_url", redactURL(cfg.RedisURL)))
	} else {
		logger.Info("REDIS_URL not set; caching and rate limiting disabled")
	}

	// Services
	var userCache service.UserCache
	if cacheClient != nil {
		userCache = cacheClient
	}
	users := service.NewUserService(store, userCache, recorder, logger)

	deps := routerDeps{
		cfg:      cfg,
		logger:   logger,
		users:    users,
		recorder: recorder,
		store:    store,
		keys:     repo,
		cache:    cacheClient,
	}
	r := setupRouter(deps)

	srv := server.New(r, server.Options{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	// Registered first, stopped last.
	srv.OnShutdown("store", func(ctx context.Context) error {
		return closeStore()
	})
	if cacheClient != nil {
		srv.OnShutdown("cache", func(ctx context.Context) error {
			return cacheClient.Close()
		})
	}

	logger.Info("starting server",
		slog.Int("port", cfg.AppPort),
		slog.String("env", cfg.AppEnv),
		slog.String("store", cfg.DatabaseDriver()),
		slog.Bool("auth", cfg.AuthEnabled),
		slog.Bool("cache", cacheClient != nil),
	)

	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
