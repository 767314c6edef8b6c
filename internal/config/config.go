// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Store drivers selected from DATABASE_URL.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// ErrAuthRequiresPostgres is returned when API key auth is enabled on a SQLite store.
var ErrAuthRequiresPostgres = errors.New("AUTH_ENABLED requires a PostgreSQL DATABASE_URL")

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// Database: postgres://... or sqlite:path/to/file.db
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`
	AutoMigrate bool   `env:"AUTO_MIGRATE" envDefault:"true"`

	// Cache (Redis). Empty disables user caching, auth caching and rate limiting.
	RedisURL     string        `env:"REDIS_URL"`
	UserCacheTTL time.Duration `env:"USER_CACHE_TTL" envDefault:"10m"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// API key authentication
	AuthEnabled bool `env:"AUTH_ENABLED" envDefault:"false"`

	// Rate limiting (per API key, needs auth and Redis)
	RateLimitEnabled bool `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	RateLimitRPM     int  `env:"RATE_LIMIT_RPM" envDefault:"120"`
	RateLimitBurst   int  `env:"RATE_LIMIT_BURST" envDefault:"20"`

	// CORS configuration
	// Comma-separated list of allowed origins (e.g., "https://example.com,https://app.example.com")
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:""`

	// Request body size limit in bytes (default 1MB)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// DatabaseDriver infers the store driver from the DATABASE_URL scheme.
func (c *Config) DatabaseDriver() string {
	lower := strings.ToLower(c.DatabaseURL)
	if strings.HasPrefix(lower, "sqlite:") || strings.HasPrefix(lower, "file:") {
		return DriverSQLite
	}
	return DriverPostgres
}

// SQLitePath returns the DSN handed to the SQLite driver.
// "sqlite:" is stripped; "file:" URIs are passed through unchanged.
func (c *Config) SQLitePath() string {
	if strings.HasPrefix(strings.ToLower(c.DatabaseURL), "sqlite:") {
		return strings.TrimPrefix(c.DatabaseURL[len("sqlite:"):], "//")
	}
	return c.DatabaseURL
}

// CacheEnabled reports whether a Redis URL was configured.
func (c *Config) CacheEnabled() bool {
	return c.RedisURL != ""
}

// GetCORSAllowedOrigins parses the comma-separated origins string into a slice.
func (c *Config) GetCORSAllowedOrigins() []string {
	if c.CORSAllowedOrigins == "" {
		return nil
	}

	origins := strings.Split(c.CORSAllowedOrigins, ",")
	result := make([]string, 0, len(origins))

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// Validate checks combinations that env tags cannot express.
func (c *Config) Validate() error {
	if c.AuthEnabled && c.DatabaseDriver() != DriverPostgres {
		return ErrAuthRequiresPostgres
	}
	if c.RateLimitRPM < 0 || c.RateLimitBurst < 0 {
		return fmt.Errorf("rate limit values must not be negative")
	}
	if c.MaxRequestBodySize <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_SIZE must be positive")
	}
	return nil
}

// Load parses environment variables and returns a Config.
// Returns an error if required variables are missing.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
