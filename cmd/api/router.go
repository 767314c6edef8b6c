package main

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/usersapi/usersapi/internal/auth"
	"github.com/usersapi/usersapi/internal/cache"
	"github.com/usersapi/usersapi/internal/config"
	"github.com/usersapi/usersapi/internal/handler"
	"github.com/usersapi/usersapi/internal/metrics"
	"github.com/usersapi/usersapi/internal/middleware"
	"github.com/usersapi/usersapi/internal/model"
	"github.com/usersapi/usersapi/internal/openapi"
	"github.com/usersapi/usersapi/internal/repository"
	"github.com/usersapi/usersapi/internal/service"
)

// routerDeps are the components the router wires together. keys is nil
// unless the store is PostgreSQL and cache is nil without REDIS_URL.
type routerDeps struct {
	cfg      *config.Config
	logger   *slog.Logger
	users    *service.UserService
	recorder *metrics.InMemoryRecorder
	store    handler.HealthChecker
	keys     *repository.Repository
	cache    *cache.Cache
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(d routerDeps) http.Handler {
	cfg := d.cfg

	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(d.logger))
	r.Use(middleware.Recoverer(d.logger))
	r.Use(middleware.Security(cfg.IsDevelopment()))
	r.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.GetCORSAllowedOrigins())))
	r.Use(middleware.MaxBodySize(cfg.MaxRequestBodySize))

	h := handler.New()

	deps := []handler.Dependency{{Name: cfg.DatabaseDriver(), Checker: d.store}}
	if d.cache != nil {
		deps = append(deps, handler.Dependency{Name: "redis", Checker: d.cache})
	} else {
		deps = append(deps, handler.Dependency{Name: "redis"})
	}
	health := handler.NewHealthHandler(deps...)

	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)
	r.Get("/metrics", handler.NewMetricsHandler(d.recorder).Metrics)
	r.Get("/openapi.yaml", openapi.Handler)
	r.Get("/", h.Hello)

	// Protection shared by every authenticated group.
	protect := func(r chi.Router) {
		if cfg.AuthEnabled {
			r.Use(middleware.Auth(authConfig(d)))
		}
		if cfg.RateLimitEnabled && d.cache != nil {
			r.Use(middleware.RateLimit(middleware.RateLimitConfig{
				Logger:            d.logger,
				Limiter:           d.cache,
				Metrics:           d.recorder,
				RequestsPerMinute: cfg.RateLimitRPM,
				Burst:             cfg.RateLimitBurst,
			}))
		}
		if cfg.AuthEnabled {
			r.Use(middleware.RequireMethodScope())
		}
	}

	v1 := handler.NewUserV1Handler(d.users, d.logger)
	v2 := handler.NewUserV2Handler(d.users, d.recorder, d.logger)

	r.Route("/v1", func(r chi.Router) {
		protect(r)
		v1.Register(r)
	})
	r.Route("/v2", func(r chi.Router) {
		protect(r)
		v2.Register(r)
	})

	if cfg.AuthEnabled && d.keys != nil {
		var revoker handler.KeyRevoker
		if d.cache != nil {
			revoker = d.cache
		}
		keys := handler.NewAPIKeyHandler(d.logger, d.keys, revoker, auth.DefaultParams)

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.Auth(authConfig(d)))
			r.Use(middleware.RequireScope(model.ScopeAdmin))
			keys.Register(r)
		})
	}

	// 404 and 405 handlers
	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)

	return r
}

func authConfig(d routerDeps) middleware.AuthConfig {
	cfg := middleware.AuthConfig{
		Logger:      d.logger,
		Keys:        d.keys,
		MinDuration: middleware.DefaultMinAuthDuration,
	}
	if d.cache != nil {
		cfg.Cache = d.cache
	}
	return cfg
}
