package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	"github.com/Rrens/tnt-ai/internal/api/handler"
	customMiddleware "github.com/Rrens/tnt-ai/internal/api/middleware"
	"github.com/Rrens/tnt-ai/internal/audio"
	"github.com/Rrens/tnt-ai/internal/config"
	"github.com/Rrens/tnt-ai/internal/domain"
	"github.com/Rrens/tnt-ai/internal/metrics"
	"github.com/Rrens/tnt-ai/internal/repository/redis"
	"github.com/Rrens/tnt-ai/internal/security"
	"github.com/Rrens/tnt-ai/internal/service"
)

// Deps are the components the router exposes. JWT and RateLimiter are
// optional; nil disables bearer auth and upload throttling.
type Deps struct {
	Sessions    *service.SessionService
	Auth        *service.AuthService
	JWT         *security.JWTManager
	Sink        *audio.Sink
	KV          domain.KVStore
	RateLimiter *redis.RateLimiter
	Metrics     *metrics.Metrics
	BackendURL  string
}

// NewRouter creates and configures the HTTP router
func NewRouter(cfg *config.Config, deps Deps) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(customMiddleware.Logger)
	r.Use(customMiddleware.Metrics(deps.Metrics))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.Server.MiddlewareTimeout))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if cfg.Metrics.Enabled && deps.Metrics != nil {
		r.Method(http.MethodGet, cfg.Metrics.Path, deps.Metrics.Handler())
	}

	sessionHandler := handler.NewSessionHandler(deps.Sessions)
	recordingHandler := handler.NewRecordingHandler(deps.Sessions, deps.Sink, cfg.Audio.MaxUploadBytes)
	authHandler := handler.NewAuthHandler(deps.Auth)

	var authMiddleware *customMiddleware.AuthMiddleware
	if deps.JWT != nil {
		authMiddleware = customMiddleware.NewAuthMiddleware(deps.JWT)
	} else {
		log.Warn().Msg("auth.jwt_secret is empty, API is unauthenticated")
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Health check
		r.Get("/health", handler.HealthCheck)
		r.Get("/ready", handler.ReadyCheck(deps.KV))

		// Pairing (public)
		r.Route("/auth", func(r chi.Router) {
			r.Post("/pair", authHandler.Pair)
			r.Post("/refresh", authHandler.Refresh)
			if authMiddleware != nil {
				r.With(authMiddleware.Authenticate).Get("/me", authHandler.Me)
			}
		})

		// Protected routes
		r.Group(func(r chi.Router) {
			if authMiddleware != nil {
				r.Use(authMiddleware.Authenticate)
			}

			r.Get("/backend/health", handler.BackendHealth(deps.Sessions, deps.BackendURL))
			r.Get("/languages", handler.Languages(deps.Sessions))

			r.Route("/sessions", func(r chi.Router) {
				r.Get("/", sessionHandler.List)
				r.Post("/", sessionHandler.Create)
				r.Delete("/", sessionHandler.Clear)
				r.Get("/active", sessionHandler.Active)

				r.Route("/{sessionID}", func(r chi.Router) {
					r.Get("/", sessionHandler.Get)
					r.Patch("/", sessionHandler.Rename)
					r.Delete("/", sessionHandler.Delete)
					r.Post("/select", sessionHandler.Select)
				})
			})

			r.Group(func(r chi.Router) {
				if deps.RateLimiter != nil {
					r.Use(customMiddleware.NewRateLimitMiddleware(deps.RateLimiter).Limit)
				}
				r.Post("/recordings", recordingHandler.Upload)
			})
		})
	})

	return r
}
