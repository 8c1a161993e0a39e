package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/Rrens/tnt-ai/internal/api"
	"github.com/Rrens/tnt-ai/internal/audio"
	"github.com/Rrens/tnt-ai/internal/config"
	"github.com/Rrens/tnt-ai/internal/logger"
	"github.com/Rrens/tnt-ai/internal/metrics"
	"github.com/Rrens/tnt-ai/internal/repository"
	"github.com/Rrens/tnt-ai/internal/repository/redis"
	"github.com/Rrens/tnt-ai/internal/security"
	"github.com/Rrens/tnt-ai/internal/service"
	"github.com/Rrens/tnt-ai/internal/storage"
	"github.com/Rrens/tnt-ai/internal/transcribe"
)

func main() {
	// Load .env file - try multiple locations
	for _, p := range []string{".env", "../.env", "../../.env"} {
		if err := godotenv.Load(p); err == nil {
			fmt.Printf("Loaded .env from: %s\n", p)
			break
		}
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	closer, err := logger.Setup(cfg.Logging)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to set up logging")
	}
	defer closer.Close()

	log.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Str("backend", cfg.Backend.BaseURL).
		Str("storage", cfg.Storage.Driver).
		Msg("Starting tnt-ai server")

	ctx := context.Background()
	m := metrics.New()

	// Session storage
	kv, err := repository.NewKVStore(ctx, cfg.Storage)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open session storage")
	}
	defer kv.Close()

	var storeOpts []storage.Option
	if cfg.Storage.EncryptionKey != "" {
		encryptor, err := security.NewEncryptor([]byte(cfg.Storage.EncryptionKey))
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid storage encryption key")
		}
		storeOpts = append(storeOpts, storage.WithCipher(encryptor))
	}
	store := storage.NewSessionStore(kv, storeOpts...)

	// Speech backend
	client := transcribe.NewClient(transcribe.Config{
		BaseURL:           cfg.Backend.BaseURL,
		APIKey:            cfg.Backend.APIKey,
		RequestTimeout:    cfg.Backend.RequestTimeout,
		HealthTimeout:     cfg.Backend.HealthTimeout,
		MaxRetries:        cfg.Backend.MaxRetries,
		RetryWait:         cfg.Backend.RetryWait,
		RetryClientErrors: cfg.Backend.RetryClientErrors,
		Metrics:           m,
	})

	sessions := service.NewSessionService(store, client, service.Options{
		Languages:       cfg.Languages.Supported,
		DefaultLanguage: cfg.Languages.Default,
		RequireOnline:   cfg.Backend.RequireOnline,
		Metrics:         m,
	})
	sessions.Init(ctx)

	go func() {
		online := sessions.CheckBackend(ctx)
		log.Info().Bool("online", online).Str("backend", client.BaseURL()).Msg("Backend probe finished")
	}()

	sink, err := audio.NewSink(cfg.Audio.RecordingsDir, cfg.Audio.MaxUploadBytes)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to prepare recordings directory")
	}

	deps := api.Deps{
		Sessions:   sessions,
		Sink:       sink,
		KV:         kv,
		Metrics:    m,
		BackendURL: client.BaseURL(),
	}

	// Device auth
	if cfg.Auth.Enabled() {
		deps.JWT = security.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL)
		if cfg.Auth.PairingCodeHash == "" {
			log.Warn().Msg("auth.pairing_code_hash is empty, new devices cannot pair")
		}
	}
	deps.Auth = service.NewAuthService(deps.JWT, cfg.Auth.PairingCodeHash)

	// Upload throttling
	if cfg.Security.RateLimit.Enabled {
		redisClient, err := redis.NewClient(ctx, cfg.Storage.Redis)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis for rate limiting")
		}
		defer redisClient.Close()

		deps.RateLimiter = redis.NewRateLimiter(
			redisClient,
			cfg.Security.RateLimit.RequestsPerMinute,
			cfg.Security.RateLimit.Burst,
		)
	}

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      api.NewRouter(cfg, deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info().Msgf("Server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// In-flight recordings settle as interrupted before storage closes.
	sessions.Close()

	log.Info().Msg("Server stopped")
}
