package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/linkforge/credsync-server-go/internal/cache"
	"github.com/linkforge/credsync-server-go/internal/config"
	"github.com/linkforge/credsync-server-go/internal/database"
	"github.com/linkforge/credsync-server-go/internal/handler"
	"github.com/linkforge/credsync-server-go/internal/jobs"
	"github.com/linkforge/credsync-server-go/internal/middleware"
	"github.com/linkforge/credsync-server-go/internal/redis"
	"github.com/linkforge/credsync-server-go/internal/repository"
	"github.com/linkforge/credsync-server-go/internal/service"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	isProduction := os.Getenv("FLY_APP_NAME") != ""
	if err := cfg.Validate(isProduction); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	cancel()
	log.Info().Msg("database connected")

	var (
		store       cache.Store
		limiter     service.Limiter
		redisClient *redis.Client
	)
	switch cfg.CacheBackend {
	case config.CacheBackendRedis:
		redisClient, err = redis.NewClient(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisClient.Close()
		log.Info().Msg("redis connected")

		store = cache.NewRedisStore(redisClient.Client)
		limiter = service.NewRateLimiter(redisClient.Client)
	default:
		memStore := cache.NewMemoryStore()
		store = memStore
		limiter = service.NewMemoryRateLimiter()

		sweepJob := jobs.NewSweepJob(memStore, config.SweepJobInterval)
		sweepJob.Start()
		defer sweepJob.Stop()
	}

	accountRepo := repository.NewAccountRecordRepository(db.DB)

	pairingService := service.NewPairingService(
		store,
		cfg.PairingBaseURL,
		cfg.PairingCodeTTL(),
		config.PairingCompletedRetention,
		cfg.EphemeralTokenTTL(),
	)
	syncService := service.NewSyncService(accountRepo)

	ownerAuth := middleware.NewOwnerAuthMiddleware(
		middleware.NewSignedCookieAuthenticator(cfg.OwnerSessionSecret),
	)
	ephemeralAuth := middleware.NewEphemeralAuthMiddleware(pairingService)
	claimLimit := middleware.NewIPRateLimitMiddleware(
		limiter, config.ClaimRateLimit, config.ClaimRateWindow, "claim",
	)
	statusLimit := middleware.NewIPRateLimitMiddleware(
		limiter, config.StatusRateLimit, config.StatusRateWindow, "status",
	)
	bodyLimit := middleware.NewBodyLimitMiddleware(0)
	securityHeaders := middleware.NewSecurityHeadersMiddleware(isProduction)

	pairingHandler := handler.NewPairingHandler(pairingService)
	accountHandler := handler.NewAccountHandler(syncService)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
	r.Use(bodyLimit.Handler)
	r.Use(securityHeaders.Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UnixMilli(),
		})
	})

	r.Route("/pairing", func(r chi.Router) {
		r.With(ownerAuth.Handler).Post("/codes", pairingHandler.GenerateCode)
		r.With(statusLimit.Handler).Get("/codes/{code}/status", pairingHandler.GetStatus)
		r.With(claimLimit.Handler).Post("/codes/{code}/claim", pairingHandler.Claim)
		r.With(ephemeralAuth.Handler).Delete("/tokens", pairingHandler.InvalidateToken)
	})

	r.Route("/accounts", func(r chi.Router) {
		r.With(ephemeralAuth.Handler).Post("/sync", accountHandler.Sync)
		r.With(ownerAuth.Handler).Get("/", accountHandler.List)
	})

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
