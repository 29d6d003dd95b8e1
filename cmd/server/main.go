package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"rpg-server/internal/api"
	authapp "rpg-server/internal/app/auth"
	charapp "rpg-server/internal/app/character"
	eventsapp "rpg-server/internal/app/events"
	"rpg-server/internal/platform/cache"
	"rpg-server/internal/platform/config"
	"rpg-server/internal/platform/db"
	"rpg-server/internal/platform/migrate"
	"rpg-server/internal/platform/mq"
	"rpg-server/internal/platform/observability"
	"rpg-server/internal/store"
)

func main() {
	ctx := context.Background()
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger := observability.NewLogger(cfg.Env)

	pg, err := db.Connect(ctx, cfg.PostgresURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection failed")
	}
	defer pg.Close()

	if err := migrate.Up(ctx, pg, cfg.MigrationDir); err != nil {
		logger.Fatal().Err(err).Msg("migrations failed")
	}

	var redisClient *redis.Client
	redisClient, err = cache.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Warn().Err(err).Msg("redis unavailable; continuing without cache")
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	bus, err := mq.NewBus(cfg.NATSURL)
	if err != nil {
		logger.Warn().Err(err).Msg("nats unavailable; using noop bus")
		bus = mq.NewNoopBus()
	}
	defer bus.Close()

	accounts := store.NewAccounts(pg)
	characters := store.NewCharacters(pg)

	authSvc := authapp.NewService(accounts, bus, cfg.JWTSecret, cfg.JWTTTL)
	charSvc := charapp.NewService(characters, redisClient, cfg.CharacterCacheTTL, bus)
	eventsSvc := eventsapp.NewService(logger, bus)
	if err := eventsSvc.Start(); err != nil {
		logger.Warn().Err(err).Msg("event feed unavailable")
	}
	defer eventsSvc.Stop()

	handler := api.NewHandler(logger, authSvc, charSvc, eventsSvc, cfg.CorsOrigin, cfg.MaxRequestBody)
	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      handler.Router(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	<-sigCh
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown failed")
	}
	logger.Info().Msg("server stopped")
}
