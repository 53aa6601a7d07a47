package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/consultly/realtime/internal/api"
	"github.com/consultly/realtime/internal/bus"
	"github.com/consultly/realtime/internal/config"
	"github.com/consultly/realtime/internal/gateway"
	"github.com/consultly/realtime/internal/handlers"
	"github.com/consultly/realtime/internal/mirror"
	"github.com/consultly/realtime/internal/store"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Logger()
	}

	ctx := context.Background()

	// Run migrations
	if cfg.DatabaseURL != "" {
		logger.Info().Msg("running database migrations...")
		if err := store.RunMigrations(ctx, cfg.DatabaseURL); err != nil {
			logger.Fatal().Err(err).Msg("migration failed")
		}
		logger.Info().Msg("migrations completed")
	}

	// Initialize the durable store
	var pgStore *store.PostgresStore
	if cfg.DatabaseURL != "" {
		var err error
		pgStore, err = store.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres connection failed")
		}
		defer pgStore.Close()
		logger.Info().Msg("connected to PostgreSQL")
	}

	// Initialize the fast-path store
	limits := store.Limits{
		ChatHistoryCap:  cfg.ChatHistoryCap,
		NotificationCap: cfg.NotificationCap,
		PresenceTTL:     cfg.PresenceTTL,
		SignalTTL:       cfg.SignalTTL,
		StatusTTL:       cfg.StatusTTL,
	}
	redisStore, err := store.NewRedisStore(ctx, cfg.RedisURL, limits)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection failed")
	}
	defer redisStore.Close()
	logger.Info().Msg("connected to Redis")

	// Connect the event bus
	natsBus, err := bus.Connect(cfg.NatsURL, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("nats connection failed")
	}
	defer natsBus.Close()
	logger.Info().Msg("connected to NATS")

	// Start the durable mirror
	var m *mirror.Mirror
	if pgStore != nil {
		m = mirror.New(pgStore, logger, cfg.MirrorQueueSize, cfg.MirrorWorkers)
	} else {
		m = mirror.New(mirror.Discard{}, logger, cfg.MirrorQueueSize, cfg.MirrorWorkers)
		logger.Warn().Msg("no DATABASE_URL, durable mirror writes are discarded")
	}
	m.Start()
	defer m.Close()

	// Wire handlers and gateway
	var durable store.DurableStore
	if pgStore != nil {
		durable = pgStore
	}
	h := handlers.NewHandler(redisStore, durable, natsBus, m, logger)
	g := gateway.New(natsBus, redisStore, logger, cfg.KeepAliveInterval)

	router := api.NewRouter(logger, h, g, redisStore.Client())

	// Streams watch this context so shutdown can end them; Shutdown alone
	// only waits for handlers, it never cancels them.
	serverCtx, stopStreams := context.WithCancel(ctx)
	defer stopStreams()

	// WriteTimeout stays zero: push streams are long-lived and must not be
	// cut by a fixed write deadline. ReadHeaderTimeout still bounds slow
	// clients during setup.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return serverCtx
		},
	}

	// Start server in goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Msg("starting realtime service")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server...")

	// Graceful shutdown with 30 second timeout. Open push streams are
	// terminated by the shutdown; the mirror drains after the server stops
	// producing.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	stopStreams()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server stopped")
}
