// Package main - sandbox daemon
// Serves the daemon push feed and command endpoints from memory, so the
// taker and maker clients can run without a real daemon.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/meaze0507/itchysats/internal/api/handlers"
	"github.com/meaze0507/itchysats/internal/api/router"
	"github.com/meaze0507/itchysats/internal/pkg/config"
	"github.com/meaze0507/itchysats/internal/pkg/logger"
	"github.com/meaze0507/itchysats/internal/service/sandbox"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const (
	serviceName    = "cfd-sandbox"
	serviceVersion = "0.1.0"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize logger
	closer, err := logger.Init(logger.Config{
		Level:          cfg.Logging.Level,
		Format:         cfg.Logging.Format,
		FileEnabled:    cfg.Logging.FileEnabled,
		FilePath:       cfg.Logging.FilePath,
		RotationSize:   cfg.Logging.RotationSize,
		RetentionDays:  cfg.Logging.RetentionDays,
		ServiceName:    serviceName,
		ServiceVersion: serviceVersion,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize logger")
	}
	defer closer.Close()

	log.Info().
		Str("service", serviceName).
		Str("version", serviceVersion).
		Msg("Starting sandbox daemon")

	if err := run(cfg); err != nil {
		log.Error().Err(err).Msg("Sandbox daemon failed")
		closer.Close()
		os.Exit(1)
	}

	log.Info().Msg("Sandbox daemon stopped")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// State
	hub := sandbox.NewHub(sandbox.DefaultHubConfig())
	book := sandbox.NewOfferBook(hub, sandbox.DefaultBookConfig())
	market := sandbox.NewMarket(hub, decimal.NewFromInt(42000), cfg.Sandbox.TickInterval)

	var accessLogger *zerolog.Logger
	if cfg.Logging.FileEnabled {
		l := logger.NewAccessLogger(cfg.Logging.FilePath, cfg.Logging.RotationSize, cfg.Logging.RetentionDays)
		accessLogger = &l
	}

	handler := router.NewRouter(&router.Config{
		FeedHandler:    handlers.NewFeedStreamHandler(hub, cfg.Sandbox.KeepAlive),
		CommandHandler: handlers.NewCommandHandler(book),
		HealthHandler:  handlers.NewHealthHandler(hub, serviceVersion),
		AccessLogger:   accessLogger,
		AllowedOrigins: cfg.Sandbox.AllowedOrigins,
		CommandTimeout: cfg.Daemon.HTTPTimeout,
	})

	// No write timeout, the push feed is long lived
	addr := fmt.Sprintf(":%s", cfg.Sandbox.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	// Ends open feed streams so Shutdown does not wait for them
	server.RegisterOnShutdown(hub.Close)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().
			Str("address", addr).
			Msg("Sandbox daemon listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return market.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutdown signal received, stopping server...")

		// Graceful shutdown with timeout
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}
