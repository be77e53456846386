package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"code-exec-service/internal/api"
	"code-exec-service/internal/config"
	"code-exec-service/internal/execution"
	"code-exec-service/internal/monitor"
	"code-exec-service/internal/piston"
	"code-exec-service/internal/storage"
)

func main() {
	// Structured logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	if os.Getenv("ENV") != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	var cfg *config.Config
	var err error

	if _, statErr := os.Stat(configPath); statErr == nil {
		cfg, err = config.Load(configPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", configPath).Msg("failed to load config")
		}
	} else {
		log.Info().Msg("no config file found, using defaults")
		cfg = config.DefaultConfig()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize metrics
	metrics := monitor.NewMetrics()

	// Sandbox gateway (remote Piston service)
	client := piston.NewClient(cfg.Piston)
	log.Info().
		Str("base_url", cfg.Piston.BaseURL).
		Dur("timeout", cfg.Piston.Timeout).
		Msg("piston gateway configured")

	// Record store: Postgres when configured, in-memory otherwise
	var store storage.Store
	var db *storage.DB
	if cfg.Database.DSN != "" {
		db, err = storage.NewDB(ctx, cfg.Database.DSN)
		if err != nil {
			log.Fatal().Err(err).Msg("database unavailable")
		}
		defer db.Close()
		store = db
	} else {
		log.Warn().Msg("no database configured — execution records are held in memory only")
		store = storage.NewMemoryStore()
	}

	pipeline := execution.NewPipeline(store, client, metrics)

	// Reconcile Pending rows whose terminal update was lost
	var sweeper *execution.Sweeper
	if cfg.Sweeper.Enabled {
		sweeper = execution.NewSweeper(store, cfg.Sweeper.Interval, cfg.Sweeper.StaleAfter)
		sweeper.Start()
		defer sweeper.Stop()
	}

	// Create and start HTTP server
	server := api.NewServer(cfg, pipeline, db, metrics)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh

		log.Info().Str("signal", sig.String()).Msg("shutting down")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("HTTP server shutdown error")
		}

		cancel()
	}()

	log.Info().
		Str("addr", cfg.Address()).
		Bool("db_enabled", db != nil).
		Bool("sweeper_enabled", sweeper != nil).
		Msg("server starting")

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server failed")
	}

	log.Info().Msg("server stopped")
}
