package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/veritrail/veritrail/internal/config"
	"github.com/veritrail/veritrail/internal/directory"
	"github.com/veritrail/veritrail/internal/entitystore"
	"github.com/veritrail/veritrail/internal/ledger"
	"github.com/veritrail/veritrail/internal/notify"
	"github.com/veritrail/veritrail/internal/obs"
	"github.com/veritrail/veritrail/internal/policy"
	"github.com/veritrail/veritrail/internal/server"
	"github.com/veritrail/veritrail/internal/store/postgres"
	redisstore "github.com/veritrail/veritrail/internal/store/redis"
	"github.com/veritrail/veritrail/internal/trace"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
}

func run() error {
	// Initialize structured logging from environment.
	logLevel := os.Getenv("VERITRAIL_LOG_LEVEL")
	level, parseErr := zerolog.ParseLevel(logLevel)
	if parseErr != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	logFormat := os.Getenv("VERITRAIL_LOG_FORMAT")
	if logFormat == "text" {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}

	ctx := context.Background()

	// Load configuration from environment.
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if cfg.Database.MaxConns < 0 || cfg.Database.MaxConns > math.MaxInt32 {
		return fmt.Errorf("database max_conns %d out of int32 range", cfg.Database.MaxConns)
	}

	// Connect to PostgreSQL.
	store, err := postgres.New(ctx, cfg.Database.DSN(), int32(cfg.Database.MaxConns)) //nolint:gosec // bounds checked above
	if err != nil {
		return err
	}
	defer store.Close()

	// Connect to Redis.
	pubsub, err := redisstore.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return err
	}
	defer pubsub.Close()

	obs.Init()

	// Derive per-tenant signing keys and build the audit ledger.
	keys, err := ledger.NewKeyring([]byte(cfg.Ledger.MasterKey))
	if err != nil {
		return fmt.Errorf("ledger keyring: %w", err)
	}
	led := ledger.New(store.AuditEvents(), keys).WithPublisher(pubsub)

	dir := directory.New(store.Users())

	entStore := entitystore.New(entitystore.Deps{
		Policy:        policy.New(nil),
		Ledger:        led,
		Organizations: store.Organizations(),
		Users:         store.Users(),
		Projects:      store.Projects(),
		Requirements:  store.Requirements(),
		TestCases:     store.TestCases(),
		TestRuns:      store.TestRuns(),
		TraceLinks:    store.TraceLinks(),
		Publisher:     pubsub,
	})
	auditReader := entitystore.NewAuditReader(entStore, store.AuditEvents())

	// Operator alerting: Slack when configured, log-only otherwise.
	var sender notify.Sender
	if cfg.Slack.BotToken != "" {
		sender = notify.NewSlackSender(cfg.Slack.BotToken)
		log.Info().Str("channel", cfg.Slack.AlertChannel).Msg("Slack alerting enabled")
	}
	notifier := notify.New(sender, cfg.Slack.AlertChannel)

	engine := trace.New(trace.Deps{
		Projects:     store.Projects(),
		Requirements: store.Requirements(),
		TestCases:    store.TestCases(),
		TestRuns:     store.TestRuns(),
		TraceLinks:   store.TraceLinks(),
		Snapshots:    store.Snapshots(),
		Ledger:       led,
		Weights:      cfg.Score.Weights,
		Alerter:      notifier,
		Publisher:    pubsub,
	})

	// Graceful shutdown on SIGINT / SIGTERM.
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Lazy score recomputation, debounced per project.
	scheduler := trace.NewScheduler(engine, pubsub, cfg.Score.Debounce)
	go func() {
		if runErr := scheduler.Run(ctx); runErr != nil && !errors.Is(runErr, context.Canceled) {
			log.Error().Err(runErr).Msg("score scheduler stopped")
		}
	}()

	// Daily audit retention sweep.
	retention := ledger.NewRetentionWorker(led, store.Organizations(), store.Projects(), cfg.Ledger.Retention, 24*time.Hour)
	go func() {
		if runErr := retention.Run(ctx); runErr != nil && !errors.Is(runErr, context.Canceled) {
			log.Error().Err(runErr).Msg("retention worker stopped")
		}
	}()

	// Create HTTP server with all routes wired.
	srv := server.New(ctx, cfg, server.Deps{
		Store:     entStore,
		Audit:     auditReader,
		Engine:    engine,
		Directory: dir,
		PubSub:    pubsub,
	})

	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("starting server")
		if startErr := srv.Start(ctx); startErr != nil {
			log.Error().Err(startErr).Msg("server error")
		}
	}()

	// Block until shutdown signal.
	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		return shutdownErr
	}

	log.Info().Msg("stopped")
	return nil
}
