package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/suspectuso/referral-bot/internal/broadcast"
	"github.com/suspectuso/referral-bot/internal/config"
	"github.com/suspectuso/referral-bot/internal/health"
	"github.com/suspectuso/referral-bot/internal/ledger"
	"github.com/suspectuso/referral-bot/internal/retry"
	"github.com/suspectuso/referral-bot/internal/storage"
	"github.com/suspectuso/referral-bot/internal/telegram"
	"github.com/suspectuso/referral-bot/internal/tracing"
)

const connectivityInterval = 30 * time.Second

func main() {
	// Load .env file
	envErr := godotenv.Load()

	// Load config
	cfg := config.Load()

	// Setup logger
	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	}))
	slog.SetDefault(log)

	if envErr != nil {
		log.Debug("no .env file found")
	}

	if err := cfg.Validate(); err != nil {
		log.Error("invalid config", "error", err)
		os.Exit(1)
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize tracing
	tracer, err := tracing.Init(tracing.Config{
		Enabled:  cfg.TracingEnabled,
		Endpoint: cfg.TracingEndpoint,
	})
	if err != nil {
		log.Error("init tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracing.Shutdown(shutdownCtx); err != nil {
			log.Warn("shutdown tracing", "error", err)
		}
	}()

	// Initialize storage
	backend, err := openStore(ctx, cfg)
	if err != nil {
		log.Error("init storage", "driver", cfg.StoreDriver, "error", err)
		os.Exit(1)
	}
	defer backend.Close()
	log.Info("storage initialized", "driver", cfg.StoreDriver)

	store := storage.NewTraced(backend, tracer)
	conn := storage.WatchConnectivity(ctx, store, connectivityInterval, log)

	// Initialize ledger
	led := ledger.New(store, ledger.Options{
		Retry: retry.Policy{
			Attempts:  cfg.RetryAttempts,
			BaseDelay: cfg.RetryBaseDelay,
			Log:       log,
		},
		StoreTimeout: cfg.StoreTimeout,
		ScanTimeout:  cfg.ScanTimeout,
		Optimistic:   cfg.OptimisticBalances,
	}, log)

	// Initialize telegram bot
	bot, err := telegram.New(cfg, led, log)
	if err != nil {
		log.Error("init telegram bot", "error", err)
		os.Exit(1)
	}
	log.Info("telegram bot initialized", "username", cfg.BotUsername)

	// Start broadcast schedule
	broadcaster := broadcast.New(led, bot, log)
	scheduler, err := broadcast.NewScheduler(ctx, broadcaster, broadcast.Schedule{
		PromoInterval:   cfg.PromoInterval,
		PromoFirstRun:   cfg.PromoFirstRun,
		RankingInterval: cfg.RankingInterval,
		RankingFirstRun: cfg.RankingFirstRun,
	}, log)
	if err != nil {
		log.Error("init broadcast scheduler", "error", err)
		os.Exit(1)
	}
	scheduler.Start()
	defer scheduler.Shutdown()

	// Start health server
	healthServer := health.NewServer(conn, log)
	go func() {
		if err := healthServer.Start(ctx, cfg.HealthPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("health server", "error", err)
		}
	}()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		log.Info("shutting down...")
		cancel()
	}()

	// Start bot polling
	supervise(ctx, cfg.RestartDelay, log, bot.Start)
}

func openStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	switch cfg.StoreDriver {
	case "redis":
		return storage.NewRedis(ctx, cfg.RedisURL, "referral:")
	case "memory":
		return storage.NewMemory(), nil
	default:
		return storage.NewSQLite(cfg.DBPath)
	}
}

// supervise runs poll until ctx is done, restarting it after delay whenever
// it panics or returns early.
func supervise(ctx context.Context, delay time.Duration, log *slog.Logger, poll func(ctx context.Context)) {
	for {
		log.Info("starting bot polling...")
		runPolling(ctx, log, poll)

		if ctx.Err() != nil {
			return
		}

		log.Error("bot polling stopped unexpectedly, restarting", "delay", delay)
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

func runPolling(ctx context.Context, log *slog.Logger, poll func(ctx context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("bot polling panic", "panic", r)
		}
	}()
	poll(ctx)
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}
