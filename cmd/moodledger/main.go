package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/boddenberg/moodledger-go/internal/challenge"
	"github.com/boddenberg/moodledger-go/internal/config"
	"github.com/boddenberg/moodledger-go/internal/domain"
	"github.com/boddenberg/moodledger-go/internal/handler"
	"github.com/boddenberg/moodledger-go/internal/infra/cache"
	"github.com/boddenberg/moodledger-go/internal/infra/notify"
	"github.com/boddenberg/moodledger-go/internal/infra/observability"
	"github.com/boddenberg/moodledger-go/internal/infra/resilience"
	"github.com/boddenberg/moodledger-go/internal/infra/sqlite"
	"github.com/boddenberg/moodledger-go/internal/port"
	"github.com/boddenberg/moodledger-go/internal/recurring"
	"github.com/boddenberg/moodledger-go/internal/service"

	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	loc, err := cfg.Location()
	if err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("database_path", cfg.DatabasePath),
		zap.String("timezone", loc.String()),
		zap.String("currency", cfg.Currency),
		zap.Duration("refresh_interval", cfg.RefreshInterval),
		zap.Int("max_occurrences_per_template", cfg.MaxOccurrencesPerTemplate),
		zap.Duration("catalog_cache_ttl", cfg.CatalogCacheTTL),
		zap.Bool("webhook_enabled", cfg.NotifyWebhookURL != ""),
		zap.Bool("auth_enabled", cfg.PasscodeHash != ""),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "moodledger")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
	}

	// --- Storage ---
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := sqlite.Open(ctx, cfg.DatabasePath, resilienceCfg, logger)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer store.Close()

	if err := store.SeedCatalog(ctx, challenge.DefaultCatalog()); err != nil {
		logger.Fatal("failed to seed challenge catalog", zap.Error(err))
	}

	// --- Cache ---
	catalogCache := cache.New[[]domain.Challenge](cfg.CatalogCacheTTL)
	defer catalogCache.Close()

	// --- Notifications ---
	var notifier port.Notifier
	if cfg.NotifyWebhookURL != "" {
		httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
		cb := resilience.NewCircuitBreaker("notify-webhook")
		notifier = notify.NewWebhook(httpClient, cfg.NotifyWebhookURL, cb, resilienceCfg)
		logger.Info("anomaly reports delivered to webhook")
	} else {
		notifier = notify.NewLog(logger)
		logger.Info("anomaly reports written to log only")
	}

	// --- Services ---
	ledgerSvc := service.NewLedgerService(
		store,
		recurring.NewEngine(loc, cfg.MaxOccurrencesPerTemplate),
		catalogCache,
		notifier,
		metrics,
		logger,
		cfg.Currency,
	)
	authSvc := service.NewAuthService(cfg.PasscodeHash, cfg.JWTSecret, cfg.JWTTTL, logger)
	if !authSvc.Enabled() {
		logger.Warn("auth disabled: PASSCODE_HASH not set, API is open to local clients")
	}

	// --- Launch refresh: catch-up first, then challenge re-evaluation ---
	if _, err := ledgerSvc.Refresh(ctx); err != nil {
		logger.Error("launch refresh failed", zap.Error(err))
	}
	go ledgerSvc.Run(ctx, cfg.RefreshInterval)

	// --- Router ---
	router := handler.NewRouter(ledgerSvc, authSvc, store, metrics, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()

	logger.Info("server shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced shutdown", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("server stopped")
}
