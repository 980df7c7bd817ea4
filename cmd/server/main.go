package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	handlers "github.com/nutribox/payment-service/internal/adapter/handler/http"
	"github.com/nutribox/payment-service/internal/config"
	"github.com/nutribox/payment-service/internal/infrastructure/crypto"
	"github.com/nutribox/payment-service/internal/infrastructure/database"
	"github.com/nutribox/payment-service/internal/infrastructure/gateway/peripay"
	httpServer "github.com/nutribox/payment-service/internal/infrastructure/http"
	"github.com/nutribox/payment-service/internal/metrics"
	"github.com/nutribox/payment-service/internal/usecase"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Initialize database connection
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := database.Close(db, logger); err != nil {
			logger.Error("Failed to close database connection", zap.Error(err))
		}
	}()

	// Run database migrations
	if err := database.Migrate(db, logger); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	// Initialize repositories
	repos := database.NewRepositories(db, logger)

	// Metrics registry
	registry := prometheus.NewRegistry()
	metrics.Register(registry)

	// Gateway client behind the sealed envelope
	envelope, err := crypto.NewAESEnvelope(cfg.Gateway.Key(), cfg.Gateway.IV())
	if err != nil {
		logger.Fatal("Failed to initialize gateway envelope", zap.Error(err))
	}
	gatewayClient := peripay.NewClient(&cfg.Gateway, envelope, logger)

	// Usecases share one per-subscription lock scope
	locks := usecase.NewKeyLock()
	subscriptionService := usecase.NewSubscriptionService(
		repos.Subscription, repos.Plan, repos.Charge, gatewayClient, locks, logger)
	notificationService := usecase.NewNotificationService(
		repos.Subscription, repos.Charge, repos.Notification, gatewayClient, locks, logger)
	reconcileService := usecase.NewReconcileService(
		repos.Subscription, locks, logger, cfg.Reconcile.Workers, cfg.Reconcile.BatchSize)

	plansHandler := handlers.NewPlansHandler(repos.Plan, logger)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Scheduled reconciliation
	scheduler := cron.New()
	if cfg.Reconcile.CronSpec != "" {
		_, err := scheduler.AddFunc(cfg.Reconcile.CronSpec, func() {
			if _, err := reconcileService.Commit(ctx); err != nil {
				logger.Error("Scheduled reconciliation failed", zap.Error(err))
			}
		})
		if err != nil {
			logger.Fatal("Invalid reconcile cron spec", zap.Error(err))
		}
		scheduler.Start()
		logger.Info("Reconciliation schedule installed",
			zap.String("cron_spec", cfg.Reconcile.CronSpec))
	}

	// Initialize server
	httpSrv := httpServer.NewServer(cfg, logger, registry,
		subscriptionService, notificationService, reconcileService, plansHandler)

	go func() {
		if err := httpSrv.Start(); err != nil {
			logger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down server...")

	stopCtx := scheduler.Stop()
	<-stopCtx.Done()

	if err := httpSrv.Shutdown(ctx); err != nil {
		logger.Error("Failed to shutdown HTTP server", zap.Error(err))
	}

	logger.Info("Server shut down successfully")
}
