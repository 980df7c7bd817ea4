// Command reconcile runs one reconciliation pass from the shell. With
// -commit it persists corrections; without it, it prints the preview.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"

	"go.uber.org/zap"

	"github.com/nutribox/payment-service/internal/config"
	"github.com/nutribox/payment-service/internal/infrastructure/database"
	"github.com/nutribox/payment-service/internal/usecase"
)

func main() {
	commit := flag.Bool("commit", false, "apply corrections instead of previewing them")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close(db, logger)

	repos := database.NewRepositories(db, logger)
	service := usecase.NewReconcileService(
		repos.Subscription, usecase.NewKeyLock(), logger,
		cfg.Reconcile.Workers, cfg.Reconcile.BatchSize)

	ctx := context.Background()

	var result *usecase.Result
	if *commit {
		result, err = service.Commit(ctx)
	} else {
		result, err = service.Preview(ctx)
	}
	if err != nil {
		logger.Fatal("Reconciliation run failed", zap.Error(err))
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		logger.Fatal("Failed to encode result", zap.Error(err))
	}
}
