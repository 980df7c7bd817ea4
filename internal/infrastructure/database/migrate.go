package database

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/nutribox/payment-service/internal/domain/model"
)

// Migrate runs database migrations
func Migrate(db *gorm.DB, logger *zap.Logger) error {
	logger.Info("Running database migrations...")

	// Create custom types BEFORE auto-migrate
	if err := createCustomTypes(db); err != nil {
		logger.Error("Failed to create custom types", zap.Error(err))
		return err
	}

	// Auto-migrate all models
	err := db.AutoMigrate(
		&model.PaymentPlan{},
		&model.Subscription{},
		&model.Charge{},
		&model.NotificationEvent{},
	)
	if err != nil {
		logger.Error("Failed to run migrations", zap.Error(err))
		return err
	}

	// Create custom indexes and constraints
	if err := createCustomIndexes(db); err != nil {
		logger.Error("Failed to create custom indexes", zap.Error(err))
		return err
	}

	logger.Info("Database migrations completed successfully")
	return nil
}

// createCustomIndexes creates custom indexes that GORM doesn't handle automatically
func createCustomIndexes(db *gorm.DB) error {
	// One live (non-terminal) subscription per user and plan
	if err := db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS unique_live_subscription_per_user_plan ON subscriptions (user_id, plan_id) WHERE status IN ('pending', 'active', 'suspended')`).Error; err != nil {
		return err
	}

	// Unprocessed notification events, scanned by the replay tooling
	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_notification_events_unprocessed ON notification_events (created_at) WHERE processing_status IN ('pending', 'failed')`).Error; err != nil {
		return err
	}

	return nil
}

// createCustomTypes creates custom PostgreSQL types
func createCustomTypes(db *gorm.DB) error {
	var exists bool

	db.Raw(`SELECT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'subscription_status')`).Scan(&exists)
	if !exists {
		if err := db.Exec(`CREATE TYPE subscription_status AS ENUM ('pending', 'active', 'suspended', 'terminated', 'completed')`).Error; err != nil {
			return err
		}
	}

	db.Raw(`SELECT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'notification_status')`).Scan(&exists)
	if !exists {
		if err := db.Exec(`CREATE TYPE notification_status AS ENUM ('pending', 'completed', 'failed')`).Error; err != nil {
			return err
		}
	}

	return nil
}
