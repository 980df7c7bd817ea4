package repository

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nutribox/payment-service/internal/domain/model"
	"github.com/nutribox/payment-service/internal/domain/repository"
)

type chargeRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewChargeRepository creates a new charge repository
func NewChargeRepository(db *gorm.DB, logger *zap.Logger) repository.ChargeRepository {
	return &chargeRepository{db: db, logger: logger}
}

// Save inserts a charge row. Redelivered notifications carry the same trade
// number, so conflicts on it are ignored to keep processing idempotent.
func (r *chargeRepository) Save(ctx context.Context, charge *model.Charge) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "trade_no"}},
			DoNothing: true,
		}).
		Create(charge).Error

	if err != nil {
		r.logger.Error("Failed to save charge",
			zap.String("trade_no", charge.TradeNo),
			zap.Error(err))
		return fmt.Errorf("failed to save charge: %w", err)
	}
	return nil
}

func (r *chargeRepository) ListBySubscription(ctx context.Context, subscriptionID int64) ([]model.Charge, error) {
	var charges []model.Charge

	err := r.db.WithContext(ctx).
		Where("subscription_id = ?", subscriptionID).
		Order("charged_at DESC").
		Find(&charges).Error

	if err != nil {
		r.logger.Error("Failed to list charges",
			zap.Int64("subscription_id", subscriptionID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to list charges: %w", err)
	}

	return charges, nil
}
