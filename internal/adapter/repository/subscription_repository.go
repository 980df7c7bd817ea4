package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/nutribox/payment-service/internal/domain/billing"
	domainerrors "github.com/nutribox/payment-service/internal/domain/errors"
	"github.com/nutribox/payment-service/internal/domain/model"
	"github.com/nutribox/payment-service/internal/domain/repository"
)

type subscriptionRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewSubscriptionRepository creates a new subscription repository
func NewSubscriptionRepository(db *gorm.DB, logger *zap.Logger) repository.SubscriptionRepository {
	return &subscriptionRepository{db: db, logger: logger}
}

func (r *subscriptionRepository) GetByID(ctx context.Context, id int64) (*model.Subscription, error) {
	var sub model.Subscription

	err := r.db.WithContext(ctx).
		Preload("Plan").
		First(&sub, id).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrSubscriptionNotFound
		}
		r.logger.Error("Failed to get subscription by ID",
			zap.Int64("id", id),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}

	return &sub, nil
}

func (r *subscriptionRepository) GetByPeriodNo(ctx context.Context, periodNo string) (*model.Subscription, error) {
	var sub model.Subscription

	err := r.db.WithContext(ctx).
		Preload("Plan").
		Where("period_no = ?", periodNo).
		First(&sub).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrSubscriptionNotFound
		}
		r.logger.Error("Failed to get subscription by period number",
			zap.String("period_no", periodNo),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}

	return &sub, nil
}

func (r *subscriptionRepository) GetByMerOrderNo(ctx context.Context, merOrderNo string) (*model.Subscription, error) {
	var sub model.Subscription

	err := r.db.WithContext(ctx).
		Where("mer_order_no = ?", merOrderNo).
		First(&sub).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}

	return &sub, nil
}

func (r *subscriptionRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Subscription, error) {
	var subs []model.Subscription

	err := r.db.WithContext(ctx).
		Preload("Plan").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&subs).Error

	if err != nil {
		r.logger.Error("Failed to list subscriptions",
			zap.String("user_id", userID.String()),
			zap.Error(err))
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}

	return subs, nil
}

func (r *subscriptionRepository) ListNonTerminal(ctx context.Context, limit int) ([]model.Subscription, error) {
	var subs []model.Subscription

	q := r.db.WithContext(ctx).
		Where("status IN ?", []model.SubscriptionStatus{
			model.SubscriptionStatusActive,
			model.SubscriptionStatusSuspended,
		}).
		Order("id")
	if limit > 0 {
		q = q.Limit(limit)
	}

	if err := q.Find(&subs).Error; err != nil {
		r.logger.Error("Failed to list non-terminal subscriptions", zap.Error(err))
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}

	return subs, nil
}

func (r *subscriptionRepository) Create(ctx context.Context, sub *model.Subscription) error {
	if err := r.db.WithContext(ctx).Create(sub).Error; err != nil {
		r.logger.Error("Failed to create subscription",
			zap.String("mer_order_no", sub.MerOrderNo),
			zap.Error(err))
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	return nil
}

func (r *subscriptionRepository) Update(ctx context.Context, sub *model.Subscription) error {
	if err := r.db.WithContext(ctx).Save(sub).Error; err != nil {
		r.logger.Error("Failed to update subscription",
			zap.Int64("id", sub.ID),
			zap.Error(err))
		return fmt.Errorf("failed to update subscription: %w", err)
	}
	return nil
}

// UpdateSchedule rewrites derived billing fields only; status is deliberately
// not part of the update set.
func (r *subscriptionRepository) UpdateSchedule(ctx context.Context, id int64, sched billing.Schedule, chargedPeriods int, reconciledAt time.Time) error {
	updates := map[string]interface{}{
		"charged_periods": chargedPeriods,
		"last_charge_at":  sched.LastChargeAt,
		"next_charge_at":  sched.NextChargeAt,
		"reconciled_at":   reconciledAt,
		"updated_at":      time.Now(),
	}

	res := r.db.WithContext(ctx).
		Model(&model.Subscription{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		r.logger.Error("Failed to update subscription schedule",
			zap.Int64("id", id),
			zap.Error(res.Error))
		return fmt.Errorf("failed to update schedule: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domainerrors.ErrSubscriptionNotFound
	}
	return nil
}
