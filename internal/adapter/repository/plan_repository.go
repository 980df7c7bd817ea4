package repository

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	domainerrors "github.com/nutribox/payment-service/internal/domain/errors"
	"github.com/nutribox/payment-service/internal/domain/model"
	"github.com/nutribox/payment-service/internal/domain/repository"
)

type planRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewPlanRepository creates a new plan repository
func NewPlanRepository(db *gorm.DB, logger *zap.Logger) repository.PlanRepository {
	return &planRepository{db: db, logger: logger}
}

func (r *planRepository) ListActive(ctx context.Context) ([]model.PaymentPlan, error) {
	var plans []model.PaymentPlan

	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("sort_order, id").
		Find(&plans).Error

	if err != nil {
		r.logger.Error("Failed to list active plans", zap.Error(err))
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}

	return plans, nil
}

func (r *planRepository) GetByID(ctx context.Context, id int64) (*model.PaymentPlan, error) {
	var plan model.PaymentPlan

	if err := r.db.WithContext(ctx).First(&plan, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrPlanNotFound
		}
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}

	return &plan, nil
}

func (r *planRepository) GetByCode(ctx context.Context, code string) (*model.PaymentPlan, error) {
	var plan model.PaymentPlan

	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&plan).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrPlanNotFound
		}
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}

	return &plan, nil
}
