package repository

import (
	"context"

	"github.com/nutribox/payment-service/internal/domain/model"
)

// PlanRepository reads the purchasable plan catalog.
type PlanRepository interface {
	ListActive(ctx context.Context) ([]model.PaymentPlan, error)
	GetByID(ctx context.Context, id int64) (*model.PaymentPlan, error)
	GetByCode(ctx context.Context, code string) (*model.PaymentPlan, error)
}
