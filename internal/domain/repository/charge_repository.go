package repository

import (
	"context"

	"github.com/nutribox/payment-service/internal/domain/model"
)

// ChargeRepository persists successful deductions reported by the gateway.
type ChargeRepository interface {
	// Save inserts a charge; a duplicate trade number is a no-op so that
	// redelivered notifications stay idempotent.
	Save(ctx context.Context, charge *model.Charge) error
	ListBySubscription(ctx context.Context, subscriptionID int64) ([]model.Charge, error)
}
