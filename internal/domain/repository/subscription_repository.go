package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nutribox/payment-service/internal/domain/billing"
	"github.com/nutribox/payment-service/internal/domain/model"
)

// SubscriptionRepository persists subscription records. Cardholder data is
// never read or written through this interface.
type SubscriptionRepository interface {
	GetByID(ctx context.Context, id int64) (*model.Subscription, error)
	GetByPeriodNo(ctx context.Context, periodNo string) (*model.Subscription, error)
	GetByMerOrderNo(ctx context.Context, merOrderNo string) (*model.Subscription, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Subscription, error)

	// ListNonTerminal returns subscriptions whose status still admits
	// schedule changes, for reconciliation.
	ListNonTerminal(ctx context.Context, limit int) ([]model.Subscription, error)

	Create(ctx context.Context, sub *model.Subscription) error
	Update(ctx context.Context, sub *model.Subscription) error

	// UpdateSchedule rewrites the derived billing fields. It never touches
	// status.
	UpdateSchedule(ctx context.Context, id int64, sched billing.Schedule, chargedPeriods int, reconciledAt time.Time) error
}
