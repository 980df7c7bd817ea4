package repository

import (
	"context"

	"github.com/nutribox/payment-service/internal/domain/model"
)

// NotificationRepository records inbound gateway webhooks.
type NotificationRepository interface {
	// Record inserts the event; returns ErrDuplicateNotification when the
	// trade number was already seen.
	Record(ctx context.Context, event *model.NotificationEvent) error
	MarkProcessed(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, reason string) error
}
