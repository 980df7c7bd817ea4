package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	domainerrors "github.com/nutribox/payment-service/internal/domain/errors"
	"github.com/nutribox/payment-service/internal/domain/model"
	"github.com/nutribox/payment-service/internal/domain/repository"
)

type notificationRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewNotificationRepository creates a new notification event repository
func NewNotificationRepository(db *gorm.DB, logger *zap.Logger) repository.NotificationRepository {
	return &notificationRepository{db: db, logger: logger}
}

func (r *notificationRepository) Record(ctx context.Context, event *model.NotificationEvent) error {
	err := r.db.WithContext(ctx).Create(event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domainerrors.ErrDuplicateNotification
		}
		r.logger.Error("Failed to record notification event",
			zap.Stringp("trade_no", event.TradeNo),
			zap.Error(err))
		return fmt.Errorf("failed to record notification: %w", err)
	}
	return nil
}

func (r *notificationRepository) MarkProcessed(ctx context.Context, id int64) error {
	now := time.Now()
	err := r.db.WithContext(ctx).
		Model(&model.NotificationEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"processing_status": model.NotificationStatusCompleted,
			"processed_at":      now,
			"updated_at":        now,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to mark notification processed: %w", err)
	}
	return nil
}

func (r *notificationRepository) MarkFailed(ctx context.Context, id int64, reason string) error {
	err := r.db.WithContext(ctx).
		Model(&model.NotificationEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"processing_status": model.NotificationStatusFailed,
			"last_error":        reason,
			"updated_at":        time.Now(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to mark notification failed: %w", err)
	}
	return nil
}
