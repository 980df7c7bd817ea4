package usecase

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/nutribox/payment-service/internal/domain/billing"
	domainerrors "github.com/nutribox/payment-service/internal/domain/errors"
	"github.com/nutribox/payment-service/internal/domain/gateway"
	"github.com/nutribox/payment-service/internal/domain/model"
	"github.com/nutribox/payment-service/internal/domain/repository"
	"github.com/nutribox/payment-service/internal/metrics"
)

// NotificationService applies async gateway notifications to subscriptions.
type NotificationService struct {
	subs          repository.SubscriptionRepository
	charges       repository.ChargeRepository
	notifications repository.NotificationRepository
	gw            gateway.RecurringGateway
	locks         *KeyLock
	logger        *zap.Logger
}

func NewNotificationService(
	subs repository.SubscriptionRepository,
	charges repository.ChargeRepository,
	notifications repository.NotificationRepository,
	gw gateway.RecurringGateway,
	locks *KeyLock,
	logger *zap.Logger,
) *NotificationService {
	return &NotificationService{
		subs:          subs,
		charges:       charges,
		notifications: notifications,
		gw:            gw,
		locks:         locks,
		logger:        logger,
	}
}

// HandleNotification decrypts, records and applies one webhook payload.
// A payload that cannot be decrypted or parsed is rejected whole; nothing of
// it is applied to any subscription.
func (s *NotificationService) HandleNotification(ctx context.Context, sealedPayload, remoteIP string) error {
	n, err := s.gw.DecodeNotification(sealedPayload)
	if err != nil {
		metrics.NotificationsTotal.WithLabelValues("rejected").Inc()
		s.logger.Warn("Rejected gateway notification",
			zap.String("remote_ip", remoteIP),
			zap.Error(err))
		return err
	}

	event := &model.NotificationEvent{
		NotifyType:    n.NotifyType,
		SealedPayload: sealedPayload,
	}
	if n.TradeNo != "" {
		event.TradeNo = &n.TradeNo
	}
	if n.PeriodNo != "" {
		event.PeriodNo = &n.PeriodNo
	}
	if remoteIP != "" {
		event.IPAddress = &remoteIP
	}

	if err := s.notifications.Record(ctx, event); err != nil {
		// Only charge notifications carry a trade number to collide on;
		// trade-less status alters are always distinct events.
		if n.TradeNo != "" && errors.Is(err, domainerrors.ErrDuplicateNotification) {
			// Redelivery of an already-recorded notification: acknowledge.
			metrics.NotificationsTotal.WithLabelValues("duplicate").Inc()
			return nil
		}
		return err
	}

	if err := s.apply(ctx, n); err != nil {
		metrics.NotificationsTotal.WithLabelValues("failed").Inc()
		if markErr := s.notifications.MarkFailed(ctx, event.ID, err.Error()); markErr != nil {
			s.logger.Error("Failed to mark notification as failed", zap.Error(markErr))
		}
		return err
	}

	metrics.NotificationsTotal.WithLabelValues("applied").Inc()
	return s.notifications.MarkProcessed(ctx, event.ID)
}

func (s *NotificationService) apply(ctx context.Context, n *gateway.Notification) error {
	sub, err := s.findSubscription(ctx, n)
	if err != nil {
		return err
	}

	unlock := s.locks.Lock(sub.ID)
	defer unlock()

	// Reload under the lock; a user action may have just altered the record.
	sub, err = s.subs.GetByID(ctx, sub.ID)
	if err != nil {
		return err
	}

	if sub.Status == model.SubscriptionStatusPending && n.Succeeded {
		if sub.PeriodNo == nil && n.PeriodNo != "" {
			periodNo := n.PeriodNo
			sub.PeriodNo = &periodNo
		}
		next, err := model.NextStatus(sub.Status, model.EventAuthorized)
		if err != nil {
			return err
		}
		sub.Status = next
	}

	if n.Succeeded && n.TradeNo != "" && n.AmountCents > 0 {
		chargedAt := n.ChargedAt
		if chargedAt.IsZero() {
			chargedAt = time.Now()
		}
		periodIndex := n.ChargedPeriods
		if periodIndex < 1 {
			periodIndex = sub.ChargedPeriods + 1
		}
		if err := s.charges.Save(ctx, &model.Charge{
			UserID:         sub.UserID,
			SubscriptionID: sub.ID,
			TradeNo:        n.TradeNo,
			PeriodIndex:    periodIndex,
			AmountCents:    n.AmountCents,
			Currency:       sub.Currency,
			ChargedAt:      chargedAt,
		}); err != nil {
			return err
		}
		if periodIndex > sub.ChargedPeriods {
			sub.ChargedPeriods = periodIndex
		}

		sched := billing.Compute(sub.CreatedAt, sub.PeriodType, sub.ChargedPeriods, time.Now())
		sub.LastChargeAt = &sched.LastChargeAt
		sub.NextChargeAt = &sched.NextChargeAt
	}

	sub.RawNotification = model.JSONB(n.Raw)

	// Finite plans complete once the gateway has charged every authorized
	// period.
	if sub.TotalPeriods > 0 && sub.ChargedPeriods >= sub.TotalPeriods &&
		model.CanTransition(sub.Status, model.EventComplete) {
		next, err := model.NextStatus(sub.Status, model.EventComplete)
		if err != nil {
			return err
		}
		sub.Status = next
	}

	if err := s.subs.Update(ctx, sub); err != nil {
		return err
	}

	s.logger.Info("Gateway notification applied",
		zap.Int64("subscription_id", sub.ID),
		zap.String("trade_no", n.TradeNo),
		zap.String("notify_type", n.NotifyType),
		zap.String("status", string(sub.Status)))

	return nil
}

func (s *NotificationService) findSubscription(ctx context.Context, n *gateway.Notification) (*model.Subscription, error) {
	if n.PeriodNo != "" {
		sub, err := s.subs.GetByPeriodNo(ctx, n.PeriodNo)
		if err == nil {
			return sub, nil
		}
		if !errors.Is(err, domainerrors.ErrSubscriptionNotFound) {
			return nil, err
		}
	}
	if n.MerOrderNo != "" {
		return s.subs.GetByMerOrderNo(ctx, n.MerOrderNo)
	}
	return nil, domainerrors.ErrSubscriptionNotFound
}
