package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nutribox/payment-service/internal/domain/billing"
	domainerrors "github.com/nutribox/payment-service/internal/domain/errors"
	"github.com/nutribox/payment-service/internal/domain/gateway"
	"github.com/nutribox/payment-service/internal/domain/model"
	"github.com/nutribox/payment-service/internal/domain/repository"
)

// SubscriptionService drives the subscription lifecycle: it owns the local
// state machine checks, the per-subscription serialization of gateway calls,
// and persistence of the results.
type SubscriptionService struct {
	subs    repository.SubscriptionRepository
	plans   repository.PlanRepository
	charges repository.ChargeRepository
	gw      gateway.RecurringGateway
	locks   *KeyLock
	logger  *zap.Logger
}

func NewSubscriptionService(
	subs repository.SubscriptionRepository,
	plans repository.PlanRepository,
	charges repository.ChargeRepository,
	gw gateway.RecurringGateway,
	locks *KeyLock,
	logger *zap.Logger,
) *SubscriptionService {
	return &SubscriptionService{
		subs:    subs,
		plans:   plans,
		charges: charges,
		gw:      gw,
		locks:   locks,
		logger:  logger,
	}
}

// CreateSubscription persists a pending subscription, registers the plan at
// the gateway and applies the first transition. On a structured gateway
// rejection the record moves to terminated; no partial subscription is ever
// persisted as active. On an ambiguous transport failure the record stays
// pending for reconciliation or manual review.
func (s *SubscriptionService) CreateSubscription(ctx context.Context, userID uuid.UUID, planCode string, firstChargeNow bool) (*model.Subscription, error) {
	plan, err := s.plans.GetByCode(ctx, planCode)
	if err != nil {
		return nil, err
	}

	sub := &model.Subscription{
		UserID:       userID,
		PlanID:       &plan.ID,
		MerOrderNo:   uuid.NewString(),
		Status:       model.SubscriptionStatusPending,
		AmountCents:  plan.AmountCents(),
		Currency:     plan.Currency,
		PeriodType:   plan.PeriodType,
		TotalPeriods: plan.TotalPeriods,
	}
	if err := s.subs.Create(ctx, sub); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(sub.ID)
	defer unlock()

	resp, err := s.gw.CreatePlan(ctx, &gateway.CreatePlanRequest{
		MerOrderNo:     sub.MerOrderNo,
		AmountCents:    sub.AmountCents,
		PeriodType:     sub.PeriodType,
		PeriodPoint:    sub.PeriodPoint,
		TotalPeriods:   sub.TotalPeriods,
		FirstChargeNow: firstChargeNow,
	})
	if err != nil {
		var transportErr *gateway.TransportError
		if errors.As(err, &transportErr) && transportErr.Ambiguous {
			// Outcome unknown: the plan may exist at the gateway. Leave the
			// record pending rather than guessing either way.
			s.logger.Warn("Create outcome unknown, leaving subscription pending",
				zap.Int64("subscription_id", sub.ID),
				zap.Error(err))
			return nil, err
		}

		if applyErr := s.applyEvent(ctx, sub, model.EventCreateFailed); applyErr != nil {
			s.logger.Error("Failed to mark subscription create as failed",
				zap.Int64("subscription_id", sub.ID),
				zap.Error(applyErr))
		}
		return nil, err
	}

	// PeriodNo is assigned exactly once, here.
	sub.PeriodNo = &resp.PeriodNo
	if err := s.applyEvent(ctx, sub, model.EventAuthorized); err != nil {
		return nil, err
	}

	if resp.Immediate != nil {
		sub.ChargedPeriods = 1
		sched := billing.Compute(sub.CreatedAt, sub.PeriodType, sub.ChargedPeriods, time.Now())
		sub.LastChargeAt = &sched.LastChargeAt
		sub.NextChargeAt = &sched.NextChargeAt

		if err := s.charges.Save(ctx, &model.Charge{
			UserID:         sub.UserID,
			SubscriptionID: sub.ID,
			TradeNo:        resp.Immediate.TradeNo,
			PeriodIndex:    1,
			AmountCents:    resp.Immediate.AmountCents,
			Currency:       sub.Currency,
			ChargedAt:      resp.Immediate.PaidAt,
		}); err != nil {
			return nil, err
		}
	} else {
		sched := billing.Compute(sub.CreatedAt, sub.PeriodType, 0, time.Now())
		sub.NextChargeAt = &sched.NextChargeAt
	}

	if err := s.subs.Update(ctx, sub); err != nil {
		return nil, err
	}

	s.logger.Info("Subscription created",
		zap.Int64("subscription_id", sub.ID),
		zap.String("period_no", resp.PeriodNo),
		zap.String("plan", planCode))

	return sub, nil
}

// AlterStatus issues a suspend, terminate or restart for the subscription.
// The transition is validated locally before any gateway call; an illegal
// request fails with *model.StateTransitionError and never goes on the wire.
func (s *SubscriptionService) AlterStatus(ctx context.Context, id int64, op gateway.AlterOp) (*model.Subscription, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	// Reload under the lock: a concurrent caller may have already applied
	// the same operation.
	sub, err := s.subs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	event := eventForOp(op)

	// A duplicate terminate observes the terminal state and short-circuits
	// without a second remote call.
	if op == gateway.AlterOpTerminate && sub.Status == model.SubscriptionStatusTerminated {
		return sub, nil
	}

	if !model.CanTransition(sub.Status, event) {
		return nil, &model.StateTransitionError{From: sub.Status, Event: event}
	}
	if sub.PeriodNo == nil || *sub.PeriodNo == "" {
		return nil, domainerrors.ErrMissingPeriodNo
	}

	if _, err := s.gw.AlterStatus(ctx, &gateway.AlterStatusRequest{
		PeriodNo: *sub.PeriodNo,
		Op:       op,
	}); err != nil {
		return nil, err
	}

	if op == gateway.AlterOpTerminate {
		now := time.Now()
		sub.CanceledAt = &now
	}
	if err := s.applyEvent(ctx, sub, event); err != nil {
		return nil, err
	}

	s.logger.Info("Subscription status altered",
		zap.Int64("subscription_id", sub.ID),
		zap.String("op", string(op)),
		zap.String("status", string(sub.Status)))

	return sub, nil
}

// ChangeTerms sends a sparse amount/period-count delta to the gateway and
// mirrors the accepted changes locally.
func (s *SubscriptionService) ChangeTerms(ctx context.Context, id int64, amountCents *int64, totalPeriods *int) (*model.Subscription, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	sub, err := s.subs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if sub.Status.Terminal() || sub.Status == model.SubscriptionStatusPending {
		return nil, &model.StateTransitionError{From: sub.Status, Event: "alter_terms"}
	}
	if sub.PeriodNo == nil || *sub.PeriodNo == "" {
		return nil, domainerrors.ErrMissingPeriodNo
	}

	if _, err := s.gw.AlterTerms(ctx, &gateway.AlterTermsRequest{
		PeriodNo:     *sub.PeriodNo,
		AmountCents:  amountCents,
		TotalPeriods: totalPeriods,
	}); err != nil {
		return nil, err
	}

	if amountCents != nil {
		sub.AmountCents = *amountCents
	}
	if totalPeriods != nil {
		sub.TotalPeriods = *totalPeriods
	}
	if err := s.subs.Update(ctx, sub); err != nil {
		return nil, err
	}

	s.logger.Info("Subscription terms altered",
		zap.Int64("subscription_id", sub.ID))

	return sub, nil
}

func (s *SubscriptionService) GetSubscription(ctx context.Context, id int64) (*model.Subscription, error) {
	return s.subs.GetByID(ctx, id)
}

func (s *SubscriptionService) ListCharges(ctx context.Context, subscriptionID int64) ([]model.Charge, error) {
	return s.charges.ListBySubscription(ctx, subscriptionID)
}

// applyEvent moves sub through the state machine and persists it. Illegal
// transitions fail closed without touching the stored state.
func (s *SubscriptionService) applyEvent(ctx context.Context, sub *model.Subscription, event model.SubscriptionEvent) error {
	next, err := model.NextStatus(sub.Status, event)
	if err != nil {
		return err
	}
	sub.Status = next
	return s.subs.Update(ctx, sub)
}

func eventForOp(op gateway.AlterOp) model.SubscriptionEvent {
	switch op {
	case gateway.AlterOpSuspend:
		return model.EventSuspend
	case gateway.AlterOpRestart:
		return model.EventRestart
	default:
		return model.EventTerminate
	}
}
