package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nutribox/payment-service/internal/domain/billing"
	domainerrors "github.com/nutribox/payment-service/internal/domain/errors"
	"github.com/nutribox/payment-service/internal/domain/gateway"
	"github.com/nutribox/payment-service/internal/domain/model"
)

func monthlyPlan() *model.PaymentPlan {
	return &model.PaymentPlan{
		ID:         1,
		Code:       "premium-monthly",
		Price:      decimal.NewFromFloat(12.00),
		Currency:   "USD",
		PeriodType: billing.PeriodTypeMonth,
		IsActive:   true,
	}
}

func newSubscriptionFixture(gw *fakeGateway) (*SubscriptionService, *fakeSubRepo, *fakeChargeRepo) {
	subs := newFakeSubRepo()
	charges := &fakeChargeRepo{}
	svc := NewSubscriptionService(subs, newFakePlanRepo(monthlyPlan()), charges, gw, NewKeyLock(), zap.NewNop())
	return svc, subs, charges
}

func seedActive(subs *fakeSubRepo, periodNo string) *model.Subscription {
	sub := &model.Subscription{
		UserID:     uuid.New(),
		MerOrderNo: uuid.NewString(),
		Status:     model.SubscriptionStatusActive,
		PeriodType: billing.PeriodTypeMonth,
		Currency:   "USD",
	}
	if periodNo != "" {
		sub.PeriodNo = &periodNo
	}
	return subs.seed(sub)
}

func TestCreateSubscriptionImmediateAuth(t *testing.T) {
	gw := &fakeGateway{
		createFn: func(req *gateway.CreatePlanRequest) (*gateway.CreatePlanResponse, error) {
			assert.Equal(t, int64(1200), req.AmountCents)
			assert.True(t, req.FirstChargeNow)
			return &gateway.CreatePlanResponse{
				PeriodNo: "P100",
				Immediate: &gateway.ImmediateAuth{
					TradeNo:     "T1",
					AmountCents: 1200,
					PaidAt:      time.Now(),
				},
			}, nil
		},
	}
	svc, subs, charges := newSubscriptionFixture(gw)

	sub, err := svc.CreateSubscription(context.Background(), uuid.New(), "premium-monthly", true)
	require.NoError(t, err)

	assert.Equal(t, model.SubscriptionStatusActive, sub.Status)
	require.NotNil(t, sub.PeriodNo)
	assert.Equal(t, "P100", *sub.PeriodNo)
	assert.Equal(t, 1, sub.ChargedPeriods)
	assert.NotNil(t, sub.LastChargeAt)
	assert.NotNil(t, sub.NextChargeAt)

	stored := subs.stored(sub.ID)
	assert.Equal(t, model.SubscriptionStatusActive, stored.Status)

	rows, err := charges.ListBySubscription(context.Background(), sub.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "T1", rows[0].TradeNo)
	assert.Equal(t, 1, rows[0].PeriodIndex)
}

func TestCreateSubscriptionAcknowledgment(t *testing.T) {
	gw := &fakeGateway{
		createFn: func(req *gateway.CreatePlanRequest) (*gateway.CreatePlanResponse, error) {
			return &gateway.CreatePlanResponse{PeriodNo: "P101"}, nil
		},
	}
	svc, _, charges := newSubscriptionFixture(gw)

	sub, err := svc.CreateSubscription(context.Background(), uuid.New(), "premium-monthly", false)
	require.NoError(t, err)

	assert.Equal(t, model.SubscriptionStatusActive, sub.Status)
	assert.Zero(t, sub.ChargedPeriods)
	assert.Nil(t, sub.LastChargeAt)
	assert.NotNil(t, sub.NextChargeAt)
	assert.Empty(t, charges.charges)
}

func TestCreateSubscriptionRejectedByGateway(t *testing.T) {
	gw := &fakeGateway{
		createFn: func(req *gateway.CreatePlanRequest) (*gateway.CreatePlanResponse, error) {
			return nil, &gateway.ProtocolError{Status: "RISK_REFUSED", Message: "card declined"}
		},
	}
	svc, subs, _ := newSubscriptionFixture(gw)

	_, err := svc.CreateSubscription(context.Background(), uuid.New(), "premium-monthly", false)

	var protoErr *gateway.ProtocolError
	require.ErrorAs(t, err, &protoErr)
	assert.Equal(t, "RISK_REFUSED", protoErr.Status)

	// The rejection is definitive: the record moves to terminated, never
	// lingers pending and never becomes active.
	require.Len(t, subs.subs, 1)
	for id := range subs.subs {
		assert.Equal(t, model.SubscriptionStatusTerminated, subs.stored(id).Status)
	}
}

func TestCreateSubscriptionAmbiguousTransportFailure(t *testing.T) {
	gw := &fakeGateway{
		createFn: func(req *gateway.CreatePlanRequest) (*gateway.CreatePlanResponse, error) {
			return nil, &gateway.TransportError{Op: "create", Ambiguous: true, Err: errors.New("timeout")}
		},
	}
	svc, subs, _ := newSubscriptionFixture(gw)

	_, err := svc.CreateSubscription(context.Background(), uuid.New(), "premium-monthly", false)

	var transportErr *gateway.TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.True(t, transportErr.Ambiguous)

	// The plan may or may not exist at the gateway; the record stays pending
	// for reconciliation instead of guessing either way.
	require.Len(t, subs.subs, 1)
	for id := range subs.subs {
		assert.Equal(t, model.SubscriptionStatusPending, subs.stored(id).Status)
	}
}

func TestCreateSubscriptionUnknownPlan(t *testing.T) {
	svc, subs, _ := newSubscriptionFixture(&fakeGateway{})

	_, err := svc.CreateSubscription(context.Background(), uuid.New(), "no-such-plan", false)

	assert.ErrorIs(t, err, domainerrors.ErrPlanNotFound)
	assert.Empty(t, subs.subs)
}

func TestAlterStatusIllegalTransitionNeverReachesGateway(t *testing.T) {
	gw := &fakeGateway{}
	svc, subs, _ := newSubscriptionFixture(gw)

	sub := subs.seed(&model.Subscription{
		UserID:     uuid.New(),
		MerOrderNo: uuid.NewString(),
		Status:     model.SubscriptionStatusPending,
		PeriodType: billing.PeriodTypeMonth,
	})

	_, err := svc.AlterStatus(context.Background(), sub.ID, gateway.AlterOpSuspend)

	var transitionErr *model.StateTransitionError
	require.ErrorAs(t, err, &transitionErr)
	assert.Equal(t, model.SubscriptionStatusPending, transitionErr.From)

	_, alter, _ := gw.calls()
	assert.Zero(t, alter, "illegal transitions must be rejected before any remote call")
	assert.Equal(t, model.SubscriptionStatusPending, subs.stored(sub.ID).Status)
}

func TestAlterStatusMissingPeriodNo(t *testing.T) {
	gw := &fakeGateway{}
	svc, subs, _ := newSubscriptionFixture(gw)

	sub := seedActive(subs, "")

	_, err := svc.AlterStatus(context.Background(), sub.ID, gateway.AlterOpSuspend)

	assert.ErrorIs(t, err, domainerrors.ErrMissingPeriodNo)
	_, alter, _ := gw.calls()
	assert.Zero(t, alter)
}

func TestAlterStatusTerminate(t *testing.T) {
	gw := &fakeGateway{}
	svc, subs, _ := newSubscriptionFixture(gw)

	sub := seedActive(subs, "P100")

	got, err := svc.AlterStatus(context.Background(), sub.ID, gateway.AlterOpTerminate)
	require.NoError(t, err)

	assert.Equal(t, model.SubscriptionStatusTerminated, got.Status)
	assert.NotNil(t, got.CanceledAt)
	assert.Equal(t, model.SubscriptionStatusTerminated, subs.stored(sub.ID).Status)
}

func TestAlterStatusSuspendThenRestart(t *testing.T) {
	gw := &fakeGateway{}
	svc, subs, _ := newSubscriptionFixture(gw)

	sub := seedActive(subs, "P100")

	got, err := svc.AlterStatus(context.Background(), sub.ID, gateway.AlterOpSuspend)
	require.NoError(t, err)
	assert.Equal(t, model.SubscriptionStatusSuspended, got.Status)

	got, err = svc.AlterStatus(context.Background(), sub.ID, gateway.AlterOpRestart)
	require.NoError(t, err)
	assert.Equal(t, model.SubscriptionStatusActive, got.Status)

	_, alter, _ := gw.calls()
	assert.Equal(t, 2, alter)
}

// Two concurrent terminates: the lock serializes them, the second observes
// the terminal state after reload and short-circuits. Exactly one remote call.
func TestAlterStatusConcurrentDuplicateTerminate(t *testing.T) {
	gw := &fakeGateway{
		alterFn: func(req *gateway.AlterStatusRequest) (*gateway.AlterStatusResponse, error) {
			time.Sleep(20 * time.Millisecond)
			return &gateway.AlterStatusResponse{PeriodNo: req.PeriodNo, Op: req.Op}, nil
		},
	}
	svc, subs, _ := newSubscriptionFixture(gw)

	sub := seedActive(subs, "P100")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.AlterStatus(context.Background(), sub.ID, gateway.AlterOpTerminate)
		}(i)
	}
	wg.Wait()

	assert.NoError(t, errs[0])
	assert.NoError(t, errs[1])

	_, alter, _ := gw.calls()
	assert.Equal(t, 1, alter, "the duplicate terminate must not reach the gateway")
	assert.Equal(t, model.SubscriptionStatusTerminated, subs.stored(sub.ID).Status)
}

func TestChangeTerms(t *testing.T) {
	gw := &fakeGateway{}
	svc, subs, _ := newSubscriptionFixture(gw)

	sub := seedActive(subs, "P100")
	sub.AmountCents = 1200
	require.NoError(t, subs.Update(context.Background(), sub))

	amount := int64(1500)
	periods := 12
	got, err := svc.ChangeTerms(context.Background(), sub.ID, &amount, &periods)
	require.NoError(t, err)

	assert.Equal(t, int64(1500), got.AmountCents)
	assert.Equal(t, 12, got.TotalPeriods)

	stored := subs.stored(sub.ID)
	assert.Equal(t, int64(1500), stored.AmountCents)
	assert.Equal(t, 12, stored.TotalPeriods)
}

func TestChangeTermsRejectedStates(t *testing.T) {
	gw := &fakeGateway{}
	svc, subs, _ := newSubscriptionFixture(gw)

	for _, status := range []model.SubscriptionStatus{
		model.SubscriptionStatusPending,
		model.SubscriptionStatusTerminated,
		model.SubscriptionStatusCompleted,
	} {
		periodNo := "P-" + string(status)
		sub := subs.seed(&model.Subscription{
			UserID:     uuid.New(),
			MerOrderNo: uuid.NewString(),
			Status:     status,
			PeriodNo:   &periodNo,
			PeriodType: billing.PeriodTypeMonth,
		})

		amount := int64(1500)
		_, err := svc.ChangeTerms(context.Background(), sub.ID, &amount, nil)

		var transitionErr *model.StateTransitionError
		assert.ErrorAs(t, err, &transitionErr, "status %s", status)
	}

	_, _, terms := gw.calls()
	assert.Zero(t, terms)
}
