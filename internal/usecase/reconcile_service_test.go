package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nutribox/payment-service/internal/domain/billing"
	"github.com/nutribox/payment-service/internal/domain/model"
)

func newReconcileFixture(subs *fakeSubRepo) *ReconcileService {
	return NewReconcileService(subs, NewKeyLock(), zap.NewNop(), 2, 100)
}

func seedScheduled(subs *fakeSubRepo, createdAt time.Time, charged int, next *time.Time) *model.Subscription {
	periodNo := uuid.NewString()
	return subs.seed(&model.Subscription{
		UserID:         uuid.New(),
		MerOrderNo:     uuid.NewString(),
		PeriodNo:       &periodNo,
		Status:         model.SubscriptionStatusActive,
		PeriodType:     billing.PeriodTypeMonth,
		ChargedPeriods: charged,
		NextChargeAt:   next,
		CreatedAt:      createdAt,
	})
}

func TestReconcilePreviewWritesNothing(t *testing.T) {
	subs := newFakeSubRepo()
	created := time.Now().AddDate(0, -6, 0)
	// Stored next-charge time is two days off the derived one: inside the
	// one-period tolerance, so it is a correction, not drift.
	next := billing.Step(created, billing.PeriodTypeMonth, 3).AddDate(0, 0, 2)
	sub := seedScheduled(subs, created, 2, &next)

	result, err := newReconcileFixture(subs).Preview(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Examined)
	assert.Empty(t, result.Failures)
	require.Len(t, result.Corrections, 1)

	corr := result.Corrections[0]
	assert.Equal(t, sub.ID, corr.SubscriptionID)
	assert.False(t, corr.Applied)
	assert.Equal(t, billing.Step(created, billing.PeriodTypeMonth, 3), corr.NewNextCharge)

	assert.Zero(t, subs.updateScheduleCalls, "preview must not write")
	assert.Equal(t, next, *subs.stored(sub.ID).NextChargeAt)
}

func TestReconcileCommitAppliesCorrection(t *testing.T) {
	subs := newFakeSubRepo()
	created := time.Now().AddDate(0, -6, 0)
	next := billing.Step(created, billing.PeriodTypeMonth, 3).AddDate(0, 0, 2)
	sub := seedScheduled(subs, created, 2, &next)

	result, err := newReconcileFixture(subs).Commit(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Corrections, 1)
	assert.True(t, result.Corrections[0].Applied)
	assert.Equal(t, 1, subs.updateScheduleCalls)

	stored := subs.stored(sub.ID)
	assert.Equal(t, billing.Step(created, billing.PeriodTypeMonth, 3), *stored.NextChargeAt)
	assert.NotNil(t, stored.ReconciledAt)
	// Schedule reconciliation never touches status.
	assert.Equal(t, model.SubscriptionStatusActive, stored.Status)
}

func TestReconcileFlagsDriftBeyondOnePeriod(t *testing.T) {
	subs := newFakeSubRepo()
	created := time.Now().AddDate(0, -6, 0)
	// Stored next-charge time is seven months past the derived one.
	next := billing.Step(created, billing.PeriodTypeMonth, 10)
	sub := seedScheduled(subs, created, 2, &next)

	result, err := newReconcileFixture(subs).Commit(context.Background())
	require.NoError(t, err)

	assert.Empty(t, result.Corrections)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, sub.ID, result.Failures[0].SubscriptionID)
	assert.True(t, result.Failures[0].Drift)

	// Drift is flagged for operator review, never auto-corrected.
	assert.Zero(t, subs.updateScheduleCalls)
	assert.Equal(t, next, *subs.stored(sub.ID).NextChargeAt)
}

func TestReconcileFlagsStatusEvidenceMismatch(t *testing.T) {
	subs := newFakeSubRepo()
	created := time.Now().AddDate(0, -2, 0)
	next := billing.Step(created, billing.PeriodTypeMonth, 2)
	sub := seedScheduled(subs, created, 1, &next)

	// The last gateway notification says the plan was suspended remotely,
	// but the local record still reads active: the local write was lost.
	sub.RawNotification = model.JSONB{"NotifyType": "SUSPEND"}
	require.NoError(t, subs.Update(context.Background(), sub))

	result, err := newReconcileFixture(subs).Commit(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Failures, 1)
	assert.True(t, result.Failures[0].Drift)
	assert.Zero(t, subs.updateScheduleCalls)
}

func TestReconcileInSyncRecordUntouched(t *testing.T) {
	subs := newFakeSubRepo()
	created := time.Now().AddDate(0, -3, 0)
	next := billing.Step(created, billing.PeriodTypeMonth, 3)
	seedScheduled(subs, created, 3, &next)

	result, err := newReconcileFixture(subs).Commit(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Examined)
	assert.Empty(t, result.Corrections)
	assert.Empty(t, result.Failures)
	assert.Zero(t, subs.updateScheduleCalls)
}

func TestReconcileSkipsPendingSubscriptions(t *testing.T) {
	subs := newFakeSubRepo()
	subs.seed(&model.Subscription{
		UserID:     uuid.New(),
		MerOrderNo: uuid.NewString(),
		Status:     model.SubscriptionStatusPending,
		PeriodType: billing.PeriodTypeMonth,
	})

	result, err := newReconcileFixture(subs).Commit(context.Background())
	require.NoError(t, err)

	// Pending records have no authoritative schedule yet; they are examined
	// but never corrected or flagged.
	assert.Equal(t, 1, result.Examined)
	assert.Empty(t, result.Corrections)
	assert.Empty(t, result.Failures)
}

func TestReconcileStopsWhenContextCanceled(t *testing.T) {
	subs := newFakeSubRepo()
	created := time.Now().AddDate(0, -6, 0)
	for i := 0; i < 5; i++ {
		next := billing.Step(created, billing.PeriodTypeMonth, 3).AddDate(0, 0, 2)
		seedScheduled(subs, created, 2, &next)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := newReconcileFixture(subs).Commit(ctx)
	require.NoError(t, err)

	// A canceled run must not keep draining the batch or writing.
	assert.Empty(t, result.Corrections)
	assert.Zero(t, subs.updateScheduleCalls)
}

func TestReconcileCollectsFailuresWithoutAbortingBatch(t *testing.T) {
	subs := newFakeSubRepo()
	created := time.Now().AddDate(0, -6, 0)

	next := billing.Step(created, billing.PeriodTypeMonth, 3).AddDate(0, 0, 2)
	healthy := seedScheduled(subs, created, 2, &next)

	broken := seedScheduled(subs, created, 2, &next)
	subs.failGetByID[broken.ID] = errors.New("connection reset")

	result, err := newReconcileFixture(subs).Commit(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.Examined)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, broken.ID, result.Failures[0].SubscriptionID)
	assert.False(t, result.Failures[0].Drift)

	// The healthy record is still corrected.
	require.Len(t, result.Corrections, 1)
	assert.Equal(t, healthy.ID, result.Corrections[0].SubscriptionID)
	assert.True(t, result.Corrections[0].Applied)
}
