package usecase

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nutribox/payment-service/internal/domain/billing"
	"github.com/nutribox/payment-service/internal/domain/model"
	"github.com/nutribox/payment-service/internal/domain/repository"
	"github.com/nutribox/payment-service/internal/metrics"
)

// ReconcileService re-derives billing schedule fields for all non-terminal
// subscriptions and reconciles them against the stored values. It writes
// timestamps and period counts, never status.
type ReconcileService struct {
	subs      repository.SubscriptionRepository
	locks     *KeyLock
	logger    *zap.Logger
	workers   int
	batchSize int
}

func NewReconcileService(subs repository.SubscriptionRepository, locks *KeyLock, logger *zap.Logger, workers, batchSize int) *ReconcileService {
	if workers < 1 {
		workers = 4
	}
	return &ReconcileService{
		subs:      subs,
		locks:     locks,
		logger:    logger,
		workers:   workers,
		batchSize: batchSize,
	}
}

// Correction is one proposed schedule rewrite.
type Correction struct {
	SubscriptionID int64      `json:"subscription_id"`
	PeriodNo       string     `json:"period_no,omitempty"`
	OldCharged     int        `json:"old_charged_periods"`
	NewCharged     int        `json:"new_charged_periods"`
	OldNextCharge  *time.Time `json:"old_next_charge_at,omitempty"`
	NewNextCharge  time.Time  `json:"new_next_charge_at"`
	Applied        bool       `json:"applied"`
}

// Failure is one subscription the run could not reconcile. Failures are
// collected, not thrown: one bad record never aborts the batch.
type Failure struct {
	SubscriptionID int64  `json:"subscription_id"`
	Reason         string `json:"reason"`
	Drift          bool   `json:"drift"`
}

// Result summarizes one reconciliation run.
type Result struct {
	Examined    int          `json:"examined"`
	Corrections []Correction `json:"corrections"`
	Failures    []Failure    `json:"failures"`
	StartedAt   time.Time    `json:"started_at"`
	FinishedAt  time.Time    `json:"finished_at"`
}

// Preview computes proposed corrections without writing anything.
func (s *ReconcileService) Preview(ctx context.Context) (*Result, error) {
	metrics.ReconcileRunsTotal.WithLabelValues("preview").Inc()
	return s.run(ctx, false)
}

// Commit computes and persists corrections.
func (s *ReconcileService) Commit(ctx context.Context) (*Result, error) {
	metrics.ReconcileRunsTotal.WithLabelValues("commit").Inc()
	return s.run(ctx, true)
}

func (s *ReconcileService) run(ctx context.Context, commit bool) (*Result, error) {
	result := &Result{StartedAt: time.Now()}

	subs, err := s.subs.ListNonTerminal(ctx, s.batchSize)
	if err != nil {
		return nil, err
	}
	result.Examined = len(subs)

	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		work = make(chan model.Subscription)
	)

	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sub := range work {
				corr, fail := s.reconcileOne(ctx, sub, commit)
				mu.Lock()
				if corr != nil {
					result.Corrections = append(result.Corrections, *corr)
				}
				if fail != nil {
					result.Failures = append(result.Failures, *fail)
				}
				mu.Unlock()
			}
		}()
	}

	// Stop feeding when the caller cancels; in-flight workers finish their
	// current subscription and the partial result is returned.
	for _, sub := range subs {
		if ctx.Err() != nil {
			break
		}
		select {
		case work <- sub:
		case <-ctx.Done():
		}
	}
	close(work)
	wg.Wait()

	result.FinishedAt = time.Now()
	s.logger.Info("Reconciliation run finished",
		zap.Bool("commit", commit),
		zap.Int("examined", result.Examined),
		zap.Int("corrections", len(result.Corrections)),
		zap.Int("failures", len(result.Failures)))

	return result, nil
}

func (s *ReconcileService) reconcileOne(ctx context.Context, stale model.Subscription, commit bool) (*Correction, *Failure) {
	// Respect the per-subscription lock: a live user action altering the
	// same record wins the race, and we reload after acquiring.
	unlock := s.locks.Lock(stale.ID)
	defer unlock()

	sub, err := s.subs.GetByID(ctx, stale.ID)
	if err != nil {
		return nil, &Failure{SubscriptionID: stale.ID, Reason: err.Error()}
	}
	if sub.Status.Terminal() || sub.Status == model.SubscriptionStatusPending {
		return nil, nil
	}

	if drift := s.checkStatusEvidence(sub); drift != nil {
		metrics.ReconcileDriftTotal.Inc()
		s.logger.Error("Schedule drift flagged for operator review", zap.Error(drift))
		return nil, &Failure{SubscriptionID: sub.ID, Reason: drift.Error(), Drift: true}
	}

	derived := billing.Compute(sub.CreatedAt, sub.PeriodType, sub.ChargedPeriods, time.Now())

	if sub.NextChargeAt != nil {
		if !billing.WithinTolerance(*sub.NextChargeAt, derived.NextChargeAt, sub.PeriodType) {
			// Divergence beyond one period is never silently accepted from
			// either source.
			drift := &billing.ScheduleDriftError{
				SubscriptionID: sub.ID,
				Reason:         "stored next-charge time diverges beyond one period",
				StoredNext:     *sub.NextChargeAt,
				DerivedNext:    derived.NextChargeAt,
			}
			metrics.ReconcileDriftTotal.Inc()
			s.logger.Error("Schedule drift flagged for operator review", zap.Error(drift))
			return nil, &Failure{SubscriptionID: sub.ID, Reason: drift.Error(), Drift: true}
		}
		if sub.NextChargeAt.Equal(derived.NextChargeAt) && sub.ChargedPeriods == derived.PeriodIndex {
			return nil, nil
		}
	}

	corr := &Correction{
		SubscriptionID: sub.ID,
		OldCharged:     sub.ChargedPeriods,
		NewCharged:     derived.PeriodIndex,
		OldNextCharge:  sub.NextChargeAt,
		NewNextCharge:  derived.NextChargeAt,
	}
	if sub.PeriodNo != nil {
		corr.PeriodNo = *sub.PeriodNo
	}

	if commit {
		if err := s.subs.UpdateSchedule(ctx, sub.ID, derived, derived.PeriodIndex, time.Now()); err != nil {
			return nil, &Failure{SubscriptionID: sub.ID, Reason: err.Error()}
		}
		corr.Applied = true
	}
	return corr, nil
}

// checkStatusEvidence compares the stored status against the last gateway
// notification. A remote suspend/terminate whose local write was lost shows
// up here as active-with-contrary-evidence and is flagged, not auto-fixed.
func (s *ReconcileService) checkStatusEvidence(sub *model.Subscription) *billing.ScheduleDriftError {
	if sub.RawNotification == nil {
		return nil
	}
	notifyType, _ := sub.RawNotification["NotifyType"].(string)
	evidence := strings.ToUpper(notifyType)

	mismatch := false
	switch evidence {
	case "SUSPEND":
		mismatch = sub.Status == model.SubscriptionStatusActive
	case "TERMINATE":
		mismatch = sub.Status == model.SubscriptionStatusActive ||
			sub.Status == model.SubscriptionStatusSuspended
	case "RESTART":
		mismatch = sub.Status == model.SubscriptionStatusSuspended
	}
	if !mismatch {
		return nil
	}

	drift := &billing.ScheduleDriftError{
		SubscriptionID: sub.ID,
		Reason:         "local status " + string(sub.Status) + " contradicts gateway " + evidence + " evidence",
	}
	if sub.NextChargeAt != nil {
		drift.StoredNext = *sub.NextChargeAt
	}
	return drift
}
