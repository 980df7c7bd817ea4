package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nutribox/payment-service/internal/domain/billing"
	domainerrors "github.com/nutribox/payment-service/internal/domain/errors"
	"github.com/nutribox/payment-service/internal/domain/gateway"
	"github.com/nutribox/payment-service/internal/domain/model"
)

// In-memory fakes. They copy records in and out so a service mutation is only
// visible after an explicit Update, matching how a real store behaves.

type fakeSubRepo struct {
	mu                  sync.Mutex
	seq                 int64
	subs                map[int64]*model.Subscription
	failGetByID         map[int64]error
	updateScheduleCalls int
}

func newFakeSubRepo() *fakeSubRepo {
	return &fakeSubRepo{
		subs:        make(map[int64]*model.Subscription),
		failGetByID: make(map[int64]error),
	}
}

func copySub(sub *model.Subscription) *model.Subscription {
	out := *sub
	return &out
}

func (r *fakeSubRepo) seed(sub *model.Subscription) *model.Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sub.ID == 0 {
		r.seq++
		sub.ID = r.seq
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now()
	}
	r.subs[sub.ID] = copySub(sub)
	return sub
}

func (r *fakeSubRepo) stored(id int64) *model.Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	return copySub(r.subs[id])
}

func (r *fakeSubRepo) GetByID(ctx context.Context, id int64) (*model.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err, ok := r.failGetByID[id]; ok {
		return nil, err
	}
	sub, ok := r.subs[id]
	if !ok {
		return nil, domainerrors.ErrSubscriptionNotFound
	}
	return copySub(sub), nil
}

func (r *fakeSubRepo) GetByPeriodNo(ctx context.Context, periodNo string) (*model.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, sub := range r.subs {
		if sub.PeriodNo != nil && *sub.PeriodNo == periodNo {
			return copySub(sub), nil
		}
	}
	return nil, domainerrors.ErrSubscriptionNotFound
}

func (r *fakeSubRepo) GetByMerOrderNo(ctx context.Context, merOrderNo string) (*model.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, sub := range r.subs {
		if sub.MerOrderNo == merOrderNo {
			return copySub(sub), nil
		}
	}
	return nil, domainerrors.ErrSubscriptionNotFound
}

func (r *fakeSubRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Subscription
	for _, sub := range r.subs {
		if sub.UserID == userID {
			out = append(out, *copySub(sub))
		}
	}
	return out, nil
}

func (r *fakeSubRepo) ListNonTerminal(ctx context.Context, limit int) ([]model.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Subscription
	for _, sub := range r.subs {
		if !sub.Status.Terminal() {
			out = append(out, *copySub(sub))
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *fakeSubRepo) Create(ctx context.Context, sub *model.Subscription) error {
	r.seed(sub)
	return nil
}

func (r *fakeSubRepo) Update(ctx context.Context, sub *model.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.subs[sub.ID]; !ok {
		return domainerrors.ErrSubscriptionNotFound
	}
	r.subs[sub.ID] = copySub(sub)
	return nil
}

func (r *fakeSubRepo) UpdateSchedule(ctx context.Context, id int64, sched billing.Schedule, chargedPeriods int, reconciledAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.subs[id]
	if !ok {
		return domainerrors.ErrSubscriptionNotFound
	}
	last, next, at := sched.LastChargeAt, sched.NextChargeAt, reconciledAt
	sub.LastChargeAt = &last
	sub.NextChargeAt = &next
	sub.ReconciledAt = &at
	sub.ChargedPeriods = chargedPeriods
	r.updateScheduleCalls++
	return nil
}

type fakePlanRepo struct {
	plans map[string]*model.PaymentPlan
}

func newFakePlanRepo(plans ...*model.PaymentPlan) *fakePlanRepo {
	r := &fakePlanRepo{plans: make(map[string]*model.PaymentPlan)}
	for _, p := range plans {
		r.plans[p.Code] = p
	}
	return r
}

func (r *fakePlanRepo) ListActive(ctx context.Context) ([]model.PaymentPlan, error) {
	var out []model.PaymentPlan
	for _, p := range r.plans {
		out = append(out, *p)
	}
	return out, nil
}

func (r *fakePlanRepo) GetByID(ctx context.Context, id int64) (*model.PaymentPlan, error) {
	for _, p := range r.plans {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, domainerrors.ErrPlanNotFound
}

func (r *fakePlanRepo) GetByCode(ctx context.Context, code string) (*model.PaymentPlan, error) {
	p, ok := r.plans[code]
	if !ok {
		return nil, domainerrors.ErrPlanNotFound
	}
	return p, nil
}

type fakeChargeRepo struct {
	mu      sync.Mutex
	charges []model.Charge
}

func (r *fakeChargeRepo) Save(ctx context.Context, charge *model.Charge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.charges {
		if c.TradeNo == charge.TradeNo {
			return nil
		}
	}
	charge.ID = int64(len(r.charges) + 1)
	r.charges = append(r.charges, *charge)
	return nil
}

func (r *fakeChargeRepo) ListBySubscription(ctx context.Context, subscriptionID int64) ([]model.Charge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Charge
	for _, c := range r.charges {
		if c.SubscriptionID == subscriptionID {
			out = append(out, c)
		}
	}
	return out, nil
}

type fakeNotificationRepo struct {
	mu        sync.Mutex
	seq       int64
	seen      map[string]bool
	events    []*model.NotificationEvent
	processed []int64
	failed    map[int64]string
}

func newFakeNotificationRepo() *fakeNotificationRepo {
	return &fakeNotificationRepo{
		seen:   make(map[string]bool),
		failed: make(map[int64]string),
	}
}

func (r *fakeNotificationRepo) Record(ctx context.Context, event *model.NotificationEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	// Unique index on trade_no constrains non-null values only.
	if event.TradeNo != nil {
		if r.seen[*event.TradeNo] {
			return domainerrors.ErrDuplicateNotification
		}
		r.seen[*event.TradeNo] = true
	}
	r.seq++
	event.ID = r.seq
	r.events = append(r.events, event)
	return nil
}

func (r *fakeNotificationRepo) MarkProcessed(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.processed = append(r.processed, id)
	return nil
}

func (r *fakeNotificationRepo) MarkFailed(ctx context.Context, id int64, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed[id] = reason
	return nil
}

type fakeGateway struct {
	mu          sync.Mutex
	createCalls int
	alterCalls  int
	termsCalls  int

	createFn func(req *gateway.CreatePlanRequest) (*gateway.CreatePlanResponse, error)
	alterFn  func(req *gateway.AlterStatusRequest) (*gateway.AlterStatusResponse, error)
	termsFn  func(req *gateway.AlterTermsRequest) (*gateway.AlterTermsResponse, error)
	decodeFn func(sealed string) (*gateway.Notification, error)
}

func (g *fakeGateway) CreatePlan(ctx context.Context, req *gateway.CreatePlanRequest) (*gateway.CreatePlanResponse, error) {
	g.mu.Lock()
	g.createCalls++
	g.mu.Unlock()
	return g.createFn(req)
}

func (g *fakeGateway) AlterStatus(ctx context.Context, req *gateway.AlterStatusRequest) (*gateway.AlterStatusResponse, error) {
	g.mu.Lock()
	g.alterCalls++
	g.mu.Unlock()
	if g.alterFn != nil {
		return g.alterFn(req)
	}
	return &gateway.AlterStatusResponse{PeriodNo: req.PeriodNo, Op: req.Op}, nil
}

func (g *fakeGateway) AlterTerms(ctx context.Context, req *gateway.AlterTermsRequest) (*gateway.AlterTermsResponse, error) {
	g.mu.Lock()
	g.termsCalls++
	g.mu.Unlock()
	if g.termsFn != nil {
		return g.termsFn(req)
	}
	return &gateway.AlterTermsResponse{PeriodNo: req.PeriodNo}, nil
}

func (g *fakeGateway) DecodeNotification(sealed string) (*gateway.Notification, error) {
	return g.decodeFn(sealed)
}

func (g *fakeGateway) calls() (create, alter, terms int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.createCalls, g.alterCalls, g.termsCalls
}
