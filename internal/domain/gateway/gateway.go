// Package gateway defines the provider-neutral contract for the recurring
// payment processor. The concrete PeriPay wire client lives in
// internal/infrastructure/gateway/peripay.
package gateway

import (
	"context"
	"time"

	"github.com/nutribox/payment-service/internal/domain/billing"
)

// RecurringGateway is the card-on-file recurring payment processor.
type RecurringGateway interface {
	// CreatePlan registers a new recurring plan. MerOrderNo must be unique
	// per attempt; the gateway rejects reuse.
	CreatePlan(ctx context.Context, req *CreatePlanRequest) (*CreatePlanResponse, error)

	// AlterStatus suspends, terminates or restarts an existing plan.
	AlterStatus(ctx context.Context, req *AlterStatusRequest) (*AlterStatusResponse, error)

	// AlterTerms changes the amount or authorized period count of an existing
	// plan. Only the fields set in the request are sent; the gateway treats
	// absent fields as "leave unchanged".
	AlterTerms(ctx context.Context, req *AlterTermsRequest) (*AlterTermsResponse, error)

	// DecodeNotification decrypts and parses an async webhook payload. No
	// field of the payload may be trusted before this succeeds.
	DecodeNotification(sealed string) (*Notification, error)
}

// AlterOp is a post-creation status command.
type AlterOp string

const (
	AlterOpSuspend   AlterOp = "suspend"
	AlterOpTerminate AlterOp = "terminate"
	AlterOpRestart   AlterOp = "restart"
)

type CreatePlanRequest struct {
	MerOrderNo  string
	AmountCents int64
	PeriodType  billing.PeriodType
	// PeriodPoint anchors the charge day within the period, gateway
	// convention (e.g. "05" for the 5th of the month).
	PeriodPoint string
	// TotalPeriods of 0 requests an unbounded plan.
	TotalPeriods int
	// FirstChargeNow asks the gateway to authorize the first period
	// immediately rather than at the next period point.
	FirstChargeNow bool
}

// ImmediateAuth carries the transaction fields present only when the create
// call performed an immediate first authorization.
type ImmediateAuth struct {
	TradeNo     string
	AmountCents int64
	PaidAt      time.Time
}

type CreatePlanResponse struct {
	PeriodNo string
	// Immediate is nil for a bare acknowledgment response.
	Immediate *ImmediateAuth
}

type AlterStatusRequest struct {
	PeriodNo string
	Op       AlterOp
}

type AlterStatusResponse struct {
	PeriodNo string
	Op       AlterOp
}

// AlterTermsRequest is a sparse update; nil fields are not transmitted.
type AlterTermsRequest struct {
	PeriodNo     string
	AmountCents  *int64
	TotalPeriods *int
}

type AlterTermsResponse struct {
	PeriodNo string
}

// Notification is a decoded async gateway notification.
type Notification struct {
	TradeNo    string
	PeriodNo   string
	MerOrderNo string
	NotifyType string
	Succeeded  bool
	// ChargedPeriods is the gateway's count of already-charged periods.
	ChargedPeriods int
	AmountCents    int64
	ChargedAt      time.Time
	// Raw is the full decoded payload, kept opaque for audit.
	Raw map[string]interface{}
}
