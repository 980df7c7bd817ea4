package model

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/nutribox/payment-service/internal/domain/billing"
)

// SubscriptionStatus represents the status of a subscription
type SubscriptionStatus string

const (
	// SubscriptionStatusPending exists only between submitting the create
	// request and the gateway's first confirmation.
	SubscriptionStatusPending    SubscriptionStatus = "pending"
	SubscriptionStatusActive     SubscriptionStatus = "active"
	SubscriptionStatusSuspended  SubscriptionStatus = "suspended"
	SubscriptionStatusTerminated SubscriptionStatus = "terminated"
	SubscriptionStatusCompleted  SubscriptionStatus = "completed"
)

// Scan implements sql.Scanner interface
func (s *SubscriptionStatus) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		*s = SubscriptionStatus(v)
	case []byte:
		*s = SubscriptionStatus(v)
	default:
		*s = SubscriptionStatusPending
	}
	return nil
}

// Value implements driver.Valuer interface
func (s SubscriptionStatus) Value() (driver.Value, error) {
	return string(s), nil
}

// Terminal reports whether no further gateway operations are valid from s.
func (s SubscriptionStatus) Terminal() bool {
	return s == SubscriptionStatusTerminated || s == SubscriptionStatusCompleted
}

// Subscription is the central entity: one recurring plan held at the gateway.
// CreatedAt is the authoritative anchor for schedule derivation.
type Subscription struct {
	ID     int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	PlanID *int64    `gorm:"index" json:"plan_id,omitempty"`

	// MerOrderNo is the merchant-generated idempotency key sent with the
	// create request; the gateway rejects reuse.
	MerOrderNo string `gorm:"unique;not null;size:64" json:"mer_order_no"`
	// PeriodNo is the gateway-assigned plan identifier. Assigned exactly once
	// on the first successful create and immutable afterwards; every alter
	// operation references it.
	PeriodNo *string `gorm:"unique;size:64" json:"period_no,omitempty"`

	Status SubscriptionStatus `gorm:"type:subscription_status;not null;default:'pending'" json:"status"`

	AmountCents int64              `gorm:"not null" json:"amount_cents"`
	Currency    string             `gorm:"size:3;default:'USD'" json:"currency"`
	PeriodType  billing.PeriodType `gorm:"size:10;not null" json:"period_type"`
	// PeriodPoint anchors the charge within the period (day-of-month or
	// day-of-week, gateway convention).
	PeriodPoint string `gorm:"size:10" json:"period_point"`
	// TotalPeriods is the authorized period count; 0 means unbounded.
	TotalPeriods   int `gorm:"default:0" json:"total_periods"`
	ChargedPeriods int `gorm:"default:0" json:"charged_periods"`

	LastChargeAt *time.Time `json:"last_charge_at,omitempty"`
	NextChargeAt *time.Time `json:"next_charge_at,omitempty"`
	ReconciledAt *time.Time `json:"reconciled_at,omitempty"`
	CanceledAt   *time.Time `json:"canceled_at,omitempty"`

	// RawNotification is the last decoded gateway notification, retained for
	// audit and re-derivation. Cardholder data never appears here.
	RawNotification JSONB `gorm:"type:jsonb" json:"raw_notification,omitempty"`

	CreatedAt time.Time `gorm:"default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:now()" json:"updated_at"`

	// Relations
	Plan *PaymentPlan `gorm:"foreignKey:PlanID" json:"plan,omitempty"`
}

// JSONB represents a JSONB database type
type JSONB map[string]interface{}

// Value implements driver.Valuer interface
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements sql.Scanner interface
func (j *JSONB) Scan(src interface{}) error {
	if src == nil {
		*j = nil
		return nil
	}

	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, j)
	case string:
		return json.Unmarshal([]byte(v), j)
	default:
		*j = make(JSONB)
		return nil
	}
}

// TableName specifies the table name for GORM
func (Subscription) TableName() string {
	return "subscriptions"
}
