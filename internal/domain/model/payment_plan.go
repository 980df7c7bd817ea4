package model

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/nutribox/payment-service/internal/domain/billing"
)

// PaymentPlan represents a purchasable recurring plan in the catalog.
type PaymentPlan struct {
	ID          int64              `gorm:"primaryKey;autoIncrement" json:"id"`
	Code        string             `gorm:"unique;not null;size:50" json:"code"`
	DisplayName string             `gorm:"not null;size:200" json:"display_name"`
	Description string             `json:"description"`
	Price       decimal.Decimal    `gorm:"type:decimal(12,2);not null" json:"price"`
	Currency    string             `gorm:"size:3;default:'USD'" json:"currency"`
	PeriodType  billing.PeriodType `gorm:"size:10;not null;default:'month'" json:"period_type"`
	// TotalPeriods is the authorized period count for subscriptions on this
	// plan; 0 means unbounded (cancellation is the expected end).
	TotalPeriods int       `gorm:"default:0" json:"total_periods"`
	SortOrder    int       `gorm:"default:0" json:"sort_order"`
	IsActive     bool      `gorm:"default:true" json:"is_active"`
	CreatedAt    time.Time `gorm:"default:now()" json:"created_at"`
	UpdatedAt    time.Time `gorm:"default:now()" json:"updated_at"`
}

// AmountCents returns the plan price in integer minor units, the unit the
// gateway protocol speaks.
func (p *PaymentPlan) AmountCents() int64 {
	return p.Price.Mul(decimal.NewFromInt(100)).IntPart()
}

// TableName specifies the table name for GORM
func (PaymentPlan) TableName() string {
	return "payment_plans"
}
