package model

import (
	"time"

	"github.com/google/uuid"
)

// Charge is one successful recurring deduction reported by the gateway.
type Charge struct {
	ID             int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID         uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	SubscriptionID int64     `gorm:"not null;index" json:"subscription_id"`
	// TradeNo is the gateway transaction identifier, unique per deduction.
	TradeNo     string    `gorm:"unique;not null;size:64" json:"trade_no"`
	PeriodIndex int       `gorm:"not null" json:"period_index"`
	AmountCents int64     `gorm:"not null" json:"amount_cents"`
	Currency    string    `gorm:"size:3;default:'USD'" json:"currency"`
	ChargedAt   time.Time `gorm:"not null" json:"charged_at"`
	CreatedAt   time.Time `gorm:"default:now()" json:"created_at"`

	// Relations
	Subscription *Subscription `gorm:"foreignKey:SubscriptionID" json:"subscription,omitempty"`
}

// TableName specifies the table name for GORM
func (Charge) TableName() string {
	return "charges"
}
