package model

import (
	"database/sql/driver"
	"time"
)

// NotificationStatus is the processing state of an inbound gateway webhook.
type NotificationStatus string

const (
	NotificationStatusPending   NotificationStatus = "pending"
	NotificationStatusCompleted NotificationStatus = "completed"
	NotificationStatusFailed    NotificationStatus = "failed"
)

// Scan implements sql.Scanner interface
func (s *NotificationStatus) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		*s = NotificationStatus(v)
	case []byte:
		*s = NotificationStatus(v)
	default:
		*s = NotificationStatusPending
	}
	return nil
}

// Value implements driver.Valuer interface
func (s NotificationStatus) Value() (driver.Value, error) {
	return string(s), nil
}

// NotificationEvent records one inbound gateway notification. The sealed
// payload is stored verbatim for replay; the decrypted plaintext is only ever
// written to the audit log, never persisted, because it may carry masked card
// metadata.
type NotificationEvent struct {
	ID int64 `gorm:"primaryKey;autoIncrement" json:"id"`
	// TradeNo deduplicates redelivered charge notifications. Status alters
	// (suspend/terminate/restart) carry no transaction, so it is nil for
	// them; the unique index only constrains non-null values.
	TradeNo          *string            `gorm:"unique;size:64;index" json:"trade_no,omitempty"`
	PeriodNo         *string            `gorm:"size:64;index" json:"period_no,omitempty"`
	NotifyType       string             `gorm:"size:50" json:"notify_type"`
	ProcessingStatus NotificationStatus `gorm:"type:notification_status;default:'pending';index" json:"processing_status"`
	ProcessedAt      *time.Time         `json:"processed_at,omitempty"`
	SealedPayload    string             `gorm:"type:text;not null" json:"sealed_payload"`
	LastError        *string            `json:"last_error,omitempty"`
	IPAddress        *string            `gorm:"size:45" json:"ip_address,omitempty"`
	CreatedAt        time.Time          `gorm:"default:now()" json:"created_at"`
	UpdatedAt        time.Time          `gorm:"default:now()" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (NotificationEvent) TableName() string {
	return "notification_events"
}
