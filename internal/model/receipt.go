package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Receipt generation states.
const (
	ReceiptPending   = "pending"
	ReceiptGenerated = "generated"
	ReceiptFailed    = "failed"
)

// Receipt is the immutable document produced for a completed payment or
// subscription event. Generation runs in the async worker; Number comes from
// a PostgreSQL sequence so receipts are gaplessly ordered per installation.
type Receipt struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Number int       `gorm:"not null;uniqueIndex"`

	MemberID       uuid.UUID  `gorm:"type:uuid;not null;index"`
	PaymentID      *uuid.UUID `gorm:"type:uuid;index"`
	SubscriptionID *uuid.UUID `gorm:"type:uuid"`

	Amount      decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Description string          `gorm:"not null"`

	Status  string  `gorm:"type:varchar(20);not null;default:'pending'"`
	PDFPath *string `gorm:"type:varchar(256)"`

	// Retry bookkeeping for the receipt worker / retry cron
	RetryCount  int `gorm:"not null;default:0"`
	NextRetryAt *time.Time
	LastError   *string
	EmailedTo   *string `gorm:"type:varchar(128)"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
