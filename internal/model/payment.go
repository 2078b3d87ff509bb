package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Payment methods.
const (
	MethodCash     = "cash"
	MethodCard     = "card"
	MethodTransfer = "transfer"
	MethodWallet   = "wallet"
	MethodOther    = "other"
)

// Payment statuses. "completed" is money actually received; "pending" is an
// outstanding invoice for the unpaid remainder of a price.
const (
	PaymentPending       = "pending"
	PaymentCompleted     = "completed"
	PaymentRefunded      = "refunded"
	PaymentPartialRefund = "partial_refund"
)

// Payment is a monetary event against a member, optionally linked to a
// subscription. Payments are never deleted — refunds mutate RefundedTotal and
// status only. Invariant: 0 ≤ RefundedTotal ≤ Amount, enforced by a guarded
// UPDATE in the repository.
type Payment struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	MemberID       uuid.UUID  `gorm:"type:uuid;not null;index"`
	SubscriptionID *uuid.UUID `gorm:"type:uuid;index"`
	// ShiftID is nullable only for pending invoices — completed money always
	// belongs to the shift that collected it.
	ShiftID *uuid.UUID `gorm:"type:uuid;index"`

	Amount decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Method string          `gorm:"type:varchar(20);not null"`
	Status string          `gorm:"type:varchar(20);not null"`
	// ExternalRef is the gateway/bank reference — required for non-cash
	// payments with amount > 0.
	ExternalRef   *string         `gorm:"type:varchar(128)"`
	RefundedTotal decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	Note          *string

	CreatedByID uuid.UUID `gorm:"type:uuid;not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Refunds []Refund `gorm:"foreignKey:PaymentID"`
}

// Refund is an immutable reversal against a specific Payment, scoped to the
// shift in which it was issued.
type Refund struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	PaymentID uuid.UUID `gorm:"type:uuid;not null;index"`
	ShiftID   uuid.UUID `gorm:"type:uuid;not null;index"`

	Amount decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Reason string          `gorm:"not null"`

	CreatedByID uuid.UUID `gorm:"type:uuid;not null"`
	CreatedAt   time.Time
}
