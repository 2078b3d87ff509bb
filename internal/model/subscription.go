package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SubscriptionStatus is a closed set of lifecycle states.
type SubscriptionStatus string

const (
	SubActive    SubscriptionStatus = "active"
	SubPaused    SubscriptionStatus = "paused"
	SubFrozen    SubscriptionStatus = "frozen"
	SubExpired   SubscriptionStatus = "expired"
	SubCancelled SubscriptionStatus = "cancelled"
)

// subscriptionTransitions encodes the legal state machine:
// active → {paused, frozen, cancelled, expired}; paused → active;
// frozen → active; cancelled and expired are terminal.
var subscriptionTransitions = map[SubscriptionStatus][]SubscriptionStatus{
	SubActive: {SubPaused, SubFrozen, SubCancelled, SubExpired},
	SubPaused: {SubActive},
	SubFrozen: {SubActive},
}

// CanTransitionTo reports whether moving from s to next is a legal transition.
func (s SubscriptionStatus) CanTransitionTo(next SubscriptionStatus) bool {
	for _, allowed := range subscriptionTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Payment settlement states for a subscription's price.
const (
	SubUnpaid  = "unpaid"
	SubPartial = "partial"
	SubPaid    = "paid"
)

// Subscription is a member's access period for a plan. Rows are never
// physically deleted — history is preserved via Status. At most one active
// subscription per member (partial unique index).
type Subscription struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	MemberID uuid.UUID `gorm:"type:uuid;not null;index"`
	PlanID   uuid.UUID `gorm:"type:uuid;not null"`

	StartDate time.Time `gorm:"not null"`
	EndDate   time.Time `gorm:"not null"`

	// Price is the full price after discount; Discount is kept for audit.
	Price      decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Discount   decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	PaidAmount decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`

	PaymentStatus string             `gorm:"type:varchar(20);not null"`
	Status        SubscriptionStatus `gorm:"type:varchar(20);not null;default:'active'"`

	// Cancellation metadata
	CancelReason            *string
	CancelledByID           *uuid.UUID       `gorm:"type:uuid"`
	CancelledAt             *time.Time
	UsedNonRefundableAmount *decimal.Decimal `gorm:"type:decimal(12,2)"`
	// AlertAcknowledged is reset to false on cancellation so the event
	// surfaces as a new alert to reporting collaborators.
	AlertAcknowledged bool `gorm:"not null;default:true"`

	CreatedByID uuid.UUID `gorm:"type:uuid;not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Pauses []SubscriptionPause `gorm:"foreignKey:SubscriptionID"`
}

// SubscriptionPause is one pause interval. An open interval has EndAt == nil;
// resume closes it and records the ceil-of-days duration credited to EndDate.
type SubscriptionPause struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SubscriptionID uuid.UUID `gorm:"type:uuid;not null;index"`

	StartAt      time.Time `gorm:"not null"`
	EndAt        *time.Time
	DurationDays *int

	CreatedAt time.Time
}
