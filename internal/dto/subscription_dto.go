package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type CreateSubscriptionRequest struct {
	MemberID    string           `json:"member_id"  validate:"required,uuid"`
	PlanID      string           `json:"plan_id"    validate:"required,uuid"`
	StartDate   *string          `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	Price       *decimal.Decimal `json:"price"      validate:"omitempty"`
	Discount    decimal.Decimal  `json:"discount"   validate:"min=0"`
	PaidAmount  decimal.Decimal  `json:"paid_amount" validate:"min=0"`
	Method      string           `json:"method"     validate:"required,oneof=cash card transfer wallet other"`
	ExternalRef *string          `json:"external_reference"`
	ShiftID     *string          `json:"shift_id"   validate:"omitempty,uuid"`
}

type RenewSubscriptionRequest struct {
	PreviousSubscriptionID string           `json:"previous_subscription_id" validate:"required,uuid"`
	PlanID                 string           `json:"plan_id"     validate:"required,uuid"`
	Price                  *decimal.Decimal `json:"price"       validate:"omitempty"`
	Discount               decimal.Decimal  `json:"discount"    validate:"min=0"`
	PaidAmount             decimal.Decimal  `json:"paid_amount" validate:"min=0"`
	Method                 string           `json:"method"      validate:"required,oneof=cash card transfer wallet other"`
	ExternalRef            *string          `json:"external_reference"`
	ShiftID                *string          `json:"shift_id"    validate:"omitempty,uuid"`
}

type TogglePauseRequest struct {
	Reason *string `json:"reason"`
}

type CancelSubscriptionRequest struct {
	// Type: prorated refunds the unused remainder; immediate forfeits it.
	Type    string  `json:"type"     validate:"required,oneof=prorated immediate"`
	Reason  *string `json:"reason"`
	ShiftID *string `json:"shift_id" validate:"omitempty,uuid"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type PauseEntry struct {
	StartAt      string  `json:"start_at"`
	EndAt        *string `json:"end_at,omitempty"`
	DurationDays *int    `json:"duration_days,omitempty"`
}

type SubscriptionResponse struct {
	ID                      string           `json:"id"`
	MemberID                string           `json:"member_id"`
	PlanID                  string           `json:"plan_id"`
	StartDate               string           `json:"start_date"`
	EndDate                 string           `json:"end_date"`
	Price                   decimal.Decimal  `json:"price"`
	Discount                decimal.Decimal  `json:"discount"`
	PaidAmount              decimal.Decimal  `json:"paid_amount"`
	PaymentStatus           string           `json:"payment_status"`
	Status                  string           `json:"status"`
	CancelReason            *string          `json:"cancel_reason,omitempty"`
	UsedNonRefundableAmount *decimal.Decimal `json:"used_non_refundable_amount,omitempty"`
	Pauses                  []PauseEntry     `json:"pauses,omitempty"`
	CreatedAt               string           `json:"created_at"`
}

// CreateSubscriptionResponse carries the subscription plus the completed
// payment created for money received now (nil when nothing was paid).
type CreateSubscriptionResponse struct {
	Subscription SubscriptionResponse `json:"subscription"`
	Payment      *PaymentResponse     `json:"payment,omitempty"`
	// PendingInvoice is the invoice payment for the unpaid remainder, if any.
	PendingInvoice *PaymentResponse `json:"pending_invoice,omitempty"`
}

type CancelSubscriptionResponse struct {
	Subscription SubscriptionResponse `json:"subscription"`
	RefundAmount decimal.Decimal      `json:"refund_amount"`
}

// CancelPreviewResponse mirrors the cancellation arithmetic without persisting.
type CancelPreviewResponse struct {
	UsedDays         int             `json:"used_days"`
	UsedAmount       decimal.Decimal `json:"used_amount"`
	RefundableAmount decimal.Decimal `json:"refundable_amount"`
}
