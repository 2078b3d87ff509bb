package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type RecordPaymentRequest struct {
	MemberID       string          `json:"member_id"       validate:"required,uuid"`
	SubscriptionID *string         `json:"subscription_id" validate:"omitempty,uuid"`
	Amount         decimal.Decimal `json:"amount"          validate:"required,gt=0"`
	Method         string          `json:"method"          validate:"required,oneof=cash card transfer wallet other"`
	Status         string          `json:"status"          validate:"omitempty,oneof=pending completed"`
	ShiftID        *string         `json:"shift_id"        validate:"omitempty,uuid"`
	ExternalRef    *string         `json:"external_reference"`
	Note           *string         `json:"note"`
}

type RecordRefundRequest struct {
	PaymentID string          `json:"payment_id" validate:"required,uuid"`
	Amount    decimal.Decimal `json:"amount"     validate:"required,gt=0"`
	ShiftID   *string         `json:"shift_id"   validate:"omitempty,uuid"`
	Reason    string          `json:"reason"     validate:"required,min=3"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type PaymentResponse struct {
	ID             string          `json:"id"`
	MemberID       string          `json:"member_id"`
	SubscriptionID *string         `json:"subscription_id,omitempty"`
	ShiftID        *string         `json:"shift_id,omitempty"`
	Amount         decimal.Decimal `json:"amount"`
	Method         string          `json:"method"`
	Status         string          `json:"status"`
	ExternalRef    *string         `json:"external_reference,omitempty"`
	RefundedTotal  decimal.Decimal `json:"refunded_total"`
	CreatedAt      string          `json:"created_at"`
}

type RefundResponse struct {
	ID        string          `json:"id"`
	PaymentID string          `json:"payment_id"`
	ShiftID   string          `json:"shift_id"`
	Amount    decimal.Decimal `json:"amount"`
	Reason    string          `json:"reason"`
	CreatedAt string          `json:"created_at"`
}

type PaymentListResponse struct {
	Data  []PaymentResponse `json:"data"`
	Total int64             `json:"total"`
	Page  int               `json:"page"`
	Limit int               `json:"limit"`
}
