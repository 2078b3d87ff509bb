package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type OpenShiftRequest struct {
	MachineID   string          `json:"machine_id"   validate:"required,min=1,max=64"`
	OpeningCash decimal.Decimal `json:"opening_cash" validate:"min=0"`
}

type CloseShiftRequest struct {
	ShiftID     string          `json:"shift_id"     validate:"required,uuid"`
	ClosingCash decimal.Decimal `json:"closing_cash" validate:"min=0"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type ShiftResponse struct {
	ID             string           `json:"id"`
	MachineID      string           `json:"machine_id"`
	OpenedBy       string           `json:"opened_by"`
	ClosedBy       *string          `json:"closed_by,omitempty"`
	OpeningCash    decimal.Decimal  `json:"opening_cash"`
	ClosingCash    *decimal.Decimal `json:"closing_cash,omitempty"`
	ExpectedCash   *decimal.Decimal `json:"expected_cash,omitempty"`
	CashDifference *decimal.Decimal `json:"cash_difference,omitempty"`
	Status         string           `json:"status"`
	ActivityType   *string          `json:"activity_type,omitempty"`
	OpenedAt       string           `json:"opened_at"`
	ClosedAt       *string          `json:"closed_at,omitempty"`
}

// ShiftSummaryResponse is the read-only money aggregate for one shift.
type ShiftSummaryResponse struct {
	ShiftID        string          `json:"shift_id"`
	TotalCollected decimal.Decimal `json:"total_collected"`
	TotalRefunded  decimal.Decimal `json:"total_refunded"`
	NetCash        decimal.Decimal `json:"net_cash"`
	ExpectedCash   decimal.Decimal `json:"expected_cash"`
}
