package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type AssignPackageRequest struct {
	MemberID  string  `json:"member_id"  validate:"required,uuid"`
	PlanID    string  `json:"plan_id"    validate:"required,uuid"`
	StartDate *string `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	// Optional per-session overrides; plan snapshot is used when omitted.
	SessionName  *string          `json:"session_name"`
	SessionPrice *decimal.Decimal `json:"session_price" validate:"omitempty,min=0"`
}

type CheckInRequest struct {
	IdempotencyKey string  `json:"idempotency_key" validate:"required,min=8,max=128"`
	SessionName    *string `json:"session_name"`
	SessionPrice   *decimal.Decimal `json:"session_price" validate:"omitempty,min=0"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type PackageResponse struct {
	ID                string          `json:"id"`
	MemberID          string          `json:"member_id"`
	PlanID            string          `json:"plan_id"`
	TotalSessions     int             `json:"total_sessions"`
	RemainingSessions int             `json:"remaining_sessions"`
	Status            string          `json:"status"`
	StartDate         string          `json:"start_date"`
	EndDate           *string         `json:"end_date,omitempty"`
	SessionName       string          `json:"session_name"`
	SessionPrice      decimal.Decimal `json:"session_price"`
	CreatedAt         string          `json:"created_at"`
}

// CheckInPayload is the outcome persisted with the idempotency record and
// returned verbatim on replay.
type CheckInPayload struct {
	AssignmentID      string `json:"assignment_id"`
	UsageID           string `json:"usage_id"`
	RemainingSessions int    `json:"remaining_sessions"`
	Status            string `json:"status"`
	UsedAt            string `json:"used_at"`
}

type CheckInResponse struct {
	Payload CheckInPayload `json:"payload"`
	Replay  bool           `json:"replay"`
}
