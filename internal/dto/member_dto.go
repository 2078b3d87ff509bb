package dto

import "github.com/shopspring/decimal"

type CreateMemberRequest struct {
	FullName string  `json:"full_name" validate:"required,min=2,max=128"`
	Phone    *string `json:"phone"     validate:"omitempty,max=32"`
	Email    *string `json:"email"     validate:"omitempty,email"`
}

type UpdateMemberRequest struct {
	FullName *string `json:"full_name" validate:"omitempty,min=2,max=128"`
	Phone    *string `json:"phone"     validate:"omitempty,max=32"`
	Email    *string `json:"email"     validate:"omitempty,email"`
	Active   *bool   `json:"active"`
}

type MemberResponse struct {
	ID       string  `json:"id"`
	FullName string  `json:"full_name"`
	Phone    *string `json:"phone,omitempty"`
	Email    *string `json:"email,omitempty"`
	Active   bool    `json:"active"`
}

type MemberListResponse struct {
	Members []MemberResponse `json:"members"`
	Total   int64            `json:"total"`
	Page    int              `json:"page"`
	Limit   int              `json:"limit"`
}

type CreatePlanRequest struct {
	Name          string           `json:"name"           validate:"required,min=2,max=128"`
	Type          string           `json:"type"           validate:"required,oneof=duration sessions"`
	Price         decimal.Decimal  `json:"price"          validate:"min=0"`
	DurationDays  int              `json:"duration_days"  validate:"min=0"`
	TotalSessions int              `json:"total_sessions" validate:"min=0"`
	ValidityDays  *int             `json:"validity_days"  validate:"omitempty,min=1"`
	SessionPrice  *decimal.Decimal `json:"session_price"  validate:"omitempty,min=0"`
}

type PlanResponse struct {
	ID            string           `json:"id"`
	Name          string           `json:"name"`
	Type          string           `json:"type"`
	Price         decimal.Decimal  `json:"price"`
	DurationDays  int              `json:"duration_days"`
	TotalSessions int              `json:"total_sessions"`
	ValidityDays  *int             `json:"validity_days,omitempty"`
	SessionPrice  *decimal.Decimal `json:"session_price,omitempty"`
	Active        bool             `json:"active"`
}
