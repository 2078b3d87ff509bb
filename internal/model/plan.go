package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Plan types: duration plans back subscriptions, session plans back packages.
const (
	PlanDuration = "duration"
	PlanSessions = "sessions"
)

// Plan is a sellable membership product.
type Plan struct {
	ID   uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Name string    `gorm:"type:varchar(128);not null"`
	Type string    `gorm:"type:varchar(20);not null"`

	Price decimal.Decimal `gorm:"type:decimal(12,2);not null"`

	// Duration plans
	DurationDays int `gorm:"not null;default:0"`

	// Session plans
	TotalSessions int  `gorm:"not null;default:0"`
	ValidityDays  *int // nil = sessions never expire
	SessionPrice  *decimal.Decimal `gorm:"type:decimal(12,2)"`

	Active    bool `gorm:"not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
