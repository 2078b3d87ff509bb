package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Shift statuses. Closing is terminal — there is no reopen.
const (
	ShiftOpen   = "open"
	ShiftClosed = "closed"
)

// Activity classification recorded on close. NO_ACTIVITY is a descriptive
// audit tag for a drawer that was opened and closed without ever moving money.
const (
	ShiftActivityNormal     = "NORMAL"
	ShiftActivityNoActivity = "NO_ACTIVITY"
)

// Shift represents one cash drawer session on one machine, opened by exactly
// one user. At most one open shift per machine and per user at any time —
// enforced by partial unique indexes (see infra.applySchemaPatches).
type Shift struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	MachineID  string     `gorm:"type:varchar(64);not null;index"`
	OpenedByID uuid.UUID  `gorm:"type:uuid;not null;index"`
	ClosedByID *uuid.UUID `gorm:"type:uuid"`

	OpeningCash decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	ClosingCash *decimal.Decimal `gorm:"type:decimal(12,2)"`
	// ExpectedCash is computed on close: OpeningCash + SUM(completed cash payments)
	ExpectedCash   *decimal.Decimal `gorm:"type:decimal(12,2)"`
	CashDifference *decimal.Decimal `gorm:"type:decimal(12,2)"`

	Status string `gorm:"type:varchar(20);not null;default:'open'"`
	// ActivityType: NORMAL | NO_ACTIVITY — set when the shift closes
	ActivityType *string `gorm:"type:varchar(20)"`

	OpenedAt time.Time
	ClosedAt *time.Time

	Payments []Payment `gorm:"foreignKey:ShiftID"`
	Refunds  []Refund  `gorm:"foreignKey:ShiftID"`
}
