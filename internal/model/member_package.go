package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MemberPackage statuses.
const (
	PackageActive    = "ACTIVE"
	PackagePaused    = "PAUSED"
	PackageCompleted = "COMPLETED"
	PackageExpired   = "EXPIRED"
)

// MemberPackage is a session-pack purchase with a countdown balance.
// Invariant: 0 ≤ RemainingSessions ≤ TotalSessions; status becomes COMPLETED
// exactly when RemainingSessions reaches 0. At most one ACTIVE package per
// member (partial unique index).
type MemberPackage struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	MemberID uuid.UUID `gorm:"type:uuid;not null;index"`
	PlanID   uuid.UUID `gorm:"type:uuid;not null"`

	TotalSessions     int    `gorm:"not null"`
	RemainingSessions int    `gorm:"not null"`
	Status            string `gorm:"type:varchar(20);not null;default:'ACTIVE'"`

	StartDate time.Time `gorm:"not null"`
	// EndDate is nil for non-expiring packs (plan without a validity window).
	EndDate *time.Time

	// Per-session snapshot taken at assignment time so later plan edits don't
	// rewrite history.
	SessionName  string          `gorm:"type:varchar(128);not null"`
	SessionPrice decimal.Decimal `gorm:"type:decimal(12,2);not null"`

	CreatedByID uuid.UUID `gorm:"type:uuid;not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Usages []PackageSessionUsage `gorm:"foreignKey:MemberPackageID"`
}

// PackageSessionUsage is one consumption event against a MemberPackage.
// Append-only.
type PackageSessionUsage struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	MemberPackageID uuid.UUID `gorm:"type:uuid;not null;index"`

	Source string `gorm:"type:varchar(32);not null"` // check_in | manual
	UsedAt time.Time

	CreatedByID uuid.UUID `gorm:"type:uuid;not null"`
	CreatedAt   time.Time
}

// CheckInIdempotencyRecord maps a client-supplied idempotency key to the
// outcome of a previous consumption request, making retried check-ins safe.
// Unique on Key; append-only.
type CheckInIdempotencyRecord struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Key             string    `gorm:"type:varchar(128);not null;uniqueIndex"`
	MemberPackageID uuid.UUID `gorm:"type:uuid;not null"`
	UsageID         uuid.UUID `gorm:"type:uuid;not null"`
	// Response is the stored JSON payload returned verbatim on replay.
	Response string `gorm:"type:jsonb;not null"`

	CreatedAt time.Time
}
