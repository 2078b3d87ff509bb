package service

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Actor identifies the authenticated staff member performing an operation,
// plus the open shift bound to the request (when the client sent one). It is
// passed explicitly into every core call — never read from a global.
type Actor struct {
	UserID  uuid.UUID
	Role    string
	ShiftID *uuid.UUID
}

// runTx executes fn inside a GORM transaction when db is available,
// or calls fn(nil) directly when db is nil (unit test mode).
func runTx(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	if db == nil {
		return fn(nil)
	}
	return db.WithContext(ctx).Transaction(fn)
}
