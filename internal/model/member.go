package model

import (
	"time"

	"github.com/google/uuid"
)

// Member is a gym customer. Profile CRUD lives outside the financial core;
// the core only reads the Active flag and identity.
type Member struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	FullName string    `gorm:"type:varchar(128);not null"`
	Phone    *string   `gorm:"type:varchar(32)"`
	Email    *string   `gorm:"type:varchar(128)"`

	Active    bool `gorm:"not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
