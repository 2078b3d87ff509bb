package model

import (
	"time"

	"github.com/google/uuid"
)

// Staff roles.
const (
	RoleReception = "reception"
	RoleManager   = "manager"
	RoleAdmin     = "admin"
)

// User is a staff account (reception, manager, admin).
type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Username     string    `gorm:"type:varchar(64);not null;uniqueIndex"`
	FullName     string    `gorm:"type:varchar(128);not null"`
	Email        string    `gorm:"type:varchar(128);not null"`
	PasswordHash string    `gorm:"not null"`
	Role         string    `gorm:"type:varchar(20);not null"`

	Active    bool `gorm:"not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
