package models

import (
	"time"

	"github.com/google/uuid"
)

// User is a stable identity derived deterministically from an email address
// via UUIDv5, so independent server nodes agree on the same id without a
// round trip.
type User struct {
	ID          uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	Email       string     `json:"email" gorm:"type:text;unique;not null"`
	LastSeenAt  *time.Time `json:"last_seen_at,omitempty" gorm:"column:last_seen_at"`
	CreatedAt   time.Time  `json:"created_at" gorm:"column:created_at;autoCreateTime"`
}

func (User) TableName() string { return "users" }
