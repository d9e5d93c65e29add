package models

import (
	"time"

	"github.com/google/uuid"
)

// ApiCredential is a persisted API key/secret pair used to authenticate
// session joins. Credentials are independent entities; a User is created
// lazily on the first authenticated join, not when a credential is issued.
type ApiCredential struct {
	ID         uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	ApiKey     string     `json:"api_key" gorm:"column:api_key;unique;not null"`
	Secret     string     `json:"-" gorm:"column:secret;not null"`
	Name       string     `json:"name" gorm:"column:name;not null"`
	IsActive   bool       `json:"is_active" gorm:"column:is_active;default:true"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty" gorm:"column:last_used_at"`
	CreatedAt  time.Time  `json:"created_at" gorm:"column:created_at;autoCreateTime"`
}

func (ApiCredential) TableName() string { return "api_credentials" }
