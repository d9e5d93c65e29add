package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Document is a JSON document under optimistic-concurrency control. Its id
// is client-chosen and globally unique (not scoped by user), so a duplicate
// insert is reported back to the client as a conflict rather than silently
// scoped away. Soft-deleted rows are tombstoned via DeletedAt, never hard
// deleted, so the change log always has something to point at.
type Document struct {
	ID           uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	UserID       uuid.UUID      `json:"user_id" gorm:"column:user_id;type:uuid;index:idx_documents_user;index:idx_documents_user_deleted,priority:1"`
	User         User           `json:"-" gorm:"foreignKey:UserID;references:ID;constraint:OnDelete:CASCADE"`
	Content      datatypes.JSON `json:"content" gorm:"column:content;type:jsonb;not null"`
	SyncRevision int            `json:"sync_revision" gorm:"column:sync_revision;not null;default:1"`
	ContentHash  string         `json:"content_hash" gorm:"column:content_hash"`
	Title        string         `json:"title" gorm:"column:title"`
	SizeBytes    int            `json:"size_bytes" gorm:"column:size_bytes"`
	DeletedAt    *time.Time     `json:"deleted_at,omitempty" gorm:"column:deleted_at;index:idx_documents_user_deleted,priority:2"`
	CreatedAt    time.Time      `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time      `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
}

func (Document) TableName() string { return "documents" }
