package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ChangeEventType enumerates the kinds of mutation the change log records.
type ChangeEventType string

const (
	EventCreate ChangeEventType = "create"
	EventUpdate ChangeEventType = "update"
	EventDelete ChangeEventType = "delete"
)

// ChangeEvent is one entry in a user's monotonic change log. Exactly one
// event is appended per successful document mutation, in the same
// transaction that writes the document row, so the log and the document
// table can never drift apart.
type ChangeEvent struct {
	Sequence        int64           `json:"sequence" gorm:"column:sequence;primaryKey;autoIncrement;index:idx_change_events_user_seq,priority:2"`
	DocumentID      uuid.UUID       `json:"document_id" gorm:"column:document_id;type:uuid;index"`
	Document        Document        `json:"-" gorm:"foreignKey:DocumentID;references:ID;constraint:OnDelete:CASCADE"`
	UserID          uuid.UUID       `json:"user_id" gorm:"column:user_id;type:uuid;index:idx_change_events_user;index:idx_change_events_user_seq,priority:1"`
	User            User            `json:"-" gorm:"foreignKey:UserID;references:ID;constraint:OnDelete:CASCADE"`
	EventType       ChangeEventType `json:"event_type" gorm:"column:event_type;type:text"`
	ForwardPatch    datatypes.JSON  `json:"forward_patch,omitempty" gorm:"column:forward_patch;type:jsonb"`
	ReversePatch    datatypes.JSON  `json:"reverse_patch,omitempty" gorm:"column:reverse_patch;type:jsonb"`
	Applied         bool            `json:"applied" gorm:"column:applied;default:true"`
	ServerTimestamp time.Time       `json:"server_timestamp" gorm:"column:server_timestamp"`
	CreatedAt       time.Time       `json:"created_at" gorm:"column:created_at;autoCreateTime"`
}

func (ChangeEvent) TableName() string { return "change_events" }
