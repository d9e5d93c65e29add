package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"docsync/internal/models"
)

// defaultChangeLimit bounds a single get_changes_since response.
const defaultChangeLimit = 100

// ChangeLog reads a user's monotonic change_events log (C8). It never
// writes; every append happens inside DocumentStore's own transactions so
// the log and the document table can't drift apart.
type ChangeLog struct {
	db *gorm.DB
}

func NewChangeLog(db *gorm.DB) *ChangeLog {
	return &ChangeLog{db: db}
}

// Since returns userID's change events with sequence > lastSequence, in
// ascending sequence order, capped at defaultChangeLimit rows.
func (c *ChangeLog) Since(ctx context.Context, userID uuid.UUID, lastSequence int64) ([]*models.ChangeEvent, error) {
	var events []*models.ChangeEvent
	err := c.db.WithContext(ctx).
		Where("user_id = ? AND sequence > ?", userID, lastSequence).
		Order("sequence ASC").
		Limit(defaultChangeLimit).
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("changelog: since: %w", err)
	}
	return events, nil
}

// LatestSequence returns the highest sequence number recorded for userID,
// or 0 if the user has no change events yet.
func (c *ChangeLog) LatestSequence(ctx context.Context, userID uuid.UUID) (int64, error) {
	var latest int64
	err := c.db.WithContext(ctx).
		Model(&models.ChangeEvent{}).
		Where("user_id = ?", userID).
		Select("COALESCE(MAX(sequence), 0)").
		Scan(&latest).Error
	if err != nil {
		return 0, fmt.Errorf("changelog: latest sequence: %w", err)
	}
	return latest, nil
}
