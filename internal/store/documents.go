// Package store owns transactional document persistence (C7) and the
// per-user change log derived from it (C8). Every mutation writes exactly
// one document row and appends exactly one change_events row inside a
// single database transaction, so the log can never drift from the table
// it describes.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"docsync/internal/models"
	"docsync/internal/patch"
)

var (
	// ErrNotFound is returned when the target document does not exist, is
	// not owned by the caller, or has already been soft-deleted.
	ErrNotFound = errors.New("store: document not found")
	// ErrInvalidPatch wraps a normalization or apply failure on an
	// incoming patch; the transaction is rolled back untouched.
	ErrInvalidPatch = errors.New("store: invalid patch")
)

// ConflictError is returned by Create when the requested id already
// belongs to an existing document.
type ConflictError struct {
	Existing *models.Document
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("store: document %s already exists", e.Existing.ID)
}

// VersionMismatchError is returned by Update when the caller's expected
// revision does not match the document's current sync_revision.
type VersionMismatchError struct {
	Current *models.Document
}

func (e *VersionMismatchError) Error() string {
	return fmt.Sprintf("store: document %s is at revision %d", e.Current.ID, e.Current.SyncRevision)
}

// DocumentStore is the transactional home for documents and their change
// log, grounded on the repository/transaction shape of a GORM-backed store.
type DocumentStore struct {
	db *gorm.DB
}

func NewDocumentStore(db *gorm.DB) *DocumentStore {
	return &DocumentStore{db: db}
}

// Create inserts a new document owned by userID under a client-chosen id.
// Ids are globally unique, not scoped by user, so a duplicate insert is
// reported back as a conflict against whatever row already holds that id.
func (s *DocumentStore) Create(ctx context.Context, userID, id uuid.UUID, content json.RawMessage) (*models.Document, error) {
	doc := &models.Document{
		ID:           id,
		UserID:       userID,
		Content:      datatypes.JSON(content),
		SyncRevision: 1,
		ContentHash:  computeHash(content),
		Title:        extractTitle(content),
		SizeBytes:    len(content),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(doc).Error; err != nil {
			return err
		}
		event := &models.ChangeEvent{
			DocumentID:      doc.ID,
			UserID:          userID,
			EventType:       models.EventCreate,
			ForwardPatch:    datatypes.JSON(content),
			Applied:         true,
			ServerTimestamp: time.Now(),
		}
		return tx.Create(event).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			existing, loadErr := s.loadByID(ctx, id)
			if loadErr != nil {
				return nil, loadErr
			}
			return nil, &ConflictError{Existing: existing}
		}
		return nil, fmt.Errorf("store: create document: %w", err)
	}
	return doc, nil
}

// Update applies rawPatch to the document identified by (userID, id),
// enforcing that expectedRevision matches the row's current sync_revision
// before the patch is applied. On success sync_revision is incremented and
// a change event carrying both the forward and reverse patch is appended.
func (s *DocumentStore) Update(ctx context.Context, userID, id uuid.UUID, rawPatch json.RawMessage, expectedRevision int) (*models.Document, error) {
	var result models.Document

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var doc models.Document
		if err := tx.Where("id = ? AND user_id = ? AND deleted_at IS NULL", id, userID).First(&doc).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if doc.SyncRevision != expectedRevision {
			mismatch := doc
			return &VersionMismatchError{Current: &mismatch}
		}

		ops, err := patch.Normalize(rawPatch)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidPatch, err)
		}
		next, err := patch.Apply(json.RawMessage(doc.Content), ops)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidPatch, err)
		}
		reverse, err := patch.Inverse(next, json.RawMessage(doc.Content))
		if err != nil {
			return fmt.Errorf("store: compute reverse patch: %w", err)
		}

		doc.Content = datatypes.JSON(next)
		doc.ContentHash = computeHash(next)
		doc.Title = extractTitle(next)
		doc.SizeBytes = len(next)
		doc.SyncRevision++

		if err := tx.Save(&doc).Error; err != nil {
			return err
		}
		event := &models.ChangeEvent{
			DocumentID:      doc.ID,
			UserID:          userID,
			EventType:       models.EventUpdate,
			ForwardPatch:    datatypes.JSON(rawPatch),
			ReversePatch:    datatypes.JSON(reverse),
			Applied:         true,
			ServerTimestamp: time.Now(),
		}
		if err := tx.Create(event).Error; err != nil {
			return err
		}
		result = doc
		return nil
	})
	if err != nil {
		var mismatch *VersionMismatchError
		if errors.As(err, &mismatch) {
			return nil, mismatch
		}
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidPatch) {
			return nil, err
		}
		return nil, fmt.Errorf("store: update document: %w", err)
	}
	return &result, nil
}

// Delete tombstones a document via deleted_at, leaving the row (and its
// content, for undo) in place, and appends a delete change event whose
// reverse_patch is the document's content immediately before deletion.
func (s *DocumentStore) Delete(ctx context.Context, userID, id uuid.UUID) (*models.Document, error) {
	var result models.Document

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var doc models.Document
		if err := tx.Where("id = ? AND user_id = ? AND deleted_at IS NULL", id, userID).First(&doc).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		priorContent := doc.Content
		now := time.Now()
		if err := tx.Model(&doc).Update("deleted_at", now).Error; err != nil {
			return err
		}
		doc.DeletedAt = &now

		event := &models.ChangeEvent{
			DocumentID:      doc.ID,
			UserID:          userID,
			EventType:       models.EventDelete,
			ReversePatch:    priorContent,
			Applied:         true,
			ServerTimestamp: now,
		}
		if err := tx.Create(event).Error; err != nil {
			return err
		}
		result = doc
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("store: delete document: %w", err)
	}
	return &result, nil
}

// ListNonDeleted returns userID's live documents, most recently updated
// first, for full-sync responses.
func (s *DocumentStore) ListNonDeleted(ctx context.Context, userID uuid.UUID) ([]*models.Document, error) {
	var docs []*models.Document
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND deleted_at IS NULL", userID).
		Order("updated_at DESC").
		Find(&docs).Error
	if err != nil {
		return nil, fmt.Errorf("store: list documents: %w", err)
	}
	return docs, nil
}

func (s *DocumentStore) loadByID(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	var doc models.Document
	if err := s.db.WithContext(ctx).First(&doc, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("store: load document: %w", err)
	}
	return &doc, nil
}
