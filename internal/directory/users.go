// Package directory maps email addresses to the deterministic user ids the
// rest of the system keys everything off of (C6).
package directory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"docsync/internal/models"
)

// Directory resolves users by email under a fixed UUIDv5 namespace, so
// independent server nodes derive identical ids for the same email without
// coordinating.
type Directory struct {
	db        *gorm.DB
	namespace uuid.UUID
}

func New(db *gorm.DB, namespace uuid.UUID) *Directory {
	return &Directory{db: db, namespace: namespace}
}

// DeriveID computes the deterministic id for an email under this
// directory's namespace, without touching the database.
func (d *Directory) DeriveID(email string) uuid.UUID {
	return uuid.NewSHA1(d.namespace, []byte(email))
}

// GetOrCreate upserts a user by its deterministic id. A conflicting insert
// (the same id already exists, e.g. a concurrent join for the same email)
// resolves to the existing row rather than an error.
func (d *Directory) GetOrCreate(ctx context.Context, email string) (*models.User, error) {
	id := d.DeriveID(email)

	user := &models.User{ID: id, Email: email}
	err := d.db.WithContext(ctx).
		Where(models.User{ID: id}).
		Attrs(models.User{Email: email}).
		FirstOrCreate(user).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// Another join inserted the same id between the lookup and the
		// insert; load the row it wrote.
		user = &models.User{}
		err = d.db.WithContext(ctx).First(user, "id = ?", id).Error
	}
	if err != nil {
		return nil, fmt.Errorf("directory: get or create user: %w", err)
	}
	return user, nil
}

// TouchLastSeen is a best-effort update; a failure here must never fail the
// join that triggered it.
func (d *Directory) TouchLastSeen(ctx context.Context, id uuid.UUID) {
	now := time.Now()
	_ = d.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		Update("last_seen_at", now).Error
}
