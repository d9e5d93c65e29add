// Package security implements the credential store (C4) and HMAC channel
// verifier (C5): generating rpa_/rps_ key pairs, persisting them, and
// checking a signed join request against a ±300s clock window in
// constant time.
package security

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"docsync/internal/models"
)

const (
	apiKeyPrefix = "rpa_"
	secretPrefix = "rps_"
	tokenBytes   = 32
)

// GenerateCredentials draws two independent 32-byte cryptographically
// random values and hex-encodes them behind their literal prefixes.
func GenerateCredentials() (apiKey, secret string, err error) {
	apiKey, err = randomToken(apiKeyPrefix)
	if err != nil {
		return "", "", err
	}
	secret, err = randomToken(secretPrefix)
	if err != nil {
		return "", "", err
	}
	return apiKey, secret, nil
}

func randomToken(prefix string) (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("security: generate random token: %w", err)
	}
	return prefix + hex.EncodeToString(buf), nil
}

// CredentialStore persists ApiCredential rows.
type CredentialStore struct {
	db *gorm.DB
}

func NewCredentialStore(db *gorm.DB) *CredentialStore {
	return &CredentialStore{db: db}
}

// Create generates a fresh key pair, persists it, and returns the row. The
// secret is only ever available in plaintext at this moment and inside the
// stored row; it is never re-derivable from the api_key alone.
func (s *CredentialStore) Create(ctx context.Context, name string) (*models.ApiCredential, error) {
	apiKey, secret, err := GenerateCredentials()
	if err != nil {
		return nil, err
	}

	cred := &models.ApiCredential{
		ID:       uuid.New(),
		ApiKey:   apiKey,
		Secret:   secret,
		Name:     name,
		IsActive: true,
	}
	if err := s.db.WithContext(ctx).Create(cred).Error; err != nil {
		return nil, fmt.Errorf("security: create credential: %w", err)
	}
	return cred, nil
}

// Lookup finds an active credential by api_key. Inactive or unknown keys
// are indistinguishable to the caller: both are ErrInvalidAPIKey.
func (s *CredentialStore) Lookup(ctx context.Context, apiKey string) (*models.ApiCredential, error) {
	var cred models.ApiCredential
	err := s.db.WithContext(ctx).
		Where("api_key = ? AND is_active", apiKey).
		First(&cred).Error
	if err != nil {
		return nil, ErrInvalidAPIKey
	}
	return &cred, nil
}

// TouchLastUsed best-effort updates last_used_at; a failure here must never
// fail the surrounding authentication.
func (s *CredentialStore) TouchLastUsed(ctx context.Context, id uuid.UUID) {
	now := time.Now()
	_ = s.db.WithContext(ctx).
		Model(&models.ApiCredential{}).
		Where("id = ?", id).
		Update("last_used_at", now).Error
}
