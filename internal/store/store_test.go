package store

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"docsync/internal/db"
)

// openTestDB opens a fresh in-memory sqlite database per test, migrated
// with the same schema production runs against Postgres.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
	})
	require.NoError(t, err, "open sqlite")
	require.NoError(t, db.AutoMigrate(conn), "migrate")
	return conn
}

func TestCreateAndListNonDeleted(t *testing.T) {
	conn := openTestDB(t)
	docs := NewDocumentStore(conn)
	ctx := context.Background()
	userID := uuid.New()
	docID := uuid.New()

	doc, err := docs.Create(ctx, userID, docID, json.RawMessage(`{"title":"hello","body":"world"}`))
	require.NoError(t, err)
	assert.Equal(t, 1, doc.SyncRevision)
	assert.Equal(t, "hello", doc.Title)
	assert.NotEmpty(t, doc.ContentHash, "expected non-empty content hash for object content")

	list, err := docs.ListNonDeleted(ctx, userID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, docID, list[0].ID)
}

func TestCreateDuplicateIDReturnsConflict(t *testing.T) {
	conn := openTestDB(t)
	docs := NewDocumentStore(conn)
	ctx := context.Background()
	docID := uuid.New()

	first := uuid.New()
	_, err := docs.Create(ctx, first, docID, json.RawMessage(`{}`))
	require.NoError(t, err, "first create")

	second := uuid.New()
	_, err = docs.Create(ctx, second, docID, json.RawMessage(`{}`))
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, first, conflict.Existing.UserID, "expected conflict to report the original owner")
}

func TestUpdateAppliesPatchAndAppendsChangeEvent(t *testing.T) {
	conn := openTestDB(t)
	docs := NewDocumentStore(conn)
	log := NewChangeLog(conn)
	ctx := context.Background()
	userID := uuid.New()
	docID := uuid.New()

	_, err := docs.Create(ctx, userID, docID, json.RawMessage(`{"count":1}`))
	require.NoError(t, err, "create")

	patchDoc := json.RawMessage(`[{"op":"replace","path":"/count","value":2}]`)
	updated, err := docs.Update(ctx, userID, docID, patchDoc, 1)
	require.NoError(t, err, "update")
	assert.Equal(t, 2, updated.SyncRevision)

	var content map[string]any
	require.NoError(t, json.Unmarshal(updated.Content, &content))
	assert.Equal(t, float64(2), content["count"])

	events, err := log.Since(ctx, userID, 0)
	require.NoError(t, err)
	require.Len(t, events, 2, "expected create + update events")
	assert.NotNil(t, events[1].ReversePatch, "expected update event to carry a reverse patch")
}

func TestUpdateWrongRevisionReturnsVersionMismatch(t *testing.T) {
	conn := openTestDB(t)
	docs := NewDocumentStore(conn)
	ctx := context.Background()
	userID := uuid.New()
	docID := uuid.New()

	_, err := docs.Create(ctx, userID, docID, json.RawMessage(`{"count":1}`))
	require.NoError(t, err, "create")

	_, err = docs.Update(ctx, userID, docID, json.RawMessage(`[{"op":"replace","path":"/count","value":2}]`), 99)
	var mismatch *VersionMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 1, mismatch.Current.SyncRevision)
}

func TestUpdateUnknownDocumentReturnsNotFound(t *testing.T) {
	conn := openTestDB(t)
	docs := NewDocumentStore(conn)
	ctx := context.Background()

	_, err := docs.Update(ctx, uuid.New(), uuid.New(), json.RawMessage(`[]`), 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteTombstonesAndPreservesContent(t *testing.T) {
	conn := openTestDB(t)
	docs := NewDocumentStore(conn)
	ctx := context.Background()
	userID := uuid.New()
	docID := uuid.New()

	_, err := docs.Create(ctx, userID, docID, json.RawMessage(`{"count":1}`))
	require.NoError(t, err, "create")

	deleted, err := docs.Delete(ctx, userID, docID)
	require.NoError(t, err, "delete")
	require.NotNil(t, deleted.DeletedAt, "expected deleted_at to be set")

	list, err := docs.ListNonDeleted(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, list, "expected no live documents after delete")

	_, err = docs.Delete(ctx, userID, docID)
	assert.ErrorIs(t, err, ErrNotFound, "expected second delete to report ErrNotFound")
}

func TestChangeLogLatestSequence(t *testing.T) {
	conn := openTestDB(t)
	docs := NewDocumentStore(conn)
	log := NewChangeLog(conn)
	ctx := context.Background()
	userID := uuid.New()

	seq, err := log.LatestSequence(ctx, userID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, seq, "expected 0 for a user with no events")

	_, err = docs.Create(ctx, userID, uuid.New(), json.RawMessage(`{}`))
	require.NoError(t, err, "create")
	seq, err = log.LatestSequence(ctx, userID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, seq, "expected sequence 1 after one event")
}
