package session

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"

	"docsync/internal/directory"
	"docsync/internal/jsonop"
	"docsync/internal/middleware"
	"docsync/internal/ot"
	"docsync/internal/security"
	"docsync/internal/store"
	"docsync/internal/wire"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler owns the dependencies session dispatch needs: authentication,
// the user directory, and the document store/change log. It has no
// per-connection state itself; that lives on Session.
type Handler struct {
	registry  *Registry
	verifier  *security.Verifier
	signer    *security.SessionSigner
	directory *directory.Directory
	documents *store.DocumentStore
	changes   *store.ChangeLog
}

func NewHandler(registry *Registry, verifier *security.Verifier, signer *security.SessionSigner, dir *directory.Directory, documents *store.DocumentStore, changes *store.ChangeLog) *Handler {
	return &Handler{
		registry:  registry,
		verifier:  verifier,
		signer:    signer,
		directory: dir,
		documents: documents,
		changes:   changes,
	}
}

// Connect upgrades an HTTP request to a websocket session and starts its
// read/write pumps. The connection carries no authentication of its own;
// the first inbound message must be a join.
func (h *Handler) Connect(w http.ResponseWriter, r *http.Request) {
	ctx, span := middleware.StartSpan(r.Context(), "Session.Connect")
	defer span.End()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		middleware.AddSpanError(ctx, err)
		return
	}

	s := newSession(conn, h.registry, h)
	span.SetAttributes(attribute.String("session.id", s.ID))

	// net/http cancels the request context once Connect returns, but the
	// pumps outlive this call; keep the span values and drop the cancellation.
	pumpCtx := context.WithoutCancel(ctx)
	go s.WritePump(pumpCtx)
	go s.ReadPump(pumpCtx)
}

func (h *Handler) dispatch(ctx context.Context, s *Session, raw []byte) {
	var req wire.Request
	if err := json.Unmarshal(raw, &req); err != nil {
		log.Printf("session %s sent an unparseable frame", s.ID)
		return
	}

	ctx, span := middleware.StartSpan(ctx, "Session.Dispatch",
		attribute.String("session.id", s.ID),
		attribute.String("event", req.Event),
	)
	defer span.End()

	if !s.joined() {
		h.handleJoin(ctx, s, req)
		return
	}

	switch req.Event {
	case "create_document":
		h.handleCreate(ctx, s, req)
	case "update_document":
		h.handleUpdate(ctx, s, req)
	case "delete_document":
		h.handleDelete(ctx, s, req)
	case "request_full_sync":
		h.handleFullSync(ctx, s, req)
	case "get_changes_since":
		h.handleChangesSince(ctx, s, req)
	case "transform_operations":
		h.handleTransform(ctx, s, req)
	default:
		s.reply(mustEncodeReply(wire.Fail(req.Ref, "unknown_event", nil)))
	}
}

type joinPayload struct {
	Topic     string          `json:"topic"`
	Email     string          `json:"email"`
	APIKey    string          `json:"api_key"`
	Signature string          `json:"signature"`
	Timestamp json.RawMessage `json:"timestamp"`
}

func (h *Handler) handleJoin(ctx context.Context, s *Session, req wire.Request) {
	if req.Event != "join" {
		s.reply(mustEncodeReply(wire.Fail(req.Ref, "missing_params", nil)))
		return
	}

	var p joinPayload
	if err := json.Unmarshal(req.Payload, &p); err != nil {
		s.reply(mustEncodeReply(wire.Fail(req.Ref, "missing_params", nil)))
		return
	}
	if p.Topic == "" || p.Email == "" || p.APIKey == "" || p.Signature == "" || len(p.Timestamp) == 0 {
		s.reply(mustEncodeReply(wire.Fail(req.Ref, "missing_params", nil)))
		return
	}

	ts, err := security.ParseTimestamp(p.Timestamp)
	if err != nil {
		s.reply(mustEncodeReply(wire.Fail(req.Ref, "invalid_timestamp", nil)))
		return
	}

	if _, err := h.verifier.Verify(ctx, p.APIKey, p.Signature, ts, p.Email, ""); err != nil {
		middleware.AddSpanError(ctx, err)
		s.reply(mustEncodeReply(wire.Fail(req.Ref, authReason(err), nil)))
		return
	}

	user, err := h.directory.GetOrCreate(ctx, p.Email)
	if err != nil {
		middleware.AddSpanError(ctx, err)
		s.reply(mustEncodeReply(wire.Fail(req.Ref, "join_failed", nil)))
		return
	}
	h.directory.TouchLastSeen(ctx, user.ID)

	s.Topic = p.Topic
	s.UserID = user.ID
	s.Email = p.Email
	s.touch()
	h.registry.register <- s

	token := h.signer.Sign(s.ID, user.ID)
	reply, err := wire.OK(req.Ref, map[string]any{"user_id": user.ID, "session_token": token})
	if err != nil {
		return
	}
	s.reply(mustEncodeReply(reply))
}

func authReason(err error) string {
	switch {
	case errors.Is(err, security.ErrMissingParams):
		return "missing_params"
	case errors.Is(err, security.ErrInvalidTimestamp):
		return "invalid_timestamp"
	case errors.Is(err, security.ErrTimestampExpired):
		return "timestamp_expired"
	case errors.Is(err, security.ErrInvalidAPIKey):
		return "invalid_api_key"
	default:
		return "invalid_signature"
	}
}

type createPayload struct {
	ID      uuid.UUID       `json:"id"`
	Content json.RawMessage `json:"content"`
}

func (h *Handler) handleCreate(ctx context.Context, s *Session, req wire.Request) {
	var p createPayload
	if err := json.Unmarshal(req.Payload, &p); err != nil {
		s.reply(mustEncodeReply(wire.Fail(req.Ref, "insert_failed", nil)))
		return
	}

	doc, err := h.documents.Create(ctx, s.UserID, p.ID, p.Content)
	if err != nil {
		var conflict *store.ConflictError
		if errors.As(err, &conflict) {
			s.reply(mustEncodeReply(wire.Fail(req.Ref, "conflict", map[string]any{
				"existing_id":   conflict.Existing.ID,
				"sync_revision": conflict.Existing.SyncRevision,
			})))
			return
		}
		middleware.AddSpanError(ctx, err)
		s.reply(mustEncodeReply(wire.Fail(req.Ref, "insert_failed", nil)))
		return
	}

	reply, _ := wire.OK(req.Ref, map[string]any{
		"document_id":   doc.ID,
		"sync_revision": doc.SyncRevision,
		"content_hash":  doc.ContentHash,
	})
	s.reply(mustEncodeReply(reply))

	h.publish(s, "document_created", map[string]any{
		"id":            doc.ID,
		"content":       json.RawMessage(doc.Content),
		"sync_revision": doc.SyncRevision,
		"content_hash":  doc.ContentHash,
	})
}

type updatePayload struct {
	DocumentID       uuid.UUID       `json:"document_id"`
	Patch            json.RawMessage `json:"patch"`
	ExpectedRevision int             `json:"expected_revision"`
}

func (h *Handler) handleUpdate(ctx context.Context, s *Session, req wire.Request) {
	var p updatePayload
	if err := json.Unmarshal(req.Payload, &p); err != nil {
		s.reply(mustEncodeReply(wire.Fail(req.Ref, "update_failed", nil)))
		return
	}

	doc, err := h.documents.Update(ctx, s.UserID, p.DocumentID, p.Patch, p.ExpectedRevision)
	if err != nil {
		var mismatch *store.VersionMismatchError
		if errors.As(err, &mismatch) {
			s.reply(mustEncodeReply(wire.Fail(req.Ref, "version_mismatch", map[string]any{
				"current_revision": mismatch.Current.SyncRevision,
				"current_content":  json.RawMessage(mismatch.Current.Content),
				"current_hash":     mismatch.Current.ContentHash,
			})))
			return
		}
		if errors.Is(err, store.ErrNotFound) {
			s.reply(mustEncodeReply(wire.Fail(req.Ref, "not_found", nil)))
			return
		}
		if errors.Is(err, store.ErrInvalidPatch) {
			s.reply(mustEncodeReply(wire.Fail(req.Ref, "invalid_patch", nil)))
			return
		}
		middleware.AddSpanError(ctx, err)
		s.reply(mustEncodeReply(wire.Fail(req.Ref, "update_failed", nil)))
		return
	}

	reply, _ := wire.OK(req.Ref, map[string]any{"sync_revision": doc.SyncRevision})
	s.reply(mustEncodeReply(reply))

	h.publish(s, "document_updated", map[string]any{
		"id":            doc.ID,
		"content":       json.RawMessage(doc.Content),
		"sync_revision": doc.SyncRevision,
		"content_hash":  doc.ContentHash,
	})
}

type deletePayload struct {
	DocumentID uuid.UUID `json:"document_id"`
}

func (h *Handler) handleDelete(ctx context.Context, s *Session, req wire.Request) {
	var p deletePayload
	if err := json.Unmarshal(req.Payload, &p); err != nil {
		s.reply(mustEncodeReply(wire.Fail(req.Ref, "delete_failed", nil)))
		return
	}

	doc, err := h.documents.Delete(ctx, s.UserID, p.DocumentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.reply(mustEncodeReply(wire.Fail(req.Ref, "not_found", nil)))
			return
		}
		middleware.AddSpanError(ctx, err)
		s.reply(mustEncodeReply(wire.Fail(req.Ref, "delete_failed", nil)))
		return
	}

	reply, _ := wire.OK(req.Ref, struct{}{})
	s.reply(mustEncodeReply(reply))

	h.publish(s, "document_deleted", map[string]any{"id": doc.ID})
}

func (h *Handler) handleFullSync(ctx context.Context, s *Session, req wire.Request) {
	docs, err := h.documents.ListNonDeleted(ctx, s.UserID)
	if err != nil {
		middleware.AddSpanError(ctx, err)
		s.reply(mustEncodeReply(wire.Fail(req.Ref, "list_failed", nil)))
		return
	}
	latest, err := h.changes.LatestSequence(ctx, s.UserID)
	if err != nil {
		middleware.AddSpanError(ctx, err)
		s.reply(mustEncodeReply(wire.Fail(req.Ref, "list_failed", nil)))
		return
	}

	reply, _ := wire.OK(req.Ref, map[string]any{"documents": docs, "latest_sequence": latest})
	s.reply(mustEncodeReply(reply))
}

type changesSincePayload struct {
	LastSequence int64 `json:"last_sequence"`
}

func (h *Handler) handleChangesSince(ctx context.Context, s *Session, req wire.Request) {
	var p changesSincePayload
	if err := json.Unmarshal(req.Payload, &p); err != nil {
		s.reply(mustEncodeReply(wire.Fail(req.Ref, "list_failed", nil)))
		return
	}

	events, err := h.changes.Since(ctx, s.UserID, p.LastSequence)
	if err != nil {
		middleware.AddSpanError(ctx, err)
		s.reply(mustEncodeReply(wire.Fail(req.Ref, "list_failed", nil)))
		return
	}
	latest, err := h.changes.LatestSequence(ctx, s.UserID)
	if err != nil {
		middleware.AddSpanError(ctx, err)
		s.reply(mustEncodeReply(wire.Fail(req.Ref, "list_failed", nil)))
		return
	}

	reply, _ := wire.OK(req.Ref, map[string]any{"events": events, "latest_sequence": latest})
	s.reply(mustEncodeReply(reply))
}

type transformPayload struct {
	LocalOps  json.RawMessage `json:"local_ops"`
	RemoteOps json.RawMessage `json:"remote_ops"`
}

func (h *Handler) handleTransform(ctx context.Context, s *Session, req wire.Request) {
	var p transformPayload
	if err := json.Unmarshal(req.Payload, &p); err != nil {
		s.reply(mustEncodeReply(wire.Fail(req.Ref, "invalid patch payload", nil)))
		return
	}

	localOps, err := jsonop.ParsePatch(p.LocalOps)
	if err != nil {
		s.reply(mustEncodeReply(wire.Fail(req.Ref, err.Error(), nil)))
		return
	}
	remoteOps, err := jsonop.ParsePatch(p.RemoteOps)
	if err != nil {
		s.reply(mustEncodeReply(wire.Fail(req.Ref, err.Error(), nil)))
		return
	}

	transformedLocal, transformedRemote, err := ot.List(localOps, remoteOps)
	if err != nil {
		s.reply(mustEncodeReply(wire.Fail(req.Ref, err.Error(), nil)))
		return
	}

	reply, _ := wire.OK(req.Ref, map[string]any{
		"transformed_local":  jsonop.Denormalize(transformedLocal),
		"transformed_remote": jsonop.Denormalize(transformedRemote),
	})
	s.reply(mustEncodeReply(reply))
}

// publish broadcasts event to every other session on s's topic. Failures
// to marshal the broadcast are logged, not surfaced, since the direct
// reply to the originating client has already been sent.
func (h *Handler) publish(s *Session, event string, payload any) {
	bc, err := wire.Event(s.Topic, event, payload)
	if err != nil {
		log.Printf("session %s: failed to build %s broadcast: %v", s.ID, event, err)
		return
	}
	msg, err := json.Marshal(bc)
	if err != nil {
		log.Printf("session %s: failed to marshal %s broadcast: %v", s.ID, event, err)
		return
	}
	h.registry.Broadcast(s.Topic, msg, s)
}

func mustEncodeReply(r wire.Reply) []byte {
	msg, err := json.Marshal(r)
	if err != nil {
		return []byte(`{"status":"error","payload":{"reason":"encode_failed"}}`)
	}
	return msg
}
