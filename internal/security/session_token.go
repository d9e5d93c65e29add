package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SessionSigner issues and checks the token a session receives on a
// successful join. It is keyed by a server-wide secret (spec.md §6's
// "secret for session signing"), separate from the per-credential secrets
// Verifier checks join signatures against.
type SessionSigner struct {
	secret string
	now    func() time.Time
}

func NewSessionSigner(secret string) *SessionSigner {
	return &SessionSigner{secret: secret, now: time.Now}
}

// Sign binds sessionID and userID to the moment of issuance and returns
// "<issued_at>.<hmac-hex>".
func (s *SessionSigner) Sign(sessionID string, userID uuid.UUID) string {
	issuedAt := s.now().Unix()
	return fmt.Sprintf("%d.%s", issuedAt, s.mac(sessionID, userID, issuedAt))
}

// Verify recomputes the token for (sessionID, userID) and compares it in
// constant time against token.
func (s *SessionSigner) Verify(token, sessionID string, userID uuid.UUID) bool {
	issuedAtPart, macPart, ok := strings.Cut(token, ".")
	if !ok {
		return false
	}
	issuedAt, err := strconv.ParseInt(issuedAtPart, 10, 64)
	if err != nil {
		return false
	}
	return hmac.Equal([]byte(s.mac(sessionID, userID, issuedAt)), []byte(macPart))
}

func (s *SessionSigner) mac(sessionID string, userID uuid.UUID, issuedAt int64) string {
	message := fmt.Sprintf("%s.%s.%d", sessionID, userID, issuedAt)
	mac := hmac.New(sha256.New, []byte(s.secret))
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}
