package security

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"docsync/internal/models"
)

// Authentication error kinds, surfaced verbatim as the wire "reason" string.
var (
	ErrMissingParams    = errors.New("missing_params")
	ErrInvalidTimestamp = errors.New("invalid_timestamp")
	ErrTimestampExpired = errors.New("timestamp_expired")
	ErrInvalidAPIKey    = errors.New("invalid_api_key")
	ErrInvalidSignature = errors.New("invalid_signature")
)

// timestampWindow is the maximum allowed clock skew between client and
// server, inclusive on both ends (±300s accepted, ±301s rejected).
const timestampWindow = 300 * time.Second

// CreateSignature computes the lowercase-hex HMAC-SHA256 of
// "<ts>.<email>.<api_key>.<body>" keyed by secret.
func CreateSignature(secret string, ts int64, email, apiKey, body string) string {
	message := fmt.Sprintf("%d.%s.%s.%s", ts, email, apiKey, body)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

// ParseTimestamp implements C5 step 1: the wire timestamp must decode as an
// integer, whether the client sent it as a JSON number or a numeric string.
func ParseTimestamp(raw json.RawMessage) (int64, error) {
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if ts, err := n.Int64(); err == nil {
			return ts, nil
		}
		return 0, ErrInvalidTimestamp
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, ErrInvalidTimestamp
	}
	n = json.Number(s)
	ts, err := n.Int64()
	if err != nil {
		return 0, ErrInvalidTimestamp
	}
	return ts, nil
}

// Verifier checks a signed join request against the credential store.
type Verifier struct {
	store *CredentialStore
	now   func() time.Time
}

func NewVerifier(store *CredentialStore) *Verifier {
	return &Verifier{store: store, now: time.Now}
}

// Verify implements steps 2–5 of C5's check on an already-parsed timestamp
// (step 1 is ParseTimestamp, which the caller runs first): bound ts to the
// ±300s window, look up an active credential, recompute the expected
// signature and compare it in constant time, then best-effort touch
// last_used_at. On success it returns the matched credential.
func (v *Verifier) Verify(ctx context.Context, apiKey, signature string, ts int64, email, body string) (*models.ApiCredential, error) {
	if !withinWindow(v.now().Unix(), ts) {
		return nil, ErrTimestampExpired
	}

	cred, err := v.store.Lookup(ctx, apiKey)
	if err != nil {
		return nil, ErrInvalidAPIKey
	}

	expected := CreateSignature(cred.Secret, ts, email, apiKey, body)
	if !constantTimeEqual(expected, signature) {
		return nil, ErrInvalidSignature
	}

	v.store.TouchLastUsed(ctx, cred.ID)
	return cred, nil
}

// withinWindow reports whether ts is no more than timestampWindow away from
// now in either direction.
func withinWindow(now, ts int64) bool {
	skew := now - ts
	if skew < 0 {
		skew = -skew
	}
	return time.Duration(skew)*time.Second <= timestampWindow
}

// constantTimeEqual compares two hex signatures without leaking timing
// information. Mismatched lengths fail immediately, as hmac.Equal already
// guarantees.
func constantTimeEqual(expected, actual string) bool {
	return hmac.Equal([]byte(expected), []byte(actual))
}
