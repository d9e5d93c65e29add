package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// computeHash returns the lowercase-hex SHA-256 of the canonical JSON
// encoding of content. The function is total: content that does not decode
// to a JSON object hashes to "" rather than erroring, since size_bytes and
// title extraction still need to succeed for arbitrary content.
func computeHash(content []byte) string {
	obj, ok := asObject(content)
	if !ok {
		return ""
	}
	canon, err := json.Marshal(obj)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(canon)
	return hex.EncodeToString(sum[:])
}

// extractTitle is a best-effort read of content.title; absence, wrong type,
// or non-object content all resolve to "".
func extractTitle(content []byte) string {
	obj, ok := asObject(content)
	if !ok {
		return ""
	}
	title, _ := obj["title"].(string)
	return title
}

func asObject(content []byte) (map[string]any, bool) {
	var v any
	if err := json.Unmarshal(content, &v); err != nil {
		return nil, false
	}
	obj, ok := v.(map[string]any)
	return obj, ok
}
