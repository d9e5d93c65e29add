// Package patch applies RFC 6902 JSON Patch documents to JSON content and
// computes the inverse patch needed to undo a committed change. Application
// and diffing are delegated to conforming third-party libraries; this
// package only owns normalization to/from the wire representation.
package patch

import (
	"encoding/json"
	"fmt"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/wI2L/jsondiff"

	"docsync/internal/jsonop"
)

// Apply evaluates ops against content in order and returns the resulting
// document. On any failure it returns an error and content is untouched.
func Apply(content json.RawMessage, ops []jsonop.Operation) (json.RawMessage, error) {
	raw, err := jsonop.MarshalPatch(ops)
	if err != nil {
		return nil, fmt.Errorf("patch: marshal patch: %w", err)
	}

	decoded, err := jsonpatch.DecodePatch(raw)
	if err != nil {
		return nil, fmt.Errorf("patch: invalid patch: %w", err)
	}

	next, err := decoded.Apply(content)
	if err != nil {
		return nil, fmt.Errorf("patch: apply failed: %w", err)
	}
	return next, nil
}

// Inverse computes the patch that, applied to next, restores prev. It is
// used to populate ChangeEvent.reverse_patch after a successful update; a
// delete event records the prior content directly instead.
func Inverse(next, prev json.RawMessage) (json.RawMessage, error) {
	ops, err := jsondiff.CompareJSON(next, prev)
	if err != nil {
		return nil, fmt.Errorf("patch: diff failed: %w", err)
	}
	out, err := json.Marshal(ops)
	if err != nil {
		return nil, fmt.Errorf("patch: marshal inverse: %w", err)
	}
	return out, nil
}

// Normalize maps the on-wire string-keyed operation list into the internal
// keyed representation the OT transformer and Apply expect.
func Normalize(raw json.RawMessage) ([]jsonop.Operation, error) {
	ops, err := jsonop.ParsePatch(raw)
	if err != nil {
		return nil, fmt.Errorf("patch: normalize: %w", err)
	}
	return ops, nil
}
