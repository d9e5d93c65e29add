// Package pathutil parses and reconstructs JSON Pointer (RFC 6901) paths
// and provides the index arithmetic the OT transformer needs to rewrite
// concurrent array edits.
package pathutil

import (
	"fmt"
	"strconv"
	"strings"
)

// SegmentKind distinguishes an object-key path segment from an array-index one.
type SegmentKind int

const (
	Object SegmentKind = iota
	Array
)

// Segment is one decoded step of a JSON Pointer.
type Segment struct {
	Kind  SegmentKind
	Key   string // valid when Kind == Object
	Index int    // valid when Kind == Array
}

// Path is a parsed JSON Pointer. Raw is kept only for diagnostics; all
// comparisons and rewrites operate on Segments.
type Path struct {
	Raw      string
	Segments []Segment
}

// Parse decodes a JSON Pointer string. The empty string and any string
// without a leading "/" are rejected; "/" parses to zero segments.
func Parse(raw string) (Path, error) {
	if raw == "" {
		return Path{}, fmt.Errorf("pathutil: empty path")
	}
	if raw[0] != '/' {
		return Path{}, fmt.Errorf("pathutil: path %q missing leading slash", raw)
	}
	if raw == "/" {
		return Path{Raw: raw}, nil
	}

	parts := strings.Split(raw[1:], "/")
	segments := make([]Segment, 0, len(parts))
	for _, part := range parts {
		segments = append(segments, decodeSegment(part))
	}
	return Path{Raw: raw, Segments: segments}, nil
}

// decodeSegment un-escapes a single raw pointer token ("~1" then "~0", in
// that order) and classifies it as an array index or an object key.
func decodeSegment(raw string) Segment {
	decoded := strings.ReplaceAll(raw, "~1", "/")
	decoded = strings.ReplaceAll(decoded, "~0", "~")

	if n, err := strconv.Atoi(decoded); err == nil && n >= 0 && strconv.Itoa(n) == decoded {
		return Segment{Kind: Array, Index: n}
	}
	return Segment{Kind: Object, Key: decoded}
}

// encodeSegment escapes a decoded token for the wire ("~" then "/", the
// reverse order of decoding).
func encodeSegment(s Segment) string {
	if s.Kind == Array {
		return strconv.Itoa(s.Index)
	}
	encoded := strings.ReplaceAll(s.Key, "~", "~0")
	encoded = strings.ReplaceAll(encoded, "/", "~1")
	return encoded
}

// Reconstruct is the inverse of Parse: it rebuilds a wire path from segments.
func Reconstruct(segments []Segment) string {
	if len(segments) == 0 {
		return "/"
	}
	parts := make([]string, len(segments))
	for i, s := range segments {
		parts[i] = encodeSegment(s)
	}
	return "/" + strings.Join(parts, "/")
}

// ExtractLastArrayIndex walks segments right-to-left and returns the first
// array index encountered, or ok=false if the path has none.
func ExtractLastArrayIndex(raw string) (index int, ok bool) {
	p, err := Parse(raw)
	if err != nil {
		return 0, false
	}
	for i := len(p.Segments) - 1; i >= 0; i-- {
		if p.Segments[i].Kind == Array {
			return p.Segments[i].Index, true
		}
	}
	return 0, false
}

// AdjustArrayIndex rewrites the right-most array segment equal to target by
// delta. A path with no matching segment is returned unchanged. A negative
// result is an error.
func AdjustArrayIndex(raw string, target, delta int) (string, error) {
	p, err := Parse(raw)
	if err != nil {
		return "", err
	}

	for i := len(p.Segments) - 1; i >= 0; i-- {
		if p.Segments[i].Kind == Array && p.Segments[i].Index == target {
			newIndex := target + delta
			if newIndex < 0 {
				return "", fmt.Errorf("pathutil: adjusting %q by %d underflows array index", raw, delta)
			}
			out := make([]Segment, len(p.Segments))
			copy(out, p.Segments)
			out[i].Index = newIndex
			return Reconstruct(out), nil
		}
	}
	return raw, nil
}

// Parent returns the path with its final segment removed. Parent("/") is
// ("", false): the root has no parent.
func Parent(raw string) (string, bool) {
	p, err := Parse(raw)
	if err != nil || len(p.Segments) == 0 {
		return "", false
	}
	return Reconstruct(p.Segments[:len(p.Segments)-1]), true
}

// Relation is the result of Compare.
type Relation int

const (
	Unrelated Relation = iota
	Same
	ParentOf
	ChildOf
	Sibling
)

// Compare classifies the structural relationship between two paths.
func Compare(a, b string) Relation {
	if a == b {
		return Same
	}
	if strings.HasPrefix(b, a+"/") {
		return ParentOf
	}
	if strings.HasPrefix(a, b+"/") {
		return ChildOf
	}

	parentA, okA := Parent(a)
	parentB, okB := Parent(b)
	if okA && okB && parentA == parentB {
		return Sibling
	}
	return Unrelated
}

// Conflict reports whether two paths address overlapping state and
// therefore need OT reconciliation rather than independent application.
func Conflict(a, b string) bool {
	switch Compare(a, b) {
	case Same, ParentOf, ChildOf:
		return true
	default:
		return false
	}
}
