package pathutil

import "testing"

func TestParseRejectsEmptyAndUnrooted(t *testing.T) {
	if _, err := Parse(""); err == nil {
		t.Fatalf("expected error for empty path")
	}
	if _, err := Parse("a/b"); err == nil {
		t.Fatalf("expected error for path missing leading slash")
	}
}

func TestParseRoot(t *testing.T) {
	p, err := Parse("/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.Segments) != 0 {
		t.Fatalf("expected zero segments for root, got %v", p.Segments)
	}
}

func TestParseEscapeOrder(t *testing.T) {
	// "~01" must decode to "~1" (literal tilde-one), not "/".
	p, err := Parse("/~01")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.Segments) != 1 || p.Segments[0].Kind != Object || p.Segments[0].Key != "~1" {
		t.Fatalf("unexpected decode: %+v", p.Segments)
	}
}

func TestParseArraySegment(t *testing.T) {
	p, err := Parse("/items/2/name")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []Segment{
		{Kind: Object, Key: "items"},
		{Kind: Array, Index: 2},
		{Kind: Object, Key: "name"},
	}
	if len(p.Segments) != len(want) {
		t.Fatalf("segment count mismatch: %+v", p.Segments)
	}
	for i := range want {
		if p.Segments[i] != want[i] {
			t.Fatalf("segment %d mismatch: got %+v want %+v", i, p.Segments[i], want[i])
		}
	}
}

func TestParseLeadingZeroIsObjectKey(t *testing.T) {
	// "007" cannot round-trip as an array index (Itoa(7) != "007"), so it
	// must stay an object key for Reconstruct(Parse(p)) == p to hold.
	p, err := Parse("/007")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Segments[0].Kind != Object {
		t.Fatalf("expected object segment for %q, got %+v", "/007", p.Segments[0])
	}
}

func TestRoundTrip(t *testing.T) {
	cases := []string{
		"/",
		"/a",
		"/a/b/c",
		"/items/0",
		"/a~1b",
		"/a~0b",
		"/~1~0",
		"/007",
	}
	for _, raw := range cases {
		p, err := Parse(raw)
		if err != nil {
			t.Fatalf("Parse(%q): %v", raw, err)
		}
		got := Reconstruct(p.Segments)
		if got != raw {
			t.Errorf("round trip mismatch: Parse(%q) -> Reconstruct = %q", raw, got)
		}
	}
}

func TestExtractLastArrayIndex(t *testing.T) {
	if idx, ok := ExtractLastArrayIndex("/items/2/tags/5"); !ok || idx != 5 {
		t.Fatalf("expected 5, got %d ok=%v", idx, ok)
	}
	if _, ok := ExtractLastArrayIndex("/title"); ok {
		t.Fatalf("expected no array index")
	}
}

func TestAdjustArrayIndex(t *testing.T) {
	got, err := AdjustArrayIndex("/items/2", 2, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "/items/3" {
		t.Fatalf("expected /items/3, got %s", got)
	}

	// No matching index: path returned unchanged.
	got, err = AdjustArrayIndex("/items/2", 5, 1)
	if err != nil || got != "/items/2" {
		t.Fatalf("expected unchanged path, got %s err=%v", got, err)
	}

	// Underflow is an error.
	if _, err := AdjustArrayIndex("/items/0", 0, -1); err == nil {
		t.Fatalf("expected underflow error")
	}
}

func TestAdjustArrayIndexInverse(t *testing.T) {
	// Invariant 4: adjust by +d then by -d at the shifted index returns the
	// original path, whenever the shift never went negative.
	cases := []struct {
		path       string
		target, d  int
	}{
		{"/items/2", 2, 3},
		{"/a/0/b/7", 7, -2},
	}
	for _, c := range cases {
		shifted, err := AdjustArrayIndex(c.path, c.target, c.d)
		if err != nil {
			t.Fatalf("forward adjust failed: %v", err)
		}
		back, err := AdjustArrayIndex(shifted, c.target+c.d, -c.d)
		if err != nil {
			t.Fatalf("reverse adjust failed: %v", err)
		}
		if back != c.path {
			t.Errorf("round trip mismatch: %s -> %s -> %s", c.path, shifted, back)
		}
	}
}

func TestParent(t *testing.T) {
	if _, ok := Parent("/"); ok {
		t.Fatalf("expected root to have no parent")
	}
	if p, ok := Parent("/a"); !ok || p != "/" {
		t.Fatalf("expected /, got %s ok=%v", p, ok)
	}
	if p, ok := Parent("/a/b"); !ok || p != "/a" {
		t.Fatalf("expected /a, got %s ok=%v", p, ok)
	}
}

func TestCompare(t *testing.T) {
	cases := []struct {
		a, b string
		want Relation
	}{
		{"/a", "/a", Same},
		{"/a", "/a/b", ParentOf},
		{"/a/b", "/a", ChildOf},
		{"/a", "/b", Sibling},   // both top-level, parent is "/"
		{"/a/x", "/a/y", Sibling},
		{"/a/b", "/c/d", Unrelated},
	}
	for _, c := range cases {
		if got := Compare(c.a, c.b); got != c.want {
			t.Errorf("Compare(%q, %q) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}

func TestPathsConflict(t *testing.T) {
	if !Conflict("/a", "/a") {
		t.Errorf("same path should conflict")
	}
	if !Conflict("/a", "/a/b") {
		t.Errorf("parent/child should conflict")
	}
	if Conflict("/a", "/b") {
		t.Errorf("siblings should not conflict")
	}
}
