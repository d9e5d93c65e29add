package directory

import (
	"testing"

	"github.com/google/uuid"
)

func TestDeriveIDDeterministic(t *testing.T) {
	ns := uuid.NewSHA1(uuid.NameSpaceDNS, []byte("docsync"))
	d := New(nil, ns)

	id1 := d.DeriveID("same@example.com")
	id2 := d.DeriveID("same@example.com")
	if id1 != id2 {
		t.Fatalf("expected identical ids for identical emails, got %s and %s", id1, id2)
	}
}

func TestDeriveIDDiffersAcrossEmails(t *testing.T) {
	ns := uuid.NewSHA1(uuid.NameSpaceDNS, []byte("docsync"))
	d := New(nil, ns)

	if d.DeriveID("a@example.com") == d.DeriveID("b@example.com") {
		t.Fatalf("expected distinct ids for distinct emails")
	}
}

func TestDeriveIDDiffersAcrossNamespaces(t *testing.T) {
	nsA := uuid.NewSHA1(uuid.NameSpaceDNS, []byte("docsync-a"))
	nsB := uuid.NewSHA1(uuid.NameSpaceDNS, []byte("docsync-b"))

	if New(nil, nsA).DeriveID("same@example.com") == New(nil, nsB).DeriveID("same@example.com") {
		t.Fatalf("expected distinct ids under distinct app namespaces")
	}
}
