// v0
// causereason_test.go
package causereason

import (
	"testing"

	"nrgchamp/ctrlcore/internal/domain"
)

func TestNewSeedsSystemDefaults(t *testing.T) {
	s := New()
	if got := s.Get(domain.CauseIceException).Label; got != "IceException" {
		t.Fatalf("expected IceException row, got %q", got)
	}
}

func TestGetUnknownFallsBackToUndefined(t *testing.T) {
	s := New()
	if got := s.Get(9999).ID; got != domain.CauseUndefined {
		t.Fatalf("expected fallback to Undefined, got id %d", got)
	}
}

func TestPutRejectsSystemIDs(t *testing.T) {
	s := New()
	err := s.Put(domain.CauseReasonRecord{ID: 1, Label: "Overwritten"})
	if err == nil {
		t.Fatalf("expected error writing a reserved system id")
	}
}

func TestPutAcceptsUserIDs(t *testing.T) {
	s := New()
	if err := s.Put(domain.CauseReasonRecord{ID: 100, Label: "WindowOpen", IsEditable: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := s.Get(100).Label; got != "WindowOpen" {
		t.Fatalf("expected user row to round-trip, got %q", got)
	}
}

func TestReseedSystemDefaultsPreservesUserRows(t *testing.T) {
	s := New()
	if err := s.Put(domain.CauseReasonRecord{ID: 100, Label: "WindowOpen"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.ReseedSystemDefaults()
	if got := s.Get(100).Label; got != "WindowOpen" {
		t.Fatalf("expected user row to survive reseed, got %q", got)
	}
}
