package urgency

import (
	"errors"
	"testing"

	"github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/domain"
)

func TestIsValid(t *testing.T) {
	for _, u := range All() {
		if !u.IsValid() {
			t.Errorf("%q.IsValid() = false, want true", u)
		}
	}

	invalid := []Urgency{"", "URGENT", "critical", "normal"}
	for _, u := range invalid {
		if u.IsValid() {
			t.Errorf("%q.IsValid() = true, want false", u)
		}
	}
}

func TestParse(t *testing.T) {
	u, err := Parse("urgent")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u != Urgent {
		t.Errorf("got %q, want %q", u, Urgent)
	}

	_, err = Parse("Regular")
	if !errors.Is(err, domain.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestAll_StableOrder(t *testing.T) {
	all := All()
	if len(all) != 2 || all[0] != Urgent || all[1] != Regular {
		t.Fatalf("unexpected order: %v", all)
	}
}
