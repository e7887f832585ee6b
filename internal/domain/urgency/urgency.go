package urgency

import (
	"fmt"

	"github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/domain"
)

// Urgency classifies how aggressively donors are recruited for a request.
type Urgency string

// Urgency levels.
const (
	Urgent  Urgency = "urgent"
	Regular Urgency = "regular"
)

// All returns every urgency level in stable order.
func All() []Urgency {
	return []Urgency{Urgent, Regular}
}

// IsValid checks if u is a known urgency level.
func (u Urgency) IsValid() bool {
	return u == Urgent || u == Regular
}

// Parse converts s into an Urgency. Matching is case-sensitive.
func Parse(s string) (Urgency, error) {
	u := Urgency(s)
	if !u.IsValid() {
		return "", fmt.Errorf("%w: unknown urgency level %q", domain.ErrInvalidRequest, s)
	}
	return u, nil
}
