// Package expansion decides whether a donor search is done or should widen its
// geographic cell by dropping one geohash character.
package expansion

// MinGeohashPrecision is the shortest geohash the search will widen to.
const MinGeohashPrecision = 2

// Kind is the outcome of one evaluation.
type Kind string

// Outcome kinds.
const (
	// Satisfied means enough eligible donors were found.
	Satisfied Kind = "satisfied"
	// Exhausted means the search is at minimum precision and still short of donors.
	Exhausted Kind = "exhausted"
	// Continue means the search should retry on a wider cell.
	Continue Kind = "continue"
)

// Action is the two-valued tag consumed by the original step-function workflow.
type Action string

// Legacy actions.
const (
	EnoughDonorsFound  Action = "EnoughDonorsFound"
	UpdateSearchFields Action = "UpdateSearchFields"
)

// Outcome is the result of Evaluate. ShortenedGeohash is set only for Continue.
type Outcome struct {
	kind             Kind
	shortenedGeohash string
}

// Kind returns the outcome kind.
func (o Outcome) Kind() Kind { return o.kind }

// ShortenedGeohash returns the wider cell to search next (empty unless Continue).
func (o Outcome) ShortenedGeohash() string { return o.shortenedGeohash }

// IsTerminal reports whether the search should stop.
func (o Outcome) IsTerminal() bool { return o.kind != Continue }

// Action maps the outcome onto the legacy tag. Satisfied and Exhausted both map to
// EnoughDonorsFound.
func (o Outcome) Action() Action {
	if o.kind == Continue {
		return UpdateSearchFields
	}
	return EnoughDonorsFound
}

// Evaluate runs one transition of the search-radius state machine.
func Evaluate(geohash string, eligibleDonorsCount, totalDonorsToNotify int) Outcome {
	if eligibleDonorsCount >= totalDonorsToNotify {
		return Outcome{kind: Satisfied}
	}
	if len(geohash) > MinGeohashPrecision {
		return Outcome{kind: Continue, shortenedGeohash: geohash[:len(geohash)-1]}
	}
	return Outcome{kind: Exhausted}
}
