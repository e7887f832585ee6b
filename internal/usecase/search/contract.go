package search

import (
	"context"
	"time"

	domsession "github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/domain/session"
	"github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/domain/urgency"
	"github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/usecase/planner"
)

// Sessions is the storage contract for search sessions.
type Sessions interface {
	Create(ctx context.Context, s domsession.Session) error
	Save(ctx context.Context, s domsession.Session) error
	Get(ctx context.Context, id string) (domsession.Session, error)
	Lock(ctx context.Context, id string, ttl time.Duration) (release func(context.Context) error, err error)
}

// Wakeups schedules the next pass of a session.
type Wakeups interface {
	Schedule(ctx context.Context, id string, at time.Time) error
	Remove(ctx context.Context, id string) error
}

// Planner makes the scheduling decision for one pass.
type Planner interface {
	Plan(ctx context.Context, req planner.Request) planner.Plan
}

// Publisher emits decision events.
type Publisher interface {
	Publish(ctx context.Context, subject string, event any) error
}

// StartInput opens a search for one blood request.
type StartInput struct {
	SeekerID         string
	RequestPostID    string
	BloodQuantity    int
	Urgency          urgency.Urgency
	DonationDateTime time.Time
	Geohash          string
}

// PassResult is what a donor lookup pass found in the active cell.
type PassResult struct {
	EligibleDonors int
	DonorsFound    int
	RejectedDonors int
}

// Result is the session after a pass and the plan that produced it.
// Plan is zero when the session expired before planning.
type Result struct {
	Session domsession.Session
	Plan    planner.Plan
}

// Settings bounds the orchestration.
type Settings struct {
	// PrefixLength trims the seeker geohash before the first pass.
	PrefixLength int
	// MaxInitiatingRetryCount ends a search after that many passes. Zero disables the limit.
	MaxInitiatingRetryCount int
	LockTTL                 time.Duration
}
