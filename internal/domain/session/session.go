package session

import (
	"fmt"
	"time"

	"github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/domain"
	"github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/domain/donors"
	"github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/domain/expansion"
	"github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/domain/geo"
	"github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/domain/urgency"
)

// Status is the lifecycle state of a donor search.
type Status string

const (
	// StatusSearching means the search is scheduled or running.
	StatusSearching Status = "searching"
	// StatusSatisfied means enough donors were found.
	StatusSatisfied Status = "satisfied"
	// StatusExhausted means the radius or retry budget ran out before enough donors were found.
	StatusExhausted Status = "exhausted"
	// StatusExpired means the donation time passed while still searching.
	StatusExpired Status = "expired"
	// StatusCancelled means the seeker withdrew the request.
	StatusCancelled Status = "cancelled"
)

// IsValid checks if the status is known.
func (s Status) IsValid() bool {
	switch s {
	case StatusSearching, StatusSatisfied, StatusExhausted, StatusExpired, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further passes are accepted.
func (s Status) IsTerminal() bool {
	return s != StatusSearching
}

// NewParams holds the values needed to open a search.
type NewParams struct {
	ID               string
	SeekerID         string
	RequestPostID    string
	BloodQuantity    int
	Urgency          urgency.Urgency
	DonationDateTime time.Time
	Geohash          string
	// PrefixLength trims the seeker geohash before the first pass. Zero keeps it whole.
	PrefixLength int
	Now          time.Time
}

// Session is one blood request's donor search (immutable value object).
type Session struct {
	id               string
	seekerID         string
	requestPostID    string
	bloodQuantity    int
	urgency          urgency.Urgency
	donationDateTime time.Time
	seekerGeohash    string
	activeGeohash    string
	donorsFound      int
	rejectedDonors   int
	initiationCount  int
	status           Status
	nextRunAt        time.Time
	createdAt        time.Time
	updatedAt        time.Time
}

// New validates params and opens a search in StatusSearching with its first run at Now.
func New(p NewParams) (Session, error) {
	if p.ID == "" {
		return Session{}, domain.NewValidationError("id", "is required")
	}
	if p.SeekerID == "" {
		return Session{}, domain.NewValidationError("seeker_id", "is required")
	}
	if p.BloodQuantity < 1 {
		return Session{}, domain.NewValidationError("blood_quantity", "must be at least 1")
	}
	if !p.Urgency.IsValid() {
		return Session{}, domain.NewValidationError("urgency", fmt.Sprintf("unknown value %q", p.Urgency))
	}
	if p.DonationDateTime.IsZero() {
		return Session{}, domain.NewValidationError("donation_date_time", "is required")
	}
	if err := geo.Validate(p.Geohash); err != nil {
		return Session{}, err
	}

	active := p.Geohash
	if p.PrefixLength > 0 && len(active) > p.PrefixLength {
		active = active[:p.PrefixLength]
	}

	return Session{
		id:               p.ID,
		seekerID:         p.SeekerID,
		requestPostID:    p.RequestPostID,
		bloodQuantity:    p.BloodQuantity,
		urgency:          p.Urgency,
		donationDateTime: p.DonationDateTime.UTC(),
		seekerGeohash:    p.Geohash,
		activeGeohash:    active,
		status:           StatusSearching,
		nextRunAt:        p.Now.UTC(),
		createdAt:        p.Now.UTC(),
		updatedAt:        p.Now.UTC(),
	}, nil
}

// State is the full persisted form of a Session.
type State struct {
	ID               string
	SeekerID         string
	RequestPostID    string
	BloodQuantity    int
	Urgency          urgency.Urgency
	DonationDateTime time.Time
	SeekerGeohash    string
	ActiveGeohash    string
	DonorsFound      int
	RejectedDonors   int
	InitiationCount  int
	Status           Status
	NextRunAt        time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Reconstruct creates a Session without validation (storage hydration).
func Reconstruct(s State) Session {
	return Session{
		id:               s.ID,
		seekerID:         s.SeekerID,
		requestPostID:    s.RequestPostID,
		bloodQuantity:    s.BloodQuantity,
		urgency:          s.Urgency,
		donationDateTime: s.DonationDateTime,
		seekerGeohash:    s.SeekerGeohash,
		activeGeohash:    s.ActiveGeohash,
		donorsFound:      s.DonorsFound,
		rejectedDonors:   s.RejectedDonors,
		initiationCount:  s.InitiationCount,
		status:           s.Status,
		nextRunAt:        s.NextRunAt,
		createdAt:        s.CreatedAt,
		updatedAt:        s.UpdatedAt,
	}
}

// State returns the persisted form.
func (s Session) State() State {
	return State{
		ID:               s.id,
		SeekerID:         s.seekerID,
		RequestPostID:    s.requestPostID,
		BloodQuantity:    s.bloodQuantity,
		Urgency:          s.urgency,
		DonationDateTime: s.donationDateTime,
		SeekerGeohash:    s.seekerGeohash,
		ActiveGeohash:    s.activeGeohash,
		DonorsFound:      s.donorsFound,
		RejectedDonors:   s.rejectedDonors,
		InitiationCount:  s.initiationCount,
		Status:           s.status,
		NextRunAt:        s.nextRunAt,
		CreatedAt:        s.createdAt,
		UpdatedAt:        s.updatedAt,
	}
}

func (s Session) ID() string                  { return s.id }
func (s Session) SeekerID() string            { return s.seekerID }
func (s Session) RequestPostID() string       { return s.requestPostID }
func (s Session) BloodQuantity() int          { return s.bloodQuantity }
func (s Session) Urgency() urgency.Urgency    { return s.urgency }
func (s Session) DonationDateTime() time.Time { return s.donationDateTime }
func (s Session) SeekerGeohash() string       { return s.seekerGeohash }
func (s Session) ActiveGeohash() string       { return s.activeGeohash }
func (s Session) DonorsFound() int            { return s.donorsFound }
func (s Session) RejectedDonors() int         { return s.rejectedDonors }
func (s Session) InitiationCount() int        { return s.initiationCount }
func (s Session) Status() Status              { return s.status }
func (s Session) NextRunAt() time.Time        { return s.nextRunAt }
func (s Session) CreatedAt() time.Time        { return s.createdAt }
func (s Session) UpdatedAt() time.Time        { return s.updatedAt }

// RemainingBagsNeeded is the blood quantity not yet covered by found donors.
func (s Session) RemainingBagsNeeded() int {
	return donors.RemainingBagsNeeded(s.bloodQuantity, s.donorsFound)
}

// DonationPassed reports whether the donation time is at or before now.
func (s Session) DonationPassed(now time.Time) bool {
	return !now.Before(s.donationDateTime)
}

// ObserveDonors records counts from a search pass. Counts never decrease and negatives are
// ignored, so a stale or replayed report cannot undo progress.
func (s Session) ObserveDonors(found, rejected int, now time.Time) Session {
	s.donorsFound = max(s.donorsFound, found)
	s.rejectedDonors = max(s.rejectedDonors, rejected)
	s.updatedAt = now.UTC()
	return s
}

// Initiated counts one more search initiation.
func (s Session) Initiated(now time.Time) Session {
	s.initiationCount++
	s.updatedAt = now.UTC()
	return s
}

// Apply moves the session along an expansion outcome. Continue narrows to the shortened
// geohash and keeps searching.
func (s Session) Apply(o expansion.Outcome, now time.Time) Session {
	switch o.Kind() {
	case expansion.Satisfied:
		s.status = StatusSatisfied
	case expansion.Exhausted:
		s.status = StatusExhausted
	case expansion.Continue:
		s.activeGeohash = o.ShortenedGeohash()
	}
	if s.status.IsTerminal() {
		s.nextRunAt = time.Time{}
	}
	s.updatedAt = now.UTC()
	return s
}

// Exhaust ends a search whose retry budget ran out.
func (s Session) Exhaust(now time.Time) Session {
	s.status = StatusExhausted
	s.nextRunAt = time.Time{}
	s.updatedAt = now.UTC()
	return s
}

// Expire ends a search whose donation time passed.
func (s Session) Expire(now time.Time) Session {
	s.status = StatusExpired
	s.nextRunAt = time.Time{}
	s.updatedAt = now.UTC()
	return s
}

// Cancel ends a running search. A terminal session returns ErrSearchClosed.
func (s Session) Cancel(now time.Time) (Session, error) {
	if s.status.IsTerminal() {
		return s, fmt.Errorf("cancel %s: %w", s.status, domain.ErrSearchClosed)
	}
	s.status = StatusCancelled
	s.nextRunAt = time.Time{}
	s.updatedAt = now.UTC()
	return s, nil
}

// ScheduleAt sets the next wake-up. Terminal sessions have none.
func (s Session) ScheduleAt(at time.Time) Session {
	if s.status.IsTerminal() {
		s.nextRunAt = time.Time{}
		return s
	}
	s.nextRunAt = at.UTC()
	return s
}
