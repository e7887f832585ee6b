package chi

import (
	"time"

	domsession "github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/domain/session"
	"github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/usecase/planner"
)

// PlanRequest is a stateless search decision request.
type PlanRequest struct {
	BloodQuantity    int       `json:"blood_quantity"`
	DonorsFound      int       `json:"donors_found"`
	RejectedDonors   int       `json:"rejected_donors"`
	EligibleDonors   int       `json:"eligible_donors"`
	Urgency          string    `json:"urgency"`
	DonationDateTime time.Time `json:"donation_date_time"`
	Geohash          string    `json:"geohash"`
}

// PlanResponse is the decision for a PlanRequest.
type PlanResponse struct {
	RemainingBagsNeeded int       `json:"remaining_bags_needed"`
	TotalDonorsToNotify int       `json:"total_donors_to_notify"`
	Outcome             string    `json:"outcome"`
	Action              string    `json:"action"`
	ShortenedGeohash    string    `json:"shortened_geohash,omitempty"`
	DelaySeconds        int       `json:"delay_seconds"`
	NextRunAt           time.Time `json:"next_run_at,omitzero"`
	TargetStrategy      string    `json:"target_strategy"`
	DelayStrategy       string    `json:"delay_strategy"`
}

// EvaluationRequest runs the expansion state machine only.
type EvaluationRequest struct {
	Geohash             string `json:"geohash"`
	EligibleDonors      int    `json:"eligible_donors"`
	TotalDonorsToNotify int    `json:"total_donors_to_notify"`
}

// EvaluationResponse is one state machine transition.
type EvaluationResponse struct {
	Outcome          string `json:"outcome"`
	Action           string `json:"action"`
	ShortenedGeohash string `json:"shortened_geohash,omitempty"`
	Terminal         bool   `json:"terminal"`
}

// DelayRequest computes a wake-up delay only.
type DelayRequest struct {
	DonationDateTime    time.Time `json:"donation_date_time"`
	RemainingBagsNeeded int       `json:"remaining_bags_needed"`
	Urgency             string    `json:"urgency"`
}

// DelayResponse is a computed delay.
type DelayResponse struct {
	DelaySeconds int       `json:"delay_seconds"`
	NextRunAt    time.Time `json:"next_run_at"`
	Strategy     string    `json:"strategy"`
}

// NeighborCell is one cell of a neighbour expansion.
type NeighborCell struct {
	Geohash        string  `json:"geohash"`
	DistanceMeters float64 `json:"distance_meters"`
}

// NeighborsResponse lists the cells around a geohash, nearest rings first.
type NeighborsResponse struct {
	Geohash string         `json:"geohash"`
	Level   int            `json:"level"`
	Cells   []NeighborCell `json:"cells"`
}

// StartSearchRequest opens a search session. Latitude and longitude are used when
// geohash is empty.
type StartSearchRequest struct {
	SeekerID         string    `json:"seeker_id"`
	RequestPostID    string    `json:"request_post_id"`
	BloodQuantity    int       `json:"blood_quantity"`
	Urgency          string    `json:"urgency"`
	DonationDateTime time.Time `json:"donation_date_time"`
	Geohash          string    `json:"geohash"`
	Latitude         *float64  `json:"latitude"`
	Longitude        *float64  `json:"longitude"`
}

// PassRequest reports one donor lookup pass.
type PassRequest struct {
	EligibleDonors int `json:"eligible_donors"`
	DonorsFound    int `json:"donors_found"`
	RejectedDonors int `json:"rejected_donors"`
}

// SessionResponse is the public view of a search session.
type SessionResponse struct {
	ID                  string    `json:"id"`
	SeekerID            string    `json:"seeker_id"`
	RequestPostID       string    `json:"request_post_id,omitempty"`
	BloodQuantity       int       `json:"blood_quantity"`
	Urgency             string    `json:"urgency"`
	DonationDateTime    time.Time `json:"donation_date_time"`
	SeekerGeohash       string    `json:"seeker_geohash"`
	ActiveGeohash       string    `json:"active_geohash"`
	DonorsFound         int       `json:"donors_found"`
	RejectedDonors      int       `json:"rejected_donors"`
	RemainingBagsNeeded int       `json:"remaining_bags_needed"`
	InitiationCount     int       `json:"initiation_count"`
	Status              string    `json:"status"`
	NextRunAt           time.Time `json:"next_run_at,omitzero"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// PassResponse is the session after a pass. Plan is absent when the search expired.
type PassResponse struct {
	Session SessionResponse `json:"session"`
	Plan    *PlanResponse   `json:"plan,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func sessionToResponse(s domsession.Session) SessionResponse {
	return SessionResponse{
		ID:                  s.ID(),
		SeekerID:            s.SeekerID(),
		RequestPostID:       s.RequestPostID(),
		BloodQuantity:       s.BloodQuantity(),
		Urgency:             string(s.Urgency()),
		DonationDateTime:    s.DonationDateTime(),
		SeekerGeohash:       s.SeekerGeohash(),
		ActiveGeohash:       s.ActiveGeohash(),
		DonorsFound:         s.DonorsFound(),
		RejectedDonors:      s.RejectedDonors(),
		RemainingBagsNeeded: s.RemainingBagsNeeded(),
		InitiationCount:     s.InitiationCount(),
		Status:              string(s.Status()),
		NextRunAt:           s.NextRunAt(),
		CreatedAt:           s.CreatedAt(),
		UpdatedAt:           s.UpdatedAt(),
	}
}

func planToResponse(p planner.Plan, now time.Time) PlanResponse {
	resp := PlanResponse{
		RemainingBagsNeeded: p.RemainingBagsNeeded,
		TotalDonorsToNotify: p.TotalDonorsToNotify,
		Outcome:             string(p.Outcome.Kind()),
		Action:              string(p.Outcome.Action()),
		ShortenedGeohash:    p.Outcome.ShortenedGeohash(),
		DelaySeconds:        p.DelaySeconds,
		TargetStrategy:      p.TargetStrategy,
		DelayStrategy:       p.DelayStrategy,
	}
	if !p.Outcome.IsTerminal() {
		resp.NextRunAt = now.Add(time.Duration(p.DelaySeconds) * time.Second).UTC()
	}
	return resp
}
