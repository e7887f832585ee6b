// Package events publishes search decisions and due wake-ups for external consumers
// (notification senders, donor lookup workers).
package events

import (
	"context"
	"time"
)

// Subject suffixes. The full subject is "<prefix>.<suffix>".
const (
	SubjectDecision = "decision"
	SubjectDue      = "due"
)

// Publisher sends an event on a subject suffix.
type Publisher interface {
	Publish(ctx context.Context, subject string, event any) error
	Close()
}

// Decision is emitted after every reported search pass.
type Decision struct {
	SessionID           string    `json:"session_id"`
	SeekerID            string    `json:"seeker_id"`
	RequestPostID       string    `json:"request_post_id,omitempty"`
	Status              string    `json:"status"`
	Outcome             string    `json:"outcome"`
	Action              string    `json:"action"`
	ActiveGeohash       string    `json:"active_geohash"`
	RemainingBagsNeeded int       `json:"remaining_bags_needed"`
	TotalDonorsToNotify int       `json:"total_donors_to_notify"`
	DelaySeconds        int       `json:"delay_seconds,omitempty"`
	NextRunAt           time.Time `json:"next_run_at,omitzero"`
}

// Due asks a search worker to run the next pass for a session.
type Due struct {
	SessionID           string    `json:"session_id"`
	SeekerID            string    `json:"seeker_id"`
	RequestPostID       string    `json:"request_post_id,omitempty"`
	Urgency             string    `json:"urgency"`
	ActiveGeohash       string    `json:"active_geohash"`
	RemainingBagsNeeded int       `json:"remaining_bags_needed"`
	TotalDonorsToNotify int       `json:"total_donors_to_notify"`
	InitiationCount     int       `json:"initiation_count"`
	DonationDateTime    time.Time `json:"donation_date_time"`
	DueAt               time.Time `json:"due_at"`
}

// Noop discards events. Used when no broker is configured.
type Noop struct{}

// Publish implements Publisher.
func (Noop) Publish(context.Context, string, any) error { return nil }

// Close implements Publisher.
func (Noop) Close() {}
