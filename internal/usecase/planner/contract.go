package planner

import (
	"time"

	"github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/domain/expansion"
	"github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/domain/urgency"
)

// Clock returns the current time. time.Now satisfies it.
type Clock func() time.Time

// Request is one search decision input.
type Request struct {
	BloodQuantity    int
	DonorsFound      int
	RejectedDonors   int
	EligibleDonors   int
	Urgency          urgency.Urgency
	DonationDateTime time.Time
	Geohash          string
}

// Plan is the full scheduling decision for one Request.
type Plan struct {
	RemainingBagsNeeded int
	TotalDonorsToNotify int
	Outcome             expansion.Outcome
	// DelaySeconds is zero when the outcome is terminal.
	DelaySeconds   int
	TargetStrategy string
	DelayStrategy  string
}
