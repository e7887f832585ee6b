package donorsearch

import (
	"time"

	"github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/domain/urgency"
)

// Urgency of a blood request.
type Urgency string

// Urgency levels.
const (
	Urgent  Urgency = Urgency(urgency.Urgent)
	Regular Urgency = Urgency(urgency.Regular)
)

// Outcome of one search-radius evaluation.
type Outcome string

// Outcomes.
const (
	OutcomeSatisfied Outcome = "satisfied"
	OutcomeExhausted Outcome = "exhausted"
	OutcomeContinue  Outcome = "continue"
)

// Strategy names.
const (
	TargetBuffer        = "buffer"
	TargetMultiplier    = "multiplier"
	DelayRetryBudget    = "retry_budget"
	DelayUrgencyClamped = "urgency_clamped"
)

// Request is the state of a search after a donor lookup pass.
type Request struct {
	BloodQuantity    int
	DonorsFound      int
	RejectedDonors   int
	EligibleDonors   int
	Urgency          Urgency
	DonationDateTime time.Time
	Geohash          string
}

// Plan is the scheduling decision for a Request.
type Plan struct {
	RemainingBagsNeeded int
	TotalDonorsToNotify int
	Outcome             Outcome
	// Action is the legacy two-valued tag: EnoughDonorsFound or UpdateSearchFields.
	Action           string
	ShortenedGeohash string
	// DelaySeconds is zero for terminal outcomes.
	DelaySeconds   int
	TargetStrategy string
	DelayStrategy  string
}

// Evaluation is one transition of the search-radius state machine.
type Evaluation struct {
	Outcome          Outcome
	Action           string
	ShortenedGeohash string
}

// HourRange bounds the urgency-clamped delay, in hours.
type HourRange struct {
	Min float64
	Max float64
}

// Config selects the strategies and their parameters. Zero values take the defaults.
type Config struct {
	TargetStrategy string
	DelayStrategy  string

	ExtraDonors       map[Urgency]int
	UrgencyMultiplier map[Urgency]int
	DonorsPerBag      int

	MinDelay                 time.Duration
	MaxNeighborSearchLevel   int
	MaxGeohashesPerExecution int
	MaxInitiatingRetryCount  int
	// DelayBetweenExecution is the pause between search executions. Zero takes the default
	// of one second; any negative value means no pause.
	DelayBetweenExecution time.Duration

	DelayPeriodWeight float64
	UrgencyDelayHours map[Urgency]HourRange
}
