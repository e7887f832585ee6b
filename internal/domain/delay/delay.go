// Package delay computes how long the scheduler waits before the next donor search attempt.
package delay

import (
	"math"
	"time"

	"github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/domain/urgency"
)

// Strategy names.
const (
	RetryBudgetStrategy    = "retry_budget"
	UrgencyClampedStrategy = "urgency_clamped"
)

// DefaultMinDelay is the shortest wake-up delay the retry-budget strategy schedules.
const DefaultMinDelay = 30 * time.Minute

// Input carries the per-request values a strategy may use.
type Input struct {
	DonationDateTime    time.Time
	RemainingBagsNeeded int
	Urgency             urgency.Urgency
}

// Strategy computes a delay in whole seconds.
type Strategy interface {
	DelaySeconds(in Input, now time.Time) int
	Name() string
}

// ExecutionsPerInitiation returns how many search executions one initiation needs to cover
// every neighbour ring up to level: (1 + 8 * ((level - 1) * level) / 2) / maxGeohashesPerExecution.
func ExecutionsPerInitiation(level, maxGeohashesPerExecution int) float64 {
	l := float64(max(1, level))
	cells := 1 + 8*((l-1)*l)/2
	return cells / float64(max(1, maxGeohashesPerExecution))
}

// RetryBudget spreads the time left before the donation across the retry budget, minus the
// time the search executions of one initiation take.
type RetryBudget struct {
	MaxNeighborSearchLevel   int
	MaxGeohashesPerExecution int
	MaxInitiatingRetryCount  int
	DelayBetweenExecution    time.Duration
	MinDelay                 time.Duration
}

// DelaySeconds implements Strategy. The result is never below MinDelay.
func (r RetryBudget) DelaySeconds(in Input, now time.Time) int {
	available := max(0, in.DonationDateTime.Sub(now).Seconds())
	retries := float64(max(1, r.MaxInitiatingRetryCount))
	executions := ExecutionsPerInitiation(r.MaxNeighborSearchLevel, r.MaxGeohashesPerExecution)
	between := max(0, r.DelayBetweenExecution.Seconds())

	raw := available/retries - executions*between
	return int(math.Round(max(r.minDelay().Seconds(), raw)))
}

func (r RetryBudget) minDelay() time.Duration {
	if r.MinDelay <= 0 {
		return DefaultMinDelay
	}
	return r.MinDelay
}

// Name implements Strategy.
func (RetryBudget) Name() string { return RetryBudgetStrategy }

// CalculateDelayPeriod is the retry-budget delay as a plain function.
// delayBetweenExecution is in seconds.
func CalculateDelayPeriod(
	donationDateTime, now time.Time,
	maxGeohashNeighborSearchLevel, maxGeohashesPerExecution, maxInitiatingRetryCount int,
	delayBetweenExecution float64,
) int {
	r := RetryBudget{
		MaxNeighborSearchLevel:   maxGeohashNeighborSearchLevel,
		MaxGeohashesPerExecution: maxGeohashesPerExecution,
		MaxInitiatingRetryCount:  maxInitiatingRetryCount,
		DelayBetweenExecution:    time.Duration(max(0, delayBetweenExecution) * float64(time.Second)),
	}
	return r.DelaySeconds(Input{DonationDateTime: donationDateTime}, now)
}

// Range is an inclusive bound in hours.
type Range struct {
	Min float64
	Max float64
}

// UrgencyClamped derives the delay from days until donation per remaining bag and clamps it
// to a per-urgency range of hours.
type UrgencyClamped struct {
	Weight float64
	Hours  map[urgency.Urgency]Range
}

// DefaultUrgencyClamped returns weight 7 with urgent 5-10h and regular 7-15h.
func DefaultUrgencyClamped() UrgencyClamped {
	return UrgencyClamped{
		Weight: 7,
		Hours: map[urgency.Urgency]Range{
			urgency.Urgent:  {Min: 5, Max: 10},
			urgency.Regular: {Min: 7, Max: 15},
		},
	}
}

// DelaySeconds implements Strategy. With nothing left to find the delay is the range maximum.
func (c UrgencyClamped) DelaySeconds(in Input, now time.Time) int {
	rng, ok := c.Hours[in.Urgency]
	if !ok {
		rng = c.Hours[urgency.Regular]
	}

	hours := rng.Max
	if in.RemainingBagsNeeded > 0 {
		days := max(0, in.DonationDateTime.Sub(now).Hours()/24)
		hours = min(max(rng.Min, days*max(0, c.Weight)/float64(in.RemainingBagsNeeded)), rng.Max)
	}
	return int(math.Round(max(0, hours) * 3600))
}

// Name implements Strategy.
func (UrgencyClamped) Name() string { return UrgencyClampedStrategy }
