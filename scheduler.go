package donorsearch

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/config"
	"github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/domain/delay"
	"github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/domain/geo"
	"github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/domain/urgency"
	"github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/metrics"
	planneruc "github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/usecase/planner"
)

// Scheduler is the library entry point. It is safe for concurrent use.
type Scheduler struct {
	planner *planneruc.Service
	obs     *observer
}

// New builds a Scheduler. Invalid configuration returns ErrInvalidConfig.
func New(opts ...Option) (*Scheduler, error) {
	c := &schedulerConfig{now: time.Now}
	for _, o := range opts {
		o.apply(c)
	}
	if c.now == nil {
		c.now = time.Now
	}

	sc := c.cfg.internal()
	sc.ApplyDefaults()
	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("donorsearch: %w", err)
	}

	p, err := planneruc.FromConfig(sc, c.now, zap.NewNop())
	if err != nil {
		return nil, fmt.Errorf("donorsearch: %w", err)
	}

	obs, err := newObserver(c.logger, c.metricsReg)
	if err != nil {
		return nil, err
	}
	if c.metricsReg != nil {
		m := metrics.NewScheduler()
		if err := m.Register(c.metricsReg); err != nil {
			return nil, fmt.Errorf("donorsearch: %w", err)
		}
		p.WithMetrics(m)
	}

	return &Scheduler{planner: p, obs: obs}, nil
}

// Plan runs all four calculations. Unknown urgency or a malformed geohash returns
// ErrInvalidRequest; an empty geohash is treated as already at minimum precision.
func (s *Scheduler) Plan(ctx context.Context, req Request) (plan Plan, err error) {
	start := time.Now()
	defer func() {
		s.obs.observe(ctx, "plan", start, err,
			"outcome", string(plan.Outcome), "delay_seconds", plan.DelaySeconds)
	}()

	u, err := urgency.Parse(string(req.Urgency))
	if err != nil {
		return Plan{}, err
	}
	if req.Geohash != "" {
		if err := geo.Validate(req.Geohash); err != nil {
			return Plan{}, err
		}
	}

	p := s.planner.Plan(ctx, planneruc.Request{
		BloodQuantity:    req.BloodQuantity,
		DonorsFound:      req.DonorsFound,
		RejectedDonors:   req.RejectedDonors,
		EligibleDonors:   req.EligibleDonors,
		Urgency:          u,
		DonationDateTime: req.DonationDateTime,
		Geohash:          req.Geohash,
	})
	return Plan{
		RemainingBagsNeeded: p.RemainingBagsNeeded,
		TotalDonorsToNotify: p.TotalDonorsToNotify,
		Outcome:             Outcome(p.Outcome.Kind()),
		Action:              string(p.Outcome.Action()),
		ShortenedGeohash:    p.Outcome.ShortenedGeohash(),
		DelaySeconds:        p.DelaySeconds,
		TargetStrategy:      p.TargetStrategy,
		DelayStrategy:       p.DelayStrategy,
	}, nil
}

// Evaluate runs the search-radius state machine.
func (s *Scheduler) Evaluate(geohash string, eligibleDonors, totalDonorsToNotify int) Evaluation {
	o := s.planner.Evaluate(geohash, eligibleDonors, totalDonorsToNotify)
	return Evaluation{
		Outcome:          Outcome(o.Kind()),
		Action:           string(o.Action()),
		ShortenedGeohash: o.ShortenedGeohash(),
	}
}

// DelaySeconds returns the wake-up delay using the configured strategy.
func (s *Scheduler) DelaySeconds(donationDateTime time.Time, remainingBagsNeeded int, u Urgency) int {
	return s.planner.Delay(delay.Input{
		DonationDateTime:    donationDateTime,
		RemainingBagsNeeded: remainingBagsNeeded,
		Urgency:             urgency.Urgency(u),
	})
}

// RemainingBagsNeeded returns max(0, bloodQuantity - donorsFound).
func (s *Scheduler) RemainingBagsNeeded(bloodQuantity, donorsFound int) int {
	return s.planner.RemainingBagsNeeded(bloodQuantity, donorsFound)
}

// TotalDonorsToFind returns how many donors to notify using the configured target strategy.
func (s *Scheduler) TotalDonorsToFind(remainingBagsNeeded int, u Urgency, rejectedDonors int) int {
	return s.planner.TotalDonorsToFind(remainingBagsNeeded, urgency.Urgency(u), rejectedDonors)
}

// CalculateDelayPeriod is the retry-budget delay in seconds, never below 1800.
// delayBetweenExecution is in seconds.
func CalculateDelayPeriod(
	donationDateTime, now time.Time,
	maxGeohashNeighborSearchLevel, maxGeohashesPerExecution, maxInitiatingRetryCount int,
	delayBetweenExecution float64,
) int {
	return delay.CalculateDelayPeriod(donationDateTime, now,
		maxGeohashNeighborSearchLevel, maxGeohashesPerExecution, maxInitiatingRetryCount, delayBetweenExecution)
}

// ExecutionsPerInitiation returns how many search executions one initiation takes.
func ExecutionsPerInitiation(level, maxGeohashesPerExecution int) float64 {
	return delay.ExecutionsPerInitiation(level, maxGeohashesPerExecution)
}

func (c Config) internal() config.SchedulerConfig {
	sc := config.SchedulerConfig{
		TargetStrategy:                c.TargetStrategy,
		DelayStrategy:                 c.DelayStrategy,
		ExtraDonors:                   stringKeys(c.ExtraDonors),
		UrgencyMultiplier:             stringKeys(c.UrgencyMultiplier),
		DonorsPerBag:                  c.DonorsPerBag,
		MinDelaySeconds:               int(c.MinDelay / time.Second),
		MaxGeohashNeighborSearchLevel: c.MaxNeighborSearchLevel,
		MaxGeohashesPerExecution:      c.MaxGeohashesPerExecution,
		MaxInitiatingRetryCount:       c.MaxInitiatingRetryCount,
		DelayBetweenExecutionSeconds:  delayBetweenExecution(c.DelayBetweenExecution),
		DelayPeriodWeight:             c.DelayPeriodWeight,
	}
	if c.UrgencyDelayHours != nil {
		sc.UrgencyDelayHours = make(map[string]config.HourRange, len(c.UrgencyDelayHours))
		for u, r := range c.UrgencyDelayHours {
			sc.UrgencyDelayHours[string(u)] = config.HourRange{Min: r.Min, Max: r.Max}
		}
	}
	return sc
}

// delayBetweenExecution maps zero to the default and a negative value to no pause.
func delayBetweenExecution(d time.Duration) *float64 {
	if d == 0 {
		return nil
	}
	secs := max(0, d.Seconds())
	return &secs
}

func stringKeys(m map[Urgency]int) map[string]int {
	if m == nil {
		return nil
	}
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[string(k)] = v
	}
	return out
}
