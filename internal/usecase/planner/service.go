package planner

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/config"
	"github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/domain"
	"github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/domain/delay"
	"github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/domain/donors"
	"github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/domain/expansion"
	"github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/domain/urgency"
	"github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/logger"
	"github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/metrics"
)

// Service composes the remaining-need, target, expansion and delay calculations.
// It holds no mutable state and is safe for concurrent use.
type Service struct {
	target  donors.TargetStrategy
	delay   delay.Strategy
	now     Clock
	logger  *zap.Logger
	metrics *metrics.Scheduler
}

// New creates a planner. A nil clock means time.Now, a nil logger means zap.NewNop.
func New(target donors.TargetStrategy, d delay.Strategy, clock Clock, log *zap.Logger) *Service {
	if clock == nil {
		clock = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{target: target, delay: d, now: clock, logger: log}
}

// WithMetrics enables decision and delay metrics.
func (s *Service) WithMetrics(m *metrics.Scheduler) *Service {
	s.metrics = m
	return s
}

// Plan runs all four calculations for req.
func (s *Service) Plan(ctx context.Context, req Request) Plan {
	remaining := s.RemainingBagsNeeded(req.BloodQuantity, req.DonorsFound)
	total := s.TotalDonorsToFind(remaining, req.Urgency, req.RejectedDonors)
	outcome := s.Evaluate(req.Geohash, req.EligibleDonors, total)

	p := Plan{
		RemainingBagsNeeded: remaining,
		TotalDonorsToNotify: total,
		Outcome:             outcome,
		TargetStrategy:      s.TargetStrategy(),
		DelayStrategy:       s.DelayStrategy(),
	}
	if !outcome.IsTerminal() {
		p.DelaySeconds = s.Delay(delay.Input{
			DonationDateTime:    req.DonationDateTime,
			RemainingBagsNeeded: remaining,
			Urgency:             req.Urgency,
		})
	}

	s.metrics.Decision(string(outcome.Kind()))
	if !outcome.IsTerminal() {
		s.metrics.Delay(p.DelayStrategy, p.DelaySeconds)
	}

	logger.FromContextOr(ctx, s.logger).Debug("search decision",
		zap.String("outcome", string(outcome.Kind())),
		zap.String("geohash", req.Geohash),
		zap.String("next_geohash", outcome.ShortenedGeohash()),
		zap.Int("remaining_bags", remaining),
		zap.Int("total_donors", total),
		zap.Int("eligible_donors", req.EligibleDonors),
		zap.Int("delay_seconds", p.DelaySeconds),
	)
	return p
}

// Evaluate runs the expansion state machine.
func (s *Service) Evaluate(geohash string, eligible, total int) expansion.Outcome {
	return expansion.Evaluate(geohash, eligible, total)
}

// Delay returns the wake-up delay in seconds using the configured strategy.
func (s *Service) Delay(in delay.Input) int {
	return s.delay.DelaySeconds(in, s.now())
}

// RemainingBagsNeeded returns max(0, quantity - found).
func (s *Service) RemainingBagsNeeded(quantity, found int) int {
	return donors.RemainingBagsNeeded(quantity, found)
}

// TotalDonorsToFind applies the configured target strategy.
func (s *Service) TotalDonorsToFind(remaining int, u urgency.Urgency, rejected int) int {
	return s.target.TotalDonorsToFind(remaining, u, rejected)
}

// Strategies builds the target and delay strategies named in cfg.
func Strategies(cfg config.SchedulerConfig) (donors.TargetStrategy, delay.Strategy, error) {
	var target donors.TargetStrategy
	switch cfg.TargetStrategy {
	case config.TargetBuffer, "":
		target = donors.BufferTarget{ExtraDonors: byUrgency(cfg.ExtraDonors)}
	case config.TargetMultiplier:
		target = donors.MultiplierTarget{
			UrgencyMultiplier: byUrgency(cfg.UrgencyMultiplier),
			DonorsPerBag:      cfg.DonorsPerBag,
		}
	default:
		return nil, nil, fmt.Errorf("target strategy %q: %w", cfg.TargetStrategy, domain.ErrInvalidConfig)
	}

	var d delay.Strategy
	switch cfg.DelayStrategy {
	case config.DelayRetryBudget, "":
		d = delay.RetryBudget{
			MaxNeighborSearchLevel:   cfg.MaxGeohashNeighborSearchLevel,
			MaxGeohashesPerExecution: cfg.MaxGeohashesPerExecution,
			MaxInitiatingRetryCount:  cfg.MaxInitiatingRetryCount,
			DelayBetweenExecution:    cfg.DelayBetweenExecution(),
			MinDelay:                 cfg.MinDelay(),
		}
	case config.DelayUrgencyClamped:
		hours := make(map[urgency.Urgency]delay.Range, len(cfg.UrgencyDelayHours))
		for k, r := range cfg.UrgencyDelayHours {
			hours[urgency.Urgency(k)] = delay.Range{Min: r.Min, Max: r.Max}
		}
		d = delay.UrgencyClamped{Weight: cfg.DelayPeriodWeight, Hours: hours}
	default:
		return nil, nil, fmt.Errorf("delay strategy %q: %w", cfg.DelayStrategy, domain.ErrInvalidConfig)
	}
	return target, d, nil
}

// FromConfig builds a planner from the scheduler section.
func FromConfig(cfg config.SchedulerConfig, clock Clock, log *zap.Logger) (*Service, error) {
	target, d, err := Strategies(cfg)
	if err != nil {
		return nil, err
	}
	return New(target, d, clock, log), nil
}

func byUrgency(m map[string]int) map[urgency.Urgency]int {
	out := make(map[urgency.Urgency]int, len(m))
	for k, v := range m {
		out[urgency.Urgency(k)] = v
	}
	return out
}

// TargetStrategy names the configured target strategy.
func (s *Service) TargetStrategy() string { return s.target.Name() }

// DelayStrategy names the configured delay strategy.
func (s *Service) DelayStrategy() string { return s.delay.Name() }
