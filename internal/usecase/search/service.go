package search

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/domain"
	domsession "github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/domain/session"
	"github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/events"
	"github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/logger"
	"github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/metrics"
	"github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/usecase/planner"
)

const defaultLockTTL = 30 * time.Second

// Service runs donor search sessions: start, report a pass, cancel, read.
type Service struct {
	sessions Sessions
	wakeups  Wakeups
	planner  Planner
	pub      Publisher
	settings Settings
	now      func() time.Time
	newID    func() string
	logger   *zap.Logger
	metrics  *metrics.Scheduler
}

// New creates a search service. A nil publisher drops events.
func New(sessions Sessions, wakeups Wakeups, p Planner, pub Publisher, settings Settings, log *zap.Logger) *Service {
	if pub == nil {
		pub = events.Noop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	if settings.LockTTL <= 0 {
		settings.LockTTL = defaultLockTTL
	}
	return &Service{
		sessions: sessions,
		wakeups:  wakeups,
		planner:  p,
		pub:      pub,
		settings: settings,
		now:      time.Now,
		newID:    uuid.NewString,
		logger:   log,
	}
}

// WithClock overrides time.Now.
func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// WithIDGenerator overrides the session ID source.
func (s *Service) WithIDGenerator(newID func() string) *Service {
	if newID != nil {
		s.newID = newID
	}
	return s
}

// WithMetrics enables session status metrics.
func (s *Service) WithMetrics(m *metrics.Scheduler) *Service {
	s.metrics = m
	return s
}

// Start validates in, persists a new session and schedules its first pass now.
func (s *Service) Start(ctx context.Context, in StartInput) (domsession.Session, error) {
	now := s.now()
	if !in.DonationDateTime.IsZero() && !in.DonationDateTime.After(now) {
		return domsession.Session{}, domain.NewValidationError("donation_date_time", "must be in the future")
	}

	sess, err := domsession.New(domsession.NewParams{
		ID:               s.newID(),
		SeekerID:         in.SeekerID,
		RequestPostID:    in.RequestPostID,
		BloodQuantity:    in.BloodQuantity,
		Urgency:          in.Urgency,
		DonationDateTime: in.DonationDateTime,
		Geohash:          in.Geohash,
		PrefixLength:     s.settings.PrefixLength,
		Now:              now,
	})
	if err != nil {
		return domsession.Session{}, err
	}

	if err := s.sessions.Create(ctx, sess); err != nil {
		return domsession.Session{}, fmt.Errorf("create session: %w", err)
	}
	if err := s.wakeups.Schedule(ctx, sess.ID(), sess.NextRunAt()); err != nil {
		return domsession.Session{}, fmt.Errorf("schedule session: %w", err)
	}

	s.metrics.Session(string(sess.Status()))
	s.log(ctx).Info("search started",
		zap.String("session_id", sess.ID()),
		zap.String("seeker_id", sess.SeekerID()),
		zap.String("urgency", string(sess.Urgency())),
		zap.Int("blood_quantity", sess.BloodQuantity()),
		zap.String("geohash", sess.ActiveGeohash()),
	)
	return sess, nil
}

// ReportPass applies one donor lookup pass and decides the next step.
// Terminal sessions return ErrSearchClosed; a concurrent pass returns ErrConflict.
func (s *Service) ReportPass(ctx context.Context, id string, pass PassResult) (Result, error) {
	ctx = s.withSession(ctx, id)

	release, err := s.sessions.Lock(ctx, id, s.settings.LockTTL)
	if err != nil {
		return Result{}, err
	}
	defer s.release(ctx, release)

	sess, err := s.sessions.Get(ctx, id)
	if err != nil {
		return Result{}, fmt.Errorf("get session: %w", err)
	}
	if sess.Status().IsTerminal() {
		return Result{}, fmt.Errorf("session %s is %s: %w", id, sess.Status(), domain.ErrSearchClosed)
	}

	now := s.now()
	sess = sess.ObserveDonors(pass.DonorsFound, pass.RejectedDonors, now)

	var plan planner.Plan
	if sess.DonationPassed(now) {
		sess = sess.Expire(now)
	} else {
		plan = s.planner.Plan(ctx, planner.Request{
			BloodQuantity:    sess.BloodQuantity(),
			DonorsFound:      sess.DonorsFound(),
			RejectedDonors:   sess.RejectedDonors(),
			EligibleDonors:   pass.EligibleDonors,
			Urgency:          sess.Urgency(),
			DonationDateTime: sess.DonationDateTime(),
			Geohash:          sess.ActiveGeohash(),
		})
		sess = sess.Apply(plan.Outcome, now).Initiated(now)

		switch {
		case sess.Status().IsTerminal():
		case s.retryBudgetSpent(sess):
			sess = sess.Exhaust(now)
		default:
			sess = sess.ScheduleAt(now.Add(time.Duration(plan.DelaySeconds) * time.Second))
		}
	}

	if err := s.commit(ctx, sess); err != nil {
		return Result{}, err
	}
	s.publishDecision(ctx, sess, plan)

	return Result{Session: sess, Plan: plan}, nil
}

// Cancel ends a running search.
func (s *Service) Cancel(ctx context.Context, id string) (domsession.Session, error) {
	ctx = s.withSession(ctx, id)

	release, err := s.sessions.Lock(ctx, id, s.settings.LockTTL)
	if err != nil {
		return domsession.Session{}, err
	}
	defer s.release(ctx, release)

	sess, err := s.sessions.Get(ctx, id)
	if err != nil {
		return domsession.Session{}, fmt.Errorf("get session: %w", err)
	}
	sess, err = sess.Cancel(s.now())
	if err != nil {
		return domsession.Session{}, err
	}

	if err := s.commit(ctx, sess); err != nil {
		return domsession.Session{}, err
	}
	s.publishDecision(ctx, sess, planner.Plan{})
	return sess, nil
}

// Get reads a session.
func (s *Service) Get(ctx context.Context, id string) (domsession.Session, error) {
	sess, err := s.sessions.Get(ctx, id)
	if err != nil {
		return domsession.Session{}, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

func (s *Service) retryBudgetSpent(sess domsession.Session) bool {
	limit := s.settings.MaxInitiatingRetryCount
	return limit > 0 && sess.InitiationCount() >= limit && sess.RemainingBagsNeeded() > 0
}

// commit persists sess, then moves its wake-up. A terminal session leaves the queue.
func (s *Service) commit(ctx context.Context, sess domsession.Session) error {
	if err := s.sessions.Save(ctx, sess); err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	if sess.Status().IsTerminal() {
		if err := s.wakeups.Remove(ctx, sess.ID()); err != nil {
			return fmt.Errorf("unschedule session: %w", err)
		}
		s.metrics.Session(string(sess.Status()))
		s.log(ctx).Info("search closed",
			zap.String("status", string(sess.Status())),
			zap.Int("donors_found", sess.DonorsFound()),
			zap.Int("initiation_count", sess.InitiationCount()),
		)
		return nil
	}

	if err := s.wakeups.Schedule(ctx, sess.ID(), sess.NextRunAt()); err != nil {
		return fmt.Errorf("schedule session: %w", err)
	}
	s.log(ctx).Info("search rescheduled",
		zap.String("geohash", sess.ActiveGeohash()),
		zap.Time("next_run_at", sess.NextRunAt()),
		zap.Int("initiation_count", sess.InitiationCount()),
	)
	return nil
}

// publishDecision is best effort: the stored session is the source of truth.
func (s *Service) publishDecision(ctx context.Context, sess domsession.Session, plan planner.Plan) {
	ev := events.Decision{
		SessionID:           sess.ID(),
		SeekerID:            sess.SeekerID(),
		RequestPostID:       sess.RequestPostID(),
		Status:              string(sess.Status()),
		ActiveGeohash:       sess.ActiveGeohash(),
		RemainingBagsNeeded: sess.RemainingBagsNeeded(),
		TotalDonorsToNotify: plan.TotalDonorsToNotify,
		DelaySeconds:        plan.DelaySeconds,
		NextRunAt:           sess.NextRunAt(),
	}
	if k := plan.Outcome.Kind(); k != "" {
		ev.Outcome = string(k)
		ev.Action = string(plan.Outcome.Action())
	}

	if err := s.pub.Publish(ctx, events.SubjectDecision, ev); err != nil {
		s.log(ctx).Warn("publish decision failed", zap.Error(err))
	}
}

func (s *Service) release(ctx context.Context, release func(context.Context) error) {
	// the request context may already be cancelled; the lock must still go
	if err := release(context.WithoutCancel(ctx)); err != nil {
		s.log(ctx).Warn("release session lock failed", zap.Error(err))
	}
}

func (s *Service) withSession(ctx context.Context, id string) context.Context {
	return logger.ContextWithLogger(ctx, s.log(ctx).With(zap.String("session_id", id)))
}

func (s *Service) log(ctx context.Context) *zap.Logger {
	return logger.FromContextOr(ctx, s.logger)
}
