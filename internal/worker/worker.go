// Package worker turns due wake-ups into due events for the donor lookup workers.
package worker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	domsession "github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/domain/session"
	"github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/domain/urgency"
	"github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/events"
	"github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/metrics"
)

// Result labels for the worker_due_total metric.
const (
	resultPublished = "published"
	resultDropped   = "dropped"
	resultError     = "error"
)

// Queue is the wake-up queue.
type Queue interface {
	Due(ctx context.Context, now time.Time, limit int) ([]string, error)
	// Lease claims id only while it is still due at now.
	Lease(ctx context.Context, id string, now, until time.Time) (bool, error)
	Remove(ctx context.Context, id string) error
}

// Sessions loads sessions in bulk. Missing IDs are absent from the map.
type Sessions interface {
	GetMany(ctx context.Context, ids []string) (map[string]domsession.Session, error)
}

// Targets sizes the next notification batch.
type Targets interface {
	TotalDonorsToFind(remaining int, u urgency.Urgency, rejected int) int
}

// Config controls batch size, polling cadence and lease length.
type Config struct {
	BatchSize int
	Interval  time.Duration
	// Lease is how long a published entry stays out of the due range. An unanswered
	// due event fires again after it.
	Lease time.Duration
}

// Stats counts what one cycle did.
type Stats struct {
	Published int
	Dropped   int
	Failed    int
}

// Worker polls the wake-up queue.
type Worker struct {
	queue    Queue
	sessions Sessions
	targets  Targets
	pub      events.Publisher
	cfg      Config
	now      func() time.Time
	logger   *zap.Logger
	metrics  *metrics.Scheduler
}

// New constructs a Worker from dependencies.
func New(q Queue, s Sessions, t Targets, pub events.Publisher, cfg Config, log *zap.Logger) *Worker {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.Lease <= 0 {
		cfg.Lease = 5 * time.Minute
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Worker{
		queue: q, sessions: s, targets: t, pub: pub, cfg: cfg,
		now: time.Now, logger: log,
	}
}

// WithClock overrides time.Now.
func (w *Worker) WithClock(now func() time.Time) *Worker {
	w.now = now
	return w
}

// WithMetrics enables worker_due_total.
func (w *Worker) WithMetrics(m *metrics.Scheduler) *Worker {
	w.metrics = m
	return w
}

// Run polls until ctx is cancelled. Cycle errors are logged, never fatal.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("wake-up worker starting",
		zap.Int("batch", w.cfg.BatchSize),
		zap.Duration("interval", w.cfg.Interval),
		zap.Duration("lease", w.cfg.Lease),
	)
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("wake-up worker stopping")
			return ctx.Err()
		case <-ticker.C:
			st, err := w.ProcessOnce(ctx)
			if err != nil {
				w.logger.Error("wake-up cycle failed", zap.Error(err))
				continue
			}
			if st != (Stats{}) {
				w.logger.Info("wake-up cycle",
					zap.Int("published", st.Published),
					zap.Int("dropped", st.Dropped),
					zap.Int("failed", st.Failed),
				)
			}
		}
	}
}

// ProcessOnce handles one batch of due wake-ups. Terminal or missing sessions leave the
// queue; the rest are leased and announced on the due subject.
func (w *Worker) ProcessOnce(ctx context.Context) (Stats, error) {
	now := w.now()

	ids, err := w.queue.Due(ctx, now, w.cfg.BatchSize)
	if err != nil {
		return Stats{}, fmt.Errorf("due wake-ups: %w", err)
	}
	if len(ids) == 0 {
		return Stats{}, nil
	}

	sessions, err := w.sessions.GetMany(ctx, ids)
	if err != nil {
		return Stats{}, fmt.Errorf("load sessions: %w", err)
	}

	var st Stats
	for _, id := range ids {
		sess, ok := sessions[id]
		if !ok || sess.Status().IsTerminal() {
			w.drop(ctx, id, &st)
			continue
		}
		w.dispatch(ctx, sess, now, &st)
	}
	return st, nil
}

func (w *Worker) drop(ctx context.Context, id string, st *Stats) {
	if err := w.queue.Remove(ctx, id); err != nil {
		w.fail(id, "remove stale wake-up", err, st)
		return
	}
	st.Dropped++
	w.metrics.WorkerDue(resultDropped)
}

func (w *Worker) dispatch(ctx context.Context, sess domsession.Session, now time.Time, st *Stats) {
	// lease first so a slow publish cannot make another process pick the entry up
	leased, err := w.queue.Lease(ctx, sess.ID(), now, now.Add(w.cfg.Lease))
	if err != nil {
		w.fail(sess.ID(), "lease wake-up", err, st)
		return
	}
	if !leased {
		// removed or leased elsewhere since Due
		return
	}

	remaining := sess.RemainingBagsNeeded()
	ev := events.Due{
		SessionID:           sess.ID(),
		SeekerID:            sess.SeekerID(),
		RequestPostID:       sess.RequestPostID(),
		Urgency:             string(sess.Urgency()),
		ActiveGeohash:       sess.ActiveGeohash(),
		RemainingBagsNeeded: remaining,
		TotalDonorsToNotify: w.targets.TotalDonorsToFind(remaining, sess.Urgency(), sess.RejectedDonors()),
		InitiationCount:     sess.InitiationCount(),
		DonationDateTime:    sess.DonationDateTime(),
		DueAt:               sess.NextRunAt(),
	}
	if err := w.pub.Publish(ctx, events.SubjectDue, ev); err != nil {
		w.fail(sess.ID(), "publish due event", err, st)
		return
	}
	st.Published++
	w.metrics.WorkerDue(resultPublished)
}

func (w *Worker) fail(id, what string, err error, st *Stats) {
	st.Failed++
	w.metrics.WorkerDue(resultError)
	w.logger.Warn(what+" failed", zap.String("session_id", id), zap.Error(err))
}
