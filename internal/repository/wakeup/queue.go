// Package wakeup keeps the time-ordered queue of sessions waiting for their next search pass.
package wakeup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/db"
	"github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/domain"
)

// store is the consumer interface for the wake-up queue (ISP).
type store interface {
	ZAdd(ctx context.Context, key, member string, score float64) error
	ZClaim(ctx context.Context, key, member string, maxScore, score float64) (bool, error)
	ZRangeByScore(ctx context.Context, key string, maxScore float64, limit int) ([]string, error)
	ZScore(ctx context.Context, key, member string) (float64, error)
	ZRem(ctx context.Context, key, member string) error
}

// Queue is a Redis sorted set of session IDs scored by unix seconds of their next run.
type Queue struct {
	store store
	key   string
}

// New creates a wake-up queue. An empty prefix falls back to domain.KeyPrefix.
func New(s store, prefix string) *Queue {
	if prefix == "" {
		prefix = domain.KeyPrefix
	}
	return &Queue{store: s, key: prefix + "wakeups"}
}

// Schedule sets the next run of id, replacing any earlier schedule.
func (q *Queue) Schedule(ctx context.Context, id string, at time.Time) error {
	if err := q.store.ZAdd(ctx, q.key, id, float64(at.Unix())); err != nil {
		return fmt.Errorf("schedule %s: %w", id, err)
	}
	return nil
}

// Remove drops id from the queue.
func (q *Queue) Remove(ctx context.Context, id string) error {
	if err := q.store.ZRem(ctx, q.key, id); err != nil {
		return fmt.Errorf("unschedule %s: %w", id, err)
	}
	return nil
}

// Due returns up to limit IDs whose run time is at or before now, earliest first.
func (q *Queue) Due(ctx context.Context, now time.Time, limit int) ([]string, error) {
	ids, err := q.store.ZRangeByScore(ctx, q.key, float64(now.Unix()), limit)
	if err != nil {
		return nil, fmt.Errorf("due wakeups: %w", err)
	}
	return ids, nil
}

// Lease claims id while it is still due at now and pushes it to until, so other pollers
// skip it while its pass runs. Returns false when id is no longer queued or no longer due,
// e.g. because another poller leased it first.
func (q *Queue) Lease(ctx context.Context, id string, now, until time.Time) (bool, error) {
	ok, err := q.store.ZClaim(ctx, q.key, id, float64(now.Unix()), float64(until.Unix()))
	if err != nil {
		return false, fmt.Errorf("lease %s: %w", id, err)
	}
	return ok, nil
}

// NextAt returns when id is scheduled to run, or ErrNotFound.
func (q *Queue) NextAt(ctx context.Context, id string) (time.Time, error) {
	score, err := q.store.ZScore(ctx, q.key, id)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return time.Time{}, domain.ErrNotFound
		}
		return time.Time{}, fmt.Errorf("next run %s: %w", id, err)
	}
	return time.Unix(int64(score), 0).UTC(), nil
}
