package worker

import (
	"context"
	"errors"
	"sort"
	"time"

	domsession "github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/domain/session"
	"github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/domain/urgency"
	"github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/events"
)

var now = time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)

// --- Mocks ---

type memQueue struct {
	at       map[string]time.Time
	dueErr   error
	leaseErr error
	// afterDue runs once between Due and the first Lease, standing in for another process.
	afterDue func()
}

func (q *memQueue) Due(_ context.Context, now time.Time, limit int) ([]string, error) {
	if q.dueErr != nil {
		return nil, q.dueErr
	}
	var ids []string
	for id, at := range q.at {
		if !at.After(now) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}
	if f := q.afterDue; f != nil {
		q.afterDue = nil
		f()
	}
	return ids, nil
}

func (q *memQueue) Lease(_ context.Context, id string, now, until time.Time) (bool, error) {
	if q.leaseErr != nil {
		return false, q.leaseErr
	}
	at, ok := q.at[id]
	if !ok || at.After(now) {
		return false, nil
	}
	q.at[id] = until
	return true, nil
}

func (q *memQueue) Remove(_ context.Context, id string) error {
	delete(q.at, id)
	return nil
}

type memSessions struct {
	data map[string]domsession.Session
}

func (m *memSessions) GetMany(_ context.Context, ids []string) (map[string]domsession.Session, error) {
	out := make(map[string]domsession.Session)
	for _, id := range ids {
		if s, ok := m.data[id]; ok {
			out[id] = s
		}
	}
	return out, nil
}

// fixedTargets returns remaining + rejected.
type fixedTargets struct{}

func (fixedTargets) TotalDonorsToFind(remaining int, _ urgency.Urgency, rejected int) int {
	return remaining + rejected
}

type recordingPublisher struct {
	due []events.Due
	err error
}

func (p *recordingPublisher) Publish(_ context.Context, subject string, ev any) error {
	if p.err != nil {
		return p.err
	}
	if subject != events.SubjectDue {
		return errors.New("unexpected subject " + subject)
	}
	p.due = append(p.due, ev.(events.Due))
	return nil
}

func (p *recordingPublisher) Close() {}

func searching(id string) domsession.Session {
	s, err := domsession.New(domsession.NewParams{
		ID:               id,
		SeekerID:         "seeker-" + id,
		BloodQuantity:    2,
		Urgency:          urgency.Urgent,
		DonationDateTime: now.Add(48 * time.Hour),
		Geohash:          "wh0r3qs",
		Now:              now.Add(-time.Minute),
	})
	if err != nil {
		panic(err)
	}
	return s.ObserveDonors(0, 1, now)
}
