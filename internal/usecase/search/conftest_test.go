package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/domain"
	"github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/domain/delay"
	"github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/domain/donors"
	domsession "github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/domain/session"
	"github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/events"
	"github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/usecase/planner"
)

var now = time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)

// --- Mocks ---

type memSessions struct {
	data     map[string]domsession.Session
	locked   map[string]bool
	released int
	saveErr  error
}

func newMemSessions() *memSessions {
	return &memSessions{data: map[string]domsession.Session{}, locked: map[string]bool{}}
}

func (m *memSessions) Create(_ context.Context, s domsession.Session) error {
	if _, ok := m.data[s.ID()]; ok {
		return domain.ErrConflict
	}
	m.data[s.ID()] = s
	return nil
}

func (m *memSessions) Save(_ context.Context, s domsession.Session) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.data[s.ID()] = s
	return nil
}

func (m *memSessions) Get(_ context.Context, id string) (domsession.Session, error) {
	s, ok := m.data[id]
	if !ok {
		return domsession.Session{}, fmt.Errorf("session %s: %w", id, domain.ErrNotFound)
	}
	return s, nil
}

func (m *memSessions) Lock(_ context.Context, id string, _ time.Duration) (func(context.Context) error, error) {
	if m.locked[id] {
		return nil, domain.ErrConflict
	}
	m.locked[id] = true
	return func(context.Context) error {
		delete(m.locked, id)
		m.released++
		return nil
	}, nil
}

type memWakeups struct {
	at map[string]time.Time
}

func newMemWakeups() *memWakeups { return &memWakeups{at: map[string]time.Time{}} }

func (m *memWakeups) Schedule(_ context.Context, id string, at time.Time) error {
	m.at[id] = at
	return nil
}

func (m *memWakeups) Remove(_ context.Context, id string) error {
	delete(m.at, id)
	return nil
}

type recordingPublisher struct {
	decisions []events.Decision
	err       error
}

func (p *recordingPublisher) Publish(_ context.Context, subject string, ev any) error {
	if subject != events.SubjectDecision {
		return errors.New("unexpected subject " + subject)
	}
	p.decisions = append(p.decisions, ev.(events.Decision))
	return p.err
}

// --- Fixture ---

type fixture struct {
	svc      *Service
	sessions *memSessions
	wakeups  *memWakeups
	pub      *recordingPublisher
	clock    *time.Time
}

func newFixture(maxRetries int) *fixture {
	f := &fixture{
		sessions: newMemSessions(),
		wakeups:  newMemWakeups(),
		pub:      &recordingPublisher{},
	}
	t := now
	f.clock = &t
	clock := func() time.Time { return *f.clock }

	p := planner.New(donors.DefaultBufferTarget(), delay.RetryBudget{
		MaxNeighborSearchLevel:   3,
		MaxGeohashesPerExecution: 50,
		MaxInitiatingRetryCount:  5,
		DelayBetweenExecution:    time.Second,
	}, clock, nil)

	f.svc = New(f.sessions, f.wakeups, p, f.pub, Settings{
		PrefixLength:            7,
		MaxInitiatingRetryCount: maxRetries,
	}, nil).
		WithClock(clock).
		WithIDGenerator(func() string { return "s-1" })
	return f
}
