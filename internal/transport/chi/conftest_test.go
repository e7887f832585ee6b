package chi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/domain"
	"github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/domain/delay"
	"github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/domain/donors"
	domsession "github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/domain/session"
	healthuc "github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/usecase/health"
	planneruc "github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/usecase/planner"
	searchuc "github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/usecase/search"
)

var now = time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)

func clock() time.Time { return now }

// --- Mocks ---

type memSessions struct {
	data map[string]domsession.Session
}

func (m *memSessions) Create(_ context.Context, s domsession.Session) error {
	m.data[s.ID()] = s
	return nil
}

func (m *memSessions) Save(_ context.Context, s domsession.Session) error {
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

func (m *memSessions) Lock(context.Context, string, time.Duration) (func(context.Context) error, error) {
	return func(context.Context) error { return nil }, nil
}

type memWakeups struct{}

func (memWakeups) Schedule(context.Context, string, time.Time) error { return nil }
func (memWakeups) Remove(context.Context, string) error              { return nil }

type mockPinger struct{ err error }

func (m *mockPinger) Ping(context.Context) error { return m.err }

// --- Fixture ---

type fixture struct {
	handler http.Handler
	pinger  *mockPinger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	p := planneruc.New(donors.DefaultBufferTarget(), delay.RetryBudget{
		MaxNeighborSearchLevel:   3,
		MaxGeohashesPerExecution: 50,
		MaxInitiatingRetryCount:  5,
		DelayBetweenExecution:    time.Second,
	}, clock, nil)

	search := searchuc.New(
		&memSessions{data: map[string]domsession.Session{}}, memWakeups{}, p, nil,
		searchuc.Settings{PrefixLength: 7, MaxInitiatingRetryCount: 5}, nil,
	).WithClock(clock).WithIDGenerator(func() string { return "s-1" })

	pinger := &mockPinger{}
	srv := NewServer(p, search, healthuc.New(pinger, nil), NeighborLimits{MaxLevel: 3, MaxCells: 100}).
		WithClock(clock)

	return &fixture{handler: NewRouter(srv, nil, zap.NewNop()), pinger: pinger}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rr.Body.String())
	}
	return v
}
