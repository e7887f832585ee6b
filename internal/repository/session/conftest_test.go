package session

import (
	"context"
	"testing"
	"time"

	domsession "github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/domain/session"
	"github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/domain/urgency"
)

var testNow = time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	hsetFn         func(ctx context.Context, key string, fields map[string]string) error
	hgetAllFn      func(ctx context.Context, key string) (map[string]string, error)
	hgetAllMultiFn func(ctx context.Context, keys []string) ([]map[string]string, error)
	existsFn       func(ctx context.Context, key string) (bool, error)
	setNXFn        func(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	delIfEqualsFn  func(ctx context.Context, key string, value []byte) (bool, error)
}

func (m *mockStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	if m.hsetFn != nil {
		return m.hsetFn(ctx, key, fields)
	}
	return nil
}

func (m *mockStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	if m.hgetAllFn != nil {
		return m.hgetAllFn(ctx, key)
	}
	return map[string]string{}, nil
}

func (m *mockStore) HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error) {
	if m.hgetAllMultiFn != nil {
		return m.hgetAllMultiFn(ctx, keys)
	}
	return nil, nil
}

func (m *mockStore) Exists(ctx context.Context, key string) (bool, error) {
	if m.existsFn != nil {
		return m.existsFn(ctx, key)
	}
	return false, nil
}

func (m *mockStore) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if m.setNXFn != nil {
		return m.setNXFn(ctx, key, value, ttl)
	}
	return true, nil
}

func (m *mockStore) DelIfEquals(ctx context.Context, key string, value []byte) (bool, error) {
	if m.delIfEqualsFn != nil {
		return m.delIfEqualsFn(ctx, key, value)
	}
	return true, nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(ms, "test:"), ms
}

func testSession(t *testing.T) domsession.Session {
	t.Helper()
	s, err := domsession.New(domsession.NewParams{
		ID:               "s-1",
		SeekerID:         "seeker-1",
		RequestPostID:    "post-1",
		BloodQuantity:    3,
		Urgency:          urgency.Regular,
		DonationDateTime: testNow.Add(36 * time.Hour),
		Geohash:          "wh0r3qs",
		Now:              testNow,
	})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	return s.ObserveDonors(1, 2, testNow).Initiated(testNow)
}
