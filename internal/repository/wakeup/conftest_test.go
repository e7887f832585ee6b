package wakeup

import (
	"context"
	"sort"
	"testing"
)

// memStore is an in-memory sorted set implementing the consumer interface.
type memStore struct {
	sets map[string]map[string]float64
	err  error
}

func newMemStore() *memStore {
	return &memStore{sets: map[string]map[string]float64{}}
}

func (m *memStore) set(key string) map[string]float64 {
	if m.sets[key] == nil {
		m.sets[key] = map[string]float64{}
	}
	return m.sets[key]
}

func (m *memStore) ZAdd(_ context.Context, key, member string, score float64) error {
	if m.err != nil {
		return m.err
	}
	m.set(key)[member] = score
	return nil
}

func (m *memStore) ZClaim(_ context.Context, key, member string, maxScore, score float64) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	s := m.set(key)
	cur, ok := s[member]
	if !ok || cur > maxScore {
		return false, nil
	}
	s[member] = score
	return true, nil
}

func (m *memStore) ZRangeByScore(_ context.Context, key string, maxScore float64, limit int) ([]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	s := m.set(key)
	var out []string
	for member, score := range s {
		if score <= maxScore {
			out = append(out, member)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if s[out[i]] != s[out[j]] {
			return s[out[i]] < s[out[j]]
		}
		return out[i] < out[j]
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) ZScore(_ context.Context, key, member string) (float64, error) {
	if m.err != nil {
		return 0, m.err
	}
	score, ok := m.set(key)[member]
	if !ok {
		return 0, errKeyNotFound
	}
	return score, nil
}

func (m *memStore) ZRem(_ context.Context, key, member string) error {
	if m.err != nil {
		return m.err
	}
	delete(m.set(key), member)
	return nil
}

func newTestQueue(t *testing.T) (*Queue, *memStore) {
	t.Helper()
	ms := newMemStore()
	return New(ms, "test:"), ms
}
