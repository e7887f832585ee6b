package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/db"
	"github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/domain"
	domsession "github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/domain/session"
)

// store is the consumer interface for sessions (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Exists(ctx context.Context, key string) (bool, error)
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	DelIfEquals(ctx context.Context, key string, value []byte) (bool, error)
}

// Repo implements search.Sessions and worker.Sessions on Redis hashes.
type Repo struct {
	store  store
	prefix string
}

// New creates a session repository. An empty prefix falls back to domain.KeyPrefix.
func New(s store, prefix string) *Repo {
	if prefix == "" {
		prefix = domain.KeyPrefix
	}
	return &Repo{store: s, prefix: prefix}
}

func (r *Repo) key(id string) string     { return r.prefix + "session:" + id }
func (r *Repo) lockKey(id string) string { return r.prefix + "lock:session:" + id }

// Create stores a new session. An existing ID yields ErrConflict.
func (r *Repo) Create(ctx context.Context, s domsession.Session) error {
	key := r.key(s.ID())
	exists, err := r.store.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return fmt.Errorf("session %s: %w", s.ID(), domain.ErrConflict)
	}
	if err := r.store.HSet(ctx, key, sessionToHash(s)); err != nil {
		return fmt.Errorf("hset session %s: %w", s.ID(), err)
	}
	return nil
}

// Save overwrites a session.
func (r *Repo) Save(ctx context.Context, s domsession.Session) error {
	if err := r.store.HSet(ctx, r.key(s.ID()), sessionToHash(s)); err != nil {
		return fmt.Errorf("hset session %s: %w", s.ID(), err)
	}
	return nil
}

// Get retrieves a session by ID.
func (r *Repo) Get(ctx context.Context, id string) (domsession.Session, error) {
	m, err := r.store.HGetAll(ctx, r.key(id))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domsession.Session{}, domain.ErrNotFound
		}
		return domsession.Session{}, fmt.Errorf("hgetall session %s: %w", id, err)
	}
	if len(m) == 0 {
		return domsession.Session{}, domain.ErrNotFound
	}
	s, err := sessionFromHash(m)
	if err != nil {
		return domsession.Session{}, fmt.Errorf("parse session %s: %w", id, err)
	}
	return s, nil
}

// GetMany loads sessions in one round-trip. Missing IDs are absent from the result.
func (r *Repo) GetMany(ctx context.Context, ids []string) (map[string]domsession.Session, error) {
	out := make(map[string]domsession.Session, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.key(id)
	}

	results, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("hgetall multi sessions: %w", err)
	}
	for i, m := range results {
		if len(m) == 0 {
			continue
		}
		s, err := sessionFromHash(m)
		if err != nil {
			return nil, fmt.Errorf("parse session %s: %w", ids[i], err)
		}
		out[ids[i]] = s
	}
	return out, nil
}

// Lock takes the per-session pass lock for ttl. A held lock yields ErrConflict.
// The returned release only deletes the lock while this holder still owns it.
func (r *Repo) Lock(ctx context.Context, id string, ttl time.Duration) (func(context.Context) error, error) {
	key := r.lockKey(id)
	token := []byte(uuid.NewString())

	ok, err := r.store.SetNX(ctx, key, token, ttl)
	if err != nil {
		return nil, fmt.Errorf("lock session %s: %w", id, err)
	}
	if !ok {
		return nil, fmt.Errorf("session %s: %w: %w", id, domain.ErrConflict, db.ErrLockNotAcquired)
	}

	return func(ctx context.Context) error {
		if _, err := r.store.DelIfEquals(ctx, key, token); err != nil {
			return fmt.Errorf("unlock session %s: %w", id, err)
		}
		return nil
	}, nil
}
