package session

import (
	"context"
	"errors"
	"sync"
	"time"
)

// DefaultTTL is how long an idle session is kept.
const DefaultTTL = 30 * time.Minute

var (
	// ErrNotFound is returned when a session does not exist or has expired.
	ErrNotFound = errors.New("session not found")
	// ErrInvalidID is returned for an empty session id.
	ErrInvalidID = errors.New("invalid session id")
	// ErrInvalidState is returned when saving a nil state.
	ErrInvalidState = errors.New("invalid session state")
)

// Store persists session state between turns.
type Store interface {
	// Load returns the state for id or ErrNotFound.
	Load(ctx context.Context, id string) (*State, error)
	// LoadOrCreate returns the existing state for id or a fresh one.
	LoadOrCreate(ctx context.Context, id string) (*State, error)
	// Save stores the state, refreshing its TTL.
	Save(ctx context.Context, state *State) error
	// Delete forgets the state for id. Deleting a missing id is not an error.
	Delete(ctx context.Context, id string) error
}

// MemoryStore keeps sessions in process memory with idle expiry.
type MemoryStore struct {
	sessions map[string]*State
	ttl      time.Duration
	now      func() time.Time
	mu       sync.RWMutex
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock overrides the time source.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *MemoryStore) {
		m.now = now
	}
}

// NewMemoryStore creates an in-memory store. A non-positive ttl uses DefaultTTL.
func NewMemoryStore(ttl time.Duration, opts ...MemoryOption) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	m := &MemoryStore{
		sessions: make(map[string]*State),
		ttl:      ttl,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Load implements Store.
func (m *MemoryStore) Load(_ context.Context, id string) (*State, error) {
	if id == "" {
		return nil, ErrInvalidID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	if m.now().Sub(st.LastActivity) > m.ttl {
		delete(m.sessions, id)
		return nil, ErrNotFound
	}
	return st.Clone(), nil
}

// LoadOrCreate implements Store.
func (m *MemoryStore) LoadOrCreate(ctx context.Context, id string) (*State, error) {
	st, err := m.Load(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return NewState(id, m.now()), nil
	}
	return st, err
}

// Save implements Store.
func (m *MemoryStore) Save(_ context.Context, state *State) error {
	if state == nil {
		return ErrInvalidState
	}
	if state.ID == "" {
		return ErrInvalidID
	}
	state.LastActivity = m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[state.ID] = state.Clone()
	return nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	if id == "" {
		return ErrInvalidID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, id)
	return nil
}

// CleanupExpired removes idle sessions and returns how many were dropped.
func (m *MemoryStore) CleanupExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for id, st := range m.sessions {
		if now.Sub(st.LastActivity) > m.ttl {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

// Stats returns current session counts.
func (m *MemoryStore) Stats() map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	active := 0
	now := m.now()
	for _, st := range m.sessions {
		if now.Sub(st.LastActivity) <= m.ttl {
			active++
		}
	}

	return map[string]int{
		"total":  len(m.sessions),
		"active": active,
	}
}
