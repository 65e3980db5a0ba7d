package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store used when no database is configured and
// by tests.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]Session)}
}

func (m *MemoryStore) Get(_ context.Context, token string) (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[token]
	if !ok {
		return Session{}, ErrNotFound
	}
	return s, nil
}

func (m *MemoryStore) Put(_ context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[s.Token] = s
	return nil
}

func (m *MemoryStore) Renew(_ context.Context, token string, until time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[token]
	if !ok {
		return ErrNotFound
	}
	s.ExpiresAt = until
	m.sessions[token] = s
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, token)
	return nil
}

func (m *MemoryStore) Reap(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var reaped int64
	for token, s := range m.sessions {
		if !s.ExpiresAt.After(now) {
			delete(m.sessions, token)
			reaped++
		}
	}
	return reaped, nil
}

func (m *MemoryStore) Close() error {
	return nil
}
