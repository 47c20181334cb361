package session

import (
	"context"
	"sync"
)

// MemoryStore keeps sessions in a process-lifetime map. Sessions are
// never expired; a restart drops everything, which callers must
// tolerate.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Session)}
}

// Get implements Store, creating an idle session on first sight.
func (m *MemoryStore) Get(_ context.Context, userID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[userID]
	if !ok {
		s = New()
		m.sessions[userID] = s
	}
	return s, nil
}

// Put implements Store.
func (m *MemoryStore) Put(_ context.Context, userID string, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[userID] = s
	return nil
}

// Clear implements Store.
func (m *MemoryStore) Clear(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[userID] = New()
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions = make(map[string]*Session)
	return nil
}
