package history

import (
	"context"
	"sync"
)

// MemoryStore keeps sessions in process memory for the lifetime of the
// store. A *Session handed out by GetOrCreate observes later appends.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Session)}
}

func (m *MemoryStore) GetOrCreate(_ context.Context, sessionID string) (*Session, error) {
	return m.session(sessionID), nil
}

func (m *MemoryStore) Append(_ context.Context, sessionID string, turns ...Turn) error {
	if err := validate(turns); err != nil {
		return err
	}
	m.session(sessionID).append(turns...)
	return nil
}

func (m *MemoryStore) session(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		s = newSession(id, nil)
		m.sessions[id] = s
	}
	return s
}
