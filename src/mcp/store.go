package mcp

import (
	"sync"

	"github.com/google/uuid"

	"copilot-dash/src/logpager"
)

// maxSessions bounds how many log sessions are kept for follow-up calls.
const maxSessions = 64

// SessionStore keeps the log pagers opened by get_logs so a later call can
// continue paging where the previous one stopped.
type SessionStore interface {
	// Put stores a pager and returns its session id.
	Put(p *logpager.Pager) string
	// Get retrieves a pager by session id.
	Get(sessionID string) (*logpager.Pager, bool)
	// Delete forgets a session.
	Delete(sessionID string)
}

// InMemoryStore is a thread-safe SessionStore. Once full, the oldest session
// is evicted.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*logpager.Pager
	order    []string
}

// NewInMemoryStore creates an empty session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]*logpager.Pager)}
}

func (s *InMemoryStore) Put(p *logpager.Pager) string {
	id := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.order) >= maxSessions {
		delete(s.sessions, s.order[0])
		s.order = s.order[1:]
	}
	s.sessions[id] = p
	s.order = append(s.order, id)
	return id
}

func (s *InMemoryStore) Get(sessionID string) (*logpager.Pager, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.sessions[sessionID]
	return p, ok
}

func (s *InMemoryStore) Delete(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return
	}
	delete(s.sessions, sessionID)
	for i, id := range s.order {
		if id == sessionID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Len returns the number of stored sessions.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
