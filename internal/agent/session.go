package agent

import (
	"context"
	"sync"
	"time"
)

// SessionStore keeps per-conversation pending state. Mutations for the same
// key are serialized so overlapping requests from one client cannot
// interleave a merge; different keys share nothing.
type SessionStore interface {
	// Get returns the state for key, creating empty state on first sight.
	Get(ctx context.Context, key string) (SessionState, error)
	// Mutate applies fn to the state for key under the key's lock and
	// returns the resulting state. LastActivity is refreshed.
	Mutate(ctx context.Context, key string, fn func(*SessionState)) (SessionState, error)
	// Clear resets the pending state for key.
	Clear(ctx context.Context, key string) error
	// Touch refreshes the last-activity timestamp without other changes.
	Touch(ctx context.Context, key string) error
	// ActiveSessions reports how many sessions currently exist.
	ActiveSessions(ctx context.Context) (int, error)
}

// MemorySessionStore is the in-process SessionStore. One mutex per session
// key; the outer lock only guards the map itself.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]*memorySession
	now      func() time.Time
}

type memorySession struct {
	mu    sync.Mutex
	state SessionState
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]*memorySession),
		now:      time.Now,
	}
}

func (s *MemorySessionStore) session(key string) *memorySession {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[key]
	if !ok {
		sess = &memorySession{state: SessionState{Kind: IntentUnknown}}
		s.sessions[key] = sess
	}
	return sess
}

func (s *MemorySessionStore) Get(ctx context.Context, key string) (SessionState, error) {
	sess := s.session(key)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.state, nil
}

func (s *MemorySessionStore) Mutate(ctx context.Context, key string, fn func(*SessionState)) (SessionState, error) {
	sess := s.session(key)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	fn(&sess.state)
	sess.state.LastActivity = s.now()
	return sess.state, nil
}

// Clear removes the session entirely so finished conversations stop
// counting toward ActiveSessions. The key comes back empty on next Get.
func (s *MemorySessionStore) Clear(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, key)
	return nil
}

func (s *MemorySessionStore) Touch(ctx context.Context, key string) error {
	sess := s.session(key)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.state.LastActivity = s.now()
	return nil
}

func (s *MemorySessionStore) ActiveSessions(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions), nil
}

// EvictIdle drops sessions whose last activity is older than ttl and
// reports how many were removed. The cleanup ticker calls this; the Redis
// store relies on key TTLs instead.
func (s *MemorySessionStore) EvictIdle(ttl time.Duration) int {
	cutoff := s.now().Add(-ttl)
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, sess := range s.sessions {
		sess.mu.Lock()
		idle := sess.state.LastActivity.Before(cutoff)
		sess.mu.Unlock()
		if idle {
			delete(s.sessions, key)
			removed++
		}
	}
	return removed
}

var _ SessionStore = (*MemorySessionStore)(nil)
