package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const sessionKeyPrefix = "session:"

// RedisSessionStore persists session state in Redis so conversations
// survive restarts and can be shared across replicas. Each session is a
// JSON value under "session:<key>" with a sliding TTL. Mutations take an
// in-process per-key lock; concurrent writers for the same key on other
// replicas are not coordinated, which matches one-conversation-one-client
// usage.
type RedisSessionStore struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewRedisSessionStore(client *redis.Client, ttl time.Duration) *RedisSessionStore {
	if client == nil {
		panic("agent: redis client is required")
	}
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &RedisSessionStore{
		client: client,
		ttl:    ttl,
		now:    time.Now,
		locks:  make(map[string]*sync.Mutex),
	}
}

func (s *RedisSessionStore) keyLock(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lk, ok := s.locks[key]
	if !ok {
		lk = &sync.Mutex{}
		s.locks[key] = lk
	}
	return lk
}

func (s *RedisSessionStore) load(ctx context.Context, key string) (SessionState, error) {
	raw, err := s.client.Get(ctx, sessionKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return SessionState{Kind: IntentUnknown}, nil
	}
	if err != nil {
		return SessionState{}, fmt.Errorf("agent: load session %q: %w", key, err)
	}
	var st SessionState
	if err := json.Unmarshal(raw, &st); err != nil {
		// Corrupt state is unrecoverable; start over rather than wedge
		// the conversation.
		return SessionState{Kind: IntentUnknown}, nil
	}
	return st, nil
}

func (s *RedisSessionStore) save(ctx context.Context, key string, st SessionState) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("agent: marshal session %q: %w", key, err)
	}
	if err := s.client.Set(ctx, sessionKeyPrefix+key, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("agent: save session %q: %w", key, err)
	}
	return nil
}

func (s *RedisSessionStore) Get(ctx context.Context, key string) (SessionState, error) {
	lk := s.keyLock(key)
	lk.Lock()
	defer lk.Unlock()
	return s.load(ctx, key)
}

func (s *RedisSessionStore) Mutate(ctx context.Context, key string, fn func(*SessionState)) (SessionState, error) {
	lk := s.keyLock(key)
	lk.Lock()
	defer lk.Unlock()

	st, err := s.load(ctx, key)
	if err != nil {
		return SessionState{}, err
	}
	fn(&st)
	st.LastActivity = s.now()
	if err := s.save(ctx, key, st); err != nil {
		return SessionState{}, err
	}
	return st, nil
}

func (s *RedisSessionStore) Clear(ctx context.Context, key string) error {
	lk := s.keyLock(key)
	lk.Lock()
	defer lk.Unlock()
	if err := s.client.Del(ctx, sessionKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("agent: clear session %q: %w", key, err)
	}
	// Drop the lock entry too; session values expire via TTL but the lock
	// map would otherwise grow one mutex per conversation forever.
	s.mu.Lock()
	delete(s.locks, key)
	s.mu.Unlock()
	return nil
}

func (s *RedisSessionStore) Touch(ctx context.Context, key string) error {
	lk := s.keyLock(key)
	lk.Lock()
	defer lk.Unlock()
	err := s.client.Expire(ctx, sessionKeyPrefix+key, s.ttl).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("agent: touch session %q: %w", key, err)
	}
	return nil
}

func (s *RedisSessionStore) ActiveSessions(ctx context.Context) (int, error) {
	var count int
	iter := s.client.Scan(ctx, 0, sessionKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		count++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("agent: scan sessions: %w", err)
	}
	return count, nil
}

var _ SessionStore = (*RedisSessionStore)(nil)
