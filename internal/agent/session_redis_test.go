package agent

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedisStore(t *testing.T) (*RedisSessionStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisSessionStore(client, time.Hour), mr
}

func TestRedisSessionStoreRoundTrip(t *testing.T) {
	s, _ := newTestRedisStore(t)
	ctx := context.Background()

	_, err := s.Mutate(ctx, "alice", func(st *SessionState) {
		st.Kind = IntentBook
		st.Slots = Slots{PatientID: "PVY3830", Doctor: "Dr. Clark"}
		st.Turns = 2
	})
	if err != nil {
		t.Fatalf("Mutate: %v", err)
	}

	st, err := s.Get(ctx, "alice")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if st.Kind != IntentBook || st.Slots.PatientID != "PVY3830" || st.Turns != 2 {
		t.Errorf("state did not round-trip: %+v", st)
	}
}

func TestRedisSessionStoreMissingKeyIsEmpty(t *testing.T) {
	s, _ := newTestRedisStore(t)
	st, err := s.Get(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if st.Kind != IntentUnknown || !st.Slots.IsZero() {
		t.Errorf("missing session should be empty: %+v", st)
	}
}

func TestRedisSessionStoreTTL(t *testing.T) {
	s, mr := newTestRedisStore(t)
	ctx := context.Background()

	s.Mutate(ctx, "alice", func(st *SessionState) { st.Kind = IntentQuery })
	if ttl := mr.TTL("session:alice"); ttl != time.Hour {
		t.Errorf("TTL = %v, want 1h", ttl)
	}

	mr.FastForward(30 * time.Minute)
	if err := s.Touch(ctx, "alice"); err != nil {
		t.Fatalf("Touch: %v", err)
	}
	if ttl := mr.TTL("session:alice"); ttl != time.Hour {
		t.Errorf("TTL after Touch = %v, want 1h", ttl)
	}

	mr.FastForward(2 * time.Hour)
	st, err := s.Get(ctx, "alice")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if st.Kind != IntentUnknown {
		t.Errorf("expired session should be empty: %+v", st)
	}
}

func TestRedisSessionStoreClear(t *testing.T) {
	s, mr := newTestRedisStore(t)
	ctx := context.Background()

	s.Mutate(ctx, "alice", func(st *SessionState) { st.Kind = IntentBook })
	if err := s.Clear(ctx, "alice"); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if mr.Exists("session:alice") {
		t.Error("key should be deleted")
	}

	// The per-key mutex goes too, so cleared conversations don't pin an
	// entry in the lock map for the life of the process.
	s.mu.Lock()
	_, held := s.locks["alice"]
	s.mu.Unlock()
	if held {
		t.Error("lock entry should be released on Clear")
	}
}

func TestRedisSessionStoreMutateSerialized(t *testing.T) {
	s, _ := newTestRedisStore(t)
	ctx := context.Background()

	const n = 32
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			if _, err := s.Mutate(ctx, "alice", func(st *SessionState) { st.Turns++ }); err != nil {
				t.Errorf("Mutate: %v", err)
			}
		}()
	}
	wg.Wait()

	st, err := s.Get(ctx, "alice")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if st.Turns != n {
		t.Errorf("Turns = %d, want %d", st.Turns, n)
	}
}

func TestRedisSessionStoreCorruptState(t *testing.T) {
	s, mr := newTestRedisStore(t)
	mr.Set("session:alice", "{not json")

	st, err := s.Get(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if st.Kind != IntentUnknown {
		t.Errorf("corrupt state should reset, got %+v", st)
	}
}

func TestRedisSessionStoreActiveSessions(t *testing.T) {
	s, _ := newTestRedisStore(t)
	ctx := context.Background()

	s.Mutate(ctx, "a", func(st *SessionState) { st.Kind = IntentBook })
	s.Mutate(ctx, "b", func(st *SessionState) { st.Kind = IntentQuery })

	n, err := s.ActiveSessions(ctx)
	if err != nil {
		t.Fatalf("ActiveSessions: %v", err)
	}
	if n != 2 {
		t.Errorf("ActiveSessions = %d, want 2", n)
	}
}
