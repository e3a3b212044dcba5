package agent

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMemorySessionStoreGetCreatesEmpty(t *testing.T) {
	s := NewMemorySessionStore()
	st, err := s.Get(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if st.Kind != IntentUnknown || !st.Slots.IsZero() {
		t.Errorf("fresh session not empty: %+v", st)
	}
}

func TestMemorySessionStoreMutatePersists(t *testing.T) {
	s := NewMemorySessionStore()
	ctx := context.Background()

	_, err := s.Mutate(ctx, "alice", func(st *SessionState) {
		st.Kind = IntentBook
		st.Slots.Doctor = "Dr. Clark"
		st.Turns++
	})
	if err != nil {
		t.Fatalf("Mutate: %v", err)
	}

	st, _ := s.Get(ctx, "alice")
	if st.Kind != IntentBook || st.Slots.Doctor != "Dr. Clark" || st.Turns != 1 {
		t.Errorf("state not persisted: %+v", st)
	}
	if st.LastActivity.IsZero() {
		t.Error("LastActivity not set")
	}

	// Other keys are untouched.
	other, _ := s.Get(ctx, "bob")
	if other.Kind != IntentUnknown {
		t.Errorf("cross-key leak: %+v", other)
	}
}

func TestMemorySessionStoreClear(t *testing.T) {
	s := NewMemorySessionStore()
	ctx := context.Background()

	s.Mutate(ctx, "alice", func(st *SessionState) {
		st.Kind = IntentBook
		st.Slots.PatientID = "PVY3830"
	})
	if err := s.Clear(ctx, "alice"); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	// The entry is gone, not just emptied, so the active count drops.
	if n, _ := s.ActiveSessions(ctx); n != 0 {
		t.Errorf("ActiveSessions after Clear = %d, want 0", n)
	}
	st, _ := s.Get(ctx, "alice")
	if st.Kind != IntentUnknown || !st.Slots.IsZero() {
		t.Errorf("session not cleared: %+v", st)
	}
}

func TestMemorySessionStoreMutateSerialized(t *testing.T) {
	s := NewMemorySessionStore()
	ctx := context.Background()

	const n = 64
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

	st, _ := s.Get(ctx, "alice")
	if st.Turns != n {
		t.Errorf("Turns = %d, want %d", st.Turns, n)
	}
}

func TestMemorySessionStoreEvictIdle(t *testing.T) {
	s := NewMemorySessionStore()
	ctx := context.Background()

	base := time.Date(2025, 8, 28, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }
	s.Mutate(ctx, "stale", func(st *SessionState) { st.Kind = IntentBook })

	s.now = func() time.Time { return base.Add(3 * time.Hour) }
	s.Mutate(ctx, "fresh", func(st *SessionState) { st.Kind = IntentQuery })

	if removed := s.EvictIdle(2 * time.Hour); removed != 1 {
		t.Fatalf("EvictIdle removed %d, want 1", removed)
	}
	n, _ := s.ActiveSessions(ctx)
	if n != 1 {
		t.Errorf("ActiveSessions = %d, want 1", n)
	}
	st, _ := s.Get(ctx, "stale")
	if st.Kind != IntentUnknown {
		t.Errorf("evicted session should come back empty: %+v", st)
	}
}
