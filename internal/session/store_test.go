package session

import (
	"context"
	"testing"
	"time"
)

func TestStoreCreateGetRemove(t *testing.T) {
	s := NewStore(time.Minute)
	id := s.Create(Session{
		RemoteSessionID: "sess-1",
		AccessToken:     "tok-1",
		AvatarID:        "avatar-1",
		Quality:         "medium",
		Status:          StatusStarted,
	})
	if id == "" {
		t.Fatalf("Create returned empty id")
	}

	got, err := s.Get(id)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.RemoteSessionID != "sess-1" || got.AccessToken != "tok-1" || got.Status != StatusStarted {
		t.Fatalf("unexpected session state: %+v", got)
	}
	if got.CreatedAt.IsZero() || got.LastAccessedAt.IsZero() {
		t.Fatalf("timestamps not stamped: %+v", got)
	}

	s.Remove(id)
	if _, err := s.Get(id); err != ErrNotFound {
		t.Fatalf("Get after Remove error = %v, want ErrNotFound", err)
	}

	// Removing an absent id is a no-op.
	s.Remove(id)
}

func TestStoreGetUnknown(t *testing.T) {
	s := NewStore(time.Minute)
	if _, err := s.Get("nope"); err != ErrNotFound {
		t.Fatalf("Get(unknown) error = %v, want ErrNotFound", err)
	}
}

func TestStoreGetSlidesExpiryWindow(t *testing.T) {
	s := NewStore(time.Minute)
	id := s.Create(Session{RemoteSessionID: "sess-1"})

	stale := time.Now().UTC().Add(-50 * time.Second)
	s.mu.Lock()
	s.sessions[id].LastAccessedAt = stale
	s.mu.Unlock()

	got, err := s.Get(id)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !got.LastAccessedAt.After(stale) {
		t.Fatalf("LastAccessedAt not refreshed: %v", got.LastAccessedAt)
	}
}

func TestStoreLazyEvictionOnGet(t *testing.T) {
	s := NewStore(time.Minute)
	id := s.Create(Session{RemoteSessionID: "sess-1"})

	var evicted []*Session
	s.SetEvictHook(func(sess *Session) { evicted = append(evicted, sess) })

	s.mu.Lock()
	s.sessions[id].LastAccessedAt = time.Now().UTC().Add(-2 * time.Hour)
	s.mu.Unlock()

	if _, err := s.Get(id); err != ErrNotFound {
		t.Fatalf("Get(expired) error = %v, want ErrNotFound", err)
	}
	if len(evicted) != 1 || evicted[0].LocalID != id {
		t.Fatalf("evict hook calls = %+v, want one for %s", evicted, id)
	}
	if s.Count() != 0 {
		t.Fatalf("Count() = %d, want 0 after eviction", s.Count())
	}
}

func TestStoreSweepExpired(t *testing.T) {
	s := NewStore(time.Minute)
	live := s.Create(Session{RemoteSessionID: "live"})
	stale := s.Create(Session{RemoteSessionID: "stale"})

	s.mu.Lock()
	s.sessions[stale].LastAccessedAt = time.Now().UTC().Add(-2 * time.Hour)
	s.mu.Unlock()

	if n := s.SweepExpired(); n != 1 {
		t.Fatalf("SweepExpired() = %d, want 1", n)
	}

	all := s.ListAll()
	if len(all) != 1 || all[0].LocalID != live {
		t.Fatalf("ListAll() = %+v, want only live session", all)
	}
}

func TestStoreListAllReturnsCopies(t *testing.T) {
	s := NewStore(time.Minute)
	id := s.Create(Session{RemoteSessionID: "sess-1", ICEServers: []any{"stun:a"}})

	all := s.ListAll()
	if len(all) != 1 {
		t.Fatalf("ListAll() len = %d, want 1", len(all))
	}
	all[0].RemoteSessionID = "mutated"
	all[0].ICEServers[0] = "mutated"

	got, err := s.Get(id)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.RemoteSessionID != "sess-1" || got.ICEServers[0] != "stun:a" {
		t.Fatalf("store state mutated through ListAll copy: %+v", got)
	}
}

func TestStoreJanitorSweeps(t *testing.T) {
	s := NewStore(30 * time.Millisecond)
	s.Create(Session{RemoteSessionID: "sess-1"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.StartJanitor(ctx, 10*time.Millisecond)

	deadline := time.Now().Add(time.Second)
	for s.Count() > 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if s.Count() != 0 {
		t.Fatalf("janitor did not evict idle session")
	}
}
