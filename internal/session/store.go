package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Status string

const StatusStarted Status = "started"

var ErrNotFound = errors.New("session not found")

// Session binds a client-visible local id to upstream session state and
// credentials. Owned exclusively by the Store; callers always receive copies.
type Session struct {
	LocalID         string    `json:"local_session_id"`
	RemoteSessionID string    `json:"session_id"`
	AccessToken     string    `json:"access_token"`
	APIToken        string    `json:"api_token"`
	URL             string    `json:"url"`
	ICEServers      []any     `json:"ice_servers"`
	AvatarID        string    `json:"avatar_id"`
	Quality         string    `json:"quality"`
	Status          Status    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
	LastAccessedAt  time.Time `json:"last_accessed"`
}

// Store is an in-memory registry of active sessions with sliding-window TTL
// eviction. Expiry is enforced lazily on Get and eagerly via SweepExpired.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
	onEvict  func(*Session)
}

func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 60 * time.Minute
	}
	return &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
	}
}

// SetEvictHook registers a callback fired once per expired session, outside
// the store lock.
func (s *Store) SetEvictHook(hook func(*Session)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onEvict = hook
}

// Create assigns a fresh local id, stamps the timestamps and stores the
// session. Collisions are not handled; random v4 UUIDs make them negligible.
func (s *Store) Create(sess Session) string {
	now := time.Now().UTC()
	sess.LocalID = uuid.NewString()
	sess.CreatedAt = now
	sess.LastAccessedAt = now

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.LocalID] = &sess
	return sess.LocalID
}

// Get returns a copy of the session and refreshes its last-accessed time.
// An expired entry is evicted and reported as ErrNotFound.
func (s *Store) Get(localID string) (*Session, error) {
	s.mu.Lock()
	sess, ok := s.sessions[localID]
	if !ok {
		s.mu.Unlock()
		return nil, ErrNotFound
	}

	now := time.Now().UTC()
	if now.Sub(sess.LastAccessedAt) > s.ttl {
		delete(s.sessions, localID)
		evicted := clone(sess)
		hook := s.onEvict
		s.mu.Unlock()
		if hook != nil {
			hook(evicted)
		}
		return nil, ErrNotFound
	}

	sess.LastAccessedAt = now
	c := clone(sess)
	s.mu.Unlock()
	return c, nil
}

// Remove deletes the entry if present; absent ids are a no-op.
func (s *Store) Remove(localID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, localID)
}

// SweepExpired evicts every entry idle longer than the TTL and returns the
// number of evicted sessions.
func (s *Store) SweepExpired() int {
	now := time.Now().UTC()
	var expired []*Session

	s.mu.Lock()
	for id, sess := range s.sessions {
		if now.Sub(sess.LastAccessedAt) > s.ttl {
			delete(s.sessions, id)
			expired = append(expired, clone(sess))
		}
	}
	hook := s.onEvict
	s.mu.Unlock()

	if hook != nil {
		for _, sess := range expired {
			hook(sess)
		}
	}
	return len(expired)
}

// ListAll returns a snapshot of all live entries. No ordering guarantee.
func (s *Store) ListAll() []*Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, clone(sess))
	}
	return out
}

func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// StartJanitor runs a background sweep until ctx is cancelled. Without it,
// a deployment seeing only speak/stop traffic would rely solely on lazy
// per-access eviction.
func (s *Store) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.SweepExpired()
			}
		}
	}()
}

func clone(sess *Session) *Session {
	c := *sess
	if sess.ICEServers != nil {
		c.ICEServers = append([]any(nil), sess.ICEServers...)
	}
	return &c
}
