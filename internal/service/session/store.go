package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/zhouzirui/dietbot/internal/model/intake"
)

// ErrSessionNotFound is returned when a mutation targets a user with no session.
var ErrSessionNotFound = errors.New("session not found")

// Mutation edits a session in place while the store holds its lock.
type Mutation func(*intake.Session)

// Store keeps one intake session per user for the lifetime of the process.
// Sessions live forever unless a TTL is configured, in which case idle
// sessions are purged after the TTL elapses since their last update.
type Store struct {
	mu    sync.Mutex
	cache *cache.Cache
	ttl   time.Duration
	now   func() time.Time
}

// NewStore bootstraps an in-memory store. A ttl <= 0 disables expiry.
func NewStore(ttl time.Duration) *Store {
	expiration := cache.NoExpiration
	cleanup := time.Duration(0)
	if ttl > 0 {
		expiration = ttl
		cleanup = 10 * time.Minute
	}

	return &Store{
		cache: cache.New(expiration, cleanup),
		ttl:   ttl,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Get returns a copy of the user's session. The boolean is false when the
// user has no active flow.
func (s *Store) Get(_ context.Context, userID intake.UserID) (intake.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.load(userID)
	if !ok {
		return intake.Session{}, false
	}
	return stored.Clone(), true
}

// Create provisions a fresh idle session, replacing any previous one.
func (s *Store) Create(_ context.Context, userID intake.UserID) intake.Session {
	fresh := intake.NewSession(userID, s.now())

	s.mu.Lock()
	s.cache.Set(string(userID), &fresh, cache.DefaultExpiration)
	s.mu.Unlock()

	return fresh.Clone()
}

// Update applies mutation to the stored session and returns the result.
func (s *Store) Update(_ context.Context, userID intake.UserID, mutation Mutation) (intake.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.load(userID)
	if !ok {
		return intake.Session{}, ErrSessionNotFound
	}

	updated := stored.Clone()
	mutation(&updated)
	updated.UserID = userID
	updated.UpdatedAt = s.now()

	s.cache.Set(string(userID), &updated, cache.DefaultExpiration)
	return updated.Clone(), nil
}

// Count reports the number of live sessions. Expired sessions that the
// janitor has not purged yet are not counted.
func (s *Store) Count() int {
	return len(s.cache.Items())
}

// TTL returns the configured idle expiry, zero when sessions never expire.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

func (s *Store) load(userID intake.UserID) (*intake.Session, bool) {
	raw, found := s.cache.Get(string(userID))
	if !found {
		return nil, false
	}
	stored, ok := raw.(*intake.Session)
	return stored, ok
}
