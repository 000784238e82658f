// Package session keeps each user's latest search so results can be paged
// and inspected without searching again.
package session

import (
	"sync"
	"time"

	"github.com/FranksOps/coursefinder/internal/pipeline"
	"github.com/golang/groupcache/lru"
)

// DefaultMaxEntries bounds the number of users held at once.
const DefaultMaxEntries = 1000

// Session is one user's most recent search.
type Session struct {
	Query     string
	Results   *pipeline.ResultSet
	CreatedAt time.Time
}

// Store is a bounded, least-recently-used map of sessions keyed by user.
// It is safe for concurrent use.
type Store struct {
	mu    sync.Mutex
	cache *lru.Cache
	ttl   time.Duration
	now   func() time.Time
}

// Option customizes a Store.
type Option func(*Store)

// WithTTL expires sessions older than ttl on access.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) { s.ttl = ttl }
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New returns a store holding at most maxEntries sessions.
func New(maxEntries int, opts ...Option) *Store {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	s := &Store{cache: lru.New(maxEntries), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Put replaces the session for userKey.
func (s *Store) Put(userKey, query string, rs *pipeline.ResultSet) *Session {
	sess := &Session{Query: query, Results: rs, CreatedAt: s.now()}
	s.mu.Lock()
	s.cache.Add(userKey, sess)
	s.mu.Unlock()
	return sess
}

// Get returns the session for userKey and marks it recently used.
func (s *Store) Get(userKey string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.cache.Get(userKey)
	if !ok {
		return nil, false
	}
	sess := v.(*Session)
	if s.ttl > 0 && s.now().Sub(sess.CreatedAt) > s.ttl {
		s.cache.Remove(userKey)
		return nil, false
	}
	return sess, true
}

// Page returns a copy of userKey's result set positioned on page p. The
// stored set is never modified. It reports false when there is no session
// or p is out of range.
func (s *Store) Page(userKey string, p int) (pipeline.ResultSet, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.cache.Get(userKey)
	if !ok {
		return pipeline.ResultSet{}, false
	}
	rs := v.(*Session).Results
	if rs == nil {
		return pipeline.ResultSet{}, false
	}
	view := *rs
	if !view.SetPage(p) {
		return pipeline.ResultSet{}, false
	}
	return view, true
}

// Delete forgets userKey's session.
func (s *Store) Delete(userKey string) {
	s.mu.Lock()
	s.cache.Remove(userKey)
	s.mu.Unlock()
}

// Len reports how many sessions are held.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Len()
}
