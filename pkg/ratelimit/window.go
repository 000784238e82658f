package ratelimit

import (
	"hash/maphash"
	"sync"
	"time"
)

const windowShards = 16

// Window is an in-process sliding-window counter keyed by caller identity.
// Each key may record at most limit hits within any trailing window.
//
// Keys are spread over shards so different keys rarely contend; all
// operations for the same key are serialized by its shard lock.
type Window struct {
	limit  int
	window time.Duration
	now    func() time.Time
	seed   maphash.Seed
	shards [windowShards]windowShard
}

type windowShard struct {
	mu   sync.Mutex
	hits map[string][]time.Time
}

// WindowOption customizes a Window.
type WindowOption func(*Window)

// WithClock replaces the time source, mainly for tests.
func WithClock(now func() time.Time) WindowOption {
	return func(w *Window) {
		if now != nil {
			w.now = now
		}
	}
}

// NewWindow creates a sliding window allowing limit hits per window.
// A non-positive limit rejects every hit.
func NewWindow(limit int, window time.Duration, opts ...WindowOption) *Window {
	w := &Window{
		limit:  limit,
		window: window,
		now:    time.Now,
		seed:   maphash.MakeSeed(),
	}
	for i := range w.shards {
		w.shards[i].hits = make(map[string][]time.Time)
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Window) shard(key string) *windowShard {
	return &w.shards[maphash.String(w.seed, key)%windowShards]
}

// Allow prunes hits older than the window for key, then records a new hit
// and returns true unless the remaining hits already reach the limit.
func (w *Window) Allow(key string) bool {
	s := w.shard(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	now := w.now()
	live := prune(s.hits[key], now.Add(-w.window))

	if len(live) >= w.limit {
		s.store(key, live)
		return false
	}

	s.hits[key] = append(live, now)
	return true
}

// Remaining reports how many more hits key may record right now.
func (w *Window) Remaining(key string) int {
	s := w.shard(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	live := prune(s.hits[key], w.now().Add(-w.window))
	s.store(key, live)
	if n := w.limit - len(live); n > 0 {
		return n
	}
	return 0
}

// Reset forgets every hit recorded for key.
func (w *Window) Reset(key string) {
	s := w.shard(key)
	s.mu.Lock()
	delete(s.hits, key)
	s.mu.Unlock()
}

// store keeps live hits for key, dropping the key once it has none.
// Must be called with the shard lock held.
func (s *windowShard) store(key string, live []time.Time) {
	if len(live) == 0 {
		delete(s.hits, key)
		return
	}
	s.hits[key] = live
}

// prune drops the leading hits at or before cutoff. Hits are appended in
// time order so the live ones form a suffix.
func prune(hits []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(hits) && !hits[i].After(cutoff) {
		i++
	}
	return hits[i:]
}
