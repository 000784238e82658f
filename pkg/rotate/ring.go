package rotate

import (
	"crypto/rand"
	"math/big"
	"sync/atomic"
)

// Ring hands out items of a fixed set in round-robin order.
// It is safe for concurrent use.
type Ring[T any] struct {
	items   []T
	counter atomic.Uint64
}

// NewRing creates a ring over a copy of items. If items is empty the
// fallback set is used instead.
func NewRing[T any](items []T, fallback ...T) *Ring[T] {
	if len(items) == 0 {
		items = fallback
	}
	copied := make([]T, len(items))
	copy(copied, items)
	return &Ring[T]{items: copied}
}

// Next returns the next item, wrapping after the last one. The zero value
// is returned for an empty ring.
func (r *Ring[T]) Next() T {
	var zero T
	if len(r.items) == 0 {
		return zero
	}
	idx := r.counter.Add(1) - 1
	return r.items[idx%uint64(len(r.items))]
}

// Random returns a random item using crypto/rand, falling back to Next if
// the random source fails.
func (r *Ring[T]) Random() T {
	var zero T
	if len(r.items) == 0 {
		return zero
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(r.items))))
	if err != nil {
		return r.Next()
	}
	return r.items[n.Int64()]
}

// Len reports the number of items in the ring.
func (r *Ring[T]) Len() int {
	return len(r.items)
}

// All returns a copy of the items.
func (r *Ring[T]) All() []T {
	copied := make([]T, len(r.items))
	copy(copied, r.items)
	return copied
}
