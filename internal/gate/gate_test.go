package gate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/FranksOps/coursefinder/internal/storage"
	"github.com/FranksOps/coursefinder/internal/storage/sqlite"
	"github.com/FranksOps/coursefinder/pkg/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock { return &clock{t: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// exercise runs the limit=3, window=60s scenario against g.
func exercise(t *testing.T, g Gate, clk *clock) {
	t.Helper()
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		ok, err := g.CheckAndRecord(ctx, "u1")
		require.NoError(t, err)
		require.True(t, ok, "request %d should be allowed", i)
		clk.Advance(time.Second)
	}

	ok, err := g.CheckAndRecord(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok, "4th request should be rejected")

	ok, err = g.CheckAndRecord(ctx, "u2")
	require.NoError(t, err)
	assert.True(t, ok, "other users keep their own budget")

	clk.Advance(61 * time.Second)
	ok, err = g.CheckAndRecord(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, ok, "request after the window should be allowed")
}

func TestMemory_Window(t *testing.T) {
	clk := newClock()
	exercise(t, NewMemory(3, 60*time.Second, ratelimit.WithClock(clk.Now)), clk)
}

func TestDurable_SQLiteWindow(t *testing.T) {
	store, err := sqlite.New("file:gate_durable?mode=memory&cache=shared")
	require.NoError(t, err)
	defer store.Close()

	clk := newClock()
	g := NewDurable(store, DurableConfig{Limit: 3, Window: 60 * time.Second, Now: clk.Now}, nil)
	exercise(t, g, clk)
}

func TestChain_Window(t *testing.T) {
	store, err := sqlite.New("file:gate_chain?mode=memory&cache=shared")
	require.NoError(t, err)
	defer store.Close()

	clk := newClock()
	g := Chain{
		NewMemory(3, 60*time.Second, ratelimit.WithClock(clk.Now)),
		NewDurable(store, DurableConfig{Limit: 3, Window: 60 * time.Second, Now: clk.Now}, nil),
	}
	exercise(t, g, clk)
}

type brokenStore struct{ calls int }

func (b *brokenStore) Hit(context.Context, string, int, time.Duration, time.Time) (bool, error) {
	b.calls++
	return false, errors.New("database is locked")
}
func (b *brokenStore) Close() error { return nil }

var _ storage.RateStore = (*brokenStore)(nil)

func TestDurable_FailOpen(t *testing.T) {
	g := NewDurable(&brokenStore{}, DurableConfig{Limit: 1, Window: time.Minute, FailOpen: true}, nil)
	for i := 0; i < 5; i++ {
		ok, err := g.CheckAndRecord(context.Background(), "u")
		require.NoError(t, err)
		assert.True(t, ok)
	}
}

func TestDurable_FailClosed(t *testing.T) {
	g := NewDurable(&brokenStore{}, DurableConfig{Limit: 1, Window: time.Minute}, nil)
	ok, err := g.CheckAndRecord(context.Background(), "u")
	assert.False(t, ok)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database is locked")
}

func TestChain_ShortCircuits(t *testing.T) {
	deny := Func(func(context.Context, string) (bool, error) { return false, nil })
	store := &brokenStore{}
	g := Chain{deny, NewDurable(store, DurableConfig{Limit: 1, Window: time.Minute}, nil)}

	ok, err := g.CheckAndRecord(context.Background(), "u")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, store.calls, "later layer must not run after a rejection")
}

func TestChain_Empty(t *testing.T) {
	ok, err := Chain{}.CheckAndRecord(context.Background(), "u")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemory_ConcurrentSameUser(t *testing.T) {
	g := NewMemory(10, time.Minute)
	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, _ := g.CheckAndRecord(context.Background(), "same")
			if ok {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 10, allowed)
	assert.Zero(t, g.Remaining("same"))
}
