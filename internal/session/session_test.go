package session

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/FranksOps/coursefinder/internal/pipeline"
	"github.com/FranksOps/coursefinder/internal/ranking"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resultSet(n int) *pipeline.ResultSet {
	rs := &pipeline.ResultSet{PageSize: 2, Survivors: n}
	for i := 0; i < n; i++ {
		var r ranking.Result
		r.Link = fmt.Sprintf("https://mega.nz/%d", i)
		rs.Results = append(rs.Results, r)
	}
	return rs
}

func TestStore_PutGet(t *testing.T) {
	s := New(10)
	s.Put("u1", "go", resultSet(3))

	sess, ok := s.Get("u1")
	require.True(t, ok)
	assert.Equal(t, "go", sess.Query)
	assert.Equal(t, 3, sess.Results.Len())

	s.Put("u1", "rust", resultSet(1))
	sess, _ = s.Get("u1")
	assert.Equal(t, "rust", sess.Query)
	assert.Equal(t, 1, s.Len())

	s.Delete("u1")
	_, ok = s.Get("u1")
	assert.False(t, ok)
}

func TestStore_EvictsLeastRecentlyUsed(t *testing.T) {
	s := New(2)
	s.Put("a", "qa", resultSet(1))
	s.Put("b", "qb", resultSet(1))
	_, _ = s.Get("a")
	s.Put("c", "qc", resultSet(1))

	_, ok := s.Get("b")
	assert.False(t, ok, "b was least recently used")
	_, ok = s.Get("a")
	assert.True(t, ok)
	_, ok = s.Get("c")
	assert.True(t, ok)
	assert.Equal(t, 2, s.Len())
}

func TestStore_TTL(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := New(10, WithTTL(time.Hour), WithClock(func() time.Time { return now }))
	s.Put("u", "go", resultSet(1))

	now = now.Add(30 * time.Minute)
	_, ok := s.Get("u")
	assert.True(t, ok)

	now = now.Add(31 * time.Minute)
	_, ok = s.Get("u")
	assert.False(t, ok)
	assert.Zero(t, s.Len())
}

func TestStore_Page(t *testing.T) {
	s := New(10)
	s.Put("u", "go", resultSet(5))

	view, ok := s.Page("u", 2)
	require.True(t, ok)
	items := view.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "https://mega.nz/4", items[0].Link)

	sess, _ := s.Get("u")
	assert.Equal(t, 0, sess.Results.Page, "stored set must not move")

	_, ok = s.Page("u", 3)
	assert.False(t, ok)
	_, ok = s.Page("nobody", 0)
	assert.False(t, ok)
}

func TestStore_PageRacesWithReaders(t *testing.T) {
	s := New(10)
	rs := resultSet(6)
	s.Put("u", "go", rs)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			s.Page("u", i%3)
		}(i)
		go func() {
			defer wg.Done()
			_ = rs.Page
			_ = rs.Items()
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, rs.Page)
}

func TestStore_PageWithoutResults(t *testing.T) {
	s := New(10)
	s.Put("u", "go", nil)
	_, ok := s.Page("u", 0)
	assert.False(t, ok)
}

func TestStore_Concurrent(t *testing.T) {
	s := New(50)
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("u%d", i)
			s.Put(key, "q", resultSet(3))
			s.Get(key)
			s.Page(key, 1)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 50, s.Len())
}

func TestNew_DefaultSize(t *testing.T) {
	s := New(0)
	for i := 0; i < DefaultMaxEntries+5; i++ {
		s.Put(fmt.Sprint(i), "q", nil)
	}
	assert.Equal(t, DefaultMaxEntries, s.Len())
}
