package redisstore

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/FranksOps/coursefinder/internal/storage"
	"github.com/google/uuid"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	addr := os.Getenv("COURSEFINDER_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("Skipping Redis store test: COURSEFINDER_TEST_REDIS_ADDR not set")
	}
	s, err := New(context.Background(), Config{Addr: addr, Prefix: "coursefinder-test:" + uuid.NewString() + ":"})
	if err != nil {
		t.Fatalf("Failed to connect to Redis: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_Window(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	start := time.Now()
	window := 60 * time.Second

	hit := func(user string, at time.Time) bool {
		t.Helper()
		ok, err := s.Hit(ctx, user, 3, window, at)
		if err != nil {
			t.Fatalf("hit %s: %v", user, err)
		}
		return ok
	}

	for i := 0; i < 3; i++ {
		if !hit("alice", start.Add(time.Duration(i)*time.Second)) {
			t.Fatalf("hit %d: expected allowed", i+1)
		}
	}
	if hit("alice", start.Add(5*time.Second)) {
		t.Fatal("hit 4: expected rejection")
	}
	if !hit("bob", start.Add(5*time.Second)) {
		t.Fatal("bob: expected allowed")
	}
	if !hit("alice", start.Add(window)) {
		t.Fatal("expected allowed once the window elapsed")
	}
}

func TestStore_InvalidArgs(t *testing.T) {
	s := NewWithClient(nil, "")
	if _, err := s.Hit(context.Background(), "u", 3, 0, time.Now()); !errors.Is(err, storage.ErrInvalidWindow) {
		t.Fatalf("expected ErrInvalidWindow, got %v", err)
	}

	ok, err := s.Hit(context.Background(), "u", 0, time.Minute, time.Now())
	if err != nil || ok {
		t.Fatalf("expected zero limit to reject, got %v, %v", ok, err)
	}
	if s.prefix != DefaultPrefix {
		t.Errorf("expected default prefix %q, got %q", DefaultPrefix, s.prefix)
	}
}

func TestNew_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	if _, err := New(ctx, Config{Addr: "127.0.0.1:1"}); err == nil {
		t.Fatal("expected connection error")
	}
}
