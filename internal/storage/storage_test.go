package storage

import (
	"context"
	"testing"
	"time"
)

func TestNewRecord(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("X", 3600))
	a := NewRecord("u1", "go course", 4, now)
	b := NewRecord("u1", "go course", 4, now)

	if a.ID == "" || a.ID == b.ID {
		t.Fatalf("expected distinct non-empty IDs, got %q and %q", a.ID, b.ID)
	}
	if a.UserKey != "u1" || a.Query != "go course" || a.ResultCount != 4 {
		t.Errorf("unexpected record %+v", a)
	}
	if a.CreatedAt.Location() != time.UTC || !a.CreatedAt.Equal(now) {
		t.Errorf("expected UTC timestamp equal to %v, got %v", now, a.CreatedAt)
	}
}

// Ensure Backend is implementable by a single type.
type mockBackend struct{}

func (m *mockBackend) Hit(ctx context.Context, userKey string, limit int, window time.Duration, now time.Time) (bool, error) {
	return true, nil
}
func (m *mockBackend) Save(ctx context.Context, rec *SearchRecord) error { return nil }
func (m *mockBackend) Query(ctx context.Context, filter Filter) ([]*SearchRecord, error) {
	return nil, nil
}
func (m *mockBackend) Close() error { return nil }

func TestBackend_Interface(t *testing.T) {
	var _ Backend = (*mockBackend)(nil)
	var _ RateStore = (*mockBackend)(nil)
	var _ HistoryStore = (*mockBackend)(nil)
}
