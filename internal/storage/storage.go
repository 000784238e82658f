// Package storage defines the durable stores behind the rate gate and the
// search history.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// MaxHistory is how many search records are kept per user.
const MaxHistory = 20

// ErrInvalidWindow is returned by RateStore.Hit for a non-positive window.
var ErrInvalidWindow = errors.New("storage: rate window must be positive")

// SearchRecord is one completed search handed to the history store.
type SearchRecord struct {
	ID          string    `json:"id"`
	UserKey     string    `json:"user_key"`
	Query       string    `json:"query"`
	ResultCount int       `json:"result_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewRecord returns a record with a fresh ID stamped at now.
func NewRecord(userKey, query string, resultCount int, now time.Time) *SearchRecord {
	return &SearchRecord{
		ID:          uuid.NewString(),
		UserKey:     userKey,
		Query:       query,
		ResultCount: resultCount,
		CreatedAt:   now.UTC(),
	}
}

// Filter selects search records, newest first.
type Filter struct {
	UserKey string
	Since   *time.Time
	Limit   int
	Offset  int
}

// RateStore keeps fixed per-user request windows.
type RateStore interface {
	// Hit purges every window that started at least window before now,
	// then counts one request for userKey if its live window holds fewer
	// than limit. It reports whether the request was counted. The check and
	// the write are atomic per user key.
	Hit(ctx context.Context, userKey string, limit int, window time.Duration, now time.Time) (bool, error)
	Close() error
}

// HistoryStore appends and lists search records. Implementations keep only
// the newest MaxHistory records per user.
type HistoryStore interface {
	Save(ctx context.Context, rec *SearchRecord) error
	Query(ctx context.Context, filter Filter) ([]*SearchRecord, error)
	Close() error
}

// Backend is a store that serves both rate windows and history.
type Backend interface {
	RateStore
	HistoryStore
}
