package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/FranksOps/coursefinder/internal/storage"
	_ "modernc.org/sqlite"
)

// ensure sqliteBackend implements storage.Backend
var _ storage.Backend = (*sqliteBackend)(nil)

type sqliteBackend struct {
	db *sql.DB
}

// Timestamps are stored as unix nanoseconds so ordering and window
// arithmetic stay numeric.
const schema = `
CREATE TABLE IF NOT EXISTS rate_windows (
	user_key TEXT PRIMARY KEY,
	search_count INTEGER NOT NULL,
	window_start INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS search_history (
	id TEXT PRIMARY KEY,
	user_key TEXT NOT NULL,
	query TEXT NOT NULL,
	result_count INTEGER NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_search_history_user ON search_history (user_key, created_at);
`

// New creates a new SQLite-backed storage.Backend.
func New(dsn string) (storage.Backend, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	// A single connection serializes writers; SQLite would otherwise
	// report SQLITE_BUSY under concurrent rate checks.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: schema: %w", err)
	}

	return &sqliteBackend{db: db}, nil
}

func (b *sqliteBackend) Hit(ctx context.Context, userKey string, limit int, window time.Duration, now time.Time) (bool, error) {
	if window <= 0 {
		return false, storage.ErrInvalidWindow
	}
	if limit <= 0 {
		return false, nil
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("sqlite: begin: %w", err)
	}
	defer tx.Rollback()

	cutoff := now.Add(-window).UnixNano()
	if _, err := tx.ExecContext(ctx, `DELETE FROM rate_windows WHERE window_start <= ?`, cutoff); err != nil {
		return false, fmt.Errorf("sqlite: purge windows: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
	INSERT INTO rate_windows (user_key, search_count, window_start) VALUES (?, 1, ?)
	ON CONFLICT (user_key) DO UPDATE SET search_count = search_count + 1
	WHERE search_count < ?
	`, userKey, now.UnixNano(), limit)
	if err != nil {
		return false, fmt.Errorf("sqlite: record hit: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: record hit: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("sqlite: commit: %w", err)
	}
	return n > 0, nil
}

func (b *sqliteBackend) Save(ctx context.Context, rec *storage.SearchRecord) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
	INSERT INTO search_history (id, user_key, query, result_count, created_at)
	VALUES (?, ?, ?, ?, ?)
	`, rec.ID, rec.UserKey, rec.Query, rec.ResultCount, rec.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("sqlite: insert history: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
	DELETE FROM search_history WHERE user_key = ? AND id NOT IN (
		SELECT id FROM search_history WHERE user_key = ?
		ORDER BY created_at DESC, rowid DESC LIMIT ?
	)
	`, rec.UserKey, rec.UserKey, storage.MaxHistory)
	if err != nil {
		return fmt.Errorf("sqlite: trim history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	return nil
}

func (b *sqliteBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.SearchRecord, error) {
	query := `SELECT id, user_key, query, result_count, created_at FROM search_history WHERE 1=1`
	args := []any{}

	if filter.UserKey != "" {
		query += ` AND user_key = ?`
		args = append(args, filter.UserKey)
	}
	if filter.Since != nil {
		query += ` AND created_at >= ?`
		args = append(args, filter.Since.UnixNano())
	}

	query += ` ORDER BY created_at DESC, rowid DESC`

	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	} else if filter.Offset > 0 {
		query += ` LIMIT -1`
	}
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query history: %w", err)
	}
	defer rows.Close()

	var results []*storage.SearchRecord
	for rows.Next() {
		var r storage.SearchRecord
		var createdAt int64
		if err := rows.Scan(&r.ID, &r.UserKey, &r.Query, &r.ResultCount, &createdAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan history: %w", err)
		}
		r.CreatedAt = time.Unix(0, createdAt).UTC()
		results = append(results, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: query history: %w", err)
	}

	return results, nil
}

func (b *sqliteBackend) Close() error {
	return b.db.Close()
}
