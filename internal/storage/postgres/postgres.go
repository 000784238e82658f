package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/FranksOps/coursefinder/internal/storage"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ensure postgresBackend implements storage.Backend
var _ storage.Backend = (*postgresBackend)(nil)

type postgresBackend struct {
	pool *pgxpool.Pool
}

const schema = `
CREATE TABLE IF NOT EXISTS rate_windows (
	user_key TEXT PRIMARY KEY,
	search_count INTEGER NOT NULL,
	window_start TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS search_history (
	id TEXT PRIMARY KEY,
	user_key TEXT NOT NULL,
	query TEXT NOT NULL,
	result_count INTEGER NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_search_history_user ON search_history (user_key, created_at DESC);
`

// New creates a new Postgres-backed storage.Backend.
func New(ctx context.Context, dsn string) (storage.Backend, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	_, err = pool.Exec(ctx, schema)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: schema: %w", err)
	}

	return &postgresBackend{pool: pool}, nil
}

func (b *postgresBackend) Hit(ctx context.Context, userKey string, limit int, window time.Duration, now time.Time) (bool, error) {
	if window <= 0 {
		return false, storage.ErrInvalidWindow
	}
	if limit <= 0 {
		return false, nil
	}

	var allowed bool
	err := pgx.BeginFunc(ctx, b.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM rate_windows WHERE window_start <= $1`, now.Add(-window)); err != nil {
			return fmt.Errorf("purge windows: %w", err)
		}

		tag, err := tx.Exec(ctx, `
		INSERT INTO rate_windows (user_key, search_count, window_start) VALUES ($1, 1, $2)
		ON CONFLICT (user_key) DO UPDATE SET search_count = rate_windows.search_count + 1
		WHERE rate_windows.search_count < $3
		`, userKey, now, limit)
		if err != nil {
			return fmt.Errorf("record hit: %w", err)
		}
		allowed = tag.RowsAffected() > 0
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("postgres: %w", err)
	}
	return allowed, nil
}

func (b *postgresBackend) Save(ctx context.Context, rec *storage.SearchRecord) error {
	err := pgx.BeginFunc(ctx, b.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
		INSERT INTO search_history (id, user_key, query, result_count, created_at)
		VALUES ($1, $2, $3, $4, $5)
		`, rec.ID, rec.UserKey, rec.Query, rec.ResultCount, rec.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert history: %w", err)
		}

		_, err = tx.Exec(ctx, `
		DELETE FROM search_history WHERE user_key = $1 AND id NOT IN (
			SELECT id FROM search_history WHERE user_key = $1
			ORDER BY created_at DESC, id DESC LIMIT $2
		)
		`, rec.UserKey, storage.MaxHistory)
		if err != nil {
			return fmt.Errorf("trim history: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	return nil
}

func (b *postgresBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.SearchRecord, error) {
	query := `SELECT id, user_key, query, result_count, created_at FROM search_history WHERE 1=1`
	args := []any{}
	argID := 1

	if filter.UserKey != "" {
		query += fmt.Sprintf(` AND user_key = $%d`, argID)
		args = append(args, filter.UserKey)
		argID++
	}
	if filter.Since != nil {
		query += fmt.Sprintf(` AND created_at >= $%d`, argID)
		args = append(args, *filter.Since)
		argID++
	}

	query += ` ORDER BY created_at DESC, id DESC`

	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, argID)
		args = append(args, filter.Limit)
		argID++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argID)
		args = append(args, filter.Offset)
	}

	rows, err := b.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: query history: %w", err)
	}
	defer rows.Close()

	var results []*storage.SearchRecord
	for rows.Next() {
		var r storage.SearchRecord
		if err := rows.Scan(&r.ID, &r.UserKey, &r.Query, &r.ResultCount, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan history: %w", err)
		}
		r.CreatedAt = r.CreatedAt.UTC()
		results = append(results, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: query history: %w", err)
	}

	return results, nil
}

func (b *postgresBackend) Close() error {
	b.pool.Close()
	return nil
}
