// Package redisstore keeps rate windows in Redis so several processes can
// share one budget per user.
package redisstore

import (
	"context"
	"fmt"
	"time"

	"github.com/FranksOps/coursefinder/internal/storage"
	"github.com/redis/go-redis/v9"
)

var _ storage.RateStore = (*Store)(nil)

// DefaultPrefix namespaces window keys.
const DefaultPrefix = "coursefinder:rate:"

// hitScript resets the window when it is missing or elapsed, otherwise
// increments below the limit. Keys expire with their window, so no sweep
// across users is needed.
var hitScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

local start = tonumber(redis.call('HGET', key, 'start'))
if start == nil or start + window <= now then
	redis.call('HSET', key, 'start', now, 'count', 1)
	redis.call('PEXPIRE', key, window)
	return 1
end

local count = tonumber(redis.call('HGET', key, 'count'))
if count >= limit then
	return 0
end
redis.call('HINCRBY', key, 'count', 1)
return 1
`)

// Config configures the Redis connection.
type Config struct {
	Addr     string
	Password string
	DB       int
	// Prefix defaults to DefaultPrefix.
	Prefix string
}

// Store is a storage.RateStore backed by Redis.
type Store struct {
	client redis.UniversalClient
	prefix string
}

// New connects to Redis and verifies the connection.
func New(ctx context.Context, cfg Config) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redisstore: ping %s: %w", cfg.Addr, err)
	}
	return NewWithClient(client, cfg.Prefix), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{client: client, prefix: prefix}
}

func (s *Store) Hit(ctx context.Context, userKey string, limit int, window time.Duration, now time.Time) (bool, error) {
	if window <= 0 {
		return false, storage.ErrInvalidWindow
	}
	if limit <= 0 {
		return false, nil
	}

	n, err := hitScript.Run(ctx, s.client,
		[]string{s.prefix + userKey},
		now.UnixMilli(), window.Milliseconds(), limit,
	).Int()
	if err != nil {
		return false, fmt.Errorf("redisstore: hit: %w", err)
	}
	return n == 1, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}
