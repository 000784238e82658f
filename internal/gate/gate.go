// Package gate admits or rejects searches against per-user request budgets.
package gate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/FranksOps/coursefinder/internal/metrics"
	"github.com/FranksOps/coursefinder/internal/storage"
	"github.com/FranksOps/coursefinder/pkg/ratelimit"
)

// Gate decides whether a user may run one more search, recording the
// request when it does. A false result with a nil error is a rejection.
type Gate interface {
	CheckAndRecord(ctx context.Context, userKey string) (bool, error)
}

// Func adapts a function to Gate.
type Func func(ctx context.Context, userKey string) (bool, error)

func (f Func) CheckAndRecord(ctx context.Context, userKey string) (bool, error) {
	return f(ctx, userKey)
}

// Memory is a per-process sliding window.
type Memory struct {
	w *ratelimit.Window
}

var _ Gate = (*Memory)(nil)

// NewMemory allows limit requests per user in any trailing window.
func NewMemory(limit int, window time.Duration, opts ...ratelimit.WindowOption) *Memory {
	return &Memory{w: ratelimit.NewWindow(limit, window, opts...)}
}

func (m *Memory) CheckAndRecord(_ context.Context, userKey string) (bool, error) {
	if m.w.Allow(userKey) {
		return true, nil
	}
	metrics.GateDenials.WithLabelValues("memory").Inc()
	return false, nil
}

// Remaining reports the budget left for userKey in the current window.
func (m *Memory) Remaining(userKey string) int {
	return m.w.Remaining(userKey)
}

// DurableConfig configures a store-backed gate.
type DurableConfig struct {
	Limit  int
	Window time.Duration
	// FailOpen admits the request when the store faults. Without it the
	// request is rejected and the fault returned.
	FailOpen bool
	// Layer labels logs and metrics; defaults to "durable".
	Layer string
	// Now overrides the clock, mainly for tests.
	Now func() time.Time
}

// Durable enforces a fixed window held in a storage.RateStore, which may be
// shared across processes.
type Durable struct {
	store  storage.RateStore
	cfg    DurableConfig
	logger *slog.Logger
}

var _ Gate = (*Durable)(nil)

// NewDurable wraps store.
func NewDurable(store storage.RateStore, cfg DurableConfig, logger *slog.Logger) *Durable {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Layer == "" {
		cfg.Layer = "durable"
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Durable{store: store, cfg: cfg, logger: logger}
}

func (d *Durable) CheckAndRecord(ctx context.Context, userKey string) (bool, error) {
	ok, err := d.store.Hit(ctx, userKey, d.cfg.Limit, d.cfg.Window, d.cfg.Now())
	if err != nil {
		if d.cfg.FailOpen {
			metrics.GateFaults.WithLabelValues(d.cfg.Layer, "allow").Inc()
			d.logger.Warn("rate store unavailable, admitting request",
				"layer", d.cfg.Layer, "user", userKey, "err", err)
			return true, nil
		}
		metrics.GateFaults.WithLabelValues(d.cfg.Layer, "deny").Inc()
		return false, fmt.Errorf("gate: %s: %w", d.cfg.Layer, err)
	}
	if !ok {
		metrics.GateDenials.WithLabelValues(d.cfg.Layer).Inc()
	}
	return ok, nil
}

// Chain admits a request only when every gate does. Gates run in order and
// the first rejection or error stops the chain, so later layers are not
// charged for a request an earlier one refused.
type Chain []Gate

func (c Chain) CheckAndRecord(ctx context.Context, userKey string) (bool, error) {
	for _, g := range c {
		ok, err := g.CheckAndRecord(ctx, userKey)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}
