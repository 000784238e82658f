package ratelimit

import (
	"context"
	"time"
)

// Pacer enforces a fixed pause after an operation completes. Idle time
// before the operation does not count toward the pause.
// It is safe for concurrent use by multiple goroutines.
type Pacer struct {
	interval time.Duration
}

// NewPacer creates a pacer pausing for interval. If interval is <= 0, the
// pacer does not block.
func NewPacer(interval time.Duration) *Pacer {
	if interval < 0 {
		interval = 0
	}
	return &Pacer{interval: interval}
}

// Interval reports the configured pause.
func (p *Pacer) Interval() time.Duration {
	if p == nil {
		return 0
	}
	return p.interval
}

// Pause blocks for the full interval, or until the context is canceled.
func (p *Pacer) Pause(ctx context.Context) error {
	if p == nil || p.interval == 0 {
		return nil
	}

	timer := time.NewTimer(p.interval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
