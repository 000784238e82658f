// Package progress delivers best-effort status updates while a search runs.
package progress

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/FranksOps/coursefinder/internal/metrics"
	"github.com/FranksOps/coursefinder/pkg/ratelimit"
	"github.com/FranksOps/coursefinder/pkg/rotate"
)

// Stage is one step of a search as reported to the user.
type Stage string

const (
	Preparing  Stage = "preparing"
	Searching  Stage = "searching"
	Querying   Stage = "querying provider"
	Parsing    Stage = "parsing"
	Processing Stage = "processing"
	Completed  Stage = "completed"
	Failed     Stage = "failed"
)

var labels = map[Stage]string{
	Preparing:  "Preparing search...",
	Searching:  "Searching for courses...",
	Querying:   "Querying search provider...",
	Parsing:    "Parsing results...",
	Processing: "Processing results...",
	Completed:  "Search completed",
	Failed:     "Search failed",
}

// Label is the human readable text for s.
func (s Stage) Label() string {
	if l, ok := labels[s]; ok {
		return l
	}
	return string(s)
}

// Frames are the decorative glyphs cycled through by successive emissions.
var Frames = []string{"⏳", "⌛", "🔍", "📚", "🎯"}

const (
	DefaultPace   = 300 * time.Millisecond
	DefaultBuffer = 8
)

// Sink delivers one status text, for example by editing a chat message.
type Sink func(ctx context.Context, text string) error

// Config configures a Reporter.
type Config struct {
	// Pace is the minimum spacing after a successful delivery (0 = DefaultPace,
	// negative disables pacing).
	Pace time.Duration
	// Buffer bounds queued emissions; further ones are dropped.
	Buffer int
	Frames []string
}

// Reporter queues status texts for a single delivery goroutine. Emit never
// blocks and delivery failures never reach the caller. A nil *Reporter is
// valid and discards everything.
type Reporter struct {
	sink   Sink
	logger *slog.Logger
	frames *rotate.Ring[string]
	pacer  *ratelimit.Pacer

	msgs chan string
	stop chan struct{}
	done chan struct{}

	mu      sync.RWMutex
	stopped bool
}

// New starts a reporter delivering through sink. ctx is passed to the sink;
// canceling it ends delivery even if Stop is never called.
func New(ctx context.Context, sink Sink, cfg Config, logger *slog.Logger) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pace == 0 {
		cfg.Pace = DefaultPace
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = DefaultBuffer
	}

	r := &Reporter{
		sink:   sink,
		logger: logger,
		frames: rotate.NewRing(cfg.Frames, Frames...),
		pacer:  ratelimit.NewPacer(cfg.Pace),
		msgs:   make(chan string, cfg.Buffer),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go r.run(ctx)
	return r
}

// Emit queues stage for delivery, dropping it if the queue is full or the
// reporter has stopped.
func (r *Reporter) Emit(stage Stage) {
	if r == nil {
		return
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.stopped {
		return
	}

	text := r.frames.Next() + " " + stage.Label()
	select {
	case r.msgs <- text:
	default:
		r.logger.Debug("progress queue full, dropping", "stage", string(stage))
	}
}

// Stop ends emission. Already queued texts are still delivered, without
// pacing. Stop is safe to call more than once.
func (r *Reporter) Stop() {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}
	r.stopped = true
	close(r.stop)
}

// Done is closed once the delivery goroutine has exited.
func (r *Reporter) Done() <-chan struct{} {
	if r == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return r.done
}

func (r *Reporter) run(ctx context.Context) {
	defer close(r.done)

	paceCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-r.stop:
			cancel()
		case <-paceCtx.Done():
		}
	}()

	for {
		select {
		case text := <-r.msgs:
			if r.deliver(ctx, text) {
				_ = r.pacer.Pause(paceCtx)
			}
		case <-r.stop:
			for {
				select {
				case text := <-r.msgs:
					r.deliver(ctx, text)
				default:
					return
				}
			}
		case <-ctx.Done():
			return
		}
	}
}

func (r *Reporter) deliver(ctx context.Context, text string) bool {
	if r.sink == nil {
		return false
	}
	err := func() (err error) {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("progress: sink panic: %v", p)
			}
		}()
		return r.sink(ctx, text)
	}()
	if err != nil {
		metrics.ProgressFailures.Inc()
		r.logger.Debug("progress delivery failed", "err", err)
		return false
	}
	return true
}
