// Package pipeline runs a course search end to end: admission, query
// building, one provider call, scoring and ranking.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/FranksOps/coursefinder/internal/gate"
	"github.com/FranksOps/coursefinder/internal/metrics"
	"github.com/FranksOps/coursefinder/internal/progress"
	"github.com/FranksOps/coursefinder/internal/query"
	"github.com/FranksOps/coursefinder/internal/ranking"
	"github.com/FranksOps/coursefinder/internal/scoring"
	"github.com/FranksOps/coursefinder/internal/serp"
	"github.com/FranksOps/coursefinder/internal/storage"
	"github.com/google/uuid"
)

// DefaultCap is the result cap used when a request does not set one.
const DefaultCap = 5

var (
	// ErrValidation means the query is empty or too short after
	// normalization.
	ErrValidation = query.ErrValidation
	// ErrRateLimited means the user's request budget is spent.
	ErrRateLimited = errors.New("rate limit exceeded")
	// ErrSearchUnavailable means the provider call failed.
	ErrSearchUnavailable = errors.New("search unavailable")
)

// Request is one search as asked for by a user.
type Request struct {
	Query string
	// Platform optionally restricts the search to one supported domain.
	Platform string
	// Cap bounds the returned results (<= 0 uses the pipeline default).
	Cap     int
	UserKey string
}

// Config wires the pipeline's collaborators.
type Config struct {
	Provider serp.Provider
	Gate     gate.Gate
	// History receives a record of every successful search. Optional.
	History storage.HistoryStore
	// DefaultCap applies to requests without a cap (<= 0 uses DefaultCap).
	DefaultCap int
	PageSize   int
	Now        func() time.Time
}

// Pipeline is safe for concurrent use.
type Pipeline struct {
	provider  serp.Provider
	gate      gate.Gate
	history   storage.HistoryStore
	processor scoring.Processor
	cap       int
	pageSize  int
	now       func() time.Time
	logger    *slog.Logger
}

// New creates a pipeline. A nil gate admits everything.
func New(cfg Config, logger *slog.Logger) (*Pipeline, error) {
	if cfg.Provider == nil {
		return nil, fmt.Errorf("pipeline: provider is nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Gate == nil {
		cfg.Gate = gate.Chain{}
	}
	if cfg.DefaultCap <= 0 {
		cfg.DefaultCap = DefaultCap
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Pipeline{
		provider:  cfg.Provider,
		gate:      cfg.Gate,
		history:   cfg.History,
		processor: scoring.Processor{Logger: logger},
		cap:       cfg.DefaultCap,
		pageSize:  cfg.PageSize,
		now:       cfg.Now,
		logger:    logger,
	}, nil
}

// Search runs req. The returned ResultSet is never nil; on error it is
// empty. A rejected or invalid request never reaches the provider, and a
// provider failure still consumes the user's budget.
func (p *Pipeline) Search(ctx context.Context, req Request, rep *progress.Reporter) (*ResultSet, error) {
	logger := p.logger.With("request_id", uuid.NewString(), "user", req.UserKey)
	rs := &ResultSet{PageSize: p.pageSize}

	limit := req.Cap
	if limit <= 0 {
		limit = p.cap
	}

	fail := func(outcome string, err error) (*ResultSet, error) {
		rep.Emit(progress.Failed)
		metrics.SearchesTotal.WithLabelValues(outcome).Inc()
		logger.Info("search failed", "outcome", outcome, "err", err)
		return rs, err
	}

	rep.Emit(progress.Preparing)
	if _, err := query.Validate(req.Query); err != nil {
		return fail(metrics.OutcomeInvalid, err)
	}

	ok, err := p.gate.CheckAndRecord(ctx, req.UserKey)
	if err != nil {
		return fail(metrics.OutcomeRateLimited, fmt.Errorf("%w: %w", ErrRateLimited, err))
	}
	if !ok {
		return fail(metrics.OutcomeRateLimited, ErrRateLimited)
	}

	rep.Emit(progress.Searching)
	q, err := query.Build(req.Query, req.Platform)
	if err != nil {
		return fail(metrics.OutcomeInvalid, err)
	}
	rs.Query = q

	rep.Emit(progress.Querying)
	resp, err := p.provider.Search(ctx, q, limit)
	if err != nil {
		return fail(metrics.OutcomeUnavailable, fmt.Errorf("%w: %w", ErrSearchUnavailable, err))
	}

	rep.Emit(progress.Parsing)
	hits := resp.Hits()

	rep.Emit(progress.Processing)
	candidates := p.processor.Process(hits)
	rs.Results, rs.Survivors = ranking.Rank(candidates, limit)

	p.record(ctx, logger, req, len(rs.Results))

	outcome := metrics.OutcomeOK
	if len(rs.Results) == 0 {
		outcome = metrics.OutcomeEmpty
	}
	metrics.SearchesTotal.WithLabelValues(outcome).Inc()
	metrics.ResultsReturned.Observe(float64(len(rs.Results)))
	logger.Info("search completed",
		"query", q,
		"hits", len(hits),
		"candidates", len(candidates),
		"survivors", rs.Survivors,
		"returned", len(rs.Results),
	)
	rep.Emit(progress.Completed)
	return rs, nil
}

// record appends to history; failures are logged and otherwise ignored.
func (p *Pipeline) record(ctx context.Context, logger *slog.Logger, req Request, n int) {
	if p.history == nil {
		return
	}
	rec := storage.NewRecord(req.UserKey, req.Query, n, p.now())
	if err := p.history.Save(ctx, rec); err != nil {
		logger.Warn("failed to record search history", "err", err)
	}
}
