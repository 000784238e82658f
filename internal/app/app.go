// Package app assembles the search pipeline and its stores from
// configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/FranksOps/coursefinder/internal/config"
	"github.com/FranksOps/coursefinder/internal/fingerprint"
	"github.com/FranksOps/coursefinder/internal/gate"
	"github.com/FranksOps/coursefinder/internal/pipeline"
	"github.com/FranksOps/coursefinder/internal/progress"
	"github.com/FranksOps/coursefinder/internal/serp"
	"github.com/FranksOps/coursefinder/internal/session"
	"github.com/FranksOps/coursefinder/internal/storage"
	"github.com/FranksOps/coursefinder/internal/storage/postgres"
	"github.com/FranksOps/coursefinder/internal/storage/redisstore"
	"github.com/FranksOps/coursefinder/internal/storage/sqlite"
)

// App holds the long-lived components shared by the CLI and the server.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Pipeline *pipeline.Pipeline
	Sessions *session.Store
	// History is nil when no durable store is configured.
	History storage.HistoryStore

	closers []func() error
}

// Option customizes New.
type Option func(*options)

type options struct {
	provider serp.Provider
}

// WithProvider replaces the SerpAPI client.
func WithProvider(p serp.Provider) Option {
	return func(o *options) { o.provider = p }
}

// New builds an App. The caller must Close it.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{Config: cfg, Logger: logger}

	provider := o.provider
	if provider == nil {
		p, err := newProvider(cfg.SerpAPI, logger)
		if err != nil {
			return nil, err
		}
		provider = p
	}

	gates := gate.Chain{gate.NewMemory(cfg.RateLimit.Limit, cfg.RateLimit.Window)}

	backend, err := openBackend(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	if backend != nil {
		a.closers = append(a.closers, backend.Close)
		a.History = backend
		gates = append(gates, gate.NewDurable(backend, gate.DurableConfig{
			Limit:    cfg.RateLimit.Limit,
			Window:   cfg.RateLimit.Window,
			FailOpen: cfg.RateLimit.FailOpen,
			Layer:    cfg.Store.Driver,
		}, logger))
	}

	if cfg.Redis.Addr != "" {
		rs, err := redisstore.New(ctx, redisstore.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		})
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("app: %w", err)
		}
		a.closers = append(a.closers, rs.Close)
		gates = append(gates, gate.NewDurable(rs, gate.DurableConfig{
			Limit:    cfg.RateLimit.Limit,
			Window:   cfg.RateLimit.Window,
			FailOpen: cfg.RateLimit.FailOpen,
			Layer:    "redis",
		}, logger))
	}

	p, err := pipeline.New(pipeline.Config{
		Provider:   provider,
		Gate:       gates,
		History:    a.History,
		DefaultCap: cfg.Search.DefaultCap,
		PageSize:   cfg.Search.PageSize,
	}, logger)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("app: %w", err)
	}
	a.Pipeline = p

	var sessOpts []session.Option
	if cfg.Session.TTL > 0 {
		sessOpts = append(sessOpts, session.WithTTL(cfg.Session.TTL))
	}
	a.Sessions = session.New(cfg.Session.MaxEntries, sessOpts...)

	logger.Debug("app ready",
		"store", cfg.Store.Driver,
		"redis", cfg.Redis.Addr != "",
		"rate_limit", cfg.RateLimit.Limit,
		"rate_window", cfg.RateLimit.Window,
		"fail_open", cfg.RateLimit.FailOpen,
	)
	return a, nil
}

func newProvider(cfg config.SerpAPIConfig, logger *slog.Logger) (serp.Provider, error) {
	profile, err := fingerprint.ParseProfile(cfg.Fingerprint)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	p, err := serp.NewSerpAPI(serp.Config{
		Endpoint:    cfg.Endpoint,
		APIKey:      cfg.APIKey,
		Timeout:     cfg.Timeout,
		QPS:         cfg.QPS,
		Burst:       cfg.Burst,
		Fingerprint: profile,
		UserAgents:  cfg.UserAgents,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	return p, nil
}

func openBackend(ctx context.Context, cfg config.StoreConfig) (storage.Backend, error) {
	switch cfg.Driver {
	case "", config.DriverNone:
		return nil, nil
	case config.DriverSQLite:
		b, err := sqlite.New(cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
		return b, nil
	case config.DriverPostgres:
		b, err := postgres.New(ctx, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("app: unknown store driver %q", cfg.Driver)
	}
}

// Reporter starts a progress reporter configured for this app.
func (a *App) Reporter(ctx context.Context, sink progress.Sink) *progress.Reporter {
	return progress.New(ctx, sink, progress.Config{
		Pace:   a.Config.Progress.Pace,
		Buffer: a.Config.Progress.Buffer,
	}, a.Logger)
}

// Close releases stores in reverse order of opening.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
