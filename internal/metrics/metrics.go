package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Search outcomes used as the "outcome" label.
const (
	OutcomeOK          = "ok"
	OutcomeEmpty       = "empty"
	OutcomeInvalid     = "invalid"
	OutcomeRateLimited = "rate_limited"
	OutcomeUnavailable = "unavailable"
)

var (
	SearchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coursefinder_searches_total",
			Help: "Total number of search requests by outcome",
		},
		[]string{"outcome"},
	)

	ProviderDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "coursefinder_provider_duration_seconds",
			Help:    "Duration of search provider calls in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"status"},
	)

	GateDenials = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coursefinder_gate_denials_total",
			Help: "Requests rejected by the rate gate, by layer",
		},
		[]string{"layer"},
	)

	GateFaults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coursefinder_gate_faults_total",
			Help: "Rate store faults, by layer and resulting decision",
		},
		[]string{"layer", "decision"},
	)

	ItemsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coursefinder_items_dropped_total",
			Help: "Provider hits dropped during processing, by reason",
		},
		[]string{"reason"},
	)

	ResultsReturned = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "coursefinder_results_returned",
			Help:    "Number of ranked results returned per search",
			Buckets: []float64{0, 1, 2, 3, 5, 10, 20},
		},
	)

	ProgressFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "coursefinder_progress_failures_total",
			Help: "Progress emissions whose delivery failed",
		},
	)
)

// ObserveProvider records the latency of one provider call.
func ObserveProvider(d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	ProviderDuration.WithLabelValues(status).Observe(d.Seconds())
}

// Server encapsulates an HTTP server for Prometheus metrics.
type Server struct {
	srv *http.Server
}

// Start begins listening on the specified port and exposes /metrics.
func Start(port int, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "err", err)
		}
	}()

	return &Server{srv: srv}
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
