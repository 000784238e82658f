package serp

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/FranksOps/coursefinder/internal/fingerprint"
	"github.com/FranksOps/coursefinder/internal/metrics"
	"github.com/FranksOps/coursefinder/pkg/httpclient"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

// DefaultEndpoint is the SerpAPI search URL.
const DefaultEndpoint = "https://serpapi.com/search"

// Config configures the SerpAPI client.
type Config struct {
	Endpoint string
	APIKey   string
	// Engine defaults to "google".
	Engine  string
	Timeout time.Duration
	// QPS caps provider calls per second across all users (0 = unlimited).
	QPS   float64
	Burst int
	// Fingerprint selects a TLS ClientHello profile; empty uses the Go stack.
	Fingerprint fingerprint.Profile
	UserAgents  []string
}

// SerpAPI is a Provider backed by the SerpAPI JSON endpoint.
type SerpAPI struct {
	cfg     Config
	client  *httpclient.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

var _ Provider = (*SerpAPI)(nil)

// NewSerpAPI builds a client from cfg.
func NewSerpAPI(cfg Config, logger *slog.Logger) (*SerpAPI, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Engine == "" {
		cfg.Engine = "google"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	var transport http.RoundTripper
	if cfg.Fingerprint != "" {
		t, err := fingerprint.Transport(cfg.Fingerprint)
		if err != nil {
			return nil, fmt.Errorf("serp: %w", err)
		}
		transport = t
	}

	client, err := httpclient.New(httpclient.Config{
		Timeout:      cfg.Timeout,
		UserAgents:   cfg.UserAgents,
		SecretParams: []string{"api_key"},
		Transport:    transport,
	})
	if err != nil {
		return nil, fmt.Errorf("serp: %w", err)
	}

	s := &SerpAPI{cfg: cfg, client: client, logger: logger}
	if cfg.QPS > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.QPS), burst)
	}
	return s, nil
}

// Search issues one request for query and returns organic results plus the
// first MaxRelated related questions. Every failure wraps ErrUnavailable.
func (s *SerpAPI) Search(ctx context.Context, query string, limit int) (*Response, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	num := RequestSize(limit)
	params := url.Values{
		"q":       {query},
		"engine":  {s.cfg.Engine},
		"api_key": {s.cfg.APIKey},
		"num":     {strconv.Itoa(num)},
		"safe":    {"off"},
		"gl":      {"us"},
		"hl":      {"en"},
	}

	start := time.Now()
	body, err := s.client.Get(ctx, s.cfg.Endpoint, params)
	metrics.ObserveProvider(time.Since(start), err)
	if err != nil {
		s.logger.Warn("provider request failed", "err", err, "elapsed", time.Since(start))
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	resp, err := Parse(body)
	if err != nil {
		s.logger.Warn("provider response rejected", "err", err, "bytes", len(body))
		return nil, err
	}
	s.logger.Debug("provider response",
		"num", num,
		"organic", len(resp.Organic),
		"related", len(resp.Related),
		"elapsed", time.Since(start),
	)
	return resp, nil
}

// Parse decodes a SerpAPI response body. Sections other than
// organic_results and people_also_ask are ignored; a body that is not a
// JSON object wraps ErrUnavailable.
func Parse(body []byte) (*Response, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: malformed response body", ErrUnavailable)
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return nil, fmt.Errorf("%w: response is not an object", ErrUnavailable)
	}

	resp := &Response{
		Organic: hits(root.Get("organic_results"), 0),
		Related: hits(root.Get("people_also_ask"), MaxRelated),
	}
	return resp, nil
}

func hits(section gjson.Result, max int) []RawHit {
	if !section.IsArray() {
		return nil
	}
	var out []RawHit
	section.ForEach(func(_, v gjson.Result) bool {
		if max > 0 && len(out) >= max {
			return false
		}
		out = append(out, RawHit{
			Link:    v.Get("link").String(),
			Title:   cleanText(v.Get("title").String()),
			Snippet: cleanText(v.Get("snippet").String()),
		})
		return true
	})
	return out
}
