package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/FranksOps/coursefinder/pkg/rotate"
)

// DefaultUserAgents is a small set of current desktop browser User-Agents.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:122.0) Gecko/20100101 Firefox/122.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.3 Safari/605.1.15",
}

// defaultMaxBody bounds how much of a response body Get will buffer.
const defaultMaxBody = 8 << 20

// DefaultMaxRedirects is the redirect cap used when Config leaves it at 0.
const DefaultMaxRedirects = 10

const redacted = "REDACTED"

// StatusError reports a response outside the 2xx range.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// Config defines the setup for the HTTP Client.
type Config struct {
	Timeout time.Duration
	// MaxRedirects caps followed redirects (0 = DefaultMaxRedirects); a
	// negative value returns the first redirect response as is.
	MaxRedirects int
	// MaxBodyBytes bounds buffered response bodies (0 = 8 MiB).
	MaxBodyBytes int64
	// UserAgents rotates the User-Agent header per request (nil = DefaultUserAgents).
	UserAgents []string
	// SecretParams names query parameters whose values are masked in
	// returned errors.
	SecretParams []string
	// Provide a custom Transport, e.g. for uTLS fingerprinting
	Transport http.RoundTripper
}

// Client wraps a standard http.Client with a fixed timeout, a redirect
// policy and User-Agent rotation.
type Client struct {
	*http.Client
	agents  *rotate.Ring[string]
	maxBody int64
	secrets []string
}

// New creates a new HTTP client based on the provided configuration.
func New(cfg Config) (*Client, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBody
	}
	if cfg.MaxRedirects == 0 {
		cfg.MaxRedirects = DefaultMaxRedirects
	}

	c := &http.Client{
		Timeout: cfg.Timeout,
	}

	if cfg.MaxRedirects > 0 {
		c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			if len(via) >= cfg.MaxRedirects {
				return fmt.Errorf("httpclient: stopped after %d redirects", cfg.MaxRedirects)
			}
			return nil
		}
	} else {
		c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	if cfg.Transport != nil {
		c.Transport = cfg.Transport
	}

	return &Client{
		Client:  c,
		agents:  rotate.NewRing(cfg.UserAgents, DefaultUserAgents...),
		maxBody: cfg.MaxBodyBytes,
		secrets: cfg.SecretParams,
	}, nil
}

// Do executes an HTTP request bound to ctx. A User-Agent is set unless the
// request already carries one.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if ctx == nil {
		return nil, errors.New("httpclient: context cannot be nil")
	}

	reqWithCtx := req.Clone(ctx)
	if reqWithCtx.Header.Get("User-Agent") == "" {
		reqWithCtx.Header.Set("User-Agent", c.agents.Next())
	}

	resp, err := c.Client.Do(reqWithCtx)
	if err != nil {
		return nil, fmt.Errorf("httpclient: %w", err)
	}
	return resp, nil
}

// Get issues a GET to rawURL with params appended to its query string and
// returns the buffered body. Responses outside 2xx yield a *StatusError.
func (c *Client) Get(ctx context.Context, rawURL string, params url.Values) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("httpclient: parse url: %w", err)
	}
	if len(params) > 0 {
		q := u.Query()
		for k, vs := range params {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("httpclient: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := c.Do(ctx, req)
	if err != nil {
		return nil, c.redact(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody))
	if err != nil {
		return nil, fmt.Errorf("httpclient: read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := string(body)
		if len(snippet) > 256 {
			snippet = snippet[:256]
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: snippet}
	}
	return body, nil
}

// redact masks secret query values in the URL carried by a *url.Error.
func (c *Client) redact(err error) error {
	var uerr *url.Error
	if len(c.secrets) == 0 || !errors.As(err, &uerr) {
		return err
	}
	uerr.URL = RedactURL(uerr.URL, c.secrets...)
	return err
}

// RedactURL replaces the values of the named query parameters in rawURL.
// An unparseable URL is dropped entirely.
func RedactURL(rawURL string, params ...string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return redacted
	}
	q := u.Query()
	changed := false
	for _, p := range params {
		if q.Has(p) {
			q.Set(p, redacted)
			changed = true
		}
	}
	if changed {
		u.RawQuery = q.Encode()
	}
	return u.String()
}
