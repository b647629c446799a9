// Package fetch provides the low-level transport primitives used by lead-file
// ingestion and domain discovery: a rate-limited retrying HTTP client and an
// FTP file fetcher.
package fetch

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/leadenrich/internal/resilience"
)

// HTTPOptions configures the HTTP client.
type HTTPOptions struct {
	UserAgent  string
	Timeout    time.Duration
	MaxRetries int
	// PerHostRate is the request rate applied to each distinct host.
	// Default 5 req/s with a burst of 5.
	PerHostRate  rate.Limit
	PerHostBurst int
}

// HTTPClient wraps net/http with per-host rate limiting and transient retry.
type HTTPClient struct {
	client *http.Client
	opts   HTTPOptions

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewHTTPClient creates an HTTPClient with the given options.
func NewHTTPClient(opts HTTPOptions) *HTTPClient {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "leadenrich/1.0"
	}
	if opts.PerHostRate == 0 {
		opts.PerHostRate = 5
	}
	if opts.PerHostBurst == 0 {
		opts.PerHostBurst = 5
	}
	return &HTTPClient{
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				MaxConnsPerHost:     20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		opts:     opts,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (c *HTTPClient) limiterFor(rawURL string) *rate.Limiter {
	host := ""
	if u, err := url.Parse(rawURL); err == nil {
		host = u.Host
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	lim, ok := c.limiters[host]
	if !ok {
		lim = rate.NewLimiter(c.opts.PerHostRate, c.opts.PerHostBurst)
		c.limiters[host] = lim
	}
	return lim
}

func (c *HTTPClient) do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if err := c.limiterFor(req.URL.String()).Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "fetch: rate limiter wait")
	}

	return resilience.DoVal(ctx, resilience.RetryConfig{
		MaxAttempts:    c.opts.MaxRetries,
		InitialBackoff: time.Second,
		OnRetry:        resilience.RetryLogger("http", req.Method+" "+req.URL.Host),
	}, func(ctx context.Context) (*http.Response, error) {
		resp, err := c.client.Do(req.Clone(ctx))
		if err != nil {
			return nil, resilience.NewTransientError(err, 0)
		}
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			_ = resp.Body.Close()
			return nil, resilience.NewTransientError(
				eris.Errorf("fetch: http %d from %s", resp.StatusCode, req.URL), resp.StatusCode)
		}
		return resp, nil
	})
}

// Download fetches rawURL and returns the response body. The caller must
// close it.
func (c *HTTPClient) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "fetch: create request")
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)

	resp, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, eris.Errorf("fetch: unexpected status %d from %s", resp.StatusCode, rawURL)
	}
	return resp.Body, nil
}

// Head issues a HEAD request and returns the status code. Used by domain
// discovery to verify candidate domains cheaply.
func (c *HTTPClient) Head(ctx context.Context, rawURL string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return 0, eris.Wrap(err, "fetch: create head request")
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)

	if err := c.limiterFor(rawURL).Wait(ctx); err != nil {
		return 0, eris.Wrap(err, "fetch: rate limiter wait")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, eris.Wrap(err, "fetch: head")
	}
	defer resp.Body.Close() //nolint:errcheck

	zap.L().Debug("fetch: head probe",
		zap.String("url", rawURL),
		zap.Int("status", resp.StatusCode),
	)
	return resp.StatusCode, nil
}
