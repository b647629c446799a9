// Package scrape fetches candidate websites with bounded retries and reduces
// successful HTML pages to structured content for signal extraction.
package scrape

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/leadenrich/internal/model"
	"github.com/sells-group/leadenrich/internal/resilience"
)

const (
	// maxAttempts is the scrape attempt ceiling per website.
	maxAttempts = 2
	// attemptTimeout aborts a single fetch attempt.
	attemptTimeout = 10 * time.Second
	// maxBodyBytes is the raw download ceiling; larger pages are rejected
	// without being parsed.
	maxBodyBytes = 5 << 20
)

// Options tunes the scraper.
type Options struct {
	UserAgent      string
	AttemptTimeout time.Duration
	MaxAttempts    int
	// Rate is the per-scraper request rate (shared across targets; scraping
	// is already serialized per job).
	Rate  rate.Limit
	Burst int
}

// Scraper fetches websites. One Scraper is shared by all jobs in a process.
type Scraper struct {
	client  *http.Client
	limiter *rate.Limiter
	opts    Options
}

// New creates a Scraper.
func New(opts Options) *Scraper {
	if opts.UserAgent == "" {
		opts.UserAgent = "Mozilla/5.0 (compatible; LeadEnrichBot/1.0)"
	}
	if opts.AttemptTimeout == 0 {
		opts.AttemptTimeout = attemptTimeout
	}
	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = maxAttempts
	}
	if opts.Rate == 0 {
		opts.Rate = 10
	}
	if opts.Burst == 0 {
		opts.Burst = 10
	}
	return &Scraper{
		client: &http.Client{
			// Per-attempt deadline comes from the request context.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return errors.New("too many redirects")
				}
				return nil
			},
		},
		limiter: rate.NewLimiter(opts.Rate, opts.Burst),
		opts:    opts,
	}
}

// Scrape fetches the URL with up to MaxAttempts tries. Every attempt appends
// a ScrapeSource entry regardless of outcome. 403/404 responses end the loop
// early: retrying them never helps within a single scrape.
func (s *Scraper) Scrape(ctx context.Context, rawURL string) *model.ScrapeResult {
	target := ensureScheme(rawURL)
	result := &model.ScrapeResult{}
	log := zap.L().With(zap.String("url", target))

	for attempt := 0; attempt < s.opts.MaxAttempts; attempt++ {
		if err := s.limiter.Wait(ctx); err != nil {
			result.Sources = append(result.Sources, model.ScrapeSource{
				URL: target, Error: "Request cancelled",
			})
			return result
		}

		source, content := s.attempt(ctx, target)
		result.Sources = append(result.Sources, source)

		if source.Success {
			result.Success = true
			result.Content = content
			return result
		}

		log.Debug("scrape: attempt failed",
			zap.Int("attempt", attempt+1),
			zap.Int("status", source.StatusCode),
			zap.String("error", source.Error),
		)

		// Hard-missing pages and unusable payloads are not worth a retry.
		if source.StatusCode == http.StatusForbidden || source.StatusCode == http.StatusNotFound {
			return result
		}
		if strings.HasPrefix(source.Error, "Non-HTML content") ||
			source.Error == "Content exceeds maximum size" {
			return result
		}
	}
	return result
}

// attempt performs one fetch with its own timeout and reduces the response.
func (s *Scraper) attempt(ctx context.Context, target string) (model.ScrapeSource, *model.PageContent) {
	source := model.ScrapeSource{URL: target}

	attemptCtx, cancel := context.WithTimeout(ctx, s.opts.AttemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, target, nil)
	if err != nil {
		source.Error = err.Error()
		return source, nil
	}
	req.Header.Set("User-Agent", s.opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			source.Error = "Request timeout"
		} else {
			source.Error = err.Error()
		}
		return source, nil
	}
	defer resp.Body.Close() //nolint:errcheck

	source.StatusCode = resp.StatusCode
	if final := resp.Request.URL.String(); final != target {
		source.RedirectTo = final
	}

	if resp.StatusCode >= 400 {
		source.Error = "HTTP " + resp.Status
		return source, nil
	}

	ct := resp.Header.Get("Content-Type")
	if ct != "" && !strings.Contains(ct, "text/html") && !strings.Contains(ct, "application/xhtml") {
		source.Error = "Non-HTML content type: " + ct
		return source, nil
	}

	// Read one byte past the ceiling to distinguish "at limit" from "over".
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			source.Error = "Request timeout"
		} else {
			source.Error = err.Error()
		}
		return source, nil
	}
	if len(body) > maxBodyBytes {
		source.Error = "Content exceeds maximum size"
		return source, nil
	}

	content, err := ParseHTML(body, resp.Request.URL)
	if err != nil {
		source.Error = err.Error()
		return source, nil
	}

	source.Success = true
	return source, content
}

// IsTransientFailure reports whether a failed scrape looks retryable at the
// job level (as opposed to a permanently missing site).
func IsTransientFailure(r *model.ScrapeResult) bool {
	if r == nil || len(r.Sources) == 0 {
		return false
	}
	last := r.Sources[len(r.Sources)-1]
	if last.StatusCode == http.StatusForbidden || last.StatusCode == http.StatusNotFound {
		return false
	}
	return last.Error == "Request timeout" || resilience.IsTransientHTTPStatus(last.StatusCode)
}

// ensureScheme prepends https:// when the URL has no scheme.
func ensureScheme(rawURL string) string {
	u := strings.TrimSpace(rawURL)
	if u == "" {
		return u
	}
	if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		return "https://" + u
	}
	return u
}
