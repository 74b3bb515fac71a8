package fetch

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/rs/zerolog"
)

// PageFetcher fetches public HTML pages through Colly, which gives us
// robots.txt compliance and per-domain rate limiting for free. It is used by
// collectors that scrape several pages from the same host in one run.
type PageFetcher struct {
	userAgent string
	rateLimit time.Duration
	logger    zerolog.Logger
}

// PageOption configures a PageFetcher.
type PageOption func(*PageFetcher)

// WithPageDelay overrides the per-domain request delay.
func WithPageDelay(d time.Duration) PageOption {
	return func(f *PageFetcher) {
		f.rateLimit = d
	}
}

// NewPageFetcher returns a PageFetcher with the collector User-Agent and a
// 1-second per-domain rate limit.
func NewPageFetcher(logger zerolog.Logger, opts ...PageOption) *PageFetcher {
	f := &PageFetcher{
		userAgent: DefaultUserAgent,
		rateLimit: time.Second,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch retrieves rawURL and returns the response body. Requests are
// restricted to the URL's own domain. If ctx is cancelled before the fetch
// completes, the context error is returned.
func (f *PageFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	domain := parsed.Hostname()
	if domain == "" {
		return nil, fmt.Errorf("invalid URL %q: missing host", rawURL)
	}

	var (
		mu       sync.Mutex
		body     []byte
		fetchErr error
	)

	c := colly.NewCollector(
		colly.UserAgent(f.userAgent),
		colly.AllowedDomains(domain),
	)
	c.IgnoreRobotsTxt = false

	if err := c.Limit(&colly.LimitRule{
		DomainGlob: "*",
		Delay:      f.rateLimit,
	}); err != nil {
		f.logger.Warn().Err(err).Msg("fetch: failed to set rate limit rule")
	}

	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
		}
	})

	c.OnResponse(func(r *colly.Response) {
		mu.Lock()
		body = r.Body
		mu.Unlock()
	})

	c.OnError(func(r *colly.Response, err error) {
		mu.Lock()
		fetchErr = fmt.Errorf("fetching %q (status %d): %w", rawURL, r.StatusCode, err)
		mu.Unlock()
	})

	if err := c.Visit(rawURL); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("visiting %q: %w", rawURL, err)
	}
	c.Wait()

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if fetchErr != nil {
		return nil, fetchErr
	}
	if body == nil {
		return nil, fmt.Errorf("no response body from %q", rawURL)
	}
	return body, nil
}
