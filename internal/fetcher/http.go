package fetcher

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

	"github.com/sells-group/fda-watch/internal/config"
	"github.com/sells-group/fda-watch/internal/resilience"
)

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	UserAgent         string
	Timeout           time.Duration
	RequestsPerSecond float64 // per host
	Retry             resilience.Policy
}

// OptionsFromConfig maps the fetch config section to HTTPOptions.
func OptionsFromConfig(cfg config.FetchConfig) HTTPOptions {
	return HTTPOptions{
		UserAgent:         cfg.UserAgent,
		Timeout:           time.Duration(cfg.TimeoutSecs) * time.Second,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Retry:             resilience.PolicyFromFetch(cfg),
	}
}

// AdaptiveLimiter is a per-host rate limiter that halves its rate on 429
// responses (down to a quarter of the initial rate) and recovers by 20% per
// success (up to twice the initial rate).
type AdaptiveLimiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	initial rate.Limit
	current rate.Limit
}

// NewAdaptiveLimiter creates a limiter starting at r events per second.
func NewAdaptiveLimiter(r rate.Limit, burst int) *AdaptiveLimiter {
	return &AdaptiveLimiter{limiter: rate.NewLimiter(r, burst), initial: r, current: r}
}

// Wait blocks until a request may be sent.
func (a *AdaptiveLimiter) Wait(ctx context.Context) error { return a.limiter.Wait(ctx) }

// OnSuccess raises the rate.
func (a *AdaptiveLimiter) OnSuccess() { a.scale(1.2) }

// OnRateLimit lowers the rate.
func (a *AdaptiveLimiter) OnRateLimit() { a.scale(0.5) }

// Limit returns the current rate.
func (a *AdaptiveLimiter) Limit() rate.Limit {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

func (a *AdaptiveLimiter) scale(f float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	next := a.current * rate.Limit(f)
	next = min(max(next, a.initial/4), a.initial*2)
	a.current = next
	a.limiter.SetLimit(next)
}

// HTTPFetcher is a Getter with per-host rate limiting and retries on
// transient failures.
type HTTPFetcher struct {
	client *http.Client
	opts   HTTPOptions

	mu       sync.Mutex
	limiters map[string]*AdaptiveLimiter
}

// NewHTTPFetcher creates an HTTPFetcher.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "fda-watch/1.0"
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 2
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		opts:     opts,
		limiters: make(map[string]*AdaptiveLimiter),
	}
}

func (f *HTTPFetcher) limiterFor(host string) *AdaptiveLimiter {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.limiters[host]
	if !ok {
		burst := max(1, int(f.opts.RequestsPerSecond))
		l = NewAdaptiveLimiter(rate.Limit(f.opts.RequestsPerSecond), burst)
		f.limiters[host] = l
	}
	return l
}

// Get downloads rawURL and returns the body of a 200 response.
func (f *HTTPFetcher) Get(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	body, _, _, err := f.GetIfChanged(ctx, rawURL, "")
	return body, err
}

// GetIfChanged downloads rawURL unless the server reports it unchanged
// for etag.
func (f *HTTPFetcher) GetIfChanged(ctx context.Context, rawURL, etag string) (io.ReadCloser, string, bool, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return nil, "", false, eris.Errorf("fetcher: invalid url %q", rawURL)
	}
	lim := f.limiterFor(u.Host)

	resp, err := resilience.Retry(ctx, f.opts.Retry, "fetch "+u.Host, func(ctx context.Context) (*http.Response, error) {
		if err := lim.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "fetcher: rate limiter wait")
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, eris.Wrap(err, "fetcher: create request")
		}
		req.Header.Set("User-Agent", f.opts.UserAgent)
		req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/html;q=0.9, */*;q=0.8")
		if etag != "" {
			req.Header.Set("If-None-Match", etag)
		}

		resp, err := f.client.Do(req)
		if err != nil {
			return nil, eris.Wrap(err, "fetcher: request")
		}
		switch {
		case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusNotModified:
			lim.OnSuccess()
			return resp, nil
		case resp.StatusCode == http.StatusTooManyRequests:
			lim.OnRateLimit()
			zap.L().Warn("fetcher: rate limited",
				zap.String("host", u.Host),
				zap.Float64("new_rate", float64(lim.Limit())),
			)
		}
		_ = resp.Body.Close()
		return nil, resilience.StatusError(resp.StatusCode, rawURL)
	})
	if err != nil {
		return nil, "", false, eris.Wrapf(err, "fetcher: get %s", rawURL)
	}

	if resp.StatusCode == http.StatusNotModified {
		_ = resp.Body.Close()
		return nil, etag, false, nil
	}
	return resp.Body, resp.Header.Get("ETag"), true, nil
}
