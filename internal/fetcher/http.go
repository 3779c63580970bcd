package fetcher

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/benchmark-cli/internal/resilience"
)

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	UserAgent    string
	Timeout      time.Duration
	MaxBodyBytes int64
	RatePerHost  rate.Limit
	Retry        resilience.RetryPolicy
}

// HTTPFetcher implements Fetcher using net/http. Only GET requests are
// issued, so every retry is safe.
type HTTPFetcher struct {
	client *http.Client
	opts   HTTPOptions

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewHTTPFetcher creates an HTTPFetcher with the given options.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.UserAgent == "" {
		opts.UserAgent = "benchmark-cli/1.0"
	}
	if opts.Timeout == 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.MaxBodyBytes == 0 {
		opts.MaxBodyBytes = 2 * 1024 * 1024
	}
	if opts.RatePerHost == 0 {
		opts.RatePerHost = 5
	}
	transport := &http.Transport{
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     20,
		IdleConnTimeout:     90 * time.Second,
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		opts:     opts,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (f *HTTPFetcher) limiterFor(host string) *rate.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()
	lim, ok := f.limiters[host]
	if !ok {
		lim = rate.NewLimiter(f.opts.RatePerHost, int(f.opts.RatePerHost)+1)
		f.limiters[host] = lim
	}
	return lim
}

// Fetch downloads the URL, retrying transient failures per the policy.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, &FetchError{URL: rawURL, Cause: eris.Wrap(err, "malformed url")}
	}

	policy := f.opts.Retry
	if policy.OnRetry == nil {
		policy.OnRetry = resilience.RetryLogger("fetcher", "get")
	}

	body, err := resilience.DoVal(ctx, policy, func(ctx context.Context) ([]byte, error) {
		return f.fetchOnce(ctx, rawURL, u.Host)
	})
	if err != nil {
		var fe *FetchError
		if errors.As(err, &fe) {
			return nil, fe
		}
		return nil, &FetchError{URL: rawURL, Cause: err}
	}
	return body, nil
}

// fetchOnce performs a single GET. Transient conditions come back wrapped
// as resilience.TransientError so the retry policy picks them up; terminal
// conditions come back as *FetchError directly.
func (f *HTTPFetcher) fetchOnce(ctx context.Context, rawURL, host string) ([]byte, error) {
	if err := f.limiterFor(host).Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "fetcher: rate limiter wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Cause: eris.Wrap(err, "create request")}
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		// Connection failures and timeouts are retryable.
		return nil, resilience.NewTransientError(err, 0)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		statusErr := eris.Errorf("http %d from %s", resp.StatusCode, rawURL)
		if resilience.RetryableHTTPStatus(resp.StatusCode) {
			zap.L().Warn("transient http status",
				zap.String("url", rawURL),
				zap.Int("status", resp.StatusCode),
			)
			return nil, resilience.NewTransientError(statusErr, resp.StatusCode)
		}
		return nil, &FetchError{URL: rawURL, StatusCode: resp.StatusCode, Cause: statusErr}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.opts.MaxBodyBytes))
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "read body"), 0)
	}
	return body, nil
}
