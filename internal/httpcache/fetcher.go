package httpcache

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/powderline/quiver/pkg/errors"
	"github.com/powderline/quiver/pkg/logging"
)

const (
	defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	defaultTimeout   = 30 * time.Second
	defaultDelay     = 1500 * time.Millisecond
	maxBodySize      = 10 << 20

	// Storefront listing pages are large; a tiny response with a 200 is
	// almost always an interstitial.
	suspectBodySize = 2048
)

// blockMarkers are substrings of bot-challenge interstitials. A body
// containing one is a block regardless of status code.
var blockMarkers = []string{
	"access denied",
	"are you a robot",
	"captcha",
	"cf-browser-verification",
	"perimeterx",
	"press & hold",
	"request unsuccessful",
}

// Fetcher performs throttled HTTP fetches through the cache. Each source
// gets its own Fetcher so the inter-request delay and the circuit breaker
// are per-source: one blocked storefront never slows or stops the others.
type Fetcher struct {
	sourceID string
	cache    *Cache
	client   *http.Client
	maxAge   time.Duration
	delay    time.Duration

	mu        sync.Mutex
	lastFetch time.Time
	tripped   bool
	fetches   int
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithHTTPClient replaces the HTTP client, for tests.
func WithHTTPClient(client *http.Client) FetcherOption {
	return func(f *Fetcher) {
		f.client = client
	}
}

// WithMaxAge sets how old a cached response may be before the fetcher
// goes back to the network.
func WithMaxAge(maxAge time.Duration) FetcherOption {
	return func(f *Fetcher) {
		f.maxAge = maxAge
	}
}

// WithDelay sets the minimum pause between network requests.
func WithDelay(delay time.Duration) FetcherOption {
	return func(f *Fetcher) {
		f.delay = delay
	}
}

// NewFetcher creates a fetcher for one source over a shared cache. The
// default max age is 24 hours.
func NewFetcher(sourceID string, cache *Cache, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		sourceID: sourceID,
		cache:    cache,
		client:   &http.Client{Timeout: defaultTimeout},
		maxAge:   24 * time.Hour,
		delay:    defaultDelay,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetches reports how many network requests this fetcher has made. A
// fully warm cache keeps this at zero for an entire run.
func (f *Fetcher) Fetches() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

// Get returns the body for a URL, from cache when fresh enough, otherwise
// from the network. A detected block trips the fetcher: every later Get
// that misses the cache fails fast with ErrBlocked until the process
// restarts.
func (f *Fetcher) Get(ctx context.Context, url string) ([]byte, error) {
	if entry, err := f.cache.Get(ctx, url, f.maxAge); err != nil {
		return nil, err
	} else if entry != nil {
		return entry.Body, nil
	}

	if f.isTripped() {
		return nil, &errors.FetchError{
			Source: f.sourceID, URL: url, Blocked: true,
			Message: "circuit open after earlier block",
		}
	}

	body, err := f.fetch(ctx, url)
	if err != nil {
		if errors.IsBlocked(err) {
			f.trip()
			logging.FromContext(ctx).Warn().
				Str("source_id", f.sourceID).
				Str("url", url).
				Msg("Source blocked us; stopping its remaining fetches")
		}
		return nil, err
	}

	if err := f.cache.Set(ctx, url, body); err != nil {
		return nil, err
	}
	return body, nil
}

func (f *Fetcher) fetch(ctx context.Context, url string) ([]byte, error) {
	f.throttle(ctx)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.WrapFetch(f.sourceID, url, err)
	}
	req.Header.Set("User-Agent", defaultUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/json;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, errors.NewTimeoutError("fetch "+url, f.client.Timeout.String(), err.Error())
		}
		return nil, errors.WrapFetch(f.sourceID, url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	f.recordFetch()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusForbidden {
		return nil, &errors.FetchError{
			Source: f.sourceID, URL: url, StatusCode: resp.StatusCode, Blocked: true,
			Message: "blocked by " + http.StatusText(resp.StatusCode),
		}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &errors.FetchError{
			Source: f.sourceID, URL: url, StatusCode: resp.StatusCode,
			Message: "unexpected status " + resp.Status,
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, errors.WrapFetch(f.sourceID, url, err)
	}

	if blocked(body) {
		return nil, &errors.FetchError{
			Source: f.sourceID, URL: url, StatusCode: resp.StatusCode, Blocked: true,
			Message: "bot challenge in response body",
		}
	}

	return body, nil
}

// throttle waits out the inter-request delay, honoring cancellation.
func (f *Fetcher) throttle(ctx context.Context) {
	f.mu.Lock()
	wait := f.delay - time.Since(f.lastFetch)
	f.mu.Unlock()
	if wait <= 0 {
		return
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (f *Fetcher) recordFetch() {
	f.mu.Lock()
	f.lastFetch = time.Now()
	f.fetches++
	f.mu.Unlock()
}

func (f *Fetcher) isTripped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tripped
}

func (f *Fetcher) trip() {
	f.mu.Lock()
	f.tripped = true
	f.mu.Unlock()
}

// blocked reports whether a 200 response is actually a bot challenge.
func blocked(body []byte) bool {
	if len(body) >= suspectBodySize {
		return false
	}
	lower := strings.ToLower(string(body))
	for _, marker := range blockMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
