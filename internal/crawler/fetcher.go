package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/DrKenReid/DeadLinkScraper/internal/model"
)

// Dead-link reasons reported by the fetcher. The strings are part of the
// record format and appear verbatim in deadlinks.csv.
const (
	// ReasonMalformed marks links that failed URL normalization.
	ReasonMalformed = "malformed"

	// ReasonUnreachable marks targets that never answered within the
	// retry budget (timeout, DNS failure, connection refused, TLS failure).
	ReasonUnreachable = "unreachable after retries"

	// ReasonRedirectLoop marks targets whose redirect chain exceeded the
	// configured bound.
	ReasonRedirectLoop = "redirect loop"
)

// errTooManyRedirects aborts a redirect chain inside the HTTP client.
// It surfaces wrapped in *url.Error, so detection goes through errors.Is.
var errTooManyRedirects = errors.New("too many redirects")

// Fetcher performs liveness checks and page retrievals with retry and
// exponential backoff. Status codes >=400 and connection failures count
// as dead; 2xx/3xx (after bounded redirects) count as alive.
//
// Design decision: Checks and page fetches share one retry loop but use
// separate HTTP clients, because a liveness probe should give up much
// sooner than a full page fetch. Both clients share a transport so
// connection pooling still works.
type Fetcher struct {
	pageClient  *http.Client
	checkClient *http.Client

	userAgent   string
	headers     map[string]string
	cookie      string
	maxRetries  int
	backoffBase time.Duration
	maxBodySize int64
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*fetcherConfig)

type fetcherConfig struct {
	pageTimeout  time.Duration
	checkTimeout time.Duration
	maxRetries   int
	maxRedirects int
	backoffBase  time.Duration
	userAgent    string
	headers      map[string]string
	cookie       string
	maxBodySize  int64
	transport    http.RoundTripper
}

// WithPageTimeout sets the per-request timeout for page fetches.
func WithPageTimeout(d time.Duration) FetcherOption {
	return func(c *fetcherConfig) { c.pageTimeout = d }
}

// WithCheckTimeout sets the per-request timeout for liveness checks.
func WithCheckTimeout(d time.Duration) FetcherOption {
	return func(c *fetcherConfig) { c.checkTimeout = d }
}

// WithMaxRetries sets the retry budget for transient failures.
func WithMaxRetries(n int) FetcherOption {
	return func(c *fetcherConfig) { c.maxRetries = n }
}

// WithMaxRedirects bounds the redirect chain length per request.
func WithMaxRedirects(n int) FetcherOption {
	return func(c *fetcherConfig) { c.maxRedirects = n }
}

// WithBackoffBase sets the first retry delay; each retry doubles it.
func WithBackoffBase(d time.Duration) FetcherOption {
	return func(c *fetcherConfig) { c.backoffBase = d }
}

// WithUserAgent sets the User-Agent header for all requests.
func WithUserAgent(ua string) FetcherOption {
	return func(c *fetcherConfig) { c.userAgent = ua }
}

// WithHeaders sets custom headers sent with every request, e.g. an
// Authorization header from a site configuration.
func WithHeaders(headers map[string]string) FetcherOption {
	return func(c *fetcherConfig) { c.headers = headers }
}

// WithCookie sets a Cookie header sent with every request.
func WithCookie(cookie string) FetcherOption {
	return func(c *fetcherConfig) { c.cookie = cookie }
}

// WithMaxBodySize limits how much of a page body is read.
func WithMaxBodySize(size int64) FetcherOption {
	return func(c *fetcherConfig) { c.maxBodySize = size }
}

// WithTransport replaces the underlying HTTP transport, mainly for tests.
func WithTransport(rt http.RoundTripper) FetcherOption {
	return func(c *fetcherConfig) { c.transport = rt }
}

// NewFetcher creates a Fetcher with the given options.
func NewFetcher(opts ...FetcherOption) *Fetcher {
	cfg := &fetcherConfig{
		pageTimeout:  10 * time.Second,
		checkTimeout: 5 * time.Second,
		maxRetries:   2,
		maxRedirects: 5,
		backoffBase:  500 * time.Millisecond,
		userAgent:    "DeadLinkScraper/1.0 (+https://github.com/DrKenReid/DeadLinkScraper)",
		maxBodySize:  5 * 1024 * 1024,
		transport:    http.DefaultTransport,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	checkRedirect := func(_ *http.Request, via []*http.Request) error {
		if len(via) >= cfg.maxRedirects {
			return errTooManyRedirects
		}
		return nil
	}

	return &Fetcher{
		pageClient: &http.Client{
			Transport:     cfg.transport,
			Timeout:       cfg.pageTimeout,
			CheckRedirect: checkRedirect,
		},
		checkClient: &http.Client{
			Transport:     cfg.transport,
			Timeout:       cfg.checkTimeout,
			CheckRedirect: checkRedirect,
		},
		userAgent:   cfg.userAgent,
		headers:     cfg.headers,
		cookie:      cfg.cookie,
		maxRetries:  cfg.maxRetries,
		backoffBase: cfg.backoffBase,
		maxBodySize: cfg.maxBodySize,
	}
}

// PageData holds a fetched page body for link extraction.
type PageData struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Check performs a lightweight liveness check: HEAD first, falling back
// to GET when the target rejects the method. The body is discarded.
func (f *Fetcher) Check(ctx context.Context, rawURL string) model.CheckResult {
	res, _ := f.do(ctx, f.checkClient, http.MethodHead, rawURL, false)

	// Some servers refuse HEAD outright; a full retrieval is authoritative.
	if res.StatusCode == http.StatusMethodNotAllowed || res.StatusCode == http.StatusNotImplemented {
		res, _ = f.do(ctx, f.checkClient, http.MethodGet, rawURL, false)
	}
	return res
}

// FetchPage retrieves a page with GET. The returned PageData is non-nil
// only when the page is alive and a body was read; dead pages report
// their status through the CheckResult alone.
func (f *Fetcher) FetchPage(ctx context.Context, rawURL string) (model.CheckResult, *PageData) {
	return f.do(ctx, f.pageClient, http.MethodGet, rawURL, true)
}

// do runs one request with the retry policy. HTTP error statuses are
// authoritative and never retried; redirect-chain overflow is dead
// immediately; every other failure is treated as transient and retried
// until the budget runs out.
func (f *Fetcher) do(ctx context.Context, client *http.Client, method, rawURL string, readBody bool) (model.CheckResult, *PageData) {
	attempts := f.maxRetries + 1
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if !f.backoff(ctx, attempt) {
				return model.CheckResult{Reason: ReasonUnreachable}, nil
			}
		}

		req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
		if err != nil {
			return model.CheckResult{Reason: fmt.Sprintf("%s: %v", ReasonMalformed, err)}, nil
		}
		f.setHeaders(req)

		resp, err := client.Do(req)
		if err != nil {
			if errors.Is(err, errTooManyRedirects) {
				return model.CheckResult{Reason: ReasonRedirectLoop}, nil
			}
			if ctx.Err() != nil {
				return model.CheckResult{Reason: ReasonUnreachable}, nil
			}
			continue
		}

		res, page := f.consume(resp, readBody)
		return res, page
	}

	return model.CheckResult{Reason: ReasonUnreachable}, nil
}

// consume classifies a response and optionally reads the body.
func (f *Fetcher) consume(resp *http.Response, readBody bool) (model.CheckResult, *PageData) {
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096)) //nolint:errcheck // best effort
		return model.CheckResult{
			StatusCode: resp.StatusCode,
			Reason:     "http status " + strconv.Itoa(resp.StatusCode),
		}, nil
	}

	result := model.CheckResult{Alive: true, StatusCode: resp.StatusCode}
	if !readBody {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096)) //nolint:errcheck // best effort
		return result, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
	if err != nil {
		// The status already proved the page alive; a truncated body just
		// means no links can be extracted from it.
		return result, nil
	}

	return result, &PageData{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}
}

// setHeaders applies the User-Agent and any site-specific headers.
func (f *Fetcher) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	for k, v := range f.headers {
		req.Header.Set(k, v)
	}
	if f.cookie != "" {
		req.Header.Set("Cookie", f.cookie)
	}
}

// backoff sleeps for the exponential delay before retry n.
// Returns false when the context was cancelled while waiting.
func (f *Fetcher) backoff(ctx context.Context, attempt int) bool {
	delay := f.backoffBase << (attempt - 1)
	select {
	case <-ctx.Done():
		return false
	case <-time.After(delay):
		return true
	}
}
