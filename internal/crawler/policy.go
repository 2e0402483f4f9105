package crawler

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/temoto/robotstxt"
)

// maxRobotsSize bounds how much of a robots.txt file is read.
const maxRobotsSize = 512 * 1024

// FetchPolicy is the pluggable pre-fetch check consulted before any page
// fetch. A denied URL still consumes its frontier slot but performs no
// network I/O against the page itself.
type FetchPolicy interface {
	// Allow reports whether the URL may be fetched.
	Allow(ctx context.Context, rawURL string) bool
}

// allowAllPolicy permits every fetch.
type allowAllPolicy struct{}

func (allowAllPolicy) Allow(context.Context, string) bool { return true }

// AllowAll returns a FetchPolicy that permits everything. Used when
// robots.txt enforcement is disabled.
func AllowAll() FetchPolicy {
	return allowAllPolicy{}
}

// RobotsPolicy enforces robots.txt rules, fetching and caching one
// robots.txt per scheme://host for the lifetime of the policy.
//
// Design decision: When robots.txt cannot be fetched or parsed we are
// permissive and allow crawling; a missing or broken robots file is the
// overwhelmingly common case and blocking on it would make most scans
// empty.
type RobotsPolicy struct {
	client    *http.Client
	userAgent string

	mu    sync.Mutex
	hosts map[string]*hostRobots
}

// hostRobots holds the lazily-fetched robots data for one host. The
// sync.Once keeps the fetch outside the policy's map lock while still
// guaranteeing a single fetch per host.
type hostRobots struct {
	once sync.Once
	data *robotstxt.RobotsData
}

// NewRobotsPolicy creates a RobotsPolicy using the given HTTP client.
func NewRobotsPolicy(client *http.Client, userAgent string) *RobotsPolicy {
	if client == nil {
		client = http.DefaultClient
	}
	return &RobotsPolicy{
		client:    client,
		userAgent: userAgent,
		hosts:     make(map[string]*hostRobots),
	}
}

// Allow reports whether rawURL may be fetched under the host's
// robots.txt rules for our User-Agent.
func (p *RobotsPolicy) Allow(ctx context.Context, rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}

	entry := p.hostEntry(u.Scheme + "://" + u.Host)
	entry.once.Do(func() {
		entry.data = p.fetch(ctx, u.Scheme+"://"+u.Host+"/robots.txt")
	})

	if entry.data == nil {
		return true
	}

	path := u.Path
	if path == "" {
		path = "/"
	}
	return entry.data.TestAgent(path, p.userAgent)
}

// hostEntry returns the cache slot for a host, creating it if needed.
func (p *RobotsPolicy) hostEntry(key string) *hostRobots {
	p.mu.Lock()
	defer p.mu.Unlock()

	entry, ok := p.hosts[key]
	if !ok {
		entry = &hostRobots{}
		p.hosts[key] = entry
	}
	return entry
}

// fetch retrieves and parses a robots.txt. Returns nil (permissive) on
// any failure.
func (p *RobotsPolicy) fetch(ctx context.Context, robotsURL string) *robotstxt.RobotsData {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsSize))
	if err != nil {
		return nil
	}

	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return nil
	}
	return data
}
