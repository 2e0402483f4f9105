package crawler

import (
	"context"
	"sync"

	"github.com/DrKenReid/DeadLinkScraper/internal/model"
)

// checkCache deduplicates liveness checks within a session. A URL linked
// from many pages is checked over the network exactly once; later callers
// get the cached result and still emit their own dead-link record.
//
// Single-flight semantics: concurrent callers for the same URL wait for
// the first check to finish rather than racing their own requests. The
// lock guards only map access; the network call runs outside it.
type checkCache struct {
	mu       sync.Mutex
	results  map[string]model.CheckResult
	inflight map[string]chan struct{}
}

// newCheckCache creates an empty cache.
func newCheckCache() *checkCache {
	return &checkCache{
		results:  make(map[string]model.CheckResult),
		inflight: make(map[string]chan struct{}),
	}
}

// prime stores a result obtained outside the cache, typically a full page
// fetch, so later links to the same URL skip the network. An in-flight or
// already-cached check wins over the primed value.
func (c *checkCache) prime(url string, res model.CheckResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.results[url]; ok {
		return
	}
	if _, ok := c.inflight[url]; ok {
		return
	}
	c.results[url] = res
}

// check returns the cached result for url, or runs fn to produce it.
// Returns ok=false when the context was cancelled while waiting for a
// concurrent check of the same URL.
func (c *checkCache) check(ctx context.Context, url string, fn func() model.CheckResult) (model.CheckResult, bool) {
	for {
		c.mu.Lock()
		if res, ok := c.results[url]; ok {
			c.mu.Unlock()
			return res, true
		}
		if wait, ok := c.inflight[url]; ok {
			c.mu.Unlock()
			select {
			case <-ctx.Done():
				return model.CheckResult{}, false
			case <-wait:
			}
			continue
		}

		done := make(chan struct{})
		c.inflight[url] = done
		c.mu.Unlock()

		res := fn()

		c.mu.Lock()
		c.results[url] = res
		delete(c.inflight, url)
		c.mu.Unlock()
		close(done)

		return res, true
	}
}
