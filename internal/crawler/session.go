package crawler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"golang.org/x/sync/errgroup"

	"github.com/DrKenReid/DeadLinkScraper/internal/model"
)

// ErrBaseUnreachable is returned when the base URL cannot be fetched at
// session start. This is the only fatal condition: every per-page failure
// after it is isolated and recorded.
var ErrBaseUnreachable = errors.New("base URL unreachable")

// HistoryStore is the persistent scan-history view consulted before
// fetching. Implementations must be safe for concurrent use.
type HistoryStore interface {
	// Lookup returns the history record for a canonical URL, or nil when
	// the URL has never been scanned.
	Lookup(ctx context.Context, url string) (*model.HistoryRecord, error)

	// Record upserts the history entry for a canonical URL.
	Record(ctx context.Context, url string, status model.LinkStatus, scannedAt time.Time) error
}

// Session owns all mutable state for one crawl: the frontier, the check
// cache, the result sink, and the progress counters. Create one per base
// URL with NewSession and drive it with Run.
type Session struct {
	target string

	maxPages       int
	maxDepth       int
	concurrency    int
	freshness      time.Duration
	ignorePatterns []string

	fetcher  *Fetcher
	history  HistoryStore
	policy   FetchPolicy
	observer Observer
	logger   *slog.Logger

	base       *url.URL
	classifier *Classifier
	frontier   *Frontier
	sink       *Sink
	checks     *checkCache
	startedAt  time.Time

	pagesScanned atomic.Int64
	pagesSkipped atomic.Int64
	maxDepthSeen atomic.Int64
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithMaxPages caps the total pages crawled.
func WithMaxPages(n int) SessionOption {
	return func(s *Session) { s.maxPages = n }
}

// WithMaxDepth limits link-following depth from the base URL.
// 0 = only the base page, 1 = the base page plus linked pages, etc.
func WithMaxDepth(n int) SessionOption {
	return func(s *Session) { s.maxDepth = n }
}

// WithConcurrency sets the number of crawl workers.
func WithConcurrency(n int) SessionOption {
	return func(s *Session) { s.concurrency = n }
}

// WithFreshnessWindow sets how recently a URL must have been scanned for
// history to skip it. Zero disables skipping.
func WithFreshnessWindow(d time.Duration) SessionOption {
	return func(s *Session) { s.freshness = d }
}

// WithFetcher replaces the default Fetcher.
func WithFetcher(f *Fetcher) SessionOption {
	return func(s *Session) { s.fetcher = f }
}

// WithHistory attaches a persistent history store. Without one the
// session still dedupes within the run but skips nothing across runs.
func WithHistory(h HistoryStore) SessionOption {
	return func(s *Session) { s.history = h }
}

// WithPolicy sets the pre-fetch policy. Defaults to AllowAll.
func WithPolicy(p FetchPolicy) SessionOption {
	return func(s *Session) { s.policy = p }
}

// WithObserver attaches a progress observer.
func WithObserver(o Observer) SessionOption {
	return func(s *Session) { s.observer = o }
}

// WithSessionLogger sets the structured logger for the session.
func WithSessionLogger(logger *slog.Logger) SessionOption {
	return func(s *Session) { s.logger = logger }
}

// WithIgnorePatterns sets URL path patterns (glob syntax) whose links are
// neither checked nor crawled.
func WithIgnorePatterns(patterns []string) SessionOption {
	return func(s *Session) { s.ignorePatterns = patterns }
}

// NewSession creates a Session for the given target. The target may omit
// the scheme; verification tries http:// and falls back to https://.
func NewSession(target string, opts ...SessionOption) (*Session, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return nil, fmt.Errorf("%w: empty target", ErrInvalidURL)
	}

	s := &Session{
		target:      target,
		maxPages:    10000,
		maxDepth:    20,
		concurrency: 10,
		freshness:   14 * 24 * time.Hour,
		policy:      AllowAll(),
		observer:    NopObserver(),
		sink:        NewSink(),
		checks:      newCheckCache(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.fetcher == nil {
		s.fetcher = NewFetcher()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s, nil
}

// Run verifies the base URL, then drains the frontier with a bounded
// worker pool until it is exhausted or the page budget runs out. The
// returned report is valid even when ctx was cancelled mid-crawl.
func (s *Session) Run(ctx context.Context) (*model.ScanReport, error) {
	s.startedAt = time.Now()

	base, err := s.verifyBase(ctx)
	if err != nil {
		return nil, err
	}
	s.base = base
	s.classifier = NewClassifier(base)
	s.frontier = NewFrontier(s.maxPages, s.maxDepth)
	s.frontier.TryEnqueue(base.String(), 0, "")

	// Cooperative cancellation: close the frontier so workers drain
	// instead of force-aborting in-flight requests.
	watchDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			s.frontier.Close()
		case <-watchDone:
		}
	}()

	var g errgroup.Group
	for i := 0; i < s.concurrency; i++ {
		g.Go(func() error {
			s.worker(ctx)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // workers isolate their failures
	close(watchDone)

	stats := s.frontier.Stats()
	report := &model.ScanReport{
		BaseURL:         base.String(),
		Host:            base.Hostname(),
		MaxPages:        s.maxPages,
		MaxDepth:        s.maxDepth,
		StartedAt:       s.startedAt,
		FinishedAt:      time.Now(),
		PagesScanned:    int(s.pagesScanned.Load()),
		PagesSkipped:    int(s.pagesSkipped.Load()),
		MaxDepthSeen:    int(s.maxDepthSeen.Load()),
		BudgetExhausted: stats.Accepted >= s.maxPages,
		DeadLinks:       s.sink.DeadLinks(),
		History:         s.sink.HistoryRecords(),
	}

	s.logger.Info("scan finished",
		"baseURL", report.BaseURL,
		"pagesScanned", report.PagesScanned,
		"pagesSkipped", report.PagesSkipped,
		"deadLinks", report.DeadLinkCount(),
		"maxDepthSeen", report.MaxDepthSeen,
	)

	return report, ctx.Err()
}

// verifyBase resolves the target to a reachable canonical base URL.
// A scheme-less target is tried as http:// then https://, matching the
// original scraper; failure here is the session's one fatal error.
func (s *Session) verifyBase(ctx context.Context) (*url.URL, error) {
	candidates := []string{s.target}
	switch {
	case strings.HasPrefix(s.target, "https://"):
		// Explicit https has no fallback.
	case strings.HasPrefix(s.target, "http://"):
		candidates = append(candidates, "https://"+strings.TrimPrefix(s.target, "http://"))
	default:
		candidates = []string{"http://" + s.target, "https://" + s.target}
	}

	lastReason := "no candidate URL"
	for _, candidate := range candidates {
		canonical, err := Normalize(candidate, nil)
		if err != nil {
			lastReason = err.Error()
			continue
		}

		s.logger.Debug("verifying base URL", "url", canonical)
		res, _ := s.fetcher.FetchPage(ctx, canonical)
		if res.Alive {
			u, err := url.Parse(canonical)
			if err != nil {
				return nil, fmt.Errorf("%w: %s", ErrInvalidURL, canonical)
			}
			return u, nil
		}
		lastReason = res.Reason
	}

	return nil, fmt.Errorf("%w: %s (%s)", ErrBaseUnreachable, s.target, lastReason)
}

// worker drains the frontier until exhaustion or cancellation.
func (s *Session) worker(ctx context.Context) {
	for {
		task, ok := s.frontier.Dequeue()
		if !ok {
			return
		}
		if ctx.Err() == nil {
			s.process(ctx, task)
		}
		s.frontier.Done(task.URL)
		s.observer.Progress(s.snapshot())
	}
}

// process handles one dequeued task: history-skip check, policy check,
// page fetch, history update, and link processing. Failures are recorded,
// never propagated.
func (s *Session) process(ctx context.Context, task Task) {
	s.trackDepth(task.Depth)

	// The base page is always rescanned so every run has a frontier.
	if task.Depth > 0 && s.skipByHistory(ctx, task) {
		return
	}

	if !s.policy.Allow(ctx, task.URL) {
		s.pagesScanned.Add(1)
		s.logger.Info("fetch denied by policy", "url", task.URL)
		return
	}

	res, page := s.fetcher.FetchPage(ctx, task.URL)
	if ctx.Err() != nil {
		return
	}
	s.pagesScanned.Add(1)
	s.recordHistory(ctx, task.URL, res.Status())
	s.checks.prime(task.URL, res)

	if !res.Alive {
		if task.SourcePage != "" {
			s.sink.AddDeadLink(task.SourcePage, task.URL, res.StatusCode, res.Reason, time.Now())
		}
		s.logger.Debug("page dead", "url", task.URL, "status", res.StatusCode, "reason", res.Reason)
		return
	}

	if page == nil || !strings.Contains(page.ContentType, "text/html") {
		return
	}

	parsed, err := ParseLinks(bytes.NewReader(page.Body))
	if err != nil {
		s.logger.Warn("page parse failed", "url", task.URL, "error", err)
		return
	}

	s.processLinks(ctx, task, parsed.Links)
}

// skipByHistory reports whether the task's URL was scanned in an earlier
// run within the freshness window. A skip still consumes a budget unit; a
// previously dead page re-emits its dead-link record without network I/O.
func (s *Session) skipByHistory(ctx context.Context, task Task) bool {
	rec := s.freshHistory(ctx, task.URL)
	if rec == nil {
		return false
	}

	s.pagesScanned.Add(1)
	s.pagesSkipped.Add(1)
	s.logger.Debug("skipping recently scanned page",
		"url", task.URL,
		"lastScanned", rec.LastScanned,
		"lastStatus", string(rec.LastStatus),
	)

	if rec.LastStatus == model.StatusDead && task.SourcePage != "" {
		s.sink.AddDeadLink(task.SourcePage, task.URL, 0, "dead in recent scan history", time.Now())
	}
	return true
}

// processLinks normalizes, classifies, and liveness-checks every link on
// a page, feeding crawlable discoveries back into the frontier at depth+1.
func (s *Session) processLinks(ctx context.Context, task Task, links []Link) {
	pageURL, err := url.Parse(task.URL)
	if err != nil {
		return
	}

	seen := mapset.NewSet[string]()
	for _, link := range links {
		if ctx.Err() != nil {
			return
		}

		canonical, err := Normalize(link.Href, pageURL)
		if err != nil {
			if seen.Add("\x00malformed:" + link.Href) {
				s.sink.AddDeadLink(task.URL, link.Href, 0, ReasonMalformed, time.Now())
			}
			continue
		}
		if canonical == task.URL || !seen.Add(canonical) {
			continue
		}
		if matchAny(s.ignorePatterns, urlPath(canonical)) {
			s.logger.Debug("link ignored by pattern", "url", canonical)
			continue
		}

		res, ok := s.checkLink(ctx, canonical)
		if !ok {
			return
		}
		if !res.Alive {
			s.sink.AddDeadLink(task.URL, canonical, res.StatusCode, res.Reason, time.Now())
			continue
		}

		if s.classifier.Classify(canonical).Crawlable() {
			if accepted, reason := s.frontier.TryEnqueue(canonical, task.Depth+1, task.URL); !accepted {
				s.logger.Debug("enqueue rejected", "url", canonical, "reason", reason.String())
			}
		}
	}
}

// checkLink resolves a link's liveness: fresh history first, then the
// session check cache, then the network. Returns ok=false only on
// cancellation.
func (s *Session) checkLink(ctx context.Context, canonical string) (model.CheckResult, bool) {
	if rec := s.freshHistory(ctx, canonical); rec != nil {
		if rec.LastStatus == model.StatusAlive {
			return model.CheckResult{Alive: true}, true
		}
		return model.CheckResult{Reason: "dead in recent scan history"}, true
	}

	return s.checks.check(ctx, canonical, func() model.CheckResult {
		res := s.fetcher.Check(ctx, canonical)
		if ctx.Err() == nil {
			s.recordHistory(ctx, canonical, res.Status())
		}
		return res
	})
}

// freshHistory returns the record for a canonical URL only when it was
// written before this run started and is still inside the freshness
// window. Records written during the run never count: links are recorded
// the moment they are liveness-checked, before their page is dequeued,
// and honoring those records would skip every page the run discovers.
// Within-run dedup belongs to the frontier and the check cache.
func (s *Session) freshHistory(ctx context.Context, canonical string) *model.HistoryRecord {
	rec := s.lookupHistory(ctx, canonical)
	if rec == nil || !rec.LastScanned.Before(s.startedAt) || !rec.Fresh(time.Now(), s.freshness) {
		return nil
	}
	return rec
}

// lookupHistory is a nil-safe history read; lookup failures degrade to
// "never scanned".
func (s *Session) lookupHistory(ctx context.Context, canonical string) *model.HistoryRecord {
	if s.history == nil {
		return nil
	}
	rec, err := s.history.Lookup(ctx, canonical)
	if err != nil {
		s.logger.Warn("history lookup failed", "url", canonical, "error", err)
		return nil
	}
	return rec
}

// recordHistory writes a history update to both the persistent store and
// the session sink (for the history CSV export).
func (s *Session) recordHistory(ctx context.Context, canonical string, status model.LinkStatus) {
	now := time.Now()
	s.sink.RecordHistory(canonical, status, now)
	if s.history == nil {
		return
	}
	if err := s.history.Record(ctx, canonical, status, now); err != nil {
		s.logger.Warn("history record failed", "url", canonical, "error", err)
	}
}

// trackDepth records the deepest dispatched task.
func (s *Session) trackDepth(depth int) {
	for {
		cur := s.maxDepthSeen.Load()
		if int64(depth) <= cur || s.maxDepthSeen.CompareAndSwap(cur, int64(depth)) {
			return
		}
	}
}

// snapshot builds the progress view handed to the observer.
func (s *Session) snapshot() Snapshot {
	stats := s.frontier.Stats()
	return Snapshot{
		PagesScanned:    int(s.pagesScanned.Load()),
		QueuedRemaining: stats.Queued,
		DeadLinksFound:  s.sink.DeadLinkCount(),
		MaxDepthSeen:    int(s.maxDepthSeen.Load()),
	}
}

// urlPath extracts the path component for ignore-pattern matching.
func urlPath(canonical string) string {
	u, err := url.Parse(canonical)
	if err != nil || u.Path == "" {
		return "/"
	}
	return u.Path
}
