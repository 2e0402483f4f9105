package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DrKenReid/DeadLinkScraper/internal/model"
)

// fakePage is one canned response served by fakeTransport.
type fakePage struct {
	status int
	body   string
}

// fakeTransport serves canned responses keyed by full URL and records
// every request. It lets tests span multiple hostnames without DNS.
type fakeTransport struct {
	mu    sync.Mutex
	pages map[string]fakePage
	log   []string
}

func newFakeTransport(pages map[string]fakePage) *fakeTransport {
	return &fakeTransport{pages: pages}
}

func (ft *fakeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ft.mu.Lock()
	ft.log = append(ft.log, req.Method+" "+req.URL.String())
	page, ok := ft.pages[req.URL.String()]
	ft.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("no route to %s", req.URL)
	}

	body := page.body
	if req.Method == http.MethodHead {
		body = ""
	}
	header := http.Header{}
	header.Set("Content-Type", "text/html; charset=utf-8")
	return &http.Response{
		StatusCode: page.status,
		Status:     http.StatusText(page.status),
		Header:     header,
		Body:       io.NopCloser(strings.NewReader(body)),
		Request:    req,
	}, nil
}

// requestCount returns how many requests matched the method and URL.
func (ft *fakeTransport) requestCount(method, url string) int {
	ft.mu.Lock()
	defer ft.mu.Unlock()

	count := 0
	for _, entry := range ft.log {
		if entry == method+" "+url {
			count++
		}
	}
	return count
}

// sawURL reports whether any request hit the URL, regardless of method.
func (ft *fakeTransport) sawURL(url string) bool {
	ft.mu.Lock()
	defer ft.mu.Unlock()

	for _, entry := range ft.log {
		if strings.HasSuffix(entry, " "+url) {
			return true
		}
	}
	return false
}

// fakeHistory is an in-memory HistoryStore for session tests.
type fakeHistory struct {
	mu      sync.Mutex
	records map[string]model.HistoryRecord
}

func newFakeHistory() *fakeHistory {
	return &fakeHistory{records: make(map[string]model.HistoryRecord)}
}

func (f *fakeHistory) set(url string, status model.LinkStatus, scannedAt time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[url] = model.HistoryRecord{URL: url, LastScanned: scannedAt, LastStatus: status}
}

func (f *fakeHistory) Lookup(_ context.Context, url string) (*model.HistoryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[url]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (f *fakeHistory) Record(_ context.Context, url string, status model.LinkStatus, scannedAt time.Time) error {
	f.set(url, status, scannedAt)
	return nil
}

// newTestSession builds a session wired to the fake transport with quiet
// logging and no retries.
func newTestSession(t *testing.T, target string, ft *fakeTransport, opts ...SessionOption) *Session {
	t.Helper()

	fetcher := NewFetcher(
		WithTransport(ft),
		WithMaxRetries(0),
		WithBackoffBase(time.Millisecond),
		WithPageTimeout(2*time.Second),
		WithCheckTimeout(2*time.Second),
	)

	base := []SessionOption{
		WithFetcher(fetcher),
		WithConcurrency(4),
		WithSessionLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithHistory(newFakeHistory()),
	}

	s, err := NewSession(target, append(base, opts...)...)
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	return s
}

// findDeadLink returns the dead-link record for a target URL, if any.
func findDeadLink(report *model.ScanReport, targetURL string) (model.DeadLink, bool) {
	for _, dl := range report.DeadLinks {
		if dl.TargetURL == targetURL {
			return dl, true
		}
	}
	return model.DeadLink{}, false
}

// TestSessionRun tests a full crawl over internal, subdomain, and
// external links.
func TestSessionRun(t *testing.T) {
	t.Parallel()

	ft := newFakeTransport(map[string]fakePage{
		"http://site.test/": {status: 200, body: `<html><body>
			<a href="/ok">ok</a>
			<a href="/ok">duplicate</a>
			<a href="/missing">missing</a>
			<a href="http://blog.site.test/post">subdomain</a>
			<a href="http://external.test/gone">dead external</a>
			<a href="http://external.test/alive">live external</a>
			<a href="http://bad host/oops">malformed</a>
		</body></html>`},
		"http://site.test/ok":        {status: 200, body: `<a href="http://site.test/">home</a>`},
		"http://site.test/missing":   {status: 404, body: "not found"},
		"http://blog.site.test/post": {status: 200, body: `<a href="/other">other</a>`},
		"http://blog.site.test/other": {status: 200, body: ""},
		"http://external.test/gone":   {status: 404, body: "gone"},
		"http://external.test/alive":  {status: 200, body: `<a href="http://external.test/next">next</a>`},
	})

	s := newTestSession(t, "http://site.test", ft)
	report, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	t.Run("reports dead links with source pages", func(t *testing.T) {
		if got := report.DeadLinkCount(); got != 3 {
			t.Fatalf("expected 3 dead links, got %d: %+v", got, report.DeadLinks)
		}

		dl, ok := findDeadLink(report, "http://site.test/missing")
		if !ok {
			t.Fatal("missing dead-link record for /missing")
		}
		if dl.SourcePage != "http://site.test/" {
			t.Errorf("expected source http://site.test/, got %q", dl.SourcePage)
		}
		if dl.StatusCode != 404 || dl.Reason != "http status 404" {
			t.Errorf("unexpected record: %+v", dl)
		}

		if _, ok := findDeadLink(report, "http://external.test/gone"); !ok {
			t.Error("missing dead-link record for dead external link")
		}

		dl, ok = findDeadLink(report, "http://bad host/oops")
		if !ok {
			t.Fatal("missing dead-link record for malformed link")
		}
		if dl.Reason != ReasonMalformed {
			t.Errorf("expected reason %q, got %q", ReasonMalformed, dl.Reason)
		}
	})

	t.Run("crawls internal and subdomain pages only", func(t *testing.T) {
		// Base, /ok, blog post, blog other.
		if report.PagesScanned != 4 {
			t.Errorf("expected 4 pages scanned, got %d", report.PagesScanned)
		}
		if ft.requestCount(http.MethodGet, "http://external.test/alive") != 0 {
			t.Error("alive external link must be checked, never page-fetched")
		}
		if ft.sawURL("http://external.test/next") {
			t.Error("links on external pages must not be discovered")
		}
	})

	t.Run("duplicate links are checked once", func(t *testing.T) {
		if got := ft.requestCount(http.MethodHead, "http://site.test/ok"); got != 1 {
			t.Errorf("expected 1 liveness check for /ok, got %d", got)
		}
	})

	t.Run("history reflects every checked url", func(t *testing.T) {
		statuses := make(map[string]model.LinkStatus, len(report.History))
		for _, rec := range report.History {
			statuses[rec.URL] = rec.LastStatus
		}
		if statuses["http://site.test/"] != model.StatusAlive {
			t.Error("expected alive history for base page")
		}
		if statuses["http://site.test/missing"] != model.StatusDead {
			t.Error("expected dead history for /missing")
		}
		if statuses["http://external.test/alive"] != model.StatusAlive {
			t.Error("expected alive history for external link")
		}
	})

	t.Run("report metadata", func(t *testing.T) {
		if report.BaseURL != "http://site.test/" {
			t.Errorf("unexpected base URL %q", report.BaseURL)
		}
		if report.Host != "site.test" {
			t.Errorf("unexpected host %q", report.Host)
		}
		if report.BudgetExhausted {
			t.Error("budget must not be exhausted")
		}
		if report.MaxDepthSeen < 1 {
			t.Errorf("expected depth >= 1, got %d", report.MaxDepthSeen)
		}
	})
}

// TestSessionDepthBudget tests that the crawl stops following links at
// the depth limit but still checks their liveness.
func TestSessionDepthBudget(t *testing.T) {
	t.Parallel()

	ft := newFakeTransport(map[string]fakePage{
		"http://site.test/":  {status: 200, body: `<a href="/a">a</a>`},
		"http://site.test/a": {status: 200, body: `<a href="/b">b</a>`},
		"http://site.test/b": {status: 200, body: `<a href="/c">c</a>`},
	})

	s := newTestSession(t, "http://site.test", ft, WithMaxDepth(1))
	report, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.PagesScanned != 2 {
		t.Errorf("expected 2 pages (base and /a), got %d", report.PagesScanned)
	}
	if got := ft.requestCount(http.MethodGet, "http://site.test/b"); got != 0 {
		t.Error("/b is beyond the depth budget and must not be page-fetched")
	}
	if got := ft.requestCount(http.MethodHead, "http://site.test/b"); got != 1 {
		t.Errorf("/b must still be liveness-checked, got %d checks", got)
	}
	if ft.sawURL("http://site.test/c") {
		t.Error("/c must never be reached")
	}
}

// TestSessionDeepCrawlWithHistory tests that history written during a
// run never suppresses pages discovered later in the same run: a link is
// recorded the moment it is liveness-checked, before its page is
// dequeued, and that record must not make the page look recently scanned.
func TestSessionDeepCrawlWithHistory(t *testing.T) {
	t.Parallel()

	ft := newFakeTransport(map[string]fakePage{
		"http://site.test/":  {status: 200, body: `<a href="/a">a</a>`},
		"http://site.test/a": {status: 200, body: `<a href="/b">b</a>`},
		"http://site.test/b": {status: 200, body: `<a href="/c">c</a>`},
		"http://site.test/c": {status: 200, body: ""},
	})

	hist := newFakeHistory()
	s := newTestSession(t, "http://site.test", ft,
		WithHistory(hist),
		WithFreshnessWindow(14*24*time.Hour),
	)
	report, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.PagesScanned != 4 {
		t.Errorf("expected all 4 pages in the chain to be scanned, got %d", report.PagesScanned)
	}
	if report.PagesSkipped != 0 {
		t.Errorf("a first run must skip nothing, got %d skips", report.PagesSkipped)
	}
	for _, u := range []string{"http://site.test/a", "http://site.test/b", "http://site.test/c"} {
		if got := ft.requestCount(http.MethodGet, u); got != 1 {
			t.Errorf("expected %s to be page-fetched once, got %d", u, got)
		}
	}
	if report.MaxDepthSeen != 3 {
		t.Errorf("expected max depth 3, got %d", report.MaxDepthSeen)
	}
}

// TestSessionPageBudget tests the page budget cap.
func TestSessionPageBudget(t *testing.T) {
	t.Parallel()

	pages := map[string]fakePage{
		"http://site.test/": {status: 200, body: `
			<a href="/p1">1</a><a href="/p2">2</a><a href="/p3">3</a>
			<a href="/p4">4</a><a href="/p5">5</a>`},
	}
	for i := 1; i <= 5; i++ {
		pages[fmt.Sprintf("http://site.test/p%d", i)] = fakePage{status: 200, body: ""}
	}
	ft := newFakeTransport(pages)

	s := newTestSession(t, "http://site.test", ft, WithMaxPages(3))
	report, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !report.BudgetExhausted {
		t.Error("expected budget exhaustion")
	}
	if report.PagesScanned != 3 {
		t.Errorf("expected exactly 3 pages scanned, got %d", report.PagesScanned)
	}
}

// TestSessionHistorySkip tests freshness-window skipping.
func TestSessionHistorySkip(t *testing.T) {
	t.Parallel()

	t.Run("fresh alive page is not refetched", func(t *testing.T) {
		t.Parallel()

		ft := newFakeTransport(map[string]fakePage{
			"http://site.test/":   {status: 200, body: `<a href="/ok">ok</a>`},
			"http://site.test/ok": {status: 200, body: ""},
		})

		hist := newFakeHistory()
		hist.set("http://site.test/ok", model.StatusAlive, time.Now().Add(-time.Hour))

		s := newTestSession(t, "http://site.test", ft,
			WithHistory(hist),
			WithFreshnessWindow(14*24*time.Hour),
		)
		report, err := s.Run(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if report.PagesSkipped != 1 {
			t.Errorf("expected 1 skipped page, got %d", report.PagesSkipped)
		}
		if report.PagesScanned != 2 {
			t.Errorf("skips count toward pages scanned; expected 2, got %d", report.PagesScanned)
		}
		if ft.sawURL("http://site.test/ok") {
			t.Error("fresh URL must not be hit at all")
		}
	})

	t.Run("fresh dead link is re-reported without network", func(t *testing.T) {
		t.Parallel()

		ft := newFakeTransport(map[string]fakePage{
			"http://site.test/": {status: 200, body: `<a href="/dead">dead</a>`},
		})

		hist := newFakeHistory()
		hist.set("http://site.test/dead", model.StatusDead, time.Now().Add(-time.Hour))

		s := newTestSession(t, "http://site.test", ft,
			WithHistory(hist),
			WithFreshnessWindow(14*24*time.Hour),
		)
		report, err := s.Run(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		dl, ok := findDeadLink(report, "http://site.test/dead")
		if !ok {
			t.Fatal("expected dead-link record from fresh history")
		}
		if !strings.Contains(dl.Reason, "history") {
			t.Errorf("expected history-based reason, got %q", dl.Reason)
		}
		if ft.sawURL("http://site.test/dead") {
			t.Error("fresh dead URL must not be hit at all")
		}
	})

	t.Run("stale history does not skip", func(t *testing.T) {
		t.Parallel()

		ft := newFakeTransport(map[string]fakePage{
			"http://site.test/":   {status: 200, body: `<a href="/ok">ok</a>`},
			"http://site.test/ok": {status: 200, body: ""},
		})

		hist := newFakeHistory()
		hist.set("http://site.test/ok", model.StatusAlive, time.Now().Add(-30*24*time.Hour))

		s := newTestSession(t, "http://site.test", ft,
			WithHistory(hist),
			WithFreshnessWindow(14*24*time.Hour),
		)
		report, err := s.Run(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if report.PagesSkipped != 0 {
			t.Errorf("stale record must not skip, got %d skips", report.PagesSkipped)
		}
		if !ft.sawURL("http://site.test/ok") {
			t.Error("stale URL must be rescanned")
		}
	})

	t.Run("base page is always rescanned", func(t *testing.T) {
		t.Parallel()

		ft := newFakeTransport(map[string]fakePage{
			"http://site.test/": {status: 200, body: ""},
		})

		hist := newFakeHistory()
		hist.set("http://site.test/", model.StatusAlive, time.Now().Add(-time.Hour))

		s := newTestSession(t, "http://site.test", ft,
			WithHistory(hist),
			WithFreshnessWindow(14*24*time.Hour),
		)
		report, err := s.Run(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if report.PagesSkipped != 0 {
			t.Errorf("base page must never be skipped, got %d skips", report.PagesSkipped)
		}
	})
}

// TestSessionRepeatRunWithinWindow tests that a second scan inside the
// freshness window touches only the base page yet reports the same dead
// links.
func TestSessionRepeatRunWithinWindow(t *testing.T) {
	t.Parallel()

	pages := map[string]fakePage{
		"http://site.test/": {status: 200, body: `
			<a href="/ok">ok</a>
			<a href="/missing">missing</a>`},
		"http://site.test/ok":      {status: 200, body: ""},
		"http://site.test/missing": {status: 404, body: ""},
	}
	hist := newFakeHistory()

	first := newTestSession(t, "http://site.test", newFakeTransport(pages), WithHistory(hist))
	firstReport, err := first.Run(context.Background())
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	if firstReport.DeadLinkCount() != 1 {
		t.Fatalf("expected 1 dead link in first run, got %d", firstReport.DeadLinkCount())
	}

	ft := newFakeTransport(pages)
	second := newTestSession(t, "http://site.test", ft, WithHistory(hist))
	secondReport, err := second.Run(context.Background())
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}

	if secondReport.DeadLinkCount() != 1 {
		t.Errorf("expected the dead link to be re-reported, got %d records", secondReport.DeadLinkCount())
	}
	if dl, ok := findDeadLink(secondReport, "http://site.test/missing"); !ok || !strings.Contains(dl.Reason, "history") {
		t.Errorf("expected history-based dead record, got %+v", secondReport.DeadLinks)
	}
	if secondReport.PagesSkipped != 1 {
		t.Errorf("expected /ok to be skipped, got %d skips", secondReport.PagesSkipped)
	}
	if ft.sawURL("http://site.test/ok") || ft.sawURL("http://site.test/missing") {
		t.Error("second run must only touch the base page")
	}
}

// TestSessionIgnorePatterns tests that matching links are neither
// checked nor crawled.
func TestSessionIgnorePatterns(t *testing.T) {
	t.Parallel()

	ft := newFakeTransport(map[string]fakePage{
		"http://site.test/": {status: 200, body: `
			<a href="/admin/panel">admin</a>
			<a href="/docs/file.pdf">pdf</a>
			<a href="/normal">normal</a>`},
		"http://site.test/normal": {status: 200, body: ""},
	})

	s := newTestSession(t, "http://site.test", ft,
		WithIgnorePatterns([]string{"/admin/*", "*.pdf"}),
	)
	report, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if ft.sawURL("http://site.test/admin/panel") {
		t.Error("ignored path must not be requested")
	}
	if ft.sawURL("http://site.test/docs/file.pdf") {
		t.Error("ignored extension must not be requested")
	}
	if got := report.DeadLinkCount(); got != 0 {
		t.Errorf("ignored links must not be reported dead, got %d records", got)
	}
	if !ft.sawURL("http://site.test/normal") {
		t.Error("non-ignored link must still be crawled")
	}
}

// TestSessionBaseVerification tests base URL resolution and failure.
func TestSessionBaseVerification(t *testing.T) {
	t.Parallel()

	t.Run("unreachable base is fatal", func(t *testing.T) {
		t.Parallel()

		ft := newFakeTransport(map[string]fakePage{})
		s := newTestSession(t, "http://site.test", ft)

		_, err := s.Run(context.Background())
		if err == nil {
			t.Fatal("expected error for unreachable base")
		}
		if !errors.Is(err, ErrBaseUnreachable) {
			t.Errorf("expected ErrBaseUnreachable, got %v", err)
		}
	})

	t.Run("schemeless target falls back to https", func(t *testing.T) {
		t.Parallel()

		ft := newFakeTransport(map[string]fakePage{
			"https://site.test/": {status: 200, body: ""},
		})

		s := newTestSession(t, "site.test", ft)
		report, err := s.Run(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if report.BaseURL != "https://site.test/" {
			t.Errorf("expected https fallback, got %q", report.BaseURL)
		}
	})

	t.Run("empty target is rejected at construction", func(t *testing.T) {
		t.Parallel()

		if _, err := NewSession("   "); err == nil {
			t.Error("expected error for empty target")
		}
	})
}

// TestBatchProcessor tests multi-target scanning.
func TestBatchProcessor(t *testing.T) {
	t.Parallel()

	ft := newFakeTransport(map[string]fakePage{
		"http://one.test/": {status: 200, body: `<a href="/missing">x</a>`},
		"http://one.test/missing": {status: 404, body: ""},
		"http://two.test/":        {status: 200, body: ""},
	})

	factory := func(target string) (*Session, error) {
		return newTestSession(t, target, ft), nil
	}

	bp, err := NewBatchProcessor(factory, WithBatchParallelism(2),
		WithBatchLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err != nil {
		t.Fatalf("failed to create batch processor: %v", err)
	}

	results := bp.Run(context.Background(), []string{"http://one.test", "http://two.test", "http://down.test"})
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}

	if results[0].Err != nil || results[0].Report == nil {
		t.Fatalf("first target failed: %v", results[0].Err)
	}
	if got := results[0].Report.DeadLinkCount(); got != 1 {
		t.Errorf("expected 1 dead link for first target, got %d", got)
	}

	if results[1].Err != nil || results[1].Report.DeadLinkCount() != 0 {
		t.Errorf("unexpected second result: %+v", results[1])
	}

	if results[2].Err == nil {
		t.Error("expected error for unreachable third target")
	}
	if !errors.Is(results[2].Err, ErrBaseUnreachable) {
		t.Errorf("expected ErrBaseUnreachable, got %v", results[2].Err)
	}
}

// TestBatchProcessorNilFactory tests constructor validation.
func TestBatchProcessorNilFactory(t *testing.T) {
	t.Parallel()

	if _, err := NewBatchProcessor(nil); err == nil {
		t.Error("expected error for nil factory")
	}
}
