package crawler

import (
	"sort"
	"sync"
	"time"

	"github.com/DrKenReid/DeadLinkScraper/internal/model"
)

// Sink accumulates the session's outputs: dead-link records (append-only)
// and the history entries updated during the run. It is one of the two
// pieces of shared mutable state in a session (the other is the
// Frontier); appends hold the lock briefly and never perform I/O.
type Sink struct {
	mu        sync.Mutex
	deadLinks []model.DeadLink
	history   map[string]model.HistoryRecord
}

// NewSink creates an empty Sink.
func NewSink() *Sink {
	return &Sink{history: make(map[string]model.HistoryRecord)}
}

// AddDeadLink appends one confirmed-dead link record. Duplicate targets
// from different source pages are distinct records by design.
func (s *Sink) AddDeadLink(sourcePage, targetURL string, statusCode int, reason string, discoveredAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deadLinks = append(s.deadLinks, model.DeadLink{
		SourcePage:   sourcePage,
		TargetURL:    targetURL,
		StatusCode:   statusCode,
		Reason:       reason,
		DiscoveredAt: discoveredAt,
	})
}

// RecordHistory upserts the session-local history entry for a URL.
func (s *Sink) RecordHistory(url string, status model.LinkStatus, scannedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history[url] = model.HistoryRecord{URL: url, LastScanned: scannedAt, LastStatus: status}
}

// DeadLinkCount returns the number of dead links recorded so far.
func (s *Sink) DeadLinkCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.deadLinks)
}

// DeadLinks returns a copy of the dead-link records, sorted by target
// then source. Workers race on append order, so consumers get a
// deterministic view instead.
func (s *Sink) DeadLinks() []model.DeadLink {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.DeadLink, len(s.deadLinks))
	copy(out, s.deadLinks)
	sort.Slice(out, func(i, j int) bool {
		if out[i].TargetURL != out[j].TargetURL {
			return out[i].TargetURL < out[j].TargetURL
		}
		return out[i].SourcePage < out[j].SourcePage
	})
	return out
}

// HistoryRecords returns a copy of the session's history updates,
// sorted by URL.
func (s *Sink) HistoryRecords() []model.HistoryRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.HistoryRecord, 0, len(s.history))
	for _, rec := range s.history {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URL < out[j].URL })
	return out
}
