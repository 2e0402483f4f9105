package model

import "time"

// ScanReport is the complete result of one crawl session.
// It is rendered by the report writers and persisted as a scan summary
// for later comparison.
type ScanReport struct {
	// BaseURL is the verified canonical base URL the crawl started from.
	BaseURL string `json:"base_url"`

	// Host is the base URL's host, used to key output locations.
	Host string `json:"host"`

	// MaxPages and MaxDepth are the budgets the session ran with.
	MaxPages int `json:"max_pages"`
	MaxDepth int `json:"max_depth"`

	// StartedAt and FinishedAt bound the session.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// PagesScanned counts dequeued tasks that completed, including pages
	// skipped via history. Never exceeds MaxPages.
	PagesScanned int `json:"pages_scanned"`

	// PagesSkipped counts pages skipped because their history record was
	// still fresh. Skips consume budget but perform no network I/O.
	PagesSkipped int `json:"pages_skipped"`

	// MaxDepthSeen is the deepest frontier level a dispatched task had.
	MaxDepthSeen int `json:"max_depth_seen"`

	// BudgetExhausted is true when the session ended because the
	// page budget ran out rather than the frontier draining.
	BudgetExhausted bool `json:"budget_exhausted"`

	// DeadLinks holds every confirmed-dead link, sorted by target then
	// source for deterministic output.
	DeadLinks []DeadLink `json:"dead_links"`

	// History holds the history entries updated during this session.
	History []HistoryRecord `json:"history"`
}

// DeadLinkCount returns the number of dead-link records in the report.
func (r *ScanReport) DeadLinkCount() int {
	return len(r.DeadLinks)
}

// Duration returns how long the session ran.
func (r *ScanReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
