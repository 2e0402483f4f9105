package model

import (
	"testing"
	"time"
)

// TestLinkClass tests class naming and crawl eligibility.
func TestLinkClass(t *testing.T) {
	t.Parallel()

	tests := []struct {
		class     LinkClass
		name      string
		crawlable bool
	}{
		{ClassInvalid, "invalid", false},
		{ClassInternal, "internal", true},
		{ClassSubdomain, "subdomain", true},
		{ClassExternal, "external", false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.class.String(); got != tt.name {
				t.Errorf("String() = %q, want %q", got, tt.name)
			}
			if got := tt.class.Crawlable(); got != tt.crawlable {
				t.Errorf("Crawlable() = %v, want %v", got, tt.crawlable)
			}
		})
	}
}

// TestLinkStatusValid tests recognition of persisted status values.
func TestLinkStatusValid(t *testing.T) {
	t.Parallel()

	for _, s := range []LinkStatus{StatusAlive, StatusDead, StatusError} {
		if !s.Valid() {
			t.Errorf("expected %q to be valid", s)
		}
	}
	for _, s := range []LinkStatus{"", "unknown", "ALIVE"} {
		if s.Valid() {
			t.Errorf("expected %q to be invalid", s)
		}
	}
}

// TestCheckResultStatus tests the check-result to status mapping.
func TestCheckResultStatus(t *testing.T) {
	t.Parallel()

	alive := CheckResult{Alive: true, StatusCode: 200}
	if alive.Status() != StatusAlive {
		t.Errorf("expected alive status, got %q", alive.Status())
	}

	dead := CheckResult{StatusCode: 404, Reason: "http status 404"}
	if dead.Status() != StatusDead {
		t.Errorf("expected dead status, got %q", dead.Status())
	}

	unreachable := CheckResult{Reason: "unreachable after retries"}
	if unreachable.Status() != StatusDead {
		t.Errorf("expected dead status for network failure, got %q", unreachable.Status())
	}
}

// TestHistoryRecordFresh tests freshness-window evaluation.
func TestHistoryRecordFresh(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 22, 12, 0, 0, 0, time.UTC)
	window := 14 * 24 * time.Hour

	tests := []struct {
		name    string
		scanned time.Time
		window  time.Duration
		want    bool
	}{
		{"scanned an hour ago", now.Add(-time.Hour), window, true},
		{"scanned 13 days ago", now.Add(-13 * 24 * time.Hour), window, true},
		{"scanned exactly at the window edge", now.Add(-window), window, false},
		{"scanned 30 days ago", now.Add(-30 * 24 * time.Hour), window, false},
		{"zero window disables skipping", now.Add(-time.Minute), 0, false},
		{"negative window disables skipping", now.Add(-time.Minute), -time.Hour, false},
		{"zero-value record is never fresh", time.Time{}, window, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := HistoryRecord{URL: "https://example.com/", LastScanned: tt.scanned, LastStatus: StatusAlive}
			if got := rec.Fresh(now, tt.window); got != tt.want {
				t.Errorf("Fresh() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestScanReportHelpers tests the derived report accessors.
func TestScanReportHelpers(t *testing.T) {
	t.Parallel()

	started := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)
	report := ScanReport{
		StartedAt:  started,
		FinishedAt: started.Add(90 * time.Second),
		DeadLinks: []DeadLink{
			{TargetURL: "https://example.com/a"},
			{TargetURL: "https://example.com/b"},
		},
	}

	if got := report.DeadLinkCount(); got != 2 {
		t.Errorf("DeadLinkCount() = %d, want 2", got)
	}
	if got := report.Duration(); got != 90*time.Second {
		t.Errorf("Duration() = %v, want 90s", got)
	}
}
