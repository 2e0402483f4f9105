package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DrKenReid/DeadLinkScraper/internal/model"
)

// sampleReport builds a report with two dead links for writer tests.
func sampleReport() *model.ScanReport {
	started := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)
	return &model.ScanReport{
		BaseURL:      "https://example.com/",
		Host:         "example.com",
		MaxPages:     100,
		MaxDepth:     5,
		StartedAt:    started,
		FinishedAt:   started.Add(90 * time.Second),
		PagesScanned: 42,
		PagesSkipped: 3,
		MaxDepthSeen: 4,
		DeadLinks: []model.DeadLink{
			{
				SourcePage:   "https://example.com/",
				TargetURL:    "https://example.com/gone",
				StatusCode:   404,
				Reason:       "http status 404",
				DiscoveredAt: started.Add(time.Minute),
			},
			{
				SourcePage:   "https://example.com/about",
				TargetURL:    "https://other.test/down",
				StatusCode:   0,
				Reason:       "unreachable after retries",
				DiscoveredAt: started.Add(time.Minute),
			},
		},
		History: []model.HistoryRecord{
			{URL: "https://example.com/", LastScanned: started, LastStatus: model.StatusAlive},
			{URL: "https://example.com/gone", LastScanned: started, LastStatus: model.StatusDead},
		},
	}
}

// TestJSONWriter tests compact and indented JSON output.
func TestJSONWriter(t *testing.T) {
	t.Parallel()

	t.Run("compact output round-trips", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		n, err := NewJSONWriter(&buf).Write(sampleReport())
		if err != nil {
			t.Fatalf("failed to write: %v", err)
		}
		if n != buf.Len() {
			t.Errorf("reported %d bytes, wrote %d", n, buf.Len())
		}

		var got model.ScanReport
		if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
			t.Fatalf("output is not valid JSON: %v", err)
		}
		if got.Host != "example.com" || len(got.DeadLinks) != 2 {
			t.Errorf("unexpected round-trip: %+v", got)
		}
		if strings.Count(buf.String(), "\n") != 1 {
			t.Error("compact output must be a single line plus trailing newline")
		}
	})

	t.Run("pretty print indents", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf, WithPrettyPrint()).Write(sampleReport()); err != nil {
			t.Fatalf("failed to write: %v", err)
		}
		if !strings.Contains(buf.String(), "\n  ") {
			t.Error("expected indented output")
		}
	})

	t.Run("full writer wraps with version", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewFullJSONWriter(&buf, "1.2.3").Write(sampleReport()); err != nil {
			t.Fatalf("failed to write: %v", err)
		}

		var wrapped JSONReport
		if err := json.Unmarshal(buf.Bytes(), &wrapped); err != nil {
			t.Fatalf("output is not valid JSON: %v", err)
		}
		if wrapped.Version != "1.2.3" {
			t.Errorf("expected version 1.2.3, got %q", wrapped.Version)
		}
		if wrapped.Report == nil || wrapped.Report.PagesScanned != 42 {
			t.Errorf("unexpected wrapped report: %+v", wrapped.Report)
		}
	})
}

// TestCSVWriter tests the dead-link CSV artifact.
func TestCSVWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes header and one row per record", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		n, err := NewCSVWriter(&buf).Write(sampleReport())
		if err != nil {
			t.Fatalf("failed to write: %v", err)
		}
		if n != buf.Len() {
			t.Errorf("reported %d bytes, wrote %d", n, buf.Len())
		}

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		if len(lines) != 3 {
			t.Fatalf("expected header plus 2 rows, got %d lines: %q", len(lines), buf.String())
		}
		if lines[0] != "source_page,target_url,status_code,reason,discovered_at" {
			t.Errorf("unexpected header: %q", lines[0])
		}
		if !strings.Contains(lines[1], "https://example.com/gone") || !strings.Contains(lines[1], "404") {
			t.Errorf("unexpected first row: %q", lines[1])
		}
	})

	t.Run("empty report still gets a header", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		report := sampleReport()
		report.DeadLinks = nil
		if _, err := NewCSVWriter(&buf).Write(report); err != nil {
			t.Fatalf("failed to write: %v", err)
		}
		if !strings.HasPrefix(buf.String(), "source_page,") {
			t.Errorf("expected header row, got %q", buf.String())
		}
	})
}

// TestWriteHistoryCSV tests the scan-history CSV artifact.
func TestWriteHistoryCSV(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if _, err := WriteHistoryCSV(&buf, sampleReport().History); err != nil {
		t.Fatalf("failed to write: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d lines", len(lines))
	}
	if lines[0] != "url,last_scanned,last_status" {
		t.Errorf("unexpected header: %q", lines[0])
	}
	if !strings.Contains(lines[2], "dead") {
		t.Errorf("expected dead status in last row: %q", lines[2])
	}
}

// TestMarkdownWriter tests the Markdown report.
func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	t.Run("renders summary and dead-link table", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(sampleReport()); err != nil {
			t.Fatalf("failed to write: %v", err)
		}

		out := buf.String()
		for _, want := range []string{
			"# Dead Link Report",
			"## Dead Links",
			"`https://example.com/`",
			"https://example.com/gone",
			"404",
			"unreachable after retries",
			"✅ Complete",
		} {
			if !strings.Contains(out, want) {
				t.Errorf("expected %q in markdown output", want)
			}
		}
	})

	t.Run("network failures render a dash status", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		report := sampleReport()
		report.DeadLinks = report.DeadLinks[1:]
		if _, err := NewMarkdownWriter(&buf).Write(report); err != nil {
			t.Fatalf("failed to write: %v", err)
		}
		out := buf.String()
		if !strings.Contains(out, "| - ") && !strings.Contains(out, "| -|") {
			t.Errorf("expected dash status cell, got:\n%s", out)
		}
	})

	t.Run("flags partial coverage", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		report := sampleReport()
		report.BudgetExhausted = true
		if _, err := NewMarkdownWriter(&buf).Write(report); err != nil {
			t.Fatalf("failed to write: %v", err)
		}
		if !strings.Contains(buf.String(), "Page budget exhausted") {
			t.Error("expected budget warning in status")
		}
	})

	t.Run("clean scan gets a note instead of a table", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		report := sampleReport()
		report.DeadLinks = nil
		if _, err := NewMarkdownWriter(&buf).Write(report); err != nil {
			t.Fatalf("failed to write: %v", err)
		}
		if !strings.Contains(buf.String(), "No dead links found.") {
			t.Error("expected success note")
		}
	})
}

// TestTableWriter tests the console table output.
func TestTableWriter(t *testing.T) {
	t.Parallel()

	t.Run("summary line and rows", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		n, err := NewTableWriter(&buf).Write(sampleReport())
		if err != nil {
			t.Fatalf("failed to write: %v", err)
		}
		if n != buf.Len() {
			t.Errorf("reported %d bytes, wrote %d", n, buf.Len())
		}

		out := buf.String()
		if !strings.Contains(out, "42 pages scanned (3 skipped), 2 dead links, complete") {
			t.Errorf("unexpected summary: %s", out)
		}
		if !strings.Contains(out, "https://example.com/gone") {
			t.Errorf("expected dead link row, got:\n%s", out)
		}
	})

	t.Run("clean scan", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		report := sampleReport()
		report.DeadLinks = nil
		if _, err := NewTableWriter(&buf).Write(report); err != nil {
			t.Fatalf("failed to write: %v", err)
		}
		if !strings.Contains(buf.String(), "No dead links found.") {
			t.Error("expected clean-scan message")
		}
	})
}

// TestMultiWriter tests fan-out to several writers.
func TestMultiWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes to every destination", func(t *testing.T) {
		t.Parallel()

		var jsonBuf, csvBuf bytes.Buffer
		mw := NewMultiWriter(NewJSONWriter(&jsonBuf), NewCSVWriter(&csvBuf))

		n, err := mw.Write(sampleReport())
		if err != nil {
			t.Fatalf("failed to write: %v", err)
		}
		if n != jsonBuf.Len()+csvBuf.Len() {
			t.Errorf("expected total %d, got %d", jsonBuf.Len()+csvBuf.Len(), n)
		}
		if jsonBuf.Len() == 0 || csvBuf.Len() == 0 {
			t.Error("expected output in both buffers")
		}
	})

	t.Run("stops on first error", func(t *testing.T) {
		t.Parallel()

		wantErr := errors.New("sink failed")
		var buf bytes.Buffer
		mw := NewMultiWriter(failingWriter{err: wantErr}, NewJSONWriter(&buf))

		if _, err := mw.Write(sampleReport()); !errors.Is(err, wantErr) {
			t.Errorf("expected %v, got %v", wantErr, err)
		}
		if buf.Len() != 0 {
			t.Error("later writers must not run after a failure")
		}
	})
}

// failingWriter always returns its configured error.
type failingWriter struct {
	err error
}

func (f failingWriter) Write(*model.ScanReport) (int, error) {
	return 0, f.err
}
