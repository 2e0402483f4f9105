package report

import (
	"io"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/DrKenReid/DeadLinkScraper/internal/model"
)

// CSVWriter outputs the dead-link records of a report as CSV.
// This is the spreadsheet-friendly artifact written per scanned host.
//
// Design decision: We use gocarina/gocsv so the CSV columns come from
// struct tags on the row type instead of hand-maintained header slices.
type CSVWriter struct {
	baseWriter
}

// NewCSVWriter creates a CSVWriter that outputs to the given writer.
func NewCSVWriter(output io.Writer) *CSVWriter {
	return &CSVWriter{baseWriter: newBaseWriter(output)}
}

// deadLinkRow is the CSV projection of a dead-link record.
type deadLinkRow struct {
	SourcePage   string `csv:"source_page"`
	TargetURL    string `csv:"target_url"`
	StatusCode   int    `csv:"status_code"`
	Reason       string `csv:"reason"`
	DiscoveredAt string `csv:"discovered_at"`
}

// Write outputs the report's dead links as CSV, one row per record.
// A report with no dead links still gets a header row.
func (w *CSVWriter) Write(report *model.ScanReport) (int, error) {
	rows := make([]deadLinkRow, 0, len(report.DeadLinks))
	for _, dl := range report.DeadLinks {
		rows = append(rows, deadLinkRow{
			SourcePage:   dl.SourcePage,
			TargetURL:    dl.TargetURL,
			StatusCode:   dl.StatusCode,
			Reason:       dl.Reason,
			DiscoveredAt: dl.DiscoveredAt.UTC().Format(time.RFC3339),
		})
	}

	cw := &countingWriter{w: w.output}
	if err := gocsv.Marshal(&rows, cw); err != nil {
		return cw.n, err
	}
	return cw.n, nil
}

// historyRow is the CSV projection of a history record.
type historyRow struct {
	URL         string `csv:"url"`
	LastScanned string `csv:"last_scanned"`
	LastStatus  string `csv:"last_status"`
}

// WriteHistoryCSV writes the report's scan-history updates as CSV.
// This is the per-host scan_history.csv artifact.
func WriteHistoryCSV(output io.Writer, records []model.HistoryRecord) (int, error) {
	rows := make([]historyRow, 0, len(records))
	for _, rec := range records {
		rows = append(rows, historyRow{
			URL:         rec.URL,
			LastScanned: rec.LastScanned.UTC().Format(time.RFC3339),
			LastStatus:  string(rec.LastStatus),
		})
	}

	cw := &countingWriter{w: output}
	if err := gocsv.Marshal(&rows, cw); err != nil {
		return cw.n, err
	}
	return cw.n, nil
}
