package report

import (
	"fmt"
	"io"

	"github.com/rodaine/table"

	"github.com/DrKenReid/DeadLinkScraper/internal/model"
)

// TableWriter outputs reports as a console table. This is the default
// human-readable format for terminal display.
type TableWriter struct {
	baseWriter
}

// NewTableWriter creates a TableWriter that outputs to the given writer.
func NewTableWriter(output io.Writer) *TableWriter {
	return &TableWriter{baseWriter: newBaseWriter(output)}
}

// Write renders the report summary and its dead links as a table.
func (w *TableWriter) Write(report *model.ScanReport) (int, error) {
	cw := &countingWriter{w: w.output}

	status := "complete"
	if report.BudgetExhausted {
		status = "page budget exhausted"
	}
	fmt.Fprintf(cw, "%s: %d pages scanned (%d skipped), %d dead links, %s\n",
		report.BaseURL, report.PagesScanned, report.PagesSkipped, report.DeadLinkCount(), status)

	if len(report.DeadLinks) == 0 {
		fmt.Fprintln(cw, "No dead links found.")
		return cw.n, nil
	}

	tbl := table.New("Dead Link", "Found On", "Status", "Reason").WithWriter(cw)
	for _, dl := range report.DeadLinks {
		tbl.AddRow(dl.TargetURL, dl.SourcePage, statusCell(dl.StatusCode), dl.Reason)
	}
	tbl.Print()

	return cw.n, nil
}
