package report

import (
	"io"
	"strconv"

	"github.com/nao1215/markdown"

	"github.com/DrKenReid/DeadLinkScraper/internal/model"
)

// MarkdownWriter outputs reports in Markdown format.
// This format is designed for documentation and sharing.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation which provides:
// 1. Type-safe markdown generation
// 2. Support for tables, lists, and code blocks
// 3. GitHub-flavored markdown alerts
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the full report in Markdown format.
func (w *MarkdownWriter) Write(report *model.ScanReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeDeadLinks(md, report)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with scan information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.ScanReport) {
	md.H1("Dead Link Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Base URL", "`" + report.BaseURL + "`"},
			{"Scan Date", report.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Duration", report.Duration().Round(1e6).String()},
			{"Pages Scanned", strconv.Itoa(report.PagesScanned)},
			{"Pages Skipped (fresh history)", strconv.Itoa(report.PagesSkipped)},
			{"Max Depth Reached", strconv.Itoa(report.MaxDepthSeen)},
			{"Dead Links", strconv.Itoa(report.DeadLinkCount())},
			{"Status", w.statusText(report)},
		},
	})
	md.PlainText("")
}

// statusText returns the status text based on report state.
func (w *MarkdownWriter) statusText(report *model.ScanReport) string {
	if report.BudgetExhausted {
		return "⚠️ Page budget exhausted (partial coverage)"
	}
	return "✅ Complete"
}

// writeDeadLinks writes the dead-link table, or a success alert when the
// scan found none.
func (w *MarkdownWriter) writeDeadLinks(md *markdown.Markdown, report *model.ScanReport) {
	md.H2("Dead Links")
	md.PlainText("")

	if len(report.DeadLinks) == 0 {
		md.Note("No dead links found.")
		md.PlainText("")
		return
	}

	rows := make([][]string, 0, len(report.DeadLinks))
	for _, dl := range report.DeadLinks {
		rows = append(rows, []string{
			"`" + dl.TargetURL + "`",
			"`" + dl.SourcePage + "`",
			statusCell(dl.StatusCode),
			dl.Reason,
		})
	}

	md.Table(markdown.TableSet{
		Header: []string{"Dead Link", "Found On", "Status", "Reason"},
		Rows:   rows,
	})
	md.PlainText("")
}

// statusCell renders an HTTP status code, or a dash for network-level
// failures that never got a response.
func statusCell(code int) string {
	if code == 0 {
		return "-"
	}
	return strconv.Itoa(code)
}
