package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/DrKenReid/DeadLinkScraper/internal/config"
	"github.com/DrKenReid/DeadLinkScraper/internal/history"
	"github.com/DrKenReid/DeadLinkScraper/internal/model"
)

// NewCompareCmd creates the compare command.
// This command compares scan results with historical data stored in the database.
func NewCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare [host]",
		Short: "Compare scan results with historical data",
		Long: `Compare displays differences between the current and previous scan results.

This command retrieves historical scan data from the database and shows:
- New dead links that appeared since the previous scan
- Fixed dead links that are no longer present
- Changes in page coverage

The comparison requires at least two stored scans for the specified host.
Use 'deadlinkscraper scan' to perform scans and save results.

Examples:
  # Compare latest two scans for a host
  deadlinkscraper compare www.example.com

  # List all scan history for a host
  deadlinkscraper compare --list www.example.com

  # Compare with a specific historical scan by ID
  deadlinkscraper compare --with-scan-id 5 www.example.com

  # Output comparison in JSON format
  deadlinkscraper compare --json www.example.com

  # List all scanned hosts in the database
  deadlinkscraper compare --list-hosts`,
		Args: cobra.MaximumNArgs(1),
		RunE: runCompareCmd,
	}

	// History listing flags
	cmd.Flags().BoolP("list", "l", false,
		"List scan history for the specified host")
	cmd.Flags().BoolP("list-hosts", "L", false,
		"List all scanned hosts in the database")

	// Comparison target flags
	cmd.Flags().Int64P("with-scan-id", "i", 0,
		"Compare with a specific scan by ID (use --list to see available IDs)")

	// Output format flags
	cmd.Flags().BoolP("json", "j", false,
		"Output comparison result in JSON format")

	return cmd
}

// runCompareCmd executes the compare command.
func runCompareCmd(cmd *cobra.Command, args []string) error {
	listHosts, err := cmd.Flags().GetBool("list-hosts")
	if err != nil {
		return err
	}

	// Validate arguments before opening the database (unless --list-hosts).
	var host string
	if !listHosts {
		if len(args) == 0 {
			return errors.New("host is required (use --list-hosts to see available hosts)")
		}
		host = normalizeHostArg(args[0])
	}

	db, err := history.Open(config.XDGDataDir(), history.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open history database: %w", err)
	}
	defer db.Close()

	ctx := context.Background()

	if listHosts {
		return listScannedHosts(ctx, cmd, db)
	}

	listHistory, err := cmd.Flags().GetBool("list")
	if err != nil {
		return err
	}
	if listHistory {
		return listScanHistory(ctx, cmd, db, host)
	}

	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	withScanID, err := cmd.Flags().GetInt64("with-scan-id")
	if err != nil {
		return err
	}

	return runComparison(ctx, cmd, db, host, withScanID, jsonOutput)
}

// normalizeHostArg strips scheme, path, and trailing slash so users can
// paste a full URL where a host is expected.
func normalizeHostArg(arg string) string {
	host := arg
	for _, prefix := range []string{"http://", "https://"} {
		host = strings.TrimPrefix(host, prefix)
	}
	if i := strings.IndexByte(host, '/'); i >= 0 {
		host = host[:i]
	}
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	return strings.ToLower(host)
}

// listScannedHosts lists all hosts that have scan records in the database.
func listScannedHosts(ctx context.Context, cmd *cobra.Command, db *history.Store) error {
	hosts, err := db.ListScannedHosts(ctx)
	if err != nil {
		return fmt.Errorf("failed to list hosts: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(hosts) == 0 {
		fmt.Fprintln(out, "No scanned hosts found in the database.")
		fmt.Fprintln(out, "\nUse 'deadlinkscraper scan <url>' to scan a site.")
		return nil
	}

	fmt.Fprintf(out, "Scanned hosts (%d):\n\n", len(hosts))
	for _, host := range hosts {
		fmt.Fprintf(out, "  • %s\n", host)
	}
	fmt.Fprintln(out, "\nUse 'deadlinkscraper compare --list <host>' to see scan history for a host.")

	return nil
}

// listScanHistory lists all stored scans for a specific host.
func listScanHistory(ctx context.Context, cmd *cobra.Command, db *history.Store, host string) error {
	scans, err := db.ScanReports(ctx, host, 0)
	if err != nil {
		return fmt.Errorf("failed to get scan history: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(scans) == 0 {
		fmt.Fprintf(out, "No scan history found for %s\n", host)
		fmt.Fprintln(out, "\nUse 'deadlinkscraper scan' to scan this site.")
		return nil
	}

	fmt.Fprintf(out, "Scan history for %s (%d scans):\n\n", host, len(scans))
	fmt.Fprintf(out, "  %-6s  %-20s  %-8s  %s\n", "ID", "Date", "Pages", "Dead Links")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 55))

	for _, meta := range scans {
		fmt.Fprintf(out, "  %-6d  %-20s  %-8d  %d\n",
			meta.ID,
			meta.StartedAt.Format("2006-01-02 15:04:05"),
			meta.PagesScanned,
			meta.DeadLinks,
		)
	}

	fmt.Fprintln(out, "\nUse 'deadlinkscraper compare <host>' to compare the latest two scans.")
	fmt.Fprintln(out, "Use 'deadlinkscraper compare --with-scan-id <id> <host>' to compare with a specific scan.")

	return nil
}

// runComparison performs the actual comparison between scan reports.
func runComparison(ctx context.Context, cmd *cobra.Command, db *history.Store, host string, withScanID int64, jsonOutput bool) error {
	scans, err := db.ScanReports(ctx, host, 0)
	if err != nil {
		return fmt.Errorf("failed to get scan history: %w", err)
	}

	if len(scans) == 0 {
		return fmt.Errorf("no scan history found for %s", host)
	}
	if len(scans) < 2 && withScanID == 0 {
		return fmt.Errorf("at least 2 scans are required for comparison (found %d)", len(scans))
	}

	// Latest scan is always the current one.
	currentReport, err := db.ScanReportByID(ctx, scans[0].ID)
	if err != nil {
		return fmt.Errorf("failed to load latest scan: %w", err)
	}
	if currentReport == nil {
		return fmt.Errorf("scan with ID %d not found", scans[0].ID)
	}

	var previousReport *model.ScanReport
	if withScanID > 0 {
		previousReport, err = db.ScanReportByID(ctx, withScanID)
		if err != nil {
			return fmt.Errorf("failed to get scan with ID %d: %w", withScanID, err)
		}
		if previousReport == nil {
			return fmt.Errorf("scan with ID %d not found", withScanID)
		}
		if previousReport.Host != host {
			return fmt.Errorf("scan ID %d belongs to %s, not %s", withScanID, previousReport.Host, host)
		}
	} else {
		previousReport, err = db.ScanReportByID(ctx, scans[1].ID)
		if err != nil {
			return fmt.Errorf("failed to load previous scan: %w", err)
		}
		if previousReport == nil {
			return fmt.Errorf("scan with ID %d not found", scans[1].ID)
		}
	}

	comparison := compareReports(previousReport, currentReport)

	if jsonOutput {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(comparison)
	}
	return outputComparisonText(cmd, comparison)
}

// ComparisonResult holds the result of comparing two scan reports.
type ComparisonResult struct {
	// Host is the compared host.
	Host string `json:"host"`

	// PreviousScan contains metadata about the previous scan.
	PreviousScan ComparisonScan `json:"previous_scan"`

	// CurrentScan contains metadata about the current scan.
	CurrentScan ComparisonScan `json:"current_scan"`

	// NewDeadLinks are dead links present now but not in the previous scan.
	NewDeadLinks []model.DeadLink `json:"new_dead_links,omitempty"`

	// FixedDeadLinks were dead in the previous scan but not now.
	FixedDeadLinks []model.DeadLink `json:"fixed_dead_links,omitempty"`

	// UnchangedCount is the number of dead links present in both scans.
	UnchangedCount int `json:"unchanged_count"`
}

// ComparisonScan contains metadata about a scan for comparison display.
type ComparisonScan struct {
	// StartedAt is when the scan began.
	StartedAt time.Time `json:"started_at"`

	// PagesScanned is the number of pages covered.
	PagesScanned int `json:"pages_scanned"`

	// DeadLinks is the total dead-link count.
	DeadLinks int `json:"dead_links"`
}

// compareReports compares two scan reports and generates a comparison result.
func compareReports(previous, current *model.ScanReport) *ComparisonResult {
	result := &ComparisonResult{
		Host: current.Host,
		PreviousScan: ComparisonScan{
			StartedAt:    previous.StartedAt,
			PagesScanned: previous.PagesScanned,
			DeadLinks:    previous.DeadLinkCount(),
		},
		CurrentScan: ComparisonScan{
			StartedAt:    current.StartedAt,
			PagesScanned: current.PagesScanned,
			DeadLinks:    current.DeadLinkCount(),
		},
	}

	previousLinks := make(map[string]model.DeadLink, len(previous.DeadLinks))
	for _, dl := range previous.DeadLinks {
		previousLinks[deadLinkKey(dl)] = dl
	}
	currentLinks := make(map[string]model.DeadLink, len(current.DeadLinks))
	for _, dl := range current.DeadLinks {
		currentLinks[deadLinkKey(dl)] = dl
	}

	for key, dl := range currentLinks {
		if _, exists := previousLinks[key]; !exists {
			result.NewDeadLinks = append(result.NewDeadLinks, dl)
		} else {
			result.UnchangedCount++
		}
	}
	for key, dl := range previousLinks {
		if _, exists := currentLinks[key]; !exists {
			result.FixedDeadLinks = append(result.FixedDeadLinks, dl)
		}
	}

	return result
}

// deadLinkKey generates a unique key for a dead link for comparison purposes.
func deadLinkKey(dl model.DeadLink) string {
	return dl.SourcePage + "|" + dl.TargetURL
}

// outputComparisonText outputs the comparison result in human-readable text format.
func outputComparisonText(cmd *cobra.Command, result *ComparisonResult) error {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "Scan Comparison: %s\n", result.Host)
	fmt.Fprintln(out, strings.Repeat("=", 60))

	fmt.Fprintf(out, "\nPrevious scan: %s (%d pages, %d dead links)\n",
		result.PreviousScan.StartedAt.Format("2006-01-02 15:04:05"),
		result.PreviousScan.PagesScanned,
		result.PreviousScan.DeadLinks)
	fmt.Fprintf(out, "Current scan:  %s (%d pages, %d dead links)\n",
		result.CurrentScan.StartedAt.Format("2006-01-02 15:04:05"),
		result.CurrentScan.PagesScanned,
		result.CurrentScan.DeadLinks)

	if len(result.NewDeadLinks) > 0 {
		fmt.Fprintf(out, "\nNew Dead Links (%d):\n", len(result.NewDeadLinks))
		for _, dl := range result.NewDeadLinks {
			fmt.Fprintf(out, "  [+] %s\n", dl.TargetURL)
			fmt.Fprintf(out, "      Found on: %s (%s)\n", dl.SourcePage, dl.Reason)
		}
	}

	if len(result.FixedDeadLinks) > 0 {
		fmt.Fprintf(out, "\nFixed Dead Links (%d):\n", len(result.FixedDeadLinks))
		for _, dl := range result.FixedDeadLinks {
			fmt.Fprintf(out, "  [-] %s\n", dl.TargetURL)
		}
	}

	if result.UnchangedCount > 0 {
		fmt.Fprintf(out, "\nStill dead: %d links\n", result.UnchangedCount)
	}
	if len(result.NewDeadLinks) == 0 && len(result.FixedDeadLinks) == 0 && result.UnchangedCount == 0 {
		fmt.Fprintln(out, "\nNo dead links in either scan.")
	}

	return nil
}
