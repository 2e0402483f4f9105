package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/DrKenReid/DeadLinkScraper/internal/config"
	"github.com/DrKenReid/DeadLinkScraper/internal/crawler"
	"github.com/DrKenReid/DeadLinkScraper/internal/history"
	logpkg "github.com/DrKenReid/DeadLinkScraper/internal/log"
	"github.com/DrKenReid/DeadLinkScraper/internal/model"
	"github.com/DrKenReid/DeadLinkScraper/internal/report"
	"github.com/DrKenReid/DeadLinkScraper/internal/storage"
)

// Per-host artifact file names under the results directory.
const (
	deadLinksFileName   = "deadlinks.csv"
	scanHistoryFileName = "scan_history.csv"
)

// NewScanCmd creates the scan command.
func NewScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [url]",
		Short: "Crawl a website and report its dead links",
		Long: `Scan crawls a website starting from the given URL and reports dead links.

It follows internal links breadth-first up to the configured depth and
page budget, checks every encountered link (internal, subdomain, and
external), and records each dead one with the page it was found on.

Results are written per host under the results directory:
- <host>/deadlinks.csv      dead links found in this scan
- <host>/scan_history.csv   URLs checked in this scan with their status

URLs scanned within the freshness window are skipped on repeat runs.

Examples:
  # Scan a single site (scheme optional; http falls back to https)
  deadlinkscraper scan example.com

  # Scan multiple sites concurrently
  deadlinkscraper scan site1.example site2.example --batch 2

  # Limit the crawl
  deadlinkscraper scan example.com --depth 3 --max-pages 200

  # Rescan everything regardless of history
  deadlinkscraper scan example.com --freshness 0

  # Write a Markdown report
  deadlinkscraper scan example.com --markdown -o report.md

Configuration file (.deadlinkscraper) example:
  sites:
    www.example.com:
      cookie: "session_id=abc123"
      headers:
        Authorization: "Bearer token"
      depth: 5
      ignorePatterns:
        - "/admin/*"`,
		Args: cobra.ArbitraryArgs,
		RunE: runScanCmd,
	}

	// Crawl budget flags
	cmd.Flags().IntP("max-pages", "p", config.DefaultMaxPages,
		"Maximum number of pages to crawl per site")
	cmd.Flags().IntP("depth", "d", config.DefaultMaxDepth,
		"Maximum crawl recursion depth")
	cmd.Flags().Int("concurrency", config.DefaultConcurrency,
		"Number of crawl workers per site")

	// Network behavior flags
	cmd.Flags().DurationP("timeout", "t", config.DefaultPageTimeout,
		"Timeout for each page fetch")
	cmd.Flags().Int("retries", config.DefaultMaxRetries,
		"Retries for transient network failures before a link is recorded dead")
	cmd.Flags().Bool("no-robots", false,
		"Ignore robots.txt rules")

	// History flags
	cmd.Flags().Duration("freshness", config.DefaultFreshnessWindow,
		"Skip URLs scanned within this window (0 disables skipping)")
	cmd.Flags().Bool("no-history", false,
		"Do not persist scan history across runs")

	// Batch scanning flags
	cmd.Flags().IntP("batch", "b", 2,
		"Number of sites scanned concurrently")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .deadlinkscraper in current or home directory)")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write the JSON/Markdown report to this file instead of stdout")
	cmd.Flags().String("out-dir", config.DefaultOutputDir,
		"Directory for per-host result files")

	return cmd
}

// runScanCmd executes the scan command.
func runScanCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := logpkg.NewLogger(os.Stderr, cfg.Verbose)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal, cancelling...")
		cancel()
	}()

	return runScan(ctx, cmd, cfg, logger)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from cobra command flags.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()

	var err error

	cfg.MaxPages, err = cmd.Flags().GetInt("max-pages")
	if err != nil {
		return nil, err
	}
	cfg.MaxDepth, err = cmd.Flags().GetInt("depth")
	if err != nil {
		return nil, err
	}
	cfg.Concurrency, err = cmd.Flags().GetInt("concurrency")
	if err != nil {
		return nil, err
	}
	cfg.PageTimeout, err = cmd.Flags().GetDuration("timeout")
	if err != nil {
		return nil, err
	}
	cfg.MaxRetries, err = cmd.Flags().GetInt("retries")
	if err != nil {
		return nil, err
	}
	cfg.FreshnessWindow, err = cmd.Flags().GetDuration("freshness")
	if err != nil {
		return nil, err
	}
	cfg.NoHistory, err = cmd.Flags().GetBool("no-history")
	if err != nil {
		return nil, err
	}

	noRobots, err := cmd.Flags().GetBool("no-robots")
	if err != nil {
		return nil, err
	}
	cfg.RespectRobots = !noRobots

	cfg.BatchSize, err = cmd.Flags().GetInt("batch")
	if err != nil {
		return nil, err
	}
	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	// Load site-specific configurations from config file.
	// If user explicitly specified a config file path, error if not found.
	// If no path specified, silently use empty config if no file found.
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)

	if configPath != "" {
		cfg.SiteConfigs, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	} else if explicitConfigPath {
		return nil, fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	} else {
		cfg.SiteConfigs = &config.File{
			Sites: make(map[string]config.SiteConfig),
		}
	}

	cfg.JSONReport, err = cmd.Flags().GetBool("json")
	if err != nil {
		return nil, err
	}
	cfg.MarkdownReport, err = cmd.Flags().GetBool("markdown")
	if err != nil {
		return nil, err
	}
	cfg.ReportFile, err = cmd.Flags().GetString("output")
	if err != nil {
		return nil, err
	}
	cfg.OutputDir, err = cmd.Flags().GetString("out-dir")
	if err != nil {
		return nil, err
	}

	cfg.Verbose = getVerboseFlag(cmd)
	cfg.Targets = args

	return cfg, nil
}

// runScan executes the scan for every configured target.
func runScan(ctx context.Context, cmd *cobra.Command, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("starting scan",
		"targets", cfg.Targets,
		"maxPages", cfg.MaxPages,
		"maxDepth", cfg.MaxDepth,
		"batchSize", cfg.BatchSize,
	)

	// Persistent history lives in the XDG data directory unless disabled.
	var store crawler.HistoryStore
	var db *history.Store
	if cfg.NoHistory {
		store = history.NewMemoryStore()
	} else {
		var err error
		db, err = history.Open(cfg.HistoryDir, history.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open history database: %w", err)
		}
		defer db.Close()
		store = db
		logger.Info("history database opened", "dir", cfg.HistoryDir)
	}

	results := storage.NewDir(cfg.OutputDir)

	factory := func(target string) (*crawler.Session, error) {
		return newSessionForTarget(cmd, cfg, target, store, logger)
	}

	if len(cfg.Targets) > 1 && cfg.BatchSize > 1 {
		return runBatchScan(ctx, cmd, cfg, factory, results, db, logger)
	}
	return runSequentialScan(ctx, cmd, cfg, factory, results, db, logger)
}

// runSequentialScan scans targets one at a time.
func runSequentialScan(ctx context.Context, cmd *cobra.Command, cfg *config.Config, factory crawler.SessionFactory, results *storage.Dir, db *history.Store, logger *slog.Logger) error {
	out := cmd.OutOrStdout()

	for _, target := range cfg.Targets {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		fmt.Fprintf(out, "Scanning %s...\n", target)
		startTime := time.Now()

		session, err := factory(target)
		if err != nil {
			logger.Error("scan setup failed", "target", target, "error", err)
			fmt.Fprintf(os.Stderr, "Scan error for %s: %v\n", target, err)
			continue
		}

		scanReport, err := session.Run(ctx)
		if err != nil && scanReport == nil {
			logger.Error("scan failed", "target", target, "error", err)
			fmt.Fprintf(os.Stderr, "Scan error for %s: %v\n", target, err)
			continue
		}

		fmt.Fprintf(out, "Scan completed in %s\n\n", time.Since(startTime).Round(time.Millisecond))

		handleReport(ctx, cmd, cfg, scanReport, results, db, logger)
	}

	return nil
}

// runBatchScan scans multiple targets concurrently using BatchProcessor.
func runBatchScan(ctx context.Context, cmd *cobra.Command, cfg *config.Config, factory crawler.SessionFactory, results *storage.Dir, db *history.Store, logger *slog.Logger) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Starting batch scan of %d targets (concurrency: %d)...\n\n",
		len(cfg.Targets), cfg.BatchSize)

	startTime := time.Now()

	bp, err := crawler.NewBatchProcessor(factory,
		crawler.WithBatchParallelism(cfg.BatchSize),
		crawler.WithBatchLogger(logger),
	)
	if err != nil {
		return err
	}

	for i, res := range bp.Run(ctx, cfg.Targets) {
		if res.Err != nil && res.Report == nil {
			fmt.Fprintf(os.Stderr, "[%d/%d] Scan error for %s: %v\n", i+1, len(cfg.Targets), res.Target, res.Err)
			continue
		}
		fmt.Fprintf(out, "[%d/%d] Scan completed: %s\n", i+1, len(cfg.Targets), res.Target)
		handleReport(ctx, cmd, cfg, res.Report, results, db, logger)
	}

	fmt.Fprintf(out, "\nBatch scan completed in %s\n", time.Since(startTime).Round(time.Millisecond))
	return ctx.Err()
}

// handleReport writes all artifacts for one completed scan: the per-host
// CSV files, the console or file report, and the stored scan summary.
func handleReport(ctx context.Context, cmd *cobra.Command, cfg *config.Config, scanReport *model.ScanReport, results *storage.Dir, db *history.Store, logger *slog.Logger) {
	if err := exportHostArtifacts(scanReport, results); err != nil {
		logger.Error("failed to write result files", "host", scanReport.Host, "error", err)
	}

	if err := outputReport(cmd, cfg, scanReport); err != nil {
		logger.Error("report failed", "host", scanReport.Host, "error", err)
	}

	if db != nil {
		if _, err := db.SaveScanReport(ctx, scanReport); err != nil {
			logger.Error("failed to save scan report", "host", scanReport.Host, "error", err)
		} else {
			logger.Info("scan report saved", "host", scanReport.Host)
		}
	}
}

// exportHostArtifacts writes deadlinks.csv and scan_history.csv for the
// scanned host under the results directory.
func exportHostArtifacts(scanReport *model.ScanReport, results *storage.Dir) error {
	deadFile, err := results.Create(storage.Key(scanReport.Host, deadLinksFileName))
	if err != nil {
		return err
	}
	_, csvErr := report.NewCSVWriter(deadFile).Write(scanReport)
	if err := deadFile.Close(); err != nil {
		return err
	}
	if csvErr != nil {
		return csvErr
	}

	histFile, err := results.Create(storage.Key(scanReport.Host, scanHistoryFileName))
	if err != nil {
		return err
	}
	_, csvErr = report.WriteHistoryCSV(histFile, scanReport.History)
	if err := histFile.Close(); err != nil {
		return err
	}
	return csvErr
}

// outputReport renders the scan report in the requested format.
func outputReport(cmd *cobra.Command, cfg *config.Config, scanReport *model.ScanReport) error {
	var output *os.File
	if cfg.ReportFile != "" {
		dir := filepath.Dir(cfg.ReportFile)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}

		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		output = f
	}

	var writer report.Writer
	switch {
	case cfg.JSONReport:
		if output != nil {
			writer = report.NewFullJSONWriter(output, getVersion(), report.WithPrettyPrint())
		} else {
			writer = report.NewFullJSONWriter(cmd.OutOrStdout(), getVersion(), report.WithPrettyPrint())
		}
	case cfg.MarkdownReport:
		if output != nil {
			writer = report.NewMarkdownWriter(output)
		} else {
			writer = report.NewMarkdownWriter(cmd.OutOrStdout())
		}
	default:
		// Human-readable console table (always to stdout)
		writer = report.NewTableWriter(cmd.OutOrStdout())
	}

	_, err := writer.Write(scanReport)
	return err
}

// newSessionForTarget builds a crawl session for one target, applying
// site-specific overrides from the configuration file.
func newSessionForTarget(cmd *cobra.Command, cfg *config.Config, target string, store crawler.HistoryStore, logger *slog.Logger) (*crawler.Session, error) {
	siteCfg := siteConfigFor(cfg, target)

	fetcherOpts := []crawler.FetcherOption{
		crawler.WithPageTimeout(cfg.PageTimeout),
		crawler.WithCheckTimeout(cfg.CheckTimeout),
		crawler.WithMaxRetries(cfg.MaxRetries),
		crawler.WithMaxRedirects(cfg.MaxRedirects),
		crawler.WithUserAgent(cfg.UserAgent),
		crawler.WithMaxBodySize(cfg.MaxBodySize),
	}
	if siteCfg.Cookie != "" {
		fetcherOpts = append(fetcherOpts, crawler.WithCookie(siteCfg.Cookie))
	}
	if len(siteCfg.Headers) > 0 {
		fetcherOpts = append(fetcherOpts, crawler.WithHeaders(siteCfg.Headers))
	}

	maxDepth := cfg.MaxDepth
	if siteCfg.Depth > 0 {
		maxDepth = siteCfg.Depth
	}
	freshness := cfg.FreshnessWindow
	if siteCfg.FreshnessDays > 0 {
		freshness = time.Duration(siteCfg.FreshnessDays) * 24 * time.Hour
	}

	sessionOpts := []crawler.SessionOption{
		crawler.WithMaxPages(cfg.MaxPages),
		crawler.WithMaxDepth(maxDepth),
		crawler.WithConcurrency(cfg.Concurrency),
		crawler.WithFreshnessWindow(freshness),
		crawler.WithFetcher(crawler.NewFetcher(fetcherOpts...)),
		crawler.WithHistory(store),
		crawler.WithSessionLogger(logger),
		crawler.WithObserver(newProgressPrinter(cmd.OutOrStdout())),
	}
	if len(siteCfg.IgnorePatterns) > 0 {
		sessionOpts = append(sessionOpts, crawler.WithIgnorePatterns(siteCfg.IgnorePatterns))
	}
	if cfg.RespectRobots {
		robotsClient := &http.Client{Timeout: cfg.CheckTimeout}
		sessionOpts = append(sessionOpts, crawler.WithPolicy(crawler.NewRobotsPolicy(robotsClient, cfg.UserAgent)))
	}

	return crawler.NewSession(target, sessionOpts...)
}

// siteConfigFor returns the site-specific configuration for a target,
// matching by host with and without a scheme prefix.
func siteConfigFor(cfg *config.Config, target string) config.SiteConfig {
	if cfg.SiteConfigs == nil {
		return config.SiteConfig{}
	}

	cleanTarget := target
	for _, prefix := range []string{"http://", "https://"} {
		cleanTarget = strings.TrimPrefix(cleanTarget, prefix)
	}
	cleanTarget = strings.TrimSuffix(cleanTarget, "/")

	return cfg.SiteConfigs.GetSiteConfig(cleanTarget)
}

// progressPrinter renders a single updating progress line to the console.
// It is rate-limited so concurrent workers don't flood the terminal.
type progressPrinter struct {
	mu   sync.Mutex
	out  io.Writer
	last time.Time
}

// newProgressPrinter creates a progress observer writing to out.
func newProgressPrinter(out io.Writer) *progressPrinter {
	return &progressPrinter{out: out}
}

// Progress implements crawler.Observer.
func (p *progressPrinter) Progress(s crawler.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if time.Since(p.last) < 200*time.Millisecond {
		return
	}
	p.last = time.Now()

	fmt.Fprintf(p.out, "\rScanned: %d | Queued: %d | Dead: %d | Depth: %d   ",
		s.PagesScanned, s.QueuedRemaining, s.DeadLinksFound, s.MaxDepthSeen)
}
