package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values. The crawl budgets match the original
// scraper defaults; the network values are chosen for ordinary clearnet
// sites where a page that takes longer than a few seconds to answer is
// effectively dead for our purposes.
const (
	// DefaultMaxPages caps the total number of pages a session will crawl.
	// This prevents runaway crawling on large or infinitely-generating sites.
	DefaultMaxPages = 10000

	// DefaultMaxDepth limits how deep the crawl follows links from the
	// base URL. Depth 0 is the base page itself.
	DefaultMaxDepth = 20

	// DefaultConcurrency is the number of crawl workers draining the
	// frontier. Higher values speed up large sites but hit the target
	// harder; 10 is polite for a single host.
	DefaultConcurrency = 10

	// DefaultFreshnessWindow is how long a history record keeps a URL from
	// being rescanned. Pages rarely resurrect or die within two weeks.
	DefaultFreshnessWindow = 14 * 24 * time.Hour

	// DefaultPageTimeout is the per-request timeout for full page fetches.
	DefaultPageTimeout = 10 * time.Second

	// DefaultCheckTimeout is the per-request timeout for liveness checks.
	// Checks are HEAD-style probes, so a shorter timeout keeps a site full
	// of slow links from stalling the crawl.
	DefaultCheckTimeout = 5 * time.Second

	// DefaultMaxRetries is how many times a transient network failure is
	// retried before the target is recorded as dead.
	DefaultMaxRetries = 2

	// DefaultMaxRedirects bounds the redirect chain a check will follow.
	// Longer chains are reported as redirect loops.
	DefaultMaxRedirects = 5

	// DefaultUserAgent identifies the scraper in HTTP requests. Using a
	// descriptive User-Agent lets site operators identify scanner traffic.
	DefaultUserAgent = "DeadLinkScraper/1.0 (+https://github.com/DrKenReid/DeadLinkScraper)"

	// DefaultMaxBodySize limits the response body size read per page.
	// 5MB is plenty for HTML while preventing memory exhaustion.
	DefaultMaxBodySize = 5 * 1024 * 1024

	// DefaultOutputDir is where per-host result files are written.
	DefaultOutputDir = "results"

	// AppName is the application name used for XDG directory paths.
	AppName = "deadlinkscraper"
)

// Config holds all configuration options for a scraper run.
// It is populated from CLI flags and passed through the application via
// dependency injection rather than global state.
type Config struct {
	// Targets is the list of base URLs to scan. A scheme-less target is
	// tried as http:// first, falling back to https://.
	Targets []string

	// MaxPages caps the total pages crawled per target.
	MaxPages int

	// MaxDepth is the maximum link-following depth from the base URL.
	MaxDepth int

	// Concurrency is the number of crawl workers per target.
	Concurrency int

	// FreshnessWindow is how recently a URL must have been scanned for
	// the history store to skip it. Zero disables skipping.
	FreshnessWindow time.Duration

	// PageTimeout is the per-request timeout for page fetches.
	PageTimeout time.Duration

	// CheckTimeout is the per-request timeout for liveness checks.
	CheckTimeout time.Duration

	// MaxRetries is the retry budget for transient network failures.
	MaxRetries int

	// MaxRedirects bounds the redirect chain length per request.
	MaxRedirects int

	// UserAgent is the User-Agent header sent with all requests.
	UserAgent string

	// MaxBodySize is the maximum response body size in bytes to read.
	MaxBodySize int64

	// OutputDir is the root directory for per-host result files
	// (deadlinks.csv and scan_history.csv under <host>/).
	OutputDir string

	// HistoryDir is the directory holding the SQLite history database.
	// Defaults to the XDG data directory.
	HistoryDir string

	// NoHistory disables persistent scan history. Freshness skipping
	// still works within the session via an in-memory store.
	NoHistory bool

	// RespectRobots enables the robots.txt pre-fetch policy check.
	// Enabled by default; pages disallowed for our User-Agent are not
	// fetched but still consume their frontier slot.
	RespectRobots bool

	// Verbose enables debug-level log output.
	Verbose bool

	// JSONReport and MarkdownReport select an additional report format
	// written to ReportFile (or stdout). Mutually exclusive.
	JSONReport     bool
	MarkdownReport bool

	// ReportFile is the output path for the JSON or Markdown report.
	// Empty means stdout.
	ReportFile string

	// BatchSize is the number of targets scanned concurrently when more
	// than one target is given.
	BatchSize int

	// ConfigFilePath is an explicit path to the configuration file. If
	// empty, .deadlinkscraper is searched in the current directory and
	// then in the user's home directory.
	ConfigFilePath string

	// SiteConfigs holds per-site overrides loaded from the config file.
	SiteConfigs *File
}

// NewConfig creates a Config with default values. Many defaults are
// non-zero, so relying on zero values would be error-prone; this
// constructor also documents what the defaults are.
func NewConfig() *Config {
	return &Config{
		MaxPages:        DefaultMaxPages,
		MaxDepth:        DefaultMaxDepth,
		Concurrency:     DefaultConcurrency,
		FreshnessWindow: DefaultFreshnessWindow,
		PageTimeout:     DefaultPageTimeout,
		CheckTimeout:    DefaultCheckTimeout,
		MaxRetries:      DefaultMaxRetries,
		MaxRedirects:    DefaultMaxRedirects,
		UserAgent:       DefaultUserAgent,
		MaxBodySize:     DefaultMaxBodySize,
		OutputDir:       DefaultOutputDir,
		HistoryDir:      XDGDataDir(),
		RespectRobots:   true,
		BatchSize:       2,
	}
}

// XDGDataDir returns the XDG data directory for DeadLinkScraper.
// On Linux: ~/.local/share/deadlinkscraper.
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// Validate checks the configuration and returns a sentinel error
// describing the first problem found. It is called once after CLI
// parsing, before any crawling begins.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}
	if c.MaxPages <= 0 {
		return ErrInvalidMaxPages
	}
	if c.MaxDepth < 0 {
		return ErrInvalidMaxDepth
	}
	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}
	if c.FreshnessWindow < 0 {
		return ErrInvalidFreshnessWindow
	}
	if c.PageTimeout <= 0 || c.CheckTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.MaxRetries < 0 {
		return ErrInvalidMaxRetries
	}
	if c.MaxRedirects <= 0 {
		return ErrInvalidMaxRedirects
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	return nil
}
