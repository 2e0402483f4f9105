package config

import "errors"

// Configuration validation errors.
//
// Design decision: We use package-level sentinel errors rather than
// creating new error instances in Validate(). This allows callers to use
// errors.Is() for programmatic error handling while still providing
// human-readable messages.
var (
	// ErrNoTarget is returned when no base URL is specified.
	ErrNoTarget = errors.New("no target specified: provide at least one base URL")

	// ErrInvalidMaxPages is returned when the page budget is not positive.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be positive")

	// ErrInvalidMaxDepth is returned when the depth budget is negative.
	// Depth 0 is valid and scans only the base page.
	ErrInvalidMaxDepth = errors.New("invalid max depth: must be non-negative")

	// ErrInvalidConcurrency is returned when the worker count is not positive.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be positive")

	// ErrInvalidFreshnessWindow is returned when the freshness window is
	// negative. Use 0 to disable history skipping.
	ErrInvalidFreshnessWindow = errors.New("invalid freshness window: must be non-negative")

	// ErrInvalidTimeout is returned when a network timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidMaxRetries is returned when the retry budget is negative.
	ErrInvalidMaxRetries = errors.New("invalid max retries: must be non-negative")

	// ErrInvalidMaxRedirects is returned when the redirect bound is not positive.
	ErrInvalidMaxRedirects = errors.New("invalid max redirects: must be positive")

	// ErrConflictingReportFormats is returned when both --json and
	// --markdown are specified.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidBatchSize is returned when the multi-target batch size is
	// not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")
)
