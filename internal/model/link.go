package model

import "time"

// LinkClass categorizes a link relative to the base URL of a scan.
//
// Design decision: We use an explicit enum produced by a single
// classification function rather than ad-hoc host comparisons scattered
// through the crawler. Every downstream consumer (frontier, checker,
// reporting) switches on the same four values.
type LinkClass int

const (
	// ClassInvalid marks a link that could not be parsed as a URL.
	ClassInvalid LinkClass = iota

	// ClassInternal marks a link whose host equals the base URL's host.
	ClassInternal

	// ClassSubdomain marks a link hosted on a subdomain of the base URL's
	// registrable domain (e.g. blog.example.com under example.com).
	// Subdomains are treated like internal links for recursion purposes.
	ClassSubdomain

	// ClassExternal marks a link on a different domain. External links are
	// checked for liveness but never crawled.
	ClassExternal
)

// String returns the human-readable name of the link class.
func (c LinkClass) String() string {
	switch c {
	case ClassInternal:
		return "internal"
	case ClassSubdomain:
		return "subdomain"
	case ClassExternal:
		return "external"
	default:
		return "invalid"
	}
}

// Crawlable reports whether links of this class may be followed for
// further link discovery.
func (c LinkClass) Crawlable() bool {
	return c == ClassInternal || c == ClassSubdomain
}

// LinkStatus is the recorded outcome of the most recent check of a URL.
//
// Design decision: The status is a string enum rather than an int because
// it is persisted in the history table and exported to CSV; a readable
// value keeps those records self-describing.
type LinkStatus string

const (
	// StatusAlive means the URL answered with a 2xx/3xx status.
	StatusAlive LinkStatus = "alive"

	// StatusDead means the URL answered with an error status or was
	// unreachable after the retry budget was spent.
	StatusDead LinkStatus = "dead"

	// StatusError means the check itself failed in a way that says nothing
	// about the target (e.g. the request was cancelled mid-flight).
	StatusError LinkStatus = "error"
)

// Valid reports whether the status is one of the known values.
// Used when loading persisted history records.
func (s LinkStatus) Valid() bool {
	switch s {
	case StatusAlive, StatusDead, StatusError:
		return true
	}
	return false
}

// CheckResult is the outcome of a single liveness check.
type CheckResult struct {
	// Alive is true when the target answered with a 2xx/3xx status after
	// following redirects.
	Alive bool

	// StatusCode is the final HTTP status code, or 0 when no response
	// was received (connection failure, malformed URL).
	StatusCode int

	// Reason describes why the target is considered dead.
	// Empty for alive targets.
	Reason string
}

// Status maps the check result onto the persisted link status.
func (r CheckResult) Status() LinkStatus {
	if r.Alive {
		return StatusAlive
	}
	return StatusDead
}

// DeadLink records one confirmed-dead link discovered during a scan.
// Records are append-only; the same target may appear once per source
// page that links to it.
type DeadLink struct {
	// SourcePage is the canonical URL of the page the link was found on.
	SourcePage string `csv:"source_page" json:"source_page"`

	// TargetURL is the canonical form of the dead link, or the raw href
	// when the link was malformed.
	TargetURL string `csv:"target_url" json:"target_url"`

	// StatusCode is the HTTP status that condemned the link, or 0 when
	// the target never answered.
	StatusCode int `csv:"status_code" json:"status_code"`

	// Reason explains the failure ("http status 404", "malformed",
	// "unreachable after retries", "redirect loop", ...).
	Reason string `csv:"reason" json:"reason"`

	// DiscoveredAt is when the dead link was confirmed.
	DiscoveredAt time.Time `csv:"discovered_at" json:"discovered_at"`
}

// HistoryRecord is the persisted scan-history entry for a single URL.
// History is consulted before fetching to skip recently-scanned pages.
type HistoryRecord struct {
	// URL is the canonical URL the record belongs to.
	URL string `csv:"url" json:"url"`

	// LastScanned is when the URL was last fetched or checked.
	LastScanned time.Time `csv:"last_scanned" json:"last_scanned"`

	// LastStatus is the outcome of that check.
	LastStatus LinkStatus `csv:"last_status" json:"last_status"`
}

// Fresh reports whether the record is within the freshness window,
// i.e. whether a rescan of the URL can be skipped.
func (h HistoryRecord) Fresh(now time.Time, window time.Duration) bool {
	if window <= 0 {
		return false
	}
	return now.Sub(h.LastScanned) < window
}
