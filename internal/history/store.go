package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/DrKenReid/DeadLinkScraper/internal/model"
)

// Store provides SQLite-based storage for scan history and reports.
// It manages connection pooling and is safe for concurrent use.
//
// Design decision: One database file covers every scanned host rather
// than a file per host. The freshness check is URL-keyed, so a link
// shared by two sites is still checked only once per window.
type Store struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures Store behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	// This is recommended for most use cases.
	EnableWAL bool
}

// DefaultOptions returns the default store options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a history store at the specified directory.
// If CreateIfNotExists is true, the directory and database file are created.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*Store, error) {
	dbPath := filepath.Join(dbDir, "deadlinkscraper.db")

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("history database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// modernc.org/sqlite connection string: mode=rw prevents creating new
	// files, mode=rwc allows creation.
	var dsn string
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	} else {
		dsn = dbPath + "?mode=rw"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer; the session's workers funnel their
	// history updates through this single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s := &Store{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := s.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (s *Store) createTables() error {
	schema := `
	-- History records track the last scan of each canonical URL
	CREATE TABLE IF NOT EXISTS history (
		url TEXT PRIMARY KEY,
		last_scanned TEXT NOT NULL,
		last_status TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_history_scanned ON history(last_scanned);

	-- Scan reports store complete scan results as JSON
	CREATE TABLE IF NOT EXISTS scan_reports (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		host TEXT NOT NULL,
		started_at TEXT NOT NULL,
		pages_scanned INTEGER NOT NULL,
		dead_links INTEGER NOT NULL,
		report_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_reports_host ON scan_reports(host);
	CREATE INDEX IF NOT EXISTS idx_reports_started ON scan_reports(started_at);
	`

	_, err := s.db.ExecContext(context.Background(), schema)
	return err
}

// Lookup returns the history record for a canonical URL, or nil when the
// URL has never been scanned.
func (s *Store) Lookup(ctx context.Context, url string) (*model.HistoryRecord, error) {
	query := `SELECT url, last_scanned, last_status FROM history WHERE url = ?`

	var rec model.HistoryRecord
	var scanned, status string

	err := s.db.QueryRowContext(ctx, query, url).Scan(&rec.URL, &scanned, &status)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up history: %w", err)
	}

	rec.LastScanned = parseTimestamp(scanned)
	rec.LastStatus = model.LinkStatus(status)
	return &rec, nil
}

// Record upserts the history entry for a canonical URL.
func (s *Store) Record(ctx context.Context, url string, status model.LinkStatus, scannedAt time.Time) error {
	query := `
	INSERT INTO history (url, last_scanned, last_status)
	VALUES (?, ?, ?)
	ON CONFLICT(url) DO UPDATE SET
		last_scanned = excluded.last_scanned,
		last_status = excluded.last_status
	`

	_, err := s.db.ExecContext(ctx, query, url, scannedAt.UTC().Format(time.RFC3339), string(status))
	if err != nil {
		return fmt.Errorf("failed to record history: %w", err)
	}
	return nil
}

// All returns every history record, sorted by URL.
func (s *Store) All(ctx context.Context) ([]model.HistoryRecord, error) {
	query := `SELECT url, last_scanned, last_status FROM history ORDER BY url`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var records []model.HistoryRecord
	for rows.Next() {
		var rec model.HistoryRecord
		var scanned, status string
		if err := rows.Scan(&rec.URL, &scanned, &status); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		rec.LastScanned = parseTimestamp(scanned)
		rec.LastStatus = model.LinkStatus(status)
		records = append(records, rec)
	}

	return records, rows.Err()
}

// SaveScanReport persists a completed scan report as JSON and returns its
// database ID.
func (s *Store) SaveScanReport(ctx context.Context, report *model.ScanReport) (int64, error) {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize report: %w", err)
	}

	query := `
	INSERT INTO scan_reports (host, started_at, pages_scanned, dead_links, report_json)
	VALUES (?, ?, ?, ?, ?)
	`

	result, err := s.db.ExecContext(ctx, query,
		report.Host,
		report.StartedAt.UTC().Format(time.RFC3339),
		report.PagesScanned,
		report.DeadLinkCount(),
		string(reportJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save scan report: %w", err)
	}

	return result.LastInsertId()
}

// ScanMetadata contains summary information about a stored scan report.
// This is used for listing scan history without loading the full report.
type ScanMetadata struct {
	// ID is the unique identifier of the scan report in the database.
	ID int64

	// Host is the scanned host.
	Host string

	// StartedAt is when the scan began.
	StartedAt time.Time

	// PagesScanned is the number of pages the scan covered.
	PagesScanned int

	// DeadLinks is the number of dead-link records in the scan.
	DeadLinks int
}

// ScanReports returns metadata for stored scans of a host, most recent
// first. A limit of 0 returns all of them.
func (s *Store) ScanReports(ctx context.Context, host string, limit int) ([]ScanMetadata, error) {
	query := `
	SELECT id, host, started_at, pages_scanned, dead_links
	FROM scan_reports
	WHERE host = ?
	ORDER BY started_at DESC, id DESC
	`
	args := []any{host}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list scan reports: %w", err)
	}
	defer rows.Close()

	var results []ScanMetadata
	for rows.Next() {
		var meta ScanMetadata
		var started string
		if err := rows.Scan(&meta.ID, &meta.Host, &started, &meta.PagesScanned, &meta.DeadLinks); err != nil {
			return nil, fmt.Errorf("failed to scan report metadata: %w", err)
		}
		meta.StartedAt = parseTimestamp(started)
		results = append(results, meta)
	}

	return results, rows.Err()
}

// ScanReportByID retrieves a stored scan report by its database ID.
// Returns nil when no report has that ID.
func (s *Store) ScanReportByID(ctx context.Context, id int64) (*model.ScanReport, error) {
	query := `SELECT report_json FROM scan_reports WHERE id = ?`

	var reportJSON string
	err := s.db.QueryRowContext(ctx, query, id).Scan(&reportJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scan report: %w", err)
	}

	var report model.ScanReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}

	return &report, nil
}

// ListScannedHosts returns every host with at least one stored scan.
func (s *Store) ListScannedHosts(ctx context.Context) ([]string, error) {
	query := `SELECT DISTINCT host FROM scan_reports ORDER BY host`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list hosts: %w", err)
	}
	defer rows.Close()

	var hosts []string
	for rows.Next() {
		var host string
		if err := rows.Scan(&host); err != nil {
			return nil, fmt.Errorf("failed to scan host: %w", err)
		}
		hosts = append(hosts, host)
	}

	return hosts, rows.Err()
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	time.RFC3339,              // format used by Record / SaveScanReport
	time.RFC3339Nano,          // RFC3339 with nanoseconds
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
