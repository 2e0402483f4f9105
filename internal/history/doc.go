// Package history provides SQLite-based persistence for scan history and
// completed scan reports.
//
// This package stores:
//   - Per-URL history records (last scanned time, last known status) that
//     let a later scan skip URLs checked within the freshness window
//   - Complete scan reports as JSON for comparing runs over time
//
// Design decision: We use SQLite (via modernc.org/sqlite) instead of the
// flat CSV file the first version of this tool kept because:
//  1. No external dependencies - the database is a single file
//  2. CGO-free implementation allows easy cross-compilation
//  3. Upserts and indexed lookups scale to large crawl histories
//  4. WAL mode provides good concurrent read performance
//
// The exported CSV artifacts remain; the database is the source of truth.
package history
