// Package model defines the core data structures shared across the scraper:
// link classification and status enums, dead-link records, scan-history
// records, and the scan report produced at the end of a session.
package model
