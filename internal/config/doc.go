// Package config provides configuration structures and utilities for
// DeadLinkScraper. It defines crawl budgets, network timeouts, report
// preferences, and the optional per-site configuration file.
package config
