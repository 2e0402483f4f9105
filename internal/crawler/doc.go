// Package crawler implements the crawl engine: URL normalization and
// classification, the breadth-first frontier with visited-state
// deduplication, the liveness-checking fetcher with retry and backoff,
// HTML link extraction, the robots.txt fetch policy, and the session
// worker pool that ties them together.
//
// A Session owns all mutable scan state for one base URL. Workers pull
// Tasks from the shared Frontier, fetch and parse pages, check every
// extracted link for liveness, and feed crawlable discoveries back into
// the Frontier at depth+1. Dead links and history updates accumulate in
// the Sink; the persistent history store is consulted before any fetch so
// recently-scanned pages cost budget but no network I/O.
package crawler
