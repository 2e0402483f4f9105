// Package main provides the entry point for the DeadLinkScraper CLI.
//
// DeadLinkScraper crawls a website and reports every dead link it finds,
// along with the page the link was found on.
//
// Usage:
//
//	deadlinkscraper scan <url>
//	deadlinkscraper scan site1.example site2.example
//
// See --help for all available options.
package main

// main is the entry point for DeadLinkScraper.
func main() {
	Execute()
}
