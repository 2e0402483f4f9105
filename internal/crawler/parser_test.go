package crawler

import (
	"strings"
	"testing"
)

// TestParseLinks tests HTML link extraction.
func TestParseLinks(t *testing.T) {
	t.Parallel()

	t.Run("extracts title", func(t *testing.T) {
		t.Parallel()

		html := `<html><head><title>Test Page</title></head><body></body></html>`
		result, err := ParseLinks(strings.NewReader(html))
		if err != nil {
			t.Fatalf("failed to parse: %v", err)
		}
		if result.Title != "Test Page" {
			t.Errorf("expected title 'Test Page', got %q", result.Title)
		}
	})

	t.Run("extracts links with anchor text in document order", func(t *testing.T) {
		t.Parallel()

		html := `<html><body>
			<a href="/first">First Link</a>
			<a href="https://example.org/second">Second <b>Link</b></a>
		</body></html>`

		result, err := ParseLinks(strings.NewReader(html))
		if err != nil {
			t.Fatalf("failed to parse: %v", err)
		}

		if len(result.Links) != 2 {
			t.Fatalf("expected 2 links, got %d", len(result.Links))
		}
		if result.Links[0].Href != "/first" || result.Links[0].AnchorText != "First Link" {
			t.Errorf("unexpected first link: %+v", result.Links[0])
		}
		if result.Links[1].Href != "https://example.org/second" {
			t.Errorf("unexpected second href: %q", result.Links[1].Href)
		}
		if result.Links[1].AnchorText != "Second Link" {
			t.Errorf("expected nested anchor text flattened, got %q", result.Links[1].AnchorText)
		}
	})

	t.Run("skips non-navigable schemes and fragments", func(t *testing.T) {
		t.Parallel()

		html := `<html><body>
			<a href="mailto:admin@example.com">Mail</a>
			<a href="javascript:void(0)">JS</a>
			<a href="tel:+1234567890">Call</a>
			<a href="data:text/plain,hello">Data</a>
			<a href="#section">Same page</a>
			<a href="">Empty</a>
			<a>No href</a>
			<a href="/real">Real</a>
		</body></html>`

		result, err := ParseLinks(strings.NewReader(html))
		if err != nil {
			t.Fatalf("failed to parse: %v", err)
		}

		if len(result.Links) != 1 {
			t.Fatalf("expected 1 link, got %d: %+v", len(result.Links), result.Links)
		}
		if result.Links[0].Href != "/real" {
			t.Errorf("expected /real, got %q", result.Links[0].Href)
		}
	})

	t.Run("tolerates malformed html", func(t *testing.T) {
		t.Parallel()

		html := `<html><body><a href="/a">unclosed<div><a href="/b">nested`
		result, err := ParseLinks(strings.NewReader(html))
		if err != nil {
			t.Fatalf("expected lenient parsing, got error: %v", err)
		}

		// Tree repair may reopen the unclosed anchor inside the div, so
		// assert on distinct hrefs rather than raw link count.
		hrefs := make(map[string]bool, len(result.Links))
		for _, link := range result.Links {
			hrefs[link.Href] = true
		}
		if len(hrefs) != 2 || !hrefs["/a"] || !hrefs["/b"] {
			t.Errorf("expected hrefs /a and /b from malformed html, got %+v", result.Links)
		}
	})

	t.Run("duplicate hrefs are kept for downstream dedup", func(t *testing.T) {
		t.Parallel()

		html := `<a href="/x">one</a><a href="/x">two</a>`
		result, err := ParseLinks(strings.NewReader(html))
		if err != nil {
			t.Fatalf("failed to parse: %v", err)
		}
		if len(result.Links) != 2 {
			t.Errorf("parser must not dedupe; expected 2 links, got %d", len(result.Links))
		}
	})
}
