package crawler

import (
	"io"
	"strings"

	"golang.org/x/net/html"
)

// Link is one hyperlink extracted from a page: the raw href exactly as
// written plus the anchor text, normalization happens downstream.
type Link struct {
	Href       string
	AnchorText string
}

// ParseResult contains the information extracted from an HTML page.
type ParseResult struct {
	// Title is the page title from the <title> tag.
	Title string

	// Links holds every navigable hyperlink in document order.
	Links []Link
}

// skippedPrefixes are href schemes that do not name fetchable documents.
var skippedPrefixes = []string{"javascript:", "mailto:", "tel:", "data:"}

// ParseLinks parses HTML content and extracts its hyperlinks.
//
// Design decision: We use golang.org/x/net/html rather than regex because
// it correctly handles the malformed HTML common on the web and gives a
// proper DOM-like structure to walk.
//
// Non-navigable schemes (mailto, javascript, tel, data) and same-page
// fragment-only links are ignored.
func ParseLinks(content io.Reader) (*ParseResult, error) {
	doc, err := html.Parse(content)
	if err != nil {
		return nil, err
	}

	result := &ParseResult{Links: make([]Link, 0)}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				if result.Title == "" && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
					result.Title = strings.TrimSpace(n.FirstChild.Data)
				}
			case "a":
				if href, ok := navigableHref(getAttr(n, "href")); ok {
					result.Links = append(result.Links, Link{
						Href:       href,
						AnchorText: strings.TrimSpace(nodeText(n)),
					})
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return result, nil
}

// navigableHref reports whether href points at a fetchable document and
// returns the trimmed value.
func navigableHref(href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}
	lower := strings.ToLower(href)
	for _, prefix := range skippedPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return "", false
		}
	}
	return href, true
}

// nodeText concatenates the text content beneath a node.
func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
