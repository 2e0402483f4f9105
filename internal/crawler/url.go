package crawler

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/DrKenReid/DeadLinkScraper/internal/model"
)

// ErrInvalidURL is returned by Normalize for links that cannot be parsed
// or use a non-navigable scheme. Such links are recorded as dead with
// reason "malformed" and never retried.
var ErrInvalidURL = errors.New("invalid url")

// Normalize resolves raw against base and returns the canonical form
// used for deduplication and classification.
//
// Canonicalization: relative references are resolved against the page
// URL, scheme and host are lower-cased, the fragment is stripped, default
// ports are dropped, an empty path becomes "/", and a trailing slash on a
// non-root path is removed so /about and /about/ dedupe to one entry.
func Normalize(raw string, base *url.URL) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: empty link", ErrInvalidURL)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if base != nil {
		u = base.ResolveReference(u)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("%w: missing host", ErrInvalidURL)
	}

	u.Fragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	// Drop default ports so http://host:80/ and http://host/ dedupe.
	host, port := u.Hostname(), u.Port()
	if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		u.Host = host
	}

	if u.Path == "" {
		u.Path = "/"
	} else if u.Path != "/" {
		u.Path = strings.TrimSuffix(u.Path, "/")
	}

	return u.String(), nil
}

// Classifier classifies canonical URLs relative to a scan's base URL.
type Classifier struct {
	// baseHost is the exact host (including any port) of the base URL.
	baseHost string

	// baseDomain is the registrable domain the scan is rooted at: the
	// base hostname with a leading "www." removed. blog.example.com is a
	// subdomain of a scan rooted at www.example.com.
	baseDomain string
}

// NewClassifier creates a Classifier for the given base URL.
func NewClassifier(base *url.URL) *Classifier {
	hostname := strings.ToLower(base.Hostname())
	return &Classifier{
		baseHost:   strings.ToLower(base.Host),
		baseDomain: strings.TrimPrefix(hostname, "www."),
	}
}

// Classify categorizes a canonical URL as internal, subdomain, or
// external. URLs that fail to parse classify as invalid; Normalize
// rejects those earlier, so the crawler only sees the other three.
func (c *Classifier) Classify(canonical string) model.LinkClass {
	u, err := url.Parse(canonical)
	if err != nil {
		return model.ClassInvalid
	}

	host := strings.ToLower(u.Host)
	if host == c.baseHost {
		return model.ClassInternal
	}

	hostname := strings.ToLower(u.Hostname())
	if hostname == c.baseDomain || strings.HasSuffix(hostname, "."+c.baseDomain) {
		return model.ClassSubdomain
	}

	return model.ClassExternal
}
