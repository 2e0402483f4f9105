// Package storage manages the on-disk results layout: one directory per
// scanned host, holding that host's exported artifacts (deadlinks.csv,
// scan_history.csv, optional report files).
package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Storage creates writable artifacts under a results root.
//
// Design decision: commands depend on this interface instead of the
// filesystem directly so tests can capture artifacts in memory.
type Storage interface {
	// Create opens a new artifact for writing, truncating any previous
	// one. The key is a relative path like "example.com/deadlinks.csv".
	Create(key string) (io.WriteCloser, error)
}

// Key builds the storage key for one host artifact.
func Key(host, name string) string {
	return filepath.Join(sanitizeHost(host), name)
}

// sanitizeHost makes a host name safe as a directory component.
// Ports and userinfo never reach here (keys use url.Hostname()), so only
// path separators need neutralizing.
func sanitizeHost(host string) string {
	host = strings.ReplaceAll(host, "/", "_")
	host = strings.ReplaceAll(host, string(filepath.Separator), "_")
	if host == "" {
		return "unknown-host"
	}
	return host
}

// Dir is the filesystem-backed Storage rooted at a results directory.
type Dir struct {
	root string
}

// NewDir creates a Storage rooted at root. The root itself is created
// lazily on the first Create call.
func NewDir(root string) *Dir {
	return &Dir{root: root}
}

// Root returns the results root path.
func (d *Dir) Root() string {
	return d.root
}

// Create opens key for writing under the root, creating parent
// directories as needed. Keys that escape the root are rejected.
func (d *Dir) Create(key string) (io.WriteCloser, error) {
	cleaned := filepath.Clean(key)
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) || filepath.IsAbs(cleaned) {
		return nil, fmt.Errorf("storage key escapes results root: %q", key)
	}

	path := filepath.Join(d.root, cleaned)
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("failed to create results directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to create artifact %s: %w", cleaned, err)
	}
	return f, nil
}
