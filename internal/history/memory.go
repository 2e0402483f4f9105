package history

import (
	"context"
	"sync"
	"time"

	"github.com/DrKenReid/DeadLinkScraper/internal/model"
)

// MemoryStore is an in-process history store used when persistence is
// disabled (--no-history) and in tests. It dedupes within the process
// lifetime only.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]model.HistoryRecord
}

// NewMemoryStore creates an empty in-memory history store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]model.HistoryRecord)}
}

// Lookup returns the record for url, or nil when it was never recorded.
func (m *MemoryStore) Lookup(_ context.Context, url string) (*model.HistoryRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[url]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// Record upserts the history entry for url.
func (m *MemoryStore) Record(_ context.Context, url string, status model.LinkStatus, scannedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records[url] = model.HistoryRecord{URL: url, LastScanned: scannedAt, LastStatus: status}
	return nil
}

// Len returns the number of recorded URLs.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}
