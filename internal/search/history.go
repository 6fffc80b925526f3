package search

import (
	"strings"
	"sync"
)

// historyStore keeps a bounded, deduplicated list of recent queries per user.
// Access is mutex-guarded so concurrent requests from the same user are safe.
type historyStore struct {
	mu      sync.Mutex
	size    int
	entries map[uint][]string
}

func newHistoryStore(size int) *historyStore {
	if size < 1 {
		size = 20
	}
	return &historyStore{
		size:    size,
		entries: make(map[uint][]string),
	}
}

// Record adds a query to the front of the user's history. A repeated query
// moves to the front instead of duplicating.
func (h *historyStore) Record(userID uint, query string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	recent := h.entries[userID]
	updated := make([]string, 0, len(recent)+1)
	updated = append(updated, query)
	for _, q := range recent {
		if strings.EqualFold(q, query) {
			continue
		}
		updated = append(updated, q)
	}
	if len(updated) > h.size {
		updated = updated[:h.size]
	}
	h.entries[userID] = updated
}

// List returns a copy of the user's history, most recent first.
func (h *historyStore) List(userID uint) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	recent := h.entries[userID]
	out := make([]string, len(recent))
	copy(out, recent)
	return out
}

// Clear removes the user's history.
func (h *historyStore) Clear(userID uint) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.entries, userID)
}
