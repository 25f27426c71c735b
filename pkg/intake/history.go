// pkg/intake/history.go
package intake

import (
	"fmt"
	"sync"
)

// History retains normalized events per (repository, type) key, bounded so
// one noisy repository cannot grow without limit. Eviction happens inside
// the same critical section as the append, so the size invariant always
// holds for readers.
type History struct {
	events map[string][]*ErrorEvent
	maxPer int
	mu     sync.RWMutex
}

// NewHistory creates a history store keeping at most maxPerKey events per
// (repository, type) key, oldest evicted first.
func NewHistory(maxPerKey int) *History {
	if maxPerKey <= 0 {
		maxPerKey = 1000
	}
	return &History{
		events: make(map[string][]*ErrorEvent),
		maxPer: maxPerKey,
	}
}

func historyKey(repository string, errType ErrorType) string {
	return fmt.Sprintf("%s|%s", repository, errType)
}

// Store appends an event to its key's history, evicting the oldest entries
// when the cap is exceeded.
func (h *History) Store(event *ErrorEvent) {
	key := historyKey(event.Context.Repository, event.Type)

	h.mu.Lock()
	defer h.mu.Unlock()

	entries := append(h.events[key], event)
	if over := len(entries) - h.maxPer; over > 0 {
		entries = entries[over:]
	}
	h.events[key] = entries
}

// Recent returns up to limit most recent events for a key, most-recent-last.
func (h *History) Recent(repository string, errType ErrorType, limit int) []*ErrorEvent {
	h.mu.RLock()
	defer h.mu.RUnlock()

	entries := h.events[historyKey(repository, errType)]
	if limit <= 0 || limit > len(entries) {
		limit = len(entries)
	}

	out := make([]*ErrorEvent, limit)
	copy(out, entries[len(entries)-limit:])
	return out
}

// Len returns the number of retained events for a key.
func (h *History) Len(repository string, errType ErrorType) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.events[historyKey(repository, errType)])
}
