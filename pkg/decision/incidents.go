// pkg/decision/incidents.go
package decision

import (
	"sync"
	"time"
)

const incidentWindow = 24 * time.Hour

// incidentLog tracks recent incidents per key so the contextual stage can
// escalate when the same kind of incident keeps recurring. Entries older
// than the window are pruned on every access.
type incidentLog struct {
	mu      sync.Mutex
	entries map[string][]time.Time
	now     func() time.Time
}

func newIncidentLog() *incidentLog {
	return &incidentLog{
		entries: make(map[string][]time.Time),
		now:     time.Now,
	}
}

// record notes one incident for the key and returns how many incidents the
// key has seen inside the window, including this one.
func (il *incidentLog) record(key string) int {
	il.mu.Lock()
	defer il.mu.Unlock()

	cutoff := il.now().Add(-incidentWindow)
	kept := il.entries[key][:0]
	for _, t := range il.entries[key] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	kept = append(kept, il.now())
	il.entries[key] = kept
	return len(kept)
}
