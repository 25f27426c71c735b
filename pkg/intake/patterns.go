// pkg/intake/patterns.go
package intake

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

const signatureLineLimit = 100

// ErrorPattern aggregates every sighting of one error signature together
// with the outcomes of fixes applied to it. Patterns are created on first
// sighting and never deleted.
type ErrorPattern struct {
	Signature       string        `json:"signature"`
	Frequency       int64         `json:"frequency"`
	LastSeen        time.Time     `json:"last_seen"`
	SuccessfulFixes int64         `json:"successful_fixes"`
	FailedFixes     int64         `json:"failed_fixes"`
	AvgFixTime      time.Duration `json:"avg_fix_time"`
}

// PatternStore tracks ErrorPatterns keyed by signature.
type PatternStore struct {
	patterns map[string]*ErrorPattern
	mu       sync.RWMutex
}

// NewPatternStore creates an empty pattern store.
func NewPatternStore() *PatternStore {
	return &PatternStore{patterns: make(map[string]*ErrorPattern)}
}

// Signature computes the stable composite key for an event:
// source|type|severity|first line of stack trace or message, with the line
// truncated so unbounded stack traces produce bounded keys. Calling it
// twice on the same event yields the same string.
func Signature(event *ErrorEvent) string {
	line := event.Context.StackTrace
	if line == "" {
		line = event.Message()
	}
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	if len(line) > signatureLineLimit {
		line = line[:signatureLineLimit]
	}
	return fmt.Sprintf("%s|%s|%s|%s", event.Source, event.Type, event.Severity, line)
}

// Record registers a sighting of the event's signature, creating the
// pattern if it is new.
func (ps *PatternStore) Record(event *ErrorEvent) *ErrorPattern {
	sig := Signature(event)

	ps.mu.Lock()
	defer ps.mu.Unlock()

	pattern, exists := ps.patterns[sig]
	if !exists {
		pattern = &ErrorPattern{Signature: sig}
		ps.patterns[sig] = pattern
	}
	pattern.Frequency++
	pattern.LastSeen = event.Timestamp
	return pattern
}

// RecordOutcome updates a pattern's fix statistics from feedback. The
// running average is the incremental mean over all reported fixes.
func (ps *PatternStore) RecordOutcome(signature string, success bool, fixTime time.Duration) bool {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	pattern, exists := ps.patterns[signature]
	if !exists {
		return false
	}

	if success {
		pattern.SuccessfulFixes++
	} else {
		pattern.FailedFixes++
	}

	n := pattern.SuccessfulFixes + pattern.FailedFixes
	pattern.AvgFixTime = time.Duration((int64(pattern.AvgFixTime)*(n-1) + int64(fixTime)) / n)
	return true
}

// Get returns a copy of the pattern for a signature, if present.
func (ps *PatternStore) Get(signature string) (ErrorPattern, bool) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	pattern, exists := ps.patterns[signature]
	if !exists {
		return ErrorPattern{}, false
	}
	return *pattern, true
}

// Len returns the number of distinct signatures seen.
func (ps *PatternStore) Len() int {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return len(ps.patterns)
}
