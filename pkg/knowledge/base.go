// pkg/knowledge/base.go
package knowledge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lucid-vigil/aegis/pkg/events"
)

const (
	defaultMaxEntries = 1000000
	defaultMaxMatches = 20
)

// Base is the threat-intelligence knowledge base: a static plus
// periodically refreshed store of the five entry repositories. It is a
// pure query/ingest service with no dependency on other pipeline stages.
type Base struct {
	logger zerolog.Logger
	bus    *events.EventBus

	confidenceThreshold float64
	maxEntries          int
	maxMatches          int

	mu       sync.RWMutex
	snapshot *Snapshot
	count    int // entry counter; the hard cap is enforced here

	fetcher FeedFetcher
	now     func() time.Time
}

// BaseOption configures the knowledge base.
type BaseOption func(*Base)

// WithConfidenceThreshold sets the match confidence threshold (default 0.7).
func WithConfidenceThreshold(threshold float64) BaseOption {
	return func(b *Base) {
		if threshold > 0 {
			b.confidenceThreshold = threshold
		}
	}
}

// WithMaxEntries caps the total entry count (default 1,000,000).
func WithMaxEntries(max int) BaseOption {
	return func(b *Base) {
		if max > 0 {
			b.maxEntries = max
		}
	}
}

// WithMaxMatches caps the number of matches a query returns (default 20).
func WithMaxMatches(max int) BaseOption {
	return func(b *Base) {
		if max > 0 {
			b.maxMatches = max
		}
	}
}

// WithFetcher sets the feed fetcher used by Refresh.
func WithFetcher(fetcher FeedFetcher) BaseOption {
	return func(b *Base) { b.fetcher = fetcher }
}

// WithClock injects the time source (tests).
func WithClock(now func() time.Time) BaseOption {
	return func(b *Base) { b.now = now }
}

// NewBase creates a knowledge base seeded with the fetcher's current feed
// (the built-in StaticFetcher when none is given). The bus may be nil.
func NewBase(logger zerolog.Logger, bus *events.EventBus, opts ...BaseOption) *Base {
	b := &Base{
		logger:              logger.With().Str("component", "knowledge").Logger(),
		bus:                 bus,
		confidenceThreshold: 0.7,
		maxEntries:          defaultMaxEntries,
		maxMatches:          defaultMaxMatches,
		snapshot:            &Snapshot{},
		fetcher:             NewStaticFetcher(),
		now:                 time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}

	if err := b.Refresh(context.Background()); err != nil {
		b.logger.Warn().Err(err).Msg("Initial knowledge feed load failed, starting empty")
	}

	return b
}

// current returns the live snapshot pointer.
func (b *Base) current() *Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.snapshot
}

// Count returns the total number of entries.
func (b *Base) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.count
}

// AddThreatIntelligence appends a new intelligence entry with a generated
// id. The hard entry cap is enforced at the counter; an over-cap add is
// rejected.
func (b *Base) AddThreatIntelligence(ctx context.Context, entry ThreatIntelligence) (string, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = b.now()
	}

	b.mu.Lock()
	if b.count >= b.maxEntries {
		b.mu.Unlock()
		return "", fmt.Errorf("knowledge base full: %d entries (max %d)", b.count, b.maxEntries)
	}

	// Copy-on-write: readers holding the old snapshot are unaffected.
	next := *b.snapshot
	next.Intel = append(append([]ThreatIntelligence(nil), b.snapshot.Intel...), entry)
	b.snapshot = &next
	b.count++
	b.mu.Unlock()

	b.logger.Info().
		Str("entry_id", entry.ID).
		Str("threat_type", entry.ThreatType).
		Msg("Threat intelligence added")

	if b.bus != nil {
		if err := b.bus.Publish(ctx, events.Event{
			Type:   events.EventIntelligenceAdded,
			Source: "knowledge",
			Payload: map[string]interface{}{
				"id":     entry.ID,
				"type":   string(RepoThreatIntelligence),
				"threat": entry.ThreatType,
			},
		}); err != nil {
			b.logger.Error().Err(err).Msg("Failed to publish intelligence_added")
		}
	}

	return entry.ID, nil
}

// Refresh pulls the external feed and swaps in a new snapshot. A refresh in
// progress never blocks or corrupts concurrent reads: the new generation is
// built off-lock and installed with a single pointer swap.
func (b *Base) Refresh(ctx context.Context) error {
	if b.fetcher == nil {
		return fmt.Errorf("no feed fetcher configured")
	}

	fresh, err := b.fetcher.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("feed fetch failed: %w", err)
	}

	b.assignIDs(fresh)

	if fresh.Len() > b.maxEntries {
		return fmt.Errorf("feed produced %d entries, exceeding cap %d", fresh.Len(), b.maxEntries)
	}

	b.mu.Lock()
	b.snapshot = fresh
	b.count = fresh.Len()
	b.mu.Unlock()

	b.logger.Info().Int("entries", fresh.Len()).Msg("Knowledge base refreshed")
	return nil
}

// Ingest merges additional entries into the current snapshot (feed-file
// drops). Entries beyond the cap are discarded with a warning.
func (b *Base) Ingest(snapshot *Snapshot) int {
	b.assignIDs(snapshot)

	b.mu.Lock()
	defer b.mu.Unlock()

	room := b.maxEntries - b.count
	if room <= 0 {
		b.logger.Warn().Msg("Knowledge base full, ignoring ingested entries")
		return 0
	}

	next := *b.snapshot
	added := 0
	for _, e := range snapshot.Intel {
		if added >= room {
			break
		}
		next.Intel = append(next.Intel, e)
		added++
	}
	for _, e := range snapshot.AttackPatterns {
		if added >= room {
			break
		}
		next.AttackPatterns = append(next.AttackPatterns, e)
		added++
	}
	for _, e := range snapshot.Vulnerabilities {
		if added >= room {
			break
		}
		next.Vulnerabilities = append(next.Vulnerabilities, e)
		added++
	}
	for _, e := range snapshot.IOCs {
		if added >= room {
			break
		}
		next.IOCs = append(next.IOCs, e)
		added++
	}
	for _, e := range snapshot.Profiles {
		if added >= room {
			break
		}
		next.Profiles = append(next.Profiles, e)
		added++
	}

	b.snapshot = &next
	b.count += added
	return added
}

func (b *Base) assignIDs(s *Snapshot) {
	now := b.now()
	for i := range s.Intel {
		if s.Intel[i].ID == "" {
			s.Intel[i].ID = uuid.NewString()
		}
		if s.Intel[i].Timestamp.IsZero() {
			s.Intel[i].Timestamp = now
		}
	}
	for i := range s.AttackPatterns {
		if s.AttackPatterns[i].ID == "" {
			s.AttackPatterns[i].ID = uuid.NewString()
		}
		if s.AttackPatterns[i].Timestamp.IsZero() {
			s.AttackPatterns[i].Timestamp = now
		}
	}
	for i := range s.Vulnerabilities {
		if s.Vulnerabilities[i].ID == "" {
			s.Vulnerabilities[i].ID = uuid.NewString()
		}
		if s.Vulnerabilities[i].Timestamp.IsZero() {
			s.Vulnerabilities[i].Timestamp = now
		}
	}
	for i := range s.IOCs {
		if s.IOCs[i].ID == "" {
			s.IOCs[i].ID = uuid.NewString()
		}
		if s.IOCs[i].Timestamp.IsZero() {
			s.IOCs[i].Timestamp = now
		}
	}
	for i := range s.Profiles {
		if s.Profiles[i].ID == "" {
			s.Profiles[i].ID = uuid.NewString()
		}
		if s.Profiles[i].Timestamp.IsZero() {
			s.Profiles[i].Timestamp = now
		}
	}
}
