// pkg/knowledge/match.go
package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/lucid-vigil/aegis/pkg/analysis"
	pipeerrors "github.com/lucid-vigil/aegis/pkg/errors"
	"github.com/lucid-vigil/aegis/pkg/events"
)

const attackPatternOverlapThreshold = 0.3 // intentionally looser than the intel threshold

// query is the feature set extracted once from the input data and shared by
// every repository's matcher.
type query struct {
	text       string // lower-cased serialized payload
	threatType string
	category   string
	software   []string
}

func buildQuery(data analysis.SecurityData) query {
	raw, err := json.Marshal(data.Payload)
	if err != nil {
		raw = []byte(fmt.Sprintf("%v", data.Payload))
	}

	q := query{
		text:       strings.ToLower(string(raw)),
		threatType: lowerString(data.Payload, "type", "threat_type"),
		category:   lowerString(data.Payload, "category"),
	}

	for _, key := range []string{"software", "service", "version", "component", "package"} {
		switch v := data.Payload[key].(type) {
		case string:
			if v != "" {
				q.software = append(q.software, strings.ToLower(v))
			}
		case []interface{}:
			for _, item := range v {
				if s, ok := item.(string); ok && s != "" {
					q.software = append(q.software, strings.ToLower(s))
				}
			}
		}
	}

	return q
}

func lowerString(payload map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if v, ok := payload[key].(string); ok && v != "" {
			return strings.ToLower(v)
		}
	}
	return ""
}

// FindMatches cross-references the input against all five repositories and
// returns the ranked matches. Any internal failure yields an empty list,
// never an error: a degraded knowledge base must not block threat analysis.
func (b *Base) FindMatches(ctx context.Context, data analysis.SecurityData) []Match {
	start := time.Now()

	matches := func() (out []Match) {
		defer func() {
			if r := recover(); r != nil {
				pipeerrors.NewKnowledgeQueryError("all", fmt.Errorf("panic: %v", r)).Log(b.logger)
				out = nil
			}
		}()

		q := buildQuery(data)
		snapshot := b.current()

		var matches []Match
		matches = append(matches, b.matchIntel(q, snapshot)...)
		matches = append(matches, b.matchAttackPatterns(q, snapshot)...)
		matches = append(matches, b.matchVulnerabilities(q, snapshot)...)
		matches = append(matches, b.matchIOCs(q, snapshot)...)
		matches = append(matches, b.matchProfiles(q, snapshot)...)

		return b.rank(matches)
	}()

	elapsed := time.Since(start)
	b.logger.Debug().
		Int("matches", len(matches)).
		Dur("processing_time", elapsed).
		Msg("Knowledge query complete")

	if b.bus != nil {
		if err := b.bus.Publish(ctx, events.Event{
			Type:   events.EventKnowledgeQuery,
			Source: "knowledge",
			Payload: map[string]interface{}{
				"source":             data.Source,
				"match_count":        len(matches),
				"processing_time_ms": elapsed.Milliseconds(),
			},
		}); err != nil {
			b.logger.Error().Err(err).Msg("Failed to publish knowledge_query")
		}
	}

	return matches
}

// matchIntel scores threat intelligence by a weighted field similarity:
// type equality, category equality, and indicator overlap.
func (b *Base) matchIntel(q query, s *Snapshot) []Match {
	var out []Match
	for _, entry := range s.Intel {
		similarity := 0.0
		if q.threatType != "" && q.threatType == strings.ToLower(entry.ThreatType) {
			similarity += 0.3
		}
		if q.category != "" && q.category == strings.ToLower(entry.Category) {
			similarity += 0.2
		}
		similarity += 0.5 * indicatorOverlap(q.text, entry.Indicators)

		if similarity < b.confidenceThreshold {
			continue
		}
		out = append(out, Match{
			Repository:  RepoThreatIntelligence,
			EntryID:     entry.ID,
			Name:        entry.ThreatType,
			Confidence:  similarity,
			Relevance:   b.relevance(entry.EntryMeta),
			Description: entry.Description,
		})
	}
	return out
}

// matchAttackPatterns uses the fraction of a pattern's indicators present
// in the payload, gated at a deliberately loose threshold.
func (b *Base) matchAttackPatterns(q query, s *Snapshot) []Match {
	var out []Match
	for _, entry := range s.AttackPatterns {
		overlap := indicatorOverlap(q.text, entry.Indicators)
		if overlap < attackPatternOverlapThreshold {
			continue
		}
		out = append(out, Match{
			Repository:  RepoAttackPattern,
			EntryID:     entry.ID,
			Name:        fmt.Sprintf("%s (%s)", entry.Name, entry.TechniqueID),
			Confidence:  overlap,
			Relevance:   b.relevance(entry.EntryMeta),
			Description: entry.Tactic,
		})
	}
	return out
}

// matchVulnerabilities hits when any declared software/service/version
// string is contained in (or contains) an entry's affected list.
func (b *Base) matchVulnerabilities(q query, s *Snapshot) []Match {
	var out []Match
	for _, entry := range s.Vulnerabilities {
		if !affectedMatch(q.software, entry.Affected) {
			continue
		}
		out = append(out, Match{
			Repository:  RepoVulnerability,
			EntryID:     entry.ID,
			Name:        entry.CVE,
			Confidence:  0.8, // fixed on any affected-list hit
			Relevance:   b.relevance(entry.EntryMeta),
			Description: entry.Description,
		})
	}
	return out
}

// matchIOCs hits on exact substring presence of the IOC value in the
// serialized payload, or on partial domain containment at reduced
// confidence.
func (b *Base) matchIOCs(q query, s *Snapshot) []Match {
	var out []Match
	for _, entry := range s.IOCs {
		value := strings.ToLower(entry.Value)
		if value == "" {
			continue
		}

		confidence := 0.0
		switch {
		case strings.Contains(q.text, value):
			confidence = entry.Confidence
		case entry.IOCType == IOCTypeDomain && strings.Contains(q.text, apexDomain(value)):
			confidence = entry.Confidence * 0.8
		default:
			continue
		}

		out = append(out, Match{
			Repository:  RepoIOC,
			EntryID:     entry.ID,
			Name:        entry.Value,
			Confidence:  confidence,
			Relevance:   b.relevance(entry.EntryMeta),
			Description: string(entry.IOCType),
		})
	}
	return out
}

// matchProfiles scores stored behavior profiles by indicator overlap,
// gated at the intel threshold.
func (b *Base) matchProfiles(q query, s *Snapshot) []Match {
	var out []Match
	for _, entry := range s.Profiles {
		similarity := indicatorOverlap(q.text, entry.Indicators)
		if similarity < b.confidenceThreshold {
			continue
		}
		out = append(out, Match{
			Repository:  RepoBehaviorProfile,
			EntryID:     entry.ID,
			Name:        entry.Name,
			Confidence:  similarity,
			Relevance:   b.relevance(entry.EntryMeta),
			Description: entry.Category,
		})
	}
	return out
}

// rank combines confidence and relevance (0.7/0.3), sorts descending, and
// truncates to the configured maximum.
func (b *Base) rank(matches []Match) []Match {
	for i := range matches {
		matches[i].Score = matches[i].Confidence*0.7 + matches[i].Relevance*0.3
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if len(matches) > b.maxMatches {
		matches = matches[:b.maxMatches]
	}
	return matches
}

// relevance is contextual importance independent of similarity: the
// entry's own confidence blended with how recently it was seen (linear
// decay over 90 days).
func (b *Base) relevance(meta EntryMeta) float64 {
	age := b.now().Sub(meta.Timestamp)
	recency := 1 - age.Hours()/(90*24)
	if recency < 0 {
		recency = 0
	}
	return 0.5*meta.Confidence + 0.5*recency
}

// indicatorOverlap returns the fraction of indicators present in text.
func indicatorOverlap(text string, indicators []string) float64 {
	if len(indicators) == 0 {
		return 0
	}
	matched := 0
	for _, indicator := range indicators {
		if indicator != "" && strings.Contains(text, strings.ToLower(indicator)) {
			matched++
		}
	}
	return float64(matched) / float64(len(indicators))
}

// affectedMatch reports whether any query software string and any affected
// string contain each other.
func affectedMatch(software, affected []string) bool {
	for _, s := range software {
		for _, a := range affected {
			a = strings.ToLower(a)
			if strings.Contains(a, s) || strings.Contains(s, a) {
				return true
			}
		}
	}
	return false
}

// apexDomain strips the left-most label so a subdomain IOC still matches
// sibling hosts of the same registrable domain.
func apexDomain(domain string) string {
	if i := strings.IndexByte(domain, '.'); i >= 0 && strings.Count(domain, ".") >= 2 {
		return domain[i+1:]
	}
	return domain
}
