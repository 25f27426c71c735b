// pkg/knowledge/entries.go
package knowledge

import (
	"time"
)

// Repository names one of the five knowledge repositories.
type Repository string

const (
	RepoThreatIntelligence Repository = "threat_intelligence"
	RepoAttackPattern      Repository = "attack_pattern"
	RepoVulnerability      Repository = "vulnerability"
	RepoIOC                Repository = "ioc"
	RepoBehaviorProfile    Repository = "behavior_profile"
)

// EntryMeta is the provenance header every knowledge entry carries.
type EntryMeta struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	Source     string    `json:"source"`
	Confidence float64   `json:"confidence"`
}

// ThreatIntelligence is a curated description of a known threat.
type ThreatIntelligence struct {
	EntryMeta
	ThreatType  string   `json:"threat_type"`
	Category    string   `json:"category"`
	Indicators  []string `json:"indicators"`
	Description string   `json:"description"`
}

// AttackPattern is a MITRE-technique-shaped attack description.
type AttackPattern struct {
	EntryMeta
	TechniqueID string   `json:"technique_id"`
	Name        string   `json:"name"`
	Tactic      string   `json:"tactic"`
	Indicators  []string `json:"indicators"`
	Mitigations []string `json:"mitigations,omitempty"`
}

// Vulnerability is a CVE-shaped vulnerability record.
type Vulnerability struct {
	EntryMeta
	CVE         string   `json:"cve"`
	Severity    string   `json:"severity"`
	CVSS        float64  `json:"cvss"`
	Affected    []string `json:"affected"` // software/version strings
	Description string   `json:"description"`
}

// IOCType types the concrete indicator value.
type IOCType string

const (
	IOCTypeIP     IOCType = "ip"
	IOCTypeDomain IOCType = "domain"
	IOCTypeHash   IOCType = "hash"
)

// IOC is a concrete indicator of compromise.
type IOC struct {
	EntryMeta
	IOCType   IOCType   `json:"ioc_type"`
	Value     string    `json:"value"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

// BehaviorProfile describes an expected behavior fingerprint whose
// indicators mark activity consistent with a known actor or campaign.
type BehaviorProfile struct {
	EntryMeta
	Name       string   `json:"name"`
	Category   string   `json:"category"`
	Indicators []string `json:"indicators"`
}

// Snapshot is one immutable generation of the knowledge base. Refresh
// builds a new snapshot and swaps the pointer; readers always see either
// the old or the new generation, never a partial one.
type Snapshot struct {
	Intel           []ThreatIntelligence
	AttackPatterns  []AttackPattern
	Vulnerabilities []Vulnerability
	IOCs            []IOC
	Profiles        []BehaviorProfile
}

// Len returns the total entry count across all repositories.
func (s *Snapshot) Len() int {
	return len(s.Intel) + len(s.AttackPatterns) + len(s.Vulnerabilities) + len(s.IOCs) + len(s.Profiles)
}

// Match is one knowledge-base hit for a query, tagged by the repository
// that produced it. Confidence measures similarity to the stored entry;
// Relevance measures contextual importance (recency and the entry's own
// confidence) independent of similarity.
type Match struct {
	Repository  Repository `json:"repository"`
	EntryID     string     `json:"entry_id"`
	Name        string     `json:"name"`
	Confidence  float64    `json:"confidence"`
	Relevance   float64    `json:"relevance"`
	Score       float64    `json:"score"`
	Description string     `json:"description,omitempty"`
}
