// pkg/analysis/types.go
package analysis

import (
	"time"
)

// Severity classifies an analysis or an individual threat.
type Severity string

const (
	SeverityNone     Severity = "none"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Weight encodes severity for averaging heterogeneous threats into a
// single score: low=1 .. critical=4.
func (s Severity) Weight() float64 {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// SecurityData is the broader input shape the analysis engine consumes. It
// is not necessarily an intake ErrorEvent; any producer of security-relevant
// data can feed it.
type SecurityData struct {
	Source      string                 `json:"source"`
	Timestamp   time.Time              `json:"timestamp"`
	Payload     map[string]interface{} `json:"payload"`
	Metrics     map[string]float64     `json:"metrics,omitempty"`
	Behavior    map[string]float64     `json:"behavior,omitempty"` // observed scalar per channel (user/network/system)
	Destination string                 `json:"destination,omitempty"`
}

// Threat is one finding contributed by an analysis layer.
type Threat struct {
	Category    string   `json:"category"` // which layer found it
	ThreatType  string   `json:"threat_type"`
	Severity    Severity `json:"severity"`
	Confidence  float64  `json:"confidence"`
	Description string   `json:"description"`
	Evidence    []string `json:"evidence,omitempty"`
}

// PatternMatch records a named threat pattern that matched the payload.
type PatternMatch struct {
	Name       string   `json:"name"`
	Matched    []string `json:"matched"`
	Confidence float64  `json:"confidence"`
}

// Anomaly records a metric or behavior channel that deviated from baseline.
type Anomaly struct {
	Metric      string   `json:"metric"`
	Observed    float64  `json:"observed"`
	Score       float64  `json:"score"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
}

// Recommendation is a deterministic next step derived from the aggregate.
type Recommendation struct {
	Action   string `json:"action"`
	Reason   string `json:"reason"`
	Priority string `json:"priority"`
}

// Analysis is the immutable result of one engine invocation.
type Analysis struct {
	ID              string           `json:"id"`
	Timestamp       time.Time        `json:"timestamp"`
	Source          string           `json:"source"`
	Severity        Severity         `json:"severity"`
	Confidence      float64          `json:"confidence"`
	RiskScore       float64          `json:"risk_score"` // 0-100
	Threats         []Threat         `json:"threats"`
	Patterns        []PatternMatch   `json:"patterns"`
	Anomalies       []Anomaly        `json:"anomalies"`
	Recommendations []Recommendation `json:"recommendations"`
	Duration        time.Duration    `json:"duration"`
}
