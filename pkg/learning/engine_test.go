package learning

import (
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/lucid-vigil/aegis/pkg/analysis"
	"github.com/lucid-vigil/aegis/pkg/intake"
)

func sampleAnalysis(id string) *analysis.Analysis {
	return &analysis.Analysis{
		ID:         id,
		Timestamp:  time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC), // Saturday
		Source:     "security_scan",
		Severity:   analysis.SeverityHigh,
		Confidence: 0.8,
		RiskScore:  62.5,
		Threats: []analysis.Threat{
			{Category: "pattern", ThreatType: "sql_injection", Severity: analysis.SeverityHigh, Confidence: 0.9},
			{Category: "heuristic", ThreatType: "suspicious_activity", Severity: analysis.SeverityMedium, Confidence: 0.5},
		},
		Patterns: []analysis.PatternMatch{
			{Name: "sql_injection", Confidence: 0.9},
		},
		Anomalies: []analysis.Anomaly{
			{Metric: "network", Score: 4.2, Severity: analysis.SeverityMedium},
		},
	}
}

func TestLearn_FeatureExtraction(t *testing.T) {
	e := NewEngine(zerolog.Nop(), nil)

	sample := e.Learn(sampleAnalysis("a1"))

	fv := sample.Features
	assert.Equal(t, 2, fv.ThreatCount)
	assert.Equal(t, 3.0, fv.MaxSeverity)
	assert.InDelta(t, 0.7, fv.AvgConfidence, 1e-9)
	assert.Equal(t, 1, fv.PatternCount)
	assert.Equal(t, []string{"sql_injection"}, fv.PatternTypes)
	assert.Equal(t, 1, fv.AnomalyCount)
	assert.InDelta(t, 4.2, fv.MaxAnomalyScore, 1e-9)
	assert.Equal(t, 9, fv.HourOfDay)
	assert.Equal(t, int(time.Saturday), fv.DayOfWeek)
	assert.Equal(t, "security_scan", fv.Source)
	assert.InDelta(t, 62.5, fv.RiskScore, 1e-9)
	assert.InDelta(t, 0.8, fv.OverallConfidence, 1e-9)
	assert.Nil(t, sample.Outcome)
}

func TestLearn_ZeroThreats(t *testing.T) {
	e := NewEngine(zerolog.Nop(), nil)

	sample := e.Learn(&analysis.Analysis{
		ID:         "empty",
		Timestamp:  time.Now(),
		Severity:   analysis.SeverityNone,
		Confidence: 1.0,
	})
	assert.Equal(t, 0, sample.Features.ThreatCount)
	assert.Equal(t, 0.0, sample.Features.MaxSeverity)
	assert.Equal(t, 0.0, sample.Features.AvgConfidence)
}

func TestLearn_BufferEvictsOldestFifth(t *testing.T) {
	e := NewEngine(zerolog.Nop(), nil, WithMaxTrainingData(10))

	for i := 0; i < 11; i++ {
		e.Learn(sampleAnalysis(fmt.Sprintf("a%d", i)))
	}

	// Insert 11 with cap 10: the 11th insert evicts the oldest 2 (20%).
	assert.Equal(t, 9, e.BufferLen())
	_, ok := e.Sample("a0")
	assert.False(t, ok, "oldest sample must be evicted")
	_, ok = e.Sample("a10")
	assert.True(t, ok)
}

func TestIncorporateFeedback_FillsOutcome(t *testing.T) {
	e := NewEngine(zerolog.Nop(), nil)
	e.Learn(sampleAnalysis("a1"))

	ok := e.IncorporateFeedback("a1", "", true, 5*time.Minute)
	assert.True(t, ok)

	sample, found := e.Sample("a1")
	assert.True(t, found)
	assert.NotNil(t, sample.Outcome)
	assert.True(t, sample.Outcome.Success)
	assert.Equal(t, 5*time.Minute, sample.Outcome.FixTime)
}

func TestIncorporateFeedback_UpdatesPatternStore(t *testing.T) {
	patterns := intake.NewPatternStore()
	event := &intake.ErrorEvent{
		Source:    intake.SourceSecurityScan,
		Type:      intake.TypeSecurity,
		Severity:  intake.SeverityHigh,
		Timestamp: time.Now(),
		Payload:   map[string]interface{}{"message": "sql injection detected"},
	}
	patterns.Record(event)
	sig := intake.Signature(event)

	e := NewEngine(zerolog.Nop(), patterns)
	e.Learn(sampleAnalysis("a1"))

	e.IncorporateFeedback("a1", sig, true, 2*time.Minute)
	e.IncorporateFeedback("a1", sig, false, 4*time.Minute)

	pattern, found := patterns.Get(sig)
	assert.True(t, found)
	assert.Equal(t, int64(1), pattern.SuccessfulFixes)
	assert.Equal(t, int64(1), pattern.FailedFixes)
	assert.Equal(t, 3*time.Minute, pattern.AvgFixTime)
}

func TestIncorporateFeedback_UnknownAnalysis(t *testing.T) {
	e := NewEngine(zerolog.Nop(), nil)
	assert.False(t, e.IncorporateFeedback("ghost", "", true, time.Minute))
}

func TestPatternFrequency(t *testing.T) {
	e := NewEngine(zerolog.Nop(), nil)
	e.Learn(sampleAnalysis("a1"))
	e.Learn(sampleAnalysis("a2"))

	assert.Equal(t, int64(2), e.PatternFrequency("sql_injection"))
	assert.Equal(t, int64(0), e.PatternFrequency("unseen"))
}
