package analysis

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedScorer returns a constant score for every metric.
type fixedScorer struct{ score float64 }

func (f fixedScorer) Score(string, float64, map[string]float64) float64 { return f.score }

func benignData() SecurityData {
	return SecurityData{
		Source:    "test",
		Timestamp: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
		Payload:   map[string]interface{}{"message": "routine deploy finished"},
	}
}

func TestAnalyze_ZeroThreats(t *testing.T) {
	engine := NewEngine(zerolog.Nop(), nil, WithAnomalyScorer(fixedScorer{0}))

	analysis := engine.Analyze(context.Background(), benignData())

	assert.Equal(t, SeverityNone, analysis.Severity)
	assert.Equal(t, 1.0, analysis.Confidence)
	assert.Empty(t, analysis.Threats)
	assert.Equal(t, 1, engine.HistoryLen())
}

func TestAnalyze_SingleCriticalThreatMapsToCritical(t *testing.T) {
	engine := NewEngine(zerolog.Nop(), nil, WithAnomalyScorer(fixedScorer{0}))

	// Four malware_signature indicators give confidence min(4*0.3, 1.0) = 1.0
	// on a critical pattern: avgScore = 4, severity critical, confidence 1.0.
	data := benignData()
	data.Payload = map[string]interface{}{
		"finding": "trojan ransomware keylogger botnet",
	}

	analysis := engine.Analyze(context.Background(), data)

	require.Len(t, analysis.Threats, 1)
	threat := analysis.Threats[0]
	assert.Equal(t, "malware_signature", threat.ThreatType)
	assert.Equal(t, SeverityCritical, threat.Severity)
	assert.Equal(t, 1.0, threat.Confidence)

	assert.Equal(t, SeverityCritical, analysis.Severity)
	assert.Equal(t, 1.0, analysis.Confidence)
	assert.Equal(t, 100.0, analysis.RiskScore)
}

func TestPatternLayer_ConfidenceScaling(t *testing.T) {
	engine := NewEngine(zerolog.Nop(), nil)

	result, err := engine.patternLayer(SecurityData{
		Payload: map[string]interface{}{"query": "id=1' OR '1'='1"},
	})
	require.NoError(t, err)
	require.Len(t, result.Patterns, 1)

	match := result.Patterns[0]
	assert.Equal(t, "sql_injection", match.Name)
	// One indicator matched: min(1*0.3, 1.0).
	assert.InDelta(t, 0.3, match.Confidence, 1e-9)
}

func TestBehaviorLayer_DeviationBands(t *testing.T) {
	engine := NewEngine(zerolog.Nop(), nil, WithBehaviorBaselines(map[string]BehaviorBaseline{
		"user": {Mean: 100, StdDev: 10},
	}))

	tests := []struct {
		observed   float64
		severity   Severity
		threatsLen int
	}{
		{110, "", 0},        // deviation 1.0, below threshold
		{128, SeverityLow, 1},     // deviation 2.8
		{135, SeverityMedium, 1},  // deviation 3.5
		{160, SeverityHigh, 1},    // deviation 6.0
	}

	for _, tt := range tests {
		result, err := engine.behaviorLayer(SecurityData{
			Behavior: map[string]float64{"user": tt.observed},
		})
		require.NoError(t, err)
		require.Len(t, result.Threats, tt.threatsLen, "observed=%v", tt.observed)
		if tt.threatsLen > 0 {
			assert.Equal(t, tt.severity, result.Anomalies[0].Severity, "observed=%v", tt.observed)
		}
	}
}

func TestBehaviorLayer_ConfidenceCapped(t *testing.T) {
	engine := NewEngine(zerolog.Nop(), nil, WithBehaviorBaselines(map[string]BehaviorBaseline{
		"network": {Mean: 0, StdDev: 1},
	}))

	result, err := engine.behaviorLayer(SecurityData{
		Behavior: map[string]float64{"network": 100}, // deviation 100
	})
	require.NoError(t, err)
	require.Len(t, result.Threats, 1)
	assert.Equal(t, 1.0, result.Threats[0].Confidence)
}

func TestStatisticalLayer_UsesInjectedScorer(t *testing.T) {
	engine := NewEngine(zerolog.Nop(), nil, WithAnomalyScorer(fixedScorer{9}))

	result, err := engine.statisticalLayer(SecurityData{
		Metrics: map[string]float64{"latency_ms": 900, "error_rate": 0.5},
	})
	require.NoError(t, err)
	assert.Len(t, result.Anomalies, 2)
	for _, anomaly := range result.Anomalies {
		assert.Equal(t, 9.0, anomaly.Score)
	}
}

// mapScorer returns a fixed score per metric name.
type mapScorer map[string]float64

func (m mapScorer) Score(metric string, _ float64, _ map[string]float64) float64 { return m[metric] }

func TestStatisticalLayer_SeverityBands(t *testing.T) {
	engine := NewEngine(zerolog.Nop(), nil,
		WithThresholds(2.5, 2.0),
		WithAnomalyScorer(mapScorer{
			"cpu":    7.0, // above 3x threshold
			"memory": 5.0, // above 2x threshold
			"disk":   3.0, // above threshold only
		}))

	result, err := engine.statisticalLayer(SecurityData{
		Metrics: map[string]float64{"cpu": 0.97, "memory": 0.91, "disk": 0.88},
	})
	require.NoError(t, err)
	require.Len(t, result.Anomalies, 3)

	bands := make(map[string]Severity)
	for _, anomaly := range result.Anomalies {
		bands[anomaly.Metric] = anomaly.Severity
	}
	assert.Equal(t, SeverityHigh, bands["cpu"])
	assert.Equal(t, SeverityMedium, bands["memory"])
	assert.Equal(t, SeverityLow, bands["disk"])
}

func TestSignatureLayer_EncodedPowershell(t *testing.T) {
	engine := NewEngine(zerolog.Nop(), nil)

	result, err := engine.signatureLayer(SecurityData{
		Payload: map[string]interface{}{
			"cmdline": "powershell -EncodedCommand SQBFAFgA",
		},
	})
	require.NoError(t, err)

	var found bool
	for _, threat := range result.Threats {
		if threat.ThreatType == "encoded_powershell" {
			found = true
			assert.InDelta(t, 0.25, threat.Confidence, 1e-9)
		}
	}
	assert.True(t, found, "expected encoded_powershell signature to match")
}

func TestHeuristicLayer_ScoreAccumulation(t *testing.T) {
	engine := NewEngine(zerolog.Nop(), nil)

	// Off-hours (+2) alone stays at or below the emission threshold.
	quiet, err := engine.heuristicLayer(SecurityData{
		Timestamp: time.Date(2026, 3, 14, 3, 0, 0, 0, time.UTC),
		Payload:   map[string]interface{}{"message": "scheduled backup"},
	})
	require.NoError(t, err)
	assert.Empty(t, quiet.Threats)

	// Off-hours (+2) plus denylisted TLD (+3) crosses it.
	noisy, err := engine.heuristicLayer(SecurityData{
		Timestamp:   time.Date(2026, 3, 14, 3, 0, 0, 0, time.UTC),
		Destination: "updates.evil.xyz",
		Payload:     map[string]interface{}{"message": "outbound transfer"},
	})
	require.NoError(t, err)
	require.Len(t, noisy.Threats, 1)
	assert.Equal(t, SeverityMedium, noisy.Threats[0].Severity)
}

func TestShannonEntropy(t *testing.T) {
	assert.Equal(t, 0.0, shannonEntropy(""))
	assert.Equal(t, 0.0, shannonEntropy("aaaa"))
	// Two symbols evenly distributed carry exactly one bit each.
	assert.InDelta(t, 1.0, shannonEntropy("abababab"), 1e-9)
}

func TestAnalyze_LayerTimeoutYieldsPartialResults(t *testing.T) {
	engine := NewEngine(zerolog.Nop(), nil,
		WithAnomalyScorer(slowScorer{delay: 500 * time.Millisecond}),
		WithLayerTimeout(50*time.Millisecond),
	)

	data := benignData()
	data.Metrics = map[string]float64{"latency_ms": 1}

	start := time.Now()
	analysis := engine.Analyze(context.Background(), data)
	assert.Less(t, time.Since(start), 400*time.Millisecond, "analysis must not wait for the slow layer")
	assert.NotNil(t, analysis)
	assert.Empty(t, analysis.Anomalies, "slow statistical layer contributes nothing")
}

// slowScorer blocks long enough to trip the layer deadline.
type slowScorer struct{ delay time.Duration }

func (s slowScorer) Score(string, float64, map[string]float64) float64 {
	time.Sleep(s.delay)
	return 0
}
