// pkg/analysis/layers.go
package analysis

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// layerResult is what each analysis layer contributes. Layers share no
// mutable state; each builds its result independently.
type layerResult struct {
	Threats   []Threat
	Patterns  []PatternMatch
	Anomalies []Anomaly
}

// serializePayload renders the payload as lower-cased text for the pattern
// and signature layers.
func serializePayload(data SecurityData) string {
	raw, err := json.Marshal(data.Payload)
	if err != nil {
		raw = []byte(fmt.Sprintf("%v", data.Payload))
	}
	return strings.ToLower(string(raw))
}

// patternLayer matches the serialized payload against the fixed table of
// named threat patterns. Confidence per pattern is min(matches*0.3, 1.0).
func (e *Engine) patternLayer(data SecurityData) (layerResult, error) {
	text := serializePayload(data)
	var result layerResult

	for _, pattern := range e.patterns {
		var matched []string
		for _, indicator := range pattern.Indicators {
			if strings.Contains(text, indicator) {
				matched = append(matched, indicator)
			}
		}
		if len(matched) == 0 {
			continue
		}

		confidence := math.Min(float64(len(matched))*0.3, 1.0)
		result.Patterns = append(result.Patterns, PatternMatch{
			Name:       pattern.Name,
			Matched:    matched,
			Confidence: confidence,
		})
		result.Threats = append(result.Threats, Threat{
			Category:    "pattern",
			ThreatType:  pattern.Name,
			Severity:    pattern.Severity,
			Confidence:  confidence,
			Description: fmt.Sprintf("Payload matched %d indicator(s) of %s", len(matched), pattern.Name),
			Evidence:    matched,
		})
	}

	return result, nil
}

// behaviorLayer compares each present behavior channel against its stored
// baseline. Deviations above the threshold yield an anomaly and a
// behavioral threat; severity bands at >5 high, >3 medium, else low.
func (e *Engine) behaviorLayer(data SecurityData) (layerResult, error) {
	var result layerResult

	for channel, observed := range data.Behavior {
		baseline, exists := e.baselines[channel]
		if !exists || baseline.StdDev == 0 {
			continue
		}

		deviation := math.Abs(observed-baseline.Mean) / baseline.StdDev
		if deviation <= e.behaviorThreshold {
			continue
		}

		severity := SeverityLow
		switch {
		case deviation > 5:
			severity = SeverityHigh
		case deviation > 3:
			severity = SeverityMedium
		}
		confidence := math.Min(deviation/5, 1.0)

		result.Anomalies = append(result.Anomalies, Anomaly{
			Metric:      channel,
			Observed:    observed,
			Score:       deviation,
			Severity:    severity,
			Description: fmt.Sprintf("%s behavior deviates %.1f stddev from baseline", channel, deviation),
		})
		result.Threats = append(result.Threats, Threat{
			Category:    "behavior",
			ThreatType:  "behavioral_anomaly",
			Severity:    severity,
			Confidence:  confidence,
			Description: fmt.Sprintf("Anomalous %s behavior (deviation %.1f)", channel, deviation),
		})
	}

	return result, nil
}

// statisticalLayer runs the pluggable anomaly scorer over every numeric
// metric and flags those above the threshold.
func (e *Engine) statisticalLayer(data SecurityData) (layerResult, error) {
	var result layerResult

	for metric, value := range data.Metrics {
		score := e.scorer.Score(metric, value, data.Metrics)
		if score <= e.anomalyThreshold {
			continue
		}

		severity := SeverityLow
		switch {
		case score > 3*e.anomalyThreshold:
			severity = SeverityHigh
		case score > 2*e.anomalyThreshold:
			severity = SeverityMedium
		}

		result.Anomalies = append(result.Anomalies, Anomaly{
			Metric:      metric,
			Observed:    value,
			Score:       score,
			Severity:    severity,
			Description: fmt.Sprintf("Metric %s scored %.2f (threshold %.2f)", metric, score, e.anomalyThreshold),
		})
	}

	return result, nil
}

// signatureLayer scans the lower-cased serialized payload against the fixed
// regex table. Confidence is min(matches*0.25, 1.0).
func (e *Engine) signatureLayer(data SecurityData) (layerResult, error) {
	text := serializePayload(data)
	var result layerResult

	for _, rule := range e.signatures {
		matches := rule.Pattern.FindAllString(text, -1)
		if len(matches) == 0 {
			continue
		}

		result.Threats = append(result.Threats, Threat{
			Category:    "signature",
			ThreatType:  rule.Name,
			Severity:    rule.Severity,
			Confidence:  math.Min(float64(len(matches))*0.25, 1.0),
			Description: fmt.Sprintf("Signature %s matched %d time(s)", rule.Name, len(matches)),
			Evidence:    matches,
		})
	}

	return result, nil
}

const (
	heuristicPayloadLimit = 10 << 20 // 10MB
	entropyThreshold      = 7.5
)

// heuristicLayer accumulates a suspicion score from independent heuristics.
// A score above 3 emits a threat: high above 6, medium otherwise.
func (e *Engine) heuristicLayer(data SecurityData) (layerResult, error) {
	text := serializePayload(data)
	score := 0.0
	var evidence []string

	hour := data.Timestamp.Hour()
	if !data.Timestamp.IsZero() && hour >= 0 && hour < 5 {
		score += 2
		evidence = append(evidence, fmt.Sprintf("activity at %02d:00", hour))
	}

	if len(text) > heuristicPayloadLimit {
		score += 2.5
		evidence = append(evidence, fmt.Sprintf("payload size %d bytes", len(text)))
	}

	for _, tld := range suspiciousTLDs {
		if strings.HasSuffix(strings.ToLower(data.Destination), tld) {
			score += 3
			evidence = append(evidence, fmt.Sprintf("destination TLD %s", tld))
			break
		}
	}

	if entropy := shannonEntropy(text); entropy > entropyThreshold {
		score += 3
		evidence = append(evidence, fmt.Sprintf("payload entropy %.2f", entropy))
	}

	var result layerResult
	if score > 3 {
		severity := SeverityMedium
		if score > 6 {
			severity = SeverityHigh
		}
		result.Threats = append(result.Threats, Threat{
			Category:    "heuristic",
			ThreatType:  "suspicious_activity",
			Severity:    severity,
			Confidence:  math.Min(score/8, 1.0),
			Description: fmt.Sprintf("Heuristic suspicion score %.1f", score),
			Evidence:    evidence,
		})
	}

	return result, nil
}

// shannonEntropy computes Shannon entropy in bits per byte over the byte
// frequency of s.
func shannonEntropy(s string) float64 {
	if len(s) == 0 {
		return 0
	}

	var freq [256]int
	for i := 0; i < len(s); i++ {
		freq[s[i]]++
	}

	entropy := 0.0
	total := float64(len(s))
	for _, count := range freq {
		if count == 0 {
			continue
		}
		p := float64(count) / total
		entropy -= p * math.Log2(p)
	}
	return entropy
}
