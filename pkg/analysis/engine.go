// pkg/analysis/engine.go
package analysis

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	pipeerrors "github.com/lucid-vigil/aegis/pkg/errors"
	"github.com/lucid-vigil/aegis/pkg/events"
)

const (
	defaultLayerTimeout = 5 * time.Second
	historyCap          = 10000
	historyTruncateTo   = 5000
)

// Engine is the threat analysis stage. Analyze fans out to five independent
// layers, joins them, and aggregates their findings into a scored Analysis.
type Engine struct {
	logger            zerolog.Logger
	bus               *events.EventBus
	scorer            AnomalyScorer
	baselines         map[string]BehaviorBaseline
	patterns          []threatPattern
	signatures        []signatureRule
	behaviorThreshold float64
	anomalyThreshold  float64
	layerTimeout      time.Duration

	history   []*Analysis
	historyMu sync.Mutex
}

// Option configures an Engine.
type Option func(*Engine)

// WithAnomalyScorer replaces the statistical layer's scoring strategy.
func WithAnomalyScorer(scorer AnomalyScorer) Option {
	return func(e *Engine) { e.scorer = scorer }
}

// WithBehaviorBaselines replaces the stored behavior baselines.
func WithBehaviorBaselines(baselines map[string]BehaviorBaseline) Option {
	return func(e *Engine) { e.baselines = baselines }
}

// WithLayerTimeout bounds per-analysis wall-clock time. A layer exceeding
// it contributes zero threats instead of blocking the analysis.
func WithLayerTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.layerTimeout = d
		}
	}
}

// WithThresholds sets the behavior deviation and statistical anomaly
// thresholds.
func WithThresholds(behavior, anomaly float64) Option {
	return func(e *Engine) {
		if behavior > 0 {
			e.behaviorThreshold = behavior
		}
		if anomaly > 0 {
			e.anomalyThreshold = anomaly
		}
	}
}

// NewEngine creates a threat analysis engine. The bus may be nil in tests.
func NewEngine(logger zerolog.Logger, bus *events.EventBus, opts ...Option) *Engine {
	e := &Engine{
		logger:            logger.With().Str("component", "analysis").Logger(),
		bus:               bus,
		scorer:            MedianDistanceScorer{},
		baselines:         defaultBehaviorBaselines(),
		patterns:          defaultThreatPatterns(),
		signatures:        defaultSignatureRules(),
		behaviorThreshold: 2.5,
		anomalyThreshold:  2.5,
		layerTimeout:      defaultLayerTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type namedLayer struct {
	name string
	run  func(SecurityData) (layerResult, error)
}

// Analyze runs all five layers concurrently, waits for them (bounded by the
// layer timeout), aggregates, records history, and publishes
// analysis_complete. A failing or slow layer contributes nothing; it never
// aborts the others.
func (e *Engine) Analyze(ctx context.Context, data SecurityData) *Analysis {
	start := time.Now()

	layers := []namedLayer{
		{"pattern", e.patternLayer},
		{"behavior", e.behaviorLayer},
		{"statistical", e.statisticalLayer},
		{"signature", e.signatureLayer},
		{"heuristic", e.heuristicLayer},
	}

	type outcome struct {
		index  int
		result layerResult
		err    error
	}
	done := make(chan outcome, len(layers))

	for i, layer := range layers {
		go func(i int, layer namedLayer) {
			result, err := layer.run(data)
			done <- outcome{index: i, result: result, err: err}
		}(i, layer)
	}

	// Join barrier with a deadline: layers that miss it are abandoned and
	// contribute nothing.
	results := make([]layerResult, len(layers))
	timer := time.NewTimer(e.layerTimeout)
	defer timer.Stop()

	completed := 0
collect:
	for completed < len(layers) {
		select {
		case out := <-done:
			completed++
			if out.err != nil {
				pipeerrors.NewAnalysisLayerError(layers[out.index].name, out.err).Log(e.logger)
				continue
			}
			results[out.index] = out.result
		case <-timer.C:
			e.logger.Warn().
				Int("completed", completed).
				Int("total", len(layers)).
				Dur("timeout", e.layerTimeout).
				Msg("Analysis layer deadline exceeded, aggregating partial results")
			break collect
		case <-ctx.Done():
			e.logger.Warn().Msg("Analysis cancelled, aggregating partial results")
			break collect
		}
	}

	analysis := e.aggregate(data, results)
	analysis.Duration = time.Since(start)

	e.appendHistory(analysis)

	e.logger.Info().
		Str("analysis_id", analysis.ID).
		Str("severity", string(analysis.Severity)).
		Float64("confidence", analysis.Confidence).
		Float64("risk_score", analysis.RiskScore).
		Int("threats", len(analysis.Threats)).
		Dur("duration", analysis.Duration).
		Msg("Threat analysis complete")

	if e.bus != nil {
		if err := e.bus.Publish(ctx, events.Event{
			Type:     events.EventAnalysisComplete,
			Source:   "analysis",
			Severity: string(analysis.Severity),
			Payload:  analysis,
		}); err != nil {
			e.logger.Error().Err(err).Str("analysis_id", analysis.ID).Msg("Failed to publish analysis_complete")
		}
	}

	return analysis
}

// aggregate derives the overall severity and confidence from the weighted
// average threat score: sum(weight*confidence)/count, bands at >=3.5
// critical, >=2.5 high, >=1.5 medium, else low. Zero threats means
// severity none at full confidence.
func (e *Engine) aggregate(data SecurityData, results []layerResult) *Analysis {
	analysis := &Analysis{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Source:    data.Source,
	}

	for _, result := range results {
		analysis.Threats = append(analysis.Threats, result.Threats...)
		analysis.Patterns = append(analysis.Patterns, result.Patterns...)
		analysis.Anomalies = append(analysis.Anomalies, result.Anomalies...)
	}

	if len(analysis.Threats) == 0 {
		analysis.Severity = SeverityNone
		analysis.Confidence = 1.0
		analysis.Recommendations = recommendationsFor(analysis)
		return analysis
	}

	var score float64
	for _, threat := range analysis.Threats {
		score += threat.Severity.Weight() * threat.Confidence
	}
	avgScore := score / float64(len(analysis.Threats))

	switch {
	case avgScore >= 3.5:
		analysis.Severity = SeverityCritical
	case avgScore >= 2.5:
		analysis.Severity = SeverityHigh
	case avgScore >= 1.5:
		analysis.Severity = SeverityMedium
	default:
		analysis.Severity = SeverityLow
	}
	analysis.Confidence = math.Min(avgScore/4, 1.0)
	analysis.RiskScore = math.Min(avgScore*25, 100)
	analysis.Recommendations = recommendationsFor(analysis)

	return analysis
}

// recommendationsFor is a fixed mapping from the final severity and the
// presence of pattern/anomaly findings; nothing here is learned.
func recommendationsFor(analysis *Analysis) []Recommendation {
	var recs []Recommendation

	switch analysis.Severity {
	case SeverityCritical:
		recs = append(recs,
			Recommendation{Action: "initiate_incident_response", Reason: "critical aggregate severity", Priority: "urgent"},
			Recommendation{Action: "isolate_affected_systems", Reason: "critical aggregate severity", Priority: "urgent"},
		)
	case SeverityHigh:
		recs = append(recs,
			Recommendation{Action: "alert_security_team", Reason: "high aggregate severity", Priority: "high"},
		)
	case SeverityMedium:
		recs = append(recs,
			Recommendation{Action: "increase_monitoring", Reason: "medium aggregate severity", Priority: "medium"},
		)
	case SeverityLow:
		recs = append(recs,
			Recommendation{Action: "log_and_monitor", Reason: "low aggregate severity", Priority: "low"},
		)
	}

	if len(analysis.Patterns) > 0 {
		recs = append(recs, Recommendation{
			Action:   "review_attack_patterns",
			Reason:   "known threat patterns matched the payload",
			Priority: "high",
		})
	}
	if len(analysis.Anomalies) > 0 {
		recs = append(recs, Recommendation{
			Action:   "review_baselines",
			Reason:   "metrics or behavior deviated from baseline",
			Priority: "medium",
		})
	}

	return recs
}

// appendHistory keeps a bounded rolling record of analyses: capped at
// historyCap and truncated to the newest historyTruncateTo on overflow.
// Append and truncate happen in one critical section.
func (e *Engine) appendHistory(analysis *Analysis) {
	e.historyMu.Lock()
	defer e.historyMu.Unlock()

	e.history = append(e.history, analysis)
	if len(e.history) > historyCap {
		e.history = append([]*Analysis(nil), e.history[len(e.history)-historyTruncateTo:]...)
	}
}

// HistoryLen returns the number of retained analyses.
func (e *Engine) HistoryLen() int {
	e.historyMu.Lock()
	defer e.historyMu.Unlock()
	return len(e.history)
}
