// pkg/learning/engine.go
package learning

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lucid-vigil/aegis/pkg/analysis"
	"github.com/lucid-vigil/aegis/pkg/intake"
)

const defaultMaxTrainingData = 100000

// FeatureVector is the fixed set of numeric features extracted from one
// analysis. It is bookkeeping for later offline use, not model training.
type FeatureVector struct {
	ThreatCount       int      `json:"threat_count"`
	MaxSeverity       float64  `json:"max_severity"` // 0-4
	AvgConfidence     float64  `json:"avg_confidence"`
	PatternCount      int      `json:"pattern_count"`
	PatternTypes      []string `json:"pattern_types,omitempty"`
	AnomalyCount      int      `json:"anomaly_count"`
	MaxAnomalyScore   float64  `json:"max_anomaly_score"`
	HourOfDay         int      `json:"hour_of_day"`
	DayOfWeek         int      `json:"day_of_week"`
	Source            string   `json:"source"`
	RiskScore         float64  `json:"risk_score"`
	OverallConfidence float64  `json:"overall_confidence"`
}

// Outcome is the later-arriving result of a remediation attempt.
type Outcome struct {
	Success bool          `json:"success"`
	FixTime time.Duration `json:"fix_time"`
}

// Sample is one entry in the training buffer. Outcome stays nil until
// feedback arrives.
type Sample struct {
	Timestamp  time.Time     `json:"timestamp"`
	AnalysisID string        `json:"analysis_id"`
	Features   FeatureVector `json:"features"`
	Outcome    *Outcome      `json:"outcome,omitempty"`
}

// Engine records analyses as feature vectors in a bounded buffer and
// routes outcome feedback back into the error-pattern statistics.
type Engine struct {
	mu       sync.Mutex
	samples  []Sample
	byID     map[string]int // analysis id -> newest sample index
	memory   map[string]int64
	maxData  int
	patterns *intake.PatternStore
	logger   zerolog.Logger
	now      func() time.Time
}

// Option customizes an Engine.
type Option func(*Engine)

// WithMaxTrainingData caps the sample buffer.
func WithMaxTrainingData(max int) Option {
	return func(e *Engine) {
		if max > 0 {
			e.maxData = max
		}
	}
}

// WithNow injects the clock used for sample timestamps.
func WithNow(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates a learning engine. The pattern store is shared with
// intake so feedback lands on the same ErrorPattern records that intake
// maintains.
func NewEngine(logger zerolog.Logger, patterns *intake.PatternStore, opts ...Option) *Engine {
	e := &Engine{
		byID:     make(map[string]int),
		memory:   make(map[string]int64),
		maxData:  defaultMaxTrainingData,
		patterns: patterns,
		logger:   logger.With().Str("component", "learning_engine").Logger(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Learn extracts the feature vector from an analysis and appends a sample
// to the buffer, evicting the oldest 20% when the buffer is full.
func (e *Engine) Learn(a *analysis.Analysis) Sample {
	sample := Sample{
		Timestamp:  e.now(),
		AnalysisID: a.ID,
		Features:   extractFeatures(a),
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.samples) >= e.maxData {
		evict := e.maxData / 5
		if evict < 1 {
			evict = 1
		}
		e.samples = e.samples[evict:]
		for id, idx := range e.byID {
			if idx < evict {
				delete(e.byID, id)
			} else {
				e.byID[id] = idx - evict
			}
		}
	}
	e.samples = append(e.samples, sample)
	e.byID[a.ID] = len(e.samples) - 1

	for _, p := range a.Patterns {
		e.memory[p.Name]++
	}

	e.logger.Debug().
		Str("analysis_id", a.ID).
		Int("buffer_size", len(e.samples)).
		Msg("Learned from analysis")
	return sample
}

// IncorporateFeedback fills in the outcome of the newest sample for the
// analysis and forwards fix statistics to the error-pattern store when a
// signature is supplied.
func (e *Engine) IncorporateFeedback(analysisID, signature string, success bool, fixTime time.Duration) bool {
	e.mu.Lock()
	idx, ok := e.byID[analysisID]
	if ok {
		e.samples[idx].Outcome = &Outcome{Success: success, FixTime: fixTime}
	}
	e.mu.Unlock()

	if signature != "" && e.patterns != nil {
		if !e.patterns.RecordOutcome(signature, success, fixTime) {
			e.logger.Debug().
				Str("signature", signature).
				Msg("Feedback for unknown error pattern")
		}
	}

	if !ok {
		e.logger.Debug().
			Str("analysis_id", analysisID).
			Msg("Feedback for unknown or evicted analysis")
	}
	return ok
}

// PatternFrequency returns how often a named threat pattern has been seen
// across all learned analyses.
func (e *Engine) PatternFrequency(name string) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.memory[name]
}

// BufferLen returns the number of samples currently held.
func (e *Engine) BufferLen() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.samples)
}

// Sample returns the newest sample recorded for an analysis id.
func (e *Engine) Sample(analysisID string) (Sample, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	idx, ok := e.byID[analysisID]
	if !ok {
		return Sample{}, false
	}
	return e.samples[idx], true
}

func extractFeatures(a *analysis.Analysis) FeatureVector {
	fv := FeatureVector{
		ThreatCount:       len(a.Threats),
		PatternCount:      len(a.Patterns),
		AnomalyCount:      len(a.Anomalies),
		HourOfDay:         a.Timestamp.Hour(),
		DayOfWeek:         int(a.Timestamp.Weekday()),
		Source:            a.Source,
		RiskScore:         a.RiskScore,
		OverallConfidence: a.Confidence,
	}

	var confSum float64
	for _, t := range a.Threats {
		confSum += t.Confidence
		if w := t.Severity.Weight(); w > fv.MaxSeverity {
			fv.MaxSeverity = w
		}
	}
	if len(a.Threats) > 0 {
		fv.AvgConfidence = confSum / float64(len(a.Threats))
	}

	for _, p := range a.Patterns {
		fv.PatternTypes = append(fv.PatternTypes, p.Name)
	}
	for _, an := range a.Anomalies {
		if an.Score > fv.MaxAnomalyScore {
			fv.MaxAnomalyScore = an.Score
		}
	}
	return fv
}
