// pkg/analysis/scorer.go
package analysis

import (
	"math"
	"sort"
)

// AnomalyScorer scores a single numeric metric for anomalousness. The
// statistical layer flags metrics whose score exceeds the configured
// threshold. Implementations are pluggable; the default is a deliberately
// simple spread-based scorer, not a statistical model.
type AnomalyScorer interface {
	Score(metric string, value float64, all map[string]float64) float64
}

// MedianDistanceScorer scores a metric by its absolute distance from the
// median of the other metrics in the same payload, normalized by the
// median's magnitude. Arbitrary but deterministic; replace via
// WithAnomalyScorer for anything real.
type MedianDistanceScorer struct{}

func (MedianDistanceScorer) Score(metric string, value float64, all map[string]float64) float64 {
	others := make([]float64, 0, len(all))
	for name, v := range all {
		if name != metric {
			others = append(others, v)
		}
	}
	if len(others) == 0 {
		return 0
	}

	sort.Float64s(others)
	median := others[len(others)/2]
	if len(others)%2 == 0 {
		median = (others[len(others)/2-1] + others[len(others)/2]) / 2
	}

	scale := math.Abs(median)
	if scale < 1 {
		scale = 1
	}
	return math.Abs(value-median) / scale
}

// BehaviorBaseline holds the stored mean and standard deviation for one
// behavior channel.
type BehaviorBaseline struct {
	Mean   float64
	StdDev float64
}

func defaultBehaviorBaselines() map[string]BehaviorBaseline {
	return map[string]BehaviorBaseline{
		"user":    {Mean: 50, StdDev: 15},
		"network": {Mean: 1000, StdDev: 400},
		"system":  {Mean: 0.5, StdDev: 0.2},
	}
}
