// pkg/metrics/metrics.go
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Pipeline holds the Prometheus instruments for every pipeline stage.
// Register it against a Registerer once at startup.
type Pipeline struct {
	EventsIngested   *prometheus.CounterVec
	EventsDropped    *prometheus.CounterVec
	AnalysesTotal    prometheus.Counter
	AnalysisDuration prometheus.Histogram
	ThreatsDetected  *prometheus.CounterVec
	KnowledgeMatches prometheus.Histogram
	DecisionsTotal   *prometheus.CounterVec
	ActionsExecuted  *prometheus.CounterVec
	ActionDuration   prometheus.Histogram
	CooldownSkips    prometheus.Counter
	LearningSamples  prometheus.Gauge
}

// NewPipeline creates the instrument set with the aegis namespace.
func NewPipeline() *Pipeline {
	return &Pipeline{
		EventsIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aegis",
			Subsystem: "intake",
			Name:      "events_ingested_total",
			Help:      "Error events successfully normalized, by source.",
		}, []string{"source"}),
		EventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aegis",
			Subsystem: "intake",
			Name:      "events_dropped_total",
			Help:      "Payloads dropped at intake, by reason.",
		}, []string{"reason"}),
		AnalysesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "aegis",
			Subsystem: "analysis",
			Name:      "analyses_total",
			Help:      "Threat analyses completed.",
		}),
		AnalysisDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "aegis",
			Subsystem: "analysis",
			Name:      "duration_seconds",
			Help:      "Wall-clock time per analysis.",
			Buckets:   prometheus.DefBuckets,
		}),
		ThreatsDetected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aegis",
			Subsystem: "analysis",
			Name:      "threats_detected_total",
			Help:      "Threats found, by severity.",
		}, []string{"severity"}),
		KnowledgeMatches: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "aegis",
			Subsystem: "knowledge",
			Name:      "matches_per_query",
			Help:      "Knowledge-base matches returned per query.",
			Buckets:   []float64{0, 1, 2, 5, 10, 20},
		}),
		DecisionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aegis",
			Subsystem: "decision",
			Name:      "decisions_total",
			Help:      "Decisions made, by severity and auto-execute flag.",
		}, []string{"severity", "auto_execute"}),
		ActionsExecuted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aegis",
			Subsystem: "actions",
			Name:      "executed_total",
			Help:      "Action executions, by action and outcome.",
		}, []string{"action", "outcome"}),
		ActionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "aegis",
			Subsystem: "actions",
			Name:      "duration_seconds",
			Help:      "Wall-clock time per action execution.",
			Buckets:   prometheus.DefBuckets,
		}),
		CooldownSkips: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "aegis",
			Subsystem: "decision",
			Name:      "cooldown_skips_total",
			Help:      "Actions filtered out of decisions by active cooldowns.",
		}),
		LearningSamples: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "aegis",
			Subsystem: "learning",
			Name:      "buffer_samples",
			Help:      "Samples currently held in the training buffer.",
		}),
	}
}

// Register registers every instrument with the registerer.
func (p *Pipeline) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		p.EventsIngested,
		p.EventsDropped,
		p.AnalysesTotal,
		p.AnalysisDuration,
		p.ThreatsDetected,
		p.KnowledgeMatches,
		p.DecisionsTotal,
		p.ActionsExecuted,
		p.ActionDuration,
		p.CooldownSkips,
		p.LearningSamples,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// ObserveAnalysis records one completed analysis.
func (p *Pipeline) ObserveAnalysis(d time.Duration, severities []string) {
	p.AnalysesTotal.Inc()
	p.AnalysisDuration.Observe(d.Seconds())
	for _, s := range severities {
		p.ThreatsDetected.WithLabelValues(s).Inc()
	}
}

// ObserveAction records one action execution.
func (p *Pipeline) ObserveAction(action string, d time.Duration, success bool) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	p.ActionsExecuted.WithLabelValues(action, outcome).Inc()
	p.ActionDuration.Observe(d.Seconds())
}
