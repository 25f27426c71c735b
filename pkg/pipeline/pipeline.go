// pkg/pipeline/pipeline.go
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lucid-vigil/aegis/pkg/actions"
	"github.com/lucid-vigil/aegis/pkg/analysis"
	"github.com/lucid-vigil/aegis/pkg/config"
	"github.com/lucid-vigil/aegis/pkg/decision"
	"github.com/lucid-vigil/aegis/pkg/events"
	"github.com/lucid-vigil/aegis/pkg/intake"
	"github.com/lucid-vigil/aegis/pkg/knowledge"
	"github.com/lucid-vigil/aegis/pkg/learning"
	"github.com/lucid-vigil/aegis/pkg/metrics"
)

// Pipeline assembles the five stages on one event bus. External signals
// enter through Submit; everything downstream is triggered by events.
type Pipeline struct {
	Intake     *intake.Service
	Analysis   *analysis.Engine
	Knowledge  *knowledge.Base
	Decision   *decision.Engine
	Dispatcher *decision.Dispatcher
	Learning   *learning.Engine

	bus     *events.EventBus
	metrics *metrics.Pipeline
	logger  zerolog.Logger

	// Error-pattern signatures keyed by analysis ID, so outcome feedback
	// can reach the pattern store after the raw event is gone.
	sigMu      sync.Mutex
	signatures map[string]string
}

// Options carries the optional strategy overrides for a pipeline.
type Options struct {
	Executor      actions.Executor
	Metrics       *metrics.Pipeline
	AnomalyScorer analysis.AnomalyScorer
	Fetcher       knowledge.FeedFetcher
}

// New wires every stage together and subscribes the stage handlers. The
// bus must be started by the caller.
func New(logger zerolog.Logger, bus *events.EventBus, cfg *config.Config, opts Options) *Pipeline {
	executor := opts.Executor
	if executor == nil {
		registry := actions.NewRegistry(logger)
		actions.RegisterStubs(registry)
		executor = registry
	}

	analysisOpts := []analysis.Option{
		analysis.WithLayerTimeout(cfg.Analysis.LayerTimeout),
		analysis.WithThresholds(cfg.Analysis.BehaviorThreshold, cfg.Analysis.AnomalyThreshold),
	}
	if opts.AnomalyScorer != nil {
		analysisOpts = append(analysisOpts, analysis.WithAnomalyScorer(opts.AnomalyScorer))
	}

	knowledgeOpts := []knowledge.BaseOption{
		knowledge.WithConfidenceThreshold(cfg.Knowledge.ConfidenceThreshold),
		knowledge.WithMaxEntries(cfg.Knowledge.MaxEntries),
		knowledge.WithMaxMatches(cfg.Knowledge.MaxMatches),
	}
	if opts.Fetcher != nil {
		knowledgeOpts = append(knowledgeOpts, knowledge.WithFetcher(opts.Fetcher))
	}

	p := &Pipeline{
		Intake: intake.NewService(logger, bus, intake.Options{
			MaxHistoryPerKey: cfg.Intake.MaxHistoryPerKey,
			MaxPayloadBytes:  cfg.Intake.MaxPayloadBytes,
			RatePerMinute:    cfg.Intake.RatePerMinute,
			RateBurst:        cfg.Intake.RateBurst,
		}),
		Analysis:   analysis.NewEngine(logger, bus, analysisOpts...),
		Knowledge:  knowledge.NewBase(logger, bus, knowledgeOpts...),
		bus:        bus,
		metrics:    opts.Metrics,
		logger:     logger.With().Str("component", "pipeline").Logger(),
		signatures: make(map[string]string),
	}

	p.Decision = decision.NewEngine(logger, bus, cfg.Decision)
	p.Dispatcher = decision.NewDispatcher(logger, bus, cfg.Decision, p.Decision.Cooldowns(), executor)
	p.Learning = learning.NewEngine(logger, p.Intake.Patterns(),
		learning.WithMaxTrainingData(cfg.Learning.MaxTrainingData))

	bus.Subscribe(&analysisHandler{p: p})
	bus.Subscribe(&executionHandler{p: p})
	bus.Subscribe(&learningHandler{p: p})
	if p.metrics != nil {
		bus.Subscribe(&metricsHandler{p: p})
	}

	return p
}

// Submit pushes one raw payload into the pipeline. It returns the
// normalized event, or nil when the payload was dropped at intake.
func (p *Pipeline) Submit(ctx context.Context, source intake.Source, payload map[string]interface{}) *intake.ErrorEvent {
	event := p.Intake.Process(ctx, source, payload)
	if p.metrics != nil {
		if event != nil {
			p.metrics.EventsIngested.WithLabelValues(string(source)).Inc()
		} else {
			p.metrics.EventsDropped.WithLabelValues("intake").Inc()
		}
	}
	return event
}

// analysisHandler runs threat analysis on each detected error, queries the
// knowledge base with the same security data, and hands both to the
// decision engine. The knowledge query happens here because the raw
// payload is no longer available once only the Analysis circulates.
type analysisHandler struct {
	p *Pipeline
}

func (h *analysisHandler) EventTypes() []events.EventType {
	return []events.EventType{events.EventErrorDetected}
}

func (h *analysisHandler) Handle(ctx context.Context, event events.Event) error {
	errorEvent, ok := event.Payload.(*intake.ErrorEvent)
	if !ok {
		h.p.logger.Warn().Str("event_id", event.ID).Msg("Unexpected payload type for error_detected")
		return nil
	}

	data := analysis.SecurityData{
		Source:    string(errorEvent.Source),
		Timestamp: errorEvent.Timestamp,
		Payload:   errorEvent.Payload,
	}

	a := h.p.Analysis.Analyze(ctx, data)
	h.p.rememberSignature(a.ID, intake.Signature(errorEvent))
	matches := h.p.Knowledge.FindMatches(ctx, data)
	d := h.p.Decision.MakeDecision(ctx, a, matches...)

	if h.p.metrics != nil {
		severities := make([]string, 0, len(a.Threats))
		for _, t := range a.Threats {
			severities = append(severities, string(t.Severity))
		}
		h.p.metrics.ObserveAnalysis(a.Duration, severities)
		h.p.metrics.KnowledgeMatches.Observe(float64(len(matches)))
		h.p.metrics.DecisionsTotal.WithLabelValues(d.Severity, boolLabel(d.AutoExecute)).Inc()
		h.p.metrics.CooldownSkips.Add(float64(d.CooldownFiltered))
	}
	return nil
}

// executionHandler dispatches auto-executable decisions and reports the
// outcome back to the learning engine.
type executionHandler struct {
	p *Pipeline
}

func (h *executionHandler) EventTypes() []events.EventType {
	return []events.EventType{events.EventDecisionMade}
}

func (h *executionHandler) Handle(ctx context.Context, event events.Event) error {
	d, ok := event.Payload.(*decision.Decision)
	if !ok {
		h.p.logger.Warn().Str("event_id", event.ID).Msg("Unexpected payload type for decision_made")
		return nil
	}
	signature := h.p.takeSignature(d.AnalysisID)
	if !d.AutoExecute {
		h.p.logger.Info().
			Str("decision_id", d.DecisionID).
			Int("actions", len(d.Actions)).
			Msg("Decision routed for human approval")
		return nil
	}

	start := time.Now()
	executed := h.p.Dispatcher.ExecuteDecision(ctx, d)
	h.p.Learning.IncorporateFeedback(d.AnalysisID, signature, executed == len(d.Actions), time.Since(start))
	return nil
}

// rememberSignature maps an analysis ID to the error-pattern signature of
// the event that produced it, so feedback after dispatch can update the
// right pattern.
func (p *Pipeline) rememberSignature(analysisID, signature string) {
	p.sigMu.Lock()
	p.signatures[analysisID] = signature
	p.sigMu.Unlock()
}

// takeSignature consumes the signature recorded for an analysis. Every
// decision consumes its entry, executed or not, so the map stays bounded
// by in-flight work.
func (p *Pipeline) takeSignature(analysisID string) string {
	p.sigMu.Lock()
	defer p.sigMu.Unlock()
	signature := p.signatures[analysisID]
	delete(p.signatures, analysisID)
	return signature
}

// learningHandler records every completed analysis in the training buffer.
type learningHandler struct {
	p *Pipeline
}

func (h *learningHandler) EventTypes() []events.EventType {
	return []events.EventType{events.EventAnalysisComplete}
}

func (h *learningHandler) Handle(_ context.Context, event events.Event) error {
	a, ok := event.Payload.(*analysis.Analysis)
	if !ok {
		h.p.logger.Warn().Str("event_id", event.ID).Msg("Unexpected payload type for analysis_complete")
		return nil
	}
	h.p.Learning.Learn(a)
	if h.p.metrics != nil {
		h.p.metrics.LearningSamples.Set(float64(h.p.Learning.BufferLen()))
	}
	return nil
}

// metricsHandler observes action outcomes from the bus so per-action
// metrics stay accurate no matter who dispatched the action.
type metricsHandler struct {
	p *Pipeline
}

func (h *metricsHandler) EventTypes() []events.EventType {
	return []events.EventType{events.EventActionExecuted, events.EventActionFailed}
}

func (h *metricsHandler) Handle(_ context.Context, event events.Event) error {
	payload, ok := event.Payload.(map[string]interface{})
	if !ok {
		return nil
	}
	action, _ := payload["action"].(string)
	duration, _ := payload["duration"].(time.Duration)
	h.p.metrics.ObserveAction(action, duration, event.Type == events.EventActionExecuted)
	return nil
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
