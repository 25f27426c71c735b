// pkg/decision/engine.go
package decision

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/load"

	"github.com/lucid-vigil/aegis/pkg/analysis"
	"github.com/lucid-vigil/aegis/pkg/config"
	"github.com/lucid-vigil/aegis/pkg/events"
	"github.com/lucid-vigil/aegis/pkg/knowledge"
)

// LoadProbe reports current system load normalized to [0,1] per core.
type LoadProbe func(ctx context.Context) (float64, error)

func systemLoad(ctx context.Context) (float64, error) {
	avg, err := load.AvgWithContext(ctx)
	if err != nil {
		return 0, err
	}
	return avg.Load1 / float64(runtime.NumCPU()), nil
}

// Engine turns an Analysis into a prioritized, deduplicated,
// cooldown-filtered Decision. Construction runs through four fixed stages;
// each appends action requests and a reasoning trace entry.
type Engine struct {
	cfg       config.DecisionConfig
	catalog   map[string]CatalogEntry
	rules     map[string]ResponseRule
	cooldowns *CooldownTracker
	incidents *incidentLog
	bus       *events.EventBus
	logger    zerolog.Logger
	now       func() time.Time
	loadProbe LoadProbe
}

// EngineOption customizes an Engine.
type EngineOption func(*Engine)

// WithNow injects the clock, used by the off-hours heuristic.
func WithNow(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// WithLoadProbe injects the system-load source.
func WithLoadProbe(probe LoadProbe) EngineOption {
	return func(e *Engine) { e.loadProbe = probe }
}

// WithCooldowns shares a cooldown tracker between the engine and the
// dispatcher. Both must see the same map for the filtering step to hold.
func WithCooldowns(ct *CooldownTracker) EngineOption {
	return func(e *Engine) { e.cooldowns = ct }
}

// WithRules replaces the built-in threat-type rules.
func WithRules(rules map[string]ResponseRule) EngineOption {
	return func(e *Engine) { e.rules = rules }
}

// NewEngine creates a decision engine.
func NewEngine(logger zerolog.Logger, bus *events.EventBus, cfg config.DecisionConfig, opts ...EngineOption) *Engine {
	e := &Engine{
		cfg:       cfg,
		catalog:   DefaultCatalog(),
		rules:     DefaultRules(),
		cooldowns: NewCooldownTracker(),
		incidents: newIncidentLog(),
		bus:       bus,
		logger:    logger.With().Str("component", "decision_engine").Logger(),
		now:       time.Now,
		loadProbe: systemLoad,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Cooldowns exposes the shared tracker for wiring a dispatcher.
func (e *Engine) Cooldowns() *CooldownTracker {
	return e.cooldowns
}

// MakeDecision builds a Decision from the analysis, optionally enriched by
// knowledge-base matches. The result is final; callers must not mutate it.
func (e *Engine) MakeDecision(ctx context.Context, a *analysis.Analysis, matches ...knowledge.Match) *Decision {
	d := &Decision{
		DecisionID: uuid.NewString(),
		Timestamp:  e.now(),
		AnalysisID: a.ID,
		RiskScore:  a.RiskScore,
		Severity:   string(a.Severity),
		Confidence: a.Confidence,
	}

	candidates := e.applyRules(d, a)
	candidates = e.applyKnowledge(d, matches, candidates)
	candidates = e.applyRiskTolerance(d, a, candidates)
	candidates = e.applyContext(ctx, d, a, candidates)
	e.finalize(d, candidates)

	e.logger.Info().
		Str("decision_id", d.DecisionID).
		Str("analysis_id", d.AnalysisID).
		Str("severity", d.Severity).
		Float64("risk_score", d.RiskScore).
		Int("actions", len(d.Actions)).
		Bool("auto_execute", d.AutoExecute).
		Msg("Decision made")

	if e.bus != nil {
		if err := e.bus.Publish(ctx, events.Event{
			Type:     events.EventDecisionMade,
			Source:   "decision_engine",
			Severity: d.Severity,
			Payload:  d,
		}); err != nil {
			e.logger.Warn().Err(err).Str("decision_id", d.DecisionID).Msg("Failed to publish decision")
		}
	}

	return d
}

// applyRules is stage one: threat-type rules plus the severity-keyed
// fallback table.
func (e *Engine) applyRules(d *Decision, a *analysis.Analysis) []ActionRequest {
	var candidates []ActionRequest
	fired := 0

	for _, threat := range a.Threats {
		rule, ok := e.rules[threat.ThreatType]
		if !ok || threat.Confidence < rule.MinConfidence {
			continue
		}
		fired++
		for _, ra := range rule.Actions {
			candidates = append(candidates, ActionRequest{
				Action:     ra.Name,
				Priority:   ra.Priority,
				Confidence: threat.Confidence,
				Reason:     fmt.Sprintf("rule for threat type %s", threat.ThreatType),
			})
		}
	}

	for _, ra := range severityFallback(string(a.Severity)) {
		candidates = append(candidates, ActionRequest{
			Action:     ra.Name,
			Priority:   ra.Priority,
			Confidence: a.Confidence,
			Reason:     fmt.Sprintf("baseline response for %s severity", a.Severity),
		})
	}

	d.Reasoning = append(d.Reasoning, fmt.Sprintf(
		"rule stage: %d rules fired across %d threats, severity fallback %q",
		fired, len(a.Threats), a.Severity))
	return candidates
}

// applyKnowledge folds knowledge-base corroboration into the candidate
// set. A strongly scored match means the observed activity resembles a
// known threat, so evidence is preserved before any mitigation runs.
func (e *Engine) applyKnowledge(d *Decision, matches []knowledge.Match, candidates []ActionRequest) []ActionRequest {
	if len(matches) == 0 {
		return candidates
	}

	top := matches[0]
	for _, m := range matches[1:] {
		if m.Score > top.Score {
			top = m
		}
	}
	d.Reasoning = append(d.Reasoning, fmt.Sprintf(
		"knowledge stage: %d matches, best %s %q score %.2f",
		len(matches), top.Repository, top.Name, top.Score))

	if top.Score >= 0.8 {
		candidates = append(candidates, ActionRequest{
			Action:     "forensic_capture",
			Priority:   PriorityHigh,
			Confidence: top.Score,
			Reason:     fmt.Sprintf("corroborated by %s entry %q", top.Repository, top.Name),
		})
	}
	return candidates
}

// applyRiskTolerance is stage two: the configured posture's threshold
// table against the analysis risk score.
func (e *Engine) applyRiskTolerance(d *Decision, a *analysis.Analysis, candidates []ActionRequest) []ActionRequest {
	table := toleranceTable(e.cfg.RiskTolerance)
	actions, band := riskActions(a.RiskScore, table)
	conf := math.Min(a.RiskScore/100, 1.0)

	for _, ra := range actions {
		candidates = append(candidates, ActionRequest{
			Action:     ra.Name,
			Priority:   ra.Priority,
			Confidence: conf,
			Reason:     fmt.Sprintf("risk score %.1f crossed %s cutoff (%s tolerance)", a.RiskScore, band, e.cfg.RiskTolerance),
		})
	}

	if band == "" {
		d.Reasoning = append(d.Reasoning, fmt.Sprintf(
			"risk stage: score %.1f below all cutoffs (%s tolerance)", a.RiskScore, e.cfg.RiskTolerance))
	} else {
		d.Reasoning = append(d.Reasoning, fmt.Sprintf(
			"risk stage: score %.1f in %s band (%s tolerance)", a.RiskScore, band, e.cfg.RiskTolerance))
	}
	return candidates
}

// applyContext is stage three: recurrence escalation, off-hours confidence
// boost for automated actions, and high-impact stripping under load.
func (e *Engine) applyContext(ctx context.Context, d *Decision, a *analysis.Analysis, candidates []ActionRequest) []ActionRequest {
	incidentKey := a.Source + "|" + string(a.Severity)
	count := e.incidents.record(incidentKey)
	if count > 3 {
		candidates = append(candidates, ActionRequest{
			Action:     "isolate_system",
			Priority:   PriorityUrgent,
			Confidence: a.Confidence,
			Reason:     fmt.Sprintf("%d similar incidents in 24h", count),
		})
		d.Reasoning = append(d.Reasoning, fmt.Sprintf(
			"context stage: escalating, %d similar incidents in 24h", count))
	}

	hour := e.now().Hour()
	if hour < 6 || hour >= 18 {
		for i := range candidates {
			entry, ok := e.catalog[candidates[i].Action]
			if ok && entry.Automated {
				candidates[i].Confidence = math.Min(candidates[i].Confidence+0.1, 1.0)
			}
		}
		d.Reasoning = append(d.Reasoning, "context stage: off-hours, boosted automated action confidence")
	}

	if sysLoad, err := e.loadProbe(ctx); err == nil && sysLoad > e.cfg.MaxLoad {
		kept := candidates[:0]
		stripped := 0
		for _, c := range candidates {
			if entry, ok := e.catalog[c.Action]; ok && entry.Impact == "high" {
				stripped++
				continue
			}
			kept = append(kept, c)
		}
		candidates = kept
		d.Reasoning = append(d.Reasoning, fmt.Sprintf(
			"context stage: system load %.2f above %.2f, stripped %d high-impact actions", sysLoad, e.cfg.MaxLoad, stripped))
	}

	return candidates
}

// finalize is stage four: dedupe, cooldown filter, sort, truncate, and the
// auto-execute determination.
func (e *Engine) finalize(d *Decision, candidates []ActionRequest) {
	// Deduplicate by action name, keeping the highest-confidence instance.
	best := make(map[string]ActionRequest)
	order := make([]string, 0, len(candidates))
	for _, c := range candidates {
		existing, seen := best[c.Action]
		if !seen {
			order = append(order, c.Action)
			best[c.Action] = c
			continue
		}
		if c.Confidence > existing.Confidence {
			best[c.Action] = c
		}
	}

	actions := make([]ActionRequest, 0, len(order))
	cooled := 0
	for _, name := range order {
		if e.cooldowns.Active(name) {
			cooled++
			continue
		}
		actions = append(actions, best[name])
	}

	sort.SliceStable(actions, func(i, j int) bool {
		if actions[i].Priority.Rank() != actions[j].Priority.Rank() {
			return actions[i].Priority.Rank() > actions[j].Priority.Rank()
		}
		return actions[i].Confidence > actions[j].Confidence
	})

	if max := e.cfg.MaxAutomatedActions; max > 0 && len(actions) > max {
		actions = actions[:max]
	}
	d.Actions = actions

	autoExecute := false
	if e.cfg.AutoResponseEnabled {
		for _, a := range actions {
			entry, ok := e.catalog[a.Action]
			if ok && entry.Automated && a.Confidence > 0.7 && a.Priority != PriorityLow {
				autoExecute = true
				break
			}
		}
	}
	d.AutoExecute = autoExecute
	d.CooldownFiltered = cooled

	d.Reasoning = append(d.Reasoning, fmt.Sprintf(
		"finalize: %d candidates, %d on cooldown, %d actions kept, auto_execute=%t",
		len(candidates), cooled, len(actions), autoExecute))
}
