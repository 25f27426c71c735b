// pkg/decision/dispatcher.go
package decision

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lucid-vigil/aegis/pkg/actions"
	"github.com/lucid-vigil/aegis/pkg/config"
	pipeerrors "github.com/lucid-vigil/aegis/pkg/errors"
	"github.com/lucid-vigil/aegis/pkg/events"
)

const historyCap = 1000

// ExecutionRecord is one entry in the dispatch history.
type ExecutionRecord struct {
	Action    string                 `json:"action"`
	Priority  Priority               `json:"priority"`
	Timestamp time.Time              `json:"timestamp"`
	Duration  time.Duration          `json:"duration"`
	Success   bool                   `json:"success"`
	Result    map[string]interface{} `json:"result,omitempty"`
	Error     string                 `json:"error,omitempty"`
}

// ExecutionStats aggregates dispatch outcomes.
type ExecutionStats struct {
	Total            int64            `json:"total"`
	Successful       int64            `json:"successful"`
	Failed           int64            `json:"failed"`
	AvgExecutionTime time.Duration    `json:"avg_execution_time"`
	ByType           map[string]int64 `json:"by_type"`
	ByPriority       map[string]int64 `json:"by_priority"`
}

// Dispatcher executes action requests through the pluggable executor. It
// owns the dispatch history and shares the cooldown tracker with the
// decision engine.
type Dispatcher struct {
	cfg       config.DecisionConfig
	catalog   map[string]CatalogEntry
	cooldowns *CooldownTracker
	executor  actions.Executor
	bus       *events.EventBus
	logger    zerolog.Logger

	mu      sync.Mutex
	history []ExecutionRecord
	stats   ExecutionStats
}

// NewDispatcher creates a dispatcher sharing the given cooldown tracker.
func NewDispatcher(logger zerolog.Logger, bus *events.EventBus, cfg config.DecisionConfig, cooldowns *CooldownTracker, executor actions.Executor) *Dispatcher {
	return &Dispatcher{
		cfg:       cfg,
		catalog:   DefaultCatalog(),
		cooldowns: cooldowns,
		executor:  executor,
		bus:       bus,
		logger:    logger.With().Str("component", "action_dispatcher").Logger(),
		stats: ExecutionStats{
			ByType:     make(map[string]int64),
			ByPriority: make(map[string]int64),
		},
	}
}

// cooldownFor resolves the cooldown duration for a catalog entry: a
// configured per-action override wins, then the entry's own duration, then
// the global period.
func (dp *Dispatcher) cooldownFor(entry CatalogEntry) time.Duration {
	if d, ok := dp.cfg.ActionCooldowns[entry.Name]; ok {
		return d
	}
	if entry.Cooldown > 0 {
		return entry.Cooldown
	}
	return dp.cfg.CooldownPeriod
}

// ExecuteAction runs one action request. The cooldown slot is claimed in
// the same critical section that checks it, so a concurrent decision
// cannot re-dispatch the same action mid-flight and a decision finalized
// before the window opened cannot slip through. Executor failures are
// recorded in history and re-raised to the caller.
func (dp *Dispatcher) ExecuteAction(ctx context.Context, req ActionRequest) (map[string]interface{}, error) {
	entry, ok := dp.catalog[req.Action]
	if !ok {
		return nil, pipeerrors.NewUnknownActionError(req.Action)
	}

	if !dp.cooldowns.Acquire(req.Action, dp.cooldownFor(entry)) {
		remaining := dp.cooldowns.Remaining(req.Action)
		dp.logger.Debug().
			Str("action", req.Action).
			Dur("remaining", remaining).
			Msg("Action still cooling down, not dispatched")
		return nil, pipeerrors.NewCooldownActiveError(req.Action, remaining)
	}

	start := time.Now()
	result, err := dp.executor.Execute(ctx, req.Action, req.Params)
	elapsed := time.Since(start)

	record := ExecutionRecord{
		Action:    req.Action,
		Priority:  req.Priority,
		Timestamp: start,
		Duration:  elapsed,
		Success:   err == nil,
		Result:    result,
	}
	if err != nil {
		record.Error = err.Error()
	}
	dp.record(record, entry)

	if err != nil {
		dp.logger.Error().
			Err(err).
			Str("action", req.Action).
			Str("priority", string(req.Priority)).
			Msg("Action execution failed")
		dp.publish(ctx, events.EventActionFailed, map[string]interface{}{
			"action":    req.Action,
			"error":     err.Error(),
			"timestamp": start,
			"duration":  elapsed,
		})
		return nil, err
	}

	dp.logger.Info().
		Str("action", req.Action).
		Str("priority", string(req.Priority)).
		Dur("duration", elapsed).
		Msg("Action executed")
	dp.publish(ctx, events.EventActionExecuted, map[string]interface{}{
		"action":    req.Action,
		"result":    result,
		"timestamp": start,
		"duration":  elapsed,
	})
	return result, nil
}

// ExecuteDecision dispatches every action of an auto-executable decision
// in order. Actions whose cooldown became active after the decision was
// finalized are skipped; a failing action is logged and does not stop the
// rest. The number of successful executions is returned.
func (dp *Dispatcher) ExecuteDecision(ctx context.Context, d *Decision) int {
	if !d.AutoExecute {
		return 0
	}
	executed := 0
	for _, req := range d.Actions {
		_, err := dp.ExecuteAction(ctx, req)
		if err != nil {
			if errors.Is(err, pipeerrors.ErrActionCoolingDown) {
				dp.logger.Debug().
					Str("decision_id", d.DecisionID).
					Str("action", req.Action).
					Msg("Action cooling down, skipped")
				continue
			}
			dp.logger.Warn().
				Err(err).
				Str("decision_id", d.DecisionID).
				Str("action", req.Action).
				Msg("Skipping failed action, continuing decision")
			continue
		}
		executed++
	}
	return executed
}

func (dp *Dispatcher) record(rec ExecutionRecord, entry CatalogEntry) {
	dp.mu.Lock()
	defer dp.mu.Unlock()

	dp.history = append(dp.history, rec)
	if len(dp.history) > historyCap {
		dp.history = dp.history[len(dp.history)-historyCap:]
	}

	dp.stats.Total++
	if rec.Success {
		dp.stats.Successful++
	} else {
		dp.stats.Failed++
	}
	n := dp.stats.Total
	dp.stats.AvgExecutionTime = time.Duration(
		(int64(dp.stats.AvgExecutionTime)*(n-1) + int64(rec.Duration)) / n)
	dp.stats.ByType[entry.Type]++
	dp.stats.ByPriority[string(rec.Priority)]++
}

func (dp *Dispatcher) publish(ctx context.Context, eventType events.EventType, payload map[string]interface{}) {
	if dp.bus == nil {
		return
	}
	if err := dp.bus.Publish(ctx, events.Event{
		Type:    eventType,
		Source:  "action_dispatcher",
		Payload: payload,
	}); err != nil {
		dp.logger.Warn().Err(err).Str("event_type", string(eventType)).Msg("Failed to publish action event")
	}
}

// Stats returns a copy of the current execution statistics.
func (dp *Dispatcher) Stats() ExecutionStats {
	dp.mu.Lock()
	defer dp.mu.Unlock()

	statsCopy := dp.stats
	statsCopy.ByType = make(map[string]int64, len(dp.stats.ByType))
	statsCopy.ByPriority = make(map[string]int64, len(dp.stats.ByPriority))
	for k, v := range dp.stats.ByType {
		statsCopy.ByType[k] = v
	}
	for k, v := range dp.stats.ByPriority {
		statsCopy.ByPriority[k] = v
	}
	return statsCopy
}

// History returns a copy of the most recent execution records.
func (dp *Dispatcher) History() []ExecutionRecord {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	out := make([]ExecutionRecord, len(dp.history))
	copy(out, dp.history)
	return out
}
