package decision

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/lucid-vigil/aegis/pkg/actions"
	pipeerrors "github.com/lucid-vigil/aegis/pkg/errors"
)

type recordingExecutor struct {
	calls []string
	fail  map[string]error
}

func (r *recordingExecutor) Execute(_ context.Context, actionName string, _ map[string]interface{}) (map[string]interface{}, error) {
	r.calls = append(r.calls, actionName)
	if err, ok := r.fail[actionName]; ok {
		return nil, err
	}
	return map[string]interface{}{"status": "completed"}, nil
}

func testDispatcher(executor actions.Executor) (*Dispatcher, *CooldownTracker) {
	cooldowns := NewCooldownTracker()
	dp := NewDispatcher(zerolog.Nop(), nil, testDecisionConfig(), cooldowns, executor)
	return dp, cooldowns
}

func TestExecuteAction_Success(t *testing.T) {
	exec := &recordingExecutor{}
	dp, cooldowns := testDispatcher(exec)

	result, err := dp.ExecuteAction(context.Background(), ActionRequest{
		Action:   "alert_admin",
		Priority: PriorityHigh,
	})
	assert.NoError(t, err)
	assert.Equal(t, "completed", result["status"])
	assert.Equal(t, []string{"alert_admin"}, exec.calls)
	assert.True(t, cooldowns.Active("alert_admin"))

	history := dp.History()
	assert.Len(t, history, 1)
	assert.True(t, history[0].Success)
}

func TestExecuteAction_UnknownAction(t *testing.T) {
	exec := &recordingExecutor{}
	dp, cooldowns := testDispatcher(exec)

	_, err := dp.ExecuteAction(context.Background(), ActionRequest{Action: "nonexistent"})
	assert.True(t, errors.Is(err, pipeerrors.ErrUnknownAction))
	assert.Empty(t, exec.calls, "executor must not run for unknown actions")
	assert.False(t, cooldowns.Active("nonexistent"))
}

func TestExecuteAction_CooldownSetBeforeExecution(t *testing.T) {
	exec := &recordingExecutor{fail: map[string]error{
		"block_ip": errors.New("firewall unreachable"),
	}}
	dp, cooldowns := testDispatcher(exec)

	_, err := dp.ExecuteAction(context.Background(), ActionRequest{
		Action:   "block_ip",
		Priority: PriorityUrgent,
	})
	assert.Error(t, err, "execution failure must be re-raised")
	assert.True(t, cooldowns.Active("block_ip"),
		"cooldown is claimed even when execution fails")

	history := dp.History()
	assert.Len(t, history, 1)
	assert.False(t, history[0].Success)
	assert.Contains(t, history[0].Error, "firewall unreachable")
}

func TestExecuteAction_ActiveCooldownBlocksDispatch(t *testing.T) {
	exec := &recordingExecutor{}
	dp, cooldowns := testDispatcher(exec)

	cooldowns.Set("block_ip", time.Hour)

	_, err := dp.ExecuteAction(context.Background(), ActionRequest{
		Action:   "block_ip",
		Priority: PriorityUrgent,
	})
	assert.True(t, errors.Is(err, pipeerrors.ErrActionCoolingDown))
	assert.Empty(t, exec.calls, "executor must not run while the cooldown is active")
	assert.Empty(t, dp.History())
	assert.Equal(t, int64(0), dp.Stats().Total)
}

func TestExecuteAction_BackToBackDispatchesCollapse(t *testing.T) {
	exec := &recordingExecutor{}
	dp, _ := testDispatcher(exec)

	req := ActionRequest{Action: "block_ip", Priority: PriorityUrgent}

	_, err := dp.ExecuteAction(context.Background(), req)
	assert.NoError(t, err)
	_, err = dp.ExecuteAction(context.Background(), req)
	assert.True(t, errors.Is(err, pipeerrors.ErrActionCoolingDown),
		"second dispatch must observe the cooldown claimed by the first")
	assert.Equal(t, []string{"block_ip"}, exec.calls)
}

func TestExecuteAction_Stats(t *testing.T) {
	exec := &recordingExecutor{fail: map[string]error{
		"scan_system": errors.New("scanner offline"),
	}}
	dp, _ := testDispatcher(exec)

	_, _ = dp.ExecuteAction(context.Background(), ActionRequest{Action: "alert_admin", Priority: PriorityHigh})
	_, _ = dp.ExecuteAction(context.Background(), ActionRequest{Action: "scan_system", Priority: PriorityMedium})

	stats := dp.Stats()
	assert.Equal(t, int64(2), stats.Total)
	assert.Equal(t, int64(1), stats.Successful)
	assert.Equal(t, int64(1), stats.Failed)
	assert.Equal(t, int64(1), stats.ByType["notification"])
	assert.Equal(t, int64(1), stats.ByType["investigation"])
	assert.Equal(t, int64(1), stats.ByPriority["high"])
	assert.Equal(t, int64(1), stats.ByPriority["medium"])
	assert.GreaterOrEqual(t, stats.AvgExecutionTime, time.Duration(0))
}

func TestExecuteDecision_ContinuesPastFailures(t *testing.T) {
	exec := &recordingExecutor{fail: map[string]error{
		"scan_system": errors.New("scanner offline"),
	}}
	dp, _ := testDispatcher(exec)

	d := &Decision{
		AutoExecute: true,
		Actions: []ActionRequest{
			{Action: "alert_admin", Priority: PriorityHigh, Confidence: 0.9},
			{Action: "scan_system", Priority: PriorityHigh, Confidence: 0.8},
			{Action: "update_firewall", Priority: PriorityMedium, Confidence: 0.8},
		},
	}

	executed := dp.ExecuteDecision(context.Background(), d)
	assert.Equal(t, 2, executed)
	assert.Equal(t, []string{"alert_admin", "scan_system", "update_firewall"}, exec.calls)
}

func TestExecuteDecision_SkipsCoolingActions(t *testing.T) {
	exec := &recordingExecutor{}
	dp, cooldowns := testDispatcher(exec)

	// A decision finalized before the window opened still carries the
	// action; dispatch must drop it, not execute it.
	cooldowns.Set("block_ip", time.Hour)

	d := &Decision{
		AutoExecute: true,
		Actions: []ActionRequest{
			{Action: "block_ip", Priority: PriorityUrgent, Confidence: 0.9},
			{Action: "alert_admin", Priority: PriorityHigh, Confidence: 0.8},
		},
	}

	executed := dp.ExecuteDecision(context.Background(), d)
	assert.Equal(t, 1, executed)
	assert.Equal(t, []string{"alert_admin"}, exec.calls)
}

func TestExecuteDecision_RespectsAutoExecuteFlag(t *testing.T) {
	exec := &recordingExecutor{}
	dp, _ := testDispatcher(exec)

	d := &Decision{
		AutoExecute: false,
		Actions:     []ActionRequest{{Action: "alert_admin", Priority: PriorityHigh}},
	}
	assert.Equal(t, 0, dp.ExecuteDecision(context.Background(), d))
	assert.Empty(t, exec.calls)
}
