// pkg/decision/types.go
package decision

import (
	"time"
)

// Priority ranks an action request for ordering and execution.
type Priority string

const (
	PriorityUrgent Priority = "urgent"
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Rank encodes priority for sorting: urgent sorts first.
func (p Priority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// ActionRequest is one remediation the decision asks for.
type ActionRequest struct {
	Action     string                 `json:"action"`
	Priority   Priority               `json:"priority"`
	Confidence float64                `json:"confidence"`
	Reason     string                 `json:"reason,omitempty"`
	Params     map[string]interface{} `json:"params,omitempty"`
}

// Decision is the finalized output of one MakeDecision call. It is never
// mutated after finalization.
type Decision struct {
	DecisionID  string          `json:"decision_id"`
	Timestamp   time.Time       `json:"timestamp"`
	AnalysisID  string          `json:"analysis_id"`
	RiskScore   float64         `json:"risk_score"`
	Severity    string          `json:"severity"`
	Confidence  float64         `json:"confidence"`
	Actions     []ActionRequest `json:"actions"`
	Reasoning   []string        `json:"reasoning"`
	AutoExecute bool            `json:"auto_execute"`

	// Candidate actions dropped by the cooldown filter during finalization.
	CooldownFiltered int `json:"cooldown_filtered,omitempty"`
}
