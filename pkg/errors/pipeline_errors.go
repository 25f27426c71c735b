// pkg/errors/pipeline_errors.go
package errors

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// ErrUnknownAction is returned by the action dispatcher when asked to execute
// an action that is not present in the catalog.
var ErrUnknownAction = errors.New("unknown action")

// ErrActionCoolingDown is returned by the action dispatcher when the
// requested action's cooldown window is still open.
var ErrActionCoolingDown = errors.New("action cooling down")

// PipelineError represents a structured error from a pipeline component.
type PipelineError struct {
	Component   string                 `json:"component"`
	ErrorType   string                 `json:"error_type"`
	Message     string                 `json:"message"`
	Details     map[string]interface{} `json:"details,omitempty"`
	Timestamp   time.Time              `json:"timestamp"`
	Severity    Severity               `json:"severity"`
	Recoverable bool                   `json:"recoverable"`
	Cause       error                  `json:"-"`
}

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// Error implements the error interface
func (pe *PipelineError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", pe.Component, pe.ErrorType, pe.Message)
}

// Unwrap returns the underlying cause
func (pe *PipelineError) Unwrap() error {
	return pe.Cause
}

// Log writes the error to the given logger at a level matching its severity.
// Swallowed errors (normalization drops, knowledge-base query failures) go
// through here so they remain observable even when the pipeline continues.
func (pe *PipelineError) Log(logger zerolog.Logger) {
	logEvent := severityLogEvent(logger, pe.Severity).
		Str("component", pe.Component).
		Str("error_type", pe.ErrorType).
		Str("message", pe.Message).
		Bool("recoverable", pe.Recoverable)

	if pe.Details != nil {
		logEvent = logEvent.Interface("details", pe.Details)
	}
	if pe.Cause != nil {
		logEvent = logEvent.AnErr("cause", pe.Cause)
	}

	logEvent.Msg("Pipeline error occurred")
}

func severityLogEvent(logger zerolog.Logger, severity Severity) *zerolog.Event {
	switch severity {
	case SeverityCritical:
		return logger.Error()
	case SeverityHigh:
		return logger.Error()
	case SeverityMedium:
		return logger.Warn()
	case SeverityLow:
		return logger.Info()
	case SeverityInfo:
		return logger.Debug()
	default:
		return logger.Info()
	}
}

// Helper functions for the error taxonomy

// NewNormalizationError wraps a failure to normalize an inbound payload.
// These are logged and the offending payload is dropped; they never abort
// processing of other payloads.
func NewNormalizationError(source string, cause error, details map[string]interface{}) *PipelineError {
	return &PipelineError{
		Component:   "intake",
		ErrorType:   "normalization",
		Message:     fmt.Sprintf("Failed to normalize payload from source: %s", source),
		Details:     details,
		Timestamp:   time.Now(),
		Severity:    SeverityMedium,
		Recoverable: true,
		Cause:       cause,
	}
}

// NewUnknownActionError wraps ErrUnknownAction with the offending name so
// callers can both errors.Is(err, ErrUnknownAction) and inspect the detail.
func NewUnknownActionError(actionName string) *PipelineError {
	return &PipelineError{
		Component: "decision",
		ErrorType: "lookup",
		Message:   fmt.Sprintf("Action '%s' is not in the catalog", actionName),
		Details: map[string]interface{}{
			"action": actionName,
		},
		Timestamp:   time.Now(),
		Severity:    SeverityHigh,
		Recoverable: false,
		Cause:       ErrUnknownAction,
	}
}

// NewCooldownActiveError wraps ErrActionCoolingDown with the action name
// and the time left on its window. Raised at dispatch time, since a
// decision finalized before the window opened can still reach the
// dispatcher with the action in it.
func NewCooldownActiveError(actionName string, remaining time.Duration) *PipelineError {
	return &PipelineError{
		Component: "decision",
		ErrorType: "cooldown",
		Message:   fmt.Sprintf("Action '%s' is still cooling down", actionName),
		Details: map[string]interface{}{
			"action":    actionName,
			"remaining": remaining.String(),
		},
		Timestamp:   time.Now(),
		Severity:    SeverityLow,
		Recoverable: true,
		Cause:       ErrActionCoolingDown,
	}
}

// NewExecutionError wraps an executor failure. Recorded in action history
// and re-raised to the caller, since callers must know whether a
// remediation actually happened.
func NewExecutionError(actionName string, cause error) *PipelineError {
	return &PipelineError{
		Component: "actions",
		ErrorType: "execution",
		Message:   fmt.Sprintf("Execution failed for action: %s", actionName),
		Details: map[string]interface{}{
			"action": actionName,
		},
		Timestamp:   time.Now(),
		Severity:    SeverityHigh,
		Recoverable: true,
		Cause:       cause,
	}
}

// NewKnowledgeQueryError wraps a knowledge-base query failure. These are
// swallowed at the query boundary (an empty match list is returned) because
// a degraded knowledge base must not block threat analysis.
func NewKnowledgeQueryError(repository string, cause error) *PipelineError {
	return &PipelineError{
		Component: "knowledge",
		ErrorType: "query",
		Message:   fmt.Sprintf("Query failed against repository: %s", repository),
		Details: map[string]interface{}{
			"repository": repository,
		},
		Timestamp:   time.Now(),
		Severity:    SeverityMedium,
		Recoverable: true,
		Cause:       cause,
	}
}

// NewAnalysisLayerError wraps a failing analysis layer. The layer's
// contribution is treated as empty; the other layers are unaffected.
func NewAnalysisLayerError(layer string, cause error) *PipelineError {
	return &PipelineError{
		Component: "analysis",
		ErrorType: "layer",
		Message:   fmt.Sprintf("Analysis layer failed: %s", layer),
		Details: map[string]interface{}{
			"layer": layer,
		},
		Timestamp:   time.Now(),
		Severity:    SeverityMedium,
		Recoverable: true,
		Cause:       cause,
	}
}
