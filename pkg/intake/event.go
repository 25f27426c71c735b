// pkg/intake/event.go
package intake

import (
	"time"
)

// Source identifies which external system produced a raw signal.
type Source string

const (
	SourceCICD         Source = "ci_cd"
	SourceRuntime      Source = "runtime"
	SourceMonitoring   Source = "monitoring"
	SourceUserReport   Source = "user_report"
	SourceSecurityScan Source = "security_scan"
)

// Severity classifies how urgent an error event is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ErrorType classifies the nature of an error event.
type ErrorType string

const (
	TypeCompilation ErrorType = "compilation"
	TypeRuntime     ErrorType = "runtime"
	TypeSecurity    ErrorType = "security"
	TypePerformance ErrorType = "performance"
	TypeCompliance  ErrorType = "compliance"
)

// ErrorContext locates an error event in the systems it came from.
type ErrorContext struct {
	Repository   string `json:"repository"`
	Branch       string `json:"branch"`
	Commit       string `json:"commit"`
	File         string `json:"file,omitempty"`
	Line         int    `json:"line,omitempty"`
	StackTrace   string `json:"stack_trace,omitempty"`
	Environment  string `json:"environment"`
	UserID       string `json:"user_id,omitempty"`
	BuildID      string `json:"build_id,omitempty"`
	DeploymentID string `json:"deployment_id,omitempty"`
}

// ErrorMetadata carries routing hints computed at normalization time.
type ErrorMetadata struct {
	Tags            []string `json:"tags"`
	Priority        int      `json:"priority"` // 1-10
	AutoFixable     bool     `json:"auto_fixable"`
	EstimatedImpact string   `json:"estimated_impact"`
}

// ErrorEvent is the canonical record every inbound signal is normalized
// into. It is never mutated after creation.
type ErrorEvent struct {
	ID        string                 `json:"id"`
	Timestamp time.Time              `json:"timestamp"`
	Source    Source                 `json:"source"`
	Severity  Severity               `json:"severity"`
	Type      ErrorType              `json:"type"`
	Context   ErrorContext           `json:"context"`
	Payload   map[string]interface{} `json:"payload"`
	Metadata  ErrorMetadata          `json:"metadata"`
}

// Message returns the human-readable message carried by the original
// payload, or an empty string when none was present.
func (e *ErrorEvent) Message() string {
	for _, key := range []string{"message", "error", "description", "title"} {
		if v, ok := e.Payload[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
