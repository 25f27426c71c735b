// pkg/intake/normalizer.go
package intake

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Normalizer converts one external payload shape into the canonical
// ErrorEvent. Each inbound source has its own normalizer; nothing outside
// this file needs to understand the external shapes.
type Normalizer func(payload map[string]interface{}) (*ErrorEvent, error)

// autoFixVocabulary lists failure classes a remediation bot is allowed to
// attempt on its own.
var autoFixVocabulary = []string{"lint", "format", "dependency", "test", "compile"}

// DefaultNormalizers returns the normalizer per known source. User reports
// share the runtime report shape: both are free-form message + context.
func DefaultNormalizers() map[Source]Normalizer {
	return map[Source]Normalizer{
		SourceCICD:         NormalizeCICDRun,
		SourceRuntime:      NormalizeRuntimeReport,
		SourceUserReport:   NormalizeRuntimeReport,
		SourceMonitoring:   NormalizeMetricAlert,
		SourceSecurityScan: NormalizeScanFinding,
	}
}

// NormalizeCICDRun maps a CI/CD completion webhook payload to an ErrorEvent.
func NormalizeCICDRun(payload map[string]interface{}) (*ErrorEvent, error) {
	pipeline := getString(payload, "pipeline", "workflow", "job")
	if pipeline == "" {
		return nil, fmt.Errorf("ci_cd payload missing pipeline/workflow name")
	}

	message := getString(payload, "message", "error", "failure_reason")
	errType := TypeCompilation
	if containsAny(strings.ToLower(message), "test", "assertion") {
		errType = TypeRuntime
	}

	severity := severityFromKeywords(pipeline, SeverityMedium)

	return newEvent(SourceCICD, severity, errType, ErrorContext{
		Repository:  getString(payload, "repository", "repo"),
		Branch:      getString(payload, "branch", "ref"),
		Commit:      getString(payload, "commit", "sha"),
		Environment: getString(payload, "environment"),
		BuildID:     getString(payload, "build_id", "run_id"),
	}, payload, pipeline+" "+message), nil
}

// NormalizeRuntimeReport maps a runtime error report to an ErrorEvent.
func NormalizeRuntimeReport(payload map[string]interface{}) (*ErrorEvent, error) {
	message := getString(payload, "message", "error")
	if message == "" {
		return nil, fmt.Errorf("runtime payload missing error message")
	}

	severity := SeverityMedium
	lower := strings.ToLower(message)
	switch {
	case containsAny(lower, "panic", "fatal", "out of memory"):
		severity = SeverityCritical
	case containsAny(lower, "exception", "crash", "deadlock"):
		severity = SeverityHigh
	}
	if env := strings.ToLower(getString(payload, "environment")); strings.Contains(env, "prod") && severity == SeverityMedium {
		severity = SeverityHigh
	}

	return newEvent(SourceRuntime, severity, TypeRuntime, ErrorContext{
		Repository:   getString(payload, "repository", "service"),
		Environment:  getString(payload, "environment"),
		StackTrace:   getString(payload, "stack_trace", "stack"),
		File:         getString(payload, "file"),
		Line:         getInt(payload, "line"),
		UserID:       getString(payload, "user_id"),
		DeploymentID: getString(payload, "deployment_id"),
	}, payload, message), nil
}

// NormalizeMetricAlert maps a monitoring alert payload to an ErrorEvent.
func NormalizeMetricAlert(payload map[string]interface{}) (*ErrorEvent, error) {
	metric := getString(payload, "metric", "alert_name", "alert")
	if metric == "" {
		return nil, fmt.Errorf("monitoring payload missing metric/alert name")
	}

	severity := SeverityMedium
	switch strings.ToLower(getString(payload, "severity", "level")) {
	case "critical", "page":
		severity = SeverityCritical
	case "high", "warning":
		severity = SeverityHigh
	case "low", "info":
		severity = SeverityLow
	}

	return newEvent(SourceMonitoring, severity, TypePerformance, ErrorContext{
		Repository:  getString(payload, "repository", "service"),
		Environment: getString(payload, "environment"),
	}, payload, metric), nil
}

// NormalizeScanFinding maps a security-scan finding to an ErrorEvent.
func NormalizeScanFinding(payload map[string]interface{}) (*ErrorEvent, error) {
	title := getString(payload, "title", "finding", "rule", "message")
	if title == "" {
		return nil, fmt.Errorf("security_scan payload missing finding title")
	}

	severity := SeverityHigh
	switch strings.ToLower(getString(payload, "severity")) {
	case "critical":
		severity = SeverityCritical
	case "high":
		severity = SeverityHigh
	case "medium", "moderate":
		severity = SeverityMedium
	case "low", "informational":
		severity = SeverityLow
	}

	return newEvent(SourceSecurityScan, severity, TypeSecurity, ErrorContext{
		Repository: getString(payload, "repository", "repo"),
		Branch:     getString(payload, "branch"),
		Commit:     getString(payload, "commit"),
		File:       getString(payload, "file", "path"),
		Line:       getInt(payload, "line"),
	}, payload, title), nil
}

// newEvent assembles the immutable event record and its derived metadata.
func newEvent(source Source, severity Severity, errType ErrorType, ctx ErrorContext, payload map[string]interface{}, text string) *ErrorEvent {
	return &ErrorEvent{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Source:    source,
		Severity:  severity,
		Type:      errType,
		Context:   ctx,
		Payload:   payload,
		Metadata: ErrorMetadata{
			Tags:            deriveTags(source, text),
			Priority:        derivePriority(text),
			AutoFixable:     isAutoFixable(text),
			EstimatedImpact: impactFor(severity),
		},
	}
}

// severityFromKeywords applies the pipeline-name heuristics: production
// pipelines escalate to critical, security and deploy pipelines to high.
func severityFromKeywords(name string, fallback Severity) Severity {
	lower := strings.ToLower(name)
	switch {
	case containsAny(lower, "production", "prod"):
		return SeverityCritical
	case containsAny(lower, "security", "deploy", "release"):
		return SeverityHigh
	case strings.Contains(lower, "staging"):
		return SeverityMedium
	default:
		return fallback
	}
}

// derivePriority starts from a base of 5 and adds bonuses for keywords that
// indicate blast radius, capped at 10.
func derivePriority(text string) int {
	priority := 5
	lower := strings.ToLower(text)
	if containsAny(lower, "production", "prod") {
		priority += 2
	}
	if strings.Contains(lower, "security") {
		priority += 2
	}
	if containsAny(lower, "deploy", "release") {
		priority++
	}
	if priority > 10 {
		priority = 10
	}
	return priority
}

func isAutoFixable(text string) bool {
	lower := strings.ToLower(text)
	for _, word := range autoFixVocabulary {
		if strings.Contains(lower, word) {
			return true
		}
	}
	return false
}

func impactFor(severity Severity) string {
	switch severity {
	case SeverityCritical:
		return "severe"
	case SeverityHigh:
		return "significant"
	case SeverityMedium:
		return "moderate"
	default:
		return "minimal"
	}
}

func deriveTags(source Source, text string) []string {
	tags := []string{string(source)}
	lower := strings.ToLower(text)
	for _, keyword := range []string{"production", "security", "deploy", "test"} {
		if strings.Contains(lower, keyword) {
			tags = append(tags, keyword)
		}
	}
	return tags
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func getString(payload map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if v, ok := payload[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func getInt(payload map[string]interface{}, key string) int {
	switch v := payload[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
