package intake

import (
	"context"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testService() *Service {
	return NewService(zerolog.Nop(), nil, Options{
		MaxHistoryPerKey: 1000,
		RatePerMinute:    100000, // effectively unlimited for unit tests
		RateBurst:        100000,
	})
}

func TestProcess_SecurityScanFinding(t *testing.T) {
	svc := testService()

	event := svc.Process(context.Background(), SourceSecurityScan, map[string]interface{}{
		"title":      "SQL injection in login handler",
		"severity":   "high",
		"repository": "payments",
		"file":       "handlers/login.go",
		"line":       42,
	})

	require.NotNil(t, event)
	assert.Equal(t, SourceSecurityScan, event.Source)
	assert.Equal(t, TypeSecurity, event.Type)
	assert.Equal(t, SeverityHigh, event.Severity)
	assert.Equal(t, "payments", event.Context.Repository)
	assert.Equal(t, 42, event.Context.Line)
	assert.NotEmpty(t, event.ID)

	pattern, ok := svc.Patterns().Get(Signature(event))
	require.True(t, ok)
	assert.Equal(t, int64(1), pattern.Frequency)
}

func TestProcess_DropsMalformedPayload(t *testing.T) {
	svc := testService()

	// Missing the required message; must be dropped, not panic.
	event := svc.Process(context.Background(), SourceRuntime, map[string]interface{}{
		"environment": "production",
	})
	assert.Nil(t, event)

	// Unknown source is also dropped.
	event = svc.Process(context.Background(), Source("carrier_pigeon"), map[string]interface{}{
		"message": "hello",
	})
	assert.Nil(t, event)

	// Subsequent valid payloads still process.
	event = svc.Process(context.Background(), SourceRuntime, map[string]interface{}{
		"message": "panic: nil pointer dereference",
	})
	assert.NotNil(t, event)
}

func TestNormalizeCICDRun_Heuristics(t *testing.T) {
	event, err := NormalizeCICDRun(map[string]interface{}{
		"pipeline":   "production-deploy",
		"repository": "api",
		"branch":     "main",
		"message":    "lint failed on module security",
	})
	require.NoError(t, err)

	assert.Equal(t, SeverityCritical, event.Severity)
	assert.True(t, event.Metadata.AutoFixable)
	// base 5 + production 2 + security 2 + deploy 1, capped at 10
	assert.Equal(t, 10, event.Metadata.Priority)
	assert.Equal(t, "severe", event.Metadata.EstimatedImpact)
}

func TestNormalizeRuntimeReport_Severity(t *testing.T) {
	tests := []struct {
		message  string
		env      string
		expected Severity
	}{
		{"panic: index out of range", "", SeverityCritical},
		{"unhandled exception in worker", "", SeverityHigh},
		{"request failed", "production", SeverityHigh},
		{"request failed", "staging", SeverityMedium},
	}

	for _, tt := range tests {
		event, err := NormalizeRuntimeReport(map[string]interface{}{
			"message":     tt.message,
			"environment": tt.env,
		})
		require.NoError(t, err)
		assert.Equal(t, tt.expected, event.Severity, "message=%q env=%q", tt.message, tt.env)
	}
}

func TestHistory_Bounded(t *testing.T) {
	svc := testService()

	for i := 0; i < 1050; i++ {
		event := svc.Process(context.Background(), SourceRuntime, map[string]interface{}{
			"message":    fmt.Sprintf("error %d", i),
			"repository": "api",
		})
		require.NotNil(t, event)
	}

	assert.Equal(t, 1000, svc.History().Len("api", TypeRuntime))

	recent := svc.History().Recent("api", TypeRuntime, 1000)
	require.Len(t, recent, 1000)
	// Oldest 50 evicted; most-recent-last ordering preserved.
	assert.Equal(t, "error 50", recent[0].Message())
	assert.Equal(t, "error 1049", recent[999].Message())
}

func TestSignature_Idempotent(t *testing.T) {
	event, err := NormalizeRuntimeReport(map[string]interface{}{
		"message": "panic: runtime error",
		"stack":   "goroutine 1 [running]:\nmain.main()\n\t/app/main.go:10",
	})
	require.NoError(t, err)

	first := Signature(event)
	second := Signature(event)
	assert.Equal(t, first, second)
	assert.Contains(t, first, "runtime|runtime|critical|goroutine 1 [running]:")
}

func TestSignature_TruncatesLongLines(t *testing.T) {
	long := ""
	for i := 0; i < 30; i++ {
		long += "0123456789"
	}
	event, err := NormalizeRuntimeReport(map[string]interface{}{"message": long})
	require.NoError(t, err)

	sig := Signature(event)
	// source|type|severity| plus at most 100 chars of the first line.
	assert.LessOrEqual(t, len(sig), len("runtime|runtime|medium|")+100)
}

func TestPatternStore_OutcomeStatistics(t *testing.T) {
	store := NewPatternStore()
	event, err := NormalizeRuntimeReport(map[string]interface{}{"message": "test failure in CI"})
	require.NoError(t, err)

	store.Record(event)
	store.Record(event)

	sig := Signature(event)
	assert.True(t, store.RecordOutcome(sig, true, 100))
	assert.True(t, store.RecordOutcome(sig, true, 200))
	assert.True(t, store.RecordOutcome(sig, false, 600))

	pattern, ok := store.Get(sig)
	require.True(t, ok)
	assert.Equal(t, int64(2), pattern.Frequency)
	assert.Equal(t, int64(2), pattern.SuccessfulFixes)
	assert.Equal(t, int64(1), pattern.FailedFixes)
	// Incremental mean: (100+200+600)/3
	assert.Equal(t, int64(300), int64(pattern.AvgFixTime))

	assert.False(t, store.RecordOutcome("no|such|signature|x", true, 1))
}

func TestPayloadValidator_RateLimit(t *testing.T) {
	validator := NewPayloadValidator(0, 60, 2)
	payload := map[string]interface{}{"message": "x"}

	assert.NoError(t, validator.Validate(SourceRuntime, payload))
	assert.NoError(t, validator.Validate(SourceRuntime, payload))
	// Burst of 2 exhausted; third immediate event is rejected.
	assert.Error(t, validator.Validate(SourceRuntime, payload))
	// Other sources have their own limiter.
	assert.NoError(t, validator.Validate(SourceCICD, payload))
}
