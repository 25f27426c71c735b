package actions

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	pipeerrors "github.com/lucid-vigil/aegis/pkg/errors"
)

type failingAction struct{}

func (f *failingAction) Name() string { return "flaky" }
func (f *failingAction) Execute(_ context.Context, _ map[string]interface{}) (map[string]interface{}, error) {
	return nil, errors.New("boom")
}

func TestRegistry_ExecuteStub(t *testing.T) {
	r := NewRegistry(zerolog.Nop())
	RegisterStubs(r)

	result, err := r.Execute(context.Background(), "block_ip", map[string]interface{}{
		"source_ip": "203.0.113.9",
	})
	assert.NoError(t, err)
	assert.Equal(t, "completed", result["status"])
	assert.Equal(t, "203.0.113.9", result["blocked_ip"])
	assert.NotEmpty(t, result["rule_id"])
}

func TestRegistry_UnknownAction(t *testing.T) {
	r := NewRegistry(zerolog.Nop())

	_, err := r.Execute(context.Background(), "launch_missiles", nil)
	assert.Error(t, err)
	assert.True(t, errors.Is(err, pipeerrors.ErrUnknownAction))
}

func TestRegistry_ExecutionFailure(t *testing.T) {
	r := NewRegistry(zerolog.Nop())
	r.Register(&failingAction{})

	_, err := r.Execute(context.Background(), "flaky", nil)
	assert.Error(t, err)
	assert.False(t, errors.Is(err, pipeerrors.ErrUnknownAction))

	var perr *pipeerrors.PipelineError
	assert.True(t, errors.As(err, &perr))
	assert.True(t, perr.Recoverable)
}

func TestRegistry_CatalogCoverage(t *testing.T) {
	r := NewRegistry(zerolog.Nop())
	RegisterStubs(r)

	for _, name := range []string{
		"block_ip", "isolate_system", "update_firewall", "scan_system",
		"backup_data", "alert_admin", "forensic_capture", "shutdown_service",
	} {
		result, err := r.Execute(context.Background(), name, nil)
		assert.NoError(t, err, name)
		assert.Equal(t, "completed", result["status"], name)
	}
}
