package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRegister(t *testing.T) {
	p := NewPipeline()
	reg := prometheus.NewRegistry()
	assert.NoError(t, p.Register(reg))

	// Registering twice must fail on the duplicate collectors.
	assert.Error(t, p.Register(reg))
}

func TestObserveAction(t *testing.T) {
	p := NewPipeline()
	reg := prometheus.NewRegistry()
	assert.NoError(t, p.Register(reg))

	p.ObserveAction("block_ip", 20*time.Millisecond, true)
	p.ObserveAction("block_ip", 20*time.Millisecond, false)

	assert.Equal(t, 1.0, testutil.ToFloat64(p.ActionsExecuted.WithLabelValues("block_ip", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.ActionsExecuted.WithLabelValues("block_ip", "failure")))
}

func TestObserveAnalysis(t *testing.T) {
	p := NewPipeline()
	reg := prometheus.NewRegistry()
	assert.NoError(t, p.Register(reg))

	p.ObserveAnalysis(100*time.Millisecond, []string{"high", "high", "medium"})

	assert.Equal(t, 1.0, testutil.ToFloat64(p.AnalysesTotal))
	assert.Equal(t, 2.0, testutil.ToFloat64(p.ThreatsDetected.WithLabelValues("high")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.ThreatsDetected.WithLabelValues("medium")))
}
