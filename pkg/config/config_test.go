package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig(t *testing.T) {
	// Create a temporary config file for testing
	testConfigContent := `
log_level: debug
api_port: "9090"
decision:
  auto_response_enabled: true
  risk_tolerance: high
  max_automated_actions: 5
  cooldown_period: 10m
  action_cooldowns:
    block_ip: 30m
knowledge:
  confidence_threshold: 0.6
  refresh_interval: 15m
`

	err := os.WriteFile("config.yaml", []byte(testConfigContent), 0644)
	assert.NoError(t, err)
	defer os.Remove("config.yaml") // Clean up the test config file

	cfg, err := LoadConfig()
	assert.NoError(t, err)
	assert.NotNil(t, cfg)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "9090", cfg.APIPort)

	assert.True(t, cfg.Decision.AutoResponseEnabled)
	assert.Equal(t, "high", cfg.Decision.RiskTolerance)
	assert.Equal(t, 5, cfg.Decision.MaxAutomatedActions)
	assert.Equal(t, 10*time.Minute, cfg.Decision.CooldownPeriod)
	assert.Equal(t, 30*time.Minute, cfg.Decision.CooldownFor("block_ip"))
	assert.Equal(t, 10*time.Minute, cfg.Decision.CooldownFor("scan_system"))

	assert.Equal(t, 0.6, cfg.Knowledge.ConfidenceThreshold)
	assert.Equal(t, 15*time.Minute, cfg.Knowledge.RefreshInterval)

	// Defaults survive a partial file
	assert.Equal(t, 1000, cfg.Intake.MaxHistoryPerKey)
	assert.Equal(t, 2.5, cfg.Analysis.AnomalyThreshold)
	assert.Equal(t, 100000, cfg.Learning.MaxTrainingData)

	// Test with environment variable override
	os.Setenv("AEGIS_API_PORT", "9091")
	defer os.Unsetenv("AEGIS_API_PORT")

	cfg, err = LoadConfig()
	assert.NoError(t, err)
	assert.Equal(t, "9091", cfg.APIPort)
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	assert.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.Decision.AutoResponseEnabled)
	assert.Equal(t, "medium", cfg.Decision.RiskTolerance)
	assert.Equal(t, 10, cfg.Decision.MaxAutomatedActions)
	assert.Equal(t, 0.7, cfg.Knowledge.ConfidenceThreshold)
	assert.Equal(t, 1000000, cfg.Knowledge.MaxEntries)
	assert.Equal(t, 5*time.Second, cfg.Analysis.LayerTimeout)
}

func TestConfig_Validate(t *testing.T) {
	cfg, err := LoadConfig()
	assert.NoError(t, err)

	cfg.Decision.RiskTolerance = "reckless"
	assert.Error(t, cfg.Validate())

	cfg.Decision.RiskTolerance = "low"
	assert.NoError(t, cfg.Validate())

	cfg.Knowledge.ConfidenceThreshold = 1.5
	assert.Error(t, cfg.Validate())
}
