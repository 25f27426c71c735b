package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration struct for the application.
// It holds settings for logging, the API, and the tuning knobs of every
// pipeline stage. Tags are used by Viper to map YAML keys to struct fields.
type Config struct {
	LogLevel string `mapstructure:"log_level"`
	APIPort  string `mapstructure:"api_port"`

	Intake    IntakeConfig    `mapstructure:"intake"`
	Analysis  AnalysisConfig  `mapstructure:"analysis"`
	Knowledge KnowledgeConfig `mapstructure:"knowledge"`
	Decision  DecisionConfig  `mapstructure:"decision"`
	Learning  LearningConfig  `mapstructure:"learning"`
}

// IntakeConfig tunes payload validation and history retention.
type IntakeConfig struct {
	MaxHistoryPerKey int `mapstructure:"max_history_per_key"`
	MaxPayloadBytes  int `mapstructure:"max_payload_bytes"`
	RatePerMinute    int `mapstructure:"rate_per_minute"`
	RateBurst        int `mapstructure:"rate_burst"`
}

// AnalysisConfig tunes the threat analysis engine.
type AnalysisConfig struct {
	AnomalyThreshold  float64       `mapstructure:"anomaly_threshold"`
	BehaviorThreshold float64       `mapstructure:"behavior_threshold"`
	LayerTimeout      time.Duration `mapstructure:"layer_timeout"`
	MaxHistory        int           `mapstructure:"max_history"`
}

// KnowledgeConfig tunes the knowledge base and its background refresh.
type KnowledgeConfig struct {
	ConfidenceThreshold float64       `mapstructure:"confidence_threshold"`
	MaxEntries          int           `mapstructure:"max_entries"`
	MaxMatches          int           `mapstructure:"max_matches"`
	RefreshInterval     time.Duration `mapstructure:"refresh_interval"`
	FeedDirectory       string        `mapstructure:"feed_directory"`
}

// DecisionConfig tunes the decision engine and action dispatch.
type DecisionConfig struct {
	AutoResponseEnabled bool                     `mapstructure:"auto_response_enabled"`
	RiskTolerance       string                   `mapstructure:"risk_tolerance"` // low, medium, high
	MaxAutomatedActions int                      `mapstructure:"max_automated_actions"`
	CooldownPeriod      time.Duration            `mapstructure:"cooldown_period"`
	ActionCooldowns     map[string]time.Duration `mapstructure:"action_cooldowns"`
	MaxLoad             float64                  `mapstructure:"max_load"`
}

// LearningConfig tunes the learning engine buffers.
type LearningConfig struct {
	MaxTrainingData int `mapstructure:"max_training_data"`
}

// LoadConfig reads the configuration from a YAML file (e.g., config.yaml) and
// environment variables. It uses Viper for robust configuration management,
// allowing for defaults and environment variable overrides.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config") // config.yaml
	v.SetConfigType("yaml")
	v.AddConfigPath(".")           // Search in current directory
	v.AddConfigPath("/etc/aegis/") // Search in /etc/aegis/

	setDefaults(v)

	// Read environment variables
	v.SetEnvPrefix("AEGIS")                            // Look for AEGIS_ prefix
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // Replace dots with underscores for nested keys
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// No config file is fine; defaults and env vars apply.
		} else {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("api_port", "8080")

	v.SetDefault("intake.max_history_per_key", 1000)
	v.SetDefault("intake.max_payload_bytes", 1<<20)
	v.SetDefault("intake.rate_per_minute", 100)
	v.SetDefault("intake.rate_burst", 10)

	v.SetDefault("analysis.anomaly_threshold", 2.5)
	v.SetDefault("analysis.behavior_threshold", 2.5)
	v.SetDefault("analysis.layer_timeout", 5*time.Second)
	v.SetDefault("analysis.max_history", 10000)

	v.SetDefault("knowledge.confidence_threshold", 0.7)
	v.SetDefault("knowledge.max_entries", 1000000)
	v.SetDefault("knowledge.max_matches", 20)
	v.SetDefault("knowledge.refresh_interval", time.Hour)
	v.SetDefault("knowledge.feed_directory", "")

	v.SetDefault("decision.auto_response_enabled", false) // Automated response disabled by default
	v.SetDefault("decision.risk_tolerance", "medium")
	v.SetDefault("decision.max_automated_actions", 10)
	v.SetDefault("decision.cooldown_period", 5*time.Minute)
	v.SetDefault("decision.max_load", 0.8)

	v.SetDefault("learning.max_training_data", 100000)
}

// Validate rejects option values the pipeline cannot run with.
func (c *Config) Validate() error {
	switch c.Decision.RiskTolerance {
	case "low", "medium", "high":
	default:
		return fmt.Errorf("invalid risk_tolerance %q: must be low, medium or high", c.Decision.RiskTolerance)
	}
	if c.Decision.MaxAutomatedActions <= 0 {
		return fmt.Errorf("max_automated_actions must be positive, got %d", c.Decision.MaxAutomatedActions)
	}
	if c.Knowledge.ConfidenceThreshold < 0 || c.Knowledge.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence_threshold must be in [0,1], got %f", c.Knowledge.ConfidenceThreshold)
	}
	if c.Intake.MaxHistoryPerKey <= 0 {
		return fmt.Errorf("max_history_per_key must be positive, got %d", c.Intake.MaxHistoryPerKey)
	}
	if c.Learning.MaxTrainingData <= 0 {
		return fmt.Errorf("max_training_data must be positive, got %d", c.Learning.MaxTrainingData)
	}
	return nil
}

// CooldownFor returns the configured cooldown for an action name, falling
// back to the global cooldown period when no per-action override exists.
func (c *DecisionConfig) CooldownFor(action string) time.Duration {
	if d, ok := c.ActionCooldowns[action]; ok {
		return d
	}
	return c.CooldownPeriod
}
