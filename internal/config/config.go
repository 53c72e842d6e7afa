package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/bytedance/sonic"
)

type (
	Config struct {
		Gateway   GatewayConfig             `yaml:"gateway"`
		Logging   LoggingConfig             `yaml:"logging"`
		Scheduler SchedulerConfig           `yaml:"scheduler"`
		Agent     AgentConfig               `yaml:"agent"`
		MacAgent  MacAgentConfig            `yaml:"mac_agent"`
		Channels  map[string]ChannelConfig  `yaml:"channels"`
		Providers map[string]ProviderConfig `yaml:"providers"`
	}

	GatewayConfig struct {
		Bind           string `yaml:"bind"`
		MetricsBind    string `yaml:"metrics_bind"`
		RequestTimeout int    `yaml:"request_timeout"` // seconds, per interactive message
	}

	LoggingConfig struct {
		Level      string `yaml:"level"`  // debug, info, warn, error
		Format     string `yaml:"format"` // json, text
		Output     string `yaml:"output"` // stdout, file, both
		File       string `yaml:"file"`
		MaxSize    int    `yaml:"max_size"` // MB
		MaxBackups int    `yaml:"max_backups"`
		MaxAge     int    `yaml:"max_age"` // days
	}

	SchedulerConfig struct {
		Enabled           *bool  `yaml:"enabled"`
		Store             string `yaml:"store"`
		PollIntervalSec   int    `yaml:"poll_interval_sec"`
		JobTimeoutSec     int    `yaml:"job_timeout_sec"`
		MaxToolIterations int    `yaml:"max_tool_iterations"`
		// Model overrides agent.models for scheduled runs when set.
		Model     string `yaml:"model"`
		MaxTokens int    `yaml:"max_tokens"`
	}

	AgentConfig struct {
		Models        ModelsConfig `yaml:"models"`
		MaxIterations int          `yaml:"max_iterations"`
		MaxTokens     int          `yaml:"max_tokens"`
		Temperature   float64      `yaml:"temperature"`
		HistoryLimit  int          `yaml:"history_limit"`
	}

	ModelsConfig struct {
		Primary  string   `yaml:"primary"`
		Fallback []string `yaml:"fallback"`
	}

	MacAgentConfig struct {
		Host       string `yaml:"host"`
		Port       int    `yaml:"port"`
		Secret     string `yaml:"secret"`
		TimeoutSec int    `yaml:"timeout_sec"`
	}

	ChannelConfig struct {
		ID      string                 `yaml:"-"`
		Type    string                 `yaml:"type"` // telegram
		Enabled bool                   `yaml:"enabled"`
		Config  map[string]interface{} `yaml:"config"`
	}

	ProviderConfig struct {
		ID     string         `yaml:"-"`
		Type   string         `yaml:"type"` // openai, anthropic, gemini, ollama, qwen
		Config map[string]any `yaml:"config"`
	}
)

// SchedulerEnabled reports the effective scheduler switch.
func (c *Config) SchedulerEnabled() bool {
	return c.Scheduler.Enabled == nil || *c.Scheduler.Enabled
}

// Clone .
func (c *Config) Clone() (*Config, error) {
	if c == nil {
		return nil, fmt.Errorf("config is nil")
	}

	raw, err := sonic.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}

	var cloned Config
	if err := sonic.Unmarshal(raw, &cloned); err != nil {
		return nil, fmt.Errorf("unmarshal config clone: %w", err)
	}
	return &cloned, nil
}

// Hash .
func (c *Config) Hash() string {
	json := sonic.Config{SortMapKeys: true, UseNumber: true}.Froze()
	raw, _ := json.Marshal(c)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
