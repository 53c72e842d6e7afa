package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tgifai/macmate/internal/consts"
)

const (
	DefaultModel = "anthropic:claude-sonnet-4-20250514"

	defaultBind              = "127.0.0.1:8088"
	defaultMetricsBind       = ":9091"
	defaultRequestTimeoutSec = 180
	defaultPollIntervalSec   = 30
	defaultJobTimeoutSec     = 300
	defaultToolIterations    = 5
	defaultMaxTokens         = 2048
	defaultAgentIterations   = 10
	defaultHistoryLimit      = 40
	defaultMacAgentPort      = 9999
	defaultMacAgentTimeout   = 30
)

// Validate fills defaults in place and rejects configurations that cannot run.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config cannot be nil")
	}

	if strings.TrimSpace(c.Gateway.Bind) == "" {
		c.Gateway.Bind = defaultBind
	}
	if strings.TrimSpace(c.Gateway.MetricsBind) == "" {
		c.Gateway.MetricsBind = defaultMetricsBind
	}
	if c.Gateway.RequestTimeout <= 0 {
		c.Gateway.RequestTimeout = defaultRequestTimeoutSec
	}

	c.Logging.Output = strings.ToLower(strings.TrimSpace(c.Logging.Output))
	if (c.Logging.Output == "file" || c.Logging.Output == "both") && strings.TrimSpace(c.Logging.File) == "" {
		c.Logging.File = consts.DefaultLogFilePath()
	}

	if c.Scheduler.Enabled == nil {
		enabled := true
		c.Scheduler.Enabled = &enabled
	}
	c.Scheduler.Store = strings.TrimSpace(c.Scheduler.Store)
	if c.Scheduler.Store == "" {
		c.Scheduler.Store = consts.DefaultTaskStorePath()
	}
	if c.Scheduler.PollIntervalSec <= 0 {
		c.Scheduler.PollIntervalSec = defaultPollIntervalSec
	}
	if c.Scheduler.JobTimeoutSec <= 0 {
		c.Scheduler.JobTimeoutSec = defaultJobTimeoutSec
	}
	if c.Scheduler.MaxToolIterations <= 0 {
		c.Scheduler.MaxToolIterations = defaultToolIterations
	}
	if c.Scheduler.MaxTokens <= 0 {
		c.Scheduler.MaxTokens = defaultMaxTokens
	}
	c.Scheduler.Model = strings.TrimSpace(c.Scheduler.Model)

	c.Agent.Models.Primary = strings.TrimSpace(c.Agent.Models.Primary)
	if c.Agent.Models.Primary == "" {
		c.Agent.Models.Primary = DefaultModel
	}
	if c.Agent.MaxIterations <= 0 {
		c.Agent.MaxIterations = defaultAgentIterations
	}
	if c.Agent.MaxTokens <= 0 {
		c.Agent.MaxTokens = defaultMaxTokens
	}
	if c.Agent.HistoryLimit <= 0 {
		c.Agent.HistoryLimit = defaultHistoryLimit
	}

	c.MacAgent.Host = strings.TrimSpace(c.MacAgent.Host)
	if c.MacAgent.Port == 0 {
		c.MacAgent.Port = defaultMacAgentPort
	}
	if c.MacAgent.Port < 0 || c.MacAgent.Port > 65535 {
		return fmt.Errorf("mac_agent.port out of range: %d", c.MacAgent.Port)
	}
	if c.MacAgent.TimeoutSec <= 0 {
		c.MacAgent.TimeoutSec = defaultMacAgentTimeout
	}

	normalizedProviders := make(map[string]ProviderConfig, len(c.Providers))
	for key, one := range c.Providers {
		providerID := strings.TrimSpace(key)
		if providerID == "" {
			return errors.New("provider id cannot be empty")
		}
		if strings.TrimSpace(one.Type) == "" {
			return fmt.Errorf("providers[%s].type is required", providerID)
		}
		one.ID = providerID
		normalizedProviders[providerID] = one
	}
	c.Providers = normalizedProviders

	normalizedChannels := make(map[string]ChannelConfig, len(c.Channels))
	for key, one := range c.Channels {
		channelID := strings.TrimSpace(key)
		if channelID == "" {
			return errors.New("channel id cannot be empty")
		}
		if strings.TrimSpace(one.Type) == "" {
			return fmt.Errorf("channels[%s].type is required", channelID)
		}
		one.ID = channelID
		normalizedChannels[channelID] = one
	}
	c.Channels = normalizedChannels
	return nil
}
