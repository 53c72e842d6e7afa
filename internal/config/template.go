package config

// Template returns the starter configuration written by `macmate init`.
// Secrets are left as ${VAR} references resolved at load time.
func Template() *Config {
	enabled := true
	return &Config{
		Gateway: GatewayConfig{
			Bind:        defaultBind,
			MetricsBind: defaultMetricsBind,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
		Scheduler: SchedulerConfig{
			Enabled:           &enabled,
			PollIntervalSec:   defaultPollIntervalSec,
			JobTimeoutSec:     defaultJobTimeoutSec,
			MaxToolIterations: defaultToolIterations,
		},
		Agent: AgentConfig{
			Models: ModelsConfig{
				Primary:  DefaultModel,
				Fallback: []string{"openai:gpt-4o-mini"},
			},
			HistoryLimit: defaultHistoryLimit,
		},
		MacAgent: MacAgentConfig{
			Host:       "${MAC_IP}",
			Port:       defaultMacAgentPort,
			Secret:     "${MAC_SECRET}",
			TimeoutSec: defaultMacAgentTimeout,
		},
		Channels: map[string]ChannelConfig{
			"telegram": {
				Type:    "telegram",
				Enabled: true,
				Config: map[string]interface{}{
					"token":         "${TELEGRAM_BOT_TOKEN}",
					"allowed_users": []int64{},
				},
			},
		},
		Providers: map[string]ProviderConfig{
			"anthropic": {
				Type:   "anthropic",
				Config: map[string]any{"api_key": "${CLAUDE_API_KEY}"},
			},
			"openai": {
				Type:   "openai",
				Config: map[string]any{"api_key": "${OPENAI_API_KEY}"},
			},
		},
	}
}
