package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_FillsDefaults(t *testing.T) {
	cfg, err := Parse([]byte("mac_agent:\n  host: 10.0.0.5\n"))
	require.NoError(t, err)

	assert.True(t, cfg.SchedulerEnabled())
	assert.Equal(t, 30, cfg.Scheduler.PollIntervalSec)
	assert.Equal(t, 300, cfg.Scheduler.JobTimeoutSec)
	assert.Equal(t, 5, cfg.Scheduler.MaxToolIterations)
	assert.Equal(t, 2048, cfg.Scheduler.MaxTokens)
	assert.NotEmpty(t, cfg.Scheduler.Store)
	assert.Equal(t, DefaultModel, cfg.Agent.Models.Primary)
	assert.Equal(t, 40, cfg.Agent.HistoryLimit)
	assert.Equal(t, "10.0.0.5", cfg.MacAgent.Host)
	assert.Equal(t, 9999, cfg.MacAgent.Port)
	assert.Equal(t, 30, cfg.MacAgent.TimeoutSec)
	assert.Equal(t, ":9091", cfg.Gateway.MetricsBind)
}

func TestParse_ExpandsEnv(t *testing.T) {
	t.Setenv("MACMATE_TEST_SECRET", "s3cret")
	raw := []byte(`
mac_agent:
  secret: ${MACMATE_TEST_SECRET}
providers:
  anthropic:
    type: anthropic
    config:
      api_key: ${MACMATE_TEST_SECRET}
`)
	cfg, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.MacAgent.Secret)
	assert.Equal(t, "anthropic", cfg.Providers["anthropic"].ID)
	assert.Equal(t, "s3cret", cfg.Providers["anthropic"].Config["api_key"])
}

func TestParse_SchedulerDisabled(t *testing.T) {
	cfg, err := Parse([]byte("scheduler:\n  enabled: false\n"))
	require.NoError(t, err)
	assert.False(t, cfg.SchedulerEnabled())
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"provider without type", "providers:\n  p1:\n    config: {}\n"},
		{"channel without type", "channels:\n  tg:\n    enabled: true\n"},
		{"port out of range", "mac_agent:\n  port: 70000\n"},
		{"bad yaml", "gateway: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.raw))
			require.Error(t, err)
		})
	}
}

func TestWriteFile_TemplateRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, WriteFile(path, Template(), false))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	require.Error(t, WriteFile(path, Template(), false))
	require.NoError(t, WriteFile(path, Template(), true))

	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	mgr := &InstanceManager{}
	cfg, err := mgr.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "123:abc", cfg.Channels["telegram"].Config["token"])
	assert.Equal(t, "telegram", cfg.Channels["telegram"].ID)

	h1, err := mgr.Hash()
	require.NoError(t, err)
	assert.Equal(t, cfg.Hash(), h1)

	again, err := mgr.Get()
	require.NoError(t, err)
	assert.Equal(t, cfg.Hash(), again.Hash())
}

func TestInstanceManager_NotLoaded(t *testing.T) {
	mgr := &InstanceManager{}
	_, err := mgr.Get()
	require.Error(t, err)
	_, err = mgr.Hash()
	require.Error(t, err)
}

func TestParse_LogFileDefault(t *testing.T) {
	t.Setenv("MACMATE_HOME", t.TempDir())
	cfg, err := Parse([]byte("logging:\n  output: Both\n"))
	require.NoError(t, err)
	assert.Equal(t, "both", cfg.Logging.Output)
	assert.Equal(t, filepath.Join(os.Getenv("MACMATE_HOME"), "logs", "macmate.log"), cfg.Logging.File)
}
