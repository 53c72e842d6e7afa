package telegram

import (
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/gg/gconv"
)

const (
	defaultPollTimeout = 30 * time.Second
	defaultMaxChunk    = 4000
)

type Config struct {
	Token       string // bot token from @BotFather
	PollTimeout time.Duration
	// MaxChunk bounds one outgoing message in characters; Telegram rejects
	// texts above 4096.
	MaxChunk int
	// MentionOnly makes the bot ignore group messages that do not mention it.
	MentionOnly bool
}

func (c *Config) Validate() error {
	if c.Token == "" {
		return errors.New("telegram bot token cannot be empty")
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = defaultPollTimeout
	}
	if c.MaxChunk <= 0 || c.MaxChunk > 4096 {
		c.MaxChunk = defaultMaxChunk
	}
	return nil
}

// ParseConfig reads the channel's free-form config map.
func ParseConfig(configMap map[string]interface{}) (*Config, error) {
	cfg := &Config{
		Token:       gconv.To[string](configMap["token"]),
		MaxChunk:    gconv.To[int](configMap["max_chunk"]),
		MentionOnly: true,
	}
	if sec := gconv.To[int](configMap["poll_timeout"]); sec > 0 {
		cfg.PollTimeout = time.Duration(sec) * time.Second
	}
	if v, ok := configMap["mention_only"]; ok {
		cfg.MentionOnly = gconv.To[bool](v)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid telegram config: %w", err)
	}
	return cfg, nil
}
