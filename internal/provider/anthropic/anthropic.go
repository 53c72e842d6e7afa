package anthropic

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/tgifai/macmate/internal/provider"
)

var defaults = provider.Defaults{
	BaseURL:       "https://api.anthropic.com",
	DefaultModel:  "claude-sonnet-4-20250514",
	MaxTokens:     2048,
	Timeout:       120 * time.Second,
	RequireAPIKey: true,
}

func NewProvider(_ context.Context, id string, cfgMap map[string]any) (*provider.ChatProvider, error) {
	cfg, err := provider.ParseCommon(provider.Anthropic, id, cfgMap, defaults)
	if err != nil {
		return nil, fmt.Errorf("parse anthropic config: %w", err)
	}

	httpCli := &http.Client{Timeout: cfg.Timeout}
	build := func(ctx context.Context, modelName string) (model.BaseChatModel, error) {
		var baseURL *string
		if u := strings.TrimSpace(cfg.BaseURL); u != "" {
			baseURL = &u
		}
		return claude.NewChatModel(ctx, &claude.Config{
			APIKey:     cfg.APIKey,
			BaseURL:    baseURL,
			Model:      modelName,
			MaxTokens:  cfg.MaxTokens,
			HTTPClient: httpCli,
		})
	}
	return provider.NewChatProvider(provider.Anthropic, *cfg, build, provider.WithPrepare(sanitizeMessages)), nil
}

// sanitizeMessages fills messages that carry no content at all. The claude
// adapter indexes into the content slice and panics on an empty one.
func sanitizeMessages(msgs []*schema.Message) {
	for _, m := range msgs {
		if m.Content != "" || len(m.ToolCalls) > 0 ||
			len(m.UserInputMultiContent) > 0 ||
			len(m.AssistantGenMultiContent) > 0 ||
			len(m.MultiContent) > 0 {
			continue
		}
		if m.Role == schema.Tool {
			m.Content = "{}"
		} else {
			m.Content = "..."
		}
	}
}
