package openai

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	"github.com/tgifai/macmate/internal/provider"
)

var defaults = provider.Defaults{
	BaseURL:       "https://api.openai.com/v1",
	DefaultModel:  "gpt-4o-mini",
	Timeout:       120 * time.Second,
	RequireAPIKey: true,
}

func NewProvider(_ context.Context, id string, cfgMap map[string]any) (*provider.ChatProvider, error) {
	cfg, err := provider.ParseCommon(provider.OpenAI, id, cfgMap, defaults)
	if err != nil {
		return nil, fmt.Errorf("parse openai config: %w", err)
	}

	build := func(ctx context.Context, modelName string) (model.BaseChatModel, error) {
		return openai.NewChatModel(ctx, &openai.ChatModelConfig{
			APIKey:  cfg.APIKey,
			Model:   modelName,
			BaseURL: cfg.BaseURL,
			ByAzure: false,
		})
	}
	return provider.NewChatProvider(provider.OpenAI, *cfg, build), nil
}
