package qwen

import (
	"context"
	"fmt"
	"time"

	qwenmodel "github.com/cloudwego/eino-ext/components/model/qwen"
	"github.com/cloudwego/eino/components/model"

	"github.com/tgifai/macmate/internal/provider"
)

var defaults = provider.Defaults{
	BaseURL:       "https://dashscope.aliyuncs.com/compatible-mode/v1",
	DefaultModel:  "qwen-plus",
	Timeout:       120 * time.Second,
	RequireAPIKey: true,
}

func NewProvider(_ context.Context, id string, cfgMap map[string]any) (*provider.ChatProvider, error) {
	cfg, err := provider.ParseCommon(provider.Qwen, id, cfgMap, defaults)
	if err != nil {
		return nil, fmt.Errorf("parse qwen config: %w", err)
	}

	build := func(ctx context.Context, modelName string) (model.BaseChatModel, error) {
		return qwenmodel.NewChatModel(ctx, &qwenmodel.ChatModelConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Timeout: cfg.Timeout,
			Model:   modelName,
		})
	}
	return provider.NewChatProvider(provider.Qwen, *cfg, build), nil
}
