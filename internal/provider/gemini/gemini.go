package gemini

import (
	"context"
	"fmt"
	"time"

	gmodel "github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino/components/model"
	"google.golang.org/genai"

	"github.com/tgifai/macmate/internal/provider"
)

var defaults = provider.Defaults{
	DefaultModel:  "gemini-2.5-flash",
	Timeout:       120 * time.Second,
	RequireAPIKey: true,
}

func NewProvider(ctx context.Context, id string, cfgMap map[string]any) (*provider.ChatProvider, error) {
	cfg, err := provider.ParseCommon(provider.Gemini, id, cfgMap, defaults)
	if err != nil {
		return nil, fmt.Errorf("parse gemini config: %w", err)
	}

	clientCfg := &genai.ClientConfig{APIKey: cfg.APIKey}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("new gemini client failed: %w", err)
	}

	build := func(ctx context.Context, modelName string) (model.BaseChatModel, error) {
		return gmodel.NewChatModel(ctx, &gmodel.Config{
			Client: client,
			Model:  modelName,
		})
	}
	return provider.NewChatProvider(provider.Gemini, *cfg, build), nil
}
