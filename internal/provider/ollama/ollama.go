package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	ollamamodel "github.com/cloudwego/eino-ext/components/model/ollama"
	"github.com/cloudwego/eino/components/model"
	ollamaapi "github.com/eino-contrib/ollama/api"

	"github.com/tgifai/macmate/internal/provider"
)

var defaults = provider.Defaults{
	BaseURL:      "http://localhost:11434",
	DefaultModel: "llama3.1",
	Timeout:      300 * time.Second,
}

// NewProvider targets a local Ollama daemon; no API key is needed. Models
// must already be pulled on the daemon.
func NewProvider(_ context.Context, id string, cfgMap map[string]any) (*provider.ChatProvider, error) {
	cfg, err := provider.ParseCommon(provider.Ollama, id, cfgMap, defaults)
	if err != nil {
		return nil, fmt.Errorf("parse ollama config: %w", err)
	}

	baseURL, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	modelsCli := ollamaapi.NewClient(baseURL, &http.Client{Timeout: cfg.Timeout})

	build := func(ctx context.Context, modelName string) (model.BaseChatModel, error) {
		if err := ensurePulled(ctx, modelsCli, modelName); err != nil {
			return nil, err
		}
		return ollamamodel.NewChatModel(ctx, &ollamamodel.ChatModelConfig{
			BaseURL: cfg.BaseURL,
			Timeout: cfg.Timeout,
			Model:   modelName,
		})
	}
	return provider.NewChatProvider(provider.Ollama, *cfg, build), nil
}

func ensurePulled(ctx context.Context, cli *ollamaapi.Client, modelName string) error {
	lr, err := cli.List(ctx)
	if err != nil {
		return fmt.Errorf("list ollama models failed: %w", err)
	}
	for _, m := range lr.Models {
		if matchesModel(m.Model, modelName) || matchesModel(m.Name, modelName) {
			return nil
		}
	}
	return fmt.Errorf("ollama model %s is not pulled, run `ollama pull %s`", modelName, modelName)
}

// matchesModel treats "llama3.1" and "llama3.1:latest" as the same model.
func matchesModel(have, want string) bool {
	have, want = strings.TrimSpace(have), strings.TrimSpace(want)
	if have == "" {
		return false
	}
	return have == want || have == want+":latest"
}
