package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/gg/gconv"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// CommonConfig holds the settings every backend understands. Backends read it
// from the provider's free-form config map with ParseCommon.
type CommonConfig struct {
	ID           string
	APIKey       string
	BaseURL      string
	DefaultModel string
	MaxTokens    int
	Timeout      time.Duration
}

// Defaults seeds ParseCommon for one backend.
type Defaults struct {
	BaseURL      string
	DefaultModel string
	MaxTokens    int
	Timeout      time.Duration
	// RequireAPIKey rejects configs without api_key (or secret_key).
	RequireAPIKey bool
}

func ParseCommon(typ Type, id string, configMap map[string]any, d Defaults) (*CommonConfig, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errors.New("provider ID cannot be empty")
	}
	cfg := &CommonConfig{
		ID:           id,
		BaseURL:      d.BaseURL,
		DefaultModel: d.DefaultModel,
		MaxTokens:    d.MaxTokens,
		Timeout:      d.Timeout,
	}

	cfg.APIKey = gconv.To[string](configMap["api_key"])
	if cfg.APIKey == "" {
		cfg.APIKey = gconv.To[string](configMap["secret_key"])
	}
	if d.RequireAPIKey && cfg.APIKey == "" {
		return nil, fmt.Errorf("%s api_key is required", typ)
	}
	if baseURL := gconv.To[string](configMap["base_url"]); baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if defaultModel := gconv.To[string](configMap["default_model"]); defaultModel != "" {
		cfg.DefaultModel = defaultModel
	}
	if maxTokens := gconv.To[int](configMap["max_tokens"]); maxTokens > 0 {
		cfg.MaxTokens = maxTokens
	}
	if timeout := gconv.To[int](configMap["timeout"]); timeout > 0 {
		cfg.Timeout = time.Duration(timeout) * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.DefaultModel == "" {
		return nil, fmt.Errorf("%s default_model is required", typ)
	}
	return cfg, nil
}

// ModelBuilder creates the eino chat model for one model name.
type ModelBuilder func(ctx context.Context, modelName string) (model.BaseChatModel, error)

type ChatOption func(*ChatProvider)

// WithPrepare installs a hook that rewrites messages before each call.
func WithPrepare(fn func([]*schema.Message)) ChatOption {
	return func(p *ChatProvider) { p.prepare = fn }
}

// WithCloser installs a hook run by Close.
func WithCloser(fn func() error) ChatOption {
	return func(p *ChatProvider) { p.closer = fn }
}

// ChatProvider serves Generate for any eino chat model family, building one
// model per name lazily and caching it.
type ChatProvider struct {
	typ     Type
	cfg     CommonConfig
	build   ModelBuilder
	prepare func([]*schema.Message)
	closer  func() error

	models map[string]model.BaseChatModel
	mu     sync.RWMutex
}

var _ Provider = (*ChatProvider)(nil)

func NewChatProvider(typ Type, cfg CommonConfig, build ModelBuilder, opts ...ChatOption) *ChatProvider {
	p := &ChatProvider{
		typ:    typ,
		cfg:    cfg,
		build:  build,
		models: make(map[string]model.BaseChatModel, 4),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *ChatProvider) ID() string {
	return p.cfg.ID
}

func (p *ChatProvider) Type() Type {
	return p.typ
}

func (p *ChatProvider) Config() CommonConfig {
	return p.cfg
}

func (p *ChatProvider) Close() error {
	if p.closer != nil {
		return p.closer()
	}
	return nil
}

func (p *ChatProvider) Generate(ctx context.Context, modelName string, messages []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	if modelName == "" {
		modelName = p.cfg.DefaultModel
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	chatModel, err := p.getOrCreateModel(ctx, modelName)
	if err != nil {
		return nil, fmt.Errorf("failed to get chat model for %s: %w", modelName, err)
	}

	if p.prepare != nil {
		p.prepare(messages)
	}

	resp, err := chatModel.Generate(ctx, messages, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s API call failed: %w", p.typ, err)
	}
	if resp == nil {
		return nil, fmt.Errorf("%s API returned no message", p.typ)
	}
	return resp, nil
}

func (p *ChatProvider) getOrCreateModel(ctx context.Context, modelName string) (model.BaseChatModel, error) {
	p.mu.RLock()
	if m, exists := p.models[modelName]; exists {
		p.mu.RUnlock()
		return m, nil
	}
	p.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()

	if m, exists := p.models[modelName]; exists {
		return m, nil
	}

	m, err := p.build(ctx, modelName)
	if err != nil {
		return nil, err
	}
	p.models[modelName] = m
	return m, nil
}
