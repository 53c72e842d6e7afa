package provider

import (
	"context"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

type Provider interface {
	// ID returns the configured provider instance identifier.
	// The value is used as the lookup key in the provider registry.
	ID() string

	// Type returns the backend family of this provider instance
	// (for example openai, anthropic, gemini, ollama, or qwen).
	Type() Type

	// Close releases provider-owned resources. It should be safe to call during shutdown.
	Close() error

	// Generate performs a single non-streaming chat completion request.
	// An empty modelName selects the provider's configured default model.
	// opts are forwarded to the underlying eino model call.
	Generate(context.Context, string, []*schema.Message, ...model.Option) (*schema.Message, error)
}
