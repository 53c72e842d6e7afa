package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/tgifai/macmate/internal/agent/session"
	"github.com/tgifai/macmate/internal/agent/tool"
	"github.com/tgifai/macmate/internal/pkg/logs"
	"github.com/tgifai/macmate/internal/pkg/utils"
	"github.com/tgifai/macmate/internal/provider"
)

const (
	defaultMaxIterations = 10
	unavailableReply     = "System might be unavailable, please try again later."
)

// ProviderLookup resolves a provider id from a model spec.
type ProviderLookup func(id string) (provider.Provider, error)

type Options struct {
	// Models are "provider_id:model" specs tried in order.
	Models        []string
	MaxIterations int
	MaxTokens     int
	Temperature   float32
	Providers     ProviderLookup
}

// Agent runs conversations against the configured models, looping through
// tool calls until the model answers in text.
type Agent struct {
	models        []string
	maxIterations int
	maxTokens     int
	temperature   float32
	providers     ProviderLookup
}

func New(opts Options) *Agent {
	ag := &Agent{
		models:        opts.Models,
		maxIterations: opts.MaxIterations,
		maxTokens:     opts.MaxTokens,
		temperature:   opts.Temperature,
		providers:     opts.Providers,
	}
	if ag.maxIterations <= 0 {
		ag.maxIterations = defaultMaxIterations
	}
	if ag.providers == nil {
		ag.providers = provider.Get
	}
	return ag
}

// Request is one conversation to run. Tools nil means the model is called
// without any tool schema.
type Request struct {
	System   string
	Messages []*schema.Message
	Tools    *tool.Registry
	// MaxIterations overrides the agent default when positive.
	MaxIterations int
	MaxTokens     int
	// Models overrides the agent's model list when set.
	Models []string
}

type Reply struct {
	Message *schema.Message
	Text    string
	// Turns holds the assistant and tool messages produced by the run, in order.
	Turns        []*schema.Message
	Iterations   int
	LimitReached bool
	Model        string
}

// Run tries each model in order and returns the first successful reply.
// A model that fails after dispatching tools ends the run, so side effects
// are never replayed on the next model.
func (ag *Agent) Run(ctx context.Context, req Request) (*Reply, error) {
	models := ag.models
	if len(req.Models) > 0 {
		models = req.Models
	}
	if len(models) == 0 {
		return nil, errors.New("no model configured")
	}

	var errs []error
	for _, spec := range models {
		ms, err := provider.ParseModelSpec(spec)
		if err != nil {
			logs.CtxWarn(ctx, "[agent] invalid model spec %q: %v", spec, err)
			errs = append(errs, err)
			continue
		}
		prov, err := ag.providers(ms.ProviderID)
		if err != nil {
			logs.CtxWarn(ctx, "[agent] provider not found: %s", ms.ProviderID)
			errs = append(errs, err)
			continue
		}
		reply, err := ag.runLoop(ctx, prov, ms, req)
		if err != nil {
			logs.CtxWarn(ctx, "[agent] model %s failed: %v", ms, err)
			errs = append(errs, fmt.Errorf("%s: %w", ms, err))
			if errors.Is(err, ErrToolsDispatched) {
				break
			}
			continue
		}
		return reply, nil
	}
	return nil, errors.Join(errs...)
}

// Chat runs one interactive turn on top of the user's session history and
// records the exchange. Failures produce a canned reply rather than an error.
func (ag *Agent) Chat(ctx context.Context, sess *session.Session, system, text string, tools *tool.Registry) string {
	logs.CtxDebug(ctx, "[agent] chat from user %s: %s", sess.UserID, utils.Truncate80(text))

	userMsg := schema.UserMessage(text)
	msgs := append(sess.History(), userMsg)

	reply, err := ag.Run(ctx, Request{System: system, Messages: msgs, Tools: tools})
	if err != nil {
		logs.CtxError(ctx, "[agent] chat failed for user %s: %v", sess.UserID, err)
		return unavailableReply
	}

	// tool traffic stays out of the history
	sess.Append(userMsg, schema.AssistantMessage(reply.Text, nil))
	if strings.TrimSpace(reply.Text) == "" {
		return "Done."
	}
	return reply.Text
}
