package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/tgifai/macmate/internal/pkg/logs"
	"github.com/tgifai/macmate/internal/provider"
)

const (
	summaryPrompt   = "You have reached the maximum iteration limit. Please summarize what you have accomplished so far and what still remains to be done."
	summaryFallback = "Task reached the maximum iteration limit. Partial work may have been applied. Please review and continue if needed."
)

// ErrToolsDispatched marks a failure that happened after at least one tool
// ran. Such a run is not retried on another model.
var ErrToolsDispatched = errors.New("model failed after tools were dispatched")

func (ag *Agent) runLoop(ctx context.Context, p provider.Provider, ms *provider.ModelSpec, req Request) (*Reply, error) {
	maxIterations := ag.maxIterations
	if req.MaxIterations > 0 {
		maxIterations = req.MaxIterations
	}

	msgs := make([]*schema.Message, 0, len(req.Messages)+8)
	if req.System != "" {
		msgs = append(msgs, schema.SystemMessage(req.System))
	}
	msgs = append(msgs, req.Messages...)
	base := len(msgs)

	opts := ag.callOptions(req)
	if req.Tools != nil {
		opts = append(opts,
			model.WithTools(req.Tools.ListToolInfos()),
			model.WithToolChoice(schema.ToolChoiceAllowed),
		)
	}

	logs.CtxDebug(ctx, "[agent] sending to provider %s:%s, messages count: %d, max_iterations: %d",
		ms.ProviderID, ms.ModelName, len(msgs), maxIterations)

	resp, err := p.Generate(ctx, ms.ModelName, msgs, opts...)
	if err != nil {
		return nil, err
	}

	iter, dispatched := 0, 0
	partial := ""
	for len(resp.ToolCalls) > 0 && req.Tools != nil && iter < maxIterations {
		iter++
		str, _ := sonic.MarshalString(resp)
		logs.CtxDebug(ctx, "[agent:%d] llmResp: %s", iter, str)
		if text := replyText(resp); text != "" {
			partial = text
		}

		msgs = append(msgs, resp)
		for _, call := range resp.ToolCalls {
			logs.CtxDebug(ctx, "[agent:%d] call: %s(%s)", iter, call.Function.Name, call.Function.Arguments)
			msgs = append(msgs, &schema.Message{
				Role:       schema.Tool,
				ToolName:   call.Function.Name,
				ToolCallID: call.ID,
				Content:    req.Tools.Dispatch(ctx, call),
			})
			dispatched++
		}

		if resp, err = p.Generate(ctx, ms.ModelName, msgs, opts...); err != nil {
			return nil, fmt.Errorf("%w (%d tool calls): %w", ErrToolsDispatched, dispatched, err)
		}
	}

	reply := &Reply{Iterations: iter, Model: ms.String()}
	if len(resp.ToolCalls) > 0 && req.Tools != nil {
		reply.LimitReached = true
		if text := replyText(resp); text != "" {
			partial = text
		}
		if partial != "" {
			logs.CtxWarn(ctx, "[agent] iteration limit (%d) reached, keeping partial text", maxIterations)
			resp = schema.AssistantMessage(partial, nil)
		} else {
			logs.CtxWarn(ctx, "[agent] iteration limit (%d) reached, requesting summary", maxIterations)
			msgs = append(msgs, resp)
			for _, call := range resp.ToolCalls {
				msgs = append(msgs, &schema.Message{
					Role:       schema.Tool,
					ToolName:   call.Function.Name,
					ToolCallID: call.ID,
					Content:    `{"success":false,"error":"iteration limit reached, call skipped"}`,
				})
			}
			resp = ag.runSummary(ctx, p, ms, msgs, ag.callOptions(req))
		}
	}

	msgs = append(msgs, resp)
	reply.Message = resp
	reply.Text = replyText(resp)
	reply.Turns = msgs[base:]
	return reply, nil
}

func (ag *Agent) callOptions(req Request) []model.Option {
	var opts []model.Option
	maxTokens := ag.maxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}
	if maxTokens > 0 {
		opts = append(opts, model.WithMaxTokens(maxTokens))
	}
	if ag.temperature > 0 {
		opts = append(opts, model.WithTemperature(ag.temperature))
	}
	return opts
}

// runSummary makes one final LLM call without tools to summarize what has
// been accomplished and what remains when the iteration limit is exceeded.
func (ag *Agent) runSummary(ctx context.Context,
	p provider.Provider,
	ms *provider.ModelSpec,
	msgs []*schema.Message,
	opts []model.Option,
) *schema.Message {
	msgs = append(msgs, schema.UserMessage(summaryPrompt))

	resp, err := p.Generate(ctx, ms.ModelName, msgs, opts...)
	if err != nil || resp == nil || replyText(resp) == "" {
		logs.CtxWarn(ctx, "[agent] summary generation failed: %v", err)
		return schema.AssistantMessage(summaryFallback, nil)
	}
	return resp
}

// replyText concatenates every text segment of an assistant message.
func replyText(msg *schema.Message) string {
	if msg == nil {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(msg.Content)
	for _, part := range msg.AssistantGenMultiContent {
		if part.Type == schema.ChatMessagePartTypeText && part.Text != "" {
			if sb.Len() > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString(part.Text)
		}
	}
	return strings.TrimSpace(sb.String())
}
