package agent

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tgifai/macmate/internal/agent/session"
	"github.com/tgifai/macmate/internal/agent/tool"
	"github.com/tgifai/macmate/internal/provider"
)

type scriptedProvider struct {
	id    string
	calls int
	reply func(n int, msgs []*schema.Message, withTools bool) (*schema.Message, error)
}

func (p *scriptedProvider) ID() string          { return p.id }
func (p *scriptedProvider) Type() provider.Type { return provider.Type("fake") }
func (p *scriptedProvider) Close() error        { return nil }

func (p *scriptedProvider) Generate(_ context.Context, _ string, msgs []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	p.calls++
	o := model.GetCommonOptions(&model.Options{}, opts...)
	return p.reply(p.calls, msgs, len(o.Tools) > 0)
}

func lookup(ps ...*scriptedProvider) ProviderLookup {
	return func(id string) (provider.Provider, error) {
		for _, p := range ps {
			if p.id == id {
				return p, nil
			}
		}
		return nil, fmt.Errorf("provider %s not found", id)
	}
}

type pingTool struct{ runs int }

func (t *pingTool) Name() string        { return "check_mac_status" }
func (t *pingTool) Description() string { return "ping" }
func (t *pingTool) ToolInfo() *schema.ToolInfo {
	return &schema.ToolInfo{Name: t.Name(), Desc: t.Description()}
}
func (t *pingTool) Execute(context.Context, map[string]interface{}) (interface{}, error) {
	t.runs++
	return map[string]interface{}{"success": true}, nil
}

func toolTurn(n int) *schema.Message {
	return schema.AssistantMessage("", []schema.ToolCall{{
		ID:       fmt.Sprintf("call_%d", n),
		Function: schema.FunctionCall{Name: "check_mac_status", Arguments: "{}"},
	}})
}

func newTools(t *testing.T) (*tool.Registry, *pingTool) {
	t.Helper()
	pt := &pingTool{}
	reg, err := tool.NewRegistry("test", pt)
	require.NoError(t, err)
	return reg, pt
}

func TestRun_TextReply(t *testing.T) {
	p := &scriptedProvider{id: "a", reply: func(int, []*schema.Message, bool) (*schema.Message, error) {
		return schema.AssistantMessage("all good", nil), nil
	}}
	ag := New(Options{Models: []string{"a:m"}, Providers: lookup(p)})

	reply, err := ag.Run(context.Background(), Request{System: "sys", Messages: []*schema.Message{schema.UserMessage("hi")}})
	require.NoError(t, err)
	assert.Equal(t, "all good", reply.Text)
	assert.Equal(t, 0, reply.Iterations)
	assert.False(t, reply.LimitReached)
	assert.Equal(t, "a:m", reply.Model)
	assert.Len(t, reply.Turns, 1)
}

func TestRun_ToolLoop(t *testing.T) {
	reg, pt := newTools(t)
	var lastMsgs []*schema.Message
	p := &scriptedProvider{id: "a", reply: func(n int, msgs []*schema.Message, withTools bool) (*schema.Message, error) {
		lastMsgs = msgs
		if n == 1 {
			return toolTurn(n), nil
		}
		return schema.AssistantMessage("mac is online", nil), nil
	}}
	ag := New(Options{Models: []string{"a:m"}, Providers: lookup(p)})

	reply, err := ag.Run(context.Background(), Request{Messages: []*schema.Message{schema.UserMessage("status?")}, Tools: reg})
	require.NoError(t, err)
	assert.Equal(t, "mac is online", reply.Text)
	assert.Equal(t, 1, reply.Iterations)
	assert.Equal(t, 1, pt.runs)
	require.Len(t, reply.Turns, 3)

	toolMsg := lastMsgs[len(lastMsgs)-1]
	assert.Equal(t, schema.Tool, toolMsg.Role)
	assert.Equal(t, "call_1", toolMsg.ToolCallID)
	assert.JSONEq(t, `{"success":true}`, toolMsg.Content)
}

func TestRun_IterationLimit(t *testing.T) {
	reg, pt := newTools(t)
	p := &scriptedProvider{id: "a", reply: func(n int, _ []*schema.Message, withTools bool) (*schema.Message, error) {
		if withTools {
			return toolTurn(n), nil
		}
		return schema.AssistantMessage("partial summary", nil), nil
	}}
	ag := New(Options{Models: []string{"a:m"}, Providers: lookup(p)})

	reply, err := ag.Run(context.Background(), Request{
		Messages:      []*schema.Message{schema.UserMessage("loop forever")},
		Tools:         reg,
		MaxIterations: 5,
	})
	require.NoError(t, err)
	assert.True(t, reply.LimitReached)
	assert.Equal(t, 5, reply.Iterations)
	assert.Equal(t, 5, pt.runs)
	assert.Equal(t, "partial summary", reply.Text)
	assert.Equal(t, 7, p.calls)
}

func TestRun_SummaryFailureFallsBack(t *testing.T) {
	reg, _ := newTools(t)
	p := &scriptedProvider{id: "a", reply: func(n int, _ []*schema.Message, withTools bool) (*schema.Message, error) {
		if withTools {
			return toolTurn(n), nil
		}
		return nil, errors.New("overloaded")
	}}
	ag := New(Options{Models: []string{"a:m"}, MaxIterations: 2, Providers: lookup(p)})

	reply, err := ag.Run(context.Background(), Request{Messages: []*schema.Message{schema.UserMessage("x")}, Tools: reg})
	require.NoError(t, err)
	assert.Equal(t, summaryFallback, reply.Text)
}

func TestRun_IterationLimitKeepsPartialText(t *testing.T) {
	reg, _ := newTools(t)
	p := &scriptedProvider{id: "a", reply: func(n int, _ []*schema.Message, withTools bool) (*schema.Message, error) {
		if withTools {
			turn := toolTurn(n)
			turn.Content = fmt.Sprintf("partial finding #%d", n)
			return turn, nil
		}
		return nil, errors.New("overloaded")
	}}
	ag := New(Options{Models: []string{"a:m"}, MaxIterations: 5, Providers: lookup(p)})

	reply, err := ag.Run(context.Background(), Request{Messages: []*schema.Message{schema.UserMessage("x")}, Tools: reg})
	require.NoError(t, err)
	assert.True(t, reply.LimitReached)
	assert.Equal(t, "partial finding #6", reply.Text)
	// no summary call when text is already available
	assert.Equal(t, 6, p.calls)
}

func TestRun_NoFallbackAfterToolDispatch(t *testing.T) {
	reg, pt := newTools(t)
	bad := &scriptedProvider{id: "a", reply: func(n int, _ []*schema.Message, _ bool) (*schema.Message, error) {
		if n == 1 {
			return toolTurn(n), nil
		}
		return nil, errors.New("api 500")
	}}
	good := &scriptedProvider{id: "b", reply: func(n int, _ []*schema.Message, _ bool) (*schema.Message, error) {
		if n == 1 {
			return toolTurn(n), nil
		}
		return schema.AssistantMessage("from b", nil), nil
	}}
	ag := New(Options{Models: []string{"a:m", "b:m"}, Providers: lookup(bad, good)})

	_, err := ag.Run(context.Background(), Request{Messages: []*schema.Message{schema.UserMessage("x")}, Tools: reg})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrToolsDispatched)
	assert.Contains(t, err.Error(), "api 500")
	assert.Equal(t, 1, pt.runs)
	assert.Equal(t, 0, good.calls)
}

func TestRun_ModelFallback(t *testing.T) {
	bad := &scriptedProvider{id: "a", reply: func(int, []*schema.Message, bool) (*schema.Message, error) {
		return nil, errors.New("rate limited")
	}}
	good := &scriptedProvider{id: "b", reply: func(int, []*schema.Message, bool) (*schema.Message, error) {
		return schema.AssistantMessage("from b", nil), nil
	}}
	ag := New(Options{Models: []string{"a:m", "missing:m", "b:m"}, Providers: lookup(bad, good)})

	reply, err := ag.Run(context.Background(), Request{Messages: []*schema.Message{schema.UserMessage("x")}})
	require.NoError(t, err)
	assert.Equal(t, "b:m", reply.Model)

	_, err = New(Options{Models: []string{"a:m"}, Providers: lookup(bad)}).Run(context.Background(), Request{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")

	_, err = New(Options{Providers: lookup(bad)}).Run(context.Background(), Request{})
	require.Error(t, err)
}

func TestChat_RecordsHistory(t *testing.T) {
	p := &scriptedProvider{id: "a", reply: func(n int, msgs []*schema.Message, _ bool) (*schema.Message, error) {
		return schema.AssistantMessage(fmt.Sprintf("reply %d with %d msgs", n, len(msgs)), nil), nil
	}}
	ag := New(Options{Models: []string{"a:m"}, Providers: lookup(p)})
	sess := session.NewManager().GetOrCreate("42")

	assert.Equal(t, "reply 1 with 2 msgs", ag.Chat(context.Background(), sess, "sys", "hello", nil))
	assert.Equal(t, "reply 2 with 4 msgs", ag.Chat(context.Background(), sess, "sys", "again", nil))
	assert.Equal(t, 4, sess.Len())
}

func TestChat_FailureReply(t *testing.T) {
	ag := New(Options{Models: []string{"a:m"}, Providers: lookup()})
	sess := session.NewManager().GetOrCreate("42")

	assert.Equal(t, unavailableReply, ag.Chat(context.Background(), sess, "", "hello", nil))
	assert.Equal(t, 0, sess.Len())
}

func TestReplyText_JoinsParts(t *testing.T) {
	msg := &schema.Message{
		Role:    schema.Assistant,
		Content: "first",
		AssistantGenMultiContent: []schema.MessageOutputPart{
			{Type: schema.ChatMessagePartTypeText, Text: "second"},
		},
	}
	assert.Equal(t, "first\nsecond", replyText(msg))
	assert.Equal(t, "", replyText(nil))
}
