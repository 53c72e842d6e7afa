package tool

import (
	"context"
	"errors"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTool struct {
	name     string
	infoName string
	desc     string
	run      func(args map[string]interface{}) (interface{}, error)
}

func (s *stubTool) Name() string        { return s.name }
func (s *stubTool) Description() string { return s.desc }

func (s *stubTool) ToolInfo() *schema.ToolInfo {
	name := s.infoName
	if name == "" {
		name = s.name
	}
	return &schema.ToolInfo{
		Name: name,
		Desc: s.desc,
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"input": {Type: schema.String, Desc: "input", Required: true},
		}),
	}
}

func (s *stubTool) Execute(_ context.Context, args map[string]interface{}) (interface{}, error) {
	return s.run(args)
}

func call(name, args string) schema.ToolCall {
	return schema.ToolCall{ID: "call_1", Function: schema.FunctionCall{Name: name, Arguments: args}}
}

func decode(t *testing.T, s string) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, sonic.UnmarshalString(s, &out))
	return out
}

func echoTool(name string) *stubTool {
	return &stubTool{name: name, desc: "echo", run: func(args map[string]interface{}) (interface{}, error) {
		return map[string]interface{}{"success": true, "echo": args["input"]}, nil
	}}
}

func TestRegistry_RegisterRejectsDuplicates(t *testing.T) {
	_, err := NewRegistry("test", echoTool("a"), echoTool("a"))
	require.Error(t, err)

	reg, err := NewRegistry("test", echoTool("b"), echoTool("a"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, reg.Names())
	assert.Len(t, reg.ListToolInfos(), 2)
}

func TestRegistry_Validate(t *testing.T) {
	reg, err := NewRegistry("test", echoTool("ok"))
	require.NoError(t, err)
	require.NoError(t, reg.Validate())

	require.NoError(t, reg.Register(&stubTool{name: "mismatch", infoName: "other", desc: "d"}))
	require.NoError(t, reg.Register(&stubTool{name: "nodesc"}))
	err = reg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mismatch")
	assert.Contains(t, err.Error(), "nodesc")
}

func TestRegistry_DispatchSuccess(t *testing.T) {
	reg, err := NewRegistry("scheduled tasks", echoTool("echo"))
	require.NoError(t, err)

	out := decode(t, reg.Dispatch(context.Background(), call("echo", `{"input":"hi"}`)))
	assert.Equal(t, true, out["success"])
	assert.Equal(t, "hi", out["echo"])
}

func TestRegistry_DispatchUnknownTool(t *testing.T) {
	reg, err := NewRegistry("scheduled tasks")
	require.NoError(t, err)

	out := decode(t, reg.Dispatch(context.Background(), call("order_uber", `{}`)))
	assert.Equal(t, false, out["success"])
	assert.Equal(t, "Tool order_uber not available for scheduled tasks", out["error"])
}

func TestRegistry_DispatchFailures(t *testing.T) {
	reg, err := NewRegistry("test",
		&stubTool{name: "fails", desc: "d", run: func(map[string]interface{}) (interface{}, error) {
			return nil, errors.New("boom")
		}},
		&stubTool{name: "panics", desc: "d", run: func(map[string]interface{}) (interface{}, error) {
			panic("kaput")
		}},
		&stubTool{name: "nil", desc: "d", run: func(map[string]interface{}) (interface{}, error) {
			return nil, nil
		}},
		echoTool("echo"),
	)
	require.NoError(t, err)
	ctx := context.Background()

	out := decode(t, reg.Dispatch(ctx, call("fails", "")))
	assert.Equal(t, false, out["success"])
	assert.Equal(t, "boom", out["error"])

	out = decode(t, reg.Dispatch(ctx, call("panics", "")))
	assert.Equal(t, false, out["success"])
	assert.Contains(t, out["error"], "kaput")

	out = decode(t, reg.Dispatch(ctx, call("echo", "{not json")))
	assert.Equal(t, false, out["success"])
	assert.Contains(t, out["error"], "failed to parse tool arguments")

	assert.Equal(t, "{}", reg.Dispatch(ctx, call("nil", "")))
}
