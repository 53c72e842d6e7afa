package macx

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tgifai/macmate/internal/macagent"
)

type recordedCall struct {
	action string
	params map[string]any
}

type fakeCaller struct {
	calls   []recordedCall
	res     macagent.Result
	respond func(action string) macagent.Result
}

func (f *fakeCaller) Call(_ context.Context, action string, params map[string]any) macagent.Result {
	f.calls = append(f.calls, recordedCall{action: action, params: params})
	if f.respond != nil {
		return f.respond(action)
	}
	if f.res != nil {
		return f.res
	}
	return macagent.Result{"success": true, "output": "ok"}
}

func toolCall(name, args string) schema.ToolCall {
	return schema.ToolCall{ID: "call_1", Function: schema.FunctionCall{Name: name, Arguments: args}}
}

func decode(t *testing.T, s string) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	require.NoError(t, sonic.UnmarshalString(s, &m))
	return m
}

func TestScheduledTools_AllowList(t *testing.T) {
	reg, err := ScheduledTools(&fakeCaller{})
	require.NoError(t, err)
	require.NoError(t, reg.Validate())

	assert.Equal(t, []string{
		"check_mac_status",
		"execute_applescript",
		"execute_javascript_in_chrome",
		"execute_mac_command",
		"read_mac_file",
		"take_screenshot",
	}, reg.Names())
	assert.Equal(t, ScheduledScope, reg.Scope())
}

func TestInteractiveTools_Superset(t *testing.T) {
	reg, err := InteractiveTools(&fakeCaller{})
	require.NoError(t, err)
	require.NoError(t, reg.Validate())

	names := reg.Names()
	assert.Contains(t, names, "list_mac_windows")
	assert.Contains(t, names, "scroll_page")
	assert.Len(t, names, 8)
}

func TestScheduledTools_ActionMapping(t *testing.T) {
	cases := []struct {
		tool   string
		args   string
		action string
		params map[string]any
	}{
		{"execute_mac_command", `{"command":"uptime"}`, macagent.ActionExecute, map[string]any{"command": "uptime"}},
		{"execute_applescript", `{"script":"beep"}`, macagent.ActionAppleScript, map[string]any{"script": "beep"}},
		{"read_mac_file", `{"filepath":"/tmp/a.txt"}`, macagent.ActionReadFile, map[string]any{"filepath": "/tmp/a.txt"}},
		{"take_screenshot", `{}`, macagent.ActionScreenshot, map[string]any{"mode": "full"}},
		{"take_screenshot", `{"mode":"window","app_name":"Safari"}`, macagent.ActionScreenshot, map[string]any{"mode": "window", "app_name": "Safari"}},
		{"execute_javascript_in_chrome", `{"js_code":"1+1"}`, macagent.ActionExecuteJS, map[string]any{"js_code": "1+1"}},
		{"check_mac_status", ``, macagent.ActionPing, nil},
	}

	for _, tc := range cases {
		t.Run(tc.tool, func(t *testing.T) {
			caller := &fakeCaller{}
			reg, err := ScheduledTools(caller)
			require.NoError(t, err)

			out := decode(t, reg.Dispatch(context.Background(), toolCall(tc.tool, tc.args)))
			assert.Equal(t, true, out["success"])
			require.Len(t, caller.calls, 1)
			assert.Equal(t, tc.action, caller.calls[0].action)
			assert.Equal(t, tc.params, caller.calls[0].params)
		})
	}
}

func TestScheduledTools_MissingArgument(t *testing.T) {
	caller := &fakeCaller{}
	reg, err := ScheduledTools(caller)
	require.NoError(t, err)

	out := decode(t, reg.Dispatch(context.Background(), toolCall("execute_mac_command", `{"command":"  "}`)))
	assert.Equal(t, false, out["success"])
	assert.Equal(t, "command is required", out["error"])
	assert.Empty(t, caller.calls)
}

func TestScheduledTools_RejectsInteractiveOnly(t *testing.T) {
	caller := &fakeCaller{}
	reg, err := ScheduledTools(caller)
	require.NoError(t, err)

	out := decode(t, reg.Dispatch(context.Background(), toolCall("scroll_page", `{}`)))
	assert.Equal(t, false, out["success"])
	assert.Equal(t, "Tool scroll_page not available for scheduled tasks", out["error"])
	assert.Empty(t, caller.calls)
}

func TestAgentFailurePassesThrough(t *testing.T) {
	caller := &fakeCaller{res: macagent.Result{"success": false, "error": "Connection timed out"}}
	reg, err := ScheduledTools(caller)
	require.NoError(t, err)

	out := decode(t, reg.Dispatch(context.Background(), toolCall("check_mac_status", `{}`)))
	assert.Equal(t, false, out["success"])
	assert.Equal(t, "Connection timed out", out["error"])
}

func TestScrollPage_Defaults(t *testing.T) {
	caller := &fakeCaller{}
	reg, err := InteractiveTools(caller)
	require.NoError(t, err)

	decode(t, reg.Dispatch(context.Background(), toolCall("scroll_page", `{}`)))
	require.Len(t, caller.calls, 1)
	assert.Equal(t, map[string]any{"app_name": "Google Chrome", "direction": "down", "amount": 3}, caller.calls[0].params)

	out := decode(t, reg.Dispatch(context.Background(), toolCall("scroll_page", `{"direction":"sideways"}`)))
	assert.Equal(t, false, out["success"])
	assert.Len(t, caller.calls, 1)
}

type sentPhoto struct {
	data    []byte
	caption string
}

func screenshotCaller(imageData string) *fakeCaller {
	return &fakeCaller{respond: func(action string) macagent.Result {
		switch action {
		case macagent.ActionScreenshot:
			return macagent.Result{"success": true, "filepath": "/Users/me/Desktop/screenshot_1.png"}
		case macagent.ActionReadImage:
			return macagent.Result{"success": true, "image_data": imageData}
		}
		return macagent.Result{"success": false, "error": "Unknown action"}
	}}
}

func TestInteractiveScreenshot_SentToChat(t *testing.T) {
	png := []byte("\x89PNG fake")
	caller := screenshotCaller(base64.StdEncoding.EncodeToString(png))
	reg, err := InteractiveTools(caller)
	require.NoError(t, err)

	var sent []sentPhoto
	ctx := WithPhotoSink(context.Background(), func(_ context.Context, photo []byte, caption string) error {
		sent = append(sent, sentPhoto{data: photo, caption: caption})
		return nil
	})

	out := decode(t, reg.Dispatch(ctx, toolCall("take_screenshot", `{}`)))
	assert.Equal(t, true, out["success"])
	assert.Equal(t, true, out["sent_to_chat"])
	assert.NotContains(t, out, "image_data")

	require.Len(t, caller.calls, 2)
	assert.Equal(t, macagent.ActionReadImage, caller.calls[1].action)
	assert.Equal(t, map[string]any{"filepath": "/Users/me/Desktop/screenshot_1.png"}, caller.calls[1].params)

	require.Len(t, sent, 1)
	assert.Equal(t, png, sent[0].data)
	assert.Equal(t, screenshotCaption, sent[0].caption)
}

func TestInteractiveScreenshot_DeliveryFailureKeepsResult(t *testing.T) {
	caller := screenshotCaller(base64.StdEncoding.EncodeToString([]byte("img")))
	reg, err := InteractiveTools(caller)
	require.NoError(t, err)

	ctx := WithPhotoSink(context.Background(), func(context.Context, []byte, string) error {
		return errors.New("chat gone")
	})
	out := decode(t, reg.Dispatch(ctx, toolCall("take_screenshot", `{}`)))
	assert.Equal(t, true, out["success"])
	assert.Equal(t, false, out["sent_to_chat"])
	assert.Equal(t, "chat gone", out["delivery_error"])

	bad := screenshotCaller("%%%not base64")
	reg, err = InteractiveTools(bad)
	require.NoError(t, err)
	out = decode(t, reg.Dispatch(ctx, toolCall("take_screenshot", `{}`)))
	assert.Equal(t, false, out["sent_to_chat"])
}

func TestScreenshot_NoSinkOrScheduled(t *testing.T) {
	caller := screenshotCaller("aW1n")
	reg, err := InteractiveTools(caller)
	require.NoError(t, err)
	out := decode(t, reg.Dispatch(context.Background(), toolCall("take_screenshot", `{}`)))
	assert.Equal(t, "/Users/me/Desktop/screenshot_1.png", out["filepath"])
	assert.Len(t, caller.calls, 1)

	sinkCalled := false
	ctx := WithPhotoSink(context.Background(), func(context.Context, []byte, string) error {
		sinkCalled = true
		return nil
	})
	scheduled := screenshotCaller("aW1n")
	reg, err = ScheduledTools(scheduled)
	require.NoError(t, err)
	out = decode(t, reg.Dispatch(ctx, toolCall("take_screenshot", `{}`)))
	assert.Equal(t, true, out["success"])
	assert.NotContains(t, out, "sent_to_chat")
	assert.Len(t, scheduled.calls, 1)
	assert.False(t, sinkCalled)
}
