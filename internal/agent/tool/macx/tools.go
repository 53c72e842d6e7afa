package macx

import (
	"context"
	"fmt"
	"strings"

	"github.com/bytedance/gg/gconv"
	"github.com/cloudwego/eino/schema"

	"github.com/tgifai/macmate/internal/agent/tool"
	"github.com/tgifai/macmate/internal/macagent"
	"github.com/tgifai/macmate/internal/pkg/logs"
)

const (
	ScheduledScope   = "scheduled tasks"
	InteractiveScope = "this chat"
)

// Caller is the part of macagent.Client the tools need.
type Caller interface {
	Call(ctx context.Context, action string, params map[string]any) macagent.Result
}

type argMapper func(args map[string]interface{}) (map[string]any, error)

// agentTool forwards one model-facing tool to exactly one agent action and
// returns the agent's result unmodified.
type agentTool struct {
	name   string
	desc   string
	action string
	params map[string]*schema.ParameterInfo
	mapArg argMapper
	caller Caller
}

func (t *agentTool) Name() string {
	return t.name
}

func (t *agentTool) Description() string {
	return t.desc
}

func (t *agentTool) ToolInfo() *schema.ToolInfo {
	info := &schema.ToolInfo{
		Name: t.name,
		Desc: t.desc,
	}
	if len(t.params) > 0 {
		info.ParamsOneOf = schema.NewParamsOneOfByParams(t.params)
	}
	return info
}

func (t *agentTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	var params map[string]any
	if t.mapArg != nil {
		var err error
		if params, err = t.mapArg(args); err != nil {
			return nil, err
		}
	}

	res := t.caller.Call(ctx, t.action, params)
	if res == nil {
		return map[string]interface{}{"success": false, "error": "empty agent result"}, nil
	}
	logs.CtxInfo(ctx, "[tool:%s] %s -> success=%v", t.name, t.action, res.Success())
	return map[string]interface{}(res), nil
}

func requiredString(args map[string]interface{}, key string) (string, error) {
	v := strings.TrimSpace(gconv.To[string](args[key]))
	if v == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	return v, nil
}

func optionalString(args map[string]interface{}, key, def string) string {
	if v := strings.TrimSpace(gconv.To[string](args[key])); v != "" {
		return v
	}
	return def
}

// passString forwards a single required string argument under the agent's key.
func passString(argKey, agentKey string) argMapper {
	return func(args map[string]interface{}) (map[string]any, error) {
		v, err := requiredString(args, argKey)
		if err != nil {
			return nil, err
		}
		return map[string]any{agentKey: v}, nil
	}
}

func stringParam(desc string, required bool) *schema.ParameterInfo {
	return &schema.ParameterInfo{Type: schema.String, Desc: desc, Required: required}
}

func screenshotTool(c Caller) *agentTool {
	return &agentTool{
		name:   "take_screenshot",
		desc:   "Take a screenshot of the whole screen or of one application window",
		action: macagent.ActionScreenshot,
		params: map[string]*schema.ParameterInfo{
			"mode":     stringParam(`"full" for the whole screen or "window" for one app`, false),
			"app_name": stringParam("Application to capture when mode is window", false),
		},
		mapArg: func(args map[string]interface{}) (map[string]any, error) {
			params := map[string]any{"mode": optionalString(args, "mode", "full")}
			if app := optionalString(args, "app_name", ""); app != "" {
				params["app_name"] = app
			}
			return params, nil
		},
		caller: c,
	}
}

func scheduledTools(c Caller) []tool.Tool {
	return []tool.Tool{
		&agentTool{
			name:   "execute_mac_command",
			desc:   "Run a shell command on the Mac and return stdout, stderr and the exit code",
			action: macagent.ActionExecute,
			params: map[string]*schema.ParameterInfo{
				"command": stringParam("Shell command to execute", true),
			},
			mapArg: passString("command", "command"),
			caller: c,
		},
		&agentTool{
			name:   "execute_applescript",
			desc:   "Run an AppleScript on the Mac",
			action: macagent.ActionAppleScript,
			params: map[string]*schema.ParameterInfo{
				"script": stringParam("AppleScript source", true),
			},
			mapArg: passString("script", "script"),
			caller: c,
		},
		&agentTool{
			name:   "read_mac_file",
			desc:   "Read a text file from the Mac",
			action: macagent.ActionReadFile,
			params: map[string]*schema.ParameterInfo{
				"filepath": stringParam("Absolute path of the file", true),
			},
			mapArg: passString("filepath", "filepath"),
			caller: c,
		},
		screenshotTool(c),
		&agentTool{
			name:   "execute_javascript_in_chrome",
			desc:   "Execute JavaScript in the active Google Chrome tab and return the result",
			action: macagent.ActionExecuteJS,
			params: map[string]*schema.ParameterInfo{
				"js_code": stringParam("JavaScript to evaluate", true),
			},
			mapArg: passString("js_code", "js_code"),
			caller: c,
		},
		&agentTool{
			name:   "check_mac_status",
			desc:   "Check whether the Mac agent is reachable",
			action: macagent.ActionPing,
			caller: c,
		},
	}
}

func interactiveExtras(c Caller) []tool.Tool {
	return []tool.Tool{
		&agentTool{
			name:   "list_mac_windows",
			desc:   "List open application windows on the Mac",
			action: macagent.ActionListWindows,
			caller: c,
		},
		&agentTool{
			name:   "scroll_page",
			desc:   "Scroll the frontmost window of an application",
			action: macagent.ActionScroll,
			params: map[string]*schema.ParameterInfo{
				"app_name":  stringParam("Application to scroll, defaults to Google Chrome", false),
				"direction": stringParam(`"up" or "down"`, false),
				"amount":    {Type: schema.Integer, Desc: "Number of scroll steps, defaults to 3"},
			},
			mapArg: func(args map[string]interface{}) (map[string]any, error) {
				direction := strings.ToLower(optionalString(args, "direction", "down"))
				if direction != "up" && direction != "down" {
					return nil, fmt.Errorf("direction must be up or down, got %q", direction)
				}
				amount := gconv.To[int](args["amount"])
				if amount <= 0 {
					amount = 3
				}
				return map[string]any{
					"app_name":  optionalString(args, "app_name", "Google Chrome"),
					"direction": direction,
					"amount":    amount,
				}, nil
			},
			caller: c,
		},
	}
}

// ScheduledTools is the allow-list exposed to unattended task runs.
func ScheduledTools(c Caller) (*tool.Registry, error) {
	return tool.NewRegistry(ScheduledScope, scheduledTools(c)...)
}

// InteractiveTools is the scheduled set plus window helpers for live chat.
// Screenshots taken in chat are also posted to the conversation.
func InteractiveTools(c Caller) (*tool.Registry, error) {
	tools := scheduledTools(c)
	for i, t := range tools {
		if t.Name() == "take_screenshot" {
			tools[i] = &chatScreenshot{agentTool: screenshotTool(c)}
		}
	}
	tools = append(tools, interactiveExtras(c)...)
	return tool.NewRegistry(InteractiveScope, tools...)
}
