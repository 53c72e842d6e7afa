package tool

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/eino/schema"

	"github.com/tgifai/macmate/internal/pkg/logs"
	mprom "github.com/tgifai/macmate/internal/pkg/prometheus"
)

type Tool interface {
	Name() string

	Description() string

	ToolInfo() *schema.ToolInfo

	Execute(ctx context.Context, args map[string]interface{}) (interface{}, error)
}

// Registry maps tool names to typed tools. scope names the context the set
// is exposed in and appears in "not available" results.
type Registry struct {
	scope string
	tools map[string]Tool
	mu    sync.RWMutex
}

func NewRegistry(scope string, tools ...Tool) (*Registry, error) {
	reg := &Registry{
		scope: scope,
		tools: make(map[string]Tool, len(tools)),
	}
	for _, t := range tools {
		if err := reg.Register(t); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func (r *Registry) Register(tool Tool) error {
	if tool == nil {
		return fmt.Errorf("tool cannot be nil")
	}

	name := tool.Name()
	if name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool already registered: %s", name)
	}

	r.tools[name] = tool
	logs.Debug("[tool:registry] %s: registered tool %s", r.scope, name)
	return nil
}

func (r *Registry) Scope() string {
	return r.scope
}

func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns tools sorted by name so the advertised schema is stable.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		tools = append(tools, t)
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i].Name() < tools[j].Name() })
	return tools
}

func (r *Registry) Names() []string {
	tools := r.List()
	names := make([]string, len(tools))
	for i, t := range tools {
		names[i] = t.Name()
	}
	return names
}

func (r *Registry) ListToolInfos() []*schema.ToolInfo {
	tools := r.List()
	infos := make([]*schema.ToolInfo, 0, len(tools))
	for _, t := range tools {
		infos = append(infos, t.ToolInfo())
	}
	return infos
}

// Validate checks every registered tool against the schema it advertises.
// Run once at startup.
func (r *Registry) Validate() error {
	var errs []error
	for _, t := range r.List() {
		info := t.ToolInfo()
		switch {
		case info == nil:
			errs = append(errs, fmt.Errorf("tool %s: missing tool info", t.Name()))
			continue
		case info.Name != t.Name():
			errs = append(errs, fmt.Errorf("tool %s: schema declares name %q", t.Name(), info.Name))
		case info.Desc == "":
			errs = append(errs, fmt.Errorf("tool %s: empty description", t.Name()))
		}
		if info.ParamsOneOf != nil {
			if _, err := info.ParamsOneOf.ToJSONSchema(); err != nil {
				errs = append(errs, fmt.Errorf("tool %s: invalid parameters: %w", t.Name(), err))
			}
		}
	}
	return errors.Join(errs...)
}

// Dispatch executes one model-requested call and always yields a JSON result
// for the tool turn. Unknown tools, bad arguments, errors and panics become
// {"success":false,"error":...}.
func (r *Registry) Dispatch(ctx context.Context, call schema.ToolCall) (content string) {
	name := call.Function.Name
	t, ok := r.Get(name)
	if !ok {
		logs.CtxWarn(ctx, "[tool:registry] %s: rejected unknown tool %q", r.scope, name)
		mprom.ToolCalls.WithLabelValues("unknown", mprom.ResultLabel(false)).Inc()
		return failureJSON(fmt.Sprintf("Tool %s not available for %s", name, r.scope))
	}

	defer func() {
		if rec := recover(); rec != nil {
			logs.CtxError(ctx, "[tool:registry] %s: tool %s panicked: %v", r.scope, name, rec)
			mprom.ToolCalls.WithLabelValues(name, mprom.ResultLabel(false)).Inc()
			content = failureJSON(fmt.Sprintf("tool %s crashed: %v", name, rec))
		}
	}()

	args := make(map[string]interface{})
	if call.Function.Arguments != "" {
		if err := sonic.UnmarshalString(call.Function.Arguments, &args); err != nil {
			mprom.ToolCalls.WithLabelValues(name, mprom.ResultLabel(false)).Inc()
			return failureJSON(fmt.Sprintf("failed to parse tool arguments: %v", err))
		}
	}

	res, err := t.Execute(ctx, args)
	if err != nil {
		logs.CtxWarn(ctx, "[tool:registry] %s: tool %s failed: %v", r.scope, name, err)
		mprom.ToolCalls.WithLabelValues(name, mprom.ResultLabel(false)).Inc()
		return failureJSON(err.Error())
	}
	mprom.ToolCalls.WithLabelValues(name, mprom.ResultLabel(succeeded(res))).Inc()

	out, err := sonic.MarshalString(res)
	if err != nil || out == "" || out == "null" {
		return "{}"
	}
	return out
}

func succeeded(res interface{}) bool {
	m, ok := res.(map[string]interface{})
	if !ok {
		return true
	}
	if v, ok := m["success"].(bool); ok {
		return v
	}
	return true
}

func failureJSON(msg string) string {
	out, _ := sonic.MarshalString(map[string]interface{}{"success": false, "error": msg})
	return out
}
