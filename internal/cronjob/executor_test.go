package cronjob

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/tgifai/macmate/internal/agent"
	"github.com/tgifai/macmate/internal/agent/tool/macx"
	"github.com/tgifai/macmate/internal/macagent"
	"github.com/tgifai/macmate/internal/provider"
)

type sentMessage struct {
	chatID string
	text   string
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentMessage
	ch   chan sentMessage
	err  error
}

func newFakeSender() *fakeSender {
	return &fakeSender{ch: make(chan sentMessage, 16)}
}

func (f *fakeSender) SendMessage(_ context.Context, chatID, text string) error {
	f.mu.Lock()
	f.sent = append(f.sent, sentMessage{chatID: chatID, text: text})
	f.mu.Unlock()
	select {
	case f.ch <- sentMessage{chatID: chatID, text: text}:
	default:
	}
	return f.err
}

func (f *fakeSender) messages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.sent...)
}

type fakeRunner struct {
	mu   sync.Mutex
	reqs []agent.Request
	run  func(req agent.Request) (*agent.Reply, error)
}

func (f *fakeRunner) Run(_ context.Context, req agent.Request) (*agent.Reply, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()
	if f.run == nil {
		return &agent.Reply{Text: "done"}, nil
	}
	return f.run(req)
}

func (f *fakeRunner) requests() []agent.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]agent.Request(nil), f.reqs...)
}

func textRunner(text string) *fakeRunner {
	return &fakeRunner{run: func(agent.Request) (*agent.Reply, error) {
		return &agent.Reply{Text: text}, nil
	}}
}

func newTestExecutor(t *testing.T, s *Store, r Runner, snd Sender) *Executor {
	t.Helper()
	tools, err := macx.ScheduledTools(&recordingCaller{})
	if err != nil {
		t.Fatalf("ScheduledTools: %v", err)
	}
	e := NewExecutor(s, r, snd, ExecutorOptions{Tools: tools})
	e.now = s.now
	return e
}

func TestExecutor_DeliversResult(t *testing.T) {
	s := newTestStore(t)
	task := mustAdd(t, s, NewTask{ChatID: "-100", Prompt: "summarise my day", Description: "Daily summary",
		Frequency: FrequencyDaily, TimeSpec: "09:00", UseTools: true})
	s.now = func() time.Time { return time.Date(2025, 1, 1, 9, 0, 5, 0, time.UTC) }

	runner := textRunner("Three meetings today.")
	sender := newFakeSender()
	e := newTestExecutor(t, s, runner, sender)

	if err := e.Execute(context.Background(), task); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	msgs := sender.messages()
	if len(msgs) != 1 {
		t.Fatalf("want 1 message, got %d", len(msgs))
	}
	if msgs[0].chatID != "-100" || msgs[0].text != "[Scheduled Task: Daily summary]\n\nThree meetings today." {
		t.Fatalf("unexpected message %+v", msgs[0])
	}

	got, _ := s.Get(task.ID)
	if got.RunCount != 1 || got.LastRun == nil {
		t.Fatalf("run not recorded: %+v", got)
	}
	if !got.NextRun.Equal(time.Date(2025, 1, 2, 9, 0, 0, 0, time.UTC)) {
		t.Fatalf("next run: %v", got.NextRun)
	}

	req := runner.requests()[0]
	if req.Tools == nil || len(req.Messages) != 1 || req.Messages[0].Content != "summarise my day" {
		t.Fatalf("unexpected request: %+v", req)
	}
	if req.MaxIterations != defaultToolIteration || req.MaxTokens != defaultMaxTokens {
		t.Fatalf("limits: iterations=%d tokens=%d", req.MaxIterations, req.MaxTokens)
	}
	if !strings.Contains(req.System, "Task Description: Daily summary") || !strings.Contains(req.System, "Run Count: 1") {
		t.Fatalf("system prompt:\n%s", req.System)
	}
}

func TestExecutor_NoToolsWhenDisabled(t *testing.T) {
	s := newTestStore(t)
	task := mustAdd(t, s, NewTask{Prompt: "tell me a joke", Frequency: FrequencyHourly, TimeSpec: "0"})

	runner := textRunner("ha")
	e := newTestExecutor(t, s, runner, newFakeSender())
	if err := e.Execute(context.Background(), task); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if runner.requests()[0].Tools != nil {
		t.Fatal("tools advertised for a task without use_tools")
	}
}

func TestExecutor_EmptyReplySendsNothing(t *testing.T) {
	s := newTestStore(t)
	task := mustAdd(t, s, NewTask{Prompt: "x", Frequency: FrequencyHourly, TimeSpec: "0"})

	sender := newFakeSender()
	e := newTestExecutor(t, s, textRunner(""), sender)
	if err := e.Execute(context.Background(), task); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(sender.messages()) != 0 {
		t.Fatalf("unexpected messages: %+v", sender.messages())
	}
	if got, _ := s.Get(task.ID); got.RunCount != 1 {
		t.Fatalf("run count %d", got.RunCount)
	}
}

func TestExecutor_FailureNotifiesAndRecords(t *testing.T) {
	s := newTestStore(t)
	task := mustAdd(t, s, NewTask{Prompt: "remind me", Description: "Reminder",
		Frequency: FrequencyOnce, TimeSpec: "2025-01-01T07:00:00"})

	runner := &fakeRunner{run: func(agent.Request) (*agent.Reply, error) {
		return nil, errors.New("all models failed")
	}}
	sender := newFakeSender()
	e := newTestExecutor(t, s, runner, sender)

	if err := e.Execute(context.Background(), task); err == nil {
		t.Fatal("Execute should report the runner failure")
	}

	msgs := sender.messages()
	if len(msgs) != 1 || msgs[0].text != "[Scheduled Task Error]\nTask: Reminder\nError: all models failed" {
		t.Fatalf("unexpected error notice: %+v", msgs)
	}
	got, _ := s.Get(task.ID)
	if got.Enabled || got.RunCount != 1 {
		t.Fatalf("failed once task should still be recorded and disabled: %+v", got)
	}
}

func TestExecutor_RecoversPanic(t *testing.T) {
	s := newTestStore(t)
	task := mustAdd(t, s, NewTask{Prompt: "x", Description: "Boom", Frequency: FrequencyDaily, TimeSpec: "09:00"})

	runner := &fakeRunner{run: func(agent.Request) (*agent.Reply, error) { panic("nil map") }}
	sender := newFakeSender()
	e := newTestExecutor(t, s, runner, sender)

	err := e.Execute(context.Background(), task)
	if err == nil || !strings.Contains(err.Error(), "nil map") {
		t.Fatalf("want panic error, got %v", err)
	}
	if msgs := sender.messages(); len(msgs) != 1 || !strings.HasPrefix(msgs[0].text, "[Scheduled Task Error]") {
		t.Fatalf("unexpected messages: %+v", msgs)
	}
	if got, _ := s.Get(task.ID); got.RunCount != 1 {
		t.Fatalf("run count %d", got.RunCount)
	}
}

func TestExecutor_DeliveryFailure(t *testing.T) {
	s := newTestStore(t)
	task := mustAdd(t, s, NewTask{Prompt: "x", Frequency: FrequencyDaily, TimeSpec: "09:00"})

	sender := newFakeSender()
	sender.err = errors.New("chat not found")
	e := newTestExecutor(t, s, textRunner("hello"), sender)

	err := e.Execute(context.Background(), task)
	if err == nil || !strings.Contains(err.Error(), "deliver result") {
		t.Fatalf("want delivery error, got %v", err)
	}
}

func TestExecutor_CustomIntervalAdvancesFromRun(t *testing.T) {
	s := newTestStore(t)
	task := mustAdd(t, s, NewTask{Prompt: "check the build", Frequency: FrequencyCustom, TimeSpec: "30"})
	if !task.NextRun.Equal(t0.Add(30 * time.Minute)) {
		t.Fatalf("first run: %v", task.NextRun)
	}

	ranAt := t0.Add(31 * time.Minute)
	s.now = func() time.Time { return ranAt }
	e := newTestExecutor(t, s, textRunner("green"), newFakeSender())
	if err := e.Execute(context.Background(), task); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	got, _ := s.Get(task.ID)
	if !got.NextRun.Equal(ranAt.Add(30 * time.Minute)) {
		t.Fatalf("next run: want %v, got %v", ranAt.Add(30*time.Minute), got.NextRun)
	}
}

func TestBuildSystemPrompt(t *testing.T) {
	task := Task{Description: "Backup check", CreatedAt: t0, RunCount: 3}
	prompt := BuildSystemPrompt(task)
	for _, want := range []string{"Task Description: Backup check", "Task Created: 2025-01-01T08:00:00Z", "Run Count: 4"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestResultHeader_Truncates(t *testing.T) {
	task := Task{Description: "A description that is definitely longer than thirty characters"}
	want := "[Scheduled Task: " + task.Description[:30] + "]\n\n"
	if got := ResultHeader(task); got != want {
		t.Fatalf("want %q, got %q", want, got)
	}
}

// recordingCaller stands in for the Mac agent.
type recordingCaller struct {
	mu      sync.Mutex
	actions []string
}

func (c *recordingCaller) Call(_ context.Context, action string, _ map[string]any) macagent.Result {
	c.mu.Lock()
	c.actions = append(c.actions, action)
	c.mu.Unlock()
	return macagent.Result{"success": true, "status": "online"}
}

// greedyProvider asks for a tool on every turn that advertises tools and
// answers in text otherwise.
type greedyProvider struct {
	calls int
}

func (p *greedyProvider) ID() string          { return "fake" }
func (p *greedyProvider) Type() provider.Type { return provider.Type("fake") }
func (p *greedyProvider) Close() error        { return nil }

func (p *greedyProvider) Generate(_ context.Context, _ string, _ []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	p.calls++
	o := model.GetCommonOptions(&model.Options{}, opts...)
	if len(o.Tools) == 0 {
		return schema.AssistantMessage("Mac is online.", nil), nil
	}
	return schema.AssistantMessage("", []schema.ToolCall{{
		ID:       fmt.Sprintf("call_%d", p.calls),
		Function: schema.FunctionCall{Name: "check_mac_status", Arguments: "{}"},
	}}), nil
}

func TestExecutor_ToolLimitStillDelivers(t *testing.T) {
	s := newTestStore(t)
	task := mustAdd(t, s, NewTask{Prompt: "is my mac up?", Description: "Mac check",
		Frequency: FrequencyHourly, TimeSpec: "0", UseTools: true})

	p := &greedyProvider{}
	ag := agent.New(agent.Options{
		Models: []string{"fake:model"},
		Providers: func(id string) (provider.Provider, error) {
			if id != "fake" {
				return nil, fmt.Errorf("unknown provider %s", id)
			}
			return p, nil
		},
	})

	caller := &recordingCaller{}
	tools, err := macx.ScheduledTools(caller)
	if err != nil {
		t.Fatalf("ScheduledTools: %v", err)
	}
	sender := newFakeSender()
	e := NewExecutor(s, ag, sender, ExecutorOptions{Tools: tools})

	if err := e.Execute(context.Background(), task); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	msgs := sender.messages()
	if len(msgs) != 1 || msgs[0].text != "[Scheduled Task: Mac check]\n\nMac is online." {
		t.Fatalf("unexpected delivery: %+v", msgs)
	}
	if len(caller.actions) != defaultToolIteration {
		t.Fatalf("want %d tool executions, got %d", defaultToolIteration, len(caller.actions))
	}
	// first call, one per iteration, then the summary
	if p.calls != defaultToolIteration+2 {
		t.Fatalf("want %d model calls, got %d", defaultToolIteration+2, p.calls)
	}
}
