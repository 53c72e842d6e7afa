package cronjob

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/tgifai/macmate/internal/agent"
	"github.com/tgifai/macmate/internal/agent/tool"
	"github.com/tgifai/macmate/internal/pkg/logs"
	mprom "github.com/tgifai/macmate/internal/pkg/prometheus"
	"github.com/tgifai/macmate/internal/pkg/utils"
)

const (
	defaultJobTimeout    = 300 * time.Second
	defaultToolIteration = 5
	defaultMaxTokens     = 2048
	notifyTimeout        = 30 * time.Second
)

const systemPromptTpl = `You are executing a scheduled task for the user.
The user has set up this automated task to run at scheduled times.

Task Description: %s
Task Created: %s
Run Count: %d

Respond to the prompt naturally. If you need to use tools to gather information
(like checking the current time, weather, taking screenshots, etc.), you may do so.
Keep your response concise and focused on the task.`

// Sender delivers text to a chat.
type Sender interface {
	SendMessage(ctx context.Context, chatID, text string) error
}

// Runner is the LLM side of an execution.
type Runner interface {
	Run(ctx context.Context, req agent.Request) (*agent.Reply, error)
}

type ExecutorOptions struct {
	// Tools are advertised to tasks with UseTools set. Nil disables tools.
	Tools         *tool.Registry
	MaxIterations int
	MaxTokens     int
	// Models overrides the runner's model list for scheduled runs.
	Models  []string
	Timeout time.Duration
}

// Executor runs one task end to end and records the run on the store.
type Executor struct {
	store  *Store
	runner Runner
	sender Sender
	opts   ExecutorOptions
	now    func() time.Time
}

func NewExecutor(store *Store, runner Runner, sender Sender, opts ExecutorOptions) *Executor {
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = defaultToolIteration
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = defaultMaxTokens
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultJobTimeout
	}
	return &Executor{
		store:  store,
		runner: runner,
		sender: sender,
		opts:   opts,
		now:    time.Now,
	}
}

// Execute runs task once. Every failure, panics included, is logged and
// reported to the task's chat; the returned error only tells the caller the
// run did not deliver a result. The run is always recorded so once tasks are
// disabled and recurring tasks move forward.
func (e *Executor) Execute(ctx context.Context, task Task) (err error) {
	ctx = logs.WithNewLogID(ctx)
	start := time.Now()
	logs.CtxInfo(ctx, "[cronjob] executing task %s: %s", task.ID, task.Description)

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("task panicked: %v", rec)
		}
		if err != nil {
			logs.CtxError(ctx, "[cronjob] task %s failed: %v", task.ID, err)
			e.notifyFailure(ctx, task, err)
		} else {
			logs.CtxInfo(ctx, "[cronjob] task %s completed in %s", task.ID, time.Since(start).Round(time.Millisecond))
		}
		if _, ok := e.store.RecordRun(task.ID, e.now()); !ok {
			logs.CtxWarn(ctx, "[cronjob] task %s was removed while running", task.ID)
		}
		mprom.TaskRuns.WithLabelValues(mprom.ResultLabel(err == nil)).Inc()
		mprom.TaskRunDuration.Observe(time.Since(start).Seconds())
	}()

	runCtx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()

	req := agent.Request{
		System:        BuildSystemPrompt(task),
		Messages:      []*schema.Message{schema.UserMessage(task.Prompt)},
		MaxIterations: e.opts.MaxIterations,
		MaxTokens:     e.opts.MaxTokens,
		Models:        e.opts.Models,
	}
	if task.UseTools {
		req.Tools = e.opts.Tools
	}

	reply, err := e.runner.Run(runCtx, req)
	if err != nil {
		return err
	}
	if reply.LimitReached {
		logs.CtxWarn(ctx, "[cronjob] task %s hit the tool iteration limit", task.ID)
	}
	if reply.Text == "" {
		logs.CtxWarn(ctx, "[cronjob] task %s produced no text", task.ID)
		return nil
	}

	if err := e.sender.SendMessage(ctx, task.ChatID, ResultHeader(task)+reply.Text); err != nil {
		return fmt.Errorf("deliver result: %w", err)
	}
	return nil
}

func (e *Executor) notifyFailure(ctx context.Context, task Task, cause error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	msg := fmt.Sprintf("[Scheduled Task Error]\nTask: %s\nError: %v", task.Description, cause)
	if err := e.sender.SendMessage(ctx, task.ChatID, msg); err != nil {
		logs.CtxWarn(ctx, "[cronjob] error notice for task %s not delivered: %v", task.ID, err)
	}
}

// BuildSystemPrompt describes the task and its upcoming run number.
func BuildSystemPrompt(task Task) string {
	return fmt.Sprintf(systemPromptTpl, task.Description, task.CreatedAt.Format(time.RFC3339), task.RunCount+1)
}

func ResultHeader(task Task) string {
	return fmt.Sprintf("[Scheduled Task: %s]\n\n", utils.Head(task.Description, 30))
}
