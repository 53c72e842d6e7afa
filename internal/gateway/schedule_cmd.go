package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tgifai/macmate/internal/agent/session"
	"github.com/tgifai/macmate/internal/channel"
	"github.com/tgifai/macmate/internal/cronjob"
	"github.com/tgifai/macmate/internal/pkg/logs"
)

const (
	askPromptReply = "What should I do? Send the prompt for the scheduled task, or /cancel."

	askScheduleReply = "When should it run? For example:\n" +
		"- daily at 9am\n" +
		"- every monday at 10:30\n" +
		"- every 30 minutes\n" +
		"- hourly at :15\n" +
		"- in 2 hours\n" +
		"- tomorrow at 8pm\n" +
		"Send /cancel to abort."

	schedulerOffReply = "The scheduler is disabled in this deployment."
)

func registerScheduleCommands(r *CommandRouter) {
	r.Register(&Command{Name: "/schedule", Usage: "[<when> | <prompt>]", Description: "Create a scheduled task", Handler: cmdSchedule})
	r.Register(&Command{Name: "/tasks", Description: "List your scheduled tasks", Handler: cmdTasks})
	r.Register(&Command{Name: "/deltask", Usage: "<id>", Description: "Delete a task", Handler: cmdDelTask})
	r.Register(&Command{Name: "/toggletask", Usage: "<id>", Description: "Enable or disable a task", Handler: cmdToggleTask})
	r.Register(&Command{Name: "/runtask", Usage: "<id>", Description: "Run a task now", Handler: cmdRunTask})
}

// cmdSchedule accepts "/schedule <when> | <prompt>" in one message, or
// starts the two-step flow.
func cmdSchedule(ctx context.Context, gw *Gateway, msg *channel.Message, args string) (string, error) {
	if gw.store == nil {
		return schedulerOffReply, nil
	}

	if when, prompt, ok := strings.Cut(args, "|"); ok {
		when, prompt = strings.TrimSpace(when), strings.TrimSpace(prompt)
		if when != "" && prompt != "" {
			gw.sessions.GetOrCreate(msg.UserID).SetFlow(session.Flow{})
			return gw.createTask(ctx, msg, prompt, when)
		}
		return "Usage: /schedule <when> | <prompt>\nExample: /schedule daily at 9am | Summarise my calendar", nil
	}

	tr := session.Begin(args)
	gw.sessions.GetOrCreate(msg.UserID).SetFlow(tr.Next)
	return flowReply(tr), nil
}

// continueFlow feeds plain text into a pending /schedule flow. ok is false
// when no flow is active.
func (gw *Gateway) continueFlow(ctx context.Context, msg *channel.Message) (string, bool, error) {
	sess := gw.sessions.GetOrCreate(msg.UserID)
	tr := session.Advance(sess.Flow(), msg.Content)
	if tr.Outcome == session.OutcomePassThrough {
		return "", false, nil
	}
	sess.SetFlow(tr.Next)
	if tr.Outcome != session.OutcomeReady {
		return flowReply(tr), true, nil
	}
	reply, err := gw.createTask(ctx, msg, tr.Prompt, tr.When)
	return reply, true, err
}

func flowReply(tr session.Transition) string {
	if tr.Outcome == session.OutcomeAskPrompt {
		return askPromptReply
	}
	return askScheduleReply
}

func (gw *Gateway) createTask(ctx context.Context, msg *channel.Message, prompt, when string) (string, error) {
	freq, spec := cronjob.ParseSchedule(when, gw.now())
	task, err := gw.store.Add(cronjob.NewTask{
		UserID:    msg.UserID,
		ChatID:    msg.ChatID,
		Prompt:    prompt,
		Frequency: freq,
		TimeSpec:  spec,
		UseTools:  true,
	})
	if err != nil {
		return "", fmt.Errorf("create task: %w", err)
	}
	logs.CtxInfo(ctx, "[gateway] user %s scheduled %s from %q", msg.UserID, task.ID, when)
	return "Scheduled task created.\n\n" + cronjob.FormatTask(task), nil
}

func cmdTasks(_ context.Context, gw *Gateway, msg *channel.Message, _ string) (string, error) {
	if gw.store == nil {
		return schedulerOffReply, nil
	}
	return cronjob.FormatTaskList(gw.store.ListForUser(msg.UserID)), nil
}

func cmdDelTask(_ context.Context, gw *Gateway, msg *channel.Message, args string) (string, error) {
	task, reply := gw.ownedTask(msg, args, "/deltask")
	if reply != "" {
		return reply, nil
	}
	if !gw.store.Remove(task.ID) {
		return "Task not found: " + task.ID, nil
	}
	return "Deleted task: " + task.Description, nil
}

func cmdToggleTask(_ context.Context, gw *Gateway, msg *channel.Message, args string) (string, error) {
	task, reply := gw.ownedTask(msg, args, "/toggletask")
	if reply != "" {
		return reply, nil
	}
	enabled, ok := gw.store.Toggle(task.ID)
	if !ok {
		return "Task not found: " + task.ID, nil
	}
	if enabled {
		return "Task enabled: " + task.Description, nil
	}
	return "Task disabled: " + task.Description, nil
}

func cmdRunTask(ctx context.Context, gw *Gateway, msg *channel.Message, args string) (string, error) {
	task, reply := gw.ownedTask(msg, args, "/runtask")
	if reply != "" {
		return reply, nil
	}

	// the result arrives as a separate message once the run completes
	go func() {
		runCtx := context.WithoutCancel(ctx)
		if err := gw.scheduler.RunNow(runCtx, task.ID); err != nil {
			logs.CtxWarn(runCtx, "[gateway] run task %s: %v", task.ID, err)
		}
	}()
	return "Running task: " + task.Description, nil
}

// ownedTask resolves the id argument of a task command. A non-empty reply
// means the command stops there.
func (gw *Gateway) ownedTask(msg *channel.Message, args, usage string) (cronjob.Task, string) {
	if gw.store == nil || gw.scheduler == nil {
		return cronjob.Task{}, schedulerOffReply
	}
	id := strings.TrimSpace(args)
	if id == "" {
		return cronjob.Task{}, fmt.Sprintf("Usage: %s <task_id>\nSee /tasks for ids.", usage)
	}
	task, err := gw.store.Authorize(msg.UserID, id)
	switch {
	case errors.Is(err, cronjob.ErrTaskNotFound):
		return cronjob.Task{}, "Task not found: " + id
	case errors.Is(err, cronjob.ErrNotOwner):
		return cronjob.Task{}, "You can only manage your own tasks."
	}
	return task, ""
}
