package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/tgifai/macmate/internal/cronjob"
)

var taskHwd = &TaskRunner{}

// TaskRunner edits the task file directly. The gateway only reads the file at
// startup, so stop it before changing tasks here.
type TaskRunner struct{}

func (r *TaskRunner) cmd() *cli.Command {
	return &cli.Command{
		Name:  "task",
		Usage: "Inspect and edit scheduled tasks offline",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List persisted tasks",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "user", Usage: "Only tasks owned by this user id"},
				},
				Action: r.list,
			},
			{
				Name:  "add",
				Usage: "Create a task from a natural-language schedule",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "user", Usage: "Owner user id", Required: true},
					&cli.StringFlag{Name: "chat", Usage: "Delivery chat id (defaults to the user id)"},
					&cli.StringFlag{Name: "when", Usage: "Schedule, e.g. \"daily at 9am\"", Required: true},
					&cli.StringFlag{Name: "prompt", Aliases: []string{"m"}, Usage: "Prompt sent to the assistant", Required: true},
					&cli.StringFlag{Name: "desc", Usage: "Short description"},
					&cli.BoolFlag{Name: "no-tools", Usage: "Run without Mac tools"},
				},
				Action: r.add,
			},
			{
				Name:      "remove",
				Usage:     "Delete a task",
				ArgsUsage: "<task_id>",
				Action:    r.remove,
			},
			{
				Name:      "toggle",
				Usage:     "Enable or disable a task",
				ArgsUsage: "<task_id>",
				Action:    r.toggle,
			},
			{
				Name:      "parse",
				Usage:     "Show how a schedule phrase is understood",
				ArgsUsage: "<phrase>",
				Action:    r.parse,
			},
		},
	}
}

func (r *TaskRunner) openStore(cmd *cli.Command) (*cronjob.Store, error) {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	store := cronjob.NewStore(cfg.Scheduler.Store)
	if err := store.Load(); err != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
	}
	return store, nil
}

func (r *TaskRunner) list(_ context.Context, cmd *cli.Command) error {
	store, err := r.openStore(cmd)
	if err != nil {
		return err
	}
	tasks := store.List()
	if user := strings.TrimSpace(cmd.String("user")); user != "" {
		tasks = store.ListForUser(user)
	}
	if len(tasks) == 0 {
		fmt.Println("No scheduled tasks.")
		return nil
	}
	for _, t := range tasks {
		fmt.Printf("user %s, chat %s\n%s\n", t.UserID, t.ChatID, cronjob.FormatTask(t))
	}
	return nil
}

func (r *TaskRunner) add(_ context.Context, cmd *cli.Command) error {
	store, err := r.openStore(cmd)
	if err != nil {
		return err
	}
	chat := cmd.String("chat")
	if chat == "" {
		chat = cmd.String("user")
	}

	freq, spec := cronjob.ParseSchedule(cmd.String("when"), time.Now())
	task, err := store.Add(cronjob.NewTask{
		UserID:      cmd.String("user"),
		ChatID:      chat,
		Prompt:      cmd.String("prompt"),
		Description: cmd.String("desc"),
		Frequency:   freq,
		TimeSpec:    spec,
		UseTools:    !cmd.Bool("no-tools"),
	})
	if err != nil {
		return fmt.Errorf("add task: %w", err)
	}
	fmt.Print("Created task.\n" + cronjob.FormatTask(task))
	return nil
}

func (r *TaskRunner) remove(_ context.Context, cmd *cli.Command) error {
	id, err := taskArg(cmd)
	if err != nil {
		return err
	}
	store, err := r.openStore(cmd)
	if err != nil {
		return err
	}
	if !store.Remove(id) {
		return fmt.Errorf("%w: %s", cronjob.ErrTaskNotFound, id)
	}
	fmt.Printf("Removed task %s\n", id)
	return nil
}

func (r *TaskRunner) toggle(_ context.Context, cmd *cli.Command) error {
	id, err := taskArg(cmd)
	if err != nil {
		return err
	}
	store, err := r.openStore(cmd)
	if err != nil {
		return err
	}
	enabled, ok := store.Toggle(id)
	if !ok {
		return fmt.Errorf("%w: %s", cronjob.ErrTaskNotFound, id)
	}
	state := "disabled"
	if enabled {
		state = "enabled"
	}
	fmt.Printf("Task %s %s\n", id, state)
	return nil
}

// parse needs no config so schedules can be tried before onboarding.
func (r *TaskRunner) parse(_ context.Context, cmd *cli.Command) error {
	phrase := strings.Join(cmd.Args().Slice(), " ")
	if strings.TrimSpace(phrase) == "" {
		return errors.New("a schedule phrase is required")
	}
	now := time.Now()
	freq, spec := cronjob.ParseSchedule(phrase, now)
	fmt.Printf("frequency: %s\ntime spec: %s\nmeaning:   %s\nnext run:  %s\n",
		freq, spec, cronjob.Describe(freq, spec),
		cronjob.NextRun(freq, spec, now).Format("2006-01-02 15:04"))
	return nil
}

func taskArg(cmd *cli.Command) (string, error) {
	id := strings.TrimSpace(cmd.Args().First())
	if id == "" {
		return "", errors.New("task id is required")
	}
	return id, nil
}
