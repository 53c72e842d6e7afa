package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/urfave/cli/v3"

	"github.com/tgifai/macmate/internal/macagent"
)

var macHwd = &MacRunner{}

type MacRunner struct{}

func (r *MacRunner) cmd() *cli.Command {
	return &cli.Command{
		Name:  "mac",
		Usage: "Talk to the Mac agent directly",
		Commands: []*cli.Command{
			{
				Name:   "ping",
				Usage:  "Check that the Mac agent answers",
				Action: r.ping,
			},
			{
				Name:      "call",
				Usage:     "Send one action, e.g. `macmate mac call execute command=uptime`",
				ArgsUsage: "<action> [key=value ...]",
				Action:    r.call,
			},
		},
	}
}

func (r *MacRunner) client(cmd *cli.Command) (*macagent.Client, error) {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	c := macagent.NewClient(macagent.Config{
		Host:    cfg.MacAgent.Host,
		Port:    cfg.MacAgent.Port,
		Secret:  cfg.MacAgent.Secret,
		Timeout: time.Duration(cfg.MacAgent.TimeoutSec) * time.Second,
	})
	if !c.Configured() {
		return nil, macagent.ErrNotConfigured
	}
	return c, nil
}

func (r *MacRunner) ping(ctx context.Context, cmd *cli.Command) error {
	c, err := r.client(cmd)
	if err != nil {
		return err
	}
	res, err := c.Do(ctx, macagent.ActionPing, nil)
	if err != nil {
		return fmt.Errorf("ping %s: %w", c.Addr(), err)
	}
	if !res.Success() {
		return fmt.Errorf("ping %s: %s", c.Addr(), res.ErrMsg())
	}
	fmt.Printf("Mac agent at %s is online\n", c.Addr())
	return nil
}

func (r *MacRunner) call(ctx context.Context, cmd *cli.Command) error {
	args := cmd.Args().Slice()
	if len(args) == 0 {
		return errors.New("an action is required")
	}
	params := make(map[string]any, len(args)-1)
	for _, kv := range args[1:] {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return fmt.Errorf("invalid parameter %q, want key=value", kv)
		}
		params[k] = v
	}

	c, err := r.client(cmd)
	if err != nil {
		return err
	}
	res, err := c.Do(ctx, args[0], params)
	if err != nil {
		return fmt.Errorf("call %s: %w", args[0], err)
	}
	out, err := sonic.ConfigStd.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
