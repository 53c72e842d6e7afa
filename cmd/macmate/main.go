package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/tgifai/macmate/internal/config"
	"github.com/tgifai/macmate/internal/consts"
	"github.com/tgifai/macmate/internal/pkg/logs"
)

func main() {
	cmd := &cli.Command{
		Name:  "macmate",
		Usage: "Control your Mac from Telegram, with scheduled AI tasks",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the config file",
				Value:   consts.DefaultConfigPath(),
				Sources: cli.EnvVars("MACMATE_CONFIG"),
			},
		},
		Commands: []*cli.Command{
			gwHwd.cmd(),
			taskHwd.cmd(),
			macHwd.cmd(),
			onboardHwd.cmd(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		logs.Error("Command execution failed: %v", err)
		os.Exit(1)
	}
}

// loadConfig reads the file named by --config and applies its logging
// section.
func loadConfig(cmd *cli.Command) (*config.Config, string, error) {
	cfgPath := cmd.String("config")
	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		return nil, cfgPath, fmt.Errorf("config file %s not found, run \"macmate onboard\" first", cfgPath)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, cfgPath, fmt.Errorf("loading config error: %w", err)
	}
	if err = initLogger(cfg.Logging); err != nil {
		return nil, cfgPath, fmt.Errorf("init logger error: %w", err)
	}
	return cfg, cfgPath, nil
}

func initLogger(cfg config.LoggingConfig) error {
	return logs.Init(logs.Options{
		Level:      cfg.Level,
		Format:     cfg.Format,
		Output:     cfg.Output,
		File:       cfg.File,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
	})
}
