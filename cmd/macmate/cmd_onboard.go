package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/urfave/cli/v3"

	"github.com/tgifai/macmate/internal/config"
	"github.com/tgifai/macmate/internal/consts"
)

var onboardHwd = &OnboardRunner{}

type OnboardRunner struct {
	scanner *bufio.Scanner
}

func (r *OnboardRunner) cmd() *cli.Command {
	return &cli.Command{
		Name:  "onboard",
		Usage: "Interactive setup wizard for first-time configuration",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "accept-risk",
				Usage: "Skip the disclaimer prompt",
			},
			&cli.BoolFlag{
				Name:  "template",
				Usage: "Write the starter config with ${VAR} placeholders and exit",
			},
		},
		Action: r.run,
	}
}

// ── style helpers ──────────────────────────────────────────────────

var (
	cBanner  = color.New(color.FgCyan, color.Bold)
	cStep    = color.New(color.FgCyan, color.Bold)
	cWarn    = color.New(color.FgYellow)
	cSuccess = color.New(color.FgGreen)
	cError   = color.New(color.FgRed)
	cPrompt  = color.New(color.FgWhite, color.Bold)
	cDim     = color.New(color.FgHiBlack)
)

// ── provider metadata ──────────────────────────────────────────────

type providerMeta struct {
	Type       string
	DefaultURL string
	Model      string
}

var providerOptions = []providerMeta{
	{Type: "anthropic", DefaultURL: "https://api.anthropic.com", Model: "claude-sonnet-4-20250514"},
	{Type: "openai", DefaultURL: "https://api.openai.com/v1", Model: "gpt-4o-mini"},
	{Type: "gemini", DefaultURL: "https://generativelanguage.googleapis.com/v1beta", Model: "gemini-2.5-flash"},
	{Type: "ollama", DefaultURL: "http://localhost:11434", Model: "llama3"},
	{Type: "qwen", DefaultURL: "https://dashscope.aliyuncs.com/compatible-mode/v1", Model: "qwen-plus"},
}

// ── main flow ──────────────────────────────────────────────────────

func (r *OnboardRunner) run(_ context.Context, cmd *cli.Command) error {
	r.scanner = bufio.NewScanner(os.Stdin)
	cfgPath := cmd.String("config")

	if cmd.Bool("template") {
		if err := config.WriteFile(cfgPath, config.Template(), false); err != nil {
			return err
		}
		cSuccess.Printf("  ✓ Wrote starter config to %s\n", cfgPath)
		return nil
	}

	if _, err := os.Stat(cfgPath); err == nil {
		cWarn.Printf("  Config already exists at %s\n", cfgPath)
		if !r.confirm("  Overwrite existing config?", false) {
			fmt.Println("  Aborted.")
			return nil
		}
		fmt.Println()
	}

	if !cmd.Bool("accept-risk") && !r.stepWelcome() {
		return nil
	}

	cfg := config.Template()
	providerID, provCfg := r.stepProvider()
	cfg.Providers = map[string]config.ProviderConfig{providerID: provCfg}
	cfg.Agent.Models = config.ModelsConfig{Primary: r.stepModel(providerID, provCfg)}
	cfg.Channels = map[string]config.ChannelConfig{"telegram": r.stepTelegram()}
	cfg.MacAgent = r.stepMacAgent()

	return r.stepConfirm(cfgPath, cfg)
}

// ── step 1: welcome ────────────────────────────────────────────────

func (r *OnboardRunner) stepWelcome() bool {
	fmt.Println()
	cBanner.Println("  macmate")
	cDim.Println("  Your Mac, one Telegram message away")
	fmt.Println()

	cWarn.Println("  ⚠  DISCLAIMER")
	fmt.Println()
	cWarn.Println("  macmate lets an AI model run shell commands and AppleScript")
	cWarn.Println("  on your Mac, on demand and on a schedule. Mistakes may occur.")
	cWarn.Println("  • Restrict the bot to your own Telegram user id.")
	cWarn.Println("  • API keys and the Mac agent secret are stored locally in")
	cWarn.Printf("    %s. Keep this file secure.\n", consts.DefaultConfigPath())
	cWarn.Println("  • This software is provided \"as-is\" without warranty.")
	fmt.Println()

	if !r.confirm("  Do you accept these terms?", false) {
		fmt.Println()
		fmt.Println("  Aborted. You must accept the terms to continue.")
		return false
	}
	fmt.Println()
	return true
}

// ── step 2: provider ───────────────────────────────────────────────

func (r *OnboardRunner) stepProvider() (string, config.ProviderConfig) {
	r.printStepHeader("Step 2", "LLM Provider")

	cDim.Println("  Select provider type:")
	for i, p := range providerOptions {
		fmt.Printf("    [%d] %s\n", i+1, p.Type)
	}
	fmt.Println()

	pm := providerOptions[r.promptChoice("  Provider type", 1, len(providerOptions))-1]
	fmt.Println()

	providerID := r.promptDefault("  Provider name", pm.Type)
	fmt.Println()

	apiKey := ""
	if pm.Type != "ollama" {
		apiKey = r.promptRequired("  API Key")
		fmt.Println()
	}
	baseURL := r.promptDefault("  Base URL", pm.DefaultURL)
	fmt.Println()

	cSuccess.Printf("  ✓ Provider: %s (%s)\n\n", providerID, pm.Type)
	return providerID, config.ProviderConfig{
		Type: pm.Type,
		Config: map[string]any{
			"api_key":       apiKey,
			"base_url":      baseURL,
			"default_model": pm.Model,
			"timeout":       60,
		},
	}
}

// ── step 3: model ──────────────────────────────────────────────────

func (r *OnboardRunner) stepModel(providerID string, provCfg config.ProviderConfig) string {
	r.printStepHeader("Step 3", "Model")

	model := r.promptDefault("  Model name", fmt.Sprint(provCfg.Config["default_model"]))
	fmt.Println()

	fullSpec := providerID + ":" + model
	cSuccess.Printf("  ✓ Model: %s\n\n", fullSpec)
	return fullSpec
}

// ── step 4: telegram ───────────────────────────────────────────────

func (r *OnboardRunner) stepTelegram() config.ChannelConfig {
	r.printStepHeader("Step 4", "Telegram")

	token := r.promptRequired("  Telegram Bot Token")
	fmt.Println()

	cDim.Println("  Comma separated Telegram user ids allowed to use the bot.")
	cDim.Println("  Leave empty to allow everyone (not recommended).")
	rawUsers := r.prompt("  Allowed users")
	fmt.Println()

	users := make([]interface{}, 0, 1)
	for _, u := range strings.Split(rawUsers, ",") {
		if id, err := strconv.ParseInt(strings.TrimSpace(u), 10, 64); err == nil && id != 0 {
			users = append(users, id)
		}
	}
	if len(users) == 0 {
		cWarn.Println("  ⚠ Every Telegram user will be able to control your Mac.")
	} else {
		cSuccess.Printf("  ✓ Allowed users: %d\n", len(users))
	}
	fmt.Println()

	return config.ChannelConfig{
		Type:    "telegram",
		Enabled: true,
		Config: map[string]interface{}{
			"token":         token,
			"allowed_users": users,
		},
	}
}

// ── step 5: mac agent ──────────────────────────────────────────────

func (r *OnboardRunner) stepMacAgent() config.MacAgentConfig {
	r.printStepHeader("Step 5", "Mac Agent")

	host := r.promptRequired("  Mac agent host")
	fmt.Println()
	port := r.promptChoice("  Mac agent port", 9999, 65535)
	fmt.Println()
	secret := r.promptRequired("  Shared secret")
	fmt.Println()

	cSuccess.Printf("  ✓ Mac agent: %s:%d\n\n", host, port)
	return config.MacAgentConfig{Host: host, Port: port, Secret: secret, TimeoutSec: 30}
}

// ── step 6: confirm & write ────────────────────────────────────────

func (r *OnboardRunner) stepConfirm(cfgPath string, cfg *config.Config) error {
	r.printStepHeader("Step 6", "Review")

	cDim.Printf("  Home directory:  %s\n", consts.HomeDir())
	cDim.Printf("  Config file:     %s\n", cfgPath)
	cDim.Printf("  Task file:       %s\n", consts.DefaultTaskStorePath())
	fmt.Println()
	cDim.Printf("  Model:        %s\n", cfg.Agent.Models.Primary)
	cDim.Printf("  Mac agent:    %s:%d\n", cfg.MacAgent.Host, cfg.MacAgent.Port)
	fmt.Println()

	if !r.confirm("  Write config?", true) {
		fmt.Println("  Aborted.")
		return nil
	}
	fmt.Println()

	if err := config.WriteFile(cfgPath, cfg, true); err != nil {
		cError.Printf("  ✗ Failed to write config: %v\n", err)
		return err
	}
	cSuccess.Printf("  ✓ Created %s\n", cfgPath)

	fmt.Println()
	cSuccess.Println("  All set! Run \"macmate gateway run\" to start.")
	fmt.Println()
	return nil
}

// ── input helpers ──────────────────────────────────────────────────

func (r *OnboardRunner) printStepHeader(step, title string) {
	cStep.Printf("  ── %s: %s ──\n\n", step, title)
}

func (r *OnboardRunner) prompt(label string) string {
	cPrompt.Printf("%s > ", label)
	if r.scanner.Scan() {
		return strings.TrimSpace(r.scanner.Text())
	}
	return ""
}

func (r *OnboardRunner) promptDefault(label string, defaultVal string) string {
	if defaultVal != "" {
		cPrompt.Printf("%s ", label)
		cDim.Printf("[%s]", defaultVal)
		cPrompt.Print(" > ")
	} else {
		cPrompt.Printf("%s > ", label)
	}

	if r.scanner.Scan() {
		if val := strings.TrimSpace(r.scanner.Text()); val != "" {
			return val
		}
	}
	return defaultVal
}

func (r *OnboardRunner) promptRequired(label string) string {
	for {
		if val := r.prompt(label); val != "" {
			return val
		}
		cError.Println("  This field is required.")
	}
}

// promptChoice takes def as the default and accepts 1..max.
func (r *OnboardRunner) promptChoice(label string, def, max int) int {
	for {
		n, err := strconv.Atoi(r.promptDefault(label, strconv.Itoa(def)))
		if err == nil && n >= 1 && n <= max {
			return n
		}
		cError.Printf("  Please enter a number between 1 and %d.\n", max)
	}
}

func (r *OnboardRunner) confirm(label string, defaultYes bool) bool {
	hint := "[y/N]"
	if defaultYes {
		hint = "[Y/n]"
	}
	cPrompt.Printf("%s ", label)
	cDim.Print(hint)
	cPrompt.Print(" > ")

	if !r.scanner.Scan() {
		return defaultYes
	}
	switch strings.ToLower(strings.TrimSpace(r.scanner.Text())) {
	case "y", "yes":
		return true
	case "n", "no":
		return false
	default:
		return defaultYes
	}
}
