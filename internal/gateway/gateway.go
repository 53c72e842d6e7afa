package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	hzServer "github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	hzprom "github.com/hertz-contrib/monitor-prometheus"

	"github.com/tgifai/macmate/internal/agent"
	"github.com/tgifai/macmate/internal/agent/session"
	"github.com/tgifai/macmate/internal/agent/tool"
	"github.com/tgifai/macmate/internal/agent/tool/macx"
	"github.com/tgifai/macmate/internal/channel"
	"github.com/tgifai/macmate/internal/channel/telegram"
	"github.com/tgifai/macmate/internal/config"
	"github.com/tgifai/macmate/internal/cronjob"
	"github.com/tgifai/macmate/internal/macagent"
	"github.com/tgifai/macmate/internal/pkg/logs"
	mprom "github.com/tgifai/macmate/internal/pkg/prometheus"
	"github.com/tgifai/macmate/internal/provider"
	"github.com/tgifai/macmate/internal/provider/anthropic"
	"github.com/tgifai/macmate/internal/provider/gemini"
	"github.com/tgifai/macmate/internal/provider/ollama"
	"github.com/tgifai/macmate/internal/provider/openai"
	"github.com/tgifai/macmate/internal/provider/qwen"
)

const (
	sessionTTL        = 24 * time.Hour
	sessionGCInterval = 10 * time.Minute
	macStatusTTL      = time.Minute
)

// Gateway wires the chat channels, the assistant and the task scheduler.
type Gateway struct {
	cfg *config.Config

	agent     *agent.Agent
	sessions  *session.Manager
	store     *cronjob.Store
	scheduler *cronjob.Scheduler
	mac       *macagent.Client
	macState  *macagent.StatusCache
	chatTools *tool.Registry

	commands   *CommandRouter
	access     *accessGuard
	msgQueue   *MessageQueue
	httpServer *hzServer.Hertz

	requestTimeout time.Duration
	now            func() time.Time

	runCancel context.CancelFunc
	stopOnce  sync.Once
}

func NewGateway(cfg *config.Config) (*Gateway, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	hlog.SetLogger(logs.NewHlogLogger(logs.DefaultLogger()))

	mac := macagent.NewClient(macagent.Config{
		Host:    cfg.MacAgent.Host,
		Port:    cfg.MacAgent.Port,
		Secret:  cfg.MacAgent.Secret,
		Timeout: time.Duration(cfg.MacAgent.TimeoutSec) * time.Second,
	})
	if !mac.Configured() {
		logs.Warn("[gateway] mac_agent is not fully configured, Mac tools will report errors")
	}

	chatTools, err := macx.InteractiveTools(mac)
	if err != nil {
		return nil, fmt.Errorf("build chat tools: %w", err)
	}
	if err := chatTools.Validate(); err != nil {
		return nil, fmt.Errorf("validate chat tools: %w", err)
	}

	gw := &Gateway{
		cfg: cfg,
		agent: agent.New(agent.Options{
			Models:        modelList(cfg.Agent.Models),
			MaxIterations: cfg.Agent.MaxIterations,
			MaxTokens:     cfg.Agent.MaxTokens,
			Temperature:   float32(cfg.Agent.Temperature),
		}),
		sessions: session.NewManager(session.ManagerOptions{
			HistoryLimit: cfg.Agent.HistoryLimit,
			TTL:          sessionTTL,
		}),
		mac:            mac,
		macState:       macagent.NewStatusCache(mac, macStatusTTL),
		chatTools:      chatTools,
		commands:       newCommandRouter(),
		access:         newAccessGuard(cfg.Channels),
		msgQueue:       newMessageQueue(QueueOptions{}),
		requestTimeout: time.Duration(cfg.Gateway.RequestTimeout) * time.Second,
		now:            time.Now,
	}
	registerBuiltinCommands(gw.commands)

	if cfg.SchedulerEnabled() {
		if err := gw.initScheduler(cfg.Scheduler); err != nil {
			return nil, fmt.Errorf("init scheduler: %w", err)
		}
		registerScheduleCommands(gw.commands)
	}

	gw.httpServer = newHTTPServer(cfg.Gateway)
	gw.registerRoutes()
	return gw, nil
}

func modelList(m config.ModelsConfig) []string {
	models := []string{m.Primary}
	for _, fb := range m.Fallback {
		if fb = strings.TrimSpace(fb); fb != "" && fb != m.Primary {
			models = append(models, fb)
		}
	}
	return models
}

func (gw *Gateway) initScheduler(cfg config.SchedulerConfig) error {
	scheduledTools, err := macx.ScheduledTools(gw.mac)
	if err != nil {
		return fmt.Errorf("build scheduled tools: %w", err)
	}
	if err := scheduledTools.Validate(); err != nil {
		return fmt.Errorf("validate scheduled tools: %w", err)
	}

	gw.store = cronjob.NewStore(cfg.Store)
	if err := gw.store.Load(); err != nil {
		logs.Warn("[gateway] starting with an empty task list: %v", err)
	}

	var models []string
	if cfg.Model != "" {
		models = []string{cfg.Model}
	}
	exec := cronjob.NewExecutor(gw.store, gw.agent, gw, cronjob.ExecutorOptions{
		Tools:         scheduledTools,
		MaxIterations: cfg.MaxToolIterations,
		MaxTokens:     cfg.MaxTokens,
		Models:        models,
		Timeout:       time.Duration(cfg.JobTimeoutSec) * time.Second,
	})
	gw.scheduler = cronjob.NewScheduler(gw.store, exec, time.Duration(cfg.PollIntervalSec)*time.Second)
	return nil
}

func newHTTPServer(cfg config.GatewayConfig) *hzServer.Hertz {
	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	tracer := hzprom.NewServerTracer(cfg.MetricsBind, "/metrics",
		hzprom.WithRegistry(mprom.GetRegistry()),
	)
	return hzServer.Default(
		hzServer.WithHostPorts(cfg.Bind),
		hzServer.WithReadTimeout(timeout),
		hzServer.WithWriteTimeout(timeout),
		hzServer.WithExitWaitTime(5*time.Second),
		hzServer.WithTracer(tracer),
	)
}

func (gw *Gateway) registerRoutes() {
	gw.httpServer.GET("/health", func(ctx context.Context, c *app.RequestContext) {
		c.JSON(consts.StatusOK, gw.health(ctx))
	})
}

func (gw *Gateway) health(ctx context.Context) utils.H {
	h := utils.H{
		"status":    "ok",
		"mac_agent": gw.cachedMacStatus(ctx),
		"sessions":  gw.sessions.Count(),
		"channels":  len(channel.List()),
	}
	if gw.scheduler != nil {
		h["scheduler"] = gw.scheduler.Status()
	}
	return h
}

func (gw *Gateway) Start(ctx context.Context) error {
	ctx, gw.runCancel = context.WithCancel(ctx)

	if err := gw.initProviders(ctx, gw.cfg.Providers); err != nil {
		return fmt.Errorf("init providers: %w", err)
	}
	gw.msgQueue.Init(ctx, gw.processMessage)
	if err := gw.initChannels(ctx, gw.cfg.Channels); err != nil {
		return fmt.Errorf("init channels: %w", err)
	}

	gw.sessions.StartGCLoop(ctx, sessionGCInterval)
	if gw.scheduler != nil {
		gw.scheduler.Start(ctx)
	}

	go gw.httpServer.Spin()
	logs.CtxInfo(ctx, "[gateway] started, health on %s, metrics on %s", gw.cfg.Gateway.Bind, gw.cfg.Gateway.MetricsBind)
	return nil
}

// Stop waits for a running scheduled task before closing channels.
func (gw *Gateway) Stop(ctx context.Context) error {
	gw.stopOnce.Do(func() {
		if gw.scheduler != nil {
			gw.scheduler.Stop(ctx)
		}
		if gw.runCancel != nil {
			gw.runCancel()
		}

		for _, ch := range channel.List() {
			if err := ch.Stop(ctx); err != nil {
				logs.CtxWarn(ctx, "[gateway] stop channel %s error: %v", ch.ID(), err)
			}
		}
		for _, p := range provider.List() {
			if err := p.Close(); err != nil {
				logs.CtxWarn(ctx, "[gateway] close provider %s error: %v", p.ID(), err)
			}
		}
		if err := gw.httpServer.Shutdown(ctx); err != nil {
			logs.CtxWarn(ctx, "[gateway] shutdown http server error: %v", err)
		}
		logs.CtxInfo(ctx, "[gateway] all resources stopped")
	})
	return nil
}

// SendMessage delivers scheduled task output through the first registered
// channel; task chat ids belong to that channel.
func (gw *Gateway) SendMessage(ctx context.Context, chatID, text string) error {
	chans := channel.List()
	if len(chans) == 0 {
		return errors.New("no channel available for delivery")
	}
	return chans[0].SendMessage(ctx, chatID, text)
}

func (gw *Gateway) initProviders(ctx context.Context, providers map[string]config.ProviderConfig) error {
	for id, cfg := range providers {
		cfg.ID = id
		p, err := newProvider(ctx, cfg)
		if err != nil {
			logs.CtxError(ctx, "[%s] create provider #%s error: %v", strings.ToUpper(cfg.Type), cfg.ID, err)
			return fmt.Errorf("create provider %s: %w", cfg.ID, err)
		}
		if err = provider.Register(p); err != nil {
			return fmt.Errorf("register provider %s: %w", cfg.ID, err)
		}
		logs.CtxInfo(ctx, "[%s] register provider #%s success", strings.ToUpper(cfg.Type), cfg.ID)
	}
	return nil
}

func newProvider(ctx context.Context, cfg config.ProviderConfig) (provider.Provider, error) {
	cfgMap := make(map[string]any, len(cfg.Config))
	for k, v := range cfg.Config {
		cfgMap[k] = v
	}

	switch provider.Type(strings.ToLower(strings.TrimSpace(cfg.Type))) {
	case provider.OpenAI:
		return openai.NewProvider(ctx, cfg.ID, cfgMap)
	case provider.Anthropic:
		return anthropic.NewProvider(ctx, cfg.ID, cfgMap)
	case provider.Gemini:
		return gemini.NewProvider(ctx, cfg.ID, cfgMap)
	case provider.Ollama:
		return ollama.NewProvider(ctx, cfg.ID, cfgMap)
	case provider.Qwen:
		return qwen.NewProvider(ctx, cfg.ID, cfgMap)
	default:
		return nil, fmt.Errorf("unknown provider type: %s", cfg.Type)
	}
}

func (gw *Gateway) initChannels(ctx context.Context, channels map[string]config.ChannelConfig) error {
	for id, cfg := range channels {
		cfg.ID = id
		if !cfg.Enabled {
			logs.CtxInfo(ctx, "[gateway] channel #%s is disabled, skipping", id)
			continue
		}

		ch, err := newChannel(id, cfg)
		if err != nil {
			return fmt.Errorf("create channel %s: %w", id, err)
		}
		if err = ch.RegisterMessageHandler(gw.msgQueue.Enqueue); err != nil {
			return fmt.Errorf("register handler for channel %s: %w", id, err)
		}
		if err = channel.Register(ch); err != nil {
			return fmt.Errorf("register channel %s: %w", id, err)
		}

		go func(id string, ch channel.Channel) {
			logs.CtxInfo(ctx, "[gateway] starting channel #%s (%s)", id, ch.Type())
			if err := ch.Start(ctx); err != nil {
				logs.CtxError(ctx, "[gateway] channel #%s stopped with error: %v", id, err)
			}
		}(id, ch)
	}
	if len(channel.List()) == 0 {
		logs.CtxWarn(ctx, "[gateway] no channel enabled, scheduled results cannot be delivered")
	}
	return nil
}

func newChannel(id string, cfg config.ChannelConfig) (channel.Channel, error) {
	switch channel.Type(strings.ToLower(strings.TrimSpace(cfg.Type))) {
	case channel.Telegram:
		return telegram.NewChannel(id, &cfg)
	default:
		return nil, fmt.Errorf("unsupported channel type: %s", cfg.Type)
	}
}
