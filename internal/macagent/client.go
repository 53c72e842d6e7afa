package macagent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"syscall"
	"time"

	"github.com/bytedance/sonic"

	"github.com/tgifai/macmate/internal/pkg/logs"
	mprom "github.com/tgifai/macmate/internal/pkg/prometheus"
)

const (
	defaultTimeout  = 30 * time.Second
	maxResponseSize = 32 << 20 // screenshots travel base64 encoded
)

// Agent actions understood by the remote Mac agent.
const (
	ActionPing        = "ping"
	ActionExecute     = "execute"
	ActionAppleScript = "applescript"
	ActionReadFile    = "read_file"
	ActionReadImage   = "read_image"
	ActionScreenshot  = "screenshot"
	ActionListWindows = "list_windows"
	ActionScroll      = "scroll"
	ActionExecuteJS   = "execute_js"
)

const (
	errTimedOut      = "Connection timed out"
	errRefused       = "Connection refused"
	errNotConfigured = "Mac agent not configured"
)

var ErrNotConfigured = errors.New(errNotConfigured)

// Result is the JSON object returned by the agent. Failures always carry
// success=false and an error string.
type Result map[string]any

func (r Result) Success() bool {
	ok, _ := r["success"].(bool)
	return ok
}

func (r Result) ErrMsg() string {
	msg, _ := r["error"].(string)
	return msg
}

func failure(msg string) Result {
	return Result{"success": false, "error": msg}
}

type Config struct {
	Host    string
	Port    int
	Secret  string
	Timeout time.Duration
}

// Client speaks the agent's one-request-per-connection JSON protocol.
type Client struct {
	cfg Config
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Client{cfg: cfg}
}

func (c *Client) Configured() bool {
	return c.cfg.Host != "" && c.cfg.Port > 0 && c.cfg.Secret != ""
}

func (c *Client) Addr() string {
	return net.JoinHostPort(c.cfg.Host, strconv.Itoa(c.cfg.Port))
}

// Ping reports whether the agent answers a ping successfully.
func (c *Client) Ping(ctx context.Context) bool {
	return c.Call(ctx, ActionPing, nil).Success()
}

// Call sends one action and never fails: transport and protocol errors are
// folded into a failure Result.
func (c *Client) Call(ctx context.Context, action string, params map[string]any) Result {
	res, err := c.Do(ctx, action, params)
	if err != nil {
		msg := describe(err)
		logs.CtxWarn(ctx, "[macagent] %s via %s failed: %s", action, c.Addr(), msg)
		mprom.AgentCalls.WithLabelValues(action, mprom.ResultLabel(false)).Inc()
		return failure(msg)
	}
	mprom.AgentCalls.WithLabelValues(action, mprom.ResultLabel(res.Success())).Inc()
	return res
}

// Do performs the round trip and returns transport errors to the caller.
func (c *Client) Do(ctx context.Context, action string, params map[string]any) (Result, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	req := make(map[string]any, len(params)+2)
	for k, v := range params {
		req[k] = v
	}
	req["secret"] = c.cfg.Secret
	req["action"] = action

	payload, err := sonic.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", c.Addr())
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	deadline, _ := ctx.Deadline()
	if err := conn.SetDeadline(deadline); err != nil {
		return nil, err
	}
	// unblock reads as soon as the caller gives up
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	if _, err := conn.Write(payload); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}
	if tcp, ok := conn.(*net.TCPConn); ok {
		_ = tcp.CloseWrite()
	}

	raw, err := io.ReadAll(io.LimitReader(conn, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if len(raw) == 0 {
		return nil, errors.New("empty response from mac agent")
	}

	var res Result
	if err := sonic.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if res == nil {
		return nil, errors.New("mac agent returned null")
	}
	return res, nil
}

func describe(err error) string {
	var netErr net.Error
	switch {
	case errors.Is(err, ErrNotConfigured):
		return errNotConfigured
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return errTimedOut
	case errors.Is(err, syscall.ECONNREFUSED):
		return errRefused
	default:
		return err.Error()
	}
}
