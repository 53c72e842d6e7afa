package gateway

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/tgifai/macmate/internal/agent/session"
	"github.com/tgifai/macmate/internal/channel"
)

// CommandHandlerFunc processes a matched command and returns a text reply.
// An empty reply means no response should be sent.
type CommandHandlerFunc func(ctx context.Context, gw *Gateway, msg *channel.Message, args string) (string, error)

type Command struct {
	Name        string // e.g. "/start"
	Usage       string // argument synopsis shown in /help
	Description string
	Handler     CommandHandlerFunc
}

// CommandRouter matches "/name args" messages against registered commands.
type CommandRouter struct {
	commands map[string]*Command // key: lowercase command name
	order    []*Command
	mu       sync.RWMutex
}

func newCommandRouter() *CommandRouter {
	return &CommandRouter{commands: make(map[string]*Command, 12)}
}

func (r *CommandRouter) Register(cmd *Command) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := strings.ToLower(cmd.Name)
	if _, exists := r.commands[key]; !exists {
		r.order = append(r.order, cmd)
	}
	r.commands[key] = cmd
}

// Match returns the command content starts with and the remaining
// arguments. A trailing @botname on the command ("/tasks@mybot") is ignored.
func (r *CommandRouter) Match(content string) (*Command, string, bool) {
	content = strings.TrimSpace(content)
	if content == "" || content[0] != '/' {
		return nil, "", false
	}

	name, args, _ := strings.Cut(content, " ")
	name = strings.ToLower(name)
	if idx := strings.Index(name, "@"); idx > 0 {
		name = name[:idx]
	}

	r.mu.RLock()
	cmd, ok := r.commands[name]
	r.mu.RUnlock()
	if !ok {
		return nil, "", false
	}
	return cmd, strings.TrimSpace(args), true
}

// List returns commands in registration order.
func (r *CommandRouter) List() []*Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Command, len(r.order))
	copy(out, r.order)
	return out
}

func registerBuiltinCommands(r *CommandRouter) {
	r.Register(&Command{Name: "/start", Description: "Welcome message and Mac status", Handler: cmdStart})
	r.Register(&Command{Name: "/help", Description: "Show available commands", Handler: cmdHelp})
	r.Register(&Command{Name: "/clear", Description: "Forget the conversation", Handler: cmdClear})
	r.Register(&Command{Name: "/status", Description: "Mac agent and scheduler status", Handler: cmdStatus})
	r.Register(&Command{Name: "/cancel", Description: "Abort a pending /schedule", Handler: cmdCancel})
}

func cmdStart(ctx context.Context, gw *Gateway, _ *channel.Message, _ string) (string, error) {
	return fmt.Sprintf("Welcome to macmate!\n\nMac status: %s\n\n%s", gw.macStatus(ctx), gw.helpText()), nil
}

func cmdHelp(_ context.Context, gw *Gateway, _ *channel.Message, _ string) (string, error) {
	return gw.helpText(), nil
}

func (gw *Gateway) helpText() string {
	var b strings.Builder
	b.WriteString("Commands:\n")
	for _, cmd := range gw.commands.List() {
		name := cmd.Name
		if cmd.Usage != "" {
			name += " " + cmd.Usage
		}
		fmt.Fprintf(&b, "%s - %s\n", name, cmd.Description)
	}
	b.WriteString("\nAnything else is sent to the assistant.")
	return b.String()
}

func cmdClear(_ context.Context, gw *Gateway, msg *channel.Message, _ string) (string, error) {
	gw.sessions.GetOrCreate(msg.UserID).Clear()
	return "Conversation cleared!", nil
}

func cmdStatus(ctx context.Context, gw *Gateway, msg *channel.Message, _ string) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Mac agent: %s\n", gw.macStatus(ctx))
	if gw.scheduler != nil {
		st := gw.scheduler.Status()
		running := "stopped"
		if st.Running {
			running = "running"
		}
		fmt.Fprintf(&b, "Scheduler: %s\n", running)
		fmt.Fprintf(&b, "Tasks: %d total, %d enabled\n", st.TotalTasks, st.EnabledTasks)
		fmt.Fprintf(&b, "Your tasks: %d\n", len(gw.store.ListForUser(msg.UserID)))
	} else {
		b.WriteString("Scheduler: disabled\n")
	}
	if sess, ok := gw.sessions.Get(msg.UserID); ok {
		fmt.Fprintf(&b, "Conversation: %d messages\n", sess.Len())
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func cmdCancel(_ context.Context, gw *Gateway, msg *channel.Message, _ string) (string, error) {
	sess := gw.sessions.GetOrCreate(msg.UserID)
	tr := session.Cancel(sess.Flow())
	sess.SetFlow(tr.Next)
	if tr.Outcome == session.OutcomeCancelled {
		return "Scheduling cancelled.", nil
	}
	return "Nothing to cancel.", nil
}

// macStatus pings the agent now. Commands use it when the user asks.
func (gw *Gateway) macStatus(ctx context.Context) string {
	if gw.mac == nil || !gw.mac.Configured() {
		return "not configured"
	}
	return onlineLabel(gw.macState.Refresh(ctx))
}

// cachedMacStatus answers from a recent ping when there is one.
func (gw *Gateway) cachedMacStatus(ctx context.Context) string {
	if gw.mac == nil || !gw.mac.Configured() {
		return "not configured"
	}
	return onlineLabel(gw.macState.Online(ctx))
}

func onlineLabel(online bool) string {
	if online {
		return "online"
	}
	return "offline"
}
