package agent

import (
	"fmt"
	"runtime"
	"strings"
	"time"
)

// ChatContext describes the surroundings of an interactive turn.
type ChatContext struct {
	UserID    string
	ChatID    string
	MacOnline bool
	Now       time.Time
}

const chatPreamble = `You are macmate, a personal assistant that can control the user's Mac through tools.
Use the tools when the user asks for something that needs the Mac, and answer directly otherwise.
Prefer read-only commands unless the user clearly asks for a change. Keep answers short.`

// BuildChatPrompt renders the system prompt for interactive chat.
func BuildChatPrompt(c ChatContext) string {
	formatValue := func(value string) string {
		if strings.TrimSpace(value) == "" {
			return "N/A"
		}
		return value
	}
	now := c.Now
	if now.IsZero() {
		now = time.Now()
	}
	mac := "offline"
	if c.MacOnline {
		mac = "online"
	}

	return fmt.Sprintf(
		"%s\n\n# Runtime Information\n- host: %s/%s\n- chat id: %s\n- user id: %s\n- mac agent: %s\n- current time: %s",
		chatPreamble, runtime.GOOS, runtime.GOARCH, formatValue(c.ChatID), formatValue(c.UserID), mac, now.Format(time.RFC3339),
	)
}
