package gateway

import (
	"strings"

	"github.com/bytedance/gg/gconv"

	"github.com/tgifai/macmate/internal/channel"
	"github.com/tgifai/macmate/internal/config"
	"github.com/tgifai/macmate/internal/pkg/logs"
)

const deniedReply = "Sorry, you are not authorized to use this bot."

// accessGuard applies each channel's allowed_users list. A channel without
// a list admits every user.
type accessGuard struct {
	allowed map[string]map[string]struct{} // channel id -> user ids
}

func newAccessGuard(channels map[string]config.ChannelConfig) *accessGuard {
	g := &accessGuard{allowed: make(map[string]map[string]struct{}, len(channels))}
	for id, ch := range channels {
		raw, _ := ch.Config["allowed_users"].([]interface{})
		if len(raw) == 0 {
			logs.Warn("[gateway] channel #%s has no allowed_users, every user may control the Mac", id)
			continue
		}
		users := make(map[string]struct{}, len(raw))
		for _, u := range raw {
			if uid := strings.TrimSpace(gconv.To[string](u)); uid != "" && uid != "0" {
				users[uid] = struct{}{}
			}
		}
		g.allowed[id] = users
	}
	return g
}

func (g *accessGuard) Allow(msg *channel.Message) bool {
	if g == nil {
		return true
	}
	users, restricted := g.allowed[msg.ChannelID]
	if !restricted {
		return true
	}
	_, ok := users[msg.UserID]
	return ok
}
