package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/tgifai/macmate/internal/agent"
	"github.com/tgifai/macmate/internal/agent/tool/macx"
	"github.com/tgifai/macmate/internal/channel"
	"github.com/tgifai/macmate/internal/pkg/logs"
)

const typingInterval = 4 * time.Second

// processMessage handles one queued message and sends the reply back on the
// channel it came from.
func (gw *Gateway) processMessage(ctx context.Context, msg *channel.Message) {
	ctx = logs.WithNewLogID(ctx)
	logs.CtxDebug(ctx, "[msg] -> (%s#%s) %s", msg.ChannelType, msg.UserID, msg.Content)

	ch, err := channel.Get(msg.ChannelID)
	if err != nil {
		logs.CtxError(ctx, "[gateway] %v", err)
		return
	}

	stopTyping := keepTyping(ctx, ch, msg.ChatID)
	reply := gw.respond(ctx, msg)
	stopTyping()

	if reply == "" {
		return
	}
	if err := ch.SendMessage(ctx, msg.ChatID, reply); err != nil {
		logs.CtxError(ctx, "[gateway] send reply via channel %s failed: %v", msg.ChannelID, err)
	}
}

// respond routes a message to a command, the pending schedule flow, or the
// assistant, and returns the text to send back.
func (gw *Gateway) respond(ctx context.Context, msg *channel.Message) string {
	if !gw.access.Allow(msg) {
		logs.CtxWarn(ctx, "[gateway] rejected user %s on channel %s", msg.UserID, msg.ChannelID)
		return deniedReply
	}

	if cmd, args, ok := gw.commands.Match(msg.Content); ok {
		reply, err := cmd.Handler(ctx, gw, msg, args)
		if err != nil {
			logs.CtxError(ctx, "[gateway] command %s failed: %v", cmd.Name, err)
			return fmt.Sprintf("Error: %v", err)
		}
		return reply
	}

	reply, handled, err := gw.continueFlow(ctx, msg)
	if err != nil {
		logs.CtxError(ctx, "[gateway] schedule flow failed: %v", err)
		return fmt.Sprintf("Error: %v", err)
	}
	if handled {
		return reply
	}
	return gw.chat(ctx, msg)
}

func (gw *Gateway) chat(ctx context.Context, msg *channel.Message) string {
	ctx, cancel := context.WithTimeout(ctx, gw.requestTimeout)
	defer cancel()

	sess := gw.sessions.GetOrCreate(msg.UserID)
	system := agent.BuildChatPrompt(agent.ChatContext{
		UserID:    msg.UserID,
		ChatID:    msg.ChatID,
		MacOnline: gw.cachedMacStatus(ctx) == "online",
		Now:       gw.now(),
	})
	ctx = macx.WithPhotoSink(ctx, photoSink(msg))
	return gw.agent.Chat(ctx, sess, system, msg.Content, gw.chatTools)
}

// photoSink posts images to the chat a message came from.
func photoSink(msg *channel.Message) macx.PhotoSink {
	return func(ctx context.Context, photo []byte, caption string) error {
		ch, err := channel.Get(msg.ChannelID)
		if err != nil {
			return err
		}
		ps, ok := ch.(channel.PhotoSender)
		if !ok {
			return fmt.Errorf("%w: photos on channel %s", channel.ErrUnsupportedOperation, msg.ChannelID)
		}
		return ps.SendPhoto(ctx, msg.ChatID, photo, caption)
	}
}

func keepTyping(ctx context.Context, ch channel.Channel, chatID string) (stop func()) {
	_ = ch.SendChatAction(ctx, chatID, channel.ChatActionTyping)

	ticker := time.NewTicker(typingInterval)
	done := make(chan struct{})
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				_ = ch.SendChatAction(ctx, chatID, channel.ChatActionTyping)
			}
		}
	}()
	return func() { close(done) }
}
