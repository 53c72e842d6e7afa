package telegram

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/tgifai/macmate/internal/channel"
	"github.com/tgifai/macmate/internal/config"
	"github.com/tgifai/macmate/internal/pkg/logs"
)

const unsupportedMediaReply = "I can only read text messages and text files (.txt, .md, .py, .js, .json, .csv) for now. Please describe what you need in words."

var (
	_ channel.Channel     = (*Telegram)(nil)
	_ channel.PhotoSender = (*Telegram)(nil)
)

type Telegram struct {
	id          string
	config      Config
	bot         *bot.Bot
	httpClient  *http.Client
	botUsername string // lowercase, for mention matching
	botUserID   int64
	handler     func(ctx context.Context, msg *channel.Message) error
	mu          sync.RWMutex
}

func NewChannel(chanID string, chCfg *config.ChannelConfig) (channel.Channel, error) {
	cfg, err := ParseConfig(chCfg.Config)
	if err != nil {
		return nil, fmt.Errorf("parse telegram config: %w", err)
	}

	tg := &Telegram{
		id:     chanID,
		config: *cfg,
	}

	httpClient := &http.Client{Timeout: cfg.PollTimeout + 10*time.Second}
	tgBot, err := bot.New(cfg.Token,
		bot.WithDefaultHandler(tg.handleUpdate),
		bot.WithHTTPClient(cfg.PollTimeout, httpClient),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	tg.bot = tgBot
	tg.httpClient = httpClient

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if me, err := tgBot.GetMe(ctx); err != nil {
		logs.Warn("[channel:telegram] GetMe failed, group mention filtering disabled: %v", err)
	} else {
		tg.botUsername = strings.ToLower(me.Username)
		tg.botUserID = me.ID
		logs.Info("[channel:telegram] bot identity: @%s (id=%d)", me.Username, me.ID)
	}
	return tg, nil
}

func (c *Telegram) ID() string {
	return c.id
}

func (c *Telegram) Type() channel.Type {
	return channel.Telegram
}

// Start long-polls for updates until ctx is cancelled.
func (c *Telegram) Start(ctx context.Context) error {
	c.bot.Start(ctx)
	return nil
}

// Stop only logs; polling ends with the context passed to Start.
func (c *Telegram) Stop(ctx context.Context) error {
	logs.CtxInfo(ctx, "[channel:telegram] %s stopping", c.id)
	return nil
}

// SendMessage splits long content and sends each chunk with markdown
// rendered as entities, falling back to plain text when Telegram rejects
// the entities.
func (c *Telegram) SendMessage(ctx context.Context, chatID string, content string) error {
	chat, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat ID %q: %w", chatID, err)
	}

	var errs []error
	for _, chunk := range splitMessage(content, c.config.MaxChunk) {
		if err := c.sendChunk(ctx, chat, chunk); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *Telegram) sendChunk(ctx context.Context, chat int64, chunk string) error {
	text, entities := renderEntities(chunk)
	if text == "" {
		text, entities = chunk, nil
	}

	_, err := c.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:   chat,
		Text:     text,
		Entities: entities,
	})
	if err == nil {
		return nil
	}

	logs.CtxWarn(ctx, "[channel:telegram] entity send failed, retrying as plain text: %v", err)
	if _, err = c.bot.SendMessage(ctx, &bot.SendMessageParams{ChatID: chat, Text: chunk}); err != nil {
		return fmt.Errorf("send message to %d: %w", chat, err)
	}
	return nil
}

// SendPhoto uploads an image to a chat.
func (c *Telegram) SendPhoto(ctx context.Context, chatID string, photo []byte, caption string) error {
	chat, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat ID %q: %w", chatID, err)
	}
	if len(photo) == 0 {
		return errors.New("photo is empty")
	}

	_, err = c.bot.SendPhoto(ctx, &bot.SendPhotoParams{
		ChatID:  chat,
		Photo:   &models.InputFileUpload{Filename: "screenshot.png", Data: bytes.NewReader(photo)},
		Caption: caption,
	})
	if err != nil {
		return fmt.Errorf("send photo to %d: %w", chat, err)
	}
	return nil
}

func (c *Telegram) SendChatAction(ctx context.Context, chatID string, action channel.ChatAction) error {
	chat, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat ID %q: %w", chatID, err)
	}

	var tgAction models.ChatAction
	switch action {
	case "", channel.ChatActionTyping:
		tgAction = models.ChatActionTyping
	case channel.ChatActionUploadPhoto:
		tgAction = models.ChatActionUploadPhoto
	case channel.ChatActionFindLocation:
		tgAction = models.ChatActionFindLocation
	default:
		return fmt.Errorf("%w: chat action %s", channel.ErrUnsupportedOperation, action)
	}

	if _, err := c.bot.SendChatAction(ctx, &bot.SendChatActionParams{ChatID: chat, Action: tgAction}); err != nil {
		return fmt.Errorf("failed to send chat action: %w", err)
	}
	return nil
}

func (c *Telegram) RegisterMessageHandler(handler func(ctx context.Context, msg *channel.Message) error) error {
	if handler == nil {
		return errors.New("handler cannot be nil")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = handler
	return nil
}

// handleUpdate normalises text messages and text documents and forwards them
// to the handler. Group messages are only taken when they mention the bot or
// are commands.
func (c *Telegram) handleUpdate(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}

	content := msg.Text
	if content == "" {
		content = msg.Caption
	}

	if isGroupChat(msg.Chat.Type) && c.botUsername != "" {
		if c.config.MentionOnly && !strings.HasPrefix(content, "/") && !c.mentioned(msg) {
			return
		}
		content = c.stripMention(content)
	}

	if doc := msg.Document; doc != nil && isTextDocument(doc.FileName) {
		text, err := c.readDocument(ctx, doc)
		if err != nil {
			logs.CtxWarn(ctx, "[channel:telegram] read document %s failed: %v", doc.FileName, err)
			_, _ = b.SendMessage(ctx, &bot.SendMessageParams{
				ChatID: msg.Chat.ID,
				Text:   fmt.Sprintf("Could not read %s: %v", doc.FileName, err),
			})
			return
		}
		content = documentPrompt(doc.FileName, content, text)
	}

	if strings.TrimSpace(content) == "" {
		if len(msg.Photo) > 0 || msg.Voice != nil || msg.Audio != nil || msg.Document != nil {
			_, _ = b.SendMessage(ctx, &bot.SendMessageParams{ChatID: msg.Chat.ID, Text: unsupportedMediaReply})
		}
		return
	}

	c.mu.RLock()
	handler := c.handler
	c.mu.RUnlock()
	if handler == nil {
		return
	}

	if err := handler(ctx, c.normalize(msg, content)); err != nil {
		logs.CtxError(ctx, "[channel:telegram] error handling message: %v", err)
		_, _ = b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: msg.Chat.ID,
			Text:   "Sorry, an error occurred while processing your message.",
		})
	}
}

func (c *Telegram) normalize(msg *models.Message, content string) *channel.Message {
	messageID := strconv.Itoa(msg.ID)
	return &channel.Message{
		ID:          messageID,
		ChannelID:   c.id,
		ChannelType: channel.Telegram,
		UserID:      strconv.FormatInt(msg.From.ID, 10),
		ChatID:      strconv.FormatInt(msg.Chat.ID, 10),
		Content:     strings.TrimSpace(content),
		Metadata: map[string]string{
			"message_id": messageID,
			"chat_type":  string(msg.Chat.Type),
			"username":   msg.From.Username,
			"first_name": msg.From.FirstName,
		},
	}
}

func isGroupChat(chatType models.ChatType) bool {
	return chatType == models.ChatTypeGroup || chatType == models.ChatTypeSupergroup
}

func (c *Telegram) mentioned(msg *models.Message) bool {
	return c.mentionedIn(msg.Text, msg.Entities) || c.mentionedIn(msg.Caption, msg.CaptionEntities)
}

// mentionedIn reports whether entities mention this bot. Entity offsets are
// UTF-16 based.
func (c *Telegram) mentionedIn(text string, entities []models.MessageEntity) bool {
	units := utf16Units(text)
	for _, e := range entities {
		switch e.Type {
		case models.MessageEntityTypeMention:
			if e.Offset >= 0 && e.Offset+e.Length <= len(units) {
				if strings.EqualFold(utf16String(units[e.Offset:e.Offset+e.Length]), "@"+c.botUsername) {
					return true
				}
			}
		case models.MessageEntityTypeTextMention:
			if e.User != nil && e.User.ID == c.botUserID {
				return true
			}
		}
	}
	return false
}

// stripMention removes every case-insensitive @botname from content.
func (c *Telegram) stripMention(content string) string {
	mention := "@" + c.botUsername
	lower := strings.ToLower(content)
	for {
		idx := strings.Index(lower, mention)
		if idx < 0 {
			break
		}
		content = content[:idx] + content[idx+len(mention):]
		lower = lower[:idx] + lower[idx+len(mention):]
	}
	return strings.TrimSpace(content)
}
