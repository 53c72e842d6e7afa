package channel

import (
	"errors"
)

var ErrUnsupportedOperation = errors.New("channel operation is not supported")

type Type string

const (
	Telegram Type = "telegram"
)

var SupportedChannels = []Type{
	Telegram,
}

// Message is an inbound chat message normalised across platforms.
type Message struct {
	ID          string
	ChannelID   string
	ChannelType Type
	UserID      string
	ChatID      string
	Content     string
	Metadata    map[string]string
}

type ChatAction string

const (
	ChatActionTyping       ChatAction = "typing"
	ChatActionUploadPhoto  ChatAction = "upload_photo"
	ChatActionFindLocation ChatAction = "find_location"
)
