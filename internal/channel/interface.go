package channel

import (
	"context"
)

// Channel adapts one chat platform: it receives user messages and delivers
// replies and scheduled task results.
type Channel interface {
	// ID returns the configured channel identifier.
	ID() string

	Type() Type

	// Start runs the receive loop and blocks until ctx is cancelled or a
	// fatal error occurs.
	Start(ctx context.Context) error

	Stop(ctx context.Context) error

	// SendMessage delivers text to a chat. Long texts are split by the
	// implementation.
	SendMessage(ctx context.Context, chatID string, content string) error

	// SendChatAction shows a transient activity state such as "typing".
	// Implementations without support return ErrUnsupportedOperation.
	SendChatAction(ctx context.Context, chatID string, action ChatAction) error

	// RegisterMessageHandler sets the callback invoked for every inbound
	// Message.
	RegisterMessageHandler(handler func(ctx context.Context, msg *Message) error) error
}

// PhotoSender is implemented by channels that can deliver images.
type PhotoSender interface {
	SendPhoto(ctx context.Context, chatID string, photo []byte, caption string) error
}
