package application

import (
	"context"
	"errors"

	"voice-relay/internal/domain"
)

// ErrPlatformClosed is returned by NextMessage once the platform stopped
// delivering messages.
var ErrPlatformClosed = errors.New("platform closed")

// Platform is the chat platform the relay talks to.
type Platform interface {
	Name() string
	Start(ctx context.Context) error
	Stop() error
	NextMessage(ctx context.Context) (domain.VoiceMessage, error)

	// Download stores the message's voice clip at dst.
	Download(ctx context.Context, msg domain.VoiceMessage, dst string) error
	// SendPresence shows a "recording voice" indicator in the conversation.
	SendPresence(ctx context.Context, msg domain.VoiceMessage) error
	ReplyText(ctx context.Context, msg domain.VoiceMessage, text string) error
	ReplyVoice(ctx context.Context, msg domain.VoiceMessage, path string) error
}
