// Package discord answers audio attachments posted in Discord channels and
// direct messages.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"voice-relay/internal/application"
	"voice-relay/internal/domain"
	"voice-relay/internal/infra"
)

// session is the part of *discordgo.Session the bot uses.
type session interface {
	Open() error
	Close() error
	AddHandler(handler interface{}) func()
	ChannelTyping(channelID string, options ...discordgo.RequestOption) error
	ChannelMessageSendReply(channelID, content string, reference *discordgo.MessageReference, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

type Bot struct {
	session    session
	httpClient *http.Client
	logger     *slog.Logger

	messages chan domain.VoiceMessage
	done     chan struct{}
	stopOnce sync.Once
	remove   func()
}

func New(token string, logger *slog.Logger) (*Bot, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("creating discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent
	return newBot(s, logger), nil
}

func newBot(s session, logger *slog.Logger) *Bot {
	return &Bot{
		session:    s,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     logger,
		messages:   make(chan domain.VoiceMessage, 16),
		done:       make(chan struct{}),
	}
}

func (b *Bot) Name() string {
	return "discord"
}

func (b *Bot) Start(_ context.Context) error {
	b.remove = b.session.AddHandler(b.onMessageCreate)
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("opening discord session: %w", err)
	}
	b.logger.Info("discord session opened")
	return nil
}

func (b *Bot) Stop() error {
	var err error
	b.stopOnce.Do(func() {
		close(b.done)
		if b.remove != nil {
			b.remove()
		}
		err = b.session.Close()
	})
	return err
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	msg, ok := voiceMessageFrom(m.Message)
	if !ok {
		return
	}
	select {
	case b.messages <- msg:
	case <-b.done:
	}
}

func (b *Bot) NextMessage(ctx context.Context) (domain.VoiceMessage, error) {
	select {
	case <-ctx.Done():
		return domain.VoiceMessage{}, ctx.Err()
	case <-b.done:
		return domain.VoiceMessage{}, application.ErrPlatformClosed
	case msg := <-b.messages:
		return msg, nil
	}
}

// voiceMessageFrom picks the first audio attachment of m.
func voiceMessageFrom(m *discordgo.Message) (domain.VoiceMessage, bool) {
	if m == nil {
		return domain.VoiceMessage{}, false
	}
	for _, a := range m.Attachments {
		if a == nil || !strings.HasPrefix(a.ContentType, "audio/") {
			continue
		}
		msg := domain.VoiceMessage{
			ID:           m.ID,
			Conversation: m.ChannelID,
			Clip: domain.VoiceClip{
				FileID: a.ID,
				Format: attachmentFormat(a),
				URL:    a.URL,
				Size:   int64(a.Size),
			},
			ReceivedAt: m.Timestamp,
		}
		if m.Author != nil {
			msg.Sender = m.Author.Username
		}
		return msg, true
	}
	return domain.VoiceMessage{}, false
}

func attachmentFormat(a *discordgo.MessageAttachment) string {
	if ext := strings.TrimPrefix(filepath.Ext(a.Filename), "."); ext != "" {
		return strings.ToLower(ext)
	}
	_, subtype, _ := strings.Cut(a.ContentType, "/")
	subtype, _, _ = strings.Cut(subtype, ";")
	if subtype == "" || subtype == "mpeg" {
		return "mp3"
	}
	return subtype
}

func (b *Bot) Download(ctx context.Context, msg domain.VoiceMessage, dst string) error {
	if msg.Clip.URL == "" {
		return fmt.Errorf("attachment %s has no url", msg.Clip.FileID)
	}
	return infra.DownloadFile(ctx, b.httpClient, msg.Clip.URL, dst)
}

func (b *Bot) SendPresence(ctx context.Context, msg domain.VoiceMessage) error {
	return b.session.ChannelTyping(msg.Conversation, discordgo.WithContext(ctx))
}

func (b *Bot) ReplyText(ctx context.Context, msg domain.VoiceMessage, text string) error {
	_, err := b.session.ChannelMessageSendReply(msg.Conversation, text, reference(msg), discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("sending message: %w", err)
	}
	return nil
}

func (b *Bot) ReplyVoice(ctx context.Context, msg domain.VoiceMessage, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening voice reply: %w", err)
	}
	defer f.Close()

	_, err = b.session.ChannelMessageSendComplex(msg.Conversation, &discordgo.MessageSend{
		Files: []*discordgo.File{{
			Name:        filepath.Base(path),
			ContentType: "audio/ogg",
			Reader:      f,
		}},
		Reference: reference(msg),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("sending voice: %w", err)
	}
	return nil
}

func reference(msg domain.VoiceMessage) *discordgo.MessageReference {
	return &discordgo.MessageReference{MessageID: msg.ID, ChannelID: msg.Conversation}
}
