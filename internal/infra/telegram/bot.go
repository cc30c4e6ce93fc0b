// Package telegram receives voice messages from a Telegram bot via long
// polling and answers in the same chat.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"voice-relay/internal/application"
	"voice-relay/internal/domain"
	"voice-relay/internal/infra"
)

const (
	DefaultAPIEndpoint  = tgbotapi.APIEndpoint
	DefaultFileEndpoint = tgbotapi.FileEndpoint
)

type Config struct {
	Token        string
	APIEndpoint  string
	FileEndpoint string
	PollTimeout  time.Duration
}

type Bot struct {
	api          *tgbotapi.BotAPI
	token        string
	fileEndpoint string
	pollTimeout  time.Duration
	httpClient   *http.Client
	logger       *slog.Logger

	mu      sync.Mutex
	updates tgbotapi.UpdatesChannel
}

// New connects to the Bot API and verifies the token.
func New(cfg Config, logger *slog.Logger) (*Bot, error) {
	if cfg.APIEndpoint == "" {
		cfg.APIEndpoint = DefaultAPIEndpoint
	}
	if cfg.FileEndpoint == "" {
		cfg.FileEndpoint = DefaultFileEndpoint
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 30 * time.Second
	}

	httpClient := &http.Client{Timeout: cfg.PollTimeout + 30*time.Second}
	api, err := tgbotapi.NewBotAPIWithClient(cfg.Token, cfg.APIEndpoint, httpClient)
	if err != nil {
		return nil, fmt.Errorf("connecting to telegram: %w", infra.StripURL(err))
	}

	logger.Info("telegram bot authorized", "username", api.Self.UserName)

	return &Bot{
		api:          api,
		token:        cfg.Token,
		fileEndpoint: cfg.FileEndpoint,
		pollTimeout:  cfg.PollTimeout,
		httpClient:   httpClient,
		logger:       logger,
	}, nil
}

func (b *Bot) Name() string {
	return "telegram"
}

// Start drops updates queued while the bot was offline and begins polling.
func (b *Bot) Start(_ context.Context) error {
	if _, err := b.api.Request(tgbotapi.DeleteWebhookConfig{DropPendingUpdates: true}); err != nil {
		return fmt.Errorf("deleting webhook: %w", infra.StripURL(err))
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = int(b.pollTimeout.Seconds())
	u.AllowedUpdates = []string{"message"}

	b.mu.Lock()
	b.updates = b.api.GetUpdatesChan(u)
	b.mu.Unlock()
	return nil
}

func (b *Bot) Stop() error {
	b.api.StopReceivingUpdates()
	return nil
}

// NextMessage returns the next message carrying a voice note. Other updates
// are skipped.
func (b *Bot) NextMessage(ctx context.Context) (domain.VoiceMessage, error) {
	b.mu.Lock()
	updates := b.updates
	b.mu.Unlock()
	if updates == nil {
		return domain.VoiceMessage{}, application.ErrPlatformClosed
	}

	for {
		select {
		case <-ctx.Done():
			return domain.VoiceMessage{}, ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return domain.VoiceMessage{}, application.ErrPlatformClosed
			}
			if msg, ok := voiceMessageFrom(update.Message); ok {
				return msg, nil
			}
		}
	}
}

func voiceMessageFrom(m *tgbotapi.Message) (domain.VoiceMessage, bool) {
	if m == nil || m.Voice == nil || m.Chat == nil {
		return domain.VoiceMessage{}, false
	}

	msg := domain.VoiceMessage{
		ID:           strconv.Itoa(m.MessageID),
		Conversation: strconv.FormatInt(m.Chat.ID, 10),
		Clip: domain.VoiceClip{
			FileID:   m.Voice.FileID,
			Format:   "ogg",
			Duration: time.Duration(m.Voice.Duration) * time.Second,
			Size:     int64(m.Voice.FileSize),
		},
		ReceivedAt: m.Time(),
	}
	if m.From != nil {
		msg.Sender = m.From.UserName
		if msg.Sender == "" {
			msg.Sender = strconv.FormatInt(m.From.ID, 10)
		}
	}
	return msg, true
}

func (b *Bot) Download(ctx context.Context, msg domain.VoiceMessage, dst string) error {
	file, err := b.api.GetFile(tgbotapi.FileConfig{FileID: msg.Clip.FileID})
	if err != nil {
		return fmt.Errorf("resolving file: %w", infra.StripURL(err))
	}
	link := fmt.Sprintf(b.fileEndpoint, b.token, file.FilePath)
	return infra.DownloadFile(ctx, b.httpClient, link, dst)
}

func (b *Bot) SendPresence(_ context.Context, msg domain.VoiceMessage) error {
	chatID, _, err := ids(msg)
	if err != nil {
		return err
	}
	if _, err := b.api.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatRecordVoice)); err != nil {
		return fmt.Errorf("sending chat action: %w", infra.StripURL(err))
	}
	return nil
}

func (b *Bot) ReplyText(_ context.Context, msg domain.VoiceMessage, text string) error {
	chatID, messageID, err := ids(msg)
	if err != nil {
		return err
	}
	reply := tgbotapi.NewMessage(chatID, text)
	reply.ReplyToMessageID = messageID
	if _, err := b.api.Send(reply); err != nil {
		return fmt.Errorf("sending message: %w", infra.StripURL(err))
	}
	return nil
}

func (b *Bot) ReplyVoice(_ context.Context, msg domain.VoiceMessage, path string) error {
	chatID, messageID, err := ids(msg)
	if err != nil {
		return err
	}
	voice := tgbotapi.NewVoice(chatID, tgbotapi.FilePath(path))
	voice.ReplyToMessageID = messageID
	if _, err := b.api.Send(voice); err != nil {
		return fmt.Errorf("sending voice: %w", infra.StripURL(err))
	}
	return nil
}

func ids(msg domain.VoiceMessage) (int64, int, error) {
	chatID, err := strconv.ParseInt(msg.Conversation, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid chat id %q: %w", msg.Conversation, err)
	}
	messageID, err := strconv.Atoi(msg.ID)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid message id %q: %w", msg.ID, err)
	}
	return chatID, messageID, nil
}
