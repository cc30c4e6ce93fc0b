// Package local is a chat platform backed by directories: clips dropped in
// the inbox are answered in the outbox.
package local

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"voice-relay/internal/application"
	"voice-relay/internal/domain"
)

const Conversation = "local"

var clipExtensions = map[string]bool{
	".ogg": true, ".oga": true, ".opus": true, ".wav": true,
	".mp3": true, ".m4a": true, ".webm": true,
}

// Recorder captures one utterance as WAV bytes.
type Recorder interface {
	Start(ctx context.Context) error
	Stop() error
	Record(ctx context.Context) ([]byte, error)
}

type Config struct {
	InboxDir     string
	OutboxDir    string
	PollInterval time.Duration
}

type Platform struct {
	inbox    string
	outbox   string
	interval time.Duration
	recorder Recorder
	logger   *slog.Logger

	mu        sync.Mutex
	processed map[string]bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

func New(cfg Config, logger *slog.Logger) *Platform {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	return &Platform{
		inbox:     cfg.InboxDir,
		outbox:    cfg.OutboxDir,
		interval:  cfg.PollInterval,
		logger:    logger,
		processed: make(map[string]bool),
	}
}

// WithRecorder feeds recorded utterances into the inbox.
func (p *Platform) WithRecorder(r Recorder) *Platform {
	p.recorder = r
	return p
}

func (p *Platform) Name() string {
	return "local"
}

func (p *Platform) Start(ctx context.Context) error {
	for _, dir := range []string{p.inbox, p.outbox} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	if p.recorder == nil {
		return nil
	}

	if err := p.recorder.Start(ctx); err != nil {
		return fmt.Errorf("starting recorder: %w", err)
	}
	recordCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.wg.Add(1)
	go p.record(recordCtx)
	return nil
}

func (p *Platform) record(ctx context.Context) {
	defer p.wg.Done()
	for ctx.Err() == nil {
		wav, err := p.recorder.Record(ctx)
		if err != nil {
			if ctx.Err() == nil {
				p.logger.Error("recording utterance", "error", err)
			}
			return
		}
		path := filepath.Join(p.inbox, uuid.NewString()+".wav")
		if err := os.WriteFile(path, wav, 0o644); err != nil {
			p.logger.Error("saving utterance", "error", err)
			continue
		}
		p.logger.Info("utterance recorded", "path", path)
	}
}

func (p *Platform) Stop() error {
	if p.cancel != nil {
		p.cancel()
		p.wg.Wait()
	}
	if p.recorder != nil {
		return p.recorder.Stop()
	}
	return nil
}

func (p *Platform) NextMessage(ctx context.Context) (domain.VoiceMessage, error) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		msg, ok, err := p.checkForNewFile()
		if err != nil {
			return domain.VoiceMessage{}, err
		}
		if ok {
			return msg, nil
		}

		select {
		case <-ctx.Done():
			return domain.VoiceMessage{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (p *Platform) checkForNewFile() (domain.VoiceMessage, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	entries, err := os.ReadDir(p.inbox)
	if err != nil {
		return domain.VoiceMessage{}, false, fmt.Errorf("reading inbox: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !clipExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}

		path := filepath.Join(p.inbox, entry.Name())
		if p.processed[path] {
			continue
		}
		p.processed[path] = true

		processedPath := path + ".processed"
		if err := os.Rename(path, processedPath); err != nil {
			return domain.VoiceMessage{}, false, fmt.Errorf("claiming %s: %w", path, err)
		}

		msg := MessageFromFile(processedPath)
		msg.Clip.Format = clipFormat(path)
		return msg, true, nil
	}

	return domain.VoiceMessage{}, false, nil
}

// MessageFromFile wraps a clip on disk as a voice message with a fresh id.
func MessageFromFile(path string) domain.VoiceMessage {
	id := uuid.NewString()
	var size int64
	if info, err := os.Stat(path); err == nil {
		size = info.Size()
	}
	return domain.VoiceMessage{
		ID:           id,
		Conversation: Conversation,
		Sender:       os.Getenv("USER"),
		Clip: domain.VoiceClip{
			FileID: id,
			Format: clipFormat(path),
			URL:    path,
			Size:   size,
		},
		ReceivedAt: time.Now(),
	}
}

func clipFormat(path string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if ext == "" || ext == "oga" || ext == "opus" {
		return "ogg"
	}
	return ext
}

func (p *Platform) Download(_ context.Context, msg domain.VoiceMessage, dst string) error {
	return copyFile(msg.Clip.URL, dst)
}

func (p *Platform) SendPresence(_ context.Context, msg domain.VoiceMessage) error {
	p.logger.Info("recording voice reply", "message_id", msg.ID)
	return nil
}

func (p *Platform) ReplyText(_ context.Context, msg domain.VoiceMessage, text string) error {
	path := p.ReplyPath(msg, ".txt")
	if err := os.WriteFile(path, []byte(text+"\n"), 0o644); err != nil {
		return fmt.Errorf("writing reply: %w", err)
	}
	p.logger.Info("text reply written", "path", path, "text", text)
	return nil
}

func (p *Platform) ReplyVoice(_ context.Context, msg domain.VoiceMessage, path string) error {
	dst := p.ReplyPath(msg, ".ogg")
	if err := copyFile(path, dst); err != nil {
		return err
	}
	p.logger.Info("voice reply written", "path", dst)
	return nil
}

// ReplyPath is where the reply to msg with the given extension is written.
func (p *Platform) ReplyPath(msg domain.VoiceMessage, ext string) string {
	return filepath.Join(p.outbox, application.SafeName(msg.ID)+"_reply"+ext)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copying %s: %w", src, err)
	}
	return out.Close()
}
