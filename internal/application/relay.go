package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"voice-relay/internal/domain"
)

const (
	DefaultFallbackReply         = "Sorry, I couldn't generate a reply."
	DefaultEmptyTranscriptNotice = "❌ I couldn't understand that. Try again."
	DefaultLanguage              = "en"

	errorNoticePrefix = "⚠️ Error: "
	redacted          = "[redacted]"

	minReceiveBackoff = 100 * time.Millisecond
	maxReceiveBackoff = 5 * time.Second
)

// Options tune a Relay. Zero timeouts leave the stage unbounded.
type Options struct {
	WorkDir               string
	Language              string
	PromptTemplate        string
	FallbackReply         string
	EmptyTranscriptNotice string
	// Secrets are removed from error notices, operator alerts and fault logs.
	Secrets []string

	RecognizeTimeout  time.Duration
	GenerateTimeout   time.Duration
	SynthesizeTimeout time.Duration
}

func DefaultOptions() Options {
	return Options{
		WorkDir:               os.TempDir(),
		Language:              DefaultLanguage,
		PromptTemplate:        DefaultPromptTemplate,
		FallbackReply:         DefaultFallbackReply,
		EmptyTranscriptNotice: DefaultEmptyTranscriptNotice,
	}
}

func (o *Options) setDefaults() {
	defaults := DefaultOptions()
	if o.WorkDir == "" {
		o.WorkDir = defaults.WorkDir
	}
	if o.Language == "" {
		o.Language = defaults.Language
	}
	if o.PromptTemplate == "" {
		o.PromptTemplate = defaults.PromptTemplate
	}
	if o.FallbackReply == "" {
		o.FallbackReply = defaults.FallbackReply
	}
	if o.EmptyTranscriptNotice == "" {
		o.EmptyTranscriptNotice = defaults.EmptyTranscriptNotice
	}
}

// Relay answers voice messages with synthesized voice replies.
type Relay struct {
	platform    Platform
	stt         SpeechToText
	generator   TextGenerator
	synthesizer SpeechSynthesizer
	transcoder  Transcoder
	journal     Journal
	notifier    Notifier
	opts        Options
	logger      *slog.Logger
}

func NewRelay(
	platform Platform,
	stt SpeechToText,
	generator TextGenerator,
	synthesizer SpeechSynthesizer,
	transcoder Transcoder,
	journal Journal,
	notifier Notifier,
	opts Options,
	logger *slog.Logger,
) *Relay {
	opts.setDefaults()
	if journal == nil {
		journal = &NoopJournal{}
	}
	if notifier == nil {
		notifier = &NoopNotifier{}
	}
	return &Relay{
		platform:    platform,
		stt:         stt,
		generator:   generator,
		synthesizer: synthesizer,
		transcoder:  transcoder,
		journal:     journal,
		notifier:    notifier,
		opts:        opts,
		logger:      logger,
	}
}

// Run starts the platform and handles every incoming voice message on its
// own goroutine until ctx is cancelled. In-flight messages are finished
// before the platform is stopped.
func (r *Relay) Run(ctx context.Context) error {
	r.logger.Info("starting platform", "platform", r.platform.Name())
	if err := r.platform.Start(ctx); err != nil {
		return fmt.Errorf("starting platform: %w", err)
	}
	defer r.platform.Stop()

	var wg sync.WaitGroup
	defer wg.Wait()

	// Handlers outlive the receive loop so that shutdown drains them.
	handlerCtx := context.WithoutCancel(ctx)

	r.logger.Info("relay ready, waiting for voice messages")

	backoff := minReceiveBackoff
	for {
		msg, err := r.platform.NextMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, ErrPlatformClosed) {
				return err
			}
			r.logger.Error("receiving message", "error", r.redact(err.Error()), "retry_in", backoff)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, maxReceiveBackoff)
			continue
		}
		backoff = minReceiveBackoff

		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Handle(handlerCtx, msg)
		}()
	}
}

// Handle runs the whole pipeline for one voice message. It always sends
// exactly one response to the conversation and removes every artifact it
// created before returning.
func (r *Relay) Handle(ctx context.Context, msg domain.VoiceMessage) (outcome domain.Outcome) {
	start := time.Now()
	logger := r.logger.With(
		"platform", r.platform.Name(),
		"message_id", msg.ID,
		"conversation", msg.Conversation,
	)
	outcome = domain.Outcome{
		MessageID:    msg.ID,
		Conversation: msg.Conversation,
		Platform:     r.platform.Name(),
		At:           start,
	}

	// process recovers its own panics; this covers reporting and the journal.
	defer func() {
		if p := recover(); p != nil {
			logger.Error("panic while finishing voice message", "panic", r.redact(fmt.Sprint(p)))
			outcome.Duration = time.Since(start)
		}
	}()

	if err := r.process(ctx, msg, &outcome, logger); err != nil {
		r.report(ctx, msg, err, &outcome, logger)
	}

	outcome.Duration = time.Since(start)
	logger.Info("voice message handled", "status", outcome.Status(), "duration", outcome.Duration)

	if err := r.journal.Record(ctx, outcome); err != nil {
		logger.Warn("recording outcome", "error", err)
	}
	return outcome
}

func (r *Relay) process(ctx context.Context, msg domain.VoiceMessage, outcome *domain.Outcome, logger *slog.Logger) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = domain.Fault(domain.FaultInternal, fmt.Errorf("unexpected panic: %v", p))
		}
	}()

	ws, err := OpenWorkspace(r.opts.WorkDir, msg.ID)
	if err != nil {
		return domain.Fault(domain.FaultTransfer, err)
	}
	defer func() {
		if cerr := ws.Close(); cerr != nil {
			logger.Warn("cleaning up workspace", "error", cerr)
		}
	}()

	clipPath := ws.Path(msg.Clip.FileName())
	if err := r.platform.Download(ctx, msg, clipPath); err != nil {
		return domain.Fault(domain.FaultTransfer, fmt.Errorf("downloading voice clip: %w", err))
	}

	wavPath := ws.Path(msg.Clip.FileID + ".wav")
	if err := r.transcoder.ToWAV(ctx, clipPath, wavPath); err != nil {
		return domain.Fault(domain.FaultConversion, fmt.Errorf("decoding voice clip: %w", err))
	}

	transcript, err := offload(ctx, r.opts.RecognizeTimeout, func(ctx context.Context) (string, error) {
		return r.stt.Transcribe(ctx, wavPath)
	})
	if err != nil {
		return domain.Fault(domain.FaultRecognition, fmt.Errorf("transcribing: %w", err))
	}

	transcript = strings.TrimSpace(transcript)
	outcome.Transcript = transcript
	if transcript == "" {
		outcome.Fault = domain.FaultEmptyTranscript
		logger.Warn("empty transcript, nothing to answer")
		if err := r.platform.ReplyText(ctx, msg, r.opts.EmptyTranscriptNotice); err != nil {
			return domain.Fault(domain.FaultDelivery, fmt.Errorf("sending notice: %w", err))
		}
		return nil
	}
	logger.Info("recognized text", "text", transcript)

	prompt := BuildPrompt(r.opts.PromptTemplate, transcript)
	reply, err := offload(ctx, r.opts.GenerateTimeout, func(ctx context.Context) (domain.Reply, error) {
		return r.generator.Generate(ctx, prompt)
	})
	if err != nil {
		return domain.Fault(domain.FaultGeneration, fmt.Errorf("generating reply: %w", err))
	}

	replyText := strings.TrimSpace(reply.Text)
	if !reply.HasText || replyText == "" {
		logger.Warn("model returned no text, using fallback reply")
		replyText = r.opts.FallbackReply
	}
	outcome.Reply = replyText
	logger.Info("generated reply", "text", replyText)

	mp3Path := ws.Path(msg.ID + "_reply.mp3")
	oggPath := ws.Path(msg.ID + "_reply.ogg")

	if err := r.synthesize(ctx, replyText, mp3Path); err != nil {
		return domain.Fault(domain.FaultSynthesis, fmt.Errorf("synthesizing speech: %w", err))
	}
	if err := r.transcoder.ToVoice(ctx, mp3Path, oggPath); err != nil {
		return domain.Fault(domain.FaultSynthesis, fmt.Errorf("encoding voice reply: %w", err))
	}

	if err := r.platform.SendPresence(ctx, msg); err != nil {
		logger.Warn("sending presence", "error", err)
	}

	if err := r.platform.ReplyVoice(ctx, msg, oggPath); err != nil {
		return domain.Fault(domain.FaultDelivery, fmt.Errorf("sending voice reply: %w", err))
	}
	return nil
}

func (r *Relay) synthesize(ctx context.Context, text, dst string) error {
	if r.opts.SynthesizeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.SynthesizeTimeout)
		defer cancel()
	}
	return r.synthesizer.Synthesize(ctx, text, r.opts.Language, dst)
}

// report sends the error notice for a failed invocation.
func (r *Relay) report(ctx context.Context, msg domain.VoiceMessage, err error, outcome *domain.Outcome, logger *slog.Logger) {
	var perr *domain.PipelineError
	if !errors.As(err, &perr) {
		perr = domain.Fault(domain.FaultInternal, err)
	}
	outcome.Fault = perr.Kind

	detail := r.redact(perr.Err.Error())
	logger.Error("handling voice message", "kind", perr.Kind, "error", detail)

	if nerr := r.notifier.Notify(ctx, fmt.Sprintf("%s fault on %s message %s: %s", perr.Kind, outcome.Platform, msg.ID, detail)); nerr != nil {
		logger.Error("notifying operator", "error", r.redact(nerr.Error()))
	}

	if rerr := r.platform.ReplyText(ctx, msg, ErrorNotice(perr.Err, r.opts.Secrets...)); rerr != nil {
		logger.Error("sending error notice", "error", r.redact(rerr.Error()))
	}
}

func (r *Relay) redact(text string) string {
	return Redact(text, r.opts.Secrets...)
}

// ErrorNotice is the text sent to the user when handling fails. Any of
// secrets found in the error are replaced.
func ErrorNotice(err error, secrets ...string) string {
	return errorNoticePrefix + Redact(err.Error(), secrets...)
}

// Redact replaces every occurrence of the non-empty secrets in text.
func Redact(text string, secrets ...string) string {
	for _, secret := range secrets {
		if secret = strings.TrimSpace(secret); secret != "" {
			text = strings.ReplaceAll(text, secret, redacted)
		}
	}
	return text
}
