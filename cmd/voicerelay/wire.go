package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"voice-relay/config"
	"voice-relay/internal/application"
	"voice-relay/internal/infra"
	"voice-relay/internal/infra/anthropic"
	"voice-relay/internal/infra/discord"
	"voice-relay/internal/infra/gemini"
	"voice-relay/internal/infra/google"
	"voice-relay/internal/infra/gtts"
	"voice-relay/internal/infra/journal"
	"voice-relay/internal/infra/local"
	"voice-relay/internal/infra/media"
	"voice-relay/internal/infra/openai"
	"voice-relay/internal/infra/pushover"
	"voice-relay/internal/infra/telegram"
	"voice-relay/internal/infra/whisper"
)

type dependencies struct {
	stt         application.SpeechToText
	generator   application.TextGenerator
	synthesizer application.SpeechSynthesizer
	transcoder  application.Transcoder
	journal     application.Journal
	notifier    application.Notifier
	closers     []func() error
}

func buildDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*dependencies, error) {
	deps := &dependencies{}
	retry := infra.RetryAttempts(cfg.Retry.MaxAttempts)

	ffmpeg := media.NewFFmpeg(cfg.Media.FFmpegPath)
	if err := ffmpeg.Check(ctx); err != nil {
		return nil, err
	}
	deps.transcoder = ffmpeg

	stt, closer, err := createRecognizer(ctx, cfg.Recognizer, retry)
	if err != nil {
		return nil, err
	}
	deps.stt = stt
	if closer != nil {
		deps.closers = append(deps.closers, closer)
	}

	if deps.generator, err = createGenerator(cfg.Generator, retry); err != nil {
		deps.Close()
		return nil, err
	}
	if deps.synthesizer, err = createSynthesizer(cfg.Synthesizer, retry); err != nil {
		deps.Close()
		return nil, err
	}

	deps.journal = &application.NoopJournal{}
	if cfg.Journal.RedisAddr != "" {
		j, err := journal.NewRedis(ctx, journal.Config{
			Addr:       cfg.Journal.RedisAddr,
			Password:   cfg.Journal.RedisPassword,
			DB:         cfg.Journal.RedisDB,
			MaxEntries: cfg.Journal.MaxEntries,
			TTL:        cfg.Journal.TTL,
		})
		if err != nil {
			deps.Close()
			return nil, err
		}
		deps.journal = j
		deps.closers = append(deps.closers, j.Close)
		logger.Info("journal connected", "addr", cfg.Journal.RedisAddr)
	}

	if cfg.Pushover.Enabled {
		deps.notifier = pushover.NewClient(cfg.Pushover.Token, cfg.Pushover.UserKey)
	} else {
		deps.notifier = &application.NoopNotifier{}
	}

	return deps, nil
}

func (d *dependencies) relay(platform application.Platform, cfg *config.Config, logger *slog.Logger) *application.Relay {
	return application.NewRelay(
		platform,
		d.stt,
		d.generator,
		d.synthesizer,
		d.transcoder,
		d.journal,
		d.notifier,
		relayOptions(cfg),
		logger,
	)
}

func (d *dependencies) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		errs = append(errs, d.closers[i]())
	}
	d.closers = nil
	return errors.Join(errs...)
}

func relayOptions(cfg *config.Config) application.Options {
	return application.Options{
		WorkDir:           cfg.Media.WorkDir,
		Language:          cfg.Synthesizer.Language,
		PromptTemplate:    cfg.Generator.PromptTemplate,
		FallbackReply:     cfg.Generator.FallbackReply,
		Secrets:           secrets(cfg),
		RecognizeTimeout:  cfg.Pipeline.RecognizeTimeout,
		GenerateTimeout:   cfg.Pipeline.GenerateTimeout,
		SynthesizeTimeout: cfg.Pipeline.SynthesizeTimeout,
	}
}

func createPlatform(cfg config.PlatformConfig, logger *slog.Logger) (application.Platform, error) {
	switch cfg.Kind {
	case "telegram":
		return telegram.New(telegram.Config{
			Token:       cfg.Telegram.Token,
			APIEndpoint: cfg.Telegram.APIEndpoint,
			PollTimeout: cfg.Telegram.PollTimeout,
		}, logger)
	case "discord":
		return discord.New(cfg.Discord.Token, logger)
	case "local":
		p := local.New(local.Config{
			InboxDir:  cfg.Local.InboxDir,
			OutboxDir: cfg.Local.OutboxDir,
		}, logger)
		if cfg.Local.Source == "microphone" {
			p.WithRecorder(local.NewMicrophone(cfg.Local.SampleRate, logger))
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown platform %q", cfg.Kind)
	}
}

func createRecognizer(ctx context.Context, cfg config.RecognizerConfig, retry infra.RetryConfig) (application.SpeechToText, func() error, error) {
	switch cfg.Provider {
	case "whisper":
		return whisper.NewClient(cfg.URL, cfg.Model, cfg.Language).WithRetry(retry), nil, nil
	case "openai":
		return openai.NewClient(cfg.APIKey, cfg.URL).Recognizer(cfg.Language), nil, nil
	case "google":
		r, err := google.New(ctx, cfg.CredentialsFile, cfg.Language)
		if err != nil {
			return nil, nil, err
		}
		return r, r.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown recognizer %q", cfg.Provider)
	}
}

func createGenerator(cfg config.GeneratorConfig, retry infra.RetryConfig) (application.TextGenerator, error) {
	switch cfg.Provider {
	case "gemini":
		if cfg.URL != "" {
			return gemini.NewClientWithURL(cfg.APIKey, cfg.Model, cfg.URL).WithRetry(retry), nil
		}
		return gemini.NewClient(cfg.APIKey, cfg.Model).WithRetry(retry), nil
	case "anthropic":
		if cfg.URL != "" {
			return anthropic.NewClaudeClientWithURL(cfg.APIKey, cfg.Model, cfg.URL).WithRetry(retry), nil
		}
		return anthropic.NewClaudeClient(cfg.APIKey, cfg.Model).WithRetry(retry), nil
	case "openai":
		return openai.NewClient(cfg.APIKey, cfg.URL).Generator(cfg.Model), nil
	default:
		return nil, fmt.Errorf("unknown generator %q", cfg.Provider)
	}
}

func createSynthesizer(cfg config.SynthesizerConfig, retry infra.RetryConfig) (application.SpeechSynthesizer, error) {
	switch cfg.Provider {
	case "gtts":
		return gtts.NewClient().WithRetry(retry), nil
	case "openai":
		return openai.NewClient(cfg.APIKey, "").Synthesizer(cfg.Model, cfg.Voice), nil
	default:
		return nil, fmt.Errorf("unknown synthesizer %q", cfg.Provider)
	}
}

// secrets lists the configured credentials that must never reach a chat.
func secrets(cfg *config.Config) []string {
	return []string{
		cfg.Platform.Telegram.Token,
		cfg.Platform.Discord.Token,
		cfg.Recognizer.APIKey,
		cfg.Generator.APIKey,
		cfg.Synthesizer.APIKey,
		cfg.Journal.RedisPassword,
		cfg.Pushover.Token,
		cfg.Pushover.UserKey,
	}
}
