package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voice-relay/config"
	"voice-relay/internal/application"
	"voice-relay/internal/infra"
	"voice-relay/internal/infra/anthropic"
	"voice-relay/internal/infra/gemini"
	"voice-relay/internal/infra/gtts"
	"voice-relay/internal/infra/local"
	"voice-relay/internal/infra/openai"
	"voice-relay/internal/infra/whisper"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCreateProviders(t *testing.T) {
	retry := infra.RetryAttempts(1)
	ctx := context.Background()

	stt, closer, err := createRecognizer(ctx, config.RecognizerConfig{Provider: "whisper", URL: "http://localhost:8178"}, retry)
	require.NoError(t, err)
	assert.Nil(t, closer)
	assert.IsType(t, &whisper.Client{}, stt)

	stt, _, err = createRecognizer(ctx, config.RecognizerConfig{Provider: "openai", APIKey: "k"}, retry)
	require.NoError(t, err)
	assert.IsType(t, &openai.Recognizer{}, stt)

	_, _, err = createRecognizer(ctx, config.RecognizerConfig{Provider: "vosk"}, retry)
	assert.Error(t, err)

	gen, err := createGenerator(config.GeneratorConfig{Provider: "gemini", APIKey: "k"}, retry)
	require.NoError(t, err)
	assert.IsType(t, &gemini.Client{}, gen)

	gen, err = createGenerator(config.GeneratorConfig{Provider: "anthropic", APIKey: "k"}, retry)
	require.NoError(t, err)
	assert.IsType(t, &anthropic.ClaudeClient{}, gen)

	gen, err = createGenerator(config.GeneratorConfig{Provider: "openai", APIKey: "k"}, retry)
	require.NoError(t, err)
	assert.IsType(t, &openai.Generator{}, gen)

	syn, err := createSynthesizer(config.SynthesizerConfig{Provider: "gtts"}, retry)
	require.NoError(t, err)
	assert.IsType(t, &gtts.Client{}, syn)

	syn, err = createSynthesizer(config.SynthesizerConfig{Provider: "openai", APIKey: "k"}, retry)
	require.NoError(t, err)
	assert.IsType(t, &openai.Synthesizer{}, syn)
}

func TestCreatePlatform_Local(t *testing.T) {
	p, err := createPlatform(config.PlatformConfig{
		Kind:  "local",
		Local: config.LocalConfig{InboxDir: t.TempDir(), OutboxDir: t.TempDir(), Source: "inbox"},
	}, discard())
	require.NoError(t, err)
	assert.IsType(t, &local.Platform{}, p)
	assert.Equal(t, "local", p.Name())

	_, err = createPlatform(config.PlatformConfig{Kind: "irc"}, discard())
	assert.Error(t, err)
}

func TestRelayOptions(t *testing.T) {
	cfg, err := config.Parse([]byte(`
generator:
  prompt_template: 'Answer briefly: {transcript}'
synthesizer:
  language: de
pipeline:
  generate_timeout: 30s
media:
  work_dir: /var/tmp/relay
`))
	require.NoError(t, err)

	opts := relayOptions(cfg)
	assert.Equal(t, "Answer briefly: {transcript}", opts.PromptTemplate)
	assert.Equal(t, "de", opts.Language)
	assert.Equal(t, 30*time.Second, opts.GenerateTimeout)
	assert.Equal(t, "/var/tmp/relay", opts.WorkDir)
}

func TestRelayOptions_Secrets(t *testing.T) {
	cfg, err := config.Parse([]byte(`
platform:
  telegram:
    token: 123:tg-token
generator:
  api_key: gemini-key
pushover:
  token: po-token
`))
	require.NoError(t, err)

	opts := relayOptions(cfg)
	assert.Subset(t, opts.Secrets, []string{"123:tg-token", "gemini-key", "po-token"})

	notice := application.ErrorNotice(errors.New(`Get "https://api.telegram.org/file/bot123:tg-token/x": timeout`), opts.Secrets...)
	assert.NotContains(t, notice, "123:tg-token")
}

func TestDependenciesClose(t *testing.T) {
	var order []string
	deps := &dependencies{closers: []func() error{
		func() error { order = append(order, "first"); return nil },
		func() error { order = append(order, "second"); return nil },
	}}

	require.NoError(t, deps.Close())
	assert.Equal(t, []string{"second", "first"}, order)
	require.NoError(t, deps.Close())
}

func TestRootCommand(t *testing.T) {
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--help"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "serve")
	assert.Contains(t, out.String(), "relay")
}

func TestSetupLogger(t *testing.T) {
	logger := setupLogger(config.LogConfig{Level: "debug", Format: "json"})
	assert.True(t, logger.Enabled(context.Background(), slog.LevelDebug))

	logger = setupLogger(config.LogConfig{Level: "warn"})
	assert.False(t, logger.Enabled(context.Background(), slog.LevelInfo))
}
