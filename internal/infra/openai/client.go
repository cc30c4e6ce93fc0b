// Package openai adapts the OpenAI audio and chat APIs through go-openai.
package openai

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"voice-relay/internal/domain"
)

const (
	DefaultChatModel   = goopenai.GPT4oMini
	DefaultSpeechModel = string(goopenai.TTSModel1)
	DefaultVoice       = string(goopenai.VoiceAlloy)
)

type Client struct {
	api *goopenai.Client
}

// NewClient builds a client. baseURL may be empty for the public API.
func NewClient(apiKey, baseURL string) *Client {
	cfg := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimSuffix(baseURL, "/")
	}
	return &Client{api: goopenai.NewClientWithConfig(cfg)}
}

// Recognizer transcribes with Whisper.
type Recognizer struct {
	client   *Client
	language string
}

func (c *Client) Recognizer(language string) *Recognizer {
	return &Recognizer{client: c, language: language}
}

func (r *Recognizer) Transcribe(ctx context.Context, wavPath string) (string, error) {
	resp, err := r.client.api.CreateTranscription(ctx, goopenai.AudioRequest{
		Model:    goopenai.Whisper1,
		FilePath: wavPath,
		Language: r.language,
		Format:   goopenai.AudioResponseFormatJSON,
	})
	if err != nil {
		return "", fmt.Errorf("openai transcription: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}

// Generator answers prompts with a chat completion.
type Generator struct {
	client *Client
	model  string
}

func (c *Client) Generator(model string) *Generator {
	if model == "" {
		model = DefaultChatModel
	}
	return &Generator{client: c, model: model}
}

func (g *Generator) Generate(ctx context.Context, prompt string) (domain.Reply, error) {
	resp, err := g.client.api.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model: g.model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return domain.Reply{}, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return domain.Reply{}, nil
	}
	return domain.TextReply(strings.TrimSpace(resp.Choices[0].Message.Content)), nil
}

// Synthesizer renders MP3 speech. The language argument is ignored: the
// voices are multilingual and follow the input text.
type Synthesizer struct {
	client *Client
	model  string
	voice  string
}

func (c *Client) Synthesizer(model, voice string) *Synthesizer {
	if model == "" {
		model = DefaultSpeechModel
	}
	if voice == "" {
		voice = DefaultVoice
	}
	return &Synthesizer{client: c, model: model, voice: voice}
}

func (s *Synthesizer) Synthesize(ctx context.Context, text, _ string, dst string) error {
	resp, err := s.client.api.CreateSpeech(ctx, goopenai.CreateSpeechRequest{
		Model:          goopenai.SpeechModel(s.model),
		Input:          text,
		Voice:          goopenai.SpeechVoice(s.voice),
		ResponseFormat: goopenai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return fmt.Errorf("openai speech: %w", err)
	}
	defer resp.Close()

	f, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dst, err)
	}
	if _, err := io.Copy(f, resp); err != nil {
		f.Close()
		return fmt.Errorf("writing speech: %w", err)
	}
	return f.Close()
}
