package application

import (
	"context"
	"strings"

	"voice-relay/internal/domain"
)

// TranscriptPlaceholder marks where the transcript goes in a prompt template.
const TranscriptPlaceholder = "{transcript}"

const DefaultPromptTemplate = `You are a friendly and helpful assistant. Respond in a natural, human-like tone. The user said: "{transcript}"`

type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (domain.Reply, error)
}

// BuildPrompt interpolates the transcript verbatim. Quotes inside the
// transcript are not escaped.
func BuildPrompt(template, transcript string) string {
	return strings.ReplaceAll(template, TranscriptPlaceholder, transcript)
}
