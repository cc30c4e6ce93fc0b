package application

import (
	"context"
)

// SpeechToText transcribes a WAV file. An empty transcript is not an error.
type SpeechToText interface {
	Transcribe(ctx context.Context, wavPath string) (string, error)
}

// SpeechSynthesizer writes MP3 speech for text in the given language to dst.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text, language, dst string) error
}

// Transcoder converts between the platform container and the formats the
// recognizer and synthesizer work with.
type Transcoder interface {
	// ToWAV decodes an incoming clip into 16 kHz mono PCM WAV.
	ToWAV(ctx context.Context, src, dst string) error
	// ToVoice encodes synthesized speech into OGG/Opus voice notes.
	ToVoice(ctx context.Context, src, dst string) error
}
