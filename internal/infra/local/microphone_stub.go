//go:build !portaudio

package local

import (
	"context"
	"errors"
	"log/slog"
)

var errNoPortAudio = errors.New("microphone not available: rebuild with -tags portaudio")

// Microphone stub when portaudio is not available
type Microphone struct{}

func NewMicrophone(sampleRate int, logger *slog.Logger) *Microphone {
	return &Microphone{}
}

func (m *Microphone) Start(_ context.Context) error {
	return errNoPortAudio
}

func (m *Microphone) Stop() error {
	return nil
}

func (m *Microphone) Record(_ context.Context) ([]byte, error) {
	return nil, errNoPortAudio
}
