//go:build portaudio

package local

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"

	"github.com/gordonklaus/portaudio"
)

const framesPerBuffer = 1024

// Microphone records utterances from the default input device. An
// utterance ends after a second of silence or ten seconds of audio.
type Microphone struct {
	stream     *portaudio.Stream
	frame      []int16
	sampleRate int
	logger     *slog.Logger
}

func NewMicrophone(sampleRate int, logger *slog.Logger) *Microphone {
	return &Microphone{
		sampleRate: sampleRate,
		frame:      make([]int16, framesPerBuffer),
		logger:     logger,
	}
}

func (m *Microphone) Start(_ context.Context) error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("initializing portaudio: %w", err)
	}

	stream, err := portaudio.OpenDefaultStream(1, 0, float64(m.sampleRate), framesPerBuffer, m.frame)
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("opening stream: %w", err)
	}
	m.stream = stream

	if err := m.stream.Start(); err != nil {
		return fmt.Errorf("starting stream: %w", err)
	}

	m.logger.Info("microphone started", "sampleRate", m.sampleRate)
	return nil
}

func (m *Microphone) Stop() error {
	if m.stream != nil {
		m.stream.Stop()
		m.stream.Close()
	}
	return portaudio.Terminate()
}

func (m *Microphone) Record(ctx context.Context) ([]byte, error) {
	samples := make([]int16, 0, m.sampleRate*5)
	silenceThreshold := int16(500)
	silent := 0
	heard := false

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if err := m.stream.Read(); err != nil {
			return nil, fmt.Errorf("reading from stream: %w", err)
		}

		loud := false
		for _, sample := range m.frame {
			if sample > silenceThreshold || sample < -silenceThreshold {
				loud = true
				break
			}
		}

		if !heard {
			if !loud {
				continue
			}
			heard = true
		}

		samples = append(samples, m.frame...)
		if loud {
			silent = 0
		} else {
			silent += len(m.frame)
		}

		if silent > m.sampleRate || len(samples) > m.sampleRate*10 {
			return samplesToWAV(samples, m.sampleRate), nil
		}
	}
}

func samplesToWAV(samples []int16, sampleRate int) []byte {
	var buf bytes.Buffer

	dataSize := len(samples) * 2

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, int32(36+dataSize))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, int32(16))
	binary.Write(&buf, binary.LittleEndian, int16(1))
	binary.Write(&buf, binary.LittleEndian, int16(1))
	binary.Write(&buf, binary.LittleEndian, int32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, int32(sampleRate*2))
	binary.Write(&buf, binary.LittleEndian, int16(2))
	binary.Write(&buf, binary.LittleEndian, int16(16))

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, int32(dataSize))
	binary.Write(&buf, binary.LittleEndian, samples)

	return buf.Bytes()
}
