// Package google transcribes audio with Google Cloud Speech-to-Text.
package google

import (
	"context"
	"fmt"
	"os"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/api/option"
)

// SpeechClient is the subset of the Cloud Speech client used here.
type SpeechClient interface {
	Recognize(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error)
}

// cloudClient adapts *speech.Client, whose Recognize takes variadic call
// options, to SpeechClient.
type cloudClient struct{ *speech.Client }

func (c cloudClient) Recognize(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
	return c.Client.Recognize(ctx, req)
}

type Recognizer struct {
	client       SpeechClient
	closer       func() error
	languageCode string
	sampleRate   int32
}

// New creates a recognizer. With an empty credentialsFile it relies on
// Application Default Credentials.
func New(ctx context.Context, credentialsFile, languageCode string) (*Recognizer, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech client: %w", err)
	}
	r := NewWithClient(cloudClient{client}, languageCode)
	r.closer = client.Close
	return r, nil
}

func NewWithClient(client SpeechClient, languageCode string) *Recognizer {
	if languageCode == "" {
		languageCode = "en-US"
	}
	return &Recognizer{
		client:       client,
		languageCode: languageCode,
		sampleRate:   16000,
	}
}

// Close cleans up the speech client connection.
func (r *Recognizer) Close() error {
	if r.closer != nil {
		return r.closer()
	}
	return nil
}

// Transcribe sends a 16 kHz mono LINEAR16 WAV file in a single request.
func (r *Recognizer) Transcribe(ctx context.Context, wavPath string) (string, error) {
	audio, err := os.ReadFile(wavPath)
	if err != nil {
		return "", fmt.Errorf("reading audio: %w", err)
	}

	resp, err := r.client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   speechpb.RecognitionConfig_LINEAR16,
			SampleRateHertz:            r.sampleRate,
			LanguageCode:               r.languageCode,
			EnableAutomaticPunctuation: true,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audio},
		},
	})
	if err != nil {
		return "", fmt.Errorf("recognizing speech: %w", err)
	}

	return joinTranscript(resp), nil
}

func joinTranscript(resp *speechpb.RecognizeResponse) string {
	var parts []string
	for _, result := range resp.GetResults() {
		alternatives := result.GetAlternatives()
		if len(alternatives) == 0 {
			continue
		}
		if text := strings.TrimSpace(alternatives[0].GetTranscript()); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}
