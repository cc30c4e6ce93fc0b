// Package whisper talks to a self-hosted whisper.cpp server
// (`whisper-server -m ggml-<model>.bin`).
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"voice-relay/internal/infra"
)

const DefaultModel = "small"

type Client struct {
	httpClient *http.Client
	baseURL    string
	model      string
	language   string
	retry      infra.RetryConfig
}

// NewClient points at the server's base URL, e.g. http://localhost:8178.
// model is informational: the server decides which weights are loaded.
func NewClient(baseURL, model, language string) *Client {
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		model:      model,
		language:   language,
		retry:      infra.DefaultRetryConfig(),
	}
}

func (c *Client) WithRetry(cfg infra.RetryConfig) *Client {
	c.retry = cfg
	return c
}

func (c *Client) Model() string {
	return c.model
}

type inferenceResponse struct {
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

func (c *Client) Transcribe(ctx context.Context, wavPath string) (string, error) {
	audio, err := os.ReadFile(wavPath)
	if err != nil {
		return "", fmt.Errorf("reading audio: %w", err)
	}

	var result inferenceResponse

	retryErr := infra.WithRetry(ctx, c.retry, func() error {
		body := &bytes.Buffer{}
		writer := multipart.NewWriter(body)

		part, err := writer.CreateFormFile("file", filepath.Base(wavPath))
		if err != nil {
			return fmt.Errorf("creating form file: %w", err)
		}

		if _, err = part.Write(audio); err != nil {
			return fmt.Errorf("writing audio: %w", err)
		}

		if err = writer.WriteField("response_format", "json"); err != nil {
			return fmt.Errorf("writing format field: %w", err)
		}

		if err = writer.WriteField("temperature", "0.0"); err != nil {
			return fmt.Errorf("writing temperature field: %w", err)
		}

		if c.language != "" {
			if err = writer.WriteField("language", c.language); err != nil {
				return fmt.Errorf("writing language field: %w", err)
			}
		}

		if err = writer.Close(); err != nil {
			return fmt.Errorf("closing writer: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/inference", body)
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}

		req.Header.Set("Content-Type", writer.FormDataContentType())

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("sending request: %w", infra.TransportError(err))
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			respBody, _ := io.ReadAll(resp.Body)
			apiErr := fmt.Errorf("whisper server error %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
			if infra.IsRetryableHTTPStatus(resp.StatusCode) {
				return infra.Retryable(apiErr)
			}
			return apiErr
		}

		if err = json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}

		return nil
	})

	if retryErr != nil {
		return "", retryErr
	}
	if result.Error != "" {
		return "", fmt.Errorf("whisper server: %s", result.Error)
	}

	return strings.TrimSpace(result.Text), nil
}
