package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"voice-relay/internal/domain"
	"voice-relay/internal/infra"
)

const (
	DefaultModel = "claude-sonnet-4-20250514"
	apiVersion   = "2023-06-01"
)

type ClaudeClient struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	model      string
	maxTokens  int
	retry      infra.RetryConfig
}

func NewClaudeClient(apiKey, model string) *ClaudeClient {
	return NewClaudeClientWithURL(apiKey, model, "https://api.anthropic.com/v1")
}

func NewClaudeClientWithURL(apiKey, model, baseURL string) *ClaudeClient {
	if model == "" {
		model = DefaultModel
	}
	return &ClaudeClient{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		model:      model,
		maxTokens:  1024,
		retry:      infra.DefaultRetryConfig(),
	}
}

func (c *ClaudeClient) WithRetry(cfg infra.RetryConfig) *ClaudeClient {
	c.retry = cfg
	return c
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type request struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type response struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

func (c *ClaudeClient) Generate(ctx context.Context, prompt string) (domain.Reply, error) {
	reqBody := request{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages: []message{
			{Role: "user", Content: prompt},
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return domain.Reply{}, fmt.Errorf("marshaling request: %w", err)
	}

	var result response
	retryErr := infra.WithRetry(ctx, c.retry, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(bodyBytes))
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}

		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-api-key", c.apiKey)
		req.Header.Set("anthropic-version", apiVersion)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("sending request: %w", infra.TransportError(err))
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			respBody, _ := io.ReadAll(resp.Body)
			apiErr := fmt.Errorf("claude API error %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
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
		return domain.Reply{}, retryErr
	}

	var text strings.Builder
	for _, block := range result.Content {
		if block.Type != "" && block.Type != "text" {
			continue
		}
		text.WriteString(block.Text)
	}
	if text.Len() == 0 {
		return domain.Reply{}, nil
	}
	return domain.TextReply(strings.TrimSpace(text.String())), nil
}
