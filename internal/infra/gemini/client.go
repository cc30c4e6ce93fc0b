package gemini

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

const DefaultModel = "gemini-1.5-flash"

type Client struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	model      string
	retry      infra.RetryConfig
}

func NewClient(apiKey, model string) *Client {
	return NewClientWithURL(apiKey, model, "https://generativelanguage.googleapis.com/v1beta")
}

func NewClientWithURL(apiKey, model, baseURL string) *Client {
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		model:      model,
		retry:      infra.DefaultRetryConfig(),
	}
}

// WithRetry sets the retry schedule for transient API errors.
func (c *Client) WithRetry(cfg infra.RetryConfig) *Client {
	c.retry = cfg
	return c
}

type content struct {
	Parts []part `json:"parts"`
	Role  string `json:"role,omitempty"`
}

type part struct {
	Text string `json:"text"`
}

type request struct {
	Contents []content `json:"contents"`
}

type response struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback,omitempty"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error,omitempty"`
}

// Generate sends the prompt as a single user turn. A response without any
// text part, such as a blocked prompt, yields a Reply without text.
func (c *Client) Generate(ctx context.Context, prompt string) (domain.Reply, error) {
	reqBody := request{
		Contents: []content{
			{
				Role:  "user",
				Parts: []part{{Text: prompt}},
			},
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return domain.Reply{}, fmt.Errorf("marshaling request: %w", err)
	}

	var result response
	retryErr := infra.WithRetry(ctx, c.retry, func() error {
		endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}

		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-goog-api-key", c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("sending request: %w", infra.TransportError(err))
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("reading response: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			apiErr := fmt.Errorf("gemini API error %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
			if infra.IsRetryableHTTPStatus(resp.StatusCode) {
				return infra.Retryable(apiErr)
			}
			return apiErr
		}

		if err = json.Unmarshal(respBody, &result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}

		return nil
	})

	if retryErr != nil {
		return domain.Reply{}, retryErr
	}

	if result.Error != nil {
		return domain.Reply{}, fmt.Errorf("gemini error: %s", result.Error.Message)
	}

	var text strings.Builder
	for _, candidate := range result.Candidates {
		for _, p := range candidate.Content.Parts {
			text.WriteString(p.Text)
		}
		if text.Len() > 0 {
			break
		}
	}
	if text.Len() == 0 {
		return domain.Reply{}, nil
	}

	return domain.TextReply(strings.TrimSpace(text.String())), nil
}
