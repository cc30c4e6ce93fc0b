// Package gtts synthesizes speech through the Google Translate TTS endpoint.
package gtts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"voice-relay/internal/infra"
)

// MaxChunk is the longest text the endpoint accepts per request.
const MaxChunk = 100

var ErrEmptyText = errors.New("nothing to synthesize")

type Client struct {
	httpClient *http.Client
	baseURL    string
	retry      infra.RetryConfig
}

func NewClient() *Client {
	return NewClientWithURL("https://translate.google.com")
}

func NewClientWithURL(baseURL string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		retry:      infra.DefaultRetryConfig(),
	}
}

func (c *Client) WithRetry(cfg infra.RetryConfig) *Client {
	c.retry = cfg
	return c
}

// Synthesize writes MP3 speech for text to dst.
func (c *Client) Synthesize(ctx context.Context, text, language, dst string) error {
	chunks := Split(text, MaxChunk)
	if len(chunks) == 0 {
		return ErrEmptyText
	}
	if language == "" {
		language = "en"
	}

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer out.Close()

	for i, chunk := range chunks {
		var audio []byte
		err := infra.WithRetry(ctx, c.retry, func() error {
			var err error
			audio, err = c.fetch(ctx, chunk, language, i, len(chunks))
			return err
		})
		if err != nil {
			return fmt.Errorf("chunk %d/%d: %w", i+1, len(chunks), err)
		}
		if _, err := out.Write(audio); err != nil {
			return fmt.Errorf("writing audio: %w", err)
		}
	}

	return out.Close()
}

func (c *Client) fetch(ctx context.Context, chunk, language string, idx, total int) ([]byte, error) {
	q := url.Values{}
	q.Set("ie", "UTF-8")
	q.Set("q", chunk)
	q.Set("tl", language)
	q.Set("client", "tw-ob")
	q.Set("total", strconv.Itoa(total))
	q.Set("idx", strconv.Itoa(idx))
	q.Set("textlen", strconv.Itoa(utf8.RuneCountInString(chunk)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/translate_tts?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", infra.TransportError(err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("tts error (status %d)", resp.StatusCode)
		if infra.IsRetryableHTTPStatus(resp.StatusCode) {
			return nil, infra.Retryable(err)
		}
		return nil, err
	}
	if len(body) == 0 {
		return nil, errors.New("tts returned no audio")
	}

	return body, nil
}

// Split breaks text into chunks of at most max runes, preferring word
// boundaries. Words longer than max are cut.
func Split(text string, max int) []string {
	var chunks []string
	var current []rune

	flush := func() {
		if s := strings.TrimSpace(string(current)); s != "" {
			chunks = append(chunks, s)
		}
		current = current[:0]
	}

	for _, word := range strings.Fields(text) {
		w := []rune(word)
		for len(w) > max {
			flush()
			chunks = append(chunks, string(w[:max]))
			w = w[max:]
		}
		if len(current) > 0 && len(current)+1+len(w) > max {
			flush()
		}
		if len(current) > 0 {
			current = append(current, ' ')
		}
		current = append(current, w...)
	}
	flush()

	return chunks
}
