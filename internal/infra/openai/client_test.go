package openai_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voice-relay/internal/infra/openai"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/audio/transcriptions", func(w http.ResponseWriter, r *http.Request) {
		file, _, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		data, _ := io.ReadAll(file)
		if string(data) != "RIFF clip" || r.FormValue("model") != "whisper-1" {
			http.Error(w, "unexpected upload", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"text":"What time is it?"}`))
	})
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		content := "I'm not sure, I don't have a clock!"
		if req.Messages[0].Content == "stay silent" {
			content = ""
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"index": 0, "message": map[string]string{"role": "assistant", "content": content}},
			},
		})
	})
	mux.HandleFunc("/v1/audio/speech", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input string `json:"input"`
			Voice string `json:"voice"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("ID3" + req.Voice + ":" + req.Input))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestRecognizer_Transcribe(t *testing.T) {
	server := newServer(t)
	path := filepath.Join(t.TempDir(), "clip.wav")
	require.NoError(t, os.WriteFile(path, []byte("RIFF clip"), 0o644))

	text, err := openai.NewClient("key", server.URL+"/v1").Recognizer("en").Transcribe(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "What time is it?", text)
}

func TestGenerator_Generate(t *testing.T) {
	client := openai.NewClient("key", newServer(t).URL+"/v1")

	reply, err := client.Generator("").Generate(context.Background(), "What time is it?")
	require.NoError(t, err)
	assert.True(t, reply.HasText)
	assert.Equal(t, "I'm not sure, I don't have a clock!", reply.Text)

	reply, err = client.Generator("").Generate(context.Background(), "stay silent")
	require.NoError(t, err)
	assert.False(t, reply.HasText)
}

func TestSynthesizer_Synthesize(t *testing.T) {
	client := openai.NewClient("key", newServer(t).URL+"/v1")
	dst := filepath.Join(t.TempDir(), "reply.mp3")

	require.NoError(t, client.Synthesizer("", "nova").Synthesize(context.Background(), "hello", "en", dst))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "ID3nova:hello", string(data))
}
