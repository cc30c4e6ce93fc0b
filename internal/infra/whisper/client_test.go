package whisper_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"voice-relay/internal/infra"
	"voice-relay/internal/infra/whisper"
)

func writeClip(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.wav")
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("writing clip: %v", err)
	}
	return path
}

func TestClient_Transcribe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/inference" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		data, _ := io.ReadAll(file)
		if string(data) != "RIFF fake" || header.Filename != "clip.wav" {
			http.Error(w, "unexpected upload", http.StatusBadRequest)
			return
		}
		if r.FormValue("language") != "en" || r.FormValue("response_format") != "json" {
			http.Error(w, "unexpected fields", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"text":" What time is it?\n"}`))
	}))
	defer server.Close()

	client := whisper.NewClient(server.URL, "", "en")
	text, err := client.Transcribe(context.Background(), writeClip(t, "RIFF fake"))
	if err != nil {
		t.Fatalf("Transcribe error: %v", err)
	}
	if text != "What time is it?" {
		t.Errorf("text: got %q", text)
	}
	if client.Model() != whisper.DefaultModel {
		t.Errorf("model: got %q", client.Model())
	}
}

func TestClient_TranscribeSilence(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"text":""}`))
	}))
	defer server.Close()

	text, err := whisper.NewClient(server.URL, "small", "").Transcribe(context.Background(), writeClip(t, "RIFF"))
	if err != nil {
		t.Fatalf("Transcribe error: %v", err)
	}
	if text != "" {
		t.Errorf("text: got %q, want empty", text)
	}
}

func TestClient_TranscribeServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer server.Close()

	if _, err := whisper.NewClient(server.URL, "small", "").Transcribe(context.Background(), writeClip(t, "RIFF")); err == nil {
		t.Fatal("expected error")
	}
}

func TestClient_TranscribeRetriesDroppedConnection(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			conn, _, err := w.(http.Hijacker).Hijack()
			if err != nil {
				t.Fatalf("hijack: %v", err)
			}
			conn.Close()
			return
		}
		w.Write([]byte(`{"text":" hello "}`))
	}))
	defer server.Close()

	cfg := infra.RetryAttempts(2)
	cfg.InitialDelay = 0
	client := whisper.NewClient(server.URL, "", "").WithRetry(cfg)

	text, err := client.Transcribe(context.Background(), writeClip(t, "RIFF"))
	if err != nil {
		t.Fatalf("Transcribe error: %v", err)
	}
	if calls != 2 {
		t.Errorf("calls: got %d, want 2", calls)
	}
	if text == "" {
		t.Error("expected transcript")
	}
}
