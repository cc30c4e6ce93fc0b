package infra

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestDownloadFile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("OggS voice"))
	}))
	defer server.Close()

	dir := t.TempDir()
	dst := filepath.Join(dir, "clip.ogg")

	if err := DownloadFile(context.Background(), server.Client(), server.URL+"/clip", dst); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "OggS voice" {
		t.Errorf("got %q", data)
	}

	if err := DownloadFile(context.Background(), server.Client(), server.URL+"/missing", filepath.Join(dir, "x")); err == nil {
		t.Error("expected error for 404")
	}
}
