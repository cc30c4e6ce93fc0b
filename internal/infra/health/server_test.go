package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voice-relay/internal/domain"
	"voice-relay/internal/infra/health"
)

type stubJournal struct {
	stats map[string]int64
	err   error
}

func (s *stubJournal) Record(context.Context, domain.Outcome) error { return nil }

func (s *stubJournal) Stats(context.Context) (map[string]int64, error) {
	return s.stats, s.err
}

func logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func get(t *testing.T, h http.Handler) (*httptest.ResponseRecorder, health.Report) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var report health.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	return rec, report
}

func TestHealth_OK(t *testing.T) {
	journal := &stubJournal{stats: map[string]int64{"ok": 3, "conversion": 1}}
	s := health.NewServer(":0", "telegram", journal, logger())

	rec, report := get(t, s.Handler())

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "ok", report.Status)
	assert.Equal(t, "telegram", report.Platform)
	assert.Equal(t, int64(3), report.Outcomes["ok"])
	assert.Equal(t, int64(1), report.Outcomes["conversion"])
}

func TestHealth_JournalDown(t *testing.T) {
	journal := &stubJournal{err: errors.New("connection refused")}
	s := health.NewServer(":0", "discord", journal, logger())

	rec, report := get(t, s.Handler())

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "degraded", report.Status)
	assert.Contains(t, report.Errors, "journal: connection refused")
}

func TestHealth_NoJournal(t *testing.T) {
	s := health.NewServer(":0", "local", nil, logger())

	rec, report := get(t, s.Handler())

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, report.Outcomes)
}

func TestHealth_MethodNotAllowed(t *testing.T) {
	s := health.NewServer(":0", "local", nil, logger())

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/health", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHealth_StartStop(t *testing.T) {
	s := health.NewServer("127.0.0.1:0", "local", nil, logger())
	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Stop())
	require.NoError(t, s.Stop())
}
