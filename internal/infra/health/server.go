// Package health serves the relay's liveness and resource report.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"voice-relay/internal/application"
)

type Report struct {
	Status        string           `json:"status"`
	Platform      string           `json:"platform"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	CPUPercent    float64          `json:"cpu_percent"`
	MemoryPercent float64          `json:"memory_percent"`
	Outcomes      map[string]int64 `json:"outcomes"`
	Errors        []string         `json:"errors,omitempty"`
}

type Server struct {
	addr     string
	platform string
	journal  application.Journal
	started  time.Time
	logger   *slog.Logger

	mu     sync.Mutex
	server *http.Server
	mux    *http.ServeMux
}

func NewServer(addr, platform string, journal application.Journal, logger *slog.Logger) *Server {
	if journal == nil {
		journal = &application.NoopJournal{}
	}
	s := &Server{
		addr:     addr,
		platform: platform,
		journal:  journal,
		started:  time.Now(),
		logger:   logger,
		mux:      http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /health", s.handleHealth)
	return s
}

func (s *Server) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return nil
	}

	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func(srv *http.Server) {
		s.logger.Info("health server starting", "addr", s.addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("health server error", "error", err)
		}
	}(s.server)

	return nil
}

func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Warn("graceful shutdown failed, forcing close", "error", err)
		if err := s.server.Close(); err != nil {
			return fmt.Errorf("closing server: %w", err)
		}
	}
	s.server = nil
	return nil
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.Report(r.Context())

	statusCode := http.StatusOK
	if report.Status != "ok" {
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(report); err != nil {
		s.logger.Warn("writing health report", "error", err)
	}
}

// Report gathers the current health. Resource probes that fail are listed in
// Errors without failing the report; an unreachable journal does.
func (s *Server) Report(ctx context.Context) Report {
	report := Report{
		Status:        "ok",
		Platform:      s.platform,
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
		Outcomes:      map[string]int64{},
	}

	if percents, err := cpu.PercentWithContext(ctx, 0, false); err != nil {
		report.Errors = append(report.Errors, "cpu: "+err.Error())
	} else if len(percents) > 0 {
		report.CPUPercent = percents[0]
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err != nil {
		report.Errors = append(report.Errors, "memory: "+err.Error())
	} else {
		report.MemoryPercent = vm.UsedPercent
	}

	stats, err := s.journal.Stats(ctx)
	if err != nil {
		report.Status = "degraded"
		report.Errors = append(report.Errors, "journal: "+err.Error())
	} else {
		report.Outcomes = stats
	}

	return report
}
